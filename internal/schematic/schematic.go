// Package schematic draws netlist flows as Graphviz graphs.
package schematic

import (
	"fmt"
	"strings"

	"github.com/emicklei/dot"

	"github.com/robert-at-pretension-io/vlog-schematic/internal/netlist"
)

// Snippets supplies source text for tooltips.
type Snippets interface {
	Lines(file string, from, to int) (string, error)
}

// Style controls the look of a schematic.
type Style struct {
	// RankDir is the Graphviz rankdir, LR when empty.
	RankDir string
	// Snippets, when set, adds the source of each node as its tooltip.
	Snippets Snippets
}

func (s Style) rankDir() string {
	if s.RankDir == "" {
		return "LR"
	}
	return s.RankDir
}

func (s Style) horizontal() bool {
	r := s.rankDir()
	return r == "LR" || r == "RL"
}

type builder struct {
	f     *netlist.Flow
	style Style
	g     *dot.Graph
	home  map[string]*dot.Graph
	nodes map[string]dot.Node
	ports map[string]map[string]string // node ID -> pin name -> record port

	inputs  *dot.Graph
	outputs *dot.Graph
}

// Build returns the schematic of f.
func Build(f *netlist.Flow, style Style) *dot.Graph {
	g := dot.NewGraph(dot.Directed)
	g.Attr("rankdir", style.rankDir())
	g.Attr("label", f.Module)
	g.Attr("labelloc", "t")
	g.Attr("fontname", "Helvetica")
	g.Attr("compound", "true")

	b := &builder{
		f:     f,
		style: style,
		g:     g,
		home:  make(map[string]*dot.Graph),
		nodes: make(map[string]dot.Node),
		ports: make(map[string]map[string]string),
	}
	b.clusters(g, f.Clusters)
	for _, n := range f.Nodes {
		b.node(n)
	}
	for _, e := range f.Edges {
		b.edge(e)
	}
	return g
}

func (b *builder) clusters(parent *dot.Graph, cs []*netlist.Cluster) {
	for _, c := range cs {
		sg := parent.Subgraph(c.ID, dot.ClusterOption{})
		sg.Attr("label", quoted(labelEscaper.Replace(c.Label)))
		sg.Attr("style", "rounded")
		sg.Attr("color", "gray40")
		sg.Attr("fontsize", "11")
		for _, id := range c.Nodes {
			b.home[id] = sg
		}
		b.clusters(sg, c.Children)
	}
}

func (b *builder) place(n *netlist.Node) *dot.Graph {
	if sg, ok := b.home[n.ID]; ok {
		return sg
	}
	switch n.Kind {
	case netlist.KindInput:
		if b.inputs == nil {
			b.inputs = b.g.Subgraph("Inputs", dot.ClusterOption{})
			b.inputs.Attr("color", "blue")
			b.inputs.Attr("style", "solid")
			b.inputs.Attr("fontsize", "12")
		}
		return b.inputs
	case netlist.KindOutput, netlist.KindInout:
		if b.outputs == nil {
			b.outputs = b.g.Subgraph("Outputs", dot.ClusterOption{})
			b.outputs.Attr("color", "darkgreen")
			b.outputs.Attr("style", "solid")
			b.outputs.Attr("fontsize", "12")
		}
		return b.outputs
	}
	return b.g
}

func (b *builder) node(n *netlist.Node) {
	dn := b.place(n).Node(n.ID)
	switch n.Kind {
	case netlist.KindInput, netlist.KindOutput:
		dn.Attr("label", n.Label)
		dn.Attr("shape", "ellipse")
		dn.Attr("style", "filled")
		dn.Attr("fillcolor", "lightgrey")
	case netlist.KindInout:
		dn.Attr("label", n.Label)
		dn.Attr("shape", "hexagon")
		dn.Attr("style", "filled")
		dn.Attr("fillcolor", "lightgrey")
	case netlist.KindInstance:
		dn.Attr("shape", "record")
		dn.Attr("style", "rounded,filled")
		dn.Attr("fillcolor", "lightblue")
		dn.Attr("label", quoted(b.record(n)))
	case netlist.KindAssign:
		dn.Attr("label", "assign")
		dn.Attr("shape", "box")
		dn.Attr("fontsize", "10")
		dn.Attr("height", "0.3")
	case netlist.KindAlways:
		dn.Attr("label", n.Label)
		dn.Attr("shape", "octagon")
		dn.Attr("fontsize", "10")
	case netlist.KindConstant:
		dn.Attr("label", n.Label)
		dn.Attr("shape", "plaintext")
		dn.Attr("fontsize", "10")
	case netlist.KindNet:
		dn.Attr("label", "")
		dn.Attr("xlabel", n.Label)
		dn.Attr("shape", "point")
		dn.Attr("width", "0.08")
	case netlist.KindUndriven, netlist.KindUnused:
		color := "red"
		if n.Kind == netlist.KindUnused {
			color = "gray50"
		}
		dn.Attr("label", "")
		dn.Attr("xlabel", fmt.Sprintf("%s: %s", n.Kind, n.Label))
		dn.Attr("shape", "point")
		dn.Attr("style", "dashed")
		dn.Attr("color", color)
		dn.Attr("width", "0.15")
	}
	if tip := b.tooltip(n); tip != "" {
		dn.Attr("tooltip", tip)
	}
	b.nodes[n.ID] = dn
}

// record builds "{in pins}|module\n(instance)|{out pins}" and remembers the
// port name of every pin.
func (b *builder) record(n *netlist.Node) string {
	ports := make(map[string]string, len(n.Pins))
	b.ports[n.ID] = ports
	var ins, outs []string
	for i, p := range n.Pins {
		port := fmt.Sprintf("p%d", i)
		ports[p.Name] = port
		text := p.Name
		if p.Unconnected() {
			text += " (nc)"
		}
		field := "<" + port + "> " + escape(text)
		if p.Dir == netlist.DirIn {
			ins = append(ins, field)
		} else {
			outs = append(outs, field)
		}
	}
	title := escape(n.Module + "\n(" + n.Name + ")")
	parts := []string{}
	if len(ins) > 0 {
		parts = append(parts, "{"+strings.Join(ins, "|")+"}")
	}
	parts = append(parts, title)
	if len(outs) > 0 {
		parts = append(parts, "{"+strings.Join(outs, "|")+"}")
	}
	label := strings.Join(parts, "|")
	if b.style.horizontal() {
		label = "{" + label + "}"
	}
	return label
}

func (b *builder) tooltip(n *netlist.Node) string {
	if b.style.Snippets == nil || n.File == "" || n.Line <= 0 {
		return ""
	}
	end := n.EndLine
	if end < n.Line {
		end = n.Line
	}
	text, err := b.style.Snippets.Lines(n.File, n.Line, end)
	if err != nil {
		return ""
	}
	return fmt.Sprintf("%s:%d\n%s", n.File, n.Line, text)
}

func (b *builder) edge(e *netlist.Edge) {
	from, ok1 := b.nodes[e.From]
	to, ok2 := b.nodes[e.To]
	if !ok1 || !ok2 {
		return
	}
	de := b.g.Edge(from, to)
	de.Attr("arrowhead", "vee")
	text := e.Label
	if e.Mismatch && e.Note != "" {
		text += "\n(" + e.Note + ")"
	}
	if text != "" {
		de.Attr("label", text)
		de.Attr("fontsize", "9")
	}
	if port, ok := b.ports[e.From][e.FromPin]; ok && e.FromPin != "" {
		de.Attr("tailport", port)
	}
	if port, ok := b.ports[e.To][e.ToPin]; ok && e.ToPin != "" {
		de.Attr("headport", port)
	}
	if e.Width > 1 {
		de.Attr("penwidth", "2")
	}
	switch {
	case e.Conflict:
		de.Attr("color", "red")
		de.Attr("fontcolor", "red")
		de.Attr("style", "bold")
		de.Attr("penwidth", "2.5")
	case e.Mismatch:
		de.Attr("color", "orange")
		de.Attr("fontcolor", "darkorange3")
		de.Attr("style", "dashed")
	case e.Inferred:
		de.Attr("style", "dotted")
	}
}

var recordEscaper = strings.NewReplacer(
	`\`, `\\`,
	`"`, `\"`,
	"{", `\{`,
	"}", `\}`,
	"|", `\|`,
	"<", `\<`,
	">", `\>`,
	"\n", `\n`,
)

var labelEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`)

// escape prepares text for a record label.
func escape(s string) string {
	return recordEscaper.Replace(s)
}

func quoted(s string) dot.Literal {
	return dot.Literal(`"` + s + `"`)
}
