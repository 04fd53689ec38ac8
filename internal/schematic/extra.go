package schematic

import (
	"fmt"

	"github.com/emicklei/dot"

	"github.com/robert-at-pretension-io/vlog-schematic/internal/ast"
	"github.com/robert-at-pretension-io/vlog-schematic/internal/netlist"
)

// ASTGraph draws a syntax tree top to bottom, one box per node.
func ASTGraph(root ast.Node) *dot.Graph {
	g := dot.NewGraph(dot.Directed)
	g.Attr("rankdir", "TB")
	g.Attr("fontname", "Helvetica")
	seq := 0
	var walk func(n ast.Node) dot.Node
	walk = func(n ast.Node) dot.Node {
		seq++
		dn := g.Node(fmt.Sprintf("ast%d", seq))
		label := n.Kind()
		if name, attr, ok := ast.Name(n); ok {
			label += fmt.Sprintf("\n%s: %s", attr, name)
		}
		dn.Attr("label", label)
		dn.Attr("shape", "box")
		dn.Attr("fontsize", "10")
		for _, c := range n.Children() {
			g.Edge(dn, walk(c))
		}
		return dn
	}
	if root != nil {
		walk(root)
	}
	return g
}

// Mermaid renders f as a Mermaid flowchart.
func Mermaid(f *netlist.Flow, style Style) string {
	g := dot.NewGraph(dot.Directed)
	nodes := make(map[string]dot.Node, len(f.Nodes))
	for _, n := range f.Nodes {
		dn := g.Node(n.ID)
		dn.Label(plainLabel(n))
		nodes[n.ID] = dn
	}
	for _, e := range f.Edges {
		from, ok1 := nodes[e.From]
		to, ok2 := nodes[e.To]
		if !ok1 || !ok2 {
			continue
		}
		text := e.Label
		if e.Mismatch && e.Note != "" {
			text += " (" + e.Note + ")"
		}
		if text != "" {
			g.Edge(from, to, text)
		} else {
			g.Edge(from, to)
		}
	}
	orientation := dot.MermaidLeftToRight
	switch style.rankDir() {
	case "TB":
		orientation = dot.MermaidTopToBottom
	case "BT":
		orientation = dot.MermaidBottomToTop
	case "RL":
		orientation = dot.MermaidRightToLeft
	}
	return dot.MermaidFlowchart(g, orientation)
}

func plainLabel(n *netlist.Node) string {
	switch n.Kind {
	case netlist.KindInstance:
		return fmt.Sprintf("%s (%s)", n.Module, n.Name)
	case netlist.KindAssign:
		return "assign " + n.Name
	case netlist.KindUndriven, netlist.KindUnused:
		return fmt.Sprintf("%s: %s", n.Kind, n.Label)
	}
	return n.Label
}
