package netlist

import (
	"strings"
)

// Elaborate builds the flow of top with instances of defined modules
// expanded into nested clusters, up to depth levels. Edges on instance pins
// are moved to the port nodes of the expanded child. Depth 0 returns the
// flat flow of top.
func (d *Design) Elaborate(top string, depth int) (*Flow, error) {
	f, err := d.Flow(top)
	if err != nil {
		return nil, err
	}
	if depth <= 0 {
		return f, nil
	}
	e := &elaborator{d: d, stack: map[string]bool{top: true}}
	e.expand(f, depth)
	f.reindex()
	return f, nil
}

type elaborator struct {
	d     *Design
	stack map[string]bool
}

func (e *elaborator) expand(f *Flow, depth int) {
	if depth <= 0 {
		return
	}
	var keep []*Node
	for _, n := range f.Nodes {
		if n.Kind != KindInstance || n.Scope != "" {
			keep = append(keep, n)
			continue
		}
		if _, ok := e.d.Modules[n.Module]; !ok {
			keep = append(keep, n)
			continue
		}
		if e.stack[n.Module] {
			f.Diagnostics = append(f.Diagnostics, Diagnostic{
				Rule:     "recursive_instance",
				Severity: SeverityError,
				Module:   f.Module,
				File:     n.File,
				Line:     n.Line,
				Message:  "instance " + n.Name + " of " + n.Module + " instantiates itself, not expanded",
			})
			keep = append(keep, n)
			continue
		}
		child, err := e.d.Flow(n.Module)
		if err != nil {
			keep = append(keep, n)
			continue
		}
		e.stack[n.Module] = true
		e.expand(child, depth-1)
		delete(e.stack, n.Module)

		keep = append(keep, e.inline(f, n, child)...)
	}
	f.Nodes = keep
}

// inline copies child into f under the instance node n and returns the
// copied nodes.
func (e *elaborator) inline(f *Flow, n *Node, child *Flow) []*Node {
	path := n.Name
	prefix := path + "/"

	nested := make(map[string]bool)
	var walk func(cs []*Cluster)
	walk = func(cs []*Cluster) {
		for _, c := range cs {
			for _, id := range c.Nodes {
				nested[id] = true
			}
			walk(c.Children)
		}
	}
	walk(child.Clusters)

	cl := &Cluster{
		ID:       clusterID(path),
		Label:    n.Module + "\n(" + n.Name + ")",
		Module:   n.Module,
		Instance: path,
	}
	ports := make(map[string]bool)
	var nodes []*Node
	for _, cn := range child.Nodes {
		cp := *cn
		cp.ID = prefix + cn.ID
		if cn.Scope == "" {
			cp.Scope = path
		} else {
			cp.Scope = path + "/" + cn.Scope
		}
		cp.Pins = append([]Pin(nil), cn.Pins...)
		if !nested[cn.ID] {
			cl.Nodes = append(cl.Nodes, cp.ID)
		}
		if cn.Kind.IsPort() {
			ports[cp.ID] = true
		}
		nodes = append(nodes, &cp)
	}
	cl.Children = renameClusters(child.Clusters, prefix)
	f.Clusters = append(f.Clusters, cl)

	var edges []*Edge
	for _, ed := range f.Edges {
		if ed.To == n.ID {
			ed.To, ed.ToPin = prefix+"port."+ed.ToPin, ""
			if !ports[ed.To] {
				e.dangling(f, n, ed.To)
				continue
			}
		}
		if ed.From == n.ID {
			ed.From, ed.FromPin = prefix+"port."+ed.FromPin, ""
			if !ports[ed.From] {
				e.dangling(f, n, ed.From)
				continue
			}
		}
		edges = append(edges, ed)
	}
	for _, ed := range child.Edges {
		cp := *ed
		cp.From = prefix + ed.From
		cp.To = prefix + ed.To
		edges = append(edges, &cp)
	}
	f.Edges = edges

	for _, dg := range child.Diagnostics {
		dg.Message = "in " + path + ": " + dg.Message
		f.Diagnostics = append(f.Diagnostics, dg)
	}
	return nodes
}

func (e *elaborator) dangling(f *Flow, n *Node, target string) {
	f.Diagnostics = append(f.Diagnostics, Diagnostic{
		Rule:     "dangling_connection",
		Severity: SeverityWarning,
		Module:   f.Module,
		File:     n.File,
		Line:     n.Line,
		Message:  "instance " + n.Name + ": no port node " + target + ", connection dropped",
	})
}

func renameClusters(cs []*Cluster, prefix string) []*Cluster {
	out := make([]*Cluster, 0, len(cs))
	for _, c := range cs {
		cp := *c
		cp.Instance = prefix + c.Instance
		cp.ID = clusterID(cp.Instance)
		cp.Nodes = make([]string, len(c.Nodes))
		for i, id := range c.Nodes {
			cp.Nodes[i] = prefix + id
		}
		cp.Children = renameClusters(c.Children, prefix)
		out = append(out, &cp)
	}
	return out
}

var clusterReplacer = strings.NewReplacer("/", "__", ".", "_", " ", "_")

func clusterID(path string) string {
	return "cluster_" + clusterReplacer.Replace(path)
}
