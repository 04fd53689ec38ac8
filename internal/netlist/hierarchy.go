package netlist

import (
	"fmt"
	"sort"
	"strings"

	"github.com/robert-at-pretension-io/vlog-schematic/internal/ast"
)

// instGraph maps a module to the defined modules it instantiates.
type instGraph map[string]map[string]bool

func (d *Design) instGraph() instGraph {
	graph := make(instGraph)
	for _, name := range d.Order {
		for _, it := range d.Modules[name].Items {
			list, ok := it.(*ast.InstanceList)
			if !ok {
				continue
			}
			for _, inst := range list.Instances {
				if _, defined := d.Modules[inst.Module]; !defined {
					continue
				}
				if graph[name] == nil {
					graph[name] = make(map[string]bool)
				}
				graph[name][inst.Module] = true
			}
		}
	}
	return graph
}

// Tops returns the modules no other module instantiates, sorted.
func (d *Design) Tops() []string {
	used := make(map[string]bool)
	for parent, children := range d.instGraph() {
		for c := range children {
			if c != parent {
				used[c] = true
			}
		}
	}
	var tops []string
	for _, name := range d.Order {
		if !used[name] {
			tops = append(tops, name)
		}
	}
	sort.Strings(tops)
	return tops
}

// Children returns the defined modules instantiated by module, sorted.
func (d *Design) Children(module string) []string {
	var out []string
	for c := range d.instGraph()[module] {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// HierarchyReport lists the modules reachable from Root, one level per
// instantiation depth. A module appears at the first level it is reached.
type HierarchyReport struct {
	Root   string     `json:"root"`
	Levels [][]string `json:"levels"`
}

// Hierarchy returns one report per top module.
func (d *Design) Hierarchy() []HierarchyReport {
	graph := d.instGraph()
	var out []HierarchyReport
	for _, top := range d.Tops() {
		out = append(out, computeLevels(top, graph))
	}
	return out
}

func computeLevels(root string, graph instGraph) HierarchyReport {
	visited := map[string]bool{root: true}
	frontier := []string{root}
	var levels [][]string

	for len(frontier) > 0 {
		var next []string
		for _, m := range frontier {
			for child := range graph[m] {
				if visited[child] {
					continue
				}
				visited[child] = true
				next = append(next, child)
			}
		}
		if len(next) == 0 {
			break
		}
		sort.Strings(next)
		levels = append(levels, next)
		frontier = next
	}

	return HierarchyReport{Root: root, Levels: levels}
}

// FormatHierarchy renders a report the way the CLI prints it.
func FormatHierarchy(report HierarchyReport) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("  %s\n", report.Root))
	for i, level := range report.Levels {
		b.WriteString(fmt.Sprintf("    level %d (%d): %s\n", i+1, len(level), strings.Join(level, ", ")))
	}
	return b.String()
}
