package facts

import (
	"sort"

	"github.com/robert-at-pretension-io/vlog-schematic/internal/netlist"
)

// Tables is the relational fact model of a design's signal flow.
// Each slice is a relation (table) with flat rows.
type Tables struct {
	Files       []FileRow       `json:"files"`
	Modules     []ModuleRow     `json:"modules"`
	Ports       []PortRow       `json:"ports"`
	Signals     []SignalRow     `json:"signals"`
	Instances   []InstanceRow   `json:"instances"`
	Pins        []PinRow        `json:"pins"`
	Blocks      []BlockRow      `json:"blocks"`
	Drivers     []EndpointRow   `json:"drivers"`
	Loads       []EndpointRow   `json:"loads"`
	Edges       []EdgeRow       `json:"edges"`
	Diagnostics []DiagnosticRow `json:"diagnostics"`
}

type FileRow struct {
	Path string `json:"path"`
}

type ModuleRow struct {
	Name  string `json:"name"`
	File  string `json:"file"`
	Line  int    `json:"line"`
	IsTop bool   `json:"is_top"`
}

type PortRow struct {
	Module    string `json:"module"`
	Name      string `json:"name"`
	Direction string `json:"direction"`
	Width     int    `json:"width"`
	File      string `json:"file"`
	Line      int    `json:"line"`
}

type SignalRow struct {
	Module   string `json:"module"`
	Name     string `json:"name"`
	Kind     string `json:"kind"`
	NetType  string `json:"net_type"`
	Width    int    `json:"width"`
	Drivers  int    `json:"drivers"`
	Loads    int    `json:"loads"`
	Implicit bool   `json:"implicit"`
	File     string `json:"file"`
	Line     int    `json:"line"`
}

type InstanceRow struct {
	Module  string `json:"module"`
	Name    string `json:"name"`
	Target  string `json:"target"`
	Defined bool   `json:"defined"`
	File    string `json:"file"`
	Line    int    `json:"line"`
}

type PinRow struct {
	Module    string `json:"module"`
	Instance  string `json:"instance"`
	Pin       string `json:"pin"`
	Direction string `json:"direction"`
	Width     int    `json:"width"`
	Expr      string `json:"expr"`
	Inferred  bool   `json:"inferred"`
	File      string `json:"file"`
	Line      int    `json:"line"`
}

// BlockRow is an assign or always block.
type BlockRow struct {
	Module  string `json:"module"`
	ID      string `json:"id"`
	Kind    string `json:"kind"`
	Label   string `json:"label"`
	File    string `json:"file"`
	Line    int    `json:"line"`
	EndLine int    `json:"end_line"`
}

// EndpointRow is one driver or load of a signal.
type EndpointRow struct {
	Module   string `json:"module"`
	Signal   string `json:"signal"`
	Node     string `json:"node"`
	Pin      string `json:"pin"`
	Slice    string `json:"slice"`
	Inferred bool   `json:"inferred"`
	Conflict bool   `json:"conflict"`
	File     string `json:"file"`
	Line     int    `json:"line"`
}

type EdgeRow struct {
	Module   string `json:"module"`
	From     string `json:"from"`
	FromPin  string `json:"from_pin"`
	To       string `json:"to"`
	ToPin    string `json:"to_pin"`
	Signal   string `json:"signal"`
	Label    string `json:"label"`
	Width    int    `json:"width"`
	Conflict bool   `json:"conflict"`
	Mismatch bool   `json:"mismatch"`
	Note     string `json:"note"`
	Inferred bool   `json:"inferred"`
	File     string `json:"file"`
	Line     int    `json:"line"`
}

type DiagnosticRow struct {
	Rule     string `json:"rule"`
	Severity string `json:"severity"`
	Module   string `json:"module"`
	Signal   string `json:"signal"`
	File     string `json:"file"`
	Line     int    `json:"line"`
	Message  string `json:"message"`
}

// BuildTables flattens module flows into the relational model. tops marks
// the modules no other module instantiates.
func BuildTables(flows []*netlist.Flow, tops map[string]bool, defined map[string]bool) Tables {
	tables := emptyTables()

	seenFiles := make(map[string]bool)
	for _, f := range flows {
		if f.File != "" && !seenFiles[f.File] {
			seenFiles[f.File] = true
			tables.Files = append(tables.Files, FileRow{Path: f.File})
		}

		line := 0
		for _, n := range f.Nodes {
			if n.Line > 0 && (line == 0 || n.Line < line) {
				line = n.Line
			}
		}
		tables.Modules = append(tables.Modules, ModuleRow{
			Name:  f.Module,
			File:  f.File,
			Line:  line,
			IsTop: tops[f.Module],
		})

		nodeLine := make(map[string]int, len(f.Nodes))
		for _, n := range f.Nodes {
			nodeLine[n.ID] = n.Line
			switch {
			case n.Kind.IsPort():
				width := 0
				if s := f.Signal(n.Name); s != nil {
					width = s.Width
				}
				tables.Ports = append(tables.Ports, PortRow{
					Module:    f.Module,
					Name:      n.Name,
					Direction: string(n.Kind),
					Width:     width,
					File:      n.File,
					Line:      n.Line,
				})
			case n.Kind == netlist.KindInstance:
				tables.Instances = append(tables.Instances, InstanceRow{
					Module:  f.Module,
					Name:    n.Name,
					Target:  n.Module,
					Defined: defined[n.Module],
					File:    n.File,
					Line:    n.Line,
				})
				for _, p := range n.Pins {
					tables.Pins = append(tables.Pins, PinRow{
						Module:    f.Module,
						Instance:  n.Name,
						Pin:       p.Name,
						Direction: string(p.Dir),
						Width:     p.Width,
						Expr:      p.Expr,
						Inferred:  p.Inferred,
						File:      n.File,
						Line:      n.Line,
					})
				}
			case n.Kind == netlist.KindAssign || n.Kind == netlist.KindAlways:
				tables.Blocks = append(tables.Blocks, BlockRow{
					Module:  f.Module,
					ID:      n.ID,
					Kind:    string(n.Kind),
					Label:   n.Label,
					File:    n.File,
					Line:    n.Line,
					EndLine: n.EndLine,
				})
			}
		}

		conflicts := make(map[string]bool)
		for _, e := range f.Edges {
			if e.Conflict {
				conflicts[e.Signal+"|"+e.From+"|"+e.FromPin] = true
			}
			tables.Edges = append(tables.Edges, EdgeRow{
				Module:   f.Module,
				From:     e.From,
				FromPin:  e.FromPin,
				To:       e.To,
				ToPin:    e.ToPin,
				Signal:   e.Signal,
				Label:    e.Label,
				Width:    e.Width,
				Conflict: e.Conflict,
				Mismatch: e.Mismatch,
				Note:     e.Note,
				Inferred: e.Inferred,
				File:     f.File,
				Line:     nodeLine[e.From],
			})
		}

		for _, s := range f.Signals {
			tables.Signals = append(tables.Signals, SignalRow{
				Module:   f.Module,
				Name:     s.Name,
				Kind:     s.Kind,
				NetType:  s.NetType,
				Width:    s.Width,
				Drivers:  len(s.Drivers),
				Loads:    len(s.Loads),
				Implicit: s.Implicit,
				File:     f.File,
				Line:     s.Line,
			})
			for _, d := range s.Drivers {
				tables.Drivers = append(tables.Drivers, endpointRow(f, s, d, conflicts[s.Name+"|"+d.Node+"|"+d.Pin]))
			}
			for _, l := range s.Loads {
				tables.Loads = append(tables.Loads, endpointRow(f, s, l, false))
			}
		}

		for _, d := range f.Diagnostics {
			tables.Diagnostics = append(tables.Diagnostics, DiagnosticRow{
				Rule:     d.Rule,
				Severity: d.Severity,
				Module:   d.Module,
				Signal:   d.Signal,
				File:     d.File,
				Line:     d.Line,
				Message:  d.Message,
			})
		}
	}

	sort.Slice(tables.Files, func(i, j int) bool { return tables.Files[i].Path < tables.Files[j].Path })

	return tables
}

func endpointRow(f *netlist.Flow, s *netlist.Signal, ep netlist.Endpoint, conflict bool) EndpointRow {
	line := ep.Line
	if line == 0 {
		line = s.Line
	}
	return EndpointRow{
		Module:   f.Module,
		Signal:   s.Name,
		Node:     ep.Node,
		Pin:      ep.Pin,
		Slice:    ep.Slice.String(),
		Inferred: ep.Inferred,
		Conflict: conflict,
		File:     f.File,
		Line:     line,
	}
}
