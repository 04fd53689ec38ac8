package netlist

import (
	"fmt"
	"sync"

	"github.com/pkg/errors"
	"github.com/robert-at-pretension-io/vlog-schematic/internal/ast"
)

// Design indexes the module definitions of one or more parsed files.
type Design struct {
	Modules     map[string]*ast.ModuleDef
	Order       []string // definition order
	Diagnostics []Diagnostic

	opts  Options
	mu    sync.Mutex
	ports map[string][]PortInfo
}

// PortInfo is the interface of a module port as seen by instantiations.
type PortInfo struct {
	Name  string
	Dir   Dir
	Width int
}

// NewDesign indexes the modules of src. When a module name is defined more
// than once the first definition wins and a diagnostic is recorded.
func NewDesign(src *ast.Source, opts Options) *Design {
	d := &Design{
		Modules: make(map[string]*ast.ModuleDef),
		opts:    opts.withDefaults(),
		ports:   make(map[string][]PortInfo),
	}
	if src == nil {
		return d
	}
	for _, m := range src.Modules {
		if first, dup := d.Modules[m.Name]; dup {
			d.Diagnostics = append(d.Diagnostics, Diagnostic{
				Rule:     "duplicate_module",
				Severity: SeverityWarning,
				Module:   m.Name,
				File:     m.Pos().File,
				Line:     m.Pos().Line,
				Message:  fmt.Sprintf("module %s redefined, keeping the definition at %s", m.Name, first.Pos()),
			})
			continue
		}
		d.Modules[m.Name] = m
		d.Order = append(d.Order, m.Name)
	}
	return d
}

// Options returns the options flows are built with.
func (d *Design) Options() Options { return d.opts }

// Flow builds the signal flow of the named module.
func (d *Design) Flow(name string) (*Flow, error) {
	m, ok := d.Modules[name]
	if !ok {
		return nil, errors.Errorf("module %q is not defined", name)
	}
	return newBuilder(d, m).build(), nil
}

// Flows builds the flow of every module in definition order.
func (d *Design) Flows() []*Flow {
	out := make([]*Flow, 0, len(d.Order))
	for _, name := range d.Order {
		out = append(out, newBuilder(d, d.Modules[name]).build())
	}
	return out
}

// PortInfo returns the port list of a defined module in header order.
func (d *Design) PortInfo(module string) ([]PortInfo, bool) {
	m, ok := d.Modules[module]
	if !ok {
		return nil, false
	}
	d.mu.Lock()
	if p, ok := d.ports[module]; ok {
		d.mu.Unlock()
		return p, true
	}
	d.mu.Unlock()

	b := newBuilder(d, m)
	b.declare()
	ports := make([]PortInfo, 0, len(m.Ports))
	for _, p := range m.Ports {
		s := b.sigs[p.Name]
		info := PortInfo{Name: p.Name, Dir: DirInout}
		if s != nil {
			info.Width = s.Width
			switch s.Kind {
			case "input":
				info.Dir = DirIn
			case "output":
				info.Dir = DirOut
			}
		}
		ports = append(ports, info)
	}

	d.mu.Lock()
	d.ports[module] = ports
	d.mu.Unlock()
	return ports, true
}
