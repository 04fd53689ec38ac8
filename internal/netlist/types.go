// Package netlist reconstructs signal flow from a parsed Verilog design.
//
// For every signal of a module it records which constructs drive it (input
// ports, continuous assignments, procedural blocks, instance output pins) and
// which read it, and turns each overlapping driver/load pair into a directed
// edge. The resulting Flow is what the schematic package draws.
package netlist

import "fmt"

// NodeKind classifies flow nodes.
type NodeKind string

const (
	KindInput    NodeKind = "input"
	KindOutput   NodeKind = "output"
	KindInout    NodeKind = "inout"
	KindInstance NodeKind = "instance"
	KindAssign   NodeKind = "assign"
	KindAlways   NodeKind = "always"
	KindConstant NodeKind = "constant"
	KindNet      NodeKind = "net"
	KindUndriven NodeKind = "undriven"
	KindUnused   NodeKind = "unused"
)

// IsPort reports whether the kind is a module port.
func (k NodeKind) IsPort() bool {
	return k == KindInput || k == KindOutput || k == KindInout
}

// Dir is the direction of an instance pin.
type Dir string

const (
	DirIn      Dir = "in"
	DirOut     Dir = "out"
	DirInout   Dir = "inout"
	DirUnknown Dir = "unknown"
)

// NetMode selects when fan-out is drawn through a junction node.
type NetMode string

const (
	NetAuto   NetMode = "auto"
	NetAlways NetMode = "always"
	NetNever  NetMode = "never"
)

// Options tune flow construction.
type Options struct {
	NetNodes NetMode
	// FanoutThreshold is the number of loads above which a junction node is
	// used in auto mode.
	FanoutThreshold int
	// ShowConstants draws constant connections as constant nodes.
	ShowConstants bool
	// ShowUnused adds sink nodes for driven signals nobody reads.
	ShowUnused bool
	// SelfLoops keeps edges from a block to itself.
	SelfLoops bool
}

// DefaultFanoutThreshold is used when Options.FanoutThreshold is zero.
const DefaultFanoutThreshold = 4

func (o Options) withDefaults() Options {
	if o.NetNodes == "" {
		o.NetNodes = NetAuto
	}
	if o.FanoutThreshold <= 0 {
		o.FanoutThreshold = DefaultFanoutThreshold
	}
	return o
}

// Slice is a bit range of a signal. Hi and Lo are only meaningful when Known;
// an unknown slice (dynamic index, unevaluable range) overlaps everything.
type Slice struct {
	Hi, Lo int
	Known  bool
}

// BitRange returns a known slice covering a and b in either order.
func BitRange(a, b int) Slice {
	if a < b {
		a, b = b, a
	}
	return Slice{Hi: a, Lo: b, Known: true}
}

// Width is the number of bits, or 0 when unknown.
func (s Slice) Width() int {
	if !s.Known {
		return 0
	}
	return s.Hi - s.Lo + 1
}

// Overlaps reports whether two slices share a bit.
func (s Slice) Overlaps(o Slice) bool {
	if !s.Known || !o.Known {
		return true
	}
	return s.Lo <= o.Hi && o.Lo <= s.Hi
}

// Intersect returns the common bits of two overlapping slices.
func (s Slice) Intersect(o Slice) Slice {
	switch {
	case !s.Known:
		return o
	case !o.Known:
		return s
	}
	return BitRange(min(s.Hi, o.Hi), max(s.Lo, o.Lo))
}

func (s Slice) String() string {
	switch {
	case !s.Known:
		return "[?]"
	case s.Hi == s.Lo:
		return fmt.Sprintf("[%d]", s.Hi)
	}
	return fmt.Sprintf("[%d:%d]", s.Hi, s.Lo)
}

// Endpoint is one side of a signal connection: a node, optionally one of its
// pins, and the bits of the signal it touches.
type Endpoint struct {
	Node  string `json:"node"`
	Pin   string `json:"pin,omitempty"`
	Slice Slice  `json:"slice"`
	// Text is the source form of the reference, e.g. "data[7:4]".
	Text     string `json:"text,omitempty"`
	Width    int    `json:"width,omitempty"`
	Line     int    `json:"line,omitempty"`
	Inferred bool   `json:"inferred,omitempty"`
	Bidir    bool   `json:"bidir,omitempty"`
	Mismatch string `json:"mismatch,omitempty"`
}

// Signal is a named net or variable of a module.
type Signal struct {
	Name string `json:"name"`
	// Kind is the declaration keyword: input, output, inout, wire, reg, ...
	Kind     string     `json:"kind"`
	NetType  string     `json:"net_type,omitempty"`
	Range    Slice      `json:"range"`
	Width    int        `json:"width"`
	Array    bool       `json:"array,omitempty"`
	Drivers  []Endpoint `json:"drivers"`
	Loads    []Endpoint `json:"loads"`
	Line     int        `json:"line"`
	Implicit bool       `json:"implicit,omitempty"`
}

// IsPort reports whether the signal is a module port.
func (s *Signal) IsPort() bool {
	return s.Kind == "input" || s.Kind == "output" || s.Kind == "inout"
}

// Pin is a connection point of an instance node.
type Pin struct {
	Name     string `json:"name"`
	Dir      Dir    `json:"dir"`
	Width    int    `json:"width,omitempty"`
	Expr     string `json:"expr,omitempty"`
	Inferred bool   `json:"inferred,omitempty"`
}

// Unconnected reports whether the pin was left open, as in ".p()".
func (p Pin) Unconnected() bool { return p.Expr == "" }

// Node is a vertex of the flow graph.
type Node struct {
	ID   string   `json:"id"`
	Kind NodeKind `json:"kind"`
	// Name is the signal, instance or block name the node stands for.
	Name  string `json:"name"`
	Label string `json:"label"`
	// Module is the instantiated module of an instance node.
	Module string `json:"module,omitempty"`
	// Scope is the instance path of nodes pulled in by Elaborate.
	Scope string `json:"scope,omitempty"`
	Pins  []Pin  `json:"pins,omitempty"`
	File  string `json:"file,omitempty"`
	Line  int    `json:"line,omitempty"`
	// EndLine bounds the source extent of multi-line constructs.
	EndLine int `json:"end_line,omitempty"`
}

// Pin returns the named pin.
func (n *Node) Pin(name string) (Pin, bool) {
	for _, p := range n.Pins {
		if p.Name == name {
			return p, true
		}
	}
	return Pin{}, false
}

// Edge is a directed producer to consumer connection.
type Edge struct {
	From     string `json:"from"`
	FromPin  string `json:"from_pin,omitempty"`
	To       string `json:"to"`
	ToPin    string `json:"to_pin,omitempty"`
	Signal   string `json:"signal,omitempty"`
	Label    string `json:"label,omitempty"`
	Width    int    `json:"width,omitempty"`
	Mismatch bool   `json:"mismatch,omitempty"`
	Note     string `json:"note,omitempty"`
	Conflict bool   `json:"conflict,omitempty"`
	Inferred bool   `json:"inferred,omitempty"`
}

// Cluster groups the nodes of an expanded instance.
type Cluster struct {
	ID       string     `json:"id"`
	Label    string     `json:"label"`
	Module   string     `json:"module"`
	Instance string     `json:"instance"`
	Nodes    []string   `json:"nodes"`
	Children []*Cluster `json:"children,omitempty"`
}

// Diagnostic severities.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
	SeverityInfo    = "info"
)

// Diagnostic reports something noteworthy found while building a flow.
type Diagnostic struct {
	Rule     string `json:"rule"`
	Severity string `json:"severity"`
	Module   string `json:"module,omitempty"`
	Signal   string `json:"signal,omitempty"`
	File     string `json:"file,omitempty"`
	Line     int    `json:"line,omitempty"`
	Message  string `json:"message"`
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s:%d: %s: %s [%s]", d.File, d.Line, d.Severity, d.Message, d.Rule)
}

// Flow is the signal-flow graph of one module.
type Flow struct {
	Module      string       `json:"module"`
	File        string       `json:"file,omitempty"`
	Nodes       []*Node      `json:"nodes"`
	Edges       []*Edge      `json:"edges"`
	Signals     []*Signal    `json:"signals"`
	Clusters    []*Cluster   `json:"clusters,omitempty"`
	Diagnostics []Diagnostic `json:"diagnostics,omitempty"`
	nodeIndex   map[string]*Node
	sigIndex    map[string]*Signal
}

// Node returns the node with the given ID.
func (f *Flow) Node(id string) *Node {
	if f.nodeIndex == nil {
		f.reindex()
	}
	return f.nodeIndex[id]
}

// Signal returns the named signal.
func (f *Flow) Signal(name string) *Signal {
	if f.sigIndex == nil {
		f.reindex()
	}
	return f.sigIndex[name]
}

func (f *Flow) reindex() {
	f.nodeIndex = make(map[string]*Node, len(f.Nodes))
	for _, n := range f.Nodes {
		f.nodeIndex[n.ID] = n
	}
	f.sigIndex = make(map[string]*Signal, len(f.Signals))
	for _, s := range f.Signals {
		f.sigIndex[s.Name] = s
	}
}

// EdgesFrom returns the edges leaving node id.
func (f *Flow) EdgesFrom(id string) []*Edge {
	var out []*Edge
	for _, e := range f.Edges {
		if e.From == id {
			out = append(out, e)
		}
	}
	return out
}

// EdgesTo returns the edges entering node id.
func (f *Flow) EdgesTo(id string) []*Edge {
	var out []*Edge
	for _, e := range f.Edges {
		if e.To == id {
			out = append(out, e)
		}
	}
	return out
}
