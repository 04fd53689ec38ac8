package netlist

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/robert-at-pretension-io/vlog-schematic/internal/ast"
	"github.com/robert-at-pretension-io/vlog-schematic/internal/parser"
)

func lines(ls ...string) string {
	return strings.Join(ls, "\n") + "\n"
}

func design(t *testing.T, opts Options, src string) *Design {
	t.Helper()
	parsed, err := parser.ParseString("test.v", src)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return NewDesign(parsed, opts)
}

func flowOf(t *testing.T, opts Options, module, src string) *Flow {
	t.Helper()
	f, err := design(t, opts, src).Flow(module)
	if err != nil {
		t.Fatalf("flow %s: %v", module, err)
	}
	return f
}

func findEdge(f *Flow, from, to string) *Edge {
	for _, e := range f.Edges {
		if e.From == from && e.To == to {
			return e
		}
	}
	return nil
}

func mustEdge(t *testing.T, f *Flow, from, to string) *Edge {
	t.Helper()
	e := findEdge(f, from, to)
	if e == nil {
		t.Fatalf("missing edge %s -> %s; edges: %s", from, to, edgeList(f))
	}
	return e
}

func edgeList(f *Flow) string {
	var parts []string
	for _, e := range f.Edges {
		parts = append(parts, e.From+"->"+e.To+"("+e.Label+")")
	}
	return strings.Join(parts, " ")
}

func rules(diags []Diagnostic) []string {
	var out []string
	for _, d := range diags {
		out = append(out, d.Rule)
	}
	return out
}

func hasRule(diags []Diagnostic, rule string) bool {
	for _, d := range diags {
		if d.Rule == rule {
			return true
		}
	}
	return false
}

func TestForwardReference(t *testing.T) {
	f := flowOf(t, Options{}, "top", lines(
		"module top(input a, input b, output y);",
		"  wire n;",
		"  assign y = n;",
		"  assign n = a & b;",
		"endmodule",
	))

	e := mustEdge(t, f, "assign.L4", "assign.L3")
	if e.Signal != "n" || e.Label != "n" || e.Width != 1 {
		t.Fatalf("unexpected edge %+v", e)
	}
	mustEdge(t, f, "port.a", "assign.L4")
	mustEdge(t, f, "port.b", "assign.L4")
	mustEdge(t, f, "assign.L3", "port.y")
	if len(f.Edges) != 4 {
		t.Fatalf("expected 4 edges, got %s", edgeList(f))
	}
	if len(f.Diagnostics) != 0 {
		t.Fatalf("unexpected diagnostics: %v", f.Diagnostics)
	}
}

func TestMultipleDrivers(t *testing.T) {
	f := flowOf(t, Options{}, "m", lines(
		"module m(input a, input b, output y);",
		"  assign y = a;",
		"  assign y = b;",
		"endmodule",
	))
	for _, from := range []string{"assign.L2", "assign.L3"} {
		if e := mustEdge(t, f, from, "port.y"); !e.Conflict {
			t.Fatalf("edge from %s should be marked as conflict", from)
		}
	}
	if e := mustEdge(t, f, "port.a", "assign.L2"); e.Conflict {
		t.Fatalf("single-driver edge marked as conflict")
	}
	var found bool
	for _, d := range f.Diagnostics {
		if d.Rule == "multiple_drivers" {
			found = true
			if d.Signal != "y" || d.Severity != SeverityError {
				t.Fatalf("unexpected diagnostic %+v", d)
			}
		}
	}
	if !found {
		t.Fatalf("expected multiple_drivers, got %v", rules(f.Diagnostics))
	}
}

func TestDisjointSliceDrivers(t *testing.T) {
	f := flowOf(t, Options{}, "m", lines(
		"module m(input [3:0] lo, input [3:0] hi, output [7:0] bus);",
		"  assign bus[3:0] = lo;",
		"  assign bus[7:4] = hi;",
		"endmodule",
	))
	low := mustEdge(t, f, "assign.L2", "port.bus")
	high := mustEdge(t, f, "assign.L3", "port.bus")
	if low.Label != "bus[3:0]" || high.Label != "bus[7:4]" {
		t.Fatalf("unexpected labels %q %q", low.Label, high.Label)
	}
	if low.Conflict || high.Conflict || low.Width != 4 {
		t.Fatalf("disjoint drivers misreported: %+v %+v", low, high)
	}
	if hasRule(f.Diagnostics, "multiple_drivers") {
		t.Fatalf("disjoint slices reported as multiple drivers")
	}
	if e := mustEdge(t, f, "port.lo", "assign.L2"); e.Label != "lo" {
		t.Fatalf("full-range edge should carry the bare name, got %q", e.Label)
	}
}

func TestSliceOverlapFiltersEdges(t *testing.T) {
	f := flowOf(t, Options{}, "m", lines(
		"module m(input [7:0] d, output lo, output hi);",
		"  wire [7:0] b;",
		"  assign b[3:0] = d[3:0];",
		"  assign b[7:4] = d[7:4];",
		"  assign lo = b[1];",
		"  assign hi = b[6];",
		"endmodule",
	))
	mustEdge(t, f, "assign.L3", "assign.L5")
	mustEdge(t, f, "assign.L4", "assign.L6")
	if findEdge(f, "assign.L3", "assign.L6") != nil || findEdge(f, "assign.L4", "assign.L5") != nil {
		t.Fatalf("edges between non-overlapping slices: %s", edgeList(f))
	}
	if e := mustEdge(t, f, "assign.L3", "assign.L5"); e.Label != "b[1]" || e.Width != 1 {
		t.Fatalf("unexpected label %+v", e)
	}
}

func TestDynamicIndexOverlapsAll(t *testing.T) {
	f := flowOf(t, Options{}, "m", lines(
		"module m(input [7:0] d, input [2:0] sel, output y);",
		"  assign y = d[sel];",
		"endmodule",
	))
	e := mustEdge(t, f, "port.d", "assign.L2")
	if e.Label != "d[sel]" {
		t.Fatalf("unknown slice should be labelled with the source text, got %q", e.Label)
	}
	mustEdge(t, f, "port.sel", "assign.L2")
}

func TestFanoutJunction(t *testing.T) {
	src := lines(
		"module m(input en, output a, output b, output c);",
		"  assign a = en;",
		"  assign b = en;",
		"  assign c = en;",
		"endmodule",
	)
	cases := []struct {
		name     string
		opts     Options
		junction bool
	}{
		{"auto below threshold", Options{}, false},
		{"auto above threshold", Options{FanoutThreshold: 2}, true},
		{"always", Options{NetNodes: NetAlways}, true},
		{"never", Options{NetNodes: NetNever, FanoutThreshold: 1}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := flowOf(t, tc.opts, "m", src)
			net := f.Node("net.en")
			if (net != nil) != tc.junction {
				t.Fatalf("junction present = %v, want %v", net != nil, tc.junction)
			}
			if tc.junction {
				mustEdge(t, f, "port.en", "net.en")
				for _, to := range []string{"assign.L2", "assign.L3", "assign.L4"} {
					mustEdge(t, f, "net.en", to)
				}
				return
			}
			for _, to := range []string{"assign.L2", "assign.L3", "assign.L4"} {
				mustEdge(t, f, "port.en", to)
			}
		})
	}
}

func TestUndrivenAndUnused(t *testing.T) {
	src := lines(
		"module m(input a, output y);",
		"  wire floating;",
		"  wire spare;",
		"  assign y = a & floating;",
		"  assign spare = a;",
		"endmodule",
	)
	f := flowOf(t, Options{ShowUnused: true}, "m", src)
	if n := f.Node("undriven.floating"); n == nil || n.Kind != KindUndriven {
		t.Fatalf("missing undriven placeholder")
	}
	mustEdge(t, f, "undriven.floating", "assign.L4")
	mustEdge(t, f, "assign.L5", "unused.spare")
	if !hasRule(f.Diagnostics, "undriven_signal") || !hasRule(f.Diagnostics, "unused_signal") {
		t.Fatalf("unexpected diagnostics %v", rules(f.Diagnostics))
	}

	f = flowOf(t, Options{}, "m", src)
	if f.Node("unused.spare") != nil {
		t.Fatalf("unused sink drawn without ShowUnused")
	}
}

func TestSupplyNetIsConstantSource(t *testing.T) {
	f := flowOf(t, Options{}, "m", lines(
		"module m(output y);",
		"  supply1 vdd;",
		"  assign y = vdd;",
		"endmodule",
	))
	n := f.Node("const.vdd")
	if n == nil || n.Kind != KindConstant || n.Name != "1'b1" {
		t.Fatalf("expected constant source for supply net, got %+v", n)
	}
	mustEdge(t, f, "const.vdd", "assign.L3")
	if hasRule(f.Diagnostics, "undriven_signal") {
		t.Fatalf("supply net reported undriven")
	}
}

func TestWidthMismatch(t *testing.T) {
	f := flowOf(t, Options{}, "m", lines(
		"module m(input [7:0] d, output [3:0] q);",
		"  assign q = d;",
		"endmodule",
	))
	e := mustEdge(t, f, "assign.L2", "port.q")
	if !e.Mismatch || e.Note != "4 vs 8 bits" {
		t.Fatalf("expected mismatch note, got %+v", e)
	}
	if in := mustEdge(t, f, "port.d", "assign.L2"); in.Mismatch {
		t.Fatalf("read side should not carry the mismatch")
	}
	if !hasRule(f.Diagnostics, "width_mismatch") {
		t.Fatalf("expected width_mismatch, got %v", rules(f.Diagnostics))
	}
}

func TestConcatAndParameterWidths(t *testing.T) {
	f := flowOf(t, Options{}, "m", lines(
		"module m #(parameter W = 4) (input [W-1:0] a, input [W-1:0] b, output [2*W-1:0] y);",
		"  assign y = {a, b};",
		"endmodule",
	))
	if s := f.Signal("y"); s.Width != 8 {
		t.Fatalf("expected y width 8, got %d", s.Width)
	}
	if hasRule(f.Diagnostics, "width_mismatch") {
		t.Fatalf("concatenation width misjudged: %v", f.Diagnostics)
	}
}

func TestInstances(t *testing.T) {
	src := lines(
		"module child(input [3:0] i, output [3:0] o);",
		"  assign o = i;",
		"endmodule",
		"module top(input [3:0] x, output [3:0] y);",
		"  wire [3:0] w;",
		"  child u1(.i(x), .o(w));",
		"  child u2(w, y);",
		"endmodule",
	)
	f := flowOf(t, Options{}, "top", src)

	e := mustEdge(t, f, "port.x", "inst.u1")
	if e.ToPin != "i" {
		t.Fatalf("expected pin i, got %+v", e)
	}
	e = mustEdge(t, f, "inst.u1", "inst.u2")
	if e.FromPin != "o" || e.ToPin != "i" || e.Label != "w" {
		t.Fatalf("positional connection not mapped through port order: %+v", e)
	}
	e = mustEdge(t, f, "inst.u2", "port.y")
	if e.FromPin != "o" {
		t.Fatalf("unexpected edge %+v", e)
	}
	u2 := f.Node("inst.u2")
	want := []Pin{
		{Name: "i", Dir: DirIn, Width: 4, Expr: "w"},
		{Name: "o", Dir: DirOut, Width: 4, Expr: "y"},
	}
	if diff := cmp.Diff(want, u2.Pins); diff != "" {
		t.Fatalf("pins mismatch (-want +got):\n%s", diff)
	}
}

func TestInstancePinWidthMismatchAndOpenPorts(t *testing.T) {
	src := lines(
		"module child(input [3:0] i, input en, output [3:0] o);",
		"  assign o = en ? i : 4'd0;",
		"endmodule",
		"module top(input [7:0] x, output [3:0] y);",
		"  child u1(.i(x), .o(y));",
		"endmodule",
	)
	f := flowOf(t, Options{}, "top", src)
	e := mustEdge(t, f, "port.x", "inst.u1")
	if !e.Mismatch || e.Note != "4 vs 8 bits" {
		t.Fatalf("expected pin mismatch, got %+v", e)
	}
	pin, ok := f.Node("inst.u1").Pin("en")
	if !ok || !pin.Unconnected() || pin.Dir != DirIn {
		t.Fatalf("expected open en pin, got %+v %v", pin, ok)
	}
}

func TestUnknownModuleInfersDirections(t *testing.T) {
	f := flowOf(t, Options{}, "top", lines(
		"module top(input a, output y);",
		"  wire mid;",
		"  blackbox bb(.in(a), .out(mid));",
		"  assign y = mid;",
		"endmodule",
	))
	in := mustEdge(t, f, "port.a", "inst.bb")
	if !in.Inferred || in.ToPin != "in" {
		t.Fatalf("expected inferred load on pin in, got %+v", in)
	}
	out := mustEdge(t, f, "inst.bb", "assign.L4")
	if !out.Inferred || out.FromPin != "out" {
		t.Fatalf("expected inferred driver on pin out, got %+v", out)
	}
	bb := f.Node("inst.bb")
	if p, _ := bb.Pin("out"); p.Dir != DirOut || !p.Inferred {
		t.Fatalf("pin out not resolved: %+v", p)
	}
	if p, _ := bb.Pin("in"); p.Dir != DirIn || !p.Inferred {
		t.Fatalf("pin in not resolved: %+v", p)
	}
	if !hasRule(f.Diagnostics, "unknown_module") || !hasRule(f.Diagnostics, "inferred_direction") {
		t.Fatalf("unexpected diagnostics %v", rules(f.Diagnostics))
	}
}

func TestGatePrimitives(t *testing.T) {
	f := flowOf(t, Options{}, "m", lines(
		"module m(input a, input b, output y, output nb);",
		"  and g1(y, a, b);",
		"  not (nb, b);",
		"endmodule",
	))
	mustEdge(t, f, "inst.g1", "port.y")
	mustEdge(t, f, "port.a", "inst.g1")
	mustEdge(t, f, "port.b", "inst.not_L3")
	mustEdge(t, f, "inst.not_L3", "port.nb")
	if hasRule(f.Diagnostics, "unknown_module") {
		t.Fatalf("gate treated as unknown module")
	}
}

func TestImplicitNet(t *testing.T) {
	f := flowOf(t, Options{}, "m", lines(
		"module m(input a, output y);",
		"  assign y = a & ghost;",
		"endmodule",
	))
	s := f.Signal("ghost")
	if s == nil || !s.Implicit || s.Width != 1 {
		t.Fatalf("expected implicit 1-bit net, got %+v", s)
	}
	if !hasRule(f.Diagnostics, "implicit_net") {
		t.Fatalf("expected implicit_net, got %v", rules(f.Diagnostics))
	}
}

func TestAlwaysBlockAndSelfLoops(t *testing.T) {
	src := lines(
		"module m(clk, d, q);",
		"  input clk, d;",
		"  output q;",
		"  reg q;",
		"  reg [3:0] cnt;",
		"  always @(posedge clk) begin",
		"    cnt <= cnt + 1;",
		"    q <= d;",
		"  end",
		"endmodule",
	)
	f := flowOf(t, Options{}, "m", src)
	mustEdge(t, f, "port.clk", "always.L6")
	mustEdge(t, f, "port.d", "always.L6")
	mustEdge(t, f, "always.L6", "port.q")
	if findEdge(f, "always.L6", "always.L6") != nil {
		t.Fatalf("self loop drawn without SelfLoops")
	}
	n := f.Node("always.L6")
	if n.Label != "always @(posedge clk)" || n.EndLine != 9 {
		t.Fatalf("unexpected always node %+v", n)
	}
	if q := f.Signal("q"); q.Kind != "output" || q.NetType != "reg" {
		t.Fatalf("redeclared port merged wrongly: %+v", q)
	}

	f = flowOf(t, Options{SelfLoops: true}, "m", src)
	if e := mustEdge(t, f, "always.L6", "always.L6"); e.Label != "cnt" {
		t.Fatalf("unexpected self loop %+v", e)
	}
}

func TestLoopVariablesAreNotSignals(t *testing.T) {
	f := flowOf(t, Options{}, "m", lines(
		"module m(input [3:0] d, output reg [3:0] q);",
		"  integer i;",
		"  always @* begin",
		"    for (i = 0; i < 4; i = i + 1)",
		"      q[i] = d[3 - i];",
		"  end",
		"endmodule",
	))
	for _, e := range f.Edges {
		if e.Signal == "i" {
			t.Fatalf("loop variable produced an edge: %+v", e)
		}
	}
	mustEdge(t, f, "port.d", "always.L3")
	mustEdge(t, f, "always.L3", "port.q")
}

func TestElaborate(t *testing.T) {
	d := design(t, Options{}, lines(
		"module child(input [3:0] i, output [3:0] o);",
		"  assign o = i;",
		"endmodule",
		"module top(input [3:0] x, output [3:0] y);",
		"  wire [3:0] w;",
		"  child u1(.i(x), .o(w));",
		"  child u2(w, y);",
		"endmodule",
	))
	f, err := d.Elaborate("top", 1)
	if err != nil {
		t.Fatalf("elaborate: %v", err)
	}
	if f.Node("inst.u1") != nil {
		t.Fatalf("expanded instance node should be replaced by its cluster")
	}
	mustEdge(t, f, "port.x", "u1/port.i")
	mustEdge(t, f, "u1/port.i", "u1/assign.L2")
	mustEdge(t, f, "u1/assign.L2", "u1/port.o")
	mustEdge(t, f, "u1/port.o", "u2/port.i")
	mustEdge(t, f, "u2/port.o", "port.y")

	if len(f.Clusters) != 2 {
		t.Fatalf("expected 2 clusters, got %d", len(f.Clusters))
	}
	c := f.Clusters[0]
	if c.ID != "cluster_u1" || c.Label != "child\n(u1)" {
		t.Fatalf("unexpected cluster %+v", c)
	}
	if diff := cmp.Diff([]string{"u1/port.i", "u1/port.o", "u1/assign.L2"}, c.Nodes); diff != "" {
		t.Fatalf("cluster nodes mismatch (-want +got):\n%s", diff)
	}
	if n := f.Node("u1/assign.L2"); n.Scope != "u1" {
		t.Fatalf("unexpected scope %q", n.Scope)
	}

	flat, err := d.Elaborate("top", 0)
	if err != nil {
		t.Fatalf("elaborate: %v", err)
	}
	if flat.Node("inst.u1") == nil || len(flat.Clusters) != 0 {
		t.Fatalf("depth 0 should return the flat flow")
	}
}

func TestElaborateNested(t *testing.T) {
	d := design(t, Options{}, lines(
		"module leaf(input a, output y);",
		"  assign y = ~a;",
		"endmodule",
		"module mid(input a, output y);",
		"  leaf l0(.a(a), .y(y));",
		"endmodule",
		"module top(input a, output y);",
		"  mid m0(.a(a), .y(y));",
		"endmodule",
	))
	f, err := d.Elaborate("top", 2)
	if err != nil {
		t.Fatalf("elaborate: %v", err)
	}
	mustEdge(t, f, "port.a", "m0/port.a")
	mustEdge(t, f, "m0/port.a", "m0/l0/port.a")
	mustEdge(t, f, "m0/l0/assign.L2", "m0/l0/port.y")
	mustEdge(t, f, "m0/l0/port.y", "m0/port.y")

	if len(f.Clusters) != 1 || len(f.Clusters[0].Children) != 1 {
		t.Fatalf("expected nested clusters, got %+v", f.Clusters)
	}
	inner := f.Clusters[0].Children[0]
	if inner.ID != "cluster_m0__l0" || inner.Instance != "m0/l0" {
		t.Fatalf("unexpected inner cluster %+v", inner)
	}
	for _, id := range f.Clusters[0].Nodes {
		if strings.HasPrefix(id, "m0/l0/") {
			t.Fatalf("outer cluster lists nested node %s", id)
		}
	}
	if n := f.Node("m0/l0/assign.L2"); n.Scope != "m0/l0" {
		t.Fatalf("unexpected scope %q", n.Scope)
	}

	shallow, err := d.Elaborate("top", 1)
	if err != nil {
		t.Fatalf("elaborate: %v", err)
	}
	if shallow.Node("m0/inst.l0") == nil {
		t.Fatalf("depth 1 should keep grandchildren as instances")
	}
}

func TestElaborateRecursion(t *testing.T) {
	d := design(t, Options{}, lines(
		"module r(input a, output y);",
		"  r inner(.a(a), .y(y));",
		"endmodule",
	))
	f, err := d.Elaborate("r", 3)
	if err != nil {
		t.Fatalf("elaborate: %v", err)
	}
	if !hasRule(f.Diagnostics, "recursive_instance") {
		t.Fatalf("expected recursive_instance, got %v", rules(f.Diagnostics))
	}
	if f.Node("inst.inner") == nil {
		t.Fatalf("recursive instance should stay unexpanded")
	}
}

func TestTopsAndHierarchy(t *testing.T) {
	d := design(t, Options{}, lines(
		"module leaf(input a, output y); assign y = a; endmodule",
		"module mid(input a, output y); leaf l(.a(a), .y(y)); endmodule",
		"module top(input a, output y, output z);",
		"  mid m(.a(a), .y(y));",
		"  leaf l(.a(a), .y(z));",
		"endmodule",
		"module other(input a); endmodule",
	))
	if diff := cmp.Diff([]string{"other", "top"}, d.Tops()); diff != "" {
		t.Fatalf("tops mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"leaf", "mid"}, d.Children("top")); diff != "" {
		t.Fatalf("children mismatch (-want +got):\n%s", diff)
	}
	reports := d.Hierarchy()
	want := []HierarchyReport{
		{Root: "other"},
		{Root: "top", Levels: [][]string{{"leaf", "mid"}}},
	}
	if diff := cmp.Diff(want, reports); diff != "" {
		t.Fatalf("hierarchy mismatch (-want +got):\n%s", diff)
	}
	if got := FormatHierarchy(reports[1]); got != "  top\n    level 1 (2): leaf, mid\n" {
		t.Fatalf("unexpected format %q", got)
	}
}

func TestDuplicateModuleAndMissingFlow(t *testing.T) {
	d := design(t, Options{}, lines(
		"module m(input a); endmodule",
		"module m(input b); endmodule",
	))
	if len(d.Order) != 1 || !hasRule(d.Diagnostics, "duplicate_module") {
		t.Fatalf("duplicate module not reported: %v", d.Diagnostics)
	}
	if _, err := d.Flow("nope"); err == nil {
		t.Fatalf("expected error for undefined module")
	}
	ports, ok := d.PortInfo("m")
	if !ok || len(ports) != 1 || ports[0].Name != "a" {
		t.Fatalf("first definition should win, got %+v", ports)
	}
}

func TestSliceHelpers(t *testing.T) {
	a, b := BitRange(3, 0), BitRange(7, 4)
	if a.Overlaps(b) {
		t.Fatalf("[3:0] overlaps [7:4]")
	}
	if !a.Overlaps(Slice{}) {
		t.Fatalf("unknown slice must overlap")
	}
	if got := BitRange(2, 5).Intersect(BitRange(7, 4)); got.String() != "[5:4]" {
		t.Fatalf("unexpected intersection %s", got)
	}
	if (Slice{}).String() != "[?]" || BitRange(1, 1).String() != "[1]" {
		t.Fatalf("unexpected slice strings")
	}
}

func TestJunctionKeepsSliceOverlap(t *testing.T) {
	src := lines(
		"module m(input [3:0] x, output [7:0] o, output y4, output y5, output y6, output y7);",
		"  wire [7:0] b;",
		"  assign b[3:0] = x;",
		"  assign o = b;",
		"  assign y4 = b[4];",
		"  assign y5 = b[5];",
		"  assign y6 = b[6];",
		"  assign y7 = b[7];",
		"endmodule",
	)
	never := flowOf(t, Options{NetNodes: NetNever}, "m", src)
	for _, opts := range []Options{{NetNodes: NetAlways}, {FanoutThreshold: 2}} {
		f := flowOf(t, opts, "m", src)
		if f.Node("net.b") == nil {
			t.Fatalf("expected a junction for b with %+v", opts)
		}
		if diff := cmp.Diff(rules(never.Diagnostics), rules(f.Diagnostics)); diff != "" {
			t.Fatalf("diagnostics depend on junction setting (-never +junction):\n%s", diff)
		}
		mustEdge(t, f, "assign.L3", "net.b")
		mustEdge(t, f, "net.b", "assign.L4")
		for _, to := range []string{"assign.L5", "assign.L6", "assign.L7", "assign.L8"} {
			in := f.EdgesTo(to)
			if len(in) != 1 || in[0].From != "undriven.b" {
				t.Fatalf("%s should read only the undriven placeholder, got %s", to, edgeList(f))
			}
		}
		for _, e := range f.EdgesFrom("net.b") {
			if e.To != "assign.L4" {
				t.Fatalf("junction feeds bits nothing drives: %+v", e)
			}
		}
	}
	if !hasRule(never.Diagnostics, "undriven_signal") {
		t.Fatalf("expected undriven_signal, got %v", rules(never.Diagnostics))
	}
}

func TestJunctionStillReportsUnused(t *testing.T) {
	src := lines(
		"module m(input [1:0] x, output p, output q, output r);",
		"  wire [1:0] w;",
		"  assign w[0] = x[0];",
		"  assign w[1] = x[1];",
		"  assign p = w[0];",
		"  assign q = w[0];",
		"  assign r = w[0];",
		"endmodule",
	)
	f := flowOf(t, Options{NetNodes: NetAlways, ShowUnused: true}, "m", src)
	mustEdge(t, f, "assign.L3", "net.w")
	mustEdge(t, f, "assign.L4", "unused.w")
	if findEdge(f, "assign.L4", "net.w") != nil {
		t.Fatalf("unread driver wired into the junction: %s", edgeList(f))
	}
	if !hasRule(f.Diagnostics, "unused_signal") {
		t.Fatalf("expected unused_signal, got %v", rules(f.Diagnostics))
	}
}

func TestSameNodeReferencesMerge(t *testing.T) {
	f := flowOf(t, Options{}, "m", lines(
		"module m(input clk, input d, input r, output y);",
		"  reg q;",
		"  always @(posedge clk) begin",
		"    q <= d;",
		"    if (r) q[0] <= 1'b0;",
		"  end",
		"  assign y = q ^ q[0];",
		"endmodule",
	))
	if got := f.EdgesFrom("always.L3"); len(got) != 1 || got[0].To != "assign.L7" || got[0].Label != "q" {
		t.Fatalf("expected one edge always.L3 -> assign.L7, got %s", edgeList(f))
	}
	if q := f.Signal("q"); len(q.Drivers) != 1 || len(q.Loads) != 1 {
		t.Fatalf("references of one node not merged: %+v", q)
	}
}

func TestMergeEndpoints(t *testing.T) {
	ep := func(node string, sl Slice) Endpoint { return Endpoint{Node: node, Slice: sl, Width: sl.Width()} }
	cases := []struct {
		name string
		in   []Endpoint
		want []Slice
	}{
		{"overlap", []Endpoint{ep("a", BitRange(7, 0)), ep("a", BitRange(0, 0))}, []Slice{BitRange(7, 0)}},
		{"adjacent", []Endpoint{ep("a", BitRange(3, 0)), ep("a", BitRange(7, 4))}, []Slice{BitRange(7, 0)}},
		{"chain", []Endpoint{ep("a", BitRange(0, 0)), ep("a", BitRange(2, 2)), ep("a", BitRange(1, 1))}, []Slice{BitRange(2, 0)}},
		{"disjoint", []Endpoint{ep("a", BitRange(0, 0)), ep("a", BitRange(7, 7))}, []Slice{BitRange(0, 0), BitRange(7, 7)}},
		{"other node", []Endpoint{ep("a", BitRange(0, 0)), ep("b", BitRange(0, 0))}, []Slice{BitRange(0, 0), BitRange(0, 0)}},
		{"unknown wins", []Endpoint{ep("a", BitRange(1, 0)), ep("a", Slice{})}, []Slice{{}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var got []Slice
			for _, e := range mergeEndpoints(tc.in) {
				got = append(got, e.Slice)
			}
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Fatalf("merged slices mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestElaborateInstanceFeedback(t *testing.T) {
	d := design(t, Options{SelfLoops: true}, lines(
		"module inv(input a, output y);",
		"  assign y = ~a;",
		"endmodule",
		"module top(output o);",
		"  wire w;",
		"  inv u(.a(w), .y(w));",
		"  assign o = w;",
		"endmodule",
	))
	flat, err := d.Elaborate("top", 0)
	if err != nil {
		t.Fatalf("elaborate: %v", err)
	}
	mustEdge(t, flat, "inst.u", "inst.u")

	f, err := d.Elaborate("top", 1)
	if err != nil {
		t.Fatalf("elaborate: %v", err)
	}
	mustEdge(t, f, "u/port.y", "u/port.a")
	for _, e := range f.Edges {
		if f.Node(e.From) == nil || f.Node(e.To) == nil {
			t.Fatalf("edge %s -> %s references a removed node", e.From, e.To)
		}
	}
}

func TestConstantConnections(t *testing.T) {
	src := lines(
		"module leaf(input [3:0] a, output [3:0] y);",
		"  assign y = a;",
		"endmodule",
		"module top #(parameter W = 4) (output [3:0] y);",
		"  leaf u0(.a(W - 1), .y(y));",
		"endmodule",
	)
	f := flowOf(t, Options{ShowConstants: true}, "top", src)
	var found bool
	for _, e := range f.EdgesTo("inst.u0") {
		if strings.HasPrefix(e.From, "const.") && e.ToPin == "a" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a constant source on u0.a, got %s", edgeList(f))
	}

	params := map[string]bool{"W": true}
	w := &ast.Identifier{Name: "W"}
	x := &ast.Identifier{Name: "x"}
	one := &ast.Number{Text: "1", Value: 1, Known: true}
	if !IsConstant(&ast.Binary{Op: "-", X: w, Y: one}, params) {
		t.Fatalf("W - 1 should be constant")
	}
	if IsConstant(&ast.Binary{Op: "+", X: w, Y: x}, params) {
		t.Fatalf("W + x references a signal")
	}
}
