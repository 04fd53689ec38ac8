package parser

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/robert-at-pretension-io/vlog-schematic/internal/ast"
)

func mustParse(t *testing.T, src string) *ast.Source {
	t.Helper()
	s, err := ParseString("test.v", src)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return s
}

func itemsOf[T ast.Node](m *ast.ModuleDef) []T {
	var out []T
	for _, it := range m.Items {
		if v, ok := it.(T); ok {
			out = append(out, v)
		}
	}
	return out
}

func portNames(m *ast.ModuleDef) []string {
	var out []string
	for _, p := range m.Ports {
		out = append(out, p.Name)
	}
	return out
}

func TestParseANSIHeader(t *testing.T) {
	src := mustParse(t, `
module counter #(parameter WIDTH = 8, parameter INIT = 0) (
  input  wire             clk,
  input                   rst_n, en,
  output reg [WIDTH-1:0]  q
);
  always @(posedge clk or negedge rst_n)
    if (!rst_n) q <= INIT;
    else if (en) q <= q + 1'b1;
endmodule
`)
	if len(src.Modules) != 1 {
		t.Fatalf("expected 1 module, got %d", len(src.Modules))
	}
	m := src.Modules[0]
	if m.Name != "counter" {
		t.Fatalf("unexpected module name %q", m.Name)
	}
	if diff := cmp.Diff([]string{"clk", "rst_n", "en", "q"}, portNames(m)); diff != "" {
		t.Fatalf("ports mismatch (-want +got):\n%s", diff)
	}
	if len(m.Params) != 2 || m.Params[0].Name != "WIDTH" || m.Params[1].Name != "INIT" {
		t.Fatalf("unexpected params %+v", m.Params)
	}

	decls := itemsOf[*ast.Decl](m)
	if len(decls) != 4 {
		t.Fatalf("expected 4 port decls, got %d", len(decls))
	}
	if decls[1].Keyword != ast.DeclInput || decls[2].Keyword != ast.DeclInput {
		t.Fatalf("direction should carry over: %+v %+v", decls[1], decls[2])
	}
	q := decls[3]
	if q.Keyword != ast.DeclOutput || q.NetType != "reg" || q.Range == nil {
		t.Fatalf("unexpected q decl %+v", q)
	}
	if got := ast.ExprString(q.Range.MSB); got != "WIDTH - 1" {
		t.Fatalf("unexpected msb %q", got)
	}

	always := itemsOf[*ast.Always](m)
	if len(always) != 1 {
		t.Fatalf("expected 1 always block, got %d", len(always))
	}
	a := always[0]
	if got := ast.SensString(a.Sens, a.Star); got != "posedge clk or negedge rst_n" {
		t.Fatalf("unexpected sensitivity %q", got)
	}
	ifs, ok := a.Body.(*ast.If)
	if !ok {
		t.Fatalf("expected if body, got %T", a.Body)
	}
	if _, ok := ifs.Else.(*ast.If); !ok {
		t.Fatalf("expected else-if chain, got %T", ifs.Else)
	}
}

func TestParseNonANSIHeader(t *testing.T) {
	src := mustParse(t, `
module mux2(a, b, sel, y);
  input [3:0] a, b;
  input sel;
  output [3:0] y;
  wire [3:0] y;
  assign y = sel ? b : a;
endmodule
`)
	m := src.Modules[0]
	if diff := cmp.Diff([]string{"a", "b", "sel", "y"}, portNames(m)); diff != "" {
		t.Fatalf("ports mismatch (-want +got):\n%s", diff)
	}
	decls := itemsOf[*ast.Decl](m)
	if len(decls) != 5 {
		t.Fatalf("expected 5 decls, got %d", len(decls))
	}
	if decls[4].Keyword != ast.DeclWire || decls[4].Name != "y" {
		t.Fatalf("unexpected wire decl %+v", decls[4])
	}
	assigns := itemsOf[*ast.Assign](m)
	if len(assigns) != 1 {
		t.Fatalf("expected 1 assign, got %d", len(assigns))
	}
	if got := ast.ExprString(assigns[0].RHS); got != "sel ? b : a" {
		t.Fatalf("unexpected rhs %q", got)
	}
	if assigns[0].Pos().Line != 7 {
		t.Fatalf("expected assign on line 7, got %d", assigns[0].Pos().Line)
	}
}

func TestParseNetInitializerIsImplicitAssign(t *testing.T) {
	src := mustParse(t, `
module m(input a, input b, output y);
  wire t = a & b;
  reg r = 1'b0;
  assign y = t, unused = r;
endmodule
`)
	m := src.Modules[0]
	assigns := itemsOf[*ast.Assign](m)
	if len(assigns) != 3 {
		t.Fatalf("expected 3 assigns, got %d", len(assigns))
	}
	if !assigns[0].Implicit || ast.ExprString(assigns[0].LHS) != "t" {
		t.Fatalf("expected implicit assign to t, got %+v", assigns[0])
	}
	if assigns[1].Implicit || assigns[2].Implicit {
		t.Fatalf("explicit assigns marked implicit")
	}
	for _, d := range itemsOf[*ast.Decl](m) {
		if d.Name == "r" && d.Init == nil {
			t.Fatalf("reg initializer should stay on the declaration")
		}
		if d.Name == "t" && d.Init != nil {
			t.Fatalf("net initializer should move to an assign")
		}
	}
}

func TestParseInstances(t *testing.T) {
	src := mustParse(t, `
module top(input clk, input [7:0] din, output [7:0] dout);
  wire [7:0] mid;
  stage #(.DEPTH(4), .MODE("fast")) s0 (.clk(clk), .d(din), .q(mid), .dbg());
  stage #(2) s1 (clk, mid, dout), s2 (clk, , );
  and g1 (y, a, b);
  or (z, a, b);
endmodule
`)
	m := src.Modules[0]
	lists := itemsOf[*ast.InstanceList](m)
	if len(lists) != 4 {
		t.Fatalf("expected 4 instance lists, got %d", len(lists))
	}

	s0 := lists[0].Instances[0]
	if s0.Name != "s0" || s0.Module != "stage" {
		t.Fatalf("unexpected instance %+v", s0)
	}
	if len(s0.Params) != 2 || s0.Params[0].Name != "DEPTH" || ast.ExprString(s0.Params[0].Value) != "4" {
		t.Fatalf("unexpected params %+v", s0.Params)
	}
	var ports []string
	for _, p := range s0.Ports {
		ports = append(ports, p.Port+"="+ast.ExprString(p.Expr))
	}
	if diff := cmp.Diff([]string{"clk=clk", "d=din", "q=mid", "dbg="}, ports); diff != "" {
		t.Fatalf("named ports mismatch (-want +got):\n%s", diff)
	}
	if s0.Ports[3].Expr != nil {
		t.Fatalf("empty connection should have nil expression")
	}

	if got := len(lists[1].Instances); got != 2 {
		t.Fatalf("expected 2 instances in one statement, got %d", got)
	}
	s1, s2 := lists[1].Instances[0], lists[1].Instances[1]
	if len(s1.Ports) != 3 || s1.Ports[1].Port != "" || s1.Ports[1].Index != 1 {
		t.Fatalf("unexpected positional ports %+v", s1.Ports)
	}
	if len(s2.Ports) != 3 || s2.Ports[1].Expr != nil || s2.Ports[2].Expr != nil {
		t.Fatalf("expected blank positional connections, got %+v", s2.Ports)
	}
	if len(s1.Params) != 1 || s1.Params[0].Name != "" {
		t.Fatalf("expected one positional override, got %+v", s1.Params)
	}

	if lists[2].Module != "and" || lists[2].Instances[0].Name != "g1" {
		t.Fatalf("unexpected gate %+v", lists[2].Instances[0])
	}
	if lists[3].Instances[0].Name != "" || len(lists[3].Instances[0].Ports) != 3 {
		t.Fatalf("unexpected anonymous gate %+v", lists[3].Instances[0])
	}
}

func TestParseProceduralStatements(t *testing.T) {
	src := mustParse(t, `
module fsm(input clk, input [1:0] op, output reg [3:0] out);
  reg [1:0] state;
  integer i;
  always @* begin : decode
    out = 4'h0;
    case (state)
      2'b00, 2'b01: out = {2'b00, op};
      2'b10: begin out[3] = 1'b1; out[2:0] = {3{op[0]}}; end
      default: ;
    endcase
    for (i = 0; i < 4; i = i + 1)
      out[i] = out[i] ^ op[1];
  end
  always_ff @(posedge clk) state <= state + 2'd1;
  initial begin
    state = 0;
    $display("start");
  end
endmodule
`)
	m := src.Modules[0]
	always := itemsOf[*ast.Always](m)
	if len(always) != 2 {
		t.Fatalf("expected 2 always blocks, got %d", len(always))
	}
	comb := always[0]
	if !comb.Star {
		t.Fatalf("expected @* sensitivity")
	}
	blk, ok := comb.Body.(*ast.Block)
	if !ok || blk.Name != "decode" || len(blk.Stmts) != 3 {
		t.Fatalf("unexpected block %+v", comb.Body)
	}
	cs, ok := blk.Stmts[1].(*ast.Case)
	if !ok || len(cs.Items) != 3 {
		t.Fatalf("unexpected case %+v", blk.Stmts[1])
	}
	if len(cs.Items[0].Exprs) != 2 || len(cs.Items[2].Exprs) != 0 || cs.Items[2].Body != nil {
		t.Fatalf("unexpected case items %+v", cs.Items)
	}
	inner := cs.Items[1].Body.(*ast.Block)
	rep := inner.Stmts[1].(*ast.ProcAssign).RHS
	if got := ast.ExprString(rep); got != "{3{op[0]}}" {
		t.Fatalf("unexpected replication %q", got)
	}
	loop, ok := blk.Stmts[2].(*ast.For)
	if !ok || loop.Init == nil || loop.Step == nil {
		t.Fatalf("unexpected for loop %+v", blk.Stmts[2])
	}

	ff := always[1]
	if ff.Keyword != "always_ff" || ff.Kind() != "AlwaysFF" {
		t.Fatalf("unexpected always_ff %+v", ff)
	}
	if pa, ok := ff.Body.(*ast.ProcAssign); !ok || !pa.Nonblocking {
		t.Fatalf("expected nonblocking body, got %T", ff.Body)
	}

	initial := itemsOf[*ast.Initial](m)
	if len(initial) != 1 || len(initial[0].Body.(*ast.Block).Stmts) != 1 {
		t.Fatalf("system task should be dropped from initial body")
	}
}

func TestParseExpressionPrecedence(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"a + b * c", "a + (b * c)"},
		{"a | b & c", "a | (b & c)"},
		{"a == b && c != d", "(a == b) && (c != d)"},
		{"a << 2 + 1", "a << (2 + 1)"},
		{"a ? b : c ? d : e", "a ? b : (c ? d : e)"},
		{"~&bus[3:0]", "~&bus[3:0]"},
		{"x[i +: 4]", "x[i+:4]"},
		{"{a, b[1], 2'b01}", "{a, b[1], 2'b01}"},
		{"$clog2(DEPTH) - 1", "$clog2(DEPTH) - 1"},
	}
	for _, tc := range cases {
		src := mustParse(t, "module m; assign y = "+tc.in+"; endmodule")
		a := itemsOf[*ast.Assign](src.Modules[0])[0]
		if got := ast.ExprString(a.RHS); got != tc.want {
			t.Errorf("%s: got %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestParseNumber(t *testing.T) {
	cases := []struct {
		text  string
		width int
		value uint64
		known bool
	}{
		{"42", 0, 42, true},
		{"8'hFF", 8, 255, true},
		{"4'b10_01", 4, 9, true},
		{"'d7", 0, 7, true},
		{"16'sd5", 16, 5, true},
		{"4'b1x01", 4, 0, false},
		{"3'd9", 3, 1, true},
		{"1.5", 0, 1, false},
	}
	for _, tc := range cases {
		w, v, k := ParseNumber(tc.text)
		if w != tc.width || v != tc.value || k != tc.known {
			t.Errorf("%s: got (%d, %d, %v), want (%d, %d, %v)", tc.text, w, v, k, tc.width, tc.value, tc.known)
		}
	}
}

func TestParseSkipsUnmodelledRegions(t *testing.T) {
	src := mustParse(t, "`timescale 1ns/1ps\n"+`
(* keep = "true" *)
module m(input a, output y);
  function automatic f;
    input x;
    f = ~x;
  endfunction
  genvar g;
  generate
    for (g = 0; g < 2; g = g + 1) begin : gen
      assign y = a;
    end
  endgenerate
  for (g = 0; g < 2; g = g + 1) begin
    buf b (y, a);
  end
  specify
    (a => y) = 1;
  endspecify
  assign y = a;
endmodule
`)
	m := src.Modules[0]
	var what []string
	for _, s := range itemsOf[*ast.Skipped](m) {
		what = append(what, s.What)
	}
	if diff := cmp.Diff([]string{"function", "generate", "generate", "specify"}, what); diff != "" {
		t.Fatalf("skipped regions mismatch (-want +got):\n%s", diff)
	}
	if n := len(itemsOf[*ast.Assign](m)); n != 1 {
		t.Fatalf("expected only the top-level assign, got %d", n)
	}
}

func TestParseErrorHasPosition(t *testing.T) {
	_, err := ParseString("bad.v", "module m(input a);\n  assign = a;\nendmodule\n")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.HasPrefix(err.Error(), "bad.v:2:10:") {
		t.Fatalf("expected position in error, got %v", err)
	}

	_, err = ParseString("open.v", "module m;\n  wire a;\n")
	if err == nil || !strings.Contains(err.Error(), "missing endmodule") {
		t.Fatalf("expected missing endmodule error, got %v", err)
	}
}

func TestParseFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.v")
	if err := os.WriteFile(path, []byte("module a; endmodule\nmodule b; a u(); endmodule\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	src, err := Builtin{}.Parse(context.Background(), path)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(src.Modules) != 2 || src.Modules[1].Name != "b" {
		t.Fatalf("unexpected modules %+v", src.Modules)
	}
	if src.Modules[0].Pos().File != path {
		t.Fatalf("expected file in position, got %q", src.Modules[0].Pos().File)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Parse(ctx, path); err == nil {
		t.Fatalf("expected cancelled context error")
	}
}
