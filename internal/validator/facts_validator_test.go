package validator

import (
	"testing"

	"github.com/robert-at-pretension-io/vlog-schematic/internal/facts"
	"github.com/robert-at-pretension-io/vlog-schematic/internal/netlist"
	"github.com/robert-at-pretension-io/vlog-schematic/internal/parser"
)

func TestFactsValidatorAcceptsValidTables(t *testing.T) {
	v, err := NewFactsValidator()
	if err != nil {
		t.Fatalf("new facts validator: %v", err)
	}

	tables := facts.Tables{
		Files: []facts.FileRow{{Path: "test/a.v"}},
		Modules: []facts.ModuleRow{{
			Name:  "top",
			File:  "test/a.v",
			Line:  1,
			IsTop: true,
		}},
		Ports: []facts.PortRow{{
			Module:    "top",
			Name:      "clk",
			Direction: "input",
			Width:     1,
			File:      "test/a.v",
			Line:      1,
		}},
		Signals:     []facts.SignalRow{},
		Instances:   []facts.InstanceRow{},
		Pins:        []facts.PinRow{},
		Blocks:      []facts.BlockRow{},
		Drivers:     []facts.EndpointRow{},
		Loads:       []facts.EndpointRow{},
		Edges:       []facts.EdgeRow{},
		Diagnostics: []facts.DiagnosticRow{},
	}

	if err := v.Validate(tables); err != nil {
		t.Fatalf("expected valid tables, got error: %v", err)
	}
}

func TestFactsValidatorRejectsInvalidTables(t *testing.T) {
	v, err := NewFactsValidator()
	if err != nil {
		t.Fatalf("new facts validator: %v", err)
	}

	tables := facts.Tables{
		Files: []facts.FileRow{{Path: "test/a.v"}},
		Ports: []facts.PortRow{{
			Module:    "top",
			Name:      "clk",
			Direction: "input",
			File:      "test/a.v",
			Line:      0,
		}},
	}

	if err := v.Validate(tables); err == nil {
		t.Fatalf("expected validation error, got nil")
	}
}

func TestFactsValidatorAcceptsBuiltTables(t *testing.T) {
	v, err := NewFactsValidator()
	if err != nil {
		t.Fatalf("new facts validator: %v", err)
	}
	parsed, err := parser.ParseString("test/b.v", `module leaf(input [3:0] a, input en, output y);
  assign y = &a & en;
endmodule
module top(input [7:0] d, output y, output z);
  wire n;
  leaf u0(.a(d), .y(y));
  blackbox u1(.i(n), .o(z));
  assign m = d[0];
  always @(posedge d[1]) begin
    if (m) z <= 1'b1;
  end
endmodule
`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	d := netlist.NewDesign(parsed, netlist.Options{ShowConstants: true, ShowUnused: true})
	tables := facts.BuildTables(d.Flows(), map[string]bool{"top": true}, map[string]bool{"leaf": true, "top": true})
	if err := v.Validate(tables); err != nil {
		t.Fatalf("built tables rejected: %v", err)
	}
}
