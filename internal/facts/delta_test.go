package facts

import "testing"

func TestComputeDeltaAddsAndRemoves(t *testing.T) {
	prev := Tables{
		Modules: []ModuleRow{
			{Name: "a", File: "f.v", Line: 1},
		},
		Edges: []EdgeRow{
			{Module: "a", From: "port.x", To: "assign.L2", Signal: "x"},
		},
	}
	next := Tables{
		Modules: []ModuleRow{
			{Name: "b", File: "f.v", Line: 3},
		},
		Edges: []EdgeRow{
			{Module: "b", From: "port.x", To: "assign.L4", Signal: "x"},
		},
	}

	delta := ComputeDelta(prev, next)

	if len(delta.Added.Modules) != 1 || delta.Added.Modules[0].Name != "b" {
		t.Fatalf("expected module b added, got %+v", delta.Added.Modules)
	}
	if len(delta.Removed.Modules) != 1 || delta.Removed.Modules[0].Name != "a" {
		t.Fatalf("expected module a removed, got %+v", delta.Removed.Modules)
	}
	if len(delta.Added.Edges) != 1 || delta.Added.Edges[0].To != "assign.L4" {
		t.Fatalf("expected edge added, got %+v", delta.Added.Edges)
	}
	if len(delta.Removed.Edges) != 1 || delta.Removed.Edges[0].To != "assign.L2" {
		t.Fatalf("expected edge removed, got %+v", delta.Removed.Edges)
	}
	if delta.Added.Signals == nil || len(delta.Added.Signals) != 0 {
		t.Fatalf("unchanged relations should be empty, not nil")
	}
}
