package facts

import "strconv"

// Delta captures added and removed fact rows between two snapshots.
type Delta struct {
	Added   Tables `json:"added"`
	Removed Tables `json:"removed"`
}

// ComputeDelta computes row-level additions and removals between two snapshots.
func ComputeDelta(prev, next Tables) Delta {
	return Delta{
		Added:   diffTables(prev, next),
		Removed: diffTables(next, prev),
	}
}

func diffTables(from, to Tables) Tables {
	out := emptyTables()

	out.Files = diffRows(from.Files, to.Files, func(r FileRow) string {
		return r.Path
	})
	out.Modules = diffRows(from.Modules, to.Modules, func(r ModuleRow) string {
		return r.Name + "|" + r.File + "|" + intKey(r.Line) + "|" + boolKey(r.IsTop)
	})
	out.Ports = diffRows(from.Ports, to.Ports, func(r PortRow) string {
		return r.Module + "|" + r.Name + "|" + r.Direction + "|" + intKey(r.Width) + "|" + r.File + "|" + intKey(r.Line)
	})
	out.Signals = diffRows(from.Signals, to.Signals, func(r SignalRow) string {
		return r.Module + "|" + r.Name + "|" + r.Kind + "|" + r.NetType + "|" + intKey(r.Width) + "|" +
			intKey(r.Drivers) + "|" + intKey(r.Loads) + "|" + boolKey(r.Implicit) + "|" + r.File + "|" + intKey(r.Line)
	})
	out.Instances = diffRows(from.Instances, to.Instances, func(r InstanceRow) string {
		return r.Module + "|" + r.Name + "|" + r.Target + "|" + boolKey(r.Defined) + "|" + r.File + "|" + intKey(r.Line)
	})
	out.Pins = diffRows(from.Pins, to.Pins, func(r PinRow) string {
		return r.Module + "|" + r.Instance + "|" + r.Pin + "|" + r.Direction + "|" + intKey(r.Width) + "|" +
			r.Expr + "|" + boolKey(r.Inferred) + "|" + r.File + "|" + intKey(r.Line)
	})
	out.Blocks = diffRows(from.Blocks, to.Blocks, func(r BlockRow) string {
		return r.Module + "|" + r.ID + "|" + r.Kind + "|" + r.Label + "|" + r.File + "|" + intKey(r.Line) + "|" + intKey(r.EndLine)
	})
	out.Drivers = diffRows(from.Drivers, to.Drivers, endpointKey)
	out.Loads = diffRows(from.Loads, to.Loads, endpointKey)
	out.Edges = diffRows(from.Edges, to.Edges, func(r EdgeRow) string {
		return r.Module + "|" + r.From + "|" + r.FromPin + "|" + r.To + "|" + r.ToPin + "|" + r.Signal + "|" +
			r.Label + "|" + intKey(r.Width) + "|" + boolKey(r.Conflict) + "|" + boolKey(r.Mismatch) + "|" +
			r.Note + "|" + boolKey(r.Inferred) + "|" + r.File + "|" + intKey(r.Line)
	})
	out.Diagnostics = diffRows(from.Diagnostics, to.Diagnostics, func(r DiagnosticRow) string {
		return r.Rule + "|" + r.Severity + "|" + r.Module + "|" + r.Signal + "|" + r.File + "|" + intKey(r.Line) + "|" + r.Message
	})

	return out
}

func endpointKey(r EndpointRow) string {
	return r.Module + "|" + r.Signal + "|" + r.Node + "|" + r.Pin + "|" + r.Slice + "|" +
		boolKey(r.Inferred) + "|" + boolKey(r.Conflict) + "|" + r.File + "|" + intKey(r.Line)
}

func emptyTables() Tables {
	return Tables{
		Files:       []FileRow{},
		Modules:     []ModuleRow{},
		Ports:       []PortRow{},
		Signals:     []SignalRow{},
		Instances:   []InstanceRow{},
		Pins:        []PinRow{},
		Blocks:      []BlockRow{},
		Drivers:     []EndpointRow{},
		Loads:       []EndpointRow{},
		Edges:       []EdgeRow{},
		Diagnostics: []DiagnosticRow{},
	}
}

func diffRows[T any](from, to []T, key func(T) string) []T {
	fromSet := make(map[string]struct{}, len(from))
	for _, row := range from {
		fromSet[key(row)] = struct{}{}
	}
	diff := []T{}
	for _, row := range to {
		if _, ok := fromSet[key(row)]; !ok {
			diff = append(diff, row)
		}
	}
	return diff
}

func boolKey(v bool) string {
	if v {
		return "1"
	}
	return "0"
}

func intKey(v int) string {
	return strconv.Itoa(v)
}
