package facts

// FilterTablesByFiles returns a new Tables object containing only rows whose file
// or path is present in the provided file set.
func FilterTablesByFiles(tables Tables, files map[string]bool) Tables {
	out := emptyTables()
	if len(files) == 0 {
		return out
	}

	out.Files = filterRows(tables.Files, files, func(r FileRow) string { return r.Path })
	out.Modules = filterRows(tables.Modules, files, func(r ModuleRow) string { return r.File })
	out.Ports = filterRows(tables.Ports, files, func(r PortRow) string { return r.File })
	out.Signals = filterRows(tables.Signals, files, func(r SignalRow) string { return r.File })
	out.Instances = filterRows(tables.Instances, files, func(r InstanceRow) string { return r.File })
	out.Pins = filterRows(tables.Pins, files, func(r PinRow) string { return r.File })
	out.Blocks = filterRows(tables.Blocks, files, func(r BlockRow) string { return r.File })
	out.Drivers = filterRows(tables.Drivers, files, func(r EndpointRow) string { return r.File })
	out.Loads = filterRows(tables.Loads, files, func(r EndpointRow) string { return r.File })
	out.Edges = filterRows(tables.Edges, files, func(r EdgeRow) string { return r.File })
	out.Diagnostics = filterRows(tables.Diagnostics, files, func(r DiagnosticRow) string { return r.File })

	return out
}

// FilterTablesByModule keeps only the rows of one module.
func FilterTablesByModule(tables Tables, module string) Tables {
	out := emptyTables()
	keep := map[string]bool{module: true}

	out.Modules = filterRows(tables.Modules, keep, func(r ModuleRow) string { return r.Name })
	out.Ports = filterRows(tables.Ports, keep, func(r PortRow) string { return r.Module })
	out.Signals = filterRows(tables.Signals, keep, func(r SignalRow) string { return r.Module })
	out.Instances = filterRows(tables.Instances, keep, func(r InstanceRow) string { return r.Module })
	out.Pins = filterRows(tables.Pins, keep, func(r PinRow) string { return r.Module })
	out.Blocks = filterRows(tables.Blocks, keep, func(r BlockRow) string { return r.Module })
	out.Drivers = filterRows(tables.Drivers, keep, func(r EndpointRow) string { return r.Module })
	out.Loads = filterRows(tables.Loads, keep, func(r EndpointRow) string { return r.Module })
	out.Edges = filterRows(tables.Edges, keep, func(r EdgeRow) string { return r.Module })
	out.Diagnostics = filterRows(tables.Diagnostics, keep, func(r DiagnosticRow) string { return r.Module })

	files := make(map[string]bool)
	for _, m := range out.Modules {
		files[m.File] = true
	}
	out.Files = filterRows(tables.Files, files, func(r FileRow) string { return r.Path })
	return out
}

// FilterDeltaByFiles returns a new Delta containing only rows for the specified files.
func FilterDeltaByFiles(delta Delta, files map[string]bool) Delta {
	return Delta{
		Added:   FilterTablesByFiles(delta.Added, files),
		Removed: FilterTablesByFiles(delta.Removed, files),
	}
}

func filterRows[T any](rows []T, keep map[string]bool, key func(T) string) []T {
	out := []T{}
	for _, row := range rows {
		if keep[key(row)] {
			out = append(out, row)
		}
	}
	return out
}
