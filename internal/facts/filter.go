package facts

// FilterTablesByModules returns a new Tables object containing only rows that
// belong to one of the given module definitions.
func FilterTablesByModules(tables Tables, modules map[string]bool) Tables {
	if len(modules) == 0 {
		return EmptyTables()
	}
	out := EmptyTables()

	for _, row := range tables.Modules {
		if modules[row.Name] {
			out.Modules = append(out.Modules, row)
		}
	}
	for _, row := range tables.Ports {
		if modules[row.Module] {
			out.Ports = append(out.Ports, row)
		}
	}
	for _, row := range tables.Signals {
		if modules[row.Module] {
			out.Signals = append(out.Signals, row)
		}
	}
	for _, row := range tables.Instances {
		if modules[row.Module] {
			out.Instances = append(out.Instances, row)
		}
	}
	for _, row := range tables.Blocks {
		if modules[row.Module] {
			out.Blocks = append(out.Blocks, row)
		}
	}
	for _, row := range tables.Paths {
		if modules[row.Module] {
			out.Paths = append(out.Paths, row)
		}
	}
	for _, row := range tables.Writes {
		if modules[row.Module] {
			out.Writes = append(out.Writes, row)
		}
	}
	for _, row := range tables.Dependencies {
		if modules[row.Module] {
			out.Dependencies = append(out.Dependencies, row)
		}
	}
	for _, row := range tables.Assertions {
		if modules[row.Module] {
			out.Assertions = append(out.Assertions, row)
		}
	}
	for _, row := range tables.Cone {
		if modules[row.Module] {
			out.Cone = append(out.Cone, row)
		}
	}

	return out
}

// FilterDeltaByModules returns a new Delta containing only rows for the specified modules.
func FilterDeltaByModules(delta Delta, modules map[string]bool) Delta {
	if len(modules) == 0 {
		return Delta{
			Added:   EmptyTables(),
			Removed: EmptyTables(),
		}
	}
	return Delta{
		Added:   FilterTablesByModules(delta.Added, modules),
		Removed: FilterTablesByModules(delta.Removed, modules),
	}
}
