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

// Empty reports whether the delta has no rows at all
func (d Delta) Empty() bool {
	return d.Added.rowCount() == 0 && d.Removed.rowCount() == 0
}

func (t Tables) rowCount() int {
	return len(t.Modules) + len(t.Ports) + len(t.Signals) + len(t.Instances) +
		len(t.Blocks) + len(t.Paths) + len(t.Writes) + len(t.Dependencies) +
		len(t.Assertions) + len(t.Cone)
}

func diffTables(from, to Tables) Tables {
	out := EmptyTables()

	out.Modules = diffRows(from.Modules, to.Modules, func(r ModuleRow) string {
		return r.Name + "|" + intKey(r.Line) + "|" + boolKey(r.IsTop) + "|" + intKey(r.Instances) + "|" + intKey(r.Blocks)
	})
	out.Ports = diffRows(from.Ports, to.Ports, func(r PortRow) string {
		return r.Module + "|" + r.Name + "|" + r.Direction + "|" + intKey(r.Width)
	})
	out.Signals = diffRows(from.Signals, to.Signals, func(r SignalRow) string {
		return r.Module + "|" + r.Name + "|" + r.Kind + "|" + intKey(r.Width)
	})
	out.Instances = diffRows(from.Instances, to.Instances, func(r InstanceRow) string {
		return r.Slot + "|" + r.Module + "|" + r.Parent + "|" + r.Name + "|" + intKey(r.NumPaths) + "|" + intKey(r.PathCodes)
	})
	out.Blocks = diffRows(from.Blocks, to.Blocks, func(r BlockRow) string {
		return r.Module + "|" + intKey(r.Index) + "|" + r.Kind + "|" + r.Name + "|" + intKey(r.Line) + "|" +
			intKey(r.NumPaths) + "|" + intKey(r.Enumerated) + "|" + boolKey(r.Truncated) + "|" + r.Dropped
	})
	out.Paths = diffRows(from.Paths, to.Paths, func(r PathRow) string {
		return r.Module + "|" + intKey(r.Block) + "|" + intKey(r.Index) + "|" + r.Directions
	})
	out.Writes = diffRows(from.Writes, to.Writes, func(r WriteRow) string {
		return r.Module + "|" + intKey(r.Block) + "|" + r.Signal
	})
	out.Dependencies = diffRows(from.Dependencies, to.Dependencies, func(r DependencyRow) string {
		return r.Module + "|" + r.Target + "|" + r.Source
	})
	out.Assertions = diffRows(from.Assertions, to.Assertions, func(r AssertionRow) string {
		return r.Module + "|" + intKey(r.Block) + "|" + r.Kind + "|" + intKey(r.Line) + "|" + r.Expr + "|" + r.Message
	})
	out.Cone = diffRows(from.Cone, to.Cone, func(r ConeRow) string {
		return intKey(r.Assertion) + "|" + r.Module + "|" + intKey(r.Block) + "|" + boolKey(r.Direct)
	})

	return out
}

func diffRows[T any](from, to []T, key func(T) string) []T {
	fromSet := make(map[string]T, len(from))
	for _, row := range from {
		fromSet[key(row)] = row
	}
	var diff []T
	for _, row := range to {
		rowKey := key(row)
		if _, ok := fromSet[rowKey]; !ok {
			diff = append(diff, row)
		}
	}
	if diff == nil {
		diff = []T{}
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
