package manager

import (
	"fmt"
	"sort"
	"strings"

	"github.com/robert-at-pretension-io/hdl-symex/internal/hdl"
)

// instantiationGraph maps a module name to the set of module names it instantiates
type instantiationGraph map[string]map[string]bool

func buildInstantiationGraph(d *hdl.Design) instantiationGraph {
	graph := make(instantiationGraph)
	for _, m := range d.Modules {
		for _, inst := range moduleInstances(m) {
			if graph[m.Name] == nil {
				graph[m.Name] = make(map[string]bool)
			}
			graph[m.Name][inst.Module] = true
		}
	}
	return graph
}

// moduleInstances returns the module-level instances followed by any found
// inside procedural statement trees
func moduleInstances(m *hdl.Module) []*hdl.Instance {
	out := append([]*hdl.Instance(nil), m.Instances...)
	c := &instanceCollector{}
	c.Self = c
	for _, b := range m.Blocks {
		_ = hdl.Dispatch(c, b.Body)
	}
	return append(out, c.found...)
}

type instanceCollector struct {
	hdl.Walker
	found []*hdl.Instance
}

func (c *instanceCollector) VisitInstance(s *hdl.Stmt) error {
	if s.Instance != nil {
		c.found = append(c.found, s.Instance)
	}
	return nil
}

type hierarchyReport struct {
	Root   string
	Levels [][]string
}

// hierarchyLevels walks the instantiation graph breadth-first from root
func hierarchyLevels(root string, graph instantiationGraph) hierarchyReport {
	visited := map[string]bool{root: true}
	frontier := []string{root}
	var levels [][]string

	for len(frontier) > 0 {
		var next []string
		for _, m := range frontier {
			for child := range graph[m] {
				if visited[child] {
					continue
				}
				visited[child] = true
				next = append(next, child)
			}
		}
		if len(next) == 0 {
			break
		}
		sort.Strings(next)
		levels = append(levels, next)
		frontier = next
	}

	return hierarchyReport{Root: root, Levels: levels}
}

func formatHierarchyReport(report hierarchyReport) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("  %s\n", report.Root))
	for i, level := range report.Levels {
		b.WriteString(fmt.Sprintf("    level %d (%d): %s\n", i+1, len(level), strings.Join(level, ", ")))
	}
	return b.String()
}

// countInstances counts textual instantiations per module name
func countInstances(d *hdl.Design) (map[string]int, error) {
	counts := make(map[string]int, len(d.Modules))
	for _, m := range d.Modules {
		counts[m.Name] += 0
	}
	for _, m := range d.Modules {
		for _, inst := range moduleInstances(m) {
			if d.Module(inst.Module) == nil {
				return nil, fmt.Errorf("module %s instantiates unknown module %s", m.Name, inst.Module)
			}
			counts[inst.Module]++
		}
	}
	return counts, nil
}

// assignSlots expands the design into per-instance store slots. Roots keep
// their module name; instantiated modules become name_0, name_1, ... in
// breadth-first order. Each textual instantiation gets exactly one slot, whose
// parent is the first slot of the instantiating module.
func (m *Manager) assignSlots(d *hdl.Design) error {
	counts, err := countInstances(d)
	if err != nil {
		return err
	}
	m.InstanceCount = counts

	var roots []string
	if m.Top != "" {
		roots = append(roots, m.Top)
	}
	for _, mod := range d.Modules {
		if counts[mod.Name] == 0 && mod.Name != m.Top {
			roots = append(roots, mod.Name)
		}
	}
	if len(roots) == 0 {
		return fmt.Errorf("design has no root module")
	}

	graph := buildInstantiationGraph(d)
	next := make(map[string]int)
	firstSlot := make(map[string]string)
	for _, root := range roots {
		m.addSlot(root, root, "", nil)
		firstSlot[root] = root
	}
	for _, root := range roots {
		report := hierarchyLevels(root, graph)
		m.Hierarchy = append(m.Hierarchy, formatHierarchyReport(report))
		order := append([]string{root}, flatten(report.Levels)...)
		for _, modName := range order {
			parent := firstSlot[modName]
			if parent == "" || m.expanded[modName] {
				continue
			}
			m.expanded[modName] = true
			for _, inst := range moduleInstances(d.Module(modName)) {
				id := fmt.Sprintf("%s_%d", inst.Module, next[inst.Module])
				next[inst.Module]++
				m.addSlot(id, inst.Module, parent, inst)
				if firstSlot[inst.Module] == "" {
					firstSlot[inst.Module] = id
				}
			}
		}
	}
	return nil
}

func (m *Manager) addSlot(id, module, parent string, decl *hdl.Instance) {
	m.NamesList = append(m.NamesList, id)
	m.InstanceModule[id] = module
	if parent != "" {
		m.InstanceParent[id] = parent
		m.InstanceDecl[id] = decl
		m.IntermoduleDependencies[parent] = append(m.IntermoduleDependencies[parent], id)
	}
}

func flatten(levels [][]string) []string {
	var out []string
	for _, l := range levels {
		out = append(out, l...)
	}
	return out
}
