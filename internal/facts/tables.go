// Package facts flattens an analysed design into relational tables: modules,
// ports, signals, instance slots, procedural blocks with their static paths,
// write-sets, signal dependencies, assertions and their cone of influence.
package facts

import (
	"sort"
	"strings"

	"github.com/robert-at-pretension-io/hdl-symex/internal/cfg"
	"github.com/robert-at-pretension-io/hdl-symex/internal/engine"
	"github.com/robert-at-pretension-io/hdl-symex/internal/hdl"
	"github.com/robert-at-pretension-io/hdl-symex/internal/manager"
)

// Tables is the relational fact model of one design.
// Each slice is a relation (table) with flat rows.
type Tables struct {
	Modules      []ModuleRow     `json:"modules"`
	Ports        []PortRow       `json:"ports"`
	Signals      []SignalRow     `json:"signals"`
	Instances    []InstanceRow   `json:"instances"`
	Blocks       []BlockRow      `json:"blocks"`
	Paths        []PathRow       `json:"paths"`
	Writes       []WriteRow      `json:"writes"`
	Dependencies []DependencyRow `json:"dependencies"`
	Assertions   []AssertionRow  `json:"assertions"`
	Cone         []ConeRow       `json:"cone"`
}

type ModuleRow struct {
	Name      string `json:"name"`
	Line      int    `json:"line"`
	IsTop     bool   `json:"is_top"`
	Instances int    `json:"instances"`
	Blocks    int    `json:"blocks"`
}

type PortRow struct {
	Module    string `json:"module"`
	Name      string `json:"name"`
	Direction string `json:"direction"`
	Width     int    `json:"width"`
}

type SignalRow struct {
	Module string `json:"module"`
	Name   string `json:"name"`
	Kind   string `json:"kind"`
	Width  int    `json:"width"`
}

// InstanceRow is one store slot. Roots have an empty parent. NumPaths is the
// per-cycle branch estimate; PathCodes the number of enumerated path codes.
type InstanceRow struct {
	Slot      string `json:"slot"`
	Module    string `json:"module"`
	Parent    string `json:"parent"`
	Name      string `json:"name"`
	NumPaths  int    `json:"num_paths"`
	PathCodes int    `json:"path_codes"`
}

// BlockRow is one procedural block, or the continuous-assign group (index -1, kind "assign")
type BlockRow struct {
	Module     string `json:"module"`
	Index      int    `json:"index"`
	Kind       string `json:"kind"`
	Name       string `json:"name"`
	Line       int    `json:"line"`
	NumPaths   int    `json:"num_paths"`
	Enumerated int    `json:"enumerated"`
	Truncated  bool   `json:"truncated"`
	Dropped    string `json:"dropped"`
}

type PathRow struct {
	Module     string `json:"module"`
	Block      int    `json:"block"`
	Index      int    `json:"index"`
	Directions string `json:"directions"`
}

type WriteRow struct {
	Module string `json:"module"`
	Block  int    `json:"block"`
	Signal string `json:"signal"`
}

type DependencyRow struct {
	Module string `json:"module"`
	Target string `json:"target"`
	Source string `json:"source"`
}

type AssertionRow struct {
	ID      int    `json:"id"`
	Module  string `json:"module"`
	Block   int    `json:"block"`
	Kind    string `json:"kind"`
	Line    int    `json:"line"`
	Expr    string `json:"expr"`
	Message string `json:"message"`
}

// ConeRow places a block in an assertion's cone of influence. Direct rows
// write a signal the assertion reads; the rest are reached through dependencies.
type ConeRow struct {
	Assertion int    `json:"assertion"`
	Module    string `json:"module"`
	Block     int    `json:"block"`
	Direct    bool   `json:"direct"`
}

// EmptyTables returns tables whose relations are empty, non-nil slices
func EmptyTables() Tables {
	return Tables{
		Modules:      []ModuleRow{},
		Ports:        []PortRow{},
		Signals:      []SignalRow{},
		Instances:    []InstanceRow{},
		Blocks:       []BlockRow{},
		Paths:        []PathRow{},
		Writes:       []WriteRow{},
		Dependencies: []DependencyRow{},
		Assertions:   []AssertionRow{},
		Cone:         []ConeRow{},
	}
}

// BuildTables converts an analysed engine into a normalized relational model.
func BuildTables(e *engine.Engine) Tables {
	tables := EmptyTables()
	m := e.Manager
	d := e.Design()

	dropped := make(map[manager.BlockRef]string)
	for _, db := range e.Dropped {
		dropped[manager.BlockRef{Module: db.Module, Index: db.Block}] = db.Reason
	}

	for _, mod := range d.Modules {
		tables.Modules = append(tables.Modules, ModuleRow{
			Name:      mod.Name,
			Line:      mod.Line,
			IsTop:     mod.Name == m.Top,
			Instances: m.InstanceCount[mod.Name],
			Blocks:    len(mod.Blocks),
		})

		for _, p := range mod.Ports {
			width, _ := mod.Width(p.Name)
			tables.Ports = append(tables.Ports, PortRow{
				Module:    mod.Name,
				Name:      p.Name,
				Direction: string(p.Direction),
				Width:     width,
			})
		}

		for _, decl := range mod.Decls {
			width, _ := mod.Width(decl.Name)
			kind := decl.Kind
			if kind == "" {
				kind = "net"
			}
			tables.Signals = append(tables.Signals, SignalRow{
				Module: mod.Name,
				Name:   decl.Name,
				Kind:   kind,
				Width:  width,
			})
		}

		if len(mod.Assigns) > 0 {
			tables.Blocks = append(tables.Blocks, BlockRow{
				Module:     mod.Name,
				Index:      manager.AssignGroup,
				Kind:       "assign",
				NumPaths:   1,
				Enumerated: 1,
			})
		}

		for i, pb := range mod.Blocks {
			row := BlockRow{
				Module:  mod.Name,
				Index:   i,
				Kind:    string(pb.Kind),
				Name:    pb.Name,
				Line:    pb.Line,
				Dropped: dropped[manager.BlockRef{Module: mod.Name, Index: i}],
			}
			if g := e.Graph(mod.Name, i); g != nil {
				row.NumPaths = g.NumPaths
				row.Enumerated = len(g.Paths)
				row.Truncated = g.Truncated
				for pi, p := range g.Paths {
					tables.Paths = append(tables.Paths, PathRow{
						Module:     mod.Name,
						Block:      i,
						Index:      pi,
						Directions: directionString(g, p),
					})
				}
			}
			tables.Blocks = append(tables.Blocks, row)
		}

		targets := make([]string, 0, len(m.Dependencies[mod.Name]))
		for target := range m.Dependencies[mod.Name] {
			targets = append(targets, target)
		}
		sort.Strings(targets)
		for _, target := range targets {
			for _, src := range m.Dependencies[mod.Name][target] {
				tables.Dependencies = append(tables.Dependencies, DependencyRow{
					Module: mod.Name,
					Target: target,
					Source: src,
				})
			}
		}
	}

	for _, ref := range m.BlockRefs() {
		for _, sig := range m.AlwaysWrites[ref] {
			tables.Writes = append(tables.Writes, WriteRow{
				Module: ref.Module,
				Block:  ref.Index,
				Signal: sig,
			})
		}
	}

	for _, inst := range m.NamesList {
		row := InstanceRow{
			Slot:      inst,
			Module:    m.ModuleOf(inst),
			Parent:    m.InstanceParent[inst],
			Name:      inst,
			NumPaths:  m.ChildNumPaths[inst],
			PathCodes: m.ChildPathCounts[inst],
		}
		if decl := m.InstanceDecl[inst]; decl != nil {
			row.Name = decl.Name
		}
		tables.Instances = append(tables.Instances, row)
	}

	for _, a := range m.Assertions {
		tables.Assertions = append(tables.Assertions, AssertionRow{
			ID:      a.ID,
			Module:  a.Module,
			Block:   a.Block,
			Kind:    a.Kind,
			Line:    a.Line,
			Expr:    exprString(a.Expr),
			Message: a.Message,
		})
		direct := make(map[manager.BlockRef]bool)
		for _, ref := range m.BlocksOfInterest[a.ID] {
			direct[ref] = true
		}
		for _, ref := range m.TransitiveBlocks(a) {
			tables.Cone = append(tables.Cone, ConeRow{
				Assertion: a.ID,
				Module:    ref.Module,
				Block:     ref.Index,
				Direct:    direct[ref],
			})
		}
	}

	return tables
}

// directionString lists the branch decisions of a path, skipping fall-through edges
func directionString(g *cfg.CFG, p cfg.Path) string {
	var parts []string
	for _, dir := range g.Directions(p) {
		if dir == cfg.Fall {
			continue
		}
		parts = append(parts, dir.String())
	}
	return strings.Join(parts, ",")
}

func exprString(e *hdl.Expr) string {
	if e == nil {
		return ""
	}
	return e.String()
}
