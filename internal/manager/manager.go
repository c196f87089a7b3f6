// Package manager keeps the exploration bookkeeping of a run: instance
// accounting, write-sets, assertions and their cone of influence, dedup
// caches, control flags and solver-time accounting.
package manager

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/robert-at-pretension-io/hdl-symex/internal/hdl"
)

// Options tune assertion extraction and diagnostics
type Options struct {
	// SystemVerilog enables immediate `assert` statements as assertions
	SystemVerilog bool
	Debug         bool
	// Log receives analysis warnings. Nil discards them.
	Log logrus.FieldLogger
}

// BlockRef identifies a procedural block (or the continuous-assign group,
// Index AssignGroup) of a module definition
type BlockRef struct {
	Module string `json:"module"`
	Index  int    `json:"index"`
}

// AssignGroup is the block index used for a module's continuous assigns
const AssignGroup = -1

func (r BlockRef) String() string {
	if r.Index == AssignGroup {
		return r.Module + ".assign"
	}
	return r.Module + ".block" + strconv.Itoa(r.Index)
}

// Counters tally iteration outcomes
type Counters struct {
	Explored   int `json:"explored"`
	Skipped    int `json:"skipped"`
	Infeasible int `json:"infeasible"`
	Ignored    int `json:"ignored"`
	Violations int `json:"violations"`
	Unsat      int `json:"unsat_violations"`
}

// Manager is the shared exploration context of one top-level run. Child
// managers created with NewChild share the design tables and the module
// memo but own their flags and counters.
type Manager struct {
	Top       string
	NamesList []string
	Hierarchy []string

	InstanceCount           map[string]int
	InstanceModule          map[string]string
	InstanceParent          map[string]string
	InstanceDecl            map[string]*hdl.Instance
	IntermoduleDependencies map[string][]string

	// ChildNumPaths is the per-cycle branch estimate of each instance
	ChildNumPaths map[string]int
	// ChildPathCounts is the number of enumerated per-cycle path codes of each instance
	ChildPathCounts map[string]int

	// Dependencies maps module -> written signal -> signals it reads (data and control)
	Dependencies     map[string]map[string][]string
	AlwaysWrites     map[BlockRef][]string
	Assertions       []*Assertion
	BlocksOfInterest map[int][]BlockRef

	AssertionViolation bool
	Ignore             bool
	Abandon            bool
	IsChild            bool
	Debug              bool

	Cycle      int
	SolverTime time.Duration
	Stats      Counters

	opts      Options
	expanded  map[string]bool
	seen      map[string]map[int]bool
	seenMod   map[string]map[string]uint64
	completed map[string]bool
	log       logrus.FieldLogger
}

// New analyses the design: instance slots, write-sets, dependencies,
// assertions and the cone of influence.
func New(d *hdl.Design, opts Options) (*Manager, error) {
	if opts.Log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		opts.Log = l
	}
	m := &Manager{
		InstanceModule:          make(map[string]string),
		InstanceParent:          make(map[string]string),
		InstanceDecl:            make(map[string]*hdl.Instance),
		IntermoduleDependencies: make(map[string][]string),
		ChildNumPaths:           make(map[string]int),
		ChildPathCounts:         make(map[string]int),
		Dependencies:            make(map[string]map[string][]string),
		AlwaysWrites:            make(map[BlockRef][]string),
		BlocksOfInterest:        make(map[int][]BlockRef),
		Debug:                   opts.Debug,
		opts:                    opts,
		expanded:                make(map[string]bool),
		seen:                    make(map[string]map[int]bool),
		seenMod:                 make(map[string]map[string]uint64),
		completed:               make(map[string]bool),
		log:                     opts.Log,
	}
	top, err := TopModule(d)
	if err != nil {
		return nil, err
	}
	m.Top = top
	if err := m.assignSlots(d); err != nil {
		return nil, err
	}
	for _, mod := range d.Modules {
		if err := m.collectDependencies(mod); err != nil {
			return nil, err
		}
		m.ExtractAssertions(mod)
	}
	m.MapConeOfInfluence()
	return m, nil
}

// TopModule resolves the root module of a design
func TopModule(d *hdl.Design) (string, error) {
	if d.Top != "" {
		if d.Module(d.Top) == nil {
			return "", fmt.Errorf("top module %s not found", d.Top)
		}
		return d.Top, nil
	}
	counts, err := countInstances(d)
	if err != nil {
		return "", err
	}
	for _, mod := range d.Modules {
		if counts[mod.Name] == 0 {
			return mod.Name, nil
		}
	}
	return "", fmt.Errorf("design has no root module")
}

// NewChild returns a manager scoped to one child instance
func (m *Manager) NewChild(instance string) *Manager {
	child := *m
	child.IsChild = true
	child.AssertionViolation = false
	child.Ignore = false
	child.Abandon = false
	child.Stats = Counters{}
	child.SolverTime = 0
	return &child
}

// CollectWrites records the write-set of one procedural block
func (m *Manager) CollectWrites(module string, index int, writes []string) {
	ref := BlockRef{Module: module, Index: index}
	m.AlwaysWrites[ref] = append([]string(nil), writes...)
}

// BlockRefs lists every block with a recorded write-set, in stable order
func (m *Manager) BlockRefs() []BlockRef {
	refs := make([]BlockRef, 0, len(m.AlwaysWrites))
	for r := range m.AlwaysWrites {
		refs = append(refs, r)
	}
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].Module != refs[j].Module {
			return refs[i].Module < refs[j].Module
		}
		return refs[i].Index < refs[j].Index
	})
	return refs
}

// ModuleOf returns the module definition name of an instance slot
func (m *Manager) ModuleOf(instance string) string {
	return m.InstanceModule[instance]
}

// PathCode is the dedup key of one instance's path choice in one cycle
func PathCode(instance string, cycle, code int) string {
	return fmt.Sprintf("%s@%d:%d", instance, cycle, code)
}

// ScheduleKey joins per-instance path codes into the key of a full schedule
func ScheduleKey(codes []string) string {
	return strings.Join(codes, "|")
}

// IsCompleted reports whether a schedule was already fully explored
func (m *Manager) IsCompleted(key string) bool {
	return m.completed[key]
}

// MarkCompleted records a fully explored schedule
func (m *Manager) MarkCompleted(key string) {
	m.completed[key] = true
}

// CompletedCount is the number of explored schedules
func (m *Manager) CompletedCount() int {
	return len(m.completed)
}

// MarkSeen records that an instance walked a per-cycle path code
func (m *Manager) MarkSeen(instance string, code int) {
	if m.seen[instance] == nil {
		m.seen[instance] = make(map[int]bool)
	}
	m.seen[instance][code] = true
}

// Seen reports whether an instance already walked a path code in this batch
func (m *Manager) Seen(instance string, code int) bool {
	return m.seen[instance][code]
}

// SeenCodes is the number of distinct path codes an instance walked in this batch
func (m *Manager) SeenCodes(instance string) int {
	return len(m.seen[instance])
}

// CheckSeenModule reports whether an instance already walked code from the
// same entry state. The first sighting is recorded and reports false.
func (m *Manager) CheckSeenModule(instance, code string, fingerprint uint64) bool {
	memo := m.seenMod[instance]
	if memo == nil {
		memo = make(map[string]uint64)
		m.seenMod[instance] = memo
	}
	if fp, ok := memo[code]; ok && fp == fingerprint {
		return true
	}
	memo[code] = fingerprint
	return false
}

// ResetBatch drops the per-batch seen caches. Completed schedules persist.
func (m *Manager) ResetBatch() {
	for k := range m.seen {
		delete(m.seen, k)
	}
	for k := range m.seenMod {
		delete(m.seenMod, k)
	}
}

// ResetIteration clears the per-iteration flags
func (m *Manager) ResetIteration() {
	m.AssertionViolation = false
	m.Ignore = false
	m.Abandon = false
	m.Cycle = 0
}

// AddSolverTime accumulates time spent in the solver
func (m *Manager) AddSolverTime(d time.Duration) {
	m.SolverTime += d
}
