// Package state holds the symbolic store of every module instance and
// implements blocking and non-blocking assignment semantics.
package state

import (
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/cespare/xxhash/v2"

	"github.com/robert-at-pretension-io/hdl-symex/internal/hdl"
	"github.com/robert-at-pretension-io/hdl-symex/internal/smt"
)

// Origin records where a symbol was introduced
type Origin struct {
	Instance string `json:"instance"`
	Signal   string `json:"signal"`
	Cycle    int    `json:"cycle"`
}

// State is the store, the pending non-blocking writes, the previous-cycle
// snapshot and the path condition of one run.
type State struct {
	PC    *PathCondition
	Cycle int

	modules map[string]*hdl.Module
	store   map[string]map[string]*smt.Term
	widths  map[string]map[string]int
	pending map[string][]pendingWrite
	prev    map[string]map[string]*smt.Term
	origins map[string]Origin
}

// New returns an empty state bound to a solver session
func New(solver *smt.Solver) *State {
	return &State{
		PC:      NewPathCondition(solver),
		modules: make(map[string]*hdl.Module),
		store:   make(map[string]map[string]*smt.Term),
		widths:  make(map[string]map[string]int),
		pending: make(map[string][]pendingWrite),
		prev:    make(map[string]map[string]*smt.Term),
		origins: make(map[string]Origin),
	}
}

// Bind registers a store slot for an instance of m
func (s *State) Bind(instance string, m *hdl.Module) {
	s.modules[instance] = m
	if s.store[instance] == nil {
		s.store[instance] = make(map[string]*smt.Term)
	}
	if s.widths[instance] == nil {
		s.widths[instance] = make(map[string]int)
	}
}

// Instances lists the bound slots in sorted order
func (s *State) Instances() []string {
	out := make([]string, 0, len(s.store))
	for k := range s.store {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Module returns the definition bound to an instance
func (s *State) Module(instance string) *hdl.Module {
	return s.modules[instance]
}

// DeclareLocal records the width of a block-local declaration
func (s *State) DeclareLocal(instance string, d *hdl.Decl) {
	w := d.Width
	if w <= 0 && d.Kind == "integer" {
		w = hdl.IntegerWidth
	}
	if w <= 0 {
		w = hdl.DefaultWidth
	}
	if s.widths[instance] == nil {
		s.widths[instance] = make(map[string]int)
	}
	s.widths[instance][d.Name] = clampWidth(w)
}

// Width is the modelled width of a signal
func (s *State) Width(instance, signal string) int {
	if w, ok := s.widths[instance][signal]; ok {
		return w
	}
	if m := s.modules[instance]; m != nil {
		w, _ := m.Width(signal)
		return clampWidth(w)
	}
	return hdl.DefaultWidth
}

func clampWidth(w int) int {
	if w > smt.MaxWidth {
		return smt.MaxWidth
	}
	return w
}

// SymbolName is the solver name of a signal introduced in a cycle
func SymbolName(instance, signal string, cycle int) string {
	return fmt.Sprintf("%s.%s@%d", instance, signal, cycle)
}

// Fresh stores a new unconstrained symbol for the signal and returns it
func (s *State) Fresh(instance, signal string) *smt.Term {
	name := SymbolName(instance, signal, s.Cycle)
	sym := smt.Sym(name, s.Width(instance, signal))
	s.origins[name] = Origin{Instance: instance, Signal: signal, Cycle: s.Cycle}
	s.Set(instance, signal, sym)
	return sym
}

// Get returns the current value of a signal
func (s *State) Get(instance, signal string) (*smt.Term, bool) {
	v, ok := s.store[instance][signal]
	return v, ok
}

// Read returns the current value, introducing a symbol for never-written signals
func (s *State) Read(instance, signal string) *smt.Term {
	if v, ok := s.Get(instance, signal); ok {
		return v
	}
	return s.Fresh(instance, signal)
}

// Set overwrites a signal, resizing the value to the signal width
func (s *State) Set(instance, signal string, v *smt.Term) {
	if s.store[instance] == nil {
		s.store[instance] = make(map[string]*smt.Term)
	}
	s.store[instance][signal] = smt.Resize(v, s.Width(instance, signal))
}

// Origin looks up the provenance of a symbol name
func (s *State) Origin(symbol string) (Origin, bool) {
	o, ok := s.origins[symbol]
	return o, ok
}

// Symbols lists every symbol introduced in the current iteration
func (s *State) Symbols() []string {
	out := make([]string, 0, len(s.origins))
	for k := range s.origins {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Store returns a copy of the signal map of an instance
func (s *State) Store(instance string) map[string]*smt.Term {
	out := make(map[string]*smt.Term, len(s.store[instance]))
	for k, v := range s.store[instance] {
		out[k] = v
	}
	return out
}

// Dump renders every instance store as strings
func (s *State) Dump() map[string]map[string]string {
	out := make(map[string]map[string]string, len(s.store))
	for inst, sigs := range s.store {
		m := make(map[string]string, len(sigs))
		for k, v := range sigs {
			m[k] = v.String()
		}
		out[inst] = m
	}
	return out
}

// Snapshot copies the store into the previous-store slot
func (s *State) Snapshot() {
	s.prev = make(map[string]map[string]*smt.Term, len(s.store))
	for inst := range s.store {
		s.prev[inst] = s.Store(inst)
	}
}

// Previous returns a signal's value as of the last snapshot
func (s *State) Previous(instance, signal string) (*smt.Term, bool) {
	v, ok := s.prev[instance][signal]
	return v, ok
}

// Fingerprint hashes the store of one instance
func (s *State) Fingerprint(instance string) uint64 {
	sigs := s.store[instance]
	names := make([]string, 0, len(sigs))
	for k := range sigs {
		names = append(names, k)
	}
	sort.Strings(names)
	d := xxhash.New()
	var buf [8]byte
	for _, n := range names {
		_, _ = d.WriteString(n)
		binary.LittleEndian.PutUint64(buf[:], sigs[n].Hash())
		_, _ = d.Write(buf[:])
	}
	return d.Sum64()
}

// ResetIteration empties every store slot, drops pending writes, the snapshot,
// the symbol registry and the path condition. Slots stay bound.
func (s *State) ResetIteration() {
	for inst := range s.store {
		s.store[inst] = make(map[string]*smt.Term)
	}
	for inst := range s.widths {
		s.widths[inst] = make(map[string]int)
	}
	s.pending = make(map[string][]pendingWrite)
	s.prev = make(map[string]map[string]*smt.Term)
	s.origins = make(map[string]Origin)
	s.Cycle = 0
	s.PC.Reset()
}
