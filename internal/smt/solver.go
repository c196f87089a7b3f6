package smt

import (
	"sort"
	"time"

	"github.com/go-air/gini"
	"github.com/go-air/gini/z"
)

// Result is the outcome of a satisfiability check
type Result int

const (
	Unknown Result = iota
	Sat
	Unsat
)

func (r Result) String() string {
	switch r {
	case Sat:
		return "sat"
	case Unsat:
		return "unsat"
	}
	return "unknown"
}

// Model maps symbol names to the values found by the last satisfiable check
type Model struct {
	values map[string]uint64
	widths map[string]int
}

// NewModel builds a model from explicit bindings
func NewModel(values map[string]uint64, widths map[string]int) *Model {
	m := &Model{values: make(map[string]uint64), widths: make(map[string]int)}
	for k, v := range values {
		m.values[k] = v
	}
	for k, w := range widths {
		m.widths[k] = w
	}
	return m
}

// Value returns the binding of a symbol
func (m *Model) Value(name string) (uint64, bool) {
	if m == nil {
		return 0, false
	}
	v, ok := m.values[name]
	return v, ok
}

// Width returns the width a symbol was solved at
func (m *Model) Width(name string) int {
	if m == nil {
		return 0
	}
	return m.widths[name]
}

// Names returns the bound symbols in sorted order
func (m *Model) Names() []string {
	if m == nil {
		return nil
	}
	names := make([]string, 0, len(m.values))
	for k := range m.values {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Values returns a copy of the bindings
func (m *Model) Values() map[string]uint64 {
	out := make(map[string]uint64)
	if m == nil {
		return out
	}
	for k, v := range m.values {
		out[k] = v
	}
	return out
}

// Eval evaluates t under the model
func (m *Model) Eval(t *Term) uint64 {
	if m == nil {
		return Eval(t, nil)
	}
	return Eval(t, m.values)
}

// Stats counts solver work
type Stats struct {
	Checks  int
	Elapsed time.Duration
}

// Solver is an incremental-looking assertion stack. Each Check bit-blasts the
// current stack into a fresh gini instance.
type Solver struct {
	frames [][]*Term
	model  *Model
	stats  Stats
}

// NewSolver returns a solver with an empty base frame
func NewSolver() *Solver {
	return &Solver{frames: [][]*Term{nil}}
}

// Push opens a new assertion frame
func (s *Solver) Push() {
	s.frames = append(s.frames, nil)
}

// Pop discards the newest frame. Popping the base frame is a no-op.
func (s *Solver) Pop() {
	if len(s.frames) > 1 {
		s.frames = s.frames[:len(s.frames)-1]
	}
}

// Depth is the number of pushed frames above the base
func (s *Solver) Depth() int {
	return len(s.frames) - 1
}

// Add asserts t (reduced to a boolean) in the current frame
func (s *Solver) Add(t *Term) {
	top := len(s.frames) - 1
	s.frames[top] = append(s.frames[top], Truthy(t))
}

// Reset drops every frame and the last model
func (s *Solver) Reset() {
	s.frames = [][]*Term{nil}
	s.model = nil
}

// Assertions returns every asserted term, oldest first
func (s *Solver) Assertions() []*Term {
	var out []*Term
	for _, f := range s.frames {
		out = append(out, f...)
	}
	return out
}

// Stats returns the accumulated check count and time
func (s *Solver) Stats() Stats {
	return s.stats
}

// Model returns the model of the last satisfiable Check, or nil
func (s *Solver) Model() *Model {
	return s.model
}

// Check decides the conjunction of all asserted terms
func (s *Solver) Check() Result {
	start := time.Now()
	s.stats.Checks++
	defer func() { s.stats.Elapsed += time.Since(start) }()

	s.model = nil
	res, model := Decide(s.Assertions())
	if res == Sat {
		s.model = model
	}
	return res
}

// Decide checks a conjunction without touching any solver state
func Decide(assertions []*Term) (Result, *Model) {
	var pending []*Term
	widths := make(map[string]int)
	for _, a := range assertions {
		if a.IsFalse() {
			return Unsat, nil
		}
		if a.IsConst() {
			continue
		}
		pending = append(pending, a)
		for name, w := range Symbols(a) {
			if w > widths[name] {
				widths[name] = w
			}
		}
	}
	if len(pending) == 0 {
		return Sat, NewModel(nil, nil)
	}

	b := newBlaster()
	roots := make([]z.Lit, 0, len(pending))
	for _, a := range pending {
		roots = append(roots, b.bits(a)[0])
	}
	g := gini.New()
	b.c.ToCnf(g)
	g.Assume(roots...)
	switch g.Solve() {
	case 1:
	case -1:
		return Unsat, nil
	default:
		return Unknown, nil
	}

	values := make(map[string]uint64, len(b.syms))
	maxVar := g.MaxVar()
	for name, bs := range b.syms {
		var v uint64
		for i, m := range bs {
			if m.Var() > maxVar {
				continue
			}
			if g.Value(m) {
				v |= 1 << uint(i)
			}
		}
		values[name] = v
	}
	return Sat, NewModel(values, widths)
}
