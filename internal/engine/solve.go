package engine

import (
	"sort"
	"time"

	"github.com/robert-at-pretension-io/hdl-symex/internal/cache"
	"github.com/robert-at-pretension-io/hdl-symex/internal/manager"
	"github.com/robert-at-pretension-io/hdl-symex/internal/search"
	"github.com/robert-at-pretension-io/hdl-symex/internal/smt"
)

// Binding is one symbol of a counterexample
type Binding struct {
	Symbol   string `json:"symbol"`
	Instance string `json:"instance"`
	Signal   string `json:"signal"`
	Cycle    int    `json:"cycle"`
	Value    uint64 `json:"value"`
	Width    int    `json:"width"`
	// Live is set when the symbol is still the current value of its signal
	Live bool `json:"live"`
}

// Counterexample is a concrete input assignment reaching a violation
type Counterexample struct {
	Assertion *manager.Assertion `json:"assertion"`
	Instance  string             `json:"instance"`
	Cycle     int                `json:"cycle"`
	Bindings  []Binding          `json:"bindings"`
}

// Values maps symbol names to their values
func (c *Counterexample) Values() map[string]uint64 {
	out := make(map[string]uint64, len(c.Bindings))
	for _, b := range c.Bindings {
		out[b.Symbol] = b.Value
	}
	return out
}

// SolvePC decides the current path condition conjoined with extra terms.
// Verdicts are looked up in and stored to the configured cache.
func (e *Engine) SolvePC(extra ...*smt.Term) (smt.Result, *smt.Model, error) {
	pc := e.State.PC
	terms := pc.Conjuncts()
	for _, t := range extra {
		terms = append(terms, smt.Truthy(t))
	}

	var key uint64
	if c := e.opts.Cache; c != nil {
		key = cache.Fingerprint(terms)
		entry, ok, err := c.Get(key)
		if err != nil {
			return smt.Unknown, nil, err
		}
		if ok {
			res, model := entry.Decode()
			if res != smt.Unknown {
				e.observeSolver(res, true, 0)
				return res, model, nil
			}
		}
	}

	start := time.Now()
	s := pc.Solver()
	s.Push()
	for _, t := range extra {
		s.Add(t)
	}
	res := s.Check()
	model := s.Model()
	s.Pop()
	e.observeSolver(res, false, time.Since(start))

	if c := e.opts.Cache; c != nil {
		if err := c.Put(key, cache.NewEntry(res, model)); err != nil {
			return res, model, err
		}
	}
	return res, model, nil
}

func (e *Engine) observeSolver(res smt.Result, cached bool, d time.Duration) {
	if e.opts.Observer != nil {
		e.opts.Observer.SolverCall(res.String(), cached, d)
	}
}

// resolve turns a violation into a counterexample, or nil when the violation
// contradicts the path condition
func (e *Engine) resolve(out search.Outcome) (*Counterexample, error) {
	var extra []*smt.Term
	if out.Condition != nil {
		extra = append(extra, out.Condition)
	}
	res, model, err := e.SolvePC(extra...)
	if err != nil {
		return nil, err
	}
	if res != smt.Sat {
		return nil, nil
	}
	return &Counterexample{
		Assertion: out.Assertion,
		Instance:  out.Instance,
		Cycle:     e.State.Cycle,
		Bindings:  e.reverseMap(model),
	}, nil
}

// reverseMap binds every symbol of the iteration to the (instance, signal)
// it was introduced for, marking the ones the store still holds
func (e *Engine) reverseMap(model *smt.Model) []Binding {
	st := e.State
	var out []Binding
	for _, name := range st.Symbols() {
		origin, _ := st.Origin(name)
		b := Binding{
			Symbol:   name,
			Instance: origin.Instance,
			Signal:   origin.Signal,
			Cycle:    origin.Cycle,
		}
		if v, ok := st.Get(origin.Instance, origin.Signal); ok && v.IsSym() && v.Name() == name {
			b.Live = true
		}
		if v, ok := model.Value(name); ok {
			b.Value = v
		}
		b.Width = model.Width(name)
		if b.Width == 0 {
			b.Width = st.Width(origin.Instance, origin.Signal)
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}
