package engine

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/robert-at-pretension-io/hdl-symex/internal/hdl"
	"github.com/robert-at-pretension-io/hdl-symex/internal/manager"
	"github.com/robert-at-pretension-io/hdl-symex/internal/search"
)

// ErrDeadlineExceeded is returned when the run context expires mid-exploration
var ErrDeadlineExceeded = fmt.Errorf("execution time limit exceeded: %w", context.DeadlineExceeded)

// Iteration outcomes
const (
	OutcomeExplored   = "explored"
	OutcomeSkipped    = "skipped"
	OutcomeInfeasible = "infeasible"
	OutcomeViolation  = "violation"
	OutcomeUnsat      = "unsat"
)

// Result summarises one Execute call
type Result struct {
	Top        string           `json:"top"`
	Cycles     int              `json:"cycles"`
	Estimate   string           `json:"estimate"`
	Piecewise  bool             `json:"piecewise"`
	Batches    int              `json:"batches"`
	Iterations int              `json:"iterations"`
	Stats      manager.Counters `json:"stats"`
	Dropped    []DroppedBlock   `json:"dropped,omitempty"`

	Counterexample *Counterexample `json:"counterexample,omitempty"`

	Elapsed      time.Duration `json:"elapsed"`
	SolverTime   time.Duration `json:"solver_time"`
	SolverChecks int           `json:"solver_checks"`
}

// Execute explores every schedule of the given number of cycles until one
// yields a counterexample, the space is exhausted or ctx expires. Schedules
// completed by an earlier call on the same engine are skipped.
func (e *Engine) Execute(ctx context.Context, cycles int) (*Result, error) {
	if cycles < 1 {
		return nil, fmt.Errorf("num_cycles must be at least 1, got %d", cycles)
	}
	start := time.Now()
	m := e.Manager
	m.Stats = manager.Counters{}
	m.SolverTime = 0
	checks := e.solver.Stats().Checks

	estimate := e.Estimate(cycles)
	res := &Result{
		Top:       m.Top,
		Cycles:    cycles,
		Estimate:  estimate.String(),
		Piecewise: e.Piecewise(cycles),
		Dropped:   e.Dropped,
	}
	if e.opts.Observer != nil {
		f, _ := new(big.Float).SetInt(estimate).Float64()
		e.opts.Observer.PathEstimate(f)
	}
	log := e.log.WithFields(logrus.Fields{"top": m.Top, "cycles": cycles})
	if res.Piecewise {
		log.Infof("schedule estimate %s exceeds %d, exploring in batches of %d",
			res.Estimate, e.opts.ExplosionThreshold, e.opts.BatchSize)
	}

	finish := func() {
		res.Stats = m.Stats
		res.Elapsed = time.Since(start)
		res.SolverTime = m.SolverTime
		res.SolverChecks = e.solver.Stats().Checks - checks
		if e.opts.Cache != nil {
			if err := e.opts.Cache.Persist(); err != nil {
				log.Warnf("persist cache: %v", err)
			}
		}
	}

	it := newScheduleIter(e.radix(cycles))
	inBatch := 0
	e.newBatch(res)
	for {
		if err := ctx.Err(); err != nil {
			finish()
			if errors.Is(err, context.DeadlineExceeded) {
				return res, ErrDeadlineExceeded
			}
			return res, err
		}
		sched, ok := it.Next()
		if !ok {
			break
		}
		if res.Piecewise && inBatch == e.opts.BatchSize {
			e.newBatch(res)
			inBatch = 0
		}
		inBatch++
		res.Iterations++

		cex, err := e.RunSchedule(sched, cycles)
		if err != nil {
			finish()
			return res, err
		}
		if cex != nil {
			res.Counterexample = cex
			break
		}
	}
	finish()
	return res, nil
}

// newBatch discards the per-batch caches and the solver session
func (e *Engine) newBatch(res *Result) {
	res.Batches++
	e.Manager.ResetBatch()
	e.solver.Reset()
	e.State.ResetIteration()
	if e.opts.Observer != nil {
		e.opts.Observer.Batch()
	}
	e.log.WithField("batch", res.Batches).Debug("starting batch")
}

// RunSchedule walks one full schedule and returns a counterexample when an
// assertion is violated under a satisfiable path condition
func (e *Engine) RunSchedule(sched Schedule, cycles int) (*Counterexample, error) {
	start := time.Now()
	m := e.Manager
	key := e.scheduleKey(sched, cycles)
	if m.IsCompleted(key) {
		m.Stats.Skipped++
		e.observe(OutcomeSkipped, start)
		return nil, nil
	}

	e.State.ResetIteration()
	m.ResetIteration()
	before := e.solver.Stats().Elapsed
	defer func() {
		m.AddSolverTime(e.solver.Stats().Elapsed - before)
	}()

	out, err := e.walkSchedule(sched, cycles)
	if err != nil {
		return nil, err
	}
	m.MarkCompleted(key)
	if m.Ignore {
		m.Stats.Ignored++
	}
	e.dump(key)

	switch {
	case out.Abandon:
		m.Stats.Infeasible++
		e.observe(OutcomeInfeasible, start)
		return nil, nil
	case out.Violation:
		m.Stats.Violations++
		cex, err := e.resolve(out)
		if err != nil {
			return nil, err
		}
		if cex == nil {
			m.Stats.Unsat++
			e.observe(OutcomeUnsat, start)
			e.log.WithField("schedule", key).Info("no counterexample under this path")
			return nil, nil
		}
		e.observe(OutcomeViolation, start)
		return cex, nil
	}
	m.Stats.Explored++
	e.observe(OutcomeExplored, start)
	return nil, nil
}

func (e *Engine) observe(outcome string, start time.Time) {
	if e.opts.Observer != nil {
		e.opts.Observer.Iteration(outcome, time.Since(start))
	}
}

// walkSchedule runs every cycle: refresh inputs, settle, walk each instance,
// commit non-blocking writes and settle again
func (e *Engine) walkSchedule(sched Schedule, cycles int) (search.Outcome, error) {
	st, m := e.State, e.Manager
	for c := 0; c < cycles; c++ {
		st.Cycle = c
		m.Cycle = c
		if c > 0 {
			st.Snapshot()
		}
		e.refreshInputs()
		if err := e.settle(true); err != nil {
			return search.Outcome{}, err
		}
		out, err := e.walkCycle(e.cycleChoices(sched, c), c)
		if err != nil || out.Stop() {
			return out, err
		}
		st.Commit()
		if err := e.settle(false); err != nil {
			return search.Outcome{}, err
		}
	}
	return search.Outcome{Instance: m.Top}, nil
}

// refreshInputs gives every root input a fresh symbol for the cycle
func (e *Engine) refreshInputs() {
	m := e.Manager
	for _, inst := range m.NamesList {
		if m.InstanceParent[inst] != "" {
			continue
		}
		mod := e.State.Module(inst)
		for _, p := range mod.Ports {
			if p.Direction == hdl.Input {
				e.State.Fresh(inst, p.Name)
			}
		}
	}
}

// settle propagates values top-down, bottom-up and top-down again so that
// bindings and continuous assigns see their producers in acyclic hierarchies
func (e *Engine) settle(visit bool) error {
	m := e.Manager
	names := m.NamesList
	for _, inst := range names {
		f := search.NewFrame(m, e.State, inst)
		var err error
		if visit {
			err = e.walker.VisitModule(f)
		} else {
			err = e.walker.Settle(f)
		}
		if err != nil {
			return err
		}
	}
	for i := len(names) - 1; i >= 0; i-- {
		if err := e.walker.Settle(search.NewFrame(m, e.State, names[i])); err != nil {
			return err
		}
	}
	for _, inst := range names {
		if err := e.walker.Settle(search.NewFrame(m, e.State, inst)); err != nil {
			return err
		}
	}
	return nil
}

// walkCycle walks every instance along its chosen paths. Nested instances
// run in child frames on an explicit stack.
func (e *Engine) walkCycle(choices []int, cycle int) (search.Outcome, error) {
	m := e.Manager
	var stack search.Stack
	root := search.NewFrame(m, e.State, m.Top)
	stack.Push(root)

	total := search.Outcome{Instance: m.Top}
	for _, inst := range m.NamesList {
		plans, code := e.plans(inst, choices, cycle)
		var f *search.Frame
		child := m.InstanceParent[inst] != ""
		if child {
			f = root.Child(inst)
			stack.Push(f)
		} else {
			f = search.NewFrame(m, e.State, inst)
		}
		out, err := e.walker.WalkInstance(f, plans, code)
		if child {
			stack.Return(out)
		}
		if err != nil {
			return total, fmt.Errorf("instance %s cycle %d: %w", inst, cycle, err)
		}
		total = total.Merge(out)
		if total.Stop() {
			break
		}
		if child {
			// the child drove its outputs; refresh the parent's assigns
			parent := search.NewFrame(m, e.State, m.InstanceParent[inst])
			if err := e.walker.Settle(parent); err != nil {
				return total, fmt.Errorf("instance %s cycle %d: %w", inst, cycle, err)
			}
		}
	}
	return total, nil
}

// dump logs the final store and path condition of an iteration in debug mode
func (e *Engine) dump(key string) {
	if !e.Manager.Debug {
		return
	}
	e.log.WithFields(logrus.Fields{
		"schedule": key,
		"pc":       e.State.PC.Term().String(),
	}).Debugf("final state: %v", e.State.Dump())
}
