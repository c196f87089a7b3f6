package engine

import (
	"github.com/robert-at-pretension-io/hdl-symex/internal/manager"
	"github.com/robert-at-pretension-io/hdl-symex/internal/search"
)

// Schedule is one full path assignment: for every cycle and every slot, the
// index of the chosen path. Slot choices of cycle c start at c*slotsPerCycle.
type Schedule []int

// scheduleIter enumerates the mixed-radix product of per-slot path counts
// lazily, last position fastest
type scheduleIter struct {
	radix   []int
	cur     []int
	started bool
	done    bool
}

func newScheduleIter(radix []int) *scheduleIter {
	it := &scheduleIter{radix: radix, cur: make([]int, len(radix))}
	for _, r := range radix {
		if r <= 0 {
			it.done = true
		}
	}
	return it
}

// Next returns the next schedule; the slice is owned by the caller
func (it *scheduleIter) Next() (Schedule, bool) {
	if it.done {
		return nil, false
	}
	if !it.started {
		it.started = true
		return append(Schedule(nil), it.cur...), true
	}
	for i := len(it.cur) - 1; i >= 0; i-- {
		it.cur[i]++
		if it.cur[i] < it.radix[i] {
			return append(Schedule(nil), it.cur...), true
		}
		it.cur[i] = 0
	}
	it.done = true
	return nil, false
}

// radix lists the number of choices of every position of a schedule.
// Initial blocks only run in cycle 0 and have a single choice afterwards.
func (e *Engine) radix(cycles int) []int {
	out := make([]int, 0, cycles*len(e.slots))
	for c := 0; c < cycles; c++ {
		for _, s := range e.slots {
			if s.initial && c > 0 {
				out = append(out, 1)
				continue
			}
			out = append(out, len(e.graphs[s.graph].Paths))
		}
	}
	return out
}

// cycleChoices is the part of a schedule belonging to one cycle
func (e *Engine) cycleChoices(sched Schedule, cycle int) []int {
	n := len(e.slots)
	return sched[cycle*n : (cycle+1)*n]
}

// plans resolves an instance's path choices for one cycle and folds them into
// its path code
func (e *Engine) plans(instance string, choices []int, cycle int) ([]search.Plan, int) {
	var plans []search.Plan
	code, mult := 0, 1
	for _, si := range e.instSlots[instance] {
		s := e.slots[si]
		if s.initial && cycle > 0 {
			continue
		}
		g := e.graphs[s.graph]
		choice := choices[si]
		plans = append(plans, search.Plan{Graph: g, Path: g.Paths[choice]})
		code += choice * mult
		mult *= len(g.Paths)
	}
	return plans, code
}

// scheduleKey is the dedup key of a full schedule
func (e *Engine) scheduleKey(sched Schedule, cycles int) string {
	codes := make([]string, 0, cycles*len(e.Manager.NamesList))
	for c := 0; c < cycles; c++ {
		choices := e.cycleChoices(sched, c)
		for _, inst := range e.Manager.NamesList {
			_, code := e.plans(inst, choices, c)
			codes = append(codes, manager.PathCode(inst, c, code))
		}
	}
	return manager.ScheduleKey(codes)
}
