package state

import "github.com/robert-at-pretension-io/hdl-symex/internal/smt"

// PathCondition is the conjunction of branch decisions along the current
// route, mirrored one frame per decision on a single solver session.
type PathCondition struct {
	solver *smt.Solver
	conds  []*smt.Term
}

// NewPathCondition binds a path condition to a solver session
func NewPathCondition(solver *smt.Solver) *PathCondition {
	return &PathCondition{solver: solver}
}

// Solver exposes the underlying session
func (pc *PathCondition) Solver() *smt.Solver {
	return pc.solver
}

// Assume conjoins cond if the result stays satisfiable. On UNSAT the frame is
// popped and false is returned. Constant conditions never reach the solver.
func (pc *PathCondition) Assume(cond *smt.Term) bool {
	cond = smt.Truthy(cond)
	if cond.IsFalse() {
		return false
	}
	pc.solver.Push()
	pc.conds = append(pc.conds, cond)
	if cond.IsTrue() {
		return true
	}
	pc.solver.Add(cond)
	if pc.solver.Check() == smt.Unsat {
		pc.Pop()
		return false
	}
	return true
}

// Pop drops the newest decision
func (pc *PathCondition) Pop() {
	if len(pc.conds) == 0 {
		return
	}
	pc.conds = pc.conds[:len(pc.conds)-1]
	pc.solver.Pop()
}

// Conjuncts returns the accumulated decisions, oldest first
func (pc *PathCondition) Conjuncts() []*smt.Term {
	return append([]*smt.Term(nil), pc.conds...)
}

// Term folds the decisions into a single boolean term
func (pc *PathCondition) Term() *smt.Term {
	acc := smt.True()
	for _, c := range pc.conds {
		acc = smt.And(acc, c)
	}
	return acc
}

// Reset clears every decision and the solver session
func (pc *PathCondition) Reset() {
	pc.conds = nil
	pc.solver.Reset()
}
