package manager

import (
	"sort"

	"github.com/robert-at-pretension-io/hdl-symex/internal/hdl"
)

// depWalker records, for every assignment, the written base signals and the
// signals they read, including those of enclosing branch conditions
type depWalker struct {
	hdl.Walker
	conds  [][]string
	writes map[string]bool
	deps   map[string]map[string]bool
}

func newDepWalker() *depWalker {
	w := &depWalker{
		writes: make(map[string]bool),
		deps:   make(map[string]map[string]bool),
	}
	w.Self = w
	return w
}

func (w *depWalker) record(targets, reads []string) {
	for _, t := range targets {
		w.writes[t] = true
		if w.deps[t] == nil {
			w.deps[t] = make(map[string]bool)
		}
		for _, r := range reads {
			w.deps[t][r] = true
		}
		for _, frame := range w.conds {
			for _, r := range frame {
				w.deps[t][r] = true
			}
		}
	}
}

func (w *depWalker) withCond(ids []string, fn func() error) error {
	w.conds = append(w.conds, ids)
	defer func() { w.conds = w.conds[:len(w.conds)-1] }()
	return fn()
}

func (w *depWalker) VisitIf(s *hdl.Stmt) error {
	return w.withCond(hdl.Identifiers(s.Cond), func() error {
		if err := hdl.Dispatch(w, s.Then); err != nil {
			return err
		}
		return hdl.Dispatch(w, s.Else)
	})
}

func (w *depWalker) VisitCase(s *hdl.Stmt) error {
	ids := hdl.Identifiers(s.Subject)
	for _, item := range s.Items {
		for _, v := range item.Values {
			ids = append(ids, hdl.Identifiers(v)...)
		}
	}
	return w.withCond(ids, func() error {
		for _, item := range s.Items {
			if err := hdl.Dispatch(w, item.Body); err != nil {
				return err
			}
		}
		return nil
	})
}

func (w *depWalker) VisitLoop(s *hdl.Stmt) error {
	if err := hdl.Dispatch(w, s.Init); err != nil {
		return err
	}
	return w.withCond(hdl.Identifiers(s.Cond), func() error {
		if err := hdl.Dispatch(w, s.Body); err != nil {
			return err
		}
		return hdl.Dispatch(w, s.Step)
	})
}

func (w *depWalker) VisitAssign(s *hdl.Stmt) error {
	w.assign(s.LHS, s.RHS)
	return nil
}

func (w *depWalker) VisitExprStmt(s *hdl.Stmt) error {
	if e := s.Expr; e != nil && e.Kind == hdl.ExprUnary && (e.Op == "++" || e.Op == "--") {
		w.assign(e.Arg(0), e.Arg(0))
	}
	return nil
}

// assign skips targets it cannot decompose; the CFG builder reports those
func (w *depWalker) assign(lhs, rhs *hdl.Expr) {
	targets, err := hdl.Targets(lhs)
	if err != nil {
		return
	}
	reads := hdl.Identifiers(rhs)
	// index and range operands of the target are reads too
	hdl.WalkExpr(lhs, func(e *hdl.Expr) bool {
		if e.Kind == hdl.ExprIndex || e.Kind == hdl.ExprRange {
			for _, a := range e.Args[1:] {
				reads = append(reads, hdl.Identifiers(a)...)
			}
		}
		return true
	})
	w.record(targets, reads)
}

func (w *depWalker) sortedWrites() []string {
	out := make([]string, 0, len(w.writes))
	for k := range w.writes {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// collectDependencies fills AlwaysWrites and Dependencies for one module
func (m *Manager) collectDependencies(mod *hdl.Module) error {
	deps := make(map[string]map[string]bool)
	merge := func(w *depWalker) {
		for t, reads := range w.deps {
			if deps[t] == nil {
				deps[t] = make(map[string]bool)
			}
			for r := range reads {
				deps[t][r] = true
			}
		}
	}

	for i, b := range mod.Blocks {
		w := newDepWalker()
		if err := hdl.Dispatch(w, b.Body); err != nil {
			// unknown statement kinds are reported when the CFG is built
			continue
		}
		m.CollectWrites(mod.Name, i, w.sortedWrites())
		merge(w)
	}

	if len(mod.Assigns) > 0 {
		w := newDepWalker()
		for _, a := range mod.Assigns {
			w.assign(a.LHS, a.RHS)
		}
		m.CollectWrites(mod.Name, AssignGroup, w.sortedWrites())
		merge(w)
	}

	out := make(map[string][]string, len(deps))
	for t, reads := range deps {
		list := make([]string, 0, len(reads))
		for r := range reads {
			list = append(list, r)
		}
		sort.Strings(list)
		out[t] = list
	}
	m.Dependencies[mod.Name] = out
	return nil
}
