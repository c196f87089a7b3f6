// Package search walks chosen CFG paths over the symbolic state: it applies
// assignment semantics, forces branch directions into the path condition and
// reports assertion violations.
package search

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/cespare/xxhash/v2"
	"github.com/sirupsen/logrus"

	"github.com/robert-at-pretension-io/hdl-symex/internal/cfg"
	"github.com/robert-at-pretension-io/hdl-symex/internal/hdl"
	"github.com/robert-at-pretension-io/hdl-symex/internal/manager"
	"github.com/robert-at-pretension-io/hdl-symex/internal/smt"
)

// DepthFirst is the path walker
type DepthFirst struct {
	// Strict turns unsupported constructs into errors instead of skipped statements
	Strict bool

	log   logrus.FieldLogger
	order map[*hdl.Module][]*hdl.ContinuousAssign
}

// New returns a walker. A nil logger discards output.
func New(log logrus.FieldLogger, strict bool) *DepthFirst {
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	return &DepthFirst{
		Strict: strict,
		log:    log,
		order:  make(map[*hdl.Module][]*hdl.ContinuousAssign),
	}
}

// Plan is the path chosen for one procedural block in one cycle
type Plan struct {
	Graph *cfg.CFG
	Path  cfg.Path
}

// WalkInstance walks every planned block of a frame in order. code is the
// instance's path code for the cycle; child frames use it to detect replays.
// The instance is settled on entry and after every block, so bindings and
// continuous assigns observe values written earlier in the same cycle.
func (d *DepthFirst) WalkInstance(f *Frame, plans []Plan, code int) (Outcome, error) {
	m := f.Manager
	if err := d.Settle(f); err != nil {
		return Outcome{Instance: f.Instance}, err
	}
	if m.IsChild {
		key := manager.PathCode(f.Instance, f.State.Cycle, code)
		walked := m.Seen(f.Instance, code)
		f.replay = m.CheckSeenModule(f.Instance, key, d.entryFingerprint(f)) && walked
		if f.replay {
			d.log.WithFields(logrus.Fields{
				"instance": f.Instance,
				"path":     key,
				"codes":    m.SeenCodes(f.Instance),
			}).Debug("replaying a walked path code")
		}
	}
	m.MarkSeen(f.Instance, code)

	out := Outcome{Instance: f.Instance, Ignore: f.replay}
	for _, p := range plans {
		res, err := d.WalkPath(f, p.Graph, p.Path)
		if err != nil {
			return out, err
		}
		out = out.Merge(res)
		if out.Stop() {
			break
		}
		if err := d.Settle(f); err != nil {
			return out, err
		}
	}
	return out, nil
}

// entryFingerprint hashes the instance store together with the path condition
func (d *DepthFirst) entryFingerprint(f *Frame) uint64 {
	var buf [16]byte
	binary.LittleEndian.PutUint64(buf[:8], f.State.Fingerprint(f.Instance))
	binary.LittleEndian.PutUint64(buf[8:], f.State.PC.Term().Hash())
	return xxhash.Sum64(buf[:])
}

// WalkPath executes one static path through a CFG
func (d *DepthFirst) WalkPath(f *Frame, g *cfg.CFG, path cfg.Path) (Outcome, error) {
	dirs := g.Directions(path)
	for i, bi := range path {
		bb := g.Blocks[bi]
		for _, s := range bb.Stmts {
			out, err := d.VisitStmt(f, s)
			if err != nil {
				return out, err
			}
			if out.Violation {
				return out, nil
			}
		}
		if bb.Branch == nil {
			continue
		}
		ok, err := d.Branch(f, bb.Branch, dirs[i])
		if err != nil {
			return Outcome{Instance: f.Instance}, err
		}
		if !ok {
			f.Manager.Abandon = true
			return Outcome{Instance: f.Instance, Abandon: true, Ignore: f.replay}, nil
		}
	}
	return Outcome{Instance: f.Instance, Ignore: f.replay}, nil
}

// VisitStmt applies one straight-line statement
func (d *DepthFirst) VisitStmt(f *Frame, s *hdl.Stmt) (Outcome, error) {
	x := &executor{d: d, f: f, out: Outcome{Instance: f.Instance}}
	if err := hdl.Dispatch(x, s); err != nil {
		return x.out, d.skip(f, s, err)
	}
	return x.out, nil
}

// skip swallows unsupported constructs outside strict mode
func (d *DepthFirst) skip(f *Frame, s *hdl.Stmt, err error) error {
	var uc *hdl.UnsupportedConstructError
	if d.Strict || !errors.As(err, &uc) {
		return err
	}
	line := 0
	if s != nil {
		line = s.Line
	}
	d.log.WithFields(logrus.Fields{
		"instance": f.Instance,
		"cycle":    f.State.Cycle,
		"line":     line,
	}).Warnf("skipping statement: %v", err)
	return nil
}

// Branch conjoins the condition selecting dir at s into the path condition.
// It returns false when that direction is infeasible.
func (d *DepthFirst) Branch(f *Frame, s *hdl.Stmt, dir cfg.Direction) (bool, error) {
	cond, err := d.branchCondition(f, s, dir)
	if err != nil {
		if err := d.skip(f, s, err); err != nil {
			return false, err
		}
		// the direction stays unconstrained
		return true, nil
	}
	return f.State.PC.Assume(cond), nil
}

func (d *DepthFirst) branchCondition(f *Frame, s *hdl.Stmt, dir cfg.Direction) (*smt.Term, error) {
	st := f.State
	switch s.Kind {
	case hdl.StmtIf:
		c, err := st.Eval(f.Instance, s.Cond)
		if err != nil {
			return nil, err
		}
		switch dir {
		case cfg.Then:
			return smt.Truthy(c), nil
		case cfg.Else:
			return smt.LNot(c), nil
		}
	case hdl.StmtCase:
		if dir.IsArm() && int(dir) < len(s.Items) {
			return d.armCondition(f, s, int(dir))
		}
	case hdl.StmtLoop:
		c, err := d.loopCondition(f, s)
		if err != nil {
			return nil, err
		}
		switch dir {
		case cfg.LoopTaken:
			return c, nil
		case cfg.LoopSkipped:
			return smt.LNot(c), nil
		}
	}
	return nil, fmt.Errorf("%s at line %d cannot take direction %s", s.Kind, s.Line, dir)
}

// armCondition selects arm i: it matches and no earlier arm does. The
// default arm is taken when no arm matches.
func (d *DepthFirst) armCondition(f *Frame, s *hdl.Stmt, arm int) (*smt.Term, error) {
	subject, err := f.State.Eval(f.Instance, s.Subject)
	if err != nil {
		return nil, err
	}
	matches := make([]*smt.Term, len(s.Items))
	for i, item := range s.Items {
		if item.IsDefault() {
			continue
		}
		m := smt.False()
		for _, v := range item.Values {
			t, err := f.State.Eval(f.Instance, v)
			if err != nil {
				return nil, err
			}
			m = smt.Or(m, smt.Eq(subject, t))
		}
		matches[i] = m
	}

	cond := smt.True()
	limit := arm
	if s.Items[arm].IsDefault() {
		limit = len(s.Items)
	}
	for j := 0; j < limit; j++ {
		if matches[j] != nil {
			cond = smt.And(cond, smt.LNot(matches[j]))
		}
	}
	if matches[arm] != nil {
		cond = smt.And(cond, matches[arm])
	}
	return cond, nil
}

func (d *DepthFirst) loopCondition(f *Frame, s *hdl.Stmt) (*smt.Term, error) {
	if s.Loop == hdl.LoopForever || s.Cond == nil {
		return smt.True(), nil
	}
	c, err := f.State.Eval(f.Instance, s.Cond)
	if err != nil {
		return nil, err
	}
	return smt.Truthy(c), nil
}

// executor applies straight-line statements through the single kind dispatch
type executor struct {
	d   *DepthFirst
	f   *Frame
	out Outcome
}

func (x *executor) VisitBlock(s *hdl.Stmt) error {
	for _, c := range s.Stmts {
		if err := hdl.Dispatch(x, c); err != nil {
			if err := x.d.skip(x.f, c, err); err != nil {
				return err
			}
		}
		if x.out.Violation {
			return nil
		}
	}
	return nil
}

func (x *executor) nested(s *hdl.Stmt) error {
	return &hdl.UnsupportedConstructError{Kind: "stmt", What: "branch outside a branch point", Line: s.Line}
}

func (x *executor) VisitIf(s *hdl.Stmt) error   { return x.nested(s) }
func (x *executor) VisitCase(s *hdl.Stmt) error { return x.nested(s) }
func (x *executor) VisitLoop(s *hdl.Stmt) error { return x.nested(s) }

func (x *executor) VisitExprStmt(s *hdl.Stmt) error {
	if a := x.f.Manager.AssertionAt(s); a != nil {
		return x.marker(a)
	}
	e := s.Expr
	if e == nil || e.Kind != hdl.ExprUnary || (e.Op != "++" && e.Op != "--") {
		// calls such as $display have no effect on the store
		return nil
	}
	st, inst := x.f.State, x.f.Instance
	cur, err := st.Eval(inst, e.Arg(0))
	if err != nil {
		return err
	}
	one := smt.Const(1, cur.Width())
	next := smt.Add(cur, one)
	if e.Op == "--" {
		next = smt.Sub(cur, one)
	}
	return st.Assign(inst, e.Arg(0), next, false)
}

// marker fires when the walk reaches a severity call. The branch guarding it
// was already conjoined, so the path condition is satisfiable here.
func (x *executor) marker(a *manager.Assertion) error {
	if x.f.replay {
		return nil
	}
	cond, err := x.f.State.Eval(x.f.Instance, a.Violation)
	if err != nil {
		return err
	}
	x.violate(a, smt.Truthy(cond))
	return nil
}

func (x *executor) violate(a *manager.Assertion, cond *smt.Term) {
	x.f.Manager.AssertionViolation = true
	x.out.Violation = true
	x.out.Assertion = a
	x.out.Condition = cond
	x.d.log.WithFields(logrus.Fields{
		"instance": x.f.Instance,
		"cycle":    x.f.State.Cycle,
		"line":     a.Line,
	}).Debugf("assertion %d reachable", a.ID)
}

func (x *executor) VisitAssign(s *hdl.Stmt) error {
	st, inst := x.f.State, x.f.Instance
	v, err := st.Eval(inst, s.RHS)
	if err != nil {
		return err
	}
	return st.Assign(inst, s.LHS, v, s.Kind == hdl.StmtNonBlocking)
}

// VisitInstance is a no-op: instances are walked in their own frames
func (x *executor) VisitInstance(*hdl.Stmt) error { return nil }

func (x *executor) VisitDecl(s *hdl.Stmt) error {
	if s.Decl == nil {
		return nil
	}
	st, inst := x.f.State, x.f.Instance
	st.DeclareLocal(inst, s.Decl)
	if s.Decl.Init == nil {
		return nil
	}
	v, err := st.Eval(inst, s.Decl.Init)
	if err != nil {
		return err
	}
	st.Set(inst, s.Decl.Name, v)
	return nil
}

// VisitAssert checks an immediate assertion: it is violated when its
// negation is satisfiable together with the path condition
func (x *executor) VisitAssert(s *hdl.Stmt) error {
	a := x.f.Manager.AssertionAt(s)
	if a == nil || x.f.replay {
		return nil
	}
	cond, err := x.f.State.Eval(x.f.Instance, a.Violation)
	if err != nil {
		return err
	}
	pc := x.f.State.PC
	if !pc.Assume(cond) {
		return nil
	}
	pc.Pop()
	x.violate(a, smt.Truthy(cond))
	return nil
}
