package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-at-pretension-io/hdl-symex/internal/cfg"
	"github.com/robert-at-pretension-io/hdl-symex/internal/hdl"
	"github.com/robert-at-pretension-io/hdl-symex/internal/manager"
	"github.com/robert-at-pretension-io/hdl-symex/internal/smt"
	"github.com/robert-at-pretension-io/hdl-symex/internal/state"
)

func setup(t *testing.T, d *hdl.Design, opts manager.Options) (*Frame, *manager.Manager) {
	t.Helper()
	m, err := manager.New(d, opts)
	require.NoError(t, err)
	st := state.New(smt.NewSolver())
	for _, inst := range m.NamesList {
		st.Bind(inst, d.Module(m.ModuleOf(inst)))
	}
	return NewFrame(m, st, m.Top), m
}

func single(body *hdl.Stmt, ports ...*hdl.Port) *hdl.Design {
	return &hdl.Design{Modules: []*hdl.Module{{
		Name:   "top",
		Ports:  ports,
		Decls:  []*hdl.Decl{{Name: "y", Width: 4}, {Name: "x", Width: 4}, {Name: "cnt", Width: 4}},
		Blocks: []*hdl.ProcBlock{{Kind: hdl.Combinational, Body: body}},
	}}}
}

func value(t *testing.T, f *Frame, sig string) uint64 {
	t.Helper()
	v, ok := f.State.Get(f.Instance, sig)
	require.True(t, ok, "%s unset", sig)
	c, ok := v.Value()
	require.True(t, ok, "%s is symbolic: %s", sig, v)
	return c
}

func TestIfElsePaths(t *testing.T) {
	body := hdl.Block(hdl.If(hdl.Ident("sel"),
		hdl.Assign(hdl.Ident("y"), hdl.Sized(4, 1)),
		hdl.Assign(hdl.Ident("y"), hdl.Sized(4, 2))))
	sel := &hdl.Port{Name: "sel", Direction: hdl.Input, Width: 1}
	d := single(body, sel)
	g, err := cfg.Build(d.Modules[0].Blocks[0], 0)
	require.NoError(t, err)
	require.Len(t, g.Paths, 2)

	for i, want := range []uint64{1, 2} {
		f, _ := setup(t, d, manager.Options{})
		out, err := New(nil, false).WalkPath(f, g, g.Paths[i])
		require.NoError(t, err)
		assert.False(t, out.Stop())
		assert.Equal(t, want, value(t, f, "y"))
		require.Len(t, f.State.PC.Conjuncts(), 1)
	}
}

func TestInfeasibleBranchAbandons(t *testing.T) {
	body := hdl.Block(
		hdl.Assign(hdl.Ident("x"), hdl.Sized(4, 0)),
		hdl.If(hdl.Ident("x"), hdl.Assign(hdl.Ident("y"), hdl.Sized(4, 1)), nil),
	)
	d := single(body)
	g, err := cfg.Build(d.Modules[0].Blocks[0], 0)
	require.NoError(t, err)

	f, m := setup(t, d, manager.Options{})
	out, err := New(nil, false).WalkPath(f, g, g.Paths[0])
	require.NoError(t, err)
	assert.True(t, out.Abandon)
	assert.True(t, m.Abandon)
	_, written := f.State.Get("top", "y")
	assert.False(t, written, "the abandoned body must not run")

	f, _ = setup(t, d, manager.Options{})
	out, err = New(nil, false).WalkPath(f, g, g.Paths[1])
	require.NoError(t, err)
	assert.False(t, out.Abandon)
}

func TestCaseArmConditions(t *testing.T) {
	s := hdl.Ident("s")
	body := hdl.Block(hdl.Case(s,
		hdl.Arm(hdl.Assign(hdl.Ident("y"), hdl.Sized(4, 1)), hdl.Sized(2, 0)),
		hdl.Arm(hdl.Assign(hdl.Ident("y"), hdl.Sized(4, 2)), hdl.Sized(2, 1), hdl.Sized(2, 2)),
		hdl.Arm(hdl.Assign(hdl.Ident("y"), hdl.Sized(4, 3))),
	))
	d := single(body, &hdl.Port{Name: "s", Direction: hdl.Input, Width: 2})
	g, err := cfg.Build(d.Modules[0].Blocks[0], 0)
	require.NoError(t, err)
	require.Len(t, g.Paths, 3)

	f, _ := setup(t, d, manager.Options{})
	out, err := New(nil, false).WalkPath(f, g, g.Paths[2])
	require.NoError(t, err)
	require.False(t, out.Stop())
	assert.Equal(t, uint64(3), value(t, f, "y"))

	// only s == 3 reaches the default arm
	sym, _ := f.State.Get("top", "s")
	pc := f.State.PC
	assert.False(t, pc.Assume(smt.Eq(sym, smt.Const(1, 2))))
	assert.True(t, pc.Assume(smt.Eq(sym, smt.Const(3, 2))))
}

func TestMarkerViolation(t *testing.T) {
	body := hdl.Block(
		hdl.Assign(hdl.Ident("cnt"), hdl.Binary("+", hdl.Ident("x"), hdl.Sized(4, 1))),
		hdl.If(hdl.Binary("==", hdl.Ident("cnt"), hdl.Sized(4, 3)),
			hdl.Block(hdl.ExprStmt(hdl.Call("$error", hdl.Str("cnt is 3")))), nil),
	)
	d := single(body)
	g, err := cfg.Build(d.Modules[0].Blocks[0], 0)
	require.NoError(t, err)

	f, m := setup(t, d, manager.Options{})
	out, err := New(nil, false).WalkPath(f, g, g.Paths[0])
	require.NoError(t, err)
	require.True(t, out.Violation)
	assert.True(t, m.AssertionViolation)
	assert.Same(t, m.Assertions[0], out.Assertion)

	res, model := smt.Decide(append(f.State.PC.Conjuncts(), out.Condition))
	require.Equal(t, smt.Sat, res)
	v, _ := model.Value("top.x@0")
	assert.Equal(t, uint64(2), v)

	f, _ = setup(t, d, manager.Options{})
	out, err = New(nil, false).WalkPath(f, g, g.Paths[1])
	require.NoError(t, err)
	assert.False(t, out.Violation)
}

func TestImmediateAssert(t *testing.T) {
	a := hdl.Ident("x")
	body := hdl.Block(
		hdl.Assert(hdl.Binary("==", hdl.Sized(4, 1), hdl.Sized(4, 1))),
		hdl.Assert(hdl.Binary("<", a, hdl.Sized(4, 15))),
	)
	d := single(body)
	g, err := cfg.Build(d.Modules[0].Blocks[0], 0)
	require.NoError(t, err)

	f, m := setup(t, d, manager.Options{SystemVerilog: true})
	require.Len(t, m.Assertions, 2)
	out, err := New(nil, false).WalkPath(f, g, g.Paths[0])
	require.NoError(t, err)
	require.True(t, out.Violation)
	assert.Equal(t, 1, out.Assertion.ID)
	assert.Empty(t, f.State.PC.Conjuncts(), "the feasibility check leaves no frame behind")

	f, _ = setup(t, d, manager.Options{})
	out, err = New(nil, false).WalkPath(f, g, g.Paths[0])
	require.NoError(t, err)
	assert.False(t, out.Violation, "assert statements are plain statements outside SystemVerilog mode")
}

func TestLoopTakenAndSkipped(t *testing.T) {
	i := hdl.Ident("cnt")
	body := hdl.Block(hdl.For(
		hdl.Assign(i, hdl.Sized(4, 0)),
		hdl.Binary("<", i, hdl.Ident("x")),
		hdl.Assign(i, hdl.Binary("+", i, hdl.Sized(4, 1))),
		hdl.Assign(hdl.Ident("y"), i),
	))
	d := single(body)
	g, err := cfg.Build(d.Modules[0].Blocks[0], 0)
	require.NoError(t, err)
	require.Len(t, g.Paths, 2)

	f, _ := setup(t, d, manager.Options{})
	_, err = New(nil, false).WalkPath(f, g, g.Paths[0])
	require.NoError(t, err)
	assert.Equal(t, uint64(0), value(t, f, "y"))
	assert.Equal(t, uint64(1), value(t, f, "cnt"))

	f, _ = setup(t, d, manager.Options{})
	_, err = New(nil, false).WalkPath(f, g, g.Paths[1])
	require.NoError(t, err)
	assert.Equal(t, uint64(0), value(t, f, "cnt"))
	// skipping requires !(0 < x), so x is zero
	x, _ := f.State.Get("top", "x")
	assert.False(t, f.State.PC.Assume(smt.Ne(x, smt.Const(0, 4))))
}

func TestUnsupportedStatementPolicy(t *testing.T) {
	d := single(hdl.Block())
	odd := &hdl.Stmt{Kind: "disable", Line: 12}

	f, _ := setup(t, d, manager.Options{})
	_, err := New(nil, false).VisitStmt(f, odd)
	assert.NoError(t, err)

	_, err = New(nil, true).VisitStmt(f, odd)
	var uc *hdl.UnsupportedConstructError
	require.ErrorAs(t, err, &uc)
	assert.Equal(t, 12, uc.Line)
}

func TestIncrementAndLocals(t *testing.T) {
	d := single(hdl.Block())
	f, _ := setup(t, d, manager.Options{})
	w := New(nil, false)

	_, err := w.VisitStmt(f, hdl.Local(&hdl.Decl{Name: "k", Kind: "integer", Init: hdl.Const("5")}))
	require.NoError(t, err)
	_, err = w.VisitStmt(f, hdl.ExprStmt(hdl.Unary("++", hdl.Ident("k"))))
	require.NoError(t, err)
	assert.Equal(t, uint64(6), value(t, f, "k"))
	assert.Equal(t, hdl.IntegerWidth, f.State.Width("top", "k"))
}

func hierDesign() *hdl.Design {
	sub := &hdl.Module{
		Name: "sub",
		Ports: []*hdl.Port{
			{Name: "a", Direction: hdl.Input, Width: 4},
			{Name: "b", Direction: hdl.Output, Width: 4},
		},
		Assigns: []*hdl.ContinuousAssign{
			{LHS: hdl.Ident("b"), RHS: hdl.Ident("t")},
			{LHS: hdl.Ident("t"), RHS: hdl.Binary("+", hdl.Ident("a"), hdl.Sized(4, 1))},
		},
		Decls: []*hdl.Decl{{Name: "t", Width: 4}},
	}
	top := &hdl.Module{
		Name:  "top",
		Decls: []*hdl.Decl{{Name: "x", Width: 4, Init: hdl.Sized(4, 2)}, {Name: "y", Width: 4}},
		Instances: []*hdl.Instance{{Module: "sub", Name: "u0", Bindings: []*hdl.Binding{
			{Port: "a", Expr: hdl.Binary("+", hdl.Ident("x"), hdl.Sized(4, 1))},
			{Port: "b", Expr: hdl.Ident("y")},
		}}},
	}
	return &hdl.Design{Modules: []*hdl.Module{top, sub}}
}

func TestSettlePortsAndAssignOrder(t *testing.T) {
	d := hierDesign()
	f, _ := setup(t, d, manager.Options{})
	w := New(nil, false)

	order := w.assignOrder(d.Module("sub"))
	require.Len(t, order, 2)
	assert.Equal(t, "t", order[0].LHS.Name)

	require.NoError(t, w.VisitModule(f))
	child := f.Child("sub_0")
	require.NoError(t, w.VisitModule(child))

	assert.Equal(t, uint64(2), value(t, f, "x"))
	assert.Equal(t, uint64(3), value(t, child, "a"))
	assert.Equal(t, uint64(4), value(t, child, "b"))
	assert.Equal(t, uint64(4), value(t, f, "y"))
}

func TestChildReplayIsIgnored(t *testing.T) {
	d := hierDesign()
	d.Modules[1].Blocks = []*hdl.ProcBlock{{Kind: hdl.Sequential, Body: hdl.Block(
		hdl.NonBlocking(hdl.Ident("t"), hdl.Ident("a")),
	)}}
	g, err := cfg.Build(d.Modules[1].Blocks[0], 0)
	require.NoError(t, err)

	f, m := setup(t, d, manager.Options{})
	w := New(nil, false)
	var stack Stack
	stack.Push(f)

	child := f.Child("sub_0")
	require.NoError(t, w.VisitModule(f))
	require.NoError(t, w.VisitModule(child))
	stack.Push(child)
	out, err := w.WalkInstance(child, []Plan{{Graph: g, Path: g.Paths[0]}}, 0)
	require.NoError(t, err)
	assert.False(t, out.Ignore)
	stack.Return(out)
	assert.False(t, m.Ignore)

	again := f.Child("sub_0")
	stack.Push(again)
	out, err = w.WalkInstance(again, []Plan{{Graph: g, Path: g.Paths[0]}}, 0)
	require.NoError(t, err)
	assert.True(t, out.Ignore)
	stack.Return(out)
	assert.True(t, m.Ignore, "ignore propagates to the caller")
	assert.Equal(t, 1, stack.Depth())
	assert.Equal(t, 1, m.SeenCodes("sub_0"))
}

func TestOutcomeMerge(t *testing.T) {
	a := Outcome{Instance: "top"}
	b := Outcome{Instance: "sub_0", Violation: true, Ignore: true}
	c := Outcome{Instance: "sub_1", Violation: true}
	got := a.Merge(b).Merge(c)
	assert.True(t, got.Violation)
	assert.True(t, got.Ignore)
	assert.Equal(t, "sub_0", got.Instance)
	assert.True(t, got.Stop())
}
