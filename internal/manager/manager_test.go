package manager

import (
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-at-pretension-io/hdl-symex/internal/hdl"
)

func nestedDesign() *hdl.Design {
	leaf := &hdl.Module{Name: "leaf"}
	sub := &hdl.Module{
		Name:      "sub",
		Instances: []*hdl.Instance{{Module: "leaf", Name: "u_leaf"}},
	}
	top := &hdl.Module{
		Name: "top",
		Instances: []*hdl.Instance{
			{Module: "sub", Name: "u0"},
			{Module: "sub", Name: "u1"},
		},
	}
	return &hdl.Design{Modules: []*hdl.Module{leaf, sub, top}}
}

func TestInstanceSlots(t *testing.T) {
	m, err := New(nestedDesign(), Options{})
	require.NoError(t, err)

	assert.Equal(t, "top", m.Top)
	assert.Equal(t, []string{"top", "sub_0", "sub_1", "leaf_0"}, m.NamesList)
	assert.Equal(t, "sub_0", m.InstanceParent["leaf_0"])
	assert.Equal(t, "top", m.InstanceParent["sub_1"])
	assert.Equal(t, "u1", m.InstanceDecl["sub_1"].Name)
	assert.Equal(t, []string{"sub_0", "sub_1"}, m.IntermoduleDependencies["top"])
	assert.Equal(t, 2, m.InstanceCount["sub"])
	assert.Equal(t, "leaf", m.ModuleOf("leaf_0"))
	require.Len(t, m.Hierarchy, 1)
	assert.Contains(t, m.Hierarchy[0], "level 2 (1): leaf")
}

func TestTopModule(t *testing.T) {
	d := nestedDesign()
	top, err := TopModule(d)
	require.NoError(t, err)
	assert.Equal(t, "top", top)

	d.Top = "missing"
	_, err = TopModule(d)
	assert.Error(t, err)

	d.Top = ""
	d.Modules[2].Instances = append(d.Modules[2].Instances, &hdl.Instance{Module: "ghost", Name: "g"})
	_, err = New(d, Options{})
	assert.ErrorContains(t, err, "unknown module ghost")
}

func checkerDesign() *hdl.Design {
	a, b, c, in := hdl.Ident("a"), hdl.Ident("b"), hdl.Ident("c"), hdl.Ident("in")
	top := &hdl.Module{
		Name: "top",
		Ports: []*hdl.Port{
			{Name: "in", Direction: hdl.Input, Width: 4},
		},
		Decls: []*hdl.Decl{
			{Name: "a", Width: 4}, {Name: "b", Width: 4}, {Name: "c", Width: 4},
		},
		Assigns: []*hdl.ContinuousAssign{{LHS: b, RHS: in}},
		Blocks: []*hdl.ProcBlock{
			{Kind: hdl.Sequential, Body: hdl.Block(hdl.NonBlocking(a, hdl.Binary("+", b, hdl.Sized(4, 1))))},
			{Kind: hdl.Sequential, Body: hdl.Block(hdl.NonBlocking(c, hdl.Sized(4, 0)))},
			{Kind: hdl.Combinational, Body: hdl.Block(
				hdl.If(hdl.Binary("==", a, hdl.Sized(4, 9)),
					hdl.Block(hdl.ExprStmt(hdl.Call("$error", hdl.Str("a hit 9")))), nil),
				hdl.Assert(hdl.Binary("!=", c, hdl.Sized(4, 3))),
			)},
		},
	}
	return &hdl.Design{Modules: []*hdl.Module{top}}
}

func TestAssertionsAndCone(t *testing.T) {
	m, err := New(checkerDesign(), Options{})
	require.NoError(t, err)

	require.Len(t, m.Assertions, 1)
	as := m.Assertions[0]
	assert.Equal(t, KindMarker, as.Kind)
	assert.Equal(t, 2, as.Block)
	assert.Equal(t, "a hit 9", as.Message)
	assert.Equal(t, []string{"a"}, as.Signals)

	assert.Equal(t, []BlockRef{{Module: "top", Index: 0}}, m.BlocksOfInterest[0])
	assert.Equal(t, []string{"a", "b", "in"}, m.ConeSignals(as))
	assert.Equal(t, []BlockRef{{"top", AssignGroup}, {"top", 0}}, m.TransitiveBlocks(as))

	assert.Equal(t, []string{"b"}, m.AlwaysWrites[BlockRef{"top", AssignGroup}])
	assert.Equal(t, []string{"c"}, m.AlwaysWrites[BlockRef{"top", 1}])
	assert.Equal(t, "top.assign", BlockRef{"top", AssignGroup}.String())
	assert.Equal(t, "top.block1", BlockRef{"top", 1}.String())

	marker := hdl.FirstStmt(checkerDesign().Modules[0].Blocks[2].Body.Stmts[0].Then)
	assert.Nil(t, m.AssertionAt(marker), "lookup is by statement identity")
}

func TestImmediateAssertions(t *testing.T) {
	d := checkerDesign()
	m, err := New(d, Options{SystemVerilog: true})
	require.NoError(t, err)

	require.Len(t, m.Assertions, 2)
	imm := m.Assertions[1]
	assert.Equal(t, KindImmediate, imm.Kind)
	assert.Equal(t, "!", imm.Violation.Op)
	assert.Equal(t, []string{"c"}, imm.Signals)
	assert.Equal(t, []BlockRef{{"top", 1}}, m.BlocksOfInterest[1])

	stmt := d.Modules[0].Blocks[2].Body.Stmts[1]
	assert.Same(t, imm, m.AssertionAt(stmt))
}

func TestMarkerDetection(t *testing.T) {
	assert.True(t, IsMarker(hdl.ExprStmt(hdl.Call("$fatal"))))
	assert.True(t, IsMarker(hdl.ExprStmt(hdl.Call("$display", hdl.Str("ASSERTION failed")))))
	assert.False(t, IsMarker(hdl.ExprStmt(hdl.Call("$display", hdl.Str("hello")))))
	assert.False(t, IsMarker(hdl.Assign(hdl.Ident("x"), hdl.Sized(1, 1))))
	assert.False(t, IsMarker(nil))
}

func TestControlDependencies(t *testing.T) {
	mod := &hdl.Module{
		Name: "top",
		Blocks: []*hdl.ProcBlock{{Kind: hdl.Sequential, Body: hdl.Block(
			hdl.If(hdl.Ident("en"),
				hdl.NonBlocking(hdl.Index(hdl.Ident("mem"), hdl.Ident("addr")), hdl.Ident("data")),
				nil),
		)}},
	}
	m, err := New(&hdl.Design{Modules: []*hdl.Module{mod}}, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"addr", "data", "en"}, m.Dependencies["top"]["mem"])
}

func TestReferencedSignalsFallback(t *testing.T) {
	assert.Equal(t, []string{"x", "y"}, ReferencedSignals(hdl.Binary("&&", hdl.Ident("x"), hdl.Ident("y"))))
	assert.Empty(t, ReferencedSignals(hdl.Const("4'hF")))
	assert.Empty(t, ReferencedSignals(nil))
}

func TestDedupBookkeeping(t *testing.T) {
	m, err := New(nestedDesign(), Options{})
	require.NoError(t, err)

	key := ScheduleKey([]string{PathCode("top", 0, 1), PathCode("sub_0", 0, 0)})
	assert.Equal(t, "top@0:1|sub_0@0:0", key)
	assert.False(t, m.IsCompleted(key))
	m.MarkCompleted(key)
	assert.True(t, m.IsCompleted(key))

	child := m.NewChild("sub_0")
	assert.True(t, child.IsChild)

	assert.False(t, child.CheckSeenModule("sub_0", "0:0", 42))
	assert.True(t, m.CheckSeenModule("sub_0", "0:0", 42), "memo is shared with the parent")
	assert.False(t, m.CheckSeenModule("sub_0", "0:0", 7))

	m.MarkSeen("top", 3)
	assert.True(t, child.Seen("top", 3))
	assert.Equal(t, 1, m.SeenCodes("top"))

	m.ResetBatch()
	assert.False(t, m.Seen("top", 3))
	assert.False(t, m.CheckSeenModule("sub_0", "0:0", 7))
	assert.Equal(t, 1, m.CompletedCount())

	child.AssertionViolation = true
	assert.False(t, m.AssertionViolation)
	child.ResetIteration()
	assert.False(t, child.AssertionViolation)
}

func TestAssertionScanReportsUnknownStatement(t *testing.T) {
	mod := &hdl.Module{
		Name: "top",
		Blocks: []*hdl.ProcBlock{{Kind: hdl.Combinational, Body: hdl.Block(
			hdl.If(hdl.Ident("a"), hdl.ExprStmt(hdl.Call("$error", hdl.Str("first"))), nil),
			&hdl.Stmt{Kind: "fork", Line: 7},
			hdl.If(hdl.Ident("b"), hdl.ExprStmt(hdl.Call("$error", hdl.Str("second"))), nil),
		)}},
	}
	logger, hook := logtest.NewNullLogger()
	m, err := New(&hdl.Design{Modules: []*hdl.Module{mod}}, Options{Log: logger})
	require.NoError(t, err)

	require.Len(t, m.Assertions, 1)
	assert.Equal(t, "first", m.Assertions[0].Message)
	require.Len(t, hook.Entries, 1)
	entry := hook.LastEntry()
	assert.Equal(t, logrus.WarnLevel, entry.Level)
	assert.Contains(t, entry.Message, `"fork"`)
	assert.Equal(t, "top", entry.Data["module"])
	assert.Equal(t, 0, entry.Data["block"])
}
