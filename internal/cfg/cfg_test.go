package cfg

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-at-pretension-io/hdl-symex/internal/hdl"
)

func set(name string, v string) *hdl.Stmt {
	return hdl.Assign(hdl.Ident(name), hdl.Const(v))
}

func build(t *testing.T, body *hdl.Stmt) *CFG {
	t.Helper()
	g, err := Build(&hdl.ProcBlock{Kind: hdl.Combinational, Body: body}, 0)
	require.NoError(t, err)
	return g
}

func TestIndependentIfsDoublePaths(t *testing.T) {
	for n := 0; n <= 5; n++ {
		var stmts []*hdl.Stmt
		for i := 0; i < n; i++ {
			stmts = append(stmts, hdl.If(hdl.Ident("c"), set("a", "1"), nil))
		}
		g := build(t, hdl.Block(stmts...))
		assert.Equal(t, 1<<n, g.NumPaths, "n=%d", n)
		assert.Len(t, g.Paths, 1<<n, "n=%d", n)
	}
}

func TestCaseArmsCount(t *testing.T) {
	for k := 1; k <= 6; k++ {
		var items []*hdl.CaseItem
		for i := 0; i < k; i++ {
			items = append(items, hdl.Arm(set("y", "1"), hdl.Sized(4, uint64(i))))
		}
		g := build(t, hdl.Case(hdl.Ident("sel"), items...))
		assert.Equal(t, k, g.NumPaths)
		assert.Len(t, g.Paths, k)
		for i, p := range g.Paths {
			assert.Equal(t, Arm(i), g.Directions(p)[0])
		}
	}
}

func TestLoopFreeEstimateMatchesPaths(t *testing.T) {
	body := hdl.Block(
		hdl.If(hdl.Ident("a"),
			hdl.If(hdl.Ident("b"), set("x", "1"), nil),
			hdl.Case(hdl.Ident("s"),
				hdl.Arm(set("x", "2"), hdl.Const("0")),
				hdl.Arm(hdl.If(hdl.Ident("c"), set("x", "3"), set("x", "4")), hdl.Const("1")),
				hdl.Arm(set("x", "5")),
			)),
		hdl.If(hdl.Ident("d"), set("y", "1"), set("y", "0")),
	)
	g := build(t, body)
	assert.Equal(t, 12, g.NumPaths)
	assert.Len(t, g.Paths, g.NumPaths)
	assert.False(t, g.Truncated)
}

func TestPartitionIsOrderPreserving(t *testing.T) {
	a, b, d := set("a", "1"), set("b", "1"), set("d", "1")
	branch := hdl.If(hdl.Ident("c"), b, nil)
	g := build(t, hdl.Block(a, branch, d))

	require.Len(t, g.Blocks, 4)
	assert.Equal(t, []*hdl.Stmt{a}, g.Blocks[0].Stmts)
	assert.Same(t, branch, g.Blocks[0].Branch)
	assert.Equal(t, []*hdl.Stmt{b}, g.Blocks[1].Stmts)
	assert.Empty(t, g.Blocks[2].Stmts)
	assert.Equal(t, []*hdl.Stmt{d}, g.Blocks[3].Stmts)
	assert.Equal(t, 3, g.Exit)

	assert.Equal(t, []Path{{0, 1, 3}, {0, 2, 3}}, g.Paths)
	assert.Equal(t, []Direction{Then, Fall, Fall}, g.Directions(g.Paths[0]))
	assert.Equal(t, []Direction{Else, Fall, Fall}, g.Directions(g.Paths[1]))
	assert.Equal(t, []Edge{{0, 1, Then}, {0, 2, Else}, {1, 3, Fall}, {2, 3, Fall}}, g.Edges)
}

func TestLoopIsExecutedOrSkipped(t *testing.T) {
	init := set("i", "0")
	step := hdl.Assign(hdl.Ident("i"), hdl.Binary("+", hdl.Ident("i"), hdl.Const("1")))
	body := hdl.Assign(hdl.Index(hdl.Ident("v"), hdl.Ident("i")), hdl.Const("1'b1"))
	loop := hdl.For(init, hdl.Binary("<", hdl.Ident("i"), hdl.Const("4")), step, body)
	g := build(t, hdl.Block(loop))

	assert.Equal(t, 2, g.NumPaths)
	require.Len(t, g.Paths, 2)
	assert.Equal(t, []*hdl.Stmt{init}, g.Blocks[0].Stmts)
	assert.Equal(t, []*hdl.Stmt{body, step}, g.Blocks[1].Stmts)
	assert.Equal(t, LoopTaken, g.Directions(g.Paths[0])[0])
	assert.Equal(t, LoopSkipped, g.Directions(g.Paths[1])[0])
	assert.Equal(t, []string{"i", "v"}, g.Writes)
}

func TestLoopWithBranchesIsApproximate(t *testing.T) {
	loop := hdl.While(hdl.Ident("go"), hdl.If(hdl.Ident("c"), set("a", "1"), set("a", "0")))
	g := build(t, loop)
	assert.Equal(t, 4, g.NumPaths)
	assert.Len(t, g.Paths, 3)
}

func TestWritesDecomposeTargets(t *testing.T) {
	body := hdl.Block(
		hdl.NonBlocking(hdl.Concat(hdl.Ident("hi"), hdl.Range(hdl.Ident("lo"), hdl.Const("3"), hdl.Const("0"))), hdl.Ident("x")),
		hdl.If(hdl.Ident("c"), hdl.Assign(hdl.Member(hdl.Ident("st"), "f"), hdl.Const("0")), nil),
		hdl.ExprStmt(hdl.Unary("++", hdl.Ident("cnt"))),
	)
	w, err := Writes(body)
	require.NoError(t, err)
	assert.Equal(t, []string{"cnt", "hi", "lo", "st.f"}, w)
}

func TestUnsupportedConstructSurfaces(t *testing.T) {
	_, err := Build(&hdl.ProcBlock{Body: hdl.Block(&hdl.Stmt{Kind: "disable", Line: 7})}, 0)
	var unsupported *hdl.UnsupportedConstructError
	require.True(t, errors.As(err, &unsupported))
	assert.Equal(t, 7, unsupported.Line)

	_, err = Build(&hdl.ProcBlock{Body: hdl.Assign(hdl.Const("1"), hdl.Const("2"))}, 0)
	require.True(t, errors.As(err, &unsupported))
}

func TestPathLimitTruncates(t *testing.T) {
	var stmts []*hdl.Stmt
	for i := 0; i < 4; i++ {
		stmts = append(stmts, hdl.If(hdl.Ident("c"), set("a", "1"), nil))
	}
	g, err := Build(&hdl.ProcBlock{Body: hdl.Block(stmts...)}, 5)
	require.NoError(t, err)
	assert.True(t, g.Truncated)
	assert.Len(t, g.Paths, 5)
	assert.Equal(t, 16, g.NumPaths)
}

func TestEmptyBlock(t *testing.T) {
	g, err := Build(&hdl.ProcBlock{Kind: hdl.Sequential}, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, g.NumPaths)
	assert.Equal(t, []Path{{0}}, g.Paths)
	assert.Equal(t, hdl.Sequential, g.Kind())
}
