package hdl

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-at-pretension-io/hdl-symex/internal/smt"
)

func TestParseLiteral(t *testing.T) {
	tests := []struct {
		text  string
		value uint64
		width int
	}{
		{"42", 42, 32},
		{"8'hFF", 0xff, 8},
		{"4'b1010", 10, 4},
		{"4'd3", 3, 4},
		{"'b11", 3, 32},
		{"12'o17", 15, 12},
		{"8'sd5", 5, 8},
		{"4'b1x0z", 8, 4},
		{"32'hDEAD_BEEF", 0xdeadbeef, 32},
		{"4'hFF", 0xf, 4},
		{"128'h1", 1, smt.MaxWidth},
		{"'0", 0, 32},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			v, w, err := ParseLiteral(tt.text)
			require.NoError(t, err)
			assert.Equal(t, tt.value, v)
			assert.Equal(t, tt.width, w)
		})
	}

	for _, bad := range []string{"", "8'q1", "x'h1", "8'h"} {
		_, _, err := ParseLiteral(bad)
		assert.Error(t, err, bad)
	}
}

func TestTargetsDecomposesLHS(t *testing.T) {
	lhs := Concat(
		Index(Ident("a"), Const("3")),
		Range(Ident("b"), Const("7"), Const("4")),
		Member(Ident("s"), "f"),
	)
	names, err := Targets(lhs)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "s.f"}, names)

	_, err = Targets(Binary("+", Ident("a"), Ident("b")))
	var unsupported *UnsupportedConstructError
	require.True(t, errors.As(err, &unsupported))
	assert.Equal(t, "lhs", unsupported.Kind)
}

func TestIdentifiersSkipsCallNames(t *testing.T) {
	e := Binary("&&",
		Binary("==", Ident("a"), Call("$past", Ident("b"))),
		Binary("<", Member(Ident("s"), "x"), Ident("a")),
	)
	assert.Equal(t, []string{"a", "b", "s.x"}, Identifiers(e))
}

func TestDispatchRejectsUnknownKind(t *testing.T) {
	w := &Walker{}
	err := Dispatch(w, &Stmt{Kind: "fork", Line: 12})
	var unsupported *UnsupportedConstructError
	require.True(t, errors.As(err, &unsupported))
	assert.Contains(t, err.Error(), "line 12")
}

type assignCounter struct {
	Walker
	n int
}

func (c *assignCounter) VisitAssign(*Stmt) error {
	c.n++
	return nil
}

func TestWalkerReachesNestedAssignments(t *testing.T) {
	body := Block(
		Assign(Ident("a"), Const("1")),
		If(Ident("a"),
			Block(NonBlocking(Ident("b"), Const("0"))),
			Case(Ident("c"),
				Arm(Assign(Ident("d"), Const("1")), Const("0")),
				Arm(Assign(Ident("d"), Const("2"))),
			)),
		For(Assign(Ident("i"), Const("0")), Binary("<", Ident("i"), Const("4")),
			Assign(Ident("i"), Binary("+", Ident("i"), Const("1"))),
			Assign(Ident("e"), Ident("i"))),
	)
	c := &assignCounter{}
	c.Self = c
	require.NoError(t, Dispatch(c, body))
	assert.Equal(t, 7, c.n)
}

func TestExprString(t *testing.T) {
	e := Ternary(Binary("==", Index(Ident("a"), Const("0")), Const("1'b1")),
		Concat(Ident("b"), Range(Ident("c"), Const("3"), Const("0"))),
		Unary("~", Ident("d")))
	assert.Equal(t, "((a[0] == 1'b1) ? {b, c[3:0]} : ~(d))", e.String())
}

func TestModuleWidth(t *testing.T) {
	m := &Module{
		Ports: []*Port{{Name: "a", Direction: Input, Width: 8}},
		Decls: []*Decl{{Name: "i", Kind: "integer"}, {Name: "r", Kind: "reg"}},
	}
	w, ok := m.Width("a")
	assert.True(t, ok)
	assert.Equal(t, 8, w)
	w, _ = m.Width("i")
	assert.Equal(t, 32, w)
	w, _ = m.Width("r")
	assert.Equal(t, 1, w)
	_, ok = m.Width("missing")
	assert.False(t, ok)
	assert.Equal(t, []string{"a"}, m.Inputs())
}
