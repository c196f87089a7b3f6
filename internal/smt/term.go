// Package smt models fixed-width bitvector terms and decides them with a SAT backend.
//
// Terms are immutable and built through the constructors in this file, which fold
// constants eagerly. The solver bit-blasts whatever is left into an and-inverter
// circuit and hands it to gini.
package smt

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// MaxWidth is the widest supported bitvector
const MaxWidth = 64

// Op identifies a term constructor
type Op uint8

const (
	OpConst Op = iota
	OpSym
	OpNot
	OpNeg
	OpAnd
	OpOr
	OpXor
	OpAdd
	OpSub
	OpMul
	OpUDiv
	OpURem
	OpShl
	OpLshr
	OpEq
	OpUlt
	OpUle
	OpIte
	OpExtract
	OpConcat
)

var opNames = [...]string{
	OpConst:   "const",
	OpSym:     "sym",
	OpNot:     "bvnot",
	OpNeg:     "bvneg",
	OpAnd:     "bvand",
	OpOr:      "bvor",
	OpXor:     "bvxor",
	OpAdd:     "bvadd",
	OpSub:     "bvsub",
	OpMul:     "bvmul",
	OpUDiv:    "bvudiv",
	OpURem:    "bvurem",
	OpShl:     "bvshl",
	OpLshr:    "bvlshr",
	OpEq:      "=",
	OpUlt:     "bvult",
	OpUle:     "bvule",
	OpIte:     "ite",
	OpExtract: "extract",
	OpConcat:  "concat",
}

func (o Op) String() string {
	if int(o) < len(opNames) {
		return opNames[o]
	}
	return fmt.Sprintf("op(%d)", o)
}

// Term is an immutable bitvector expression. Width 1 terms double as booleans.
type Term struct {
	op     Op
	width  int
	val    uint64
	name   string
	args   []*Term
	hi, lo int
	hash   uint64
}

func (t *Term) Op() Op { return t.op }
func (t *Term) Width() int { return t.width }
func (t *Term) Args() []*Term { return t.args }
func (t *Term) IsConst() bool { return t.op == OpConst }
func (t *Term) IsSym() bool { return t.op == OpSym }
func (t *Term) Name() string { return t.name }
func (t *Term) Hash() uint64 { return t.hash }
func (t *Term) Bounds() (int, int) { return t.hi, t.lo }

// Value returns the constant value, if t is a constant
func (t *Term) Value() (uint64, bool) {
	return t.val, t.op == OpConst
}

// IsTrue reports whether t is the constant 1 of width 1
func (t *Term) IsTrue() bool { return t.op == OpConst && t.val != 0 }

// IsFalse reports whether t is a constant zero
func (t *Term) IsFalse() bool { return t.op == OpConst && t.val == 0 }

// Same reports structural equality by hash
func (t *Term) Same(u *Term) bool {
	return t == u || (t.width == u.width && t.hash == u.hash)
}

func newTerm(op Op, width int, args ...*Term) *Term {
	t := &Term{op: op, width: width, args: args}
	t.rehash()
	return t
}

func (t *Term) rehash() {
	var buf [8]byte
	d := xxhash.New()
	_, _ = d.Write([]byte{byte(t.op), byte(t.width), byte(t.hi), byte(t.lo)})
	binary.LittleEndian.PutUint64(buf[:], t.val)
	_, _ = d.Write(buf[:])
	_, _ = d.WriteString(t.name)
	for _, a := range t.args {
		binary.LittleEndian.PutUint64(buf[:], a.hash)
		_, _ = d.Write(buf[:])
	}
	t.hash = d.Sum64()
}

// Mask returns the all-ones value of width w
func Mask(w int) uint64 {
	if w >= 64 {
		return ^uint64(0)
	}
	return (uint64(1) << uint(w)) - 1
}

func clamp(w int) int {
	if w < 1 {
		return 1
	}
	if w > MaxWidth {
		return MaxWidth
	}
	return w
}

// Const builds a constant of width w, truncating v
func Const(v uint64, w int) *Term {
	w = clamp(w)
	t := &Term{op: OpConst, width: w, val: v & Mask(w)}
	t.rehash()
	return t
}

// Bool builds a width 1 constant
func Bool(b bool) *Term {
	if b {
		return Const(1, 1)
	}
	return Const(0, 1)
}

func True() *Term  { return Bool(true) }
func False() *Term { return Bool(false) }

// Sym builds a free variable
func Sym(name string, w int) *Term {
	t := &Term{op: OpSym, width: clamp(w), name: name}
	t.rehash()
	return t
}

// ZeroExt widens x to w bits. Narrower w is ignored.
func ZeroExt(x *Term, w int) *Term {
	w = clamp(w)
	if w <= x.width {
		return x
	}
	return Concat(Const(0, w-x.width), x)
}

// Resize truncates or zero-extends x to exactly w bits
func Resize(x *Term, w int) *Term {
	w = clamp(w)
	switch {
	case w == x.width:
		return x
	case w < x.width:
		return Extract(x, w-1, 0)
	}
	return ZeroExt(x, w)
}

func align(x, y *Term) (*Term, *Term) {
	w := x.width
	if y.width > w {
		w = y.width
	}
	return ZeroExt(x, w), ZeroExt(y, w)
}

func Not(x *Term) *Term {
	if x.op == OpConst {
		return Const(^x.val, x.width)
	}
	if x.op == OpNot {
		return x.args[0]
	}
	return newTerm(OpNot, x.width, x)
}

func Neg(x *Term) *Term {
	if x.op == OpConst {
		return Const(-x.val, x.width)
	}
	return newTerm(OpNeg, x.width, x)
}

func And(x, y *Term) *Term {
	x, y = align(x, y)
	w := x.width
	switch {
	case x.op == OpConst && y.op == OpConst:
		return Const(x.val&y.val, w)
	case x.IsFalse() || y.IsFalse():
		return Const(0, w)
	case x.op == OpConst && x.val == Mask(w):
		return y
	case y.op == OpConst && y.val == Mask(w):
		return x
	case x.Same(y):
		return x
	}
	return newTerm(OpAnd, w, x, y)
}

func Or(x, y *Term) *Term {
	x, y = align(x, y)
	w := x.width
	switch {
	case x.op == OpConst && y.op == OpConst:
		return Const(x.val|y.val, w)
	case x.IsFalse():
		return y
	case y.IsFalse():
		return x
	case x.op == OpConst && x.val == Mask(w), y.op == OpConst && y.val == Mask(w):
		return Const(Mask(w), w)
	case x.Same(y):
		return x
	}
	return newTerm(OpOr, w, x, y)
}

func Xor(x, y *Term) *Term {
	x, y = align(x, y)
	w := x.width
	switch {
	case x.op == OpConst && y.op == OpConst:
		return Const(x.val^y.val, w)
	case x.IsFalse():
		return y
	case y.IsFalse():
		return x
	case x.Same(y):
		return Const(0, w)
	}
	return newTerm(OpXor, w, x, y)
}

func Add(x, y *Term) *Term {
	x, y = align(x, y)
	switch {
	case x.op == OpConst && y.op == OpConst:
		return Const(x.val+y.val, x.width)
	case x.IsFalse():
		return y
	case y.IsFalse():
		return x
	}
	return newTerm(OpAdd, x.width, x, y)
}

func Sub(x, y *Term) *Term {
	x, y = align(x, y)
	switch {
	case x.op == OpConst && y.op == OpConst:
		return Const(x.val-y.val, x.width)
	case y.IsFalse():
		return x
	case x.Same(y):
		return Const(0, x.width)
	}
	return newTerm(OpSub, x.width, x, y)
}

func Mul(x, y *Term) *Term {
	x, y = align(x, y)
	switch {
	case x.op == OpConst && y.op == OpConst:
		return Const(x.val*y.val, x.width)
	case x.IsFalse() || y.IsFalse():
		return Const(0, x.width)
	case x.op == OpConst && x.val == 1:
		return y
	case y.op == OpConst && y.val == 1:
		return x
	}
	return newTerm(OpMul, x.width, x, y)
}

// UDiv is unsigned division; x/0 is all ones
func UDiv(x, y *Term) *Term {
	x, y = align(x, y)
	if x.op == OpConst && y.op == OpConst {
		if y.val == 0 {
			return Const(Mask(x.width), x.width)
		}
		return Const(x.val/y.val, x.width)
	}
	if y.op == OpConst && y.val == 1 {
		return x
	}
	return newTerm(OpUDiv, x.width, x, y)
}

// URem is unsigned remainder; x%0 is x
func URem(x, y *Term) *Term {
	x, y = align(x, y)
	if x.op == OpConst && y.op == OpConst {
		if y.val == 0 {
			return x
		}
		return Const(x.val%y.val, x.width)
	}
	if y.op == OpConst && y.val == 1 {
		return Const(0, x.width)
	}
	return newTerm(OpURem, x.width, x, y)
}

// Shl shifts x left by s. The result keeps the width of x.
func Shl(x, s *Term) *Term {
	if s.op == OpConst {
		if s.val == 0 {
			return x
		}
		if s.val >= uint64(x.width) {
			return Const(0, x.width)
		}
		if x.op == OpConst {
			return Const(x.val<<s.val, x.width)
		}
	}
	return newTerm(OpShl, x.width, x, s)
}

// Lshr shifts x right by s, filling with zeros
func Lshr(x, s *Term) *Term {
	if s.op == OpConst {
		if s.val == 0 {
			return x
		}
		if s.val >= uint64(x.width) {
			return Const(0, x.width)
		}
		if x.op == OpConst {
			return Const(x.val>>s.val, x.width)
		}
	}
	return newTerm(OpLshr, x.width, x, s)
}

func Eq(x, y *Term) *Term {
	x, y = align(x, y)
	if x.op == OpConst && y.op == OpConst {
		return Bool(x.val == y.val)
	}
	if x.Same(y) {
		return True()
	}
	return newTerm(OpEq, 1, x, y)
}

func Ne(x, y *Term) *Term { return Not(Eq(x, y)) }

func Ult(x, y *Term) *Term {
	x, y = align(x, y)
	if x.op == OpConst && y.op == OpConst {
		return Bool(x.val < y.val)
	}
	if x.Same(y) || y.IsFalse() {
		return False()
	}
	return newTerm(OpUlt, 1, x, y)
}

func Ule(x, y *Term) *Term {
	x, y = align(x, y)
	if x.op == OpConst && y.op == OpConst {
		return Bool(x.val <= y.val)
	}
	if x.Same(y) || x.IsFalse() {
		return True()
	}
	return newTerm(OpUle, 1, x, y)
}

func Ugt(x, y *Term) *Term { return Ult(y, x) }
func Uge(x, y *Term) *Term { return Ule(y, x) }

// Ite selects t when c is non-zero, else e
func Ite(c, t, e *Term) *Term {
	c = Truthy(c)
	t, e = align(t, e)
	switch {
	case c.op == OpConst:
		if c.val != 0 {
			return t
		}
		return e
	case t.Same(e):
		return t
	case t.width == 1 && t.IsTrue() && e.IsFalse():
		return c
	case t.width == 1 && t.IsFalse() && e.IsTrue():
		return Not(c)
	}
	return newTerm(OpIte, t.width, c, t, e)
}

// Extract selects bits hi..lo of x, inclusive
func Extract(x *Term, hi, lo int) *Term {
	if lo < 0 {
		lo = 0
	}
	if hi >= x.width {
		hi = x.width - 1
	}
	if hi < lo {
		return Const(0, 1)
	}
	w := hi - lo + 1
	switch {
	case lo == 0 && w == x.width:
		return x
	case x.op == OpConst:
		return Const(x.val>>uint(lo), w)
	case x.op == OpExtract:
		return Extract(x.args[0], x.lo+hi, x.lo+lo)
	case x.op == OpConcat:
		high, low := x.args[0], x.args[1]
		if hi < low.width {
			return Extract(low, hi, lo)
		}
		if lo >= low.width {
			return Extract(high, hi-low.width, lo-low.width)
		}
	}
	t := &Term{op: OpExtract, width: w, args: []*Term{x}, hi: hi, lo: lo}
	t.rehash()
	return t
}

// Concat joins hi above lo. Results wider than MaxWidth keep the low bits.
func Concat(hi, lo *Term) *Term {
	w := hi.width + lo.width
	if w > MaxWidth {
		if lo.width >= MaxWidth {
			return lo
		}
		hi = Extract(hi, MaxWidth-lo.width-1, 0)
		w = MaxWidth
	}
	if hi.op == OpConst && lo.op == OpConst {
		return Const(hi.val<<uint(lo.width)|lo.val, w)
	}
	return newTerm(OpConcat, w, hi, lo)
}

// Truthy reduces x to a width 1 "x != 0"
func Truthy(x *Term) *Term {
	if x.width == 1 {
		return x
	}
	return Not(Eq(x, Const(0, x.width)))
}

func LNot(x *Term) *Term    { return Not(Truthy(x)) }
func LAnd(x, y *Term) *Term { return And(Truthy(x), Truthy(y)) }
func LOr(x, y *Term) *Term  { return Or(Truthy(x), Truthy(y)) }

// Implies is the width 1 implication
func Implies(x, y *Term) *Term { return Or(Not(Truthy(x)), Truthy(y)) }

// RedAnd is 1 when every bit of x is set
func RedAnd(x *Term) *Term { return Eq(x, Const(Mask(x.width), x.width)) }

// RedOr is 1 when any bit of x is set
func RedOr(x *Term) *Term { return Truthy(x) }

// RedXor is the parity of x
func RedXor(x *Term) *Term {
	acc := Extract(x, 0, 0)
	for i := 1; i < x.width; i++ {
		acc = Xor(acc, Extract(x, i, i))
	}
	return acc
}

// String renders the term in SMT-LIB style. Very large terms are cut off.
func (t *Term) String() string {
	var b strings.Builder
	t.write(&b, 4096)
	return b.String()
}

func (t *Term) write(b *strings.Builder, budget int) {
	if b.Len() > budget {
		b.WriteString("...")
		return
	}
	switch t.op {
	case OpConst:
		fmt.Fprintf(b, "(_ bv%d %d)", t.val, t.width)
	case OpSym:
		b.WriteString(t.name)
	case OpExtract:
		fmt.Fprintf(b, "((_ extract %d %d) ", t.hi, t.lo)
		t.args[0].write(b, budget)
		b.WriteByte(')')
	default:
		b.WriteByte('(')
		b.WriteString(t.op.String())
		for _, a := range t.args {
			b.WriteByte(' ')
			a.write(b, budget)
		}
		b.WriteByte(')')
	}
}

// Symbols returns the free variables of t with their widths
func Symbols(t *Term) map[string]int {
	out := make(map[string]int)
	seen := make(map[*Term]bool)
	var walk func(*Term)
	walk = func(n *Term) {
		if seen[n] {
			return
		}
		seen[n] = true
		if n.op == OpSym {
			out[n.name] = n.width
		}
		for _, a := range n.args {
			walk(a)
		}
	}
	walk(t)
	return out
}
