package smt

import (
	"github.com/go-air/gini/logic"
	"github.com/go-air/gini/z"
)

// blaster lowers terms to an and-inverter circuit, least significant bit first
type blaster struct {
	c    *logic.C
	syms map[string][]z.Lit
	memo map[*Term][]z.Lit
}

func newBlaster() *blaster {
	return &blaster{
		c:    logic.NewC(),
		syms: make(map[string][]z.Lit),
		memo: make(map[*Term][]z.Lit),
	}
}

func (b *blaster) constBits(v uint64, w int) []z.Lit {
	out := make([]z.Lit, w)
	for i := range out {
		if v>>uint(i)&1 == 1 {
			out[i] = b.c.T
		} else {
			out[i] = b.c.F
		}
	}
	return out
}

func (b *blaster) bits(t *Term) []z.Lit {
	if bs, ok := b.memo[t]; ok {
		return bs
	}
	var out []z.Lit
	switch t.op {
	case OpConst:
		out = b.constBits(t.val, t.width)
	case OpSym:
		out = b.sym(t.name, t.width)
	case OpNot:
		x := b.bits(t.args[0])
		out = make([]z.Lit, len(x))
		for i := range x {
			out[i] = x[i].Not()
		}
	case OpNeg:
		out = b.sub(b.constBits(0, t.width), b.bits(t.args[0]))
	case OpAnd, OpOr, OpXor:
		x, y := b.bits(t.args[0]), b.bits(t.args[1])
		out = make([]z.Lit, len(x))
		for i := range x {
			switch t.op {
			case OpAnd:
				out[i] = b.c.And(x[i], y[i])
			case OpOr:
				out[i] = b.c.Or(x[i], y[i])
			default:
				out[i] = b.c.Xor(x[i], y[i])
			}
		}
	case OpAdd:
		out, _ = b.add(b.bits(t.args[0]), b.bits(t.args[1]), b.c.F)
	case OpSub:
		out = b.sub(b.bits(t.args[0]), b.bits(t.args[1]))
	case OpMul:
		out = b.mul(b.bits(t.args[0]), b.bits(t.args[1]))
	case OpUDiv:
		out, _ = b.divmod(b.bits(t.args[0]), b.bits(t.args[1]))
	case OpURem:
		_, out = b.divmod(b.bits(t.args[0]), b.bits(t.args[1]))
	case OpShl:
		out = b.shift(b.bits(t.args[0]), b.bits(t.args[1]), true)
	case OpLshr:
		out = b.shift(b.bits(t.args[0]), b.bits(t.args[1]), false)
	case OpEq:
		out = []z.Lit{b.eq(b.bits(t.args[0]), b.bits(t.args[1]))}
	case OpUlt:
		out = []z.Lit{b.ult(b.bits(t.args[0]), b.bits(t.args[1]))}
	case OpUle:
		out = []z.Lit{b.ult(b.bits(t.args[1]), b.bits(t.args[0])).Not()}
	case OpIte:
		c := b.bits(t.args[0])[0]
		x, y := b.bits(t.args[1]), b.bits(t.args[2])
		out = make([]z.Lit, len(x))
		for i := range x {
			out[i] = b.c.Choice(c, x[i], y[i])
		}
	case OpExtract:
		x := b.bits(t.args[0])
		out = append([]z.Lit(nil), x[t.lo:t.hi+1]...)
	case OpConcat:
		hi, lo := b.bits(t.args[0]), b.bits(t.args[1])
		out = append(append([]z.Lit(nil), lo...), hi...)
	}
	b.memo[t] = out
	return out
}

func (b *blaster) sym(name string, w int) []z.Lit {
	bs := b.syms[name]
	for len(bs) < w {
		bs = append(bs, b.c.Lit())
	}
	b.syms[name] = bs
	return bs[:w]
}

// add is a ripple-carry adder returning the sum and carry out
func (b *blaster) add(x, y []z.Lit, carry z.Lit) ([]z.Lit, z.Lit) {
	out := make([]z.Lit, len(x))
	for i := range x {
		s := b.c.Xor(x[i], y[i])
		out[i] = b.c.Xor(s, carry)
		carry = b.c.Or(b.c.And(x[i], y[i]), b.c.And(s, carry))
	}
	return out, carry
}

func (b *blaster) sub(x, y []z.Lit) []z.Lit {
	ny := make([]z.Lit, len(y))
	for i := range y {
		ny[i] = y[i].Not()
	}
	out, _ := b.add(x, ny, b.c.T)
	return out
}

func (b *blaster) mul(x, y []z.Lit) []z.Lit {
	w := len(x)
	acc := b.constBits(0, w)
	for i := 0; i < w; i++ {
		pp := make([]z.Lit, w)
		for j := 0; j < w; j++ {
			if j < i {
				pp[j] = b.c.F
				continue
			}
			pp[j] = b.c.And(x[j-i], y[i])
		}
		acc, _ = b.add(acc, pp, b.c.F)
	}
	return acc
}

// divmod is restoring division. Division by zero yields all ones and x, as in SMT-LIB.
func (b *blaster) divmod(x, y []z.Lit) (q, r []z.Lit) {
	w := len(x)
	q = make([]z.Lit, w)
	r = b.constBits(0, w)
	for i := w - 1; i >= 0; i-- {
		// shift the next dividend bit into the remainder; track the bit shifted out
		top := r[w-1]
		r = append([]z.Lit{x[i]}, r[:w-1]...)
		// r >= y when the shifted-out bit is set or no borrow occurs
		ny := make([]z.Lit, w)
		for k := range y {
			ny[k] = y[k].Not()
		}
		diff, carry := b.add(r, ny, b.c.T)
		ge := b.c.Or(top, carry)
		q[i] = ge
		for k := range r {
			r[k] = b.c.Choice(ge, diff[k], r[k])
		}
	}
	return q, r
}

func (b *blaster) shift(x, s []z.Lit, left bool) []z.Lit {
	w := len(x)
	cur := append([]z.Lit(nil), x...)
	overflow := b.c.F
	for k := 0; k < len(s); k++ {
		if k >= 31 || 1<<uint(k) >= w {
			overflow = b.c.Or(overflow, s[k])
			continue
		}
		amount := 1 << uint(k)
		next := make([]z.Lit, w)
		for i := 0; i < w; i++ {
			src := b.c.F
			if left && i-amount >= 0 {
				src = cur[i-amount]
			}
			if !left && i+amount < w {
				src = cur[i+amount]
			}
			next[i] = b.c.Choice(s[k], src, cur[i])
		}
		cur = next
	}
	for i := range cur {
		cur[i] = b.c.And(cur[i], overflow.Not())
	}
	return cur
}

func (b *blaster) eq(x, y []z.Lit) z.Lit {
	same := make([]z.Lit, len(x))
	for i := range x {
		same[i] = b.c.Xor(x[i], y[i]).Not()
	}
	return b.c.Ands(same...)
}

// ult scans from the least significant bit; the highest differing bit decides
func (b *blaster) ult(x, y []z.Lit) z.Lit {
	lt := b.c.F
	for i := range x {
		bitLess := b.c.And(x[i].Not(), y[i])
		same := b.c.Xor(x[i], y[i]).Not()
		lt = b.c.Or(bitLess, b.c.And(same, lt))
	}
	return lt
}
