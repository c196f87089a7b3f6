package state

import (
	"math/bits"

	"github.com/robert-at-pretension-io/hdl-symex/internal/hdl"
	"github.com/robert-at-pretension-io/hdl-symex/internal/smt"
)

func unsupported(e *hdl.Expr) error {
	return &hdl.UnsupportedConstructError{Kind: "expr", What: e.String()}
}

// Eval reads an expression against the store of one instance
func (s *State) Eval(instance string, e *hdl.Expr) (*smt.Term, error) {
	if e == nil {
		return nil, &hdl.UnsupportedConstructError{Kind: "expr", What: "missing operand"}
	}
	switch e.Kind {
	case hdl.ExprIdent:
		return s.Read(instance, e.Name), nil
	case hdl.ExprMember:
		name := hdl.MemberName(e)
		if name == "" {
			return nil, unsupported(e)
		}
		return s.Read(instance, name), nil
	case hdl.ExprConst:
		v, w, err := hdl.ParseLiteral(e.Value)
		if err != nil {
			return nil, &hdl.UnsupportedConstructError{Kind: "literal", What: e.Value}
		}
		return smt.Const(v, w), nil
	case hdl.ExprIndex:
		return s.evalIndex(instance, e)
	case hdl.ExprRange:
		base, err := s.Eval(instance, e.Arg(0))
		if err != nil {
			return nil, err
		}
		hi, lo, err := s.constBounds(instance, e)
		if err != nil {
			return nil, err
		}
		return smt.Extract(base, hi, lo), nil
	case hdl.ExprConcat:
		var acc *smt.Term
		for _, part := range e.Args {
			v, err := s.Eval(instance, part)
			if err != nil {
				return nil, err
			}
			if acc == nil {
				acc = v
			} else {
				acc = smt.Concat(acc, v)
			}
		}
		if acc == nil {
			return nil, unsupported(e)
		}
		return acc, nil
	case hdl.ExprRepeat:
		n, err := s.constValue(instance, e.Arg(0))
		if err != nil {
			return nil, err
		}
		inner, err := s.Eval(instance, e.Arg(1))
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, unsupported(e)
		}
		acc := inner
		for i := uint64(1); i < n && acc.Width() < smt.MaxWidth; i++ {
			acc = smt.Concat(acc, inner)
		}
		return acc, nil
	case hdl.ExprUnary:
		return s.evalUnary(instance, e)
	case hdl.ExprBinary:
		return s.evalBinary(instance, e)
	case hdl.ExprTernary:
		c, err := s.Eval(instance, e.Arg(0))
		if err != nil {
			return nil, err
		}
		t, err := s.Eval(instance, e.Arg(1))
		if err != nil {
			return nil, err
		}
		f, err := s.Eval(instance, e.Arg(2))
		if err != nil {
			return nil, err
		}
		return smt.Ite(c, t, f), nil
	case hdl.ExprCall:
		return s.evalCall(instance, e)
	}
	return nil, unsupported(e)
}

func (s *State) evalIndex(instance string, e *hdl.Expr) (*smt.Term, error) {
	base, err := s.Eval(instance, e.Arg(0))
	if err != nil {
		return nil, err
	}
	idx, err := s.Eval(instance, e.Arg(1))
	if err != nil {
		return nil, err
	}
	if v, ok := idx.Value(); ok {
		if v >= uint64(base.Width()) {
			return smt.Const(0, 1), nil
		}
		return smt.Extract(base, int(v), int(v)), nil
	}
	return smt.Extract(smt.Lshr(base, idx), 0, 0), nil
}

func (s *State) constValue(instance string, e *hdl.Expr) (uint64, error) {
	v, err := s.Eval(instance, e)
	if err != nil {
		return 0, err
	}
	c, ok := v.Value()
	if !ok {
		return 0, &hdl.UnsupportedConstructError{Kind: "expr", What: "non-constant " + e.String()}
	}
	return c, nil
}

// constBounds evaluates the msb/lsb of a range select; reversed ranges are normalised
func (s *State) constBounds(instance string, e *hdl.Expr) (int, int, error) {
	msb, err := s.constValue(instance, e.Arg(1))
	if err != nil {
		return 0, 0, err
	}
	lsb, err := s.constValue(instance, e.Arg(2))
	if err != nil {
		return 0, 0, err
	}
	if msb < lsb {
		msb, lsb = lsb, msb
	}
	if msb >= smt.MaxWidth {
		msb = smt.MaxWidth - 1
	}
	if lsb > msb {
		lsb = msb
	}
	return int(msb), int(lsb), nil
}

func (s *State) evalUnary(instance string, e *hdl.Expr) (*smt.Term, error) {
	x, err := s.Eval(instance, e.Arg(0))
	if err != nil {
		return nil, err
	}
	switch e.Op {
	case "!":
		return smt.LNot(x), nil
	case "~":
		return smt.Not(x), nil
	case "-":
		return smt.Neg(x), nil
	case "+":
		return x, nil
	case "&":
		return smt.RedAnd(x), nil
	case "|":
		return smt.RedOr(x), nil
	case "^":
		return smt.RedXor(x), nil
	case "~&":
		return smt.Not(smt.RedAnd(x)), nil
	case "~|":
		return smt.Not(smt.RedOr(x)), nil
	case "~^", "^~":
		return smt.Not(smt.RedXor(x)), nil
	}
	return nil, unsupported(e)
}

func (s *State) evalBinary(instance string, e *hdl.Expr) (*smt.Term, error) {
	x, err := s.Eval(instance, e.Arg(0))
	if err != nil {
		return nil, err
	}
	y, err := s.Eval(instance, e.Arg(1))
	if err != nil {
		return nil, err
	}
	switch e.Op {
	case "+":
		return smt.Add(x, y), nil
	case "-":
		return smt.Sub(x, y), nil
	case "*":
		return smt.Mul(x, y), nil
	case "/":
		return smt.UDiv(x, y), nil
	case "%":
		return smt.URem(x, y), nil
	case "&":
		return smt.And(x, y), nil
	case "|":
		return smt.Or(x, y), nil
	case "^":
		return smt.Xor(x, y), nil
	case "~^", "^~":
		return smt.Not(smt.Xor(x, y)), nil
	case "<<", "<<<":
		return smt.Shl(x, y), nil
	case ">>", ">>>":
		return smt.Lshr(x, y), nil
	case "==", "===":
		return smt.Eq(x, y), nil
	case "!=", "!==":
		return smt.Ne(x, y), nil
	case "<":
		return smt.Ult(x, y), nil
	case "<=":
		return smt.Ule(x, y), nil
	case ">":
		return smt.Ugt(x, y), nil
	case ">=":
		return smt.Uge(x, y), nil
	case "&&":
		return smt.LAnd(x, y), nil
	case "||":
		return smt.LOr(x, y), nil
	case "->":
		return smt.Implies(x, y), nil
	case "**":
		base, ok1 := x.Value()
		exp, ok2 := y.Value()
		if !ok1 || !ok2 {
			return nil, unsupported(e)
		}
		// square and multiply; uint64 wraparound agrees with the final mask
		r := uint64(1)
		for ; exp > 0; exp >>= 1 {
			if exp&1 == 1 {
				r *= base
			}
			base *= base
		}
		return smt.Const(r, x.Width()), nil
	}
	return nil, unsupported(e)
}

func (s *State) evalCall(instance string, e *hdl.Expr) (*smt.Term, error) {
	switch e.Name {
	case "$signed", "$unsigned":
		if len(e.Args) != 1 {
			return nil, unsupported(e)
		}
		return s.Eval(instance, e.Args[0])
	case "$clog2":
		if len(e.Args) != 1 {
			return nil, unsupported(e)
		}
		v, err := s.constValue(instance, e.Args[0])
		if err != nil {
			return nil, err
		}
		if v <= 1 {
			return smt.Const(0, hdl.IntegerWidth), nil
		}
		return smt.Const(uint64(bits.Len64(v-1)), hdl.IntegerWidth), nil
	case "$past":
		if len(e.Args) == 0 {
			return nil, unsupported(e)
		}
		if id := e.Args[0]; id.Kind == hdl.ExprIdent {
			if v, ok := s.Previous(instance, id.Name); ok {
				return v, nil
			}
		}
		return s.Eval(instance, e.Args[0])
	}
	return nil, unsupported(e)
}
