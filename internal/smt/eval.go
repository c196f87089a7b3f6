package smt

// Eval computes the concrete value of t under an assignment of its symbols.
// Symbols missing from values evaluate to 0.
func Eval(t *Term, values map[string]uint64) uint64 {
	memo := make(map[*Term]uint64)
	return eval(t, values, memo)
}

func eval(t *Term, values map[string]uint64, memo map[*Term]uint64) uint64 {
	if v, ok := memo[t]; ok {
		return v
	}
	m := Mask(t.width)
	arg := func(i int) uint64 { return eval(t.args[i], values, memo) }
	var v uint64
	switch t.op {
	case OpConst:
		v = t.val
	case OpSym:
		v = values[t.name]
	case OpNot:
		v = ^arg(0)
	case OpNeg:
		v = -arg(0)
	case OpAnd:
		v = arg(0) & arg(1)
	case OpOr:
		v = arg(0) | arg(1)
	case OpXor:
		v = arg(0) ^ arg(1)
	case OpAdd:
		v = arg(0) + arg(1)
	case OpSub:
		v = arg(0) - arg(1)
	case OpMul:
		v = arg(0) * arg(1)
	case OpUDiv:
		x, y := arg(0), arg(1)
		if y == 0 {
			v = m
		} else {
			v = x / y
		}
	case OpURem:
		x, y := arg(0), arg(1)
		if y == 0 {
			v = x
		} else {
			v = x % y
		}
	case OpShl:
		x, s := arg(0), arg(1)
		if s >= uint64(t.width) {
			v = 0
		} else {
			v = x << s
		}
	case OpLshr:
		x, s := arg(0), arg(1)
		if s >= uint64(t.width) {
			v = 0
		} else {
			v = x >> s
		}
	case OpEq:
		v = b2u(arg(0) == arg(1))
	case OpUlt:
		v = b2u(arg(0) < arg(1))
	case OpUle:
		v = b2u(arg(0) <= arg(1))
	case OpIte:
		if arg(0)&1 != 0 {
			v = arg(1)
		} else {
			v = arg(2)
		}
	case OpExtract:
		v = arg(0) >> uint(t.lo)
	case OpConcat:
		v = arg(0)<<uint(t.args[1].width) | arg(1)
	}
	v &= m
	memo[t] = v
	return v
}

func b2u(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}
