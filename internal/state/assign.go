package state

import (
	"sort"

	"github.com/robert-at-pretension-io/hdl-symex/internal/hdl"
	"github.com/robert-at-pretension-io/hdl-symex/internal/smt"
)

// slice is one decomposed piece of an assignment target. A nil index means a
// static slice [lo, lo+width).
type slice struct {
	signal string
	lo     int
	width  int
	index  *smt.Term
	full   bool
}

type pendingWrite struct {
	target slice
	value  *smt.Term
}

// Assign writes v to lhs. Blocking writes land in the store immediately;
// non-blocking writes are queued until Commit. Index expressions are evaluated now.
func (s *State) Assign(instance string, lhs *hdl.Expr, v *smt.Term, nonBlocking bool) error {
	parts, err := s.decompose(instance, lhs)
	if err != nil {
		return err
	}
	total := 0
	for _, p := range parts {
		total += p.width
	}
	v = smt.Resize(v, total)
	off := 0
	for i := len(parts) - 1; i >= 0; i-- {
		p := parts[i]
		piece := smt.Extract(v, off+p.width-1, off)
		off += p.width
		if nonBlocking {
			s.pending[instance] = append(s.pending[instance], pendingWrite{target: p, value: piece})
			continue
		}
		s.apply(instance, p, piece)
	}
	return nil
}

// decompose splits an assignment target into slices, most significant first
func (s *State) decompose(instance string, lhs *hdl.Expr) ([]slice, error) {
	if lhs == nil {
		return nil, &hdl.UnsupportedConstructError{Kind: "lhs", What: "missing target"}
	}
	switch lhs.Kind {
	case hdl.ExprIdent, hdl.ExprMember:
		names, err := hdl.Targets(lhs)
		if err != nil {
			return nil, err
		}
		return []slice{{signal: names[0], width: s.Width(instance, names[0]), full: true}}, nil
	case hdl.ExprIndex:
		base, err := s.baseName(lhs.Arg(0))
		if err != nil {
			return nil, err
		}
		idx, err := s.Eval(instance, lhs.Arg(1))
		if err != nil {
			return nil, err
		}
		if c, ok := idx.Value(); ok {
			return []slice{{signal: base, lo: int(min(c, smt.MaxWidth)), width: 1}}, nil
		}
		return []slice{{signal: base, width: 1, index: idx}}, nil
	case hdl.ExprRange:
		base, err := s.baseName(lhs.Arg(0))
		if err != nil {
			return nil, err
		}
		hi, lo, err := s.constBounds(instance, lhs)
		if err != nil {
			return nil, err
		}
		return []slice{{signal: base, lo: lo, width: hi - lo + 1}}, nil
	case hdl.ExprConcat:
		var out []slice
		for _, part := range lhs.Args {
			ps, err := s.decompose(instance, part)
			if err != nil {
				return nil, err
			}
			out = append(out, ps...)
		}
		return out, nil
	}
	return nil, &hdl.UnsupportedConstructError{Kind: "lhs", What: lhs.String()}
}

// baseName only accepts plain or member signals under a select
func (s *State) baseName(e *hdl.Expr) (string, error) {
	if e != nil && (e.Kind == hdl.ExprIdent || e.Kind == hdl.ExprMember) {
		if name := hdl.MemberName(e); name != "" {
			return name, nil
		}
	}
	what := "missing target"
	if e != nil {
		what = e.String()
	}
	return "", &hdl.UnsupportedConstructError{Kind: "lhs", What: what}
}

func (s *State) apply(instance string, p slice, v *smt.Term) {
	if p.full {
		s.Set(instance, p.signal, v)
		return
	}
	old := s.Read(instance, p.signal)
	s.Set(instance, p.signal, splice(old, p, v))
}

// splice replaces the bits of old selected by p with v
func splice(old *smt.Term, p slice, v *smt.Term) *smt.Term {
	w := old.Width()
	if p.index != nil {
		one := smt.Const(1, w)
		bit := smt.Shl(smt.ZeroExt(smt.Resize(v, 1), w), p.index)
		keep := smt.Not(smt.Shl(one, p.index))
		return smt.Or(smt.And(old, keep), bit)
	}
	if p.lo >= w {
		return old
	}
	hi := p.lo + p.width - 1
	if hi >= w {
		hi = w - 1
	}
	out := smt.Resize(v, hi-p.lo+1)
	if p.lo > 0 {
		out = smt.Concat(out, smt.Extract(old, p.lo-1, 0))
	}
	if hi < w-1 {
		out = smt.Concat(smt.Extract(old, w-1, hi+1), out)
	}
	return out
}

// Commit applies every queued non-blocking write atomically: all right-hand
// sides were captured before any of them lands.
func (s *State) Commit() {
	instances := make([]string, 0, len(s.pending))
	for inst := range s.pending {
		instances = append(instances, inst)
	}
	sort.Strings(instances)
	for _, inst := range instances {
		for _, w := range s.pending[inst] {
			s.apply(inst, w.target, w.value)
		}
	}
	s.pending = make(map[string][]pendingWrite)
}
