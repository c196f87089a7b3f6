package hdl

import (
	"fmt"
	"strings"
)

// ExprKind is the discriminant of an expression node
type ExprKind string

const (
	ExprIdent   ExprKind = "ident"
	ExprConst   ExprKind = "const"
	ExprString  ExprKind = "string"
	ExprIndex   ExprKind = "index"   // Args: base, index
	ExprRange   ExprKind = "range"   // Args: base, msb, lsb
	ExprConcat  ExprKind = "concat"  // Args: parts, most significant first
	ExprRepeat  ExprKind = "repeat"  // Args: count, inner
	ExprMember  ExprKind = "member"  // Args: base; Name: field
	ExprUnary   ExprKind = "unary"   // Op, Args: operand
	ExprBinary  ExprKind = "binary"  // Op, Args: left, right
	ExprTernary ExprKind = "ternary" // Args: cond, then, else
	ExprCall    ExprKind = "call"    // Name, Args
)

// Expr is an expression node. Operands are positional in Args.
type Expr struct {
	Kind  ExprKind `json:"kind" yaml:"kind"`
	Name  string   `json:"name,omitempty" yaml:"name,omitempty"`
	Value string   `json:"value,omitempty" yaml:"value,omitempty"`
	Op    string   `json:"op,omitempty" yaml:"op,omitempty"`
	Args  []*Expr  `json:"args,omitempty" yaml:"args,omitempty"`
}

// Arg returns the i-th operand or nil
func (e *Expr) Arg(i int) *Expr {
	if e == nil || i >= len(e.Args) {
		return nil
	}
	return e.Args[i]
}

// String prints the expression in HDL-like syntax
func (e *Expr) String() string {
	if e == nil {
		return "<nil>"
	}
	switch e.Kind {
	case ExprIdent:
		return e.Name
	case ExprConst:
		return e.Value
	case ExprString:
		return fmt.Sprintf("%q", e.Value)
	case ExprIndex:
		return fmt.Sprintf("%s[%s]", e.Arg(0), e.Arg(1))
	case ExprRange:
		return fmt.Sprintf("%s[%s:%s]", e.Arg(0), e.Arg(1), e.Arg(2))
	case ExprConcat:
		return "{" + joinExprs(e.Args) + "}"
	case ExprRepeat:
		return fmt.Sprintf("{%s{%s}}", e.Arg(0), e.Arg(1))
	case ExprMember:
		return e.Arg(0).String() + "." + e.Name
	case ExprUnary:
		return e.Op + "(" + e.Arg(0).String() + ")"
	case ExprBinary:
		return fmt.Sprintf("(%s %s %s)", e.Arg(0), e.Op, e.Arg(1))
	case ExprTernary:
		return fmt.Sprintf("(%s ? %s : %s)", e.Arg(0), e.Arg(1), e.Arg(2))
	case ExprCall:
		return e.Name + "(" + joinExprs(e.Args) + ")"
	}
	return fmt.Sprintf("<%s>", e.Kind)
}

func joinExprs(args []*Expr) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = a.String()
	}
	return strings.Join(parts, ", ")
}

// WalkExpr visits e and its operands depth-first. fn returning false prunes the subtree.
func WalkExpr(e *Expr, fn func(*Expr) bool) {
	if e == nil || !fn(e) {
		return
	}
	for _, a := range e.Args {
		WalkExpr(a, fn)
	}
}

// Identifiers returns the distinct signal names read by e, in first-seen order.
// Member accesses are reported by their flattened name.
func Identifiers(e *Expr) []string {
	var names []string
	seen := make(map[string]bool)
	WalkExpr(e, func(n *Expr) bool {
		name := ""
		switch n.Kind {
		case ExprIdent:
			name = n.Name
		case ExprMember:
			name = MemberName(n)
		case ExprCall:
			// system function names are not signals
		}
		if name != "" && !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
		return n.Kind != ExprMember
	})
	return names
}

// MemberName flattens a.b.c into a single signal name
func MemberName(e *Expr) string {
	switch e.Kind {
	case ExprIdent:
		return e.Name
	case ExprMember:
		base := MemberName(e.Arg(0))
		if base == "" {
			return ""
		}
		return base + "." + e.Name
	}
	return ""
}

// Targets decomposes an assignment target into the base signal names it writes.
func Targets(lhs *Expr) ([]string, error) {
	if lhs == nil {
		return nil, &UnsupportedConstructError{Kind: "lhs", What: "missing target"}
	}
	switch lhs.Kind {
	case ExprIdent:
		return []string{lhs.Name}, nil
	case ExprMember:
		name := MemberName(lhs)
		if name == "" {
			return nil, &UnsupportedConstructError{Kind: "lhs", What: lhs.String()}
		}
		return []string{name}, nil
	case ExprIndex, ExprRange:
		return Targets(lhs.Arg(0))
	case ExprConcat:
		var out []string
		for _, part := range lhs.Args {
			names, err := Targets(part)
			if err != nil {
				return nil, err
			}
			out = append(out, names...)
		}
		return out, nil
	}
	return nil, &UnsupportedConstructError{Kind: "lhs", What: lhs.String()}
}
