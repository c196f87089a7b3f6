package hdl

import "fmt"

// Constructors for building trees in code. Front ends that emit documents do not need them.

func Ident(name string) *Expr { return &Expr{Kind: ExprIdent, Name: name} }

func Const(text string) *Expr { return &Expr{Kind: ExprConst, Value: text} }

// Sized builds a sized decimal literal
func Sized(width int, v uint64) *Expr {
	return Const(fmt.Sprintf("%d'd%d", width, v))
}

func Str(s string) *Expr { return &Expr{Kind: ExprString, Value: s} }

func Index(base, idx *Expr) *Expr { return &Expr{Kind: ExprIndex, Args: []*Expr{base, idx}} }

func Range(base, msb, lsb *Expr) *Expr {
	return &Expr{Kind: ExprRange, Args: []*Expr{base, msb, lsb}}
}

func Concat(parts ...*Expr) *Expr { return &Expr{Kind: ExprConcat, Args: parts} }

func Member(base *Expr, field string) *Expr {
	return &Expr{Kind: ExprMember, Name: field, Args: []*Expr{base}}
}

func Unary(op string, x *Expr) *Expr { return &Expr{Kind: ExprUnary, Op: op, Args: []*Expr{x}} }

func Binary(op string, x, y *Expr) *Expr {
	return &Expr{Kind: ExprBinary, Op: op, Args: []*Expr{x, y}}
}

func Ternary(c, t, e *Expr) *Expr { return &Expr{Kind: ExprTernary, Args: []*Expr{c, t, e}} }

func Call(name string, args ...*Expr) *Expr { return &Expr{Kind: ExprCall, Name: name, Args: args} }

func Block(stmts ...*Stmt) *Stmt { return &Stmt{Kind: StmtBlock, Stmts: stmts} }

func If(cond *Expr, then, els *Stmt) *Stmt {
	return &Stmt{Kind: StmtIf, Cond: cond, Then: then, Else: els}
}

func Case(subject *Expr, items ...*CaseItem) *Stmt {
	return &Stmt{Kind: StmtCase, Subject: subject, Items: items}
}

func Arm(body *Stmt, values ...*Expr) *CaseItem { return &CaseItem{Values: values, Body: body} }

func For(init *Stmt, cond *Expr, step, body *Stmt) *Stmt {
	return &Stmt{Kind: StmtLoop, Loop: LoopFor, Init: init, Cond: cond, Step: step, Body: body}
}

func While(cond *Expr, body *Stmt) *Stmt {
	return &Stmt{Kind: StmtLoop, Loop: LoopWhile, Cond: cond, Body: body}
}

func Assign(lhs, rhs *Expr) *Stmt { return &Stmt{Kind: StmtBlocking, LHS: lhs, RHS: rhs} }

func NonBlocking(lhs, rhs *Expr) *Stmt { return &Stmt{Kind: StmtNonBlocking, LHS: lhs, RHS: rhs} }

func ExprStmt(e *Expr) *Stmt { return &Stmt{Kind: StmtExpr, Expr: e} }

func Assert(e *Expr) *Stmt { return &Stmt{Kind: StmtAssert, Expr: e} }

func Local(d *Decl) *Stmt { return &Stmt{Kind: StmtDecl, Decl: d} }
