package hdl

import "fmt"

// StmtVisitor handles each statement kind. Dispatch is the only place that switches on Kind.
type StmtVisitor interface {
	VisitBlock(s *Stmt) error
	VisitIf(s *Stmt) error
	VisitCase(s *Stmt) error
	VisitLoop(s *Stmt) error
	VisitExprStmt(s *Stmt) error
	VisitAssign(s *Stmt) error
	VisitInstance(s *Stmt) error
	VisitDecl(s *Stmt) error
	VisitAssert(s *Stmt) error
}

// Dispatch routes s to the visitor method for its kind
func Dispatch(v StmtVisitor, s *Stmt) error {
	if s == nil {
		return nil
	}
	switch s.Kind {
	case StmtBlock:
		return v.VisitBlock(s)
	case StmtIf:
		return v.VisitIf(s)
	case StmtCase:
		return v.VisitCase(s)
	case StmtLoop:
		return v.VisitLoop(s)
	case StmtExpr:
		return v.VisitExprStmt(s)
	case StmtBlocking, StmtNonBlocking:
		return v.VisitAssign(s)
	case StmtInstance:
		return v.VisitInstance(s)
	case StmtDecl:
		return v.VisitDecl(s)
	case StmtAssert:
		return v.VisitAssert(s)
	}
	return &UnsupportedConstructError{Kind: "stmt", What: string(s.Kind), Line: s.Line}
}

// Walker visits every statement of a tree in textual order.
// Embed it and override the methods you care about; the defaults recurse.
type Walker struct {
	// Self is the outer visitor so overridden methods are reached during recursion
	Self StmtVisitor
}

func (w Walker) self() StmtVisitor {
	if w.Self != nil {
		return w.Self
	}
	return w
}

func (w Walker) VisitBlock(s *Stmt) error {
	for _, c := range s.Stmts {
		if err := Dispatch(w.self(), c); err != nil {
			return err
		}
	}
	return nil
}

func (w Walker) VisitIf(s *Stmt) error {
	if err := Dispatch(w.self(), s.Then); err != nil {
		return err
	}
	return Dispatch(w.self(), s.Else)
}

func (w Walker) VisitCase(s *Stmt) error {
	for _, item := range s.Items {
		if err := Dispatch(w.self(), item.Body); err != nil {
			return err
		}
	}
	return nil
}

func (w Walker) VisitLoop(s *Stmt) error {
	for _, c := range []*Stmt{s.Init, s.Body, s.Step} {
		if err := Dispatch(w.self(), c); err != nil {
			return err
		}
	}
	return nil
}

func (w Walker) VisitExprStmt(*Stmt) error { return nil }
func (w Walker) VisitAssign(*Stmt) error   { return nil }
func (w Walker) VisitInstance(*Stmt) error { return nil }
func (w Walker) VisitDecl(*Stmt) error     { return nil }
func (w Walker) VisitAssert(*Stmt) error   { return nil }

// UnsupportedConstructError reports a tree shape the engine does not handle
type UnsupportedConstructError struct {
	Kind string
	What string
	Line int
}

func (e *UnsupportedConstructError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("unsupported %s construct %q at line %d", e.Kind, e.What, e.Line)
	}
	return fmt.Sprintf("unsupported %s construct %q", e.Kind, e.What)
}
