package hdl

// StmtKind is the discriminant of a statement node
type StmtKind string

const (
	StmtBlock       StmtKind = "block"
	StmtIf          StmtKind = "if"
	StmtCase        StmtKind = "case"
	StmtLoop        StmtKind = "loop"
	StmtExpr        StmtKind = "expr"
	StmtBlocking    StmtKind = "blocking"
	StmtNonBlocking StmtKind = "nonblocking"
	StmtInstance    StmtKind = "instance"
	StmtDecl        StmtKind = "decl"
	StmtAssert      StmtKind = "assert"
)

// LoopKind distinguishes for/while/repeat/forever
type LoopKind string

const (
	LoopFor     LoopKind = "for"
	LoopWhile   LoopKind = "while"
	LoopRepeat  LoopKind = "repeat"
	LoopForever LoopKind = "forever"
)

// Stmt is a statement node. Which fields are set depends on Kind.
type Stmt struct {
	Kind StmtKind `json:"kind" yaml:"kind"`

	// block
	Stmts []*Stmt `json:"stmts,omitempty" yaml:"stmts,omitempty"`

	// if, loop (repeat count for LoopRepeat)
	Cond *Expr `json:"cond,omitempty" yaml:"cond,omitempty"`
	Then *Stmt `json:"then,omitempty" yaml:"then,omitempty"`
	Else *Stmt `json:"else,omitempty" yaml:"else,omitempty"`

	// case
	Subject *Expr       `json:"subject,omitempty" yaml:"subject,omitempty"`
	Items   []*CaseItem `json:"items,omitempty" yaml:"items,omitempty"`

	// loop
	Loop LoopKind `json:"loop,omitempty" yaml:"loop,omitempty"`
	Init *Stmt    `json:"init,omitempty" yaml:"init,omitempty"`
	Step *Stmt    `json:"step,omitempty" yaml:"step,omitempty"`
	Body *Stmt    `json:"body,omitempty" yaml:"body,omitempty"`

	// blocking, nonblocking
	LHS *Expr `json:"lhs,omitempty" yaml:"lhs,omitempty"`
	RHS *Expr `json:"rhs,omitempty" yaml:"rhs,omitempty"`

	// expr, assert
	Expr *Expr `json:"expr,omitempty" yaml:"expr,omitempty"`

	Instance *Instance `json:"instance,omitempty" yaml:"instance,omitempty"`
	Decl     *Decl     `json:"decl,omitempty" yaml:"decl,omitempty"`

	Line int `json:"line,omitempty" yaml:"line,omitempty"`
}

// CaseItem is one arm of a case statement. An item with no values is the default arm.
type CaseItem struct {
	Values []*Expr `json:"values,omitempty" yaml:"values,omitempty"`
	Body   *Stmt   `json:"body,omitempty" yaml:"body,omitempty"`
}

// IsDefault reports whether the arm is the default arm
func (c *CaseItem) IsDefault() bool {
	return len(c.Values) == 0
}

// IsAssignment reports whether s is a blocking or non-blocking assignment
func (s *Stmt) IsAssignment() bool {
	return s.Kind == StmtBlocking || s.Kind == StmtNonBlocking
}

// FirstStmt returns the first non-block statement reachable by descending into blocks
func FirstStmt(s *Stmt) *Stmt {
	for s != nil && s.Kind == StmtBlock {
		if len(s.Stmts) == 0 {
			return nil
		}
		s = s.Stmts[0]
	}
	return s
}
