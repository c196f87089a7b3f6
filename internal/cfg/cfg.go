// Package cfg turns one procedural block into basic blocks, direction-tagged
// edges and the enumerated set of static paths through it.
package cfg

import (
	"fmt"
	"sort"

	"github.com/robert-at-pretension-io/hdl-symex/internal/hdl"
)

// Direction tags an edge with the branch outcome it represents.
// Non-negative values are case arm indices.
type Direction int

const (
	Fall        Direction = -1
	Then        Direction = -2
	Else        Direction = -3
	LoopTaken   Direction = -4
	LoopSkipped Direction = -5
)

// Arm is the direction selecting the i-th case arm
func Arm(i int) Direction { return Direction(i) }

// IsArm reports whether d selects a case arm
func (d Direction) IsArm() bool { return d >= 0 }

func (d Direction) String() string {
	switch d {
	case Fall:
		return "fall"
	case Then:
		return "then"
	case Else:
		return "else"
	case LoopTaken:
		return "loop"
	case LoopSkipped:
		return "skip"
	}
	return fmt.Sprintf("arm%d", int(d))
}

// BasicBlock is a straight-line run of statements. Branch, when set, is the
// if/case/loop whose condition is evaluated after Stmts.
type BasicBlock struct {
	Index  int
	Stmts  []*hdl.Stmt
	Branch *hdl.Stmt
}

// Edge connects two basic blocks
type Edge struct {
	From int       `json:"from"`
	To   int       `json:"to"`
	Dir  Direction `json:"dir"`
}

// Path is an ordered list of basic-block indices from entry to exit
type Path []int

// CFG is the immutable graph of one procedural block
type CFG struct {
	Source    *hdl.ProcBlock
	Blocks    []*BasicBlock
	Edges     []Edge
	Paths     []Path
	NumPaths  int
	Writes    []string
	Entry     int
	Exit      int
	Truncated bool

	succ map[int][]Edge
	dirs map[[2]int]Direction
}

// Kind is the kind of the source procedural block
func (g *CFG) Kind() hdl.BlockKind {
	if g.Source == nil {
		return hdl.Combinational
	}
	return g.Source.Kind
}

// Successors returns the outgoing edges of a block in construction order
func (g *CFG) Successors(block int) []Edge {
	return g.succ[block]
}

// Directions returns, for each block of p, the direction of the edge leaving it.
// The last block gets Fall.
func (g *CFG) Directions(p Path) []Direction {
	out := make([]Direction, len(p))
	for i := range p {
		if i+1 == len(p) {
			out[i] = Fall
			continue
		}
		d, ok := g.dirs[[2]int{p[i], p[i+1]}]
		if !ok {
			d = Fall
		}
		out[i] = d
	}
	return out
}

// Build constructs the CFG of a procedural block. limit caps the number of
// enumerated paths (0 means no cap); when hit, Truncated is set.
func Build(pb *hdl.ProcBlock, limit int) (*CFG, error) {
	g := &CFG{
		Source: pb,
		succ:   make(map[int][]Edge),
		dirs:   make(map[[2]int]Direction),
	}
	b := &builder{g: g}
	b.cur = b.newBlock()
	var body *hdl.Stmt
	if pb != nil {
		body = pb.Body
	}
	if err := hdl.Dispatch(b, body); err != nil {
		return nil, err
	}
	g.Entry, g.Exit = 0, b.cur

	n, err := CountPaths(body)
	if err != nil {
		return nil, err
	}
	g.NumPaths = n

	writes, err := Writes(body)
	if err != nil {
		return nil, err
	}
	g.Writes = writes

	g.enumerate(limit)
	return g, nil
}

// enumerate collects every entry-to-terminal route depth-first
func (g *CFG) enumerate(limit int) {
	var stack []int
	var walk func(int) bool
	walk = func(node int) bool {
		stack = append(stack, node)
		defer func() { stack = stack[:len(stack)-1] }()
		succ := g.succ[node]
		if len(succ) == 0 {
			if limit > 0 && len(g.Paths) >= limit {
				g.Truncated = true
				return false
			}
			g.Paths = append(g.Paths, append(Path(nil), stack...))
			return true
		}
		for _, e := range succ {
			if !walk(e.To) {
				return false
			}
		}
		return true
	}
	walk(g.Entry)
}

type builder struct {
	g   *CFG
	cur int
}

func (b *builder) newBlock() int {
	idx := len(b.g.Blocks)
	b.g.Blocks = append(b.g.Blocks, &BasicBlock{Index: idx})
	return idx
}

func (b *builder) edge(from, to int, d Direction) {
	e := Edge{From: from, To: to, Dir: d}
	b.g.Edges = append(b.g.Edges, e)
	b.g.succ[from] = append(b.g.succ[from], e)
	b.g.dirs[[2]int{from, to}] = d
}

func (b *builder) emit(s *hdl.Stmt) {
	if s == nil {
		return
	}
	blk := b.g.Blocks[b.cur]
	blk.Stmts = append(blk.Stmts, s)
}

// arm builds one branch target starting in a fresh block and returns its exit block
func (b *builder) arm(head int, d Direction, body *hdl.Stmt, tail *hdl.Stmt) (int, error) {
	entry := b.newBlock()
	b.edge(head, entry, d)
	b.cur = entry
	if err := hdl.Dispatch(b, body); err != nil {
		return 0, err
	}
	b.emit(tail)
	return b.cur, nil
}

func (b *builder) join(exits []int) {
	j := b.newBlock()
	for _, x := range exits {
		b.edge(x, j, Fall)
	}
	b.cur = j
}

func (b *builder) VisitBlock(s *hdl.Stmt) error {
	for _, c := range s.Stmts {
		if err := hdl.Dispatch(b, c); err != nil {
			return err
		}
	}
	return nil
}

func (b *builder) VisitIf(s *hdl.Stmt) error {
	head := b.cur
	b.g.Blocks[head].Branch = s
	thenExit, err := b.arm(head, Then, s.Then, nil)
	if err != nil {
		return err
	}
	elseExit, err := b.arm(head, Else, s.Else, nil)
	if err != nil {
		return err
	}
	b.join([]int{thenExit, elseExit})
	return nil
}

func (b *builder) VisitCase(s *hdl.Stmt) error {
	if len(s.Items) == 0 {
		return nil
	}
	head := b.cur
	b.g.Blocks[head].Branch = s
	exits := make([]int, 0, len(s.Items))
	for i, item := range s.Items {
		exit, err := b.arm(head, Arm(i), item.Body, nil)
		if err != nil {
			return err
		}
		exits = append(exits, exit)
	}
	b.join(exits)
	return nil
}

// VisitLoop models the loop as skipped or executed once. Init runs before the
// branch point and Step closes the body.
func (b *builder) VisitLoop(s *hdl.Stmt) error {
	b.emit(s.Init)
	head := b.cur
	b.g.Blocks[head].Branch = s
	bodyExit, err := b.arm(head, LoopTaken, s.Body, s.Step)
	if err != nil {
		return err
	}
	j := b.newBlock()
	b.edge(head, j, LoopSkipped)
	b.edge(bodyExit, j, Fall)
	b.cur = j
	return nil
}

func (b *builder) VisitExprStmt(s *hdl.Stmt) error {
	b.emit(s)
	return nil
}
func (b *builder) VisitAssign(s *hdl.Stmt) error {
	b.emit(s)
	return nil
}
func (b *builder) VisitInstance(s *hdl.Stmt) error {
	b.emit(s)
	return nil
}
func (b *builder) VisitDecl(s *hdl.Stmt) error {
	b.emit(s)
	return nil
}
func (b *builder) VisitAssert(s *hdl.Stmt) error {
	b.emit(s)
	return nil
}

// CountPaths is the static branch estimate for a statement tree: sequences
// multiply, an if adds its two arms, a case adds its arms, a loop doubles its body.
func CountPaths(s *hdl.Stmt) (int, error) {
	if s == nil {
		return 1, nil
	}
	c := &counter{}
	if err := hdl.Dispatch(c, s); err != nil {
		return 0, err
	}
	return c.n, nil
}

const maxCount = 1 << 62

type counter struct {
	n int
}

func satMul(a, b int) int {
	if a == 0 || b == 0 {
		return 0
	}
	if a > maxCount/b {
		return maxCount
	}
	return a * b
}

func satAdd(a, b int) int {
	if a > maxCount-b {
		return maxCount
	}
	return a + b
}

func (c *counter) VisitBlock(s *hdl.Stmt) error {
	n := 1
	for _, child := range s.Stmts {
		k, err := CountPaths(child)
		if err != nil {
			return err
		}
		n = satMul(n, k)
	}
	c.n = n
	return nil
}

func (c *counter) VisitIf(s *hdl.Stmt) error {
	t, err := CountPaths(s.Then)
	if err != nil {
		return err
	}
	e, err := CountPaths(s.Else)
	if err != nil {
		return err
	}
	c.n = satAdd(t, e)
	return nil
}

func (c *counter) VisitCase(s *hdl.Stmt) error {
	n := 0
	for _, item := range s.Items {
		k, err := CountPaths(item.Body)
		if err != nil {
			return err
		}
		n = satAdd(n, k)
	}
	if n == 0 {
		n = 1
	}
	c.n = n
	return nil
}

func (c *counter) VisitLoop(s *hdl.Stmt) error {
	k, err := CountPaths(s.Body)
	if err != nil {
		return err
	}
	c.n = satMul(2, k)
	return nil
}

func (c *counter) VisitExprStmt(*hdl.Stmt) error {
	c.n = 1
	return nil
}
func (c *counter) VisitAssign(*hdl.Stmt) error {
	c.n = 1
	return nil
}
func (c *counter) VisitInstance(*hdl.Stmt) error {
	c.n = 1
	return nil
}
func (c *counter) VisitDecl(*hdl.Stmt) error {
	c.n = 1
	return nil
}
func (c *counter) VisitAssert(*hdl.Stmt) error {
	c.n = 1
	return nil
}

// Writes returns the sorted base names of every signal assigned in the tree
func Writes(s *hdl.Stmt) ([]string, error) {
	w := &writeSet{names: make(map[string]bool)}
	w.Self = w
	if err := hdl.Dispatch(w, s); err != nil {
		return nil, err
	}
	out := make([]string, 0, len(w.names))
	for n := range w.names {
		out = append(out, n)
	}
	sort.Strings(out)
	return out, nil
}

type writeSet struct {
	hdl.Walker
	names map[string]bool
}

func (w *writeSet) VisitAssign(s *hdl.Stmt) error {
	targets, err := hdl.Targets(s.LHS)
	if err != nil {
		if u, ok := err.(*hdl.UnsupportedConstructError); ok && u.Line == 0 {
			u.Line = s.Line
		}
		return err
	}
	for _, t := range targets {
		w.names[t] = true
	}
	return nil
}

// unary ++/-- statements write their operand
func (w *writeSet) VisitExprStmt(s *hdl.Stmt) error {
	if e := s.Expr; e != nil && e.Kind == hdl.ExprUnary && (e.Op == "++" || e.Op == "--") {
		targets, err := hdl.Targets(e.Arg(0))
		if err != nil {
			return err
		}
		for _, t := range targets {
			w.names[t] = true
		}
	}
	return nil
}
