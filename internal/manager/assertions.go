package manager

import (
	"regexp"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/robert-at-pretension-io/hdl-symex/internal/hdl"
)

// Assertion kinds
const (
	// KindMarker is `if (cond) $error(...)`: the assertion fails when cond holds
	KindMarker = "marker"
	// KindImmediate is a SystemVerilog `assert (expr)`: it fails when expr is false
	KindImmediate = "immediate"
)

// Assertion is a property check found in a module
type Assertion struct {
	ID        int       `json:"id"`
	Module    string    `json:"module"`
	Block     int       `json:"block"`
	Kind      string    `json:"kind"`
	Expr      *hdl.Expr `json:"expr"`
	Violation *hdl.Expr `json:"violation"`
	Signals   []string  `json:"signals"`
	Message   string    `json:"message,omitempty"`
	Line      int       `json:"line,omitempty"`

	stmt *hdl.Stmt
}

var severityCalls = map[string]bool{
	"$error": true,
	"$fatal": true,
}

// IsMarker reports whether s is a severity call flagging a failed check
func IsMarker(s *hdl.Stmt) bool {
	if s == nil || s.Kind != hdl.StmtExpr || s.Expr == nil || s.Expr.Kind != hdl.ExprCall {
		return false
	}
	if severityCalls[s.Expr.Name] {
		return true
	}
	for _, a := range s.Expr.Args {
		if a.Kind == hdl.ExprString {
			return strings.Contains(strings.ToUpper(a.Value), "ASSERT")
		}
	}
	return false
}

func markerMessage(s *hdl.Stmt) string {
	for _, a := range s.Expr.Args {
		if a.Kind == hdl.ExprString {
			return a.Value
		}
	}
	return s.Expr.Name
}

type assertionScanner struct {
	hdl.Walker
	m      *Manager
	module string
	block  int
}

func (a *assertionScanner) VisitIf(s *hdl.Stmt) error {
	if first := hdl.FirstStmt(s.Then); IsMarker(first) && s.Cond != nil {
		a.m.addAssertion(&Assertion{
			Module:    a.module,
			Block:     a.block,
			Kind:      KindMarker,
			Expr:      s.Cond,
			Violation: s.Cond,
			Message:   markerMessage(first),
			Line:      s.Line,
			stmt:      first,
		})
	}
	return a.Walker.VisitIf(s)
}

func (a *assertionScanner) VisitAssert(s *hdl.Stmt) error {
	if a.m.opts.SystemVerilog && s.Expr != nil {
		a.m.addAssertion(&Assertion{
			Module:    a.module,
			Block:     a.block,
			Kind:      KindImmediate,
			Expr:      s.Expr,
			Violation: hdl.Unary("!", s.Expr),
			Line:      s.Line,
			stmt:      s,
		})
	}
	return nil
}

// ExtractAssertions scans every procedural block of a module
func (m *Manager) ExtractAssertions(mod *hdl.Module) {
	for i, b := range mod.Blocks {
		sc := &assertionScanner{m: m, module: mod.Name, block: i}
		sc.Self = sc
		if err := hdl.Dispatch(sc, b.Body); err != nil {
			m.log.WithFields(logrus.Fields{"module": mod.Name, "block": i}).Warnf("assertion scan stopped: %v", err)
		}
	}
}

func (m *Manager) addAssertion(a *Assertion) {
	a.ID = len(m.Assertions)
	a.Signals = ReferencedSignals(a.Violation)
	m.Assertions = append(m.Assertions, a)
}

// AssertionAt returns the assertion whose marker or assert statement is s
func (m *Manager) AssertionAt(s *hdl.Stmt) *Assertion {
	for _, a := range m.Assertions {
		if a.stmt == s {
			return a
		}
	}
	return nil
}

var (
	literalPattern = regexp.MustCompile(`\d*'[sS]?[bBoOdDhH][0-9a-fA-FxXzZ_?]+`)
	identPattern   = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_.]*`)
	keywords       = map[string]bool{"begin": true, "end": true, "if": true, "else": true, "or": true, "and": true, "not": true}
)

// ReferencedSignals returns the identifiers of e, falling back to scanning
// the printed expression when the tree yields none
func ReferencedSignals(e *hdl.Expr) []string {
	if names := hdl.Identifiers(e); len(names) > 0 {
		return names
	}
	if e == nil {
		return nil
	}
	text := literalPattern.ReplaceAllString(e.String(), " ")
	seen := make(map[string]bool)
	var out []string
	for _, loc := range identPattern.FindAllStringIndex(text, -1) {
		if loc[0] > 0 && text[loc[0]-1] == '$' {
			continue
		}
		name := text[loc[0]:loc[1]]
		if keywords[name] || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}

// MapConeOfInfluence fills BlocksOfInterest: for each assertion, the blocks
// of its module whose write-set meets the assertion's signals
func (m *Manager) MapConeOfInfluence() {
	m.BlocksOfInterest = make(map[int][]BlockRef, len(m.Assertions))
	for _, a := range m.Assertions {
		m.BlocksOfInterest[a.ID] = m.blocksWriting(a.Module, a.Signals)
	}
}

func (m *Manager) blocksWriting(module string, signals []string) []BlockRef {
	want := make(map[string]bool, len(signals))
	for _, s := range signals {
		want[s] = true
	}
	var out []BlockRef
	for _, ref := range m.BlockRefs() {
		if ref.Module != module {
			continue
		}
		for _, w := range m.AlwaysWrites[ref] {
			if want[w] {
				out = append(out, ref)
				break
			}
		}
	}
	return out
}

// ConeSignals closes an assertion's signals over the module's dependencies
func (m *Manager) ConeSignals(a *Assertion) []string {
	deps := m.Dependencies[a.Module]
	seen := make(map[string]bool)
	queue := append([]string(nil), a.Signals...)
	for len(queue) > 0 {
		s := queue[0]
		queue = queue[1:]
		if seen[s] {
			continue
		}
		seen[s] = true
		queue = append(queue, deps[s]...)
	}
	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// TransitiveBlocks lists the blocks that write anything in the assertion's closed cone
func (m *Manager) TransitiveBlocks(a *Assertion) []BlockRef {
	return m.blocksWriting(a.Module, m.ConeSignals(a))
}
