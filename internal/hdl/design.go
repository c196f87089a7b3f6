package hdl

// Design is a parsed set of modules handed over by an external HDL front end
type Design struct {
	// Top names the root module. Empty means the first module that is never instantiated.
	Top     string    `json:"top,omitempty" yaml:"top,omitempty"`
	Modules []*Module `json:"modules" yaml:"modules"`
}

// Module is one module definition
type Module struct {
	Name      string              `json:"name" yaml:"name"`
	Ports     []*Port             `json:"ports,omitempty" yaml:"ports,omitempty"`
	Decls     []*Decl             `json:"decls,omitempty" yaml:"decls,omitempty"`
	Instances []*Instance         `json:"instances,omitempty" yaml:"instances,omitempty"`
	Blocks    []*ProcBlock        `json:"blocks,omitempty" yaml:"blocks,omitempty"`
	Assigns   []*ContinuousAssign `json:"assigns,omitempty" yaml:"assigns,omitempty"`
	Line      int                 `json:"line,omitempty" yaml:"line,omitempty"`
}

// PortDirection is input, output or inout
type PortDirection string

const (
	Input  PortDirection = "input"
	Output PortDirection = "output"
	Inout  PortDirection = "inout"
)

// Port is a module port
type Port struct {
	Name      string        `json:"name" yaml:"name"`
	Direction PortDirection `json:"direction" yaml:"direction"`
	Width     int           `json:"width,omitempty" yaml:"width,omitempty"`
}

// Decl is a module-level or block-local declaration (reg, wire, logic, integer, parameter...)
type Decl struct {
	Name  string `json:"name" yaml:"name"`
	Kind  string `json:"kind,omitempty" yaml:"kind,omitempty"`
	Width int    `json:"width,omitempty" yaml:"width,omitempty"`
	Init  *Expr  `json:"init,omitempty" yaml:"init,omitempty"`
}

// IsConstant reports whether the declaration names a parameter
func (d *Decl) IsConstant() bool {
	return d.Kind == "parameter" || d.Kind == "localparam"
}

// Instance is a sub-module instantiation
type Instance struct {
	Module   string     `json:"module" yaml:"module"`
	Name     string     `json:"name" yaml:"name"`
	Bindings []*Binding `json:"bindings,omitempty" yaml:"bindings,omitempty"`
	Line     int        `json:"line,omitempty" yaml:"line,omitempty"`
}

// Binding connects a sub-module port to an expression in the parent
type Binding struct {
	Port string `json:"port" yaml:"port"`
	Expr *Expr  `json:"expr,omitempty" yaml:"expr,omitempty"`
}

// BlockKind classifies a procedural block
type BlockKind string

const (
	Combinational BlockKind = "combinational"
	Sequential    BlockKind = "sequential"
	Latch         BlockKind = "latch"
	Initial       BlockKind = "initial"
	Final         BlockKind = "final"
)

// ProcBlock is one always/initial/final block
type ProcBlock struct {
	Kind BlockKind `json:"kind" yaml:"kind"`
	Name string    `json:"name,omitempty" yaml:"name,omitempty"`
	Body *Stmt     `json:"body" yaml:"body"`
	Line int       `json:"line,omitempty" yaml:"line,omitempty"`
}

// ContinuousAssign is an `assign lhs = rhs` item
type ContinuousAssign struct {
	LHS  *Expr `json:"lhs" yaml:"lhs"`
	RHS  *Expr `json:"rhs" yaml:"rhs"`
	Line int   `json:"line,omitempty" yaml:"line,omitempty"`
}

// DefaultWidth is the width of an undeclared net
const DefaultWidth = 1

// IntegerWidth is the width of integer declarations and unsized literals
const IntegerWidth = 32

// Module returns the module with the given name, or nil
func (d *Design) Module(name string) *Module {
	for _, m := range d.Modules {
		if m.Name == name {
			return m
		}
	}
	return nil
}

// Port returns the named port, or nil
func (m *Module) Port(name string) *Port {
	for _, p := range m.Ports {
		if p.Name == name {
			return p
		}
	}
	return nil
}

// Decl returns the named declaration, or nil
func (m *Module) Decl(name string) *Decl {
	for _, d := range m.Decls {
		if d.Name == name {
			return d
		}
	}
	return nil
}

// Width returns the declared width of a signal and whether it is declared at all
func (m *Module) Width(name string) (int, bool) {
	if p := m.Port(name); p != nil {
		return normWidth(p.Width), true
	}
	if d := m.Decl(name); d != nil {
		if d.Width == 0 && d.Kind == "integer" {
			return IntegerWidth, true
		}
		return normWidth(d.Width), true
	}
	return DefaultWidth, false
}

// Inputs returns the names of the input ports in declaration order
func (m *Module) Inputs() []string {
	var names []string
	for _, p := range m.Ports {
		if p.Direction == Input || p.Direction == Inout {
			names = append(names, p.Name)
		}
	}
	return names
}

func normWidth(w int) int {
	if w <= 0 {
		return DefaultWidth
	}
	return w
}
