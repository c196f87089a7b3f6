package search

import (
	"github.com/robert-at-pretension-io/hdl-symex/internal/hdl"
)

// VisitModule establishes an instance's combinational view: declarations
// with initialisers are seeded in cycle 0, then ports and continuous assigns
// are settled.
func (d *DepthFirst) VisitModule(f *Frame) error {
	if f.Module == nil {
		return nil
	}
	if f.State.Cycle == 0 {
		if err := d.seed(f); err != nil {
			return err
		}
	}
	return d.Settle(f)
}

func (d *DepthFirst) seed(f *Frame) error {
	st, inst := f.State, f.Instance
	for _, decl := range f.Module.Decls {
		if decl.Init == nil {
			continue
		}
		v, err := st.Eval(inst, decl.Init)
		if err != nil {
			if err := d.skipDecl(f, decl, err); err != nil {
				return err
			}
			continue
		}
		st.Set(inst, decl.Name, v)
	}
	return nil
}

func (d *DepthFirst) skipDecl(f *Frame, decl *hdl.Decl, err error) error {
	return d.skip(f, &hdl.Stmt{Kind: hdl.StmtDecl, Decl: decl}, err)
}

// Settle drives input ports from the parent bindings, evaluates continuous
// assigns in dependency order and drives the parent signals bound to outputs.
func (d *DepthFirst) Settle(f *Frame) error {
	if f.Module == nil {
		return nil
	}
	if err := d.bindInputs(f); err != nil {
		return err
	}
	st, inst := f.State, f.Instance
	for _, a := range d.assignOrder(f.Module) {
		v, err := st.Eval(inst, a.RHS)
		if err == nil {
			err = st.Assign(inst, a.LHS, v, false)
		}
		if err != nil {
			if err := d.skip(f, &hdl.Stmt{Kind: hdl.StmtBlocking, LHS: a.LHS, RHS: a.RHS, Line: a.Line}, err); err != nil {
				return err
			}
		}
	}
	return d.driveOutputs(f)
}

type portBinding struct {
	port *hdl.Port
	expr *hdl.Expr
}

// bindings pairs the instance's port connections with the child ports.
// Unnamed bindings connect positionally.
func (d *DepthFirst) bindings(f *Frame) (string, []portBinding) {
	decl := f.Manager.InstanceDecl[f.Instance]
	parent := f.Manager.InstanceParent[f.Instance]
	if decl == nil || parent == "" {
		return "", nil
	}
	var out []portBinding
	for i, b := range decl.Bindings {
		if b.Expr == nil {
			continue
		}
		var p *hdl.Port
		if b.Port != "" {
			p = f.Module.Port(b.Port)
		} else if i < len(f.Module.Ports) {
			p = f.Module.Ports[i]
		}
		if p == nil {
			continue
		}
		out = append(out, portBinding{port: p, expr: b.Expr})
	}
	return parent, out
}

func (d *DepthFirst) bindInputs(f *Frame) error {
	parent, bs := d.bindings(f)
	st := f.State
	for _, b := range bs {
		if b.port.Direction == hdl.Output {
			continue
		}
		v, err := st.Eval(parent, b.expr)
		if err != nil {
			if err := d.skip(f, nil, err); err != nil {
				return err
			}
			continue
		}
		st.Set(f.Instance, b.port.Name, v)
	}
	return nil
}

func (d *DepthFirst) driveOutputs(f *Frame) error {
	parent, bs := d.bindings(f)
	st := f.State
	for _, b := range bs {
		if b.port.Direction != hdl.Output {
			continue
		}
		v := st.Read(f.Instance, b.port.Name)
		if err := st.Assign(parent, b.expr, v, false); err != nil {
			if err := d.skip(f, nil, err); err != nil {
				return err
			}
		}
	}
	return nil
}

// assignOrder sorts a module's continuous assigns so that every assign runs
// after the assigns producing its operands. Cyclic leftovers keep declaration order.
func (d *DepthFirst) assignOrder(m *hdl.Module) []*hdl.ContinuousAssign {
	if order, ok := d.order[m]; ok {
		return order
	}
	n := len(m.Assigns)
	writers := make(map[string][]int)
	for i, a := range m.Assigns {
		targets, _ := hdl.Targets(a.LHS)
		for _, t := range targets {
			writers[t] = append(writers[t], i)
		}
	}
	indeg := make([]int, n)
	succ := make([][]int, n)
	for j, a := range m.Assigns {
		seen := make(map[int]bool)
		for _, r := range hdl.Identifiers(a.RHS) {
			for _, i := range writers[r] {
				if i == j || seen[i] {
					continue
				}
				seen[i] = true
				succ[i] = append(succ[i], j)
				indeg[j]++
			}
		}
	}

	order := make([]*hdl.ContinuousAssign, 0, n)
	done := make([]bool, n)
	for len(order) < n {
		progressed := false
		for i := 0; i < n; i++ {
			if done[i] || indeg[i] > 0 {
				continue
			}
			done[i] = true
			progressed = true
			order = append(order, m.Assigns[i])
			for _, j := range succ[i] {
				indeg[j]--
			}
		}
		if progressed {
			continue
		}
		// a combinational loop: release the first remaining assign
		for i := 0; i < n; i++ {
			if !done[i] {
				indeg[i] = 0
				break
			}
		}
	}
	d.order[m] = order
	return order
}
