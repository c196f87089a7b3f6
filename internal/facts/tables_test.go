package facts

import (
	"testing"

	"github.com/robert-at-pretension-io/hdl-symex/internal/engine"
	"github.com/robert-at-pretension-io/hdl-symex/internal/hdl"
)

func sampleDesign() *hdl.Design {
	a, b, in := hdl.Ident("a"), hdl.Ident("b"), hdl.Ident("in")
	top := &hdl.Module{
		Name:  "top",
		Ports: []*hdl.Port{{Name: "in", Direction: hdl.Input, Width: 4}},
		Decls: []*hdl.Decl{{Name: "a", Kind: "reg", Width: 4}, {Name: "b", Width: 4}},
		Assigns: []*hdl.ContinuousAssign{{
			LHS: b, RHS: in,
		}},
		Blocks: []*hdl.ProcBlock{
			{Kind: hdl.Sequential, Body: hdl.Block(
				hdl.If(hdl.Binary("==", b, hdl.Sized(4, 1)),
					hdl.NonBlocking(a, hdl.Sized(4, 0)),
					hdl.NonBlocking(a, b)),
			)},
			{Kind: hdl.Combinational, Body: hdl.Block(
				hdl.If(hdl.Binary("==", a, hdl.Sized(4, 9)),
					hdl.ExprStmt(hdl.Call("$error", hdl.Str("ASSERT a"))), nil),
			)},
			{Kind: hdl.Final, Body: hdl.ExprStmt(hdl.Call("$display", hdl.Str("done")))},
		},
	}
	return &hdl.Design{Modules: []*hdl.Module{top}}
}

func TestBuildTablesPopulatesCoreRelations(t *testing.T) {
	e, err := engine.New(sampleDesign(), engine.Options{})
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}

	tables := BuildTables(e)

	if len(tables.Modules) != 1 || !tables.Modules[0].IsTop {
		t.Fatalf("expected 1 top module row, got %+v", tables.Modules)
	}
	if len(tables.Ports) != 1 || tables.Ports[0].Width != 4 {
		t.Fatalf("expected 1 port row of width 4, got %+v", tables.Ports)
	}
	if len(tables.Signals) != 2 || tables.Signals[1].Kind != "net" {
		t.Fatalf("expected 2 signal rows, got %+v", tables.Signals)
	}
	if len(tables.Blocks) != 4 {
		t.Fatalf("expected assign group plus 3 block rows, got %+v", tables.Blocks)
	}
	if tables.Blocks[0].Kind != "assign" || tables.Blocks[0].Index != -1 {
		t.Fatalf("expected assign group first, got %+v", tables.Blocks[0])
	}
	if tables.Blocks[3].Dropped == "" {
		t.Fatalf("expected final block to be dropped, got %+v", tables.Blocks[3])
	}
	if tables.Blocks[1].NumPaths != 2 || tables.Blocks[1].Enumerated != 2 {
		t.Fatalf("expected 2 paths in block 0, got %+v", tables.Blocks[1])
	}
	if len(tables.Paths) != 4 {
		t.Fatalf("expected 4 path rows, got %+v", tables.Paths)
	}
	if tables.Paths[0].Directions != "then" || tables.Paths[1].Directions != "else" {
		t.Fatalf("unexpected path directions: %+v", tables.Paths[:2])
	}
	if len(tables.Writes) != 2 || tables.Writes[0].Signal != "b" || tables.Writes[1].Signal != "a" {
		t.Fatalf("unexpected write rows: %+v", tables.Writes)
	}
	if len(tables.Dependencies) != 2 || tables.Dependencies[0].Target != "a" || tables.Dependencies[1].Source != "in" {
		t.Fatalf("unexpected dependency rows: %+v", tables.Dependencies)
	}
	if len(tables.Assertions) != 1 || tables.Assertions[0].Kind != "marker" || tables.Assertions[0].Block != 1 {
		t.Fatalf("unexpected assertion rows: %+v", tables.Assertions)
	}
	if len(tables.Cone) != 2 {
		t.Fatalf("expected cone over the assign group and block 0, got %+v", tables.Cone)
	}
	for _, row := range tables.Cone {
		if row.Direct != (row.Block == 0) {
			t.Fatalf("only block 0 writes a directly, got %+v", tables.Cone)
		}
	}
	if len(tables.Instances) != 1 || tables.Instances[0].Parent != "" {
		t.Fatalf("unexpected instance rows: %+v", tables.Instances)
	}
	if tables.Instances[0].NumPaths != 4 || tables.Instances[0].PathCodes != 4 {
		t.Fatalf("expected 4 path codes for top, got %+v", tables.Instances[0])
	}
}
