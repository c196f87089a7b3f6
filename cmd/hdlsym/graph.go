package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/robert-at-pretension-io/hdl-symex/internal/cfg"
	"github.com/robert-at-pretension-io/hdl-symex/internal/engine"
	"github.com/robert-at-pretension-io/hdl-symex/internal/hdl"
	"github.com/robert-at-pretension-io/hdl-symex/internal/runner"
)

type graphOptions struct {
	configPath string
	module     string
	paths      bool
	top        string
}

func newGraphCmd() *cobra.Command {
	o := graphOptions{}
	cmd := &cobra.Command{
		Use:   "graph [design files...]",
		Short: "Print the control-flow graphs of the design's procedural blocks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.run(cmd, args)
		},
	}
	cmd.Flags().StringVarP(&o.configPath, "config", "c", "", "configuration file")
	cmd.Flags().StringVarP(&o.module, "module", "m", "", "only print blocks of this module")
	cmd.Flags().BoolVar(&o.paths, "paths", false, "also list the enumerated paths")
	cmd.Flags().StringVarP(&o.top, "top", "t", "", "top module")
	return cmd
}

func (o *graphOptions) run(cmd *cobra.Command, args []string) error {
	conf, err := loadConfigFile(o.configPath, args)
	if err != nil {
		return err
	}
	if o.top != "" {
		conf.Design.Top = o.top
	}
	logger := logrus.New()
	logger.SetOutput(cmd.ErrOrStderr())
	r := runner.New(conf, logger)
	d, _, err := r.LoadDesign(args)
	if err != nil {
		return err
	}
	opts := r.EngineOptions()
	opts.Log = logger
	e, err := engine.New(d, opts)
	if err != nil {
		return err
	}
	if o.module != "" && d.Module(o.module) == nil {
		return fmt.Errorf("unknown module %q", o.module)
	}
	return writeGraphs(cmd.OutOrStdout(), e, o.module, o.paths)
}

// writeGraphs prints every walked block of every module (or only module when set)
func writeGraphs(w io.Writer, e *engine.Engine, module string, withPaths bool) error {
	for _, mod := range e.Design().Modules {
		if module != "" && mod.Name != module {
			continue
		}
		for i, pb := range mod.Blocks {
			g := e.Graph(mod.Name, i)
			if g == nil {
				fmt.Fprintf(w, "%s block %d (%s): not explored\n", mod.Name, i, pb.Kind)
				continue
			}
			writeGraph(w, mod.Name, i, g, withPaths)
		}
	}
	for _, dr := range e.Dropped {
		if module != "" && dr.Module != module {
			continue
		}
		fmt.Fprintf(w, "dropped %s block %d: %s\n", dr.Module, dr.Block, dr.Reason)
	}
	return nil
}

func writeGraph(w io.Writer, module string, index int, g *cfg.CFG, withPaths bool) {
	trunc := ""
	if g.Truncated {
		trunc = ", truncated"
	}
	fmt.Fprintf(w, "%s block %d (%s): %d basic blocks, %d paths%s\n",
		module, index, g.Kind(), len(g.Blocks), g.NumPaths, trunc)
	for _, bb := range g.Blocks {
		marker := ""
		switch bb.Index {
		case g.Entry:
			marker = " entry"
		case g.Exit:
			marker = " exit"
		}
		fmt.Fprintf(w, "  [%d]%s\n", bb.Index, marker)
		for _, s := range bb.Stmts {
			fmt.Fprintf(w, "      %s\n", stmtSummary(s))
		}
		if bb.Branch != nil {
			fmt.Fprintf(w, "      branch %s\n", stmtSummary(bb.Branch))
		}
		for _, edge := range g.Successors(bb.Index) {
			fmt.Fprintf(w, "      -%s-> [%d]\n", edge.Dir, edge.To)
		}
	}
	if !withPaths {
		return
	}
	for i, p := range g.Paths {
		dirs := g.Directions(p)
		steps := make([]string, len(p))
		for j, b := range p {
			steps[j] = fmt.Sprintf("%d", b)
			if dirs[j] != cfg.Fall {
				steps[j] += ":" + dirs[j].String()
			}
		}
		fmt.Fprintf(w, "  path %d: %s\n", i, strings.Join(steps, " "))
	}
}

// stmtSummary renders one statement on a single line
func stmtSummary(s *hdl.Stmt) string {
	line := ""
	if s.Line > 0 {
		line = fmt.Sprintf("@%d ", s.Line)
	}
	switch s.Kind {
	case hdl.StmtBlocking:
		return fmt.Sprintf("%s%s = %s", line, s.LHS, s.RHS)
	case hdl.StmtNonBlocking:
		return fmt.Sprintf("%s%s <= %s", line, s.LHS, s.RHS)
	case hdl.StmtIf, hdl.StmtLoop:
		if s.Cond != nil {
			return fmt.Sprintf("%s%s (%s)", line, s.Kind, s.Cond)
		}
		return fmt.Sprintf("%s%s %s", line, s.Kind, s.Loop)
	case hdl.StmtCase:
		return fmt.Sprintf("%scase (%s) %d items", line, s.Subject, len(s.Items))
	case hdl.StmtExpr, hdl.StmtAssert:
		return fmt.Sprintf("%s%s %s", line, s.Kind, s.Expr)
	case hdl.StmtDecl:
		if s.Decl != nil {
			return fmt.Sprintf("%sdecl %s", line, s.Decl.Name)
		}
	case hdl.StmtInstance:
		if s.Instance != nil {
			return fmt.Sprintf("%sinstance %s", line, s.Instance.Name)
		}
	}
	return line + string(s.Kind)
}
