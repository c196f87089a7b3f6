package runner

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/robert-at-pretension-io/hdl-symex/internal/engine"
)

// WriteReport renders a report in the configured format ("text" or "json")
func WriteReport(w io.Writer, rep *Report, format string) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	}
	return writeText(w, rep)
}

func writeText(w io.Writer, rep *Report) error {
	res := rep.Result
	if res == nil {
		_, err := fmt.Fprintf(w, "run %s: no result\n", rep.RunID)
		return err
	}

	if cex := res.Counterexample; cex != nil {
		fmt.Fprintln(w, "Assertion violation")
		if a := cex.Assertion; a != nil {
			where := fmt.Sprintf("%s block %d", a.Module, a.Block)
			if a.Line > 0 {
				where += fmt.Sprintf(" line %d", a.Line)
			}
			fmt.Fprintf(w, "  assertion: %s (%s)\n", a.Expr, where)
			if a.Message != "" {
				fmt.Fprintf(w, "  message:   %s\n", a.Message)
			}
		}
		fmt.Fprintf(w, "  instance:  %s, cycle %d\n", cex.Instance, cex.Cycle)
		for _, b := range cex.Bindings {
			live := ""
			if b.Live {
				live = fmt.Sprintf("  (%s.%s)", b.Instance, b.Signal)
			}
			fmt.Fprintf(w, "  %s = %d%s\n", b.Symbol, b.Value, live)
		}
	} else if res.Stats.Unsat > 0 {
		fmt.Fprintln(w, "UNSAT")
	} else {
		fmt.Fprintln(w, "No assertion violation found")
	}

	writeSummary(w, res)
	fmt.Fprintf(w, "Elapsed time %s\n", res.Elapsed.Round(time.Microsecond))
	_, err := fmt.Fprintf(w, "Solver time %s\n", res.SolverTime.Round(time.Microsecond))
	return err
}

func writeSummary(w io.Writer, res *engine.Result) {
	s := res.Stats
	fmt.Fprintf(w, "Schedules: %d run (estimate %s", res.Iterations, res.Estimate)
	if res.Piecewise {
		fmt.Fprintf(w, ", %d batches", res.Batches)
	}
	fmt.Fprintf(w, "), %d explored, %d skipped, %d infeasible, %d ignored\n",
		s.Explored, s.Skipped, s.Infeasible, s.Ignored)
	for _, d := range res.Dropped {
		fmt.Fprintf(w, "Not explored: %s block %d: %s\n", d.Module, d.Block, d.Reason)
	}
}
