// hdlsym explores every path of an HDL design for a bounded number of clock
// cycles and reports the first assertion it can violate, with the concrete
// input values that reach it.
//
// Designs arrive as JSON or YAML documents from an external HDL parser; see
// internal/frontend for the format.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/robert-at-pretension-io/hdl-symex/internal/config"
	"github.com/robert-at-pretension-io/hdl-symex/internal/engine"
	"github.com/robert-at-pretension-io/hdl-symex/internal/runner"
)

const deadlineMessage = "Execution time limit exceeded. Exiting."

type options struct {
	configPath   string
	debug        bool
	sv           bool
	strict       bool
	useCache     bool
	cacheBackend string
	cacheDir     string
	exploreTime  int
	top          string
	threshold    int64
	batchSize    int
	maxPaths     int
	jsonOutput   bool
	metricsFile  string
	timing       bool
	timingPath   string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	o := options{}

	cmd := &cobra.Command{
		Use:   "hdlsym <num_cycles> [design files...]",
		Short: "Symbolic execution of HDL designs over a bounded number of cycles",
		Long: `hdlsym walks every combination of static paths through the procedural
blocks of a design, cycle by cycle, and asks a SAT-backed bitvector solver
whether an assertion can fail. The first violation is reported as a
counterexample; otherwise a summary of the explored schedules is printed.

Configuration is read from:
  1. ./hdlsym.json
  2. ./.hdlsym.json
  3. <design dir>/hdlsym.json
  4. ~/.config/hdlsym/config.json
Run 'hdlsym init' to create a default configuration file.`,
		Args:         cobra.MinimumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cycles, err := strconv.Atoi(args[0])
			if err != nil || cycles < 1 {
				return fmt.Errorf("num_cycles must be a positive integer, got %q", args[0])
			}

			logger := logrus.New()
			logger.SetOutput(cmd.ErrOrStderr())
			if o.debug {
				logger.SetLevel(logrus.DebugLevel)
			}

			cfg, err := o.loadConfig(cmd.Flags(), args[1:])
			if err != nil {
				return err
			}
			return o.run(cmd, cfg, logger, cycles, args[1:])
		},
	}
	cmd.SetGlobalNormalizationFunc(underscoreToDash)

	cmd.Flags().StringVarP(&o.configPath, "config", "c", "", "configuration file (default: search order above)")
	cmd.Flags().BoolVarP(&o.debug, "debug", "B", false, "debug mode: verbose logging and per-iteration state dumps")
	cmd.Flags().BoolVar(&o.sv, "sv", false, "SystemVerilog mode: treat immediate assert statements as assertions")
	cmd.Flags().BoolVar(&o.strict, "strict", false, "fail on unsupported constructs instead of skipping them")
	cmd.Flags().BoolVar(&o.useCache, "use-cache", false, "cache solver verdicts across runs")
	cmd.Flags().StringVar(&o.cacheBackend, "cache-backend", "", "verdict cache backend: file or badger")
	cmd.Flags().StringVar(&o.cacheDir, "cache-dir", "", "verdict cache directory")
	cmd.Flags().IntVar(&o.exploreTime, "explore-time", 0, "time limit in seconds (0 = unbounded)")
	cmd.Flags().StringVarP(&o.top, "top", "t", "", "top module (default: from the design documents)")
	cmd.Flags().Int64Var(&o.threshold, "threshold", 0, "schedule estimate above which exploration is batched")
	cmd.Flags().IntVar(&o.batchSize, "batch-size", 0, "schedules per batch when batched")
	cmd.Flags().IntVar(&o.maxPaths, "max-paths", 0, "cap on enumerated paths per procedural block")
	cmd.Flags().BoolVar(&o.jsonOutput, "json", false, "print the report as JSON")
	cmd.Flags().StringVar(&o.metricsFile, "metrics-file", "", "write prometheus metrics to this file")
	cmd.Flags().BoolVar(&o.timing, "timing", false, "write stage timings as JSONL")
	cmd.Flags().StringVar(&o.timingPath, "timing-path", "", "JSONL timing destination (default: timing.jsonl)")

	cmd.AddCommand(newInitCmd(), newFactsCmd(), newGraphCmd())
	return cmd
}

// underscoreToDash accepts --use_cache and --explore_time spellings
func underscoreToDash(_ *pflag.FlagSet, name string) pflag.NormalizedName {
	return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
}

func loadConfigFile(path string, files []string) (*config.Config, error) {
	if path != "" {
		cfg, err := config.LoadFile(path)
		if err != nil {
			return nil, fmt.Errorf("loading config %s: %w", path, err)
		}
		return cfg, nil
	}
	root := "."
	if len(files) > 0 {
		root = filepath.Dir(files[0])
	}
	return config.Load(root)
}

// loadConfig reads the configuration and applies the flags that were set
func (o *options) loadConfig(flags *pflag.FlagSet, files []string) (*config.Config, error) {
	cfg, err := loadConfigFile(o.configPath, files)
	if err != nil {
		return nil, err
	}
	if flags.Changed("sv") {
		cfg.Design.SystemVerilog = o.sv
	}
	if flags.Changed("strict") {
		cfg.Design.Strict = o.strict
	}
	if flags.Changed("top") {
		cfg.Design.Top = o.top
	}
	if flags.Changed("use-cache") {
		cfg.Cache.Enabled = &o.useCache
	}
	if o.cacheBackend != "" {
		cfg.Cache.Backend = o.cacheBackend
	}
	if o.cacheDir != "" {
		cfg.Cache.Dir = o.cacheDir
	}
	if flags.Changed("explore-time") {
		cfg.Engine.ExploreTime = o.exploreTime
	}
	if o.threshold > 0 {
		cfg.Engine.ExplosionThreshold = o.threshold
	}
	if o.batchSize > 0 {
		cfg.Engine.BatchSize = o.batchSize
	}
	if o.maxPaths > 0 {
		cfg.Engine.MaxPathsPerBlock = o.maxPaths
	}
	if o.jsonOutput {
		cfg.Output.Format = "json"
	}
	if o.metricsFile != "" {
		cfg.Output.MetricsFile = o.metricsFile
	}
	if o.timing {
		cfg.Output.Timing = true
	}
	if o.timingPath != "" {
		cfg.Output.TimingPath = o.timingPath
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (o *options) run(cmd *cobra.Command, cfg *config.Config, logger *logrus.Logger, cycles int, files []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	if limit := cfg.Engine.ExploreTime; limit > 0 {
		// the solver does not observe ctx; the watchdog ends a run stuck inside one check
		watchdog := time.AfterFunc(time.Duration(limit)*time.Second+time.Second, func() {
			fmt.Fprintln(out, deadlineMessage)
			os.Exit(1)
		})
		defer watchdog.Stop()
	}

	r := runner.New(cfg, logger)
	r.Debug = o.debug
	rep, err := r.Run(ctx, cycles, files)
	if errors.Is(err, engine.ErrDeadlineExceeded) {
		fmt.Fprintln(out, deadlineMessage)
		return err
	}
	if err != nil {
		return err
	}
	return runner.WriteReport(out, rep, cfg.Output.Format)
}
