// Package runner wires configuration, the design front end, the verdict
// cache, metrics and timing around one engine run and renders its report.
package runner

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/robert-at-pretension-io/hdl-symex/internal/cache"
	"github.com/robert-at-pretension-io/hdl-symex/internal/config"
	"github.com/robert-at-pretension-io/hdl-symex/internal/engine"
	"github.com/robert-at-pretension-io/hdl-symex/internal/frontend"
	"github.com/robert-at-pretension-io/hdl-symex/internal/hdl"
	"github.com/robert-at-pretension-io/hdl-symex/internal/metrics"
)

// Runner executes symbolic runs with one configuration
type Runner struct {
	Config *config.Config
	Log    logrus.FieldLogger
	Debug  bool
}

// Report is the outcome of one run
type Report struct {
	RunID  string         `json:"run_id"`
	Files  []string       `json:"files"`
	Result *engine.Result `json:"result"`
}

// New creates a Runner. A nil config means DefaultConfig.
func New(cfg *config.Config, log logrus.FieldLogger) *Runner {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	return &Runner{Config: cfg, Log: log}
}

// LoadDesign expands the file arguments and loads the merged design
func (r *Runner) LoadDesign(args []string) (*hdl.Design, []string, error) {
	paths, err := r.designFiles(args)
	if err != nil {
		return nil, nil, err
	}
	loader, err := frontend.New(r.Log)
	if err != nil {
		return nil, nil, err
	}
	d, err := loader.Load(paths, r.Config.Design.Top)
	if err != nil {
		return nil, paths, err
	}
	return d, paths, nil
}

func (r *Runner) designFiles(args []string) ([]string, error) {
	if len(args) == 0 {
		return r.Config.ResolveFiles(".")
	}
	return r.Config.ExpandArgs(args)
}

// EngineOptions maps the configuration onto engine options
func (r *Runner) EngineOptions() engine.Options {
	cfg := r.Config
	return engine.Options{
		SystemVerilog:      cfg.Design.SystemVerilog,
		Strict:             cfg.Design.Strict,
		Debug:              r.Debug,
		ExplosionThreshold: cfg.Engine.ExplosionThreshold,
		BatchSize:          cfg.Engine.BatchSize,
		MaxPathsPerBlock:   cfg.Engine.MaxPathsPerBlock,
	}
}

// Run loads the design, explores it for the given number of cycles and
// returns the report. On deadline expiry the partial report is returned with
// engine.ErrDeadlineExceeded.
func (r *Runner) Run(ctx context.Context, cycles int, args []string) (*Report, error) {
	runStart := time.Now()
	rep := &Report{RunID: uuid.NewString()}
	log := r.Log.WithField("run", rep.RunID)
	cfg := r.Config

	timing := newTimingRecorder(rep.RunID, runStart, resolveTimingPath(cfg.Output.Timing, cfg.Output.TimingPath))
	if err := timing.Err(); err != nil {
		log.Warnf("timing output disabled: %v", err)
	}
	defer timing.Close()

	if cfg.Engine.ExploreTime > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(cfg.Engine.ExploreTime)*time.Second)
		defer cancel()
	}

	stepStart := time.Now()
	d, paths, err := r.LoadDesign(args)
	rep.Files = paths
	status := "ok"
	if err != nil {
		status = "error"
	}
	for _, p := range paths {
		timing.RecordFile("load", p, status, stepStart, time.Since(stepStart))
	}
	timing.RecordStage("load", stepStart, time.Since(stepStart), status)
	if err != nil {
		return rep, err
	}
	log.WithField("modules", len(d.Modules)).Debug("design loaded")

	opts := r.EngineOptions()
	opts.Log = log
	recorder := metrics.NewRecorder()
	opts.Observer = recorder

	if cfg.CacheEnabled() {
		root := "."
		if len(paths) > 0 {
			root = filepath.Dir(paths[0])
		}
		c, err := cache.Open(cfg.Cache.Backend, cfg.ResolveCacheDir(root), log)
		if err != nil {
			return rep, fmt.Errorf("open cache: %w", err)
		}
		defer func() {
			if err := c.Close(); err != nil {
				log.Warnf("close cache: %v", err)
			}
		}()
		opts.Cache = c
	}

	stepStart = time.Now()
	e, err := engine.New(d, opts)
	timing.RecordStage("analyze", stepStart, time.Since(stepStart), stageStatus(err))
	if err != nil {
		return rep, err
	}
	for _, db := range e.Dropped {
		log.WithFields(logrus.Fields{"module": db.Module, "block": db.Block}).Debugf("block not explored: %s", db.Reason)
	}

	stepStart = time.Now()
	res, err := e.Execute(ctx, cycles)
	rep.Result = res
	timing.RecordStage("explore", stepStart, time.Since(stepStart), stageStatus(err))

	if path := cfg.Output.MetricsFile; path != "" {
		if werr := recorder.WriteTextfile(path); werr != nil {
			log.Warnf("write metrics: %v", werr)
		}
	}
	timing.RecordStage("total", runStart, time.Since(runStart), stageStatus(err))
	return rep, err
}

func stageStatus(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
