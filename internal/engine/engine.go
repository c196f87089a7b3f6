// Package engine orchestrates a symbolic run: it builds the CFG arena,
// enumerates path schedules lazily in batches, walks every schedule cycle by
// cycle and resolves assertion violations into counterexamples.
package engine

import (
	"errors"
	"fmt"
	"io"
	"math/big"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/robert-at-pretension-io/hdl-symex/internal/cache"
	"github.com/robert-at-pretension-io/hdl-symex/internal/cfg"
	"github.com/robert-at-pretension-io/hdl-symex/internal/hdl"
	"github.com/robert-at-pretension-io/hdl-symex/internal/manager"
	"github.com/robert-at-pretension-io/hdl-symex/internal/search"
	"github.com/robert-at-pretension-io/hdl-symex/internal/smt"
	"github.com/robert-at-pretension-io/hdl-symex/internal/state"
)

const (
	DefaultExplosionThreshold = 10000
	DefaultBatchSize          = 1000
	DefaultMaxPathsPerBlock   = 65536
)

// Observer receives progress events, typically a metrics recorder
type Observer interface {
	Iteration(outcome string, d time.Duration)
	SolverCall(result string, cached bool, d time.Duration)
	Batch()
	PathEstimate(v float64)
}

// Options configure one engine
type Options struct {
	SystemVerilog bool
	Debug         bool
	// Strict makes unsupported constructs fatal instead of skipping them
	Strict bool

	// ExplosionThreshold is the schedule estimate above which exploration is batched
	ExplosionThreshold int64
	BatchSize          int
	// MaxPathsPerBlock caps the paths enumerated for one procedural block
	MaxPathsPerBlock int

	Cache    cache.Cache
	Observer Observer
	Log      logrus.FieldLogger
}

func (o *Options) applyDefaults() {
	if o.ExplosionThreshold <= 0 {
		o.ExplosionThreshold = DefaultExplosionThreshold
	}
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultBatchSize
	}
	if o.MaxPathsPerBlock <= 0 {
		o.MaxPathsPerBlock = DefaultMaxPathsPerBlock
	}
	if o.Log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		o.Log = l
	}
}

// DroppedBlock is a procedural block left out of exploration
type DroppedBlock struct {
	Module string `json:"module"`
	Block  int    `json:"block"`
	Reason string `json:"reason"`
}

// slot is one procedural block of one instance, walked once per cycle
type slot struct {
	instance string
	block    int
	graph    int
	initial  bool
}

// Engine owns the manager, the state and the CFG arena of one design
type Engine struct {
	Manager *manager.Manager
	State   *state.State
	Dropped []DroppedBlock

	design *hdl.Design
	opts   Options
	log    logrus.FieldLogger
	solver *smt.Solver
	walker *search.DepthFirst

	// graphs is the arena of immutable CFGs, one per module block
	graphs []*cfg.CFG
	// moduleGraphs maps module -> block index -> arena index, -1 when not walked
	moduleGraphs map[string][]int
	slots        []slot
	instSlots    map[string][]int
}

// New analyses a design and builds every CFG once
func New(d *hdl.Design, opts Options) (*Engine, error) {
	opts.applyDefaults()
	m, err := manager.New(d, manager.Options{SystemVerilog: opts.SystemVerilog, Debug: opts.Debug, Log: opts.Log})
	if err != nil {
		return nil, err
	}
	solver := smt.NewSolver()
	e := &Engine{
		Manager:      m,
		State:        state.New(solver),
		design:       d,
		opts:         opts,
		log:          opts.Log,
		solver:       solver,
		walker:       search.New(opts.Log, opts.Strict),
		moduleGraphs: make(map[string][]int),
		instSlots:    make(map[string][]int),
	}
	if err := e.discover(); err != nil {
		return nil, err
	}
	return e, nil
}

// discover builds the CFG arena and lays out the per-cycle slots
func (e *Engine) discover() error {
	for _, mod := range e.design.Modules {
		idx := make([]int, len(mod.Blocks))
		for i, pb := range mod.Blocks {
			idx[i] = -1
			if pb.Kind == hdl.Final {
				e.drop(mod.Name, i, "final blocks are not executed")
				continue
			}
			g, err := cfg.Build(pb, e.opts.MaxPathsPerBlock)
			if err != nil {
				var uc *hdl.UnsupportedConstructError
				if e.opts.Strict || !errors.As(err, &uc) {
					return fmt.Errorf("module %s block %d: %w", mod.Name, i, err)
				}
				e.log.WithFields(logrus.Fields{"module": mod.Name, "block": i}).Warnf("dropping block: %v", err)
				e.drop(mod.Name, i, err.Error())
				continue
			}
			if g.Truncated {
				e.log.WithFields(logrus.Fields{"module": mod.Name, "block": i}).
					Warnf("path enumeration capped at %d of %d", len(g.Paths), g.NumPaths)
			}
			idx[i] = len(e.graphs)
			e.graphs = append(e.graphs, g)
		}
		e.moduleGraphs[mod.Name] = idx
	}

	m := e.Manager
	for _, inst := range m.NamesList {
		mod := e.design.Module(m.ModuleOf(inst))
		e.State.Bind(inst, mod)
		estimate, count := 1, 1
		for i, gi := range e.moduleGraphs[mod.Name] {
			if gi < 0 {
				continue
			}
			g := e.graphs[gi]
			e.instSlots[inst] = append(e.instSlots[inst], len(e.slots))
			e.slots = append(e.slots, slot{instance: inst, block: i, graph: gi, initial: g.Kind() == hdl.Initial})
			estimate = satMul(estimate, g.NumPaths)
			count = satMul(count, len(g.Paths))
		}
		m.ChildNumPaths[inst] = estimate
		m.ChildPathCounts[inst] = count
	}
	if m.Debug {
		for _, h := range m.Hierarchy {
			e.log.Debugf("instance hierarchy:\n%s", h)
		}
		for _, a := range m.Assertions {
			e.log.WithFields(logrus.Fields{
				"assertion": a.ID,
				"module":    a.Module,
				"line":      a.Line,
			}).Debugf("blocks of interest: %v", m.BlocksOfInterest[a.ID])
		}
	}
	return nil
}

func (e *Engine) drop(module string, block int, reason string) {
	e.Dropped = append(e.Dropped, DroppedBlock{Module: module, Block: block, Reason: reason})
}

func satMul(a, b int) int {
	const max = int(^uint(0) >> 1)
	if a == 0 || b == 0 {
		return 0
	}
	if a > max/b {
		return max
	}
	return a * b
}

// Design returns the analysed design
func (e *Engine) Design() *hdl.Design {
	return e.design
}

// Graph returns the CFG of a module block, or nil when the block is not walked
func (e *Engine) Graph(module string, block int) *cfg.CFG {
	idx := e.moduleGraphs[module]
	if block < 0 || block >= len(idx) || idx[block] < 0 {
		return nil
	}
	return e.graphs[idx[block]]
}

// Estimate is the static size of the schedule space for a number of cycles:
// the product of every walked block's branch estimate over every cycle
func (e *Engine) Estimate(cycles int) *big.Int {
	total := big.NewInt(1)
	for c := 0; c < cycles; c++ {
		for _, s := range e.slots {
			if s.initial && c > 0 {
				continue
			}
			total.Mul(total, big.NewInt(int64(e.graphs[s.graph].NumPaths)))
		}
	}
	return total
}

// Piecewise reports whether a run of this many cycles is batched
func (e *Engine) Piecewise(cycles int) bool {
	return e.Estimate(cycles).Cmp(big.NewInt(e.opts.ExplosionThreshold)) > 0
}
