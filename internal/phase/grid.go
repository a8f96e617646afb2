package phase

import (
	"context"
	"fmt"
	"math/rand"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/solmag/spinchain/internal/relax"
	"github.com/solmag/spinchain/internal/spin"
)

// Point is one grid point of a phase-diagram sweep. Err records a
// per-point failure (typically NonConvergence); a failed point never
// aborts the rest of the grid.
type Point struct {
	D      float64
	Da     float64
	Label  Label
	Energy float64
	State  spin.State
	Err    error
}

// Map is a phase diagram over a (D, Da) grid, indexed Points[ia][id]
// for DaValues[ia], DValues[id].
type Map struct {
	N        int
	J        float64
	DValues  []float64
	DaValues []float64
	Points   [][]Point
}

// GridConfig describes one phase-diagram sweep. Each grid point relaxes
// an independent random initial configuration seeded from Seed plus
// the point's index, so reruns are reproducible and workers never share
// RNG state.
type GridConfig struct {
	N          int
	J          float64
	Gamma      float64
	DValues    []float64
	DaValues   []float64
	Seed       int64
	Workers    int // 0 means GOMAXPROCS
	Relax      relax.Config
	Thresholds Thresholds
}

// MapGrid relaxes and classifies every (D, Da) point in parallel.
// Individual grid points own their configuration and RNG exclusively;
// only context cancellation aborts the whole sweep.
func MapGrid(ctx context.Context, cfg GridConfig) (*Map, error) {
	if cfg.N <= 0 || len(cfg.DValues) == 0 || len(cfg.DaValues) == 0 {
		return nil, fmt.Errorf("%w: empty phase grid", spin.ErrConfiguration)
	}
	gamma := cfg.Gamma
	if gamma == 0 {
		gamma = 1
	}

	m := &Map{
		N:        cfg.N,
		J:        cfg.J,
		DValues:  cfg.DValues,
		DaValues: cfg.DaValues,
		Points:   make([][]Point, len(cfg.DaValues)),
	}
	for ia := range m.Points {
		m.Points[ia] = make([]Point, len(cfg.DValues))
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for ia, da := range cfg.DaValues {
		for id, d := range cfg.DValues {
			ia, id, da, d := ia, id, da, d
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}

				idx := int64(ia*len(cfg.DValues) + id)
				rng := rand.New(rand.NewSource(cfg.Seed + idx))
				s0 := spin.Random(cfg.N, rng)

				p := spin.Params{N: cfg.N, J: cfg.J, D: d, Da: da, Gamma: gamma}
				res, err := relax.Run(gctx, s0, p, cfg.Relax)

				pt := Point{D: d, Da: da, Err: err}
				if res != nil {
					pt.Label = Classify(res.State, cfg.Thresholds)
					pt.Energy = res.Energy
					pt.State = res.State
				}
				m.Points[ia][id] = pt
				return nil
			})
		}
	}

	if err := g.Wait(); err != nil {
		return m, err
	}
	return m, nil
}

// Failures returns the grid points whose relaxation reported an error.
func (m *Map) Failures() []Point {
	var out []Point
	for _, row := range m.Points {
		for _, pt := range row {
			if pt.Err != nil {
				out = append(out, pt)
			}
		}
	}
	return out
}
