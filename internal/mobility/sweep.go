package mobility

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/solmag/spinchain/internal/field"
	"github.com/solmag/spinchain/internal/integrate"
	"github.com/solmag/spinchain/internal/llg"
	"github.com/solmag/spinchain/internal/spin"
	"github.com/solmag/spinchain/internal/track"
)

// SweepConfig drives a full alpha x hz scan: for every pair, a soliton
// is nucleated by the pulse out of the metastable ferromagnetic state,
// integrated, tracked, and fitted.
type SweepConfig struct {
	Base      spin.Params // N, J, D, Da, Gamma; Alpha and Hz come from the scan
	Alphas    []float64
	Fields    []float64
	Pulse     field.Pulse
	Integrate integrate.Config
	Track     track.Config
	Workers   int // 0 means GOMAXPROCS
}

// Failure records one (alpha, hz) pair whose run or fit failed. Per
// the propagation policy a failure never aborts the rest of the sweep.
type Failure struct {
	Alpha float64
	Hz    float64
	Err   error
}

// SweepResult aggregates everything a scan produced: raw velocity
// measurements, per-alpha mobility points, the final curve, and the
// pairs that failed.
type SweepResult struct {
	Measurements []track.Measurement
	Points       []Point
	Curve        Curve
	Failures     []Failure

	// Insufficient lists alphas whose surviving field points were too
	// few for a mobility fit.
	Insufficient []Failure
}

// Sweep runs the scan with a bounded worker pool. Each worker owns its
// system, simulator, and state for the lifetime of one run; only
// context cancellation aborts the whole sweep.
func Sweep(ctx context.Context, cfg SweepConfig) (*SweepResult, error) {
	if len(cfg.Alphas) == 0 || len(cfg.Fields) == 0 {
		return nil, fmt.Errorf("%w: empty mobility scan", spin.ErrConfiguration)
	}

	type task struct{ alpha, hz float64 }
	tasks := make([]task, 0, len(cfg.Alphas)*len(cfg.Fields))
	for _, a := range cfg.Alphas {
		for _, h := range cfg.Fields {
			tasks = append(tasks, task{a, h})
		}
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	measured := make([]track.Measurement, len(tasks))
	failed := make([]error, len(tasks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, tk := range tasks {
		i, tk := i, tk
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			m, err := runOne(gctx, cfg, tk.alpha, tk.hz)
			if err != nil {
				if errors.Is(err, spin.ErrCanceled) {
					return err
				}
				failed[i] = err
				return nil
			}
			measured[i] = m
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := &SweepResult{}
	byAlpha := make(map[float64][]track.Measurement)
	for i, tk := range tasks {
		if failed[i] != nil {
			res.Failures = append(res.Failures, Failure{Alpha: tk.alpha, Hz: tk.hz, Err: failed[i]})
			continue
		}
		res.Measurements = append(res.Measurements, measured[i])
		byAlpha[tk.alpha] = append(byAlpha[tk.alpha], measured[i])
	}

	for _, a := range cfg.Alphas {
		pt, err := Fit(a, byAlpha[a])
		if err != nil {
			res.Insufficient = append(res.Insufficient, Failure{Alpha: a, Err: err})
			continue
		}
		res.Points = append(res.Points, pt)
	}
	res.Curve = Aggregate(res.Points)
	return res, nil
}

func runOne(ctx context.Context, cfg SweepConfig, alpha, hz float64) (track.Measurement, error) {
	p := cfg.Base
	p.Alpha = alpha
	p.Hz = hz

	sys, err := llg.New(p, cfg.Pulse.Drive(p.N))
	if err != nil {
		return track.Measurement{}, err
	}

	tr, err := integrate.NewSimulator(sys).Run(ctx, spin.Ferromagnetic(p.N), cfg.Integrate)
	if err != nil {
		return track.Measurement{}, err
	}
	return track.FitVelocity(tr, cfg.Track)
}
