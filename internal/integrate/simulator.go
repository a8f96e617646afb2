package integrate

import (
	"context"
	"fmt"
	"math"

	"github.com/solmag/spinchain/internal/llg"
	"github.com/solmag/spinchain/internal/spin"
)

// Config controls one integration run.
type Config struct {
	Duration    float64 // time span to cover, starting at t=0
	SampleEvery float64 // spacing of trajectory samples
	Tol         float64 // relative local error tolerance
	InitialDt   float64
	MinDt       float64
	MaxDt       float64
	MaxSteps    int // attempted-step budget, exhaustion is IntegrationFailure
}

func DefaultConfig() Config {
	return Config{
		Duration:    200.0,
		SampleEvery: 0.5,
		Tol:         1e-6,
		InitialDt:   0.01,
		MinDt:       1e-10,
		MaxDt:       0.5,
		MaxSteps:    2_000_000,
	}
}

func (c Config) validate() error {
	if c.Duration <= 0 {
		return fmt.Errorf("%w: duration must be positive, got %g", spin.ErrConfiguration, c.Duration)
	}
	if c.SampleEvery <= 0 {
		return fmt.Errorf("%w: sample interval must be positive, got %g", spin.ErrConfiguration, c.SampleEvery)
	}
	if c.Tol <= 0 {
		return fmt.Errorf("%w: tolerance must be positive, got %g", spin.ErrConfiguration, c.Tol)
	}
	if c.InitialDt <= 0 || c.MinDt <= 0 || c.MaxDt < c.MinDt {
		return fmt.Errorf("%w: invalid step bounds dt=%g min=%g max=%g", spin.ErrConfiguration, c.InitialDt, c.MinDt, c.MaxDt)
	}
	if c.MaxSteps <= 0 {
		return fmt.Errorf("%w: step budget must be positive, got %d", spin.ErrConfiguration, c.MaxSteps)
	}
	return nil
}

// Simulator integrates one LLG system with adaptive RK45 stepping.
// Every accepted step is followed by per-site renormalization; this is
// what keeps the unit-norm invariant from drifting secularly over long
// runs. Not safe for concurrent use.
type Simulator struct {
	sys     *llg.System
	stepper *RK45
}

func NewSimulator(sys *llg.System) *Simulator {
	return &Simulator{sys: sys, stepper: NewRK45()}
}

// Run integrates x0 over [0, cfg.Duration] and returns the sampled
// trajectory. On budget exhaustion or a non-finite state the partial
// trajectory accumulated so far is returned alongside the error, never
// silently truncated. Cancellation is honored between steps.
func (s *Simulator) Run(ctx context.Context, x0 spin.State, cfg Config) (*Trajectory, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	p := s.sys.Params()
	if err := p.CheckState(x0); err != nil {
		return nil, err
	}

	x := x0.Clone()
	x.Normalize()

	tr := &Trajectory{
		Params: p,
		Times:  make([]float64, 0, int(cfg.Duration/cfg.SampleEvery)+2),
		States: make([]spin.State, 0, int(cfg.Duration/cfg.SampleEvery)+2),
	}
	tr.append(0, x)

	t := 0.0
	dt := math.Min(cfg.InitialDt, cfg.MaxDt)
	nextSample := cfg.SampleEvery
	steps := 0

	// end-of-span comparisons tolerate float accumulation
	const edge = 1e-12

	for t < cfg.Duration-edge {
		select {
		case <-ctx.Done():
			return tr, fmt.Errorf("%w at t=%.4f: %v", spin.ErrCanceled, t, ctx.Err())
		default:
		}

		if steps++; steps > cfg.MaxSteps {
			return tr, fmt.Errorf("%w: %d steps taken, reached t=%.4f of %.4f",
				spin.ErrStepBudget, cfg.MaxSteps, t, cfg.Duration)
		}

		// never step across a sample time or the end of the span
		h := dt
		if t+h > nextSample {
			h = nextSample - t
		}
		if t+h > cfg.Duration {
			h = cfg.Duration - t
		}

		xNew, errRatio, dtNext := s.stepper.Step(s.sys, x, t, h, cfg.Tol)

		if !xNew.IsValid() {
			if h/2 < cfg.MinDt {
				return tr, fmt.Errorf("%w at t=%.4f", spin.ErrNonFinite, t)
			}
			dt = h / 2
			continue
		}

		if errRatio > 1 && h > cfg.MinDt {
			// reject, retry with the controller's smaller proposal
			dt = math.Max(dtNext, cfg.MinDt)
			continue
		}

		x = xNew
		x.Normalize()
		t += h
		dt = clamp(dtNext, cfg.MinDt, cfg.MaxDt)

		if t >= nextSample-edge {
			tr.append(t, x)
			nextSample += cfg.SampleEvery
		}
	}

	return tr, nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
