// Package relax finds ground states by damped, field-free descent: the
// gyrotropic LLG term is dropped and each spin is pulled toward its
// local effective field, which is gradient flow on the unit sphere.
package relax

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/solmag/spinchain/internal/field"
	"github.com/solmag/spinchain/internal/spin"
)

type Config struct {
	StepSize  float64 // descent step applied to the field direction
	EnergyTol float64 // fractional energy change considered converged
	MaxIters  int     // iteration budget, exhaustion is NonConvergence
}

func DefaultConfig() Config {
	return Config{
		StepSize:  0.05,
		EnergyTol: 1e-8,
		MaxIters:  2000,
	}
}

// Result carries the relaxed configuration, its energy, and the energy
// trace of the descent. On NonConvergence the last-known values are
// retained so the caller can decide whether to accept or restart.
type Result struct {
	State       spin.State
	Energy      float64
	Iterations  int
	EnergyTrace []float64
}

// Run relaxes s0 under the static part of the Hamiltonian. Damping and
// external field do not enter a ground-state search, so Alpha and Hz
// in p are ignored. s0 is not mutated.
func Run(ctx context.Context, s0 spin.State, p spin.Params, cfg Config) (*Result, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := p.CheckState(s0); err != nil {
		return nil, err
	}
	if cfg.StepSize <= 0 || cfg.EnergyTol <= 0 || cfg.MaxIters <= 0 {
		return nil, fmt.Errorf("%w: invalid relax config %+v", spin.ErrConfiguration, cfg)
	}

	p.Hz = 0
	p.Alpha = 0

	s := s0.Clone()
	s.Normalize()
	beff := make(spin.State, len(s))

	res := &Result{
		EnergyTrace: make([]float64, 0, cfg.MaxIters+1),
	}
	energy := spin.Energy(s, p)
	res.EnergyTrace = append(res.EnergyTrace, energy)

	for iter := 1; iter <= cfg.MaxIters; iter++ {
		select {
		case <-ctx.Done():
			res.State, res.Energy, res.Iterations = s, energy, iter-1
			return res, fmt.Errorf("%w after %d iterations: %v", spin.ErrCanceled, iter-1, ctx.Err())
		default:
		}

		if err := field.Effective(beff, s, p, nil); err != nil {
			return nil, err
		}
		floats.AddScaled(s, cfg.StepSize, beff)
		s.Normalize()

		prev := energy
		energy = spin.Energy(s, p)
		res.EnergyTrace = append(res.EnergyTrace, energy)
		res.Iterations = iter

		denom := math.Max(math.Abs(prev), 1e-12)
		if math.Abs(energy-prev)/denom < cfg.EnergyTol {
			res.State, res.Energy = s, energy
			return res, nil
		}
	}

	res.State, res.Energy = s, energy
	return res, fmt.Errorf("%w: %d iterations, last fractional change %.3e",
		spin.ErrNonConvergence, cfg.MaxIters, lastFractionalChange(res.EnergyTrace))
}

func lastFractionalChange(trace []float64) float64 {
	n := len(trace)
	if n < 2 {
		return math.Inf(1)
	}
	denom := math.Max(math.Abs(trace[n-2]), 1e-12)
	return math.Abs(trace[n-1]-trace[n-2]) / denom
}
