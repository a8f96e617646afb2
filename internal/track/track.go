// Package track locates a nucleated soliton core in a trajectory and
// extracts its velocity by linear regression over a fitting window.
package track

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/solmag/spinchain/internal/integrate"
	"github.com/solmag/spinchain/internal/spin"
)

// Config controls core detection and the velocity fit. The window
// [TStart, TEnd] should exclude the nucleation transient and any
// boundary-interaction artifacts near the end of the run; choosing it
// is the caller's policy.
type Config struct {
	// CoreThreshold defines the core region as sites with
	// Sz < CoreThreshold. Zero (the default) is the documented core
	// definition; it is exposed because it is policy, not physics.
	CoreThreshold float64
	TStart        float64
	TEnd          float64
}

func DefaultConfig() Config {
	return Config{CoreThreshold: 0, TStart: 30, TEnd: 150}
}

// Measurement is the fitted velocity of one trajectory.
type Measurement struct {
	Alpha    float64
	Hz       float64
	Velocity float64
	Stderr   float64
	TStart   float64
	TEnd     float64
	Samples  int
}

// CorePosition returns the sub-site centroid of the soliton core in s,
// or ok=false when no site satisfies the core condition. Sites are
// weighted by core depth (threshold - Sz) and averaged as angles on
// the ring (weighted circular mean), so a core straddling the periodic
// boundary resolves correctly.
func CorePosition(s spin.State, threshold float64) (pos float64, ok bool) {
	n := s.Sites()
	var sumSin, sumCos float64
	for i := 0; i < n; i++ {
		sz := s.Sz(i)
		if sz >= threshold {
			continue
		}
		w := threshold - sz
		angle := 2 * math.Pi * float64(i) / float64(n)
		sumSin += w * math.Sin(angle)
		sumCos += w * math.Cos(angle)
		ok = true
	}
	if !ok {
		return 0, false
	}
	angle := math.Atan2(sumSin, sumCos)
	pos = angle / (2 * math.Pi) * float64(n)
	if pos < 0 {
		pos += float64(n)
	}
	return pos, true
}

// FitVelocity tracks the core through every sample inside the window
// and fits position against time. If the core is undetectable at any
// in-window sample, or fewer than two in-window samples exist, the fit
// fails with TrackingLost rather than producing a degenerate slope.
func FitVelocity(tr *integrate.Trajectory, cfg Config) (Measurement, error) {
	if cfg.TEnd <= cfg.TStart {
		return Measurement{}, fmt.Errorf("%w: empty fit window [%g, %g]", spin.ErrConfiguration, cfg.TStart, cfg.TEnd)
	}

	n := float64(tr.Params.N)
	var times, positions []float64
	var prev float64
	for i, t := range tr.Times {
		if t < cfg.TStart || t > cfg.TEnd {
			continue
		}
		pos, ok := CorePosition(tr.States[i], cfg.CoreThreshold)
		if !ok {
			return Measurement{}, fmt.Errorf("%w at t=%.3f", spin.ErrTrackingLost, t)
		}

		// unwrap across the periodic boundary relative to the previous
		// sample's (unwrapped) position
		if len(positions) > 0 {
			delta := math.Mod(pos-math.Mod(prev, n)+1.5*n, n) - n/2
			pos = prev + delta
		}
		prev = pos

		times = append(times, t)
		positions = append(positions, pos)
	}

	if len(times) < 2 {
		return Measurement{}, fmt.Errorf("%w: %d samples in window [%g, %g]",
			spin.ErrTrackingLost, len(times), cfg.TStart, cfg.TEnd)
	}

	intercept, slope := stat.LinearRegression(times, positions, nil, false)

	m := Measurement{
		Alpha:    tr.Params.Alpha,
		Hz:       tr.Params.Hz,
		Velocity: slope,
		Stderr:   slopeStderr(times, positions, intercept, slope),
		TStart:   cfg.TStart,
		TEnd:     cfg.TEnd,
		Samples:  len(times),
	}
	return m, nil
}

// slopeStderr is the standard error of the regression slope. With only
// two points the residuals vanish and the error is reported as zero.
func slopeStderr(x, y []float64, intercept, slope float64) float64 {
	n := len(x)
	if n <= 2 {
		return 0
	}
	xMean := stat.Mean(x, nil)
	var ssRes, ssX float64
	for i := range x {
		r := y[i] - (intercept + slope*x[i])
		ssRes += r * r
		dx := x[i] - xMean
		ssX += dx * dx
	}
	if ssX == 0 {
		return 0
	}
	return math.Sqrt(ssRes / float64(n-2) / ssX)
}
