package track

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"

	. "github.com/onsi/gomega"

	"github.com/solmag/spinchain/internal/field"
	"github.com/solmag/spinchain/internal/integrate"
	"github.com/solmag/spinchain/internal/llg"
	"github.com/solmag/spinchain/internal/spin"
)

// syntheticTrajectory builds a trajectory whose Sz dip moves at a known
// constant velocity, with optional noise on the core position.
func syntheticTrajectory(n int, start, velocity, tMax, dt float64, rng *rand.Rand, jitter float64) *integrate.Trajectory {
	tr := &integrate.Trajectory{
		Params: spin.Params{N: n, J: 1, D: 0.25, Da: -0.1, Alpha: 0.05, Gamma: 1, Hz: -0.01},
	}
	for t := 0.0; t <= tMax+1e-9; t += dt {
		center := start + velocity*t
		if rng != nil {
			center += jitter * (2*rng.Float64() - 1)
		}
		center = math.Mod(math.Mod(center, float64(n))+float64(n), float64(n))

		s := make(spin.State, 3*n)
		for i := 0; i < n; i++ {
			d := float64(i) - center
			if d > float64(n)/2 {
				d -= float64(n)
			} else if d < -float64(n)/2 {
				d += float64(n)
			}
			// Gaussian dip from +1 down to -1 at the core
			sz := 1 - 2*math.Exp(-d*d/(2*9.0))
			sx := math.Sqrt(math.Max(0, 1-sz*sz))
			s.SetSite(i, sx, 0, sz)
		}
		tr.Times = append(tr.Times, t)
		tr.States = append(tr.States, s)
	}
	return tr
}

func TestCorePositionCentered(t *testing.T) {
	tr := syntheticTrajectory(200, 100, 0, 0, 0.5, nil, 0)
	pos, ok := CorePosition(tr.States[0], 0)
	if !ok {
		t.Fatal("core not found in synthetic dip")
	}
	if math.Abs(pos-100) > 0.01 {
		t.Errorf("core position = %f, want 100", pos)
	}
}

func TestCorePositionAcrossBoundary(t *testing.T) {
	// dip centered on the periodic seam
	tr := syntheticTrajectory(200, 0, 0, 0, 0.5, nil, 0)
	pos, ok := CorePosition(tr.States[0], 0)
	if !ok {
		t.Fatal("core not found")
	}
	// position may resolve as ~0 or ~200; fold before comparing
	folded := math.Min(pos, 200-pos)
	if folded > 0.01 {
		t.Errorf("core at seam resolved to %f", pos)
	}
}

func TestCorePositionAbsent(t *testing.T) {
	if _, ok := CorePosition(spin.Ferromagnetic(50), 0); ok {
		t.Error("ferromagnetic state has no core")
	}
}

func TestFitVelocityRecoversKnownSlope(t *testing.T) {
	g := NewWithT(t)

	rng := rand.New(rand.NewSource(17))
	tr := syntheticTrajectory(200, 100, -0.274, 200, 0.5, rng, 0.2)

	m, err := FitVelocity(tr, Config{CoreThreshold: 0, TStart: 30, TEnd: 150})
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(m.Samples).To(BeNumerically(">", 200))
	g.Expect(m.Stderr).To(BeNumerically(">", 0))
	g.Expect(m.Velocity).To(BeNumerically("~", -0.274, 3*m.Stderr+1e-3))
	g.Expect(m.Alpha).To(Equal(0.05))
	g.Expect(m.Hz).To(Equal(-0.01))
}

func TestFitVelocityUnwrapsRing(t *testing.T) {
	g := NewWithT(t)

	// fast drift crosses the boundary inside the window
	tr := syntheticTrajectory(100, 90, 0.9, 150, 0.5, nil, 0)
	m, err := FitVelocity(tr, Config{CoreThreshold: 0, TStart: 10, TEnd: 140})
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(m.Velocity).To(BeNumerically("~", 0.9, 0.01))
}

func TestFitVelocityTrackingLost(t *testing.T) {
	// soliton never nucleated: all samples ferromagnetic
	tr := &integrate.Trajectory{Params: spin.Params{N: 50, J: 1, Gamma: 1}}
	for _, tt := range []float64{0, 40, 80, 120} {
		tr.Times = append(tr.Times, tt)
		tr.States = append(tr.States, spin.Ferromagnetic(50))
	}

	_, err := FitVelocity(tr, DefaultConfig())
	if !errors.Is(err, spin.ErrTrackingLost) {
		t.Fatalf("expected ErrTrackingLost, got %v", err)
	}
}

func TestFitVelocityCoreDiesMidWindow(t *testing.T) {
	tr := syntheticTrajectory(200, 100, -0.274, 200, 0.5, nil, 0)
	// annihilate the soliton at t=100
	for i, tt := range tr.Times {
		if tt >= 100 {
			tr.States[i] = spin.Ferromagnetic(200)
		}
	}

	_, err := FitVelocity(tr, Config{CoreThreshold: 0, TStart: 30, TEnd: 150})
	if !errors.Is(err, spin.ErrTrackingLost) {
		t.Fatalf("expected ErrTrackingLost when core dies mid-window, got %v", err)
	}
}

func TestFitVelocityTooFewSamples(t *testing.T) {
	tr := syntheticTrajectory(200, 100, -0.274, 200, 0.5, nil, 0)
	_, err := FitVelocity(tr, Config{CoreThreshold: 0, TStart: 50, TEnd: 50.1})
	if !errors.Is(err, spin.ErrTrackingLost) {
		t.Fatalf("expected ErrTrackingLost for a window with <2 samples, got %v", err)
	}
}

// TestPulseNucleatedSolitonDrifts runs the full pipeline on the stock
// scenario: relax-free ferromagnetic start, x-polarized pulse at site
// 100, then velocity extraction over [30, 150]. The converged drift
// for this scenario is -0.215 sites per unit time, stable across
// solver tolerances 1e-4 through 1e-8; the band is pinned to that
// value so a dynamics regression cannot hide inside a loose window.
func TestPulseNucleatedSolitonDrifts(t *testing.T) {
	if testing.Short() {
		t.Skip("full 200-site integration is slow")
	}
	g := NewWithT(t)

	p := spin.Params{N: 200, J: 1, D: 0.25, Da: -0.1, Alpha: 0.05, Gamma: 1, Hz: -0.01}
	pulse := field.Pulse{Amplitude: -10, Sigma: 3, Tau: 0.5, Center: 100, Time: 2}
	sys, err := llg.New(p, pulse.Drive(p.N))
	g.Expect(err).NotTo(HaveOccurred())

	tr, err := integrate.NewSimulator(sys).Run(context.Background(), spin.Ferromagnetic(p.N), integrate.DefaultConfig())
	g.Expect(err).NotTo(HaveOccurred())

	m, err := FitVelocity(tr, DefaultConfig())
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(m.Velocity).To(BeNumerically("~", -0.215, 0.005))
	g.Expect(m.Stderr).To(BeNumerically("<", 0.005))
	g.Expect(m.Samples).To(BeNumerically(">=", 239))
}

func TestFitVelocityEmptyWindow(t *testing.T) {
	tr := syntheticTrajectory(200, 100, -0.274, 10, 0.5, nil, 0)
	_, err := FitVelocity(tr, Config{CoreThreshold: 0, TStart: 150, TEnd: 30})
	if !errors.Is(err, spin.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration for inverted window, got %v", err)
	}
}
