package relax

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/solmag/spinchain/internal/spin"
)

func TestRunFromLocalMinimum(t *testing.T) {
	// With easy-axis anisotropy and no DMI the uniform ferromagnet is a
	// strict minimum: the descent must terminate almost immediately with
	// near-zero energy change.
	p := spin.Params{N: 32, J: 1, D: 0, Da: -0.2, Gamma: 1}
	res, err := Run(context.Background(), spin.Ferromagnetic(p.N), p, DefaultConfig())
	if err != nil {
		t.Fatalf("relaxation from a minimum failed: %v", err)
	}
	if res.Iterations > 5 {
		t.Errorf("expected convergence within a few iterations, took %d", res.Iterations)
	}
	if len(res.EnergyTrace) < 2 {
		t.Fatal("energy trace missing")
	}
	first, second := res.EnergyTrace[0], res.EnergyTrace[1]
	if math.Abs(second-first) > 1e-9 {
		t.Errorf("energy should be unchanged from step one: %g -> %g", first, second)
	}
	if dev := res.State.MaxNormDeviation(); dev > spin.NormTolerance {
		t.Errorf("relaxed state norm deviation: %e", dev)
	}
}

func TestRunDescendsEnergy(t *testing.T) {
	p := spin.Params{N: 64, J: 1, D: 0.25, Da: -0.10, Gamma: 1}
	s0 := spin.Random(p.N, rand.New(rand.NewSource(42)))

	res, err := Run(context.Background(), s0, p, DefaultConfig())
	if err != nil && !errors.Is(err, spin.ErrNonConvergence) {
		t.Fatal(err)
	}

	e0 := res.EnergyTrace[0]
	if res.Energy >= e0 {
		t.Errorf("descent did not lower energy: %g -> %g", e0, res.Energy)
	}
	for i := 1; i < len(res.EnergyTrace); i++ {
		if res.EnergyTrace[i] > res.EnergyTrace[i-1]+1e-6 {
			t.Fatalf("energy rose at iteration %d: %g -> %g",
				i, res.EnergyTrace[i-1], res.EnergyTrace[i])
		}
	}
}

func TestRunIgnoresFieldAndDamping(t *testing.T) {
	// The ground-state search is field-free: Hz and Alpha must not
	// change the result.
	s0 := spin.Random(32, rand.New(rand.NewSource(9)))

	base := spin.Params{N: 32, J: 1, D: 0.3, Da: -0.1, Gamma: 1}
	withField := base
	withField.Hz = 0.5
	withField.Alpha = 0.2

	a, errA := Run(context.Background(), s0, base, DefaultConfig())
	b, errB := Run(context.Background(), s0, withField, DefaultConfig())
	if (errA == nil) != (errB == nil) {
		t.Fatalf("convergence differed: %v vs %v", errA, errB)
	}
	if math.Abs(a.Energy-b.Energy) > 1e-12 {
		t.Errorf("field/damping leaked into relaxation: E %g vs %g", a.Energy, b.Energy)
	}
}

func TestRunBudgetExhaustion(t *testing.T) {
	p := spin.Params{N: 64, J: 1, D: 0.25, Da: -0.10, Gamma: 1}
	s0 := spin.Random(p.N, rand.New(rand.NewSource(1)))

	cfg := DefaultConfig()
	cfg.MaxIters = 3

	res, err := Run(context.Background(), s0, p, cfg)
	if !errors.Is(err, spin.ErrNonConvergence) {
		t.Fatalf("expected ErrNonConvergence, got %v", err)
	}
	if res == nil || res.State == nil {
		t.Fatal("last-known state must be retained on NonConvergence")
	}
	if len(res.EnergyTrace) != cfg.MaxIters+1 {
		t.Errorf("energy trace has %d entries, want %d", len(res.EnergyTrace), cfg.MaxIters+1)
	}
}

func TestRunCanceled(t *testing.T) {
	p := spin.Params{N: 32, J: 1, D: 0.25, Da: -0.1, Gamma: 1}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Run(ctx, spin.Random(p.N, rand.New(rand.NewSource(2))), p, DefaultConfig())
	if !errors.Is(err, spin.ErrCanceled) {
		t.Fatalf("expected ErrCanceled, got %v", err)
	}
}

func TestRunRejectsBadInput(t *testing.T) {
	p := spin.Params{N: 8, J: 1, Gamma: 1}
	if _, err := Run(context.Background(), spin.Ferromagnetic(9), p, DefaultConfig()); !errors.Is(err, spin.ErrConfiguration) {
		t.Errorf("expected ErrConfiguration for shape mismatch, got %v", err)
	}
	cfg := DefaultConfig()
	cfg.MaxIters = 0
	if _, err := Run(context.Background(), spin.Ferromagnetic(8), p, cfg); !errors.Is(err, spin.ErrConfiguration) {
		t.Errorf("expected ErrConfiguration for bad config, got %v", err)
	}
}
