package mobility

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	. "github.com/onsi/gomega"

	"github.com/solmag/spinchain/internal/field"
	"github.com/solmag/spinchain/internal/integrate"
	"github.com/solmag/spinchain/internal/spin"
	"github.com/solmag/spinchain/internal/track"
)

func measurements(alpha float64, fields []float64, v func(hz float64) float64) []track.Measurement {
	ms := make([]track.Measurement, 0, len(fields))
	for _, hz := range fields {
		ms = append(ms, track.Measurement{Alpha: alpha, Hz: hz, Velocity: v(hz)})
	}
	return ms
}

func TestFitRecoversLinearLaw(t *testing.T) {
	g := NewWithT(t)

	// v = -0.25 + 3.2 hz, exact
	fields := []float64{-0.02, -0.01, 0, 0.01, 0.02}
	pt, err := Fit(0.05, measurements(0.05, fields, func(hz float64) float64 {
		return -0.25 + 3.2*hz
	}))

	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(pt.Alpha).To(Equal(0.05))
	g.Expect(pt.Mobility).To(BeNumerically("~", 3.2, 1e-10))
	g.Expect(pt.Intrinsic).To(BeNumerically("~", -0.25, 1e-10))
	g.Expect(pt.MobilityStderr).To(BeNumerically("~", 0, 1e-8))
	g.Expect(pt.RSquared).To(BeNumerically("~", 1, 1e-10))
	g.Expect(pt.FieldPoints).To(Equal(5))
}

func TestFitNoisyLawWithinError(t *testing.T) {
	g := NewWithT(t)

	rng := rand.New(rand.NewSource(3))
	fields := make([]float64, 11)
	for i := range fields {
		fields[i] = -0.02 + 0.004*float64(i)
	}
	pt, err := Fit(0.1, measurements(0.1, fields, func(hz float64) float64 {
		return -0.25 + 3.2*hz + 0.002*rng.NormFloat64()
	}))

	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(pt.MobilityStderr).To(BeNumerically(">", 0))
	g.Expect(pt.Mobility).To(BeNumerically("~", 3.2, 4*pt.MobilityStderr))
	g.Expect(pt.Intrinsic).To(BeNumerically("~", -0.25, 4*pt.IntrinsicStderr))
}

func TestFitInsufficientData(t *testing.T) {
	// three measurements but only one distinct field value
	ms := []track.Measurement{
		{Alpha: 0.05, Hz: -0.01, Velocity: -0.27},
		{Alpha: 0.05, Hz: -0.01, Velocity: -0.28},
		{Alpha: 0.05, Hz: -0.01, Velocity: -0.26},
	}
	if _, err := Fit(0.05, ms); !errors.Is(err, spin.ErrInsufficientData) {
		t.Fatalf("expected ErrInsufficientData, got %v", err)
	}
	if _, err := Fit(0.05, nil); !errors.Is(err, spin.ErrInsufficientData) {
		t.Fatalf("expected ErrInsufficientData for no measurements, got %v", err)
	}
}

func TestAggregateSortsAndFlagsSignChanges(t *testing.T) {
	g := NewWithT(t)

	c := Aggregate([]Point{
		{Alpha: 0.15, Mobility: 1.1},
		{Alpha: 0.01, Mobility: -2.4},
		{Alpha: 0.05, Mobility: -0.8},
		{Alpha: 0.10, Mobility: 0.3},
	})

	g.Expect(c.Points).To(HaveLen(4))
	g.Expect(c.Points[0].Alpha).To(Equal(0.01))
	g.Expect(c.Points[3].Alpha).To(Equal(0.15))
	// mobility crosses zero once, between alpha 0.05 and 0.10
	g.Expect(c.SignChanges).To(Equal([]int{2}))
}

func TestAggregateMonotoneNoFlags(t *testing.T) {
	c := Aggregate([]Point{
		{Alpha: 0.01, Mobility: 2.0},
		{Alpha: 0.05, Mobility: 1.5},
		{Alpha: 0.10, Mobility: 1.1},
	})
	if len(c.SignChanges) != 0 {
		t.Fatalf("unexpected sign changes %v", c.SignChanges)
	}
}

func TestSweepEmptyScan(t *testing.T) {
	_, err := Sweep(context.Background(), SweepConfig{})
	if !errors.Is(err, spin.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}

func TestSweepCollectsPerPairFailures(t *testing.T) {
	g := NewWithT(t)

	// a tiny ring with no pulse never nucleates a soliton, so every
	// pair fails tracking while the sweep itself succeeds
	cfg := SweepConfig{
		Base:   spin.Params{N: 16, J: 1, D: 0.25, Da: -0.1, Gamma: 1},
		Alphas: []float64{0.05, 0.1},
		Fields: []float64{-0.01, 0.01},
		Pulse:  field.Pulse{Amplitude: 0, Sigma: 1, Tau: 0.5, Time: 2},
		Integrate: integrate.Config{
			Duration: 5, SampleEvery: 1, Tol: 1e-6,
			InitialDt: 0.01, MinDt: 1e-10, MaxDt: 0.5, MaxSteps: 100000,
		},
		Track:   track.Config{CoreThreshold: 0, TStart: 1, TEnd: 4},
		Workers: 2,
	}

	res, err := Sweep(context.Background(), cfg)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(res.Failures).To(HaveLen(4))
	for _, f := range res.Failures {
		g.Expect(errors.Is(f.Err, spin.ErrTrackingLost)).To(BeTrue(), "pair (%g, %g): %v", f.Alpha, f.Hz, f.Err)
	}
	g.Expect(res.Measurements).To(BeEmpty())
	// every alpha ends up without enough surviving field points
	g.Expect(res.Insufficient).To(HaveLen(2))
	g.Expect(res.Curve.Points).To(BeEmpty())
}

func TestSweepCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := SweepConfig{
		Base:      spin.Params{N: 16, J: 1, Gamma: 1},
		Alphas:    []float64{0.05},
		Fields:    []float64{-0.01, 0.01},
		Pulse:     field.Pulse{Sigma: 1, Tau: 0.5, Time: 2},
		Integrate: integrate.DefaultConfig(),
		Track:     track.DefaultConfig(),
	}
	if _, err := Sweep(ctx, cfg); err == nil {
		t.Fatal("expected error from canceled sweep")
	}
}
