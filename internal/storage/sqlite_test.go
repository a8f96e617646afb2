package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/solmag/spinchain/internal/mobility"
	"github.com/solmag/spinchain/internal/phase"
	"github.com/solmag/spinchain/internal/track"
)

func openTestResults(t *testing.T) *Results {
	t.Helper()
	r, err := OpenResults(filepath.Join(t.TempDir(), "results.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}

func TestMobilityRoundTrip(t *testing.T) {
	r := openTestResults(t)
	ctx := context.Background()

	points := []mobility.Point{
		{Alpha: 0.10, Mobility: 1.1, MobilityStderr: 0.05, Intrinsic: -0.2, IntrinsicStderr: 0.01, RSquared: 0.99, FieldPoints: 5},
		{Alpha: 0.01, Mobility: -2.4, MobilityStderr: 0.08, Intrinsic: -0.3, IntrinsicStderr: 0.02, RSquared: 0.97, FieldPoints: 5},
	}
	if err := r.SaveMobility(ctx, "sweep-a", points); err != nil {
		t.Fatal(err)
	}

	got, err := r.MobilityCurve(ctx, "sweep-a")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("read %d points", len(got))
	}
	// ordered by alpha regardless of insertion order
	if got[0] != points[1] || got[1] != points[0] {
		t.Errorf("round trip mismatch: %+v", got)
	}

	other, err := r.MobilityCurve(ctx, "sweep-b")
	if err != nil {
		t.Fatal(err)
	}
	if len(other) != 0 {
		t.Errorf("foreign sweep returned %d points", len(other))
	}
}

func TestVelocityRoundTrip(t *testing.T) {
	r := openTestResults(t)
	ctx := context.Background()

	ms := []track.Measurement{
		{Alpha: 0.05, Hz: -0.01, Velocity: -0.274, Stderr: 0.003, TStart: 30, TEnd: 150, Samples: 241},
		{Alpha: 0.05, Hz: 0.01, Velocity: -0.21, Stderr: 0.004, TStart: 30, TEnd: 150, Samples: 241},
	}
	if err := r.SaveVelocities(ctx, "sweep-a", ms); err != nil {
		t.Fatal(err)
	}

	got, err := r.Velocities(ctx, "sweep-a")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0] != ms[0] || got[1] != ms[1] {
		t.Errorf("round trip mismatch: %+v", got)
	}

	// same key overwrites instead of duplicating
	ms[0].Velocity = -0.30
	if err := r.SaveVelocities(ctx, "sweep-a", ms[:1]); err != nil {
		t.Fatal(err)
	}
	got, err = r.Velocities(ctx, "sweep-a")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].Velocity != -0.30 {
		t.Errorf("upsert failed: %+v", got)
	}
}

func TestPhaseMapRoundTrip(t *testing.T) {
	r := openTestResults(t)
	ctx := context.Background()

	m := &phase.Map{
		N:        32,
		J:        1,
		DValues:  []float64{0.1, 0.5},
		DaValues: []float64{-0.1},
		Points: [][]phase.Point{{
			{D: 0.1, Da: -0.1, Label: phase.Ferromagnetic, Energy: -33.0},
			{D: 0.5, Da: -0.1, Label: phase.Helicoidal, Energy: -35.2},
		}},
	}
	if err := r.SavePhaseMap(ctx, "grid-1", m); err != nil {
		t.Fatal(err)
	}

	labels, err := r.PhaseLabels(ctx, "grid-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(labels) != 2 {
		t.Fatalf("read %d labels", len(labels))
	}
	if labels[[2]float64{0.1, -0.1}] != phase.Ferromagnetic {
		t.Errorf("label at (0.1, -0.1) = %s", labels[[2]float64{0.1, -0.1}])
	}
	if labels[[2]float64{0.5, -0.1}] != phase.Helicoidal {
		t.Errorf("label at (0.5, -0.1) = %s", labels[[2]float64{0.5, -0.1}])
	}
}
