// Package mobility aggregates soliton velocities across field sweeps
// into mobility (dv/dhz) per damping value, and across damping values
// into the mobility-vs-alpha curve.
package mobility

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/solmag/spinchain/internal/spin"
	"github.com/solmag/spinchain/internal/track"
)

// Point is the mobility of one damping value: the slope and intercept
// of the linear fit of velocity against applied field.
type Point struct {
	Alpha           float64
	Mobility        float64 // dv/dhz
	MobilityStderr  float64
	Intrinsic       float64 // velocity extrapolated to hz = 0
	IntrinsicStderr float64
	RSquared        float64
	FieldPoints     int
}

// Fit regresses velocity against hz for measurements sharing one
// alpha. At least two distinct field values are required; fewer is
// InsufficientData.
func Fit(alpha float64, ms []track.Measurement) (Point, error) {
	var hz, v []float64
	distinct := map[float64]struct{}{}
	for _, m := range ms {
		hz = append(hz, m.Hz)
		v = append(v, m.Velocity)
		distinct[m.Hz] = struct{}{}
	}
	if len(distinct) < 2 {
		return Point{}, fmt.Errorf("%w: %d distinct field values for alpha=%g",
			spin.ErrInsufficientData, len(distinct), alpha)
	}

	intercept, slope := stat.LinearRegression(hz, v, nil, false)
	slopeSE, interceptSE := regressionStderr(hz, v, intercept, slope)

	return Point{
		Alpha:           alpha,
		Mobility:        slope,
		MobilityStderr:  slopeSE,
		Intrinsic:       intercept,
		IntrinsicStderr: interceptSE,
		RSquared:        stat.RSquared(hz, v, nil, intercept, slope),
		FieldPoints:     len(hz),
	}, nil
}

// Curve is the mobility-vs-damping aggregate, sorted by alpha.
// SignChanges lists indices i where Mobility[i] differs in sign from
// Mobility[i-1]; the flag is informational for reporting.
type Curve struct {
	Points      []Point
	SignChanges []int
}

func Aggregate(points []Point) Curve {
	sorted := make([]Point, len(points))
	copy(sorted, points)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Alpha < sorted[j].Alpha })

	c := Curve{Points: sorted}
	for i := 1; i < len(sorted); i++ {
		if sorted[i].Mobility*sorted[i-1].Mobility < 0 {
			c.SignChanges = append(c.SignChanges, i)
		}
	}
	return c
}

func regressionStderr(x, y []float64, intercept, slope float64) (slopeSE, interceptSE float64) {
	n := len(x)
	if n <= 2 {
		return 0, 0
	}
	xMean := stat.Mean(x, nil)
	var ssRes, ssX, sumX2 float64
	for i := range x {
		r := y[i] - (intercept + slope*x[i])
		ssRes += r * r
		dx := x[i] - xMean
		ssX += dx * dx
		sumX2 += x[i] * x[i]
	}
	if ssX == 0 {
		return 0, 0
	}
	s2 := ssRes / float64(n-2)
	slopeSE = math.Sqrt(s2 / ssX)
	interceptSE = math.Sqrt(s2 * sumX2 / (float64(n) * ssX))
	return slopeSE, interceptSE
}
