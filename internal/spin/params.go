package spin

import (
	"fmt"
	"math"
)

// Params bundles the physical constants of one simulation run. The
// record is passed by value through every call boundary and never
// mutated after construction, so parallel workers cannot interfere.
type Params struct {
	N     int     // lattice sites
	J     float64 // Heisenberg exchange
	D     float64 // Dzyaloshinskii-Moriya constant (D vector along z)
	Da    float64 // uniaxial anisotropy, easy axis for Da < 0
	Alpha float64 // Gilbert damping
	Gamma float64 // gyromagnetic ratio
	Hz    float64 // static field along z
}

func (p Params) Validate() error {
	if p.N <= 0 {
		return fmt.Errorf("%w: N must be positive, got %d", ErrConfiguration, p.N)
	}
	for _, c := range []struct {
		name string
		v    float64
	}{
		{"J", p.J}, {"D", p.D}, {"Da", p.Da},
		{"alpha", p.Alpha}, {"gamma", p.Gamma}, {"hz", p.Hz},
	} {
		if math.IsNaN(c.v) || math.IsInf(c.v, 0) {
			return fmt.Errorf("%w: %s is not finite", ErrConfiguration, c.name)
		}
	}
	if p.Alpha < 0 {
		return fmt.Errorf("%w: alpha must be >= 0, got %g", ErrConfiguration, p.Alpha)
	}
	if p.Gamma <= 0 {
		return fmt.Errorf("%w: gamma must be positive, got %g", ErrConfiguration, p.Gamma)
	}
	return nil
}

// CheckState verifies that s has the shape the parameter record expects.
func (p Params) CheckState(s State) error {
	if s.Sites() != p.N || len(s)%3 != 0 {
		return fmt.Errorf("%w: state has %d values, want %d sites x 3", ErrConfiguration, len(s), p.N)
	}
	return nil
}
