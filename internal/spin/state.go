package spin

import (
	"math"
	"math/rand"
)

// State is a lattice spin configuration stored flat: site i occupies
// [3i : 3i+3]. The lattice is a periodic ring, so site N wraps to site 0.
type State []float64

// NormTolerance is the allowed per-site deviation from unit length.
const NormTolerance = 1e-6

func (s State) Sites() int { return len(s) / 3 }

func (s State) Clone() State {
	c := make(State, len(s))
	copy(c, s)
	return c
}

func (s State) IsValid() bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Site returns the components of the spin at site i.
func (s State) Site(i int) (x, y, z float64) {
	return s[3*i], s[3*i+1], s[3*i+2]
}

func (s State) SetSite(i int, x, y, z float64) {
	s[3*i], s[3*i+1], s[3*i+2] = x, y, z
}

func (s State) Sz(i int) float64 { return s[3*i+2] }

// SzProfile copies the z components into dst, allocating when dst is
// too short, and returns the profile.
func (s State) SzProfile(dst []float64) []float64 {
	n := s.Sites()
	if cap(dst) < n {
		dst = make([]float64, n)
	}
	dst = dst[:n]
	for i := 0; i < n; i++ {
		dst[i] = s[3*i+2]
	}
	return dst
}

func (s State) MeanSz() float64 {
	n := s.Sites()
	if n == 0 {
		return 0
	}
	sum := 0.0
	for i := 0; i < n; i++ {
		sum += s[3*i+2]
	}
	return sum / float64(n)
}

// Normalize rescales every spin to unit length in place. Zero-length
// spins are reset to +z rather than divided by zero.
func (s State) Normalize() {
	for i := 0; i < len(s); i += 3 {
		m := math.Sqrt(s[i]*s[i] + s[i+1]*s[i+1] + s[i+2]*s[i+2])
		if m == 0 {
			s[i], s[i+1], s[i+2] = 0, 0, 1
			continue
		}
		s[i] /= m
		s[i+1] /= m
		s[i+2] /= m
	}
}

// MaxNormDeviation reports the largest per-site abs(|S_i| - 1).
func (s State) MaxNormDeviation() float64 {
	worst := 0.0
	for i := 0; i < len(s); i += 3 {
		m := math.Sqrt(s[i]*s[i] + s[i+1]*s[i+1] + s[i+2]*s[i+2])
		if d := math.Abs(m - 1); d > worst {
			worst = d
		}
	}
	return worst
}

// Shift returns the configuration cyclically shifted by k sites, so
// site i of the result is site i-k of s.
func (s State) Shift(k int) State {
	n := s.Sites()
	out := make(State, len(s))
	for i := 0; i < n; i++ {
		src := ((i-k)%n + n) % n
		copy(out[3*i:3*i+3], s[3*src:3*src+3])
	}
	return out
}

// Ferromagnetic returns the uniform configuration with every spin along +z.
func Ferromagnetic(n int) State {
	s := make(State, 3*n)
	for i := 0; i < n; i++ {
		s[3*i+2] = 1
	}
	return s
}

// Spiral returns a helix in the xy plane with the given number of full
// turns around the ring.
func Spiral(n, turns int) State {
	s := make(State, 3*n)
	for i := 0; i < n; i++ {
		phi := 2 * math.Pi * float64(turns) * float64(i) / float64(n)
		s.SetSite(i, math.Cos(phi), math.Sin(phi), 0)
	}
	return s
}

// Random returns a configuration of independently uniform random unit
// spins drawn from rng. The source is explicit so parallel workers and
// reproducible runs control their own streams.
func Random(n int, rng *rand.Rand) State {
	s := make(State, 3*n)
	for i := 0; i < n; i++ {
		// Marsaglia sphere point picking
		for {
			u := 2*rng.Float64() - 1
			v := 2*rng.Float64() - 1
			q := u*u + v*v
			if q >= 1 || q == 0 {
				continue
			}
			f := 2 * math.Sqrt(1-q)
			s.SetSite(i, u*f, v*f, 1-2*q)
			break
		}
	}
	return s
}
