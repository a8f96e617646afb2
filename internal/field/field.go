// Package field evaluates the effective field of the 1D chiral magnet
// Hamiltonian and the time-dependent external drives applied on top of
// it.
package field

import (
	"math"

	"github.com/solmag/spinchain/internal/spin"
)

// Drive fills dst (flat 3N layout) with a time-dependent external
// field at time t, overwriting previous contents. A nil Drive means no
// time-dependent forcing.
type Drive func(t float64, dst spin.State)

// Effective computes the effective field into dst for every site:
//
//	B[i] = J(S[i-1]+S[i+1]) + D z x (S[i+1]-S[i-1]) - 2 Da Sz[i] z + hz z + hext[i]
//
// Indices wrap modulo N. hext may be nil. The function is pure in s and
// runs in O(N).
func Effective(dst spin.State, s spin.State, p spin.Params, hext spin.State) error {
	if err := p.CheckState(s); err != nil {
		return err
	}
	if err := p.CheckState(dst); err != nil {
		return err
	}
	if hext != nil {
		if err := p.CheckState(hext); err != nil {
			return err
		}
	}

	n := p.N
	for i := 0; i < n; i++ {
		prev := i - 1
		if prev < 0 {
			prev = n - 1
		}
		next := i + 1
		if next == n {
			next = 0
		}

		px, py, pz := s.Site(prev)
		nx, ny, nz := s.Site(next)

		// z x (S_next - S_prev) = (-(dy), dx, 0)
		dx := nx - px
		dy := ny - py

		bx := p.J*(px+nx) - p.D*dy
		by := p.J*(py+ny) + p.D*dx
		bz := p.J*(pz+nz) - 2*p.Da*s.Sz(i) + p.Hz

		if hext != nil {
			bx += hext[3*i]
			by += hext[3*i+1]
			bz += hext[3*i+2]
		}
		dst.SetSite(i, bx, by, bz)
	}
	return nil
}

// Pulse describes a transient nucleation field: a Gaussian profile in
// space centered at a lattice site, modulated by a Gaussian envelope in
// time, polarized along x.
type Pulse struct {
	Amplitude float64 // peak field h0
	Sigma     float64 // spatial width in sites
	Tau       float64 // temporal width
	Center    int     // center site
	Time      float64 // center time t0
	// Cutoff bounds the temporal support to |t-t0| <= Cutoff*Tau.
	// Zero means the default of 5.
	Cutoff float64
}

func (pl Pulse) cutoff() float64 {
	if pl.Cutoff == 0 {
		return 5
	}
	return pl.Cutoff
}

// Active reports whether t lies inside the pulse's temporal support.
func (pl Pulse) Active(t float64) bool {
	return math.Abs(t-pl.Time) <= pl.cutoff()*pl.Tau
}

// Drive returns the pulse as a Drive over an n-site ring. The spatial
// profile wraps around the ring through the shortest site distance.
func (pl Pulse) Drive(n int) Drive {
	return func(t float64, dst spin.State) {
		for i := range dst {
			dst[i] = 0
		}
		if !pl.Active(t) {
			return
		}
		dt := t - pl.Time
		envelope := pl.Amplitude * math.Exp(-dt*dt/(2*pl.Tau*pl.Tau))
		for i := 0; i < n; i++ {
			d := float64(i - pl.Center)
			if d > float64(n)/2 {
				d -= float64(n)
			} else if d < -float64(n)/2 {
				d += float64(n)
			}
			dst[3*i] = envelope * math.Exp(-d*d/(2*pl.Sigma*pl.Sigma))
		}
	}
}
