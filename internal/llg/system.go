// Package llg defines the Landau-Lifshitz-Gilbert equation of motion
// as a right-hand side consumable by the adaptive integrator.
package llg

import (
	"github.com/solmag/spinchain/internal/field"
	"github.com/solmag/spinchain/internal/spin"
)

// System is the LLG equation for one parameter record:
//
//	dS_i/dt = -gamma S_i x B_i - alpha gamma S_i x (S_i x B_i)
//
// with B_i the effective field, optionally augmented by a
// time-dependent drive. A System is not safe for concurrent use; each
// worker builds its own.
type System struct {
	p     spin.Params
	drive field.Drive

	// scratch buffers reused across Derive calls
	s    spin.State
	beff spin.State
	hext spin.State
}

func New(p spin.Params, drive field.Drive) (*System, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	sys := &System{
		p:     p,
		drive: drive,
		s:     make(spin.State, 3*p.N),
		beff:  make(spin.State, 3*p.N),
	}
	if drive != nil {
		sys.hext = make(spin.State, 3*p.N)
	}
	return sys, nil
}

func (sys *System) Params() spin.Params { return sys.p }
func (sys *System) Sites() int          { return sys.p.N }

// Derive evaluates dS/dt at (x, t). The input is renormalized into a
// scratch copy before the field evaluation so accumulated solver drift
// inside a step cannot feed back into the torque.
func (sys *System) Derive(x spin.State, t float64) spin.State {
	copy(sys.s, x)
	sys.s.Normalize()

	if sys.drive != nil {
		sys.drive(t, sys.hext)
	}
	// shapes were checked at construction
	_ = field.Effective(sys.beff, sys.s, sys.p, sys.hext)

	g := sys.p.Gamma
	ag := sys.p.Alpha * g

	out := make(spin.State, len(x))
	for i := 0; i < sys.p.N; i++ {
		sx, sy, sz := sys.s.Site(i)
		bx, by, bz := sys.beff.Site(i)

		// P = S x B
		px := sy*bz - sz*by
		py := sz*bx - sx*bz
		pz := sx*by - sy*bx

		// Q = S x P
		qx := sy*pz - sz*py
		qy := sz*px - sx*pz
		qz := sx*py - sy*px

		out.SetSite(i, -g*px-ag*qx, -g*py-ag*qy, -g*pz-ag*qz)
	}
	return out
}

// Energy returns the Hamiltonian energy of x under the system's
// parameters, ignoring any transient drive.
func (sys *System) Energy(x spin.State) float64 {
	return spin.Energy(x, sys.p)
}
