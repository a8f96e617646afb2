// Package phase classifies relaxed ground states and maps the (D, Da)
// phase diagram.
package phase

import "github.com/solmag/spinchain/internal/spin"

type Label string

const (
	Helicoidal     Label = "helicoidal"
	SolitonLattice Label = "soliton-lattice"
	Ferromagnetic  Label = "ferromagnetic"
)

// Thresholds are the order-parameter cuts used by Classify. They are
// empirical policy, not physics, so they are exposed rather than
// hardcoded; the defaults reproduce the behavior validated on the
// reference textures.
type Thresholds struct {
	// FMMeanSz: |mean Sz| above this is ferromagnetic.
	FMMeanSz float64
	// PlateauSz: |Sz| above this counts as a domain plateau site.
	PlateauSz float64
	// MinPlateauFraction: fraction of plateau sites required before a
	// sign-changing texture counts as a soliton lattice rather than a
	// helix.
	MinPlateauFraction float64
	// MinWalls: minimum Sz sign changes around the ring for a soliton
	// lattice (walls come in pairs on a periodic chain).
	MinWalls int
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		FMMeanSz:           0.9,
		PlateauSz:          0.7,
		MinPlateauFraction: 0.5,
		MinWalls:           2,
	}
}

// Classify assigns a phase label to a relaxed configuration. Priority
// order: ferromagnetic by mean polarization, then soliton lattice by
// polarized domains separated by narrow chiral walls, else helicoidal.
func Classify(s spin.State, th Thresholds) Label {
	n := s.Sites()
	if n == 0 {
		return Helicoidal
	}

	mean := s.MeanSz()
	if abs(mean) > th.FMMeanSz {
		return Ferromagnetic
	}

	walls := 0
	plateau := 0
	for i := 0; i < n; i++ {
		sz := s.Sz(i)
		if abs(sz) > th.PlateauSz {
			plateau++
		}
		next := s.Sz((i + 1) % n)
		if (sz < 0) != (next < 0) {
			walls++
		}
	}

	if walls >= th.MinWalls && float64(plateau) >= th.MinPlateauFraction*float64(n) {
		return SolitonLattice
	}
	return Helicoidal
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
