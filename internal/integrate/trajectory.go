package integrate

import "github.com/solmag/spinchain/internal/spin"

// Trajectory is the sampled output of one integration run: strictly
// increasing sample times, the full spin configuration at each sample,
// and the parameter record that produced them. Consumers treat it as
// read-only.
type Trajectory struct {
	Params spin.Params
	Times  []float64
	States []spin.State
}

func (tr *Trajectory) Len() int { return len(tr.Times) }

func (tr *Trajectory) append(t float64, s spin.State) {
	tr.Times = append(tr.Times, t)
	tr.States = append(tr.States, s.Clone())
}
