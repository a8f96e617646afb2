package spin

// Energy returns the total Hamiltonian energy of s:
//
//	E = sum_i [ -J S_i.S_{i+1} + D z.(S_i x S_{i+1}) + Da (S_i^z)^2 - hz S_i^z ]
//
// with the bond sum taken once per bond around the periodic ring. The
// effective field produced by field.Effective is the negative gradient
// of this expression.
func Energy(s State, p Params) float64 {
	n := s.Sites()
	e := 0.0
	for i := 0; i < n; i++ {
		j := i + 1
		if j == n {
			j = 0
		}
		ax, ay, az := s.Site(i)
		bx, by, bz := s.Site(j)

		e -= p.J * (ax*bx + ay*by + az*bz)
		e += p.D * (ax*by - ay*bx)
		e += p.Da * az * az
		e -= p.Hz * az
	}
	return e
}
