package agbnp

import (
	"math"

	"github.com/kpotier/agbnp/pkg/parallel"
)

// gbPair returns the pair energy 1/f of the generalized Born function
// f = sqrt(r^2 + bi*bj*exp(-r^2/(4*bi*bj))), its derivatives with respect to
// bi and bj, and the factor g such that the gradient with respect to xi is
// g*(xi-xj).
func gbPair(r2, bi, bj float64) (e, dbi, dbj, g float64) {
	bb := bi * bj
	d := r2 / (4 * bb)
	x := math.Exp(-d)
	f2 := r2 + bb*x
	f := math.Sqrt(f2)
	f3 := f2 * f

	e = 1 / f
	c := -0.5 * x * (1 + d) / f3
	dbi = c * bj
	dbj = c * bi
	g = -(1 - 0.25*x) / f3
	return
}

// gbEnergy adds the generalized Born energy of the atoms owned by w, the
// derivatives with respect to the Born radii and the gradient at constant
// radii. Pairs are counted from the lower index.
func (s *Structure) gbEnergy(w *worker) {
	pf := s.opts.prefactor()
	nw := len(s.workers)
	for i := 0; i < s.n; i++ {
		qi := s.atoms[i].Charge
		if qi == 0 || !parallel.Owns(i, w.id, nw) {
			continue
		}
		bi := s.br[i]
		w.egb += pf * qi * qi / bi
		w.dEdB[i] -= pf * qi * qi / (bi * bi)

		for j := i + 1; j < s.n; j++ {
			qj := s.atoms[j].Charge
			if qj == 0 {
				continue
			}
			var d [3]float64
			var r2 float64
			for k := 0; k < 3; k++ {
				d[k] = s.pos[i][k] - s.pos[j][k]
				r2 += d[k] * d[k]
			}

			q := 2 * pf * qi * qj
			e, dbi, dbj, g := gbPair(r2, bi, s.br[j])
			w.egb += q * e
			w.dEdB[i] += q * dbi
			w.dEdB[j] += q * dbj

			if s.frozen[i] && s.frozen[j] {
				continue
			}
			for k := 0; k < 3; k++ {
				w.dgb[i][k] += q * g * d[k]
				w.dgb[j][k] -= q * g * d[k]
			}
		}
	}
}
