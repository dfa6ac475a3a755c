// Package volume calculates the self volumes and surface areas of the heavy
// atoms of a molecule in a solvent.
//
// The self volume of an atom is its volume minus its share of the overlaps
// with its neighbors: an overlap of n atoms is split in n equal parts and
// counted with the inclusion-exclusion sign (-1)^(n+1), so that the self
// volumes add up to the volume of the molecule. The surface area of an atom
// is the derivative of that volume with respect to the atom radius.
package volume

import (
	"math"

	"github.com/kpotier/agbnp/pkg/gauss"
	"github.com/kpotier/agbnp/pkg/nblist"
)

// Term couples a per-atom coefficient (dE/dV' or dE/dA) with the gradient
// it feeds.
type Term struct {
	Coef []float64
	Grad [][3]float64
}

// Engine walks the overlaps rooted at the heavy atoms owned by one worker.
// Spheres and Frozen are shared and read-only. An Engine is not safe for
// concurrent use.
type Engine struct {
	Spheres []gauss.Sphere
	Frozen  []bool

	walker gauss.Walker
	sphere func(int) gauss.Sphere
}

// NewEngine returns an engine using the given filter and depth cap.
func NewEngine(sw gauss.Switch, maxOrder int) *Engine {
	e := &Engine{walker: gauss.Walker{Switch: sw, MaxOrder: maxOrder}}
	e.sphere = func(id int) gauss.Sphere { return e.Spheres[id] }
	return e
}

// SelfVolumes adds the overlap corrections of every overlap rooted at heavy
// atom i to volume and area. volume and area must hold the isolated sphere
// values (or zero for a partial buffer) before the first call.
func (e *Engine) SelfVolumes(i int, near *nblist.List, volume, area []float64) {
	e.walker.Level = gauss.FirstDerivatives
	e.walker.Walk(i, e.Spheres[i], near.Row(i), e.sphere, func(m []int, r *gauss.Result) {
		s := gauss.Sign(len(m))
		c := s / float64(len(m))
		for k, id := range m {
			volume[id] += c * r.Volume
			area[id] += s * r.DRad[k]
		}
	})
}

func (e *Engine) frozen(m []int) bool {
	if e.Frozen == nil {
		return false
	}
	for _, id := range m {
		if !e.Frozen[id] {
			return false
		}
	}
	return true
}

// VolumeGradient adds, for every term, the gradient of Σ_m Coef[m]*V'_m
// (V' the self volume) over the overlaps rooted at heavy atom i.
func (e *Engine) VolumeGradient(i int, near *nblist.List, terms []Term) {
	e.walker.Level = gauss.FirstDerivatives
	e.walker.Walk(i, e.Spheres[i], near.Row(i), e.sphere, func(m []int, r *gauss.Result) {
		if e.frozen(m) {
			return
		}
		c := gauss.Sign(len(m)) / float64(len(m))
		for _, t := range terms {
			var w float64
			for _, id := range m {
				w += t.Coef[id]
			}
			w *= c
			for k, id := range m {
				for x := 0; x < 3; x++ {
					t.Grad[id][x] += w * r.DPos[k][x]
				}
			}
		}
	})
}

// AreaGradient adds, for every term, the gradient of Σ_m Coef[m]*A_m (A the
// unfiltered surface area) over the overlaps rooted at heavy atom i.
func (e *Engine) AreaGradient(i int, near *nblist.List, terms []Term) {
	e.walker.Level = gauss.SecondDerivatives
	e.walker.Walk(i, e.Spheres[i], near.Row(i), e.sphere, func(m []int, r *gauss.Result) {
		if e.frozen(m) {
			return
		}
		s := gauss.Sign(len(m))
		for _, t := range terms {
			for p, idp := range m {
				var g [3]float64
				for k, idk := range m {
					w := s * t.Coef[idk]
					for x := 0; x < 3; x++ {
						g[x] += w * r.DPosRad[p][k][x]
					}
				}
				for x := 0; x < 3; x++ {
					t.Grad[idp][x] += g[x]
				}
			}
		}
	})
}

// Sphere returns the volume and area of an isolated sphere of radius r.
func Sphere(r float64) (volume, area float64) {
	return 4 * math.Pi * r * r * r / 3, 4 * math.Pi * r * r
}
