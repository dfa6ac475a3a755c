package watersite

import "github.com/kpotier/agbnp/pkg/gauss"

// Engine computes the free volume and the hydrogen-bond energy of sites. The
// spheres are the heavy atoms of the molecule and are shared read-only. An
// Engine is not safe for concurrent use.
type Engine struct {
	Spheres []gauss.Sphere
	Frozen  []bool

	// SwitchA and SwitchB bound the free volume fraction over which the
	// energy goes from 0 to Khb.
	SwitchA, SwitchB float64

	walker gauss.Walker
	sphere func(int) gauss.Sphere
}

// NewEngine returns an engine using the overlap filter sw and depth cap
// maxOrder.
func NewEngine(sw gauss.Switch, maxOrder int, a, b float64) *Engine {
	e := &Engine{SwitchA: a, SwitchB: b, walker: gauss.Walker{Switch: sw, MaxOrder: maxOrder}}
	e.sphere = func(id int) gauss.Sphere { return e.Spheres[id] }
	return e
}

// Energy returns the free volume of s among the heavy atoms cands and its
// energy Khb*PolSwitch(free/Volume). When grad is not nil the gradient of the
// energy is added to it: directly for the atoms overlapping the site and
// through DPos for the parents of the site.
func (e *Engine) Energy(s *Site, cands []int, grad [][3]float64) (free, energy float64) {
	root := gauss.NewSphere(s.Pos, s.Radius)

	free = s.Volume
	e.walker.Level = gauss.NoDerivatives
	e.walker.Walk(-1, root, cands, e.sphere, func(m []int, r *gauss.Result) {
		free += gauss.Sign(len(m)) * r.Volume
	})

	f, fp, _ := gauss.PolSwitch(free/s.Volume, e.SwitchA, e.SwitchB)
	energy = s.Khb * f
	if grad == nil || fp == 0 || s.Khb == 0 {
		return free, energy
	}

	de := s.Khb * fp / s.Volume
	fixed := e.fixed(s)
	var gs [3]float64
	e.walker.Level = gauss.FirstDerivatives
	e.walker.Walk(-1, root, cands, e.sphere, func(m []int, r *gauss.Result) {
		if fixed && e.frozen(m[1:]) {
			return
		}
		w := gauss.Sign(len(m)) * de
		for x := 0; x < 3; x++ {
			gs[x] += w * r.DPos[0][x]
		}
		for k, id := range m[1:] {
			for x := 0; x < 3; x++ {
				grad[id][x] += w * r.DPos[k+1][x]
			}
		}
	})

	for p, id := range s.Parents {
		for j := 0; j < 3; j++ {
			var g float64
			for i := 0; i < 3; i++ {
				g += gs[i] * s.DPos[p][i][j]
			}
			grad[id][j] += g
		}
	}
	return free, energy
}

// fixed reports whether every parent of s is frozen.
func (e *Engine) fixed(s *Site) bool {
	return e.frozen(s.Parents)
}

func (e *Engine) frozen(ids []int) bool {
	if e.Frozen == nil {
		return false
	}
	for _, id := range ids {
		if !e.Frozen[id] {
			return false
		}
	}
	return true
}
