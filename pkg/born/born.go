// Package born computes inverse Born radii with the pairwise I4 kernel.
//
// The raw inverse Born radius of atom i is
//
//	beta_i = 1/R_i - 1/(4π) Σ_j s_j I4(r_ij, R_i, r_j)
//
// where R_i is the van der Waals radius, r_j the enlarged radius of heavy atom
// j and s_j its volume scaling factor. Hydrogens are descreened but do not
// descreen. The kernel values are recorded in a PairCache during the forward
// pass and replayed by the two derivative passes.
package born

import (
	"errors"
	"fmt"
	"math"

	"github.com/kpotier/agbnp/pkg/nblist"
	"github.com/kpotier/agbnp/pkg/spline"
)

// ErrReplay is returned when a replay does not consume exactly what the
// forward pass recorded.
var ErrReplay = errors.New("pair cache replay out of step")

// pf is the 1/(4π) prefactor of the descreening integral.
const pf = 1 / (4 * math.Pi)

// PairCache stores the kernel values and derivatives of one worker in
// traversal order. Values and derivatives are each read once, by two
// independent cursors.
type PairCache struct {
	q, dq  []float64
	nextQ  int
	nextDQ int
}

// Reset empties the cache and keeps its storage.
func (c *PairCache) Reset() {
	c.q = c.q[:0]
	c.dq = c.dq[:0]
	c.nextQ, c.nextDQ = 0, 0
}

// Record appends one kernel evaluation.
func (c *PairCache) Record(q, dq float64) {
	c.q = append(c.q, q)
	c.dq = append(c.dq, dq)
}

// Len returns the number of recorded evaluations.
func (c *PairCache) Len() int { return len(c.q) }

// value and derivative read past the end as zeros; the Consumed checks then
// report the mismatch.
func (c *PairCache) value() float64 {
	if c.nextQ >= len(c.q) {
		c.nextQ++
		return 0
	}
	v := c.q[c.nextQ]
	c.nextQ++
	return v
}

func (c *PairCache) derivative() float64 {
	if c.nextDQ >= len(c.dq) {
		c.nextDQ++
		return 0
	}
	v := c.dq[c.nextDQ]
	c.nextDQ++
	return v
}

// ValuesConsumed reports whether every recorded value was replayed.
func (c *PairCache) ValuesConsumed() error {
	if c.nextQ != len(c.q) {
		return fmt.Errorf("%w: %d of %d values", ErrReplay, c.nextQ, len(c.q))
	}
	return nil
}

// DerivativesConsumed reports whether every recorded derivative was replayed.
func (c *PairCache) DerivativesConsumed() error {
	if c.nextDQ != len(c.dq) {
		return fmt.Errorf("%w: %d of %d derivatives", ErrReplay, c.nextDQ, len(c.dq))
	}
	return nil
}

// Term couples a per-atom coefficient dE/dbeta with the gradient it feeds.
type Term struct {
	Coef []float64
	Grad [][3]float64
}

// Sensitivity couples a per-atom coefficient dE/dbeta with the per-atom
// output dE/ds it feeds.
type Sensitivity struct {
	Coef []float64
	Out  []float64
}

// Engine evaluates the pairs of the heavy atoms owned by one worker. The
// slices are shared and read-only; the batch is private scratch.
type Engine struct {
	Tables *Tables
	VdW    []float64
	Radius []float64
	Heavy  []bool
	Frozen []bool

	batch spline.Batch
	scale []float64
}

// NewEngine returns an engine over the given per-atom data.
func NewEngine(t *Tables, vdw, radius []float64, heavy, frozen []bool) *Engine {
	return &Engine{
		Tables: t,
		VdW:    vdw,
		Radius: radius,
		Heavy:  heavy,
		Frozen: frozen,
		batch:  t.Batch(),
	}
}

// neighbors visits the near row then the far row of atom i.
func neighbors(i int, near, far *nblist.List, fn func(j int, d2 float64)) {
	for k, j := range near.Row(i) {
		fn(j, near.Extra(i)[k])
	}
	for k, j := range far.Row(i) {
		fn(j, far.Extra(i)[k])
	}
}

// Descreen evaluates every pair of heavy atom i, subtracts the contributions
// from br1 and records the kernel values in c. For a heavy neighbor j two
// entries are recorded, the descreening of i by j then of j by i; for a
// hydrogen only the descreening of j by i.
func (e *Engine) Descreen(i int, near, far *nblist.List, sp, br1 []float64, c *PairCache) error {
	e.batch.Reset()
	e.scale = e.scale[:0]

	var err error
	queue := func(r, ri, rj float64) {
		k, kerr := e.Tables.Index(ri, rj)
		if kerr != nil {
			err = kerr
			return
		}
		e.batch.Add(r/rj, k)
		e.scale = append(e.scale, rj)
	}

	neighbors(i, near, far, func(j int, d2 float64) {
		r := math.Sqrt(d2)
		if e.Heavy[j] {
			queue(r, e.VdW[i], e.Radius[j])
		}
		queue(r, e.VdW[j], e.Radius[i])
	})
	if err != nil {
		return err
	}
	e.batch.Eval()

	slot := 0
	next := func() (q, dq float64) {
		rj := e.scale[slot]
		q, dq = e.batch.F[slot]/rj, e.batch.FP[slot]/(rj*rj)
		slot++
		c.Record(q, dq)
		return q, dq
	}
	neighbors(i, near, far, func(j int, _ float64) {
		if e.Heavy[j] {
			q, _ := next()
			br1[i] -= pf * sp[j] * q
		}
		q, _ := next()
		br1[j] -= pf * sp[i] * q
	})

	return nil
}

// Gradient replays the kernel derivatives of heavy atom i and adds, for each
// term, coef * dbeta/dx to the gradient at constant scaling factors. Pairs of
// frozen atoms consume their entries without contributing.
func (e *Engine) Gradient(i int, pos [][3]float64, near, far *nblist.List, sp []float64, terms []Term, c *PairCache) {
	neighbors(i, near, far, func(j int, d2 float64) {
		skip := e.Frozen[i] && e.Frozen[j]
		r := math.Sqrt(d2)
		var u [3]float64
		for k := 0; k < 3; k++ {
			u[k] = (pos[i][k] - pos[j][k]) / r
		}

		// beta_i through s_j, then beta_j through s_i
		if e.Heavy[j] {
			dq := c.derivative()
			if !skip {
				w := -pf * sp[j] * dq
				for _, t := range terms {
					g := t.Coef[i] * w
					for k := 0; k < 3; k++ {
						t.Grad[i][k] += g * u[k]
						t.Grad[j][k] -= g * u[k]
					}
				}
			}
		}
		dq := c.derivative()
		if skip {
			return
		}
		w := -pf * sp[i] * dq
		for _, t := range terms {
			g := t.Coef[j] * w
			for k := 0; k < 3; k++ {
				t.Grad[j][k] -= g * u[k]
				t.Grad[i][k] += g * u[k]
			}
		}
	})
}

// Sensitivities replays the kernel values of heavy atom i and accumulates
// dE/ds for the descreening atoms: out[j] += coef[i] * dbeta_i/ds_j.
func (e *Engine) Sensitivities(i int, near, far *nblist.List, sens []Sensitivity, c *PairCache) {
	neighbors(i, near, far, func(j int, _ float64) {
		if e.Heavy[j] {
			q := c.value()
			for _, s := range sens {
				s.Out[j] -= pf * s.Coef[i] * q
			}
		}
		q := c.value()
		for _, s := range sens {
			s.Out[i] -= pf * s.Coef[j] * q
		}
	})
}
