// Package spline implements cubic-spline tables on a uniform grid starting at
// zero. The second-derivative coefficients are solved once when the table is
// built; an evaluation finds its bracketing interval directly from x/dx.
package spline

import (
	"errors"
	"fmt"
)

// Natural is the threshold above which an end-point derivative given to New
// selects a natural boundary condition (zero second derivative).
const Natural = 0.99e30

// Table is a cubic spline sampled on the nodes x_k = k*dx, k = 0..n-1. Its
// domain is [0, (n-1)*dx).
type Table struct {
	dx float64
	y  []float64
	y2 []float64
}

// New builds a spline table from the values y sampled every dx. yp1 and ypn
// are the first derivatives at the two end points. A value greater than
// Natural selects a natural boundary on that side. y is copied.
func New(y []float64, dx, yp1, ypn float64) (*Table, error) {
	n := len(y)
	if n < 2 {
		return nil, fmt.Errorf("at least two nodes are needed (got %d)", n)
	}
	if dx <= 0 {
		return nil, errors.New("node spacing must be positive")
	}

	t := &Table{
		dx: dx,
		y:  append([]float64(nil), y...),
		y2: make([]float64, n),
	}
	u := make([]float64, n)

	if yp1 > Natural {
		t.y2[0], u[0] = 0, 0
	} else {
		t.y2[0] = -0.5
		u[0] = (3 / dx) * ((y[1]-y[0])/dx - yp1)
	}

	// uniform grid: sig = 0.5 everywhere
	const sig = 0.5
	for i := 1; i < n-1; i++ {
		p := sig*t.y2[i-1] + 2
		t.y2[i] = (sig - 1) / p
		d := (y[i+1]-y[i])/dx - (y[i]-y[i-1])/dx
		u[i] = (6*d/(2*dx) - sig*u[i-1]) / p
	}

	var qn, un float64
	if ypn <= Natural {
		qn = 0.5
		un = (3 / dx) * (ypn - (y[n-1]-y[n-2])/dx)
	}
	t.y2[n-1] = (un - qn*u[n-2]) / (qn*t.y2[n-2] + 1)

	for k := n - 2; k >= 0; k-- {
		t.y2[k] = t.y2[k]*t.y2[k+1] + u[k]
	}

	return t, nil
}

// Len returns the number of nodes.
func (t *Table) Len() int { return len(t.y) }

// Dx returns the node spacing.
func (t *Table) Dx() float64 { return t.dx }

// Max returns the upper bound of the domain.
func (t *Table) Max() float64 { return t.dx * float64(len(t.y)-1) }

// Eval returns the interpolated value and first derivative at x. Outside the
// domain it returns (0, 0): callers read it as a negligible contribution.
func (t *Table) Eval(x float64) (f, fp float64) {
	if x < 0 {
		return 0, 0
	}
	xh := x / t.dx
	k := int(xh)
	if k > len(t.y)-2 {
		return 0, 0
	}

	a := float64(k+1) - xh
	b := xh - float64(k)
	y0, y1 := t.y[k], t.y[k+1]
	c0, c1 := t.y2[k], t.y2[k+1]

	f = a*y0 + b*y1 + ((a*a*a-a)*c0+(b*b*b-b)*c1)*t.dx*t.dx/6
	fp = (y1-y0)/t.dx + (-(3*a*a-1)*c0+(3*b*b-1)*c1)*t.dx/6
	return f, fp
}
