package born

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"

	"github.com/kpotier/agbnp/pkg/spline"

	"golang.org/x/sync/errgroup"
)

// ErrNoTable is returned when a pair of radii has no precomputed table.
var ErrNoTable = errors.New("no kernel table for radius ratio")

// Quantum is the resolution of the ratio keys: a ratio b is stored under
// int(b*Quantum).
const Quantum = 10000

// Tables holds the spline tables of the I4 kernel, one per quantized ratio
// b = R_i/R_j. A table samples f(a) = I4(a, b, 1) on [0, amax), so that
// I4(r, R_i, R_j) = f(r/R_j)/R_j.
type Tables struct {
	list  []*spline.Table
	index map[int]int
	ratio []float64
}

// Key returns the hash key of the ratio ri/rj.
func Key(ri, rj float64) int {
	return int(ri / rj * Quantum)
}

// NewTables builds the tables of every ratio vdw[i]/descreener[j]. n is the
// number of nodes and amax the upper bound of the reduced distance. The
// tables are built concurrently; the result does not depend on the order of
// the radii.
func NewTables(ctx context.Context, vdw, descreener []float64, n int, amax float64) (*Tables, error) {
	if n < 3 {
		return nil, fmt.Errorf("at least three nodes are needed (got %d)", n)
	}
	if amax <= 0 {
		return nil, errors.New("amax must be positive")
	}

	ri := distinct(vdw)
	rj := distinct(descreener)

	t := &Tables{index: make(map[int]int, len(ri)*len(rj))}
	for _, a := range ri {
		for _, b := range rj {
			key := Key(a, b)
			if _, ok := t.index[key]; ok {
				continue
			}
			t.index[key] = len(t.ratio)
			t.ratio = append(t.ratio, a/b)
		}
	}
	t.list = make([]*spline.Table, len(t.ratio))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for k, b := range t.ratio {
		k, b := k, b
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			tbl, err := buildTable(b, n, amax)
			if err != nil {
				return fmt.Errorf("buildTable (ratio %g): %w", b, err)
			}
			t.list[k] = tbl
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return t, nil
}

func buildTable(b float64, n int, amax float64) (*spline.Table, error) {
	da := amax / float64(n-1)
	y := make([]float64, n)
	var yp1 float64
	for i := 0; i < n-1; i++ {
		q, dq := I4(float64(i)*da, b, 1)
		y[i] = q
		if i == 0 {
			yp1 = dq
		}
	}
	// y[n-1] = 0, flat at infinity
	return spline.New(y, da, yp1, 0)
}

func distinct(v []float64) []float64 {
	out := append([]float64(nil), v...)
	sort.Float64s(out)
	n := 0
	for i, x := range out {
		if i == 0 || x != out[n-1] {
			out[n] = x
			n++
		}
	}
	return out[:n]
}

// Len returns the number of tables.
func (t *Tables) Len() int { return len(t.list) }

// Index returns the position of the table of ri/rj.
func (t *Tables) Index(ri, rj float64) (int, error) {
	k, ok := t.index[Key(ri, rj)]
	if !ok {
		return 0, fmt.Errorf("%w %g/%g", ErrNoTable, ri, rj)
	}
	return k, nil
}

// Eval returns I4(rij, ri, rj) and its derivative with respect to rij
// through the tables.
func (t *Tables) Eval(rij, ri, rj float64) (q, dq float64, err error) {
	k, err := t.Index(ri, rj)
	if err != nil {
		return 0, 0, err
	}
	f, fp := t.list[k].Eval(rij / rj)
	return f / rj, fp / (rj * rj), nil
}

// Batch returns an empty batch request over the tables.
func (t *Tables) Batch() spline.Batch {
	return spline.Batch{Tables: t.list}
}
