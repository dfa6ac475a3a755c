package nblist

import (
	"fmt"
	"sort"
)

// Builder splits the pairs of every heavy atom into a near list (heavy atoms
// closer than (r_i+r_j)*Offset) and a far list (the other heavy atoms and all
// the hydrogens). Only heavy atoms j that come after i in Heavy are listed,
// so that each heavy pair appears once.
type Builder struct {
	Offset float64
	Radius []float64

	// Heavy and Hydrogens hold atom indices; Heavy is in ascending order.
	Heavy     []int
	Hydrogens []int

	scratch []entry
}

type entry struct {
	j  int
	d2 float64
}

// Build fills near and far for the heavy atoms Heavy[p], p in roots. Both
// lists are reset first. Near rows are sorted by squared distance with the
// atom index as tie-break; the squared distance is stored as extra value.
func (b *Builder) Build(pos [][3]float64, roots []int, near, far *List) error {
	near.Reset()
	far.Reset()

	nheavy := len(b.Heavy)
	for _, p := range roots {
		i := b.Heavy[p]

		if err := near.Reserve(nheavy - p - 1); err != nil {
			return fmt.Errorf("near list of atom %d: %w", i, err)
		}
		if err := far.Reserve(nheavy - p - 1 + len(b.Hydrogens)); err != nil {
			return fmt.Errorf("far list of atom %d: %w", i, err)
		}

		near.Begin(i)
		far.Begin(i)
		b.scratch = b.scratch[:0]

		for _, j := range b.Heavy[p+1:] {
			d2 := dist2(pos[i], pos[j])
			u := (b.Radius[i] + b.Radius[j]) * b.Offset
			if d2 < u*u {
				b.scratch = append(b.scratch, entry{j, d2})
			} else {
				far.Append(i, j, d2)
			}
		}
		for _, j := range b.Hydrogens {
			far.Append(i, j, dist2(pos[i], pos[j]))
		}

		sort.Slice(b.scratch, func(x, y int) bool {
			if b.scratch[x].d2 != b.scratch[y].d2 {
				return b.scratch[x].d2 < b.scratch[y].d2
			}
			return b.scratch[x].j < b.scratch[y].j
		})
		for _, e := range b.scratch {
			near.Append(i, e.j, e.d2)
		}
	}

	return nil
}

func dist2(a, b [3]float64) float64 {
	var d2 float64
	for k := 0; k < 3; k++ {
		d := b[k] - a[k]
		d2 += d * d
	}
	return d2
}
