package watersite

import (
	"math"
	"sort"

	"github.com/kpotier/agbnp/pkg/gauss"
)

// Neighbors caches, for every site, the heavy atoms that may overlap it. The
// rows are gathered with a margin Skin and kept until an atom or a site has
// moved by more than Skin/2 or the number of sites changed. Atoms whose
// two-body overlap with the site cannot exceed MinVol within the margin are
// left out. Rows are sorted by squared distance, then by atom index.
type Neighbors struct {
	Offset float64
	Skin   float64
	MinVol float64

	built   bool
	rows    [][]int
	atomRef [][3]float64
	siteRef [][3]float64
	scratch []entry
}

type entry struct {
	j  int
	d2 float64
}

// Update refreshes the rows if needed and reports whether they were rebuilt.
// heavy lists the heavy atom indices and radius the atomic radii.
func (n *Neighbors) Update(sites []Site, pos [][3]float64, heavy []int, radius []float64) bool {
	if !n.stale(sites, pos) {
		return false
	}

	n.rows = n.rows[:0]
	n.siteRef = n.siteRef[:0]
	for _, s := range sites {
		site := gauss.NewSphere(s.Pos, s.Radius)
		n.scratch = n.scratch[:0]
		for _, j := range heavy {
			d2 := dist2(s.Pos, pos[j])
			u := (radius[j]+s.Radius)*n.Offset + n.Skin
			if d2 >= u*u {
				continue
			}
			// closest approach once both have moved by Skin/2
			d := math.Max(0, math.Sqrt(d2)-n.Skin)
			if gauss.PairVolume(site, gauss.NewSphere(pos[j], radius[j]), d*d) <= n.MinVol {
				continue
			}
			n.scratch = append(n.scratch, entry{j, d2})
		}

		sort.Slice(n.scratch, func(x, y int) bool {
			if n.scratch[x].d2 != n.scratch[y].d2 {
				return n.scratch[x].d2 < n.scratch[y].d2
			}
			return n.scratch[x].j < n.scratch[y].j
		})
		row := make([]int, len(n.scratch))
		for k, e := range n.scratch {
			row[k] = e.j
		}
		n.rows = append(n.rows, row)
		n.siteRef = append(n.siteRef, s.Pos)
	}
	n.atomRef = append(n.atomRef[:0], pos...)
	n.built = true
	return true
}

func (n *Neighbors) stale(sites []Site, pos [][3]float64) bool {
	if !n.built || len(sites) != len(n.siteRef) || len(pos) != len(n.atomRef) {
		return true
	}
	h2 := n.Skin * n.Skin / 4
	for i := range pos {
		if dist2(pos[i], n.atomRef[i]) > h2 {
			return true
		}
	}
	for i := range sites {
		if dist2(sites[i].Pos, n.siteRef[i]) > h2 {
			return true
		}
	}
	return false
}

// Row returns the heavy atoms near site s.
func (n *Neighbors) Row(s int) []int { return n.rows[s] }

func dist2(a, b [3]float64) float64 {
	var d2 float64
	for k := 0; k < 3; k++ {
		d := b[k] - a[k]
		d2 += d * d
	}
	return d2
}
