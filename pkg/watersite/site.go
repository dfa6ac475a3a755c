// Package watersite places the hydration sites of the hydrogen-bonding atoms
// and computes their hydrogen-bond correction energy.
//
// A site is a sphere of solvent radius put at a fixed distance from its
// active atom. Its position depends on a few parent atoms; the Jacobians with
// respect to them carry the gradient of the site back to the molecule.
package watersite

import (
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/spatial/r3"
)

// ErrTopology is returned when the bonds of an atom do not allow its sites
// to be placed.
var ErrTopology = errors.New("unsupported water site topology")

// Type is the hydrogen-bonding class of an atom.
type Type int

// Hydrogen-bonding classes.
const (
	Inactive Type = iota
	PolarH
	Trigonal
	TrigonalS
	TrigonalOOP
	Tetrahedral
)

func (t Type) String() string {
	switch t {
	case Inactive:
		return "inactive"
	case PolarH:
		return "polar-h"
	case Trigonal:
		return "trigonal"
	case TrigonalS:
		return "trigonal-s"
	case TrigonalOOP:
		return "trigonal-oop"
	case Tetrahedral:
		return "tetrahedral"
	}
	return fmt.Sprintf("type(%d)", int(t))
}

// ParseType returns the class named name, as printed by String. The empty
// string is Inactive.
func ParseType(name string) (Type, error) {
	if name == "" {
		return Inactive, nil
	}
	for t := Inactive; t <= Tetrahedral; t++ {
		if t.String() == name {
			return t, nil
		}
	}
	return Inactive, fmt.Errorf("unknown hydrogen-bond type %q", name)
}

// OOPExtra is added to the bond length of the out-of-plane sites.
const OOPExtra = 0.2

// Site is one hydration site.
type Site struct {
	Atom int
	Type Type
	Pos  [3]float64

	// DPos[p][i][j] is the derivative of Pos[i] with respect to coordinate
	// j of Parents[p]. Parents[0] is the active atom.
	Parents []int
	DPos    [][3][3]float64

	Radius float64
	Volume float64
	Khb    float64
}

// Placer creates the sites of the active atoms.
type Placer struct {
	Length float64 // distance between an active atom and its sites
	Radius float64

	Heavy []bool
	Bonds [][]int

	Logger *zap.Logger
}

// Place appends the sites of atom of class typ to sites. A topology that does
// not fit the class is logged and yields no site, except for the
// out-of-plane class where it is an error.
func (p *Placer) Place(atom int, typ Type, khb float64, pos [][3]float64, sites []Site) ([]Site, error) {
	x := func(i int) r3.Vec { return vec(pos[i]) }
	bonds := p.Bonds[atom]
	l := p.Length

	var got []placed
	skip := func(format string, args ...interface{}) {
		p.Logger.Warn("no water site", zap.Int("atom", atom), zap.Stringer("type", typ),
			zap.String("reason", fmt.Sprintf(format, args...)))
	}

	switch typ {
	case Inactive:
		return sites, nil

	case PolarH:
		d := -1
		for _, j := range bonds {
			if p.Heavy[j] {
				d = j
				break
			}
		}
		if d < 0 {
			skip("no heavy parent")
			return sites, nil
		}
		got = append(got, hydrogen(x, atom, d, l))

	case Trigonal:
		switch len(bonds) {
		case 1:
			r := bonds[0]
			rs, ok := p.others(r, atom, 3)
			if !ok {
				skip("atom %d should have 3 bonds, found %d", r, len(p.Bonds[r]))
				return sites, nil
			}
			for _, rk := range rs {
				got = append(got, along(x, atom, r, rk, l))
			}
		case 2:
			got = append(got, bisector(x, atom, bonds, l))
		default:
			skip("unsupported number of bonds %d", len(bonds))
			return sites, nil
		}

	case TrigonalS:
		if len(bonds) != 1 {
			skip("1 bond expected, found %d", len(bonds))
			return sites, nil
		}
		r := bonds[0]
		rs, ok := p.others(r, atom, 3)
		if !ok {
			skip("atom %d should have 3 bonds, found %d", r, len(p.Bonds[r]))
			return sites, nil
		}
		for _, rk := range rs {
			got = append(got, along(x, atom, r, rk, l))
		}
		oop := outOfPlane(x, atom, r, rs[0], l)
		got = append(got, oop[:]...)

	case TrigonalOOP:
		if len(bonds) != 3 {
			return sites, fmt.Errorf("atom %d: %w: %s needs 3 bonds, found %d", atom, ErrTopology, typ, len(bonds))
		}
		n := normal(x, atom, bonds[0], bonds[1], bonds[2], l+OOPExtra)
		got = append(got, n[:]...)

	case Tetrahedral:
		switch len(bonds) {
		case 1:
			r := bonds[0]
			rs, ok := p.others(r, atom, 4)
			if !ok {
				skip("atom %d should have 4 bonds, found %d", r, len(p.Bonds[r]))
				return sites, nil
			}
			for _, rk := range rs {
				got = append(got, along(x, atom, r, rk, l))
			}
		case 2:
			t := tetrahedral(x, atom, bonds[0], bonds[1], l)
			got = append(got, t[:]...)
		case 3:
			got = append(got, bisector(x, atom, bonds, l))
		default:
			skip("unsupported number of bonds %d", len(bonds))
			return sites, nil
		}

	default:
		return sites, fmt.Errorf("atom %d: %w: unknown class %d", atom, ErrTopology, int(typ))
	}

	vol := 4 * math.Pi * p.Radius * p.Radius * p.Radius / 3
	for _, g := range got {
		s := Site{
			Atom:    atom,
			Type:    typ,
			Pos:     arr(g.pos),
			Parents: g.parents,
			DPos:    make([][3][3]float64, len(g.jac)),
			Radius:  p.Radius,
			Volume:  vol,
			Khb:     khb,
		}
		for k, j := range g.jac {
			s.DPos[k] = j
		}
		sites = append(sites, s)
	}
	return sites, nil
}

// others returns the bonded atoms of r except a when r has exactly n bonds.
func (p *Placer) others(r, a, n int) ([]int, bool) {
	if len(p.Bonds[r]) != n {
		return nil, false
	}
	out := make([]int, 0, n-1)
	for _, j := range p.Bonds[r] {
		if j != a {
			out = append(out, j)
		}
	}
	return out, len(out) == n-1
}
