package agbnp

import (
	"errors"
	"fmt"

	"github.com/kpotier/agbnp/pkg/watersite"
)

// ErrInput is returned for atoms, bonds, positions or options that cannot be
// used.
var ErrInput = errors.New("invalid input")

// ErrCacheReplay is returned when a derivative pass does not consume the
// pair cache exactly as it was recorded. It is an internal error.
var ErrCacheReplay = errors.New("pair cache replay mismatch")

// Atom holds the fixed parameters of one atom.
type Atom struct {
	// Radius is the van der Waals radius.
	Radius float64 `toml:"radius"`
	Charge float64 `toml:"charge"`

	// Nonpolar coefficients, intrinsic and correction parts. Alpha and
	// Delta make the dispersion energy, Gamma the cavity energy.
	Alpha     float64 `toml:"alpha"`
	AlphaCorr float64 `toml:"alpha_corr"`
	Gamma     float64 `toml:"gamma"`
	GammaCorr float64 `toml:"gamma_corr"`
	Delta     float64 `toml:"delta"`
	DeltaCorr float64 `toml:"delta_corr"`

	// HBType is read from its name, see watersite.ParseType.
	HBType watersite.Type `toml:"-"`
	HBCorr float64        `toml:"hb_corr"`

	Heavy  bool `toml:"heavy"`
	Frozen bool `toml:"frozen"`
}

// Connectivity lists the bonded neighbors of every atom.
type Connectivity [][]int

func validate(atoms []Atom, conn Connectivity) error {
	if len(atoms) == 0 {
		return fmt.Errorf("%w: no atoms", ErrInput)
	}
	if len(conn) != len(atoms) {
		return fmt.Errorf("%w: %d connectivity rows for %d atoms", ErrInput, len(conn), len(atoms))
	}
	for i, a := range atoms {
		if !(a.Radius > 0) {
			return fmt.Errorf("%w: atom %d: radius %g", ErrInput, i, a.Radius)
		}
		if a.HBType < watersite.Inactive || a.HBType > watersite.Tetrahedral {
			return fmt.Errorf("%w: atom %d: hydrogen-bond type %d", ErrInput, i, int(a.HBType))
		}
		if a.HBType == watersite.PolarH && a.Heavy {
			return fmt.Errorf("%w: atom %d: polar hydrogen marked heavy", ErrInput, i)
		}
		for _, j := range conn[i] {
			if j < 0 || j >= len(atoms) || j == i {
				return fmt.Errorf("%w: atom %d: bond to %d", ErrInput, i, j)
			}
		}
	}
	return nil
}
