package agbnp

import (
	"fmt"
	"io"
	"os"

	"github.com/kpotier/agbnp/pkg/watersite"

	"github.com/pelletier/go-toml"
)

// Input is a molecule read from a structure file.
type Input struct {
	Atoms   []Atom
	Conn    Connectivity
	Pos     [][3]float64
	Options Options
}

// atomExtra holds the keys of an [[atoms]] entry that are not part of Atom.
type atomExtra struct {
	HBType string    `toml:"hb_type"`
	Pos    []float64 `toml:"pos"`
	Bonds  []int     `toml:"bonds"`
}

// LoadInput opens and reads a structure file.
func LoadInput(path string) (*Input, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadInput(f)
}

// ReadInput reads a structure file: an optional [options] table decoded over
// the default options and one [[atoms]] entry per atom with its parameters,
// its position (pos), the indices of its bonded atoms (bonds) and the name of
// its hydrogen-bond type (hb_type).
func ReadInput(r io.Reader) (*Input, error) {
	t, err := toml.LoadReader(r)
	if err != nil {
		return nil, fmt.Errorf("LoadReader: %w", err)
	}

	var in Input
	opts, _ := t.Get("options").(*toml.Tree)
	in.Options, err = OptionsFromTree(opts)
	if err != nil {
		return nil, fmt.Errorf("OptionsFromTree: %w", err)
	}

	trees, ok := t.Get("atoms").([]*toml.Tree)
	if !ok || len(trees) == 0 {
		return nil, fmt.Errorf("%w: no [[atoms]] entries", ErrInput)
	}
	for k, at := range trees {
		var a Atom
		if err := at.Unmarshal(&a); err != nil {
			return nil, fmt.Errorf("atom %d: Unmarshal: %w", k, err)
		}
		var x atomExtra
		if err := at.Unmarshal(&x); err != nil {
			return nil, fmt.Errorf("atom %d: Unmarshal: %w", k, err)
		}

		a.HBType, err = watersite.ParseType(x.HBType)
		if err != nil {
			return nil, fmt.Errorf("%w: atom %d: %v", ErrInput, k, err)
		}
		if len(x.Pos) != 3 {
			return nil, fmt.Errorf("%w: atom %d: pos has %d components", ErrInput, k, len(x.Pos))
		}

		in.Atoms = append(in.Atoms, a)
		in.Conn = append(in.Conn, x.Bonds)
		in.Pos = append(in.Pos, [3]float64{x.Pos[0], x.Pos[1], x.Pos[2]})
	}
	return &in, nil
}
