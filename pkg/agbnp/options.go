package agbnp

import (
	"fmt"
	"io"
	"runtime"

	"github.com/kpotier/agbnp/pkg/gauss"

	"github.com/pelletier/go-toml"
)

// Options holds the numeric constants of the model. The zero value is not
// usable; start from DefaultOptions.
type Options struct {
	// RadiusIncrement is added to the van der Waals radii to get the
	// radii of the atomic Gaussians.
	RadiusIncrement float64 `toml:"radius_increment"`
	// NBOffset scales the sum of the radii below which two heavy atoms are
	// near neighbors.
	NBOffset float64 `toml:"nb_offset"`

	MinVolA         float64 `toml:"min_vol_a"`
	MinVolB         float64 `toml:"min_vol_b"`
	MaxOverlapOrder int     `toml:"max_overlap_order"`

	SolventRadius float64 `toml:"solvent_radius"`
	AreaFilter    float64 `toml:"area_filter"`
	InvBornFloor  float64 `toml:"inv_born_floor"`

	TableSize int     `toml:"table_size"`
	TableMaxA float64 `toml:"table_max_a"`

	HBLength      float64 `toml:"hb_length"`
	HBRadius      float64 `toml:"hb_radius"`
	HBSwitchA     float64 `toml:"hb_switch_a"`
	HBSwitchB     float64 `toml:"hb_switch_b"`
	WaterSiteSkin float64 `toml:"water_site_skin"`

	DielIn  float64 `toml:"diel_in"`
	DielOut float64 `toml:"diel_out"`
	Coulomb float64 `toml:"coulomb"`

	// Workers is the size of the worker team, 0 meaning the number of CPUs.
	Workers int `toml:"workers"`
	// ListLimit caps the entries of each neighbor list, 0 meaning no cap.
	ListLimit int `toml:"list_limit"`
}

// DefaultOptions returns the standard parameters.
func DefaultOptions() Options {
	return Options{
		RadiusIncrement: 0.5,
		NBOffset:        1.5,
		MinVolA:         0.01,
		MinVolB:         0.1,
		MaxOverlapOrder: gauss.MaxOrder,
		SolventRadius:   1.4,
		AreaFilter:      5,
		InvBornFloor:    0.02,
		TableSize:       512,
		TableMaxA:       16,
		HBLength:        2.5,
		HBRadius:        1.4,
		HBSwitchA:       0.1,
		HBSwitchB:       0.3,
		WaterSiteSkin:   1,
		DielIn:          1,
		DielOut:         80,
		Coulomb:         332,
	}
}

// ReadOptions decodes a TOML document over the default options: keys absent
// from the document keep their default value.
func ReadOptions(r io.Reader) (Options, error) {
	t, err := toml.LoadReader(r)
	if err != nil {
		return Options{}, fmt.Errorf("LoadReader: %w", err)
	}
	return OptionsFromTree(t)
}

// OptionsFromTree decodes a TOML table over the default options. A nil table
// gives the defaults.
func OptionsFromTree(t *toml.Tree) (Options, error) {
	b, err := toml.Marshal(DefaultOptions())
	if err != nil {
		return Options{}, fmt.Errorf("Marshal: %w", err)
	}
	merged, err := toml.LoadBytes(b)
	if err != nil {
		return Options{}, fmt.Errorf("LoadBytes: %w", err)
	}
	if t != nil {
		for _, k := range t.Keys() {
			merged.Set(k, t.Get(k))
		}
	}

	var opts Options
	if err := merged.Unmarshal(&opts); err != nil {
		return Options{}, fmt.Errorf("Unmarshal: %w", err)
	}
	return opts, opts.Validate()
}

// Validate checks that the constants are usable.
func (o Options) Validate() error {
	checks := []struct {
		ok  bool
		msg string
	}{
		{o.RadiusIncrement >= 0, "radius_increment must not be negative"},
		{o.NBOffset >= 1, "nb_offset must be at least 1"},
		{o.MinVolA >= 0 && o.MinVolB > o.MinVolA, "min_vol_b must be greater than min_vol_a >= 0"},
		{o.MaxOverlapOrder >= 2 && o.MaxOverlapOrder <= gauss.MaxOrder, fmt.Sprintf("max_overlap_order must be in [2, %d]", gauss.MaxOrder)},
		{o.SolventRadius > 0, "solvent_radius must be positive"},
		{o.AreaFilter > 0, "area_filter must be positive"},
		{o.InvBornFloor > 0, "inv_born_floor must be positive"},
		{o.TableSize >= 3, "table_size must be at least 3"},
		{o.TableMaxA > 0, "table_max_a must be positive"},
		{o.HBLength > 0, "hb_length must be positive"},
		{o.HBRadius > 0, "hb_radius must be positive"},
		{o.HBSwitchB > o.HBSwitchA, "hb_switch_b must be greater than hb_switch_a"},
		{o.WaterSiteSkin >= 0, "water_site_skin must not be negative"},
		{o.DielIn > 0 && o.DielOut > 0, "dielectric constants must be positive"},
		{o.Workers >= 0, "workers must not be negative"},
		{o.ListLimit >= 0, "list_limit must not be negative"},
	}
	for _, c := range checks {
		if !c.ok {
			return fmt.Errorf("%w: %s", ErrInput, c.msg)
		}
	}
	return nil
}

func (o Options) workers() int {
	if o.Workers > 0 {
		return o.Workers
	}
	return runtime.NumCPU()
}

func (o Options) overlapSwitch() gauss.Switch {
	return gauss.Switch{A: o.MinVolA, B: o.MinVolB}
}

// prefactor is the constant of the generalized Born energy.
func (o Options) prefactor() float64 {
	return o.Coulomb * -0.5 * (1/o.DielIn - 1/o.DielOut)
}
