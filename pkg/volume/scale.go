package volume

// AreaFilter squashes a raw surface area x so that the filtered area x*f is
// never negative: f = x^2/(a^2+x^2) for x >= 0 and 0 otherwise. It returns f
// and df/dx.
func AreaFilter(x, a float64) (f, fp float64) {
	if x < 0 {
		return 0, 0
	}
	t := x / (a*a + x*x)
	f = x * t
	return f, 2 * t * (1 - f)
}

// Factors are the per-atom quantities derived from a raw self volume and
// surface area.
type Factors struct {
	// Area is the filtered surface area A*f(A).
	Area float64
	// DArea is d(A*f(A))/dA.
	DArea float64
	// Volume is the self volume minus the solvent shell under the filtered
	// area.
	Volume float64
	// Scale is Volume divided by the volume of the isolated sphere.
	Scale float64
	// Shell is -dVolume/dA.
	Shell float64
}

// Scale derives the factors of an atom with enlarged radius r, van der Waals
// radius rvdw and isolated volume vol0 from its raw self volume and area.
func Scale(volume, area, r, rvdw, vol0, filter float64) Factors {
	f, fp := AreaFilter(area, filter)
	x := rvdw / r
	us := r * (1 - x*x*x) / 3

	var fs Factors
	fs.Area = area * f
	fs.DArea = f + area*fp
	fs.Volume = volume - fs.Area*us
	fs.Scale = fs.Volume / vol0
	fs.Shell = fs.DArea * us
	return fs
}
