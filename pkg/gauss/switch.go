package gauss

// PolSwitch is the quintic switching function: 0 below xa, 1 above xb and a
// C2 blend in between. It returns the value with its first and second
// derivatives.
func PolSwitch(x, xa, xb float64) (f, fp, fpp float64) {
	if x > xb {
		return 1, 0, 0
	}
	if x < xa {
		return 0, 0, 0
	}

	d := 1 / (xb - xa)
	u := (x - xa) * d
	u2 := u * u
	u3 := u * u2
	f = u3 * (10 - 15*u + 6*u2)
	fp = 30 * d * u2 * (1 - 2*u + u2)
	fpp = 60 * d * d * u * (1 - 3*u + 2*u2)
	return f, fp, fpp
}

// Vol3 filters a raw overlap volume: it returns 0 below a, x above b and
// x*PolSwitch(x, a, b) in between, with first and second derivatives.
func Vol3(x, a, b float64) (f, fp, fpp float64) {
	if x > b {
		return x, 1, 0
	}
	if x < a {
		return 0, 0, 0
	}
	s, sp, spp := PolSwitch(x, a, b)
	return s * x, s + x*sp, 2*sp + x*spp
}
