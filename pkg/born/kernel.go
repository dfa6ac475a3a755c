package born

import "math"

// I4 returns the integral of 1/r^4 over the sphere of radius rj centered at
// distance rij, restricted to the region outside the sphere of radius ri
// centered at the origin, and its derivative with respect to rij.
func I4(rij, ri, rj float64) (q, dq float64) {
	const twoPi = 2 * math.Pi
	rij2 := rij * rij

	if rij > ri+rj {
		u1 := rij + rj
		u2 := rij - rj
		u3 := u1 * u2
		u4 := 0.5 * math.Log(u1/u2)
		q = twoPi * (rj/u3 - u4/rij)
		dq = twoPi * ((rj/(rij*u3))*(1-2*rij2/u3) + u4/rij2)
		return q, dq
	}

	if d := rj - ri; rij2 > d*d {
		// partial overlap of the two spheres
		u1 := rij + rj
		u3 := u1 * (rij - rj)
		u4 := 1 / u1
		u5 := 1 / ri
		u6 := 0.5 * math.Log(u1/ri)
		w := u4*u4 - u5*u5
		q = twoPi * (-(u4 - u5) + (0.25*u3*w-u6)/rij)
		dq = twoPi * (0.5*(1-0.5*u3/rij2)*w + u6/rij2)
		return q, dq
	}

	// the sphere of radius ri is inside the other one, or the reverse
	if ri > rj {
		return 0, 0
	}
	u1 := rij + rj
	u2 := rj - rij
	u3 := -u1 * u2
	if rij < 0.001*rj {
		// series of log((1+a)/(1-a))/2a around a = 0
		a := rij / rj
		ad := a*a - 1
		q = twoPi * (2/ri + rj/u3 - (1+a*a/3)/rj)
		dq = -(2 * twoPi * a / (rj * rj)) * (1/(ad*ad) + 1.0/3)
		return q, dq
	}
	u6 := 0.5 * math.Log(u1/u2)
	q = twoPi * (2/ri + rj/u3 - u6/rij)
	dq = twoPi * (-(rj/u3)*(2*rij/u3-1/rij) + u6/rij2)
	return q, dq
}

// Filter bounds a raw inverse Born radius from below: negative values map to
// floor, others to sqrt(floor^2 + beta^2). It returns the filtered value and
// its derivative.
func Filter(beta, floor float64) (f, fp float64) {
	if beta < 0 {
		return floor, 0
	}
	t := math.Sqrt(floor*floor + beta*beta)
	return t, beta / t
}

// Radius converts a raw inverse Born radius into a Born radius b. fp is the
// derivative of the filter, so that db/dbeta = -b*b*fp.
func Radius(beta, floor float64) (b, fp float64) {
	f, fp := Filter(beta, floor)
	return 1 / f, fp
}

// BRW returns 3b^2/(b+rw)^4, the derivative of the dispersion term
// 1/(b+rw)^3 with respect to the inverse Born radius 1/b.
func BRW(b, rw float64) float64 {
	u := b + rw
	u2 := u * u
	return 3 * b * b / (u2 * u2)
}
