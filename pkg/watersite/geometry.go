package watersite

import "gonum.org/v1/gonum/spatial/r3"

// mat3 is a 3x3 Jacobian: m[i][j] = d out_i / d in_j.
type mat3 [3][3]float64

func eye() mat3 {
	return mat3{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
}

func (m mat3) mul(n mat3) mat3 {
	var o mat3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			for k := 0; k < 3; k++ {
				o[i][j] += m[i][k] * n[k][j]
			}
		}
	}
	return o
}

func (m mat3) add(n mat3) mat3 {
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			m[i][j] += n[i][j]
		}
	}
	return m
}

func (m mat3) scale(f float64) mat3 {
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			m[i][j] *= f
		}
	}
	return m
}

func outer(a, b r3.Vec) mat3 {
	x, y := arr(a), arr(b)
	var o mat3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			o[i][j] = x[i] * y[j]
		}
	}
	return o
}

// skew returns the matrix of w -> v x w.
func skew(v r3.Vec) mat3 {
	return mat3{
		{0, -v.Z, v.Y},
		{v.Z, 0, -v.X},
		{-v.Y, v.X, 0},
	}
}

// unit returns v/|v| and its Jacobian (I - u u^T)/|v|.
func unit(v r3.Vec) (r3.Vec, mat3) {
	n := r3.Norm(v)
	u := r3.Scale(1/n, v)
	return u, eye().add(outer(u, u).scale(-1)).scale(1 / n)
}

func vec(a [3]float64) r3.Vec { return r3.Vec{X: a[0], Y: a[1], Z: a[2]} }

func arr(v r3.Vec) [3]float64 { return [3]float64{v.X, v.Y, v.Z} }

// placed is a site position with the Jacobians with respect to its parents.
type placed struct {
	pos     r3.Vec
	parents []int
	jac     []mat3
}

// hydrogen places a site at distance l from donor d along the d-h bond.
func hydrogen(x func(int) r3.Vec, h, d int, l float64) placed {
	u, j := unit(r3.Sub(x(h), x(d)))
	jh := j.scale(l)
	return placed{
		pos:     r3.Add(x(d), r3.Scale(l, u)),
		parents: []int{h, d},
		jac:     []mat3{jh, eye().add(jh.scale(-1))},
	}
}

// along places a site at distance l from a, antiparallel to the r-rk bond.
func along(x func(int) r3.Vec, a, r, rk int, l float64) placed {
	u, j := unit(r3.Sub(x(rk), x(r)))
	jr := j.scale(l)
	return placed{
		pos:     r3.Sub(x(a), r3.Scale(l, u)),
		parents: []int{a, r, rk},
		jac:     []mat3{eye(), jr, jr.scale(-1)},
	}
}

// outOfPlane places two sites at 60 degrees from the r-a bond, above and
// below the plane of r1, r and a.
func outOfPlane(x func(int) r3.Vec, a, r, r1 int, l float64) [2]placed {
	const cos, sin = 0.5, 0.866025

	v := r3.Sub(x(a), x(r))
	p := r3.Sub(x(r1), x(r))
	uin, jin := unit(v)
	uout, jout := unit(r3.Cross(p, v))

	var out [2]placed
	for k, s := range [2]float64{sin, -sin} {
		ja := eye().add(jin.scale(l * cos)).add(jout.mul(skew(p)).scale(l * s))
		jr1 := jout.mul(skew(v)).scale(-l * s)
		jr := jin.scale(-l * cos).add(jout.mul(skew(v).add(skew(p).scale(-1))).scale(l * s))
		out[k] = placed{
			pos:     r3.Add(x(a), r3.Add(r3.Scale(l*cos, uin), r3.Scale(l*s, uout))),
			parents: []int{a, r, r1},
			jac:     []mat3{ja, jr, jr1},
		}
	}
	return out
}

// normal places two sites on the normal of the plane of r1, r2 and r3, at
// distance l on either side of a.
func normal(x func(int) r3.Vec, a, r1, r2, r3i int, l float64) [2]placed {
	va := r3.Sub(x(r3i), x(r1))
	vb := r3.Sub(x(r2), x(r1))
	nu, jn := unit(r3.Cross(va, vb))

	d3 := jn.mul(skew(vb).scale(-1))
	d2 := jn.mul(skew(va))
	d1 := jn.mul(skew(vb).add(skew(va).scale(-1)))

	var out [2]placed
	for k, s := range [2]float64{l, -l} {
		out[k] = placed{
			pos:     r3.Add(x(a), r3.Scale(s, nu)),
			parents: []int{a, r1, r2, r3i},
			jac:     []mat3{eye(), d1.scale(s), d2.scale(s), d3.scale(s)},
		}
	}
	return out
}

// bisector places a site at distance l from a opposite to the sum of the unit
// bond vectors from a to rs.
func bisector(x func(int) r3.Vec, a int, rs []int, l float64) placed {
	var sum r3.Vec
	jb := make([]mat3, len(rs))
	for k, r := range rs {
		u, j := unit(r3.Sub(x(r), x(a)))
		sum = r3.Add(sum, u)
		jb[k] = j
	}
	u, ju := unit(sum)

	p := placed{
		pos:     r3.Sub(x(a), r3.Scale(l, u)),
		parents: append([]int{a}, rs...),
		jac:     make([]mat3, len(rs)+1),
	}
	ja := eye()
	for k := range rs {
		jk := ju.mul(jb[k]).scale(-l)
		p.jac[k+1] = jk
		ja = ja.add(jk.scale(-1))
	}
	p.jac[0] = ja
	return p
}

// tetrahedral places the two lone-pair sites of an sp3 atom a bonded to r1
// and r2.
func tetrahedral(x func(int) r3.Vec, a, r1, r2 int, l float64) [2]placed {
	const cos, sin = -0.577350269, 0.816496581

	v1 := r3.Sub(x(r1), x(a))
	v2 := r3.Sub(x(r2), x(a))
	d1, j1 := unit(v1)
	d2, j2 := unit(v2)
	uin, jin := unit(r3.Add(d1, d2))
	uout, jout := unit(r3.Cross(v2, v1))

	var out [2]placed
	for k, s := range [2]float64{sin, -sin} {
		jr1 := jin.mul(j1).scale(l * cos).add(jout.mul(skew(v2)).scale(l * s))
		jr2 := jin.mul(j2).scale(l * cos).add(jout.mul(skew(v1)).scale(-l * s))
		ja := eye().add(jr1.scale(-1)).add(jr2.scale(-1))
		out[k] = placed{
			pos:     r3.Add(x(a), r3.Add(r3.Scale(l*cos, uin), r3.Scale(l*s, uout))),
			parents: []int{a, r1, r2},
			jac:     []mat3{ja, jr1, jr2},
		}
	}
	return out
}
