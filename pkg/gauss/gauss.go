// Package gauss computes overlap volumes between atomic Gaussian densities.
//
// Each atom of radius r is represented by g(x) = p exp(-a |x-c|^2) with
// a = KFC/r^2 and p = PFC, so that the integral of g equals the volume of the
// sphere. The product of Gaussians is again a Gaussian; Merge folds one more
// atom into the product of the previous ones and returns the filtered overlap
// volume together with its analytic derivatives.
package gauss

import "math"

const (
	// KFC and PFC make the volume of one Gaussian equal to (4/3)πr³.
	KFC = 2.2269859253
	PFC = 2.5

	// MaxOrder bounds the number of atoms in one overlap.
	MaxOrder = 16

	// Tiny is the smallest switched volume that counts as an overlap
	// (FLT_MIN).
	Tiny = 1.17549435e-38
)

// Blob is the Gaussian product of one or more atoms.
type Blob struct {
	A float64    // exponent
	P float64    // prefactor
	C [3]float64 // center
}

// Volume returns the integral of the blob.
func (b Blob) Volume() float64 {
	return b.P * math.Pow(math.Pi/b.A, 1.5)
}

// Sphere is the Gaussian representation of one atom.
type Sphere struct {
	C [3]float64
	R float64
	A float64
	P float64
}

// NewSphere returns the Gaussian of an atom of radius r centered on c.
func NewSphere(c [3]float64, r float64) Sphere {
	return Sphere{C: c, R: r, A: KFC / (r * r), P: PFC}
}

// Blob returns the single atom blob.
func (s Sphere) Blob() Blob {
	return Blob{A: s.A, P: s.P, C: s.C}
}

// PairVolume returns the unfiltered overlap volume of a and b when their
// centers are d2 apart (squared distance).
func PairVolume(a, b Sphere, d2 float64) float64 {
	an := a.A + b.A
	return a.P * b.P * math.Exp(-a.A*b.A*d2/an) * math.Pow(math.Pi/an, 1.5)
}

// Level selects the derivatives computed by Merge.
type Level int

// Derivative levels.
const (
	NoDerivatives Level = iota
	FirstDerivatives
	SecondDerivatives
)

// Switch holds the thresholds of the volume filter (see Vol3).
type Switch struct {
	A, B float64
}

// Sign returns the inclusion-exclusion sign of an overlap of order atoms:
// +1 for odd orders, -1 for even ones.
func Sign(order int) float64 {
	if order%2 == 0 {
		return -1
	}
	return 1
}

// Result is the outcome of Merge. Derivatives are taken with respect to the
// filtered volume and are only defined when Merge returned true.
type Result struct {
	Order  int
	Volume float64 // filtered
	Raw    float64
	Blob   Blob

	// DPos[i] = dV/dc_i, DRad[i] = dV/dR_i.
	DPos [MaxOrder][3]float64
	DRad [MaxOrder]float64

	// DPosRad[m][k] = d2V/(dc_m dR_k).
	DPosRad [MaxOrder][MaxOrder][3]float64
}

// Merge folds spheres[len-1] into prev, the blob of spheres[:len-1], and
// stores the overlap of all the spheres in res. It returns false when the
// filtered volume is negligible; res.Volume is then 0 and the derivatives
// must not be used.
func Merge(spheres []Sphere, prev Blob, sw Switch, level Level, res *Result) bool {
	order := len(spheres)
	s := spheres[order-1]

	an := prev.A + s.A
	var d2 float64
	var cn [3]float64
	for k := 0; k < 3; k++ {
		d := s.C[k] - prev.C[k]
		d2 += d * d
		cn[k] = (prev.A*prev.C[k] + s.A*s.C[k]) / an
	}
	kappa := math.Exp(-prev.A * s.A * d2 / an)
	pn := prev.P * s.P * kappa
	vol := pn * math.Pow(math.Pi/an, 1.5)

	res.Order = order
	res.Raw = vol
	res.Blob = Blob{A: an, P: pn, C: cn}

	volp, fp, fpp := Vol3(vol, sw.A, sw.B)
	if volp < Tiny {
		res.Volume = 0
		return false
	}
	res.Volume = volp

	if level == NoDerivatives {
		return true
	}

	var dr [MaxOrder][3]float64
	var dR [MaxOrder]float64
	for i := 0; i < order; i++ {
		ai := spheres[i].A
		var q2 float64
		for k := 0; k < 3; k++ {
			dx := spheres[i].C[k] - cn[k]
			dr[i][k] = -2 * ai * vol * dx
			q2 += dx * dx
		}
		dR[i] = (3*ai*vol/an + 2*ai*vol*q2) / spheres[i].R
	}

	if level == SecondDerivatives {
		u := fpp + fp/vol
		for m := 0; m < order; m++ {
			for k := 0; k < order; k++ {
				var w float64
				if m == k {
					w = -2 * fp * (1 - spheres[k].A/an) / spheres[k].R
				} else {
					w = 2 * fp * spheres[m].A / (an * spheres[k].R)
				}
				for c := 0; c < 3; c++ {
					res.DPosRad[m][k][c] = u*dR[k]*dr[m][c] + w*dr[k][c]
				}
			}
		}
	}

	for i := 0; i < order; i++ {
		for k := 0; k < 3; k++ {
			res.DPos[i][k] = fp * dr[i][k]
		}
		res.DRad[i] = fp * dR[i]
	}
	return true
}
