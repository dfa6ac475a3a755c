package gauss

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var noSwitch = Switch{A: 0, B: 0}

// chain merges all the spheres in order and returns the final result.
func chain(t *testing.T, spheres []Sphere, sw Switch, level Level) Result {
	t.Helper()
	var res Result
	blob := spheres[0].Blob()
	for n := 2; n <= len(spheres); n++ {
		require.True(t, Merge(spheres[:n], blob, sw, level, &res), "order %d", n)
		blob = res.Blob
	}
	return res
}

func TestSingleSphereVolume(t *testing.T) {
	for _, r := range []float64{1.0, 1.5, 2.0, 2.35} {
		s := NewSphere([3]float64{1, -2, 0.5}, r)
		assert.InEpsilon(t, 4*math.Pi*r*r*r/3, s.Blob().Volume(), 1e-9, "r=%g", r)
	}
}

func TestCoincidentPair(t *testing.T) {
	s := NewSphere([3]float64{0.3, 0.1, -0.2}, 1.7)
	var res Result
	require.True(t, Merge([]Sphere{s, s}, s.Blob(), noSwitch, NoDerivatives, &res))

	single := s.Blob().Volume()
	assert.InEpsilon(t, single*PFC/math.Pow(2, 1.5), res.Raw, 1e-12)
	assert.Equal(t, res.Raw, res.Volume)
	assert.InDelta(t, 2*s.A, res.Blob.A, 1e-12)
	for k := 0; k < 3; k++ {
		assert.InDelta(t, s.C[k], res.Blob.C[k], 1e-12)
	}
}

func TestNegligibleOverlap(t *testing.T) {
	a := NewSphere([3]float64{0, 0, 0}, 1.5)
	b := NewSphere([3]float64{12, 0, 0}, 1.5)
	var res Result
	assert.False(t, Merge([]Sphere{a, b}, a.Blob(), Switch{A: 0.01, B: 0.1}, FirstDerivatives, &res))
	assert.Zero(t, res.Volume)
	assert.Greater(t, res.Raw, 0.0)
}

func TestPairVolume(t *testing.T) {
	a := NewSphere([3]float64{0, 0, 0}, 1.5)
	b := NewSphere([3]float64{2.2, 0.3, 0}, 1.8)
	var res Result
	require.True(t, Merge([]Sphere{a, b}, a.Blob(), noSwitch, NoDerivatives, &res))
	assert.InDelta(t, res.Raw, PairVolume(a, b, 2.2*2.2+0.3*0.3), 1e-12)
	assert.Greater(t, PairVolume(a, b, 1), PairVolume(a, b, 4))
}

func TestSign(t *testing.T) {
	assert.Equal(t, 1.0, Sign(1))
	assert.Equal(t, -1.0, Sign(2))
	assert.Equal(t, 1.0, Sign(3))
	assert.Equal(t, -1.0, Sign(4))
}

func testSpheres() []Sphere {
	return []Sphere{
		NewSphere([3]float64{0, 0, 0}, 1.9),
		NewSphere([3]float64{1.6, 0.4, -0.2}, 2.1),
		NewSphere([3]float64{0.7, 1.5, 0.6}, 1.7),
	}
}

func checkDerivatives(t *testing.T, sw Switch) {
	spheres := testSpheres()
	res := chain(t, spheres, sw, SecondDerivatives)

	const h = 1e-6
	volume := func(s []Sphere) Result { return chain(t, s, sw, SecondDerivatives) }

	for i := range spheres {
		for k := 0; k < 3; k++ {
			p := append([]Sphere(nil), spheres...)
			m := append([]Sphere(nil), spheres...)
			p[i].C[k] += h
			m[i].C[k] -= h
			rp, rm := volume(p), volume(m)

			fd := (rp.Volume - rm.Volume) / (2 * h)
			assert.InDelta(t, fd, res.DPos[i][k], 1e-6, "dV/dc[%d][%d]", i, k)

			for j := range spheres {
				fd := (rp.DRad[j] - rm.DRad[j]) / (2 * h)
				assert.InDelta(t, fd, res.DPosRad[i][j][k], 1e-5, "d2V/dc[%d][%d]dR[%d]", i, k, j)
			}
		}

		p := append([]Sphere(nil), spheres...)
		m := append([]Sphere(nil), spheres...)
		p[i] = NewSphere(p[i].C, p[i].R+h)
		m[i] = NewSphere(m[i].C, m[i].R-h)
		fd := (volume(p).Volume - volume(m).Volume) / (2 * h)
		assert.InDelta(t, fd, res.DRad[i], 1e-6, "dV/dR[%d]", i)
	}
}

func TestDerivativesUnswitched(t *testing.T) {
	checkDerivatives(t, noSwitch)
}

func TestDerivativesInSwitchRegion(t *testing.T) {
	raw := chain(t, testSpheres(), noSwitch, NoDerivatives).Raw
	sw := Switch{A: 0.5 * raw, B: 2 * raw}
	res := chain(t, testSpheres(), sw, NoDerivatives)
	require.Less(t, res.Volume, res.Raw)
	checkDerivatives(t, sw)
}

func TestTranslationInvariance(t *testing.T) {
	res := chain(t, testSpheres(), noSwitch, SecondDerivatives)
	var sum [3]float64
	for i := 0; i < 3; i++ {
		for k := 0; k < 3; k++ {
			sum[k] += res.DPos[i][k]
		}
	}
	for k := 0; k < 3; k++ {
		assert.InDelta(t, 0, sum[k], 1e-12)
	}
}

func TestWalkerOrder(t *testing.T) {
	spheres := testSpheres()
	far := NewSphere([3]float64{30, 0, 0}, 1.5)
	all := append(spheres, far)

	type visit struct {
		members []int
		volume  float64
	}
	var got []visit
	w := Walker{Switch: Switch{A: 0.01, B: 0.1}, Level: FirstDerivatives}
	w.Walk(0, all[0], []int{1, 3, 2}, func(id int) Sphere { return all[id] }, func(m []int, r *Result) {
		got = append(got, visit{append([]int(nil), m...), r.Volume})
	})

	require.Len(t, got, 3)
	assert.Equal(t, []int{0, 1}, got[0].members)
	assert.Equal(t, []int{0, 1, 2}, got[1].members)
	assert.Equal(t, []int{0, 2}, got[2].members)

	want := chain(t, spheres, Switch{A: 0.01, B: 0.1}, NoDerivatives).Volume
	assert.InDelta(t, want, got[1].volume, 1e-12)
}

func TestWalkerDepthCap(t *testing.T) {
	var spheres []Sphere
	var cands []int
	for i := 0; i < 6; i++ {
		spheres = append(spheres, NewSphere([3]float64{0.1 * float64(i), 0, 0}, 2))
		if i > 0 {
			cands = append(cands, i)
		}
	}

	count := func(limit int) (n, deepest int) {
		w := Walker{Switch: noSwitch, MaxOrder: limit}
		w.Walk(0, spheres[0], cands, func(id int) Sphere { return spheres[id] }, func(m []int, _ *Result) {
			n++
			if len(m) > deepest {
				deepest = len(m)
			}
		})
		return n, deepest
	}

	n, deepest := count(0)
	assert.Equal(t, 31, n) // all non-empty subsets of 5 candidates
	assert.Equal(t, 6, deepest)

	n, deepest = count(3)
	assert.Equal(t, 5+10, n)
	assert.Equal(t, 3, deepest)
}

func TestSwitchFunctions(t *testing.T) {
	const xa, xb = 0.2, 0.7
	f, fp, _ := PolSwitch(xa, xa, xb)
	assert.Zero(t, f)
	assert.Zero(t, fp)
	f, fp, _ = PolSwitch(xb, xa, xb)
	assert.InDelta(t, 1, f, 1e-12)
	assert.InDelta(t, 0, fp, 1e-12)

	const h = 1e-7
	for x := xa + 0.01; x < xb; x += 0.05 {
		fph, fpph, _ := PolSwitch(x+h, xa, xb)
		fmh, fpmh, _ := PolSwitch(x-h, xa, xb)
		_, fp, fpp := PolSwitch(x, xa, xb)
		assert.InDelta(t, (fph-fmh)/(2*h), fp, 1e-6)
		assert.InDelta(t, (fpph-fpmh)/(2*h), fpp, 1e-5)
	}

	v, vp, _ := Vol3(0.05, 0.1, 0.2)
	assert.Zero(t, v)
	assert.Zero(t, vp)
	v, vp, _ = Vol3(3, 0.1, 0.2)
	assert.Equal(t, 3.0, v)
	assert.Equal(t, 1.0, vp)
	v, _, _ = Vol3(0.2, 0.1, 0.2)
	assert.InDelta(t, 0.2, v, 1e-12)
}
