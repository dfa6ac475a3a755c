package volume

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAreaFilter(t *testing.T) {
	const a = 5.0
	f, fp := AreaFilter(0, a)
	assert.Zero(t, f)
	assert.Zero(t, fp)

	f, fp = AreaFilter(-3, a)
	assert.Zero(t, f)
	assert.Zero(t, fp)

	f, _ = AreaFilter(a, a)
	assert.InDelta(t, 0.5, f, 1e-15)

	f, _ = AreaFilter(1e4, a)
	assert.InDelta(t, 1, f, 1e-6)

	const h = 1e-6
	for _, x := range []float64{0.5, 3, 7, 40} {
		_, fp := AreaFilter(x, a)
		up, _ := AreaFilter(x+h, a)
		down, _ := AreaFilter(x-h, a)
		assert.InDelta(t, (up-down)/(2*h), fp, 1e-8, "x=%g", x)
	}
}

func TestScale(t *testing.T) {
	const r, rvdw, filter = 2.0, 1.5, 5.0
	v0, a0 := Sphere(r)

	// isolated atom: the shell between the two radii is removed
	fs := Scale(v0, a0, r, rvdw, v0, filter)
	f, _ := AreaFilter(a0, filter)
	us := (r*r*r - rvdw*rvdw*rvdw) / (3 * r * r)
	assert.InDelta(t, a0*f, fs.Area, 1e-12)
	assert.InDelta(t, v0-a0*f*us, fs.Volume, 1e-12)
	assert.InDelta(t, fs.Volume/v0, fs.Scale, 1e-15)

	// Shell is -dVolume/dA and DArea is dArea/dA
	const h = 1e-6
	up := Scale(v0*0.7, 20+h, r, rvdw, v0, filter)
	down := Scale(v0*0.7, 20-h, r, rvdw, v0, filter)
	mid := Scale(v0*0.7, 20, r, rvdw, v0, filter)
	assert.InDelta(t, -(up.Volume-down.Volume)/(2*h), mid.Shell, 1e-7)
	assert.InDelta(t, (up.Area-down.Area)/(2*h), mid.DArea, 1e-7)

	buried := Scale(v0*0.2, -4, r, rvdw, v0, filter)
	assert.Zero(t, buried.Area)
	assert.InDelta(t, 0.2, buried.Scale, 1e-15)
}
