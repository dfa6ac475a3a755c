package agbnp

import "gonum.org/v1/gonum/floats"

// Energies holds the components of the solvation energy.
type Energies struct {
	GB               float64 `toml:"gb"`
	VdW              float64 `toml:"vdw"`
	VdWCorrection    float64 `toml:"vdw_correction"`
	Cavity           float64 `toml:"cavity"`
	CavityCorrection float64 `toml:"cavity_correction"`
	HB               float64 `toml:"hb"`
}

// Total returns the sum of the components.
func (e Energies) Total() float64 {
	return floats.Sum([]float64{e.GB, e.VdW, e.VdWCorrection, e.Cavity, e.CavityCorrection, e.HB})
}

// Result is the outcome of one evaluation. The per-atom slices have one
// entry per atom; hydrogens have zero volumes and areas.
type Result struct {
	Energies

	// MolVolume is the sum of the corrected self volumes.
	MolVolume float64

	BornRadius   []float64
	ScaledVolume []float64 // self volume over isolated volume
	SelfVolume   []float64
	SurfaceArea  []float64
	FilteredArea []float64

	// FreeVolume has one entry per water site, in the order of
	// Structure.Sites.
	FreeVolume []float64

	// Gradients of the components. The gradient of the correction terms
	// is included in DVWDR and DECAV.
	DGBDR [][3]float64
	DVWDR [][3]float64
	DECAV [][3]float64
	DEHB  [][3]float64
}

func newResult(n int) *Result {
	return &Result{
		BornRadius:   make([]float64, n),
		ScaledVolume: make([]float64, n),
		SelfVolume:   make([]float64, n),
		SurfaceArea:  make([]float64, n),
		FilteredArea: make([]float64, n),
		DGBDR:        make([][3]float64, n),
		DVWDR:        make([][3]float64, n),
		DECAV:        make([][3]float64, n),
		DEHB:         make([][3]float64, n),
	}
}

// Gradient returns the gradient of the total energy.
func (r *Result) Gradient() [][3]float64 {
	g := make([][3]float64, len(r.DGBDR))
	for _, c := range [][][3]float64{r.DGBDR, r.DVWDR, r.DECAV, r.DEHB} {
		addVec(g, c)
	}
	return g
}

func addVec(dst, src [][3]float64) {
	for i := range src {
		for k := 0; k < 3; k++ {
			dst[i][k] += src[i][k]
		}
	}
}
