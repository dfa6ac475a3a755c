package agbnp

import (
	"context"
	"math"
	"testing"

	"github.com/kpotier/agbnp/pkg/metrics"
	"github.com/kpotier/agbnp/pkg/nblist"
	"github.com/kpotier/agbnp/pkg/watersite"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// formamide returns an N-methylformamide: a carbonyl oxygen carrying two
// sp2 sites and a polar hydrogen on the nitrogen.
func formamide() ([]Atom, Connectivity, [][3]float64) {
	heavy := func(r, q, khb float64, typ watersite.Type) Atom {
		return Atom{
			Radius: r, Charge: q,
			Alpha: -0.06, AlphaCorr: -0.01,
			Gamma: 0.12, GammaCorr: 0.01,
			Delta: 0.2, DeltaCorr: -0.05,
			HBType: typ, HBCorr: khb,
			Heavy: true,
		}
	}
	hydrogen := func(q, khb float64, typ watersite.Type) Atom {
		return Atom{Radius: 1.15, Charge: q, Alpha: -0.02, Delta: 0.05, HBType: typ, HBCorr: khb}
	}

	atoms := []Atom{
		heavy(1.7, 0.5, 0, watersite.Inactive),
		heavy(1.5, -0.5, -0.6, watersite.Trigonal),
		heavy(1.6, -0.4, 0, watersite.Inactive),
		hydrogen(0.1, 0, watersite.Inactive),
		hydrogen(0.3, -0.4, watersite.PolarH),
		heavy(1.7, 0, 0, watersite.Inactive),
	}
	conn := Connectivity{{1, 2, 3}, {0}, {0, 4, 5}, {0}, {2}, {2}}
	pos := [][3]float64{
		{0, 0, 0},
		{1.23, 0.02, 0.01},
		{-0.68, 1.19, -0.03},
		{-0.55, -0.96, 0.02},
		{-0.18, 2.06, 0.08},
		{-2.13, 1.27, 0.11},
	}
	return atoms, conn, pos
}

func testOptions(workers int) Options {
	o := DefaultOptions()
	o.Workers = workers
	o.HBSwitchA = 0.05
	o.HBSwitchB = 1.0
	return o
}

func newStructure(t *testing.T, atoms []Atom, conn Connectivity, opts Options) *Structure {
	s, err := New(atoms, conn, opts, zaptest.NewLogger(t))
	require.NoError(t, err)
	return s
}

func clonePos(pos [][3]float64) [][3]float64 {
	return append([][3]float64(nil), pos...)
}

func TestTwoAtoms(t *testing.T) {
	for _, q := range []float64{0, 0.5} {
		a := Atom{Radius: 1.5, Charge: q, Alpha: -0.05, Gamma: 0.1, Heavy: true}
		b := a
		b.Charge = -q
		s := newStructure(t, []Atom{a, b}, Connectivity{nil, nil}, testOptions(1))

		res, err := s.Evaluate(context.Background(), [][3]float64{{0, 0, 0}, {3, 0, 0}})
		require.NoError(t, err)

		for i := 0; i < 2; i++ {
			assert.Less(t, res.ScaledVolume[i], 1.0)
			assert.Greater(t, res.ScaledVolume[i], 0.0)
			assert.False(t, math.IsInf(res.BornRadius[i], 0))
			// descreening makes the radius larger than the van der Waals one
			assert.Greater(t, res.BornRadius[i], 1.5)
		}
		assert.InDelta(t, res.BornRadius[0], res.BornRadius[1], 1e-12)
		assert.Greater(t, res.Cavity, 0.0)
		assert.Empty(t, res.FreeVolume)
		if q == 0 {
			assert.Zero(t, res.GB)
		} else {
			assert.Less(t, res.GB, 0.0)
		}

		g := res.Gradient()
		for k := 0; k < 3; k++ {
			assert.InDelta(t, 0, g[0][k]+g[1][k], 1e-10, "charge %g", q)
		}
		assert.NotZero(t, g[0][0], "charge %g", q)
	}
}

// TestGradient compares the analytic gradient of the total energy with
// central differences.
func TestGradient(t *testing.T) {
	atoms, conn, pos := formamide()
	s := newStructure(t, atoms, conn, testOptions(2))

	res, err := s.Evaluate(context.Background(), pos)
	require.NoError(t, err)
	require.Len(t, s.Sites(), 3)
	assert.NotZero(t, res.HB)
	grad := res.Gradient()

	energy := func(p [][3]float64) float64 {
		r, err := s.Evaluate(context.Background(), p)
		require.NoError(t, err)
		return r.Total()
	}

	const h = 1e-5
	var total [3]float64
	for a := range pos {
		for k := 0; k < 3; k++ {
			up, down := clonePos(pos), clonePos(pos)
			up[a][k] += h
			down[a][k] -= h
			fd := (energy(up) - energy(down)) / (2 * h)
			assert.InDelta(t, fd, grad[a][k], 1e-4*math.Max(1, math.Abs(fd)), "atom %d coord %d", a, k)
			total[k] += grad[a][k]
		}
	}
	for k := 0; k < 3; k++ {
		assert.InDelta(t, 0, total[k], 1e-8)
	}
}

func TestEvaluateIdempotent(t *testing.T) {
	atoms, conn, pos := formamide()
	s := newStructure(t, atoms, conn, testOptions(2))

	first, err := s.Evaluate(context.Background(), pos)
	require.NoError(t, err)
	second, err := s.Evaluate(context.Background(), pos)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestWorkerIndependence(t *testing.T) {
	atoms, conn, pos := formamide()
	ref, err := newStructure(t, atoms, conn, testOptions(1)).Evaluate(context.Background(), pos)
	require.NoError(t, err)

	for _, nw := range []int{2, 3, 7} {
		res, err := newStructure(t, atoms, conn, testOptions(nw)).Evaluate(context.Background(), pos)
		require.NoError(t, err)

		assert.InDelta(t, ref.Total(), res.Total(), 1e-10, "workers %d", nw)
		assert.InDelta(t, ref.MolVolume, res.MolVolume, 1e-10, "workers %d", nw)
		assert.InDeltaSlice(t, ref.BornRadius, res.BornRadius, 1e-10, "workers %d", nw)
		assert.InDeltaSlice(t, ref.FreeVolume, res.FreeVolume, 1e-10, "workers %d", nw)
		rg, g := ref.Gradient(), res.Gradient()
		for i := range g {
			assert.InDeltaSlice(t, rg[i][:], g[i][:], 1e-9, "workers %d atom %d", nw, i)
		}
	}
}

func TestFrozen(t *testing.T) {
	atoms, conn, pos := formamide()
	ref, err := newStructure(t, atoms, conn, testOptions(1)).Evaluate(context.Background(), pos)
	require.NoError(t, err)

	atoms[0].Frozen = true
	atoms[1].Frozen = true
	res, err := newStructure(t, atoms, conn, testOptions(1)).Evaluate(context.Background(), pos)
	require.NoError(t, err)

	assert.Equal(t, ref.Energies, res.Energies)
	rg, g := ref.Gradient(), res.Gradient()
	assert.Equal(t, [3]float64{}, g[0])
	assert.Equal(t, [3]float64{}, g[1])
	for i := 2; i < len(g); i++ {
		assert.InDeltaSlice(t, rg[i][:], g[i][:], 1e-9, "atom %d", i)
	}
}

func TestEvaluateErrors(t *testing.T) {
	atoms, conn, pos := formamide()
	ctx := context.Background()

	t.Run("positions", func(t *testing.T) {
		s := newStructure(t, atoms, conn, testOptions(1))
		_, err := s.Evaluate(ctx, pos[:3])
		assert.ErrorIs(t, err, ErrInput)

		bad := clonePos(pos)
		bad[2][1] = math.NaN()
		_, err = s.Evaluate(ctx, bad)
		assert.ErrorIs(t, err, ErrInput)
	})

	t.Run("topology", func(t *testing.T) {
		a := append([]Atom(nil), atoms...)
		a[1].HBType = watersite.TrigonalOOP
		s := newStructure(t, a, conn, testOptions(2))
		res, err := s.Evaluate(ctx, pos)
		assert.ErrorIs(t, err, watersite.ErrTopology)
		assert.Nil(t, res)
	})

	t.Run("capacity", func(t *testing.T) {
		o := testOptions(1)
		o.ListLimit = 1
		s := newStructure(t, atoms, conn, o)
		_, err := s.Evaluate(ctx, pos)
		assert.ErrorIs(t, err, nblist.ErrCapacity)
	})

	t.Run("cancelled", func(t *testing.T) {
		s := newStructure(t, atoms, conn, testOptions(2))
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := s.Evaluate(cctx, pos)
		assert.ErrorIs(t, err, context.Canceled)

		// the structure is still usable
		_, err = s.Evaluate(ctx, pos)
		assert.NoError(t, err)
	})
}

func TestNewErrors(t *testing.T) {
	atoms, conn, _ := formamide()
	log := zaptest.NewLogger(t)

	_, err := New(nil, nil, DefaultOptions(), log)
	assert.ErrorIs(t, err, ErrInput)

	_, err = New(atoms, conn[:2], DefaultOptions(), log)
	assert.ErrorIs(t, err, ErrInput)

	_, err = New([]Atom{{Radius: 1.1}}, Connectivity{nil}, DefaultOptions(), log)
	assert.ErrorIs(t, err, ErrInput)

	bad := append([]Atom(nil), atoms...)
	bad[2].Radius = 0
	_, err = New(bad, conn, DefaultOptions(), log)
	assert.ErrorIs(t, err, ErrInput)

	o := DefaultOptions()
	o.HBSwitchB = o.HBSwitchA
	_, err = New(atoms, conn, o, log)
	assert.ErrorIs(t, err, ErrInput)
}

func TestInstrument(t *testing.T) {
	atoms, conn, pos := formamide()
	s := newStructure(t, atoms, conn, testOptions(2))
	m, err := metrics.New()
	require.NoError(t, err)
	s.Instrument(m)

	_, err = s.Evaluate(context.Background(), pos)
	require.NoError(t, err)
	_, err = s.Evaluate(context.Background(), pos[:1])
	require.Error(t, err)

	n, err := testutil.GatherAndCount(m.Registry(), "agbnp_stage_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, len(s.stages), n)

	n, err = testutil.GatherAndCount(m.Registry(), "agbnp_water_site_list_rebuilds_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
