package agbnp

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/kpotier/agbnp/pkg/born"
	"github.com/kpotier/agbnp/pkg/gauss"
	"github.com/kpotier/agbnp/pkg/parallel"
	"github.com/kpotier/agbnp/pkg/util"
	"github.com/kpotier/agbnp/pkg/volume"
	"github.com/kpotier/agbnp/pkg/watersite"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
)

// Evaluate computes the energies and gradients at the given positions. On
// error no partial result is returned and the next call starts from
// scratch.
func (s *Structure) Evaluate(ctx context.Context, positions [][3]float64) (*Result, error) {
	if len(positions) != s.n {
		return nil, fmt.Errorf("%w: %d positions for %d atoms", ErrInput, len(positions), s.n)
	}
	for i, p := range positions {
		for _, x := range p {
			if math.IsNaN(x) || math.IsInf(x, 0) {
				return nil, fmt.Errorf("%w: atom %d: position %v", ErrInput, i, p)
			}
		}
	}
	copy(s.pos, positions)

	start := time.Now()
	err := s.team.Run(ctx, s.stages)
	if s.metrics != nil {
		s.metrics.Evaluation(err)
	}
	res := s.res
	s.res = nil
	if err != nil {
		s.log.Warn("evaluation failed", zap.Error(err))
		return nil, fmt.Errorf("Run: %w", err)
	}

	s.log.Debug("evaluation done",
		zap.Duration("elapsed", time.Since(start)),
		zap.Float64("egb", res.GB),
		zap.Float64("evdw", res.VdW+res.VdWCorrection),
		zap.Float64("ecav", res.Cavity+res.CavityCorrection),
		zap.Float64("ehb", res.HB),
		zap.Int("sites", len(s.sites)),
	)
	return res, nil
}

// stageList returns the evaluation pipeline. Run functions write to worker
// buffers only; Merge functions fold them into the master state in worker
// order.
func (s *Structure) stageList() []parallel.Stage {
	run := func(f func(w *worker) error) func(context.Context, int) error {
		return func(_ context.Context, id int) error { return f(s.workers[id]) }
	}
	merge := func(f func() error) func(context.Context) error {
		return func(context.Context) error { return f() }
	}
	noErr := func(f func(w *worker)) func(context.Context, int) error {
		return run(func(w *worker) error { f(w); return nil })
	}

	return []parallel.Stage{
		{Name: "reset", Run: noErr(s.resetWorker), Merge: merge(s.reset)},
		{Name: "neighbor_lists", Run: run(s.neighborLists), Merge: merge(s.countLists)},
		{Name: "self_volumes", Run: noErr(s.selfVolumes), Merge: merge(s.mergeSelfVolumes)},
		{Name: "scaling_factors", Merge: merge(s.scalingFactors)},
		{Name: "born_radii", Run: run(s.inverseBornRadii), Merge: merge(s.bornRadii)},
		{Name: "gb_vdw_energy", Run: noErr(s.gbEnergy), Merge: merge(s.energies)},
		{Name: "gb_derivs_const_vp", Run: run(s.bornGradient)},
		{Name: "water_sites", Merge: merge(s.waterSites)},
		{Name: "hb_energy", Run: noErr(s.hbEnergy), Merge: merge(s.mergeHB)},
		{Name: "uv_derivatives", Run: run(s.sensitivities), Merge: merge(s.volumeCoefficients)},
		{Name: "vp_derivatives", Run: noErr(s.volumeGradient)},
		{Name: "cavity_derivatives", Run: noErr(s.areaGradient)},
		{Name: "reduce", Merge: merge(s.reduce)},
	}
}

func (s *Structure) resetWorker(w *worker) {
	for _, v := range [][]float64{w.selfVol, w.area, w.br1, w.dEdB, w.outGB, w.outVW} {
		floats.Scale(0, v)
	}
	for _, g := range [][][3]float64{w.dgb, w.dvw, w.dcav, w.dhb} {
		for i := range g {
			g[i] = [3]float64{}
		}
	}
	w.egb, w.ehb = 0, 0
}

func (s *Structure) reset() error {
	for i := 0; i < s.n; i++ {
		s.selfVol[i], s.area[i] = s.vol0[i], s.area0[i]
		s.br1[i] = 1 / s.vdw[i]
		if s.heavy[i] {
			s.spheres[i] = gauss.NewSphere(s.pos[i], s.radius[i])
		}
	}
	s.res = newResult(s.n)
	return nil
}

func (s *Structure) neighborLists(w *worker) error {
	if err := w.builder.Build(s.pos, w.roots, w.near, w.far); err != nil {
		return fmt.Errorf("Build: %w", err)
	}
	return nil
}

func (s *Structure) countLists() error {
	if s.metrics == nil {
		return nil
	}
	var near, far int
	for _, w := range s.workers {
		near += w.near.Len()
		far += w.far.Len()
	}
	s.metrics.ListEntries(near, far)
	return nil
}

func (s *Structure) selfVolumes(w *worker) {
	for _, p := range w.roots {
		w.vol.SelfVolumes(s.heavyIdx[p], w.near, w.selfVol, w.area)
	}
}

func (s *Structure) mergeSelfVolumes() error {
	for _, w := range s.workers {
		floats.Add(s.selfVol, w.selfVol)
		floats.Add(s.area, w.area)
	}
	return nil
}

// scalingFactors turns the self volumes and areas into the descreening
// scale factors and the cavity energy.
func (s *Structure) scalingFactors() error {
	res := s.res
	for _, i := range s.heavyIdx {
		f := volume.Scale(s.selfVol[i], s.area[i], s.radius[i], s.vdw[i], s.vol0[i], s.opts.AreaFilter)
		s.factors[i] = f
		s.sp[i] = f.Scale
		s.gammap[i] = s.gamma[i] * f.DArea

		a := s.atoms[i]
		res.Cavity += a.Gamma * f.Area
		res.CavityCorrection += a.GammaCorr * f.Area
		res.MolVolume += f.Volume

		res.ScaledVolume[i] = f.Scale
		res.SelfVolume[i] = f.Volume
		res.SurfaceArea[i] = s.area[i]
		res.FilteredArea[i] = f.Area
	}
	return nil
}

func (s *Structure) inverseBornRadii(w *worker) error {
	w.cache.Reset()
	for _, p := range w.roots {
		if err := w.born.Descreen(s.heavyIdx[p], w.near, w.far, s.sp, w.br1, &w.cache); err != nil {
			return fmt.Errorf("Descreen: %w", err)
		}
	}
	return nil
}

func (s *Structure) bornRadii() error {
	for _, w := range s.workers {
		floats.Add(s.br1, w.br1)
	}
	rw := s.opts.SolventRadius
	for i := 0; i < s.n; i++ {
		s.br[i], s.dbr[i] = born.Radius(s.br1[i], s.opts.InvBornFloor)
		s.brw[i] = born.BRW(s.br[i], rw)
		s.res.BornRadius[i] = s.br[i]
	}
	return nil
}

// energies folds the generalized Born terms and computes the dispersion
// energy. It leaves the derivatives of both with respect to the inverse
// Born radii in coefGB and coefVW.
func (s *Structure) energies() error {
	res := s.res
	floats.Scale(0, s.dEdB)
	for _, w := range s.workers {
		res.GB += w.egb
		floats.Add(s.dEdB, w.dEdB)
	}

	rw := s.opts.SolventRadius
	for i, a := range s.atoms {
		b := s.br[i]
		s.coefGB[i] = -s.dEdB[i] * b * b * s.dbr[i]

		x := 1 / util.Pow(b+rw, 3)
		res.VdW += a.Alpha*x + a.Delta
		res.VdWCorrection += a.AlphaCorr*x + a.DeltaCorr
		s.coefVW[i] = s.alpha[i] * s.brw[i] * s.dbr[i]
	}
	return nil
}

func (s *Structure) bornGradient(w *worker) error {
	for _, p := range w.roots {
		w.born.Gradient(s.heavyIdx[p], s.pos, w.near, w.far, s.sp, w.bornTerms, &w.cache)
	}
	if err := w.cache.DerivativesConsumed(); err != nil {
		return fmt.Errorf("%w: %w", ErrCacheReplay, err)
	}
	return nil
}

func (s *Structure) waterSites() error {
	s.sites = s.sites[:0]
	for i, a := range s.atoms {
		if a.HBType == watersite.Inactive {
			continue
		}
		var err error
		s.sites, err = s.placer.Place(i, a.HBType, a.HBCorr, s.pos, s.sites)
		if err != nil {
			return fmt.Errorf("Place: %w", err)
		}
	}

	if s.siteNb.Update(s.sites, s.pos, s.heavyIdx, s.radius) {
		s.log.Debug("water site rows rebuilt", zap.Int("sites", len(s.sites)))
		if s.metrics != nil {
			s.metrics.SiteRebuild()
		}
	}
	return nil
}

func (s *Structure) hbEnergy(w *worker) {
	if cap(w.free) < len(s.sites) {
		w.free = make([]float64, len(s.sites))
	}
	w.free = w.free[:len(s.sites)]
	floats.Scale(0, w.free)

	nw := len(s.workers)
	for k := range s.sites {
		if !parallel.Owns(k, w.id, nw) {
			continue
		}
		free, e := w.sites.Energy(&s.sites[k], s.siteNb.Row(k), w.dhb)
		w.free[k] = free
		w.ehb += e
	}
}

func (s *Structure) mergeHB() error {
	res := s.res
	res.FreeVolume = make([]float64, len(s.sites))
	for _, w := range s.workers {
		res.HB += w.ehb
		floats.Add(res.FreeVolume, w.free)
	}
	return nil
}

func (s *Structure) sensitivities(w *worker) error {
	for _, p := range w.roots {
		w.born.Sensitivities(s.heavyIdx[p], w.near, w.far, w.sens, &w.cache)
	}
	if err := w.cache.ValuesConsumed(); err != nil {
		return fmt.Errorf("%w: %w", ErrCacheReplay, err)
	}
	return nil
}

// volumeCoefficients turns the sensitivities to the scale factors into
// derivatives with respect to the self volumes and the raw areas.
func (s *Structure) volumeCoefficients() error {
	floats.Scale(0, s.outGB)
	floats.Scale(0, s.outVW)
	for _, w := range s.workers {
		floats.Add(s.outGB, w.outGB)
		floats.Add(s.outVW, w.outVW)
	}
	for _, i := range s.heavyIdx {
		shell := s.factors[i].Shell
		s.wGB[i] = s.outGB[i] / s.vol0[i]
		s.wVW[i] = s.outVW[i] / s.vol0[i]
		s.eaGB[i] = -s.wGB[i] * shell
		s.eaVW[i] = -s.wVW[i] * shell
	}
	return nil
}

func (s *Structure) volumeGradient(w *worker) {
	for _, p := range w.roots {
		w.vol.VolumeGradient(s.heavyIdx[p], w.near, w.volTerms)
	}
}

func (s *Structure) areaGradient(w *worker) {
	for _, p := range w.roots {
		w.vol.AreaGradient(s.heavyIdx[p], w.near, w.areaTerms)
	}
}

func (s *Structure) reduce() error {
	res := s.res
	for _, w := range s.workers {
		addVec(res.DGBDR, w.dgb)
		addVec(res.DVWDR, w.dvw)
		addVec(res.DECAV, w.dcav)
		addVec(res.DEHB, w.dhb)
	}
	for i, f := range s.frozen {
		if f {
			res.DGBDR[i] = [3]float64{}
			res.DVWDR[i] = [3]float64{}
			res.DECAV[i] = [3]float64{}
			res.DEHB[i] = [3]float64{}
		}
	}
	return nil
}
