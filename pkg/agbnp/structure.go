// Package agbnp evaluates the AGBNP3 implicit solvent energy of a molecule
// and its gradient with respect to the atomic positions.
//
// The energy has four parts: the generalized Born electrostatic energy, a
// dispersion (van der Waals) term that depends on the Born radii, a cavity
// term proportional to the solvent accessible surface areas, and a
// hydrogen-bond correction computed from the free volume of hydration sites.
// A Structure is built once for a molecule and evaluated at every step with
// new positions.
package agbnp

import (
	"context"
	"fmt"

	"github.com/kpotier/agbnp/pkg/born"
	"github.com/kpotier/agbnp/pkg/gauss"
	"github.com/kpotier/agbnp/pkg/metrics"
	"github.com/kpotier/agbnp/pkg/nblist"
	"github.com/kpotier/agbnp/pkg/parallel"
	"github.com/kpotier/agbnp/pkg/volume"
	"github.com/kpotier/agbnp/pkg/watersite"

	"go.uber.org/zap"
)

// Structure is a molecule ready to be evaluated. It owns every buffer and
// cache of the evaluation and is not safe for concurrent use.
type Structure struct {
	opts    Options
	log     *zap.Logger
	metrics *metrics.Metrics

	atoms []Atom
	conn  Connectivity
	n     int

	heavyIdx []int
	hydIdx   []int
	heavy    []bool
	frozen   []bool

	vdw    []float64
	radius []float64
	vol0   []float64
	area0  []float64
	alpha  []float64
	gamma  []float64

	tables  *born.Tables
	placer  watersite.Placer
	siteNb  watersite.Neighbors
	team    parallel.Team
	stages  []parallel.Stage
	workers []*worker

	state
}

// state is the master copy of the quantities of one evaluation.
type state struct {
	pos     [][3]float64
	spheres []gauss.Sphere

	selfVol []float64
	area    []float64
	factors []volume.Factors
	sp      []float64
	gammap  []float64

	br1 []float64
	br  []float64
	dbr []float64 // filter derivative
	brw []float64

	dEdB   []float64
	coefGB []float64 // dE/dbeta
	coefVW []float64

	outGB []float64 // dE/ds
	outVW []float64
	wGB   []float64 // dE/dV
	wVW   []float64
	eaGB  []float64 // dE/dA
	eaVW  []float64

	sites []watersite.Site

	res *Result
}

// worker holds the private buffers of one member of the team.
type worker struct {
	id    int
	roots []int // positions in heavyIdx

	builder nblist.Builder
	near    *nblist.List
	far     *nblist.List
	cache   born.PairCache

	vol   *volume.Engine
	born  *born.Engine
	sites *watersite.Engine

	selfVol []float64
	area    []float64
	br1     []float64
	dEdB    []float64
	outGB   []float64
	outVW   []float64
	free    []float64

	egb float64
	ehb float64

	dgb  [][3]float64
	dvw  [][3]float64
	dcav [][3]float64
	dhb  [][3]float64

	bornTerms []born.Term
	sens      []born.Sensitivity
	volTerms  []volume.Term
	areaTerms []volume.Term
}

// New checks the atoms and builds the structure: index sets, radii, kernel
// tables and worker buffers. A nil logger discards the logs.
func New(atoms []Atom, conn Connectivity, opts Options, logger *zap.Logger) (*Structure, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if err := validate(atoms, conn); err != nil {
		return nil, err
	}

	n := len(atoms)
	s := &Structure{
		opts:   opts,
		log:    logger,
		atoms:  append([]Atom(nil), atoms...),
		conn:   conn,
		n:      n,
		heavy:  make([]bool, n),
		frozen: make([]bool, n),
		vdw:    make([]float64, n),
		radius: make([]float64, n),
		vol0:   make([]float64, n),
		area0:  make([]float64, n),
		alpha:  make([]float64, n),
		gamma:  make([]float64, n),
	}

	var descreeners []float64
	for i, a := range atoms {
		s.heavy[i] = a.Heavy
		s.frozen[i] = a.Frozen
		s.vdw[i] = a.Radius
		s.radius[i] = a.Radius + opts.RadiusIncrement
		s.alpha[i] = a.Alpha + a.AlphaCorr
		s.gamma[i] = a.Gamma + a.GammaCorr
		if a.Heavy {
			s.heavyIdx = append(s.heavyIdx, i)
			s.vol0[i], s.area0[i] = volume.Sphere(s.radius[i])
			descreeners = append(descreeners, s.radius[i])
		} else {
			s.hydIdx = append(s.hydIdx, i)
		}
	}
	if len(s.heavyIdx) == 0 {
		return nil, fmt.Errorf("%w: no heavy atoms", ErrInput)
	}

	tables, err := born.NewTables(context.Background(), s.vdw, descreeners, opts.TableSize, opts.TableMaxA)
	if err != nil {
		return nil, fmt.Errorf("NewTables: %w", err)
	}
	s.tables = tables

	s.placer = watersite.Placer{
		Length: opts.HBLength,
		Radius: opts.HBRadius,
		Heavy:  s.heavy,
		Bonds:  conn,
		Logger: logger.Named("watersite"),
	}
	s.siteNb = watersite.Neighbors{Offset: opts.NBOffset, Skin: opts.WaterSiteSkin, MinVol: opts.MinVolA}

	s.allocState()
	nw := opts.workers()
	s.team = parallel.Team{Workers: nw}
	for id := 0; id < nw; id++ {
		s.workers = append(s.workers, s.newWorker(id))
	}
	s.stages = s.stageList()

	logger.Info("structure ready",
		zap.Int("atoms", n),
		zap.Int("heavy", len(s.heavyIdx)),
		zap.Int("tables", tables.Len()),
		zap.Int("workers", nw),
	)
	return s, nil
}

func (s *Structure) allocState() {
	n := s.n
	s.pos = make([][3]float64, n)
	s.spheres = make([]gauss.Sphere, n)
	s.selfVol = make([]float64, n)
	s.area = make([]float64, n)
	s.factors = make([]volume.Factors, n)
	s.sp = make([]float64, n)
	s.gammap = make([]float64, n)
	s.br1 = make([]float64, n)
	s.br = make([]float64, n)
	s.dbr = make([]float64, n)
	s.brw = make([]float64, n)
	s.dEdB = make([]float64, n)
	s.coefGB = make([]float64, n)
	s.coefVW = make([]float64, n)
	s.outGB = make([]float64, n)
	s.outVW = make([]float64, n)
	s.wGB = make([]float64, n)
	s.wVW = make([]float64, n)
	s.eaGB = make([]float64, n)
	s.eaVW = make([]float64, n)
}

func (s *Structure) newWorker(id int) *worker {
	n := s.n
	o := s.opts
	w := &worker{
		id: id,
		builder: nblist.Builder{
			Offset:    o.NBOffset,
			Radius:    s.radius,
			Heavy:     s.heavyIdx,
			Hydrogens: s.hydIdx,
		},
		near:    nblist.New(n, 0, o.ListLimit),
		far:     nblist.New(n, 0, o.ListLimit),
		vol:     volume.NewEngine(o.overlapSwitch(), o.MaxOverlapOrder),
		born:    born.NewEngine(s.tables, s.vdw, s.radius, s.heavy, s.frozen),
		sites:   watersite.NewEngine(o.overlapSwitch(), o.MaxOverlapOrder, o.HBSwitchA, o.HBSwitchB),
		selfVol: make([]float64, n),
		area:    make([]float64, n),
		br1:     make([]float64, n),
		dEdB:    make([]float64, n),
		outGB:   make([]float64, n),
		outVW:   make([]float64, n),
		dgb:     make([][3]float64, n),
		dvw:     make([][3]float64, n),
		dcav:    make([][3]float64, n),
		dhb:     make([][3]float64, n),
	}
	w.vol.Spheres = s.spheres
	w.vol.Frozen = s.frozen
	w.sites.Spheres = s.spheres
	w.sites.Frozen = s.frozen

	nw := s.team.Workers
	for p := range s.heavyIdx {
		if parallel.Owns(p, id, nw) {
			w.roots = append(w.roots, p)
		}
	}

	w.bornTerms = []born.Term{{Coef: s.coefGB, Grad: w.dgb}, {Coef: s.coefVW, Grad: w.dvw}}
	w.sens = []born.Sensitivity{{Coef: s.coefGB, Out: w.outGB}, {Coef: s.coefVW, Out: w.outVW}}
	w.volTerms = []volume.Term{{Coef: s.wGB, Grad: w.dgb}, {Coef: s.wVW, Grad: w.dvw}}
	w.areaTerms = []volume.Term{
		{Coef: s.eaGB, Grad: w.dgb},
		{Coef: s.eaVW, Grad: w.dvw},
		{Coef: s.gammap, Grad: w.dcav},
	}
	return w
}

// Instrument sends the stage timings and counters of the next evaluations to
// m.
func (s *Structure) Instrument(m *metrics.Metrics) {
	s.metrics = m
	s.team.Observe = m.ObserveStage
}

// Len returns the number of atoms.
func (s *Structure) Len() int { return s.n }

// Options returns the options of the structure.
func (s *Structure) Options() Options { return s.opts }

// Sites returns the hydration sites of the last evaluation.
func (s *Structure) Sites() []watersite.Site { return s.sites }

