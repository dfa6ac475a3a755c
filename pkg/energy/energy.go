// Package energy computes the solvation energy of a molecule and its
// gradient, once for the positions of the structure file or for every
// configuration of a LAMMPS trajectory.
package energy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/kpotier/agbnp/pkg/agbnp"
	"github.com/kpotier/agbnp/pkg/metrics"
	"github.com/kpotier/agbnp/pkg/util"

	"github.com/pelletier/go-toml"
	"go.uber.org/zap"
)

// Type is name of the calculation.
var Type = "energy"

// Energy is a structure containing the parameters that can be parsed from a
// TOML configuration file. This structure can be instanced through the New
// method. FileIn is the structure file (see agbnp.ReadInput). When
// Trajectory is empty the positions of FileIn are used; otherwise the
// configurations CfgStart to CfgEnd (excluded, 0 meaning the end of the file)
// of the trajectory are evaluated. FileGrad, if set, receives the gradients.
type Energy struct {
	FileIn     string `toml:"energy.file_in"`
	FileOut    string `toml:"energy.file_out"`
	FileGrad   string `toml:"energy.file_grad"`
	Trajectory string `toml:"energy.trajectory"`

	CfgStart int `toml:"energy.cfg_start"`
	CfgEnd   int `toml:"energy.cfg_end"`

	log     *zap.Logger
	metrics *metrics.Metrics
	in      *agbnp.Input
}

// New returns an instance of the Energy structure. It reads and parses the
// configuration file given in argument and the structure file it names.
// Both must be TOML files. m may be nil.
func New(path string, log *zap.Logger, m *metrics.Metrics) (*Energy, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var e Energy
	dec := toml.NewDecoder(f)
	err = dec.Decode(&e)
	if err != nil {
		return nil, err
	}

	if e.CfgStart < 0 || (e.CfgEnd != 0 && e.CfgStart >= e.CfgEnd) {
		return nil, errors.New("CfgStart is negative or greater or equal than CfgEnd")
	}

	e.in, err = agbnp.LoadInput(e.FileIn)
	if err != nil {
		return nil, fmt.Errorf("LoadInput: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	e.log = log.With(zap.String("calculation", Type), zap.String("file_in", e.FileIn))
	e.metrics = m
	return &e, nil
}

// Start performs the calculation. It is a thread blocking method. The
// structure uses the number of workers of its options.
func (e *Energy) Start(ctx context.Context) error {
	s, err := agbnp.New(e.in.Atoms, e.in.Conn, e.in.Options, e.log)
	if err != nil {
		return fmt.Errorf("agbnp.New: %w", err)
	}
	if e.metrics != nil {
		s.Instrument(e.metrics)
	}

	out, err := util.Write(e.FileOut, e)
	if err != nil {
		return fmt.Errorf("Write: %w", err)
	}
	defer out.Close()
	out.WriteString("cfg etot egb evdw evdw_corr ecav ecav_corr ehb mol_volume\n")

	var grad io.Writer
	if e.FileGrad != "" {
		g, err := os.Create(e.FileGrad)
		if err != nil {
			return err
		}
		defer g.Close()
		g.WriteString("cfg atom dx dy dz\n")
		grad = g
	}

	if e.Trajectory == "" {
		return e.step(ctx, s, out, grad, 0, e.in.Pos)
	}

	f, err := os.Open(e.Trajectory)
	if err != nil {
		return err
	}
	defer f.Close()
	tr := util.NewTrajectory(f)

	err = tr.Skip(e.CfgStart)
	if err != nil {
		return fmt.Errorf("Skip: %w", err)
	}

	var pos [][3]float64
	for cfg := e.CfgStart; e.CfgEnd == 0 || cfg < e.CfgEnd; cfg++ {
		pos, err = tr.Next(pos)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("Next (cfg %d): %w", cfg, err)
		}
		if len(pos) != s.Len() {
			return fmt.Errorf("cfg %d: %d atoms in the trajectory, %d in the structure", cfg, len(pos), s.Len())
		}

		err = e.step(ctx, s, out, grad, cfg, pos)
		if err != nil {
			return err
		}
	}
	return nil
}

// step evaluates one configuration and writes its energies and gradients.
func (e *Energy) step(ctx context.Context, s *agbnp.Structure, out, grad io.Writer, cfg int, pos [][3]float64) error {
	res, err := s.Evaluate(ctx, pos)
	if err != nil {
		return fmt.Errorf("Evaluate (cfg %d): %w", cfg, err)
	}

	fmt.Fprintf(out, "%d %g %g %g %g %g %g %g %g\n",
		cfg, res.Total(), res.GB, res.VdW, res.VdWCorrection,
		res.Cavity, res.CavityCorrection, res.HB, res.MolVolume)

	if grad != nil {
		for i, g := range res.Gradient() {
			fmt.Fprintf(grad, "%d %d %g %g %g\n", cfg, i, g[0], g[1], g[2])
		}
	}
	return nil
}
