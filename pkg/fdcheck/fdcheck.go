// Package fdcheck compares the analytic gradient of the solvation energy with
// central finite differences of the energy.
package fdcheck

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/kpotier/agbnp/pkg/agbnp"
	"github.com/kpotier/agbnp/pkg/util"

	"github.com/pelletier/go-toml"
	"go.uber.org/zap"
)

// Type is name of the calculation.
var Type = "fdcheck"

// ErrMismatch is returned when a component of the gradient differs from its
// finite difference estimate by more than the tolerance.
var ErrMismatch = errors.New("analytic and numerical gradients differ")

// Defaults of the step and of the tolerance.
const (
	DefaultStep      = 1e-5
	DefaultTolerance = 1e-4
)

// FDCheck is a structure containing the parameters that can be parsed from a
// TOML configuration file. This structure can be instanced through the New
// method. Atoms lists the atoms to check; all of them when empty. The error
// of a component is |fd - analytic| / max(1, |fd|).
type FDCheck struct {
	FileIn  string `toml:"fdcheck.file_in"`
	FileOut string `toml:"fdcheck.file_out"`

	Step      float64 `toml:"fdcheck.step"`
	Tolerance float64 `toml:"fdcheck.tolerance"`
	Atoms     []int   `toml:"fdcheck.atoms"`

	log *zap.Logger
	in  *agbnp.Input
}

// New returns an instance of the FDCheck structure. It reads and parses the
// configuration file given in argument and the structure file it names.
func New(path string, log *zap.Logger) (*FDCheck, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var c FDCheck
	dec := toml.NewDecoder(f)
	err = dec.Decode(&c)
	if err != nil {
		return nil, err
	}

	if c.Step == 0 {
		c.Step = DefaultStep
	}
	if c.Tolerance == 0 {
		c.Tolerance = DefaultTolerance
	}
	if c.Step < 0 || c.Tolerance < 0 {
		return nil, errors.New("Step and Tolerance must be positive")
	}

	c.in, err = agbnp.LoadInput(c.FileIn)
	if err != nil {
		return nil, fmt.Errorf("LoadInput: %w", err)
	}
	for _, a := range c.Atoms {
		if a < 0 || a >= len(c.in.Atoms) {
			return nil, fmt.Errorf("atom %d out of range", a)
		}
	}

	if log == nil {
		log = zap.NewNop()
	}
	c.log = log.With(zap.String("calculation", Type), zap.String("file_in", c.FileIn))
	return &c, nil
}

// Start performs the calculation. It is a thread blocking method. It needs
// two evaluations per checked coordinate. It returns ErrMismatch when the
// largest error is above the tolerance; the report is written anyway.
func (c *FDCheck) Start(ctx context.Context) error {
	s, err := agbnp.New(c.in.Atoms, c.in.Conn, c.in.Options, c.log)
	if err != nil {
		return fmt.Errorf("agbnp.New: %w", err)
	}

	res, err := s.Evaluate(ctx, c.in.Pos)
	if err != nil {
		return fmt.Errorf("Evaluate: %w", err)
	}
	grad := res.Gradient()

	out, err := util.Write(c.FileOut, c)
	if err != nil {
		return fmt.Errorf("Write: %w", err)
	}
	defer out.Close()
	out.WriteString("atom dim analytic numerical error\n")

	atoms := c.Atoms
	if len(atoms) == 0 {
		for i := range c.in.Atoms {
			atoms = append(atoms, i)
		}
	}

	var maxErr float64
	worst := [2]int{atoms[0], 0}
	pos := append([][3]float64(nil), c.in.Pos...)
	for _, a := range atoms {
		for k := 0; k < 3; k++ {
			fd, err := c.central(ctx, s, pos, a, k)
			if err != nil {
				return fmt.Errorf("central (atom %d, dim %d): %w", a, k, err)
			}

			e := math.Abs(fd-grad[a][k]) / math.Max(1, math.Abs(fd))
			if e > maxErr {
				maxErr, worst = e, [2]int{a, k}
			}
			fmt.Fprintf(out, "%d %d %g %g %g\n", a, k, grad[a][k], fd, e)
		}
	}
	fmt.Fprintf(out, "\nmax_error %g (atom %d, dim %d)\n", maxErr, worst[0], worst[1])

	c.log.Info("finite difference check",
		zap.Float64("max_error", maxErr),
		zap.Int("atom", worst[0]),
		zap.Int("dim", worst[1]),
	)
	if maxErr > c.Tolerance {
		return fmt.Errorf("%w: %g > %g (atom %d, dim %d)", ErrMismatch, maxErr, c.Tolerance, worst[0], worst[1])
	}
	return nil
}

// central returns the central difference of the total energy along
// coordinate k of atom a. pos is restored before returning.
func (c *FDCheck) central(ctx context.Context, s *agbnp.Structure, pos [][3]float64, a, k int) (float64, error) {
	x := pos[a][k]
	defer func() { pos[a][k] = x }()

	var e [2]float64
	for n, h := range [2]float64{c.Step, -c.Step} {
		pos[a][k] = x + h
		res, err := s.Evaluate(ctx, pos)
		if err != nil {
			return 0, err
		}
		e[n] = res.Total()
	}
	return (e[0] - e[1]) / (2 * c.Step), nil
}
