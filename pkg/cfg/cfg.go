// Package cfg dispatches several calculations. It avoids to start a
// specific program for each calculation.
package cfg

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pelletier/go-toml"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// ErrRun is returned by New when the run file is not usable.
var ErrRun = errors.New("invalid run file")

// Cfg lists the calculations of a run. Types[step] names the calculations of
// one step and Files[step] their configuration files, one per calculation.
// The steps run one after the other; the calculations of a step run in
// parallel.
type Cfg struct {
	Types [][]string `toml:"types"`
	Files [][]string `toml:"files"`
}

// New reads the TOML run file at path. Every step must name at least one
// calculation, every calculation must be known (see Launch) and have its own
// configuration file. Those errors wrap ErrRun.
func New(path string) (Cfg, error) {
	f, err := os.Open(path)
	if err != nil {
		return Cfg{}, err
	}
	defer f.Close()

	var c Cfg
	err = toml.NewDecoder(f).Decode(&c)
	if err != nil {
		return Cfg{}, fmt.Errorf("Decode: %w", err)
	}

	if len(c.Files) != len(c.Types) {
		return Cfg{}, fmt.Errorf("%w: %d steps in files, %d in types", ErrRun, len(c.Files), len(c.Types))
	}
	for step, types := range c.Types {
		if len(types) == 0 {
			return Cfg{}, fmt.Errorf("%w: step %d is empty", ErrRun, step)
		}
		if len(c.Files[step]) != len(types) {
			return Cfg{}, fmt.Errorf("%w: step %d has %d files for %d calculations",
				ErrRun, step, len(c.Files[step]), len(types))
		}
		for rtn, name := range types {
			if !known(name) {
				return Cfg{}, fmt.Errorf("%w: step %d, routine %d: %w `%s`", ErrRun, step, rtn, ErrUnknown, name)
			}
			if c.Files[step][rtn] == "" {
				return Cfg{}, fmt.Errorf("%w: step %d, routine %d: no configuration file", ErrRun, step, rtn)
			}
		}
	}

	return c, nil
}

// Start dispatches and performs the calculations. If several calculations are
// in the same array (e.g Types: ["x", "y", "z"]), they will be performed in
// parallel. Each calculation runs its structure with the number of workers of
// its options; the sum over one step should not exceed the number of threads
// available.
//
// It is a thread blocking method. If a calculation fails, the error is logged
// and the other calculations go on. The errors of all the failed calculations
// are returned together. Every log line carries a run identifier.
func (c Cfg) Start(ctx context.Context, env Env) error {
	if env.Log == nil {
		env.Log = zap.NewNop()
	}
	run := uuid.NewString()
	env.Log = env.Log.With(zap.String("run", run))
	env.Log.Info("run started", zap.Int("steps", len(c.Types)))

	var (
		mu   sync.Mutex
		errs error
	)
	launch := func(step, rtn int, name string) {
		log := env.Log.With(zap.Int("step", step), zap.Int("routine", rtn), zap.String("type", name))
		start := time.Now()
		err := Launch(ctx, name, c.Files[step][rtn], Env{Log: log, Metrics: env.Metrics})
		if err != nil {
			err = fmt.Errorf("Launch (step %d, routine %d): %w", step, rtn, err)
			log.Error("calculation failed", zap.Error(err))
			mu.Lock()
			errs = multierr.Append(errs, err)
			mu.Unlock()
			return
		}
		log.Info("calculation done", zap.Duration("elapsed", time.Since(start)))
	}

	var wg sync.WaitGroup
	for step, types := range c.Types {
		if len(types) == 0 {
			continue
		}

		for rtn, name := range types[1:] { // For each calculation
			wg.Add(1)
			go func(step, rtn int, name string) {
				defer wg.Done()
				launch(step, rtn, name)
			}(step, rtn+1, name)
		}

		launch(step, 0, types[0])
		wg.Wait()
	}

	env.Log.Info("run finished", zap.Int("failed", len(multierr.Errors(errs))))
	return errs
}
