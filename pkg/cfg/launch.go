package cfg

import (
	"context"
	"errors"
	"fmt"

	"github.com/kpotier/agbnp/pkg/energy"
	"github.com/kpotier/agbnp/pkg/fdcheck"
	"github.com/kpotier/agbnp/pkg/metrics"

	"go.uber.org/zap"
)

// ErrUnknown is returned for a calculation name that does not exist.
var ErrUnknown = errors.New("unknown calculation")

// Calculation is an interface that only contains one method: Start. Every
// calculation must have a Start method that will launch the calculation. It
// must be a thread blocking method.
type Calculation interface {
	Start(ctx context.Context) error
}

// Env is what the calculations share: the logger and, if not nil, the
// metrics the structures report to.
type Env struct {
	Log     *zap.Logger
	Metrics *metrics.Metrics
}

// Launch launchs a specific calculation. It is a thread blocking method. The
// parameters required to launch the calculation must be in a file.
func Launch(ctx context.Context, name string, path string, env Env) error {
	var (
		err error
		cal Calculation
	)

	switch name {
	case energy.Type:
		cal, err = energy.New(path, env.Log, env.Metrics)
	case fdcheck.Type:
		cal, err = fdcheck.New(path, env.Log)
	default:
		return fmt.Errorf("%w: `%s`", ErrUnknown, name)
	}

	if err != nil {
		return fmt.Errorf("%s: New: %w", name, err)
	}

	err = cal.Start(ctx)
	if err != nil {
		return fmt.Errorf("%s: Start: %w", name, err)
	}

	return nil
}

func known(name string) bool {
	return name == energy.Type || name == fdcheck.Type
}
