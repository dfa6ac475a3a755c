// Package parallel runs a fixed team of workers through a sequence of
// stages. Every stage has a parallel part run by all the workers and a merge
// run by worker 0 alone, each followed by a barrier. An error in any worker
// stops the team at the end of the stage where it happened.
package parallel

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

// Barrier blocks n goroutines until all of them have called Wait. It may be
// reused immediately.
type Barrier struct {
	mu    sync.Mutex
	cond  *sync.Cond
	n     int
	count int
	gen   uint64
}

// NewBarrier returns a barrier for n goroutines.
func NewBarrier(n int) *Barrier {
	b := &Barrier{n: n}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Wait blocks until n goroutines are waiting.
func (b *Barrier) Wait() {
	b.mu.Lock()
	defer b.mu.Unlock()

	gen := b.gen
	b.count++
	if b.count == b.n {
		b.count = 0
		b.gen++
		b.cond.Broadcast()
		return
	}
	for gen == b.gen {
		b.cond.Wait()
	}
}

// Stage is one step of a team run. Run and Merge may be nil.
type Stage struct {
	Name  string
	Run   func(ctx context.Context, id int) error
	Merge func(ctx context.Context) error
}

// Team runs stages over Workers goroutines.
type Team struct {
	Workers int

	// Observe, if not nil, receives the wall time of every completed stage.
	Observe func(stage string, d time.Duration)
}

// Run executes the stages in order. It returns the combined errors of the
// workers of the first failed stage, or ctx.Err() if the context was
// cancelled.
func (t *Team) Run(ctx context.Context, stages []Stage) error {
	nw := t.Workers
	if nw < 1 {
		nw = 1
	}
	bar := NewBarrier(nw)

	var (
		failed atomic.Bool
		mu     sync.Mutex
		errs   error
	)
	fail := func(stage string, id int, err error) {
		mu.Lock()
		errs = multierr.Append(errs, fmt.Errorf("%s (worker %d): %w", stage, id, err))
		mu.Unlock()
		failed.Store(true)
	}

	var g errgroup.Group
	for id := 0; id < nw; id++ {
		id := id
		g.Go(func() error {
			for _, s := range stages {
				start := time.Now()

				if !failed.Load() {
					if err := ctx.Err(); err != nil {
						fail(s.Name, id, err)
					} else if s.Run != nil {
						if err := s.Run(ctx, id); err != nil {
							fail(s.Name, id, err)
						}
					}
				}
				bar.Wait()

				if id == 0 && !failed.Load() && s.Merge != nil {
					if err := s.Merge(ctx); err != nil {
						fail(s.Name, id, err)
					}
				}
				bar.Wait()

				if failed.Load() {
					return nil
				}
				if id == 0 && t.Observe != nil {
					t.Observe(s.Name, time.Since(start))
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return errs
}

// Owns reports whether worker id of nw handles item p under the cyclic
// partition.
func Owns(p, id, nw int) bool {
	return p%nw == id
}
