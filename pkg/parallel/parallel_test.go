package parallel

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

func TestBarrierReuse(t *testing.T) {
	const n, rounds = 4, 50
	b := NewBarrier(n)
	var counter atomic.Int64
	done := make(chan bool, n)

	for i := 0; i < n; i++ {
		go func() {
			ok := true
			for r := 0; r < rounds; r++ {
				counter.Add(1)
				b.Wait()
				// every worker has incremented before anyone leaves
				if counter.Load() < int64(n*(r+1)) {
					ok = false
				}
				b.Wait()
			}
			done <- ok
		}()
	}
	for i := 0; i < n; i++ {
		assert.True(t, <-done)
	}
	assert.Equal(t, int64(n*rounds), counter.Load())
}

func TestTeamStages(t *testing.T) {
	const nw = 3
	parts := make([]int, nw)
	var total int
	var names []string

	team := Team{Workers: nw, Observe: func(s string, d time.Duration) { names = append(names, s) }}
	stages := []Stage{
		{Name: "fill", Run: func(_ context.Context, id int) error {
			for p := 0; p < 10; p++ {
				if Owns(p, id, nw) {
					parts[id] += p
				}
			}
			return nil
		}},
		{Name: "merge", Merge: func(context.Context) error {
			for _, v := range parts {
				total += v
			}
			return nil
		}},
	}
	require.NoError(t, team.Run(context.Background(), stages))
	assert.Equal(t, 45, total)
	assert.Equal(t, []string{"fill", "merge"}, names)
}

func TestTeamErrors(t *testing.T) {
	errA := errors.New("a")
	errB := errors.New("b")
	var reached atomic.Bool

	team := Team{Workers: 4}
	err := team.Run(context.Background(), []Stage{
		{Name: "first", Run: func(_ context.Context, id int) error {
			switch id {
			case 1:
				return errA
			case 3:
				return errB
			}
			return nil
		}, Merge: func(context.Context) error {
			reached.Store(true)
			return nil
		}},
		{Name: "second", Run: func(context.Context, int) error {
			reached.Store(true)
			return nil
		}},
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, errA))
	assert.True(t, errors.Is(err, errB))
	assert.Len(t, multierr.Errors(err), 2)
	assert.False(t, reached.Load())
}

func TestTeamMergeError(t *testing.T) {
	errM := errors.New("merge")
	team := Team{Workers: 2}
	err := team.Run(context.Background(), []Stage{
		{Name: "m", Merge: func(context.Context) error { return errM }},
		{Name: "never", Run: func(context.Context, int) error { panic("unreachable") }},
	})
	assert.True(t, errors.Is(err, errM))
	assert.Contains(t, err.Error(), "m (worker 0)")
}

func TestTeamCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	team := Team{Workers: 2}
	err := team.Run(ctx, []Stage{{Name: "s", Run: func(context.Context, int) error { return nil }}})
	assert.True(t, errors.Is(err, context.Canceled))
}
