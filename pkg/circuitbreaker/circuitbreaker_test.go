package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errTestError = errors.New("test error")

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func fail(ctx context.Context) error    { return errTestError }
func succeed(ctx context.Context) error { return nil }

func newTestBreaker(clock *testClock, opts ...Option) *CircuitBreaker {
	cfg := Config{
		FailureThreshold:    2,
		SuccessThreshold:    2,
		Timeout:             time.Minute,
		MaxRequestsHalfOpen: 2,
	}
	return New("sink", cfg, append([]Option{WithClock(clock.Now)}, opts...)...)
}

func TestCircuitBreaker_ClosedPassesErrorsThrough(t *testing.T) {
	cb := New("sink", DefaultConfig())
	ctx := context.Background()

	assert.NoError(t, cb.Execute(ctx, succeed))
	assert.Equal(t, errTestError, cb.Execute(ctx, fail))
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	clock := &testClock{now: time.Unix(0, 0)}
	cb := newTestBreaker(clock)
	ctx := context.Background()

	_ = cb.Execute(ctx, fail)
	_ = cb.Execute(ctx, fail)
	require.Equal(t, StateOpen, cb.State())

	called := false
	err := cb.Execute(ctx, func(ctx context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrOpen)
	assert.False(t, called)
}

func TestCircuitBreaker_SuccessResetsFailureCount(t *testing.T) {
	clock := &testClock{now: time.Unix(0, 0)}
	cb := newTestBreaker(clock)
	ctx := context.Background()

	_ = cb.Execute(ctx, fail)
	_ = cb.Execute(ctx, succeed)
	_ = cb.Execute(ctx, fail)
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenClosesAfterSuccesses(t *testing.T) {
	clock := &testClock{now: time.Unix(0, 0)}
	cb := newTestBreaker(clock)
	ctx := context.Background()

	_ = cb.Execute(ctx, fail)
	_ = cb.Execute(ctx, fail)

	clock.Advance(time.Minute)
	assert.Equal(t, StateHalfOpen, cb.State())

	require.NoError(t, cb.Execute(ctx, succeed))
	assert.Equal(t, StateHalfOpen, cb.State())
	require.NoError(t, cb.Execute(ctx, succeed))
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	clock := &testClock{now: time.Unix(0, 0)}
	cb := newTestBreaker(clock)
	ctx := context.Background()

	_ = cb.Execute(ctx, fail)
	_ = cb.Execute(ctx, fail)
	clock.Advance(time.Minute)

	assert.Equal(t, errTestError, cb.Execute(ctx, fail))
	assert.Equal(t, StateOpen, cb.State())

	clock.Advance(30 * time.Second)
	assert.ErrorIs(t, cb.Execute(ctx, succeed), ErrOpen)
}

func TestCircuitBreaker_HalfOpenProbeLimit(t *testing.T) {
	clock := &testClock{now: time.Unix(0, 0)}
	cb := New("sink", Config{
		FailureThreshold:    1,
		SuccessThreshold:    5,
		Timeout:             time.Minute,
		MaxRequestsHalfOpen: 2,
	}, WithClock(clock.Now))
	ctx := context.Background()

	_ = cb.Execute(ctx, fail)
	clock.Advance(time.Minute)

	require.NoError(t, cb.Execute(ctx, succeed))
	require.NoError(t, cb.Execute(ctx, succeed))
	assert.ErrorIs(t, cb.Execute(ctx, succeed), ErrOpen)
	assert.Equal(t, StateHalfOpen, cb.State())
}

func TestCircuitBreaker_StateChangeCallback(t *testing.T) {
	clock := &testClock{now: time.Unix(0, 0)}

	var transitions []string
	cb := newTestBreaker(clock, WithStateChange(func(name string, from, to State) {
		transitions = append(transitions, name+":"+from.String()+"->"+to.String())
	}))
	ctx := context.Background()

	_ = cb.Execute(ctx, fail)
	_ = cb.Execute(ctx, fail)
	clock.Advance(time.Minute)
	_ = cb.Execute(ctx, succeed)
	_ = cb.Execute(ctx, succeed)

	assert.Equal(t, []string{
		"sink:closed->open",
		"sink:open->half-open",
		"sink:half-open->closed",
	}, transitions)
}

func TestCircuitBreaker_Reset(t *testing.T) {
	clock := &testClock{now: time.Unix(0, 0)}
	cb := newTestBreaker(clock)
	ctx := context.Background()

	_ = cb.Execute(ctx, fail)
	_ = cb.Execute(ctx, fail)
	require.Equal(t, StateOpen, cb.State())

	cb.Reset()
	assert.Equal(t, StateClosed, cb.State())
	assert.NoError(t, cb.Execute(ctx, succeed))
}

func TestCircuitBreaker_ConcurrentUse(t *testing.T) {
	cb := New("sink", DefaultConfig())
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				_ = cb.Execute(ctx, fail)
			} else {
				_ = cb.Execute(ctx, succeed)
			}
		}(i)
	}
	wg.Wait()
	_ = cb.State()
}
