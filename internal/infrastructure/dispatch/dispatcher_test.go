package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"splitstream/internal/core/domain"
	"splitstream/pkg/circuitbreaker"
	"splitstream/pkg/retry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeSink struct {
	mu        sync.Mutex
	events    []domain.AnalyticsEvent
	summaries []domain.SessionSummary
	calls     int
	failFirst int
	block     chan struct{}
}

func (s *fakeSink) AppendEvent(ctx context.Context, event domain.AnalyticsEvent) error {
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.calls <= s.failFirst {
		return errors.New("sink unavailable")
	}
	s.events = append(s.events, event)
	return nil
}

func (s *fakeSink) AppendSummary(ctx context.Context, summary domain.SessionSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summaries = append(s.summaries, summary)
	return nil
}

func (s *fakeSink) eventTypes() []domain.EventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.EventType, len(s.events))
	for i, e := range s.events {
		out[i] = e.Type
	}
	return out
}

func (s *fakeSink) summaryCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.summaries)
}

type countingMetrics struct {
	mu        sync.Mutex
	delivered map[string]int
	failed    map[string]int
	dropped   int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{delivered: map[string]int{}, failed: map[string]int{}}
}

func (m *countingMetrics) RecordDelivered(sink, kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delivered[sink]++
}

func (m *countingMetrics) RecordSinkFailure(sink, kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failed[sink]++
}

func (m *countingMetrics) RecordDropped(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dropped++
}

func (m *countingMetrics) snapshot() (map[string]int, map[string]int, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := map[string]int{}
	f := map[string]int{}
	for k, v := range m.delivered {
		d[k] = v
	}
	for k, v := range m.failed {
		f[k] = v
	}
	return d, f, m.dropped
}

func testConfig() Config {
	return Config{
		QueueSize:       16,
		DeliveryTimeout: time.Second,
		Retry:           retry.Config{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, Multiplier: 2},
		Breaker:         circuitbreaker.Config{FailureThreshold: 10, SuccessThreshold: 1, Timeout: time.Minute, MaxRequestsHalfOpen: 1},
	}
}

func event(t domain.EventType) domain.AnalyticsEvent {
	return domain.NewAnalyticsEvent(t, "session_1", "user-1", nil, time.Now())
}

func TestDispatcher_DeliversInOrderToEveryTarget(t *testing.T) {
	a, b := &fakeSink{}, &fakeSink{}
	metrics := newCountingMetrics()
	d := New(testConfig(), []Target{{Name: "a", Sink: a}, {Name: "b", Sink: b}}, zaptest.NewLogger(t).Sugar(), metrics)

	types := []domain.EventType{domain.EventVideoAdded, domain.EventSessionStart, domain.EventVideoRemoved}
	for _, typ := range types {
		d.EmitEvent(event(typ))
	}
	d.EmitSummary(domain.SessionSummary{SessionID: "session_1"})

	require.NoError(t, d.Close(context.Background()))

	assert.Equal(t, types, a.eventTypes())
	assert.Equal(t, types, b.eventTypes())
	assert.Equal(t, 1, a.summaryCount())
	assert.Equal(t, 1, b.summaryCount())

	delivered, failed, dropped := metrics.snapshot()
	assert.Equal(t, map[string]int{"a": 4, "b": 4}, delivered)
	assert.Empty(t, failed)
	assert.Zero(t, dropped)
}

func TestDispatcher_RetriesTransientFailures(t *testing.T) {
	sink := &fakeSink{failFirst: 2}
	metrics := newCountingMetrics()
	d := New(testConfig(), []Target{{Name: "flaky", Sink: sink}}, zaptest.NewLogger(t).Sugar(), metrics)

	d.EmitEvent(event(domain.EventVideoAdded))
	require.NoError(t, d.Close(context.Background()))

	assert.Equal(t, []domain.EventType{domain.EventVideoAdded}, sink.eventTypes())
	_, failed, _ := metrics.snapshot()
	assert.Empty(t, failed)
}

// committingSink stores every new event and then reports the first append as
// failed, the way a write that lands but times out on the reply does.
type committingSink struct {
	fakeSink
	seen map[string]bool
	ids  []string
}

func (s *committingSink) AppendEvent(ctx context.Context, event domain.AnalyticsEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.ids = append(s.ids, event.ID)
	if !s.seen[event.ID] {
		s.seen[event.ID] = true
		s.events = append(s.events, event)
	}
	if s.calls == 1 {
		return context.DeadlineExceeded
	}
	return nil
}

func TestDispatcher_RetryAfterCommitKeepsEventID(t *testing.T) {
	sink := &committingSink{seen: map[string]bool{}}
	metrics := newCountingMetrics()
	d := New(testConfig(), []Target{{Name: "redis", Sink: sink}}, zaptest.NewLogger(t).Sugar(), metrics)

	sent := event(domain.EventVideoAdded)
	d.EmitEvent(sent)
	require.NoError(t, d.Close(context.Background()))

	sink.mu.Lock()
	defer sink.mu.Unlock()
	assert.Equal(t, []string{sent.ID, sent.ID}, sink.ids)
	require.Len(t, sink.events, 1)
	assert.Equal(t, sent.ID, sink.events[0].ID)

	delivered, failed, _ := metrics.snapshot()
	assert.Equal(t, 1, delivered["redis"])
	assert.Empty(t, failed)
}

func TestDispatcher_FailureIsContained(t *testing.T) {
	broken := &fakeSink{failFirst: 1000}
	healthy := &fakeSink{}
	metrics := newCountingMetrics()
	d := New(testConfig(), []Target{{Name: "broken", Sink: broken}, {Name: "healthy", Sink: healthy}}, zaptest.NewLogger(t).Sugar(), metrics)

	d.EmitEvent(event(domain.EventVideoAdded))
	d.EmitEvent(event(domain.EventVideoRemoved))
	require.NoError(t, d.Close(context.Background()))

	assert.Len(t, healthy.eventTypes(), 2)
	_, failed, _ := metrics.snapshot()
	assert.Equal(t, 2, failed["broken"])
}

func TestDispatcher_OpenBreakerShedsWithoutRetrying(t *testing.T) {
	broken := &fakeSink{failFirst: 1000}
	cfg := testConfig()
	cfg.Breaker.FailureThreshold = 1

	d := New(cfg, []Target{{Name: "broken", Sink: broken}}, zaptest.NewLogger(t).Sugar(), nil)
	for i := 0; i < 5; i++ {
		d.EmitEvent(event(domain.EventVideoAdded))
	}
	require.NoError(t, d.Close(context.Background()))

	broken.mu.Lock()
	defer broken.mu.Unlock()
	assert.Equal(t, 1, broken.calls)
}

func TestDispatcher_FullQueueDropsWithoutBlocking(t *testing.T) {
	sink := &fakeSink{block: make(chan struct{})}
	metrics := newCountingMetrics()
	cfg := testConfig()
	cfg.QueueSize = 2

	d := New(cfg, []Target{{Name: "slow", Sink: sink}}, zaptest.NewLogger(t).Sugar(), metrics)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 20; i++ {
			d.EmitEvent(event(domain.EventVideoAdded))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("EmitEvent blocked on a full queue")
	}

	close(sink.block)
	require.NoError(t, d.Close(context.Background()))

	_, _, dropped := metrics.snapshot()
	assert.GreaterOrEqual(t, dropped, 17)
	assert.Equal(t, 20, dropped+len(sink.eventTypes()))
}

func TestDispatcher_CloseTimesOut(t *testing.T) {
	sink := &fakeSink{block: make(chan struct{})}
	d := New(testConfig(), []Target{{Name: "stuck", Sink: sink}}, zaptest.NewLogger(t).Sugar(), nil)

	d.EmitEvent(event(domain.EventVideoAdded))
	d.EmitEvent(event(domain.EventVideoRemoved))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := d.Close(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.Eventually(t, func() bool {
		select {
		case <-d.done:
			return true
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)
	assert.Empty(t, sink.eventTypes())
}

func TestDispatcher_EmitAfterCloseIsDropped(t *testing.T) {
	sink := &fakeSink{}
	metrics := newCountingMetrics()
	d := New(testConfig(), []Target{{Name: "a", Sink: sink}}, zaptest.NewLogger(t).Sugar(), metrics)

	require.NoError(t, d.Close(context.Background()))
	require.NoError(t, d.Close(context.Background()))

	d.EmitEvent(event(domain.EventVideoAdded))
	d.EmitSummary(domain.SessionSummary{})

	_, _, dropped := metrics.snapshot()
	assert.Equal(t, 2, dropped)
	assert.Empty(t, sink.eventTypes())
}
