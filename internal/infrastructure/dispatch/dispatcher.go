// Package dispatch delivers analytics records to their sinks off the caller's
// goroutine, in emission order.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"splitstream/internal/core/domain"
	"splitstream/internal/core/ports"
	"splitstream/internal/core/services"
	"splitstream/pkg/circuitbreaker"
	"splitstream/pkg/retry"

	"go.uber.org/zap"
)

const (
	KindEvent   = "event"
	KindSummary = "summary"
)

type Config struct {
	QueueSize       int
	DeliveryTimeout time.Duration
	Retry           retry.Config
	Breaker         circuitbreaker.Config
}

func DefaultConfig() Config {
	return Config{
		QueueSize:       1024,
		DeliveryTimeout: 5 * time.Second,
		Retry:           retry.DefaultConfig(),
		Breaker:         circuitbreaker.DefaultConfig(),
	}
}

// Target is one named sink. Every target receives every record.
type Target struct {
	Name string
	Sink ports.AnalyticsSink
}

type Metrics interface {
	RecordDelivered(sink, kind string)
	RecordSinkFailure(sink, kind string)
	RecordDropped(kind string)
}

type nopMetrics struct{}

func (nopMetrics) RecordDelivered(string, string)   {}
func (nopMetrics) RecordSinkFailure(string, string) {}
func (nopMetrics) RecordDropped(string)             {}

type record struct {
	kind    string
	event   domain.AnalyticsEvent
	summary domain.SessionSummary
}

type target struct {
	name    string
	sink    ports.AnalyticsSink
	breaker *circuitbreaker.CircuitBreaker
}

var _ services.Emitter = (*Dispatcher)(nil)

// Dispatcher owns a bounded queue and a single worker. Emit never blocks; a
// full or closed queue drops the record.
type Dispatcher struct {
	cfg     Config
	targets []*target
	logger  *zap.SugaredLogger
	metrics Metrics

	queue chan record
	done  chan struct{}

	// runCtx is cancelled when Close gives up waiting for the drain.
	runCtx context.Context
	cancel context.CancelFunc

	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once
}

func New(cfg Config, targets []Target, logger *zap.SugaredLogger, metrics Metrics) *Dispatcher {
	if cfg.QueueSize < 1 {
		cfg.QueueSize = 1
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}

	runCtx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
		queue:   make(chan record, cfg.QueueSize),
		done:    make(chan struct{}),
		runCtx:  runCtx,
		cancel:  cancel,
	}

	for _, t := range targets {
		name := t.Name
		d.targets = append(d.targets, &target{
			name: name,
			sink: t.Sink,
			breaker: circuitbreaker.New(name, cfg.Breaker,
				circuitbreaker.WithStateChange(func(name string, from, to circuitbreaker.State) {
					logger.Warnw("analytics sink breaker changed state",
						"sink", name,
						"from", from.String(),
						"to", to.String(),
					)
				}),
			),
		})
	}

	go d.run()
	return d
}

func (d *Dispatcher) EmitEvent(event domain.AnalyticsEvent) {
	d.enqueue(record{kind: KindEvent, event: event})
}

func (d *Dispatcher) EmitSummary(summary domain.SessionSummary) {
	d.enqueue(record{kind: KindSummary, summary: summary})
}

// Pending reports how many records are waiting for the worker.
func (d *Dispatcher) Pending() int {
	return len(d.queue)
}

// Close stops accepting records and waits for the queue to drain. When ctx
// expires first the remaining records are abandoned and ctx.Err is returned.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.closeOnce.Do(func() {
		d.mu.Lock()
		d.closed = true
		close(d.queue)
		d.mu.Unlock()
	})

	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		d.cancel()
		d.logger.Warnw("abandoning analytics queue", "pending", len(d.queue))
		return ctx.Err()
	}
}

func (d *Dispatcher) enqueue(r record) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.drop(r, "dispatcher closed")
		return
	}

	select {
	case d.queue <- r:
	default:
		d.drop(r, "queue full")
	}
}

func (d *Dispatcher) drop(r record, reason string) {
	d.metrics.RecordDropped(r.kind)
	d.logger.Warnw("dropping analytics record",
		"kind", r.kind,
		"reason", reason,
		"session_id", r.sessionID(),
	)
}

func (d *Dispatcher) run() {
	defer close(d.done)
	defer d.cancel()

	for r := range d.queue {
		if d.runCtx.Err() != nil {
			d.metrics.RecordDropped(r.kind)
			continue
		}
		for _, t := range d.targets {
			d.deliver(t, r)
		}
	}
}

func (d *Dispatcher) deliver(t *target, r record) {
	err := retry.Do(d.runCtx, d.cfg.Retry, func(ctx context.Context) error {
		err := t.breaker.Execute(ctx, func(ctx context.Context) error {
			return d.send(ctx, t, r)
		})
		if errors.Is(err, circuitbreaker.ErrOpen) {
			return retry.Permanent(err)
		}
		return err
	}, func(attempt int, err error, delay time.Duration) {
		d.logger.Debugw("retrying analytics delivery",
			"sink", t.name,
			"kind", r.kind,
			"attempt", attempt,
			"delay", delay,
			"error", err,
		)
	})

	if err != nil {
		d.metrics.RecordSinkFailure(t.name, r.kind)
		d.logger.Warnw("analytics delivery failed",
			"sink", t.name,
			"kind", r.kind,
			"session_id", r.sessionID(),
			"error", fmt.Errorf("%w: %v", domain.ErrSinkFailure, err),
		)
		return
	}
	d.metrics.RecordDelivered(t.name, r.kind)
}

func (d *Dispatcher) send(ctx context.Context, t *target, r record) error {
	if d.cfg.DeliveryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.cfg.DeliveryTimeout)
		defer cancel()
	}

	if r.kind == KindSummary {
		return t.sink.AppendSummary(ctx, r.summary)
	}
	return t.sink.AppendEvent(ctx, r.event)
}

func (r record) sessionID() domain.SessionID {
	if r.kind == KindSummary {
		return r.summary.SessionID
	}
	return r.event.SessionID
}
