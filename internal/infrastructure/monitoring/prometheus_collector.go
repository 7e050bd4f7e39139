package monitoring

import (
	"time"

	"splitstream/internal/core/domain"
	"splitstream/internal/core/ports"
	"splitstream/internal/infrastructure/dispatch"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type PrometheusCollector struct {
	sessionsActive  prometheus.Gauge
	sessionsCreated *prometheus.CounterVec
	sessionDuration prometheus.Histogram

	streamsActive   prometheus.Gauge
	streamsAdded    prometheus.Counter
	streamsRejected *prometheus.CounterVec

	eventsEmitted *prometheus.CounterVec

	recordsDelivered *prometheus.CounterVec
	sinkFailures     *prometheus.CounterVec
	recordsDropped   *prometheus.CounterVec
}

var (
	_ ports.Metrics    = (*PrometheusCollector)(nil)
	_ dispatch.Metrics = (*PrometheusCollector)(nil)
)

// NewPrometheusCollector registers the service metrics with reg. Pass
// prometheus.DefaultRegisterer to expose them on the default /metrics handler.
func NewPrometheusCollector(reg prometheus.Registerer) *PrometheusCollector {
	factory := promauto.With(reg)

	return &PrometheusCollector{
		sessionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "splitstream_sessions_active",
			Help: "Number of open viewing sessions",
		}),

		sessionsCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "splitstream_sessions_created_total",
			Help: "Sessions created, by subscription tier",
		}, []string{"tier"}),

		sessionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "splitstream_session_duration_seconds",
			Help:    "Time from first stream added to session end",
			Buckets: prometheus.ExponentialBuckets(10, 2, 12),
		}),

		streamsActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "splitstream_streams_active",
			Help: "Number of video panes shown across all sessions",
		}),

		streamsAdded: factory.NewCounter(prometheus.CounterOpts{
			Name: "splitstream_streams_added_total",
			Help: "Video panes added",
		}),

		streamsRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "splitstream_streams_rejected_total",
			Help: "Add attempts rejected, by reason",
		}, []string{"reason"}),

		eventsEmitted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "splitstream_analytics_events_emitted_total",
			Help: "Analytics events handed to the dispatcher, by type",
		}, []string{"event_type"}),

		recordsDelivered: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "splitstream_analytics_records_delivered_total",
			Help: "Analytics records accepted by a sink",
		}, []string{"sink", "kind"}),

		sinkFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "splitstream_analytics_sink_failures_total",
			Help: "Analytics records a sink failed to accept after retries",
		}, []string{"sink", "kind"}),

		recordsDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "splitstream_analytics_records_dropped_total",
			Help: "Analytics records dropped before delivery",
		}, []string{"kind"}),
	}
}

func (p *PrometheusCollector) SessionCreated(tier domain.Tier) {
	p.sessionsActive.Inc()
	p.sessionsCreated.WithLabelValues(string(tier)).Inc()
}

// SessionEnded is called for every closed session. Sessions that never
// started report a zero duration and are kept out of the histogram.
func (p *PrometheusCollector) SessionEnded(duration time.Duration) {
	p.sessionsActive.Dec()
	if duration > 0 {
		p.sessionDuration.Observe(duration.Seconds())
	}
}

func (p *PrometheusCollector) StreamAdded() {
	p.streamsActive.Inc()
	p.streamsAdded.Inc()
}

func (p *PrometheusCollector) StreamRemoved() {
	p.streamsActive.Dec()
}

func (p *PrometheusCollector) StreamRejected(reason string) {
	p.streamsRejected.WithLabelValues(reason).Inc()
}

func (p *PrometheusCollector) EventEmitted(eventType domain.EventType) {
	p.eventsEmitted.WithLabelValues(string(eventType)).Inc()
}

func (p *PrometheusCollector) RecordDelivered(sink, kind string) {
	p.recordsDelivered.WithLabelValues(sink, kind).Inc()
}

func (p *PrometheusCollector) RecordSinkFailure(sink, kind string) {
	p.sinkFailures.WithLabelValues(sink, kind).Inc()
}

func (p *PrometheusCollector) RecordDropped(kind string) {
	p.recordsDropped.WithLabelValues(kind).Inc()
}
