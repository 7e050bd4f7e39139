package memory

import (
	"context"
	"sync"

	"splitstream/internal/core/domain"
	"splitstream/internal/core/ports"
)

// AnalyticsSink keeps the most recent records in process. A non-positive
// limit keeps everything.
type AnalyticsSink struct {
	mu        sync.RWMutex
	limit     int
	events    []domain.AnalyticsEvent
	summaries []domain.SessionSummary
}

var _ ports.AnalyticsSink = (*AnalyticsSink)(nil)

func NewAnalyticsSink(limit int) *AnalyticsSink {
	return &AnalyticsSink{limit: limit}
}

func (s *AnalyticsSink) AppendEvent(ctx context.Context, event domain.AnalyticsEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = append(s.events, event)
	if s.limit > 0 && len(s.events) > s.limit {
		s.events = s.events[len(s.events)-s.limit:]
	}
	return nil
}

func (s *AnalyticsSink) AppendSummary(ctx context.Context, summary domain.SessionSummary) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.summaries = append(s.summaries, summary)
	if s.limit > 0 && len(s.summaries) > s.limit {
		s.summaries = s.summaries[len(s.summaries)-s.limit:]
	}
	return nil
}

func (s *AnalyticsSink) Events() []domain.AnalyticsEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.AnalyticsEvent, len(s.events))
	copy(out, s.events)
	return out
}

// EventsForSession returns the events of one session in emission order.
func (s *AnalyticsSink) EventsForSession(id domain.SessionID) []domain.AnalyticsEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.AnalyticsEvent
	for _, e := range s.events {
		if e.SessionID == id {
			out = append(out, e)
		}
	}
	return out
}

func (s *AnalyticsSink) Summaries() []domain.SessionSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.SessionSummary, len(s.summaries))
	copy(out, s.summaries)
	return out
}
