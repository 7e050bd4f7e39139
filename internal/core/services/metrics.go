package services

import (
	"time"

	"splitstream/internal/core/domain"
)

// NopMetrics discards everything.
type NopMetrics struct{}

func (NopMetrics) SessionCreated(domain.Tier) {}
func (NopMetrics) SessionEnded(time.Duration) {}
func (NopMetrics) StreamAdded() {}
func (NopMetrics) StreamRemoved() {}
func (NopMetrics) StreamRejected(string) {}
func (NopMetrics) EventEmitted(domain.EventType) {}
