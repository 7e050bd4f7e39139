package domain

import (
	"time"

	"splitstream/pkg/utils"
)

type EventType string

const (
	EventSessionStart   EventType = "session_start"
	EventVideoAdded     EventType = "video_added"
	EventVideoRemoved   EventType = "video_removed"
	EventVideoFavorited EventType = "video_favorited"
	EventSessionShared  EventType = "session_shared"
	EventSessionEnd     EventType = "session_end"
)

// AnalyticsEvent is produced once and forwarded once. It must not be modified
// after NewAnalyticsEvent returns. ID is the idempotency key sinks use to drop
// redelivered copies.
type AnalyticsEvent struct {
	ID        string                 `json:"event_id"`
	Type      EventType              `json:"event_type"`
	Payload   map[string]interface{} `json:"event_data"`
	SessionID SessionID              `json:"session_id"`
	ActorID   ActorID                `json:"user_id,omitempty"`
	EmittedAt time.Time              `json:"emitted_at"`
}

func NewAnalyticsEvent(eventType EventType, sessionID SessionID, actor ActorID, payload map[string]interface{}, at time.Time) AnalyticsEvent {
	data := make(map[string]interface{}, len(payload))
	for k, v := range payload {
		data[k] = v
	}
	return AnalyticsEvent{
		ID:        utils.GenerateEventID(),
		Type:      eventType,
		Payload:   data,
		SessionID: sessionID,
		ActorID:   actor,
		EmittedAt: at,
	}
}
