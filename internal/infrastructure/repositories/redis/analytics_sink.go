package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"splitstream/internal/core/domain"
	"splitstream/internal/core/ports"

	"github.com/redis/go-redis/v9"
)

const (
	EventsStream   = KeyPrefix + "analytics:events"
	SessionsStream = KeyPrefix + "analytics:sessions"
	LiveChannel    = KeyPrefix + "analytics:live"

	deliveredPrefix = KeyPrefix + "analytics:delivered:"
	// DeliveredTTL bounds how long a delivered record's key blocks a redelivery.
	DeliveredTTL = 24 * time.Hour
)

// appendOnce claims KEYS[1] and, only if the claim succeeds, appends to the
// stream in KEYS[2] and publishes ARGV[3] on KEYS[3]. An empty KEYS[1] skips
// the claim. ARGV[1] is the claim TTL in seconds, ARGV[2] the approximate
// MAXLEN (0 disables trimming), ARGV[4..] the entry's field/value pairs.
var appendOnce = redis.NewScript(`
if KEYS[1] ~= '' then
	if not redis.call('SET', KEYS[1], '1', 'NX', 'EX', ARGV[1]) then
		return 0
	end
end
local args = {'XADD', KEYS[2]}
if tonumber(ARGV[2]) > 0 then
	table.insert(args, 'MAXLEN')
	table.insert(args, '~')
	table.insert(args, ARGV[2])
end
table.insert(args, '*')
for i = 4, #ARGV do
	table.insert(args, ARGV[i])
end
redis.call(unpack(args))
redis.call('PUBLISH', KEYS[3], ARGV[3])
return 1
`)

// AnalyticsSink appends records to Redis streams and announces each one on
// LiveChannel. Streams are trimmed to roughly maxLen entries. Events are
// deduplicated by ID and summaries by session, so a retried append that had
// already committed is a no-op.
type AnalyticsSink struct {
	client *redis.Client
	maxLen int64
}

var _ ports.AnalyticsSink = (*AnalyticsSink)(nil)

func NewAnalyticsSink(client *redis.Client, maxLen int64) *AnalyticsSink {
	return &AnalyticsSink{client: client, maxLen: maxLen}
}

func (s *AnalyticsSink) AppendEvent(ctx context.Context, event domain.AnalyticsEvent) error {
	data, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	var claim string
	if event.ID != "" {
		claim = deliveredPrefix + "event:" + event.ID
	}
	fields := []interface{}{
		"event_id", event.ID,
		"event_type", string(event.Type),
		"session_id", string(event.SessionID),
		"user_id", string(event.ActorID),
		"event_data", string(data),
		"emitted_at", event.EmittedAt.UTC().Format(time.RFC3339Nano),
	}
	return s.append(ctx, claim, EventsStream, fields, "event:"+string(event.Type))
}

func (s *AnalyticsSink) AppendSummary(ctx context.Context, summary domain.SessionSummary) error {
	var claim string
	if summary.SessionID != "" {
		claim = deliveredPrefix + "summary:" + string(summary.SessionID)
	}
	fields := []interface{}{
		"session_id", string(summary.SessionID),
		"user_id", string(summary.ActorID),
		"youtube_video_ids", strings.Join(summary.VideoIDs, ","),
		"screen_count", summary.ScreenCount,
		"duration_seconds", summary.DurationSeconds,
		"started_at", summary.StartedAt.UTC().Format(time.RFC3339Nano),
		"ended_at", summary.EndedAt.UTC().Format(time.RFC3339Nano),
	}
	return s.append(ctx, claim, SessionsStream, fields, "summary")
}

func (s *AnalyticsSink) append(ctx context.Context, claim, stream string, fields []interface{}, notice string) error {
	maxLen := s.maxLen
	if maxLen < 0 {
		maxLen = 0
	}
	args := append([]interface{}{int64(DeliveredTTL / time.Second), maxLen, notice}, fields...)

	if err := appendOnce.Run(ctx, s.client, []string{claim, stream, LiveChannel}, args...).Err(); err != nil {
		return fmt.Errorf("failed to append to %s: %w", stream, err)
	}
	return nil
}
