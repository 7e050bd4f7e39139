package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"splitstream/internal/core/domain"
	"splitstream/internal/core/ports"

	"go.uber.org/zap"
)

// Emitter hands records to the analytics pipeline without waiting for the
// sink. Implementations must not block.
type Emitter interface {
	EmitEvent(event domain.AnalyticsEvent)
	EmitSummary(summary domain.SessionSummary)
}

type RecorderConfig struct {
	// ShareBaseURL prefixes the session link handed to the share surface.
	ShareBaseURL string
	// RecordAnonymousEvents emits events for sessions nobody is signed in to.
	RecordAnonymousEvents bool
	// RecordAnonymousSummaries writes session summaries without an actor.
	RecordAnonymousSummaries bool
}

// SessionRecorder turns one session's lifecycle into analytics records.
type SessionRecorder struct {
	sessionID domain.SessionID
	owner     domain.ActorID
	cfg       RecorderConfig
	emitter   Emitter
	metrics   ports.Metrics
	logger    *zap.SugaredLogger
	now       func() time.Time

	mu      sync.Mutex
	started bool
}

type RecorderOption func(*SessionRecorder)

func WithClock(now func() time.Time) RecorderOption {
	return func(r *SessionRecorder) {
		r.now = now
	}
}

func WithRecorderMetrics(metrics ports.Metrics) RecorderOption {
	return func(r *SessionRecorder) {
		r.metrics = metrics
	}
}

func NewSessionRecorder(
	sessionID domain.SessionID,
	owner domain.ActorID,
	cfg RecorderConfig,
	emitter Emitter,
	logger *zap.SugaredLogger,
	opts ...RecorderOption,
) *SessionRecorder {
	r := &SessionRecorder{
		sessionID: sessionID,
		owner:     owner,
		cfg:       cfg,
		emitter:   emitter,
		metrics:   NopMetrics{},
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *SessionRecorder) SessionID() domain.SessionID {
	return r.sessionID
}

// OnSessionStart records the first non-empty composition. It returns the
// start time, and false when nothing was started (empty collection or
// already started).
func (r *SessionRecorder) OnSessionStart(collection *StreamCollection) (time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started || collection.Size() == 0 {
		return time.Time{}, false
	}
	r.started = true
	startedAt := r.now()

	r.emit(domain.EventSessionStart, r.owner, map[string]interface{}{
		"screen_count": collection.Size(),
		"video_ids":    collection.VideoIDs(),
	})
	return startedAt, true
}

// OnMutation forwards video_added and video_removed. It satisfies
// MutationObserver so a collection can report to it directly.
func (r *SessionRecorder) OnMutation(mutation domain.Mutation) {
	switch mutation.Type {
	case domain.EventVideoAdded, domain.EventVideoRemoved:
	default:
		r.logger.Debugw("ignoring mutation", "type", mutation.Type, "session_id", r.sessionID)
		return
	}

	r.emit(mutation.Type, r.owner, map[string]interface{}{
		"video_id":     string(mutation.VideoID),
		"screen_count": mutation.Size,
	})
}

// OnFavorite needs a signed-in actor; without one nothing is emitted.
func (r *SessionRecorder) OnFavorite(actor domain.ActorID, stream domain.Stream) error {
	if actor.IsAnonymous() {
		return domain.ErrAuthRequired
	}

	r.emit(domain.EventVideoFavorited, actor, map[string]interface{}{
		"video_id": string(stream.VideoID),
	})
	return nil
}

// OnShare emits session_shared once, before touching the share surface, then
// tries the native share and falls back to the clipboard.
func (r *SessionRecorder) OnShare(ctx context.Context, collection *StreamCollection, share ports.ShareCapability) (*domain.ShareResult, error) {
	streams := collection.Streams()

	videos := make([]map[string]interface{}, 0, len(streams))
	for _, s := range streams {
		videos = append(videos, map[string]interface{}{
			"id":    string(s.VideoID),
			"title": s.Title,
		})
	}
	r.emit(domain.EventSessionShared, r.owner, map[string]interface{}{
		"videos":    videos,
		"timestamp": r.now().UnixMilli(),
	})

	payload := domain.SharePayload{
		Title: "Split-Stream Session",
		Text:  fmt.Sprintf("Check out my Split-Stream session with %d videos!", len(streams)),
		URL:   r.shareURL(),
	}

	err := share.NativeShare(ctx, payload)
	if err == nil {
		return &domain.ShareResult{Method: domain.ShareNative, Payload: payload}, nil
	}

	r.logger.Debugw("native share failed, copying link",
		"session_id", r.sessionID,
		"error", err,
	)
	if err := share.CopyToClipboard(ctx, payload.URL); err != nil {
		return nil, fmt.Errorf("failed to copy session link: %w", err)
	}
	return &domain.ShareResult{Method: domain.ShareClipboard, Payload: payload}, nil
}

// OnSessionEnd writes the session summary followed by session_end. Both are
// skipped when actor is anonymous, unless anonymous summaries are enabled.
func (r *SessionRecorder) OnSessionEnd(actor domain.ActorID, collection *StreamCollection, startedAt time.Time) (*domain.SessionSummary, bool) {
	if actor.IsAnonymous() && !r.cfg.RecordAnonymousSummaries {
		r.logger.Debugw("skipping session summary for anonymous session", "session_id", r.sessionID)
		return nil, false
	}

	endedAt := r.now()
	duration := endedAt.Sub(startedAt)
	if duration < 0 {
		duration = 0
	}
	seconds := int64(duration / time.Second)

	summary := domain.SessionSummary{
		SessionID:       r.sessionID,
		ActorID:         actor,
		VideoIDs:        collection.VideoIDs(),
		ScreenCount:     collection.Size(),
		DurationSeconds: seconds,
		StartedAt:       startedAt,
		EndedAt:         endedAt,
	}
	r.emitter.EmitSummary(summary)

	r.emitAlways(domain.EventSessionEnd, actor, map[string]interface{}{
		"duration_seconds": seconds,
		"screen_count":     summary.ScreenCount,
	})

	return &summary, true
}

func (r *SessionRecorder) emit(eventType domain.EventType, actor domain.ActorID, payload map[string]interface{}) {
	if actor.IsAnonymous() && !r.cfg.RecordAnonymousEvents {
		return
	}
	r.emitAlways(eventType, actor, payload)
}

func (r *SessionRecorder) emitAlways(eventType domain.EventType, actor domain.ActorID, payload map[string]interface{}) {
	r.emitter.EmitEvent(domain.NewAnalyticsEvent(eventType, r.sessionID, actor, payload, r.now()))
	r.metrics.EventEmitted(eventType)
}

func (r *SessionRecorder) shareURL() string {
	if r.cfg.ShareBaseURL == "" {
		return "/sessions/" + string(r.sessionID)
	}
	return fmt.Sprintf("%s/sessions/%s", r.cfg.ShareBaseURL, r.sessionID)
}
