package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"splitstream/internal/core/domain"
	"splitstream/internal/core/ports"
	"splitstream/pkg/tracing"
	"splitstream/pkg/utils"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type SessionServiceConfig struct {
	Tiers    domain.TierCapacities
	Recorder RecorderConfig
}

// sessionEntry is one live session. Its collection is owned by the entry and
// never shared with another session.
type sessionEntry struct {
	mu         sync.Mutex
	session    domain.Session
	collection *StreamCollection
	recorder   *SessionRecorder
	closed     bool
}

type sessionService struct {
	cfg       SessionServiceConfig
	emitter   Emitter
	favorites ports.FavoritesStore
	metrics   ports.Metrics
	logger    *zap.SugaredLogger
	now       func() time.Time

	mu       sync.RWMutex
	sessions map[domain.SessionID]*sessionEntry
}

type SessionServiceOption func(*sessionService)

func WithServiceClock(now func() time.Time) SessionServiceOption {
	return func(s *sessionService) {
		s.now = now
	}
}

func NewSessionService(
	cfg SessionServiceConfig,
	emitter Emitter,
	favorites ports.FavoritesStore,
	metrics ports.Metrics,
	logger *zap.SugaredLogger,
	opts ...SessionServiceOption,
) ports.SessionService {
	if metrics == nil {
		metrics = NopMetrics{}
	}
	s := &sessionService{
		cfg:       cfg,
		emitter:   emitter,
		favorites: favorites,
		metrics:   metrics,
		logger:    logger,
		now:       time.Now,
		sessions:  make(map[domain.SessionID]*sessionEntry),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *sessionService) CreateSession(ctx context.Context, actor domain.ActorID, tier domain.Tier) (*domain.Session, error) {
	capacity := s.cfg.Tiers.For(tier)
	id := domain.SessionID(utils.GenerateSessionID())

	entry := &sessionEntry{
		session: domain.Session{
			ID:        id,
			Actor:     actor,
			Tier:      tier,
			Capacity:  capacity,
			CreatedAt: s.now(),
		},
	}
	entry.recorder = NewSessionRecorder(id, actor, s.cfg.Recorder, s.emitter, s.logger,
		WithClock(s.now),
		WithRecorderMetrics(s.metrics),
	)

	collection, err := NewStreamCollection(capacity,
		WithObserver(entry.recorder),
		WithCollectionClock(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create session for tier %s: %w", tier, err)
	}
	entry.collection = collection

	s.mu.Lock()
	s.sessions[id] = entry
	s.mu.Unlock()

	s.metrics.SessionCreated(tier)
	s.logger.Infow("session created",
		"session_id", id,
		"tier", tier,
		"capacity", capacity,
		"anonymous", actor.IsAnonymous(),
	)

	session := entry.session
	return &session, nil
}

func (s *sessionService) GetSession(ctx context.Context, id domain.SessionID) (*domain.SessionView, error) {
	entry, err := s.lookup(id)
	if err != nil {
		return nil, err
	}

	entry.mu.Lock()
	session := entry.session
	entry.mu.Unlock()

	return &domain.SessionView{
		Session: session,
		Streams: entry.collection.Streams(),
		Layout:  entry.collection.Layout(),
	}, nil
}

func (s *sessionService) Authorize(ctx context.Context, id domain.SessionID, caller domain.ActorID) error {
	_, err := s.lookupFor(id, caller)
	return err
}

func (s *sessionService) AddStream(ctx context.Context, id domain.SessionID, caller domain.ActorID, url string) (*domain.Stream, error) {
	ctx, span := tracing.StartSpan(ctx, "session.add_stream", trace.WithAttributes(tracing.SessionIDKey.String(string(id))))
	defer span.End()

	entry, err := s.lookupFor(id, caller)
	if err != nil {
		return nil, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.closed {
		return nil, domain.ErrSessionClosed
	}

	stream, err := entry.collection.AddStream(url)
	if err != nil {
		s.metrics.StreamRejected(rejectionReason(err))
		tracing.RecordError(ctx, err)
		return nil, err
	}
	s.metrics.StreamAdded()
	tracing.AddSpanAttributes(ctx, tracing.VideoIDKey.String(string(stream.VideoID)))

	if !entry.session.Started() {
		if startedAt, ok := entry.recorder.OnSessionStart(entry.collection); ok {
			entry.session.StartedAt = startedAt
		}
	}

	s.logger.Debugw("stream added",
		"session_id", id,
		"stream_id", stream.ID,
		"video_id", stream.VideoID,
		"screen_count", entry.collection.Size(),
	)
	return stream, nil
}

func (s *sessionService) RemoveStream(ctx context.Context, id domain.SessionID, caller domain.ActorID, streamID domain.StreamID) (*domain.Stream, error) {
	ctx, span := tracing.StartSpan(ctx, "session.remove_stream", trace.WithAttributes(
		tracing.SessionIDKey.String(string(id)),
		tracing.StreamIDKey.String(string(streamID)),
	))
	defer span.End()

	entry, err := s.lookupFor(id, caller)
	if err != nil {
		return nil, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.closed {
		return nil, domain.ErrSessionClosed
	}

	stream, err := entry.collection.RemoveStream(streamID)
	if err != nil {
		tracing.RecordError(ctx, err)
		return nil, err
	}
	s.metrics.StreamRemoved()

	s.logger.Debugw("stream removed",
		"session_id", id,
		"stream_id", streamID,
		"video_id", stream.VideoID,
	)
	return stream, nil
}

func (s *sessionService) TogglePlay(ctx context.Context, id domain.SessionID, caller domain.ActorID, streamID domain.StreamID) (*domain.Stream, error) {
	return s.toggle(id, caller, streamID, (*StreamCollection).TogglePlay)
}

func (s *sessionService) ToggleMute(ctx context.Context, id domain.SessionID, caller domain.ActorID, streamID domain.StreamID) (*domain.Stream, error) {
	return s.toggle(id, caller, streamID, (*StreamCollection).ToggleMute)
}

func (s *sessionService) toggle(id domain.SessionID, caller domain.ActorID, streamID domain.StreamID, fn func(*StreamCollection, domain.StreamID) error) (*domain.Stream, error) {
	entry, err := s.lookupFor(id, caller)
	if err != nil {
		return nil, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.closed {
		return nil, domain.ErrSessionClosed
	}

	if err := fn(entry.collection, streamID); err != nil {
		return nil, err
	}
	return entry.collection.Get(streamID)
}

// FavoriteStream holds the entry lock across the store write so the
// video_favorited event cannot follow session_end.
func (s *sessionService) FavoriteStream(ctx context.Context, id domain.SessionID, actor domain.ActorID, streamID domain.StreamID) (*domain.Favorite, error) {
	if actor.IsAnonymous() {
		return nil, domain.ErrAuthRequired
	}

	entry, err := s.lookupFor(id, actor)
	if err != nil {
		return nil, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.closed {
		return nil, domain.ErrSessionClosed
	}

	stream, err := entry.collection.Get(streamID)
	if err != nil {
		return nil, err
	}

	favorite := domain.Favorite{
		ActorID:   actor,
		VideoID:   stream.VideoID,
		Title:     stream.Title,
		Thumbnail: stream.ThumbnailURL,
		AddedAt:   s.now(),
	}
	if err := s.favorites.Save(ctx, favorite); err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to add to favorites: %w", err)
	}

	if err := entry.recorder.OnFavorite(actor, *stream); err != nil {
		return nil, err
	}
	return &favorite, nil
}

func (s *sessionService) ListFavorites(ctx context.Context, actor domain.ActorID) ([]domain.Favorite, error) {
	if actor.IsAnonymous() {
		return nil, domain.ErrAuthRequired
	}
	return s.favorites.List(ctx, actor)
}

func (s *sessionService) ShareSession(ctx context.Context, id domain.SessionID, caller domain.ActorID, share ports.ShareCapability) (*domain.ShareResult, error) {
	ctx, span := tracing.StartSpan(ctx, "session.share", trace.WithAttributes(tracing.SessionIDKey.String(string(id))))
	defer span.End()

	entry, err := s.lookupFor(id, caller)
	if err != nil {
		return nil, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.closed {
		return nil, domain.ErrSessionClosed
	}

	result, err := entry.recorder.OnShare(ctx, entry.collection, share)
	if err != nil {
		tracing.RecordError(ctx, err)
		return nil, err
	}
	return result, nil
}

func (s *sessionService) EndSession(ctx context.Context, id domain.SessionID, caller domain.ActorID) (*domain.SessionSummary, error) {
	s.mu.Lock()
	entry, ok := s.sessions[id]
	if !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
	}
	if err := entry.authorize(caller); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	delete(s.sessions, id)
	s.mu.Unlock()

	return s.end(entry), nil
}

// EndAll closes every open session and returns how many were closed.
func (s *sessionService) EndAll(ctx context.Context) int {
	s.mu.Lock()
	entries := make([]*sessionEntry, 0, len(s.sessions))
	for id, entry := range s.sessions {
		entries = append(entries, entry)
		delete(s.sessions, id)
	}
	s.mu.Unlock()

	for _, entry := range entries {
		s.end(entry)
	}
	return len(entries)
}

func (s *sessionService) end(entry *sessionEntry) *domain.SessionSummary {
	entry.mu.Lock()
	defer entry.mu.Unlock()
	entry.closed = true

	session := entry.session
	for n := entry.collection.Size(); n > 0; n-- {
		s.metrics.StreamRemoved()
	}
	if !session.Started() {
		s.metrics.SessionEnded(0)
		s.logger.Infow("session closed before any stream was added", "session_id", session.ID)
		return nil
	}
	s.metrics.SessionEnded(s.now().Sub(session.StartedAt))

	summary, ok := entry.recorder.OnSessionEnd(session.Actor, entry.collection, session.StartedAt)
	if !ok {
		s.logger.Infow("session ended", "session_id", session.ID, "recorded", false)
		return nil
	}

	s.logger.Infow("session ended",
		"session_id", session.ID,
		"duration_seconds", summary.DurationSeconds,
		"screen_count", summary.ScreenCount,
		"recorded", true,
	)
	return summary
}

func (s *sessionService) lookup(id domain.SessionID) (*sessionEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
	}
	return entry, nil
}

func (s *sessionService) lookupFor(id domain.SessionID, caller domain.ActorID) (*sessionEntry, error) {
	entry, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	if err := entry.authorize(caller); err != nil {
		return nil, err
	}
	return entry, nil
}

// authorize reads only session.Actor, which never changes after creation.
func (e *sessionEntry) authorize(caller domain.ActorID) error {
	owner := e.session.Actor
	switch {
	case owner.IsAnonymous() || caller == owner:
		return nil
	case caller.IsAnonymous():
		return domain.ErrAuthRequired
	default:
		return fmt.Errorf("%w: %s", domain.ErrForbidden, e.session.ID)
	}
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrCapacityExceeded):
		return "capacity_exceeded"
	case errors.Is(err, domain.ErrInvalidSource):
		return "invalid_source"
	case errors.Is(err, domain.ErrDuplicateVideo):
		return "duplicate_video"
	default:
		return "other"
	}
}
