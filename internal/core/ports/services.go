package ports

import (
	"context"
	"time"

	"splitstream/internal/core/domain"
)

type IdentityProvider interface {
	CurrentActor(ctx context.Context) (domain.ActorID, bool)
}

// ShareCapability is the platform share surface. NativeShare returns
// domain.ErrShareUnsupported when the platform has no share sheet.
type ShareCapability interface {
	NativeShare(ctx context.Context, payload domain.SharePayload) error
	CopyToClipboard(ctx context.Context, text string) error
}

type Metrics interface {
	SessionCreated(tier domain.Tier)
	SessionEnded(duration time.Duration)
	StreamAdded()
	StreamRemoved()
	StreamRejected(reason string)
	EventEmitted(eventType domain.EventType)
}

// SessionService owns live sessions. Every method taking a caller rejects a
// caller other than the session's owner: domain.ErrAuthRequired when nobody is
// signed in, domain.ErrForbidden otherwise. Anonymous sessions have no owner.
type SessionService interface {
	CreateSession(ctx context.Context, actor domain.ActorID, tier domain.Tier) (*domain.Session, error)
	GetSession(ctx context.Context, id domain.SessionID) (*domain.SessionView, error)
	Authorize(ctx context.Context, id domain.SessionID, caller domain.ActorID) error
	AddStream(ctx context.Context, id domain.SessionID, caller domain.ActorID, url string) (*domain.Stream, error)
	RemoveStream(ctx context.Context, id domain.SessionID, caller domain.ActorID, streamID domain.StreamID) (*domain.Stream, error)
	TogglePlay(ctx context.Context, id domain.SessionID, caller domain.ActorID, streamID domain.StreamID) (*domain.Stream, error)
	ToggleMute(ctx context.Context, id domain.SessionID, caller domain.ActorID, streamID domain.StreamID) (*domain.Stream, error)
	FavoriteStream(ctx context.Context, id domain.SessionID, caller domain.ActorID, streamID domain.StreamID) (*domain.Favorite, error)
	ListFavorites(ctx context.Context, actor domain.ActorID) ([]domain.Favorite, error)
	ShareSession(ctx context.Context, id domain.SessionID, caller domain.ActorID, share ShareCapability) (*domain.ShareResult, error)
	EndSession(ctx context.Context, id domain.SessionID, caller domain.ActorID) (*domain.SessionSummary, error)
	EndAll(ctx context.Context) int
}
