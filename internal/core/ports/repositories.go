package ports

import (
	"context"

	"splitstream/internal/core/domain"
)

// AnalyticsSink is the external store for analytics records. Callers treat
// every append as best-effort.
type AnalyticsSink interface {
	AppendEvent(ctx context.Context, event domain.AnalyticsEvent) error
	AppendSummary(ctx context.Context, summary domain.SessionSummary) error
}

// FavoritesStore persists per-actor favorite videos. Save returns
// domain.ErrAlreadyExists when the actor already saved the video.
type FavoritesStore interface {
	Save(ctx context.Context, favorite domain.Favorite) error
	List(ctx context.Context, actor domain.ActorID) ([]domain.Favorite, error)
}
