package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"splitstream/internal/core/domain"
	"splitstream/internal/core/ports"

	"github.com/redis/go-redis/v9"
)

// FavoritesStore keeps one hash per actor, keyed by video id.
type FavoritesStore struct {
	client *redis.Client
	prefix string
}

func NewFavoritesStore(client *redis.Client) ports.FavoritesStore {
	return &FavoritesStore{
		client: client,
		prefix: KeyPrefix + "favorites:",
	}
}

func (s *FavoritesStore) key(actor domain.ActorID) string {
	return s.prefix + string(actor)
}

func (s *FavoritesStore) Save(ctx context.Context, favorite domain.Favorite) error {
	data, err := json.Marshal(favorite)
	if err != nil {
		return fmt.Errorf("failed to marshal favorite: %w", err)
	}

	created, err := s.client.HSetNX(ctx, s.key(favorite.ActorID), string(favorite.VideoID), data).Result()
	if err != nil {
		return fmt.Errorf("failed to save favorite in Redis: %w", err)
	}
	if !created {
		return fmt.Errorf("%w: %s", domain.ErrAlreadyExists, favorite.VideoID)
	}
	return nil
}

// List returns the actor's favorites, newest first.
func (s *FavoritesStore) List(ctx context.Context, actor domain.ActorID) ([]domain.Favorite, error) {
	entries, err := s.client.HGetAll(ctx, s.key(actor)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list favorites from Redis: %w", err)
	}

	favorites := make([]domain.Favorite, 0, len(entries))
	for videoID, raw := range entries {
		var f domain.Favorite
		if err := json.Unmarshal([]byte(raw), &f); err != nil {
			return nil, fmt.Errorf("failed to unmarshal favorite %s: %w", videoID, err)
		}
		favorites = append(favorites, f)
	}

	sort.Slice(favorites, func(i, j int) bool {
		if favorites[i].AddedAt.Equal(favorites[j].AddedAt) {
			return favorites[i].VideoID < favorites[j].VideoID
		}
		return favorites[i].AddedAt.After(favorites[j].AddedAt)
	})
	return favorites, nil
}

var _ ports.FavoritesStore = (*FavoritesStore)(nil)
