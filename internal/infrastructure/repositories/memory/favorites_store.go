package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"splitstream/internal/core/domain"
	"splitstream/internal/core/ports"
)

type FavoritesStore struct {
	mu        sync.RWMutex
	favorites map[domain.ActorID]map[domain.VideoID]domain.Favorite
}

func NewFavoritesStore() ports.FavoritesStore {
	return &FavoritesStore{
		favorites: make(map[domain.ActorID]map[domain.VideoID]domain.Favorite),
	}
}

func (s *FavoritesStore) Save(ctx context.Context, favorite domain.Favorite) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byVideo, ok := s.favorites[favorite.ActorID]
	if !ok {
		byVideo = make(map[domain.VideoID]domain.Favorite)
		s.favorites[favorite.ActorID] = byVideo
	}

	if _, exists := byVideo[favorite.VideoID]; exists {
		return fmt.Errorf("%w: %s", domain.ErrAlreadyExists, favorite.VideoID)
	}
	byVideo[favorite.VideoID] = favorite
	return nil
}

// List returns the actor's favorites, newest first.
func (s *FavoritesStore) List(ctx context.Context, actor domain.ActorID) ([]domain.Favorite, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Favorite, 0, len(s.favorites[actor]))
	for _, f := range s.favorites[actor] {
		out = append(out, f)
	}
	sortNewestFirst(out)
	return out, nil
}

func sortNewestFirst(favorites []domain.Favorite) {
	sort.Slice(favorites, func(i, j int) bool {
		if favorites[i].AddedAt.Equal(favorites[j].AddedAt) {
			return favorites[i].VideoID < favorites[j].VideoID
		}
		return favorites[i].AddedAt.After(favorites[j].AddedAt)
	})
}
