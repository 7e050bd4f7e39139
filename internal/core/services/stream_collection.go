package services

import (
	"fmt"
	"sync"
	"time"

	"splitstream/internal/core/domain"
	"splitstream/pkg/utils"
	"splitstream/pkg/validation"
	"splitstream/pkg/videoid"
)

// MutationObserver is told about every accepted add and remove, in order.
// It runs while the collection is locked and must not call back into it.
type MutationObserver interface {
	OnMutation(mutation domain.Mutation)
}

type MutationObserverFunc func(mutation domain.Mutation)

func (f MutationObserverFunc) OnMutation(mutation domain.Mutation) {
	f(mutation)
}

// StreamCollection is the ordered, bounded set of streams shown in one
// session's grid. Insertion order is display order.
type StreamCollection struct {
	mu       sync.RWMutex
	capacity int
	streams  []*domain.Stream
	observer MutationObserver
	now      func() time.Time
	newID    func() domain.StreamID
}

type CollectionOption func(*StreamCollection)

func WithObserver(observer MutationObserver) CollectionOption {
	return func(c *StreamCollection) {
		c.observer = observer
	}
}

func WithStreamIDGenerator(fn func() domain.StreamID) CollectionOption {
	return func(c *StreamCollection) {
		c.newID = fn
	}
}

func WithCollectionClock(now func() time.Time) CollectionOption {
	return func(c *StreamCollection) {
		c.now = now
	}
}

func NewStreamCollection(capacity int, opts ...CollectionOption) (*StreamCollection, error) {
	if capacity < 1 {
		return nil, fmt.Errorf("%w: got %d", domain.ErrInvalidCapacity, capacity)
	}

	c := &StreamCollection{
		capacity: capacity,
		streams:  make([]*domain.Stream, 0, capacity),
		now:      time.Now,
		newID: func() domain.StreamID {
			return domain.StreamID(utils.GenerateStreamID())
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// AddStream appends the video behind url. Capacity is checked first, then the
// source, then uniqueness; a rejected add leaves the collection untouched.
func (c *StreamCollection) AddStream(url string) (*domain.Stream, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.streams) >= c.capacity {
		return nil, fmt.Errorf("%w: %d/%d screens active", domain.ErrCapacityExceeded, len(c.streams), c.capacity)
	}

	if err := validation.ValidateSourceInput(url); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidSource, err)
	}
	id, ok := videoid.Extract(url)
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidSource, url)
	}
	videoID := domain.VideoID(id)

	for _, s := range c.streams {
		if s.VideoID == videoID {
			return nil, fmt.Errorf("%w: %s", domain.ErrDuplicateVideo, videoID)
		}
	}

	stream := &domain.Stream{
		ID:           c.newID(),
		SourceURL:    url,
		VideoID:      videoID,
		Title:        videoid.PlaceholderTitle(len(c.streams) + 1),
		ThumbnailURL: videoid.ThumbnailURL(id),
		AddedAt:      c.now(),
	}
	c.streams = append(c.streams, stream)

	c.notify(domain.Mutation{Type: domain.EventVideoAdded, VideoID: videoID, Size: len(c.streams)})

	out := *stream
	return &out, nil
}

func (c *StreamCollection) RemoveStream(id domain.StreamID) (*domain.Stream, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx := c.indexOf(id)
	if idx < 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrStreamNotFound, id)
	}

	removed := *c.streams[idx]
	copy(c.streams[idx:], c.streams[idx+1:])
	c.streams[len(c.streams)-1] = nil
	c.streams = c.streams[:len(c.streams)-1]

	c.notify(domain.Mutation{Type: domain.EventVideoRemoved, VideoID: removed.VideoID, Size: len(c.streams)})

	return &removed, nil
}

// TogglePlay and ToggleMute only flip presentation state; they are not
// reported to the observer.
func (c *StreamCollection) TogglePlay(id domain.StreamID) error {
	return c.update(id, func(s *domain.Stream) {
		s.IsPlaying = !s.IsPlaying
	})
}

func (c *StreamCollection) ToggleMute(id domain.StreamID) error {
	return c.update(id, func(s *domain.Stream) {
		s.IsMuted = !s.IsMuted
	})
}

func (c *StreamCollection) Layout() domain.LayoutDescriptor {
	return Layout(c.Size())
}

func (c *StreamCollection) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.streams)
}

func (c *StreamCollection) Capacity() int {
	return c.capacity
}

// Get returns a copy of the stream with the given id.
func (c *StreamCollection) Get(id domain.StreamID) (*domain.Stream, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	idx := c.indexOf(id)
	if idx < 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrStreamNotFound, id)
	}
	out := *c.streams[idx]
	return &out, nil
}

// Streams returns copies of the streams in display order.
func (c *StreamCollection) Streams() []domain.Stream {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]domain.Stream, len(c.streams))
	for i, s := range c.streams {
		out[i] = *s
	}
	return out
}

func (c *StreamCollection) VideoIDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ids := make([]string, len(c.streams))
	for i, s := range c.streams {
		ids[i] = string(s.VideoID)
	}
	return ids
}

func (c *StreamCollection) update(id domain.StreamID, fn func(*domain.Stream)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx := c.indexOf(id)
	if idx < 0 {
		return fmt.Errorf("%w: %s", domain.ErrStreamNotFound, id)
	}
	fn(c.streams[idx])
	return nil
}

func (c *StreamCollection) indexOf(id domain.StreamID) int {
	for i, s := range c.streams {
		if s.ID == id {
			return i
		}
	}
	return -1
}

func (c *StreamCollection) notify(mutation domain.Mutation) {
	if c.observer != nil {
		c.observer.OnMutation(mutation)
	}
}
