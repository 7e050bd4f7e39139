package services

import (
	"fmt"
	"strings"
	"testing"

	"splitstream/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCollection(t *testing.T, capacity int, observer MutationObserver) *StreamCollection {
	t.Helper()

	n := 0
	opts := []CollectionOption{
		WithStreamIDGenerator(func() domain.StreamID {
			n++
			return domain.StreamID(fmt.Sprintf("stream_%d", n))
		}),
	}
	if observer != nil {
		opts = append(opts, WithObserver(observer))
	}

	c, err := NewStreamCollection(capacity, opts...)
	require.NoError(t, err)
	return c
}

type mutationLog struct {
	mutations []domain.Mutation
}

func (l *mutationLog) OnMutation(m domain.Mutation) {
	l.mutations = append(l.mutations, m)
}

func TestNewStreamCollection_InvalidCapacity(t *testing.T) {
	for _, capacity := range []int{0, -1} {
		_, err := NewStreamCollection(capacity)
		assert.ErrorIs(t, err, domain.ErrInvalidCapacity)
	}
}

func TestStreamCollection_AddStream(t *testing.T) {
	log := &mutationLog{}
	c := newTestCollection(t, 2, log)

	stream, err := c.AddStream("https://www.youtube.com/watch?v=dQw4w9WgXcQ")
	require.NoError(t, err)

	assert.Equal(t, domain.StreamID("stream_1"), stream.ID)
	assert.Equal(t, domain.VideoID("dQw4w9WgXcQ"), stream.VideoID)
	assert.Equal(t, "YouTube Video 1", stream.Title)
	assert.Equal(t, "https://img.youtube.com/vi/dQw4w9WgXcQ/mqdefault.jpg", stream.ThumbnailURL)
	assert.False(t, stream.IsPlaying)
	assert.False(t, stream.IsMuted)
	assert.Equal(t, 1, c.Size())

	require.Len(t, log.mutations, 1)
	assert.Equal(t, domain.Mutation{Type: domain.EventVideoAdded, VideoID: "dQw4w9WgXcQ", Size: 1}, log.mutations[0])
}

func TestStreamCollection_CapacityTwoScenario(t *testing.T) {
	log := &mutationLog{}
	c := newTestCollection(t, 2, log)

	_, err := c.AddStream("https://www.youtube.com/watch?v=abc")
	require.NoError(t, err)
	_, err = c.AddStream("https://youtu.be/def")
	require.NoError(t, err)

	_, err = c.AddStream("https://youtube.com/embed/ghi")
	assert.ErrorIs(t, err, domain.ErrCapacityExceeded)

	assert.Equal(t, []string{"abc", "def"}, c.VideoIDs())
	assert.Equal(t, domain.LayoutDescriptor{Columns: 2, Rows: 1}, c.Layout())
	assert.Len(t, log.mutations, 2)
}

func TestStreamCollection_CapacityCheckedBeforeSource(t *testing.T) {
	c := newTestCollection(t, 1, nil)

	_, err := c.AddStream("https://youtu.be/abc")
	require.NoError(t, err)

	_, err = c.AddStream("not a url")
	assert.ErrorIs(t, err, domain.ErrCapacityExceeded)

	_, err = c.AddStream("https://youtu.be/abc")
	assert.ErrorIs(t, err, domain.ErrCapacityExceeded)
}

func TestStreamCollection_InvalidSource(t *testing.T) {
	log := &mutationLog{}
	c := newTestCollection(t, 4, log)

	for _, url := range []string{
		"",
		"   ",
		"https://youtu.be/abc\xff",
		"https://youtu.be/" + strings.Repeat("a", 2100),
		"https://vimeo.com/12345",
		"youtube.com/watch?v=",
	} {
		_, err := c.AddStream(url)
		assert.ErrorIs(t, err, domain.ErrInvalidSource, url)
	}

	assert.Equal(t, 0, c.Size())
	assert.Empty(t, log.mutations)
}

func TestStreamCollection_DuplicateAcrossShapes(t *testing.T) {
	log := &mutationLog{}
	c := newTestCollection(t, 4, log)

	_, err := c.AddStream("https://www.youtube.com/watch?v=abc123")
	require.NoError(t, err)

	for _, url := range []string{
		"https://youtu.be/abc123",
		"https://youtube.com/embed/abc123",
		"youtube.com/watch?v=abc123&t=42",
	} {
		_, err := c.AddStream(url)
		assert.ErrorIs(t, err, domain.ErrDuplicateVideo, url)
	}

	assert.Equal(t, 1, c.Size())
	assert.Len(t, log.mutations, 1)
}

func TestStreamCollection_RemoveAndReAdd(t *testing.T) {
	log := &mutationLog{}
	c := newTestCollection(t, 2, log)

	first, err := c.AddStream("https://youtu.be/abc")
	require.NoError(t, err)
	_, err = c.AddStream("https://youtu.be/def")
	require.NoError(t, err)

	removed, err := c.RemoveStream(first.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.VideoID("abc"), removed.VideoID)
	assert.Equal(t, []string{"def"}, c.VideoIDs())

	again, err := c.AddStream("https://www.youtube.com/watch?v=abc")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, again.ID)
	assert.Equal(t, "YouTube Video 2", again.Title)
	assert.Equal(t, []string{"def", "abc"}, c.VideoIDs())

	require.Len(t, log.mutations, 4)
	assert.Equal(t, domain.Mutation{Type: domain.EventVideoRemoved, VideoID: "abc", Size: 1}, log.mutations[2])
	assert.Equal(t, domain.Mutation{Type: domain.EventVideoAdded, VideoID: "abc", Size: 2}, log.mutations[3])
}

func TestStreamCollection_RemoveUnknown(t *testing.T) {
	log := &mutationLog{}
	c := newTestCollection(t, 2, log)

	_, err := c.AddStream("https://youtu.be/abc")
	require.NoError(t, err)

	_, err = c.RemoveStream("missing")
	assert.ErrorIs(t, err, domain.ErrStreamNotFound)
	assert.Equal(t, 1, c.Size())
	assert.Len(t, log.mutations, 1)
}

func TestStreamCollection_Toggles(t *testing.T) {
	log := &mutationLog{}
	c := newTestCollection(t, 2, log)

	stream, err := c.AddStream("https://youtu.be/abc")
	require.NoError(t, err)

	require.NoError(t, c.TogglePlay(stream.ID))
	got, err := c.Get(stream.ID)
	require.NoError(t, err)
	assert.True(t, got.IsPlaying)
	assert.Contains(t, got.EmbedURL(), "autoplay=1&mute=0")

	require.NoError(t, c.TogglePlay(stream.ID))
	require.NoError(t, c.ToggleMute(stream.ID))
	got, err = c.Get(stream.ID)
	require.NoError(t, err)
	assert.False(t, got.IsPlaying)
	assert.True(t, got.IsMuted)

	require.NoError(t, c.ToggleMute(stream.ID))
	got, err = c.Get(stream.ID)
	require.NoError(t, err)
	assert.False(t, got.IsMuted)

	assert.ErrorIs(t, c.TogglePlay("missing"), domain.ErrStreamNotFound)
	assert.ErrorIs(t, c.ToggleMute("missing"), domain.ErrStreamNotFound)
	assert.Len(t, log.mutations, 1)
}

func TestStreamCollection_ReturnsCopies(t *testing.T) {
	c := newTestCollection(t, 2, nil)

	stream, err := c.AddStream("https://youtu.be/abc")
	require.NoError(t, err)
	stream.IsPlaying = true
	stream.Title = "changed"

	streams := c.Streams()
	streams[0].IsMuted = true

	got, err := c.Get(stream.ID)
	require.NoError(t, err)
	assert.False(t, got.IsPlaying)
	assert.False(t, got.IsMuted)
	assert.Equal(t, "YouTube Video 1", got.Title)
}

func TestStreamCollection_RemoveReturnsCopy(t *testing.T) {
	c := newTestCollection(t, 2, nil)

	first, err := c.AddStream("https://youtu.be/abc")
	require.NoError(t, err)
	_, err = c.AddStream("https://youtu.be/def")
	require.NoError(t, err)

	removed, err := c.RemoveStream(first.ID)
	require.NoError(t, err)
	removed.VideoID = "changed"

	assert.Equal(t, []string{"def"}, c.VideoIDs())
	assert.Nil(t, c.streams[:2][1], "vacated slot still holds a stream")
}

func TestStreamCollection_BlankSourceOnFullGrid(t *testing.T) {
	c := newTestCollection(t, 1, nil)

	_, err := c.AddStream("https://youtu.be/abc")
	require.NoError(t, err)

	_, err = c.AddStream("   ")
	assert.ErrorIs(t, err, domain.ErrCapacityExceeded)
}

func TestLayout(t *testing.T) {
	tests := []struct {
		size int
		want domain.LayoutDescriptor
	}{
		{0, domain.LayoutDescriptor{Empty: true}},
		{1, domain.LayoutDescriptor{Columns: 1, Rows: 1}},
		{2, domain.LayoutDescriptor{Columns: 2, Rows: 1}},
		{3, domain.LayoutDescriptor{Columns: 3, Rows: 1}},
		{4, domain.LayoutDescriptor{Columns: 2, Rows: 2}},
		{5, domain.LayoutDescriptor{Columns: 3, Rows: 2}},
		{6, domain.LayoutDescriptor{Columns: 3, Rows: 2}},
		{7, domain.LayoutDescriptor{Columns: 3, Rows: 3}},
		{8, domain.LayoutDescriptor{Columns: 3, Rows: 3}},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("size_%d", tt.size), func(t *testing.T) {
			assert.Equal(t, tt.want, Layout(tt.size))
		})
	}
}
