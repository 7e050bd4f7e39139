package domain

import (
	"fmt"
	"time"
)

type StreamID string
type VideoID string

// Stream is one active video pane in a session's grid.
type Stream struct {
	ID           StreamID  `json:"id"`
	SourceURL    string    `json:"source_url"`
	VideoID      VideoID   `json:"video_id"`
	Title        string    `json:"title"`
	ThumbnailURL string    `json:"thumbnail_url"`
	IsPlaying    bool      `json:"is_playing"`
	IsMuted      bool      `json:"is_muted"`
	AddedAt      time.Time `json:"added_at"`
}

// EmbedURL is the address handed to the embeddable player for this pane.
func (s Stream) EmbedURL() string {
	return fmt.Sprintf("https://www.youtube.com/embed/%s?autoplay=%d&mute=%d&rel=0",
		s.VideoID, boolToInt(s.IsPlaying), boolToInt(s.IsMuted))
}

// LayoutDescriptor tells the grid renderer how to arrange the panes.
type LayoutDescriptor struct {
	Empty   bool `json:"empty"`
	Columns int  `json:"columns"`
	Rows    int  `json:"rows"`
}

// Mutation is reported by a stream collection after every accepted add or remove.
type Mutation struct {
	Type    EventType
	VideoID VideoID
	Size    int
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
