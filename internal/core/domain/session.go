package domain

import "time"

type SessionID string

// ActorID identifies a signed-in user. The zero value means nobody is signed in.
type ActorID string

func (a ActorID) IsAnonymous() bool {
	return a == ""
}

type Session struct {
	ID        SessionID `json:"id"`
	Actor     ActorID   `json:"actor,omitempty"`
	Tier      Tier      `json:"tier"`
	Capacity  int       `json:"capacity"`
	CreatedAt time.Time `json:"created_at"`
	// StartedAt stays zero until the first non-empty composition.
	StartedAt time.Time `json:"started_at,omitempty"`
}

func (s Session) Started() bool {
	return !s.StartedAt.IsZero()
}

// SessionView is a read snapshot of a session and its grid.
type SessionView struct {
	Session Session          `json:"session"`
	Streams []Stream         `json:"streams"`
	Layout  LayoutDescriptor `json:"layout"`
}

// SessionSummary is the final record written when a session ends.
type SessionSummary struct {
	SessionID       SessionID `json:"session_id"`
	ActorID         ActorID   `json:"user_id,omitempty"`
	VideoIDs        []string  `json:"youtube_video_ids"`
	ScreenCount     int       `json:"screen_count"`
	DurationSeconds int64     `json:"duration_seconds"`
	StartedAt       time.Time `json:"started_at"`
	EndedAt         time.Time `json:"ended_at"`
}
