package domain

import "time"

type Favorite struct {
	ActorID   ActorID   `json:"user_id"`
	VideoID   VideoID   `json:"youtube_video_id"`
	Title     string    `json:"video_title"`
	Thumbnail string    `json:"video_thumbnail"`
	AddedAt   time.Time `json:"added_at"`
}
