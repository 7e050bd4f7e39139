package utils

import (
	"fmt"

	"github.com/google/uuid"
)

// GenerateID returns prefix_<uuid>.
func GenerateID(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, uuid.NewString())
}

func GenerateStreamID() string {
	return GenerateID("stream")
}

func GenerateSessionID() string {
	return GenerateID("session")
}

func GenerateEventID() string {
	return GenerateID("evt")
}

func GenerateRequestID() string {
	return GenerateID("req")
}
