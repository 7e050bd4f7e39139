package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	MaxIDLength        = 128
	MaxSourceURLLength = 2048
)

// IDRegex matches session, stream and actor ids.
var IDRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// ValidateID checks a path identifier before it is looked up.
func ValidateID(id, fieldName string) error {
	if id == "" {
		return fmt.Errorf("%s is required", fieldName)
	}
	if len(id) > MaxIDLength {
		return fmt.Errorf("%s is too long (max %d characters)", fieldName, MaxIDLength)
	}
	if !IDRegex.MatchString(id) {
		return fmt.Errorf("%s contains invalid characters (only letters, numbers, _, - allowed)", fieldName)
	}
	return nil
}

// ValidateSourceInput bounds the raw text submitted as a video source. It
// does not decide whether the text names a video.
func ValidateSourceInput(s string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("url is required")
	}
	if len(s) > MaxSourceURLLength {
		return fmt.Errorf("url is too long (max %d characters)", MaxSourceURLLength)
	}
	if !utf8.ValidString(s) {
		return fmt.Errorf("url contains invalid UTF-8 characters")
	}
	return nil
}
