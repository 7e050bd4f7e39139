// Package videoid extracts YouTube video identifiers from the URL shapes users
// paste into the grid.
package videoid

import (
	"fmt"
	"regexp"
)

// Parser returns the captured identifier and whether the input matched.
type Parser struct {
	Name  string
	match func(string) (string, bool)
}

func (p Parser) Parse(url string) (string, bool) {
	return p.match(url)
}

func regexParser(name, pattern string) Parser {
	re := regexp.MustCompile(pattern)
	return Parser{
		Name: name,
		match: func(url string) (string, bool) {
			m := re.FindStringSubmatch(url)
			if m == nil || m[1] == "" {
				return "", false
			}
			return m[1], true
		},
	}
}

// Order matters: the first parser that matches wins.
var parsers = []Parser{
	regexParser("watch", `(?:https?://)?(?:www\.)?youtube\.com/watch\?v=([^&\n?#]+)`),
	regexParser("short", `(?:https?://)?(?:www\.)?youtu\.be/([^&\n?#]+)`),
	regexParser("embed", `(?:https?://)?(?:www\.)?youtube\.com/embed/([^&\n?#]+)`),
}

// Parsers returns the recognized URL shapes in match order.
func Parsers() []Parser {
	out := make([]Parser, len(parsers))
	copy(out, parsers)
	return out
}

// Extract returns the video identifier of url. The identifier is whatever
// follows the recognized prefix up to the next '&', '?', '#' or end of input.
func Extract(url string) (string, bool) {
	for _, p := range parsers {
		if id, ok := p.Parse(url); ok {
			return id, true
		}
	}
	return "", false
}

func WatchURL(id string) string {
	return "https://www.youtube.com/watch?v=" + id
}

func ShortURL(id string) string {
	return "https://youtu.be/" + id
}

func EmbedURL(id string) string {
	return "https://www.youtube.com/embed/" + id
}

func ThumbnailURL(id string) string {
	return fmt.Sprintf("https://img.youtube.com/vi/%s/mqdefault.jpg", id)
}

// PlaceholderTitle names a pane until real metadata is available.
func PlaceholderTitle(position int) string {
	return fmt.Sprintf("YouTube Video %d", position)
}
