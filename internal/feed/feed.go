package feed

import (
	"path"
	"strings"
	"time"
)

// defaultSuffix is used when neither the enclosure URL nor its MIME type
// reveal a file extension.
const defaultSuffix = "mp3"

// Enclosure describes the downloadable media attachment of an episode.
type Enclosure struct {
	URL    string
	Length int64
	Type   string
}

// Episode is one downloadable item of a feed.
type Episode struct {
	Podcast     string
	Title       string
	GUID        string
	PublishedAt time.Time
	Enclosure   Enclosure
}

// Feed is a fetched podcast feed. Transient: rebuilt from the source XML on
// every run, never persisted.
type Feed struct {
	URL      string
	Title    string
	Episodes []*Episode
}

// Suffix returns the file extension for the episode's media file: the part of
// the enclosure URL path after the last period, falling back to the declared
// MIME type when the path carries no extension.
func (e *Episode) Suffix() string {
	if ext := strings.TrimPrefix(path.Ext(urlPath(e.Enclosure.URL)), "."); ext != "" {
		return ext
	}

	switch e.Enclosure.Type {
	case "audio/mpeg", "audio/mp3":
		return "mp3"
	case "audio/mp4", "audio/x-m4a":
		return "m4a"
	case "audio/ogg":
		return "ogg"
	}

	return defaultSuffix
}

// urlPath strips query and fragment so path.Ext doesn't pick up extensions
// from query parameters.
func urlPath(rawURL string) string {
	if i := strings.IndexAny(rawURL, "?#"); i >= 0 {
		rawURL = rawURL[:i]
	}

	return rawURL
}
