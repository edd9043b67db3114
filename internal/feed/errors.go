package feed

import "fmt"

// FetchError represents a failed HTTP retrieval of a feed or an enclosure,
// including non-2xx responses. Fetches are a single best-effort attempt; the
// caller decides whether the failure is fatal for its unit of work.
type FetchError struct {
	URL        string // The URL that could not be retrieved
	StatusCode int    // HTTP status code, if a response was received (0 otherwise)
	Err        error  // Underlying error, if any
}

func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch failed for %s (HTTP %d)", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch failed for %s", e.URL)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// ParseError represents malformed feed XML. Fatal for that feed only, never
// for the pipeline as a whole.
type ParseError struct {
	URL string // Source URL of the feed that failed to parse
	Err error  // Underlying parser error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse feed %s", e.URL)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// UnknownZoneError represents a pubDate with a timezone abbreviation missing
// from the known offset table.
type UnknownZoneError struct {
	Zone string // The unrecognized abbreviation
}

func (e *UnknownZoneError) Error() string {
	return fmt.Sprintf("unknown timezone abbreviation %q", e.Zone)
}
