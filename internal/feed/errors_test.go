package feed

import (
	"errors"
	"fmt"
	"testing"
)

func TestFetchError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *FetchError
		want string
	}{
		{
			name: "with HTTP status code",
			err:  &FetchError{URL: "http://example.com/feed", StatusCode: 503},
			want: "fetch failed for http://example.com/feed (HTTP 503)",
		},
		{
			name: "without HTTP status code",
			err:  &FetchError{URL: "http://example.com/feed", Err: errors.New("connection refused")},
			want: "fetch failed for http://example.com/feed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFetchError_Unwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := &FetchError{URL: "http://example.com/feed", Err: cause}

	wrapped := fmt.Errorf("context: %w", err)
	if !errors.Is(wrapped, cause) {
		t.Error("errors.Is() should find cause in wrapped chain")
	}

	var target *FetchError
	if !errors.As(wrapped, &target) {
		t.Fatal("errors.As() should extract FetchError from wrapped chain")
	}

	if target.URL != "http://example.com/feed" {
		t.Errorf("URL = %q, want %q", target.URL, "http://example.com/feed")
	}
}

func TestParseError_Unwrap(t *testing.T) {
	cause := errors.New("unexpected EOF")
	err := &ParseError{URL: "http://example.com/feed", Err: cause}

	if unwrapped := errors.Unwrap(err); unwrapped != cause {
		t.Errorf("Unwrap() = %v, want %v", unwrapped, cause)
	}

	want := "failed to parse feed http://example.com/feed"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestUnknownZoneError_Error(t *testing.T) {
	err := &UnknownZoneError{Zone: "XST"}

	want := `unknown timezone abbreviation "XST"`
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
