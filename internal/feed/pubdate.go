package feed

import (
	"fmt"
	"strings"
	"time"
)

const (
	pubDateLayout        = "Mon, 02 Jan 2006 15:04:05"
	pubDateNumericLayout = pubDateLayout + " -0700"
)

// zoneOffsets maps the timezone abbreviations seen in real-world feeds to
// their UTC offsets. Feeds inconsistently use numeric and named offsets;
// anything outside this table is an error, never silently assumed UTC.
var zoneOffsets = map[string]time.Duration{
	"UTC":  0,
	"GMT":  0,
	"CET":  1 * time.Hour,
	"CEST": 2 * time.Hour,
	"EST":  -5 * time.Hour,
	"EDT":  -4 * time.Hour,
	"PST":  -8 * time.Hour,
	"PDT":  -7 * time.Hour,
}

// ParsePubDate parses an RSS pubDate string into a UTC instant. Numeric
// offsets ("-0500") are tried first; a trailing timezone abbreviation is
// resolved against zoneOffsets.
func ParsePubDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)

	if t, err := time.Parse(pubDateNumericLayout, value); err == nil {
		return t.UTC(), nil
	}

	i := strings.LastIndex(value, " ")
	if i < 0 {
		return time.Time{}, fmt.Errorf("malformed pub date %q", value)
	}

	stamp, zone := value[:i], value[i+1:]

	offset, ok := zoneOffsets[zone]
	if !ok {
		return time.Time{}, &UnknownZoneError{Zone: zone}
	}

	t, err := time.Parse(pubDateLayout, stamp)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse pub date %q: %w", value, err)
	}

	return t.Add(-offset).UTC(), nil
}
