package download

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"
	"unicode"

	"podfetchd/internal/feed"
)

// Characters beyond letters and digits that are allowed to survive
// sanitization. No path separators, no control characters.
const allowedPunctuation = ` -_'":()[]{}`

const timestampLayout = "2006-01-02T15:04:05Z"

// Sanitize maps arbitrary text to a filesystem-safe basename. Deterministic
// and idempotent: only letters, digits and allowedPunctuation survive.
func Sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		if strings.ContainsRune(allowedPunctuation, r) {
			return r
		}
		return -1
	}, s)
}

// TargetName derives the on-disk filename for an episode. The SHA-1 of the
// guid makes the name unique per episode; timestamp, podcast and title keep
// it human-readable. Stable across runs, so re-running the pipeline is
// idempotent.
func TargetName(ep *feed.Episode) string {
	sum := sha1.Sum([]byte(ep.GUID))

	base := strings.Join([]string{
		hex.EncodeToString(sum[:]),
		ep.PublishedAt.UTC().Format(timestampLayout),
		ep.Podcast,
		ep.Title,
	}, " ")

	return Sanitize(base) + "." + ep.Suffix()
}
