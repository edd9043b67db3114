package feed

import (
	"bytes"
	"context"
	"strconv"
	"unicode/utf8"

	"github.com/mmcdole/gofeed"

	"podfetchd/internal/logctx"
)

// Display-length bounds keep derived filenames within filesystem limits.
const (
	maxPodcastLen = 60
	maxTitleLen   = 120
)

// Parser walks parsed feed XML into typed Episodes. gofeed supplies the
// RSS/iTunes-namespace traversal; pubDate strings are re-parsed with
// ParsePubDate so named-timezone handling stays explicit.
type Parser struct {
	gofeedParser *gofeed.Parser
}

func NewParser() *Parser {
	return &Parser{gofeedParser: gofeed.NewParser()}
}

// Parse converts raw feed XML into a Feed. Items lacking an enclosure or a
// parseable pubDate are reported and skipped, never a fatal parse error.
// Malformed XML is fatal for this feed only and surfaces as a ParseError.
func (p *Parser) Parse(ctx context.Context, url string, data []byte) (*Feed, error) {
	logger := logctx.LoggerFromContext(ctx).With("feed_url", url)

	parsed, err := p.gofeedParser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, &ParseError{URL: url, Err: err}
	}

	feed := &Feed{
		URL:      url,
		Title:    truncate(parsed.Title, maxPodcastLen),
		Episodes: make([]*Episode, 0, len(parsed.Items)),
	}

	for _, item := range parsed.Items {
		if len(item.Enclosures) == 0 || item.Enclosures[0].URL == "" {
			logger.Warn("item has no enclosure, skipping", "title", item.Title)

			continue
		}

		publishedAt, err := ParsePubDate(item.Published)
		if err != nil {
			logger.Warn("item has unparseable pub date, skipping", "title", item.Title, "err", err)

			continue
		}

		enc := item.Enclosures[0]

		length, err := strconv.ParseInt(enc.Length, 10, 64)
		if err != nil {
			logger.Debug("item declares no usable enclosure length", "title", item.Title)

			length = 0
		}

		guid := item.GUID
		if guid == "" {
			// Dedup hashing needs a stable identifier; the link is the
			// best substitute feeds actually provide.
			guid = item.Link
		}

		feed.Episodes = append(feed.Episodes, &Episode{
			Podcast:     feed.Title,
			Title:       truncate(item.Title, maxTitleLen),
			GUID:        guid,
			PublishedAt: publishedAt,
			Enclosure: Enclosure{
				URL:    enc.URL,
				Length: length,
				Type:   enc.Type,
			},
		})
	}

	logger.Debug("parsed feed", "podcast", feed.Title, "episodes", len(feed.Episodes))

	return feed, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}

	// Back up to a rune boundary so truncation never produces invalid UTF-8.
	for i := max; i > 0; i-- {
		if utf8.RuneStart(s[i]) {
			return s[:i]
		}
	}

	return ""
}
