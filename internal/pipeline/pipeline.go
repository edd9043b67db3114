package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"podfetchd/internal/download"
	"podfetchd/internal/feed"
	"podfetchd/internal/logctx"
	"podfetchd/internal/storage"
	"podfetchd/internal/telemetry"
)

// Pipeline drives the feed-to-download flow: fetch each configured feed,
// parse it, and download every eligible episode. Feeds are processed
// concurrently with each other; failures are isolated per feed and per
// episode.
type Pipeline struct {
	fetcher    *feed.Fetcher
	parser     *feed.Parser
	downloader *download.Downloader
	history    storage.HistoryWriteRepository
	tel        *telemetry.Telemetry
}

func New(
	fetcher *feed.Fetcher,
	parser *feed.Parser,
	downloader *download.Downloader,
	history storage.HistoryWriteRepository,
	tel *telemetry.Telemetry,
) *Pipeline {
	return &Pipeline{
		fetcher:    fetcher,
		parser:     parser,
		downloader: downloader,
		history:    history,
		tel:        tel,
	}
}

// Run processes every feed URL to completion. One broken feed never aborts
// the others; the first per-feed error is reported after all feeds have
// reached a terminal state.
func (p *Pipeline) Run(ctx context.Context, feedURLs []string) error {
	logger := logctx.LoggerFromContext(ctx)

	// Plain errgroup.Group on purpose: no shared cancellation, a failing
	// feed must not tear down its siblings.
	var wg errgroup.Group

	for _, url := range feedURLs {
		wg.Go(func() error {
			if err := p.processFeed(ctx, url); err != nil {
				logger.Error("failed to process feed", "feed_url", url, "err", err)

				return fmt.Errorf("failed to process feed %s: %w", url, err)
			}

			return nil
		})
	}

	return wg.Wait()
}

func (p *Pipeline) processFeed(ctx context.Context, url string) error {
	logger := logctx.LoggerFromContext(ctx).With("feed_url", url)

	body, err := p.fetcher.Fetch(ctx, url)
	if err != nil {
		p.tel.RecordFeedFetch("error")

		return err
	}

	p.tel.RecordFeedFetch("success")

	f, err := p.parser.Parse(ctx, url, body)
	if err != nil {
		return err
	}

	for _, ep := range f.Episodes {
		logger.Info("episode",
			"podcast", ep.Podcast,
			"published_at", ep.PublishedAt.Format(time.RFC3339),
			"title", ep.Title,
		)
	}

	results, err := p.downloader.DownloadFeed(ctx, f)

	for _, res := range results {
		p.trackEpisode(ctx, url, res)
	}

	if err != nil {
		return err
	}

	logger.Info("feed processed", "podcast", f.Title, "episodes", len(f.Episodes), "downloaded", len(results))

	return nil
}

// trackEpisode archives a completed download. The archive is informative
// only, so a write failure is logged and swallowed.
func (p *Pipeline) trackEpisode(ctx context.Context, feedURL string, res *download.Result) {
	if p.history == nil {
		return
	}

	logger := logctx.LoggerFromContext(ctx)

	rec := storage.EpisodeRecord{
		GUID:     res.Episode.GUID,
		FeedURL:  feedURL,
		FileName: filepath.Base(res.Path),
		Bytes:    res.Bytes,
	}

	if err := p.history.TrackEpisode(rec); err != nil {
		logger.Warn("failed to record episode in history", "guid", rec.GUID, "err", err)
	}
}
