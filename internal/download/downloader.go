package download

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"podfetchd/internal/download/progress"
	"podfetchd/internal/feed"
	"podfetchd/internal/logctx"
	"podfetchd/internal/telemetry"
)

const (
	dirPerm = 0755

	// copyBufSize is the chunk size for streaming enclosure bodies to disk.
	copyBufSize = 16 * 1024

	// ProgressSuffix marks an in-flight download. The temp path is renamed
	// to the final target only after the whole body has been written.
	ProgressSuffix = ".progress"

	progressInterval = int64(10 * 1024 * 1024) // 10MB between progress log lines
)

// Result is the terminal state of one episode download.
type Result struct {
	Episode *feed.Episode
	Path    string
	Bytes   int64
	Err     error
}

// Downloader streams episode enclosures to disk with bounded parallelism.
type Downloader struct {
	client      *http.Client
	targetDir   string
	maxParallel int
	tel         *telemetry.Telemetry

	OnEpisodeDownloaded    chan *Result
	OnEpisodeDownloadError chan *Result
}

func NewDownloader(client *http.Client, targetDir string, maxParallel int, tel *telemetry.Telemetry) *Downloader {
	return &Downloader{
		client:      client,
		targetDir:   targetDir,
		maxParallel: maxParallel,
		tel:         tel,

		OnEpisodeDownloaded:    make(chan *Result),
		OnEpisodeDownloadError: make(chan *Result),
	}
}

func (d *Downloader) Close() {
	close(d.OnEpisodeDownloaded)
	close(d.OnEpisodeDownloadError)
}

// TargetPath returns the final on-disk path for an episode.
func (d *Downloader) TargetPath(ep *feed.Episode) string {
	return filepath.Join(d.targetDir, TargetName(ep))
}

// DownloadFeed downloads every eligible episode of the feed concurrently and
// returns the successful results. An episode whose target file already exists
// is skipped without issuing a request. A failed episode is reported through
// OnEpisodeDownloadError and never cancels its siblings.
func (d *Downloader) DownloadFeed(ctx context.Context, f *feed.Feed) ([]*Result, error) {
	logger := logctx.LoggerFromContext(ctx).With("podcast", f.Title)

	var (
		wg        errgroup.Group
		mu        sync.Mutex
		succeeded []*Result
		failed    int32
	)

	sem := make(chan struct{}, d.maxParallel)

	for i := range f.Episodes {
		ep := f.Episodes[i]

		targetPath := d.TargetPath(ep)
		if _, err := os.Stat(targetPath); err == nil {
			logger.Debug("episode already downloaded", "guid", ep.GUID, "target", targetPath)

			continue
		}

		sem <- struct{}{}

		wg.Go(func() error {
			defer func() { <-sem }() // release the slot

			res := d.downloadEpisode(ctx, ep, targetPath)
			if res.Err != nil {
				logger.Error("failed to download episode", "guid", ep.GUID, "title", ep.Title, "err", res.Err)

				atomic.AddInt32(&failed, 1)

				d.OnEpisodeDownloadError <- res

				return nil
			}

			mu.Lock()
			succeeded = append(succeeded, res)
			mu.Unlock()

			d.OnEpisodeDownloaded <- res

			return nil
		})
	}

	if err := wg.Wait(); err != nil {
		return succeeded, fmt.Errorf("failed to download episodes: %w", err)
	}

	if n := atomic.LoadInt32(&failed); n > 0 {
		return succeeded, fmt.Errorf("%d of %d episode downloads failed", n, int(n)+len(succeeded))
	}

	return succeeded, nil
}

// downloadEpisode streams one enclosure to <target>.progress and renames it
// to the final target once the full body has been written. On any transport
// failure the temp file is left behind and the final target is never created.
func (d *Downloader) downloadEpisode(ctx context.Context, ep *feed.Episode, targetPath string) *Result {
	logger := logctx.LoggerFromContext(ctx).With("guid", ep.GUID)
	res := &Result{Episode: ep, Path: targetPath}

	d.tel.IncrementActiveDownloads()
	defer d.tel.DecrementActiveDownloads()

	start := time.Now()

	written, err := d.transfer(ctx, ep, targetPath, logger)
	res.Bytes = written

	if err != nil {
		res.Err = err

		d.tel.RecordEpisode("error", time.Since(start))

		return res
	}

	d.tel.RecordEpisode("success", time.Since(start))
	d.tel.AddBytesWritten(written)

	logger.Info("downloaded and saved episode", "target", targetPath, "size", humanize.Bytes(uint64(written)))

	return res
}

func (d *Downloader) transfer(ctx context.Context, ep *feed.Episode, targetPath string, logger *slog.Logger) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ep.Enclosure.URL, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to build enclosure request: %w", err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, &feed.FetchError{URL: ep.Enclosure.URL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return 0, &feed.FetchError{URL: ep.Enclosure.URL, StatusCode: resp.StatusCode}
	}

	if err := os.MkdirAll(filepath.Dir(targetPath), dirPerm); err != nil {
		return 0, fmt.Errorf("failed to create target directory: %w", err)
	}

	tmpPath := targetPath + ProgressSuffix

	out, err := os.Create(tmpPath)
	if err != nil {
		return 0, fmt.Errorf("failed to create progress file: %w", err)
	}

	total := ep.Enclosure.Length
	if total == 0 {
		total = resp.ContentLength
	}

	logger.Info("downloading episode", "title", ep.Title, "size", humanize.Bytes(uint64(max(total, 0))))

	pr := progress.NewReader(resp.Body, total, progressInterval, func(written, total int64) {
		if total > 0 {
			logger.Debug("download progress",
				"url", ep.Enclosure.URL,
				"downloaded", humanize.Bytes(uint64(written)),
				"total", humanize.Bytes(uint64(total)),
				"percent", humanize.FtoaWithDigits(float64(written)*100/float64(total), 2))
		} else {
			logger.Debug("download progress", "url", ep.Enclosure.URL, "downloaded", humanize.Bytes(uint64(written)))
		}
	})

	// Strip *os.File's ReadFrom so the copy actually runs through the
	// fixed-size buffer and the progress reader sees every chunk.
	buf := make([]byte, copyBufSize)
	if _, err := io.CopyBuffer(struct{ io.Writer }{out}, pr, buf); err != nil {
		out.Close()

		// The progress file stays behind; the final target is never created.
		return pr.Written(), fmt.Errorf("failed to write episode body: %w", err)
	}

	if err := out.Close(); err != nil {
		return pr.Written(), fmt.Errorf("failed to close progress file: %w", err)
	}

	if err := os.Rename(tmpPath, targetPath); err != nil {
		return pr.Written(), fmt.Errorf("failed to publish episode file: %w", err)
	}

	return pr.Written(), nil
}
