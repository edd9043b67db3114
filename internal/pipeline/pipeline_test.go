package pipeline

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"podfetchd/internal/download"
	"podfetchd/internal/feed"
	"podfetchd/internal/storage"
	"podfetchd/internal/storage/sqlite"
	"podfetchd/internal/telemetry"
)

type feedServer struct {
	*httptest.Server

	feedRequests      atomic.Int32
	enclosureRequests atomic.Int32
}

// newFeedServer serves a single-item feed and its 1000-byte enclosure,
// counting requests to each.
func newFeedServer(t *testing.T, guid string, enclosureStatus int) *feedServer {
	t.Helper()

	fs := &feedServer{}

	mux := http.NewServeMux()

	mux.HandleFunc("/feed", func(w http.ResponseWriter, r *http.Request) {
		fs.feedRequests.Add(1)

		feedXML := fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:itunes="http://www.itunes.com/dtds/podcast-1.0.dtd">
  <channel>
    <title>Test Podcast</title>
    <item>
      <title>Show 123</title>
      <guid>%s</guid>
      <pubDate>Wed, 02 Oct 2024 10:00:00 EST</pubDate>
      <enclosure url="%s/ep.mp3" length="1000" type="audio/mpeg"/>
    </item>
  </channel>
</rss>`, guid, fs.URL)

		w.Write([]byte(feedXML))
	})

	mux.HandleFunc("/ep.mp3", func(w http.ResponseWriter, r *http.Request) {
		fs.enclosureRequests.Add(1)

		if enclosureStatus != http.StatusOK {
			w.WriteHeader(enclosureStatus)

			return
		}

		w.Write(make([]byte, 1000))
	})

	fs.Server = httptest.NewServer(mux)
	t.Cleanup(fs.Close)

	return fs
}

func newTestPipeline(t *testing.T, targetDir string, history storage.HistoryWriteRepository) *Pipeline {
	t.Helper()

	tel, err := telemetry.New(context.Background(), telemetry.Config{})
	require.NoError(t, err)

	downloader := download.NewDownloader(http.DefaultClient, targetDir, 2, tel)
	t.Cleanup(downloader.Close)

	go func() {
		for range downloader.OnEpisodeDownloaded {
		}
	}()
	go func() {
		for range downloader.OnEpisodeDownloadError {
		}
	}()

	return New(
		feed.NewFetcher(http.DefaultClient, 10*time.Second),
		feed.NewParser(),
		downloader,
		history,
		tel,
	)
}

func TestRun_DownloadsOnceAndIsIdempotent(t *testing.T) {
	fs := newFeedServer(t, "abc", http.StatusOK)

	dir := t.TempDir()
	p := newTestPipeline(t, dir, nil)

	require.NoError(t, p.Run(context.Background(), []string{fs.URL + "/feed"}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	name := entries[0].Name()

	// sha1("abc") leads the filename; the suffix comes from the enclosure URL.
	assert.True(t, strings.HasPrefix(name, "a9993e364706816aba3e25717850c26c9cd0d89d"),
		"unexpected file name %q", name)
	assert.True(t, strings.HasSuffix(name, ".mp3"), "unexpected file name %q", name)

	info, err := os.Stat(filepath.Join(dir, name))
	require.NoError(t, err)
	assert.Equal(t, int64(1000), info.Size())

	// Second run: feed is re-fetched, but the episode is already on disk so
	// zero additional enclosure requests are issued.
	require.NoError(t, p.Run(context.Background(), []string{fs.URL + "/feed"}))

	assert.Equal(t, int32(2), fs.feedRequests.Load())
	assert.Equal(t, int32(1), fs.enclosureRequests.Load())
}

func TestRun_EnclosureNotFoundDoesNotAbortPipeline(t *testing.T) {
	broken := newFeedServer(t, "broken-ep", http.StatusNotFound)
	healthy := newFeedServer(t, "healthy-ep", http.StatusOK)

	dir := t.TempDir()
	p := newTestPipeline(t, dir, nil)

	err := p.Run(context.Background(), []string{broken.URL + "/feed", healthy.URL + "/feed"})

	// The broken feed's failure is reported...
	require.Error(t, err)

	// ...but no file exists for it (a 404 aborts before any temp file is
	// created), and the healthy feed's episode was still downloaded.
	entries, readErr := os.ReadDir(dir)
	require.NoError(t, readErr)
	require.Len(t, entries, 1)
	assert.False(t, strings.HasSuffix(entries[0].Name(), ".progress"))
}

func TestRun_RecordsDownloadHistory(t *testing.T) {
	fs := newFeedServer(t, "abc", http.StatusOK)

	db, err := sqlite.InitDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	dir := t.TempDir()
	p := newTestPipeline(t, dir, sqlite.NewHistoryRepository(db))

	require.NoError(t, p.Run(context.Background(), []string{fs.URL + "/feed"}))

	episodes, err := sqlite.NewHistoryRepository(db).GetEpisodes()
	require.NoError(t, err)
	require.Len(t, episodes, 1)

	assert.Equal(t, "abc", episodes[0].GUID)
	assert.Equal(t, fs.URL+"/feed", episodes[0].FeedURL)
	assert.Equal(t, int64(1000), episodes[0].Bytes)
}

func TestRun_BrokenFeedDoesNotAbortOthers(t *testing.T) {
	badFeed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	defer badFeed.Close()

	healthy := newFeedServer(t, "abc", http.StatusOK)

	dir := t.TempDir()
	p := newTestPipeline(t, dir, nil)

	err := p.Run(context.Background(), []string{badFeed.URL + "/feed", healthy.URL + "/feed"})
	require.Error(t, err)

	// The healthy feed was fully processed despite the broken sibling.
	assert.Equal(t, int32(1), healthy.enclosureRequests.Load())

	entries, readErr := os.ReadDir(dir)
	require.NoError(t, readErr)
	assert.Len(t, entries, 1)
}
