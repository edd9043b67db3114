package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/jessevdk/go-flags"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"podfetchd/internal/cleanup"
	"podfetchd/internal/config"
	"podfetchd/internal/download"
	"podfetchd/internal/feed"
	"podfetchd/internal/logctx"
	"podfetchd/internal/pipeline"
	"podfetchd/internal/storage"
	"podfetchd/internal/storage/sqlite"
	"podfetchd/internal/telemetry"
)

var opts struct {
	TargetDir string `short:"t" long:"target-dir" description:"directory to store episodes (overrides TARGET_DIR)"`
	Cleanup   bool   `long:"cleanup" description:"remove stale progress files before downloading"`
	NoHistory bool   `long:"no-history" description:"skip recording downloads in the history database"`

	Args struct {
		FeedURLs []string `positional-arg-name:"feed-url" description:"feed URLs appended to the built-in list"`
	} `positional-args:"yes"`
}

func main() {
	p := flags.NewParser(&opts, flags.PassDoubleDash|flags.HelpFlag)
	if _, err := p.Parse(); err != nil {
		if err.(*flags.Error).Type != flags.ErrHelp {
			fmt.Printf("%v\n", err)
			os.Exit(1)
		}
		p.WriteHelp(os.Stderr)
		os.Exit(2)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("config error", "err", err)
		os.Exit(1)
	}

	if opts.TargetDir != "" {
		cfg.TargetDir = opts.TargetDir
	}

	logger := slog.New(newLogHandler(cfg))
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	slog.Info("podfetchd starting...", "log_level", cfg.LogLevel, "target_dir", cfg.TargetDir)

	if err := run(logctx.WithLogger(ctx, logger), cfg); err != nil {
		slog.Error("fatal error", "err", err)
		os.Exit(1)
	}
}

func newLogHandler(cfg *config.Config) slog.Handler {
	hopts := &slog.HandlerOptions{Level: cfg.SlogLevel()}

	if cfg.LogFormat == "json" {
		return slog.NewJSONHandler(os.Stdout, hopts)
	}

	return slog.NewTextHandler(os.Stdout, hopts)
}

func run(ctx context.Context, cfg *config.Config) error {
	logger := logctx.LoggerFromContext(ctx)

	// =========================================================================
	// Start Telemetry
	tel, err := telemetry.New(ctx, telemetry.Config{
		Enabled:     cfg.Metrics.Enabled,
		ServiceName: "podfetchd",
	})
	if err != nil {
		return fmt.Errorf("failed to setup telemetry: %w", err)
	}

	if cfg.Metrics.Enabled {
		go func() {
			logger.Info("serving metrics", "host", cfg.Metrics.BindAddress)

			if err := setupMetricsServer(ctx, tel, cfg).ListenAndServe(); err != nil {
				logger.Error("metrics server error", "err", err)
			}
		}()
	}

	// =========================================================================
	// Start Cleanup
	if opts.Cleanup {
		removed, err := cleanup.RemoveStaleProgressFiles(ctx, cfg.TargetDir, download.ProgressSuffix, cfg.StaleProgressAfter)
		if err != nil {
			return fmt.Errorf("failed to clean up stale progress files: %w", err)
		}

		logger.Info("cleaned up stale progress files", "removed", removed)
	}

	// =========================================================================
	// Start History Database
	var history *sqlite.HistoryRepository

	if !opts.NoHistory {
		database, err := sqlite.InitDB(cfg.HistoryDBPath)
		if err != nil {
			return fmt.Errorf("failed to open history database: %w", err)
		}
		defer database.Close()

		history = sqlite.NewHistoryRepository(database)
	}

	// =========================================================================
	// Start Pipeline
	// One pooled client shared by feed fetches and episode downloads. No
	// client-level timeout: transfers run to completion or failure.
	client := &http.Client{
		Transport: otelhttp.NewTransport(&http.Transport{
			MaxConnsPerHost:     cfg.MaxConnsPerHost,
			MaxIdleConnsPerHost: cfg.MaxConnsPerHost,
		}),
	}

	downloader := download.NewDownloader(client, cfg.TargetDir, cfg.MaxParallel, tel)
	defer downloader.Close()

	consumeDownloadEvents(ctx, downloader)

	pipe := pipeline.New(
		feed.NewFetcher(client, cfg.FeedTimeout),
		feed.NewParser(),
		downloader,
		historyOrNil(history),
		tel,
	)

	return pipe.Run(ctx, cfg.FeedURLs(opts.Args.FeedURLs))
}

// historyOrNil keeps the pipeline's nil check honest: a nil *HistoryRepository
// wrapped in a non-nil interface would dodge it.
func historyOrNil(h *sqlite.HistoryRepository) storage.HistoryWriteRepository {
	if h == nil {
		return nil
	}

	return h
}

func consumeDownloadEvents(ctx context.Context, downloader *download.Downloader) {
	logger := logctx.LoggerFromContext(ctx)

	go func() {
		for event := range downloader.OnEpisodeDownloaded {
			logger.Info("episode downloaded",
				"podcast", event.Episode.Podcast,
				"title", event.Episode.Title,
				"file", filepath.Base(event.Path),
			)
		}
	}()

	go func() {
		for event := range downloader.OnEpisodeDownloadError {
			logger.Error("episode download failed",
				"podcast", event.Episode.Podcast,
				"title", event.Episode.Title,
				"err", event.Err,
			)
		}
	}()
}

// setupMetricsServer prepares the http server exposing the Prometheus scrape
// endpoint.
func setupMetricsServer(ctx context.Context, tel *telemetry.Telemetry, cfg *config.Config) *http.Server {
	r := chi.NewRouter()
	r.Handle("/metrics", tel.Handler())

	return &http.Server{
		Addr:    cfg.Metrics.BindAddress,
		Handler: r,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}
}
