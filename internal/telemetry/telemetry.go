package telemetry

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Telemetry holds the pipeline's metric instruments. A zero-value instance
// (metrics disabled) is valid: every Record method is a no-op when its
// instrument is nil.
type Telemetry struct {
	meterProvider metric.MeterProvider
	meter         metric.Meter
	exporter      *prometheus.Exporter

	feedFetchesTotal  metric.Int64Counter
	episodesTotal     metric.Int64Counter
	downloadsActive   metric.Int64UpDownCounter
	downloadDuration  metric.Float64Histogram
	bytesWrittenTotal metric.Int64Counter
}

// Config holds telemetry configuration.
type Config struct {
	Enabled        bool
	ServiceName    string
	ServiceVersion string
}

// New creates a new telemetry instance backed by a Prometheus exporter.
func New(ctx context.Context, cfg Config) (*Telemetry, error) {
	if !cfg.Enabled {
		return &Telemetry{}, nil
	}

	exporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
	)
	otel.SetMeterProvider(meterProvider)

	t := &Telemetry{
		meterProvider: meterProvider,
		meter:         otel.Meter(cfg.ServiceName),
		exporter:      exporter,
	}

	if err := t.initializeMetrics(); err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}

	if err := runtime.Start(runtime.WithMinimumReadMemStatsInterval(15 * time.Second)); err != nil {
		return nil, fmt.Errorf("failed to start runtime instrumentation: %w", err)
	}

	return t, nil
}

func (t *Telemetry) initializeMetrics() error {
	var err error

	if t.feedFetchesTotal, err = t.meter.Int64Counter(
		"podfetchd_feed_fetches_total",
		metric.WithDescription("Feed fetch attempts by status"),
	); err != nil {
		return err
	}

	if t.episodesTotal, err = t.meter.Int64Counter(
		"podfetchd_episodes_total",
		metric.WithDescription("Episode download outcomes by status"),
	); err != nil {
		return err
	}

	if t.downloadsActive, err = t.meter.Int64UpDownCounter(
		"podfetchd_downloads_active",
		metric.WithDescription("Episode downloads currently in flight"),
	); err != nil {
		return err
	}

	if t.downloadDuration, err = t.meter.Float64Histogram(
		"podfetchd_download_duration_seconds",
		metric.WithDescription("Episode download duration"),
		metric.WithUnit("s"),
	); err != nil {
		return err
	}

	if t.bytesWrittenTotal, err = t.meter.Int64Counter(
		"podfetchd_bytes_written_total",
		metric.WithDescription("Bytes written to episode files"),
		metric.WithUnit("By"),
	); err != nil {
		return err
	}

	return nil
}

// Handler returns the HTTP handler serving the Prometheus scrape endpoint.
func (t *Telemetry) Handler() http.Handler {
	return promhttp.Handler()
}

// RecordFeedFetch records a feed fetch attempt.
func (t *Telemetry) RecordFeedFetch(status string) {
	if t.feedFetchesTotal != nil {
		t.feedFetchesTotal.Add(context.Background(), 1,
			metric.WithAttributes(attribute.String("status", status)),
		)
	}
}

// RecordEpisode records a terminal episode download outcome.
func (t *Telemetry) RecordEpisode(status string, duration time.Duration) {
	if t.episodesTotal != nil {
		t.episodesTotal.Add(context.Background(), 1,
			metric.WithAttributes(attribute.String("status", status)),
		)
	}

	if t.downloadDuration != nil {
		t.downloadDuration.Record(context.Background(), duration.Seconds(),
			metric.WithAttributes(attribute.String("status", status)),
		)
	}
}

// IncrementActiveDownloads increments the in-flight downloads counter.
func (t *Telemetry) IncrementActiveDownloads() {
	if t.downloadsActive != nil {
		t.downloadsActive.Add(context.Background(), 1)
	}
}

// DecrementActiveDownloads decrements the in-flight downloads counter.
func (t *Telemetry) DecrementActiveDownloads() {
	if t.downloadsActive != nil {
		t.downloadsActive.Add(context.Background(), -1)
	}
}

// AddBytesWritten records bytes written to an episode file.
func (t *Telemetry) AddBytesWritten(n int64) {
	if t.bytesWrittenTotal != nil {
		t.bytesWrittenTotal.Add(context.Background(), n)
	}
}
