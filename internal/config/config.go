package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// defaultFeedURLs is the built-in feed list. Positional CLI arguments are
// appended to it.
var defaultFeedURLs = []string{
	"http://feeds.feedburner.com/dancarlin/history?format=xml",
}

// Config struct for environment variables.
type Config struct {
	TargetDir       string        `envconfig:"TARGET_DIR" default:"."`
	MaxParallel     int           `envconfig:"MAX_PARALLEL" default:"5"`
	MaxConnsPerHost int           `envconfig:"MAX_CONNS_PER_HOST" default:"4"`
	FeedTimeout     time.Duration `envconfig:"FEED_TIMEOUT" default:"30s"`
	LogLevel        string        `envconfig:"LOG_LEVEL" default:"INFO"`
	LogFormat       string        `envconfig:"LOG_FORMAT" default:"text"`
	HistoryDBPath   string        `envconfig:"HISTORY_DB_PATH" default:"episodes.db"`

	// Progress markers older than this are removed when cleanup is
	// requested; in-flight markers of a live run stay untouched.
	StaleProgressAfter time.Duration `envconfig:"STALE_PROGRESS_AFTER" default:"24h"`

	Metrics struct {
		Enabled     bool   `split_words:"true"`
		BindAddress string `split_words:"true" default:"0.0.0.0:9090"`
	}
}

// LoadConfig reads environment variables and populates the Config struct.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("PODFETCHD", &cfg); err != nil {
		return nil, fmt.Errorf("error processing env: %w", err)
	}

	return &cfg, nil
}

// FeedURLs returns the built-in feed list with the given extra URLs appended.
func (c *Config) FeedURLs(extra []string) []string {
	urls := make([]string, 0, len(defaultFeedURLs)+len(extra))
	urls = append(urls, defaultFeedURLs...)
	urls = append(urls, extra...)

	return urls
}

func (c *Config) SlogLevel() slog.Level {
	switch strings.ToUpper(c.LogLevel) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
