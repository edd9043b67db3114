package cleanup

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"podfetchd/internal/logctx"
)

// RemoveStaleProgressFiles deletes leftover in-flight download markers from
// interrupted runs. Only files older than olderThan are removed, so markers
// belonging to a concurrently running instance are left alone. Returns the
// number of files removed.
func RemoveStaleProgressFiles(ctx context.Context, dir string, suffix string, olderThan time.Duration) (int, error) {
	logger := logctx.LoggerFromContext(ctx)
	now := time.Now()

	matches, err := filepath.Glob(filepath.Join(dir, "*"+suffix))
	if err != nil {
		return 0, err
	}

	removed := 0

	for _, path := range matches {
		info, err := os.Stat(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue // already deleted
			}

			logger.Error("failed to stat progress file", "file", path, "err", err)

			return removed, err
		}

		if now.Sub(info.ModTime()) <= olderThan {
			continue
		}

		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			logger.Error("failed to delete stale progress file", "file", path, "err", err)

			return removed, err
		}

		logger.Info("deleted stale progress file", "file", path)

		removed++
	}

	return removed, nil
}
