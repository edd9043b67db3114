package sqlite

import (
	"database/sql"
	"time"

	"podfetchd/internal/storage"
)

type HistoryRepository struct {
	db *sql.DB
}

func NewHistoryRepository(dbConn *sql.DB) *HistoryRepository {
	return &HistoryRepository{db: dbConn}
}

// TrackEpisode records a completed download. Re-tracking the same guid is a
// no-op so replayed runs never fail on the archive.
func (r *HistoryRepository) TrackEpisode(rec storage.EpisodeRecord) error {
	_, err := r.db.Exec(`
		INSERT INTO episodes (guid, feed_url, file_name, bytes, downloaded_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(guid) DO NOTHING
	`, rec.GUID, rec.FeedURL, rec.FileName, rec.Bytes, time.Now().UTC().Format(time.RFC3339))

	return err
}

func (r *HistoryRepository) GetEpisodes() ([]storage.EpisodeRecord, error) {
	rows, err := r.db.Query(`SELECT guid, feed_url, file_name, bytes, downloaded_at FROM episodes ORDER BY downloaded_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var episodes []storage.EpisodeRecord

	for rows.Next() {
		var rec storage.EpisodeRecord

		if err := rows.Scan(&rec.GUID, &rec.FeedURL, &rec.FileName, &rec.Bytes, &rec.DownloadedAt); err != nil {
			return nil, err
		}

		episodes = append(episodes, rec)
	}

	return episodes, rows.Err()
}
