package storage

// EpisodeRecord is the archived record of a completed episode download.
// Purely informative: the presence of the target file on disk, not this
// record, is what gates re-downloading.
type EpisodeRecord struct {
	GUID         string
	FeedURL      string
	FileName     string
	Bytes        int64
	DownloadedAt string
}

// HistoryReadRepository lists previously completed downloads.
type HistoryReadRepository interface {
	GetEpisodes() ([]EpisodeRecord, error)
}

// HistoryWriteRepository records completed downloads. Writes happen only
// after the final target file has been published.
type HistoryWriteRepository interface {
	TrackEpisode(rec EpisodeRecord) error
}
