// Package progress wraps an io.Reader to keep a monotonically increasing
// count of bytes read and to report progress via a callback at byte
// intervals.
package progress

import (
	"io"
	"sync/atomic"
)

type Reader struct {
	reader     io.Reader
	total      int64
	onProgress func(written int64, total int64)

	written        atomic.Int64
	sinceReport    int64
	reportInterval int64
}

func NewReader(r io.Reader, total int64, interval int64, cb func(written int64, total int64)) *Reader {
	return &Reader{
		reader:         r,
		total:          total,
		onProgress:     cb,
		reportInterval: interval,
	}
}

func (pr *Reader) Read(p []byte) (int, error) {
	n, err := pr.reader.Read(p)
	if n > 0 {
		written := pr.written.Add(int64(n))
		pr.sinceReport += int64(n)

		if pr.onProgress != nil && pr.sinceReport >= pr.reportInterval {
			pr.onProgress(written, pr.total)
			pr.sinceReport = 0
		}
	}

	return n, err
}

// Written returns the cumulative number of bytes read so far. Safe to call
// while the transfer is still in flight.
func (pr *Reader) Written() int64 {
	return pr.written.Load()
}
