package daemon

import (
	"sync"
	"time"

	"github.com/beamd-dev/beamd/pkg/types"
)

// readingLog keeps the most recent power meter samples of one line in
// memory, so clients can pull a short history without scraping the event
// stream.
type readingLog struct {
	mu  sync.Mutex
	max int
	buf []types.Reading
}

func newReadingLog(max int) *readingLog {
	return &readingLog{max: max}
}

// add appends one sample, dropping the oldest once the log is full.
func (r *readingLog) add(power float64, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.buf) >= r.max {
		r.buf = r.buf[1:]
	}
	// Round(0) strips the monotonic clock reading.
	r.buf = append(r.buf, types.Reading{Power: power, At: at.Round(0)})
}

// since returns the samples taken after the cutoff, oldest first.
func (r *readingLog) since(cutoff time.Time) []types.Reading {
	r.mu.Lock()
	defer r.mu.Unlock()

	start := len(r.buf)
	for i := len(r.buf) - 1; i >= 0; i-- {
		if !r.buf[i].At.After(cutoff) {
			break
		}
		start = i
	}
	out := make([]types.Reading, len(r.buf)-start)
	copy(out, r.buf[start:])
	return out
}

// last returns the most recent sample.
func (r *readingLog) last() (types.Reading, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.buf) == 0 {
		return types.Reading{}, false
	}
	return r.buf[len(r.buf)-1], true
}
