// Package clock provides the timing primitives the pipeline uses for
// inter-packet latency and coarse phase timing: timeval-style subtraction
// with microsecond borrow, and a monotonic "elapsed since last reading"
// counter for phase timings.
package clock

import (
	"sync"
	"time"

	"github.com/googlesky/vpnspotter/internal/model"
)

// Subtract computes x - y with the carry fix-up a BSD timersub applies:
// when the microsecond component of x is smaller than y's, it borrows a
// whole second so the result is always normalized (0 <= Usec < 1e6).
func Subtract(x, y model.Timestamp) model.Timestamp {
	if x.Usec < y.Usec {
		nsec := (y.Usec-x.Usec)/1_000_000 + 1
		y.Usec -= 1_000_000 * nsec
		y.Sec += nsec
	}
	if x.Usec-y.Usec > 1_000_000 {
		nsec := (x.Usec - y.Usec) / 1_000_000
		y.Usec += 1_000_000 * nsec
		y.Sec -= nsec
	}
	return model.Timestamp{
		Sec:  x.Sec - y.Sec,
		Usec: x.Usec - y.Usec,
	}
}

// Reader tracks a monotonic nanosecond clock and the elapsed time since the
// previous reading, for coarse phase timings around pipeline stages.
type Reader struct {
	mu      sync.Mutex
	start   time.Time
	current int64
	elapsed int64
}

// Now records a new monotonic reading and returns it; Elapsed reports the
// gap since the previous call. The reading is nanoseconds since the first
// call to Now on this Reader, taken from time.Time's monotonic clock
// reading rather than the wall clock.
func (r *Reader) Now() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.start.IsZero() {
		r.start = time.Now()
	}
	now := time.Since(r.start).Nanoseconds()
	r.elapsed = now - r.current
	r.current = now
	return now
}

// Elapsed returns the gap between the two most recent Now() calls.
func (r *Reader) Elapsed() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.elapsed
}
