package clock

import (
	"testing"

	"github.com/googlesky/vpnspotter/internal/model"
)

func TestSubtractNoBorrow(t *testing.T) {
	x := model.Timestamp{Sec: 10, Usec: 500_000}
	y := model.Timestamp{Sec: 9, Usec: 200_000}

	got := Subtract(x, y)
	want := model.Timestamp{Sec: 1, Usec: 300_000}
	if got != want {
		t.Errorf("Subtract(%v, %v) = %v, want %v", x, y, got, want)
	}
}

func TestSubtractBorrow(t *testing.T) {
	x := model.Timestamp{Sec: 10, Usec: 100_000}
	y := model.Timestamp{Sec: 9, Usec: 900_000}

	got := Subtract(x, y)
	want := model.Timestamp{Sec: 0, Usec: 200_000}
	if got != want {
		t.Errorf("Subtract(%v, %v) = %v, want %v", x, y, got, want)
	}
}

func TestSubtractFromZero(t *testing.T) {
	// The filter ensemble's "first packet in a direction" case: previous
	// timestamp is the zero value, so the gap is the absolute wall time.
	x := model.Timestamp{Sec: 1_700_000_000, Usec: 123_456}
	y := model.Timestamp{}

	got := Subtract(x, y)
	if got != x {
		t.Errorf("Subtract(%v, zero) = %v, want %v", x, got, x)
	}
}

func TestReaderElapsedMonotonic(t *testing.T) {
	var r Reader
	first := r.Now()
	second := r.Now()

	if second < first {
		t.Errorf("second reading %d went backwards from %d", second, first)
	}
	if r.Elapsed() < 0 {
		t.Errorf("Elapsed() = %d, want >= 0", r.Elapsed())
	}
}
