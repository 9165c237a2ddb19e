package inspector

import "testing"

func TestRingBufferSamplesChronological(t *testing.T) {
	r := newRingBuffer()
	for i := 0; i < 3; i++ {
		r.push(float64(i))
	}
	got := r.samples()
	want := []float64{0, 1, 2}
	if len(got) != len(want) {
		t.Fatalf("got %d samples, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestRingBufferWrapsAtCapacity(t *testing.T) {
	r := newRingBuffer()
	for i := 0; i < sparklineLen+5; i++ {
		r.push(float64(i))
	}
	got := r.samples()
	if len(got) != sparklineLen {
		t.Fatalf("got %d samples, want %d", len(got), sparklineLen)
	}
	if got[0] != 5 {
		t.Errorf("oldest sample = %v, want 5 (first %d evicted)", got[0], 5)
	}
	if got[len(got)-1] != float64(sparklineLen+4) {
		t.Errorf("newest sample = %v, want %v", got[len(got)-1], float64(sparklineLen+4))
	}
}
