package stats

import (
	"math"
	"testing"
)

func TestRecencyBias(t *testing.T) {
	const n = 10
	tr := NewTracker(n, 1)

	var s Sample
	for v := 1; v <= n; v++ {
		s, _ = tr.Record(float64(v))
	}

	// Triangular weights over 1..10 give (sum of k^2)/(sum of k) = 7.0,
	// against an unweighted mean of 5.5.
	if math.Abs(s.Avg-7.0) > 1e-9 {
		t.Fatalf("weighted avg = %v, want 7.0", s.Avg)
	}
	unweighted := float64(1+n) / 2
	if s.Avg <= unweighted {
		t.Fatalf("weighted avg %v not above unweighted mean %v", s.Avg, unweighted)
	}
}

func TestWindowBounds(t *testing.T) {
	const n = 4
	tr := NewTracker(n, 1)

	inputs := []float64{5, 1, 9, 3, 7, 2, 8, 6, 4, 10, 0, 5.5}
	for i, v := range inputs {
		s, ok := tr.Record(v)
		if !ok {
			t.Fatalf("emitEvery=1 must emit on every call")
		}

		start := i - n + 1
		if start < 0 {
			start = 0
		}
		win := inputs[start : i+1]
		lo, hi := win[0], win[0]
		for _, w := range win {
			lo = math.Min(lo, w)
			hi = math.Max(hi, w)
		}
		if s.Min != lo || s.Max != hi {
			t.Fatalf("after input %d: window min/max = %v/%v, want %v/%v", i, s.Min, s.Max, lo, hi)
		}
		if s.Avg < lo || s.Avg > hi {
			t.Fatalf("avg %v outside window bounds [%v, %v]", s.Avg, lo, hi)
		}
	}
}

func TestRunningExtremes(t *testing.T) {
	tr := NewTracker(2, 1)

	tr.Record(100) // will be evicted
	tr.Record(1)
	s, _ := tr.Record(50)

	if s.Max != 50 {
		t.Errorf("window max = %v, want 50", s.Max)
	}
	if s.RunningMax != 100 {
		t.Errorf("running max = %v, want 100 (survives eviction)", s.RunningMax)
	}
	if s.RunningMin != 1 {
		t.Errorf("running min = %v, want 1", s.RunningMin)
	}
}

func TestEmitCadence(t *testing.T) {
	tr := NewTracker(8, 3)

	var emitted []int
	for i := 1; i <= 10; i++ {
		if _, ok := tr.Record(float64(i)); ok {
			emitted = append(emitted, i)
		}
	}

	want := []int{3, 6, 9}
	if len(emitted) != len(want) {
		t.Fatalf("emitted on calls %v, want %v", emitted, want)
	}
	for i := range want {
		if emitted[i] != want[i] {
			t.Fatalf("emitted on calls %v, want %v", emitted, want)
		}
	}
}

func TestPartialWindow(t *testing.T) {
	tr := NewTracker(10, 1)

	s, ok := tr.Record(4)
	if !ok {
		t.Fatal("expected emission on first call")
	}
	if s.Avg != 4 || s.Min != 4 || s.Max != 4 {
		t.Fatalf("single-value sample = %+v, want all 4", s)
	}

	s, _ = tr.Record(8)
	// Weights 10 (newest=8) and 9 (older=4): (80+36)/19.
	want := (8*10.0 + 4*9.0) / 19.0
	if math.Abs(s.Avg-want) > 1e-9 {
		t.Fatalf("partial-window avg = %v, want %v", s.Avg, want)
	}
}

func TestClampedConstructor(t *testing.T) {
	tr := NewTracker(0, 0)
	if tr.Window() != 1 {
		t.Fatalf("window = %d, want clamped to 1", tr.Window())
	}
	if _, ok := tr.Record(1); !ok {
		t.Fatal("emitEvery clamped to 1 must emit every call")
	}
}
