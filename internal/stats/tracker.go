// Package stats provides fixed-window smoothing for noisy per-frame
// measurements such as processing latency and CPU load.
package stats

// Sample is a point-in-time summary of a tracker window. Consumers use it
// for display only; nothing in the pipeline feeds it back into control
// decisions.
type Sample struct {
	Avg        float64 `json:"avg"`
	Min        float64 `json:"min"`
	Max        float64 `json:"max"`
	RunningMin float64 `json:"runningMin"`
	RunningMax float64 `json:"runningMax"`
}

// Tracker keeps the last N recorded values and reports a triangularly
// weighted average over them: the i-th most recent value (0 = newest)
// carries weight N-i, so recent samples dominate. Alongside the window
// average it tracks window min/max and all-time running min/max.
//
// A Tracker is not safe for concurrent use; each belongs to a single
// owner (one surface pipeline, or the usage monitor).
type Tracker struct {
	vals      []float64 // most recent first, len == fill count
	window    int
	emitEvery int
	records   uint64
	runMin    float64
	runMax    float64
}

// NewTracker returns a tracker over a window of the given length that
// reports a Sample every emitEvery-th call to Record. Values below 1 are
// clamped to 1.
func NewTracker(window, emitEvery int) *Tracker {
	if window < 1 {
		window = 1
	}
	if emitEvery < 1 {
		emitEvery = 1
	}
	return &Tracker{
		vals:      make([]float64, 0, window),
		window:    window,
		emitEvery: emitEvery,
	}
}

// Record inserts v as the newest value, evicting the oldest once the
// window is full. It returns a Sample and true on every emitEvery-th
// call; otherwise the Sample is zero and the second result is false.
func (t *Tracker) Record(v float64) (Sample, bool) {
	if len(t.vals) < t.window {
		t.vals = append(t.vals, 0)
	}
	copy(t.vals[1:], t.vals)
	t.vals[0] = v

	if t.records == 0 {
		t.runMin, t.runMax = v, v
	} else {
		if v < t.runMin {
			t.runMin = v
		}
		if v > t.runMax {
			t.runMax = v
		}
	}
	t.records++

	if t.records%uint64(t.emitEvery) != 0 {
		return Sample{}, false
	}
	return t.sample(), true
}

func (t *Tracker) sample() Sample {
	var (
		sum, weights float64
		lo           = t.vals[0]
		hi           = t.vals[0]
	)
	for i, v := range t.vals {
		w := float64(t.window - i)
		sum += v * w
		weights += w
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return Sample{
		Avg:        sum / weights,
		Min:        lo,
		Max:        hi,
		RunningMin: t.runMin,
		RunningMax: t.runMax,
	}
}

// Window returns the configured window length.
func (t *Tracker) Window() int { return t.window }
