// Package capture normalizes frame acquisition from a rendering
// surface: mode selection between the native-refresh frame feed and
// rate-controlled paints, plus the skip-counting that throttles a feed
// running faster than the target output rate.
package capture

import "sync"

// SkipThreshold computes how many consecutive frames to skip between
// forwarded ones when a source runs at displayHz but the output target
// is targetHz: floor(displayHz/targetHz) - 1, never negative.
func SkipThreshold(displayHz, targetHz int) int {
	if displayHz <= 0 || targetHz <= 0 {
		return 0
	}
	t := displayHz/targetHz - 1
	if t < 0 {
		return 0
	}
	return t
}

// Gate is the per-surface forward/skip decision: with threshold k it
// forwards exactly one of every k+1 consecutive frames, evenly spaced,
// starting with the first. Safe for concurrent use: the frame pump
// calls ShouldForward while a reconfigure may Reset the cycle.
type Gate struct {
	mu        sync.Mutex
	counter   int
	threshold int
}

// NewGate returns a gate that forwards on its first call.
func NewGate(threshold int) *Gate {
	g := &Gate{}
	g.Reset(threshold)
	return g
}

// ShouldForward is called once per raw frame arrival. It returns true
// (and restarts the cycle) when the counter has cleared the threshold.
func (g *Gate) ShouldForward() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.counter >= g.threshold {
		g.counter = 0
		return true
	}
	g.counter++
	return false
}

// Reset installs a new threshold and restarts the cycle so the next
// frame forwards. Called whenever capture mode changes.
func (g *Gate) Reset(threshold int) {
	if threshold < 0 {
		threshold = 0
	}
	g.mu.Lock()
	g.threshold = threshold
	g.counter = threshold
	g.mu.Unlock()
}

// Threshold returns the current skip threshold.
func (g *Gate) Threshold() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.threshold
}
