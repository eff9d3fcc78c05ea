package capture

import (
	"fmt"

	"github.com/pagecast/pagecast/internal/logger"
	"github.com/pagecast/pagecast/internal/render"
)

// Mode selects how frames are acquired from a surface.
type Mode uint8

const (
	// ModePush requests rate-controlled paints at exactly the target
	// rate; every frame is forwarded.
	ModePush Mode = iota
	// ModePolled subscribes the native-refresh frame feed, which
	// cannot be rate-limited at the source; the gate skip-counts it
	// down to the target rate.
	ModePolled
)

func (m Mode) String() string {
	if m == ModePolled {
		return "polled"
	}
	return "push"
}

// ModeFor selects the capture mode for a surface: visible windows are
// driven by the compositor at native refresh (polled), off-screen
// surfaces paint on request (push).
func ModeFor(visibleWindow bool) Mode {
	if visibleWindow {
		return ModePolled
	}
	return ModePush
}

// Adapter owns one surface's acquisition hookup and its gate. Rewire
// is idempotent: re-subscribing an already-subscribed feed (or
// unsubscribing an inactive one) is a no-op at the surface, and the
// gate resets only when the hookup actually changes.
type Adapter struct {
	surface render.Surface
	gate    *Gate
	mode    Mode
	wired   bool
	rate    int
}

// NewAdapter wraps a surface. Nothing is subscribed until Rewire.
func NewAdapter(surface render.Surface) *Adapter {
	return &Adapter{
		surface: surface,
		gate:    NewGate(0),
	}
}

// Rewire installs the given capture mode, subscribing or unsubscribing
// the surface hooks as needed and resetting the gate. Safe to call
// repeatedly; a call that changes nothing leaves the gate's cycle
// untouched.
func (a *Adapter) Rewire(mode Mode, displayHz, targetHz int) error {
	if targetHz <= 0 {
		return fmt.Errorf("capture: invalid target rate %d", targetHz)
	}

	if a.wired && mode == a.mode && targetHz == a.rate {
		return nil
	}

	var threshold int
	switch mode {
	case ModePolled:
		if err := a.surface.StopPaint(); err != nil {
			return fmt.Errorf("capture: failed to stop paint hook: %w", err)
		}
		if err := a.surface.StartFrameFeed(); err != nil {
			return fmt.Errorf("capture: failed to subscribe frame feed: %w", err)
		}
		threshold = SkipThreshold(displayHz, targetHz)
	case ModePush:
		if err := a.surface.StopFrameFeed(); err != nil {
			return fmt.Errorf("capture: failed to unsubscribe frame feed: %w", err)
		}
		if err := a.surface.StartPaint(targetHz); err != nil {
			return fmt.Errorf("capture: failed to start paint hook: %w", err)
		}
		threshold = 0
	default:
		return fmt.Errorf("capture: unknown mode %d", mode)
	}

	a.mode = mode
	a.rate = targetHz
	a.wired = true
	a.gate.Reset(threshold)

	logger.WithComponent("capture").Debug().
		Str("mode", mode.String()).
		Int("display_hz", displayHz).
		Int("target_hz", targetHz).
		Int("skip_threshold", threshold).
		Msg("Capture hookup rewired")
	return nil
}

// Detach unsubscribes both hooks. Idempotent.
func (a *Adapter) Detach() error {
	if err := a.surface.StopFrameFeed(); err != nil {
		return err
	}
	if err := a.surface.StopPaint(); err != nil {
		return err
	}
	a.wired = false
	return nil
}

// ShouldForward applies the gate to one raw frame arrival.
func (a *Adapter) ShouldForward() bool { return a.gate.ShouldForward() }

// Mode returns the current capture mode.
func (a *Adapter) Mode() Mode { return a.mode }

// SkipThreshold returns the gate's current threshold.
func (a *Adapter) SkipThreshold() int { return a.gate.Threshold() }
