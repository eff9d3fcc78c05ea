package capture

import (
	"testing"

	"github.com/pagecast/pagecast/internal/render"
)

// fakeSurface records hook calls and enforces the surface contract's
// idempotence rules so the adapter's bookkeeping is observable.
type fakeSurface struct {
	feedOn     bool
	paintOn    bool
	paintFPS   int
	feedStarts int
	paintCalls int
}

func (f *fakeSurface) Load(string) error { return nil }
func (f *fakeSurface) Reload() error     { return nil }

func (f *fakeSurface) StartFrameFeed() error {
	if !f.feedOn {
		f.feedStarts++
	}
	f.feedOn = true
	f.paintOn = false
	return nil
}

func (f *fakeSurface) StopFrameFeed() error {
	f.feedOn = false
	return nil
}

func (f *fakeSurface) StartPaint(fps int) error {
	f.paintCalls++
	f.paintOn = true
	f.paintFPS = fps
	f.feedOn = false
	return nil
}

func (f *fakeSurface) StopPaint() error {
	f.paintOn = false
	return nil
}

func (f *fakeSurface) Frames() <-chan render.Frame        { return nil }
func (f *fakeSurface) Events() <-chan render.SurfaceEvent { return nil }
func (f *fakeSurface) Close() error                       { return nil }
func (f *fakeSurface) Release()                           {}

func TestAdapterPolledMode(t *testing.T) {
	surf := &fakeSurface{}
	a := NewAdapter(surf)

	if err := a.Rewire(ModePolled, 60, 30); err != nil {
		t.Fatalf("Rewire: %v", err)
	}

	if !surf.feedOn {
		t.Fatal("polled mode must subscribe the frame feed")
	}
	if surf.paintOn {
		t.Fatal("polled mode must not paint")
	}
	if a.SkipThreshold() != 1 {
		t.Fatalf("skip threshold = %d, want 1 for 60->30", a.SkipThreshold())
	}

	forwarded := 0
	for i := 0; i < 10; i++ {
		if a.ShouldForward() {
			forwarded++
		}
	}
	if forwarded != 5 {
		t.Fatalf("10 polled callbacks forwarded %d frames, want 5", forwarded)
	}
}

func TestAdapterPushMode(t *testing.T) {
	surf := &fakeSurface{}
	a := NewAdapter(surf)

	if err := a.Rewire(ModePush, 60, 24); err != nil {
		t.Fatalf("Rewire: %v", err)
	}

	if !surf.paintOn || surf.paintFPS != 24 {
		t.Fatalf("push mode paint: on=%v fps=%d, want on at 24", surf.paintOn, surf.paintFPS)
	}
	if surf.feedOn {
		t.Fatal("push mode must not keep the frame feed")
	}
	if a.SkipThreshold() != 0 {
		t.Fatalf("skip threshold = %d, want 0 in push mode", a.SkipThreshold())
	}
	for i := 0; i < 5; i++ {
		if !a.ShouldForward() {
			t.Fatal("push mode must forward every frame")
		}
	}
}

func TestAdapterRewireIdempotent(t *testing.T) {
	surf := &fakeSurface{}
	a := NewAdapter(surf)

	for i := 0; i < 3; i++ {
		if err := a.Rewire(ModePolled, 60, 30); err != nil {
			t.Fatalf("Rewire #%d: %v", i+1, err)
		}
	}
	if surf.feedStarts != 1 {
		t.Fatalf("frame feed subscribed %d times, want 1", surf.feedStarts)
	}

	// An unchanged rewire must not disturb the gate's cycle.
	a.ShouldForward() // consumes the forwarding slot
	if err := a.Rewire(ModePolled, 60, 30); err != nil {
		t.Fatalf("Rewire: %v", err)
	}
	if a.ShouldForward() {
		t.Fatal("no-op rewire reset the gate cycle")
	}
}

func TestAdapterModeSwitchResetsGate(t *testing.T) {
	surf := &fakeSurface{}
	a := NewAdapter(surf)

	if err := a.Rewire(ModePolled, 120, 30); err != nil {
		t.Fatalf("Rewire: %v", err)
	}
	if a.SkipThreshold() != 3 {
		t.Fatalf("skip threshold = %d, want 3 for 120->30", a.SkipThreshold())
	}
	a.ShouldForward()
	a.ShouldForward()

	if err := a.Rewire(ModePush, 120, 30); err != nil {
		t.Fatalf("Rewire to push: %v", err)
	}
	if a.Mode() != ModePush {
		t.Fatalf("mode = %v, want push", a.Mode())
	}
	if a.SkipThreshold() != 0 {
		t.Fatalf("skip threshold = %d, want 0 after switch", a.SkipThreshold())
	}
	if !a.ShouldForward() {
		t.Fatal("first frame after mode switch must forward")
	}
}

func TestAdapterDetach(t *testing.T) {
	surf := &fakeSurface{}
	a := NewAdapter(surf)

	if err := a.Rewire(ModePush, 60, 30); err != nil {
		t.Fatalf("Rewire: %v", err)
	}
	if err := a.Detach(); err != nil {
		t.Fatalf("Detach: %v", err)
	}
	if surf.feedOn || surf.paintOn {
		t.Fatal("Detach must stop both hooks")
	}
	if err := a.Detach(); err != nil {
		t.Fatalf("second Detach: %v", err)
	}
}

func TestAdapterRejectsBadTarget(t *testing.T) {
	a := NewAdapter(&fakeSurface{})
	if err := a.Rewire(ModePush, 60, 0); err == nil {
		t.Fatal("Rewire accepted target rate 0")
	}
}

func TestModeFor(t *testing.T) {
	if ModeFor(true) != ModePolled {
		t.Fatal("visible windows must use polled mode")
	}
	if ModeFor(false) != ModePush {
		t.Fatal("off-screen surfaces must use push mode")
	}
}
