package render

import (
	"errors"
	"testing"
	"time"

	"github.com/pagecast/pagecast/internal/display"
)

func simOptions(w, h int) SurfaceOptions {
	return SurfaceOptions{
		Title:  "test",
		Width:  w,
		Height: h,
		Display: display.Metrics{
			Width: 1920, Height: 1080, RefreshRate: 60, ScaleFactor: 1.0,
		},
	}
}

func TestSimSurfacePaintProducesFrames(t *testing.T) {
	eng := NewSimEngine(SimOptions{})
	surf, err := eng.CreateSurface(simOptions(32, 16))
	if err != nil {
		t.Fatalf("CreateSurface: %v", err)
	}
	defer surf.Release()

	if err := surf.StartPaint(100); err != nil {
		t.Fatalf("StartPaint: %v", err)
	}

	select {
	case f := <-surf.Frames():
		if f.Width != 32 || f.Height != 16 {
			t.Fatalf("frame %dx%d, want 32x16", f.Width, f.Height)
		}
		if f.Format != FormatBGRA {
			t.Fatalf("frame format %v, want BGRA", f.Format)
		}
		if f.Stride != 32*4 {
			t.Fatalf("stride %d, want %d", f.Stride, 32*4)
		}
		if len(f.Data) != 32*16*4 {
			t.Fatalf("buffer %d bytes, want %d", len(f.Data), 32*16*4)
		}
		if f.Seq == 0 {
			t.Fatal("frame sequence must start at 1")
		}
	case <-time.After(time.Second):
		t.Fatal("no frame within 1s of StartPaint")
	}
}

func TestSimSurfaceBackgroundFill(t *testing.T) {
	eng := NewSimEngine(SimOptions{})
	opts := simOptions(32, 16)
	opts.Background.R = 0x11
	opts.Background.G = 0x22
	opts.Background.B = 0x33
	surf, err := eng.CreateSurface(opts)
	if err != nil {
		t.Fatalf("CreateSurface: %v", err)
	}
	defer surf.Release()

	if err := surf.StartPaint(100); err != nil {
		t.Fatalf("StartPaint: %v", err)
	}

	f := <-surf.Frames()
	// Last pixel is background (marker sweeps mid-height, seq pixel is
	// first): BGRA order means blue byte first.
	i := len(f.Data) - 4
	if f.Data[i] != 0x33 || f.Data[i+1] != 0x22 || f.Data[i+2] != 0x11 || f.Data[i+3] != 0xff {
		t.Fatalf("background pixel = % x, want 33 22 11 ff (BGRA)", f.Data[i:i+4])
	}
}

func TestSimSurfaceIdempotentStartStop(t *testing.T) {
	eng := NewSimEngine(SimOptions{})
	surf, err := eng.CreateSurface(simOptions(8, 8))
	if err != nil {
		t.Fatalf("CreateSurface: %v", err)
	}
	defer surf.Release()

	for i := 0; i < 3; i++ {
		if err := surf.StartFrameFeed(); err != nil {
			t.Fatalf("StartFrameFeed #%d: %v", i+1, err)
		}
	}
	for i := 0; i < 3; i++ {
		if err := surf.StopFrameFeed(); err != nil {
			t.Fatalf("StopFrameFeed #%d: %v", i+1, err)
		}
	}
	if err := surf.StopPaint(); err != nil {
		t.Fatalf("StopPaint while never painting: %v", err)
	}
}

func TestSimSurfaceCloseReportsClosure(t *testing.T) {
	eng := NewSimEngine(SimOptions{})
	surf, err := eng.CreateSurface(simOptions(8, 8))
	if err != nil {
		t.Fatalf("CreateSurface: %v", err)
	}
	defer surf.Release()

	if err := surf.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	select {
	case ev := <-surf.Events():
		if ev.Kind != EventClosed {
			t.Fatalf("event kind %v, want EventClosed", ev.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("no EventClosed within 1s of Close")
	}
}

func TestSimSurfaceIgnoreCloseNeverReports(t *testing.T) {
	eng := NewSimEngine(SimOptions{IgnoreClose: true})
	surf, err := eng.CreateSurface(simOptions(8, 8))
	if err != nil {
		t.Fatalf("CreateSurface: %v", err)
	}
	defer surf.Release()

	if err := surf.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	select {
	case ev := <-surf.Events():
		t.Fatalf("unexpected event %v from close-ignoring surface", ev.Kind)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestSimSurfaceFailLoads(t *testing.T) {
	eng := NewSimEngine(SimOptions{FailLoads: true})
	surf, err := eng.CreateSurface(simOptions(8, 8))
	if err != nil {
		t.Fatalf("CreateSurface: %v", err)
	}
	defer surf.Release()

	err = surf.Load("https://example.com")
	if !errors.Is(err, ErrContentLoad) {
		t.Fatalf("Load error = %v, want ErrContentLoad", err)
	}

	select {
	case ev := <-surf.Events():
		if ev.Kind != EventLoadFailed {
			t.Fatalf("event kind %v, want EventLoadFailed", ev.Kind)
		}
		if !errors.Is(ev.Err, ErrContentLoad) {
			t.Fatalf("event error = %v, want ErrContentLoad", ev.Err)
		}
	case <-time.After(time.Second):
		t.Fatal("no EventLoadFailed after failed Load")
	}
}

func TestSimEngineFailCreate(t *testing.T) {
	eng := NewSimEngine(SimOptions{FailCreate: true})
	if _, err := eng.CreateSurface(simOptions(8, 8)); err == nil {
		t.Fatal("CreateSurface succeeded with FailCreate set")
	}
}

func TestSimSurfaceReleaseClosesChannels(t *testing.T) {
	eng := NewSimEngine(SimOptions{})
	surf, err := eng.CreateSurface(simOptions(8, 8))
	if err != nil {
		t.Fatalf("CreateSurface: %v", err)
	}

	surf.Release()
	surf.Release() // must be safe twice

	if _, ok := <-surf.Frames(); ok {
		t.Fatal("frames channel still open after Release")
	}
	if _, ok := <-surf.Events(); ok {
		t.Fatal("events channel still open after Release")
	}
}
