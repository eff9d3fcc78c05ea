package video

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/pagecast/pagecast/internal/render"
	"github.com/pagecast/pagecast/internal/stats"
	"github.com/pagecast/pagecast/internal/telemetry"
)

type fakeSink struct {
	frames []*NetFrame
	err    error
}

func (s *fakeSink) Name() string { return "fake" }
func (s *fakeSink) Close() error { return nil }
func (s *fakeSink) Send(nf *NetFrame) error {
	if s.err != nil {
		return s.err
	}
	s.frames = append(s.frames, nf)
	return nil
}

type recordingEmitter struct {
	events []telemetry.Event
}

func (e *recordingEmitter) Emit(ev telemetry.Event) {
	e.events = append(e.events, ev)
}

func (e *recordingEmitter) byType(typ string) []telemetry.Event {
	var out []telemetry.Event
	for _, ev := range e.events {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

func testFrame(w, h int) render.Frame {
	data := make([]byte, w*h*4)
	for i := 3; i < len(data); i += 4 {
		data[i] = 0xff
	}
	return render.Frame{
		Width:      w,
		Height:     h,
		Stride:     w * 4,
		Format:     render.FormatBGRA,
		Data:       data,
		CapturedAt: time.Now(),
		Seq:        1,
	}
}

func TestProcessorNetFrameContract(t *testing.T) {
	sink := &fakeSink{}
	em := &recordingEmitter{}
	p := NewProcessor(ProcessorOptions{
		SurfaceID:          "s1",
		Title:              "cast",
		TargetFPS:          30,
		EnableNetworkVideo: true,
		Sink:               sink,
		Emitter:            em,
		Tracker:            stats.NewTracker(30, 1),
	})

	// 2x logical scale on a 640x360 config gives 1280x720 device
	// pixels; the frame arrives already at device resolution.
	f := testFrame(1280, 720)
	captured := f.CapturedAt

	if err := p.Process(f); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(sink.frames) != 1 {
		t.Fatalf("sink received %d frames, want 1", len(sink.frames))
	}

	nf := sink.frames[0]
	if nf.Width != 1280 || nf.Height != 720 {
		t.Errorf("dims %dx%d, want 1280x720", nf.Width, nf.Height)
	}
	if nf.RateN != 30000 || nf.RateD != 1000 {
		t.Errorf("rate %d/%d, want 30000/1000", nf.RateN, nf.RateD)
	}
	if nf.FourCC != FourCCBGRA {
		t.Errorf("fourcc %q, want %q", nf.FourCC, FourCCBGRA)
	}
	if want := float32(1280) / float32(720); nf.Aspect != want {
		t.Errorf("aspect %v, want %v", nf.Aspect, want)
	}
	if nf.Stride != 1280*4 {
		t.Errorf("stride %d, want %d", nf.Stride, 1280*4)
	}
	if !nf.Progressive {
		t.Error("progressive flag not set")
	}
	if want := Timestamp(captured); nf.Timestamp != want {
		t.Errorf("timestamp %d, want %d", nf.Timestamp, want)
	}
	if nf.Timecode != nf.Timestamp/100 {
		t.Errorf("timecode %d, want timestamp/100 = %d", nf.Timecode, nf.Timestamp/100)
	}
}

func TestProcessorPreviewPath(t *testing.T) {
	em := &recordingEmitter{}
	p := NewProcessor(ProcessorOptions{
		SurfaceID:     "s1",
		EnablePreview: true,
		PreviewWidth:  8,
		PreviewHeight: 4,
		Emitter:       em,
		Tracker:       stats.NewTracker(30, 1),
	})

	if err := p.Process(testFrame(64, 32)); err != nil {
		t.Fatalf("Process: %v", err)
	}

	captures := em.byType(telemetry.EventCapture)
	if len(captures) != 1 {
		t.Fatalf("got %d capture events, want 1", len(captures))
	}
	payload, ok := captures[0].Payload.(telemetry.PreviewPayload)
	if !ok {
		t.Fatalf("capture payload is %T", captures[0].Payload)
	}
	if payload.Width != 8 || payload.Height != 4 {
		t.Errorf("preview %dx%d, want 8x4", payload.Width, payload.Height)
	}
	if len(payload.Data) != 8*4*4 {
		t.Errorf("preview buffer %d bytes, want %d", len(payload.Data), 8*4*4)
	}
	if captures[0].SurfaceID != "s1" {
		t.Errorf("capture tagged %q, want s1", captures[0].SurfaceID)
	}
}

func TestProcessorStatCadence(t *testing.T) {
	em := &recordingEmitter{}
	p := NewProcessor(ProcessorOptions{
		SurfaceID: "s1",
		Emitter:   em,
		Tracker:   stats.NewTracker(10, 3),
	})

	for i := 0; i < 9; i++ {
		if err := p.Process(testFrame(4, 4)); err != nil {
			t.Fatalf("Process #%d: %v", i+1, err)
		}
	}

	if got := len(em.byType(telemetry.EventStat)); got != 3 {
		t.Fatalf("got %d stat events over 9 frames at cadence 3, want 3", got)
	}
}

func TestProcessorTransmissionFailure(t *testing.T) {
	sink := &fakeSink{err: fmt.Errorf("connection reset")}
	em := &recordingEmitter{}
	p := NewProcessor(ProcessorOptions{
		SurfaceID:          "s1",
		TargetFPS:          30,
		EnableNetworkVideo: true,
		Sink:               sink,
		Emitter:            em,
		Tracker:            stats.NewTracker(30, 1),
	})

	err := p.Process(testFrame(4, 4))
	if !errors.Is(err, ErrTransmission) {
		t.Fatalf("Process error = %v, want ErrTransmission", err)
	}
	// Latency is still recorded even when the send fails.
	if got := len(em.byType(telemetry.EventStat)); got != 1 {
		t.Fatalf("got %d stat events after failed send, want 1", got)
	}
}

func TestProcessorDisabledPathsDoNothing(t *testing.T) {
	sink := &fakeSink{}
	em := &recordingEmitter{}
	p := NewProcessor(ProcessorOptions{
		SurfaceID: "s1",
		Sink:      sink,
		Emitter:   em,
		Tracker:   stats.NewTracker(30, 1),
	})

	if err := p.Process(testFrame(4, 4)); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(sink.frames) != 0 {
		t.Fatal("network path ran while disabled")
	}
	if len(em.byType(telemetry.EventCapture)) != 0 {
		t.Fatal("preview path ran while disabled")
	}
}
