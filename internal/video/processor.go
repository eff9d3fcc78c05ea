package video

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/pagecast/pagecast/internal/logger"
	"github.com/pagecast/pagecast/internal/render"
	"github.com/pagecast/pagecast/internal/stats"
	"github.com/pagecast/pagecast/internal/telemetry"
)

// ProcessorOptions configures a per-surface frame processor.
type ProcessorOptions struct {
	SurfaceID string
	Title     string
	TargetFPS int

	EnablePreview      bool
	EnableNetworkVideo bool
	DebugOverlay       bool

	PreviewWidth  int
	PreviewHeight int

	// Sink receives network frames; required when EnableNetworkVideo.
	Sink Sink

	Emitter telemetry.Emitter
	Tracker *stats.Tracker
}

// Processor converts each forwarded raw frame into its console preview
// and its network video frame, then records the processing latency.
// One instance per surface, driven from that surface's pump only.
type Processor struct {
	opts ProcessorOptions
	log  *zerolog.Logger
}

// NewProcessor creates a processor.
func NewProcessor(opts ProcessorOptions) *Processor {
	if opts.PreviewWidth <= 0 || opts.PreviewHeight <= 0 {
		opts.PreviewWidth, opts.PreviewHeight = 128, 72
	}
	return &Processor{
		opts: opts,
		log:  logger.WithComponent("processor"),
	}
}

// SurfaceID returns the surface this processor serves.
func (p *Processor) SurfaceID() string { return p.opts.SurfaceID }

// Process runs both sub-paths on one frame. A transmission failure is
// returned wrapped in ErrTransmission after the latency sample is
// still recorded; the caller decides the session's fate.
func (p *Processor) Process(f render.Frame) error {
	var sendErr error

	if p.opts.EnablePreview {
		preview := ScaleToRGBA(f, p.opts.PreviewWidth, p.opts.PreviewHeight)
		p.opts.Emitter.Emit(telemetry.Event{
			Type:      telemetry.EventCapture,
			SurfaceID: p.opts.SurfaceID,
			Payload: telemetry.PreviewPayload{
				Width:  p.opts.PreviewWidth,
				Height: p.opts.PreviewHeight,
				Data:   preview.Pix,
			},
		})
	}

	if p.opts.EnableNetworkVideo && p.opts.Sink != nil {
		if p.opts.DebugOverlay {
			label := fmt.Sprintf("%s @ %d fps", p.opts.Title, p.opts.TargetFPS)
			BurnLabel(f.Data, f.Width, f.Height, f.Stride, label)
		}

		ts := Timestamp(f.CapturedAt)
		nf := &NetFrame{
			Width:       f.Width,
			Height:      f.Height,
			RateN:       p.opts.TargetFPS * 1000,
			RateD:       1000,
			FourCC:      FourCCBGRA,
			Aspect:      float32(f.Width) / float32(f.Height),
			Timestamp:   ts,
			Timecode:    ts / 100,
			Progressive: true,
			Stride:      f.Width * 4,
			Data:        f.Data,
		}

		if err := p.opts.Sink.Send(nf); err != nil {
			sendErr = fmt.Errorf("%w: %v", ErrTransmission, err)
		}
	}

	latencyMS := float64(time.Since(f.CapturedAt)) / float64(time.Millisecond)
	if sample, ok := p.opts.Tracker.Record(latencyMS); ok {
		p.opts.Emitter.Emit(telemetry.Event{
			Type:      telemetry.EventStat,
			SurfaceID: p.opts.SurfaceID,
			Payload:   sample,
		})
	}

	return sendErr
}
