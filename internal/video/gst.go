package video

import (
	"fmt"
	"sync"

	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"

	"github.com/pagecast/pagecast/internal/logger"
)

// GstSink pushes network frames into a GStreamer pipeline:
// appsrc -> videoconvert -> jpegenc -> tcpserversink. The appsrc runs
// with block=true, so PushBuffer blocks once the pipeline's queue is
// full; that is the sink's clocked backpressure.
type GstSink struct {
	name     string
	pipeline *gst.Pipeline
	src      *app.Source

	mu     sync.Mutex
	closed bool
}

// NewGstSink builds and starts a pipeline serving the stream on the
// given TCP port. Caps come from the network frame contract: BGRA,
// device pixels, exact rate ratio.
func NewGstSink(name string, port, width, height, rateN, rateD int) (*GstSink, error) {
	gst.Init(nil)

	pipelineStr := fmt.Sprintf(
		"appsrc name=src is-live=true block=true format=time do-timestamp=true "+
			"caps=video/x-raw,format=BGRA,width=%d,height=%d,framerate=%d/%d ! "+
			"videoconvert ! jpegenc ! tcpserversink host=0.0.0.0 port=%d",
		width, height, rateN, rateD, port,
	)

	log := logger.WithComponent("gst")
	log.Debug().Str("pipeline", pipelineStr).Msg("Creating GStreamer pipeline")

	pipeline, err := gst.NewPipelineFromString(pipelineStr)
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline: %w", err)
	}

	srcElement, err := pipeline.GetElementByName("src")
	if err != nil {
		pipeline.Unref()
		return nil, fmt.Errorf("failed to get appsrc: %w", err)
	}

	if err := pipeline.SetState(gst.StatePlaying); err != nil {
		pipeline.Unref()
		return nil, fmt.Errorf("failed to start pipeline: %w", err)
	}

	log.Info().
		Str("name", name).
		Int("port", port).
		Msgf("GStreamer stream started: %dx%d @ %d/%d", width, height, rateN, rateD)

	return &GstSink{
		name:     name,
		pipeline: pipeline,
		src:      app.SrcFromElement(srcElement),
	}, nil
}

// Name returns the stream name.
func (s *GstSink) Name() string { return s.name }

// Send pushes one frame into the pipeline, blocking while the
// pipeline's queue is full.
func (s *GstSink) Send(nf *NetFrame) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return fmt.Errorf("gst: stream %q closed", s.name)
	}
	src := s.src
	s.mu.Unlock()

	if nf.FourCC != FourCCBGRA {
		return fmt.Errorf("gst: unsupported pixel format %q", nf.FourCC)
	}

	buf := gst.NewBufferFromBytes(nf.Data)
	if ret := src.PushBuffer(buf); ret != gst.FlowOK {
		return fmt.Errorf("gst: push failed with flow %v", ret)
	}
	return nil
}

// Close signals end of stream and tears the pipeline down.
func (s *GstSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	s.src.EndStream()
	s.pipeline.SetState(gst.StateNull)
	s.pipeline.Unref()

	logger.WithComponent("gst").Info().
		Str("name", s.name).
		Msg("GStreamer stream closed")
	return nil
}
