package video

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"net/http"
	"sync"
	"time"

	"github.com/pagecast/pagecast/internal/logger"
)

// MJPEGHub owns the per-surface MJPEG streams served over HTTP. It
// enforces the single-active-stream-per-surface invariant: creating a
// second sink for the same surface id fails.
type MJPEGHub struct {
	mu    sync.RWMutex
	sinks map[string]*MJPEGSink
}

// NewMJPEGHub creates an empty hub.
func NewMJPEGHub() *MJPEGHub {
	return &MJPEGHub{sinks: make(map[string]*MJPEGSink)}
}

// CreateSink registers a new stream for the surface id.
func (h *MJPEGHub) CreateSink(id, name string) (*MJPEGSink, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.sinks[id]; exists {
		return nil, fmt.Errorf("mjpeg: stream for surface %q already active", id)
	}

	s := &MJPEGSink{
		hub:     h,
		id:      id,
		name:    name,
		clients: make(map[chan []byte]struct{}),
	}
	h.sinks[id] = s

	logger.WithComponent("mjpeg").Info().
		Str("surface", id).
		Str("name", name).
		Msg("MJPEG stream registered")
	return s, nil
}

func (h *MJPEGHub) remove(id string) {
	h.mu.Lock()
	delete(h.sinks, id)
	h.mu.Unlock()
}

// ServeStream streams the surface's frames to one HTTP client as
// multipart MJPEG until the client disconnects or the sink closes.
func (h *MJPEGHub) ServeStream(id string, w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	sink := h.sinks[id]
	h.mu.RUnlock()

	if sink == nil {
		http.Error(w, "no active stream for surface", http.StatusNotFound)
		return
	}
	sink.serve(w, r)
}

// MJPEGSink is one surface's outbound MJPEG stream. Send paces on the
// frame interval the rate ratio describes, which blocks the caller
// until the stream is ready for the next frame.
type MJPEGSink struct {
	hub  *MJPEGHub
	id   string
	name string

	mu       sync.Mutex
	clients  map[chan []byte]struct{}
	closed   bool
	ticker   *time.Ticker
	interval time.Duration

	frameCount uint64
}

// Name returns the stream name (the surface title).
func (s *MJPEGSink) Name() string { return s.name }

// Send encodes the frame and broadcasts it to every connected client.
// It blocks for the remainder of the frame interval; slow clients drop
// frames rather than stalling the send.
func (s *MJPEGSink) Send(nf *NetFrame) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return fmt.Errorf("mjpeg: stream %q closed", s.id)
	}
	if interval := nf.Interval(); s.ticker == nil || interval != s.interval {
		if s.ticker != nil {
			s.ticker.Stop()
		}
		s.ticker = time.NewTicker(interval)
		s.interval = interval
	}
	ticker := s.ticker
	s.mu.Unlock()

	// Clocked delivery: wait out the frame slot.
	<-ticker.C

	if nf.FourCC != FourCCBGRA {
		return fmt.Errorf("mjpeg: unsupported pixel format %q", nf.FourCC)
	}

	img := image.NewRGBA(image.Rect(0, 0, nf.Width, nf.Height))
	copy(img.Pix, nf.Data)
	SwapRB(img.Pix)

	buf := new(bytes.Buffer)
	if err := jpeg.Encode(buf, img, &jpeg.Options{Quality: 80}); err != nil {
		return fmt.Errorf("mjpeg: failed to encode frame: %w", err)
	}
	data := buf.Bytes()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return fmt.Errorf("mjpeg: stream %q closed", s.id)
	}
	for ch := range s.clients {
		select {
		case ch <- data:
		default:
			// Client is slow; skip this frame for it.
		}
	}
	s.frameCount++
	s.mu.Unlock()

	return nil
}

// Close tears the stream down and disconnects every client.
func (s *MJPEGSink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	for ch := range s.clients {
		close(ch)
	}
	s.clients = make(map[chan []byte]struct{})
	if s.ticker != nil {
		s.ticker.Stop()
	}
	frames := s.frameCount
	s.mu.Unlock()

	s.hub.remove(s.id)

	logger.WithComponent("mjpeg").Info().
		Str("surface", s.id).
		Uint64("frames", frames).
		Msg("MJPEG stream closed")
	return nil
}

func (s *MJPEGSink) serve(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Connection", "close")

	frameChan := make(chan []byte, 2)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		http.Error(w, "stream closed", http.StatusGone)
		return
	}
	s.clients[frameChan] = struct{}{}
	count := len(s.clients)
	s.mu.Unlock()

	log := logger.WithComponent("mjpeg")
	log.Info().
		Str("surface", s.id).
		Int("clients", count).
		Msg("MJPEG client connected")

	defer func() {
		s.mu.Lock()
		if _, ok := s.clients[frameChan]; ok {
			delete(s.clients, frameChan)
		}
		remaining := len(s.clients)
		s.mu.Unlock()
		log.Info().
			Str("surface", s.id).
			Int("clients", remaining).
			Msg("MJPEG client disconnected")
	}()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-frameChan:
			if !ok {
				return
			}
			if _, err := fmt.Fprintf(w, "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", len(data)); err != nil {
				return
			}
			if _, err := w.Write(data); err != nil {
				return
			}
			if _, err := fmt.Fprintf(w, "\r\n"); err != nil {
				return
			}
			if f, ok := w.(http.Flusher); ok {
				f.Flush()
			}
		}
	}
}
