package render

import (
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/pagecast/pagecast/internal/logger"
)

// SimOptions tunes the simulated engine.
type SimOptions struct {
	// RefreshHz is the display rate the frame feed runs at. Zero
	// means the rate of the display the surface was created for.
	RefreshHz int

	// FailCreate makes CreateSurface fail; FailLoads makes every
	// Load fail. Both exist to exercise error paths.
	FailCreate bool
	FailLoads  bool

	// IgnoreClose makes surfaces never self-report closure, forcing
	// callers through their grace-period teardown. CloseDelay delays
	// the closed event of a well-behaved surface.
	IgnoreClose bool
	CloseDelay  time.Duration
}

// SimEngine produces synthetic BGRA frames: background fill, a marker
// block that moves with the sequence number, and the sequence number
// written into the first pixel. Deterministic enough for tests and
// development without a real renderer.
type SimEngine struct {
	opts SimOptions
}

// NewSimEngine creates a simulated rendering engine.
func NewSimEngine(opts SimOptions) *SimEngine {
	return &SimEngine{opts: opts}
}

// Name returns the engine name.
func (e *SimEngine) Name() string { return "sim" }

// CreateSurface creates a simulated surface.
func (e *SimEngine) CreateSurface(opts SurfaceOptions) (Surface, error) {
	if e.opts.FailCreate {
		return nil, fmt.Errorf("sim: surface creation disabled")
	}
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, fmt.Errorf("sim: invalid surface size %dx%d", opts.Width, opts.Height)
	}

	refresh := e.opts.RefreshHz
	if refresh <= 0 {
		refresh = opts.Display.RefreshRate
	}
	if refresh <= 0 {
		refresh = 60
	}

	s := &simSurface{
		eng:     e,
		opts:    opts,
		refresh: refresh,
		frames:  make(chan Frame),
		events:  make(chan SurfaceEvent, 4),
		rate:    make(chan int),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go s.run()

	logger.WithComponent("sim").Debug().
		Int("width", opts.Width).
		Int("height", opts.Height).
		Int("refresh_hz", refresh).
		Msg("Simulated surface created")
	return s, nil
}

type simSurface struct {
	eng     *SimEngine
	opts    SurfaceOptions
	refresh int

	frames chan Frame
	events chan SurfaceEvent
	rate   chan int
	quit   chan struct{}
	done   chan struct{}

	mu      sync.Mutex
	feedOn  bool
	paintOn bool
	closing bool

	release sync.Once
	seq     uint64
}

// run is the producer: it paces frame synthesis at the currently
// requested rate and drops frames the consumer is too busy to take.
func (s *simSurface) run() {
	defer close(s.done)

	var ticker *time.Ticker
	defer func() {
		if ticker != nil {
			ticker.Stop()
		}
	}()

	for {
		var tick <-chan time.Time
		if ticker != nil {
			tick = ticker.C
		}

		select {
		case <-s.quit:
			return
		case hz := <-s.rate:
			if ticker != nil {
				ticker.Stop()
				ticker = nil
			}
			if hz > 0 {
				ticker = time.NewTicker(time.Second / time.Duration(hz))
			}
		case <-tick:
			f := s.synthesize()
			select {
			case s.frames <- f:
			default:
				// Consumer mid-processing; drop, never queue.
			}
		}
	}
}

func (s *simSurface) synthesize() Frame {
	s.seq++
	w, h := s.opts.Width, s.opts.Height
	bg := s.opts.Background

	data := make([]byte, w*h*4)
	for i := 0; i < len(data); i += 4 {
		data[i] = bg.B
		data[i+1] = bg.G
		data[i+2] = bg.R
		data[i+3] = 0xff
	}

	// Marker block sweeping left to right, one pixel per frame.
	const marker = 8
	mx := int(s.seq) % max(1, w-marker)
	my := (h - marker) / 2
	if my < 0 {
		my = 0
	}
	for y := my; y < my+marker && y < h; y++ {
		for x := mx; x < mx+marker && x < w; x++ {
			i := (y*w + x) * 4
			data[i] = 0xff
			data[i+1] = 0xff
			data[i+2] = 0xff
		}
	}

	// Sequence number in the first pixel's blue/green/red bytes.
	data[0] = byte(s.seq)
	data[1] = byte(s.seq >> 8)
	data[2] = byte(s.seq >> 16)

	return Frame{
		Width:      w,
		Height:     h,
		Stride:     w * 4,
		Format:     FormatBGRA,
		Data:       data,
		CapturedAt: time.Now(),
		Dirty:      image.Rect(mx, my, mx+marker, my+marker),
		Seq:        s.seq,
	}
}

// setRate forwards the rate change unless the surface is torn down.
func (s *simSurface) setRate(hz int) {
	select {
	case s.rate <- hz:
	case <-s.quit:
	}
}

// Load simulates loading content.
func (s *simSurface) Load(url string) error {
	if s.eng.opts.FailLoads {
		err := fmt.Errorf("%w: %s", ErrContentLoad, url)
		select {
		case s.events <- SurfaceEvent{Kind: EventLoadFailed, Err: err}:
		default:
		}
		return err
	}
	return nil
}

// Reload simulates a content reload.
func (s *simSurface) Reload() error {
	if s.eng.opts.FailLoads {
		return fmt.Errorf("%w: reload", ErrContentLoad)
	}
	return nil
}

// StartFrameFeed begins native-refresh frame delivery. A no-op when
// already feeding.
func (s *simSurface) StartFrameFeed() error {
	s.mu.Lock()
	if s.feedOn {
		s.mu.Unlock()
		return nil
	}
	s.feedOn = true
	s.paintOn = false
	s.mu.Unlock()

	s.setRate(s.refresh)
	return nil
}

// StopFrameFeed cancels the frame feed. A no-op when not feeding.
func (s *simSurface) StopFrameFeed() error {
	s.mu.Lock()
	if !s.feedOn {
		s.mu.Unlock()
		return nil
	}
	s.feedOn = false
	s.mu.Unlock()

	s.setRate(0)
	return nil
}

// StartPaint begins rate-controlled paints at fps. A repeated call
// with the same rate is a no-op; a new rate re-paces the surface.
func (s *simSurface) StartPaint(fps int) error {
	if fps <= 0 {
		return fmt.Errorf("sim: invalid paint rate %d", fps)
	}

	s.mu.Lock()
	s.paintOn = true
	s.feedOn = false
	s.mu.Unlock()

	s.setRate(fps)
	return nil
}

// StopPaint cancels rate-controlled paints. A no-op when not painting.
func (s *simSurface) StopPaint() error {
	s.mu.Lock()
	if !s.paintOn {
		s.mu.Unlock()
		return nil
	}
	s.paintOn = false
	s.mu.Unlock()

	s.setRate(0)
	return nil
}

// Frames returns the frame channel.
func (s *simSurface) Frames() <-chan Frame { return s.frames }

// Events returns the lifecycle event channel.
func (s *simSurface) Events() <-chan SurfaceEvent { return s.events }

// Close requests graceful teardown. A surface configured with
// IgnoreClose swallows the request and never reports closure.
func (s *simSurface) Close() error {
	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		return nil
	}
	s.closing = true
	ignore := s.eng.opts.IgnoreClose
	delay := s.eng.opts.CloseDelay
	s.mu.Unlock()

	if ignore {
		return nil
	}

	go func() {
		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-s.quit:
				return
			}
		}
		select {
		case s.events <- SurfaceEvent{Kind: EventClosed}:
		case <-s.quit:
		}
	}()
	return nil
}

// Release forces teardown: the producer stops and the channels close.
func (s *simSurface) Release() {
	s.release.Do(func() {
		close(s.quit)
		<-s.done
		close(s.frames)
		close(s.events)
	})
}
