package render

import (
	"fmt"
	"image"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"

	"github.com/pagecast/pagecast/internal/logger"
)

// X11Engine mirrors existing X11 windows: a surface's content is the
// pixel stream of the window named by its URL. URLs take the form
// "x11:active" (the currently focused window) or "x11:<window-id>"
// (hex or decimal). Useful when the real content renderer is any
// program that already has a window on screen.
type X11Engine struct {
	conn   *xgb.Conn
	root   xproto.Window
	screen *xproto.ScreenInfo
}

// NewX11Engine connects to the X server.
func NewX11Engine() (*X11Engine, error) {
	conn, err := xgb.NewConn()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to X server: %w", err)
	}

	setup := xproto.Setup(conn)
	screen := setup.DefaultScreen(conn)

	return &X11Engine{
		conn:   conn,
		root:   screen.Root,
		screen: screen,
	}, nil
}

// Name returns the engine name.
func (e *X11Engine) Name() string { return "x11" }

// Close releases the X connection. Call only after every surface has
// been released.
func (e *X11Engine) Close() {
	e.conn.Close()
}

// CreateSurface creates a mirror surface. The mirrored window is bound
// later by Load.
func (e *X11Engine) CreateSurface(opts SurfaceOptions) (Surface, error) {
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, fmt.Errorf("x11: invalid surface size %dx%d", opts.Width, opts.Height)
	}

	s := &x11Surface{
		eng:    e,
		opts:   opts,
		frames: make(chan Frame),
		events: make(chan SurfaceEvent, 4),
		rate:   make(chan int),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go s.run()
	return s, nil
}

type x11Surface struct {
	eng  *X11Engine
	opts SurfaceOptions

	frames chan Frame
	events chan SurfaceEvent
	rate   chan int
	quit   chan struct{}
	done   chan struct{}

	mu      sync.Mutex
	url     string
	win     xproto.Window
	feedOn  bool
	paintOn bool
	closing bool
	dead    bool

	release sync.Once
	seq     uint64
}

// run paces GetImage polling at the currently requested rate.
func (s *x11Surface) run() {
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
			f, err := s.grab()
			if err != nil {
				// Window gone: report closure and stop polling.
				logger.WithComponent("x11").Debug().
					Err(err).
					Msg("Mirror capture failed, window presumed gone")
				ticker.Stop()
				ticker = nil
				s.mu.Lock()
				s.dead = true
				s.mu.Unlock()
				select {
				case s.events <- SurfaceEvent{Kind: EventClosed}:
				case <-s.quit:
				}
				continue
			}
			select {
			case s.frames <- f:
			default:
				// Consumer mid-processing; drop, never queue.
			}
		}
	}
}

// grab captures the mirrored window's pixels as a BGRA frame. X
// returns ZPixmap data in BGRX order for 24/32-bit visuals; the alpha
// byte is forced opaque.
func (s *x11Surface) grab() (Frame, error) {
	s.mu.Lock()
	win := s.win
	s.mu.Unlock()

	if win == 0 {
		return Frame{}, fmt.Errorf("x11: no window bound")
	}

	captured := time.Now()

	geom, err := xproto.GetGeometry(s.eng.conn, xproto.Drawable(win)).Reply()
	if err != nil {
		return Frame{}, fmt.Errorf("failed to get window geometry: %w", err)
	}

	reply, err := xproto.GetImage(
		s.eng.conn,
		xproto.ImageFormatZPixmap,
		xproto.Drawable(win),
		0, 0,
		geom.Width, geom.Height,
		0xffffffff,
	).Reply()
	if err != nil {
		return Frame{}, fmt.Errorf("failed to get image: %w", err)
	}

	w, h := int(geom.Width), int(geom.Height)
	data := make([]byte, w*h*4)
	copy(data, reply.Data)
	for i := 3; i < len(data); i += 4 {
		data[i] = 0xff
	}

	s.seq++
	return Frame{
		Width:      w,
		Height:     h,
		Stride:     w * 4,
		Format:     FormatBGRA,
		Data:       data,
		CapturedAt: captured,
		Dirty:      image.Rect(0, 0, w, h),
		Seq:        s.seq,
	}, nil
}

// Load binds the surface to the window its URL names.
func (s *x11Surface) Load(url string) error {
	win, err := s.eng.resolveWindow(url)
	if err != nil {
		err = fmt.Errorf("%w: %v", ErrContentLoad, err)
		select {
		case s.events <- SurfaceEvent{Kind: EventLoadFailed, Err: err}:
		default:
		}
		return err
	}

	s.mu.Lock()
	s.url = url
	s.win = win
	s.dead = false
	s.mu.Unlock()

	logger.WithComponent("x11").Debug().
		Str("url", url).
		Uint32("window_id", uint32(win)).
		Msg("Mirror surface bound")
	return nil
}

// Reload re-resolves the URL; for "x11:active" that re-binds to the
// currently focused window.
func (s *x11Surface) Reload() error {
	s.mu.Lock()
	url := s.url
	s.mu.Unlock()
	if url == "" {
		return fmt.Errorf("%w: nothing loaded", ErrContentLoad)
	}
	return s.Load(url)
}

func (s *x11Surface) setRate(hz int) {
	select {
	case s.rate <- hz:
	case <-s.quit:
	}
}

// StartFrameFeed begins polling at the display's refresh rate. A no-op
// when already feeding.
func (s *x11Surface) StartFrameFeed() error {
	s.mu.Lock()
	if s.feedOn {
		s.mu.Unlock()
		return nil
	}
	refresh := s.opts.Display.RefreshRate
	if refresh <= 0 {
		refresh = 60
	}
	s.feedOn = true
	s.paintOn = false
	s.mu.Unlock()

	s.setRate(refresh)
	return nil
}

// StopFrameFeed cancels the frame feed. A no-op when not feeding.
func (s *x11Surface) StopFrameFeed() error {
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

// StartPaint polls at the requested rate.
func (s *x11Surface) StartPaint(fps int) error {
	if fps <= 0 {
		return fmt.Errorf("x11: invalid paint rate %d", fps)
	}

	s.mu.Lock()
	s.paintOn = true
	s.feedOn = false
	s.mu.Unlock()

	s.setRate(fps)
	return nil
}

// StopPaint cancels rate-controlled polling. A no-op when not painting.
func (s *x11Surface) StopPaint() error {
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
func (s *x11Surface) Frames() <-chan Frame { return s.frames }

// Events returns the lifecycle event channel.
func (s *x11Surface) Events() <-chan SurfaceEvent { return s.events }

// Close requests teardown. A mirror holds no window-system resources
// of its own, so closure is immediate.
func (s *x11Surface) Close() error {
	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		return nil
	}
	s.closing = true
	s.mu.Unlock()

	go func() {
		select {
		case s.events <- SurfaceEvent{Kind: EventClosed}:
		case <-s.quit:
		}
	}()
	return nil
}

// Release forces teardown: polling stops and the channels close.
func (s *x11Surface) Release() {
	s.release.Do(func() {
		close(s.quit)
		<-s.done
		close(s.frames)
		close(s.events)
	})
}

// resolveWindow maps a mirror URL to an X window.
func (e *X11Engine) resolveWindow(url string) (xproto.Window, error) {
	spec, ok := strings.CutPrefix(url, "x11:")
	if !ok {
		return 0, fmt.Errorf("unsupported url %q (want x11:active or x11:<window-id>)", url)
	}

	if spec == "active" {
		return e.activeWindow()
	}

	id, err := strconv.ParseUint(strings.TrimPrefix(spec, "0x"), 16, 32)
	if err != nil {
		// Not hex; try decimal.
		id, err = strconv.ParseUint(spec, 10, 32)
		if err != nil {
			return 0, fmt.Errorf("bad window id %q", spec)
		}
	}
	return xproto.Window(id), nil
}

// activeWindow reads _NET_ACTIVE_WINDOW from the root window.
func (e *X11Engine) activeWindow() (xproto.Window, error) {
	atom, err := e.atom("_NET_ACTIVE_WINDOW")
	if err != nil {
		return 0, err
	}

	prop, err := xproto.GetProperty(
		e.conn, false, e.root, atom, xproto.AtomWindow, 0, 1,
	).Reply()
	if err != nil {
		return 0, fmt.Errorf("failed to read active window: %w", err)
	}
	if len(prop.Value) < 4 {
		return 0, fmt.Errorf("no active window")
	}

	win := xproto.Window(uint32(prop.Value[0]) |
		uint32(prop.Value[1])<<8 |
		uint32(prop.Value[2])<<16 |
		uint32(prop.Value[3])<<24)
	if win == 0 {
		return 0, fmt.Errorf("no active window")
	}
	return win, nil
}

func (e *X11Engine) atom(name string) (xproto.Atom, error) {
	reply, err := xproto.InternAtom(e.conn, false, uint16(len(name)), name).Reply()
	if err != nil {
		return 0, err
	}
	return reply.Atom, nil
}
