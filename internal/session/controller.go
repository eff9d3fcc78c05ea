package session

import (
	"errors"
	"fmt"
	"image"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/pagecast/pagecast/internal/capture"
	"github.com/pagecast/pagecast/internal/config"
	"github.com/pagecast/pagecast/internal/display"
	"github.com/pagecast/pagecast/internal/logger"
	"github.com/pagecast/pagecast/internal/render"
	"github.com/pagecast/pagecast/internal/stats"
	"github.com/pagecast/pagecast/internal/telemetry"
	"github.com/pagecast/pagecast/internal/video"
)

// DefaultGrace is how long Stop waits for a surface to self-report
// closure before force-releasing it.
const DefaultGrace = time.Second

// SinkFactory creates the network video sink for a surface at start.
// Width and height are device pixels.
type SinkFactory func(cfg config.SurfaceConfig, width, height int) (video.Sink, error)

// ControllerOptions carries the collaborators every controller wires
// against. One value is shared by all controllers of a registry.
type ControllerOptions struct {
	Engine   render.Engine
	Provider display.Provider

	// Sinks is consulted when a surface enables network video.
	Sinks SinkFactory

	Emitter telemetry.Emitter

	PreviewWidth  int
	PreviewHeight int

	// StatsWindow zero means "use the surface's target rate";
	// StatsEmitEvery zero means half the window.
	StatsWindow    int
	StatsEmitEvery int

	// Grace bounds Stop's wait for graceful closure. Zero means
	// DefaultGrace.
	Grace time.Duration
}

// Controller is one surface's session: it owns the rendering surface,
// the capture hookup, the frame processor, and (when enabled) the
// outbound sink, exclusively. Lifecycle methods are serialized by an
// internal mutex; the frame pump runs outside it.
type Controller struct {
	mu   sync.Mutex
	cfg  config.SurfaceConfig
	opts ControllerOptions

	phase    Phase
	disp     display.Metrics
	surface  render.Surface
	adapter  *capture.Adapter
	sink     video.Sink
	proc     *video.Processor
	pumpDone chan struct{}

	log *zerolog.Logger
}

// NewController creates a controller in the Created phase. No
// resources are acquired until Start.
func NewController(cfg config.SurfaceConfig, opts ControllerOptions) *Controller {
	if opts.Grace <= 0 {
		opts.Grace = DefaultGrace
	}
	l := logger.WithComponent("session").With().Str("surface", cfg.ID).Logger()
	return &Controller{
		cfg:   cfg,
		opts:  opts,
		phase: PhaseCreated,
		log:   &l,
	}
}

// ID returns the surface id.
func (c *Controller) ID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg.ID
}

// Phase returns the current lifecycle phase.
func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Config returns a copy of the current configuration.
func (c *Controller) Config() config.SurfaceConfig {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg
}

// Start acquires the surface and (if enabled) the sink, wires the
// capture hookup, and transitions to Running. Valid only from Created
// or Stopped; starting a running surface is an invalid transition.
// Any acquisition failure releases partial resources and leaves the
// phase where it started.
func (c *Controller) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	origin := c.phase
	if origin != PhaseCreated && origin != PhaseStopped {
		return fmt.Errorf("%w: cannot start surface %q while %s", ErrInvalidTransition, c.cfg.ID, origin)
	}
	if err := c.cfg.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrResourceAcquisition, err)
	}
	c.phase = PhaseStarting

	fail := func(err error) error {
		c.phase = origin
		return err
	}

	displays, err := c.opts.Provider.Displays()
	if err != nil {
		return fail(fmt.Errorf("%w: display enumeration: %v", ErrResourceAcquisition, err))
	}
	disp := display.Pick(displays, c.cfg.Display)
	c.disp = disp

	deviceW := int(math.Round(float64(c.cfg.Width) * disp.ScaleFactor))
	deviceH := int(math.Round(float64(c.cfg.Height) * disp.ScaleFactor))

	bg, _ := c.cfg.Background()
	surfOpts := render.SurfaceOptions{
		Title:       c.cfg.Title,
		Width:       deviceW,
		Height:      deviceH,
		Background:  bg,
		Visible:     c.cfg.VisibleWindow,
		AlwaysOnTop: c.cfg.AlwaysOnTop,
		Display:     disp,
	}
	if c.cfg.Position != nil {
		surfOpts.Position = &image.Point{X: c.cfg.Position.X, Y: c.cfg.Position.Y}
	}

	surf, err := c.opts.Engine.CreateSurface(surfOpts)
	if err != nil {
		return fail(fmt.Errorf("%w: surface: %v", ErrResourceAcquisition, err))
	}

	// Content-load failures are best-effort: log and carry on. The
	// console independently observes the transitions it requested.
	if err := surf.Load(c.cfg.URL); err != nil {
		c.log.Warn().Err(err).Str("url", c.cfg.URL).Msg("Content load failed, continuing")
	}

	adapter := capture.NewAdapter(surf)
	mode := capture.ModeFor(c.cfg.VisibleWindow)
	if err := adapter.Rewire(mode, disp.RefreshRate, c.cfg.TargetFPS); err != nil {
		surf.Release()
		return fail(fmt.Errorf("%w: capture hookup: %v", ErrResourceAcquisition, err))
	}

	var sink video.Sink
	if c.cfg.EnableNetworkVideo {
		if c.opts.Sinks == nil {
			surf.Release()
			return fail(fmt.Errorf("%w: network video enabled but no sink factory", ErrResourceAcquisition))
		}
		sink, err = c.opts.Sinks(c.cfg, deviceW, deviceH)
		if err != nil {
			surf.Release()
			return fail(fmt.Errorf("%w: network stream: %v", ErrResourceAcquisition, err))
		}
	}

	window := c.opts.StatsWindow
	if window <= 0 {
		window = c.cfg.TargetFPS
	}
	emitEvery := c.opts.StatsEmitEvery
	if emitEvery <= 0 {
		emitEvery = window / 2
	}

	c.surface = surf
	c.adapter = adapter
	c.sink = sink
	c.proc = video.NewProcessor(video.ProcessorOptions{
		SurfaceID:          c.cfg.ID,
		Title:              c.cfg.Title,
		TargetFPS:          c.cfg.TargetFPS,
		EnablePreview:      c.cfg.EnablePreview,
		EnableNetworkVideo: c.cfg.EnableNetworkVideo,
		DebugOverlay:       c.cfg.DebugOverlay,
		PreviewWidth:       c.opts.PreviewWidth,
		PreviewHeight:      c.opts.PreviewHeight,
		Sink:               sink,
		Emitter:            c.opts.Emitter,
		Tracker:            stats.NewTracker(window, emitEvery),
	})

	c.pumpDone = make(chan struct{})
	go c.pump(surf, adapter, c.proc, c.cfg.TargetFPS, c.pumpDone)

	c.phase = PhaseRunning
	c.log.Info().
		Str("mode", mode.String()).
		Int("device_width", deviceW).
		Int("device_height", deviceH).
		Int("target_fps", c.cfg.TargetFPS).
		Int("skip_threshold", adapter.SkipThreshold()).
		Msg("Surface session started")
	return nil
}

// pump is the surface's only frame consumer. It processes one frame to
// completion, including the blocking sink send, before receiving the
// next; the surface drops frames in between. That keeps at most one
// frame in flight for this surface.
func (c *Controller) pump(surf render.Surface, adapter *capture.Adapter, proc *video.Processor, targetFPS int, done chan struct{}) {
	defer close(done)

	burst := time.NewTicker(time.Second)
	defer burst.Stop()
	var forwarded, skipped int

	for {
		select {
		case f, ok := <-surf.Frames():
			if !ok {
				return
			}
			if !adapter.ShouldForward() {
				skipped++
				continue
			}
			forwarded++
			if err := proc.Process(f); err != nil {
				if errors.Is(err, video.ErrTransmission) {
					// Fatal for this surface; stop it without
					// touching the others.
					c.log.Error().Err(err).Msg("Transmission failed, stopping surface")
					go c.Stop()
					return
				}
				c.log.Warn().Err(err).Msg("Frame processing failed")
			}

		case ev, ok := <-surf.Events():
			if !ok {
				return
			}
			switch ev.Kind {
			case render.EventClosed:
				return
			case render.EventLoadFailed:
				c.log.Warn().Err(ev.Err).Msg("Content load failed, continuing")
			}

		case <-burst.C:
			c.opts.Emitter.Emit(telemetry.Event{
				Type:      telemetry.EventBurst,
				SurfaceID: proc.SurfaceID(),
				Payload: telemetry.BurstPayload{
					Forwarded: forwarded,
					Skipped:   skipped,
					Target:    targetFPS,
				},
			})
			forwarded, skipped = 0, 0
		}
	}
}

// Reconfigure merges the patch into the stored config. When Running,
// the capture hookup is re-evaluated in place; the surface itself is
// not torn down. A patch that would leave the config invalid is
// rejected without touching the stored one.
func (c *Controller) Reconfigure(patch *config.SurfacePatch) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.phase == PhaseDestroyed {
		return fmt.Errorf("%w: surface %q is destroyed", ErrInvalidTransition, c.cfg.ID)
	}

	cfg := c.cfg
	patch.Apply(&cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("reconfigure surface %q: %w", c.cfg.ID, err)
	}
	c.cfg = cfg

	if c.phase != PhaseRunning {
		return nil
	}
	mode := capture.ModeFor(c.cfg.VisibleWindow)
	if err := c.adapter.Rewire(mode, c.disp.RefreshRate, c.cfg.TargetFPS); err != nil {
		return fmt.Errorf("reconfigure surface %q: %w", c.cfg.ID, err)
	}
	c.log.Info().
		Str("mode", mode.String()).
		Int("target_fps", c.cfg.TargetFPS).
		Msg("Capture hookup re-evaluated")
	return nil
}

// Reload asks the surface to reload its content. Running only.
func (c *Controller) Reload() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.phase != PhaseRunning {
		return fmt.Errorf("%w: cannot reload surface %q while %s", ErrInvalidTransition, c.cfg.ID, c.phase)
	}
	if err := c.surface.Reload(); err != nil {
		// Same best-effort policy as load at start.
		c.log.Warn().Err(err).Msg("Content reload failed, continuing")
	}
	return nil
}

// Stop tears the session down gracefully: close request, bounded wait
// for the surface to report closure, forced release on timeout. Always
// ends Stopped within one grace period. Running only.
func (c *Controller) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.phase != PhaseRunning {
		return fmt.Errorf("%w: cannot stop surface %q while %s", ErrInvalidTransition, c.cfg.ID, c.phase)
	}
	c.phase = PhaseStopping

	if err := c.surface.Close(); err != nil {
		c.log.Warn().Err(err).Msg("Surface close request failed")
	}

	select {
	case <-c.pumpDone:
	case <-time.After(c.opts.Grace):
		c.log.Warn().
			Dur("grace", c.opts.Grace).
			Msg("Surface did not close in time, force releasing")
		c.surface.Release()
		<-c.pumpDone
	}

	c.teardownLocked()
	c.phase = PhaseStopped
	c.log.Info().Msg("Surface session stopped")
	return nil
}

// Destroy force-releases everything immediately, bypassing the grace
// period. Not valid mid Starting/Stopping; afterwards no operation is
// accepted.
func (c *Controller) Destroy() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.phase {
	case PhaseStarting, PhaseStopping:
		return fmt.Errorf("%w: cannot destroy surface %q while %s", ErrInvalidTransition, c.cfg.ID, c.phase)
	case PhaseDestroyed:
		return fmt.Errorf("%w: surface %q already destroyed", ErrInvalidTransition, c.cfg.ID)
	}

	if c.surface != nil {
		c.surface.Release()
		<-c.pumpDone
	}
	c.teardownLocked()
	c.phase = PhaseDestroyed
	c.log.Info().Msg("Surface session destroyed")
	return nil
}

// teardownLocked releases the sink and clears resource handles. The
// surface itself is already released or self-closed at this point.
func (c *Controller) teardownLocked() {
	if c.surface != nil {
		c.surface.Release()
	}
	if c.sink != nil {
		if err := c.sink.Close(); err != nil {
			c.log.Warn().Err(err).Msg("Sink close failed")
		}
	}
	c.surface = nil
	c.adapter = nil
	c.sink = nil
	c.proc = nil
	c.pumpDone = nil
}
