// Package render defines the rendering-engine boundary: an Engine
// creates Surfaces, and a Surface produces raw pixel frames through
// either a native-refresh frame feed or rate-controlled paints.
package render

import (
	"errors"
	"image"
	"image/color"
	"time"

	"github.com/pagecast/pagecast/internal/display"
)

// ErrContentLoad reports that a surface could not load its target
// content. Callers treat it as best-effort: log and carry on.
var ErrContentLoad = errors.New("render: content failed to load")

// PixelFormat declares the channel order of a packed 32-bit pixel
// buffer. Conversions key off declared formats only; host byte order
// plays no part.
type PixelFormat uint8

const (
	// FormatBGRA is blue-first packed 32bpp, the order engines produce.
	FormatBGRA PixelFormat = iota
	// FormatRGBA is red-first packed 32bpp, the preview contract.
	FormatRGBA
)

func (f PixelFormat) String() string {
	switch f {
	case FormatBGRA:
		return "BGRA"
	case FormatRGBA:
		return "RGBA"
	default:
		return "unknown"
	}
}

// Frame is one captured image. It is transient: the consumer processes
// it to completion and discards it before accepting the next.
type Frame struct {
	Width  int
	Height int
	Stride int
	Format PixelFormat
	Data   []byte

	// CapturedAt is the wall clock at acquisition start; processing
	// latency is measured against it.
	CapturedAt time.Time

	// Dirty is the region that changed since the previous frame. A
	// zero rectangle means unknown (treat the whole frame as dirty).
	Dirty image.Rectangle

	Seq uint64
}

// EventKind tags a surface lifecycle event.
type EventKind uint8

const (
	// EventClosed reports that the surface has torn itself down; its
	// channels close shortly after.
	EventClosed EventKind = iota
	// EventLoadFailed reports a content-load failure; the surface
	// stays alive.
	EventLoadFailed
)

// SurfaceEvent is delivered on a surface's event channel.
type SurfaceEvent struct {
	Kind EventKind
	Err  error
}

// SurfaceOptions describes the surface to create. Width and Height are
// device pixels.
type SurfaceOptions struct {
	Title       string
	Width       int
	Height      int
	Background  color.RGBA
	Visible     bool
	AlwaysOnTop bool

	// Position pins the window; nil lets the window system place it.
	Position *image.Point

	Display display.Metrics
}

// Surface is one live rendering surface. The two frame-acquisition
// forms are mutually exclusive; starting one stops the other. All
// start/stop calls are idempotent.
//
// Frames is unbuffered and the surface never queues: a frame produced
// while the consumer is mid-processing is dropped. That gives the
// consumer at most one frame in flight.
type Surface interface {
	Load(url string) error
	Reload() error

	StartFrameFeed() error
	StopFrameFeed() error
	StartPaint(fps int) error
	StopPaint() error

	Frames() <-chan Frame
	Events() <-chan SurfaceEvent

	// Close requests graceful teardown; EventClosed follows when the
	// surface has shut down.
	Close() error
	// Release forces teardown immediately and closes the channels.
	// Safe to call after Close, and more than once.
	Release()
}

// Engine creates rendering surfaces.
type Engine interface {
	Name() string
	CreateSurface(opts SurfaceOptions) (Surface, error)
}
