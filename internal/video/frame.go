// Package video turns raw captured buffers into console previews and
// network video frames, and owns the outbound sinks that carry them.
package video

import (
	"errors"
	"time"
)

// ErrTransmission reports a mid-stream send failure. It is never
// retried; the surface's session treats it as fatal.
var ErrTransmission = errors.New("video: transmission failed")

// FourCCBGRA tags the raw 32-bit packed, blue-first pixel format every
// network frame carries.
const FourCCBGRA = "BGRA"

// NetFrame is the wire-contract record handed to a Sink: one image
// plus its timing metadata.
type NetFrame struct {
	// Width and Height are device pixels.
	Width  int
	Height int

	// RateN/RateD is the output frame rate as an exact ratio;
	// RateN = target fps x 1000, RateD = 1000, so non-integer rates
	// keep an exact representation.
	RateN int
	RateD int

	FourCC string

	// Aspect is the picture aspect ratio of the device-pixel image.
	Aspect float32

	// Timestamp packs wall-clock capture time as two 32-bit words:
	// high = whole seconds, low = fractional second in 100ns units.
	// Timecode is the same value divided by 100.
	Timestamp int64
	Timecode  int64

	Progressive bool

	// Stride is Width x 4 bytes.
	Stride int
	Data   []byte
}

// Timestamp converts a wall-clock instant into the two-word tick
// encoding, derived from millisecond precision.
func Timestamp(t time.Time) int64 {
	ms := t.UnixMilli()
	secs := ms / 1000
	frac := (ms % 1000) * 10000 // ms -> 100ns units
	return secs<<32 | frac
}

// Interval returns the frame interval the rate ratio describes.
func (f *NetFrame) Interval() time.Duration {
	if f.RateN <= 0 || f.RateD <= 0 {
		return time.Second / 30
	}
	return time.Duration(int64(time.Second) * int64(f.RateD) / int64(f.RateN))
}

// Sink is one outbound network video stream. Send blocks until the
// stream can accept the next frame; that blocking is the pipeline's
// backpressure. A Sink belongs to exactly one surface.
type Sink interface {
	Name() string
	Send(*NetFrame) error
	Close() error
}
