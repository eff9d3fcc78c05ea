package video

import (
	"image"

	"golang.org/x/image/draw"

	"github.com/pagecast/pagecast/internal/render"
)

// ScaleToRGBA downscales a frame to width x height with bilinear
// filtering and returns it red-first. The R/B swap is decided by the
// frame's declared pixel format against the RGBA target, never by
// host byte order: a BGRA source is swapped, an RGBA source is not.
func ScaleToRGBA(f render.Frame, width, height int) *image.RGBA {
	// The packed 32bpp layout matches image.RGBA's; for a BGRA source
	// the Pix bytes are simply in B,G,R,A order until swapped.
	src := &image.RGBA{
		Pix:    f.Data,
		Stride: f.Stride,
		Rect:   image.Rect(0, 0, f.Width, f.Height),
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.BiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)

	if f.Format == render.FormatBGRA {
		SwapRB(dst.Pix)
	}
	return dst
}

// SwapRB exchanges the first and third byte of every packed pixel,
// converting BGRA to RGBA or back, in place.
func SwapRB(pix []byte) {
	for i := 0; i+3 < len(pix); i += 4 {
		pix[i], pix[i+2] = pix[i+2], pix[i]
	}
}

// ToRGBAImage returns the full-size frame as an image.RGBA, swapping
// channels by the same declared-format rule. The frame's buffer is
// copied; the original stays untouched.
func ToRGBAImage(f render.Frame) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, f.Width, f.Height))
	copy(img.Pix, f.Data)
	if f.Format == render.FormatBGRA {
		SwapRB(img.Pix)
	}
	return img
}
