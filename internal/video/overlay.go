package video

import (
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// BurnLabel draws a small debug label into the top-left corner of a
// packed 32bpp buffer, in place. The label palette is grayscale, so
// the buffer's channel order (BGRA or RGBA) does not matter.
func BurnLabel(data []byte, width, height, stride int, text string) {
	if text == "" || width <= 0 || height <= 0 {
		return
	}

	img := &image.RGBA{
		Pix:    data,
		Stride: stride,
		Rect:   image.Rect(0, 0, width, height),
	}

	face := basicfont.Face7x13
	d := &font.Drawer{Face: face}
	textWidth := int(d.MeasureString(text) >> 6)

	const pad = 4
	boxW := textWidth + pad*2
	boxH := face.Height + pad*2
	if boxW > width {
		boxW = width
	}
	if boxH > height {
		boxH = height
	}

	box := image.Rect(0, 0, boxW, boxH)
	draw.Draw(img, box, &image.Uniform{color.RGBA{A: 0xc0}}, image.Point{}, draw.Src)

	d.Dst = img
	d.Src = image.NewUniform(color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff})
	d.Dot = fixed.Point26_6{
		X: fixed.I(pad),
		Y: fixed.I(pad + face.Ascent),
	}
	d.DrawString(text)
}
