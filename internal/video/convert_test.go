package video

import (
	"bytes"
	"testing"
	"time"

	"github.com/pagecast/pagecast/internal/render"
)

func frame2x1(format render.PixelFormat, data []byte) render.Frame {
	return render.Frame{
		Width:      2,
		Height:     1,
		Stride:     8,
		Format:     format,
		Data:       data,
		CapturedAt: time.Now(),
	}
}

func TestScaleToRGBASwapsDeclaredBGRA(t *testing.T) {
	// Two pixels: pure blue then pure red, stored blue-first.
	src := []byte{
		0xff, 0x00, 0x00, 0xff, // B G R A -> blue pixel
		0x00, 0x00, 0xff, 0xff, // -> red pixel
	}
	f := frame2x1(render.FormatBGRA, src)

	out := ScaleToRGBA(f, 2, 1)

	want := []byte{
		0x00, 0x00, 0xff, 0xff, // R G B A -> blue pixel
		0xff, 0x00, 0x00, 0xff, // -> red pixel
	}
	if !bytes.Equal(out.Pix, want) {
		t.Fatalf("preview bytes = % x, want % x", out.Pix, want)
	}
}

func TestScaleToRGBALeavesDeclaredRGBA(t *testing.T) {
	// Formats already agree; no swap regardless of anything else.
	src := []byte{
		0x00, 0x00, 0xff, 0xff,
		0xff, 0x00, 0x00, 0xff,
	}
	f := frame2x1(render.FormatRGBA, src)

	out := ScaleToRGBA(f, 2, 1)
	if !bytes.Equal(out.Pix, src) {
		t.Fatalf("preview bytes = % x, want unchanged % x", out.Pix, src)
	}
}

func TestScaleToRGBADownscales(t *testing.T) {
	// Uniform 4x4 gray frame downscaled to 2x2 stays uniform gray.
	data := make([]byte, 4*4*4)
	for i := 0; i < len(data); i += 4 {
		data[i], data[i+1], data[i+2], data[i+3] = 0x80, 0x80, 0x80, 0xff
	}
	f := render.Frame{
		Width: 4, Height: 4, Stride: 16,
		Format: render.FormatBGRA,
		Data:   data,
	}

	out := ScaleToRGBA(f, 2, 2)
	if got := out.Bounds(); got.Dx() != 2 || got.Dy() != 2 {
		t.Fatalf("output %dx%d, want 2x2", got.Dx(), got.Dy())
	}
	for i := 0; i < len(out.Pix); i += 4 {
		if out.Pix[i] != 0x80 || out.Pix[i+1] != 0x80 || out.Pix[i+2] != 0x80 {
			t.Fatalf("pixel %d = % x, want uniform 80 80 80", i/4, out.Pix[i:i+4])
		}
	}
}

func TestSwapRBIsInvolution(t *testing.T) {
	orig := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	pix := append([]byte(nil), orig...)

	SwapRB(pix)
	if bytes.Equal(pix, orig) {
		t.Fatal("swap changed nothing")
	}
	SwapRB(pix)
	if !bytes.Equal(pix, orig) {
		t.Fatalf("double swap = % x, want original % x", pix, orig)
	}
}

func TestToRGBAImageCopies(t *testing.T) {
	src := []byte{
		0xff, 0x00, 0x00, 0xff,
		0x00, 0x00, 0xff, 0xff,
	}
	f := frame2x1(render.FormatBGRA, src)

	img := ToRGBAImage(f)
	if img.Pix[0] != 0x00 || img.Pix[2] != 0xff {
		t.Fatalf("converted pixel = % x, want red-first", img.Pix[:4])
	}
	// Source buffer untouched.
	if f.Data[0] != 0xff {
		t.Fatal("conversion mutated the source frame")
	}
}
