package display

import (
	"fmt"
	"math"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/randr"
	"github.com/BurntSushi/xgb/xproto"

	"github.com/pagecast/pagecast/internal/logger"
)

// X11Provider reads display metrics from the X server: dimensions from
// the default screen, refresh rate via RandR, scale factor from the
// screen's physical DPI.
type X11Provider struct {
	conn      *xgb.Conn
	screen    *xproto.ScreenInfo
	randrInit bool
}

// NewX11Provider connects to the X server.
func NewX11Provider() (*X11Provider, error) {
	conn, err := xgb.NewConn()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to X server: %w", err)
	}

	setup := xproto.Setup(conn)
	screen := setup.DefaultScreen(conn)

	p := &X11Provider{
		conn:   conn,
		screen: screen,
	}

	if err := randr.Init(conn); err != nil {
		logger.WithComponent("display").Warn().
			Err(err).
			Msg("RandR extension not available, assuming 60 Hz")
	} else {
		p.randrInit = true
	}

	return p, nil
}

// Close releases the X connection.
func (p *X11Provider) Close() {
	p.conn.Close()
}

// Displays returns the default screen's metrics.
func (p *X11Provider) Displays() ([]Metrics, error) {
	m := Metrics{
		Width:       int(p.screen.WidthInPixels),
		Height:      int(p.screen.HeightInPixels),
		RefreshRate: p.refreshRate(),
		ScaleFactor: p.scaleFactor(),
	}
	return []Metrics{m}, nil
}

func (p *X11Provider) refreshRate() int {
	if !p.randrInit {
		return 60
	}

	info, err := randr.GetScreenInfo(p.conn, p.screen.Root).Reply()
	if err != nil || info.Rate == 0 {
		logger.WithComponent("display").Debug().
			Err(err).
			Msg("RandR screen info unavailable, assuming 60 Hz")
		return 60
	}
	return int(info.Rate)
}

// scaleFactor derives the UI scale from the screen's physical size,
// snapped to quarter steps and never below 1.0.
func (p *X11Provider) scaleFactor() float64 {
	mm := float64(p.screen.WidthInMillimeters)
	if mm <= 0 {
		return 1.0
	}

	dpi := float64(p.screen.WidthInPixels) / (mm / 25.4)
	scale := math.Round(dpi/96.0*4) / 4
	if scale < 1.0 {
		scale = 1.0
	}
	return scale
}
