package config

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"
)

// Point is a fixed position on the virtual desktop.
type Point struct {
	X int `json:"x" yaml:"x"`
	Y int `json:"y" yaml:"y"`
}

// SurfaceConfig describes one capture surface: the content it renders and
// how its pixel stream is emitted. A surface's config is replaced wholesale
// through reconfigure; it is never partially mutated while a frame is being
// processed.
type SurfaceConfig struct {
	ID                 string `json:"id" yaml:"id"`
	Title              string `json:"title" yaml:"title"`
	URL                string `json:"url" yaml:"url"`
	Width              int    `json:"width" yaml:"width"`
	Height             int    `json:"height" yaml:"height"`
	BackgroundColor    string `json:"background_color" yaml:"background_color"`
	TargetFPS          int    `json:"target_fps" yaml:"target_fps"`
	EnableNetworkVideo bool   `json:"enable_network_video" yaml:"enable_network_video"`
	EnablePreview      bool   `json:"enable_preview" yaml:"enable_preview"`
	VisibleWindow      bool   `json:"visible_window" yaml:"visible_window"`
	AlwaysOnTop        bool   `json:"always_on_top" yaml:"always_on_top"`
	DebugOverlay       bool   `json:"debug_overlay,omitempty" yaml:"debug_overlay,omitempty"`

	// Position pins the window to a fixed spot; nil lets the window
	// system place it. Display selects a specific output by index; nil
	// means the primary display.
	Position *Point `json:"position,omitempty" yaml:"position,omitempty"`
	Display  *int   `json:"display,omitempty" yaml:"display,omitempty"`
}

// DefaultSurface returns the baseline surface configuration that patches
// from add requests are applied over.
func DefaultSurface() SurfaceConfig {
	return SurfaceConfig{
		Title:              "pagecast",
		Width:              1280,
		Height:             720,
		BackgroundColor:    "#000000",
		TargetFPS:          30,
		EnableNetworkVideo: true,
		EnablePreview:      true,
	}
}

// Validate reports the first problem that makes the config unusable for
// starting a surface.
func (c *SurfaceConfig) Validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("config: surface %q: dimensions %dx%d must be positive", c.ID, c.Width, c.Height)
	}
	if c.TargetFPS <= 0 {
		return fmt.Errorf("config: surface %q: target_fps %d must be positive", c.ID, c.TargetFPS)
	}
	if c.BackgroundColor != "" {
		if _, err := c.Background(); err != nil {
			return err
		}
	}
	return nil
}

// Background parses the configured background color. An empty value is
// opaque black.
func (c *SurfaceConfig) Background() (color.RGBA, error) {
	s := strings.TrimPrefix(strings.TrimSpace(c.BackgroundColor), "#")
	if s == "" {
		return color.RGBA{A: 0xff}, nil
	}
	if len(s) != 6 {
		return color.RGBA{}, fmt.Errorf("config: surface %q: background color %q is not #rrggbb", c.ID, c.BackgroundColor)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("config: surface %q: background color %q is not #rrggbb", c.ID, c.BackgroundColor)
	}
	return color.RGBA{
		R: uint8(v >> 16),
		G: uint8(v >> 8),
		B: uint8(v),
		A: 0xff,
	}, nil
}

// SurfacePatch is a partial surface update. Every mutable field is a
// pointer; Apply copies only the fields that are set. This is the only
// merge mechanism for reconfigure and add.
type SurfacePatch struct {
	Title              *string `json:"title,omitempty" yaml:"title,omitempty"`
	URL                *string `json:"url,omitempty" yaml:"url,omitempty"`
	Width              *int    `json:"width,omitempty" yaml:"width,omitempty"`
	Height             *int    `json:"height,omitempty" yaml:"height,omitempty"`
	BackgroundColor    *string `json:"background_color,omitempty" yaml:"background_color,omitempty"`
	TargetFPS          *int    `json:"target_fps,omitempty" yaml:"target_fps,omitempty"`
	EnableNetworkVideo *bool   `json:"enable_network_video,omitempty" yaml:"enable_network_video,omitempty"`
	EnablePreview      *bool   `json:"enable_preview,omitempty" yaml:"enable_preview,omitempty"`
	VisibleWindow      *bool   `json:"visible_window,omitempty" yaml:"visible_window,omitempty"`
	AlwaysOnTop        *bool   `json:"always_on_top,omitempty" yaml:"always_on_top,omitempty"`
	DebugOverlay       *bool   `json:"debug_overlay,omitempty" yaml:"debug_overlay,omitempty"`
	Position           *Point  `json:"position,omitempty" yaml:"position,omitempty"`
	Display            *int    `json:"display,omitempty" yaml:"display,omitempty"`
}

// Apply merges the set fields of the patch into cfg.
func (p *SurfacePatch) Apply(cfg *SurfaceConfig) {
	if p == nil {
		return
	}
	if p.Title != nil {
		cfg.Title = *p.Title
	}
	if p.URL != nil {
		cfg.URL = *p.URL
	}
	if p.Width != nil {
		cfg.Width = *p.Width
	}
	if p.Height != nil {
		cfg.Height = *p.Height
	}
	if p.BackgroundColor != nil {
		cfg.BackgroundColor = *p.BackgroundColor
	}
	if p.TargetFPS != nil {
		cfg.TargetFPS = *p.TargetFPS
	}
	if p.EnableNetworkVideo != nil {
		cfg.EnableNetworkVideo = *p.EnableNetworkVideo
	}
	if p.EnablePreview != nil {
		cfg.EnablePreview = *p.EnablePreview
	}
	if p.VisibleWindow != nil {
		cfg.VisibleWindow = *p.VisibleWindow
	}
	if p.AlwaysOnTop != nil {
		cfg.AlwaysOnTop = *p.AlwaysOnTop
	}
	if p.DebugOverlay != nil {
		cfg.DebugOverlay = *p.DebugOverlay
	}
	if p.Position != nil {
		pos := *p.Position
		cfg.Position = &pos
	}
	if p.Display != nil {
		d := *p.Display
		cfg.Display = &d
	}
}

// Materialize builds a full config for a new surface: defaults, then the
// patch, then the given id.
func (p *SurfacePatch) Materialize(id string) SurfaceConfig {
	cfg := DefaultSurface()
	p.Apply(&cfg)
	cfg.ID = id
	if cfg.Title == "" {
		cfg.Title = id
	}
	return cfg
}
