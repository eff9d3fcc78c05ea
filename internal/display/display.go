// Package display resolves the metrics of the outputs a surface can be
// placed on: dimensions, refresh rate, and scale factor.
package display

// Metrics describes one display output.
type Metrics struct {
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	RefreshRate int     `json:"refresh_rate"`
	ScaleFactor float64 `json:"scale_factor"`
}

// Provider enumerates the available displays. The first entry is the
// primary display.
type Provider interface {
	Displays() ([]Metrics, error)
}

// Pick selects a display from the list by index. A nil selector or an
// out-of-range index falls back to the primary display.
func Pick(list []Metrics, selector *int) Metrics {
	if len(list) == 0 {
		return Metrics{Width: 1920, Height: 1080, RefreshRate: 60, ScaleFactor: 1.0}
	}
	if selector == nil || *selector < 0 || *selector >= len(list) {
		return list[0]
	}
	return list[*selector]
}

// StaticProvider reports a fixed display list. It backs the simulated
// engine and any environment without a queryable windowing system.
type StaticProvider struct {
	List []Metrics
}

// NewStaticProvider returns a provider with a single fixed display.
func NewStaticProvider(width, height, refreshHz int, scale float64) *StaticProvider {
	if width <= 0 || height <= 0 {
		width, height = 1920, 1080
	}
	if refreshHz <= 0 {
		refreshHz = 60
	}
	if scale <= 0 {
		scale = 1.0
	}
	return &StaticProvider{
		List: []Metrics{{
			Width:       width,
			Height:      height,
			RefreshRate: refreshHz,
			ScaleFactor: scale,
		}},
	}
}

// Displays returns the configured list.
func (p *StaticProvider) Displays() ([]Metrics, error) {
	out := make([]Metrics, len(p.List))
	copy(out, p.List)
	return out, nil
}
