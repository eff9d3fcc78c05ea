// Package telemetry carries the event stream pushed to the operator
// console: lifecycle phase notifications, per-surface statistics,
// preview frames, and process CPU usage.
package telemetry

// Console event types. The browser-* pairs bracket requested lifecycle
// transitions; the "after" event of a pair is emitted only on success,
// so a console detects failures as its absence.
const (
	EventBrowserStart    = "browser-start"
	EventBrowserStarted  = "browser-started"
	EventBrowserReload   = "browser-reload"
	EventBrowserReloaded = "browser-reloaded"
	EventBrowserStop     = "browser-stop"
	EventBrowserStopped  = "browser-stopped"

	EventStat    = "stat"
	EventBurst   = "burst"
	EventCapture = "capture"
	EventUsage   = "usage"
)

// Event is one console notification. SurfaceID is empty for
// process-global events (usage).
type Event struct {
	Type      string `json:"type"`
	SurfaceID string `json:"surface_id,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// PreviewPayload carries one downscaled preview frame, red-first
// (RGBA) regardless of the source's channel order.
type PreviewPayload struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Data   []byte `json:"data"`
}

// BurstPayload is the per-second delivery report of one running
// surface: how many raw frames were forwarded versus skipped in the
// elapsed interval, against the configured target rate.
type BurstPayload struct {
	Forwarded int `json:"forwarded"`
	Skipped   int `json:"skipped"`
	Target    int `json:"target"`
}

// Emitter delivers events to the console. Emit never blocks the
// caller; slow consumers lose events rather than stalling pipelines.
type Emitter interface {
	Emit(Event)
}

// NopEmitter discards every event. Used by tests and offline CLI
// paths.
type NopEmitter struct{}

// Emit discards the event.
func (NopEmitter) Emit(Event) {}
