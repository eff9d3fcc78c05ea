// Package session owns the per-surface lifecycle: each Controller is
// one surface's state machine wiring capture, processing, and the
// network sink together, and the Registry is the owning container that
// dispatches control actions across them.
package session

import "errors"

// Phase is a surface session's lifecycle phase. Transitions are
// explicit; no phase is ever inferred from whether a handle happens to
// be nil.
type Phase uint8

const (
	// PhaseCreated: configured, no resources held.
	PhaseCreated Phase = iota
	// PhaseStarting: resources being acquired.
	PhaseStarting
	// PhaseRunning: surface live, frames flowing.
	PhaseRunning
	// PhaseStopping: graceful teardown in progress.
	PhaseStopping
	// PhaseStopped: resources released, restartable.
	PhaseStopped
	// PhaseDestroyed: force-released, no further operations.
	PhaseDestroyed
)

func (p Phase) String() string {
	switch p {
	case PhaseCreated:
		return "created"
	case PhaseStarting:
		return "starting"
	case PhaseRunning:
		return "running"
	case PhaseStopping:
		return "stopping"
	case PhaseStopped:
		return "stopped"
	case PhaseDestroyed:
		return "destroyed"
	default:
		return "unknown"
	}
}

var (
	// ErrInvalidTransition: the operation is not valid in the current
	// phase. No state changes.
	ErrInvalidTransition = errors.New("session: invalid lifecycle transition")

	// ErrResourceAcquisition: the rendering surface or network stream
	// could not be created; the start was aborted and partial
	// resources released.
	ErrResourceAcquisition = errors.New("session: resource acquisition failed")

	// ErrUnknownSurface: the dispatcher has no surface with that id.
	ErrUnknownSurface = errors.New("session: unknown surface id")
)
