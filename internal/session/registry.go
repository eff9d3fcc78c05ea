package session

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pagecast/pagecast/internal/config"
	"github.com/pagecast/pagecast/internal/logger"
	"github.com/pagecast/pagecast/internal/telemetry"
)

// Control action ops. The -all variants fan out over every surface in
// the applicable phase.
const (
	OpAdd       = "add"
	OpMod       = "mod"
	OpDel       = "del"
	OpStart     = "start"
	OpStop      = "stop"
	OpReload    = "reload"
	OpStartAll  = "start-all"
	OpReloadAll = "reload-all"
	OpStopAll   = "stop-all"
)

// Action is one control request from the console.
type Action struct {
	Op     string               `json:"action"`
	ID     string               `json:"id,omitempty"`
	Config *config.SurfacePatch `json:"config,omitempty"`
}

// Status is one surface's externally visible state.
type Status struct {
	Config config.SurfaceConfig `json:"config"`
	Phase  string               `json:"phase"`
}

// Saver persists the surface list; the registry calls it after every
// add, mod, and del. Nil disables persistence.
type Saver func([]config.SurfaceConfig) error

// Registry is the owning container of surface session controllers.
// All control actions pass through the serialized Dispatch entry
// point; the map never leaks, so the one-controller-per-id invariant
// holds by construction.
type Registry struct {
	mu          sync.Mutex
	controllers map[string]*Controller
	opts        ControllerOptions
	emitter     telemetry.Emitter
	save        Saver
	log         *zerolog.Logger
}

// NewRegistry creates an empty registry. Controllers it creates share
// opts; opts.Emitter also receives the phase-transition events.
func NewRegistry(opts ControllerOptions, save Saver) *Registry {
	emitter := opts.Emitter
	if emitter == nil {
		emitter = telemetry.NopEmitter{}
		opts.Emitter = emitter
	}
	return &Registry{
		controllers: make(map[string]*Controller),
		opts:        opts,
		emitter:     emitter,
		save:        save,
		log:         logger.WithComponent("registry"),
	}
}

// Dispatch executes one control action. Actions are serialized: a
// second Dispatch blocks until the first completes.
func (r *Registry) Dispatch(act Action) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch act.Op {
	case OpAdd:
		return r.add(act)
	case OpMod:
		return r.mod(act)
	case OpDel:
		return r.del(act)
	case OpStart, OpStop, OpReload:
		ctl, ok := r.controllers[act.ID]
		if !ok {
			return fmt.Errorf("%w: %q", ErrUnknownSurface, act.ID)
		}
		return r.transition(ctl, act.Op)
	case OpStartAll:
		return r.fanOut(OpStart, func(p Phase) bool {
			return p == PhaseCreated || p == PhaseStopped
		})
	case OpReloadAll:
		return r.fanOut(OpReload, func(p Phase) bool { return p == PhaseRunning })
	case OpStopAll:
		return r.fanOut(OpStop, func(p Phase) bool { return p == PhaseRunning })
	default:
		return fmt.Errorf("registry: unknown action %q", act.Op)
	}
}

func (r *Registry) add(act Action) error {
	id := act.ID
	if id == "" {
		id = uuid.NewString()
	}
	if _, exists := r.controllers[id]; exists {
		return fmt.Errorf("registry: surface %q already exists", id)
	}

	cfg := act.Config.Materialize(id)
	if err := cfg.Validate(); err != nil {
		return err
	}

	r.controllers[id] = NewController(cfg, r.opts)
	r.persist()

	r.log.Info().Str("surface", id).Str("title", cfg.Title).Msg("Surface added")
	return nil
}

func (r *Registry) mod(act Action) error {
	ctl, ok := r.controllers[act.ID]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownSurface, act.ID)
	}
	if err := ctl.Reconfigure(act.Config); err != nil {
		return err
	}
	r.persist()
	return nil
}

func (r *Registry) del(act Action) error {
	ctl, ok := r.controllers[act.ID]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownSurface, act.ID)
	}

	if ctl.Phase() == PhaseRunning {
		if err := r.transition(ctl, OpStop); err != nil {
			return err
		}
	}
	if err := ctl.Destroy(); err != nil {
		return err
	}

	delete(r.controllers, act.ID)
	r.persist()

	r.log.Info().Str("surface", act.ID).Msg("Surface deleted")
	return nil
}

// transition runs one singular lifecycle action, bracketed by the
// console notification pair. The "after" event is emitted only on
// success; a console detects failure as its absence.
func (r *Registry) transition(ctl *Controller, op string) error {
	id := ctl.ID()

	var before, after string
	var fn func() error
	switch op {
	case OpStart:
		before, after, fn = telemetry.EventBrowserStart, telemetry.EventBrowserStarted, ctl.Start
	case OpStop:
		before, after, fn = telemetry.EventBrowserStop, telemetry.EventBrowserStopped, ctl.Stop
	case OpReload:
		before, after, fn = telemetry.EventBrowserReload, telemetry.EventBrowserReloaded, ctl.Reload
	}

	r.emitter.Emit(telemetry.Event{Type: before, SurfaceID: id})
	if err := fn(); err != nil {
		r.log.Warn().Err(err).Str("surface", id).Str("op", op).Msg("Lifecycle action failed")
		return err
	}
	r.emitter.Emit(telemetry.Event{Type: after, SurfaceID: id})
	return nil
}

// fanOut re-dispatches a singular action to every surface whose phase
// is applicable, silently skipping the rest. Individual failures are
// logged inside transition and do not abort the sweep.
func (r *Registry) fanOut(op string, applicable func(Phase) bool) error {
	for _, id := range r.idsLocked() {
		ctl, ok := r.controllers[id]
		if !ok || !applicable(ctl.Phase()) {
			continue
		}
		// Errors already logged; the sweep carries on.
		_ = r.transition(ctl, op)
	}
	return nil
}

func (r *Registry) idsLocked() []string {
	ids := make([]string, 0, len(r.controllers))
	for id := range r.controllers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// persist saves the surface list through the Saver hook. Persistence
// failures are logged, not propagated; the in-memory state is already
// authoritative.
func (r *Registry) persist() {
	if r.save == nil {
		return
	}
	list := make([]config.SurfaceConfig, 0, len(r.controllers))
	for _, id := range r.idsLocked() {
		list = append(list, r.controllers[id].Config())
	}
	if err := r.save(list); err != nil {
		r.log.Error().Err(err).Msg("Failed to persist surface list")
	}
}

// Restore seeds the registry with fully formed configs, typically read
// from the surface store at startup. Invalid or duplicate entries are
// skipped with a warning; restoring does not write back to the store.
func (r *Registry) Restore(list []config.SurfaceConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, cfg := range list {
		if cfg.ID == "" {
			cfg.ID = uuid.NewString()
		}
		if _, exists := r.controllers[cfg.ID]; exists {
			r.log.Warn().Str("surface", cfg.ID).Msg("Duplicate surface in store, skipping")
			continue
		}
		if err := cfg.Validate(); err != nil {
			r.log.Warn().Err(err).Str("surface", cfg.ID).Msg("Invalid surface in store, skipping")
			continue
		}
		r.controllers[cfg.ID] = NewController(cfg, r.opts)
	}
	r.log.Info().Int("surfaces", len(r.controllers)).Msg("Surface store restored")
}

// List returns every surface's status, ordered by id.
func (r *Registry) List() []Status {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Status, 0, len(r.controllers))
	for _, id := range r.idsLocked() {
		ctl := r.controllers[id]
		out = append(out, Status{Config: ctl.Config(), Phase: ctl.Phase().String()})
	}
	return out
}

// Phase reports one surface's phase.
func (r *Registry) Phase(id string) (Phase, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ctl, ok := r.controllers[id]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownSurface, id)
	}
	return ctl.Phase(), nil
}

// Shutdown stops every running surface and destroys them all. Used on
// process exit.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, id := range r.idsLocked() {
		ctl := r.controllers[id]
		if ctl.Phase() == PhaseRunning {
			_ = r.transition(ctl, OpStop)
		}
		if err := ctl.Destroy(); err != nil {
			r.log.Warn().Err(err).Str("surface", id).Msg("Destroy on shutdown failed")
		}
	}
	r.controllers = make(map[string]*Controller)
	r.log.Info().Msg("All surface sessions shut down")
}
