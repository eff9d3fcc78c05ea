package console

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/pagecast/pagecast/internal/config"
	"github.com/pagecast/pagecast/internal/display"
	"github.com/pagecast/pagecast/internal/logger"
	"github.com/pagecast/pagecast/internal/render"
	"github.com/pagecast/pagecast/internal/session"
	"github.com/pagecast/pagecast/internal/video"
)

// ServerOptions wires the console server's collaborators. Streams is
// nil when previews are served over the network video transport
// instead of HTTP.
type ServerOptions struct {
	Registry *session.Registry
	Hub      *Hub
	Engine   render.Engine
	Provider display.Provider
	Streams  *video.MJPEGHub
}

// Server is the HTTP face of the console: surface management under
// /api, the telemetry websocket under /ws, and MJPEG previews under
// /streams.
type Server struct {
	opts     ServerOptions
	router   *mux.Router
	upgrader websocket.Upgrader
	httpSrv  *http.Server
	started  time.Time
	log      *zerolog.Logger
}

// NewServer creates the console server.
func NewServer(opts ServerOptions) *Server {
	s := &Server{
		opts:    opts,
		router:  mux.NewRouter(),
		started: time.Now(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins for development
			},
		},
		log: logger.WithComponent("console"),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures the API routes.
func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()

	// Surface management. The bulk routes are registered before the
	// {id} routes so mux does not capture "start-all" as an id.
	api.HandleFunc("/surfaces/start-all", s.handleBulk(session.OpStartAll)).Methods("POST")
	api.HandleFunc("/surfaces/stop-all", s.handleBulk(session.OpStopAll)).Methods("POST")
	api.HandleFunc("/surfaces/reload-all", s.handleBulk(session.OpReloadAll)).Methods("POST")

	api.HandleFunc("/surfaces", s.handleListSurfaces).Methods("GET")
	api.HandleFunc("/surfaces", s.handleAddSurface).Methods("POST")
	api.HandleFunc("/surfaces/{id}", s.handleModSurface).Methods("PUT")
	api.HandleFunc("/surfaces/{id}", s.handleDelSurface).Methods("DELETE")
	api.HandleFunc("/surfaces/{id}/start", s.handleLifecycle(session.OpStart)).Methods("POST")
	api.HandleFunc("/surfaces/{id}/stop", s.handleLifecycle(session.OpStop)).Methods("POST")
	api.HandleFunc("/surfaces/{id}/reload", s.handleLifecycle(session.OpReload)).Methods("POST")

	api.HandleFunc("/status", s.handleStatus).Methods("GET")
	api.HandleFunc("/health", s.handleHealth).Methods("GET")

	s.router.HandleFunc("/ws", s.handleWS)
	s.router.HandleFunc("/streams/{id}", s.handleStream).Methods("GET")
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start(port int) error {
	addr := fmt.Sprintf(":%d", port)
	s.httpSrv = &http.Server{
		Addr:    addr,
		Handler: s.enableCORS(s.router),
	}
	s.log.Info().Str("addr", addr).Msg("Console server listening")

	err := s.httpSrv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests and disconnects the websockets.
func (s *Server) Shutdown(ctx context.Context) error {
	s.opts.Hub.Close()
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

// enableCORS adds CORS headers.
func (s *Server) enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// HTTP Handlers

func (s *Server) handleListSurfaces(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.opts.Registry.List())
}

// addRequest is the POST /api/surfaces body. An empty id asks the
// registry to generate one.
type addRequest struct {
	ID     string               `json:"id"`
	Config *config.SurfacePatch `json:"config"`
}

func (s *Server) handleAddSurface(w http.ResponseWriter, r *http.Request) {
	var req addRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.opts.Registry.Dispatch(session.Action{Op: session.OpAdd, ID: req.ID, Config: req.Config}); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, map[string]string{"status": "success"})
}

func (s *Server) handleModSurface(w http.ResponseWriter, r *http.Request) {
	var patch config.SurfacePatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	act := session.Action{Op: session.OpMod, ID: mux.Vars(r)["id"], Config: &patch}
	if err := s.opts.Registry.Dispatch(act); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, map[string]string{"status": "success"})
}

func (s *Server) handleDelSurface(w http.ResponseWriter, r *http.Request) {
	act := session.Action{Op: session.OpDel, ID: mux.Vars(r)["id"]}
	if err := s.opts.Registry.Dispatch(act); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, map[string]string{"status": "success"})
}

func (s *Server) handleLifecycle(op string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		act := session.Action{Op: op, ID: mux.Vars(r)["id"]}
		if err := s.opts.Registry.Dispatch(act); err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, map[string]string{"status": "success"})
	}
}

func (s *Server) handleBulk(op string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.opts.Registry.Dispatch(session.Action{Op: op}); err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, map[string]string{"status": "success"})
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	displays, err := s.opts.Provider.Displays()
	if err != nil {
		s.log.Warn().Err(err).Msg("Display enumeration failed")
		displays = nil
	}
	writeJSON(w, map[string]any{
		"engine":         s.opts.Engine.Name(),
		"displays":       displays,
		"surfaces":       s.opts.Registry.List(),
		"consoles":       s.opts.Hub.ClientCount(),
		"uptime_seconds": int(time.Since(s.started).Seconds()),
		"version":        "0.1.0",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{
		"status":  "healthy",
		"version": "0.1.0",
	})
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	s.opts.Hub.handle(conn)
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if s.opts.Streams == nil {
		http.Error(w, "stream previews not enabled", http.StatusNotFound)
		return
	}
	s.opts.Streams.ServeStream(mux.Vars(r)["id"], w, r)
}

// writeError maps dispatch failures onto HTTP status codes.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, session.ErrUnknownSurface):
		status = http.StatusNotFound
	case errors.Is(err, session.ErrInvalidTransition):
		status = http.StatusConflict
	case errors.Is(err, session.ErrResourceAcquisition), errors.Is(err, video.ErrTransmission):
		status = http.StatusBadGateway
	}
	http.Error(w, err.Error(), status)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// ShutdownTimeout is how long callers should give Shutdown to drain.
const ShutdownTimeout = 5 * time.Second
