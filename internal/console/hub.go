// Package console is the operator surface: the HTTP API for surface
// management and the websocket that streams telemetry events out and
// accepts control actions in.
package console

import (
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/pagecast/pagecast/internal/logger"
	"github.com/pagecast/pagecast/internal/session"
	"github.com/pagecast/pagecast/internal/telemetry"
)

// clientBuffer is the per-connection outbound queue. A client that
// falls further behind loses events; telemetry must never stall a
// pipeline.
const clientBuffer = 64

// ack answers one inbound websocket action.
type ack struct {
	OK     bool   `json:"ok"`
	Action string `json:"action,omitempty"`
	ID     string `json:"id,omitempty"`
	Error  string `json:"error,omitempty"`
}

type client struct {
	conn *websocket.Conn
	send chan any
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.send) })
}

// Hub fans telemetry events out to every connected websocket client
// and feeds their inbound actions into the registry dispatcher. It is
// the console-facing telemetry.Emitter.
type Hub struct {
	mu       sync.Mutex
	clients  map[*client]struct{}
	dispatch func(session.Action) error
	log      *zerolog.Logger
}

// NewHub creates a hub dispatching inbound actions through dispatch.
func NewHub(dispatch func(session.Action) error) *Hub {
	return &Hub{
		clients:  make(map[*client]struct{}),
		dispatch: dispatch,
		log:      logger.WithComponent("console"),
	}
}

// Emit broadcasts the event to every connected client. Clients whose
// queue is full miss this event; Emit itself never blocks.
func (h *Hub) Emit(ev telemetry.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- ev:
		default:
		}
	}
}

// ClientCount reports the number of connected consoles.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// handle owns one websocket connection: a writer goroutine drains the
// outbound queue while this goroutine reads actions until the client
// disconnects.
func (h *Hub) handle(conn *websocket.Conn) {
	c := &client{
		conn: conn,
		send: make(chan any, clientBuffer),
	}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.log.Info().Str("remote", conn.RemoteAddr().String()).Msg("Console connected")

	go h.writer(c)

	for {
		var act session.Action
		if err := conn.ReadJSON(&act); err != nil {
			break
		}

		resp := ack{OK: true, Action: act.Op, ID: act.ID}
		if err := h.dispatch(act); err != nil {
			resp.OK = false
			resp.Error = err.Error()
		}
		select {
		case c.send <- resp:
		default:
		}
	}

	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	c.close()
	h.log.Info().Str("remote", conn.RemoteAddr().String()).Msg("Console disconnected")
}

// writer is the connection's only sender; serializing writes here is
// what lets Emit and action acks share one socket.
func (h *Hub) writer(c *client) {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteJSON(msg); err != nil {
			h.log.Debug().Err(err).Msg("Console write failed")
			return
		}
	}
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		c.close()
	}
}
