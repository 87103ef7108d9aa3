package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ngocmanh2004/demo-security/internal/auth"
	"github.com/ngocmanh2004/demo-security/internal/infrastructure/config"
	"github.com/ngocmanh2004/demo-security/internal/infrastructure/logging"
)

// streamBufferSize is the number of undelivered events held per watcher.
const streamBufferSize = 256

// streamEvent is the frame written to watchers for each auth event.
type streamEvent struct {
	Kind    auth.EventKind `json:"kind"`
	Subject string         `json:"subject,omitempty"`
	UserID  string         `json:"user_id,omitempty"`
	Reason  string         `json:"reason,omitempty"`
	At      string         `json:"at"`
}

// Hub fans auth events out to every connected event-stream watcher.
// Watchers receive all events from the moment they connect; the stream
// is push-only and inbound frames are discarded.
type Hub struct {
	cfg      config.WebSocketConfig
	logger   *logging.Logger
	watchers map[*watcher]struct{}
	closed   bool
	mu       sync.RWMutex
}

// watcher is one upgraded connection on the event stream.
type watcher struct {
	hub     *Hub
	conn    *websocket.Conn
	send    chan []byte
	subject string
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		// Origin checking is handled by CORS middleware
		return true
	},
}

// NewHub creates a new event-stream hub.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger) *Hub {
	return &Hub{
		cfg:      cfg,
		logger:   logger,
		watchers: make(map[*watcher]struct{}),
	}
}

// Run blocks until ctx is cancelled, then disconnects every watcher.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.closeAll()
}

// register adds w to the hub. It reports false once the hub has shut down.
func (h *Hub) register(w *watcher) bool {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return false
	}
	h.watchers[w] = struct{}{}
	n := len(h.watchers)
	h.mu.Unlock()

	h.logger.Debug("event stream watcher connected", "subject", w.subject, "watchers", n)
	return true
}

// unregister removes w and closes its send channel. Only the call that
// removes w from the map closes the channel.
func (h *Hub) unregister(w *watcher) {
	h.mu.Lock()
	_, existed := h.watchers[w]
	if existed {
		delete(h.watchers, w)
		close(w.send)
	}
	n := len(h.watchers)
	h.mu.Unlock()

	if existed {
		h.logger.Debug("event stream watcher disconnected", "subject", w.subject, "watchers", n)
	}
}

// HandleEvent implements auth.EventSink by queueing e for every watcher.
// A watcher whose buffer is full misses the event rather than delay the
// caller.
func (h *Hub) HandleEvent(e auth.Event) {
	data, err := json.Marshal(streamEvent{
		Kind:    e.Kind,
		Subject: e.Subject,
		UserID:  e.UserID,
		Reason:  e.Reason,
		At:      e.At.UTC().Format(time.RFC3339),
	})
	if err != nil {
		h.logger.Error("failed to marshal stream event", "error", err)
		return
	}

	// Send channels are only closed under the write lock, so non-blocking
	// sends under the read lock never hit a closed channel.
	h.mu.RLock()
	defer h.mu.RUnlock()

	dropped := 0
	for w := range h.watchers {
		select {
		case w.send <- data:
		default:
			dropped++
		}
	}
	if dropped > 0 {
		h.logger.Warn("event stream watchers lagging", "kind", e.Kind, "dropped", dropped)
	}
}

// ClientCount returns the number of connected watchers.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.watchers)
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for w := range h.watchers {
		close(w.send)
		delete(h.watchers, w)
	}
}

// handleWebSocket upgrades an admin to the auth event stream. Browsers
// cannot send an Authorization header on the upgrade, so the caller
// presents a ticket from POST /admin/events/ticket instead.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	ticket := r.URL.Query().Get("ticket")
	if ticket == "" {
		writeUnauthorized(w, "ticket query parameter is required")
		return
	}
	entry, ok := s.tickets.consume(ticket)
	if !ok {
		writeUnauthorized(w, "invalid or expired ticket")
		return
	}
	if !entry.identity.Can(auth.PermEventStream) {
		writeForbidden(w, "insufficient permissions")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	wt := &watcher{
		hub:     s.hub,
		conn:    conn,
		send:    make(chan []byte, streamBufferSize),
		subject: entry.identity.Subject,
	}
	if !s.hub.register(wt) {
		//nolint:errcheck // Best-effort close on shutdown
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
		conn.Close()
		return
	}
	s.logger.Info("event stream watcher connected", "subject", wt.subject)

	go wt.writePump()
	go wt.readPump()
}

// readPump discards inbound frames so control frames (pong, close) are
// processed, and unregisters the watcher when the connection ends.
func (w *watcher) readPump() {
	cfg := w.hub.cfg
	defer func() {
		w.hub.unregister(w)
		w.conn.Close()
	}()

	w.conn.SetReadLimit(int64(cfg.MaxMessageSize))
	deadline := time.Duration(cfg.PingInterval+cfg.PongTimeout) * time.Second
	//nolint:errcheck // Best-effort deadline on connection setup
	w.conn.SetReadDeadline(time.Now().Add(deadline))
	w.conn.SetPongHandler(func(string) error {
		return w.conn.SetReadDeadline(time.Now().Add(deadline))
	})

	for {
		if _, _, err := w.conn.NextReader(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				w.hub.logger.Warn("event stream read error", "subject", w.subject, "error", err)
			}
			return
		}
	}
}

// writePump delivers queued events and keeps the connection alive with pings.
func (w *watcher) writePump() {
	cfg := w.hub.cfg
	ticker := time.NewTicker(time.Duration(cfg.PingInterval) * time.Second)
	writeWait := time.Duration(cfg.PongTimeout) * time.Second
	defer func() {
		ticker.Stop()
		w.conn.Close()
	}()

	for {
		select {
		case data, ok := <-w.send:
			//nolint:errcheck // Best-effort deadline; write error caught below
			w.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				//nolint:errcheck // Best-effort close message
				w.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
				return
			}
			if err := w.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			//nolint:errcheck // Best-effort deadline; ping error caught below
			w.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := w.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
