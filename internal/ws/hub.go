package ws

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/certops/certbot-ui/internal/auth"
	"github.com/certops/certbot-ui/pkg/models"
	"github.com/gorilla/websocket"
)

// Hub is the registry of live websocket connections, keyed by user. It
// implements the orchestrator's Notifier interface: operation events go to
// every connection their user has open, certificate updates to everyone.
type Hub struct {
	tokens   *auth.TokenManager
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[string]map[*client]struct{}
}

// NewHub creates a hub that authenticates connections with tokens.
func NewHub(tokens *auth.TokenManager) *Hub {
	return &Hub{
		tokens: tokens,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The browser client connects from the dashboard origin; token
			// auth is the real gate.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		clients: make(map[string]map[*client]struct{}),
	}
}

// ServeHTTP upgrades the connection and authenticates it from the token
// query parameter. Browsers cannot set headers on websocket dials, so the
// bearer token travels in the URL. Bad credentials close with policy
// violation (1008) after the upgrade so the client sees a websocket-level
// error rather than a failed handshake.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "error", err)
		return
	}

	claims, err := h.tokens.Verify(r.URL.Query().Get("token"))
	if err != nil {
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "authentication failed"))
		conn.Close()
		return
	}

	c := &client{
		hub:    h,
		userID: claims.UserID,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
	}
	h.register(c)

	c.enqueue(mustMarshal(Event{Type: EventConnected, Payload: Welcome{Message: "WebSocket connection established"}}))

	go c.writePump()
	go c.readPump()
}

// SendOperationProgress implements certbot.Notifier.
func (h *Hub) SendOperationProgress(userID string, operation models.JobType, progress int, message string) {
	h.sendToUser(userID, Event{
		Type: EventOperationProgress,
		Payload: OperationProgress{Operation: operation, Progress: progress, Message: message},
	})
}

// SendOperationComplete implements certbot.Notifier.
func (h *Hub) SendOperationComplete(userID string, operation models.JobType, success bool, data any) {
	h.sendToUser(userID, Event{
		Type: EventOperationComplete,
		Payload: OperationComplete{Operation: operation, Success: success, Data: data},
	})
}

// SendCertificateUpdate implements certbot.Notifier. The certificate
// inventory is shared across users, so updates broadcast to everyone.
func (h *Hub) SendCertificateUpdate(event string, certificate any) {
	h.sendToUser("", Event{
		Type: EventCertificateUpdate,
		Payload: CertificateUpdate{Event: event, Certificate: certificate},
	})
}

// SendDNSChallenge implements certbot.Notifier.
func (h *Hub) SendDNSChallenge(userID string, challenge models.DNSChallenge) {
	h.sendToUser(userID, Event{Type: EventDNSChallenge, Payload: challenge})
}

// ClientCount reports the number of live connections across all users.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, conns := range h.clients {
		n += len(conns)
	}
	return n
}

// Close disconnects every client. Used during shutdown. Closing the
// underlying connections ends each client's read loop, which unregisters
// itself; only unregister closes the send channel.
func (h *Hub) Close() {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, conns := range h.clients {
		for c := range conns {
			c.conn.Close()
		}
	}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	conns, ok := h.clients[c.userID]
	if !ok {
		conns = make(map[*client]struct{})
		h.clients[c.userID] = conns
	}
	conns[c] = struct{}{}
	slog.Info("websocket client connected", "user_id", c.userID, "connections", len(conns))
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	conns, ok := h.clients[c.userID]
	if !ok {
		return
	}
	if _, ok := conns[c]; !ok {
		return
	}
	delete(conns, c)
	close(c.send)
	if len(conns) == 0 {
		delete(h.clients, c.userID)
	}
	slog.Info("websocket client disconnected", "user_id", c.userID)
}

// sendToUser delivers an event to all of a user's connections; an empty
// userID broadcasts to everyone.
func (h *Hub) sendToUser(userID string, event Event) {
	payload := mustMarshal(event)

	h.mu.RLock()
	defer h.mu.RUnlock()
	for uid, conns := range h.clients {
		if userID != "" && uid != userID {
			continue
		}
		for c := range conns {
			if !c.enqueue(payload) {
				slog.Warn("websocket client buffer full, dropping event",
					"user_id", uid, "event_type", event.Type)
			}
		}
	}
}
