package server

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hirameki/rail-mission/internal/catalog"
	"github.com/hirameki/rail-mission/internal/game"
)

const writeWait = 10 * time.Second

// defaultKioskID is assumed when a kiosk connects without announcing one.
const defaultKioskID = "1"

type client struct {
	conn    *websocket.Conn
	mu      sync.Mutex
	role    string
	kioskID string
}

// send writes a message guarded by the client's write mutex and a write
// deadline. A failed or closed connection just returns the error; the
// hub prunes on failure.
func (c *client) send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Hub owns the connection set and routes engine snapshots to interested
// viewers: the kiosk that owns a session, every admin, and the display
// currently following that kiosk. It implements game.Listener.
type Hub struct {
	mu       sync.Mutex
	clients  map[*client]struct{}
	engine   *game.Engine
	logger   *log.Logger
	upgrader websocket.Upgrader
}

// NewHub creates the hub and installs it as the engine's listener.
func NewHub(engine *game.Engine, logger *log.Logger) *Hub {
	if logger == nil {
		logger = log.Default()
	}
	h := &Hub{
		clients: make(map[*client]struct{}),
		engine:  engine,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Local-network kiosk appliance; any origin may connect.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	engine.SetListener(h)
	return h
}

// ServeWS upgrades the request and pumps inbound messages until the
// connection drops.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("websocket upgrade failed remote=%s: %v", r.RemoteAddr, err)
		return
	}

	// The client joins h.clients only once its hello fixes the role and
	// kiosk id; broadcast goroutines never see those fields change.
	c := &client{conn: conn}

	defer func() {
		h.remove(c)
		conn.Close()
		// Disconnects refresh the admin list, like any other change.
		h.engine.AdminHello()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		h.dispatch(c, data)
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
}

// dispatch decodes and routes one inbound message. Malformed payloads,
// unknown types and messages from a role lacking permission are dropped
// without a reply.
func (h *Hub) dispatch(c *client, data []byte) {
	var msg inboundMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}

	if msg.Type == MsgHello {
		h.handleHello(c, msg)
		return
	}

	switch c.role {
	case RoleAdmin:
		h.dispatchAdmin(msg)
	case RoleKiosk:
		h.dispatchKiosk(c, msg)
	}
	// Displays only listen.
}

// handleHello registers the connection under its declared role. Every
// hello is acked, but only known roles join the broadcast set, and a
// connection's identity is whatever its first valid hello declared.
func (h *Hub) handleHello(c *client, msg inboundMsg) {
	switch msg.Role {
	case RoleKiosk, RoleDisplay, RoleAdmin:
		if c.role == "" {
			c.role = msg.Role
			c.kioskID = msg.KioskID
			if c.role == RoleKiosk && c.kioskID == "" {
				c.kioskID = defaultKioskID
			}
			h.mu.Lock()
			h.clients[c] = struct{}{}
			h.mu.Unlock()
		}
		switch c.role {
		case RoleKiosk:
			h.engine.KioskHello(c.kioskID)
		case RoleDisplay:
			h.engine.DisplayHello(msg.KioskID)
		case RoleAdmin:
			h.engine.AdminHello()
		}
	}

	ack, err := json.Marshal(helloAckMsg{Type: MsgHelloAck, AdminSettings: h.engine.Settings()})
	if err != nil {
		return
	}
	if err := c.send(ack); err != nil {
		h.remove(c)
	}
}

func (h *Hub) dispatchAdmin(msg inboundMsg) {
	switch msg.Type {
	case MsgAdminSetDisplayFollow:
		h.engine.SetDisplayFollow(msg.Follow)
	case MsgAdminSetDefaults:
		if msg.Defaults != nil {
			h.engine.SetDefaults(msg.Defaults.Difficulty, msg.Defaults.Mode)
		}
	case MsgAdminResetKiosk:
		if msg.KioskID != "" {
			h.engine.Reset(msg.KioskID)
		}
	}
}

func (h *Hub) dispatchKiosk(c *client, msg inboundMsg) {
	kioskID := c.kioskID
	if kioskID == "" {
		kioskID = defaultKioskID
	}

	switch msg.Type {
	case MsgKioskSetMode:
		h.engine.SetMode(kioskID, catalog.Difficulty(msg.Difficulty), game.Mode(msg.Mode))
	case MsgKioskStart:
		h.engine.Start(kioskID, msg.CardID)
	case MsgKioskToPlanning:
		h.engine.ToPlanning(kioskID)
	case MsgKioskSetRules:
		h.engine.SetRules(kioskID, msg.Rules)
	case MsgKioskToReady:
		h.engine.ToReady(kioskID)
	case MsgKioskDepart:
		h.engine.Depart(kioskID)
	case MsgKioskShowCert:
		h.engine.ShowCert(kioskID)
	case MsgKioskRetry:
		h.engine.Retry(kioskID)
	case MsgKioskNext:
		h.engine.Reset(kioskID)
	case MsgKioskForceReset:
		h.engine.Reset(kioskID)
	}
}

// SessionChanged fans one session's snapshot out to its kiosk, every
// admin, and the display currently following it.
func (h *Hub) SessionChanged(snap game.Snapshot, settings game.AdminSettings, displayTarget string) {
	data, err := json.Marshal(sessionMsg{Type: MsgSession, Session: snap, AdminSettings: settings})
	if err != nil {
		h.logger.Printf("failed to marshal session message kiosk=%s: %v", snap.KioskID, err)
		return
	}

	h.broadcast(data, func(c *client) bool {
		switch c.role {
		case RoleKiosk:
			return c.kioskID == snap.KioskID
		case RoleAdmin:
			return true
		case RoleDisplay:
			return displayTarget == snap.KioskID
		}
		return false
	})
}

// SessionsChanged delivers the full session list to every admin.
func (h *Hub) SessionsChanged(snaps []game.Snapshot, settings game.AdminSettings) {
	data, err := json.Marshal(sessionsMsg{Type: MsgSessions, Sessions: snaps, AdminSettings: settings})
	if err != nil {
		h.logger.Printf("failed to marshal sessions message: %v", err)
		return
	}

	h.broadcast(data, func(c *client) bool {
		return c.role == RoleAdmin
	})
}

// broadcast sends data to every client selected by want. Failed peers
// are pruned; the pruning itself triggers a later admin refresh through
// the read pump's deferred cleanup when the connection fully drops.
func (h *Hub) broadcast(data []byte, want func(*client) bool) {
	h.mu.Lock()
	targets := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		if want(c) {
			targets = append(targets, c)
		}
	}
	h.mu.Unlock()

	for _, c := range targets {
		if err := c.send(data); err != nil {
			h.logger.Printf("failed to send to role=%s kiosk=%s: %v", c.role, c.kioskID, err)
			h.remove(c)
		}
	}
}

// ClientCount reports the number of registered connections.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
