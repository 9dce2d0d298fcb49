// Package panel serves a browser control panel over WebSocket. It mirrors
// the display and accepts push-to-talk, swap and cycle button presses.
package panel

import (
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/steppetalk/voice-terminal/internal/display"
)

// Button names accepted from clients
const (
	ButtonPushToTalk = "ptt"
	ButtonSwap       = "swap"
	ButtonCycle      = "cycle"
)

const writeTimeout = 2 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// The panel is served on the local status port only
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// ButtonMessage is sent by clients when a button changes level
type ButtonMessage struct {
	Button  string `json:"button"`
	Pressed bool   `json:"pressed"`
}

// StatusMessage is broadcast to clients on every display change
type StatusMessage struct {
	Type string `json:"type"`
	display.Frame
}

// Stats summarizes hub activity
type Stats struct {
	ClientCount      int    `json:"client_count"`
	MessagesReceived uint64 `json:"messages_received"`
	MessagesSent     uint64 `json:"messages_sent"`
}

// client is one connected browser
type client struct {
	id        string
	conn      *websocket.Conn
	connected time.Time

	mu sync.Mutex
}

// send writes a message to the client
func (c *client) send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Hub tracks panel clients, button levels and the last rendered frame
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*client
	last    []byte
	cols    int
	logger  zerolog.Logger

	ptt   atomic.Bool
	swap  atomic.Bool
	cycle atomic.Bool

	messagesReceived atomic.Uint64
	messagesSent     atomic.Uint64
}

// NewHub creates a hub rendering frames cols characters wide
func NewHub(cols int, logger zerolog.Logger) *Hub {
	if cols <= 0 {
		cols = display.DefaultColumns
	}
	return &Hub{
		clients: make(map[string]*client),
		cols:    cols,
		logger:  logger.With().Str("component", "panel").Logger(),
	}
}

// SetStatus implements display.Display by broadcasting the frame
func (h *Hub) SetStatus(status display.Status, line1, line2 string) {
	data, err := json.Marshal(StatusMessage{
		Type:  "status",
		Frame: display.Render(status, line1, line2, h.cols),
	})
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to encode status")
		return
	}

	h.mu.Lock()
	h.last = data
	targets := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.Unlock()

	for _, c := range targets {
		if err := c.send(data); err != nil {
			h.logger.Debug().Err(err).Str("client_id", c.id).Msg("Dropping panel client")
			c.conn.Close()
			continue
		}
		h.messagesSent.Add(1)
	}
}

// PushToTalk reports whether the push-to-talk button is held
func (h *Hub) PushToTalk() bool { return h.ptt.Load() }

// Swap reports whether the swap button is held
func (h *Hub) Swap() bool { return h.swap.Load() }

// Cycle reports whether the cycle button is held
func (h *Hub) Cycle() bool { return h.cycle.Load() }

// Press sets a button level. Unknown buttons are ignored and reported false.
func (h *Hub) Press(button string, pressed bool) bool {
	switch button {
	case ButtonPushToTalk:
		h.ptt.Store(pressed)
	case ButtonSwap:
		h.swap.Store(pressed)
	case ButtonCycle:
		h.cycle.Store(pressed)
	default:
		return false
	}
	return true
}

// ReleaseAll drops every button level
func (h *Hub) ReleaseAll() {
	h.ptt.Store(false)
	h.swap.Store(false)
	h.cycle.Store(false)
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// GetStats returns hub statistics
func (h *Hub) GetStats() Stats {
	return Stats{
		ClientCount:      h.ClientCount(),
		MessagesReceived: h.messagesReceived.Load(),
		MessagesSent:     h.messagesSent.Load(),
	}
}

// ServeHTTP upgrades the request and serves one panel client
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to upgrade panel connection")
		return
	}

	c := &client{
		id:        uuid.New().String(),
		conn:      conn,
		connected: time.Now(),
	}

	h.mu.Lock()
	h.clients[c.id] = c
	count := len(h.clients)
	last := h.last
	h.mu.Unlock()

	h.logger.Info().Str("client_id", c.id).Int("clients", count).Msg("Panel client connected")

	defer func() {
		h.mu.Lock()
		delete(h.clients, c.id)
		count := len(h.clients)
		h.mu.Unlock()

		// A vanished client must not leave a button held down
		h.ReleaseAll()
		conn.Close()

		h.logger.Info().
			Str("client_id", c.id).
			Int("clients", count).
			Dur("connected_for", time.Since(c.connected)).
			Msg("Panel client disconnected")
	}()

	if last != nil {
		if err := c.send(last); err != nil {
			return
		}
		h.messagesSent.Add(1)
	}

	// Read loop
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn().Err(err).Str("client_id", c.id).Msg("Panel read error")
			}
			return
		}

		h.messagesReceived.Add(1)
		h.handleMessage(c.id, data)
	}
}

// handleMessage applies one button message
func (h *Hub) handleMessage(clientID string, data []byte) {
	var msg ButtonMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		h.logger.Debug().Err(err).Str("client_id", clientID).Msg("Ignoring malformed panel message")
		return
	}
	if !h.Press(msg.Button, msg.Pressed) {
		h.logger.Debug().Str("client_id", clientID).Str("button", msg.Button).Msg("Ignoring unknown button")
		return
	}
	h.logger.Debug().Str("button", msg.Button).Bool("pressed", msg.Pressed).Msg("Button")
}
