// Package ws is the realtime channel between the server and every open
// web client. Clients identify themselves with a session token; after that
// they appear in the listener roster and receive queue snapshots whenever
// playback state changes.
package ws

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/Pooh303/sec3music-bot/internal/music"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // the API is already bearer-token gated
	},
}

const (
	writeTimeout = 10 * time.Second
	sendBuffer   = 32
)

// TokenResolver validates an identify token against the session registry.
type TokenResolver interface {
	Resolve(token string) (music.UserRef, bool)
}

// Observer is the roster entry for one identified connection. It renders
// "who's listening" and nothing else; playback state never lives here.
type Observer struct {
	ConnectionID string `json:"connectionId"`
	UserID       string `json:"userId"`
	UserName     string `json:"userName"`
	UserAvatar   string `json:"userAvatar,omitempty"`
}

// frame is the wire envelope for every hub message, both directions.
type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type identifyPayload struct {
	Token string `json:"token"`
}

type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte

	mu         sync.Mutex
	identified bool
	user       music.UserRef
}

// Hub tracks all live connections and fans messages out to them. Sends are
// fire-and-forget: a slow or dead client gets dropped, never blocks the
// mutation that triggered the broadcast.
type Hub struct {
	resolver TokenResolver

	mu      sync.RWMutex
	clients map[*client]struct{}
}

func NewHub(resolver TokenResolver) *Hub {
	return &Hub{
		resolver: resolver,
		clients:  make(map[*client]struct{}),
	}
}

// HandleConnection upgrades the request and services the connection until
// it closes. Run from the HTTP handler goroutine.
func (h *Hub) HandleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := &client{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, sendBuffer),
	}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	go c.writePump()
	h.readPump(c)
}

func (h *Hub) readPump(c *client) {
	defer h.drop(c)

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var f frame
		if err := json.Unmarshal(data, &f); err != nil {
			log.Warn().Str("conn", c.id).Msg("discarding malformed frame")
			continue
		}
		if f.Event == "identify" {
			h.handleIdentify(c, f.Data)
		}
	}
}

func (h *Hub) handleIdentify(c *client, data json.RawMessage) {
	var p identifyPayload
	if err := json.Unmarshal(data, &p); err != nil || p.Token == "" {
		c.sendFrame("error", map[string]string{"error": "identify requires a session token"})
		return
	}

	user, ok := h.resolver.Resolve(p.Token)
	if !ok {
		c.sendFrame("error", map[string]string{"error": "invalid or expired session token"})
		c.conn.Close()
		return
	}

	c.mu.Lock()
	alreadyIdentified := c.identified
	c.identified = true
	c.user = user
	c.mu.Unlock()

	// Reply with the current roster, then tell everyone else.
	c.sendFrame("listeners", h.Roster())
	if !alreadyIdentified {
		h.broadcastExcept(c, "user-joined", c.observer())
		log.Info().Str("conn", c.id).Str("user", user.Name).Msg("observer identified")
	}
}

func (h *Hub) drop(c *client) {
	h.mu.Lock()
	_, present := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()
	if !present {
		return
	}

	c.conn.Close()
	close(c.send)

	c.mu.Lock()
	identified := c.identified
	obs := c.observer()
	c.mu.Unlock()

	if identified {
		h.broadcastExcept(nil, "user-left", obs)
		log.Info().Str("conn", c.id).Str("user", obs.UserName).Msg("observer left")
	}
}

// Roster lists every identified observer.
func (h *Hub) Roster() []Observer {
	h.mu.RLock()
	defer h.mu.RUnlock()

	roster := make([]Observer, 0, len(h.clients))
	for c := range h.clients {
		c.mu.Lock()
		if c.identified {
			roster = append(roster, c.observer())
		}
		c.mu.Unlock()
	}
	return roster
}

// QueueUpdated implements music.Broadcaster: every viewer of the single
// shared queue sees the same snapshot, no per-observer filtering.
func (h *Hub) QueueUpdated(guildID string, snap music.Snapshot) {
	h.broadcastExcept(nil, "queue-updated", snap)
}

func (h *Hub) broadcastExcept(skip *client, event string, data any) {
	payload, err := marshalFrame(event, data)
	if err != nil {
		log.Error().Err(err).Str("event", event).Msg("failed to encode broadcast frame")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if c == skip {
			continue
		}
		select {
		case c.send <- payload:
		default:
			// Slow consumer; skip this frame rather than stall the hub.
			log.Warn().Str("conn", c.id).Str("event", event).Msg("dropped frame for slow client")
		}
	}
}

// observer snapshots the client's roster entry. Caller holds c.mu or has
// exclusive access.
func (c *client) observer() Observer {
	return Observer{
		ConnectionID: c.id,
		UserID:       c.user.ID,
		UserName:     c.user.Name,
		UserAvatar:   c.user.Avatar,
	}
}

func (c *client) sendFrame(event string, data any) {
	payload, err := marshalFrame(event, data)
	if err != nil {
		return
	}
	select {
	case c.send <- payload:
	default:
	}
}

func (c *client) writePump() {
	for payload := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}
}

func marshalFrame(event string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(frame{Event: event, Data: raw})
}
