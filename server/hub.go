package server

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/wippyai/tox-bridge/errors"
	"github.com/wippyai/tox-bridge/instance"
)

const (
	sendBuffer = 64
	writeWait  = 10 * time.Second
)

// ErrTooManyClients is returned when the stream subscriber cap is reached.
var ErrTooManyClients = errors.New(errors.PhaseServe, errors.KindAllocation).
	Detail("too many stream clients").Build()

type client struct {
	conn       *websocket.Conn
	send       chan []byte
	id         string
	generation uint64
	session    instance.ID
}

func (c *client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session finalized"))
}

// streamMessage is one drained batch pushed to stream subscribers.
type streamMessage struct {
	Events  json.RawMessage `json:"events"`
	Session instance.ID     `json:"session"`
}

// Hub fans drained events out to websocket subscribers, grouped by session.
// It observes the bridge so subscribers of a finalized session are closed.
type Hub struct {
	logger   *zap.Logger
	sessions map[instance.ID]map[*client]struct{}
	max      int
	count    int
	mu       sync.RWMutex
}

var _ instance.Observer = (*Hub)(nil)

// NewHub creates a hub holding at most max clients; 0 means no cap.
func NewHub(logger *zap.Logger, max int) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		logger:   logger,
		sessions: make(map[instance.ID]map[*client]struct{}),
		max:      max,
	}
}

func (h *Hub) add(id instance.ID, generation uint64, conn *websocket.Conn) (*client, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.max > 0 && h.count >= h.max {
		return nil, ErrTooManyClients
	}
	c := &client{
		conn:       conn,
		send:       make(chan []byte, sendBuffer),
		id:         uuid.NewString(),
		generation: generation,
		session:    id,
	}
	set := h.sessions[id]
	if set == nil {
		set = make(map[*client]struct{})
		h.sessions[id] = set
	}
	set[c] = struct{}{}
	h.count++
	go c.writePump()
	h.logger.Debug("stream client added", zap.String("client", c.id), zap.Uint32("session", id))
	return c, nil
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

func (h *Hub) removeLocked(c *client) {
	set := h.sessions[c.session]
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(h.sessions, c.session)
	}
	h.count--
	close(c.send)
	h.logger.Debug("stream client removed", zap.String("client", c.id), zap.Uint32("session", c.session))
}

// Subscribed reports whether id has at least one stream client.
func (h *Hub) Subscribed(id instance.ID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[id]) > 0
}

// ClientCount returns the number of connected stream clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count
}

// Broadcast sends an encoded batch to every subscriber of id. Clients that
// cannot keep up are disconnected.
func (h *Hub) Broadcast(id instance.ID, events json.RawMessage) {
	data, err := json.Marshal(streamMessage{Session: id, Events: events})
	if err != nil {
		h.logger.Error("stream marshal failed", zap.Error(err))
		return
	}

	var slow []*client
	h.mu.RLock()
	for c := range h.sessions[id] {
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.logger.Warn("stream client too slow, disconnecting", zap.String("client", c.id))
		h.remove(c)
	}
}

// CloseSession disconnects the subscribers of one generation of id.
// Subscribers of a later session that reused the ID stay connected.
func (h *Hub) CloseSession(id instance.ID, generation uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.sessions[id] {
		if c.generation == generation {
			h.removeLocked(c)
		}
	}
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, set := range h.sessions {
		for c := range set {
			h.removeLocked(c)
		}
	}
}

func (h *Hub) OnInstanceEvent(e instance.Event) {
	if e.Type == instance.EventFinalized {
		h.CloseSession(e.ID, e.Generation)
	}
}
