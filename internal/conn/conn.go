// Package conn owns the live WebSocket connection registry: one entry per
// authenticated connection, buffered outbound delivery, backpressure
// eviction, and the application-level heartbeat exchange that detects a
// silently dead peer.
package conn

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"flagsgame.dev/internal/wire"
)

const (
	writeWait = 10 * time.Second

	// DefaultHeartbeatInterval is how often a HEARTBEAT frame is sent.
	DefaultHeartbeatInterval = 30 * time.Second
	// DefaultHeartbeatTimeout is how long a connection may go without a
	// HEARTBEAT_RESPONSE before a missed beat is counted.
	DefaultHeartbeatTimeout = 10 * time.Second
	// MaxMissedHeartbeats is the number of consecutive missed beats that
	// triggers liveness loss and connection teardown.
	MaxMissedHeartbeats = 3

	sendBufferSize = 64
)

// Connection is one live, authenticated WebSocket connection. Conn writes
// always go through Send so a single writePump goroutine owns the socket.
type Connection struct {
	ID     string
	UserID string
	IP     string
	Conn   *websocket.Conn
	Send   chan []byte

	mu             sync.Mutex
	bufferedBytes  int
	missedBeats    int
	lastBeatSentAt time.Time
	closed         bool
}

func newConnection(id, userID string, ws *websocket.Conn) *Connection {
	return &Connection{
		ID:     id,
		UserID: userID,
		Conn:   ws,
		Send:   make(chan []byte, sendBufferSize),
	}
}

// Enqueue appends msg to the outbound buffer, reporting whether the
// backpressure byte ceiling was exceeded. Drops rather than blocks if the
// channel itself is full so one slow reader cannot stall a broadcast.
func (c *Connection) Enqueue(msg []byte) (overLimit bool) {
	c.mu.Lock()
	c.bufferedBytes += len(msg)
	overLimit = c.bufferedBytes > wire.BackpressureByteLimit
	c.mu.Unlock()

	select {
	case c.Send <- msg:
	default:
	}
	return overLimit
}

func (c *Connection) acctSent(n int) {
	c.mu.Lock()
	c.bufferedBytes -= n
	if c.bufferedBytes < 0 {
		c.bufferedBytes = 0
	}
	c.mu.Unlock()
}

// MarkBeatSent records that a HEARTBEAT frame was just sent.
func (c *Connection) MarkBeatSent() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastBeatSentAt = time.Now()
}

// RecordPong resets the missed-heartbeat counter on a HEARTBEAT_RESPONSE
// and marks the outstanding beat as answered.
func (c *Connection) RecordPong() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.missedBeats = 0
	c.lastBeatSentAt = time.Time{}
}

// CheckMissedBeat increments the missed-heartbeat counter if no response
// arrived within the timeout since the last beat was sent, returning true
// once MaxMissedHeartbeats is reached.
func (c *Connection) CheckMissedBeat(timeout time.Duration) (lost bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastBeatSentAt.IsZero() || time.Since(c.lastBeatSentAt) < timeout {
		return false
	}
	c.missedBeats++
	return c.missedBeats >= MaxMissedHeartbeats
}

// writePump is the sole goroutine allowed to call Conn.WriteMessage. It
// drains Send until the channel is closed or a write fails.
func (c *Connection) writePump() {
	defer c.Conn.Close()
	for msg := range c.Send {
		c.acctSent(len(msg))
		c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.Conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
	c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
	c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
}

// Close marks the connection closed and shuts down its send channel,
// terminating writePump. Safe to call more than once.
func (c *Connection) Close(closeCode int, reason string) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	msg := websocket.FormatCloseMessage(closeCode, reason)
	c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
	c.Conn.WriteMessage(websocket.CloseMessage, msg)
	close(c.Send)
}

// Registry tracks every live connection, indexed by connection id and by
// user id. Adding a connection for a user that already has one live
// supersedes the old one (closed with CloseSupersededSession), matching a
// relogin from a new tab.
type Registry struct {
	mu      sync.Mutex
	byID    map[string]*Connection
	byUser  map[string]*Connection
}

// NewRegistry constructs an empty connection registry.
func NewRegistry() *Registry {
	return &Registry{
		byID:   make(map[string]*Connection),
		byUser: make(map[string]*Connection),
	}
}

// New builds a Connection around an already-upgraded socket, for code
// outside this package (the session router) that needs to construct one
// before registering it.
func New(id, userID string, ws *websocket.Conn) *Connection {
	return newConnection(id, userID, ws)
}

// Track inserts c into both indices and returns the connection it
// superseded for the same user, if any. It does not close the superseded
// connection or start c's write pump; callers compose those separately
// (Add does both, for production use).
func (r *Registry) Track(c *Connection) (superseded *Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	old := r.byUser[c.UserID]
	r.byID[c.ID] = c
	r.byUser[c.UserID] = c
	return old
}

// Add registers ws under id/userID, starts its write pump, and supersedes
// any existing connection already registered for userID.
func (r *Registry) Add(id, userID string, ws *websocket.Conn) *Connection {
	c := newConnection(id, userID, ws)

	if old := r.Track(c); old != nil {
		slog.Info("superseding existing session", "userId", userID, "oldConnId", old.ID)
		old.Close(wire.CloseSupersededSession, "superseded by a new connection")
		r.Remove(old.ID)
	}

	go c.writePump()
	return c
}

// Get returns the connection for id, or nil.
func (r *Registry) Get(id string) *Connection {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byID[id]
}

// GetByUser returns the live connection for userID, or nil.
func (r *Registry) GetByUser(userID string) *Connection {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byUser[userID]
}

// Remove drops a connection from both indices. It does not close the
// connection; callers that are tearing down a dead connection should
// Close it themselves first.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byID[id]
	if !ok {
		return
	}
	delete(r.byID, id)
	if r.byUser[c.UserID] == c {
		delete(r.byUser, c.UserID)
	}
}

// All returns a snapshot of every live connection.
func (r *Registry) All() []*Connection {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Connection, 0, len(r.byID))
	for _, c := range r.byID {
		out = append(out, c)
	}
	return out
}

// Count returns the number of live connections.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}
