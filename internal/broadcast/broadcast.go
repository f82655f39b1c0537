// Package broadcast fans outbound frames out to room members and
// individual users, evicting connections whose outbound buffer is over the
// backpressure ceiling; a user with no registered connection is skipped
// without further action. Every send path
// snapshots the recipient list under the owning lock and releases it
// before touching the network, so a slow or dead socket never blocks a
// room's mutex.
package broadcast

import (
	"log/slog"

	"flagsgame.dev/internal/conn"
	"flagsgame.dev/internal/rooms"
	"flagsgame.dev/internal/users"
	"flagsgame.dev/internal/wire"
)

// Broadcaster fans messages out over live connections.
type Broadcaster struct {
	rooms *rooms.Store
	users *users.Store
	conns *conn.Registry
}

// New constructs a Broadcaster over the given stores.
func New(roomStore *rooms.Store, userStore *users.Store, registry *conn.Registry) *Broadcaster {
	return &Broadcaster{rooms: roomStore, users: userStore, conns: registry}
}

// ToRoom sends msgType/data to every member of roomID. Satisfies the
// game.Broadcaster interface.
func (b *Broadcaster) ToRoom(roomID, msgType string, data any) {
	r := b.rooms.Get(roomID)
	if r == nil {
		return
	}
	members := r.MembersSnapshot()
	frame := wire.Marshal(msgType, data)
	for _, m := range members {
		b.safeSend(m.UserID, frame)
	}
}

// ToRoomExcept sends to every member of roomID except excludedUserID, used
// for messages where the acting user already received a tailored response.
func (b *Broadcaster) ToRoomExcept(roomID, excludedUserID, msgType string, data any) {
	r := b.rooms.Get(roomID)
	if r == nil {
		return
	}
	members := r.MembersSnapshot()
	frame := wire.Marshal(msgType, data)
	for _, m := range members {
		if m.UserID == excludedUserID {
			continue
		}
		b.safeSend(m.UserID, frame)
	}
}

// ToUser sends msgType/data to a single user, if they have a live
// connection.
func (b *Broadcaster) ToUser(userID, msgType string, data any) {
	b.safeSend(userID, wire.Marshal(msgType, data))
}

// ToAll sends msgType/data to every currently connected user, regardless
// of room membership, used for server-wide announcements.
func (b *Broadcaster) ToAll(msgType string, data any) {
	frame := wire.Marshal(msgType, data)
	for _, c := range b.conns.All() {
		b.sendFrame(c, frame)
	}
}

// safeSend resolves userID to its live connection and sends frame,
// evicting the connection if it is backpressured.
func (b *Broadcaster) safeSend(userID string, frame []byte) {
	c := b.conns.GetByUser(userID)
	if c == nil {
		return
	}
	b.sendFrame(c, frame)
}

// sendFrame enqueues frame on c, closing c with the backpressure close
// code if the connection's outbound buffer is over the configured
// ceiling. Never called with any room/user/registry lock held.
func (b *Broadcaster) sendFrame(c *conn.Connection, frame []byte) {
	if c.Enqueue(frame) {
		slog.Warn("connection backpressured, closing", "connId", c.ID, "userId", c.UserID)
		c.Close(1013, "backpressure limit exceeded")
		b.conns.Remove(c.ID)
	}
}
