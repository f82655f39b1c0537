// Package router implements the session router: WebSocket upgrade,
// inbound frame parsing, validation, rate limiting, and dispatch to the
// room, game, and broadcast layers.
package router

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"flagsgame.dev/internal/broadcast"
	"flagsgame.dev/internal/conn"
	"flagsgame.dev/internal/game"
	"flagsgame.dev/internal/ratelimit"
	"flagsgame.dev/internal/rooms"
	"flagsgame.dev/internal/users"
	"flagsgame.dev/internal/validate"
	"flagsgame.dev/internal/wire"
)

// AllowedOrigins is the set of front-end origins permitted to open a
// WebSocket connection or call the HTTP API. Shared with the CORS
// middleware in internal/api so the two surfaces enforce the same policy.
var AllowedOrigins = map[string]bool{
	"http://localhost:3000":   true,
	"http://localhost:3001":   true,
	"https://flags.games":     true,
	"https://www.flags.games": true,
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		return AllowedOrigins[origin]
	},
}

// Router wires every layer together and owns the /ws handler.
type Router struct {
	Rooms     *rooms.Store
	Users     *users.Store
	Conns     *conn.Registry
	Broadcast *broadcast.Broadcaster
	Engine    *game.Engine
	Limiter   *ratelimit.Limiter
	IPGuard   *ratelimit.IPGuard

	jwtSecret []byte
}

// New constructs a Router over the given collaborators.
func New(roomStore *rooms.Store, userStore *users.Store, registry *conn.Registry, b *broadcast.Broadcaster, engine *game.Engine, limiter *ratelimit.Limiter, jwtSecret []byte) *Router {
	return &Router{
		Rooms:     roomStore,
		Users:     userStore,
		Conns:     registry,
		Broadcast: b,
		Engine:    engine,
		Limiter:   limiter,
		IPGuard:   ratelimit.NewIPGuard(ratelimit.DefaultMaxConnsPerIP),
		jwtSecret: jwtSecret,
	}
}

// IssueSession creates a new user under a fresh id (an existing user with
// the same username is never reused) and mints the session token the client must present via the session_token
// cookie. This is the HTTP-side half of pre-upgrade authentication: the
// client never reaches the WebSocket handshake without first proving it
// can call this endpoint, which is where IP-based abuse controls are
// cheapest to apply.
func (rt *Router) IssueSession(username string) (token string, userID string, err error) {
	cleaned, err := validate.Username(username)
	if err != nil {
		return "", "", err
	}
	id := uuid.NewString()
	rt.Users.Add(id, cleaned, "")
	token, err = mintSessionToken(rt.jwtSecret, id, cleaned)
	if err != nil {
		return "", "", fmt.Errorf("mint session token: %w", err)
	}
	return token, id, nil
}

// authRoom is the room view carried on AUTH_SUCCESS, mirroring the public
// room summary shape used elsewhere in the API.
type authRoom struct {
	RoomID      string `json:"roomId"`
	Name        string `json:"name"`
	MemberCount int    `json:"memberCount"`
	MaxRoomSize int    `json:"maxRoomSize"`
	Phase       string `json:"phase"`
	IsActive    bool   `json:"isActive"`
	GameMode    string `json:"gameMode"`
}

// HandleWS upgrades the HTTP request to a WebSocket connection, verifying
// the session token before the upgrade completes. An invalid or missing
// token is rejected with 401 and never reaches the WebSocket handshake.
func (rt *Router) HandleWS(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie("session_token")
	if err != nil || cookie.Value == "" {
		http.Error(w, "missing session token", http.StatusUnauthorized)
		return
	}
	userID, username, err := verifySessionToken(rt.jwtSecret, cookie.Value)
	if err != nil {
		http.Error(w, "invalid session token", http.StatusUnauthorized)
		return
	}

	ip := clientIP(r)
	if !rt.IPGuard.Allow(ip) {
		http.Error(w, "too many connections from this address", http.StatusTooManyRequests)
		return
	}
	if !rt.Limiter.Allow(ip, "WS_CONNECT") {
		rt.IPGuard.Release(ip)
		http.Error(w, "too many connection attempts", http.StatusTooManyRequests)
		return
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		rt.IPGuard.Release(ip)
		slog.Error("websocket upgrade failed", "error", err)
		return
	}

	connID := uuid.NewString()
	c := rt.Conns.Add(connID, userID, ws)
	c.IP = ip

	u := rt.Users.Get(userID)
	if u == nil {
		u = rt.Users.Add(userID, username, connID)
	}
	rt.Users.Touch(userID)

	isAdmin, roomOut := rt.rehydrateRoom(u)

	c.Enqueue(wire.Marshal(wire.TypeAuthSuccess, map[string]any{
		"userId":  userID,
		"isAdmin": isAdmin,
		"user": map[string]any{
			"userId":   userID,
			"username": username,
		},
		"room": roomOut,
	}))

	rt.readLoop(c, userID)
}

// rehydrateRoom restores a reconnecting user's room binding. If the user's
// stored room still exists and still lists them as a member, that room is
// returned as-is. If the stored binding is stale but the user is still
// recorded as some live room's host, they are reattached as a member of
// that room and the stored binding is corrected. Otherwise there is no
// room to rehydrate.
func (rt *Router) rehydrateRoom(u *users.User) (isAdmin bool, room *authRoom) {
	if u.RoomID != "" {
		if r := rt.Rooms.Get(u.RoomID); r != nil {
			r.Lock()
			for _, m := range r.Members {
				if m.UserID == u.ID {
					out := &authRoom{
						RoomID:      r.ID,
						Name:        r.Name,
						MemberCount: len(r.Members),
						MaxRoomSize: r.Settings.MaxRoomSize,
						Phase:       string(r.Game.Phase),
						IsActive:    r.Game.IsActive,
						GameMode:    r.Settings.GameMode,
					}
					admin := m.IsAdmin
					r.Unlock()
					return admin, out
				}
			}
			r.Unlock()
		}
		rt.Users.SetRoom(u.ID, "")
	}

	for _, r := range rt.Rooms.All() {
		r.Lock()
		if r.HostUserID == u.ID {
			alreadyMember := false
			for _, m := range r.Members {
				if m.UserID == u.ID {
					alreadyMember = true
					break
				}
			}
			if !alreadyMember {
				r.AddMemberLocked(u.ID, u.Username, true)
			}
			out := &authRoom{
				RoomID:      r.ID,
				Name:        r.Name,
				MemberCount: len(r.Members),
				MaxRoomSize: r.Settings.MaxRoomSize,
				Phase:       string(r.Game.Phase),
				IsActive:    r.Game.IsActive,
				GameMode:    r.Settings.GameMode,
			}
			r.Unlock()
			rt.Users.SetRoom(u.ID, r.ID)
			return true, out
		}
		r.Unlock()
	}
	return false, nil
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	return r.RemoteAddr
}

// readLoop is the sole reader of c.Conn; it owns the connection's lifetime
// from upgrade until the socket closes or liveness is lost.
func (rt *Router) readLoop(c *conn.Connection, userID string) {
	defer rt.handleDisconnect(c, userID)

	c.Conn.SetReadLimit(wire.MaxInboundMessageBytes)
	for {
		_, raw, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Debug("websocket read error", "connId", c.ID, "error", err)
			}
			return
		}

		var in wire.Inbound
		if err := json.Unmarshal(raw, &in); err != nil {
			c.Enqueue(wire.NewError(wire.ErrWebsocketMessage, "malformed message").Frame())
			continue
		}

		rt.Users.Touch(userID)

		if !rt.Limiter.Allow(userID, in.Type) {
			c.Enqueue(wire.NewError(wire.ErrRateLimitExceeded, "too many "+in.Type+" actions").Frame())
			continue
		}

		rt.dispatch(c, userID, in)
	}
}

func (rt *Router) dispatch(c *conn.Connection, userID string, in wire.Inbound) {
	switch in.Type {
	case wire.TypeCreateRoom:
		rt.handleCreateRoom(c, userID, in)
	case wire.TypeJoinRoom:
		rt.handleJoinRoom(c, userID, in)
	case wire.TypeLeaveRoom:
		rt.handleLeaveRoom(c, userID)
	case wire.TypeSubmitAnswer:
		rt.handleSubmitAnswer(c, userID, in)
	case wire.TypeUpdateRoomSettings:
		rt.handleUpdateSettings(c, userID, in)
	case wire.TypeKickUser:
		rt.handleKickUser(c, userID, in)
	case wire.TypeStartGame:
		rt.handleStartGame(c, userID)
	case wire.TypeStopGame:
		rt.handleStopGame(c, userID)
	case wire.TypeRestartGame:
		rt.handleRestartGame(c, userID)
	case wire.TypeHeartbeatResponse:
		c.RecordPong()
	default:
		c.Enqueue(wire.NewError(wire.ErrWebsocketMessage, "unknown message type: "+in.Type).Frame())
	}
}

func (rt *Router) sendErr(c *conn.Connection, kind wire.ErrorKind, msg string) {
	c.Enqueue(wire.NewError(kind, msg).Frame())
}

// currentRoom looks up the room a user belongs to via the user directory.
func (rt *Router) currentRoom(userID string) *rooms.Room {
	u := rt.Users.Get(userID)
	if u == nil || u.RoomID == "" {
		return nil
	}
	return rt.Rooms.Get(u.RoomID)
}

// handleDisconnect runs the disconnect flow: deregister the connection,
// leave any room the user was in, and notify the remaining members.
func (rt *Router) handleDisconnect(c *conn.Connection, userID string) {
	rt.Conns.Remove(c.ID)
	rt.Limiter.Forget(userID)
	if c.IP != "" {
		rt.IPGuard.Release(c.IP)
	}
	rt.leaveRoom(userID)
	c.Conn.Close()
}

func (rt *Router) leaveRoom(userID string) {
	r := rt.currentRoom(userID)
	if r == nil {
		return
	}
	r.Lock()
	newHost, succeeded := r.RemoveMemberLocked(userID)
	empty := len(r.Members) == 0
	roomID := r.ID
	r.Unlock()

	rt.Users.SetRoom(userID, "")

	if empty {
		rt.Rooms.Remove(roomID)
		return
	}
	rt.Broadcast.ToRoom(roomID, wire.TypeUserLeft, map[string]any{"userId": userID})
	if succeeded {
		rt.Broadcast.ToRoom(roomID, wire.TypeHostChanged, map[string]any{"hostUserId": newHost})
	}
}

// touchActivity renews a room's TTL whenever a member acts within it.
func touchActivity(r *rooms.Room) {
	r.RenewTTL(rooms.DefaultTTL)
}
