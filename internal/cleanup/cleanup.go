// Package cleanup runs the periodic sweep that expires inactive users and
// stale or empty rooms via a ticker goroutine.
package cleanup

import (
	"context"
	"log/slog"
	"time"

	"flagsgame.dev/internal/broadcast"
	"flagsgame.dev/internal/game"
	"flagsgame.dev/internal/rooms"
	"flagsgame.dev/internal/users"
	"flagsgame.dev/internal/wire"
)

// Service periodically sweeps the user and room stores.
type Service struct {
	users     *users.Store
	rooms     *rooms.Store
	broadcast *broadcast.Broadcaster
	engine    *game.Engine

	interval      time.Duration
	userInactive  time.Duration
	roomTTLWarnAt time.Duration

	warned map[string]bool
}

// New constructs a cleanup Service. engine is used to stop any in-progress
// game before a room it belongs to is removed, so timers scheduled against
// that room never fire against a room the stores no longer know about.
func New(userStore *users.Store, roomStore *rooms.Store, b *broadcast.Broadcaster, engine *game.Engine, interval, userInactive, ttlWarnAt time.Duration) *Service {
	return &Service{
		users:         userStore,
		rooms:         roomStore,
		broadcast:     b,
		engine:        engine,
		interval:      interval,
		userInactive:  userInactive,
		roomTTLWarnAt: ttlWarnAt,
		warned:        make(map[string]bool),
	}
}

// Run drives the sweep loop until ctx is cancelled.
func (s *Service) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepOnce()
		}
	}
}

// sweepOnce runs every sub-sweep, isolating each from a panic in another so
// one misbehaving check never stops the rest of the pass.
func (s *Service) sweepOnce() {
	s.runIsolated("inactive users", s.sweepInactiveUsers)
	s.runIsolated("empty rooms", s.sweepEmptyRooms)
	s.runIsolated("room ttl", s.sweepRoomTTL)
}

func (s *Service) runIsolated(name string, f func()) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("cleanup sub-sweep panicked", "sweep", name, "recover", rec)
		}
	}()
	f()
}

func (s *Service) sweepInactiveUsers() {
	cutoff := time.Now().Add(-s.userInactive)
	for _, id := range s.users.InactiveSince(cutoff) {
		u := s.users.Get(id)
		if u == nil {
			continue
		}
		slog.Info("removing inactive user", "userId", id)
		s.removeFromRoom(u)
		s.users.Remove(id)
	}
}

// removeFromRoom evicts u from whatever room it is currently bound to,
// running the same host-succession and notification flow the session
// router runs on an explicit disconnect, and deletes the room outright if
// that leaves it empty.
func (s *Service) removeFromRoom(u *users.User) {
	if u.RoomID == "" {
		return
	}
	r := s.rooms.Get(u.RoomID)
	if r == nil {
		return
	}

	r.Lock()
	newHost, succeeded := r.RemoveMemberLocked(u.ID)
	empty := len(r.Members) == 0
	roomID := r.ID
	r.Unlock()

	if empty {
		if s.engine != nil {
			s.engine.StopGame(r)
		}
		s.rooms.Remove(roomID)
		delete(s.warned, roomID)
		return
	}
	s.broadcast.ToRoom(roomID, wire.TypeUserLeft, map[string]any{"userId": u.ID})
	if succeeded {
		s.broadcast.ToRoom(roomID, wire.TypeHostChanged, map[string]any{"hostUserId": newHost})
	}
}

func (s *Service) sweepEmptyRooms() {
	for _, r := range s.rooms.All() {
		if r.MemberCount() == 0 {
			slog.Info("removing empty room", "roomId", r.ID)
			if s.engine != nil {
				s.engine.StopGame(r)
			}
			s.rooms.Remove(r.ID)
			delete(s.warned, r.ID)
		}
	}
}

func (s *Service) sweepRoomTTL() {
	now := time.Now()
	for _, r := range s.rooms.All() {
		r.Lock()
		expiresAt := r.ExpiresAt
		isActive := r.Game.IsActive
		roomID := r.ID
		r.Unlock()

		if now.After(expiresAt) {
			slog.Info("expiring room past ttl", "roomId", roomID)
			if isActive && s.engine != nil {
				s.engine.StopGame(r)
			}
			s.broadcast.ToRoom(roomID, wire.TypeRoomExpired, map[string]any{"roomId": roomID})
			s.rooms.Remove(roomID)
			delete(s.warned, roomID)
			continue
		}
		if !s.warned[roomID] && expiresAt.Sub(now) <= s.roomTTLWarnAt {
			s.warned[roomID] = true
			s.broadcast.ToRoom(roomID, wire.TypeRoomTTLWarning, map[string]any{
				"roomId":           roomID,
				"expiresInSeconds": int(expiresAt.Sub(now).Seconds()),
			})
		}
	}
}
