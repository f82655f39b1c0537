// Package api exposes the thin HTTP surface alongside the WebSocket
// endpoint: health, stats, public room lookup, session issuance, and an
// API-key gated admin surface, routed with a plain net/http.ServeMux.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"flagsgame.dev/internal/conn"
	"flagsgame.dev/internal/rooms"
	"flagsgame.dev/internal/router"
	"flagsgame.dev/internal/users"
)

// Server wires the HTTP mux around a Router and the stores it shares.
type Server struct {
	Router      *router.Router
	Rooms       *rooms.Store
	Users       *users.Store
	Conns       *conn.Registry
	AdminAPIKey string
	StartedAt   time.Time
}

// Mux builds the routed http.Handler for the whole HTTP surface.
func (s *Server) Mux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/healthz", s.handleHealthz)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.HandleFunc("GET /api/rooms/{inviteCode}", s.handleRoomLookup)
	mux.HandleFunc("POST /api/session", s.handleSession)
	mux.HandleFunc("GET /ws", s.Router.HandleWS)
	mux.HandleFunc("GET /api/admin/rooms", s.requireAdmin(s.handleAdminRooms))
	mux.HandleFunc("GET /api/admin/users", s.requireAdmin(s.handleAdminUsers))
	return withCORS(mux)
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); router.AllowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Vary", "Origin")
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"uptime":  time.Since(s.StartedAt).String(),
		"rooms":   s.Rooms.Count(),
		"users":   s.Users.Count(),
		"sockets": s.Conns.Count(),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"activeRooms":     s.Rooms.Count(),
		"connectedUsers":  s.Users.Count(),
		"liveConnections": s.Conns.Count(),
	})
}

type roomSummary struct {
	RoomID      string `json:"roomId"`
	Name        string `json:"name"`
	MemberCount int    `json:"memberCount"`
	MaxRoomSize int    `json:"maxRoomSize"`
	Phase       string `json:"phase"`
	IsActive    bool   `json:"isActive"`
	GameMode    string `json:"gameMode"`
}

func (s *Server) handleRoomLookup(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("inviteCode")
	room := s.Rooms.GetByInviteCode(code)
	if room == nil {
		http.NotFound(w, r)
		return
	}
	room.Lock()
	summary := roomSummary{
		RoomID:      room.ID,
		Name:        room.Name,
		MemberCount: len(room.Members),
		MaxRoomSize: room.Settings.MaxRoomSize,
		Phase:       string(room.Game.Phase),
		IsActive:    room.Game.IsActive,
		GameMode:    room.Settings.GameMode,
	}
	room.Unlock()
	writeJSON(w, http.StatusOK, summary)
}

type sessionRequest struct {
	Username string `json:"username"`
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return
	}
	token, userID, err := s.Router.IssueSession(req.Username)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     "session_token",
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(router.SessionTokenTTL.Seconds()),
	})
	writeJSON(w, http.StatusOK, map[string]string{"userId": userID})
}

func (s *Server) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.AdminAPIKey == "" || r.Header.Get("X-API-Key") != s.AdminAPIKey {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func (s *Server) handleAdminRooms(w http.ResponseWriter, r *http.Request) {
	all := s.Rooms.All()
	out := make([]roomSummary, 0, len(all))
	for _, room := range all {
		room.Lock()
		out = append(out, roomSummary{
			RoomID:      room.ID,
			Name:        room.Name,
			MemberCount: len(room.Members),
			MaxRoomSize: room.Settings.MaxRoomSize,
			Phase:       string(room.Game.Phase),
			IsActive:    room.Game.IsActive,
			GameMode:    room.Settings.GameMode,
		})
		room.Unlock()
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAdminUsers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Users.All())
}
