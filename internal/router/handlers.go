package router

import (
	"encoding/json"
	"strings"

	"github.com/google/uuid"

	"flagsgame.dev/internal/conn"
	"flagsgame.dev/internal/rooms"
	"flagsgame.dev/internal/validate"
	"flagsgame.dev/internal/wire"
)

const inviteCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

func generateInviteCode() string {
	raw := uuid.New()
	b := make([]byte, 6)
	for i := range b {
		b[i] = inviteCodeAlphabet[int(raw[i])%len(inviteCodeAlphabet)]
	}
	return string(b)
}

type createRoomRequest struct {
	Name string `json:"name" validate:"required,min=1,max=40"`
}

func (rt *Router) handleCreateRoom(c *conn.Connection, userID string, in wire.Inbound) {
	var req createRoomRequest
	if err := json.Unmarshal(in.Data, &req); err != nil {
		rt.sendErr(c, wire.ErrInvalidInput, "malformed CREATE_ROOM payload")
		return
	}
	if err := validate.Struct(req); err != nil {
		rt.sendErr(c, wire.ErrValidation, err.Error())
		return
	}
	u := rt.Users.Get(userID)
	if u == nil {
		rt.sendErr(c, wire.ErrUserNotFound, "unknown user")
		return
	}
	if u.RoomID != "" {
		rt.sendErr(c, wire.ErrUserAlreadyInRoom, "already in a room")
		return
	}

	name := validate.Sanitize(req.Name)
	var code string
	for {
		code = generateInviteCode()
		if !rt.Rooms.InviteCodeTaken(code) {
			break
		}
	}

	r := rooms.New(uuid.NewString(), name, code, userID)
	r.Lock()
	r.AddMemberLocked(userID, u.Username, true)
	r.Unlock()
	rt.Rooms.Add(r)
	rt.Users.SetRoom(userID, r.ID)

	c.Enqueue(wire.Marshal(wire.TypeCreateRoomSuccess, map[string]any{
		"roomId":     r.ID,
		"inviteCode": r.InviteCode,
		"settings":   r.Settings,
	}))
}

type joinRoomRequest struct {
	InviteCode string `json:"inviteCode" validate:"required,len=6"`
}

func (rt *Router) handleJoinRoom(c *conn.Connection, userID string, in wire.Inbound) {
	var req joinRoomRequest
	if err := json.Unmarshal(in.Data, &req); err != nil {
		rt.sendErr(c, wire.ErrInvalidInput, "malformed JOIN_ROOM payload")
		return
	}
	code := strings.ToUpper(strings.TrimSpace(req.InviteCode))
	if !validate.InviteCode(code) {
		rt.sendErr(c, wire.ErrValidation, "malformed invite code")
		return
	}

	u := rt.Users.Get(userID)
	if u == nil {
		rt.sendErr(c, wire.ErrUserNotFound, "unknown user")
		return
	}
	if u.RoomID != "" {
		rt.sendErr(c, wire.ErrUserAlreadyInRoom, "already in a room")
		return
	}

	r := rt.Rooms.GetByInviteCode(code)
	if r == nil {
		rt.sendErr(c, wire.ErrRoomNotFound, "no room with that invite code")
		return
	}

	r.Lock()
	switch {
	case r.IsKickedLocked(userID):
		r.Unlock()
		rt.sendErr(c, wire.ErrKickedFromRoom, "you were removed from this room")
		return
	case r.IsFullLocked():
		r.Unlock()
		rt.sendErr(c, wire.ErrRoomFull, "room is full")
		return
	case r.UsernameTakenLocked(u.Username):
		r.Unlock()
		rt.sendErr(c, wire.ErrUsernameTaken, "username already taken in this room")
		return
	}
	r.AddMemberLocked(userID, u.Username, false)
	members := r.MembersSnapshotLocked()
	settings := r.Settings
	roomID := r.ID
	r.Unlock()

	rt.Users.SetRoom(userID, roomID)

	c.Enqueue(wire.Marshal(wire.TypeJoinRoomSuccess, map[string]any{
		"roomId":   roomID,
		"settings": settings,
		"members":  members,
	}))
	rt.Broadcast.ToRoomExcept(roomID, userID, wire.TypeUserJoined, map[string]any{
		"userId":   userID,
		"username": u.Username,
	})
}

func (rt *Router) handleLeaveRoom(c *conn.Connection, userID string) {
	rt.leaveRoom(userID)
}

type submitAnswerRequest struct {
	OptionCode string `json:"optionCode" validate:"required"`
}

func (rt *Router) handleSubmitAnswer(c *conn.Connection, userID string, in wire.Inbound) {
	r := rt.currentRoom(userID)
	if r == nil {
		rt.sendErr(c, wire.ErrRoomNotFound, "not currently in a room")
		return
	}
	var req submitAnswerRequest
	if err := json.Unmarshal(in.Data, &req); err != nil {
		rt.sendErr(c, wire.ErrInvalidInput, "malformed SUBMIT_ANSWER payload")
		return
	}
	option := validate.Answer(req.OptionCode)

	if err := rt.Engine.SubmitAnswer(r, userID, option); err != nil {
		rt.sendErr(c, wire.ErrInvalidGameState, err.Error())
		return
	}
	touchActivity(r)
	c.Enqueue(wire.Marshal(wire.TypeAnswerSubmitted, map[string]any{"accepted": true}))
}

type updateSettingsRequest struct {
	Difficulty        string `json:"difficulty" validate:"omitempty,oneof=easy medium hard expert"`
	GameMode          string `json:"gameMode" validate:"omitempty,oneof=classic speed elimination"`
	MaxRoomSize       int    `json:"maxRoomSize" validate:"omitempty,min=2,max=5"`
	QuestionTimeLimit int    `json:"questionTimeLimitSeconds" validate:"omitempty,oneof=10 15 20 30"`
}

func (rt *Router) handleUpdateSettings(c *conn.Connection, userID string, in wire.Inbound) {
	r := rt.currentRoom(userID)
	if r == nil {
		rt.sendErr(c, wire.ErrRoomNotFound, "not currently in a room")
		return
	}
	if r.HostUserID != userID {
		rt.sendErr(c, wire.ErrPermissionDenied, "only the host can change settings")
		return
	}
	var req updateSettingsRequest
	if err := json.Unmarshal(in.Data, &req); err != nil {
		rt.sendErr(c, wire.ErrInvalidInput, "malformed UPDATE_ROOM_SETTINGS payload")
		return
	}
	if err := validate.Struct(req); err != nil {
		rt.sendErr(c, wire.ErrValidation, err.Error())
		return
	}

	r.Lock()
	if r.Game.Phase != rooms.PhaseWaiting && r.Game.Phase != rooms.PhaseFinished {
		r.Unlock()
		rt.sendErr(c, wire.ErrInvalidGameState, "cannot change settings while a game is active")
		return
	}
	if req.Difficulty != "" {
		r.Settings.Difficulty = req.Difficulty
	}
	if req.GameMode != "" {
		r.Settings.GameMode = req.GameMode
	}
	if req.MaxRoomSize != 0 {
		r.Settings.MaxRoomSize = req.MaxRoomSize
	}
	if req.QuestionTimeLimit != 0 {
		r.Settings.QuestionTimeLimit = req.QuestionTimeLimit
	}
	settings := r.Settings
	roomID := r.ID
	r.Unlock()

	rt.Broadcast.ToRoom(roomID, wire.TypeSettingsUpdated, map[string]any{"settings": settings})
}

type kickUserRequest struct {
	UserID string `json:"userId" validate:"required"`
}

func (rt *Router) handleKickUser(c *conn.Connection, userID string, in wire.Inbound) {
	r := rt.currentRoom(userID)
	if r == nil {
		rt.sendErr(c, wire.ErrRoomNotFound, "not currently in a room")
		return
	}
	if r.HostUserID != userID {
		rt.sendErr(c, wire.ErrPermissionDenied, "only the host can kick members")
		return
	}
	var req kickUserRequest
	if err := json.Unmarshal(in.Data, &req); err != nil {
		rt.sendErr(c, wire.ErrInvalidInput, "malformed KICK_USER payload")
		return
	}
	if req.UserID == userID {
		rt.sendErr(c, wire.ErrInvalidInput, "the host cannot kick themselves")
		return
	}

	r.Lock()
	newHost, succeeded := r.KickMemberLocked(req.UserID)
	roomID := r.ID
	r.Unlock()

	rt.Users.SetRoom(req.UserID, "")
	if kicked := rt.Conns.GetByUser(req.UserID); kicked != nil {
		kicked.Enqueue(wire.Marshal(wire.TypeKicked, map[string]any{"roomId": roomID}))
	}
	rt.Broadcast.ToRoom(roomID, wire.TypeUserKicked, map[string]any{"userId": req.UserID})
	if succeeded {
		rt.Broadcast.ToRoom(roomID, wire.TypeHostChanged, map[string]any{"hostUserId": newHost})
	}
}

func (rt *Router) handleStartGame(c *conn.Connection, userID string) {
	r := rt.currentRoom(userID)
	if r == nil {
		rt.sendErr(c, wire.ErrRoomNotFound, "not currently in a room")
		return
	}
	if r.HostUserID != userID {
		rt.sendErr(c, wire.ErrPermissionDenied, "only the host can start the game")
		return
	}
	if r.MemberCount() < 2 {
		rt.sendErr(c, wire.ErrInvalidGameState, "need at least two players")
		return
	}
	if err := rt.Engine.StartGame(r); err != nil {
		rt.sendErr(c, wire.ErrInvalidGameState, err.Error())
		return
	}
	touchActivity(r)
}

func (rt *Router) handleStopGame(c *conn.Connection, userID string) {
	r := rt.currentRoom(userID)
	if r == nil {
		rt.sendErr(c, wire.ErrRoomNotFound, "not currently in a room")
		return
	}
	if r.HostUserID != userID {
		rt.sendErr(c, wire.ErrPermissionDenied, "only the host can stop the game")
		return
	}
	rt.Engine.StopGame(r)
}

func (rt *Router) handleRestartGame(c *conn.Connection, userID string) {
	r := rt.currentRoom(userID)
	if r == nil {
		rt.sendErr(c, wire.ErrRoomNotFound, "not currently in a room")
		return
	}
	if r.HostUserID != userID {
		rt.sendErr(c, wire.ErrPermissionDenied, "only the host can restart the game")
		return
	}
	if r.MemberCount() < 2 {
		rt.sendErr(c, wire.ErrInvalidGameState, "need at least two players")
		return
	}
	r.Lock()
	phase := r.Game.Phase
	r.Unlock()
	if phase != rooms.PhaseFinished {
		rt.sendErr(c, wire.ErrInvalidGameState, "game must be finished to restart")
		return
	}
	if err := rt.Engine.RestartGame(r); err != nil {
		rt.sendErr(c, wire.ErrInvalidGameState, err.Error())
		return
	}
}
