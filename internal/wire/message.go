// Package wire defines the JSON envelope exchanged over the /ws connection
// and the catalogue of message types flowing in both directions.
package wire

import (
	"encoding/json"
	"time"
)

// Inbound client->server message types.
const (
	TypeCreateRoom         = "CREATE_ROOM"
	TypeJoinRoom           = "JOIN_ROOM"
	TypeLeaveRoom          = "LEAVE_ROOM"
	TypeSubmitAnswer       = "SUBMIT_ANSWER"
	TypeUpdateRoomSettings = "UPDATE_ROOM_SETTINGS"
	TypeKickUser           = "KICK_USER"
	TypeStartGame          = "START_GAME"
	TypeStopGame           = "STOP_GAME"
	TypeRestartGame        = "RESTART_GAME"
	TypeHeartbeatResponse  = "HEARTBEAT_RESPONSE"
)

// Outbound server->client message types.
const (
	TypeAuthSuccess       = "AUTH_SUCCESS"
	TypeCreateRoomSuccess = "CREATE_ROOM_SUCCESS"
	TypeJoinRoomSuccess   = "JOIN_ROOM_SUCCESS"
	TypeUserJoined        = "USER_JOINED"
	TypeUserLeft          = "USER_LEFT"
	TypeUserKicked        = "USER_KICKED"
	TypeHostChanged       = "HOST_CHANGED"
	TypeKicked            = "KICKED"
	TypeGameStarting      = "GAME_STARTING"
	TypeGameRestarted     = "GAME_RESTARTED"
	TypeNewQuestion       = "NEW_QUESTION"
	TypeAnswerSubmitted   = "ANSWER_SUBMITTED"
	TypeQuestionResults   = "QUESTION_RESULTS"
	TypeGameEnded         = "GAME_ENDED"
	TypeGameStopped       = "GAME_STOPPED"
	TypeSettingsUpdated   = "SETTINGS_UPDATED"
	TypeRoomTTLWarning    = "ROOM_TTL_WARNING"
	TypeRoomExpired       = "ROOM_EXPIRED"
	TypeHeartbeat         = "HEARTBEAT"
	TypeError             = "ERROR"
)

// MaxInboundMessageBytes is the ceiling enforced on every inbound frame.
const MaxInboundMessageBytes = 128 * 1024

// BackpressureByteLimit is the outbound buffered-bytes ceiling before a
// connection is considered backpressured and closed.
const BackpressureByteLimit = 1 << 20 // 1 MiB

// Close codes used by the connection layer beyond the standard RFC 6455 set.
const (
	CloseSupersededSession = 4000
	CloseUnauthorized      = 4001
)

// Inbound is the envelope for a client->server frame. Data is left as raw
// JSON so each handler can unmarshal into its own typed payload.
type Inbound struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp,omitempty"`
}

// Outbound is the envelope for every server->client frame. Timestamp is
// stamped fresh immediately before serialization, never set by callers.
type Outbound struct {
	Type      string `json:"type"`
	Data      any    `json:"data,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// New builds an Outbound frame with the current server time.
func New(msgType string, data any) Outbound {
	return Outbound{
		Type:      msgType,
		Data:      data,
		Timestamp: time.Now().UnixMilli(),
	}
}

// Marshal serializes an Outbound frame, panicking on a marshal error since
// outbound payloads are always server-constructed and JSON-safe by
// construction.
func Marshal(msgType string, data any) []byte {
	b, err := json.Marshal(New(msgType, data))
	if err != nil {
		panic("wire: marshal outbound: " + err.Error())
	}
	return b
}
