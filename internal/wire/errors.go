package wire

import (
	"net/http"
	"time"
)

// ErrorKind enumerates the application error kinds returned to clients,
// either as an ERROR frame over the socket or as an HTTP error body.
type ErrorKind string

const (
	ErrValidation          ErrorKind = "VALIDATION_ERROR"
	ErrAuthentication      ErrorKind = "AUTHENTICATION_ERROR"
	ErrAuthorization       ErrorKind = "AUTHORIZATION_ERROR"
	ErrNotFound            ErrorKind = "NOT_FOUND"
	ErrRateLimitExceeded   ErrorKind = "RATE_LIMIT_EXCEEDED"
	ErrInvalidInput        ErrorKind = "INVALID_INPUT"
	ErrInternal            ErrorKind = "INTERNAL_ERROR"
	ErrWebsocketMessage    ErrorKind = "WEBSOCKET_MESSAGE_ERROR"
	ErrRoomNotFound        ErrorKind = "ROOM_NOT_FOUND"
	ErrRoomFull            ErrorKind = "ROOM_FULL"
	ErrGameNotActive       ErrorKind = "GAME_NOT_ACTIVE"
	ErrInvalidGameState    ErrorKind = "INVALID_GAME_STATE"
	ErrUserNotFound        ErrorKind = "USER_NOT_FOUND"
	ErrPermissionDenied    ErrorKind = "PERMISSION_DENIED"
	ErrUserAlreadyInRoom   ErrorKind = "USER_ALREADY_IN_ROOM"
	ErrUsernameTaken       ErrorKind = "USERNAME_TAKEN"
	ErrKickedFromRoom      ErrorKind = "KICKED_FROM_ROOM"
)

// httpStatus maps an ErrorKind to the HTTP status an admin/stats handler
// should answer with. WebSocket handlers ignore this and always emit an
// ERROR frame instead of closing.
var httpStatus = map[ErrorKind]int{
	ErrValidation:        http.StatusBadRequest,
	ErrAuthentication:    http.StatusUnauthorized,
	ErrAuthorization:     http.StatusForbidden,
	ErrNotFound:          http.StatusNotFound,
	ErrRateLimitExceeded: http.StatusTooManyRequests,
	ErrInvalidInput:      http.StatusBadRequest,
	ErrInternal:          http.StatusInternalServerError,
	ErrWebsocketMessage:  http.StatusBadRequest,
	ErrRoomNotFound:      http.StatusNotFound,
	ErrRoomFull:          http.StatusConflict,
	ErrGameNotActive:     http.StatusConflict,
	ErrInvalidGameState:  http.StatusConflict,
	ErrUserNotFound:      http.StatusNotFound,
	ErrPermissionDenied:  http.StatusForbidden,
	ErrUserAlreadyInRoom: http.StatusConflict,
	ErrUsernameTaken:     http.StatusConflict,
	ErrKickedFromRoom:    http.StatusForbidden,
}

// HTTPStatus returns the status code for kind, defaulting to 500.
func (k ErrorKind) HTTPStatus() int {
	if s, ok := httpStatus[k]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// AppError is the structured error carried through handlers, HTTP
// responses, and ERROR frames alike.
type AppError struct {
	Kind      ErrorKind      `json:"code"`
	Message   string         `json:"message"`
	Timestamp int64          `json:"timestamp"`
	RequestID string         `json:"requestId,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

// NewError builds an AppError stamped with the current time.
func NewError(kind ErrorKind, message string) *AppError {
	return &AppError{
		Kind:      kind,
		Message:   message,
		Timestamp: time.Now().UnixMilli(),
	}
}

// WithDetails attaches a details map and returns the same error for chaining.
func (e *AppError) WithDetails(d map[string]any) *AppError {
	e.Details = d
	return e
}

func (e *AppError) Error() string {
	return string(e.Kind) + ": " + e.Message
}

// ErrorFrame wraps an AppError as the payload of an ERROR outbound frame.
type ErrorFrame struct {
	Error *AppError `json:"error"`
}

// Frame builds the []byte ERROR frame for this error.
func (e *AppError) Frame() []byte {
	return Marshal(TypeError, ErrorFrame{Error: e})
}

// HTTPEnvelope is the JSON body returned by HTTP handlers on failure.
type HTTPEnvelope struct {
	Error *AppError `json:"error"`
}
