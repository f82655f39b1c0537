package router

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// sessionClaims is the payload of the short-lived token a client presents
// at WebSocket upgrade time. It is minted by the HTTP handshake handler
// after a user is created, and verified once, before the
// connection is ever added to the registry.
type sessionClaims struct {
	UserID   string `json:"uid"`
	Username string `json:"uname"`
	jwt.RegisteredClaims
}

// SessionTokenTTL is how long a minted session token remains valid, exported
// so the HTTP layer can set a matching cookie MaxAge.
const SessionTokenTTL = 5 * time.Minute

const sessionTokenTTL = SessionTokenTTL

// mintSessionToken signs a short-lived token binding a connection attempt
// to a specific user id, preventing a client from upgrading as anyone but
// who the HTTP layer already authenticated.
func mintSessionToken(secret []byte, userID, username string) (string, error) {
	claims := sessionClaims{
		UserID:   userID,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(sessionTokenTTL)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// verifySessionToken parses and validates a session token, returning the
// bound user id and username.
func verifySessionToken(secret []byte, raw string) (userID, username string, err error) {
	token, err := jwt.ParseWithClaims(raw, &sessionClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return "", "", err
	}
	claims, ok := token.Claims.(*sessionClaims)
	if !ok || !token.Valid {
		return "", "", fmt.Errorf("invalid session token")
	}
	return claims.UserID, claims.Username, nil
}
