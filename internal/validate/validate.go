// Package validate runs every inbound payload through struct-tag validation
// followed by HTML sanitization of free-text fields, before a handler ever
// sees it.
package validate

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
)

var (
	validate = validator.New(validator.WithRequiredStructEnabled())
	sanitize = bluemonday.StrictPolicy()
)

// reservedUsernames may not be claimed by a player; they are reserved for
// system-originated chat lines and admin surfaces.
var reservedUsernames = toSet([]string{
	"admin", "moderator", "bot", "system", "null", "undefined",
})

func toSet(words []string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[strings.ToLower(w)] = true
	}
	return m
}

var usernamePattern = regexp.MustCompile(`^[\p{L}\p{N} .\-_]{2,30}$`)

// Struct validates s against its `validate` struct tags, wrapping the first
// failing field into a human-readable message.
func Struct(s any) error {
	if err := validate.Struct(s); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%s: failed %s validation", fe.Field(), fe.Tag())
		}
		return err
	}
	return nil
}

// Sanitize strips HTML/script content from free-text user input and
// collapses runs of whitespace to single spaces, returning the trimmed
// value. It is applied after Struct, never before, so length and pattern
// tags see the raw input.
func Sanitize(s string) string {
	return strings.Join(strings.Fields(sanitize.Sanitize(s)), " ")
}

// Username validates and sanitizes a display name: 2-30 chars of unicode
// letters/digits plus space, hyphen, underscore, or period, not a reserved
// word, case-insensitively unique at the call site (uniqueness is the room
// store's job, not this package's).
func Username(raw string) (string, error) {
	name := Sanitize(raw)
	if !usernamePattern.MatchString(name) {
		return "", fmt.Errorf("username must be 2-30 characters of letters, digits, spaces, hyphens, underscores, or periods")
	}
	if reservedUsernames[strings.ToLower(name)] {
		return "", fmt.Errorf("username %q is reserved", name)
	}
	return name, nil
}

// Answer sanitizes a submitted answer string. Flags answers are option
// codes, not free text, but the field still passes through sanitization so
// a malformed client cannot smuggle markup into broadcast payloads.
func Answer(raw string) string {
	return Sanitize(raw)
}

// InviteCode reports whether code looks like a well-formed invite code:
// 6 uppercase alphanumeric characters.
var inviteCodePattern = regexp.MustCompile(`^[A-Z0-9]{6}$`)

func InviteCode(code string) bool {
	return inviteCodePattern.MatchString(code)
}
