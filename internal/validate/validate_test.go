package validate

import "testing"

func TestUsername_AcceptsWellFormedNames(t *testing.T) {
	for _, raw := range []string{"alice", "Bob Smith", "player_42", "ab"} {
		cleaned, err := Username(raw)
		if err != nil {
			t.Errorf("Username(%q) unexpected error: %v", raw, err)
		}
		if cleaned == "" {
			t.Errorf("Username(%q) returned empty string", raw)
		}
	}
}

func TestUsername_RejectsTooShortOrTooLong(t *testing.T) {
	if _, err := Username("a"); err == nil {
		t.Error("expected a 1-character username to be rejected")
	}
	long := ""
	for i := 0; i < 31; i++ {
		long += "a"
	}
	if _, err := Username(long); err == nil {
		t.Error("expected a 31-character username to be rejected")
	}
}

func TestUsername_RejectsDisallowedCharacters(t *testing.T) {
	for _, raw := range []string{"bob@example.com", "name!", "a/b"} {
		if _, err := Username(raw); err == nil {
			t.Errorf("Username(%q) expected to be rejected", raw)
		}
	}
}

func TestUsername_RejectsReservedWords(t *testing.T) {
	for _, raw := range []string{"admin", "System", "BOT"} {
		if _, err := Username(raw); err == nil {
			t.Errorf("Username(%q) expected to be rejected as reserved", raw)
		}
	}
}

func TestUsername_StripsHTMLBeforePatternCheck(t *testing.T) {
	cleaned, err := Username("<b>alice</b>")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cleaned != "alice" {
		t.Errorf("expected sanitized username %q, got %q", "alice", cleaned)
	}
}

func TestSanitize_StripsMarkupAndScriptContent(t *testing.T) {
	got := Sanitize("  <script>alert(1)</script>hello  ")
	if got != "hello" {
		t.Errorf("Sanitize stripped unexpectedly: got %q", got)
	}
}

func TestAnswer_SanitizesButDoesNotValidateFormat(t *testing.T) {
	got := Answer("<i>US</i>")
	if got != "US" {
		t.Errorf("Answer(%q) = %q, want %q", "<i>US</i>", got, "US")
	}
}

func TestInviteCode_AcceptsOnlySixUppercaseAlphanumeric(t *testing.T) {
	valid := []string{"ABC123", "XYZ789"}
	for _, code := range valid {
		if !InviteCode(code) {
			t.Errorf("InviteCode(%q) = false, want true", code)
		}
	}
	invalid := []string{"abc123", "AB12", "ABCDEFG", "AB-123"}
	for _, code := range invalid {
		if InviteCode(code) {
			t.Errorf("InviteCode(%q) = true, want false", code)
		}
	}
}

func TestStruct_WrapsFirstValidationFailure(t *testing.T) {
	type req struct {
		Name string `validate:"required,min=2"`
	}
	err := Struct(req{Name: ""})
	if err == nil {
		t.Fatal("expected a validation error for an empty required field")
	}
}

func TestStruct_PassesWhenAllTagsSatisfied(t *testing.T) {
	type req struct {
		Name string `validate:"required,min=2"`
	}
	if err := Struct(req{Name: "ok"}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
