package auth

import (
	"regexp"
	"testing"
)

func TestHasher(t *testing.T) {
	h := NewHasher(4)
	hash, err := h.Hash("secret-password")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}

	ok, err := h.Verify(hash, "secret-password")
	if err != nil || !ok {
		t.Errorf("Verify() = %v, %v; want true, nil", ok, err)
	}
	ok, err = h.Verify(hash, "wrong")
	if err != nil || ok {
		t.Errorf("Verify() wrong password = %v, %v; want false, nil", ok, err)
	}
	if _, err := h.Verify("not-a-hash", "x"); err == nil {
		t.Error("Verify() with malformed hash should error")
	}
}

func TestTokenRoundTrip(t *testing.T) {
	secret, hash, err := NewTokenSecret()
	if err != nil {
		t.Fatalf("NewTokenSecret() error = %v", err)
	}
	if len(secret) != tokenSecretBytes*2 {
		t.Errorf("secret length = %d", len(secret))
	}
	if HashToken(secret) != hash {
		t.Error("HashToken() should match generated hash")
	}

	id, parsed, ok := ParseToken(FormatToken(42, secret))
	if !ok || id != 42 || parsed != secret {
		t.Errorf("ParseToken() = %d, %q, %v", id, parsed, ok)
	}
}

func TestParseToken(t *testing.T) {
	tests := []struct {
		name   string
		token  string
		id     int64
		secret string
		ok     bool
	}{
		{"empty", "", 0, "", false},
		{"bare secret", "abc", 0, "abc", true},
		{"with id", "7|abc", 7, "abc", true},
		{"bad id", "x|abc", 0, "", false},
		{"missing secret", "7|", 0, "", false},
		{"negative id", "-1|abc", 0, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, secret, ok := ParseToken(tt.token)
			if id != tt.id || secret != tt.secret || ok != tt.ok {
				t.Errorf("ParseToken(%q) = %d, %q, %v", tt.token, id, secret, ok)
			}
		})
	}
}

func TestGenerateVerificationCode(t *testing.T) {
	pattern := regexp.MustCompile(`^\d{6}$`)
	for i := 0; i < 50; i++ {
		code, err := GenerateVerificationCode()
		if err != nil {
			t.Fatalf("GenerateVerificationCode() error = %v", err)
		}
		if !pattern.MatchString(code) {
			t.Fatalf("code %q is not 6 digits", code)
		}
	}
}
