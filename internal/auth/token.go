package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
	"strconv"
	"strings"
)

const tokenSecretBytes = 30

// NewTokenSecret returns a random secret and its SHA-256 hex digest
func NewTokenSecret() (secret, hash string, err error) {
	b := make([]byte, tokenSecretBytes)
	if _, err := rand.Read(b); err != nil {
		return "", "", fmt.Errorf("failed to generate token: %w", err)
	}
	secret = hex.EncodeToString(b)
	return secret, HashToken(secret), nil
}

// HashToken returns the SHA-256 hex digest stored for a token secret
func HashToken(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// FormatToken builds the plain-text bearer token "<id>|<secret>"
func FormatToken(id int64, secret string) string {
	return strconv.FormatInt(id, 10) + "|" + secret
}

// ParseToken splits a bearer token into its id and secret. Tokens without an
// id prefix are accepted with id 0.
func ParseToken(token string) (int64, string, bool) {
	token = strings.TrimSpace(token)
	if token == "" {
		return 0, "", false
	}
	idPart, secret, found := strings.Cut(token, "|")
	if !found {
		return 0, token, true
	}
	id, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil || id <= 0 || secret == "" {
		return 0, "", false
	}
	return id, secret, true
}

// GenerateVerificationCode returns a zero-padded 6-digit code
func GenerateVerificationCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", fmt.Errorf("failed to generate verification code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
