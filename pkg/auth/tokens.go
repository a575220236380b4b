package auth

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TokenManager issues and validates stateless, symmetrically-signed session
// tokens of the form "<username>:<expiry-unix-seconds>:<signature>", where
// signature = SHA1("<username>:<expiry>" + secret). No token state is kept
// server-side; validity rests entirely on the signature and expiry.
type TokenManager struct {
	secret string
}

// NewTokenManager builds a TokenManager signing with secret, which must be
// non-empty.
func NewTokenManager(secret string) (*TokenManager, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, fmt.Errorf("auth: token secret must not be empty")
	}
	return &TokenManager{secret: secret}, nil
}

// Generate issues a token for username valid for ttlSeconds from now.
func (m *TokenManager) Generate(username string, ttlSeconds int64) string {
	expiry := time.Now().Unix() + ttlSeconds
	return m.sign(username, expiry)
}

// Validate checks token's signature and expiry, returning the username it
// authenticates on success.
func (m *TokenManager) Validate(token string) (string, error) {
	parts := strings.SplitN(token, ":", 3)
	if len(parts) != 3 {
		return "", fmt.Errorf("auth: malformed token")
	}
	username, expiryStr, sig := parts[0], parts[1], parts[2]

	expiry, err := strconv.ParseInt(expiryStr, 10, 64)
	if err != nil {
		return "", fmt.Errorf("auth: malformed token expiry: %w", err)
	}

	expected := m.signature(username, expiry)
	if expected != sig {
		return "", fmt.Errorf("auth: token signature mismatch")
	}
	if time.Now().Unix() > expiry {
		return "", fmt.Errorf("auth: token expired")
	}
	return username, nil
}

func (m *TokenManager) sign(username string, expiry int64) string {
	return fmt.Sprintf("%s:%d:%s", username, expiry, m.signature(username, expiry))
}

func (m *TokenManager) signature(username string, expiry int64) string {
	payload := fmt.Sprintf("%s:%d", username, expiry) + m.secret
	sum := sha1.Sum([]byte(payload))
	return hex.EncodeToString(sum[:])
}
