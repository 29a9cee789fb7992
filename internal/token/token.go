package token

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// DefaultTTL is the validity window of a generated code.
const DefaultTTL = 5 * time.Second

var (
	// ErrInvalidInput is returned when generation is requested without a bound user.
	ErrInvalidInput = errors.New("user id required")
	// ErrMalformedCode is returned when a scanned payload does not parse.
	ErrMalformedCode = errors.New("malformed code")
	// ErrDuplicateScan is returned when the same code is scanned again before a new one exists.
	ErrDuplicateScan = errors.New("duplicate scan")
	// ErrExpired is returned when a code is older than its TTL.
	ErrExpired = errors.New("code expired")
)

// Token is the ephemeral payload rendered as a QR image. It is
// transport-only data and is never persisted.
type Token struct {
	UID       string `json:"uid"`
	Timestamp int64  `json:"timestamp"` // ms since epoch
	Code      string `json:"code"`
}

// Scan is the result of validating a scanned payload.
type Scan struct {
	UserID string
	Nonce  string
}

// Generate builds a fresh token bound to userID, stamped at now.
func Generate(userID string, now time.Time) (Token, error) {
	if userID == "" {
		return Token{}, ErrInvalidInput
	}
	return Token{
		UID:       userID,
		Timestamp: now.UnixMilli(),
		Code:      uuid.NewString(),
	}, nil
}

// Encode serializes a token to its wire form (the QR's encoded text).
func Encode(t Token) (string, error) {
	b, err := json.Marshal(t)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// IssuedAt returns the token's generation time.
func (t Token) IssuedAt() time.Time {
	return time.UnixMilli(t.Timestamp)
}

// ExpiresAt returns the end of the token's validity window.
func (t Token) ExpiresAt(ttl time.Duration) time.Time {
	return t.IssuedAt().Add(ttl)
}

// Validate decides whether raw is a currently-valid, not-yet-consumed
// code and extracts the embedded user id. lastNonce is the nonce of the
// previous successful scan on this scanner; passing it back closes the
// replay window for a code that is still inside its TTL. Validate does
// no I/O; it is pure given its inputs.
func Validate(raw, lastNonce string, now time.Time, ttl time.Duration) (Scan, error) {
	var t Token
	if err := json.Unmarshal([]byte(raw), &t); err != nil {
		return Scan{}, ErrMalformedCode
	}
	if t.UID == "" || t.Code == "" || t.Timestamp == 0 {
		return Scan{}, ErrMalformedCode
	}
	if t.Code == lastNonce {
		return Scan{}, ErrDuplicateScan
	}
	// The boundary is exclusive: a code exactly TTL old is already stale.
	if now.UnixMilli()-t.Timestamp >= ttl.Milliseconds() {
		return Scan{}, ErrExpired
	}
	return Scan{UserID: t.UID, Nonce: t.Code}, nil
}
