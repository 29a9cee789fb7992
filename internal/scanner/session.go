package scanner

import (
	"context"
	"errors"
	"sync"
	"time"

	"timeintern/internal/attendance"
	"timeintern/internal/token"
)

// ErrClosed is returned for frames arriving after teardown.
var ErrClosed = errors.New("scanner session closed")

// Toggler submits a validated scan as an attendance toggle.
// *attendance.Service satisfies it directly; scanclient.Client is the
// HTTP implementation used on a scanning device.
type Toggler interface {
	Toggle(ctx context.Context, userID string, occurredAt time.Time) (string, attendance.Record, error)
}

// Result is the outcome of one processed frame.
type Result struct {
	Scan   token.Scan
	Action string
	Record attendance.Record
	Err    error
}

// Session owns the scanner-side state for one device: the nonce of the
// last consumed code, which is the sole defense against re-submitting a
// still-fresh code. Frames are processed one at a time; the internal
// lock preserves the single-consumer ordering a camera callback loop
// gives, so the nonce check is race-free.
type Session struct {
	ttl     time.Duration
	toggler Toggler

	mu        sync.Mutex
	lastNonce string
	closed    bool
}

// NewSession creates a session for one scanning device.
func NewSession(toggler Toggler, ttl time.Duration) *Session {
	if ttl <= 0 {
		ttl = token.DefaultTTL
	}
	return &Session{ttl: ttl, toggler: toggler}
}

// Scan validates one decoded frame and, when it carries a fresh code,
// submits exactly one toggle. The consumed nonce is recorded before the
// toggle is attempted, so a failed submission is not retried with the
// same code; the next rotation produces a new attempt naturally.
func (s *Session) Scan(ctx context.Context, raw string, now time.Time) Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Result{Err: ErrClosed}
	}

	scan, err := token.Validate(raw, s.lastNonce, now, s.ttl)
	if err != nil {
		return Result{Err: err}
	}
	s.lastNonce = scan.Nonce

	action, rec, err := s.toggler.Toggle(ctx, scan.UserID, now)
	if err != nil {
		return Result{Scan: scan, Err: err}
	}
	return Result{Scan: scan, Action: action, Record: rec}
}

// Close tears the session down; later frames are rejected. The consumed
// nonce state lives and dies with the session.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}
