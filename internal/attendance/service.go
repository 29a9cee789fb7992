package attendance

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Status of a record: open (clocked in) or completed (clocked out).
const (
	StatusOpen      = "open"
	StatusCompleted = "completed"
)

// Action reported by a toggle.
const (
	ActionClockedIn  = "clockedIn"
	ActionClockedOut = "clockedOut"
)

// ErrNoUser is returned when a toggle is requested without a user id.
var ErrNoUser = errors.New("user id required")

// Record is one attendance cycle for a user. TimeOut and TotalHours are
// nil while the record is open.
type Record struct {
	ID         string     `json:"id"`
	UserID     string     `json:"user_id"`
	TimeIn     time.Time  `json:"time_in"`
	TimeOut    *time.Time `json:"time_out,omitempty"`
	TotalHours *float64   `json:"total_hours,omitempty"`
	Status     string     `json:"status"`
}

// PersistenceError wraps a storage failure so callers can distinguish
// it from validation outcomes. No partial record is committed when one
// is returned.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("attendance: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Store is the persistence boundary for attendance records. Toggle must
// be atomic: the open-record check and the resulting write happen as a
// single guarded operation so two concurrent toggles for one user can
// never both open a record.
type Store interface {
	Toggle(ctx context.Context, userID string, now time.Time) (string, Record, error)
	List(ctx context.Context, userID string, limit, offset int) ([]Record, error)
}

// Service is the authoritative clock-in/clock-out toggle per user.
type Service struct {
	store Store
}

// NewService creates a service backed by a store.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// Toggle flips the attendance state for userID at now. A user with no
// open record is clocked in; a user with an open record is clocked out
// and the record's total hours are computed. Repeated calls alternate;
// single-use of a scanned code is enforced upstream by the validator's
// replay rejection.
func (s *Service) Toggle(ctx context.Context, userID string, now time.Time) (string, Record, error) {
	if userID == "" {
		return "", Record{}, ErrNoUser
	}
	action, rec, err := s.store.Toggle(ctx, userID, now)
	if err != nil {
		return "", Record{}, &PersistenceError{Op: "toggle", Err: err}
	}
	return action, rec, nil
}

// List returns records ordered by time_in descending, optionally
// filtered by user.
func (s *Service) List(ctx context.Context, userID string, limit, offset int) ([]Record, error) {
	recs, err := s.store.List(ctx, userID, limit, offset)
	if err != nil {
		return nil, &PersistenceError{Op: "list", Err: err}
	}
	return recs, nil
}

// Hours computes the elapsed duration of a closed cycle in hours.
func Hours(timeIn, timeOut time.Time) float64 {
	return timeOut.Sub(timeIn).Seconds() / 3600
}
