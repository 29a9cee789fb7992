package attendance

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Repository persists attendance data in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// EnsureSchema creates the tables and the partial unique index that
// enforces at most one open record per user at the storage layer.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			email TEXT UNIQUE NOT NULL,
			full_name TEXT NOT NULL,
			role TEXT NOT NULL DEFAULT 'intern',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS attendance_records (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			time_in TIMESTAMPTZ NOT NULL,
			time_out TIMESTAMPTZ,
			total_hours DOUBLE PRECISION,
			status TEXT NOT NULL DEFAULT 'open',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS attendance_one_open_per_user
			ON attendance_records (user_id) WHERE status = 'open'`,
		`CREATE TABLE IF NOT EXISTS scan_events (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			nonce TEXT NOT NULL,
			outcome TEXT NOT NULL,
			action TEXT,
			occurred_at TIMESTAMPTZ NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
	}
	for _, stmt := range stmts {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// Toggle flips the attendance state for userID in a single guarded
// sequence. Closing an open record is one conditional UPDATE; opening a
// new one is an INSERT guarded by the partial unique index, so two
// concurrent toggles cannot both clock the same user in. A lost insert
// race falls through to the close path once.
func (r *Repository) Toggle(ctx context.Context, userID string, now time.Time) (string, Record, error) {
	if userID == "" {
		return "", Record{}, errors.New("user id required")
	}
	for attempt := 0; attempt < 2; attempt++ {
		rec, err := r.closeOpen(ctx, userID, now)
		if err != nil {
			return "", Record{}, err
		}
		if rec != nil {
			return ActionClockedOut, *rec, nil
		}

		rec, err = r.openNew(ctx, userID, now)
		if err != nil {
			return "", Record{}, err
		}
		if rec != nil {
			return ActionClockedIn, *rec, nil
		}
		// Insert hit the unique index: another toggle opened a record
		// first. Retry once so this call closes it instead.
	}
	return "", Record{}, errors.New("toggle contention not resolved")
}

func (r *Repository) closeOpen(ctx context.Context, userID string, now time.Time) (*Record, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE attendance_records
		SET time_out = $2,
		    total_hours = EXTRACT(EPOCH FROM ($2::timestamptz - time_in)) / 3600,
		    status = 'completed'
		WHERE user_id = $1 AND status = 'open'
		RETURNING id, user_id, time_in, time_out, total_hours, status
	`, userID, now.UTC())
	return scanRecord(row)
}

func (r *Repository) openNew(ctx context.Context, userID string, now time.Time) (*Record, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO attendance_records (id, user_id, time_in, status)
		VALUES ($1, $2, $3, 'open')
		ON CONFLICT (user_id) WHERE status = 'open' DO NOTHING
		RETURNING id, user_id, time_in, time_out, total_hours, status
	`, uuid.NewString(), userID, now.UTC())
	return scanRecord(row)
}

func scanRecord(row *sql.Row) (*Record, error) {
	var rec Record
	if err := row.Scan(&rec.ID, &rec.UserID, &rec.TimeIn, &rec.TimeOut, &rec.TotalHours, &rec.Status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

// List returns records ordered by time_in descending with basic filters.
func (r *Repository) List(ctx context.Context, userID string, limit, offset int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	query := `SELECT id, user_id, time_in, time_out, total_hours, status FROM attendance_records`
	args := []any{}
	if userID != "" {
		query += " WHERE user_id = $1"
		args = append(args, userID)
	}
	query += " ORDER BY time_in DESC LIMIT $" + itoa(len(args)+1) + " OFFSET $" + itoa(len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.TimeIn, &rec.TimeOut, &rec.TotalHours, &rec.Status); err != nil {
			return nil, err
		}
		res = append(res, rec)
	}
	return res, rows.Err()
}

func itoa(i int) string { return fmt.Sprintf("%d", i) }

// User represents a registered user. Identity verification itself is
// handled by the auth layer; this is only the directory row.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// UpsertUser creates or updates a user keyed by email and returns the row.
func (r *Repository) UpsertUser(ctx context.Context, email, fullName, role string) (User, error) {
	if role == "" {
		role = "intern"
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO users (id, email, full_name, role)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (email) DO UPDATE SET
			full_name = EXCLUDED.full_name,
			role = EXCLUDED.role
		RETURNING id, email, full_name, role, created_at
	`, uuid.NewString(), email, fullName, role)
	var u User
	if err := row.Scan(&u.ID, &u.Email, &u.FullName, &u.Role, &u.CreatedAt); err != nil {
		return User{}, err
	}
	return u, nil
}

// GetUser returns a single user by id, or nil when absent.
func (r *Repository) GetUser(ctx context.Context, id string) (*User, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, email, full_name, role, created_at FROM users WHERE id = $1
	`, id)
	var u User
	if err := row.Scan(&u.ID, &u.Email, &u.FullName, &u.Role, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

// ScanEvent is one processed scan, kept as an audit trail by the worker.
type ScanEvent struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	Nonce      string    `json:"nonce"`
	Outcome    string    `json:"outcome"`
	Action     string    `json:"action,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
	CreatedAt  time.Time `json:"created_at"`
}

// InsertScanEvent writes a scan audit row.
func (r *Repository) InsertScanEvent(ctx context.Context, evt ScanEvent) (ScanEvent, error) {
	if evt.ID == "" {
		evt.ID = uuid.NewString()
	}
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = time.Now().UTC()
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO scan_events (id, user_id, nonce, outcome, action, occurred_at)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING created_at
	`, evt.ID, evt.UserID, evt.Nonce, evt.Outcome, evt.Action, evt.OccurredAt)
	if err := row.Scan(&evt.CreatedAt); err != nil {
		return ScanEvent{}, err
	}
	return evt, nil
}
