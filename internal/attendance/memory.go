package attendance

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps records in memory. It backs tests and the
// STORE_BACKEND=memory dev mode; the mutex gives the same atomic
// check-and-write guarantee the Postgres partial index provides.
type MemoryStore struct {
	mu      sync.Mutex
	records []Record
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Toggle flips the attendance state for userID under a single lock.
func (m *MemoryStore) Toggle(ctx context.Context, userID string, now time.Time) (string, Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.records {
		rec := &m.records[i]
		if rec.UserID == userID && rec.Status == StatusOpen {
			out := now
			hours := Hours(rec.TimeIn, out)
			rec.TimeOut = &out
			rec.TotalHours = &hours
			rec.Status = StatusCompleted
			return ActionClockedOut, *rec, nil
		}
	}

	rec := Record{
		ID:     uuid.NewString(),
		UserID: userID,
		TimeIn: now,
		Status: StatusOpen,
	}
	m.records = append(m.records, rec)
	return ActionClockedIn, rec, nil
}

// List returns records ordered by time_in descending.
func (m *MemoryStore) List(ctx context.Context, userID string, limit, offset int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var res []Record
	for _, rec := range m.records {
		if userID != "" && rec.UserID != userID {
			continue
		}
		res = append(res, rec)
	}
	sort.SliceStable(res, func(i, j int) bool { return res[i].TimeIn.After(res[j].TimeIn) })
	if offset >= len(res) {
		return nil, nil
	}
	res = res[offset:]
	if len(res) > limit {
		res = res[:limit]
	}
	return res, nil
}

// OpenCount reports how many open records a user currently has.
func (m *MemoryStore) OpenCount(userID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, rec := range m.records {
		if rec.UserID == userID && rec.Status == StatusOpen {
			n++
		}
	}
	return n
}
