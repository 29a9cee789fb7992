package attendance

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"
)

func TestToggleAlternates(t *testing.T) {
	svc := NewService(NewMemoryStore())
	ctx := context.Background()
	base := time.UnixMilli(3000)

	for i := 0; i < 6; i++ {
		now := base.Add(time.Duration(i) * time.Hour)
		action, rec, err := svc.Toggle(ctx, "u1", now)
		if err != nil {
			t.Fatalf("Toggle #%d error = %v", i, err)
		}
		want := ActionClockedIn
		if i%2 == 1 {
			want = ActionClockedOut
		}
		if action != want {
			t.Fatalf("Toggle #%d action = %q, want %q", i, action, want)
		}
		if want == ActionClockedIn {
			if rec.Status != StatusOpen || rec.TimeOut != nil || rec.TotalHours != nil {
				t.Errorf("Toggle #%d open record = %+v", i, rec)
			}
		} else {
			if rec.Status != StatusCompleted || rec.TimeOut == nil || rec.TotalHours == nil {
				t.Fatalf("Toggle #%d completed record = %+v", i, rec)
			}
		}
	}
}

func TestToggleComputesHours(t *testing.T) {
	store := NewMemoryStore()
	svc := NewService(store)
	ctx := context.Background()

	in := time.UnixMilli(3000)
	action, rec, err := svc.Toggle(ctx, "u1", in)
	if err != nil || action != ActionClockedIn {
		t.Fatalf("clock in: action=%q err=%v", action, err)
	}
	if !rec.TimeIn.Equal(in) {
		t.Errorf("TimeIn = %v, want %v", rec.TimeIn, in)
	}

	out := in.Add(time.Hour)
	action, rec, err = svc.Toggle(ctx, "u1", out)
	if err != nil || action != ActionClockedOut {
		t.Fatalf("clock out: action=%q err=%v", action, err)
	}
	if rec.TotalHours == nil {
		t.Fatal("TotalHours not set on completed record")
	}
	if math.Abs(*rec.TotalHours-1.0) > 1e-9 {
		t.Errorf("TotalHours = %v, want 1.0", *rec.TotalHours)
	}
	if got := store.OpenCount("u1"); got != 0 {
		t.Errorf("open records after clock out = %d", got)
	}
}

func TestToggleAtMostOneOpen(t *testing.T) {
	store := NewMemoryStore()
	svc := NewService(store)
	ctx := context.Background()

	// Concurrent toggles for one user may interleave however they
	// like, but can never leave two open records behind.
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, _ = svc.Toggle(ctx, "u1", time.Now().Add(time.Duration(i)*time.Millisecond))
		}(i)
	}
	wg.Wait()

	if got := store.OpenCount("u1"); got > 1 {
		t.Errorf("open records = %d, want at most 1", got)
	}
}

func TestToggleRequiresUser(t *testing.T) {
	svc := NewService(NewMemoryStore())
	if _, _, err := svc.Toggle(context.Background(), "", time.Now()); !errors.Is(err, ErrNoUser) {
		t.Fatalf("Toggle(\"\") error = %v, want ErrNoUser", err)
	}
}

type failingStore struct{}

func (failingStore) Toggle(context.Context, string, time.Time) (string, Record, error) {
	return "", Record{}, errors.New("connection reset")
}

func (failingStore) List(context.Context, string, int, int) ([]Record, error) {
	return nil, errors.New("connection reset")
}

func TestToggleWrapsStorageFailure(t *testing.T) {
	svc := NewService(failingStore{})
	_, _, err := svc.Toggle(context.Background(), "u1", time.Now())
	var perr *PersistenceError
	if !errors.As(err, &perr) {
		t.Fatalf("Toggle() error = %v, want PersistenceError", err)
	}
	if perr.Op != "toggle" {
		t.Errorf("Op = %q, want toggle", perr.Op)
	}
}

func TestListOrderAndFilter(t *testing.T) {
	svc := NewService(NewMemoryStore())
	ctx := context.Background()
	base := time.UnixMilli(1_000_000)

	// Three cycles for u1, one for u2, at increasing times.
	for i := 0; i < 3; i++ {
		in := base.Add(time.Duration(i*24) * time.Hour)
		if _, _, err := svc.Toggle(ctx, "u1", in); err != nil {
			t.Fatal(err)
		}
		if _, _, err := svc.Toggle(ctx, "u1", in.Add(8*time.Hour)); err != nil {
			t.Fatal(err)
		}
	}
	if _, _, err := svc.Toggle(ctx, "u2", base.Add(time.Hour)); err != nil {
		t.Fatal(err)
	}

	recs, err := svc.List(ctx, "u1", 0, 0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("List(u1) returned %d records, want 3", len(recs))
	}
	for i := 1; i < len(recs); i++ {
		if recs[i].TimeIn.After(recs[i-1].TimeIn) {
			t.Errorf("records not in time_in descending order: %v before %v", recs[i-1].TimeIn, recs[i].TimeIn)
		}
	}

	all, err := svc.List(ctx, "", 2, 0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(all) != 2 {
		t.Errorf("List limit 2 returned %d records", len(all))
	}
}
