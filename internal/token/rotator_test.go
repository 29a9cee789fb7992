package token

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestRotatorRequiresUser(t *testing.T) {
	if _, err := NewRotator("", time.Second, 0, nil); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("NewRotator(\"\") error = %v, want ErrInvalidInput", err)
	}
}

func TestRotatorSupersedesTokens(t *testing.T) {
	var rotations atomic.Int64
	r, err := NewRotator("u1", 20*time.Millisecond, 5*time.Millisecond, func(Token) {
		rotations.Add(1)
	})
	if err != nil {
		t.Fatalf("NewRotator() error = %v", err)
	}
	defer r.Stop()

	first := r.Current()
	if first.UID != "u1" || first.Code == "" {
		t.Fatalf("initial token = %+v", first)
	}
	if rotations.Load() < 1 {
		t.Error("onRotate not called for the initial token")
	}

	// The next generation replaces the current token.
	deadline := time.Now().Add(500 * time.Millisecond)
	for r.Current().Code == first.Code {
		if time.Now().After(deadline) {
			t.Fatal("token was never superseded")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if got := r.Current(); got.Timestamp < first.Timestamp {
		t.Errorf("superseding token is older: %d < %d", got.Timestamp, first.Timestamp)
	}
}

func TestRotatorCountdown(t *testing.T) {
	r, err := NewRotator("u1", 50*time.Millisecond, 5*time.Millisecond, nil)
	if err != nil {
		t.Fatalf("NewRotator() error = %v", err)
	}
	defer r.Stop()

	if rem := r.Remaining(); rem <= 0 || rem > 50*time.Millisecond {
		t.Errorf("initial Remaining() = %v, want within (0, 50ms]", rem)
	}
	time.Sleep(20 * time.Millisecond)
	if rem := r.Remaining(); rem > 50*time.Millisecond {
		t.Errorf("Remaining() = %v after ticking, want <= ttl", rem)
	}
}

func TestRotatorStop(t *testing.T) {
	r, err := NewRotator("u1", 15*time.Millisecond, 5*time.Millisecond, nil)
	if err != nil {
		t.Fatalf("NewRotator() error = %v", err)
	}
	r.Stop()
	r.Stop() // stopping twice is fine

	frozen := r.Current()
	time.Sleep(60 * time.Millisecond)
	if got := r.Current(); got.Code != frozen.Code {
		t.Error("rotation continued after Stop")
	}
}
