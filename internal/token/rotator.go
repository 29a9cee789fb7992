package token

import (
	"sync"
	"sync/atomic"
	"time"
)

// DefaultCountdownTick is the refresh cadence of the display countdown.
const DefaultCountdownTick = 100 * time.Millisecond

// Rotator owns the admin-side generation loop for one bound user. It
// generates a token immediately, then replaces it every TTL; the old
// token is superseded and no longer rendered. A faster secondary ticker
// recomputes the remaining validity for display only and has no effect
// on validation.
type Rotator struct {
	userID   string
	ttl      time.Duration
	tick     time.Duration
	onRotate func(Token)

	mu        sync.RWMutex
	current   Token
	remaining atomic.Int64 // ms, display only

	done     chan struct{}
	stopOnce sync.Once
}

// NewRotator starts a rotation loop bound to userID. onRotate may be
// nil; when set it is called with each fresh token. Callers must Stop
// the rotator when the owning surface is torn down.
func NewRotator(userID string, ttl, tick time.Duration, onRotate func(Token)) (*Rotator, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if tick <= 0 {
		tick = DefaultCountdownTick
	}
	first, err := Generate(userID, time.Now())
	if err != nil {
		return nil, err
	}
	r := &Rotator{
		userID:   userID,
		ttl:      ttl,
		tick:     tick,
		onRotate: onRotate,
		current:  first,
		done:     make(chan struct{}),
	}
	r.remaining.Store(ttl.Milliseconds())
	if onRotate != nil {
		onRotate(first)
	}
	go r.loop()
	return r, nil
}

func (r *Rotator) loop() {
	gen := time.NewTicker(r.ttl)
	countdown := time.NewTicker(r.tick)
	defer gen.Stop()
	defer countdown.Stop()
	for {
		select {
		case now := <-gen.C:
			select {
			case <-r.done:
				return
			default:
			}
			tok, err := Generate(r.userID, now)
			if err != nil {
				continue
			}
			r.mu.Lock()
			r.current = tok
			r.mu.Unlock()
			r.remaining.Store(r.ttl.Milliseconds())
			if r.onRotate != nil {
				r.onRotate(tok)
			}
		case now := <-countdown.C:
			r.mu.RLock()
			exp := r.current.ExpiresAt(r.ttl)
			r.mu.RUnlock()
			left := exp.Sub(now).Milliseconds()
			if left < 0 {
				left = 0
			}
			r.remaining.Store(left)
		case <-r.done:
			return
		}
	}
}

// Current returns the token currently on display.
func (r *Rotator) Current() Token {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

// Remaining reports the display countdown until the current token expires.
func (r *Rotator) Remaining() time.Duration {
	return time.Duration(r.remaining.Load()) * time.Millisecond
}

// UserID returns the user the rotator is bound to.
func (r *Rotator) UserID() string {
	return r.userID
}

// Stop tears the rotation loop down and releases both tickers.
func (r *Rotator) Stop() {
	r.stopOnce.Do(func() { close(r.done) })
}
