package display

import (
	"sync"
	"time"

	"timeintern/internal/token"
)

// Manager owns one rotation loop per admin user currently displaying a
// code. Rotators are created on first request and all stopped together
// when the server shuts down, so no timer outlives its surface.
type Manager struct {
	ttl      time.Duration
	tick     time.Duration
	onRotate func(token.Token)

	mu       sync.Mutex
	rotators map[string]*token.Rotator
	closed   bool
}

// NewManager creates a manager with the given rotation TTL and
// countdown tick. onRotate may be nil.
func NewManager(ttl, tick time.Duration, onRotate func(token.Token)) *Manager {
	return &Manager{
		ttl:      ttl,
		tick:     tick,
		onRotate: onRotate,
		rotators: make(map[string]*token.Rotator),
	}
}

// Rotator returns the rotation loop bound to userID, starting one if
// needed. An empty userID fails with token.ErrInvalidInput and nothing
// is started.
func (m *Manager) Rotator(userID string) (*token.Rotator, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, token.ErrInvalidInput
	}
	if r, ok := m.rotators[userID]; ok {
		return r, nil
	}
	r, err := token.NewRotator(userID, m.ttl, m.tick, m.onRotate)
	if err != nil {
		return nil, err
	}
	m.rotators[userID] = r
	return r, nil
}

// StopAll tears down every rotation loop.
func (m *Manager) StopAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rotators {
		r.Stop()
	}
	m.rotators = make(map[string]*token.Rotator)
	m.closed = true
}
