package upstream

import "sync"

// Session carries the bearer token attached to every call made on behalf of one console user.
// It is acquired at login, cleared at logout, and cleared automatically when the backend answers 401.
type Session struct {
	mu       sync.RWMutex
	token    string
	onExpire []func()
}

// NewSession wraps an already issued token.
func NewSession(token string) *Session {
	return &Session{token: token}
}

// Token returns the current bearer token, empty once cleared.
func (s *Session) Token() string {
	if s == nil {
		return ""
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Active reports whether the session still holds a token.
func (s *Session) Active() bool {
	return s.Token() != ""
}

// OnExpire registers fn to run once the session is cleared.
func (s *Session) OnExpire(fn func()) {
	if s == nil || fn == nil {
		return
	}
	s.mu.Lock()
	s.onExpire = append(s.onExpire, fn)
	s.mu.Unlock()
}

// Clear drops the token and fires expiry callbacks. Clearing twice is a no-op.
func (s *Session) Clear() {
	if s == nil {
		return
	}
	s.mu.Lock()
	if s.token == "" {
		s.mu.Unlock()
		return
	}
	s.token = ""
	callbacks := s.onExpire
	s.onExpire = nil
	s.mu.Unlock()

	for _, fn := range callbacks {
		fn()
	}
}
