package services

import (
	"kuro/contract"
	"sync"
)

var _ contract.ICurrentUser = (*Session)(nil)

// Session is the process wide logged-in participant.
// Start happens on login or signup, End on logout.
type Session struct {
	mu       sync.Mutex
	userID   string
	email    string
	token    Token
	teardown []func()
}

func NewSession() *Session {
	return &Session{}
}

// Start replaces any running session, tearing it down first.
func (s *Session) Start(userID, email string, token Token) {
	s.End()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userID = userID
	s.email = email
	s.token = token
}

// End runs the teardown hooks, last registered first, then forgets the user.
// It reports whether a session was running.
func (s *Session) End() bool {
	s.mu.Lock()
	running := s.userID != ""
	hooks := s.teardown
	s.teardown = nil
	s.userID, s.email, s.token = "", "", ""
	s.mu.Unlock()

	for i := len(hooks) - 1; i >= 0; i-- {
		hooks[i]()
	}
	return running
}

func (s *Session) OnTeardown(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.teardown = append(s.teardown, fn)
}

func (s *Session) CurrentUserID() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID, s.userID != ""
}

func (s *Session) Email() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.email
}

func (s *Session) Token() Token {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}
