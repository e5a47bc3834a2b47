// Package session holds the per-browser authentication state. A Session is
// an explicit value handed to handlers; nothing about it is process-global.
package session

import (
	"time"

	"taskpanel/internal/models"
)

type Session struct {
	ID            string       `json:"id"`
	User          *models.User `json:"user"`
	Authenticated bool         `json:"authenticated"`
	ExpiresAt     time.Time    `json:"expiresAt"`
}

// Empty is the state of a browser that never signed in.
func Empty() *Session {
	return &Session{}
}

// Set records a successful sign-in. The password never enters the session.
func (s *Session) Set(user models.User) {
	u := user.Public()
	s.User = &u
	s.Authenticated = true
}

// Clear returns the session to the empty state, keeping nothing of the user.
func (s *Session) Clear() {
	s.User = nil
	s.Authenticated = false
}

// Role reports the signed-in user's role.
func (s *Session) Role() (models.UserRole, bool) {
	if s == nil || !s.Authenticated || s.User == nil {
		return "", false
	}
	return s.User.Role, true
}

func (s *Session) UserID() string {
	if s == nil || s.User == nil {
		return ""
	}
	return s.User.ID
}
