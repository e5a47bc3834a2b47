package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"taskpanel/internal/ids"
	"taskpanel/internal/models"
	"taskpanel/internal/security"
)

// Manager ties stored sessions to the signed tokens browsers carry.
type Manager struct {
	store  Store
	secret string
	ttl    time.Duration
	now    func() time.Time
}

func NewManager(store Store, secret string, ttl time.Duration) *Manager {
	return &Manager{store: store, secret: secret, ttl: ttl, now: time.Now}
}

func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Resolve returns the session named by token. Any failure yields an empty
// session together with the reason, so callers can log and carry on.
func (m *Manager) Resolve(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return Empty(), nil
	}

	claims, err := security.ParseSessionToken(token, m.secret)
	if err != nil {
		return Empty(), err
	}

	s, err := m.store.Load(ctx, claims.SessionID)
	if err != nil {
		return Empty(), err
	}
	if !s.ExpiresAt.IsZero() && m.now().After(s.ExpiresAt) {
		_ = m.store.Delete(ctx, s.ID)
		return Empty(), ErrNotFound
	}
	return s, nil
}

// SignIn sets user on a fresh session and persists it. A new id is issued on
// every sign-in so a token captured before login never gains privileges.
func (m *Manager) SignIn(ctx context.Context, s *Session, user models.User) (string, error) {
	if s.ID != "" {
		if err := m.store.Delete(ctx, s.ID); err != nil && !errors.Is(err, ErrNotFound) {
			return "", err
		}
	}

	s.ID = ids.New()
	s.ExpiresAt = m.now().Add(m.ttl)
	s.Set(user)

	if err := m.store.Save(ctx, s, m.ttl); err != nil {
		s.Clear()
		return "", err
	}

	token, err := security.GenerateSessionToken(m.secret, s.ID, user.ID, string(user.Role), m.ttl)
	if err != nil {
		return "", fmt.Errorf("issue session token: %w", err)
	}
	return token, nil
}

// SignOut clears s and forgets it server side.
func (m *Manager) SignOut(ctx context.Context, s *Session) error {
	id := s.ID
	s.Clear()
	if id == "" {
		return nil
	}
	return m.store.Delete(ctx, id)
}
