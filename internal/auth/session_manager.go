package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"time"

	"github.com/clipshelf/backend/internal/models"
)

var (
	// ErrSessionNotFound indicates the provided token does not map to an active session.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionExpired indicates the session has outlived its TTL.
	ErrSessionExpired = errors.New("session expired")
)

// SessionStore persists issued sessions so they can survive process restarts.
type SessionStore interface {
	Save(ctx context.Context, session Session) error
	Find(ctx context.Context, token string) (Session, error)
	Delete(ctx context.Context, token string) error
}

// Session binds an opaque token to exactly one identity and role until logout.
type Session struct {
	Token     string
	Identity  string
	Role      models.Role
	ExpiresAt time.Time
}

// Context is the authenticated caller state passed to the access policy and
// handed alongside every store call. The zero value is anonymous.
type Context struct {
	Identity string
	Role     models.Role
}

// Anonymous is the context of an unauthenticated request.
var Anonymous = Context{}

// Authenticated reports whether the context carries an identity.
func (c Context) Authenticated() bool {
	return c.Identity != ""
}

// Manager manages the lifecycle of issued sessions backed by a persistent store.
type Manager struct {
	ttl   time.Duration
	store SessionStore

	nowFunc func() time.Time
}

// NewManager constructs a Manager that issues session tokens with the provided TTL.
func NewManager(ttl time.Duration, store SessionStore) *Manager {
	if store == nil {
		panic("auth: session store must not be nil")
	}
	return &Manager{ttl: ttl, store: store}
}

// Issue creates a new session for the provided identity and role.
func (m *Manager) Issue(ctx context.Context, identity string, role models.Role) (Session, error) {
	if identity == "" {
		return Session{}, errors.New("identity must be provided")
	}

	token, err := randomToken()
	if err != nil {
		return Session{}, err
	}

	session := Session{
		Token:     token,
		Identity:  identity,
		Role:      role,
		ExpiresAt: m.now().Add(m.ttl),
	}

	if err := m.store.Save(ctx, session); err != nil {
		return Session{}, err
	}

	return session, nil
}

// Resolve maps a bearer token back to the caller context it was issued for.
// Expired sessions are removed from the store and reported as expired.
func (m *Manager) Resolve(ctx context.Context, token string) (Context, error) {
	if token == "" {
		return Anonymous, ErrSessionNotFound
	}

	session, err := m.store.Find(ctx, token)
	if err != nil {
		return Anonymous, err
	}

	if m.now().After(session.ExpiresAt) {
		_ = m.store.Delete(ctx, token)
		return Anonymous, ErrSessionExpired
	}

	return Context{Identity: session.Identity, Role: session.Role}, nil
}

// Revoke terminates the session bound to the provided token.
func (m *Manager) Revoke(ctx context.Context, token string) {
	if token == "" {
		return
	}
	_ = m.store.Delete(ctx, token)
}

func (m *Manager) now() time.Time {
	if m.nowFunc != nil {
		return m.nowFunc()
	}
	return time.Now().UTC()
}

func randomToken() (string, error) {
	const size = 32
	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
