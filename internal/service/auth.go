package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/ElSpaniard97/imbedded-csrma-ai-agent/internal/domain"
)

var (
	ErrInvalidCredentials = errors.New("invalid_credentials")
	ErrSessionExpired     = errors.New("session_expired")
	ErrSessionNotFound    = errors.New("session_not_found")
	ErrMisconfigured      = errors.New("server_misconfigured")
)

// Auth authenticates the single configured identity and tracks issued
// session tokens in process memory. Sessions are never persisted; a restart
// logs everyone out.
type Auth struct {
	username     string
	passwordHash string
	ttl          time.Duration
	now          func() time.Time
	logger       *slog.Logger

	mu       sync.Mutex
	sessions map[string]domain.Session
}

func NewAuth(username, passwordHash string, ttl time.Duration, logger *slog.Logger) *Auth {
	return &Auth{
		username:     username,
		passwordHash: passwordHash,
		ttl:          ttl,
		now:          time.Now,
		logger:       logger,
		sessions:     make(map[string]domain.Session),
	}
}

// WithClock replaces the time source, for tests.
func (a *Auth) WithClock(now func() time.Time) *Auth {
	a.now = now
	return a
}

// Login checks the credential pair against the configured identity and mints
// an opaque session token. Missing server-side credentials fail the request,
// not the process.
func (a *Auth) Login(username, password string) (string, error) {
	if a.username == "" || a.passwordHash == "" {
		return "", ErrMisconfigured
	}
	if username != a.username {
		return "", ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(a.passwordHash), []byte(password)) != nil {
		return "", ErrInvalidCredentials
	}

	token, err := generateToken()
	if err != nil {
		return "", err
	}

	a.mu.Lock()
	a.sessions[token] = domain.Session{
		Token:    token,
		Owner:    username,
		IssuedAt: a.now().UTC(),
	}
	a.mu.Unlock()

	a.logger.Info("login succeeded", slog.String("owner", username))
	return token, nil
}

// Verify resolves a token to its owner. Expired sessions fail even if the
// entry has not been swept yet.
func (a *Auth) Verify(token string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	session, ok := a.sessions[token]
	if !ok {
		return "", ErrSessionNotFound
	}
	if a.now().Sub(session.IssuedAt) > a.ttl {
		delete(a.sessions, token)
		return "", ErrSessionExpired
	}
	return session.Owner, nil
}

func (a *Auth) Logout(token string) {
	a.mu.Lock()
	delete(a.sessions, token)
	a.mu.Unlock()
}

// Run sweeps expired sessions until ctx is done.
func (a *Auth) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.sweep()
		}
	}
}

func (a *Auth) sweep() {
	now := a.now()

	a.mu.Lock()
	defer a.mu.Unlock()
	for token, session := range a.sessions {
		if now.Sub(session.IssuedAt) > a.ttl {
			delete(a.sessions, token)
		}
	}
}

func generateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
