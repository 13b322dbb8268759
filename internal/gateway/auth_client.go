package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"cacoblog/internal/models"
)

type AuthEvent string

const (
	EventInitialSession AuthEvent = "INITIAL_SESSION"
	EventSignedIn       AuthEvent = "SIGNED_IN"
	EventSignedOut      AuthEvent = "SIGNED_OUT"
	EventTokenRefreshed AuthEvent = "TOKEN_REFRESHED"
)

// SessionListener receives every auth change. session is nil after sign-out.
type SessionListener func(event AuthEvent, session *models.Session)

// AuthClient is one visitor's view of the session lifecycle. It keeps the
// current session, refreshes it when the access token expires and pushes
// every change to its listeners.
type AuthClient struct {
	mu        sync.Mutex
	auth      AuthService
	session   *models.Session
	listeners map[int]SessionListener
	nextID    int
	log       *slog.Logger
	now       func() time.Time
}

func NewAuthClient(auth AuthService, log *slog.Logger) *AuthClient {
	return &AuthClient{
		auth:      auth,
		listeners: make(map[int]SessionListener),
		log:       log,
		now:       time.Now,
	}
}

// GetCurrentSession returns the held session, refreshing it first when the
// access token has expired. A failed refresh signs the visitor out.
func (c *AuthClient) GetCurrentSession(ctx context.Context) (*models.Session, error) {
	c.mu.Lock()
	session := c.session
	c.mu.Unlock()

	if session == nil {
		return nil, nil
	}
	if !session.Expired(c.now()) {
		return copySession(session), nil
	}

	if session.RefreshToken == "" {
		c.replace(EventSignedOut, nil)
		return nil, nil
	}

	refreshed, err := c.auth.Refresh(ctx, session.RefreshToken)
	if err != nil {
		c.log.Warn("не удалось обновить сессию",
			slog.String("user_id", session.UserID),
			slog.String("error", err.Error()))
		c.replace(EventSignedOut, nil)
		if errors.Is(err, models.ErrNotAuthenticated) {
			return nil, nil
		}
		return nil, fmt.Errorf("ошибка обновления сессии: %w", err)
	}

	c.replace(EventTokenRefreshed, refreshed)
	return copySession(refreshed), nil
}

func (c *AuthClient) SignIn(ctx context.Context, email, password string) (*models.Session, error) {
	session, err := c.auth.SignIn(ctx, email, password)
	if err != nil {
		return nil, err
	}

	c.replace(EventSignedIn, session)
	return copySession(session), nil
}

// SignUp registers the account; the new session is signed in right away.
func (c *AuthClient) SignUp(ctx context.Context, email, password, username string) (*models.Session, error) {
	session, err := c.auth.SignUp(ctx, email, password, username)
	if err != nil {
		return nil, err
	}

	c.replace(EventSignedIn, session)
	return copySession(session), nil
}

// SignOut always clears the local session, even when revoking the refresh
// token on the server fails.
func (c *AuthClient) SignOut(ctx context.Context) error {
	c.mu.Lock()
	session := c.session
	c.mu.Unlock()

	if session == nil {
		return nil
	}

	err := c.auth.SignOut(ctx, session.UserID)
	c.replace(EventSignedOut, nil)
	if err != nil {
		return fmt.Errorf("ошибка выхода: %w", err)
	}
	return nil
}

// Restore rebuilds the session from persisted tokens. An expired or invalid
// access token is exchanged using the refresh token when one is present.
func (c *AuthClient) Restore(ctx context.Context, accessToken, refreshToken string) (*models.Session, error) {
	if accessToken == "" && refreshToken == "" {
		return nil, nil
	}

	session, err := c.auth.SessionFromToken(accessToken)
	if err == nil {
		session.RefreshToken = refreshToken
		c.replace(EventInitialSession, session)
		return copySession(session), nil
	}

	if refreshToken == "" {
		return nil, nil
	}

	session, err = c.auth.Refresh(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, models.ErrNotAuthenticated) {
			return nil, nil
		}
		return nil, fmt.Errorf("ошибка восстановления сессии: %w", err)
	}

	c.replace(EventTokenRefreshed, session)
	return copySession(session), nil
}

// OnSessionChange registers listener and immediately delivers the current
// session as INITIAL_SESSION. The returned func unsubscribes.
func (c *AuthClient) OnSessionChange(listener SessionListener) func() {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = listener
	session := copySession(c.session)
	c.mu.Unlock()

	listener(EventInitialSession, session)

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.listeners, id)
			c.mu.Unlock()
		})
	}
}

func (c *AuthClient) replace(event AuthEvent, session *models.Session) {
	c.mu.Lock()
	c.session = copySession(session)
	listeners := make([]SessionListener, 0, len(c.listeners))
	for _, l := range c.listeners {
		listeners = append(listeners, l)
	}
	c.mu.Unlock()

	userID := ""
	if session != nil {
		userID = session.UserID
	}
	c.log.Debug("смена сессии", slog.String("event", string(event)), slog.String("user_id", userID))

	for _, l := range listeners {
		l(event, copySession(session))
	}
}

func copySession(s *models.Session) *models.Session {
	if s == nil {
		return nil
	}
	cp := *s
	return &cp
}
