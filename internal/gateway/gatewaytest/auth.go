package gatewaytest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"cacoblog/internal/gateway"
	"cacoblog/internal/models"

	"github.com/google/uuid"
)

var _ gateway.AuthService = (*Auth)(nil)

type account struct {
	user     models.User
	password string
}

// Auth is an in-memory gateway.AuthService with opaque tokens.
type Auth struct {
	mu       sync.Mutex
	accounts map[string]*account
	access   map[string]models.Session
	refresh  map[string]string

	TTL time.Duration
	Now func() time.Time
}

func NewAuth() *Auth {
	return &Auth{
		accounts: make(map[string]*account),
		access:   make(map[string]models.Session),
		refresh:  make(map[string]string),
		TTL:      15 * time.Minute,
		Now:      time.Now,
	}
}

func (a *Auth) SignUp(ctx context.Context, email, password, username string) (*models.Session, error) {
	a.mu.Lock()
	if email == "" || password == "" || username == "" {
		a.mu.Unlock()
		return nil, models.ErrValidation
	}
	if _, ok := a.accounts[email]; ok {
		a.mu.Unlock()
		return nil, models.ErrDuplicateEmail
	}
	a.accounts[email] = &account{
		user:     models.User{UserID: uuid.New().String(), Email: email, Username: username},
		password: password,
	}
	a.mu.Unlock()

	return a.SignIn(ctx, email, password)
}

func (a *Auth) SignIn(ctx context.Context, email, password string) (*models.Session, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	acc, ok := a.accounts[email]
	if !ok || acc.password != password {
		return nil, models.ErrInvalidCredentials
	}
	return a.issue(acc.user), nil
}

func (a *Auth) Refresh(ctx context.Context, refreshToken string) (*models.Session, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	email, ok := a.refresh[refreshToken]
	if !ok {
		return nil, fmt.Errorf("refresh token: %w", models.ErrNotAuthenticated)
	}
	delete(a.refresh, refreshToken)
	return a.issue(a.accounts[email].user), nil
}

func (a *Auth) SignOut(ctx context.Context, userID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	for token, email := range a.refresh {
		if a.accounts[email].user.UserID == userID {
			delete(a.refresh, token)
		}
	}
	return nil
}

func (a *Auth) SessionFromToken(accessToken string) (*models.Session, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	session, ok := a.access[accessToken]
	if !ok || session.Expired(a.Now()) {
		return nil, models.ErrNotAuthenticated
	}
	session.RefreshToken = ""
	return &session, nil
}

func (a *Auth) issue(user models.User) *models.Session {
	session := models.Session{
		UserID:       user.UserID,
		Email:        user.Email,
		Username:     user.Username,
		AccessToken:  uuid.New().String(),
		RefreshToken: uuid.New().String(),
		ExpiresAt:    a.Now().Add(a.TTL),
	}
	a.access[session.AccessToken] = session
	a.refresh[session.RefreshToken] = user.Email
	return &session
}
