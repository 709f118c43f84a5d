// Package session holds the signed-in user and keeps it in local storage
// between runs.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/guregu/null/v5"
	"github.com/rs/zerolog"

	"github.com/gobarber/gobarber/internal/platform/apiclient"
	"github.com/gobarber/gobarber/internal/platform/storage"
	"github.com/gobarber/gobarber/internal/platform/validation"
)

// Storage keys shared with the web client.
const (
	TokenKey = "@GoBarber:token"
	UserKey  = "@GoBarber:user"
)

var (
	ErrNotSignedIn        = errors.New("not signed in")
	ErrSessionExpired     = errors.New("session expired")
	ErrInvalidCredentials = errors.New("incorrect email/password combination")
)

type User struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Email     string      `json:"email"`
	AvatarURL null.String `json:"avatar_url"`
}

// Session is a bearer token and the user it belongs to.
type Session struct {
	Token string
	User  User
}

type SignInCredentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type SignUpForm struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

// ProfileForm updates the signed-in user. Password changes need the old
// password and a matching confirmation.
type ProfileForm struct {
	Name                 string `json:"name" validate:"required"`
	Email                string `json:"email" validate:"required,email"`
	OldPassword          string `json:"old_password,omitempty" validate:"required_with=Password"`
	Password             string `json:"password,omitempty" validate:"omitempty,min=6"`
	PasswordConfirmation string `json:"password_confirmation,omitempty" validate:"eqfield=Password"`
}

type signInResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// Option configures a Manager.
type Option func(*Manager)

func WithLogger(l zerolog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithClock overrides time.Now for token expiry checks.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// Manager owns the current session. It is created once at startup, restored
// from storage, and passed to whatever needs the signed-in user.
type Manager struct {
	store    storage.Storage
	client   *apiclient.Client
	validate *validation.Validator
	logger   zerolog.Logger
	now      func() time.Time

	mu      sync.RWMutex
	current *Session
}

func NewManager(store storage.Storage, client *apiclient.Client, opts ...Option) *Manager {
	m := &Manager{
		store:    store,
		client:   client,
		validate: validation.New(),
		logger:   zerolog.Nop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Restore loads the session saved by a previous run. Both keys must be
// present. A token whose exp claim has passed is discarded together with the
// user and ErrSessionExpired is returned.
func (m *Manager) Restore() (Session, error) {
	token, ok, err := m.store.GetItem(TokenKey)
	if err != nil {
		return Session{}, fmt.Errorf("read token: %w", err)
	}
	if !ok || token == "" {
		return Session{}, ErrNotSignedIn
	}

	var user User
	found, err := storage.GetJSON(m.store, UserKey, &user)
	if err != nil {
		m.logger.Warn().Err(err).Msg("discarding unreadable stored user")
		if cerr := m.clear(); cerr != nil {
			return Session{}, cerr
		}
		return Session{}, ErrNotSignedIn
	}
	if !found {
		return Session{}, ErrNotSignedIn
	}

	if tokenExpired(token, m.now()) {
		m.logger.Info().Str("user_id", user.ID).Msg("stored session expired")
		if err := m.clear(); err != nil {
			return Session{}, err
		}
		return Session{}, ErrSessionExpired
	}

	s := Session{Token: token, User: user}
	m.set(&s)
	return s, nil
}

// Current returns the active session.
func (m *Manager) Current() (Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return Session{}, false
	}
	return *m.current, true
}

// SignIn handles POST sessions and persists the returned token and user.
func (m *Manager) SignIn(ctx context.Context, creds SignInCredentials) (Session, error) {
	if err := m.validate.Struct(creds); err != nil {
		return Session{}, err
	}

	var resp signInResponse
	if err := m.client.Post(ctx, "sessions", creds, &resp); err != nil {
		if errors.Is(err, apiclient.ErrUnauthorized) {
			return Session{}, ErrInvalidCredentials
		}
		return Session{}, fmt.Errorf("sign in: %w", err)
	}

	if err := m.store.SetItem(TokenKey, resp.Token); err != nil {
		return Session{}, fmt.Errorf("store token: %w", err)
	}
	if err := storage.SetJSON(m.store, UserKey, resp.User); err != nil {
		return Session{}, fmt.Errorf("store user: %w", err)
	}

	s := Session{Token: resp.Token, User: resp.User}
	m.set(&s)
	m.logger.Info().Str("user_id", s.User.ID).Msg("signed in")
	return s, nil
}

// SignUp handles POST users. It does not sign the new user in.
func (m *Manager) SignUp(ctx context.Context, form SignUpForm) (User, error) {
	if err := m.validate.Struct(form); err != nil {
		return User{}, err
	}
	var u User
	if err := m.client.Post(ctx, "users", form, &u); err != nil {
		return User{}, fmt.Errorf("sign up: %w", err)
	}
	m.logger.Info().Str("user_id", u.ID).Msg("account created")
	return u, nil
}

// SignOut removes both storage keys and drops the session.
func (m *Manager) SignOut() error {
	if err := m.clear(); err != nil {
		return err
	}
	m.logger.Info().Msg("signed out")
	return nil
}

// UpdateProfile handles PUT profile and replaces the stored user.
func (m *Manager) UpdateProfile(ctx context.Context, form ProfileForm) (User, error) {
	if _, ok := m.Current(); !ok {
		return User{}, ErrNotSignedIn
	}
	if err := m.validate.Struct(form); err != nil {
		return User{}, err
	}

	var u User
	if err := m.client.Put(ctx, "profile", form, &u); err != nil {
		return User{}, fmt.Errorf("update profile: %w", err)
	}
	if err := storage.SetJSON(m.store, UserKey, u); err != nil {
		return User{}, fmt.Errorf("store user: %w", err)
	}

	m.mu.Lock()
	if m.current != nil {
		m.current.User = u
	}
	m.mu.Unlock()
	return u, nil
}

func (m *Manager) set(s *Session) {
	m.mu.Lock()
	m.current = s
	m.mu.Unlock()
	m.client.SetToken(s.Token)
}

func (m *Manager) clear() error {
	m.mu.Lock()
	m.current = nil
	m.mu.Unlock()
	m.client.SetToken("")

	if err := m.store.RemoveItem(TokenKey); err != nil {
		return fmt.Errorf("remove token: %w", err)
	}
	if err := m.store.RemoveItem(UserKey); err != nil {
		return fmt.Errorf("remove user: %w", err)
	}
	return nil
}

// tokenExpired reads exp without verifying the signature; the server stays
// the authority. Tokens that are not JWTs or carry no exp never expire here.
func tokenExpired(token string, now time.Time) bool {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return false
	}
	return claims.ExpiresAt != nil && !now.Before(claims.ExpiresAt.Time)
}
