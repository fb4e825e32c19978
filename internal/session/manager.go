package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/p-n-ai/arandu-gateway/internal/backend"
)

// Authenticator is the subset of the upstream API used to sign users in.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (backend.LoginResult, error)
	Register(ctx context.Context, req backend.RegisterRequest) (backend.User, error)
	CurrentUser(ctx context.Context) (backend.User, error)
}

// Manager creates, verifies and ends sessions. Tokens are HS256 JWTs whose
// subject is the user ID and whose jti is the session ID.
type Manager struct {
	store  Store
	auth   Authenticator
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithTTL sets the session lifetime.
func WithTTL(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.ttl = d
		}
	}
}

// WithIssuer sets the token issuer claim.
func WithIssuer(iss string) Option {
	return func(m *Manager) {
		if iss != "" {
			m.issuer = iss
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

func NewManager(store Store, auth Authenticator, secret []byte, opts ...Option) *Manager {
	m := &Manager{
		store:  store,
		auth:   auth,
		secret: secret,
		issuer: "arandu-gateway",
		ttl:    24 * time.Hour,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Login signs the user in upstream and opens a session.
func (m *Manager) Login(ctx context.Context, email, password string) (Session, error) {
	res, err := m.auth.Login(ctx, email, password)
	if err != nil {
		return Session{}, err
	}

	user := res.User
	if user.ID == "" {
		// Some upstream versions return only the token.
		user, err = m.auth.CurrentUser(backend.ContextWithToken(ctx, res.Token))
		if err != nil {
			return Session{}, fmt.Errorf("fetch current user: %w", err)
		}
	}

	now := m.now()
	s := Session{
		ID:            uuid.NewString(),
		UpstreamToken: res.Token,
		User:          user,
		CreatedAt:     now,
		ExpiresAt:     now.Add(m.ttl),
	}
	if err := m.issue(ctx, &s); err != nil {
		return Session{}, err
	}

	slog.Info("session opened", "user_id", user.ID, "session_id", s.ID)
	return s, nil
}

// Register creates the user upstream and signs them in.
func (m *Manager) Register(ctx context.Context, req backend.RegisterRequest) (Session, error) {
	if _, err := m.auth.Register(ctx, req); err != nil {
		return Session{}, err
	}
	return m.Login(ctx, req.Email, req.Password)
}

// Authenticate verifies a token and returns its live session.
func (m *Manager) Authenticate(ctx context.Context, token string) (Session, error) {
	claims, err := m.parse(token)
	if err != nil {
		return Session{}, err
	}

	s, err := m.store.Get(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Session{}, err
		}
		return Session{}, fmt.Errorf("load session: %w", err)
	}
	if s.User.ID != claims.Subject {
		return Session{}, fmt.Errorf("%w: subject mismatch", ErrInvalidToken)
	}
	s.Token = token
	return s, nil
}

// Refresh extends a live session and reloads the user's profile so role
// changes made upstream take effect. The session ID is kept.
func (m *Manager) Refresh(ctx context.Context, token string) (Session, error) {
	s, err := m.Authenticate(ctx, token)
	if err != nil {
		return Session{}, err
	}

	if user, err := m.auth.CurrentUser(s.Context(ctx)); err != nil {
		slog.Warn("refresh kept cached user", "user_id", s.User.ID, "error", err)
	} else {
		s.User = user
	}

	s.ExpiresAt = m.now().Add(m.ttl)
	if err := m.issue(ctx, &s); err != nil {
		return Session{}, err
	}
	return s, nil
}

// Logout ends the session named by the token.
func (m *Manager) Logout(ctx context.Context, token string) error {
	claims, err := m.parse(token)
	if err != nil {
		return err
	}
	if err := m.store.Delete(ctx, claims.ID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	slog.Info("session closed", "user_id", claims.Subject, "session_id", claims.ID)
	return nil
}

func (m *Manager) issue(ctx context.Context, s *Session) error {
	claims := jwt.RegisteredClaims{
		ID:        s.ID,
		Subject:   s.User.ID,
		Issuer:    m.issuer,
		IssuedAt:  jwt.NewNumericDate(m.now()),
		ExpiresAt: jwt.NewNumericDate(s.ExpiresAt),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return fmt.Errorf("sign token: %w", err)
	}
	s.Token = token

	if err := m.store.Save(ctx, *s); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (m *Manager) parse(token string) (*jwt.RegisteredClaims, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.ID == "" || claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing session or subject", ErrInvalidToken)
	}
	return claims, nil
}
