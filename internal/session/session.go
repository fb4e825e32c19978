// Package session keeps the signed-in user's context: who they are, the
// upstream token used on their behalf, and when the session ends.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/p-n-ai/arandu-gateway/internal/backend"
)

var (
	// ErrNotFound is returned when a session does not exist or has expired.
	ErrNotFound = errors.New("session not found")
	// ErrInvalidToken is returned for malformed, forged or expired tokens.
	ErrInvalidToken = errors.New("invalid session token")
)

// Session is created at login, read-only while it lives, and removed at logout.
type Session struct {
	ID            string       `json:"id"`
	Token         string       `json:"-"`
	UpstreamToken string       `json:"upstreamToken"`
	User          backend.User `json:"user"`
	CreatedAt     time.Time    `json:"createdAt"`
	ExpiresAt     time.Time    `json:"expiresAt"`
}

// Expired reports whether the session has ended at the given time.
func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Context returns ctx carrying the session's upstream token, ready for
// backend calls made on the user's behalf.
func (s Session) Context(ctx context.Context) context.Context {
	return backend.ContextWithToken(ctx, s.UpstreamToken)
}

type sessionKey struct{}

// WithSession returns a copy of ctx that carries s.
func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// FromContext returns the session stored by WithSession.
func FromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(Session)
	return s, ok
}
