// Package guard decides whether an authenticated user may see a role-gated
// area, and where to send them otherwise.
package guard

import (
	"sync"

	"github.com/p-n-ai/arandu-gateway/internal/backend"
	"github.com/p-n-ai/arandu-gateway/internal/roles"
)

// LoginRoute is where unauthenticated users are sent.
const LoginRoute = "/auth/login"

// State is the guard's resolved state.
type State string

const (
	Loading         State = "loading"
	Unauthenticated State = "unauthenticated"
	Unauthorized    State = "unauthorized"
	Authorized      State = "authorized"
)

// AuthState is the session snapshot the guard evaluates.
type AuthState struct {
	Loading       bool
	Authenticated bool
	User          *backend.User
}

// Policy gates an area. An empty AllowedRoles admits any authenticated user.
type Policy struct {
	AllowedRoles []roles.Role
	// RedirectTo overrides the role dashboard for unauthorized users.
	RedirectTo string
	// LoginRoute overrides LoginRoute for unauthenticated users.
	LoginRoute string
}

// Decision is the outcome of evaluating a policy. Redirect is empty unless the
// state calls for navigation.
type Decision struct {
	State    State
	Redirect string
	Role     roles.Role
}

// Evaluate resolves auth against p. It has no side effects.
func Evaluate(auth AuthState, p Policy) Decision {
	if auth.Loading {
		return Decision{State: Loading}
	}
	if !auth.Authenticated || auth.User == nil {
		login := p.LoginRoute
		if login == "" {
			login = LoginRoute
		}
		return Decision{State: Unauthenticated, Redirect: login}
	}

	role := roles.Determine(*auth.User)
	if len(p.AllowedRoles) == 0 || allowed(role, p.AllowedRoles) {
		return Decision{State: Authorized, Role: role}
	}

	target := p.RedirectTo
	if target == "" {
		target = roles.DashboardRoute(role)
	}
	return Decision{State: Unauthorized, Redirect: target, Role: role}
}

// allowed checks capabilities rather than equality: a teacher allow-list
// admits admins.
func allowed(role roles.Role, list []roles.Role) bool {
	for _, want := range list {
		switch want {
		case roles.Teacher:
			if roles.IsTeacher(role) {
				return true
			}
		case roles.Student:
			if roles.IsStudent(role) {
				return true
			}
		case roles.Admin:
			if role == roles.Admin {
				return true
			}
		}
	}
	return false
}

// Guard tracks the last decision and navigates only on transitions, so
// re-evaluating unchanged inputs never repeats a redirect.
type Guard struct {
	policy   Policy
	navigate func(target string)

	mu   sync.Mutex
	last Decision
	seen bool
}

// New creates a guard. navigate is called with the redirect target whenever
// a new state or target is reached.
func New(p Policy, navigate func(target string)) *Guard {
	return &Guard{policy: p, navigate: navigate}
}

// Update evaluates auth and fires navigation if the decision changed.
func (g *Guard) Update(auth AuthState) Decision {
	d := Evaluate(auth, g.policy)

	g.mu.Lock()
	changed := !g.seen || d.State != g.last.State || d.Redirect != g.last.Redirect
	g.last, g.seen = d, true
	g.mu.Unlock()

	if changed && d.Redirect != "" && g.navigate != nil {
		g.navigate(d.Redirect)
	}
	return d
}

// Decision returns the most recent decision.
func (g *Guard) Decision() Decision {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.last
}
