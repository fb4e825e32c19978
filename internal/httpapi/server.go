// Package httpapi exposes the gateway's JSON API to the browser.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/p-n-ai/arandu-gateway/internal/activity"
	"github.com/p-n-ai/arandu-gateway/internal/aicontent"
	"github.com/p-n-ai/arandu-gateway/internal/backend"
	"github.com/p-n-ai/arandu-gateway/internal/courses"
	"github.com/p-n-ai/arandu-gateway/internal/guard"
	"github.com/p-n-ai/arandu-gateway/internal/notify"
	"github.com/p-n-ai/arandu-gateway/internal/roles"
	"github.com/p-n-ai/arandu-gateway/internal/session"
)

const (
	sessionCookie = "arandu_session"
	maxBodyBytes  = 1 << 20
	readyTimeout  = 3 * time.Second
)

// Check is a named readiness probe.
type Check struct {
	Name string
	Fn   func(ctx context.Context) error
}

// Deps wires the server to its services. Activity and Hub may be nil.
type Deps struct {
	Backend    backend.API
	Sessions   *session.Manager
	Courses    *courses.Service
	Content    *aicontent.Service
	Activity   activity.Logger
	Hub        *notify.Hub
	Checks     []Check
	LoginRoute string
}

// Server serves the HTTP API.
type Server struct {
	backend    backend.API
	sessions   *session.Manager
	courses    *courses.Service
	content    *aicontent.Service
	activity   activity.Logger
	hub        *notify.Hub
	checks     []Check
	loginRoute string
}

func New(d Deps) *Server {
	s := &Server{
		backend:    d.Backend,
		sessions:   d.Sessions,
		courses:    d.Courses,
		content:    d.Content,
		activity:   d.Activity,
		hub:        d.Hub,
		checks:     d.Checks,
		loginRoute: d.LoginRoute,
	}
	if s.activity == nil {
		s.activity = activity.NopLogger{}
	}
	if s.hub == nil {
		s.hub = notify.NewHub()
	}
	if s.loginRoute == "" {
		s.loginRoute = "/auth/login"
	}
	return s
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	anyone := guard.Policy{LoginRoute: s.loginRoute}
	teachers := guard.Policy{AllowedRoles: []roles.Role{roles.Teacher}, LoginRoute: s.loginRoute}
	user := func(h http.HandlerFunc) http.Handler { return s.guarded(anyone, h) }
	teacher := func(h http.HandlerFunc) http.Handler { return s.guarded(teachers, h) }

	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /readyz", s.handleReadyz)

	mux.HandleFunc("POST /api/auth/login", s.handleLogin)
	mux.HandleFunc("POST /api/auth/register", s.handleRegister)
	mux.HandleFunc("POST /api/auth/logout", s.handleLogout)
	mux.Handle("POST /api/auth/refresh", user(s.handleRefresh))
	mux.Handle("GET /api/auth/me", user(s.handleMe))
	mux.Handle("PUT /api/auth/me", user(s.handleUpdateMe))
	mux.Handle("POST /api/auth/password", user(s.handleChangePassword))
	mux.Handle("GET /api/dashboard", user(s.handleDashboard))

	mux.Handle("GET /api/courses", user(s.handleListCourses))
	mux.Handle("GET /api/courses/{id}", user(s.handleGetCourse))
	mux.Handle("GET /api/courses/{id}/modules", user(s.handleListModules))
	mux.Handle("GET /api/courses/{id}/progress", user(s.handleCourseProgress))
	mux.Handle("GET /api/courses/{id}/quiz", user(s.handleCourseQuiz))
	mux.Handle("GET /api/courses/{id}/stats", teacher(s.handleCourseStats))
	mux.Handle("POST /api/courses", teacher(s.handleCreateCourse))
	mux.Handle("PUT /api/courses/{id}", teacher(s.handleUpdateCourse))
	mux.Handle("DELETE /api/courses/{id}", teacher(s.handleDeleteCourse))
	mux.Handle("POST /api/courses/{id}/modules", teacher(s.handleCreateModule))
	mux.Handle("GET /api/categories", user(s.handleCategories))
	mux.Handle("GET /api/levels", user(s.handleLevels))
	mux.Handle("GET /api/recommendations", user(s.handleRecommended))

	mux.Handle("GET /api/modules/{id}", user(s.handleGetModule))
	mux.Handle("PUT /api/modules/{id}", teacher(s.handleUpdateModule))
	mux.Handle("DELETE /api/modules/{id}", teacher(s.handleDeleteModule))
	mux.Handle("POST /api/modules/{id}/progress", user(s.handleModuleProgress))
	mux.Handle("POST /api/modules/{id}/complete", user(s.handleCompleteModule))
	mux.Handle("GET /api/progress", user(s.handleUserProgress))

	mux.Handle("GET /api/modules/{id}/lesson-plan", teacher(s.handleLessonPlan))
	mux.Handle("GET /api/modules/{id}/lesson-plan.xlsx", teacher(s.handleLessonPlanWorkbook))
	mux.Handle("GET /api/modules/{id}/quiz", user(s.handleQuiz))
	mux.Handle("GET /api/modules/{id}/content", user(s.handleContent))
	mux.Handle("POST /api/modules/{id}/personalize", user(s.handlePersonalize))
	mux.Handle("GET /api/modules/{id}/feedback", teacher(s.handleModuleFeedback))
	mux.Handle("GET /api/analysis", user(s.handleAnalysis))
	mux.Handle("GET /api/ai/status", teacher(s.handleAIStatus))
	mux.Handle("POST /api/feedback", teacher(s.handleCreateStep))
	mux.Handle("PUT /api/feedback/{id}", teacher(s.handleUpdateStep))
	mux.Handle("PATCH /api/feedback/{id}/status", teacher(s.handleStepStatus))
	mux.Handle("DELETE /api/feedback/{id}", teacher(s.handleDeleteStep))

	mux.Handle("GET /api/teacher/courses", teacher(s.handleTeacherCourses))
	mux.Handle("GET /api/teacher/students", teacher(s.handleTeacherStudents))
	mux.Handle("GET /api/teacher/report.xlsx", teacher(s.handleTeacherReport))

	mux.Handle("GET /api/notifications", user(s.handleNotifications))
	mux.Handle("GET /api/notifications/ws", user(s.handleNotificationsWS))

	return mux
}

type storeUnavailableKey struct{}

// guarded resolves the request's session and gates h behind p.
func (s *Server) guarded(p guard.Policy, h http.HandlerFunc) http.Handler {
	gate := guard.Middleware(p, authState, s.onDeny)(h)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			gate.ServeHTTP(w, r)
			return
		}
		sess, err := s.sessions.Authenticate(r.Context(), token)
		switch {
		case err == nil:
			r = r.WithContext(session.WithSession(r.Context(), sess))
		case errors.Is(err, session.ErrInvalidToken), errors.Is(err, session.ErrNotFound):
		default:
			slog.Error("session lookup failed", "error", err)
			r = r.WithContext(context.WithValue(r.Context(), storeUnavailableKey{}, true))
		}
		gate.ServeHTTP(w, r)
	})
}

func authState(r *http.Request) guard.AuthState {
	if sess, ok := session.FromContext(r.Context()); ok {
		u := sess.User
		return guard.AuthState{Authenticated: true, User: &u}
	}
	if r.Context().Value(storeUnavailableKey{}) != nil {
		return guard.AuthState{Loading: true}
	}
	return guard.AuthState{}
}

func (s *Server) onDeny(r *http.Request, d guard.Decision) {
	var userID string
	if sess, ok := session.FromContext(r.Context()); ok {
		userID = sess.User.ID
	}
	slog.Info("request denied", "path", r.URL.Path, "state", d.State, "user_id", userID)
	if d.State != guard.Unauthorized {
		return
	}
	activity.Record(r.Context(), s.activity, activity.Event{
		UserID: userID,
		Kind:   activity.KindGuardDenied,
		Data:   map[string]any{"path": r.URL.Path, "role": string(d.Role), "redirect": d.Redirect},
	})
}

// bearerToken reads the session token from the Authorization header, falling
// back to the session cookie.
func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
		return ""
	}
	if c, err := r.Cookie(sessionCookie); err == nil {
		return c.Value
	}
	return ""
}

// current returns the guarded request's session and a context carrying its
// upstream token.
func current(r *http.Request) (session.Session, context.Context) {
	sess, _ := session.FromContext(r.Context())
	return sess, sess.Context(r.Context())
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	failed := map[string]string{}
	for _, c := range s.checks {
		if err := c.Fn(ctx); err != nil {
			slog.Warn("readiness check failed", "check", c.Name, "error", err)
			failed[c.Name] = err.Error()
		}
	}
	if len(failed) > 0 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unavailable", "failed": failed})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("write response failed", "error", err)
	}
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func readJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// writeError maps service and upstream errors to a status code.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *backend.APIError
	switch {
	case errors.Is(err, backend.ErrNotFound):
		writeMessage(w, http.StatusNotFound, "not found")
	case errors.Is(err, courses.ErrInvalidPercentage):
		writeMessage(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, session.ErrInvalidToken), errors.Is(err, session.ErrNotFound):
		writeMessage(w, http.StatusUnauthorized, "invalid session")
	case errors.Is(err, context.DeadlineExceeded):
		writeMessage(w, http.StatusGatewayTimeout, "upstream timeout")
	case errors.As(err, &apiErr) && apiErr.Status >= 400 && apiErr.Status < 500:
		writeMessage(w, apiErr.Status, apiErr.Message)
	case errors.As(err, &apiErr):
		slog.Error("upstream error", "path", r.URL.Path, "error", err)
		writeMessage(w, http.StatusBadGateway, "upstream error")
	default:
		slog.Error("request failed", "path", r.URL.Path, "error", err)
		writeMessage(w, http.StatusInternalServerError, "internal error")
	}
}
