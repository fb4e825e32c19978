package httpapi

import (
	"net/http"
	"time"

	"github.com/p-n-ai/arandu-gateway/internal/activity"
	"github.com/p-n-ai/arandu-gateway/internal/adapter"
	"github.com/p-n-ai/arandu-gateway/internal/backend"
	"github.com/p-n-ai/arandu-gateway/internal/roles"
	"github.com/p-n-ai/arandu-gateway/internal/session"
)

type sessionResponse struct {
	Token     string           `json:"token"`
	ExpiresAt time.Time        `json:"expiresAt"`
	User      adapter.UserView `json:"user"`
	Role      roles.Role       `json:"role"`
	Dashboard string           `json:"dashboard"`
}

func newSessionResponse(sess session.Session) sessionResponse {
	role := roles.Determine(sess.User)
	return sessionResponse{
		Token:     sess.Token,
		ExpiresAt: sess.ExpiresAt,
		User:      adapter.UserToView(sess.User),
		Role:      role,
		Dashboard: roles.DashboardRoute(role),
	}
}

func setSessionCookie(w http.ResponseWriter, r *http.Request, sess session.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    sess.Token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !readJSON(w, r, &req) {
		return
	}
	if req.Email == "" || req.Password == "" {
		writeMessage(w, http.StatusBadRequest, "email and password are required")
		return
	}

	sess, err := s.sessions.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	activity.Record(r.Context(), s.activity, activity.Event{UserID: sess.User.ID, Kind: activity.KindLogin})
	setSessionCookie(w, r, sess)
	writeJSON(w, http.StatusOK, newSessionResponse(sess))
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req backend.RegisterRequest
	if !readJSON(w, r, &req) {
		return
	}
	if req.Email == "" || req.Password == "" {
		writeMessage(w, http.StatusBadRequest, "email and password are required")
		return
	}

	sess, err := s.sessions.Register(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	activity.Record(r.Context(), s.activity, activity.Event{UserID: sess.User.ID, Kind: activity.KindLogin})
	setSessionCookie(w, r, sess)
	writeJSON(w, http.StatusCreated, newSessionResponse(sess))
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		writeMessage(w, http.StatusUnauthorized, "authentication required")
		return
	}
	sess, err := s.sessions.Authenticate(r.Context(), token)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.sessions.Logout(r.Context(), token); err != nil {
		writeError(w, r, err)
		return
	}
	activity.Record(r.Context(), s.activity, activity.Event{UserID: sess.User.ID, Kind: activity.KindLogout})
	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: "", Path: "/", MaxAge: -1})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	sess, _ := current(r)
	refreshed, err := s.sessions.Refresh(r.Context(), sess.Token)
	if err != nil {
		writeError(w, r, err)
		return
	}
	setSessionCookie(w, r, refreshed)
	writeJSON(w, http.StatusOK, newSessionResponse(refreshed))
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	sess, _ := current(r)
	role := roles.Determine(sess.User)
	writeJSON(w, http.StatusOK, map[string]any{
		"user":      adapter.UserToView(sess.User),
		"role":      role,
		"dashboard": roles.DashboardRoute(role),
		"expiresAt": sess.ExpiresAt,
	})
}

func (s *Server) handleUpdateMe(w http.ResponseWriter, r *http.Request) {
	sess, ctx := current(r)
	var update backend.UserUpdate
	if !readJSON(w, r, &update) {
		return
	}
	user, err := s.backend.UpdateUser(ctx, update)
	if err != nil {
		writeError(w, r, err)
		return
	}
	// The session keeps the old profile until it is refreshed.
	if refreshed, err := s.sessions.Refresh(r.Context(), sess.Token); err == nil {
		setSessionCookie(w, r, refreshed)
	}
	writeJSON(w, http.StatusOK, adapter.UserToView(user))
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	_, ctx := current(r)
	var req struct {
		Current string `json:"currentPassword"`
		Next    string `json:"newPassword"`
	}
	if !readJSON(w, r, &req) {
		return
	}
	if req.Current == "" || req.Next == "" {
		writeMessage(w, http.StatusBadRequest, "current and new password are required")
		return
	}
	if err := s.backend.ChangePassword(ctx, req.Current, req.Next); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	sess, _ := current(r)
	role := roles.Determine(sess.User)
	writeJSON(w, http.StatusOK, map[string]any{
		"role":  role,
		"route": roles.DashboardRoute(role),
	})
}
