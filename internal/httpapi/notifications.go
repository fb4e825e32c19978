package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/p-n-ai/arandu-gateway/internal/notify"
)

// notify publishes n and only logs failures.
func (s *Server) notify(r *http.Request, n notify.Notification) {
	if err := s.hub.Publish(r.Context(), n); err != nil {
		slog.Warn("notification publish failed", "kind", n.Kind, "user_id", n.UserID, "error", err)
	}
}

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	sess, _ := current(r)
	writeJSON(w, http.StatusOK, s.hub.Recent(sess.User.ID))
}

func (s *Server) handleNotificationsWS(w http.ResponseWriter, r *http.Request) {
	sess, _ := current(r)
	s.hub.ServeWS(w, r, sess.User.ID)
}
