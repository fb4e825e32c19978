package httpapi

import (
	"fmt"
	"net/http"

	"github.com/p-n-ai/arandu-gateway/internal/activity"
	"github.com/p-n-ai/arandu-gateway/internal/adapter"
	"github.com/p-n-ai/arandu-gateway/internal/courses"
	"github.com/p-n-ai/arandu-gateway/internal/notify"
)

func (s *Server) handleListCourses(w http.ResponseWriter, r *http.Request) {
	_, ctx := current(r)
	q := r.URL.Query()
	list, err := s.courses.Find(ctx, courses.Filter{
		Query:    q.Get("q"),
		Category: q.Get("category"),
		Level:    adapter.Level(q.Get("level")),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetCourse(w http.ResponseWriter, r *http.Request) {
	_, ctx := current(r)
	c, err := s.courses.Course(ctx, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleListModules(w http.ResponseWriter, r *http.Request) {
	_, ctx := current(r)
	mods, err := s.courses.Modules(ctx, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mods)
}

func (s *Server) handleCourseStats(w http.ResponseWriter, r *http.Request) {
	_, ctx := current(r)
	stats, err := s.courses.Stats(ctx, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	_, ctx := current(r)
	cats, err := s.courses.Categories(ctx)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cats)
}

func (s *Server) handleLevels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.courses.Levels())
}

func (s *Server) handleRecommended(w http.ResponseWriter, r *http.Request) {
	sess, ctx := current(r)
	list, err := s.courses.Recommended(ctx, sess.User.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleCreateCourse(w http.ResponseWriter, r *http.Request) {
	sess, ctx := current(r)
	var in adapter.Course
	if !readJSON(w, r, &in) {
		return
	}
	if in.Title == "" {
		writeMessage(w, http.StatusBadRequest, "title is required")
		return
	}
	c, err := s.courses.CreateCourse(ctx, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.notify(r, notify.Notification{
		UserID:  sess.User.ID,
		Kind:    notify.KindCourseCreated,
		Title:   "Curso creado",
		Message: fmt.Sprintf("El curso %q fue creado", c.Title),
		Data:    map[string]any{"courseId": c.ID},
	})
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) handleUpdateCourse(w http.ResponseWriter, r *http.Request) {
	sess, ctx := current(r)
	var in adapter.Course
	if !readJSON(w, r, &in) {
		return
	}
	c, err := s.courses.UpdateCourse(ctx, r.PathValue("id"), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.notify(r, notify.Notification{
		UserID:  sess.User.ID,
		Kind:    notify.KindCourseUpdated,
		Title:   "Curso actualizado",
		Message: fmt.Sprintf("El curso %q fue actualizado", c.Title),
		Data:    map[string]any{"courseId": c.ID},
	})
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleDeleteCourse(w http.ResponseWriter, r *http.Request) {
	_, ctx := current(r)
	if err := s.courses.DeleteCourse(ctx, r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetModule(w http.ResponseWriter, r *http.Request) {
	_, ctx := current(r)
	m, err := s.courses.Module(ctx, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleCreateModule(w http.ResponseWriter, r *http.Request) {
	_, ctx := current(r)
	var in adapter.Module
	if !readJSON(w, r, &in) {
		return
	}
	if in.Title == "" {
		writeMessage(w, http.StatusBadRequest, "title is required")
		return
	}
	m, err := s.courses.CreateModule(ctx, r.PathValue("id"), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (s *Server) handleUpdateModule(w http.ResponseWriter, r *http.Request) {
	_, ctx := current(r)
	var in adapter.Module
	if !readJSON(w, r, &in) {
		return
	}
	m, err := s.courses.UpdateModule(ctx, r.PathValue("id"), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleDeleteModule(w http.ResponseWriter, r *http.Request) {
	_, ctx := current(r)
	if err := s.courses.DeleteModule(ctx, r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUserProgress(w http.ResponseWriter, r *http.Request) {
	sess, ctx := current(r)
	list, err := s.courses.UserProgress(ctx, sess.User.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleCourseProgress(w http.ResponseWriter, r *http.Request) {
	sess, ctx := current(r)
	cp, err := s.courses.CourseProgress(ctx, sess.User.ID, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cp)
}

func (s *Server) handleModuleProgress(w http.ResponseWriter, r *http.Request) {
	sess, ctx := current(r)
	var req struct {
		Percentage *int `json:"percentage"`
	}
	if !readJSON(w, r, &req) {
		return
	}
	if req.Percentage == nil {
		writeMessage(w, http.StatusBadRequest, "percentage is required")
		return
	}

	moduleID := r.PathValue("id")
	p, err := s.courses.UpdateModuleProgress(ctx, sess.User.ID, moduleID, *req.Percentage)
	if err != nil {
		writeError(w, r, err)
		return
	}
	activity.Record(r.Context(), s.activity, activity.Event{
		UserID: sess.User.ID,
		Kind:   activity.KindProgress,
		Data:   map[string]any{"moduleId": moduleID, "percentage": p.Percentage},
	})
	if p.Percentage == 100 {
		s.moduleCompleted(r, sess.User.ID, moduleID)
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleCompleteModule(w http.ResponseWriter, r *http.Request) {
	sess, ctx := current(r)
	moduleID := r.PathValue("id")
	p, err := s.courses.CompleteModule(ctx, sess.User.ID, moduleID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.moduleCompleted(r, sess.User.ID, moduleID)
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) moduleCompleted(r *http.Request, userID, moduleID string) {
	activity.Record(r.Context(), s.activity, activity.Event{
		UserID: userID,
		Kind:   activity.KindModuleCompleted,
		Data:   map[string]any{"moduleId": moduleID},
	})
	s.notify(r, notify.Notification{
		UserID:  userID,
		Kind:    notify.KindModuleCompleted,
		Title:   "Módulo completado",
		Message: "Completaste un módulo. ¡Sigue así!",
		Data:    map[string]any{"moduleId": moduleID},
	})
}
