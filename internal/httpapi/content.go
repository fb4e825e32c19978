package httpapi

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/p-n-ai/arandu-gateway/internal/activity"
	"github.com/p-n-ai/arandu-gateway/internal/adapter"
	"github.com/p-n-ai/arandu-gateway/internal/aicontent"
	"github.com/p-n-ai/arandu-gateway/internal/backend"
	"github.com/p-n-ai/arandu-gateway/internal/notify"
	"github.com/p-n-ai/arandu-gateway/internal/report"
)

const maxQuizQuestions = 50

func (s *Server) handleLessonPlan(w http.ResponseWriter, r *http.Request) {
	sess, ctx := current(r)
	moduleID := r.PathValue("id")
	plan := s.content.GenerateLessonPlan(ctx, moduleID)
	if plan == nil {
		writeMessage(w, http.StatusServiceUnavailable, "lesson plan unavailable")
		return
	}
	activity.Record(r.Context(), s.activity, activity.Event{
		UserID: sess.User.ID,
		Kind:   activity.KindLessonPlan,
		Data:   map[string]any{"moduleId": moduleID, "steps": plan.TotalSteps},
	})
	writeJSON(w, http.StatusOK, plan)
}

func (s *Server) handleLessonPlanWorkbook(w http.ResponseWriter, r *http.Request) {
	_, ctx := current(r)
	moduleID := r.PathValue("id")
	plan := s.content.GenerateLessonPlan(ctx, moduleID)
	if plan == nil {
		writeMessage(w, http.StatusServiceUnavailable, "lesson plan unavailable")
		return
	}
	data, err := report.LessonPlanWorkbook(*plan)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeWorkbook(w, fmt.Sprintf("plan-%s.xlsx", moduleID), data)
}

func (s *Server) handleQuiz(w http.ResponseWriter, r *http.Request) {
	sess, ctx := current(r)
	count := aicontent.DefaultQuestionCount
	if v := r.URL.Query().Get("count"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxQuizQuestions {
			writeMessage(w, http.StatusBadRequest, fmt.Sprintf("count must be between 1 and %d", maxQuizQuestions))
			return
		}
		count = n
	}

	moduleID := r.PathValue("id")
	quiz := s.content.GenerateQuiz(ctx, moduleID, count)
	if quiz == nil {
		writeMessage(w, http.StatusServiceUnavailable, "quiz unavailable")
		return
	}
	activity.Record(r.Context(), s.activity, activity.Event{
		UserID: sess.User.ID,
		Kind:   activity.KindQuiz,
		Data:   map[string]any{"moduleId": moduleID, "questions": quiz.TotalQuestions},
	})
	writeJSON(w, http.StatusOK, quiz)
}

// handleCourseQuiz builds a quiz from the stored steps of the course's
// modules without calling the generator.
func (s *Server) handleCourseQuiz(w http.ResponseWriter, r *http.Request) {
	_, ctx := current(r)
	courseID := r.PathValue("id")
	mods, err := s.courses.Modules(ctx, courseID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	all, err := s.backend.Feedback(ctx)
	if err != nil {
		writeError(w, r, err)
		return
	}

	inCourse := make(map[string]bool, len(mods))
	for _, m := range mods {
		inCourse[m.ID] = true
	}
	var steps []backend.AIFeedback
	for _, f := range adapter.SortSteps(all) {
		if inCourse[f.SubtopicID] {
			steps = append(steps, f)
		}
	}
	writeJSON(w, http.StatusOK, adapter.QuizFromFeedback(courseID, mods, steps))
}

func (s *Server) handleContent(w http.ResponseWriter, r *http.Request) {
	_, ctx := current(r)
	c := s.content.EducationalContent(ctx, r.PathValue("id"))
	if c == nil {
		writeMessage(w, http.StatusServiceUnavailable, "content unavailable")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handlePersonalize(w http.ResponseWriter, r *http.Request) {
	_, ctx := current(r)
	var profile aicontent.Profile
	if !readJSON(w, r, &profile) {
		return
	}
	p := s.content.Personalize(ctx, r.PathValue("id"), profile)
	if p == nil {
		writeMessage(w, http.StatusServiceUnavailable, "content unavailable")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	sess, ctx := current(r)
	a := s.content.AnalyzeProgress(ctx, sess.User.ID)
	if a == nil {
		writeMessage(w, http.StatusServiceUnavailable, "analysis unavailable")
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleAIStatus(w http.ResponseWriter, r *http.Request) {
	_, ctx := current(r)
	writeJSON(w, http.StatusOK, map[string]any{
		"available": s.content.Available(ctx),
		"usage":     s.content.UsageStats(ctx),
	})
}

func (s *Server) handleModuleFeedback(w http.ResponseWriter, r *http.Request) {
	_, ctx := current(r)
	steps, err := s.content.FeedbackBySubtopic(ctx, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, steps)
}

func (s *Server) handleCreateStep(w http.ResponseWriter, r *http.Request) {
	_, ctx := current(r)
	var in backend.FeedbackInput
	if !readJSON(w, r, &in) {
		return
	}
	if in.SubtopicID == "" {
		writeMessage(w, http.StatusBadRequest, "subtopicId is required")
		return
	}
	step, err := s.content.CreateStep(ctx, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, step)
}

func (s *Server) handleUpdateStep(w http.ResponseWriter, r *http.Request) {
	_, ctx := current(r)
	var in backend.FeedbackUpdate
	if !readJSON(w, r, &in) {
		return
	}
	step, err := s.content.UpdateStep(ctx, r.PathValue("id"), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, step)
}

func (s *Server) handleStepStatus(w http.ResponseWriter, r *http.Request) {
	sess, ctx := current(r)
	var req struct {
		Status *bool `json:"status"`
	}
	if !readJSON(w, r, &req) {
		return
	}
	if req.Status == nil {
		writeMessage(w, http.StatusBadRequest, "status is required")
		return
	}
	step, err := s.content.SetStepStatus(ctx, r.PathValue("id"), *req.Status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.notify(r, notify.Notification{
		UserID:  sess.User.ID,
		Kind:    notify.KindFeedbackUpdated,
		Title:   "Paso actualizado",
		Message: step.StepName,
		Data:    map[string]any{"stepId": step.ID, "subtopicId": step.SubtopicID, "status": *req.Status},
	})
	writeJSON(w, http.StatusOK, step)
}

func (s *Server) handleDeleteStep(w http.ResponseWriter, r *http.Request) {
	_, ctx := current(r)
	if err := s.content.DeleteStep(ctx, r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeWorkbook(w http.ResponseWriter, filename string, data []byte) {
	w.Header().Set("Content-Type", report.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
