// Package aicontent synthesizes lesson plans, quizzes and study material from
// the AI feedback steps the backend generates for a module.
//
// Generation is best effort: when the backend is unreachable or returns no
// steps, the synthesis functions return nil and log a warning. A nil result
// means "unavailable", not failure.
package aicontent

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/p-n-ai/arandu-gateway/internal/adapter"
	"github.com/p-n-ai/arandu-gateway/internal/ai"
	"github.com/p-n-ai/arandu-gateway/internal/backend"
)

const (
	DefaultQuestionCount = 10
	summaryRunes         = 200
	maxObjectives        = 3
	maxKeyPoints         = 5
	maxExamples          = 3
	maxProgressNotes     = 3
	strongThreshold      = 80
	weakThreshold        = 50
)

// Backend is the part of the upstream API the service uses.
type Backend interface {
	Subtopic(ctx context.Context, id string) (backend.Subtopic, error)
	GenerateFeedback(ctx context.Context, subtopicID string) (backend.GeneratedFeedback, error)
	ProgressByUser(ctx context.Context, userID string) ([]backend.Progress, error)
	Feedback(ctx context.Context) ([]backend.AIFeedback, error)
	FeedbackBySubtopic(ctx context.Context, subtopicID string) ([]backend.AIFeedback, error)
	CreateFeedbackStep(ctx context.Context, in backend.FeedbackInput) (backend.AIFeedback, error)
	UpdateFeedbackStep(ctx context.Context, id string, in backend.FeedbackUpdate) (backend.AIFeedback, error)
	DeleteFeedbackStep(ctx context.Context, id string) error
}

// Completer is an AI completion source, normally an *ai.Router.
type Completer interface {
	Complete(ctx context.Context, req ai.CompletionRequest) (ai.CompletionResponse, error)
	HasProvider() bool
}

// Service synthesizes AI content.
type Service struct {
	backend  Backend
	ai       Completer
	budget   ai.BudgetChecker
	tenantID string

	mu    sync.Mutex
	stats usage
	now   func() time.Time
}

type usage struct {
	calls     int
	successes int
	elapsed   time.Duration
}

// Option configures a Service.
type Option func(*Service)

// WithAI enables AI-written recommendations, metered against budget when
// budget is non-nil.
func WithAI(c Completer, budget ai.BudgetChecker, tenantID string) Option {
	return func(s *Service) {
		s.ai = c
		s.budget = budget
		s.tenantID = tenantID
	}
}

// NewService creates a Service on top of b.
func NewService(b Backend, opts ...Option) *Service {
	s := &Service{backend: b, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// generate calls the upstream generator and records usage.
func (s *Service) generate(ctx context.Context, moduleID string) (backend.GeneratedFeedback, error) {
	start := s.now()
	gen, err := s.backend.GenerateFeedback(ctx, moduleID)

	s.mu.Lock()
	s.stats.calls++
	s.stats.elapsed += s.now().Sub(start)
	if err == nil {
		s.stats.successes++
	}
	s.mu.Unlock()

	return gen, err
}

// GenerateLessonPlan builds a lesson plan for the module. It returns nil if
// generation fails or yields no steps.
func (s *Service) GenerateLessonPlan(ctx context.Context, moduleID string) *LessonPlan {
	gen, err := s.generate(ctx, moduleID)
	if err != nil {
		slog.Warn("lesson plan generation failed", "module_id", moduleID, "error", err)
		return nil
	}
	if len(gen.Steps) == 0 {
		slog.Warn("no steps for lesson plan", "module_id", moduleID)
		return nil
	}

	plan := &LessonPlan{
		ID:                 "lesson_" + moduleID,
		Title:              "Plan de Lección: " + gen.Subtopic.Name,
		Steps:              make([]PlanStep, 0, len(gen.Steps)),
		MaterialsNeeded:    []string{},
		LearningObjectives: []string{},
	}

	seen := make(map[string]bool)
	for _, f := range adapter.SortSteps(gen.Steps) {
		step := PlanStep{
			ID:               f.ID,
			StepNumber:       f.StepNumber,
			Title:            f.StepName,
			Content:          f.Content,
			Duration:         f.TimeMinutes,
			StudentActivity:  valueOr(f.StudentActivity, "Participación activa"),
			TimeAllocation:   f.TimeAllocation,
			MaterialsNeeded:  splitMaterials(f.MaterialsNeeded),
			SuccessIndicator: valueOr(f.SuccessIndicator, "Comprensión demostrada"),
		}
		plan.Steps = append(plan.Steps, step)
		plan.TotalDuration += step.Duration

		for _, m := range step.MaterialsNeeded {
			if !seen[m] {
				seen[m] = true
				plan.MaterialsNeeded = append(plan.MaterialsNeeded, m)
			}
		}
		if len(plan.LearningObjectives) < maxObjectives {
			plan.LearningObjectives = append(plan.LearningObjectives, step.SuccessIndicator)
		}
	}
	plan.TotalSteps = len(plan.Steps)
	return plan
}

// GenerateQuiz builds a quiz of count questions for the module; count <= 0
// means DefaultQuestionCount. It returns nil if the module is unknown or the
// generator yields no steps. A non-empty step list always produces exactly
// count questions.
func (s *Service) GenerateQuiz(ctx context.Context, moduleID string, count int) *adapter.Quiz {
	if count <= 0 {
		count = DefaultQuestionCount
	}

	st, err := s.backend.Subtopic(ctx, moduleID)
	if err != nil {
		slog.Warn("quiz module lookup failed", "module_id", moduleID, "error", err)
		return nil
	}
	gen, err := s.generate(ctx, moduleID)
	if err != nil {
		slog.Warn("quiz generation failed", "module_id", moduleID, "error", err)
		return nil
	}
	if len(gen.Steps) == 0 {
		slog.Warn("no steps for quiz", "module_id", moduleID)
		return nil
	}

	name := gen.Subtopic.Name
	if name == "" {
		name = st.Name
	}
	questions := questionsFromSteps(gen.Steps, count)

	return &adapter.Quiz{
		ID:             "quiz_" + moduleID,
		Title:          "Evaluación: " + name,
		Description:    "Evaluación basada en el contenido de " + name,
		ModuleID:       moduleID,
		Questions:      questions,
		TimeLimit:      count * 2,
		PassingScore:   70,
		TotalQuestions: len(questions),
	}
}

// EducationalContent condenses the module's steps into study material.
func (s *Service) EducationalContent(ctx context.Context, moduleID string) *Content {
	if _, err := s.backend.Subtopic(ctx, moduleID); err != nil {
		slog.Warn("content module lookup failed", "module_id", moduleID, "error", err)
		return nil
	}
	gen, err := s.generate(ctx, moduleID)
	if err != nil {
		slog.Warn("content generation failed", "module_id", moduleID, "error", err)
		return nil
	}
	if len(gen.Steps) == 0 {
		slog.Warn("no steps for educational content", "module_id", moduleID)
		return &Content{
			Content:   "Contenido educativo no disponible",
			Summary:   "Resumen no disponible",
			KeyPoints: []string{},
			Examples:  []string{},
		}
	}

	parts := make([]string, 0, len(gen.Steps))
	c := &Content{KeyPoints: []string{}, Examples: []string{}}
	for _, f := range gen.Steps {
		parts = append(parts, f.Content)
		if v := valueOr(f.SuccessIndicator, ""); v != "" && len(c.KeyPoints) < maxKeyPoints {
			c.KeyPoints = append(c.KeyPoints, v)
		}
		if v := valueOr(f.StudentActivity, ""); v != "" && len(c.Examples) < maxExamples {
			c.Examples = append(c.Examples, v)
		}
	}
	c.Content = strings.Join(parts, "\n\n")
	c.Summary = truncateRunes(gen.Steps[0].Content, summaryRunes) + "..."
	return c
}

var (
	defaultRecommendations = []string{
		"Revisar módulos con bajo progreso",
		"Practicar ejercicios adicionales",
		"Buscar ayuda en temas difíciles",
	}
	defaultNextSteps = []string{
		"Completar módulos pendientes",
		"Tomar evaluaciones de práctica",
		"Explorar contenido adicional",
	}
)

// AnalyzeProgress summarises a student's strong and weak modules. It returns
// nil if the progress list cannot be fetched.
func (s *Service) AnalyzeProgress(ctx context.Context, userID string) *Analysis {
	progress, err := s.backend.ProgressByUser(ctx, userID)
	if err != nil {
		slog.Warn("progress analysis failed", "user_id", userID, "error", err)
		return nil
	}

	a := &Analysis{
		Strengths:       []string{},
		Weaknesses:      []string{},
		Recommendations: append([]string(nil), defaultRecommendations...),
		NextSteps:       append([]string(nil), defaultNextSteps...),
	}
	for _, p := range progress {
		if p.Percentage >= strongThreshold && len(a.Strengths) < maxProgressNotes {
			a.Strengths = append(a.Strengths, "Alto rendimiento en módulo "+p.SubtopicID)
		}
		if p.Percentage < weakThreshold && len(a.Weaknesses) < maxProgressNotes {
			a.Weaknesses = append(a.Weaknesses, "Necesita mejorar en módulo "+p.SubtopicID)
		}
	}

	if recs := s.recommend(ctx, userID, a); len(recs) > 0 {
		a.Recommendations = recs
		a.Source = SourceAI
	} else {
		a.Source = SourceRules
	}
	return a
}

// Personalize adapts the module's content to a learning style. It returns
// nil when the content is unavailable.
func (s *Service) Personalize(ctx context.Context, moduleID string, profile Profile) *Personalized {
	content := s.EducationalContent(ctx, moduleID)
	if content == nil {
		return nil
	}

	adapted := content.Content
	if tip, ok := styleTips[profile.LearningStyle]; ok {
		adapted += "\n\n💡 Sugerencia: " + tip
	}
	return &Personalized{
		AdaptedContent: adapted,
		LearningPath: []string{
			"Revisar conceptos básicos",
			"Practicar ejercicios",
			"Aplicar conocimientos",
			"Evaluar comprensión",
		},
		Resources: []string{
			"Videos explicativos",
			"Ejercicios interactivos",
			"Material de lectura adicional",
			"Tutoría personalizada",
		},
	}
}

var styleTips = map[string]string{
	"visual":      "Usa diagramas y mapas mentales para visualizar los conceptos.",
	"auditory":    "Graba tu voz explicando los conceptos y escúchate.",
	"kinesthetic": "Practica los conceptos con ejercicios físicos o manuales.",
}

// Available reports whether the upstream AI feedback store answers.
func (s *Service) Available(ctx context.Context) bool {
	_, err := s.backend.Feedback(ctx)
	return err == nil
}

// UsageStats reports generation usage measured by this process, plus the
// number of steps stored upstream (zero if that lookup fails).
func (s *Service) UsageStats(ctx context.Context) Stats {
	s.mu.Lock()
	u := s.stats
	s.mu.Unlock()

	st := Stats{TotalGenerations: u.calls}
	if u.calls > 0 {
		st.AverageResponseTime = u.elapsed.Seconds() / float64(u.calls)
		st.SuccessRate = float64(u.successes) * 100 / float64(u.calls)
	}
	if steps, err := s.backend.Feedback(ctx); err == nil {
		st.StoredSteps = len(steps)
	}
	return st
}

func valueOr(s *string, fallback string) string {
	if s == nil || *s == "" {
		return fallback
	}
	return *s
}

func splitMaterials(s *string) []string {
	if s == nil || *s == "" {
		return []string{}
	}
	var out []string
	for _, m := range strings.Split(*s, ",") {
		if m = strings.TrimSpace(m); m != "" {
			out = append(out, m)
		}
	}
	if out == nil {
		return []string{}
	}
	return out
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
