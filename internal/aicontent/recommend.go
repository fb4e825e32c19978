package aicontent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/p-n-ai/arandu-gateway/internal/ai"
)

const maxRecommendations = 5

const recommendPrompt = `Eres un tutor. Con base en el progreso de un estudiante, escribe entre 3 y 5 recomendaciones breves, una por línea, sin numeración.

Fortalezas:
%s

Debilidades:
%s`

// recommend asks the AI gateway for recommendations. It returns nil when no
// provider is configured, the user is over budget, or the call fails.
func (s *Service) recommend(ctx context.Context, userID string, a *Analysis) []string {
	if s.ai == nil || !s.ai.HasProvider() {
		return nil
	}
	if s.budget != nil {
		ok, err := s.budget.Check(s.tenantID, userID)
		if err != nil || !ok {
			slog.Info("skipping AI recommendations", "user_id", userID, "over_budget", !ok, "error", err)
			return nil
		}
	}

	prompt := fmt.Sprintf(recommendPrompt, bulletList(a.Strengths), bulletList(a.Weaknesses))
	resp, err := s.ai.Complete(ctx, ai.CompletionRequest{
		Messages:    []ai.Message{{Role: "user", Content: prompt}},
		MaxTokens:   300,
		Temperature: 0.3,
		Task:        ai.TaskAnalysis,
	})
	if err != nil {
		slog.Warn("AI recommendations failed", "user_id", userID, "error", err)
		return nil
	}

	if s.budget != nil {
		if err := s.budget.Record(s.tenantID, userID, resp.TotalTokens()); err != nil {
			slog.Warn("failed to record AI usage", "user_id", userID, "error", err)
		}
	}
	return parseRecommendations(resp.Content)
}

func bulletList(items []string) string {
	if len(items) == 0 {
		return "- (ninguna)"
	}
	return "- " + strings.Join(items, "\n- ")
}

// parseRecommendations keeps up to five non-empty lines, stripping list
// markers.
func parseRecommendations(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "-*•0123456789.) ")
		if line == "" {
			continue
		}
		out = append(out, line)
		if len(out) == maxRecommendations {
			break
		}
	}
	return out
}
