package aicontent

import (
	"context"
	"fmt"

	"github.com/p-n-ai/arandu-gateway/internal/adapter"
	"github.com/p-n-ai/arandu-gateway/internal/backend"
)

// FeedbackBySubtopic lists the stored steps of a subtopic in step order.
func (s *Service) FeedbackBySubtopic(ctx context.Context, subtopicID string) ([]backend.AIFeedback, error) {
	steps, err := s.backend.FeedbackBySubtopic(ctx, subtopicID)
	if err != nil {
		return nil, fmt.Errorf("listing feedback for %s: %w", subtopicID, err)
	}
	return adapter.SortSteps(steps), nil
}

func (s *Service) CreateStep(ctx context.Context, in backend.FeedbackInput) (backend.AIFeedback, error) {
	step, err := s.backend.CreateFeedbackStep(ctx, in)
	if err != nil {
		return backend.AIFeedback{}, fmt.Errorf("creating feedback step: %w", err)
	}
	return step, nil
}

func (s *Service) UpdateStep(ctx context.Context, id string, in backend.FeedbackUpdate) (backend.AIFeedback, error) {
	step, err := s.backend.UpdateFeedbackStep(ctx, id, in)
	if err != nil {
		return backend.AIFeedback{}, fmt.Errorf("updating feedback step %s: %w", id, err)
	}
	return step, nil
}

// SetStepStatus toggles a step's status flag, the only field the browser
// writes back.
func (s *Service) SetStepStatus(ctx context.Context, id string, status bool) (backend.AIFeedback, error) {
	return s.UpdateStep(ctx, id, backend.FeedbackUpdate{Status: backend.Bool(status)})
}

func (s *Service) DeleteStep(ctx context.Context, id string) error {
	if err := s.backend.DeleteFeedbackStep(ctx, id); err != nil {
		return fmt.Errorf("deleting feedback step %s: %w", id, err)
	}
	return nil
}
