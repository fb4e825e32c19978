package adapter

import (
	"slices"

	"github.com/p-n-ai/arandu-gateway/internal/backend"
)

// CourseToSubject maps an edited course back to a subject payload. Derived
// fields have no backend counterpart and are dropped.
func CourseToSubject(c Course) backend.SubjectInput {
	return backend.SubjectInput{
		Name:        c.Title,
		Description: backend.String(c.Description),
	}
}

// ModuleToSubtopic maps an edited module back to a subtopic payload.
func ModuleToSubtopic(m Module, subjectID string) backend.SubtopicInput {
	return backend.SubtopicInput{
		Name:        m.Title,
		Description: backend.String(m.Description),
		SubjectID:   subjectID,
		Content:     backend.String(m.Content),
		VideoURL:    m.VideoURL,
		Duration:    backend.Int(m.Duration),
		Order:       backend.Int(m.Order),
	}
}

// CourseProgressToProgress expands an aggregate into one row per module:
// 100% with a completion time for completed modules, 0% otherwise.
func CourseProgressToProgress(cp CourseProgress, modules []Module) []backend.ProgressInput {
	rows := make([]backend.ProgressInput, 0, len(modules))
	for _, m := range modules {
		row := backend.ProgressInput{
			UserID:       cp.UserID,
			SubtopicID:   m.ID,
			ProgressType: ProgressTypeLearning,
		}
		if slices.Contains(cp.CompletedModules, m.ID) {
			at := cp.LastAccessed
			row.Percentage = 100
			row.CompletedAt = &at
		}
		rows = append(rows, row)
	}
	return rows
}
