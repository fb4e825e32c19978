package adapter

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/p-n-ai/arandu-gateway/internal/backend"
)

const maxCourseQuestions = 10

// interrogative matches from the first question mark (either form) to the
// last one on the same line. A lone "?" does not match.
var interrogative = regexp.MustCompile(`[¿?].*[?¿]`)

var courseQuizOptions = []string{
	"Opción A: Concepto correcto",
	"Opción B: Concepto relacionado",
	"Opción C: Concepto incorrecto",
	"Opción D: Ninguna de las anteriores",
}

// FindQuestion returns the interrogative span of content, if any.
func FindQuestion(content string) (string, bool) {
	q := interrogative.FindString(content)
	return q, q != ""
}

// HasQuestionMark reports whether content contains "?" or "¿".
func HasQuestionMark(content string) bool {
	return strings.ContainsAny(content, "?¿")
}

// SortSteps returns a copy of steps ordered by step number. Equal step
// numbers keep their input order.
func SortSteps(steps []backend.AIFeedback) []backend.AIFeedback {
	sorted := slices.Clone(steps)
	slices.SortStableFunc(sorted, func(a, b backend.AIFeedback) int {
		return a.StepNumber - b.StepNumber
	})
	return sorted
}

// FeedbackToLesson renders AI feedback steps as a lesson.
func FeedbackToLesson(steps []backend.AIFeedback) Lesson {
	sorted := SortSteps(steps)
	lesson := Lesson{Steps: make([]LessonStep, 0, len(sorted)), TotalSteps: len(sorted)}
	for _, f := range sorted {
		lesson.Steps = append(lesson.Steps, LessonStep{
			ID:               f.ID,
			StepNumber:       f.StepNumber,
			Title:            f.StepName,
			Content:          f.Content,
			Duration:         f.TimeMinutes,
			StudentActivity:  f.StudentActivity,
			TimeAllocation:   f.TimeAllocation,
			MaterialsNeeded:  f.MaterialsNeeded,
			SuccessIndicator: f.SuccessIndicator,
		})
		lesson.TotalDuration += f.TimeMinutes
	}
	return lesson
}

// QuizFromFeedback builds a course quiz from the interrogative steps in
// feedback, at most ten. Options are fixed placeholders.
func QuizFromFeedback(courseID string, modules []Module, feedback []backend.AIFeedback) Quiz {
	questions := []Question{}
	for _, f := range feedback {
		if len(questions) == maxCourseQuestions {
			break
		}
		if !HasQuestionMark(f.Content) {
			continue
		}
		questions = append(questions, Question{
			ID:            fmt.Sprintf("q_%d", len(questions)),
			Type:          "single",
			Question:      courseQuestion(f.Content),
			Options:       slices.Clone(courseQuizOptions),
			CorrectAnswer: "Opción correcta",
			Explanation:   valueOr(f.SuccessIndicator, ""),
		})
	}

	title := "Curso"
	if len(modules) > 0 && modules[0].Title != "" {
		title = modules[0].Title
	}

	return Quiz{
		ID:             "quiz_" + courseID,
		Title:          "Evaluación: " + title,
		CourseID:       courseID,
		Questions:      questions,
		TimeLimit:      30,
		PassingScore:   70,
		Attempts:       3,
		CurrentAttempt: 1,
		TotalQuestions: len(questions),
	}
}

func courseQuestion(content string) string {
	if q, ok := FindQuestion(content); ok {
		return q
	}
	return fmt.Sprintf("¿Qué aprendiste sobre %s...?", truncate(content, 50))
}

// truncate returns the first n runes of s.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
