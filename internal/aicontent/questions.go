package aicontent

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/p-n-ai/arandu-gateway/internal/adapter"
	"github.com/p-n-ai/arandu-gateway/internal/backend"
)

const (
	minSentenceRunes = 20
	minOptionRunes   = 4
	easyWordLimit    = 20
	hardWordLimit    = 50
)

var (
	sentenceBreak = regexp.MustCompile(`[.!?]`)
	complexTerms  = regexp.MustCompile(`(?i)(teoría|método|algoritmo|fórmula|concepto)`)
)

var optionFillers = []string{
	"Opción correcta",
	"Opción relacionada",
	"Opción incorrecta",
	"Ninguna de las anteriores",
}

var genericOptions = []string{
	"Concepto fundamental del tema",
	"Aplicación práctica",
	"Teoría avanzada",
	"Ninguna de las anteriores",
}

// ExtractQuestion turns step content into a question. An existing
// interrogative span is used verbatim; otherwise the longest sentence over
// twenty characters (earliest on ties) is wrapped in a "what does it mean"
// question.
func ExtractQuestion(content string) string {
	if q, ok := adapter.FindQuestion(content); ok {
		return q
	}

	best := ""
	for _, s := range sentenceBreak.Split(content, -1) {
		s = strings.TrimSpace(s)
		if utf8.RuneCountInString(s) > minSentenceRunes && utf8.RuneCountInString(s) > utf8.RuneCountInString(best) {
			best = s
		}
	}
	if best != "" {
		return fmt.Sprintf("¿Qué significa: '%s'?", best)
	}
	return "¿Qué aprendiste sobre este tema?"
}

// GenerateOptions picks the first four words longer than four characters,
// padding with fixed fillers. The first option is the one marked correct.
func GenerateOptions(content string) []string {
	options := make([]string, 0, len(optionFillers))
	for _, w := range strings.Fields(content) {
		if len(options) == len(optionFillers) {
			break
		}
		if utf8.RuneCountInString(w) > minOptionRunes {
			options = append(options, w)
		}
	}
	for i := len(options); i < len(optionFillers); i++ {
		options = append(options, optionFillers[i])
	}
	return options
}

// DetermineDifficulty grades content by word count and complexity keywords.
func DetermineDifficulty(content string) adapter.Difficulty {
	words := len(strings.Fields(content))
	switch {
	case words < easyWordLimit:
		return adapter.Easy
	case words > hardWordLimit || complexTerms.MatchString(content):
		return adapter.Hard
	default:
		return adapter.Medium
	}
}

// questionsFromSteps builds exactly count questions. Steps with a question
// mark or a success indicator come first; generic questions fill the rest.
func questionsFromSteps(steps []backend.AIFeedback, count int) []adapter.Question {
	questions := make([]adapter.Question, 0, count)

	for _, step := range steps {
		if len(questions) == count {
			break
		}
		indicator := ""
		if step.SuccessIndicator != nil {
			indicator = *step.SuccessIndicator
		}
		if !adapter.HasQuestionMark(step.Content) && indicator == "" {
			continue
		}

		options := GenerateOptions(step.Content)
		explanation := indicator
		if explanation == "" {
			explanation = "Respuesta basada en el contenido del módulo"
		}
		questions = append(questions, adapter.Question{
			ID:            fmt.Sprintf("q_%d", len(questions)),
			Type:          "single",
			Question:      ExtractQuestion(step.Content),
			Options:       options,
			CorrectAnswer: options[0],
			Explanation:   explanation,
			Difficulty:    DetermineDifficulty(step.Content),
		})
	}

	for len(questions) < count {
		n := len(questions)
		options := append([]string(nil), genericOptions...)
		questions = append(questions, adapter.Question{
			ID:            fmt.Sprintf("q_%d", n),
			Type:          "single",
			Question:      fmt.Sprintf("¿Qué aprendiste sobre el tema %d?", n+1),
			Options:       options,
			CorrectAnswer: options[0],
			Explanation:   "Esta pregunta evalúa la comprensión básica del tema",
			Difficulty:    adapter.Easy,
		})
	}
	return questions
}
