package aicontent

import (
	"reflect"
	"strings"
	"testing"

	"github.com/p-n-ai/arandu-gateway/internal/adapter"
	"github.com/p-n-ai/arandu-gateway/internal/backend"
)

func TestExtractQuestion(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"existing question", "Lee el texto. ¿Qué es una variable? Responde.", "¿Qué es una variable?"},
		{"longest sentence", "Corto. Las variables guardan valores en memoria. Una variable tiene un nombre y un tipo asociado!", "¿Qué significa: 'Una variable tiene un nombre y un tipo asociado'?"},
		{"tie keeps earliest", "aaaaaaaaaaaaaaaaaaaaa1. bbbbbbbbbbbbbbbbbbbbb2.", "¿Qué significa: 'aaaaaaaaaaaaaaaaaaaaa1'?"},
		{"exactly twenty runes is too short", "ññññññññññññññññññññ.", "¿Qué aprendiste sobre este tema?"},
		{"empty", "", "¿Qué aprendiste sobre este tema?"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractQuestion(tt.content); got != tt.want {
				t.Errorf("ExtractQuestion() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGenerateOptions(t *testing.T) {
	tests := []struct {
		content string
		want    []string
	}{
		{
			"Las variables almacenan datos durante la ejecución del programa",
			[]string{"variables", "almacenan", "datos", "durante"},
		},
		{
			"Una variable con tipo",
			[]string{"variable", "Opción relacionada", "Opción incorrecta", "Ninguna de las anteriores"},
		},
		{
			"",
			[]string{"Opción correcta", "Opción relacionada", "Opción incorrecta", "Ninguna de las anteriores"},
		},
		{
			// "acción" has six runes but eight bytes; "sobre" has five runes.
			"sobre acción",
			[]string{"sobre", "acción", "Opción incorrecta", "Ninguna de las anteriores"},
		},
	}
	for _, tt := range tests {
		if got := GenerateOptions(tt.content); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("GenerateOptions(%q) = %v, want %v", tt.content, got, tt.want)
		}
	}
}

func TestDetermineDifficulty(t *testing.T) {
	words := func(n int) string { return strings.TrimSpace(strings.Repeat("palabra ", n)) }

	tests := []struct {
		name    string
		content string
		want    adapter.Difficulty
	}{
		{"short", words(19), adapter.Easy},
		{"short with keyword stays easy", "Una teoría breve", adapter.Easy},
		{"medium", words(20), adapter.Medium},
		{"fifty is medium", words(50), adapter.Medium},
		{"long", words(51), adapter.Hard},
		{"keyword", words(25) + " algoritmo", adapter.Hard},
		{"keyword any case", words(25) + " MÉTODO", adapter.Hard},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetermineDifficulty(tt.content); got != tt.want {
				t.Errorf("DetermineDifficulty() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestQuestionsFromSteps(t *testing.T) {
	steps := []backend.AIFeedback{
		{Content: "¿Qué es un bucle?"},
		{Content: "Practica en casa."},
		{Content: "Los bucles repiten instrucciones varias veces seguidas.", SuccessIndicator: backend.String("Explica un bucle")},
	}
	qs := questionsFromSteps(steps, 4)
	if len(qs) != 4 {
		t.Fatalf("questions = %d, want 4", len(qs))
	}

	if qs[0].Question != "¿Qué es un bucle?" || qs[0].Explanation != "Respuesta basada en el contenido del módulo" {
		t.Errorf("q0 = %+v", qs[0])
	}
	if qs[0].CorrectAnswer != qs[0].Options[0] {
		t.Errorf("correct answer %q is not the first option %q", qs[0].CorrectAnswer, qs[0].Options[0])
	}
	if qs[1].Explanation != "Explica un bucle" || !strings.HasPrefix(qs[1].Question, "¿Qué significa: '") {
		t.Errorf("q1 = %+v", qs[1])
	}
	if qs[2].ID != "q_2" || qs[2].Question != "¿Qué aprendiste sobre el tema 3?" || qs[2].Difficulty != adapter.Easy {
		t.Errorf("q2 = %+v", qs[2])
	}
	if qs[3].CorrectAnswer != "Concepto fundamental del tema" {
		t.Errorf("q3 = %+v", qs[3])
	}
}

func TestQuestionsFromSteps_CountBelowCandidates(t *testing.T) {
	steps := []backend.AIFeedback{{Content: "¿a?"}, {Content: "¿b?"}, {Content: "¿c?"}}
	if got := len(questionsFromSteps(steps, 2)); got != 2 {
		t.Errorf("questions = %d, want 2", got)
	}
}
