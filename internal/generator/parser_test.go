package generator

import (
	"encoding/json"
	"strings"
	"testing"
)

func validChallengeJSON() string {
	raw := map[string]interface{}{
		"enunciado":      "💡 Escribe una función que invierta una cadena.",
		"solucion_ideal": "def invertir(s):\n    return s[::-1]",
		"pistas": []string{
			"Piensa en recorrer la cadena desde el final.",
			"Python permite rebanadas (slices) con paso negativo.",
			"La rebanada [::-1] devuelve la secuencia invertida.",
		},
		"tiempo_estimado": 90,
	}
	data, _ := json.Marshal(raw)
	return string(data)
}

func TestParseChallenge_ValidJSON(t *testing.T) {
	challenge, err := ParseChallenge(validChallengeJSON(), 120)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	if len(challenge.Hints) != 3 {
		t.Errorf("expected 3 hints, got %d", len(challenge.Hints))
	}
	if challenge.ExpectedSeconds != 90 {
		t.Errorf("expected 90s estimate, got %d", challenge.ExpectedSeconds)
	}
	if challenge.IdealSolution == "" {
		t.Errorf("ideal solution missing")
	}
}

func TestParseChallenge_MarkdownFences(t *testing.T) {
	input := "```json\n" + validChallengeJSON() + "\n```"

	challenge, err := ParseChallenge(input, 120)
	if err != nil {
		t.Fatalf("expected no error with markdown fences, got: %v", err)
	}
	if !strings.Contains(challenge.Statement, "invierta") {
		t.Errorf("statement lost in fence stripping: %q", challenge.Statement)
	}
}

func TestParseChallenge_MissingEstimateDefaults(t *testing.T) {
	raw := `{
		"enunciado": "Reto sin estimación",
		"solucion_ideal": "x = 1",
		"pistas": ["a", "b", "c"]
	}`

	challenge, err := ParseChallenge(raw, 120)
	if err != nil {
		t.Fatalf("missing tiempo_estimado should not fail generation: %v", err)
	}
	if challenge.ExpectedSeconds != 120 {
		t.Errorf("expected default 120s, got %d", challenge.ExpectedSeconds)
	}
}

func TestParseChallenge_WrongHintCount(t *testing.T) {
	raw := `{
		"enunciado": "Reto",
		"solucion_ideal": "x = 1",
		"pistas": ["solo una"],
		"tiempo_estimado": 60
	}`

	_, err := ParseChallenge(raw, 120)
	if err == nil {
		t.Fatalf("expected error for wrong hint count")
	}
	if _, ok := err.(*ParseError); !ok {
		t.Errorf("expected *ParseError, got %T", err)
	}
}

func TestParseChallenge_GarbageInput(t *testing.T) {
	_, err := ParseChallenge("lo siento, no puedo generar eso ahora", 120)
	if err == nil {
		t.Fatalf("expected error for non-JSON output")
	}
}

func TestParseChallenge_DebugFields(t *testing.T) {
	raw := `{
		"enunciado": "Encuentra el error en este código: for(i=0;i<=10;i--){}",
		"solucion_ideal": "El error está en el decremento: debe ser i++.",
		"pistas": ["Mira bien el bucle", "¿Hacia dónde avanza i?", "Compara la condición con el paso"],
		"bug_explicacion": "El índice se decrementa, el bucle nunca termina.",
		"tiempo_estimado": 60
	}`

	challenge, err := ParseChallenge(raw, 120)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if challenge.BugExplanation == "" {
		t.Errorf("bug explanation not carried through")
	}
}
