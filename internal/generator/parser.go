package generator

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/logicbot/backend/internal/models"
)

// ParseError means the model answered but not with usable JSON. Callers
// treat it like any generation failure; it exists so logs can tell the
// two apart.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("unparseable model output: %s", e.Reason)
}

const expectedHintCount = 3

// rawChallenge matches the JSON contract in the prompts.
type rawChallenge struct {
	Statement      string   `json:"enunciado"`
	IdealSolution  string   `json:"solucion_ideal"`
	Hints          []string `json:"pistas"`
	ExpectedTime   int      `json:"tiempo_estimado"`
	BugExplanation string   `json:"bug_explicacion"`
}

// ParseChallenge turns raw model output into a Challenge. Code fences are
// stripped first; a missing or mangled tiempo_estimado falls back to a
// generous default instead of failing the whole generation.
func ParseChallenge(responseBody string, defaultExpectedSeconds int) (*models.Challenge, error) {
	cleaned := stripCodeFences(responseBody)

	var raw rawChallenge
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		// The object may still be structurally salvageable when a single
		// field (typically a trailing comment on tiempo_estimado) broke
		// strict parsing.
		if salvaged, ok := salvageChallenge(cleaned); ok {
			raw = *salvaged
		} else {
			return nil, &ParseError{Reason: err.Error()}
		}
	}

	var errs []string
	if strings.TrimSpace(raw.Statement) == "" {
		errs = append(errs, "empty enunciado")
	}
	if strings.TrimSpace(raw.IdealSolution) == "" {
		errs = append(errs, "empty solucion_ideal")
	}
	if len(raw.Hints) != expectedHintCount {
		errs = append(errs, fmt.Sprintf("expected %d pistas, got %d", expectedHintCount, len(raw.Hints)))
	}
	if len(errs) > 0 {
		return nil, &ParseError{Reason: strings.Join(errs, "; ")}
	}

	if raw.ExpectedTime <= 0 {
		log.Printf("[generator] tiempo_estimado missing or invalid, defaulting to %ds", defaultExpectedSeconds)
		raw.ExpectedTime = defaultExpectedSeconds
	}

	return &models.Challenge{
		Statement:       raw.Statement,
		IdealSolution:   raw.IdealSolution,
		Hints:           raw.Hints,
		ExpectedSeconds: raw.ExpectedTime,
		BugExplanation:  raw.BugExplanation,
	}, nil
}

// salvageChallenge pulls the required fields out of almost-JSON with gjson,
// which tolerates noise strict unmarshaling rejects.
func salvageChallenge(s string) (*rawChallenge, bool) {
	if !gjson.Valid(s) {
		return nil, false
	}
	statement := gjson.Get(s, "enunciado").String()
	solution := gjson.Get(s, "solucion_ideal").String()
	if statement == "" || solution == "" {
		return nil, false
	}
	var hints []string
	for _, h := range gjson.Get(s, "pistas").Array() {
		hints = append(hints, h.String())
	}
	return &rawChallenge{
		Statement:      statement,
		IdealSolution:  solution,
		Hints:          hints,
		ExpectedTime:   int(gjson.Get(s, "tiempo_estimado").Int()),
		BugExplanation: gjson.Get(s, "bug_explicacion").String(),
	}, true
}

func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```json") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimSpace(s)
	} else if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSpace(s)
	}
	if strings.HasSuffix(s, "```") {
		s = strings.TrimSuffix(s, "```")
		s = strings.TrimSpace(s)
	}
	return s
}
