package evaluator

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/logicbot/backend/internal/generator"
	"github.com/logicbot/backend/internal/models"
)

// VerdictKind classifies a student message against an outstanding challenge.
type VerdictKind int

const (
	// VerdictQuestion means the message is a theory question, not an
	// attempted solution. It is routed to conversational help, never graded.
	VerdictQuestion VerdictKind = iota
	VerdictCorrect
	VerdictIncorrect
)

type Verdict struct {
	Kind     VerdictKind
	Feedback string
}

// EvaluationError wraps an underlying model failure. The conversation
// machine answers with a neutral retry message and leaves state unchanged.
type EvaluationError struct {
	Cause error
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("evaluation failed: %v", e.Cause)
}

func (e *EvaluationError) Unwrap() error { return e.Cause }

func (e *EvaluationError) UserMessage() string {
	return "Tuve un problema revisando tu respuesta. 🤕 Envíala de nuevo en un momento, tu reto sigue activo."
}

// Evaluator wraps the LLM for grading, tutoring chat and the defense flow.
type Evaluator struct {
	llm generator.LLMClient
}

func New(llm generator.LLMClient) *Evaluator {
	return &Evaluator{llm: llm}
}

// ── Classify & Grade ──────────────────────────────────────

const questionMarker = "[PREGUNTA]"

// ClassifyAndGrade first decides whether the message is a question, then
// grades it strictly: a valid solution to a different problem is Incorrect.
func (e *Evaluator) ClassifyAndGrade(ctx context.Context, statement, userMessage, format string) (Verdict, error) {
	prompt := buildGradingPrompt(statement, userMessage, format)

	resp, err := e.llm.Generate(ctx, gradingSystemPrompt, prompt)
	if err != nil {
		return Verdict{}, &EvaluationError{Cause: err}
	}

	return parseVerdict(resp.Content), nil
}

// parseVerdict maps the model's marker protocol onto a Verdict. Anything
// that is neither the question marker nor a correct marker counts as
// incorrect, including valid solutions to a different problem.
func parseVerdict(response string) Verdict {
	trimmed := strings.TrimSpace(response)

	if strings.Contains(trimmed, questionMarker) {
		return Verdict{Kind: VerdictQuestion}
	}
	if strings.HasPrefix(trimmed, "✅") {
		return Verdict{Kind: VerdictCorrect, Feedback: trimmed}
	}
	return Verdict{Kind: VerdictIncorrect, Feedback: trimmed}
}

// ── Conversational Tutoring ───────────────────────────────

// Chat answers a free-text message in tutor mode: socratic hints, never
// full solutions. On failure the caller gets a safe canned line instead of
// an error — chat is best-effort.
func (e *Evaluator) Chat(ctx context.Context, userMessage string, history []models.ChatTurn, topic string) string {
	prompt := buildChatPrompt(userMessage, history, topic)

	resp, err := e.llm.Generate(ctx, chatSystemPrompt, prompt)
	if err != nil {
		log.Printf("[evaluator] chat failed: %v", err)
		return "No estoy seguro de cómo responder a eso. 🤔 Prueba con el comando *menu* para ver tus opciones."
	}
	return resp.Content
}

// ── Defense (Anti-Plagiarism) ─────────────────────────────

// GenerateDefenseQuestion produces one short, specific question about the
// submitted solution. The fallback question keeps the flow moving when the
// model is down.
func (e *Evaluator) GenerateDefenseQuestion(ctx context.Context, statement, submission string) string {
	prompt := buildDefenseQuestionPrompt(statement, submission)

	resp, err := e.llm.Generate(ctx, gradingSystemPrompt, prompt)
	if err != nil {
		log.Printf("[evaluator] defense question generation failed: %v", err)
		return "¿Podrías explicarme paso a paso la lógica de tu solución?"
	}
	return strings.TrimSpace(resp.Content)
}

// EvaluateDefense returns whether the answer shows genuine understanding.
// On infrastructure failure the verdict is returned alongside the error so
// the caller can apply its leniency policy.
func (e *Evaluator) EvaluateDefense(ctx context.Context, question, answer, statement string) (bool, error) {
	prompt := buildDefenseEvalPrompt(question, answer, statement)

	resp, err := e.llm.Generate(ctx, gradingSystemPrompt, prompt)
	if err != nil {
		log.Printf("[evaluator] defense evaluation failed: %v", err)
		return false, &EvaluationError{Cause: err}
	}
	return strings.Contains(strings.ToUpper(resp.Content), "SI"), nil
}
