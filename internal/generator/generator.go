package generator

import (
	"context"
	"errors"
	"fmt"

	"github.com/logicbot/backend/internal/config"
	"github.com/logicbot/backend/internal/models"
)

// GenerationError wraps any failure to produce a usable challenge. It
// carries a friendly user-facing line so callers never leak raw errors
// into the chat.
type GenerationError struct {
	Cause error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("challenge generation failed: %v", e.Cause)
}

func (e *GenerationError) Unwrap() error { return e.Cause }

// UserMessage is what the student sees when generation fails.
func (e *GenerationError) UserMessage() string {
	return "Ups, no pude preparar tu reto en este momento. 😓 Intenta de nuevo en un ratito, ¡volvemos al menú!"
}

// Generator is the challenge generation adapter: stateless request/response
// over an LLMClient.
type Generator struct {
	llm             LLMClient
	model           string
	defaultExpected int
}

func NewGenerator() *Generator {
	llm, model := NewLLMClient()
	return &Generator{llm: llm, model: model, defaultExpected: config.DefaultExpectedSeconds}
}

// NewGeneratorWith injects a client, for tests.
func NewGeneratorWith(llm LLMClient) *Generator {
	return &Generator{llm: llm, model: "test", defaultExpected: config.DefaultExpectedSeconds}
}

func (g *Generator) ModelName() string { return g.model }

// Client exposes the underlying LLM so the evaluator can share one
// connection instead of building its own.
func (g *Generator) Client() LLMClient { return g.llm }

// GenerateChallenge produces a regular challenge. An empty topic lets the
// model pick anything in scope for the format.
func (g *Generator) GenerateChallenge(ctx context.Context, level int, format string, difficulty models.Difficulty, topic string) (*models.Challenge, error) {
	resp, err := g.llm.Generate(ctx, SystemPrompt(), BuildChallengePrompt(level, format, difficulty, topic))
	if err != nil {
		return nil, &GenerationError{Cause: err}
	}

	challenge, err := ParseChallenge(resp.Content, g.defaultExpected)
	if err != nil {
		return nil, &GenerationError{Cause: err}
	}

	challenge.Type = models.ChallengeNormal
	challenge.Difficulty = difficulty
	challenge.Topic = topic
	challenge.Format = format
	return challenge, nil
}

// GenerateDebugChallenge produces a find-the-bug variant.
func (g *Generator) GenerateDebugChallenge(ctx context.Context, level int, format, topic string) (*models.Challenge, error) {
	resp, err := g.llm.Generate(ctx, SystemPrompt(), BuildDebugChallengePrompt(level, format, topic))
	if err != nil {
		return nil, &GenerationError{Cause: err}
	}

	challenge, err := ParseChallenge(resp.Content, g.defaultExpected)
	if err != nil {
		return nil, &GenerationError{Cause: err}
	}

	challenge.Type = models.ChallengeDebug
	challenge.Difficulty = models.DifficultyMedium
	challenge.Topic = topic
	challenge.Format = format
	return challenge, nil
}

// TopicIntro returns the mini-class shown before a lesson challenge.
func (g *Generator) TopicIntro(ctx context.Context, format, topic string) (string, error) {
	return g.plainText(ctx, BuildTopicIntroPrompt(format, topic))
}

// ExplainTopic returns the theory explanation for the failure-recovery flow.
func (g *Generator) ExplainTopic(ctx context.Context, format, topic string) (string, error) {
	return g.plainText(ctx, BuildTheoryPrompt(format, topic))
}

// CheatSheet returns the collectible reference card for a topic.
func (g *Generator) CheatSheet(ctx context.Context, format, topic string) (string, error) {
	return g.plainText(ctx, BuildCheatSheetPrompt(format, topic))
}

func (g *Generator) plainText(ctx context.Context, prompt string) (string, error) {
	resp, err := g.llm.Generate(ctx, SystemPrompt(), prompt)
	if err != nil {
		return "", &GenerationError{Cause: err}
	}
	return resp.Content, nil
}

// IsGenerationError reports whether err is a generation failure of any kind.
func IsGenerationError(err error) bool {
	var ge *GenerationError
	return errors.As(err, &ge)
}
