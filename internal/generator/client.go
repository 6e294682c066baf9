package generator

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/param"
)

// LLMClient is the interface every model backend satisfies.
type LLMClient interface {
	Generate(ctx context.Context, systemPrompt string, userPrompt string) (*LLMResponse, error)
}

// LLMResponse holds the raw response content and token usage.
type LLMResponse struct {
	Content      string
	PromptTokens int
	OutputTokens int
}

// llmTimeout bounds every model call. Expiry surfaces as a normal
// generation/evaluation failure, never a stuck conversation.
const llmTimeout = 30 * time.Second

// NewLLMClient picks the model backend from the environment: the Anthropic
// API by default, the claude CLI or canned mock output for local dev.
func NewLLMClient() (LLMClient, string) {
	if os.Getenv("USE_CLI_GENERATOR") == "true" {
		cliPath := os.Getenv("CLAUDE_CLI_PATH")
		if cliPath == "" {
			cliPath = "claude"
		}
		log.Println("[generator] using claude CLI backend")
		return NewCLIClient(cliPath), "claude-cli"
	}
	if os.Getenv("MOCK_GENERATOR") == "true" {
		log.Println("[generator] using mock backend")
		return NewMockClient(), "mock"
	}
	model := os.Getenv("ANTHROPIC_MODEL")
	if model == "" {
		model = "claude-sonnet-4-5-20250929"
	}
	log.Println("[generator] using Anthropic API:", model)
	return NewAPIClient(model), model
}

// ── APIClient — Anthropic SDK (Production) ─────────────────

type APIClient struct {
	client *anthropic.Client
	model  string
}

func NewAPIClient(model string) *APIClient {
	client := anthropic.NewClient(
		option.WithAPIKey(os.Getenv("ANTHROPIC_API_KEY")),
	)
	return &APIClient{client: &client, model: model}
}

func (c *APIClient) Generate(ctx context.Context, systemPrompt string, userPrompt string) (*LLMResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, llmTimeout)
	defer cancel()

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(c.model),
		MaxTokens:   4096,
		Temperature: param.NewOpt(0.8),
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	}

	message, err := c.callWithRetry(ctx, params)
	if err != nil {
		return nil, err
	}

	var responseText string
	for _, block := range message.Content {
		if block.Type == "text" {
			responseText = block.Text
			break
		}
	}

	if responseText == "" {
		return nil, fmt.Errorf("no text content in API response")
	}

	return &LLMResponse{
		Content:      responseText,
		PromptTokens: int(message.Usage.InputTokens),
		OutputTokens: int(message.Usage.OutputTokens),
	}, nil
}

func (c *APIClient) callWithRetry(ctx context.Context, params anthropic.MessageNewParams) (*anthropic.Message, error) {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			sleepDuration := time.Duration(1<<uint(attempt)) * time.Second
			log.Printf("[generator] retrying Anthropic API call in %v (attempt %d)", sleepDuration, attempt+1)
			time.Sleep(sleepDuration)
		}

		message, err := c.client.Messages.New(ctx, params)
		if err == nil {
			return message, nil
		}
		lastErr = err
		log.Printf("[generator] Anthropic API attempt %d failed: %v", attempt+1, err)
	}
	return nil, fmt.Errorf("anthropic API failed after retries: %w", lastErr)
}

// ── MockClient — Local Development ─────────────────────────

type MockClient struct{}

func NewMockClient() *MockClient {
	return &MockClient{}
}

func (m *MockClient) Generate(ctx context.Context, systemPrompt string, userPrompt string) (*LLMResponse, error) {
	return &LLMResponse{
		Content:      mockChallengeJSON,
		PromptTokens: 400,
		OutputTokens: 300,
	}, nil
}

const mockChallengeJSON = `{
  "enunciado": "[Mock] 💡 Escribe un programa que sume los números del 1 al 10 usando un bucle e imprima el resultado.",
  "solucion_ideal": "int suma = 0;\nfor (int i = 1; i <= 10; i++) {\n    suma += i;\n}\nSystem.out.println(suma);",
  "pistas": [
    "Necesitas una variable acumuladora que empiece en cero.",
    "Un bucle for puede recorrer los valores del 1 al 10.",
    "Dentro del bucle, suma el contador al acumulador y al final imprime."
  ],
  "tiempo_estimado": 120
}`
