package generator

import (
	"strings"
	"testing"

	"github.com/logicbot/backend/internal/models"
)

func TestBuildChallengePrompt(t *testing.T) {
	prompt := BuildChallengePrompt(2, "java", models.DifficultyMedium, "Arrays (Arreglos)")

	for _, want := range []string{"java", "Intermedio", "Arrays (Arreglos)", "tiempo_estimado", "pistas"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("challenge prompt missing %q", want)
		}
	}
}

func TestBuildChallengePrompt_NoTopicLeavesChoiceOpen(t *testing.T) {
	prompt := BuildChallengePrompt(1, "python", models.DifficultyEasy, "")
	if strings.Contains(prompt, "''") {
		t.Errorf("empty topic should not leak quotes into the prompt")
	}
}

func TestBuildDebugChallengePrompt(t *testing.T) {
	prompt := BuildDebugChallengePrompt(3, "java", "Ciclos (for, while)")

	for _, want := range []string{"bug_explicacion", "Ciclos (for, while)"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("debug prompt missing %q", want)
		}
	}
}

func TestSystemPromptSetsJSONContract(t *testing.T) {
	if !strings.Contains(SystemPrompt(), "JSON") {
		t.Error("system prompt must pin the JSON-only output rule")
	}
}
