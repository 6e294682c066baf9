package conversation

import (
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/logicbot/backend/internal/models"
)

// ── Intent Resolver ───────────────────────────────────────

// Intent is a recognized global command. Resolution is isolated here so
// the fuzzy matching can be tested apart from state dispatch.
type Intent int

const (
	IntentNone Intent = iota
	IntentMenu
	IntentProfile
	IntentAchievements
	IntentCheatSheets
	IntentGiveUp
	IntentHint
	IntentJoinClass
)

// Command is a resolved intent plus its argument, if the intent takes one
// (only IntentJoinClass does: the class token).
type Command struct {
	Intent Intent
	Arg    string
}

// Aliases accepted for each command. Matching is case-insensitive,
// accent-insensitive, and tolerates one typo on single-word commands.
var commandAliases = map[Intent][]string{
	IntentMenu:         {"menu", "menú", "inicio", "opciones"},
	IntentProfile:      {"perfil", "mi perfil"},
	IntentAchievements: {"logros", "mis logros", "medallas"},
	IntentCheatSheets:  {"fichas", "mis fichas", "mochila", "mi mochila"},
	IntentGiveUp:       {"me rindo", "rendirse"},
	IntentHint:         {"pista", "ayuda", "hint"},
}

// ResolveGlobal maps free text onto a global command. The whole message
// must be the command; a command word buried inside a code submission is
// never a command.
func ResolveGlobal(text string) (Command, bool) {
	normalized := normalize(text)
	if normalized == "" {
		return Command{}, false
	}

	if token, ok := strings.CutPrefix(normalized, "unirme"); ok {
		return Command{Intent: IntentJoinClass, Arg: strings.TrimSpace(token)}, true
	}

	for intent, aliases := range commandAliases {
		for _, alias := range aliases {
			if matchesAlias(normalized, normalize(alias)) {
				return Command{Intent: intent}, true
			}
		}
	}
	return Command{}, false
}

// matchesAlias accepts an exact normalized match, or a one-typo slip on
// single-word aliases of 4+ runes ("perfl", "pitsa" style).
func matchesAlias(input, alias string) bool {
	if input == alias {
		return true
	}
	if strings.ContainsRune(alias, ' ') || len([]rune(alias)) < 4 {
		return false
	}
	if strings.ContainsRune(input, ' ') {
		return false
	}
	return fuzzy.LevenshteinDistance(input, alias) <= 1
}

// ── Difficulty Resolution ─────────────────────────────────

// ResolveDifficulty recognizes "1"/"2"/"3" anywhere in the message or a
// difficulty name, accent-insensitive.
func ResolveDifficulty(text string) (models.Difficulty, bool) {
	normalized := normalize(text)
	switch {
	case strings.Contains(text, "1") || strings.Contains(normalized, "facil"):
		return models.DifficultyEasy, true
	case strings.Contains(text, "2") || strings.Contains(normalized, "intermedio"):
		return models.DifficultyMedium, true
	case strings.Contains(text, "3") || strings.Contains(normalized, "dificil"):
		return models.DifficultyHard, true
	}
	return "", false
}

// ResolveYesNo reads an affirmative out of free text. Anything that does
// not contain a yes is a no, mirroring how students actually answer.
func ResolveYesNo(text string) bool {
	normalized := normalize(text)
	for _, yes := range []string{"si", "claro", "dale", "ok", "vale", "por favor"} {
		if strings.Contains(normalized, yes) {
			return true
		}
	}
	return false
}

// normalize lowercases, trims, and strips the accents students type
// inconsistently.
func normalize(text string) string {
	lower := strings.ToLower(strings.TrimSpace(text))
	replacer := strings.NewReplacer("á", "a", "é", "e", "í", "i", "ó", "o", "ú", "u", "ü", "u")
	return replacer.Replace(lower)
}
