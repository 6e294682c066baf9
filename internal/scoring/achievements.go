package scoring

import "github.com/logicbot/backend/internal/models"

// AchievementDef defines a single achievement.
type AchievementDef struct {
	Name        string
	Description string
	Emoji       string
	BonusPoints int
}

// Achievements maps achievement ids to their definitions. "primer_paso"
// has no requirement predicate — it is granted explicitly when onboarding
// completes.
var Achievements = map[string]AchievementDef{
	"primer_paso":      {Name: "Primer Paso", Description: "Completaste el onboarding", Emoji: "🎯", BonusPoints: 5},
	"aprendiz":         {Name: "Aprendiz", Description: "Completaste 5 retos", Emoji: "📚", BonusPoints: 10},
	"consistente":      {Name: "Consistente", Description: "Mantuviste una racha de 3 días", Emoji: "🔥", BonusPoints: 15},
	"dedicado":         {Name: "Dedicado", Description: "Mantuviste una racha de 7 días", Emoji: "💪", BonusPoints: 30},
	"perfeccionista":   {Name: "Perfeccionista", Description: "Resolviste 10 retos sin pedir pistas", Emoji: "💎", BonusPoints: 25},
	"maestro_variables": {Name: "Maestro de Variables", Description: "Alcanzaste nivel 3 en Variables", Emoji: "⚡", BonusPoints: 20},
	"imparable":        {Name: "Imparable", Description: "Completaste 50 retos", Emoji: "🚀", BonusPoints: 50},
}

// CheckAchievements returns every achievement id the record currently
// qualifies for. The caller filters out the already-unlocked ones.
func CheckAchievements(u *models.UserProgress) []string {
	var earned []string

	if u.ChallengesCompleted >= 5 {
		earned = append(earned, "aprendiz")
	}
	if u.ChallengesCompleted >= 50 {
		earned = append(earned, "imparable")
	}
	if u.StreakDays >= 3 {
		earned = append(earned, "consistente")
	}
	if u.StreakDays >= 7 {
		earned = append(earned, "dedicado")
	}
	if u.ChallengesWithoutHint >= 10 {
		earned = append(earned, "perfeccionista")
	}
	if u.TopicLevel("Variables y Primitivos") >= 3 {
		earned = append(earned, "maestro_variables")
	}

	return earned
}
