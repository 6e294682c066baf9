package conversation

import (
	"math/rand"
	"os"
	"strconv"
	"strings"

	"github.com/logicbot/backend/internal/models"
)

// Config holds the machine's tunable policy. The leniency knobs default to
// the behavior the course originally shipped with.
type Config struct {
	// OnboardingEnabled routes first contact through the onboarding flow
	// instead of straight to the menu.
	OnboardingEnabled bool

	// FailedDefenseCredit is the points factor applied when a defense
	// answer does not convince the model. Never zero: a correct solution
	// always earns something.
	FailedDefenseCredit float64

	// LenientDefense treats a defense-evaluation outage as a pass.
	LenientDefense bool

	// DebugChallengeRate is the probability a lesson challenge comes out
	// as a find-the-bug variant.
	DebugChallengeRate float64

	// ClassTokens are the accepted "unirme" codes. Empty means any token
	// is accepted, which is the single-cohort default.
	ClassTokens []string
}

func DefaultConfig() Config {
	return Config{
		OnboardingEnabled:   true,
		FailedDefenseCredit: 0.5,
		LenientDefense:      true,
		DebugChallengeRate:  0.2,
	}
}

// ConfigFromEnv reads the policy knobs from the environment, falling back
// to the defaults.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()

	if os.Getenv("ONBOARDING_ENABLED") == "false" {
		cfg.OnboardingEnabled = false
	}
	if v, err := strconv.ParseFloat(os.Getenv("FAILED_DEFENSE_CREDIT"), 64); err == nil && v >= 0 && v <= 1 {
		cfg.FailedDefenseCredit = v
	}
	if os.Getenv("LENIENT_DEFENSE") == "false" {
		cfg.LenientDefense = false
	}
	if v, err := strconv.ParseFloat(os.Getenv("DEBUG_CHALLENGE_RATE"), 64); err == nil && v >= 0 && v <= 1 {
		cfg.DebugChallengeRate = v
	}
	if raw := os.Getenv("CLASS_TOKENS"); raw != "" {
		for _, t := range strings.Split(raw, ",") {
			if t = strings.TrimSpace(strings.ToUpper(t)); t != "" {
				cfg.ClassTokens = append(cfg.ClassTokens, t)
			}
		}
	}
	return cfg
}

// AcceptsClassToken checks a normalized token against the configured set.
func (c Config) AcceptsClassToken(token string) bool {
	if token == "" {
		return false
	}
	if len(c.ClassTokens) == 0 {
		return true
	}
	for _, t := range c.ClassTokens {
		if t == token {
			return true
		}
	}
	return false
}

// ChooseVariant is the seedable challenge-variant policy: lesson
// challenges occasionally come out as debugging exercises, free practice
// never does (the student already chose what to practice).
func ChooseVariant(cfg Config, inLesson bool, rng *rand.Rand) models.ChallengeType {
	if inLesson && rng.Float64() < cfg.DebugChallengeRate {
		return models.ChallengeDebug
	}
	return models.ChallengeNormal
}
