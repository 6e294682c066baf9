package integrity

import (
	"math/rand"
	"time"

	"github.com/logicbot/backend/internal/models"
)

const (
	// Submissions shorter than this are not worth flagging — they are
	// "hola"/"ayuda" style messages, not pasted solutions.
	minReportableLength = 15

	// Chance of a casual defense question on Intermedio/Difícil even when
	// timing looks fine.
	randomDefenseRate = 0.30
)

// Assessment is the heuristic's decision for one submission.
type Assessment struct {
	ElapsedSeconds int
	Fast           bool // solved in under half the model's estimate
	Reportable     bool // emit a security alert
	DefenseNeeded  bool // ask a defense question before crediting points
	DefenseStrict  bool // frame the defense as mandatory verification
}

// Heuristic computes timing-based suspicion. The random source is injected
// so tests can force both branches of the casual-defense draw.
type Heuristic struct {
	rng *rand.Rand
}

func NewHeuristic(rng *rand.Rand) *Heuristic {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Heuristic{rng: rng}
}

// Assess inspects one graded submission. correct and isQuestion come from
// the evaluator's verdict; messageLen is the raw submission length.
func (h *Heuristic) Assess(challenge *models.Challenge, correct, isQuestion bool, messageLen int, now time.Time) Assessment {
	elapsed := int(now.Sub(challenge.StartedAt).Seconds())
	if elapsed < 0 {
		elapsed = 0
	}

	a := Assessment{ElapsedSeconds: elapsed}
	a.Fast = elapsed < challenge.ExpectedSeconds/2

	// A report needs a fast submission that looks like an actual answer.
	a.Reportable = a.Fast && !isQuestion && (correct || messageLen >= minReportableLength)

	// Defense only ever applies to correct answers, and a debug challenge
	// is already its own comprehension check.
	if correct && challenge.Type != models.ChallengeDebug {
		if a.Fast {
			a.DefenseNeeded = true
			a.DefenseStrict = true
		} else if challenge.Difficulty != models.DifficultyEasy && h.rng.Float64() < randomDefenseRate {
			a.DefenseNeeded = true
		}
	}

	return a
}
