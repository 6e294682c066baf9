package scoring

import (
	"math"

	"github.com/logicbot/backend/internal/config"
	"github.com/logicbot/backend/internal/models"
)

// AwardPoints computes the points for a correct answer. The streak is a
// flat additive bonus, not a multiplier; creditFactor is 1.0 for a full
// credit and 0.5 after a failed defense.
func AwardPoints(difficulty models.Difficulty, streakDays int, creditFactor float64) int {
	base, ok := config.PointsForDifficulty[difficulty]
	if !ok {
		base = config.PointsForDifficulty[models.DifficultyEasy]
	}
	return int(math.Round(float64(base)*creditFactor)) + streakDays
}

// ScoreResult describes everything one scoring event changed.
type ScoreResult struct {
	PointsAwarded   int
	GeneralLevel    int
	GeneralLeveledUp bool
	TopicLevel      int
	TopicLeveledUp  bool
	NewAchievements []string
	BonusPoints     int
}

// ApplyScore credits points to the record, runs level-up checks for the
// topic and the general level, then evaluates achievements. The record is
// mutated in place; the caller persists it.
//
// Level checks loop until the invariant holds: a record never rests in an
// over-threshold-but-not-leveled state.
func ApplyScore(u *models.UserProgress, topic string, points int) ScoreResult {
	result := ScoreResult{PointsAwarded: points}

	// Per-topic progress, created lazily on first scoring event.
	if u.Topics == nil {
		u.Topics = map[string]models.TopicProgress{}
	}
	if topic != "" {
		tp, ok := u.Topics[topic]
		if !ok {
			tp = models.TopicProgress{MasteryLevel: 1}
		}
		tp.Points += points
		for tp.Points >= config.TopicLevelThreshold*tp.MasteryLevel {
			tp.MasteryLevel++
			result.TopicLeveledUp = true
		}
		u.Topics[topic] = tp
		result.TopicLevel = tp.MasteryLevel
	}

	// General progress.
	u.GeneralPoints += points
	for u.GeneralPoints >= config.GeneralLevelThreshold*u.GeneralLevel {
		u.GeneralLevel++
		result.GeneralLeveledUp = true
	}

	u.ChallengesCompleted++

	// Achievements run after every scoring event; bonus points feed back
	// into the same level check.
	result.NewAchievements, result.BonusPoints = unlockAchievements(u)
	if result.BonusPoints > 0 {
		u.GeneralPoints += result.BonusPoints
		for u.GeneralPoints >= config.GeneralLevelThreshold*u.GeneralLevel {
			u.GeneralLevel++
			result.GeneralLeveledUp = true
		}
	}

	result.GeneralLevel = u.GeneralLevel
	return result
}

// unlockAchievements appends any newly qualified achievements and returns
// their ids plus the total bonus points they carry.
func unlockAchievements(u *models.UserProgress) ([]string, int) {
	var unlocked []string
	bonus := 0
	for _, id := range CheckAchievements(u) {
		if u.HasAchievement(id) {
			continue
		}
		u.Achievements = append(u.Achievements, id)
		unlocked = append(unlocked, id)
		if def, ok := Achievements[id]; ok {
			bonus += def.BonusPoints
		}
	}
	return unlocked, bonus
}
