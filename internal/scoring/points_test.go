package scoring

import (
	"testing"

	"github.com/logicbot/backend/internal/models"
)

func TestAwardPoints_BaseTable(t *testing.T) {
	cases := []struct {
		difficulty models.Difficulty
		want       int
	}{
		{models.DifficultyEasy, 10},
		{models.DifficultyMedium, 20},
		{models.DifficultyHard, 30},
	}

	for _, tc := range cases {
		got := AwardPoints(tc.difficulty, 0, 1.0)
		if got != tc.want {
			t.Errorf("AwardPoints(%s, 0, 1.0) = %d, want %d", tc.difficulty, got, tc.want)
		}
	}
}

func TestAwardPoints_MonotoneInStreakAndCredit(t *testing.T) {
	for _, d := range []models.Difficulty{models.DifficultyEasy, models.DifficultyMedium, models.DifficultyHard} {
		prev := -1
		for streak := 0; streak <= 10; streak++ {
			got := AwardPoints(d, streak, 1.0)
			if got <= prev {
				t.Fatalf("%s: points not increasing in streak at %d: %d <= %d", d, streak, got, prev)
			}
			prev = got
		}

		if AwardPoints(d, 3, 0.5) >= AwardPoints(d, 3, 1.0) {
			t.Errorf("%s: half credit should award less than full credit", d)
		}
	}
}

func TestAwardPoints_StreakIsAdditive(t *testing.T) {
	if got := AwardPoints(models.DifficultyMedium, 7, 1.0); got != 27 {
		t.Errorf("expected 20 + 7 = 27, got %d", got)
	}
}

func TestAwardPoints_HalfCreditRounds(t *testing.T) {
	// Hard base 30 at half credit rounds to 15.
	if got := AwardPoints(models.DifficultyHard, 0, 0.5); got != 15 {
		t.Errorf("expected 15, got %d", got)
	}
}

func newTestUser() *models.UserProgress {
	return &models.UserProgress{
		Phone:        "+1000",
		Name:         "Ana",
		GeneralLevel: 1,
		Topics:       map[string]models.TopicProgress{},
	}
}

func TestApplyScore_TopicCreatedLazily(t *testing.T) {
	u := newTestUser()

	res := ApplyScore(u, "Ciclos (for, while)", 20)

	tp, ok := u.Topics["Ciclos (for, while)"]
	if !ok {
		t.Fatalf("topic entry not created")
	}
	if tp.Points != 20 || tp.MasteryLevel != 1 {
		t.Errorf("expected 20 pts at level 1, got %+v", tp)
	}
	if res.TopicLeveledUp {
		t.Errorf("20 points should not level a fresh topic (threshold 50)")
	}
}

func TestApplyScore_TopicLevelUpInvariant(t *testing.T) {
	u := newTestUser()
	u.Topics["Arrays (Arreglos)"] = models.TopicProgress{Points: 45, MasteryLevel: 1}

	res := ApplyScore(u, "Arrays (Arreglos)", 10)

	tp := u.Topics["Arrays (Arreglos)"]
	if !res.TopicLeveledUp || tp.MasteryLevel != 2 {
		t.Fatalf("55 points should reach level 2, got %+v", tp)
	}
	// The invariant: never left over-threshold without leveling.
	if tp.Points >= 50*tp.MasteryLevel {
		t.Errorf("record persisted over-threshold: %+v", tp)
	}
}

func TestApplyScore_TopicLevelCatchUpLoop(t *testing.T) {
	u := newTestUser()
	// A huge single award must produce as many level-ups as thresholds crossed.
	ApplyScore(u, "Funciones", 170)

	tp := u.Topics["Funciones"]
	// 170 pts: level 1→2 at 50, 2→3 at 100, 3→4 at 150.
	if tp.MasteryLevel != 4 {
		t.Errorf("expected mastery level 4 after 170 points, got %d", tp.MasteryLevel)
	}
}

func TestApplyScore_GeneralLevelUp(t *testing.T) {
	u := newTestUser()
	u.GeneralPoints = 95

	res := ApplyScore(u, "Funciones", 10)

	if !res.GeneralLeveledUp || u.GeneralLevel != 2 {
		t.Errorf("105 points should reach general level 2, got level %d", u.GeneralLevel)
	}
}

func TestApplyScore_AchievementUnlockWithBonus(t *testing.T) {
	u := newTestUser()
	u.ChallengesCompleted = 4 // this event makes 5

	res := ApplyScore(u, "Funciones", 10)

	found := false
	for _, id := range res.NewAchievements {
		if id == "aprendiz" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected aprendiz unlock at 5 challenges, got %v", res.NewAchievements)
	}
	if res.BonusPoints != 10 {
		t.Errorf("aprendiz carries 10 bonus points, got %d", res.BonusPoints)
	}
	if u.GeneralPoints != 20 {
		t.Errorf("bonus should be credited: expected 20, got %d", u.GeneralPoints)
	}
}

func TestApplyScore_AchievementsAreAppendOnly(t *testing.T) {
	u := newTestUser()
	u.ChallengesCompleted = 10
	u.Achievements = []string{"aprendiz"}

	res := ApplyScore(u, "Funciones", 10)

	for _, id := range res.NewAchievements {
		if id == "aprendiz" {
			t.Errorf("already-unlocked achievement granted again")
		}
	}
	count := 0
	for _, id := range u.Achievements {
		if id == "aprendiz" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("achievement duplicated in record: %v", u.Achievements)
	}
}

func TestApplyScore_MasteryAchievement(t *testing.T) {
	u := newTestUser()
	u.Topics["Variables y Primitivos"] = models.TopicProgress{Points: 145, MasteryLevel: 3}

	// Already level 3 → maestro_variables should unlock on the next event.
	res := ApplyScore(u, "Variables y Primitivos", 4)

	found := false
	for _, id := range res.NewAchievements {
		if id == "maestro_variables" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected maestro_variables at topic level 3, got %v", res.NewAchievements)
	}
}
