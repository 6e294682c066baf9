package conversation

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/logicbot/backend/internal/config"
	"github.com/logicbot/backend/internal/evaluator"
	"github.com/logicbot/backend/internal/events"
	"github.com/logicbot/backend/internal/generator"
	"github.com/logicbot/backend/internal/models"
	"github.com/logicbot/backend/internal/progress"
)

// ── Fakes ─────────────────────────────────────────────────

type fakeStore struct {
	records map[string]*models.UserProgress
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: map[string]*models.UserProgress{}}
}

func (s *fakeStore) Get(phone string) (*models.UserProgress, error) {
	u, ok := s.records[phone]
	if !ok {
		return nil, progress.ErrNotFound
	}
	copied := *u
	if u.Challenge != nil {
		c := *u.Challenge
		copied.Challenge = &c
	}
	return &copied, nil
}

func (s *fakeStore) Create(phone, name string, initialState models.ConversationState) (*models.UserProgress, error) {
	if existing, ok := s.records[phone]; ok {
		copied := *existing
		return &copied, nil
	}
	u := &models.UserProgress{
		Phone:        phone,
		Name:         name,
		GeneralLevel: 1,
		State:        initialState,
	}
	s.records[phone] = u
	copied := *u
	return &copied, nil
}

func (s *fakeStore) Update(phone string, p progress.Patch) error {
	u, ok := s.records[phone]
	if !ok {
		return progress.ErrNotFound
	}
	p.Apply(u)
	return nil
}

type fakeGenerator struct {
	err   error
	hints []string
}

func (g *fakeGenerator) challenge(difficulty models.Difficulty, topic, format string, typ models.ChallengeType) (*models.Challenge, error) {
	if g.err != nil {
		return nil, &generator.GenerationError{Cause: g.err}
	}
	hints := g.hints
	if hints == nil {
		hints = []string{"pista uno", "pista dos", "pista tres"}
	}
	return &models.Challenge{
		Statement:       fmt.Sprintf("Reto de %s sobre %s", format, topic),
		IdealSolution:   "int x = 1;",
		Hints:           hints,
		Type:            typ,
		Difficulty:      difficulty,
		Topic:           topic,
		Format:          format,
		ExpectedSeconds: 120,
	}, nil
}

func (g *fakeGenerator) GenerateChallenge(_ context.Context, _ int, format string, difficulty models.Difficulty, topic string) (*models.Challenge, error) {
	return g.challenge(difficulty, topic, format, models.ChallengeNormal)
}

func (g *fakeGenerator) GenerateDebugChallenge(_ context.Context, _ int, format, topic string) (*models.Challenge, error) {
	return g.challenge(models.DifficultyMedium, topic, format, models.ChallengeDebug)
}

func (g *fakeGenerator) TopicIntro(_ context.Context, _, topic string) (string, error) {
	return "🧠 Mini-clase: " + topic, nil
}

func (g *fakeGenerator) ExplainTopic(_ context.Context, _, topic string) (string, error) {
	return "Teoría de " + topic, nil
}

func (g *fakeGenerator) CheatSheet(_ context.Context, _, topic string) (string, error) {
	return "📑 Ficha: " + topic, nil
}

type fakeGrader struct {
	verdict     evaluator.Verdict
	verdictErr  error
	defensePass bool
	defenseErr  error
}

func (g *fakeGrader) ClassifyAndGrade(_ context.Context, _, _, _ string) (evaluator.Verdict, error) {
	return g.verdict, g.verdictErr
}

func (g *fakeGrader) Chat(_ context.Context, _ string, _ []models.ChatTurn, _ string) string {
	return "respuesta conversacional"
}

func (g *fakeGrader) GenerateDefenseQuestion(_ context.Context, _, _ string) string {
	return "¿Por qué usaste un for?"
}

func (g *fakeGrader) EvaluateDefense(_ context.Context, _, _, _ string) (bool, error) {
	return g.defensePass, g.defenseErr
}

type sentMessage struct {
	Phone   string
	Content models.Content
}

type captureSender struct {
	sent []sentMessage
}

func (s *captureSender) Send(phone string, content models.Content) error {
	s.sent = append(s.sent, sentMessage{Phone: phone, Content: content})
	return nil
}

func (s *captureSender) allText() string {
	var parts []string
	for _, m := range s.sent {
		parts = append(parts, m.Content.Text)
	}
	return strings.Join(parts, "\n")
}

// ── Harness ───────────────────────────────────────────────

type harness struct {
	store  *fakeStore
	gen    *fakeGenerator
	grader *fakeGrader
	sender *captureSender
	now    time.Time
	m      *Machine
}

func newHarness(cfg Config) *harness {
	h := &harness{
		store:  newFakeStore(),
		gen:    &fakeGenerator{},
		grader: &fakeGrader{},
		sender: &captureSender{},
		now:    time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC),
	}
	h.m = NewMachine(Deps{
		Store:     h.store,
		Generator: h.gen,
		Grader:    h.grader,
		Sender:    h.sender,
		Rand:      rand.New(rand.NewSource(1)),
		Now:       func() time.Time { return h.now },
	}, cfg)
	return h
}

func (h *harness) seedUser(t *testing.T, u *models.UserProgress) {
	t.Helper()
	if u.GeneralLevel == 0 {
		u.GeneralLevel = 1
	}
	if u.State == "" {
		u.State = models.StateMenu
	}
	h.store.records[u.Phone] = u
}

func (h *harness) text(phone, body string) {
	h.m.HandleIncoming(context.Background(), &models.IncomingMessage{
		From: phone, ProfileName: "Ana", Kind: models.IncomingText, Text: body,
	})
}

func (h *harness) tap(phone, selection string) {
	h.m.HandleIncoming(context.Background(), &models.IncomingMessage{
		From: phone, ProfileName: "Ana", Kind: models.IncomingInteractive, SelectionID: selection,
	})
}

func activeChallenge(h *harness, difficulty models.Difficulty) *models.Challenge {
	return &models.Challenge{
		Statement:       "Suma dos números",
		IdealSolution:   "a + b",
		Hints:           []string{"uno", "dos", "tres"},
		Type:            models.ChallengeNormal,
		Difficulty:      difficulty,
		Topic:           "Variables y Primitivos",
		Format:          "java",
		ExpectedSeconds: 120,
		StartedAt:       h.now,
	}
}

// ── First Contact ─────────────────────────────────────────

func TestFirstContact_CreatesRecord(t *testing.T) {
	cfg := DefaultConfig()
	cfg.OnboardingEnabled = false
	h := newHarness(cfg)

	h.text("+1000", "hola")

	u, ok := h.store.records["+1000"]
	if !ok {
		t.Fatal("expected a record for the new identity")
	}
	if u.GeneralLevel != 1 || u.GeneralPoints != 0 {
		t.Errorf("expected level 1 with 0 points, got level %d points %d", u.GeneralLevel, u.GeneralPoints)
	}
	if u.State != models.StateMenu {
		t.Errorf("expected menu_principal, got %s", u.State)
	}
	if u.StreakDays != 1 {
		t.Errorf("expected streak 1 on first contact, got %d", u.StreakDays)
	}
	if !strings.Contains(h.sender.allText(), "LogicBot") {
		t.Errorf("expected a welcome message, got %q", h.sender.allText())
	}
}

func TestFirstContact_OnboardingWalkthrough(t *testing.T) {
	h := newHarness(DefaultConfig())

	h.text("+1000", "hola")
	if h.store.records["+1000"].State != models.StateOnboardingStart {
		t.Fatalf("expected onboarding start, got %s", h.store.records["+1000"].State)
	}

	h.tap("+1000", "onboarding_empezar")
	h.tap("+1000", "nivel_intermedio")
	if h.store.records["+1000"].State != models.StateOnboardingPrefs {
		t.Fatalf("expected onboarding_paso_2, got %s", h.store.records["+1000"].State)
	}

	h.tap("+1000", "pref_ambos")
	h.tap("+1000", "finalizar_onboarding")

	u := h.store.records["+1000"]
	if u.State != models.StateMenu {
		t.Errorf("expected menu_principal after onboarding, got %s", u.State)
	}
	if !u.OnboardingDone {
		t.Error("expected onboarding marked done")
	}
	if !u.HasAchievement("primer_paso") {
		t.Error("expected primer_paso unlocked")
	}
	if u.GeneralPoints != 5 {
		t.Errorf("expected primer_paso bonus of 5 points, got %d", u.GeneralPoints)
	}
	if u.LearningPreference != "ambos" {
		t.Errorf("expected preference ambos, got %q", u.LearningPreference)
	}
}

// ── Difficulty Selection ──────────────────────────────────

func TestDifficultySelection_NumberResolvesAndGenerates(t *testing.T) {
	h := newHarness(DefaultConfig())
	h.seedUser(t, &models.UserProgress{
		Phone: "+1000", Name: "Ana",
		State:           models.StateChoosingLevel,
		ChallengeFormat: "java",
		LastActiveDate:  "2026-03-10",
	})

	h.text("+1000", "2")

	u := h.store.records["+1000"]
	if u.State != models.StateSolving {
		t.Fatalf("expected resolviendo_reto, got %s", u.State)
	}
	if u.Challenge == nil {
		t.Fatal("expected a generated challenge")
	}
	if u.Challenge.Difficulty != models.DifficultyMedium {
		t.Errorf("expected Intermedio, got %s", u.Challenge.Difficulty)
	}
	if len(u.Challenge.Hints) != 3 {
		t.Errorf("expected 3 hints, got %d", len(u.Challenge.Hints))
	}
	if u.Challenge.Topic == "" {
		t.Error("free practice should pick a topic from the course list")
	}
}

func TestDifficultySelection_UnrecognizedStaysPut(t *testing.T) {
	h := newHarness(DefaultConfig())
	h.seedUser(t, &models.UserProgress{
		Phone: "+1000", State: models.StateChoosingLevel,
		ChallengeFormat: "java", LastActiveDate: "2026-03-10",
	})

	h.text("+1000", "no sé, tú dime")

	if h.store.records["+1000"].State != models.StateChoosingLevel {
		t.Errorf("unrecognized difficulty should not change state")
	}
	if !strings.Contains(h.sender.allText(), "respuesta conversacional") {
		t.Errorf("expected a conversational reply")
	}
}

// ── Grading Flows ─────────────────────────────────────────

func TestIncorrectAnswerReachesTheoryOffer(t *testing.T) {
	h := newHarness(DefaultConfig())
	h.grader.verdict = evaluator.Verdict{Kind: evaluator.VerdictIncorrect, Feedback: "❌ Casi, revisa el bucle."}
	h.seedUser(t, &models.UserProgress{
		Phone: "+1000", Name: "Ana",
		State:          models.StateInCourse,
		ActiveCourse:   "java",
		LessonIndex:    0,
		FailedAttempts: 1,
		Challenge:      activeChallenge(h, models.DifficultyEasy),
		LastActiveDate: "2026-03-10",
	})
	h.store.records["+1000"].Challenge.StartedAt = h.now.Add(-200 * time.Second)

	h.text("+1000", "for i in range(10): print(i)")

	u := h.store.records["+1000"]
	if u.FailedAttempts != 2 {
		t.Errorf("expected intentos_fallidos 2, got %d", u.FailedAttempts)
	}
	if u.State != models.StateTheoryOffer {
		t.Errorf("expected esperando_ayuda_teorica, got %s", u.State)
	}
	if u.LifetimeFailures != 1 {
		t.Errorf("expected lifetime failure counted, got %d", u.LifetimeFailures)
	}
}

func TestCorrectAnswerAwardsPointsAndReturnsToMenu(t *testing.T) {
	h := newHarness(DefaultConfig())
	h.grader.verdict = evaluator.Verdict{Kind: evaluator.VerdictCorrect, Feedback: "✅ ¡Correcto!"}
	h.seedUser(t, &models.UserProgress{
		Phone: "+1000", Name: "Ana",
		State:          models.StateSolving,
		StreakDays:     2,
		Challenge:      activeChallenge(h, models.DifficultyEasy),
		LastActiveDate: "2026-03-10",
	})
	h.store.records["+1000"].Challenge.StartedAt = h.now.Add(-200 * time.Second)

	h.text("+1000", "public int suma(int a, int b) { return a + b; }")

	u := h.store.records["+1000"]
	if u.State != models.StateMenu {
		t.Errorf("expected menu_principal, got %s", u.State)
	}
	if u.Challenge != nil {
		t.Error("expected challenge cleared after scoring")
	}
	// Easy base 10 + streak 2.
	if u.GeneralPoints != 12 {
		t.Errorf("expected 12 points, got %d", u.GeneralPoints)
	}
	if u.ChallengesCompleted != 1 {
		t.Errorf("expected one completed challenge, got %d", u.ChallengesCompleted)
	}
	if u.ChallengesWithoutHint != 1 {
		t.Errorf("expected a no-hint completion, got %d", u.ChallengesWithoutHint)
	}
	if tp := u.Topics["Variables y Primitivos"]; tp.Points != 12 {
		t.Errorf("expected topic points 12, got %d", tp.Points)
	}
}

func TestQuestionIsAnsweredWithoutGrading(t *testing.T) {
	h := newHarness(DefaultConfig())
	h.grader.verdict = evaluator.Verdict{Kind: evaluator.VerdictQuestion}
	h.seedUser(t, &models.UserProgress{
		Phone: "+1000",
		State: models.StateSolving,
		Challenge: &models.Challenge{
			Statement: "Suma dos números", IdealSolution: "a+b",
			Hints: []string{"a", "b", "c"}, Difficulty: models.DifficultyEasy,
			Topic: "Variables y Primitivos", ExpectedSeconds: 120,
			StartedAt: time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC),
		},
		LastActiveDate: "2026-03-10",
	})

	h.text("+1000", "¿qué es una variable?")

	u := h.store.records["+1000"]
	if u.State != models.StateSolving {
		t.Errorf("a question must not change state, got %s", u.State)
	}
	if u.Challenge == nil {
		t.Error("a question must not clear the challenge")
	}
	if u.FailedAttempts != 0 {
		t.Errorf("a question is not a failure, got %d attempts", u.FailedAttempts)
	}
}

func TestEvaluationFailureLeavesStateUntouched(t *testing.T) {
	h := newHarness(DefaultConfig())
	h.grader.verdictErr = &evaluator.EvaluationError{Cause: errors.New("api down")}
	h.seedUser(t, &models.UserProgress{
		Phone: "+1000", State: models.StateSolving,
		Challenge:      activeChallenge(h, models.DifficultyEasy),
		LastActiveDate: "2026-03-10",
	})

	h.text("+1000", "mi solución")

	u := h.store.records["+1000"]
	if u.State != models.StateSolving || u.Challenge == nil {
		t.Error("evaluation outage must leave the challenge active")
	}
	if !strings.Contains(h.sender.allText(), "reto sigue activo") {
		t.Errorf("expected the evaluator's retry message, got %q", h.sender.allText())
	}
}

// ── Defense Flow ──────────────────────────────────────────

func TestFastCorrectOpensStrictDefense(t *testing.T) {
	h := newHarness(DefaultConfig())
	h.grader.verdict = evaluator.Verdict{Kind: evaluator.VerdictCorrect, Feedback: "✅ ¡Correcto!"}
	h.seedUser(t, &models.UserProgress{
		Phone: "+1000", State: models.StateSolving,
		Challenge:      activeChallenge(h, models.DifficultyEasy),
		LastActiveDate: "2026-03-10",
	})
	// 40s elapsed against a 120s estimate: fast path.
	h.store.records["+1000"].Challenge.StartedAt = h.now.Add(-40 * time.Second)

	h.text("+1000", "public int suma(int a, int b) { return a + b; }")

	u := h.store.records["+1000"]
	if u.State != models.StateDefense {
		t.Fatalf("expected esperando_defensa, got %s", u.State)
	}
	if !u.DefenseMandatory {
		t.Error("fast path must frame the defense as mandatory")
	}
	if u.DefenseQuestion == "" {
		t.Error("expected a persisted defense question")
	}
	if u.GeneralPoints != 0 {
		t.Errorf("no points before the defense resolves, got %d", u.GeneralPoints)
	}
}

func TestDefenseFailureAwardsHalfCredit(t *testing.T) {
	h := newHarness(DefaultConfig())
	h.grader.defensePass = false
	h.seedUser(t, &models.UserProgress{
		Phone: "+1000", State: models.StateDefense,
		Challenge:        activeChallenge(h, models.DifficultyHard),
		DefenseQuestion:  "¿Por qué usaste un for?",
		DefenseMandatory: true,
		LastActiveDate:   "2026-03-10",
	})

	h.text("+1000", "pues no sé")

	u := h.store.records["+1000"]
	// Hard base 30 halved to 15, streak 0.
	if u.GeneralPoints != 15 {
		t.Errorf("expected half credit of 15 points, got %d", u.GeneralPoints)
	}
	if u.State != models.StateMenu {
		t.Errorf("defense always resolves to menu, got %s", u.State)
	}
	if u.DefenseQuestion != "" {
		t.Error("expected defense question cleared")
	}
}

func TestDefensePassAwardsFullCredit(t *testing.T) {
	h := newHarness(DefaultConfig())
	h.grader.defensePass = true
	h.seedUser(t, &models.UserProgress{
		Phone: "+1000", State: models.StateDefense,
		Challenge:       activeChallenge(h, models.DifficultyHard),
		DefenseQuestion: "¿Por qué usaste un for?",
		LastActiveDate:  "2026-03-10",
	})

	h.text("+1000", "porque recorro una colección de tamaño conocido")

	if got := h.store.records["+1000"].GeneralPoints; got != 30 {
		t.Errorf("expected full credit of 30 points, got %d", got)
	}
}

func TestDefenseOutageIsLenientByDefault(t *testing.T) {
	h := newHarness(DefaultConfig())
	h.grader.defensePass = false
	h.grader.defenseErr = &evaluator.EvaluationError{Cause: errors.New("timeout")}
	h.seedUser(t, &models.UserProgress{
		Phone: "+1000", State: models.StateDefense,
		Challenge:       activeChallenge(h, models.DifficultyHard),
		DefenseQuestion: "¿Por qué?",
		LastActiveDate:  "2026-03-10",
	})

	h.text("+1000", "explicación")

	if got := h.store.records["+1000"].GeneralPoints; got != 30 {
		t.Errorf("outage must default to full credit, got %d points", got)
	}
}

// ── Lessons ───────────────────────────────────────────────

func TestLessonAdvanceGeneratesNextChallenge(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DebugChallengeRate = 0 // force the normal variant
	h := newHarness(cfg)
	h.grader.verdict = evaluator.Verdict{Kind: evaluator.VerdictCorrect, Feedback: "✅ Bien"}
	h.seedUser(t, &models.UserProgress{
		Phone: "+1000", Name: "Ana",
		State:          models.StateInCourse,
		ActiveCourse:   "java",
		LessonIndex:    0,
		Challenge:      activeChallenge(h, models.DifficultyEasy),
		LastActiveDate: "2026-03-10",
	})
	h.store.records["+1000"].Challenge.StartedAt = h.now.Add(-200 * time.Second)

	h.text("+1000", "int x = 5;")

	u := h.store.records["+1000"]
	if u.LessonIndex != 1 {
		t.Errorf("expected lesson 1, got %d", u.LessonIndex)
	}
	if u.State != models.StateInCourse {
		t.Errorf("expected en_curso, got %s", u.State)
	}
	if u.Challenge == nil || u.Challenge.Topic != "Operadores Lógicos" {
		t.Errorf("expected a challenge on the next lesson topic, got %+v", u.Challenge)
	}
}

func TestCourseCompletionReturnsToMenu(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DebugChallengeRate = 0
	h := newHarness(cfg)
	h.grader.verdict = evaluator.Verdict{Kind: evaluator.VerdictCorrect, Feedback: "✅ Bien"}
	h.seedUser(t, &models.UserProgress{
		Phone: "+1000", Name: "Ana",
		State:          models.StateInCourse,
		ActiveCourse:   "python",
		LessonIndex:    4, // last lesson of the python course
		Challenge:      activeChallenge(h, models.DifficultyEasy),
		LastActiveDate: "2026-03-10",
	})
	h.store.records["+1000"].Challenge.StartedAt = h.now.Add(-200 * time.Second)

	h.text("+1000", "def f(): pass")

	u := h.store.records["+1000"]
	if u.ActiveCourse != "" {
		t.Errorf("expected course cleared, got %q", u.ActiveCourse)
	}
	if u.State != models.StateMenu {
		t.Errorf("expected menu_principal, got %s", u.State)
	}
	if !strings.Contains(h.sender.allText(), "completado el curso") {
		t.Errorf("expected a completion message")
	}
}

func TestTheoryReplyYesRegeneratesSameTopic(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DebugChallengeRate = 0
	h := newHarness(cfg)
	failed := activeChallenge(h, models.DifficultyEasy)
	failed.Topic = "Condicionales (if-else)"
	h.seedUser(t, &models.UserProgress{
		Phone: "+1000",
		State: models.StateTheoryOffer, ActiveCourse: "java", LessonIndex: 2,
		FailedAttempts: 2,
		Challenge:      failed,
		LastActiveDate: "2026-03-10",
	})

	h.text("+1000", "sí, por favor")

	u := h.store.records["+1000"]
	if u.State != models.StateInCourse {
		t.Errorf("expected en_curso after theory, got %s", u.State)
	}
	if u.FailedAttempts != 0 {
		t.Errorf("expected failure counter reset, got %d", u.FailedAttempts)
	}
	if u.Challenge == nil || u.Challenge.Topic != "Condicionales (if-else)" {
		t.Errorf("expected a fresh challenge on the same lesson topic, got %+v", u.Challenge)
	}
	if !strings.Contains(h.sender.allText(), "Teoría de Condicionales") {
		t.Errorf("expected the theory explanation sent")
	}
}

func TestTheoryReplyNoKeepsChallenge(t *testing.T) {
	h := newHarness(DefaultConfig())
	h.seedUser(t, &models.UserProgress{
		Phone: "+1000",
		State: models.StateTheoryOffer, ActiveCourse: "java",
		Challenge:      activeChallenge(h, models.DifficultyEasy),
		LastActiveDate: "2026-03-10",
	})

	h.text("+1000", "no, gracias")

	u := h.store.records["+1000"]
	if u.State != models.StateInCourse {
		t.Errorf("expected en_curso, got %s", u.State)
	}
	if u.Challenge == nil {
		t.Error("declining theory must keep the current challenge")
	}
}

// ── Global Commands ───────────────────────────────────────

func TestGiveUpWithoutChallenge(t *testing.T) {
	h := newHarness(DefaultConfig())
	h.seedUser(t, &models.UserProgress{Phone: "+1000", State: models.StateMenu, LastActiveDate: "2026-03-10"})

	h.text("+1000", "me rindo")

	if h.store.records["+1000"].State != models.StateMenu {
		t.Error("giving up with nothing pending must not change state")
	}
	if !strings.Contains(h.sender.allText(), "no tienes ningún reto activo") {
		t.Errorf("expected the nothing-pending message, got %q", h.sender.allText())
	}
}

func TestGiveUpRevealsSolution(t *testing.T) {
	h := newHarness(DefaultConfig())
	h.seedUser(t, &models.UserProgress{
		Phone: "+1000", State: models.StateSolving,
		Challenge:      activeChallenge(h, models.DifficultyEasy),
		FailedAttempts: 1,
		LastActiveDate: "2026-03-10",
	})

	h.text("+1000", "me rindo")

	u := h.store.records["+1000"]
	if u.Challenge != nil {
		t.Error("expected challenge cleared")
	}
	if u.State != models.StateMenu || u.FailedAttempts != 0 {
		t.Errorf("expected a clean return to menu, got state %s attempts %d", u.State, u.FailedAttempts)
	}
	if !strings.Contains(h.sender.allText(), "a + b") {
		t.Error("expected the ideal solution revealed")
	}
}

func TestHintsServedInOrderExactlyOnce(t *testing.T) {
	h := newHarness(DefaultConfig())
	h.seedUser(t, &models.UserProgress{
		Phone: "+1000", State: models.StateSolving,
		Challenge:      activeChallenge(h, models.DifficultyEasy),
		LastActiveDate: "2026-03-10",
	})

	for range 3 {
		h.text("+1000", "pista")
	}
	h.text("+1000", "pista")

	all := h.sender.allText()
	for i, hint := range []string{"uno", "dos", "tres"} {
		if !strings.Contains(all, fmt.Sprintf("Pista %d de 3", i+1)) || !strings.Contains(all, hint) {
			t.Errorf("expected hint %d (%q) served", i+1, hint)
		}
	}
	if !strings.Contains(all, "todas las pistas") {
		t.Error("fourth request should say the hints ran out")
	}

	u := h.store.records["+1000"]
	if u.Challenge.HintsUsed != 3 {
		t.Errorf("expected 3 hints used, got %d", u.Challenge.HintsUsed)
	}
	if u.LifetimeHints != 3 {
		t.Errorf("expected lifetime hint counter at 3, got %d", u.LifetimeHints)
	}
}

func TestGlobalCommandsValidFromEveryState(t *testing.T) {
	commands := []string{"menu", "perfil", "logros", "me rindo", "fichas"}

	for _, state := range models.AllStates {
		for _, cmd := range commands {
			h := newHarness(DefaultConfig())
			h.seedUser(t, &models.UserProgress{
				Phone: "+1000", Name: "Ana", State: state, LastActiveDate: "2026-03-10",
			})

			h.text("+1000", cmd)

			u := h.store.records["+1000"]
			if !models.ValidState(u.State) {
				t.Errorf("command %q from state %s left invalid state %q", cmd, state, u.State)
			}
			if len(h.sender.sent) == 0 {
				t.Errorf("command %q from state %s produced no reply", cmd, state)
			}
		}
	}
}

func TestJoinClassWithConfiguredToken(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ClassTokens = []string{"LOGICA1"}
	h := newHarness(cfg)
	h.seedUser(t, &models.UserProgress{Phone: "+1000", State: models.StateMenu, LastActiveDate: "2026-03-10"})

	h.text("+1000", "unirme logica1")
	if got := h.store.records["+1000"].ClassCode; got != "LOGICA1" {
		t.Errorf("expected class LOGICA1, got %q", got)
	}

	h.text("+1000", "unirme OTRA")
	if got := h.store.records["+1000"].ClassCode; got != "LOGICA1" {
		t.Errorf("unknown token must not overwrite the class, got %q", got)
	}
}

// ── Failure Recovery ──────────────────────────────────────

func TestGenerationFailureFallsBackToMenu(t *testing.T) {
	h := newHarness(DefaultConfig())
	h.gen.err = errors.New("model down")
	h.seedUser(t, &models.UserProgress{
		Phone: "+1000", State: models.StateChoosingLevel,
		ChallengeFormat: "java", LastActiveDate: "2026-03-10",
	})

	h.text("+1000", "1")

	u := h.store.records["+1000"]
	if u.State != models.StateMenu {
		t.Errorf("expected fall back to menu_principal, got %s", u.State)
	}
	if u.Challenge != nil {
		t.Error("a failed generation must never leave a half-set challenge")
	}
}

func TestStreakTouchedOnActivity(t *testing.T) {
	h := newHarness(DefaultConfig())
	h.seedUser(t, &models.UserProgress{
		Phone: "+1000", State: models.StateMenu,
		StreakDays:     4,
		LastActiveDate: "2026-03-09", // yesterday relative to the harness clock
	})

	h.text("+1000", "hola de nuevo")

	u := h.store.records["+1000"]
	if u.StreakDays != 5 {
		t.Errorf("expected streak 5 after consecutive day, got %d", u.StreakDays)
	}
	if u.LastActiveDate != "2026-03-10" {
		t.Errorf("expected last active date updated, got %s", u.LastActiveDate)
	}
}

// ── Event Publishing ──────────────────────────────────────

func TestBusReceivesSuspicionAndProfileEvents(t *testing.T) {
	h := newHarness(DefaultConfig())
	bus := events.NewBus()
	h.m.bus = bus

	var mu sync.Mutex
	var names []string
	bus.Subscribe(func(e events.Event) {
		mu.Lock()
		names = append(names, e.EventName())
		mu.Unlock()
	})

	// Correct answer seconds after delivery: reportable and defended.
	h.grader.verdict = evaluator.Verdict{Kind: evaluator.VerdictCorrect, Feedback: "✅ Correcto"}
	h.seedUser(t, &models.UserProgress{
		Phone: "+1000", State: models.StateSolving,
		Challenge: activeChallenge(h, models.DifficultyMedium), LastActiveDate: "2026-03-10",
	})
	h.text("+1000", "for (int i = 0; i < n; i++) sum += i;")

	h.text("+1000", "unirme LOGICA1")

	bus.Close()

	want := map[string]bool{"suspicious_submission": false, "profile_changed": false}
	for _, n := range names {
		if _, ok := want[n]; ok {
			want[n] = true
		}
	}
	for n, seen := range want {
		if !seen {
			t.Errorf("expected a %s event on the bus, got %v", n, names)
		}
	}
}

func TestFreePracticePickWinsOverActiveCourse(t *testing.T) {
	h := newHarness(DefaultConfig())
	h.seedUser(t, &models.UserProgress{
		Phone: "+1000", State: models.StateChoosingLevel,
		ActiveCourse: "java", LessonIndex: 2,
		ChallengeFormat: "python",
		LastActiveDate:  "2026-03-10",
	})

	h.text("+1000", "2")

	u := h.store.records["+1000"]
	if u.Challenge == nil {
		t.Fatal("expected a generated challenge")
	}
	if u.Challenge.Format != "python" {
		t.Errorf("expected the picked python format, got %q", u.Challenge.Format)
	}
	if !strings.Contains(h.sender.allText(), "*python*") {
		t.Errorf("status message should name the picked format, got %q", h.sender.allText())
	}
	isPythonLesson := false
	for _, lesson := range config.Courses["python"].Lessons {
		if lesson == u.Challenge.Topic {
			isPythonLesson = true
		}
	}
	if !isPythonLesson {
		t.Errorf("topic %q should come from the python lesson list", u.Challenge.Topic)
	}
	if u.ActiveCourse != "java" {
		t.Errorf("the active course must survive a quick challenge, got %q", u.ActiveCourse)
	}
}

func TestOnboardingFinishRetapDoesNotReaward(t *testing.T) {
	h := newHarness(DefaultConfig())
	bus := events.NewBus()
	h.m.bus = bus

	var mu sync.Mutex
	var names []string
	bus.Subscribe(func(e events.Event) {
		mu.Lock()
		names = append(names, e.EventName())
		mu.Unlock()
	})

	h.seedUser(t, &models.UserProgress{
		Phone: "+1000", State: models.StateOnboardingTour,
		LearningPreference: "retos", LastActiveDate: "2026-03-10",
	})

	h.tap("+1000", selOnboardingFinish)
	pointsAfterFirst := h.store.records["+1000"].GeneralPoints

	h.tap("+1000", selOnboardingFinish)
	bus.Close()

	u := h.store.records["+1000"]
	if u.GeneralPoints != pointsAfterFirst {
		t.Errorf("a repeated finish tap must not grant points again, got %d then %d",
			pointsAfterFirst, u.GeneralPoints)
	}
	if got := len(u.Achievements); got != 1 {
		t.Errorf("expected primer_paso exactly once, got %d achievements", got)
	}

	var scored, profiled int
	for _, n := range names {
		switch n {
		case "score_awarded":
			scored++
		case "profile_changed":
			profiled++
		}
	}
	if scored != 1 {
		t.Errorf("expected exactly one score_awarded, got %d (%v)", scored, names)
	}
	if profiled != 1 {
		t.Errorf("expected the repeat tap to emit profile_changed, got %d (%v)", profiled, names)
	}
}
