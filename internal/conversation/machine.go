package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/logicbot/backend/internal/config"
	"github.com/logicbot/backend/internal/evaluator"
	"github.com/logicbot/backend/internal/events"
	"github.com/logicbot/backend/internal/integrity"
	"github.com/logicbot/backend/internal/models"
	"github.com/logicbot/backend/internal/progress"
)

// ── Collaborator Contracts ────────────────────────────────

// Store is the progress record storage the machine reads and writes.
type Store interface {
	Get(phone string) (*models.UserProgress, error)
	Create(phone, name string, initialState models.ConversationState) (*models.UserProgress, error)
	Update(phone string, p progress.Patch) error
}

// ChallengeGenerator produces challenges and explanatory content.
type ChallengeGenerator interface {
	GenerateChallenge(ctx context.Context, level int, format string, difficulty models.Difficulty, topic string) (*models.Challenge, error)
	GenerateDebugChallenge(ctx context.Context, level int, format, topic string) (*models.Challenge, error)
	TopicIntro(ctx context.Context, format, topic string) (string, error)
	ExplainTopic(ctx context.Context, format, topic string) (string, error)
	CheatSheet(ctx context.Context, format, topic string) (string, error)
}

// Grader classifies and grades submissions and runs the defense flow.
type Grader interface {
	ClassifyAndGrade(ctx context.Context, statement, userMessage, format string) (evaluator.Verdict, error)
	Chat(ctx context.Context, userMessage string, history []models.ChatTurn, topic string) string
	GenerateDefenseQuestion(ctx context.Context, statement, submission string) string
	EvaluateDefense(ctx context.Context, question, answer, statement string) (bool, error)
}

// Sender delivers outbound content. Delivery failures are logged, never
// propagated: state has already moved on.
type Sender interface {
	Send(to string, content models.Content) error
}

// ── Machine ───────────────────────────────────────────────

// Machine is the conversation orchestrator. One instance serves all users;
// all per-user state lives in the progress record.
type Machine struct {
	store     Store
	generator ChallengeGenerator
	grader    Grader
	sender    Sender
	integrity *integrity.Heuristic
	bus       *events.Bus
	cfg       Config
	rng       *rand.Rand
	now       func() time.Time
}

// Deps bundles the machine's collaborators. Rand and Now are optional and
// default to real sources; tests inject both.
type Deps struct {
	Store     Store
	Generator ChallengeGenerator
	Grader    Grader
	Sender    Sender
	Integrity *integrity.Heuristic
	Bus       *events.Bus
	Rand      *rand.Rand
	Now       func() time.Time
}

func NewMachine(deps Deps, cfg Config) *Machine {
	if deps.Rand == nil {
		deps.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Integrity == nil {
		deps.Integrity = integrity.NewHeuristic(nil)
	}
	return &Machine{
		store:     deps.Store,
		generator: deps.Generator,
		grader:    deps.Grader,
		sender:    deps.Sender,
		integrity: deps.Integrity,
		bus:       deps.Bus,
		cfg:       cfg,
		rng:       deps.Rand,
		now:       deps.Now,
	}
}

// HandleIncoming processes one webhook message end to end. It never
// returns an error: every failure path ends in a friendly message or a
// logged, swallowed fault so the webhook can always ack.
func (m *Machine) HandleIncoming(ctx context.Context, msg *models.IncomingMessage) {
	u, err := m.store.Get(msg.From)
	if errors.Is(err, progress.ErrNotFound) {
		m.firstContact(msg)
		return
	}
	if err != nil {
		log.Printf("[conversation] load %s: %v", msg.From, err)
		return
	}

	m.touchStreak(u)

	if msg.Kind == models.IncomingInteractive {
		m.handleSelection(ctx, u, msg.SelectionID)
		return
	}
	m.handleText(ctx, u, msg.Text)
}

// firstContact creates the record and starts onboarding or sends the menu.
func (m *Machine) firstContact(msg *models.IncomingMessage) {
	initial := models.StateMenu
	if m.cfg.OnboardingEnabled {
		initial = models.StateOnboardingStart
	}

	u, err := m.store.Create(msg.From, msg.ProfileName, initial)
	if err != nil {
		log.Printf("[conversation] create %s: %v", msg.From, err)
		return
	}

	today := m.now().Format("2006-01-02")
	if err := m.store.Update(u.Phone, progress.Patch{StreakDays: progress.Int(1), LastActiveDate: progress.String(today)}); err != nil {
		log.Printf("[conversation] streak init %s: %v", u.Phone, err)
	}

	m.send(u.Phone, models.Text(fmt.Sprintf("¡Hola %s! 🤖\n\nSoy LogicBot 💻\nTu tutor personal de programación", u.Name)))
	if m.cfg.OnboardingEnabled {
		m.send(u.Phone, models.WithButtons(
			"❓ Antes de empezar...\n\nVoy a hacerte 2 preguntas rápidas para personalizar tu experiencia ⭐",
			models.Button{ID: selOnboardingStart, Title: "Empezar 🚀"},
		))
		return
	}
	m.send(u.Phone, MainMenu())
}

// touchStreak applies the daily streak rule once per day and keeps the
// in-memory record in sync with what was persisted.
func (m *Machine) touchStreak(u *models.UserProgress) {
	streak, date, changed := progress.NextStreak(u.StreakDays, u.LastActiveDate, m.now())
	if !changed {
		return
	}
	u.StreakDays = streak
	u.LastActiveDate = date
	if err := m.store.Update(u.Phone, progress.Patch{
		StreakDays:     progress.Int(streak),
		LastActiveDate: progress.String(date),
	}); err != nil {
		log.Printf("[conversation] streak update %s: %v", u.Phone, err)
	}
}

// ── Text Dispatch ─────────────────────────────────────────

func (m *Machine) handleText(ctx context.Context, u *models.UserProgress, text string) {
	if cmd, ok := ResolveGlobal(text); ok {
		m.handleCommand(ctx, u, cmd)
		return
	}

	switch u.State {
	case models.StateOnboardingStart, models.StateOnboardingPrefs, models.StateOnboardingTour:
		m.onboardingNudge(u)
	case models.StateChoosingLevel:
		m.handleDifficulty(ctx, u, text)
	case models.StateInCourse, models.StateSolving, models.StateDebugging:
		m.handleSubmission(ctx, u, text)
	case models.StateTheoryOffer:
		m.handleTheoryReply(ctx, u, text)
	case models.StateDefense:
		m.handleDefenseReply(ctx, u, text)
	default:
		m.chat(ctx, u, text)
	}
}

func (m *Machine) handleCommand(ctx context.Context, u *models.UserProgress, cmd Command) {
	switch cmd.Intent {
	case IntentMenu:
		m.send(u.Phone, MainMenu())
	case IntentProfile:
		m.send(u.Phone, models.Text(renderProfile(u)))
	case IntentAchievements:
		m.send(u.Phone, models.Text(renderAchievements(u)))
	case IntentCheatSheets:
		m.send(u.Phone, cheatSheetMenu(u))
	case IntentGiveUp:
		m.giveUp(u)
	case IntentHint:
		m.serveHint(u)
	case IntentJoinClass:
		m.joinClass(u, cmd.Arg)
	}
}

// chat is the conversational fallback for states with no pending activity.
func (m *Machine) chat(ctx context.Context, u *models.UserProgress, text string) {
	reply := m.grader.Chat(ctx, text, u.ChatHistory, m.currentTopic(u))

	history := models.AppendTurn(u.ChatHistory, "usuario", text)
	history = models.AppendTurn(history, "bot", reply)
	u.ChatHistory = history
	if err := m.store.Update(u.Phone, progress.Patch{ChatHistory: history}); err != nil {
		log.Printf("[conversation] history update %s: %v", u.Phone, err)
	}

	m.send(u.Phone, models.Text(reply))
}

// ── Interactive Dispatch ──────────────────────────────────

func (m *Machine) handleSelection(ctx context.Context, u *models.UserProgress, id string) {
	switch {
	case id == selShowMenu:
		m.send(u.Phone, MainMenu())
	case id == selJavaTopics:
		m.send(u.Phone, javaTopicsMenu())
	case id == selRandomChallenge:
		m.send(u.Phone, formatButtons())
	case id == selProfile:
		m.send(u.Phone, models.Text(renderProfile(u)))
	case id == selAchievements:
		m.send(u.Phone, models.Text(renderAchievements(u)))
	case id == selCheatSheets:
		m.send(u.Phone, cheatSheetMenu(u))
	case id == selOnboardingStart:
		m.onboardingExperience(u)
	case id == selOnboardingFinish:
		m.finishOnboarding(u)
	case strings.HasPrefix(id, prefixExperience):
		m.onboardingPreference(u)
	case strings.HasPrefix(id, prefixPreference):
		m.onboardingTutorial(u, strings.TrimPrefix(id, prefixPreference))
	case strings.HasPrefix(id, prefixStartCourse):
		m.startCourse(ctx, u, strings.TrimPrefix(id, prefixStartCourse), 0)
	case strings.HasPrefix(id, prefixStartLesson):
		if i, err := strconv.Atoi(strings.TrimPrefix(id, prefixStartLesson)); err == nil {
			m.startCourse(ctx, u, "java", i)
		}
	case strings.HasPrefix(id, prefixPickFormat):
		m.pickFormat(u, strings.TrimPrefix(id, prefixPickFormat))
	case strings.HasPrefix(id, prefixCheatSheet):
		if i, err := strconv.Atoi(strings.TrimPrefix(id, prefixCheatSheet)); err == nil {
			m.sendCheatSheet(ctx, u, i)
		}
	default:
		log.Printf("[conversation] unknown selection %q from %s", id, u.Phone)
		m.send(u.Phone, MainMenu())
	}
}

// pickFormat records the requested language and asks for a difficulty.
func (m *Machine) pickFormat(u *models.UserProgress, format string) {
	if _, ok := config.Courses[format]; !ok {
		m.send(u.Phone, models.Text("Lo siento, ese formato no está disponible."))
		return
	}
	if err := m.store.Update(u.Phone, progress.Patch{
		State:           progress.State(models.StateChoosingLevel),
		ChallengeFormat: progress.String(format),
	}); err != nil {
		log.Printf("[conversation] pick format %s: %v", u.Phone, err)
		return
	}
	m.send(u.Phone, models.Text(difficultyPrompt))
}

func (m *Machine) sendCheatSheet(ctx context.Context, u *models.UserProgress, index int) {
	if index < 0 || index >= len(u.CheatSheets) {
		m.send(u.Phone, cheatSheetMenu(u))
		return
	}
	topic := u.CheatSheets[index]
	sheet, err := m.generator.CheatSheet(ctx, m.currentFormat(u), topic)
	if err != nil {
		log.Printf("[conversation] cheat sheet %q for %s: %v", topic, u.Phone, err)
		m.send(u.Phone, models.Text("No pude preparar tu ficha ahora mismo. 🤕 Inténtalo de nuevo en un momento."))
		return
	}
	m.send(u.Phone, models.Text(sheet))
}

// ── Shared Helpers ────────────────────────────────────────

// currentTopic is the topic label for prompt context: the active
// challenge's topic, else the current lesson, else a generic label.
func (m *Machine) currentTopic(u *models.UserProgress) string {
	if u.Challenge != nil && u.Challenge.Topic != "" {
		return u.Challenge.Topic
	}
	if course, ok := config.Courses[u.ActiveCourse]; ok && u.LessonIndex < len(course.Lessons) {
		return course.Lessons[u.LessonIndex]
	}
	return "programación en general"
}

// currentFormat is the language for generation: active course first, then
// the free-practice pick, then Java as the course default.
func (m *Machine) currentFormat(u *models.UserProgress) string {
	if u.ActiveCourse != "" {
		return u.ActiveCourse
	}
	if u.ChallengeFormat != "" {
		return u.ChallengeFormat
	}
	return "java"
}

func (m *Machine) send(phone string, content models.Content) {
	if err := m.sender.Send(phone, content); err != nil {
		log.Printf("[conversation] send to %s: %v", phone, err)
	}
}

func (m *Machine) publish(e events.Event) {
	if m.bus != nil {
		m.bus.Publish(e)
	}
}

// projection flattens the record for the dashboard read model.
func projection(u *models.UserProgress, now time.Time) models.StudentProjection {
	topicsJSON, _ := json.Marshal(u.Topics)
	achievementsJSON, _ := json.Marshal(u.Achievements)
	return models.StudentProjection{
		Phone:               u.Phone,
		Name:                u.Name,
		GeneralLevel:        u.GeneralLevel,
		GeneralPoints:       u.GeneralPoints,
		StreakDays:          u.StreakDays,
		ChallengesCompleted: u.ChallengesCompleted,
		LifetimeFailures:    u.LifetimeFailures,
		ClassCode:           u.ClassCode,
		TopicsJSON:          string(topicsJSON),
		AchievementsJSON:    string(achievementsJSON),
		UpdatedAt:           now,
	}
}
