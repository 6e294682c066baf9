package models

import (
	"time"
)

// ── Conversation States ───────────────────────────────────

type ConversationState string

const (
	StateMenu            ConversationState = "menu_principal"
	StateOnboardingStart ConversationState = "onboarding_paso_1"
	StateOnboardingPrefs ConversationState = "onboarding_paso_2"
	StateOnboardingTour  ConversationState = "onboarding_tutorial"
	StateChoosingLevel   ConversationState = "eligiendo_dificultad"
	StateInCourse        ConversationState = "en_curso"
	StateSolving         ConversationState = "resolviendo_reto"
	StateDebugging       ConversationState = "resolviendo_debug"
	StateTheoryOffer     ConversationState = "esperando_ayuda_teorica"
	StateDefense         ConversationState = "esperando_defensa"
)

// AllStates lists every state the machine can persist. Anything else in the
// estado_conversacion column is treated as StateMenu on load.
var AllStates = []ConversationState{
	StateMenu, StateOnboardingStart, StateOnboardingPrefs, StateOnboardingTour,
	StateChoosingLevel, StateInCourse, StateSolving, StateDebugging,
	StateTheoryOffer, StateDefense,
}

func ValidState(s ConversationState) bool {
	for _, v := range AllStates {
		if v == s {
			return true
		}
	}
	return false
}

// ── Difficulty ────────────────────────────────────────────

type Difficulty string

const (
	DifficultyEasy   Difficulty = "Fácil"
	DifficultyMedium Difficulty = "Intermedio"
	DifficultyHard   Difficulty = "Difícil"
)

// ── Challenge ─────────────────────────────────────────────

type ChallengeType string

const (
	ChallengeNormal ChallengeType = "normal"
	ChallengeDebug  ChallengeType = "debug"
)

// Challenge is the outstanding exercise embedded in a user record.
// Cleared exactly when resolved: correct, abandoned, or superseded.
type Challenge struct {
	Statement       string        `json:"enunciado"`
	IdealSolution   string        `json:"solucion_ideal"`
	Hints           []string      `json:"pistas"`
	HintsUsed       int           `json:"pistas_usadas"`
	Type            ChallengeType `json:"tipo"`
	Difficulty      Difficulty    `json:"dificultad"`
	Topic           string        `json:"tematica"`
	Format          string        `json:"formato"` // course key or free-practice format
	ExpectedSeconds int           `json:"tiempo_estimado"`
	BugExplanation  string        `json:"bug_explicacion,omitempty"`
	StartedAt       time.Time     `json:"iniciado_en"`
}

// ── Topic Progress ────────────────────────────────────────

type TopicProgress struct {
	Points       int `json:"puntos"`
	MasteryLevel int `json:"nivel"`
}

// ── Chat History ──────────────────────────────────────────

const ChatHistoryLimit = 6

type ChatTurn struct {
	Speaker string `json:"quien"` // "usuario" or "bot"
	Text    string `json:"texto"`
}

// AppendTurn adds a turn and trims the history to the last ChatHistoryLimit
// entries. The history is prompt context only, never an authoritative log.
func AppendTurn(history []ChatTurn, speaker, text string) []ChatTurn {
	history = append(history, ChatTurn{Speaker: speaker, Text: text})
	if len(history) > ChatHistoryLimit {
		history = history[len(history)-ChatHistoryLimit:]
	}
	return history
}

// ── User Progress Record ──────────────────────────────────

// UserProgress is the durable per-student record. The phone number is the
// primary key; only the conversation machine transitions State.
type UserProgress struct {
	Phone          string            `json:"numero_telefono"`
	Name           string            `json:"nombre"`
	GeneralLevel   int               `json:"nivel"`
	GeneralPoints  int               `json:"puntos"`
	StreakDays     int               `json:"racha_dias"`
	LastActiveDate string            `json:"ultima_conexion"` // YYYY-MM-DD
	State          ConversationState `json:"estado_conversacion"`

	ActiveCourse   string `json:"curso_actual,omitempty"`
	LessonIndex    int    `json:"leccion_actual"`
	FailedAttempts int    `json:"intentos_fallidos"`

	// Format requested for the next free-practice challenge, kept while the
	// user picks a difficulty.
	ChallengeFormat string     `json:"tipo_reto_actual,omitempty"`
	Challenge       *Challenge `json:"reto_actual,omitempty"`

	// Pending anti-plagiarism defense, present only in StateDefense.
	DefenseQuestion  string `json:"pregunta_defensa,omitempty"`
	DefenseMandatory bool   `json:"defensa_obligatoria,omitempty"`

	Topics       map[string]TopicProgress `json:"progreso_temas"`
	Achievements []string                 `json:"logros"`
	CheatSheets  []string                 `json:"fichas"` // topics with unlocked cheat sheets

	ChallengesCompleted   int `json:"retos_completados"`
	ChallengesWithoutHint int `json:"retos_sin_pistas"`
	LifetimeHints         int `json:"pistas_totales"`
	LifetimeFailures      int `json:"fallos_totales"`

	ChatHistory []ChatTurn `json:"historial_chat"`

	ClassCode          string `json:"clase,omitempty"`
	OnboardingDone     bool   `json:"onboarding_completado"`
	LearningPreference string `json:"preferencia_aprendizaje,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasAchievement reports whether the achievement is already unlocked.
func (u *UserProgress) HasAchievement(id string) bool {
	for _, a := range u.Achievements {
		if a == id {
			return true
		}
	}
	return false
}

// TopicLevel returns the mastery level for a topic, defaulting to 1 for
// topics never scored.
func (u *UserProgress) TopicLevel(topic string) int {
	if tp, ok := u.Topics[topic]; ok {
		return tp.MasteryLevel
	}
	return 1
}
