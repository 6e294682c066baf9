package progress

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/logicbot/backend/internal/models"
)

// Patch is a partial update of a user record. Nil fields are left untouched.
// Clearing a nullable column goes through the explicit Clear* flags so a nil
// pointer never silently wipes data.
type Patch struct {
	Name           *string
	GeneralLevel   *int
	GeneralPoints  *int
	StreakDays     *int
	LastActiveDate *string
	State          *models.ConversationState

	ActiveCourse   *string // set to "" via ClearCourse
	ClearCourse    bool
	LessonIndex    *int
	FailedAttempts *int

	ChallengeFormat *string
	Challenge       *models.Challenge
	ClearChallenge  bool

	DefenseQuestion  *string
	ClearDefense     bool
	DefenseMandatory *bool

	Topics       map[string]models.TopicProgress
	Achievements []string
	CheatSheets  []string

	ChallengesCompleted   *int
	ChallengesWithoutHint *int
	LifetimeHints         *int
	LifetimeFailures      *int

	ChatHistory []models.ChatTurn

	ClassCode          *string
	OnboardingDone     *bool
	LearningPreference *string
}

// buildUpdate renders the patch into a SET clause and its arguments.
// Placeholders start at $2 because $1 is the phone number.
func buildUpdate(p Patch) (string, []interface{}) {
	var sets []string
	var args []interface{}

	add := func(column string, value interface{}) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)+1))
	}
	addJSON := func(column string, value interface{}) {
		b, err := json.Marshal(value)
		if err != nil {
			b = []byte("null")
		}
		add(column, string(b))
	}

	if p.Name != nil {
		add("nombre", *p.Name)
	}
	if p.GeneralLevel != nil {
		add("nivel", *p.GeneralLevel)
	}
	if p.GeneralPoints != nil {
		add("puntos", *p.GeneralPoints)
	}
	if p.StreakDays != nil {
		add("racha_dias", *p.StreakDays)
	}
	if p.LastActiveDate != nil {
		add("ultima_conexion", *p.LastActiveDate)
	}
	if p.State != nil {
		add("estado_conversacion", string(*p.State))
	}
	if p.ClearCourse {
		add("curso_actual", nil)
	} else if p.ActiveCourse != nil {
		add("curso_actual", *p.ActiveCourse)
	}
	if p.LessonIndex != nil {
		add("leccion_actual", *p.LessonIndex)
	}
	if p.FailedAttempts != nil {
		add("intentos_fallidos", *p.FailedAttempts)
	}
	if p.ChallengeFormat != nil {
		add("tipo_reto_actual", *p.ChallengeFormat)
	}
	if p.ClearChallenge {
		add("reto_actual", nil)
	} else if p.Challenge != nil {
		addJSON("reto_actual", p.Challenge)
	}
	if p.ClearDefense {
		add("pregunta_defensa", nil)
	} else if p.DefenseQuestion != nil {
		add("pregunta_defensa", *p.DefenseQuestion)
	}
	if p.DefenseMandatory != nil {
		add("defensa_obligatoria", *p.DefenseMandatory)
	}
	if p.Topics != nil {
		addJSON("progreso_temas", p.Topics)
	}
	if p.Achievements != nil {
		addJSON("logros", p.Achievements)
	}
	if p.CheatSheets != nil {
		addJSON("fichas", p.CheatSheets)
	}
	if p.ChallengesCompleted != nil {
		add("retos_completados", *p.ChallengesCompleted)
	}
	if p.ChallengesWithoutHint != nil {
		add("retos_sin_pistas", *p.ChallengesWithoutHint)
	}
	if p.LifetimeHints != nil {
		add("pistas_totales", *p.LifetimeHints)
	}
	if p.LifetimeFailures != nil {
		add("fallos_totales", *p.LifetimeFailures)
	}
	if p.ChatHistory != nil {
		addJSON("historial_chat", p.ChatHistory)
	}
	if p.ClassCode != nil {
		add("clase", *p.ClassCode)
	}
	if p.OnboardingDone != nil {
		add("onboarding_completado", *p.OnboardingDone)
	}
	if p.LearningPreference != nil {
		add("preferencia_aprendizaje", *p.LearningPreference)
	}

	return strings.Join(sets, ", "), args
}

// Apply merges the patch into an in-memory record with the same semantics
// buildUpdate gives the database: supplied fields replace, the rest stay.
func (p Patch) Apply(u *models.UserProgress) {
	if p.Name != nil {
		u.Name = *p.Name
	}
	if p.GeneralLevel != nil {
		u.GeneralLevel = *p.GeneralLevel
	}
	if p.GeneralPoints != nil {
		u.GeneralPoints = *p.GeneralPoints
	}
	if p.StreakDays != nil {
		u.StreakDays = *p.StreakDays
	}
	if p.LastActiveDate != nil {
		u.LastActiveDate = *p.LastActiveDate
	}
	if p.State != nil {
		u.State = *p.State
	}
	if p.ClearCourse {
		u.ActiveCourse = ""
	} else if p.ActiveCourse != nil {
		u.ActiveCourse = *p.ActiveCourse
	}
	if p.LessonIndex != nil {
		u.LessonIndex = *p.LessonIndex
	}
	if p.FailedAttempts != nil {
		u.FailedAttempts = *p.FailedAttempts
	}
	if p.ChallengeFormat != nil {
		u.ChallengeFormat = *p.ChallengeFormat
	}
	if p.ClearChallenge {
		u.Challenge = nil
	} else if p.Challenge != nil {
		c := *p.Challenge
		u.Challenge = &c
	}
	if p.ClearDefense {
		u.DefenseQuestion = ""
	} else if p.DefenseQuestion != nil {
		u.DefenseQuestion = *p.DefenseQuestion
	}
	if p.DefenseMandatory != nil {
		u.DefenseMandatory = *p.DefenseMandatory
	}
	if p.Topics != nil {
		u.Topics = p.Topics
	}
	if p.Achievements != nil {
		u.Achievements = p.Achievements
	}
	if p.CheatSheets != nil {
		u.CheatSheets = p.CheatSheets
	}
	if p.ChallengesCompleted != nil {
		u.ChallengesCompleted = *p.ChallengesCompleted
	}
	if p.ChallengesWithoutHint != nil {
		u.ChallengesWithoutHint = *p.ChallengesWithoutHint
	}
	if p.LifetimeHints != nil {
		u.LifetimeHints = *p.LifetimeHints
	}
	if p.LifetimeFailures != nil {
		u.LifetimeFailures = *p.LifetimeFailures
	}
	if p.ChatHistory != nil {
		u.ChatHistory = p.ChatHistory
	}
	if p.ClassCode != nil {
		u.ClassCode = *p.ClassCode
	}
	if p.OnboardingDone != nil {
		u.OnboardingDone = *p.OnboardingDone
	}
	if p.LearningPreference != nil {
		u.LearningPreference = *p.LearningPreference
	}
}

// Helpers for building patches inline.

func String(s string) *string                           { return &s }
func Int(i int) *int                                    { return &i }
func Bool(b bool) *bool                                 { return &b }
func State(s models.ConversationState) *models.ConversationState { return &s }
