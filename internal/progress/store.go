package progress

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/logicbot/backend/internal/models"
)

// ErrNotFound is returned by Get for unknown identities.
var ErrNotFound = errors.New("user not found")

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const userColumns = `numero_telefono, nombre, nivel, puntos, racha_dias, ultima_conexion,
	estado_conversacion, curso_actual, leccion_actual, intentos_fallidos,
	tipo_reto_actual, reto_actual, pregunta_defensa, defensa_obligatoria,
	progreso_temas, logros, fichas,
	retos_completados, retos_sin_pistas, pistas_totales, fallos_totales,
	historial_chat, clase, onboarding_completado, preferencia_aprendizaje,
	created_at, updated_at`

func (s *Store) Get(phone string) (*models.UserProgress, error) {
	row := s.db.QueryRow(`SELECT `+userColumns+` FROM usuarios WHERE numero_telefono = $1`, phone)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", phone, err)
	}
	return u, nil
}

// Create registers a new identity. It is idempotent: a concurrent or repeated
// create is a no-op and the first-seen name wins.
func (s *Store) Create(phone, name string, initialState models.ConversationState) (*models.UserProgress, error) {
	_, err := s.db.Exec(
		`INSERT INTO usuarios (numero_telefono, nombre, estado_conversacion)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (numero_telefono) DO NOTHING`,
		phone, name, string(initialState),
	)
	if err != nil {
		return nil, fmt.Errorf("create user %s: %w", phone, err)
	}
	return s.Get(phone)
}

// Update applies only the fields set on the patch, leaving everything else
// untouched. An empty patch is a no-op.
func (s *Store) Update(phone string, p Patch) error {
	setClause, args := buildUpdate(p)
	if setClause == "" {
		return nil
	}
	args = append([]interface{}{phone}, args...)
	_, err := s.db.Exec(
		`UPDATE usuarios SET `+setClause+`, updated_at = NOW() WHERE numero_telefono = $1`,
		args...,
	)
	if err != nil {
		return fmt.Errorf("update user %s: %w", phone, err)
	}
	return nil
}

type scannable interface {
	Scan(dest ...interface{}) error
}

func scanUser(row scannable) (*models.UserProgress, error) {
	var u models.UserProgress
	var course, format, defenseQ, challengeJSON, class, preference sql.NullString
	var topicsJSON, achievementsJSON, sheetsJSON, historyJSON string

	err := row.Scan(
		&u.Phone, &u.Name, &u.GeneralLevel, &u.GeneralPoints, &u.StreakDays, &u.LastActiveDate,
		&u.State, &course, &u.LessonIndex, &u.FailedAttempts,
		&format, &challengeJSON, &defenseQ, &u.DefenseMandatory,
		&topicsJSON, &achievementsJSON, &sheetsJSON,
		&u.ChallengesCompleted, &u.ChallengesWithoutHint, &u.LifetimeHints, &u.LifetimeFailures,
		&historyJSON, &class, &u.OnboardingDone, &preference,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	u.ActiveCourse = course.String
	u.ChallengeFormat = format.String
	u.DefenseQuestion = defenseQ.String
	u.ClassCode = class.String
	u.LearningPreference = preference.String

	if !models.ValidState(u.State) {
		log.Printf("[progress] user %s has unknown state %q, treating as menu", u.Phone, u.State)
		u.State = models.StateMenu
	}

	if challengeJSON.Valid && challengeJSON.String != "" {
		var c models.Challenge
		if err := json.Unmarshal([]byte(challengeJSON.String), &c); err != nil {
			log.Printf("[progress] user %s has corrupt reto_actual, dropping: %v", u.Phone, err)
		} else {
			u.Challenge = &c
		}
	}

	u.Topics = map[string]models.TopicProgress{}
	if err := json.Unmarshal([]byte(topicsJSON), &u.Topics); err != nil {
		log.Printf("[progress] user %s has corrupt progreso_temas: %v", u.Phone, err)
	}
	if err := json.Unmarshal([]byte(achievementsJSON), &u.Achievements); err != nil {
		log.Printf("[progress] user %s has corrupt logros: %v", u.Phone, err)
	}
	if err := json.Unmarshal([]byte(sheetsJSON), &u.CheatSheets); err != nil {
		log.Printf("[progress] user %s has corrupt fichas: %v", u.Phone, err)
	}
	if err := json.Unmarshal([]byte(historyJSON), &u.ChatHistory); err != nil {
		log.Printf("[progress] user %s has corrupt historial_chat: %v", u.Phone, err)
	}

	return &u, nil
}
