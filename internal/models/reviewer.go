package models

import "time"

// Reviewer is a course-staff account for the dashboard API. Students never
// have one of these — they exist only as progress records keyed by phone.
type Reviewer struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Password  string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type RegisterRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthResponse struct {
	Token    string   `json:"token"`
	Reviewer Reviewer `json:"reviewer"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// StudentProjection is the dashboard read model: a flattened view of a
// progress record, refreshed best-effort after every scoring event.
type StudentProjection struct {
	Phone               string    `json:"numero_telefono"`
	Name                string    `json:"nombre"`
	GeneralLevel        int       `json:"nivel"`
	GeneralPoints       int       `json:"puntos"`
	StreakDays          int       `json:"racha_dias"`
	ChallengesCompleted int       `json:"retos_completados"`
	LifetimeFailures    int       `json:"fallos_totales"`
	ClassCode           string    `json:"clase,omitempty"`
	TopicsJSON          string    `json:"progreso_temas"`
	AchievementsJSON    string    `json:"logros"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// SecurityAlert records a suspicious submission for staff review.
// Writes are fire-and-forget; failures never block grading.
type SecurityAlert struct {
	ID              int64     `json:"id"`
	Phone           string    `json:"numero_telefono"`
	Name            string    `json:"nombre"`
	Statement       string    `json:"enunciado"`
	Submission      string    `json:"solucion_enviada"`
	ElapsedSeconds  int       `json:"segundos_transcurridos"`
	ExpectedSeconds int       `json:"segundos_esperados"`
	StartedAt       time.Time `json:"reto_iniciado_en"`
	DetectedAt      time.Time `json:"detectado_en"`
}
