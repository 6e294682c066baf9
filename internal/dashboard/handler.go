package dashboard

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/logicbot/backend/internal/integrity"
	"github.com/logicbot/backend/internal/models"
)

const defaultAlertLimit = 100

// Handler serves the teacher dashboard's read API: the student projection
// and the security alert log. All routes sit behind the auth middleware.
type Handler struct {
	db     *sql.DB
	alerts *integrity.AlertStore
}

func NewHandler(db *sql.DB, alerts *integrity.AlertStore) *Handler {
	return &Handler{db: db, alerts: alerts}
}

// Students lists the projection, highest points first. An optional
// ?clase= filter narrows to one cohort.
func (h *Handler) Students(w http.ResponseWriter, r *http.Request) {
	query := `
		SELECT numero_telefono, nombre, nivel, puntos, racha_dias,
		       retos_completados, fallos_totales, COALESCE(clase, ''),
		       progreso_temas, logros, updated_at
		FROM student_projection`
	args := []interface{}{}
	if clase := r.URL.Query().Get("clase"); clase != "" {
		query += " WHERE clase = $1"
		args = append(args, clase)
	}
	query += " ORDER BY puntos DESC"

	rows, err := h.db.Query(query, args...)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: "Failed to load students"})
		return
	}
	defer rows.Close()

	students := []models.StudentProjection{}
	for rows.Next() {
		var s models.StudentProjection
		if err := rows.Scan(&s.Phone, &s.Name, &s.GeneralLevel, &s.GeneralPoints, &s.StreakDays,
			&s.ChallengesCompleted, &s.LifetimeFailures, &s.ClassCode,
			&s.TopicsJSON, &s.AchievementsJSON, &s.UpdatedAt); err != nil {
			writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: "Failed to load students"})
			return
		}
		students = append(students, s)
	}
	if err := rows.Err(); err != nil {
		writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: "Failed to load students"})
		return
	}

	writeJSON(w, http.StatusOK, students)
}

// Alerts lists recent security alerts, newest first.
func (h *Handler) Alerts(w http.ResponseWriter, r *http.Request) {
	limit := defaultAlertLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 1000 {
			limit = n
		}
	}

	alerts, err := h.alerts.List(limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: "Failed to load alerts"})
		return
	}

	writeJSON(w, http.StatusOK, alerts)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
