package integrity

import (
	"database/sql"
	"fmt"

	"github.com/logicbot/backend/internal/models"
)

// AlertStore persists security alerts for staff review. All writers treat
// it as fire-and-forget: a failed insert is logged by the caller and never
// blocks grading.
type AlertStore struct {
	db *sql.DB
}

func NewAlertStore(db *sql.DB) *AlertStore {
	return &AlertStore{db: db}
}

func (s *AlertStore) Insert(a models.SecurityAlert) error {
	_, err := s.db.Exec(
		`INSERT INTO security_alerts
		    (numero_telefono, nombre, enunciado, solucion_enviada,
		     segundos_transcurridos, segundos_esperados, reto_iniciado_en, detectado_en)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		a.Phone, a.Name, a.Statement, a.Submission,
		a.ElapsedSeconds, a.ExpectedSeconds, a.StartedAt, a.DetectedAt,
	)
	if err != nil {
		return fmt.Errorf("insert security alert: %w", err)
	}
	return nil
}

func (s *AlertStore) List(limit int) ([]models.SecurityAlert, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(
		`SELECT id, numero_telefono, nombre, enunciado, solucion_enviada,
		        segundos_transcurridos, segundos_esperados, reto_iniciado_en, detectado_en
		 FROM security_alerts
		 ORDER BY detectado_en DESC
		 LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list security alerts: %w", err)
	}
	defer rows.Close()

	var alerts []models.SecurityAlert
	for rows.Next() {
		var a models.SecurityAlert
		if err := rows.Scan(&a.ID, &a.Phone, &a.Name, &a.Statement, &a.Submission,
			&a.ElapsedSeconds, &a.ExpectedSeconds, &a.StartedAt, &a.DetectedAt); err != nil {
			return nil, fmt.Errorf("scan security alert: %w", err)
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}
