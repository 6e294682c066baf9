package dashboard

import (
	"database/sql"
	"log"

	"github.com/logicbot/backend/internal/events"
	"github.com/logicbot/backend/internal/models"
)

// Mirror keeps the student_projection read model in sync with scoring
// and profile events. Replication is best-effort: a failed upsert is
// logged and the next event overwrites it anyway.
type Mirror struct {
	db *sql.DB
}

func NewMirror(db *sql.DB) *Mirror {
	return &Mirror{db: db}
}

// HandleEvent is the bus listener entry point.
func (m *Mirror) HandleEvent(e events.Event) {
	var p models.StudentProjection
	switch ev := e.(type) {
	case events.ScoreAwarded:
		p = ev.Projection
	case events.ProfileChanged:
		p = ev.Projection
	default:
		return
	}
	if err := m.Upsert(p); err != nil {
		log.Printf("[dashboard] projection upsert for %s: %v", p.Phone, err)
	}
}

func (m *Mirror) Upsert(p models.StudentProjection) error {
	_, err := m.db.Exec(`
		INSERT INTO student_projection
			(numero_telefono, nombre, nivel, puntos, racha_dias, retos_completados, fallos_totales, clase, progreso_temas, logros, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), $9, $10, $11)
		ON CONFLICT (numero_telefono) DO UPDATE SET
			nombre            = EXCLUDED.nombre,
			nivel             = EXCLUDED.nivel,
			puntos            = EXCLUDED.puntos,
			racha_dias        = EXCLUDED.racha_dias,
			retos_completados = EXCLUDED.retos_completados,
			fallos_totales    = EXCLUDED.fallos_totales,
			clase             = EXCLUDED.clase,
			progreso_temas    = EXCLUDED.progreso_temas,
			logros            = EXCLUDED.logros,
			updated_at        = EXCLUDED.updated_at`,
		p.Phone, p.Name, p.GeneralLevel, p.GeneralPoints, p.StreakDays,
		p.ChallengesCompleted, p.LifetimeFailures, p.ClassCode,
		p.TopicsJSON, p.AchievementsJSON, p.UpdatedAt,
	)
	return err
}
