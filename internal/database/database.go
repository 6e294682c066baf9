package database

import (
	"database/sql"
	"fmt"
	"os"

	_ "github.com/lib/pq"
)

func Connect() (*sql.DB, error) {
	host := getEnv("DB_HOST", "localhost")
	port := getEnv("DB_PORT", "5432")
	user := getEnv("DB_USER", "logicbot_user")
	password := getEnv("DB_PASSWORD", "logicbot_password")
	dbname := getEnv("DB_NAME", "logicbot")
	sslmode := getEnv("DB_SSLMODE", "disable")

	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		host, port, user, password, dbname, sslmode,
	)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	return db, nil
}

func Migrate(db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS usuarios (
		numero_telefono     VARCHAR(32) PRIMARY KEY,
		nombre              VARCHAR(255) NOT NULL,
		nivel               INT NOT NULL DEFAULT 1,
		puntos              INT NOT NULL DEFAULT 0,
		racha_dias          INT NOT NULL DEFAULT 1,
		ultima_conexion     VARCHAR(10) NOT NULL DEFAULT to_char(NOW(), 'YYYY-MM-DD'),
		estado_conversacion VARCHAR(40) NOT NULL DEFAULT 'menu_principal',
		curso_actual        VARCHAR(40),
		leccion_actual      INT NOT NULL DEFAULT 0,
		intentos_fallidos   INT NOT NULL DEFAULT 0,
		tipo_reto_actual    VARCHAR(40),
		reto_actual         TEXT,
		pregunta_defensa    TEXT,
		defensa_obligatoria BOOLEAN NOT NULL DEFAULT FALSE,
		progreso_temas      TEXT NOT NULL DEFAULT '{}',
		logros              TEXT NOT NULL DEFAULT '[]',
		fichas              TEXT NOT NULL DEFAULT '[]',
		retos_completados   INT NOT NULL DEFAULT 0,
		retos_sin_pistas    INT NOT NULL DEFAULT 0,
		pistas_totales      INT NOT NULL DEFAULT 0,
		fallos_totales      INT NOT NULL DEFAULT 0,
		historial_chat      TEXT NOT NULL DEFAULT '[]',
		clase               VARCHAR(40),
		onboarding_completado BOOLEAN NOT NULL DEFAULT FALSE,
		preferencia_aprendizaje VARCHAR(20),
		created_at          TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		updated_at          TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_usuarios_estado ON usuarios(estado_conversacion);
	CREATE INDEX IF NOT EXISTS idx_usuarios_clase ON usuarios(clase);

	CREATE TABLE IF NOT EXISTS security_alerts (
		id                     BIGSERIAL PRIMARY KEY,
		numero_telefono        VARCHAR(32) NOT NULL,
		nombre                 VARCHAR(255) NOT NULL,
		enunciado              TEXT NOT NULL,
		solucion_enviada       TEXT NOT NULL,
		segundos_transcurridos INT NOT NULL,
		segundos_esperados     INT NOT NULL,
		reto_iniciado_en       TIMESTAMP WITH TIME ZONE NOT NULL,
		detectado_en           TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_alerts_phone ON security_alerts(numero_telefono, detectado_en DESC);

	CREATE TABLE IF NOT EXISTS reviewers (
		id         BIGSERIAL PRIMARY KEY,
		email      VARCHAR(255) UNIQUE NOT NULL,
		name       VARCHAR(255) NOT NULL,
		password   VARCHAR(255) NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
		updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_reviewers_email ON reviewers(email);

	CREATE TABLE IF NOT EXISTS student_projection (
		numero_telefono   VARCHAR(32) PRIMARY KEY,
		nombre            VARCHAR(255) NOT NULL,
		nivel             INT NOT NULL,
		puntos            INT NOT NULL,
		racha_dias        INT NOT NULL,
		retos_completados INT NOT NULL,
		fallos_totales    INT NOT NULL,
		clase             VARCHAR(40),
		progreso_temas    TEXT NOT NULL DEFAULT '{}',
		logros            TEXT NOT NULL DEFAULT '[]',
		updated_at        TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	);
	`

	if _, err := db.Exec(query); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
