package config

import "github.com/logicbot/backend/internal/models"

// Tuning constants for scoring and lesson flow. Values mirror the course
// staff's pedagogy settings.
const (
	// Failed attempts inside a lesson before theory help is offered.
	FailureThreshold = 2

	// Points needed per general level: nivel N requires N * this.
	GeneralLevelThreshold = 100

	// Points needed per topic mastery level: nivel N requires N * this.
	TopicLevelThreshold = 50

	// Fallback when the model omits or mangles tiempo_estimado.
	DefaultExpectedSeconds = 120
)

// PointsForDifficulty is the base points table.
var PointsForDifficulty = map[models.Difficulty]int{
	models.DifficultyEasy:   10,
	models.DifficultyMedium: 20,
	models.DifficultyHard:   30,
}

// LevelNames label general levels on the profile card. Levels past the
// table reuse the last name.
var LevelNames = map[int]string{
	1: "Aprendiz 🌱",
	2: "Practicante 🔨",
	3: "Competente 💪",
	4: "Experto 🎯",
	5: "Maestro 🧙‍♂️",
	6: "Leyenda ⭐",
}

func LevelName(level int) string {
	if name, ok := LevelNames[level]; ok {
		return name
	}
	return LevelNames[6]
}

// ── Courses ───────────────────────────────────────────────

type Course struct {
	Key     string
	Name    string
	Lessons []string
}

// Courses is the structured-lesson catalog. Lesson order is the
// progression order.
var Courses = map[string]Course{
	"java": {
		Key:  "java",
		Name: "Java Fundamentals ☕",
		Lessons: []string{
			"Variables y Primitivos",
			"Operadores Lógicos",
			"Condicionales (if-else)",
			"Ciclos (for, while)",
			"Arrays (Arreglos)",
			"Métodos y Funciones",
			"Clases y Objetos (OOP)",
		},
	},
	"python": {
		Key:  "python",
		Name: "Python Essentials 🐍",
		Lessons: []string{
			"Variables y Tipos de Datos",
			"Operadores Aritméticos",
			"Condicionales (if/else)",
			"Bucles (for y while)",
			"Funciones",
		},
	},
	"pseudocodigo": {
		Key:  "pseudocodigo",
		Name: "Lógica con Pseudocódigo 🧠",
		Lessons: []string{
			"Algoritmos y Diagramas de Flujo",
			"Variables y Constantes",
			"Estructuras Condicionales",
			"Estructuras Repetitivas",
			"Funciones y Procedimientos",
		},
	},
}

// ChallengeFormats are the free-practice options offered from the menu.
var ChallengeFormats = []string{"python", "java", "pseudocodigo"}
