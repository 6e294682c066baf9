package conversation

import (
	"fmt"
	"sort"
	"strings"

	"github.com/samber/lo"

	"github.com/logicbot/backend/internal/config"
	"github.com/logicbot/backend/internal/models"
	"github.com/logicbot/backend/internal/scoring"
)

// Selection ids emitted by our own menus. Webhook payloads echo these back.
const (
	selShowMenu        = "mostrar_menu"
	selJavaTopics      = "mostrar_temas_java"
	selRandomChallenge = "pedir_reto_aleatorio"
	selCheatSheets     = "ver_coleccion"
	selAchievements    = "ver_logros"
	selProfile         = "ver_mi_perfil"

	selOnboardingStart  = "onboarding_empezar"
	selOnboardingFinish = "finalizar_onboarding"

	prefixStartCourse  = "iniciar_curso_"
	prefixStartLesson  = "iniciar_leccion_"
	prefixPickFormat   = "elegir_reto_"
	prefixCheatSheet   = "ficha_"
	prefixExperience   = "nivel_"
	prefixPreference   = "pref_"
)

// MainMenu is the control center list sent after almost every completed
// activity.
func MainMenu() models.Content {
	return models.WithList(models.ListMenu{
		Header:      "LogicBot - Tu Tutor IA",
		Body:        "¡Hola! 👋 Aquí tienes tu centro de control.",
		Footer:      "Selecciona una opción 👇",
		ButtonLabel: "Abrir Menú",
		Sections: []models.ListSection{
			{
				Title: "🚀 Aprender",
				Rows: []models.ListRow{
					{ID: selJavaTopics, Title: "☕ Curso de Java", Description: "Lecciones paso a paso"},
					{ID: prefixStartCourse + "python", Title: "🐍 Curso de Python", Description: "Lecciones paso a paso"},
					{ID: prefixStartCourse + "pseudocodigo", Title: "🧠 Pseudocódigo", Description: "Lógica desde cero"},
					{ID: selRandomChallenge, Title: "🎲 Reto Rápido", Description: "Practicar algo al azar"},
				},
			},
			{
				Title: "🎒 Mi Mochila",
				Rows: []models.ListRow{
					{ID: selCheatSheets, Title: "📚 Mis Fichas", Description: "Cheat sheets desbloqueadas"},
					{ID: selAchievements, Title: "🏆 Mis Logros", Description: "Medallas ganadas"},
					{ID: selProfile, Title: "👤 Mi Perfil", Description: "Nivel y estadísticas"},
				},
			},
		},
	})
}

// javaTopicsMenu lets the student jump into any lesson of the Java course.
func javaTopicsMenu() models.Content {
	course := config.Courses["java"]
	rows := lo.Map(course.Lessons, func(lesson string, i int) models.ListRow {
		return models.ListRow{ID: fmt.Sprintf("%s%d", prefixStartLesson, i), Title: lesson}
	})

	return models.WithList(models.ListMenu{
		Header:      "Temas de Java",
		Body:        "Selecciona un tema para comenzar la lección y el reto.",
		Footer:      "👇 Elige tu camino",
		ButtonLabel: "Ver Temas",
		Sections:    []models.ListSection{{Title: "Fundamentos", Rows: rows}},
	})
}

// formatButtons asks which language the quick challenge should use.
func formatButtons() models.Content {
	return models.WithButtons("¿De qué lenguaje quieres el reto?",
		models.Button{ID: prefixPickFormat + "python", Title: "Python 🐍"},
		models.Button{ID: prefixPickFormat + "java", Title: "Java ☕"},
		models.Button{ID: prefixPickFormat + "pseudocodigo", Title: "Pseudocódigo 🧠"},
	)
}

const difficultyPrompt = "¿Qué nivel de dificultad prefieres? 🤔\n\n1. Fácil 🌱\n2. Intermedio 🔥\n3. Difícil 🤯"

// cheatSheetMenu lists the fichas the student has unlocked so far.
func cheatSheetMenu(u *models.UserProgress) models.Content {
	if len(u.CheatSheets) == 0 {
		return models.Text("Tu mochila está vacía por ahora. 🎒 Sube de nivel en un tema para desbloquear tu primera ficha. 📑")
	}

	rows := lo.Map(u.CheatSheets, func(topic string, i int) models.ListRow {
		return models.ListRow{ID: fmt.Sprintf("%s%d", prefixCheatSheet, i), Title: topic}
	})
	return models.WithList(models.ListMenu{
		Header:      "📚 Mis Fichas",
		Body:        "Tus cheat sheets desbloqueadas. Elige una para repasarla.",
		Footer:      "Sigue desbloqueando más 🎁",
		ButtonLabel: "Ver Fichas",
		Sections:    []models.ListSection{{Title: "Desbloqueadas", Rows: rows}},
	})
}

// renderProfile is the profile card.
func renderProfile(u *models.UserProgress) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📊 *Tu Perfil de LogicBot*\n\n")
	fmt.Fprintf(&b, "👤 *Nombre:* %s\n", u.Name)
	fmt.Fprintf(&b, "🎓 *Nivel:* %d — %s\n", u.GeneralLevel, config.LevelName(u.GeneralLevel))
	fmt.Fprintf(&b, "⭐ *Puntos:* %d / %d\n", u.GeneralPoints, config.GeneralLevelThreshold*u.GeneralLevel)
	fmt.Fprintf(&b, "🔥 *Racha:* %d día(s)\n", u.StreakDays)
	fmt.Fprintf(&b, "🧩 *Retos completados:* %d", u.ChallengesCompleted)

	if len(u.Topics) > 0 {
		topics := lo.Keys(u.Topics)
		sort.Strings(topics)
		b.WriteString("\n\n📚 *Temas:*")
		for _, t := range topics {
			tp := u.Topics[t]
			fmt.Fprintf(&b, "\n  • %s — nivel %d (%d pts)", t, tp.MasteryLevel, tp.Points)
		}
	}
	if u.ClassCode != "" {
		fmt.Fprintf(&b, "\n\n🏫 *Clase:* %s", u.ClassCode)
	}
	return b.String()
}

// renderAchievements shows unlocked medals first, then what is left to earn.
func renderAchievements(u *models.UserProgress) string {
	ids := lo.Keys(scoring.Achievements)
	sort.Strings(ids)

	var b strings.Builder
	b.WriteString("🏆 *Tus Logros*\n")
	for _, id := range ids {
		def := scoring.Achievements[id]
		if u.HasAchievement(id) {
			fmt.Fprintf(&b, "\n%s *%s* — %s", def.Emoji, def.Name, def.Description)
		} else {
			fmt.Fprintf(&b, "\n🔒 %s — %s", def.Name, def.Description)
		}
	}
	return b.String()
}

// renderAchievementUnlocked is the celebration message for one new medal.
func renderAchievementUnlocked(id string) string {
	def, ok := scoring.Achievements[id]
	if !ok {
		return ""
	}
	msg := fmt.Sprintf("🎖️ *¡LOGRO DESBLOQUEADO!*\n\n%s *%s*\n%s", def.Emoji, def.Name, def.Description)
	if def.BonusPoints > 0 {
		msg += fmt.Sprintf("\n\n✨ +%d puntos de bonus", def.BonusPoints)
	}
	return msg
}

// renderChallenge presents a freshly generated challenge.
func renderChallenge(c *models.Challenge) string {
	label := "🧩 *Nuevo Reto"
	if c.Type == models.ChallengeDebug {
		label = "🐛 *Reto de Depuración"
	}
	return fmt.Sprintf("%s (%s)*\n\n%s\n\n💡 Escribe *pista* si necesitas ayuda, o *me rindo* para ver la solución.",
		label, c.Difficulty, c.Statement)
}
