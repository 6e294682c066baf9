package conversation

import (
	"log"

	"github.com/logicbot/backend/internal/events"
	"github.com/logicbot/backend/internal/models"
	"github.com/logicbot/backend/internal/progress"
	"github.com/logicbot/backend/internal/scoring"
)

// Two quick questions and a tutorial, then the first achievement. Button
// driven; free text during onboarding just repeats the pending step.

// onboardingNudge re-sends the step the student is on when they type text
// instead of tapping a button.
func (m *Machine) onboardingNudge(u *models.UserProgress) {
	m.send(u.Phone, models.Text("Usa los botones para continuar 👇"))
	switch u.State {
	case models.StateOnboardingStart:
		m.send(u.Phone, models.WithButtons(
			"❓ Antes de empezar...\n\nVoy a hacerte 2 preguntas rápidas para personalizar tu experiencia ⭐",
			models.Button{ID: selOnboardingStart, Title: "Empezar 🚀"},
		))
	case models.StateOnboardingPrefs:
		m.sendPreferenceButtons(u)
	case models.StateOnboardingTour:
		m.sendTutorial(u)
	}
}

// onboardingExperience is question 1.
func (m *Machine) onboardingExperience(u *models.UserProgress) {
	if err := m.store.Update(u.Phone, progress.Patch{State: progress.State(models.StateOnboardingStart)}); err != nil {
		log.Printf("[conversation] onboarding start %s: %v", u.Phone, err)
	}
	u.State = models.StateOnboardingStart

	m.send(u.Phone, models.WithButtons("❓ ¿Has programado antes?",
		models.Button{ID: prefixExperience + "principiante", Title: "Nunca 🌱"},
		models.Button{ID: prefixExperience + "intermedio", Title: "Un poco 🔥"},
		models.Button{ID: prefixExperience + "avanzado", Title: "Bastante 🚀"},
	))
}

// onboardingPreference is question 2. The experience answer only shapes
// the conversation, so nothing needs persisting from it.
func (m *Machine) onboardingPreference(u *models.UserProgress) {
	if err := m.store.Update(u.Phone, progress.Patch{State: progress.State(models.StateOnboardingPrefs)}); err != nil {
		log.Printf("[conversation] onboarding prefs %s: %v", u.Phone, err)
	}
	u.State = models.StateOnboardingPrefs
	m.sendPreferenceButtons(u)
}

func (m *Machine) sendPreferenceButtons(u *models.UserProgress) {
	m.send(u.Phone, models.WithButtons("❓ ¿Qué prefieres hacer?",
		models.Button{ID: prefixPreference + "curso", Title: "Aprender desde cero 📖"},
		models.Button{ID: prefixPreference + "retos", Title: "Practicar con retos 💪"},
		models.Button{ID: prefixPreference + "ambos", Title: "Ambas cosas ⭐"},
	))
}

// onboardingTutorial saves the preference and shows the quick tour.
func (m *Machine) onboardingTutorial(u *models.UserProgress, preference string) {
	if err := m.store.Update(u.Phone, progress.Patch{
		State:              progress.State(models.StateOnboardingTour),
		LearningPreference: progress.String(preference),
	}); err != nil {
		log.Printf("[conversation] onboarding tutorial %s: %v", u.Phone, err)
	}
	u.State = models.StateOnboardingTour
	u.LearningPreference = preference
	m.sendTutorial(u)
}

func (m *Machine) sendTutorial(u *models.UserProgress) {
	tutorial := "🎉 ¡Perfecto!\n\n💡 *Comandos útiles:*\n\n" +
		"1️⃣ Escribe *'menu'* 📋\n   Para ver todas las opciones\n\n" +
		"2️⃣ Escribe *'pista'* 💡\n   Si necesitas ayuda en un reto\n\n" +
		"3️⃣ Escribe *'perfil'* 👤\n   Para ver tu progreso\n\n" +
		"❓ ¿Listo para empezar?"
	m.send(u.Phone, models.WithButtons(tutorial,
		models.Button{ID: selOnboardingFinish, Title: "¡Vamos! 🚀"},
	))
}

// finishOnboarding marks the flow done and grants the first achievement.
func (m *Machine) finishOnboarding(u *models.UserProgress) {
	u.State = models.StateMenu
	u.OnboardingDone = true

	patch := progress.Patch{
		State:          progress.State(models.StateMenu),
		OnboardingDone: progress.Bool(true),
	}

	granted := !u.HasAchievement("primer_paso")
	if granted {
		u.Achievements = append(u.Achievements, "primer_paso")
		def := scoring.Achievements["primer_paso"]
		u.GeneralPoints += def.BonusPoints

		patch.Achievements = u.Achievements
		patch.GeneralPoints = progress.Int(u.GeneralPoints)

		m.send(u.Phone, models.Text(renderAchievementUnlocked("primer_paso")))
		m.publish(events.AchievementUnlocked{Phone: u.Phone, Achievement: "primer_paso"})
	}

	if err := m.store.Update(u.Phone, patch); err != nil {
		log.Printf("[conversation] finish onboarding %s: %v", u.Phone, err)
	}
	if granted {
		m.publish(events.ScoreAwarded{Projection: projection(u, m.now())})
	} else {
		m.publish(events.ProfileChanged{Projection: projection(u, m.now())})
	}

	switch u.LearningPreference {
	case "curso":
		m.send(u.Phone, models.Text("🚀 ¡Genial! Empecemos con tu primer tema. Elige un curso en el menú."))
	case "retos":
		m.send(u.Phone, models.Text("🚀 ¡Perfecto! Vamos a practicar con retos."))
	default:
		m.send(u.Phone, models.Text("🚀 ¡Excelente! Tienes todo a tu disposición."))
	}
	m.send(u.Phone, MainMenu())
}
