package conversation

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/logicbot/backend/internal/config"
	"github.com/logicbot/backend/internal/evaluator"
	"github.com/logicbot/backend/internal/events"
	"github.com/logicbot/backend/internal/models"
	"github.com/logicbot/backend/internal/progress"
	"github.com/logicbot/backend/internal/scoring"
)

// ── Course Flow ───────────────────────────────────────────

// startCourse enters a structured lesson: a mini-class intro on the topic,
// then a challenge.
func (m *Machine) startCourse(ctx context.Context, u *models.UserProgress, courseKey string, lessonIndex int) {
	course, ok := config.Courses[courseKey]
	if !ok || lessonIndex < 0 || lessonIndex >= len(course.Lessons) {
		m.send(u.Phone, models.Text("Lo siento, ese curso no está disponible."))
		return
	}
	topic := course.Lessons[lessonIndex]

	m.send(u.Phone, models.Text(fmt.Sprintf(
		"¡Excelente! 🎉 Iniciaste la ruta de aprendizaje: *%s*.\n\nTu lección: *%s*.\n\nGenerando tu reto...",
		course.Name, topic)))

	if intro, err := m.generator.TopicIntro(ctx, courseKey, topic); err == nil {
		m.send(u.Phone, models.Text(intro))
	} else {
		log.Printf("[conversation] topic intro %q for %s: %v", topic, u.Phone, err)
	}

	u.ActiveCourse = courseKey
	u.LessonIndex = lessonIndex
	m.deliverChallenge(ctx, u, models.DifficultyEasy, topic, courseKey, ChooseVariant(m.cfg, true, m.rng))
}

// handleDifficulty resolves the difficulty pick in eligiendo_dificultad.
// Unrecognized input gets a conversational nudge, state unchanged.
func (m *Machine) handleDifficulty(ctx context.Context, u *models.UserProgress, text string) {
	difficulty, ok := ResolveDifficulty(text)
	if !ok {
		m.chat(ctx, u, text)
		return
	}

	// The format the student just picked wins here even mid-course; the
	// active course only decides where the conversation continues after.
	format := u.ChallengeFormat
	if format == "" {
		format = m.currentFormat(u)
	}
	m.send(u.Phone, models.Text(fmt.Sprintf(
		"¡Entendido! 👨‍💻 Buscando un reto de *%s* con dificultad *%s*...", format, difficulty)))

	topic := "programación en general"
	if course, ok := config.Courses[format]; ok {
		topic = course.Lessons[m.rng.Intn(len(course.Lessons))]
	}

	m.deliverChallenge(ctx, u, difficulty, topic, format, models.ChallengeNormal)
}

// deliverChallenge generates, persists and sends one challenge. On
// generation failure the conversation falls back to the menu with the
// challenge cleared, never half-set.
func (m *Machine) deliverChallenge(ctx context.Context, u *models.UserProgress, difficulty models.Difficulty, topic, format string, variant models.ChallengeType) {
	var challenge *models.Challenge
	var err error
	if variant == models.ChallengeDebug {
		challenge, err = m.generator.GenerateDebugChallenge(ctx, u.GeneralLevel, format, topic)
	} else {
		challenge, err = m.generator.GenerateChallenge(ctx, u.GeneralLevel, format, difficulty, topic)
	}
	if err != nil {
		log.Printf("[conversation] generation for %s: %v", u.Phone, err)
		m.failSafe(u, userMessage(err, "No pude preparar tu reto ahora mismo. 🤕 Volvamos al menú e inténtalo de nuevo."))
		return
	}
	challenge.StartedAt = m.now()

	state := models.StateSolving
	if variant == models.ChallengeDebug {
		state = models.StateDebugging
	} else if u.ActiveCourse != "" {
		state = models.StateInCourse
	}

	patch := progress.Patch{
		State:          progress.State(state),
		Challenge:      challenge,
		FailedAttempts: progress.Int(0),
	}
	if u.ActiveCourse != "" {
		patch.ActiveCourse = progress.String(u.ActiveCourse)
		patch.LessonIndex = progress.Int(u.LessonIndex)
	}
	if err := m.store.Update(u.Phone, patch); err != nil {
		log.Printf("[conversation] persist challenge %s: %v", u.Phone, err)
		m.failSafe(u, "Algo salió mal guardando tu reto. 🤕 Volvamos al menú.")
		return
	}
	u.Challenge = challenge
	u.State = state
	u.FailedAttempts = 0

	m.send(u.Phone, models.Text(renderChallenge(challenge)))
}

// failSafe returns the conversation to the menu with no outstanding
// challenge, the recovery state for every generation-path fault.
func (m *Machine) failSafe(u *models.UserProgress, message string) {
	if err := m.store.Update(u.Phone, progress.Patch{
		State:          progress.State(models.StateMenu),
		ClearChallenge: true,
		ClearDefense:   true,
	}); err != nil {
		log.Printf("[conversation] fail-safe persist %s: %v", u.Phone, err)
	}
	u.State = models.StateMenu
	u.Challenge = nil
	u.DefenseQuestion = ""
	m.send(u.Phone, models.Text(message))
	m.send(u.Phone, MainMenu())
}

// ── Submission Grading ────────────────────────────────────

func (m *Machine) handleSubmission(ctx context.Context, u *models.UserProgress, text string) {
	if u.Challenge == nil {
		// State says solving but the record carries no challenge; recover.
		m.failSafe(u, "Parece que no tienes un reto activo. Elige algo del menú. 👇")
		return
	}

	format := u.Challenge.Format
	if format == "" {
		format = m.currentFormat(u)
	}
	verdict, err := m.grader.ClassifyAndGrade(ctx, u.Challenge.Statement, text, format)
	if err != nil {
		m.send(u.Phone, models.Text(userMessage(err, "Tuve un problema revisando tu respuesta. 🤕 Envíala de nuevo en un momento.")))
		return
	}

	assessment := m.integrity.Assess(u.Challenge,
		verdict.Kind == evaluator.VerdictCorrect,
		verdict.Kind == evaluator.VerdictQuestion,
		len([]rune(text)), m.now())

	if assessment.Reportable {
		m.publish(events.SuspiciousSubmission{Alert: models.SecurityAlert{
			Phone:           u.Phone,
			Name:            u.Name,
			Statement:       u.Challenge.Statement,
			Submission:      text,
			ElapsedSeconds:  assessment.ElapsedSeconds,
			ExpectedSeconds: u.Challenge.ExpectedSeconds,
			StartedAt:       u.Challenge.StartedAt,
			DetectedAt:      m.now(),
		}})
	}

	switch verdict.Kind {
	case evaluator.VerdictQuestion:
		m.chat(ctx, u, text)
	case evaluator.VerdictCorrect:
		m.send(u.Phone, models.Text(verdict.Feedback))
		if assessment.DefenseNeeded {
			m.openDefense(ctx, u, text, assessment.DefenseStrict)
			return
		}
		m.finishCorrect(ctx, u, 1.0)
	case evaluator.VerdictIncorrect:
		m.send(u.Phone, models.Text(verdict.Feedback))
		m.recordFailure(u)
	}
}

// openDefense parks the challenge and asks the student to justify their
// solution before any points are credited.
func (m *Machine) openDefense(ctx context.Context, u *models.UserProgress, submission string, strict bool) {
	question := m.grader.GenerateDefenseQuestion(ctx, u.Challenge.Statement, submission)

	if err := m.store.Update(u.Phone, progress.Patch{
		State:            progress.State(models.StateDefense),
		DefenseQuestion:  progress.String(question),
		DefenseMandatory: progress.Bool(strict),
	}); err != nil {
		log.Printf("[conversation] open defense %s: %v", u.Phone, err)
		m.finishCorrect(ctx, u, 1.0)
		return
	}
	u.State = models.StateDefense
	u.DefenseQuestion = question
	u.DefenseMandatory = strict

	if strict {
		m.send(u.Phone, models.Text("🔒 Antes de validar tu solución, una pregunta de verificación:\n\n"+question))
	} else {
		m.send(u.Phone, models.Text("🤓 ¡Interesante solución! Por curiosidad:\n\n"+question))
	}
}

// handleDefenseReply always awards points: full credit on a convincing
// answer, reduced credit otherwise.
func (m *Machine) handleDefenseReply(ctx context.Context, u *models.UserProgress, text string) {
	if u.Challenge == nil || u.DefenseQuestion == "" {
		m.failSafe(u, "Parece que no hay nada pendiente por aquí. Volvamos al menú. 👇")
		return
	}

	passed, err := m.grader.EvaluateDefense(ctx, u.DefenseQuestion, text, u.Challenge.Statement)
	if err != nil {
		passed = m.cfg.LenientDefense
		log.Printf("[conversation] defense evaluation %s: %v (lenient=%t)", u.Phone, err, passed)
	}

	credit := 1.0
	if passed {
		m.send(u.Phone, models.Text("✅ ¡Perfecto! Se nota que entiendes tu solución."))
	} else {
		credit = m.cfg.FailedDefenseCredit
		m.send(u.Phone, models.Text("🤔 Mmm, no me queda del todo claro. Te daré la mitad de los puntos; repasa tu solución para la próxima."))
	}
	m.finishCorrect(ctx, u, credit)
}

// recordFailure counts a wrong answer and, inside a lesson, offers theory
// help once the threshold is reached.
func (m *Machine) recordFailure(u *models.UserProgress) {
	u.FailedAttempts++
	u.LifetimeFailures++

	patch := progress.Patch{
		FailedAttempts:   progress.Int(u.FailedAttempts),
		LifetimeFailures: progress.Int(u.LifetimeFailures),
	}

	offerTheory := u.State == models.StateInCourse && u.FailedAttempts >= config.FailureThreshold
	if offerTheory {
		patch.State = progress.State(models.StateTheoryOffer)
	}
	if err := m.store.Update(u.Phone, patch); err != nil {
		log.Printf("[conversation] record failure %s: %v", u.Phone, err)
		return
	}

	if offerTheory {
		u.State = models.StateTheoryOffer
		m.send(u.Phone, models.Text(fmt.Sprintf(
			"He notado que este reto te está costando un poco. El tema de esta lección es '%s'. ¿Te gustaría una explicación teórica antes de volver a intentarlo? (Responde 'sí' o 'no')",
			m.currentTopic(u))))
	}
}

// handleTheoryReply resolves the theory-help offer.
func (m *Machine) handleTheoryReply(ctx context.Context, u *models.UserProgress, text string) {
	if !ResolveYesNo(text) {
		if err := m.store.Update(u.Phone, progress.Patch{State: progress.State(models.StateInCourse)}); err != nil {
			log.Printf("[conversation] decline theory %s: %v", u.Phone, err)
		}
		u.State = models.StateInCourse
		m.send(u.Phone, models.Text("¡De acuerdo! Puedes seguir intentando el reto actual cuando quieras. ¡Tú puedes! 💪"))
		return
	}

	topic := m.currentTopic(u)
	format := m.currentFormat(u)
	explanation, err := m.generator.ExplainTopic(ctx, format, topic)
	if err != nil {
		log.Printf("[conversation] theory explanation %s: %v", u.Phone, err)
		m.failSafe(u, userMessage(err, "No pude preparar la explicación ahora mismo. 🤕 Volvamos al menú."))
		return
	}
	m.send(u.Phone, models.Text(explanation))
	m.send(u.Phone, models.Text("Ahora que hemos repasado, ¡vamos a intentarlo con un nuevo reto sobre el mismo tema!"))

	m.deliverChallenge(ctx, u, models.DifficultyEasy, topic, format, models.ChallengeNormal)
}

// ── Scoring & Continuation ────────────────────────────────

// finishCorrect credits a solved challenge and moves the conversation on:
// next lesson inside a course, back to the menu otherwise.
func (m *Machine) finishCorrect(ctx context.Context, u *models.UserProgress, creditFactor float64) {
	challenge := u.Challenge
	points := scoring.AwardPoints(challenge.Difficulty, u.StreakDays, creditFactor)

	if challenge.HintsUsed == 0 {
		u.ChallengesWithoutHint++
	}
	result := scoring.ApplyScore(u, challenge.Topic, points)

	base := points - u.StreakDays
	if u.StreakDays > 0 {
		m.send(u.Phone, models.Text(fmt.Sprintf(
			"¡Ganaste *%d* puntos + *%d* de bonus por tu racha! Total: *%d* puntos. ✨", base, u.StreakDays, points)))
	} else {
		m.send(u.Phone, models.Text(fmt.Sprintf("¡Ganaste *%d* puntos! ✨", points)))
	}

	if result.GeneralLeveledUp {
		m.send(u.Phone, models.Text(fmt.Sprintf(
			"¡Felicidades! 🥳 ¡Has subido al *Nivel %d — %s*! Sigue así.", result.GeneralLevel, config.LevelName(result.GeneralLevel))))
	}
	if result.TopicLeveledUp && challenge.Topic != "" {
		m.unlockCheatSheet(ctx, u, challenge.Topic, result.TopicLevel)
	}
	for _, id := range result.NewAchievements {
		if msg := renderAchievementUnlocked(id); msg != "" {
			m.send(u.Phone, models.Text(msg))
		}
		m.publish(events.AchievementUnlocked{Phone: u.Phone, Achievement: id})
	}

	wasInCourse := u.ActiveCourse != ""
	u.Challenge = nil
	u.DefenseQuestion = ""
	u.FailedAttempts = 0
	u.State = models.StateMenu

	patch := progress.Patch{
		GeneralLevel:          progress.Int(u.GeneralLevel),
		GeneralPoints:         progress.Int(u.GeneralPoints),
		Topics:                u.Topics,
		Achievements:          u.Achievements,
		CheatSheets:           u.CheatSheets,
		ChallengesCompleted:   progress.Int(u.ChallengesCompleted),
		ChallengesWithoutHint: progress.Int(u.ChallengesWithoutHint),
		FailedAttempts:        progress.Int(0),
		ClearChallenge:        true,
		ClearDefense:          true,
		State:                 progress.State(models.StateMenu),
	}
	if err := m.store.Update(u.Phone, patch); err != nil {
		log.Printf("[conversation] persist score %s: %v", u.Phone, err)
	}

	m.publish(events.ScoreAwarded{
		Projection: projection(u, m.now()),
		Topic:      challenge.Topic,
		Points:     points,
	})

	if wasInCourse {
		m.advanceLesson(ctx, u)
		return
	}
	m.send(u.Phone, MainMenu())
}

// unlockCheatSheet adds the topic to the collection and sends the sheet.
func (m *Machine) unlockCheatSheet(ctx context.Context, u *models.UserProgress, topic string, level int) {
	m.send(u.Phone, models.Text(fmt.Sprintf(
		"🎁 ¡Subiste al nivel %d en *%s* y desbloqueaste una ficha para tu mochila! 🎒", level, topic)))

	for _, t := range u.CheatSheets {
		if t == topic {
			return
		}
	}
	u.CheatSheets = append(u.CheatSheets, topic)

	sheet, err := m.generator.CheatSheet(ctx, m.currentFormat(u), topic)
	if err != nil {
		log.Printf("[conversation] cheat sheet unlock %q for %s: %v", topic, u.Phone, err)
		return
	}
	m.send(u.Phone, models.Text(sheet))
}

// advanceLesson moves to the next topic or closes out the course.
func (m *Machine) advanceLesson(ctx context.Context, u *models.UserProgress) {
	course := config.Courses[u.ActiveCourse]
	next := u.LessonIndex + 1

	if next >= len(course.Lessons) {
		m.send(u.Phone, models.Text(fmt.Sprintf(
			"¡Increíble, %s! 🏆 ¡Has completado el curso *%s*! Has demostrado una gran habilidad. ¡Sigue practicando con retos aleatorios!",
			u.Name, course.Name)))
		if err := m.store.Update(u.Phone, progress.Patch{
			State:       progress.State(models.StateMenu),
			ClearCourse: true,
			LessonIndex: progress.Int(0),
		}); err != nil {
			log.Printf("[conversation] complete course %s: %v", u.Phone, err)
		}
		u.ActiveCourse = ""
		u.LessonIndex = 0
		m.send(u.Phone, MainMenu())
		return
	}

	topic := course.Lessons[next]
	u.LessonIndex = next
	m.send(u.Phone, models.Text(fmt.Sprintf(
		"¡Muy bien! Lección completada. ✅\n\nTu siguiente lección es: *%s*.\n\nGenerando un nuevo reto...", topic)))

	if intro, err := m.generator.TopicIntro(ctx, u.ActiveCourse, topic); err == nil {
		m.send(u.Phone, models.Text(intro))
	} else {
		log.Printf("[conversation] topic intro %q for %s: %v", topic, u.Phone, err)
	}

	m.deliverChallenge(ctx, u, models.DifficultyEasy, topic, u.ActiveCourse, ChooseVariant(m.cfg, true, m.rng))
}

// ── Global Commands ───────────────────────────────────────

// giveUp reveals the ideal solution and resets to the menu.
func (m *Machine) giveUp(u *models.UserProgress) {
	if u.Challenge == nil {
		m.send(u.Phone, models.Text("Tranquilo, no tienes ningún reto activo para rendirte. ¡Pide uno cuando quieras! 👍"))
		return
	}

	solution := u.Challenge.IdealSolution
	if err := m.store.Update(u.Phone, progress.Patch{
		State:          progress.State(models.StateMenu),
		ClearChallenge: true,
		ClearDefense:   true,
		ClearCourse:    true,
		FailedAttempts: progress.Int(0),
	}); err != nil {
		log.Printf("[conversation] give up %s: %v", u.Phone, err)
		return
	}
	u.Challenge = nil
	u.DefenseQuestion = ""
	u.ActiveCourse = ""
	u.FailedAttempts = 0
	u.State = models.StateMenu

	m.send(u.Phone, models.Text(fmt.Sprintf(
		"¡No te preocupes! Rendirse es parte de aprender. Lo importante es entender cómo funciona. 💪\n\nAquí tienes la solución ideal:\n\n```\n%s\n```\n\n¡Analízala y verás que la próxima vez lo conseguirás! Sigue practicando. ✨",
		solution)))
	m.send(u.Phone, MainMenu())
}

// serveHint hands out the next unused hint, in order, exactly once each.
func (m *Machine) serveHint(u *models.UserProgress) {
	if u.Challenge == nil {
		m.send(u.Phone, models.Text("No tienes un reto activo. Pide uno desde el *menú*. 😉"))
		return
	}
	if u.Challenge.HintsUsed >= len(u.Challenge.Hints) {
		m.send(u.Phone, models.Text("¡Ya usaste todas las pistas! 🙈 Confía en lo que sabes, o escribe *me rindo* para ver la solución."))
		return
	}

	hint := u.Challenge.Hints[u.Challenge.HintsUsed]
	u.Challenge.HintsUsed++
	u.LifetimeHints++

	if err := m.store.Update(u.Phone, progress.Patch{
		Challenge:     u.Challenge,
		LifetimeHints: progress.Int(u.LifetimeHints),
	}); err != nil {
		log.Printf("[conversation] serve hint %s: %v", u.Phone, err)
		return
	}

	m.send(u.Phone, models.Text(fmt.Sprintf("💡 *Pista %d de %d:*\n\n%s",
		u.Challenge.HintsUsed, len(u.Challenge.Hints), hint)))
}

// joinClass tags the record with a cohort code.
func (m *Machine) joinClass(u *models.UserProgress, token string) {
	token = strings.ToUpper(strings.TrimSpace(token))
	if token == "" {
		m.send(u.Phone, models.Text("Para unirte a una clase escribe: *unirme CODIGO* 🏫"))
		return
	}
	if !m.cfg.AcceptsClassToken(token) {
		m.send(u.Phone, models.Text("No reconozco ese código de clase. 🤔 Verifícalo con tu profe."))
		return
	}

	if err := m.store.Update(u.Phone, progress.Patch{ClassCode: progress.String(token)}); err != nil {
		log.Printf("[conversation] join class %s: %v", u.Phone, err)
		return
	}
	u.ClassCode = token
	m.publish(events.ProfileChanged{Projection: projection(u, m.now())})
	m.send(u.Phone, models.Text(fmt.Sprintf("🏫 ¡Listo! Te uniste a la clase *%s*. Tu profe podrá ver tu progreso.", token)))
}

// userMessage extracts the friendly text carried by generator and
// evaluator errors, falling back to a generic apology.
func userMessage(err error, fallback string) string {
	var m interface{ UserMessage() string }
	if errors.As(err, &m) {
		return m.UserMessage()
	}
	return fallback
}
