package evaluator

import (
	"fmt"
	"strings"

	"github.com/logicbot/backend/internal/models"
)

const gradingSystemPrompt = `Eres el evaluador de código de LogicBot, un tutor de programación por WhatsApp.
Sigues las instrucciones de formato al pie de la letra y no añades texto fuera de lo pedido.`

const chatSystemPrompt = `Eres "LogicBot", un tutor de programación amigable y conversacional por WhatsApp.

REGLA DE ORO: bajo NINGUNA circunstancia escribas, completes o corrijas el código del usuario.
No des soluciones directas. Haz preguntas guía y da pistas conceptuales para que el usuario
llegue a la solución por su cuenta. Si te piden la solución, niégate amablemente.
Si preguntan por temas no técnicos, recuerda que eres un bot educativo.`

func buildGradingPrompt(statement, userMessage, format string) string {
	return fmt.Sprintf(`**Problema a resolver:** %q
**Mensaje del estudiante:** %q

**Instrucciones:**
1. **Clasifica:** si el mensaje es una pregunta teórica ("¿qué es...?", "no entiendo", "¿cómo funciona...?")
   y no un intento de solución, responde ÚNICAMENTE con la palabra `+"`[PREGUNTA]`"+`.
2. **Evalúa:** si el mensaje parece una solución en %s, califícala de forma ESTRICTA.
   Una solución válida pero de OTRO problema es incorrecta.
   - Correcta: empieza tu respuesta con "✅ *¡CORRECTO!*:" y un comentario breve.
   - Incorrecta: empieza con "❌ *INCORRECTO:*" y una pista conceptual (no código).`,
		statement, userMessage, format)
}

func buildChatPrompt(userMessage string, history []models.ChatTurn, topic string) string {
	var b strings.Builder

	if len(history) > 0 {
		b.WriteString("**Historial reciente:**\n")
		for _, turn := range history {
			fmt.Fprintf(&b, "- %s: %s\n", turn.Speaker, turn.Text)
		}
	}
	fmt.Fprintf(&b, "**Mensaje del usuario:** %q\n", userMessage)
	if topic != "" {
		fmt.Fprintf(&b, "**Tema actual:** estás ayudando con un reto sobre %q. Enfócate en ese tema.\n", topic)
	}

	return b.String()
}

func buildDefenseQuestionPrompt(statement, submission string) string {
	return fmt.Sprintf(`El estudiante resolvió este reto correctamente.
Reto: %s
Solución del estudiante: %s

Genera UNA sola pregunta corta y directa para verificar que no copió el código.
Pregunta por el "por qué" de una decisión específica de SU solución
(por qué ese tipo de bucle, por qué esa variable, por qué esa condición).
No felicites, no saludes: entrega solo la pregunta.`, statement, submission)
}

func buildDefenseEvalPrompt(question, answer, statement string) string {
	return fmt.Sprintf(`Contexto del reto: %s
Pregunta de control: %s
Respuesta del estudiante: %s

¿La respuesta demuestra que el estudiante entiende su propio código?
Responde SOLO "SI" o "NO".`, statement, question, answer)
}
