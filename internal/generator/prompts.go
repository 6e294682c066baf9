package generator

import (
	"fmt"
	"strings"

	"github.com/logicbot/backend/internal/models"
)

// SystemPrompt frames every generation call. The bot persona and the
// "never hand out solutions" rule live here, not in each user prompt.
func SystemPrompt() string {
	return `Eres LogicBot, un tutor de programación amigable que escribe para WhatsApp.
Tus mensajes son claros, breves y usan emojis con moderación.
Cuando se te pida JSON, responde ÚNICAMENTE con un objeto JSON válido, sin texto adicional.`
}

// BuildChallengePrompt asks for a regular programming challenge. The
// tiempo_estimado field feeds the integrity heuristic downstream.
func BuildChallengePrompt(level int, format string, difficulty models.Difficulty, topic string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Crea un reto de programación para un estudiante de nivel %d.\n", level)
	fmt.Fprintf(&b, "- Lenguaje/Tema: %s\n", format)
	fmt.Fprintf(&b, "- Dificultad: %s\n", difficulty)
	if topic != "" {
		fmt.Fprintf(&b, "- Temática específica: %q\n", topic)
	}

	b.WriteString(`
Tu respuesta DEBE ser un objeto JSON válido con esta estructura exacta:
{
    "enunciado": "Texto del reto, claro, conciso y con emojis 💡.",
    "solucion_ideal": "La solución ejemplar en el lenguaje especificado.",
    "pistas": ["Pista 1", "Pista 2", "Pista 3"],
    "tiempo_estimado": 120
}
Las tres pistas deben ser conceptuales y progresivamente más específicas.
"tiempo_estimado" es un número ENTERO: segundos que tomaría a un humano promedio escribir la solución (sé generoso).`)

	return b.String()
}

// BuildDebugChallengePrompt asks for code with exactly one seeded,
// non-obvious defect.
func BuildDebugChallengePrompt(level int, format, topic string) string {
	return fmt.Sprintf(`Genera un "Reto de Depuración" (debugging) de %s, nivel %d, tema %q.

1. Escribe un código breve y plausible que tenga UN (1) error sutil (lógico o de sintaxis común).
2. El error no debe ser obvio a simple vista.

Salida JSON con esta estructura exacta:
{
    "enunciado": "Encuentra el error en este código: ... (código con el bug aquí)",
    "solucion_ideal": "El error está en la línea X. La corrección es...",
    "pistas": ["Pista conceptual 1", "Pista 2", "Pista 3"],
    "bug_explicacion": "Explicación breve del error para el profesor",
    "tiempo_estimado": 60
}`, format, level, topic)
}

// BuildTopicIntroPrompt asks for the mini-class sent before a lesson's
// first challenge.
func BuildTopicIntroPrompt(format, topic string) string {
	return fmt.Sprintf(`El estudiante va a comenzar una lección de %s sobre: %q.

Dale una "Mini-Clase" breve con este formato (texto plano para WhatsApp):
1. 🧠 *Concepto:* definición en 1 frase sencilla.
2. 💻 *Sintaxis:* un snippet breve de cómo se escribe.
3. 💡 *Tip clave:* un consejo rápido.

No pongas ejercicios aquí, solo la enseñanza. Sé breve y animado.`, format, topic)
}

// BuildTheoryPrompt asks for the beginner explanation offered after
// repeated failures.
func BuildTheoryPrompt(format, topic string) string {
	return fmt.Sprintf(`Explica el concepto de %q (%s) para un principiante.

Usa lenguaje claro, una analogía del mundo real y un pequeño ejemplo de código.
Finaliza animando al estudiante. Texto plano para WhatsApp, sin JSON.`, topic, format)
}

// BuildCheatSheetPrompt asks for the collectible reference card unlocked
// on a topic mastery level-up.
func BuildCheatSheetPrompt(format, topic string) string {
	return fmt.Sprintf(`Genera una "Cheat Sheet" técnica y concisa sobre %q en %s.
Debe ser un recurso que un programador quiera guardar.

Formato estricto de WhatsApp:
📑 *CHEAT SHEET: %s*

📌 *Sintaxis:* (código minimalista y claro)
⚡ *Cuándo usar:* (1 línea)
⚠️ *Errores comunes:* (1 punto clave)
💡 *Pro-Tip:* (un truco o buena práctica)

Sé directo. No saludes al principio ni te despidas al final.`, topic, format, strings.ToUpper(topic))
}
