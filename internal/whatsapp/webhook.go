package whatsapp

import (
	"net/http"
	"os"

	"github.com/tidwall/gjson"

	"github.com/logicbot/backend/internal/models"
)

// ParseWebhook extracts the single message from a Graph API webhook event.
// Status/delivery-receipt payloads and empty events return ok=false and
// must be acknowledged without touching the conversation machine.
func ParseWebhook(body []byte) (*models.IncomingMessage, bool) {
	value := gjson.GetBytes(body, "entry.0.changes.0.value")
	if !value.Exists() {
		return nil, false
	}
	if value.Get("statuses").Exists() {
		return nil, false
	}

	message := value.Get("messages.0")
	if !message.Exists() {
		return nil, false
	}

	msg := &models.IncomingMessage{
		From:        message.Get("from").String(),
		ProfileName: value.Get("contacts.0.profile.name").String(),
	}
	if msg.From == "" {
		return nil, false
	}
	if msg.ProfileName == "" {
		msg.ProfileName = msg.From
	}

	switch message.Get("type").String() {
	case "text":
		msg.Kind = models.IncomingText
		msg.Text = message.Get("text.body").String()
	case "interactive":
		msg.Kind = models.IncomingInteractive
		// The selection id lives under the interactive subtype key
		// (button_reply or list_reply).
		subtype := message.Get("interactive.type").String()
		msg.SelectionID = message.Get("interactive." + subtype + ".id").String()
		if msg.SelectionID == "" {
			return nil, false
		}
	default:
		// Media, reactions, etc. are out of scope.
		return nil, false
	}

	return msg, true
}

// VerifyHandshake answers Meta's webhook subscription challenge.
func VerifyHandshake(w http.ResponseWriter, r *http.Request) {
	verifyToken := os.Getenv("VERIFY_TOKEN")
	if verifyToken == "" {
		verifyToken = "micodigosecreto"
	}

	q := r.URL.Query()
	if q.Get("hub.mode") == "subscribe" && q.Get("hub.verify_token") == verifyToken {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(q.Get("hub.challenge")))
		return
	}
	w.WriteHeader(http.StatusForbidden)
}
