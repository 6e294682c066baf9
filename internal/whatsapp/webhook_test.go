package whatsapp

import (
	"net/http/httptest"
	"testing"

	"github.com/logicbot/backend/internal/models"
)

const textPayloadJSON = `{
  "entry": [{
    "changes": [{
      "value": {
        "contacts": [{"profile": {"name": "Ana"}, "wa_id": "5215550001111"}],
        "messages": [{
          "from": "5215550001111",
          "type": "text",
          "text": {"body": "hola"}
        }]
      }
    }]
  }]
}`

const interactivePayloadJSON = `{
  "entry": [{
    "changes": [{
      "value": {
        "contacts": [{"profile": {"name": "Ana"}}],
        "messages": [{
          "from": "5215550001111",
          "type": "interactive",
          "interactive": {
            "type": "list_reply",
            "list_reply": {"id": "curso_java", "title": "Java"}
          }
        }]
      }
    }]
  }]
}`

const statusPayloadJSON = `{
  "entry": [{
    "changes": [{
      "value": {
        "statuses": [{"id": "wamid.X", "status": "delivered"}]
      }
    }]
  }]
}`

func TestParseWebhookText(t *testing.T) {
	msg, ok := ParseWebhook([]byte(textPayloadJSON))
	if !ok {
		t.Fatal("expected a parsed message")
	}
	if msg.From != "5215550001111" {
		t.Errorf("expected from 5215550001111, got %s", msg.From)
	}
	if msg.ProfileName != "Ana" {
		t.Errorf("expected profile name Ana, got %s", msg.ProfileName)
	}
	if msg.Kind != models.IncomingText {
		t.Errorf("expected kind text, got %s", msg.Kind)
	}
	if msg.Text != "hola" {
		t.Errorf("expected body hola, got %q", msg.Text)
	}
}

func TestParseWebhookInteractive(t *testing.T) {
	msg, ok := ParseWebhook([]byte(interactivePayloadJSON))
	if !ok {
		t.Fatal("expected a parsed message")
	}
	if msg.Kind != models.IncomingInteractive {
		t.Errorf("expected kind interactive, got %s", msg.Kind)
	}
	if msg.SelectionID != "curso_java" {
		t.Errorf("expected selection curso_java, got %s", msg.SelectionID)
	}
}

func TestParseWebhookIgnoresStatuses(t *testing.T) {
	if _, ok := ParseWebhook([]byte(statusPayloadJSON)); ok {
		t.Error("status receipts should not produce a message")
	}
}

func TestParseWebhookGarbage(t *testing.T) {
	if _, ok := ParseWebhook([]byte("not json")); ok {
		t.Error("garbage should not produce a message")
	}
	if _, ok := ParseWebhook([]byte(`{"entry": []}`)); ok {
		t.Error("empty entry should not produce a message")
	}
}

func TestVerifyHandshake(t *testing.T) {
	t.Setenv("VERIFY_TOKEN", "secreto")

	req := httptest.NewRequest("GET", "/webhook?hub.mode=subscribe&hub.verify_token=secreto&hub.challenge=12345", nil)
	rec := httptest.NewRecorder()
	VerifyHandshake(rec, req)
	if rec.Code != 200 {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Body.String() != "12345" {
		t.Errorf("expected challenge echoed back, got %q", rec.Body.String())
	}

	req = httptest.NewRequest("GET", "/webhook?hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=12345", nil)
	rec = httptest.NewRecorder()
	VerifyHandshake(rec, req)
	if rec.Code != 403 {
		t.Errorf("expected 403 on bad token, got %d", rec.Code)
	}
}
