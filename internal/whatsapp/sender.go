package whatsapp

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/logicbot/backend/internal/models"
)

// Platform limits on interactive payloads.
const (
	maxButtons     = 3
	buttonTitleMax = 20
	rowTitleMax    = 24
)

// Client renders abstract content directives into Graph API payloads and
// sends them. A missing token degrades to a no-op client so local dev
// works without WhatsApp credentials.
type Client struct {
	token   string
	phoneID string
	baseURL string
	http    *http.Client
}

func NewClient() *Client {
	return &Client{
		token:   os.Getenv("WHATSAPP_TOKEN"),
		phoneID: os.Getenv("WHATSAPP_PHONE_ID"),
		baseURL: "https://graph.facebook.com/v19.0",
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *Client) Send(to string, content models.Content) error {
	if c.token == "" || c.phoneID == "" {
		return nil
	}

	var payload map[string]interface{}
	switch {
	case content.List != nil:
		payload = listPayload(to, *content.List)
	case len(content.Buttons) > 0:
		payload = buttonPayload(to, content.Text, content.Buttons)
	default:
		payload = textPayload(to, content.Text)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	url := fmt.Sprintf("%s/%s/messages", c.baseURL, c.phoneID)
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("send message to %s: %w", to, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("graph API %d sending to %s: %s", resp.StatusCode, to, detail)
	}
	return nil
}

func textPayload(to, body string) map[string]interface{} {
	return map[string]interface{}{
		"messaging_product": "whatsapp",
		"to":                to,
		"text": map[string]interface{}{
			"preview_url": false,
			"body":        body,
		},
	}
}

func buttonPayload(to, body string, buttons []models.Button) map[string]interface{} {
	if len(buttons) > maxButtons {
		buttons = buttons[:maxButtons]
	}
	actionButtons := make([]map[string]interface{}, 0, len(buttons))
	for _, b := range buttons {
		actionButtons = append(actionButtons, map[string]interface{}{
			"type": "reply",
			"reply": map[string]string{
				"id":    b.ID,
				"title": truncate(b.Title, buttonTitleMax),
			},
		})
	}

	return map[string]interface{}{
		"messaging_product": "whatsapp",
		"to":                to,
		"type":              "interactive",
		"interactive": map[string]interface{}{
			"type":   "button",
			"body":   map[string]string{"text": body},
			"action": map[string]interface{}{"buttons": actionButtons},
		},
	}
}

func listPayload(to string, menu models.ListMenu) map[string]interface{} {
	sections := make([]map[string]interface{}, 0, len(menu.Sections))
	for _, s := range menu.Sections {
		rows := make([]map[string]interface{}, 0, len(s.Rows))
		for _, r := range s.Rows {
			row := map[string]interface{}{
				"id":    r.ID,
				"title": truncate(r.Title, rowTitleMax),
			}
			if r.Description != "" {
				row["description"] = r.Description
			}
			rows = append(rows, row)
		}
		sections = append(sections, map[string]interface{}{
			"title": s.Title,
			"rows":  rows,
		})
	}

	return map[string]interface{}{
		"messaging_product": "whatsapp",
		"to":                to,
		"type":              "interactive",
		"interactive": map[string]interface{}{
			"type":   "list",
			"header": map[string]string{"type": "text", "text": menu.Header},
			"body":   map[string]string{"text": menu.Body},
			"footer": map[string]string{"text": menu.Footer},
			"action": map[string]interface{}{
				"button":   menu.ButtonLabel,
				"sections": sections,
			},
		},
	}
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
