package models

// Outbound content directives. The conversation machine emits these; the
// whatsapp sender renders them into Graph API payloads.

// Button is a quick-reply option. WhatsApp allows at most 3 per message.
type Button struct {
	ID    string
	Title string
}

// ListRow is one selectable row in a list menu.
type ListRow struct {
	ID          string
	Title       string
	Description string
}

type ListSection struct {
	Title string
	Rows  []ListRow
}

// ListMenu is a grouped interactive menu.
type ListMenu struct {
	Header      string
	Body        string
	Footer      string
	ButtonLabel string
	Sections    []ListSection
}

// Content is a single outbound message: plain text, text with reply
// buttons, or a list menu. Exactly one shape is populated.
type Content struct {
	Text    string
	Buttons []Button
	List    *ListMenu
}

func Text(body string) Content {
	return Content{Text: body}
}

func WithButtons(body string, buttons ...Button) Content {
	return Content{Text: body, Buttons: buttons}
}

func WithList(menu ListMenu) Content {
	return Content{List: &menu}
}

// IncomingKind distinguishes webhook message payloads.
type IncomingKind string

const (
	IncomingText        IncomingKind = "text"
	IncomingInteractive IncomingKind = "interactive"
)

// IncomingMessage is one parsed webhook event. Status/receipt payloads are
// filtered out before one of these is built.
type IncomingMessage struct {
	From        string
	ProfileName string
	Kind        IncomingKind
	Text        string
	SelectionID string
}
