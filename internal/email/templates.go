package email

import (
	"encoding/json"
	"fmt"
	"html"
	"strings"
)

// Template names stored on outbox entries. The payload is the JSON the
// enqueuing component recorded; rendering happens at dispatch time.
const (
	TemplateRequestLink          = "request_link"
	TemplateDueReminder14D       = "due_reminder_14d"
	TemplateAllDocumentsAccepted = "all_documents_accepted"
)

type RequestLinkPayload struct {
	ClientName string `json:"client_name"`
	PortalURL  string `json:"portal_url"`
	DueOn      string `json:"due_on"`
}

type DueReminderPayload struct {
	ClientName string `json:"client_name"`
	PortalURL  string `json:"portal_url"`
	DueOn      string `json:"due_on"`
}

type AcceptedPayload struct {
	ClientName string `json:"client_name"`
}

// Render turns an outbox entry into a subject and HTML body. Unknown
// template names are an error so bad rows park as failed instead of
// silently sending empty mail.
func Render(template string, payload []byte) (subject, htmlBody string, err error) {
	switch template {
	case TemplateRequestLink:
		var p RequestLinkPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return "", "", fmt.Errorf("decode %s payload: %w", template, err)
		}
		subject = "Documents requested"
		htmlBody = paragraphs(
			fmt.Sprintf("Hello %s,", html.EscapeString(p.ClientName)),
			fmt.Sprintf("Your documents for this period are due by %s.", html.EscapeString(p.DueOn)),
			fmt.Sprintf(`Upload them here: <a href="%s">%s</a>`, p.PortalURL, html.EscapeString(p.PortalURL)),
		)
		return subject, htmlBody, nil

	case TemplateDueReminder14D:
		var p DueReminderPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return "", "", fmt.Errorf("decode %s payload: %w", template, err)
		}
		subject = "Reminder: documents due in two weeks"
		htmlBody = paragraphs(
			fmt.Sprintf("Hello %s,", html.EscapeString(p.ClientName)),
			fmt.Sprintf("This is a reminder that your documents are due by %s.", html.EscapeString(p.DueOn)),
			fmt.Sprintf(`Upload anything still missing here: <a href="%s">%s</a>`, p.PortalURL, html.EscapeString(p.PortalURL)),
		)
		return subject, htmlBody, nil

	case TemplateAllDocumentsAccepted:
		var p AcceptedPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return "", "", fmt.Errorf("decode %s payload: %w", template, err)
		}
		subject = "All documents accepted"
		htmlBody = paragraphs(
			fmt.Sprintf("Hello %s,", html.EscapeString(p.ClientName)),
			"All of your submitted documents have been reviewed and accepted. Nothing further is needed.",
		)
		return subject, htmlBody, nil

	default:
		return "", "", fmt.Errorf("unknown email template %q", template)
	}
}

func paragraphs(ps ...string) string {
	var b strings.Builder
	for _, p := range ps {
		b.WriteString("<p>")
		b.WriteString(p)
		b.WriteString("</p>\n")
	}
	return b.String()
}
