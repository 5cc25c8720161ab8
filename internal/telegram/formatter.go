package telegram

import (
	"strings"
	"time"

	"github.com/jmehdipour/contact-relay/internal/model"
)

// TimestampLayout renders the footer timestamp of a notification.
const TimestampLayout = "1/2/2006, 3:04:05 PM"

const separator = "━━━━━━━━━━━━━━━━━━━━"

var htmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#039;",
)

// EscapeHTML neutralizes the characters Telegram's HTML parse mode treats as markup.
func EscapeHTML(s string) string {
	if s == "" {
		return ""
	}
	return htmlEscaper.Replace(s)
}

// FormatMessage renders s as an HTML notification. Optional fields are
// omitted when empty.
func FormatMessage(s model.Submission, at time.Time) string {
	var b strings.Builder

	b.WriteString("🆕 <b>New Contact Form Submission</b>\n\n")
	b.WriteString("👤 <b>Name:</b> " + EscapeHTML(s.Name) + "\n")
	b.WriteString("📞 <b>Phone:</b> " + EscapeHTML(s.Phone) + "\n")

	if s.Email != "" {
		b.WriteString("📧 <b>Email:</b> " + EscapeHTML(s.Email) + "\n")
	}
	if s.Address != "" {
		b.WriteString("📍 <b>Address:</b> " + EscapeHTML(s.Address) + "\n")
	}
	if s.Message != "" {
		b.WriteString("\n💬 <b>Message:</b>\n" + EscapeHTML(s.Message) + "\n")
	}

	b.WriteString("\n" + separator + "\n")
	b.WriteString("🕐 " + at.Format(TimestampLayout))

	return b.String()
}
