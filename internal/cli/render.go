package cli

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"relaychat-backend/internal/models"
	"relaychat-backend/internal/webhook"
)

var (
	// Styles
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62")).
			Padding(0, 1)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212"))

	idStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("240")).
		Italic(true)

	dateStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	userBubble = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(0, 1)

	systemBubble = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("243")).
			Padding(0, 1)
)

const bubbleWidth = 60

// RenderFieldErrors prints inline form errors in a stable order.
func RenderFieldErrors(fields map[string]string) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		b.WriteString(errorStyle.Render(fmt.Sprintf("  %s: %s", k, fields[k])))
		b.WriteString("\n")
	}
	return b.String()
}

// RenderSessions lists sessions, most recently active first, marking the active one.
func RenderSessions(sessions []models.SessionResponse, active string) string {
	if len(sessions) == 0 {
		return dateStyle.Render("No chat sessions yet. Start one with `chatctl sessions new`.") + "\n"
	}
	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("Chat sessions (%d)", len(sessions))))
	b.WriteString("\n")
	for _, s := range sessions {
		marker := "  "
		if s.ID.String() == active {
			marker = successStyle.Render("* ")
		}
		fmt.Fprintf(&b, "%s%s  %s  %s\n",
			marker,
			titleStyle.Render(s.Title),
			idStyle.Render(s.ID.String()),
			dateStyle.Render(s.UpdatedAt.Local().Format("2006-01-02 15:04")))
	}
	return b.String()
}

// RenderMessage draws one chat bubble. User bubbles are indented to the
// right; system bubbles show the reply's display text.
func RenderMessage(m models.MessageResponse) string {
	ts := time.UnixMilli(m.Timestamp).Local().Format("15:04:05")
	text := m.DisplayText
	if text == "" {
		text = m.Content
	}
	if m.Sender == models.SenderUser {
		bubble := userBubble.Width(bubbleWidth).Render(text)
		return lipgloss.NewStyle().MarginLeft(10).Render(bubble+"\n"+dateStyle.Render("you · "+ts)) + "\n"
	}
	return systemBubble.Width(bubbleWidth).Render(text) + "\n" + dateStyle.Render("webhook · "+ts) + "\n"
}

// RenderHistory draws a whole conversation.
func RenderHistory(msgs []models.MessageResponse) string {
	if len(msgs) == 0 {
		return dateStyle.Render("No messages yet.") + "\n"
	}
	var b strings.Builder
	for _, m := range msgs {
		b.WriteString(RenderMessage(m))
	}
	return b.String()
}

// RenderRelayError is the error bubble shown when a send could not be relayed.
func RenderRelayError(e *models.RelayErrorResponse) string {
	switch e.Kind {
	case string(webhook.KindConfig):
		return warnStyle.Render("No webhook configured. Run `chatctl webhook set --url <url>` first.") + "\n"
	case string(webhook.KindTimeout):
		return errorStyle.Render("The webhook "+e.Message+".") + "\n"
	default:
		return errorStyle.Render("Could not reach the webhook: "+e.Message) + "\n"
	}
}

// RenderSettings shows the webhook draft with variables in key order.
func RenderSettings(s *models.WebhookSettingsResponse) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Webhook settings"))
	b.WriteString("\n")
	u := s.WebhookURL
	if u == "" {
		u = dateStyle.Render("(not set)")
	}
	fmt.Fprintf(&b, "  URL: %s\n", u)
	if len(s.Variables) == 0 {
		b.WriteString("  Variables: " + dateStyle.Render("(none)") + "\n")
	} else {
		b.WriteString("  Variables:\n")
		keys := make([]string, 0, len(s.Variables))
		for k := range s.Variables {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "    %s = %s\n", titleStyle.Render(k), s.Variables[k])
		}
	}
	switch {
	case s.Dirty:
		b.WriteString(warnStyle.Render("  Unsaved changes") + "\n")
	case s.SavedAt != nil:
		b.WriteString(dateStyle.Render("  Saved "+s.SavedAt.Local().Format("2006-01-02 15:04:05")) + "\n")
	}
	return b.String()
}

// TestButtonLabel is the label of the test affordance for a status.
func TestButtonLabel(s webhook.TestStatus) string {
	switch s.State {
	case webhook.TestTesting:
		return fmt.Sprintf("Testing (%ds)", s.RemainingSeconds)
	case webhook.TestSuccess:
		return "Test Successful"
	case webhook.TestFailed:
		return "Test Failed"
	case webhook.TestTimedOut:
		return "Test Timed Out"
	default:
		return "Send Test Ping"
	}
}

// RenderTestStatus renders the label plus the notification message, if any.
func RenderTestStatus(s webhook.TestStatus) string {
	label := TestButtonLabel(s)
	switch s.State {
	case webhook.TestSuccess:
		label = successStyle.Render(label)
	case webhook.TestFailed, webhook.TestTimedOut:
		label = errorStyle.Render(label)
	case webhook.TestTesting:
		label = warnStyle.Render(label)
	}
	out := label + "\n"
	if s.Message != "" {
		out += "  " + s.Message + "\n"
	}
	if s.Reply != "" {
		out += dateStyle.Render("  Reply: "+s.Reply) + "\n"
	}
	return out
}
