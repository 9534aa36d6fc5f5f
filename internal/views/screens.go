package views

import (
	"fmt"
	"strings"
)

type FormData struct {
	Title  string
	Fields []string
	// Context is shown above the fields, e.g. the account being confirmed.
	Context string
	Notice  string
	Error   string
	Busy    string
	Hints   string
}

type TaskPanelData struct {
	Account     string
	ListView    string
	Count       int
	AddFormView string
	AddError    string
	Busy        string
}

type HelpPanelData struct {
	Route    string
	Bindings []string
	HelpView string
	Intro    string
}

func RenderLoading(spin string) string {
	return fmt.Sprintf("%s Loading...", spin)
}

func RenderForm(data FormData) string {
	var b strings.Builder
	b.WriteString(data.Title + "\n\n")
	if data.Notice != "" {
		b.WriteString(statusStyle.Render(data.Notice) + "\n\n")
	}
	if data.Error != "" {
		b.WriteString(errorStyle.Render("error: "+data.Error) + "\n\n")
	}
	if data.Context != "" {
		b.WriteString(data.Context + "\n")
	}
	for _, field := range data.Fields {
		b.WriteString(field + "\n")
	}
	if data.Busy != "" {
		b.WriteString("\n" + data.Busy + "\n")
	}
	if data.Hints != "" {
		b.WriteString("\n" + mutedStyle.Render(data.Hints))
	}
	return strings.TrimSpace(b.String())
}

func RenderTaskPanel(data TaskPanelData) string {
	var b strings.Builder
	b.WriteString("My Todo List")
	if data.Account != "" {
		b.WriteString(mutedStyle.Render("  signed in as " + data.Account))
	}
	b.WriteString("\n\n")
	if data.AddFormView != "" {
		b.WriteString("add task:\n" + data.AddFormView + "\n")
		if data.AddError != "" {
			b.WriteString(errorStyle.Render("error: "+data.AddError) + "\n")
		}
		b.WriteString(mutedStyle.Render("[tab]field [enter]add [esc]cancel") + "\n\n")
	}
	switch {
	case data.Busy != "" && data.Count == 0:
		b.WriteString(data.Busy)
	case data.Count == 0:
		b.WriteString("No tasks yet. Add your first task above!")
	default:
		b.WriteString(data.ListView)
		if data.Busy != "" {
			b.WriteString("\n" + data.Busy)
		}
	}
	return strings.TrimSpace(b.String())
}

// Checkbox renders a task's status the way the list shows it. Expired boxes
// are disabled.
func Checkbox(status string) string {
	switch status {
	case "Completed":
		return "[x]"
	case "Expired":
		return "[-]"
	default:
		return "[ ]"
	}
}

// ExpiryLabel is empty for tasks without an expiry date.
func ExpiryLabel(status string, hasExpiry bool, remainingHours int) string {
	if !hasExpiry {
		return ""
	}
	if status == "Expired" {
		return "Expired"
	}
	return fmt.Sprintf("Expires in %d hrs", remainingHours)
}

func RenderCommandPalette(active bool, input string) string {
	if !active {
		return ""
	}
	return fmt.Sprintf("command: %s", input)
}

// RenderInterrupt shows an error that must be dismissed before the view
// accepts other keys.
func RenderInterrupt(body string) string {
	if strings.TrimSpace(body) == "" {
		return ""
	}
	return fmt.Sprintf("error: %s\npress [enter] to dismiss", body)
}

func RenderHelpPanel(data HelpPanelData) string {
	var b strings.Builder
	if data.Intro != "" {
		b.WriteString(data.Intro + "\n\n")
	}
	b.WriteString(fmt.Sprintf("help (%s):\n", strings.ToLower(data.Route)))
	b.WriteString(strings.Join(data.Bindings, "\n"))
	if data.HelpView != "" {
		b.WriteString("\n\n" + data.HelpView)
	}
	return b.String()
}
