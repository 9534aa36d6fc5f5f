package update

import tea "github.com/charmbracelet/bubbletea"

// typedText returns the printable text a key press adds to an input.
func typedText(msg tea.KeyMsg) (string, bool) {
	switch msg.Type {
	case tea.KeyRunes:
		return string(msg.Runes), true
	case tea.KeySpace:
		return " ", true
	default:
		return "", false
	}
}
