package update

import (
	"fmt"

	"github.com/charmbracelet/bubbles/key"

	"github.com/sandeepkv93/cloudtasks/internal/views"
)

type KeyBinding struct {
	Key    string
	Action string
}

type helpKeyMap struct {
	short []key.Binding
	full  [][]key.Binding
}

func (k helpKeyMap) ShortHelp() []key.Binding  { return k.short }
func (k helpKeyMap) FullHelp() [][]key.Binding { return k.full }

const paletteHelp = "Commands: `add <name> [due:YYYY-MM-DDTHH:MM]`, `done <n>`, `undo <n>`, `rm <n>`, `refresh`, `logout`."

func (m Model) renderHelpIfVisible() string {
	if !m.HelpVisible {
		return ""
	}
	return m.renderHelpView()
}

func (m Model) renderHelpView() string {
	bindings := m.helpBindings()
	var plain []string
	for _, kb := range m.routeBindings() {
		plain = append(plain, fmt.Sprintf("- %s: %s", kb.Key, kb.Action))
	}
	intro := ""
	if m.Route == RouteTasks {
		intro = views.RenderMarkdown(paletteHelp)
	}
	return views.RenderHelpPanel(views.HelpPanelData{
		Route:    string(m.Route),
		Bindings: plain,
		Intro:    intro,
		HelpView: m.helpModel.View(helpKeyMap{
			short: bindings,
			full:  [][]key.Binding{bindings},
		}),
	})
}

func (m Model) routeBindings() []KeyBinding {
	switch m.Route {
	case RouteLogin:
		return []KeyBinding{
			{Key: "tab", Action: "next field"},
			{Key: "enter", Action: "sign in"},
			{Key: "ctrl+r", Action: "create an account"},
			{Key: m.Keys.FormHelp, Action: "toggle help panel"},
			{Key: "ctrl+c", Action: "quit"},
		}
	case RouteRegister:
		return []KeyBinding{
			{Key: "tab", Action: "next field"},
			{Key: "enter", Action: "register"},
			{Key: "esc", Action: "back to sign in"},
			{Key: m.Keys.FormHelp, Action: "toggle help panel"},
		}
	case RouteConfirm:
		return []KeyBinding{
			{Key: "enter", Action: "confirm account"},
			{Key: "esc", Action: "back to sign in"},
			{Key: m.Keys.FormHelp, Action: "toggle help panel"},
		}
	case RouteTasks:
		return []KeyBinding{
			{Key: "j/k", Action: "move selection"},
			{Key: "space", Action: "toggle completed"},
			{Key: "a", Action: "add task"},
			{Key: "d", Action: "delete task"},
			{Key: "r", Action: "refresh"},
			{Key: "L", Action: "log out"},
			{Key: m.Keys.Palette, Action: "open command palette"},
			{Key: m.Keys.Help, Action: "toggle help panel"},
			{Key: m.Keys.Quit, Action: "quit app"},
		}
	default:
		return []KeyBinding{{Key: "ctrl+c", Action: "quit"}}
	}
}

func (m Model) helpBindings() []key.Binding {
	out := make([]key.Binding, 0, len(m.routeBindings()))
	for _, kb := range m.routeBindings() {
		out = append(out, key.NewBinding(key.WithKeys(kb.Key), key.WithHelp(kb.Key, kb.Action)))
	}
	return out
}

func (m Model) footer() string {
	switch m.Route {
	case RouteTasks:
		return fmt.Sprintf("keys: space toggle | a add | d delete | r refresh | L logout | %s cmd | %s help | %s quit", m.Keys.Palette, m.Keys.Help, m.Keys.Quit)
	case RouteLoading:
		return ""
	default:
		return fmt.Sprintf("keys: tab field | enter submit | %s help | ctrl+c quit", m.Keys.FormHelp)
	}
}
