package update

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/sandeepkv93/cloudtasks/internal/apperr"
)

const registeredNotice = "Registration successful! Please confirm your email before logging in."

// formInputs returns the inputs of the current screen in focus order.
func (m *Model) formInputs() []*textinput.Model {
	switch m.Route {
	case RouteLogin:
		return []*textinput.Model{&m.loginUser, &m.loginPass}
	case RouteRegister:
		return []*textinput.Model{&m.registerUser, &m.registerPass}
	case RouteConfirm:
		return []*textinput.Model{&m.confirmCode}
	default:
		return nil
	}
}

func (m *Model) formState() *FormState {
	switch m.Route {
	case RouteLogin:
		return &m.Login
	case RouteRegister:
		return &m.Register
	case RouteConfirm:
		return &m.Confirm.FormState
	default:
		return nil
	}
}

func (m *Model) focusForm() {
	inputs := m.formInputs()
	state := m.formState()
	if state == nil || len(inputs) == 0 {
		return
	}
	if state.Focus < 0 || state.Focus >= len(inputs) {
		state.Focus = 0
	}
	for i, in := range inputs {
		if i == state.Focus {
			in.Focus()
		} else {
			in.Blur()
		}
	}
}

func (m Model) handleFormKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	state := m.formState()
	inputs := m.formInputs()
	if state == nil {
		return m, nil
	}
	if state.Busy {
		return m, nil
	}

	switch msg.String() {
	case "tab", "down":
		state.Focus = (state.Focus + 1) % len(inputs)
		m.focusForm()
		return m, nil
	case "shift+tab", "up":
		state.Focus = (state.Focus - 1 + len(inputs)) % len(inputs)
		m.focusForm()
		return m, nil
	case "enter":
		return m.submitForm()
	case m.Keys.FormHelp:
		m.HelpVisible = !m.HelpVisible
		return m, nil
	case "ctrl+r":
		if m.Route == RouteLogin {
			return m.NavigateTo(string(RouteRegister), NavState{})
		}
	case "esc":
		if m.Route != RouteLogin {
			return m.NavigateTo(string(RouteLogin), NavState{})
		}
		return m, nil
	}

	active := inputs[state.Focus]
	if text, ok := typedText(msg); ok {
		active.SetValue(active.Value() + text)
		return m, nil
	}
	var cmd tea.Cmd
	*active, cmd = active.Update(msg)
	return m, cmd
}

func (m Model) submitForm() (Model, tea.Cmd) {
	switch m.Route {
	case RouteLogin:
		username := strings.TrimSpace(m.loginUser.Value())
		password := m.loginPass.Value()
		m.Login.Error = ""
		m.Login.Busy = true
		return m, tea.Batch(m.loginCmd(username, password), m.startSpinner())
	case RouteRegister:
		username := strings.TrimSpace(m.registerUser.Value())
		password := m.registerPass.Value()
		m.Register.Error = ""
		m.Register.Busy = true
		return m, tea.Batch(m.registerCmd(username, password), m.startSpinner())
	case RouteConfirm:
		m.Confirm.Error = ""
		m.Confirm.Busy = true
		return m, tea.Batch(m.confirmCmd(m.Confirm.Username, strings.TrimSpace(m.confirmCode.Value())), m.startSpinner())
	}
	return m, nil
}

func (m Model) loginCmd(username, password string) tea.Cmd {
	sessions := m.sessions
	return func() tea.Msg {
		_, err := sessions.Login(context.Background(), username, password)
		return LoginResultMsg{Username: username, Err: err}
	}
}

func (m Model) registerCmd(username, password string) tea.Cmd {
	sessions := m.sessions
	return func() tea.Msg {
		return RegisterResultMsg{Username: username, Err: sessions.Register(context.Background(), username, password)}
	}
}

func (m Model) confirmCmd(username, code string) tea.Cmd {
	sessions := m.sessions
	return func() tea.Msg {
		return ConfirmResultMsg{Username: username, Err: sessions.Confirm(context.Background(), username, code)}
	}
}

func (m Model) onLoginResult(msg LoginResultMsg) (Model, tea.Cmd) {
	m.Login.Busy = false
	if msg.Err == nil {
		m.Login = FormState{}
		m.loginPass.SetValue("")
		m.Status = StatusBar{Text: "signed in"}
		return m.NavigateTo(string(RouteTasks), NavState{})
	}
	m.LastError = msg.Err
	if apperr.IsKind(msg.Err, apperr.KindUnconfirmedAccount) {
		next, cmd := m.NavigateTo(confirmPath(msg.Username), NavState{})
		next.Confirm.Notice = apperr.Message(msg.Err)
		return next, cmd
	}
	m.Login.Error = apperr.Message(msg.Err)
	return m, nil
}

func (m Model) onRegisterResult(msg RegisterResultMsg) (Model, tea.Cmd) {
	m.Register.Busy = false
	if msg.Err != nil {
		m.LastError = msg.Err
		m.Register.Error = apperr.Message(msg.Err)
		return m, nil
	}
	m.registerPass.SetValue("")
	next, cmd := m.Navigate(Location{Route: RouteConfirm}, NavState{Username: msg.Username})
	next.Confirm.Notice = registeredNotice
	next.Status = StatusBar{Text: registeredNotice}
	return next, cmd
}

func (m Model) onConfirmResult(msg ConfirmResultMsg) (Model, tea.Cmd) {
	m.Confirm.Busy = false
	if msg.Err != nil {
		m.LastError = msg.Err
		m.Confirm.Error = apperr.Message(msg.Err)
		return m, nil
	}
	next, cmd := m.Navigate(Location{Route: RouteLogin}, NavState{Username: msg.Username})
	next.Login.Notice = "Account confirmed. Please sign in."
	return next, cmd
}
