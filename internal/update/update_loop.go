package update

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/sandeepkv93/cloudtasks/internal/scheduler"
	"github.com/sandeepkv93/cloudtasks/internal/views"
)

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.restoreCmd(), m.busySpinner.Tick}
	if m.scheduler != nil {
		cmds = append(cmds, waitForExpiryCmd(m.scheduler.C()))
	}
	return tea.Batch(cmds...)
}

func (m Model) restoreCmd() tea.Cmd {
	sessions := m.sessions
	return func() tea.Msg {
		if sessions != nil {
			sessions.Restore(context.Background())
		}
		return RestoredMsg{}
	}
}

func waitForExpiryCmd(ch <-chan scheduler.ExpiryEvent) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return nil
		}
		return ExpiryDueMsg{Event: ev}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch typed := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(typed)
	case spinner.TickMsg:
		if m.busy() {
			var cmd tea.Cmd
			m.busySpinner, cmd = m.busySpinner.Update(typed)
			return m, cmd
		}
		m.spinnerActive = false
		return m, nil
	case RestoredMsg:
		m.Route = ""
		m.logger.Debug().Bool("authenticated", m.authenticated()).Msg("session restore finished")
		return m.Navigate(m.initial, m.initialState)
	case NavigateMsg:
		return m.NavigateTo(typed.To, typed.State)
	case LoginResultMsg:
		return m.onLoginResult(typed)
	case RegisterResultMsg:
		return m.onRegisterResult(typed)
	case ConfirmResultMsg:
		return m.onConfirmResult(typed)
	case TasksLoadedMsg:
		if m.Route != RouteTasks {
			return m, nil
		}
		return m.onTasksLoaded(typed)
	case ExpiryDueMsg:
		next := m.onExpiryDue(typed)
		if m.scheduler != nil {
			return next, waitForExpiryCmd(m.scheduler.C())
		}
		return next, nil
	case SetStatusMsg:
		m.Status = StatusBar{Text: typed.Text, IsError: typed.IsError}
		return m, nil
	case ClearStatusMsg:
		m.Status = StatusBar{}
		return m, nil
	case AppErrorMsg:
		m.LastError = typed.Err
		if typed.Err != nil {
			m.Status = StatusBar{Text: typed.Err.Error(), IsError: true}
		}
		return m, nil
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		m.Quitting = true
		return m, tea.Quit
	}

	switch m.Route {
	case RouteLoading:
		return m, nil
	case RouteLogin, RouteRegister, RouteConfirm:
		return m.handleFormKey(msg)
	}

	if m.Palette.Active {
		return m.handlePaletteKey(msg)
	}
	if m.TaskView.Interrupt == "" && !m.TaskView.Add.Active {
		switch msg.String() {
		case m.Keys.Palette:
			return m.openPalette(), nil
		case m.Keys.Help:
			m.HelpVisible = !m.HelpVisible
			return m, nil
		case m.Keys.Quit:
			m.Quitting = true
			return m, tea.Quit
		}
	}
	return m.handleTaskKey(msg)
}

func (m Model) busy() bool {
	return m.Route == RouteLoading ||
		m.Login.Busy || m.Register.Busy || m.Confirm.Busy ||
		m.TaskView.Loading
}

func (m *Model) startSpinner() tea.Cmd {
	if m.spinnerActive {
		return nil
	}
	m.spinnerActive = true
	return m.busySpinner.Tick
}

func (m Model) busyLabel(label string, busy bool) string {
	if !busy {
		return ""
	}
	return fmt.Sprintf("%s %s", m.busySpinner.View(), label)
}

func (m Model) View() string {
	status := ""
	if m.Status.Text != "" {
		if m.Status.IsError {
			status = fmt.Sprintf("status: error: %s", m.Status.Text)
		} else {
			status = fmt.Sprintf("status: %s", m.Status.Text)
		}
	}

	left := ""
	right := ""
	notification := ""
	switch m.Route {
	case RouteLoading:
		left = views.RenderLoading(m.busySpinner.View())
	case RouteLogin:
		left = views.RenderForm(views.FormData{
			Title:  "Sign in to your account",
			Fields: []string{m.loginUser.View(), m.loginPass.View()},
			Notice: m.Login.Notice,
			Error:  m.Login.Error,
			Busy:   m.busyLabel("Signing in...", m.Login.Busy),
			Hints:  "[enter]sign in [ctrl+r]create an account",
		})
	case RouteRegister:
		left = views.RenderForm(views.FormData{
			Title:  "Create your account",
			Fields: []string{m.registerUser.View(), m.registerPass.View()},
			Error:  m.Register.Error,
			Busy:   m.busyLabel("Registering...", m.Register.Busy),
			Hints:  "[enter]register [esc]back to sign in",
		})
	case RouteConfirm:
		account := m.Confirm.Username
		if account == "" {
			account = "(unknown)"
		}
		left = views.RenderForm(views.FormData{
			Title:   "Confirm Your Account",
			Context: "account: " + account,
			Fields:  []string{m.confirmCode.View()},
			Notice:  m.Confirm.Notice,
			Error:   m.Confirm.Error,
			Busy:    m.busyLabel("Confirming...", m.Confirm.Busy),
			Hints:   "[enter]confirm [esc]back to sign in",
		})
	case RouteTasks:
		addForm := ""
		if m.TaskView.Add.Active {
			addForm = m.addName.View() + "\n" + m.addExpiry.View()
		}
		left = views.RenderTaskPanel(views.TaskPanelData{
			Account:     m.account(),
			ListView:    m.taskList.View(),
			Count:       len(m.TaskView.Items),
			AddFormView: addForm,
			AddError:    m.TaskView.Add.Error,
			Busy:        m.busyLabel("Loading tasks...", m.TaskView.Loading),
		})
		right = strings.TrimSpace(views.RenderCommandPalette(m.Palette.Active, m.commandInput.View()) + "\n" + m.renderHelpIfVisible())
		notification = views.RenderInterrupt(m.TaskView.Interrupt)
	}

	switch m.Route {
	case RouteLogin, RouteRegister, RouteConfirm:
		right = m.renderHelpIfVisible()
	}

	return views.RenderApp(views.AppData{
		Header:       fmt.Sprintf("cloudtasks | route: %s", m.Route),
		LeftPane:     left,
		RightPane:    right,
		StatusLine:   status,
		StatusError:  m.Status.IsError,
		Notification: notification,
		Footer:       m.footer(),
	})
}

func (m Model) account() string {
	if m.sessions == nil {
		return ""
	}
	claims, ok := m.sessions.Identity()
	if !ok {
		return ""
	}
	return claims.DisplayName()
}
