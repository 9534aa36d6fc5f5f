package update

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/sandeepkv93/cloudtasks/internal/apperr"
	"github.com/sandeepkv93/cloudtasks/internal/commands"
	"github.com/sandeepkv93/cloudtasks/internal/model"
	"github.com/sandeepkv93/cloudtasks/internal/views"
)

func (m Model) fetchTasksCmd() tea.Cmd {
	tasks := m.tasks
	if tasks == nil {
		return nil
	}
	return func() tea.Msg {
		items, err := tasks.FetchAll(context.Background())
		return TasksLoadedMsg{Tasks: items, Err: err}
	}
}

// taskOpCmd runs a write; the controller refreshes the list after it.
func (m Model) taskOpCmd(op func(ctx context.Context, t Tasks) error) tea.Cmd {
	tasks := m.tasks
	if tasks == nil {
		return nil
	}
	return func() tea.Msg {
		err := op(context.Background(), tasks)
		return TasksLoadedMsg{Tasks: tasks.Tasks(), Err: err}
	}
}

func (m Model) onTasksLoaded(msg TasksLoadedMsg) (Model, tea.Cmd) {
	m.TaskView.Loading = false
	if msg.Tasks != nil || msg.Err == nil {
		m.TaskView.Items = msg.Tasks
	}
	m.clampCursor()
	m.syncTaskList()
	m.trackExpiries()
	if msg.Err != nil {
		m.LastError = msg.Err
		m.TaskView.Interrupt = apperr.Message(msg.Err)
		m.logger.Error().Err(msg.Err).Str("kind", string(apperr.KindOf(msg.Err))).Msg("task operation failed")
		return m, nil
	}
	return m, nil
}

func (m *Model) trackExpiries() {
	if m.scheduler == nil || m.tasks == nil {
		return
	}
	if _, err := m.scheduler.Track(m.TaskView.Items, m.tasks.Now()); err != nil {
		m.logger.Warn().Err(err).Msg("track task expiries")
	}
}

// onExpiryDue re-applies the overlay at the current clock so a task that
// just crossed its expiry reads as Expired without a refetch.
func (m Model) onExpiryDue(msg ExpiryDueMsg) Model {
	if m.tasks == nil {
		return m
	}
	m.TaskView.Items = model.ApplyExpiryOverlay(m.TaskView.Items, m.tasks.Now())
	m.syncTaskList()
	for _, task := range m.TaskView.Items {
		if task.ID == msg.Event.TaskID && task.Status == model.TaskStatusExpired {
			m.Status = StatusBar{Text: fmt.Sprintf("task expired: %s", task.Name)}
		}
	}
	return m
}

func (m *Model) clampCursor() {
	if m.TaskView.Cursor >= len(m.TaskView.Items) {
		m.TaskView.Cursor = len(m.TaskView.Items) - 1
	}
	if m.TaskView.Cursor < 0 {
		m.TaskView.Cursor = 0
	}
}

func (m *Model) syncTaskList() {
	items := make([]list.Item, 0, len(m.TaskView.Items))
	for i, task := range m.TaskView.Items {
		items = append(items, listItem{
			title:       fmt.Sprintf("%d. %s %s", i+1, views.Checkbox(string(task.Status)), task.Name),
			description: m.expiryLabel(task),
		})
	}
	m.taskList.SetItems(items)
	if len(items) > 0 {
		m.taskList.Select(m.TaskView.Cursor)
	}
}

func (m Model) expiryLabel(task model.Task) string {
	hours := 0
	if task.ExpiryDate != nil && m.tasks != nil {
		hours = m.tasks.RemainingHours(*task.ExpiryDate)
	}
	label := views.ExpiryLabel(string(task.Status), task.ExpiryDate != nil, hours)
	if label == "" {
		return string(task.Status)
	}
	return label
}

func (m Model) selectedTask() (model.Task, bool) {
	if m.TaskView.Cursor < 0 || m.TaskView.Cursor >= len(m.TaskView.Items) {
		return model.Task{}, false
	}
	return m.TaskView.Items[m.TaskView.Cursor], true
}

func (m Model) taskAt(index int) (model.Task, error) {
	if index < 1 || index > len(m.TaskView.Items) {
		return model.Task{}, &commands.CommandError{Code: commands.ErrCodeInvalidArgument, Message: fmt.Sprintf("no task #%d", index)}
	}
	return m.TaskView.Items[index-1], nil
}

func (m Model) handleTaskKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	if m.TaskView.Interrupt != "" {
		switch msg.String() {
		case "enter", "esc":
			m.TaskView.Interrupt = ""
		}
		return m, nil
	}
	if m.TaskView.Add.Active {
		return m.handleAddKey(msg)
	}

	switch msg.String() {
	case " ", "space", "x":
		task, ok := m.selectedTask()
		if !ok {
			return m, nil
		}
		if task.Status == model.TaskStatusExpired {
			m.Status = StatusBar{Text: "expired tasks cannot change", IsError: true}
			return m, nil
		}
		return m.runTaskOp(func(ctx context.Context, t Tasks) error { return t.Toggle(ctx, task.ID) })
	case "d":
		task, ok := m.selectedTask()
		if !ok {
			return m, nil
		}
		return m.runTaskOp(func(ctx context.Context, t Tasks) error { return t.Remove(ctx, task.ID) })
	case "r":
		m.TaskView.Loading = true
		return m, tea.Batch(m.fetchTasksCmd(), m.startSpinner())
	case "a":
		m.TaskView.Add = AddFormState{Active: true}
		m.addName.SetValue("")
		m.addExpiry.SetValue("")
		m.focusAddForm()
		return m, nil
	case "L":
		return m.logout()
	case "up", "k":
		if m.TaskView.Cursor > 0 {
			m.TaskView.Cursor--
		}
		m.syncTaskList()
		return m, nil
	case "down", "j":
		if m.TaskView.Cursor < len(m.TaskView.Items)-1 {
			m.TaskView.Cursor++
		}
		m.syncTaskList()
		return m, nil
	}
	return m, nil
}

func (m Model) runTaskOp(op func(ctx context.Context, t Tasks) error) (Model, tea.Cmd) {
	m.TaskView.Loading = true
	return m, tea.Batch(m.taskOpCmd(op), m.startSpinner())
}

func (m *Model) focusAddForm() {
	if m.TaskView.Add.Focus == 0 {
		m.addName.Focus()
		m.addExpiry.Blur()
	} else {
		m.addName.Blur()
		m.addExpiry.Focus()
	}
}

func (m Model) handleAddKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.TaskView.Add = AddFormState{}
		m.addName.Blur()
		m.addExpiry.Blur()
		return m, nil
	case "tab", "shift+tab", "down", "up":
		m.TaskView.Add.Focus = 1 - m.TaskView.Add.Focus
		m.focusAddForm()
		return m, nil
	case "enter":
		return m.submitAdd()
	}

	active := &m.addName
	if m.TaskView.Add.Focus == 1 {
		active = &m.addExpiry
	}
	if text, ok := typedText(msg); ok {
		active.SetValue(active.Value() + text)
		return m, nil
	}
	var cmd tea.Cmd
	*active, cmd = active.Update(msg)
	return m, cmd
}

func (m Model) submitAdd() (Model, tea.Cmd) {
	name := strings.TrimSpace(m.addName.Value())
	var expiry *time.Time
	if raw := strings.TrimSpace(m.addExpiry.Value()); raw != "" {
		due, err := commands.ParseDue(raw)
		if err != nil {
			m.TaskView.Add.Error = fmt.Sprintf("invalid expiry %q", raw)
			return m, nil
		}
		expiry = &due
	}
	m.TaskView.Add = AddFormState{}
	m.addName.Blur()
	m.addExpiry.Blur()
	if name == "" {
		return m, nil
	}
	return m.runTaskOp(func(ctx context.Context, t Tasks) error { return t.Create(ctx, name, expiry) })
}

// logout is local: it drops the session, the held list and any pending
// expiry events, then returns to login.
func (m Model) logout() (Model, tea.Cmd) {
	if m.sessions != nil {
		m.sessions.Logout(context.Background())
	}
	if m.tasks != nil {
		m.tasks.Reset()
	}
	if m.scheduler != nil {
		m.scheduler.Clear()
	}
	m.TaskView = TaskViewState{}
	m.syncTaskList()
	m.Status = StatusBar{Text: "signed out"}
	return m.NavigateTo(string(RouteLogin), NavState{})
}
