package update

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/sandeepkv93/cloudtasks/internal/commands"
	"github.com/sandeepkv93/cloudtasks/internal/model"
)

func (m Model) handlePaletteKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.Palette = CommandPaletteState{}
		m.commandInput.SetValue("")
		m.commandInput.Blur()
		m.Status = StatusBar{Text: "command palette closed"}
		return m, nil
	case "enter":
		m.Palette.Input = m.commandInput.Value()
		return m.executePaletteCommand()
	}
	if text, ok := typedText(msg); ok {
		m.commandInput.SetValue(m.commandInput.Value() + text)
		m.Palette.Input = m.commandInput.Value()
		return m, nil
	}
	var cmd tea.Cmd
	m.commandInput, cmd = m.commandInput.Update(msg)
	m.Palette.Input = m.commandInput.Value()
	return m, cmd
}

func (m Model) openPalette() Model {
	m.Palette = CommandPaletteState{Active: true}
	m.commandInput.SetValue("")
	m.commandInput.Focus()
	m.Status = StatusBar{Text: "command palette active"}
	return m
}

func (m Model) executePaletteCommand() (Model, tea.Cmd) {
	raw := strings.TrimSpace(m.Palette.Input)
	m.Palette = CommandPaletteState{}
	m.commandInput.SetValue("")
	m.commandInput.Blur()

	cmd, err := commands.Parse(raw)
	if err != nil {
		m.Status = StatusBar{Text: err.Error(), IsError: true}
		return m, nil
	}

	var (
		next   = m
		teaCmd tea.Cmd
	)
	setStatus := func(target model.Task, status model.TaskStatus) (commands.Result, error) {
		next, teaCmd = next.runTaskOp(func(ctx context.Context, t Tasks) error {
			return t.UpdateStatus(ctx, target.ID, status)
		})
		return commands.Result{Message: fmt.Sprintf("marking %q %s", target.Name, strings.ToLower(string(status)))}, nil
	}

	res, err := commands.Execute(cmd, commands.Handlers{
		Add: func(a commands.AddArgs) (commands.Result, error) {
			next, teaCmd = next.runTaskOp(func(ctx context.Context, t Tasks) error {
				return t.Create(ctx, a.Name, a.Due)
			})
			return commands.Result{Message: fmt.Sprintf("adding task: %s", a.Name)}, nil
		},
		Done: func(a commands.TargetArgs) (commands.Result, error) {
			target, err := next.taskAt(a.Index)
			if err != nil {
				return commands.Result{}, err
			}
			return setStatus(target, model.TaskStatusCompleted)
		},
		Undo: func(a commands.TargetArgs) (commands.Result, error) {
			target, err := next.taskAt(a.Index)
			if err != nil {
				return commands.Result{}, err
			}
			return setStatus(target, model.TaskStatusPending)
		},
		Remove: func(a commands.TargetArgs) (commands.Result, error) {
			target, err := next.taskAt(a.Index)
			if err != nil {
				return commands.Result{}, err
			}
			next, teaCmd = next.runTaskOp(func(ctx context.Context, t Tasks) error {
				return t.Remove(ctx, target.ID)
			})
			return commands.Result{Message: fmt.Sprintf("deleting task: %s", target.Name)}, nil
		},
		Refresh: func() (commands.Result, error) {
			next.TaskView.Loading = true
			teaCmd = tea.Batch(next.fetchTasksCmd(), next.startSpinner())
			return commands.Result{Message: "refreshing tasks"}, nil
		},
		Logout: func() (commands.Result, error) {
			next, teaCmd = next.logout()
			return commands.Result{Message: "signed out"}, nil
		},
	})
	if err != nil {
		m.Status = StatusBar{Text: err.Error(), IsError: true}
		return m, nil
	}
	next.Status = StatusBar{Text: res.Message}
	return next, teaCmd
}
