package update

import (
	"net/url"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
)

type Route string

const (
	RouteLoading  Route = "loading"
	RouteLogin    Route = "login"
	RouteRegister Route = "register"
	RouteConfirm  Route = "confirm"
	RouteTasks    Route = "tasks"
)

// Location is a parsed route string such as "confirm?username=a%40b.c".
type Location struct {
	Route Route
	Query url.Values
}

// NavState is carried along with a navigation and wins over the query.
type NavState struct {
	Username string
}

func ParseRoute(raw string) Location {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "/")
	path, query, _ := strings.Cut(raw, "?")
	values, err := url.ParseQuery(query)
	if err != nil {
		values = url.Values{}
	}
	route := Route(strings.ToLower(strings.Trim(path, "/")))
	if route == "todo" {
		route = RouteTasks
	}
	return Location{Route: route, Query: values}
}

// Resolve applies the route guard: the task view requires a session and
// anything unknown lands on login.
func Resolve(route Route, authenticated bool) Route {
	switch route {
	case RouteLogin, RouteRegister, RouteConfirm:
		return route
	case RouteTasks:
		if authenticated {
			return RouteTasks
		}
		return RouteLogin
	default:
		return RouteLogin
	}
}

// ConfirmUsername picks the account to confirm: navigation state first,
// then the username query parameter.
func ConfirmUsername(state NavState, loc Location) string {
	if u := strings.TrimSpace(state.Username); u != "" {
		return u
	}
	if loc.Query != nil {
		return strings.TrimSpace(loc.Query.Get("username"))
	}
	return ""
}

func confirmPath(username string) string {
	return string(RouteConfirm) + "?username=" + url.QueryEscape(username)
}

func (m Model) authenticated() bool {
	return m.sessions != nil && m.sessions.IsAuthenticated()
}

// Navigate moves to loc after the guard and prepares the target screen.
func (m Model) Navigate(loc Location, state NavState) (Model, tea.Cmd) {
	if m.Route == RouteLoading && (m.sessions == nil || !m.sessions.Restored()) {
		m.initial = loc
		m.initialState = state
		return m, nil
	}

	target := Resolve(loc.Route, m.authenticated())
	if target != loc.Route {
		m.logger.Debug().Str("requested", string(loc.Route)).Str("route", string(target)).Msg("route redirected")
		loc = Location{Route: target, Query: url.Values{}}
	}
	m.Route = target
	m.Location = loc
	m.HelpVisible = false
	m.Palette = CommandPaletteState{}

	switch target {
	case RouteLogin:
		m.Login.Busy = false
		m.Login.Focus = 0
		if state.Username != "" {
			m.loginUser.SetValue(state.Username)
			m.Login.Focus = 1
		}
		m.loginPass.SetValue("")
		m.focusForm()
		return m, nil
	case RouteRegister:
		m.Register = FormState{}
		m.registerPass.SetValue("")
		m.focusForm()
		return m, nil
	case RouteConfirm:
		m.Confirm = ConfirmState{Username: ConfirmUsername(state, loc)}
		m.confirmCode.SetValue("")
		m.focusForm()
		return m, nil
	case RouteTasks:
		m.TaskView.Interrupt = ""
		m.TaskView.Add = AddFormState{}
		m.TaskView.Loading = true
		return m, tea.Batch(m.fetchTasksCmd(), m.startSpinner())
	}
	return m, nil
}

func (m Model) NavigateTo(raw string, state NavState) (Model, tea.Cmd) {
	return m.Navigate(ParseRoute(raw), state)
}
