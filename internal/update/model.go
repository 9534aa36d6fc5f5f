package update

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/rs/zerolog"

	"github.com/sandeepkv93/cloudtasks/internal/model"
	"github.com/sandeepkv93/cloudtasks/internal/scheduler"
)

// Sessions is what the screens need from the session manager.
type Sessions interface {
	Restore(ctx context.Context)
	Restored() bool
	Login(ctx context.Context, username, password string) (model.Session, error)
	Register(ctx context.Context, username, password string) error
	Confirm(ctx context.Context, username, code string) error
	Logout(ctx context.Context)
	IsAuthenticated() bool
	Identity() (model.Claims, bool)
}

// Tasks is what the task view needs from the task controller.
type Tasks interface {
	FetchAll(ctx context.Context) ([]model.Task, error)
	Create(ctx context.Context, name string, expiry *time.Time) error
	UpdateStatus(ctx context.Context, id string, status model.TaskStatus) error
	Toggle(ctx context.Context, id string) error
	Remove(ctx context.Context, id string) error
	Tasks() []model.Task
	RemainingHours(expiry time.Time) int
	Now() time.Time
	Reset()
}

type StatusBar struct {
	Text    string
	IsError bool
}

type GlobalKeyMap struct {
	Help    string
	Palette string
	Quit    string
	// FormHelp toggles help on the sign-in screens, where printable keys
	// belong to the inputs.
	FormHelp string
}

type FormState struct {
	Focus  int
	Error  string
	Notice string
	Busy   bool
}

type ConfirmState struct {
	FormState
	Username string
}

type AddFormState struct {
	Active bool
	Focus  int
	Error  string
}

type TaskViewState struct {
	Items   []model.Task
	Cursor  int
	Loading bool
	Add     AddFormState
	// Interrupt is an error that blocks the task view until dismissed.
	Interrupt string
}

type CommandPaletteState struct {
	Active bool
	Input  string
}

type Model struct {
	Route       Route
	Location    Location
	Login       FormState
	Register    FormState
	Confirm     ConfirmState
	TaskView    TaskViewState
	Palette     CommandPaletteState
	HelpVisible bool
	Status      StatusBar
	Keys        GlobalKeyMap
	Quitting    bool
	LastError   error

	sessions     Sessions
	tasks        Tasks
	scheduler    *scheduler.Engine
	logger       zerolog.Logger
	initial      Location
	initialState NavState

	loginUser     textinput.Model
	loginPass     textinput.Model
	registerUser  textinput.Model
	registerPass  textinput.Model
	confirmCode   textinput.Model
	addName       textinput.Model
	addExpiry     textinput.Model
	commandInput  textinput.Model
	taskList      list.Model
	busySpinner   spinner.Model
	helpModel     help.Model
	spinnerActive bool
}

type listItem struct {
	title       string
	description string
}

func (i listItem) FilterValue() string { return i.title + " " + i.description }
func (i listItem) Title() string       { return i.title }
func (i listItem) Description() string { return i.description }

type RestoredMsg struct{}

type LoginResultMsg struct {
	Username string
	Err      error
}

type RegisterResultMsg struct {
	Username string
	Err      error
}

type ConfirmResultMsg struct {
	Username string
	Err      error
}

// TasksLoadedMsg carries the task list after a fetch or after a write and
// its follow-up fetch.
type TasksLoadedMsg struct {
	Tasks []model.Task
	Err   error
}

type NavigateMsg struct {
	To    string
	State NavState
}

type SetStatusMsg struct {
	Text    string
	IsError bool
}

type ClearStatusMsg struct{}

type AppErrorMsg struct {
	Err error
}

type ExpiryDueMsg struct {
	Event scheduler.ExpiryEvent
}

type Deps struct {
	Sessions  Sessions
	Tasks     Tasks
	Scheduler *scheduler.Engine
	Logger    zerolog.Logger
	// InitialRoute is where the user lands once the session is restored.
	InitialRoute string
}

func NewModel(deps Deps) Model {
	initial := deps.InitialRoute
	if initial == "" {
		initial = string(RouteTasks)
	}
	m := Model{
		Route:     RouteLoading,
		Keys:      GlobalKeyMap{Help: "?", Palette: "/", Quit: "q", FormHelp: "f1"},
		sessions:  deps.Sessions,
		tasks:     deps.Tasks,
		scheduler: deps.Scheduler,
		logger:    deps.Logger,
		initial:   ParseRoute(initial),
	}
	m.initBubbleComponents()
	// Init starts the spinner for the loading screen.
	m.spinnerActive = true
	return m
}

func (m *Model) initBubbleComponents() {
	m.loginUser = newInput("email> ", "Email address")
	m.loginPass = newInput("password> ", "Password")
	m.loginPass.EchoMode = textinput.EchoPassword

	m.registerUser = newInput("email> ", "Email address")
	m.registerPass = newInput("password> ", "Password")
	m.registerPass.EchoMode = textinput.EchoPassword

	m.confirmCode = newInput("code> ", "Confirmation code")

	m.addName = newInput("name> ", "Add a new task...")
	m.addExpiry = newInput("expires> ", "YYYY-MM-DDTHH:MM (default +24h)")

	m.commandInput = newInput("/", "")

	m.taskList = list.New([]list.Item{}, list.NewDefaultDelegate(), 60, 18)
	m.taskList.Title = "Tasks"
	m.taskList.SetShowHelp(false)
	m.taskList.SetFilteringEnabled(false)

	m.busySpinner = spinner.New()
	m.busySpinner.Spinner = spinner.Dot

	m.helpModel = help.New()
}

func newInput(prompt, placeholder string) textinput.Model {
	in := textinput.New()
	in.Prompt = prompt
	in.Placeholder = placeholder
	in.CharLimit = 256
	in.Width = 40
	return in
}
