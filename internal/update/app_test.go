package update

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/sandeepkv93/cloudtasks/internal/backend/taskapi"
	"github.com/sandeepkv93/cloudtasks/internal/httpapi"
	"github.com/sandeepkv93/cloudtasks/internal/identity"
	"github.com/sandeepkv93/cloudtasks/internal/model"
	"github.com/sandeepkv93/cloudtasks/internal/scheduler"
	"github.com/sandeepkv93/cloudtasks/internal/session"
	"github.com/sandeepkv93/cloudtasks/internal/storage"
	"github.com/sandeepkv93/cloudtasks/internal/tasks"
	"github.com/sandeepkv93/cloudtasks/internal/testutil"
)

type appHarness struct {
	t        *testing.T
	fake     *testutil.FakeBackend
	store    *storage.SQLiteRepository
	sessions *session.Manager
	tasks    *tasks.Controller
	now      time.Time
}

func newAppHarness(t *testing.T) *appHarness {
	t.Helper()
	fake := testutil.NewFakeBackend(t)
	store, err := storage.Open(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	h := &appHarness{
		t:     t,
		fake:  fake,
		store: store,
		now:   time.Date(2026, 2, 9, 12, 0, 0, 0, time.UTC),
	}
	h.sessions = h.newSessions()
	h.tasks = h.newTasks(h.sessions)
	return h
}

func (h *appHarness) newSessions() *session.Manager {
	auth := identity.New(httpapi.New(h.fake.URL(), h.fake.Client(), zerolog.Nop()))
	return session.NewManager(auth, h.store, session.DefaultKey, zerolog.Nop())
}

func (h *appHarness) newTasks(sessions *session.Manager) *tasks.Controller {
	backend := taskapi.New(h.fake.URL(), h.fake.Client(), zerolog.Nop())
	return tasks.NewController(backend, sessions, tasks.Options{
		Clock:  func() time.Time { return h.now },
		Logger: zerolog.Nop(),
	})
}

func (h *appHarness) model(route string) Model {
	return NewModel(Deps{
		Sessions:     h.sessions,
		Tasks:        h.tasks,
		Logger:       zerolog.Nop(),
		InitialRoute: route,
	})
}

// start runs Init and everything it triggers.
func (h *appHarness) start(route string) Model {
	m := h.model(route)
	return drive(h.t, m, m.Init())
}

// drive runs cmd and feeds every resulting message back into the model,
// the way the program loop would. Spinner ticks are dropped.
func drive(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	queue := []tea.Cmd{cmd}
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		if next == nil {
			continue
		}
		switch msg := next().(type) {
		case nil:
		case tea.BatchMsg:
			queue = append(queue, msg...)
		case spinner.TickMsg, tea.QuitMsg:
		default:
			updated, follow := m.Update(msg)
			m = updated.(Model)
			queue = append(queue, follow)
		}
	}
	return m
}

func send(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	updated, cmd := m.Update(msg)
	return drive(t, updated.(Model), cmd)
}

func typeText(t *testing.T, m Model, text string) Model {
	t.Helper()
	return send(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(text)})
}

func press(t *testing.T, m Model, k tea.KeyType) Model {
	t.Helper()
	return send(t, m, tea.KeyMsg{Type: k})
}

func signIn(t *testing.T, m Model, username, password string) Model {
	t.Helper()
	m = typeText(t, m, username)
	m = press(t, m, tea.KeyTab)
	m = typeText(t, m, password)
	return press(t, m, tea.KeyEnter)
}

func (h *appHarness) expiry(d time.Duration) *string {
	v := h.now.Add(d).Format(time.RFC3339)
	return &v
}

func TestNewModelStartsOnLoadingScreen(t *testing.T) {
	h := newAppHarness(t)
	m := h.model("")
	if m.Route != RouteLoading {
		t.Fatalf("expected loading route, got %q", m.Route)
	}
	if !strings.Contains(m.View(), "Loading...") {
		t.Fatalf("expected loading screen: %q", m.View())
	}
	if m.Keys.Quit != "q" || m.Keys.Palette != "/" {
		t.Fatalf("unexpected keys: %+v", m.Keys)
	}
}

func TestRestoreWithoutSessionRedirectsToLogin(t *testing.T) {
	h := newAppHarness(t)
	m := h.start("tasks")
	if m.Route != RouteLogin {
		t.Fatalf("expected login route, got %q", m.Route)
	}
	if h.fake.Calls("GET /tasks") != 0 {
		t.Fatal("signed-out start must not fetch tasks")
	}
}

func TestRestoredSessionOpensTaskView(t *testing.T) {
	h := newAppHarness(t)
	h.fake.AddUser("user@example.com", "hunter22", true)
	h.fake.SeedTask("user@example.com", testutil.WireTask{TaskId: "task-1", TaskName: "Buy milk", ExpiryDate: h.expiry(24 * time.Hour)})
	if _, err := h.sessions.Login(context.Background(), "user@example.com", "hunter22"); err != nil {
		t.Fatalf("login: %v", err)
	}

	// A fresh process: new manager and controller over the same store.
	h.sessions = h.newSessions()
	h.tasks = h.newTasks(h.sessions)
	m := h.start("")

	if m.Route != RouteTasks {
		t.Fatalf("expected tasks route, got %q", m.Route)
	}
	if h.fake.Calls("POST /auth") != 1 {
		t.Fatalf("restore must not sign in again, got %d auth calls", h.fake.Calls("POST /auth"))
	}
	if len(m.TaskView.Items) != 1 || m.TaskView.Items[0].Name != "Buy milk" {
		t.Fatalf("unexpected items: %#v", m.TaskView.Items)
	}
	out := m.View()
	if !strings.Contains(out, "Buy milk") || !strings.Contains(out, "Expires in 24 hrs") {
		t.Fatalf("expected task row in view: %q", out)
	}
	if !strings.Contains(out, "signed in as user@example.com") {
		t.Fatalf("expected account in view: %q", out)
	}
}

func TestLoginShowsTasks(t *testing.T) {
	h := newAppHarness(t)
	h.fake.AddUser("user@example.com", "hunter22", true)
	m := h.start("")

	m = signIn(t, m, "user@example.com", "hunter22")
	if m.Route != RouteTasks {
		t.Fatalf("expected tasks route after login, got %q (error %q)", m.Route, m.Login.Error)
	}
	if !h.sessions.IsAuthenticated() {
		t.Fatal("expected session after login")
	}
	if !strings.Contains(m.View(), "No tasks yet. Add your first task above!") {
		t.Fatalf("expected empty list message: %q", m.View())
	}
}

func TestLoginFailureShowsInlineError(t *testing.T) {
	h := newAppHarness(t)
	h.fake.AddUser("user@example.com", "hunter22", true)
	m := h.start("")

	m = signIn(t, m, "user@example.com", "wrong")
	if m.Route != RouteLogin {
		t.Fatalf("expected to stay on login, got %q", m.Route)
	}
	if m.Login.Error != "Incorrect username or password." {
		t.Fatalf("unexpected error: %q", m.Login.Error)
	}
	if !strings.Contains(m.View(), "Incorrect username or password.") {
		t.Fatalf("expected error in view: %q", m.View())
	}
}

func TestUnconfirmedLoginOpensConfirmWithUsername(t *testing.T) {
	h := newAppHarness(t)
	h.fake.AddUser("user@example.com", "hunter22", false)
	m := h.start("")

	m = signIn(t, m, "user@example.com", "hunter22")
	if m.Route != RouteConfirm {
		t.Fatalf("expected confirm route, got %q", m.Route)
	}
	if m.Confirm.Username != "user@example.com" {
		t.Fatalf("expected username carried to confirm, got %q", m.Confirm.Username)
	}
	if m.Location.Query.Get("username") != "user@example.com" {
		t.Fatalf("expected username query, got %v", m.Location.Query)
	}
}

func TestRegisterConfirmLoginFlow(t *testing.T) {
	h := newAppHarness(t)
	m := h.start("register")
	if m.Route != RouteRegister {
		t.Fatalf("expected register route, got %q", m.Route)
	}

	m = signIn(t, m, "new@example.com", "secret12")
	if m.Route != RouteConfirm {
		t.Fatalf("expected confirm after register, got %q (error %q)", m.Route, m.Register.Error)
	}
	if m.Confirm.Username != "new@example.com" {
		t.Fatalf("unexpected confirm username: %q", m.Confirm.Username)
	}
	if m.Confirm.Notice != "Registration successful! Please confirm your email before logging in." {
		t.Fatalf("unexpected notice: %q", m.Confirm.Notice)
	}

	m = typeText(t, m, "000000")
	m = press(t, m, tea.KeyEnter)
	if m.Route != RouteConfirm || m.Confirm.Error == "" {
		t.Fatalf("expected confirm error for wrong code, route=%q err=%q", m.Route, m.Confirm.Error)
	}

	m.confirmCode.SetValue("")
	m = typeText(t, m, testutil.ConfirmationCode)
	m = press(t, m, tea.KeyEnter)
	if m.Route != RouteLogin {
		t.Fatalf("expected login after confirm, got %q (error %q)", m.Route, m.Confirm.Error)
	}
	if m.loginUser.Value() != "new@example.com" {
		t.Fatalf("expected username prefilled, got %q", m.loginUser.Value())
	}

	m = typeText(t, m, "secret12")
	m = press(t, m, tea.KeyEnter)
	if m.Route != RouteTasks {
		t.Fatalf("expected tasks after login, got %q (error %q)", m.Route, m.Login.Error)
	}
}

func TestConfirmWithoutUsername(t *testing.T) {
	h := newAppHarness(t)
	m := h.start("confirm")
	if m.Route != RouteConfirm || m.Confirm.Username != "" {
		t.Fatalf("unexpected confirm state: route=%q user=%q", m.Route, m.Confirm.Username)
	}
	m = typeText(t, m, "123456")
	m = press(t, m, tea.KeyEnter)
	if m.Confirm.Error != "Username is required" {
		t.Fatalf("unexpected error: %q", m.Confirm.Error)
	}
	if h.fake.Calls("POST /confirm") != 0 {
		t.Fatal("expected no confirm request")
	}
}

func TestConfirmRouteReadsQueryUsername(t *testing.T) {
	h := newAppHarness(t)
	m := h.start("confirm?username=" + "a%40b.c")
	if m.Confirm.Username != "a@b.c" {
		t.Fatalf("expected username from query, got %q", m.Confirm.Username)
	}
	m = send(t, m, NavigateMsg{To: "confirm?username=query%40example.com", State: NavState{Username: "state@example.com"}})
	if m.Confirm.Username != "state@example.com" {
		t.Fatalf("navigation state must win over query, got %q", m.Confirm.Username)
	}
}

func loggedIn(t *testing.T, h *appHarness) Model {
	t.Helper()
	h.fake.AddUser("user@example.com", "hunter22", true)
	m := h.start("")
	m = signIn(t, m, "user@example.com", "hunter22")
	if m.Route != RouteTasks {
		t.Fatalf("expected tasks route, got %q", m.Route)
	}
	return m
}

func TestAddTaskWithDefaultExpiry(t *testing.T) {
	h := newAppHarness(t)
	m := loggedIn(t, h)

	m = typeText(t, m, "a")
	if !m.TaskView.Add.Active {
		t.Fatal("expected add form")
	}
	m = typeText(t, m, "Buy milk")
	m = press(t, m, tea.KeyEnter)

	if len(m.TaskView.Items) != 1 {
		t.Fatalf("expected one task, got %#v", m.TaskView.Items)
	}
	got := m.TaskView.Items[0]
	if got.Name != "Buy milk" || got.Status != model.TaskStatusPending {
		t.Fatalf("unexpected task: %#v", got)
	}
	if got.ExpiryDate == nil || !got.ExpiryDate.Equal(h.now.Add(24*time.Hour)) {
		t.Fatalf("expected expiry now+24h, got %v", got.ExpiryDate)
	}
	if !strings.Contains(m.View(), "Expires in 24 hrs") {
		t.Fatalf("expected remaining hours in view: %q", m.View())
	}
}

func TestAddTaskRejectsBadExpiry(t *testing.T) {
	h := newAppHarness(t)
	m := loggedIn(t, h)

	m = typeText(t, m, "a")
	m = typeText(t, m, "Buy milk")
	m = press(t, m, tea.KeyTab)
	m = typeText(t, m, "someday")
	m = press(t, m, tea.KeyEnter)
	if !m.TaskView.Add.Active || m.TaskView.Add.Error == "" {
		t.Fatalf("expected add form error, got %+v", m.TaskView.Add)
	}
	if h.fake.Calls("POST /tasks") != 0 {
		t.Fatal("invalid expiry must not reach the backend")
	}
}

func TestToggleWithSpace(t *testing.T) {
	h := newAppHarness(t)
	h.fake.AddUser("user@example.com", "hunter22", true)
	h.fake.SeedTask("user@example.com", testutil.WireTask{TaskId: "task-1", TaskName: "Buy milk", ExpiryDate: h.expiry(time.Hour)})
	m := h.start("")
	m = signIn(t, m, "user@example.com", "hunter22")

	m = send(t, m, tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}})
	if h.fake.Tasks("user@example.com")[0].Status != "Completed" {
		t.Fatal("expected server status Completed")
	}
	if m.TaskView.Items[0].Status != model.TaskStatusCompleted {
		t.Fatalf("expected refreshed status, got %s", m.TaskView.Items[0].Status)
	}
	if !strings.Contains(m.View(), "[x] Buy milk") {
		t.Fatalf("expected checked box: %q", m.View())
	}
}

func TestExpiredTaskIsNotToggled(t *testing.T) {
	h := newAppHarness(t)
	h.fake.AddUser("user@example.com", "hunter22", true)
	h.fake.SeedTask("user@example.com", testutil.WireTask{TaskId: "task-1", TaskName: "Old", ExpiryDate: h.expiry(-time.Hour)})
	m := h.start("")
	m = signIn(t, m, "user@example.com", "hunter22")

	if m.TaskView.Items[0].Status != model.TaskStatusExpired {
		t.Fatalf("expected Expired overlay, got %s", m.TaskView.Items[0].Status)
	}
	if !strings.Contains(m.View(), "[-] Old") || !strings.Contains(m.View(), "Expired") {
		t.Fatalf("expected expired row: %q", m.View())
	}
	m = send(t, m, tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}})
	if h.fake.Calls("PUT /tasks") != 0 {
		t.Fatal("expired task must not be updated")
	}
	if !m.Status.IsError {
		t.Fatalf("expected error status, got %+v", m.Status)
	}
}

func TestDeleteFailureInterruptsUntilDismissed(t *testing.T) {
	h := newAppHarness(t)
	h.fake.AddUser("user@example.com", "hunter22", true)
	h.fake.SeedTask("user@example.com", testutil.WireTask{TaskId: "task-1", TaskName: "Keep", ExpiryDate: h.expiry(time.Hour)})
	m := h.start("")
	m = signIn(t, m, "user@example.com", "hunter22")

	h.fake.Fail("DELETE /tasks", 500, "boom")
	m = typeText(t, m, "d")
	if !strings.Contains(m.TaskView.Interrupt, "Failed to delete task") {
		t.Fatalf("expected interrupt, got %q", m.TaskView.Interrupt)
	}
	if len(m.TaskView.Items) != 1 {
		t.Fatalf("list must be unchanged, got %#v", m.TaskView.Items)
	}
	if !strings.Contains(m.View(), "press [enter] to dismiss") {
		t.Fatalf("expected interrupt in view: %q", m.View())
	}

	m = typeText(t, m, "a")
	if m.TaskView.Add.Active {
		t.Fatal("keys must be blocked while interrupted")
	}
	m = press(t, m, tea.KeyEnter)
	if m.TaskView.Interrupt != "" {
		t.Fatal("expected interrupt dismissed")
	}
}

func TestExpiryEventAppliesOverlay(t *testing.T) {
	h := newAppHarness(t)
	h.fake.AddUser("user@example.com", "hunter22", true)
	h.fake.SeedTask("user@example.com", testutil.WireTask{TaskId: "task-1", TaskName: "Soon", ExpiryDate: h.expiry(time.Hour)})

	engine := scheduler.NewEngine(4)
	m := NewModel(Deps{Sessions: h.sessions, Tasks: h.tasks, Scheduler: engine, Logger: zerolog.Nop()})
	// Init would block on the scheduler channel; restore directly instead.
	m = drive(t, m, m.restoreCmd())
	m = signIn(t, m, "user@example.com", "hunter22")
	if engine.Len() != 1 {
		t.Fatalf("expected one tracked expiry, got %d", engine.Len())
	}

	h.now = h.now.Add(2 * time.Hour)
	updated, wait := m.Update(ExpiryDueMsg{Event: scheduler.ExpiryEvent{TaskID: "task-1", At: h.now}})
	m = updated.(Model)
	if wait == nil {
		t.Fatal("expected the model to keep listening for expiries")
	}
	if m.TaskView.Items[0].Status != model.TaskStatusExpired {
		t.Fatalf("expected Expired after expiry event, got %s", m.TaskView.Items[0].Status)
	}
	if !strings.Contains(m.Status.Text, "task expired: Soon") {
		t.Fatalf("unexpected status: %+v", m.Status)
	}
	if h.fake.Tasks("user@example.com")[0].Status != "Pending" {
		t.Fatal("overlay must not be written back")
	}
}

func TestPaletteAddAndDone(t *testing.T) {
	h := newAppHarness(t)
	m := loggedIn(t, h)

	m = typeText(t, m, "/")
	if !m.Palette.Active {
		t.Fatal("expected palette active")
	}
	m = typeText(t, m, "add Water plants due:2026-02-10T08:00:00Z")
	m = press(t, m, tea.KeyEnter)
	if m.Palette.Active {
		t.Fatal("expected palette closed")
	}
	if len(m.TaskView.Items) != 1 || m.TaskView.Items[0].Name != "Water plants" {
		t.Fatalf("unexpected items: %#v", m.TaskView.Items)
	}
	want := time.Date(2026, 2, 10, 8, 0, 0, 0, time.UTC)
	if m.TaskView.Items[0].ExpiryDate == nil || !m.TaskView.Items[0].ExpiryDate.Equal(want) {
		t.Fatalf("unexpected expiry: %v", m.TaskView.Items[0].ExpiryDate)
	}

	m = typeText(t, m, "/")
	m = typeText(t, m, "done 1")
	m = press(t, m, tea.KeyEnter)
	if m.TaskView.Items[0].Status != model.TaskStatusCompleted {
		t.Fatalf("expected Completed, got %s", m.TaskView.Items[0].Status)
	}
}

func TestPaletteErrors(t *testing.T) {
	h := newAppHarness(t)
	m := loggedIn(t, h)

	m = typeText(t, m, "/")
	m = typeText(t, m, "snooze 1")
	m = press(t, m, tea.KeyEnter)
	if !m.Status.IsError || !strings.Contains(m.Status.Text, "unknown_command") {
		t.Fatalf("expected unknown command status, got %+v", m.Status)
	}

	m = typeText(t, m, "/")
	m = typeText(t, m, "rm 3")
	m = press(t, m, tea.KeyEnter)
	if !m.Status.IsError || !strings.Contains(m.Status.Text, "no task #3") {
		t.Fatalf("expected missing task status, got %+v", m.Status)
	}
}

func TestLogoutReturnsToLogin(t *testing.T) {
	h := newAppHarness(t)
	m := loggedIn(t, h)

	m = typeText(t, m, "L")
	if m.Route != RouteLogin {
		t.Fatalf("expected login route, got %q", m.Route)
	}
	if h.sessions.IsAuthenticated() {
		t.Fatal("expected signed out")
	}
	if len(h.tasks.Tasks()) != 0 {
		t.Fatal("expected held tasks dropped")
	}

	m = send(t, m, NavigateMsg{To: "tasks"})
	if m.Route != RouteLogin {
		t.Fatalf("task view must stay guarded, got %q", m.Route)
	}
}

func TestHelpAndQuit(t *testing.T) {
	h := newAppHarness(t)
	m := loggedIn(t, h)

	m = typeText(t, m, "?")
	if !m.HelpVisible || !strings.Contains(m.View(), "toggle completed") {
		t.Fatalf("expected help panel: %q", m.View())
	}

	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	next := updated.(Model)
	if !next.Quitting || cmd == nil {
		t.Fatal("expected quit")
	}
}

func TestFormsCaptureQuitKey(t *testing.T) {
	h := newAppHarness(t)
	m := h.start("")
	m = typeText(t, m, "q")
	if m.Quitting {
		t.Fatal("q must be typed into the form, not quit")
	}
	if m.loginUser.Value() != "q" {
		t.Fatalf("expected typed value, got %q", m.loginUser.Value())
	}
	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if !updated.(Model).Quitting {
		t.Fatal("ctrl+c must quit")
	}
}

func TestFormHelpToggle(t *testing.T) {
	h := newAppHarness(t)
	m := h.start("")

	m = press(t, m, tea.KeyF1)
	if !m.HelpVisible {
		t.Fatal("expected help visible on the sign-in screen")
	}
	if out := m.View(); !strings.Contains(out, "create an account") || !strings.Contains(out, "toggle help panel") {
		t.Fatalf("expected sign-in bindings in help: %q", out)
	}
	if m.loginUser.Value() != "" {
		t.Fatalf("help key must not be typed, got %q", m.loginUser.Value())
	}

	m = typeText(t, m, "a?b")
	if m.loginUser.Value() != "a?b" || !m.HelpVisible {
		t.Fatalf("? must stay typeable on forms, value=%q help=%v", m.loginUser.Value(), m.HelpVisible)
	}

	m = press(t, m, tea.KeyF1)
	if m.HelpVisible {
		t.Fatal("expected help hidden after second toggle")
	}

	m = send(t, m, NavigateMsg{To: "confirm"})
	m = press(t, m, tea.KeyF1)
	if !strings.Contains(m.View(), "confirm account") {
		t.Fatalf("expected confirm bindings in help: %q", m.View())
	}
}
