// Package testutil provides an in-process identity and task backend for
// tests. It speaks the same JSON contract as the real services.
package testutil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// ConfirmationCode is the code every registered user must confirm with.
const ConfirmationCode = "123456"

// FakeError forces a route to answer with Status and Body.
type FakeError struct {
	Status int
	Body   string
}

type FakeUser struct {
	Username  string
	Password  string
	UserID    string
	Confirmed bool
}

// WireTask mirrors the task backend's JSON record.
type WireTask struct {
	TaskId     string  `json:"TaskId"`
	TaskName   string  `json:"TaskName"`
	UserId     string  `json:"UserId"`
	UserEmail  string  `json:"UserEmail"`
	Status     string  `json:"Status"`
	CreatedAt  string  `json:"CreatedAt"`
	ExpiryDate *string `json:"ExpiryDate,omitempty"`
}

type FakeBackend struct {
	Server *httptest.Server
	Now    func() time.Time

	mu     sync.Mutex
	users  map[string]*FakeUser
	tasks  map[string][]WireTask
	tokens map[string]string
	calls  map[string]int
	nextID int

	// Error injection, keyed by "METHOD /path".
	Errors map[string]FakeError
}

func NewFakeBackend(t *testing.T) *FakeBackend {
	t.Helper()
	gin.SetMode(gin.TestMode)

	f := &FakeBackend{
		Now:    func() time.Time { return time.Now().UTC() },
		users:  make(map[string]*FakeUser),
		tasks:  make(map[string][]WireTask),
		tokens: make(map[string]string),
		calls:  make(map[string]int),
		Errors: make(map[string]FakeError),
	}

	r := gin.New()
	r.Use(f.countAndInject)
	r.POST("/auth", f.handleAuth)
	r.POST("/register", f.handleRegister)
	r.POST("/confirm", f.handleConfirm)

	tasks := r.Group("/tasks", f.requireBearer)
	tasks.GET("", f.handleListTasks)
	tasks.POST("", f.handleCreateTask)
	tasks.PUT("", f.handleUpdateTask)
	tasks.DELETE("", f.handleDeleteTask)

	f.Server = httptest.NewServer(r)
	t.Cleanup(f.Server.Close)
	return f
}

func (f *FakeBackend) URL() string { return f.Server.URL }

func (f *FakeBackend) Client() *http.Client { return f.Server.Client() }

func (f *FakeBackend) AddUser(username, password string, confirmed bool) *FakeUser {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.addUserLocked(username, password, confirmed)
}

func (f *FakeBackend) addUserLocked(username, password string, confirmed bool) *FakeUser {
	f.nextID++
	u := &FakeUser{
		Username:  username,
		Password:  password,
		UserID:    fmt.Sprintf("user-%d", f.nextID),
		Confirmed: confirmed,
	}
	f.users[username] = u
	return u
}

func (f *FakeBackend) User(username string) (FakeUser, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[username]
	if !ok {
		return FakeUser{}, false
	}
	return *u, true
}

// SeedTask stores a task for username as if it had been created earlier.
func (f *FakeBackend) SeedTask(username string, task WireTask) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[username]; ok {
		task.UserId = u.UserID
		task.UserEmail = u.Username
	}
	if task.Status == "" {
		task.Status = "Pending"
	}
	if task.CreatedAt == "" {
		task.CreatedAt = f.Now().Format(time.RFC3339)
	}
	f.tasks[username] = append(f.tasks[username], task)
}

func (f *FakeBackend) Tasks(username string) []WireTask {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]WireTask, len(f.tasks[username]))
	copy(out, f.tasks[username])
	return out
}

// Calls returns how many times "METHOD /path" was requested.
func (f *FakeBackend) Calls(route string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[route]
}

func (f *FakeBackend) Fail(route string, status int, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Errors[route] = FakeError{Status: status, Body: body}
}

func (f *FakeBackend) ClearFailures() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Errors = make(map[string]FakeError)
}

func (f *FakeBackend) countAndInject(c *gin.Context) {
	route := c.Request.Method + " " + c.Request.URL.Path
	f.mu.Lock()
	f.calls[route]++
	injected, ok := f.Errors[route]
	f.mu.Unlock()
	if ok {
		c.Data(injected.Status, "application/json", []byte(injected.Body))
		c.Abort()
		return
	}
	c.Next()
}

func (f *FakeBackend) handleAuth(c *gin.Context) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request body"})
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[req.Username]
	if !ok || u.Password != req.Password {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Incorrect username or password."})
		return
	}
	if !u.Confirmed {
		c.JSON(http.StatusBadRequest, gin.H{"message": "User is not confirmed."})
		return
	}

	idToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   u.UserID,
		"email": u.Username,
		"exp":   f.Now().Add(time.Hour).Unix(),
		"jti":   fmt.Sprintf("%s-%d", u.UserID, len(f.tokens)+1),
	}).SignedString([]byte("fake-backend"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}
	f.tokens[idToken] = u.Username

	c.JSON(http.StatusOK, gin.H{
		"AuthenticationResult": gin.H{
			"AccessToken":  "access-" + u.UserID,
			"IdToken":      idToken,
			"RefreshToken": "refresh-" + u.UserID,
		},
	})
}

func (f *FakeBackend) handleRegister(c *gin.Context) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
		Email    string `json:"email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Username == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Username and password are required"})
		return
	}
	if req.Email != req.Username {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Email must match username"})
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.users[req.Username]; exists {
		c.JSON(http.StatusBadRequest, gin.H{"message": "User already exists"})
		return
	}
	f.addUserLocked(req.Username, req.Password, false)
	c.JSON(http.StatusOK, gin.H{"message": "User registered"})
}

func (f *FakeBackend) handleConfirm(c *gin.Context) {
	var req struct {
		Username string `json:"username"`
		Code     string `json:"code"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request body"})
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[req.Username]
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Username/client id combination not found."})
		return
	}
	if req.Code != ConfirmationCode {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid verification code provided, please try again."})
		return
	}
	u.Confirmed = true
	c.JSON(http.StatusOK, gin.H{"message": "User confirmed"})
}

func (f *FakeBackend) requireBearer(c *gin.Context) {
	header := c.GetHeader("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Unauthorized"})
		return
	}
	f.mu.Lock()
	username, known := f.tokens[token]
	f.mu.Unlock()
	if !known {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Unauthorized"})
		return
	}
	c.Set("username", username)
	c.Next()
}

func (f *FakeBackend) handleListTasks(c *gin.Context) {
	username := c.GetString("username")
	c.JSON(http.StatusOK, gin.H{"tasks": f.Tasks(username)})
}

func (f *FakeBackend) handleCreateTask(c *gin.Context) {
	var req struct {
		TaskId     string  `json:"TaskId"`
		TaskName   string  `json:"TaskName"`
		ExpiryDate *string `json:"ExpiryDate"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.TaskId == "" || req.TaskName == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "TaskId and TaskName are required"})
		return
	}
	username := c.GetString("username")

	f.mu.Lock()
	for _, existing := range f.tasks[username] {
		if existing.TaskId == req.TaskId {
			f.mu.Unlock()
			c.JSON(http.StatusConflict, gin.H{"message": "Task already exists"})
			return
		}
	}
	f.mu.Unlock()

	f.SeedTask(username, WireTask{
		TaskId:     req.TaskId,
		TaskName:   req.TaskName,
		Status:     "Pending",
		ExpiryDate: req.ExpiryDate,
	})
	c.JSON(http.StatusCreated, gin.H{"message": "Task created"})
}

func (f *FakeBackend) handleUpdateTask(c *gin.Context) {
	var req struct {
		TaskId string `json:"TaskId"`
		Status string `json:"Status"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request body"})
		return
	}
	if req.Status != "Pending" && req.Status != "Completed" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid status"})
		return
	}
	username := c.GetString("username")

	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.tasks[username] {
		if f.tasks[username][i].TaskId == req.TaskId {
			f.tasks[username][i].Status = req.Status
			c.JSON(http.StatusOK, gin.H{"message": "Task updated"})
			return
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"message": "Task not found"})
}

func (f *FakeBackend) handleDeleteTask(c *gin.Context) {
	var req struct {
		TaskId string `json:"TaskId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request body"})
		return
	}
	username := c.GetString("username")

	f.mu.Lock()
	defer f.mu.Unlock()
	list := f.tasks[username]
	for i := range list {
		if list[i].TaskId == req.TaskId {
			f.tasks[username] = append(list[:i:i], list[i+1:]...)
			c.JSON(http.StatusOK, gin.H{"message": "Task deleted"})
			return
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"message": "Task not found"})
}
