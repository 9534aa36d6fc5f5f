// Package tasks holds the task view's state and operations: it fetches the
// signed-in user's tasks, overlays expiry and refreshes after every write.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sandeepkv93/cloudtasks/internal/apperr"
	"github.com/sandeepkv93/cloudtasks/internal/backend/taskapi"
	"github.com/sandeepkv93/cloudtasks/internal/httpapi"
	"github.com/sandeepkv93/cloudtasks/internal/model"
)

const DefaultExpiry = 24 * time.Hour

type Backend interface {
	List(ctx context.Context, idToken string) ([]model.Task, error)
	Create(ctx context.Context, idToken string, in taskapi.NewTask) error
	UpdateStatus(ctx context.Context, idToken, id string, status model.TaskStatus) error
	Delete(ctx context.Context, idToken, id string) error
}

type TokenSource interface {
	IDToken() (string, bool)
}

type Options struct {
	Clock         func() time.Time
	NewID         func() string
	DefaultExpiry time.Duration
	Logger        zerolog.Logger
}

type Controller struct {
	backend       Backend
	tokens        TokenSource
	clock         func() time.Time
	newID         func() string
	defaultExpiry time.Duration
	logger        zerolog.Logger

	mu    sync.RWMutex
	items []model.Task
	// generation is bumped by Reset; a fetch started under an older
	// generation is discarded.
	generation uint64
}

func NewController(backend Backend, tokens TokenSource, opts Options) *Controller {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = NewTaskID
	}
	if opts.DefaultExpiry <= 0 {
		opts.DefaultExpiry = DefaultExpiry
	}
	return &Controller{
		backend:       backend,
		tokens:        tokens,
		clock:         opts.Clock,
		newID:         opts.NewID,
		defaultExpiry: opts.DefaultExpiry,
		logger:        opts.Logger,
	}
}

// NewTaskID returns a time-ordered id with the "task-" prefix the backend
// expects.
func NewTaskID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return "task-" + uuid.NewString()
	}
	return "task-" + id.String()
}

func (c *Controller) token() (string, bool) {
	if c.tokens == nil {
		return "", false
	}
	token, ok := c.tokens.IDToken()
	if !ok || strings.TrimSpace(token) == "" {
		return "", false
	}
	return token, true
}

// FetchAll replaces the held list with the server's. On failure the previous
// list is kept.
func (c *Controller) FetchAll(ctx context.Context) ([]model.Task, error) {
	token, ok := c.token()
	if !ok {
		return c.Tasks(), nil
	}
	c.mu.RLock()
	generation := c.generation
	c.mu.RUnlock()

	items, err := c.backend.List(ctx, token)
	if !c.current(generation, token) {
		c.logger.Debug().Msg("discarding tasks fetched for an ended session")
		return c.Tasks(), nil
	}
	if err != nil {
		c.logger.Error().Err(err).Msg("fetch tasks")
		return c.Tasks(), failure(apperr.KindFetchFailed, err)
	}
	displayed := model.ApplyExpiryOverlay(items, c.clock())

	c.mu.Lock()
	if c.generation != generation {
		c.mu.Unlock()
		return c.Tasks(), nil
	}
	c.items = displayed
	c.mu.Unlock()

	c.logger.Debug().Int("count", len(displayed)).Msg("tasks fetched")
	return c.Tasks(), nil
}

// Create adds a task. A blank name is ignored; a nil expiry defaults to the
// configured horizon from now.
func (c *Controller) Create(ctx context.Context, name string, expiry *time.Time) error {
	token, ok := c.token()
	if !ok {
		return nil
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}
	due := c.clock().Add(c.defaultExpiry)
	if expiry != nil {
		due = *expiry
	}
	in := taskapi.NewTask{ID: c.newID(), Name: name, ExpiryDate: due}
	if err := c.backend.Create(ctx, token, in); err != nil {
		c.logger.Error().Err(err).Str("task_id", in.ID).Msg("create task")
		return failure(apperr.KindCreateFailed, err)
	}
	c.logger.Info().Str("task_id", in.ID).Msg("task created")
	_, err := c.FetchAll(ctx)
	return err
}

// UpdateStatus writes a new status. Expired is never written, and a task
// displayed as Expired cannot change.
func (c *Controller) UpdateStatus(ctx context.Context, id string, status model.TaskStatus) error {
	token, ok := c.token()
	if !ok {
		return nil
	}
	if !status.IsWritable() {
		return apperr.Wrap(apperr.KindInvalidStateTransition, fmt.Errorf("%w: %q", model.ErrNotWritable, status))
	}
	if held, found := c.find(id); found && held.Status == model.TaskStatusExpired {
		return apperr.New(apperr.KindInvalidStateTransition, "Expired tasks cannot change status")
	}
	if err := c.backend.UpdateStatus(ctx, token, id, status); err != nil {
		c.logger.Error().Err(err).Str("task_id", id).Msg("update task")
		return failure(apperr.KindUpdateFailed, err)
	}
	c.logger.Info().Str("task_id", id).Str("status", string(status)).Msg("task updated")
	_, err := c.FetchAll(ctx)
	return err
}

// Toggle flips a held task between Pending and Completed.
func (c *Controller) Toggle(ctx context.Context, id string) error {
	if _, ok := c.token(); !ok {
		return nil
	}
	held, found := c.find(id)
	if !found {
		return apperr.New(apperr.KindUpdateFailed, "Task not found")
	}
	next, err := held.Toggled()
	if err != nil {
		return apperr.Wrap(apperr.KindInvalidStateTransition, err)
	}
	return c.UpdateStatus(ctx, id, next)
}

func (c *Controller) Remove(ctx context.Context, id string) error {
	token, ok := c.token()
	if !ok {
		return nil
	}
	if err := c.backend.Delete(ctx, token, id); err != nil {
		c.logger.Error().Err(err).Str("task_id", id).Msg("delete task")
		return failure(apperr.KindDeleteFailed, err)
	}
	c.logger.Info().Str("task_id", id).Msg("task deleted")
	_, err := c.FetchAll(ctx)
	return err
}

// Tasks returns the held list with the overlay applied at the current time.
func (c *Controller) Tasks() []model.Task {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return model.ApplyExpiryOverlay(c.items, c.clock())
}

func (c *Controller) RemainingHours(expiry time.Time) int {
	return model.RemainingHours(expiry, c.clock())
}

func (c *Controller) Now() time.Time {
	return c.clock()
}

// Reset drops the held list and invalidates fetches still in flight.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = nil
	c.generation++
}

// current reports whether a fetch started at generation with token still
// belongs to the signed-in session.
func (c *Controller) current(generation uint64, token string) bool {
	c.mu.RLock()
	sameGeneration := c.generation == generation
	c.mu.RUnlock()
	if !sameGeneration {
		return false
	}
	now, ok := c.token()
	return ok && now == token
}

func (c *Controller) find(id string) (model.Task, bool) {
	for _, task := range c.Tasks() {
		if task.ID == id {
			return task, true
		}
	}
	return model.Task{}, false
}

// failure attaches kind plus the backend's status and body to err. Errors
// that already carry a kind keep it.
func failure(kind apperr.Kind, err error) error {
	var typed *apperr.Error
	if errors.As(err, &typed) {
		return err
	}
	return apperr.HTTP(kind, httpapi.Status(err), httpapi.Body(err), err)
}
