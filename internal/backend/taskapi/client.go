// Package taskapi is the client for the remote task backend. Every request
// carries the caller's id token as a bearer credential.
package taskapi

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"github.com/sandeepkv93/cloudtasks/internal/httpapi"
	"github.com/sandeepkv93/cloudtasks/internal/model"
)

const tasksPath = "/tasks"

type Client struct {
	baseURL string
	base    *http.Client
	logger  zerolog.Logger
}

func New(baseURL string, base *http.Client, logger zerolog.Logger) *Client {
	if base == nil {
		base = http.DefaultClient
	}
	return &Client{baseURL: baseURL, base: base, logger: logger}
}

// Record is the task backend's JSON shape.
type Record struct {
	TaskId     string  `json:"TaskId"`
	TaskName   string  `json:"TaskName"`
	UserId     string  `json:"UserId"`
	UserEmail  string  `json:"UserEmail"`
	Status     string  `json:"Status"`
	CreatedAt  string  `json:"CreatedAt"`
	ExpiryDate *string `json:"ExpiryDate,omitempty"`
}

type listResponse struct {
	Tasks []Record `json:"tasks"`
}

type createRequest struct {
	TaskId     string `json:"TaskId"`
	TaskName   string `json:"TaskName"`
	ExpiryDate string `json:"ExpiryDate"`
}

type updateRequest struct {
	TaskId string `json:"TaskId"`
	Status string `json:"Status"`
}

type deleteRequest struct {
	TaskId string `json:"TaskId"`
}

// NewTask is what a create request sends.
type NewTask struct {
	ID         string
	Name       string
	ExpiryDate time.Time
}

func (c *Client) api(ctx context.Context, idToken string) *httpapi.Client {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.base)
	src := oauth2.StaticTokenSource(model.Session{IDToken: idToken}.OAuth2Token())
	authed := oauth2.NewClient(ctx, src)
	authed.Timeout = c.base.Timeout
	return httpapi.New(c.baseURL, authed, c.logger)
}

func (c *Client) List(ctx context.Context, idToken string) ([]model.Task, error) {
	var resp listResponse
	if err := c.api(ctx, idToken).Do(ctx, http.MethodGet, tasksPath, nil, &resp); err != nil {
		return nil, err
	}
	out := make([]model.Task, 0, len(resp.Tasks))
	for _, rec := range resp.Tasks {
		task := c.toModel(rec)
		// A record without an id or with an unknown status cannot be
		// toggled or deleted, so it is left out of the list.
		if err := task.Validate(); err != nil {
			c.logger.Warn().Err(err).Str("task_id", rec.TaskId).Msg("skipping invalid task record")
			continue
		}
		out = append(out, task)
	}
	return out, nil
}

func (c *Client) Create(ctx context.Context, idToken string, in NewTask) error {
	req := createRequest{
		TaskId:     in.ID,
		TaskName:   in.Name,
		ExpiryDate: in.ExpiryDate.UTC().Format(time.RFC3339Nano),
	}
	return c.api(ctx, idToken).Do(ctx, http.MethodPost, tasksPath, req, nil)
}

func (c *Client) UpdateStatus(ctx context.Context, idToken, id string, status model.TaskStatus) error {
	req := updateRequest{TaskId: id, Status: string(status)}
	return c.api(ctx, idToken).Do(ctx, http.MethodPut, tasksPath, req, nil)
}

func (c *Client) Delete(ctx context.Context, idToken, id string) error {
	return c.api(ctx, idToken).Do(ctx, http.MethodDelete, tasksPath, deleteRequest{TaskId: id}, nil)
}

// toModel converts a wire record. An unparseable expiry is treated as no
// expiry, so the task is never overlaid as Expired.
func (c *Client) toModel(rec Record) model.Task {
	task := model.Task{
		ID:          rec.TaskId,
		Name:        rec.TaskName,
		OwnerUserID: rec.UserId,
		OwnerEmail:  rec.UserEmail,
		Status:      model.TaskStatus(rec.Status),
	}
	if rec.CreatedAt != "" {
		if created, err := parseTime(rec.CreatedAt); err == nil {
			task.CreatedAt = created
		} else {
			c.logger.Debug().Err(err).Str("task_id", rec.TaskId).Msg("unparseable created_at")
		}
	}
	if rec.ExpiryDate != nil && *rec.ExpiryDate != "" {
		if expiry, err := parseTime(*rec.ExpiryDate); err == nil {
			task.ExpiryDate = &expiry
		} else {
			c.logger.Debug().Err(err).Str("task_id", rec.TaskId).Msg("unparseable expiry date")
		}
	}
	return task
}

func parseTime(v string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
