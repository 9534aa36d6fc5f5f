// Package httpapi sends JSON requests to the identity and task backends and
// turns non-2xx responses into *googleapi.Error values that keep the status
// code and the raw body.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/api/googleapi"
)

type Client struct {
	baseURL string
	http    *http.Client
	logger  zerolog.Logger
}

func New(baseURL string, httpClient *http.Client, logger zerolog.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		http:    httpClient,
		logger:  logger,
	}
}

func (c *Client) BaseURL() string { return c.baseURL }

// Do sends in as a JSON body (when non-nil) and decodes the response into
// out (when non-nil). A non-2xx status returns a *googleapi.Error.
func (c *Client) Do(ctx context.Context, method, path string, in any, out any) error {
	endpoint, err := url.JoinPath(c.baseURL, path)
	if err != nil {
		return fmt.Errorf("httpapi: build url for %s: %w", path, err)
	}

	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("httpapi: encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("httpapi: new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug().Err(err).Str("method", method).Str("path", path).Msg("request failed")
		return fmt.Errorf("httpapi: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	c.logger.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(started)).
		Msg("request completed")

	if err := googleapi.CheckResponse(resp); err != nil {
		return err
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("httpapi: decode %s %s: %w", method, path, err)
	}
	return nil
}

type messageBody struct {
	Message string `json:"message"`
}

// Message extracts the backend's human-readable message from err: the
// `message` field of the JSON error body when present.
func Message(err error) string {
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return ""
	}
	if strings.TrimSpace(apiErr.Message) != "" {
		return apiErr.Message
	}
	var body messageBody
	if jsonErr := json.Unmarshal([]byte(apiErr.Body), &body); jsonErr == nil {
		return body.Message
	}
	return ""
}

// Status returns the HTTP status carried by err, or 0 for transport errors.
func Status(err error) int {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return 0
}

// Body returns the raw response body carried by err.
func Body(err error) string {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Body
	}
	return ""
}
