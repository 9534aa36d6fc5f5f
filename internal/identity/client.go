// Package identity talks to the identity backend: sign-in, sign-up and
// account confirmation.
package identity

import (
	"context"
	"net/http"

	"github.com/sandeepkv93/cloudtasks/internal/apperr"
	"github.com/sandeepkv93/cloudtasks/internal/httpapi"
	"github.com/sandeepkv93/cloudtasks/internal/model"
)

type Client struct {
	api *httpapi.Client
}

func New(api *httpapi.Client) *Client {
	return &Client{api: api}
}

type authRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type authResponse struct {
	AuthenticationResult struct {
		AccessToken  string `json:"AccessToken"`
		IdToken      string `json:"IdToken"`
		RefreshToken string `json:"RefreshToken"`
	} `json:"AuthenticationResult"`
}

type registerRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email"`
}

type confirmRequest struct {
	Username string `json:"username"`
	Code     string `json:"code"`
}

// Authenticate exchanges credentials for a token triple. A 2xx response that
// does not carry all three tokens is treated as a failed sign-in.
func (c *Client) Authenticate(ctx context.Context, username, password string) (model.Session, error) {
	var resp authResponse
	if err := c.api.Do(ctx, http.MethodPost, "/auth", authRequest{Username: username, Password: password}, &resp); err != nil {
		return model.Session{}, apperr.Translate(apperr.KindAuthenticationFailed, httpapi.Message(err), err)
	}
	session := model.Session{
		AccessToken:  resp.AuthenticationResult.AccessToken,
		IDToken:      resp.AuthenticationResult.IdToken,
		RefreshToken: resp.AuthenticationResult.RefreshToken,
	}
	if err := session.Validate(); err != nil {
		return model.Session{}, apperr.Translate(apperr.KindAuthenticationFailed, "", err)
	}
	return session, nil
}

// Register creates an account; the username doubles as the contact address.
func (c *Client) Register(ctx context.Context, username, password string) error {
	req := registerRequest{Username: username, Password: password, Email: username}
	if err := c.api.Do(ctx, http.MethodPost, "/register", req, nil); err != nil {
		return apperr.Translate(apperr.KindRegistrationFailed, httpapi.Message(err), err)
	}
	return nil
}

func (c *Client) Confirm(ctx context.Context, username, code string) error {
	if err := c.api.Do(ctx, http.MethodPost, "/confirm", confirmRequest{Username: username, Code: code}, nil); err != nil {
		return apperr.Translate(apperr.KindConfirmationFailed, httpapi.Message(err), err)
	}
	return nil
}
