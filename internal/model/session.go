package model

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

var ErrIncompleteSession = errors.New("model: session requires access, id and refresh tokens")

// Session is the token triple issued by the identity backend. The JSON form
// is the persisted blob.
type Session struct {
	AccessToken  string `json:"accessToken"`
	IDToken      string `json:"idToken"`
	RefreshToken string `json:"refreshToken"`
}

func (s Session) Complete() bool {
	return strings.TrimSpace(s.AccessToken) != "" &&
		strings.TrimSpace(s.IDToken) != "" &&
		strings.TrimSpace(s.RefreshToken) != ""
}

func (s Session) Validate() error {
	if !s.Complete() {
		return ErrIncompleteSession
	}
	return nil
}

// OAuth2Token presents the id token as the bearer credential the task
// backend expects. The access token travels as an extra.
func (s Session) OAuth2Token() *oauth2.Token {
	tok := &oauth2.Token{
		AccessToken:  s.IDToken,
		TokenType:    "Bearer",
		RefreshToken: s.RefreshToken,
	}
	return tok.WithExtra(map[string]any{
		"access_token": s.AccessToken,
		"id_token":     s.IDToken,
	})
}

// Claims is the subset of id token claims used for display.
type Claims struct {
	Subject   string
	Email     string
	ExpiresAt time.Time
}

// ParseClaims reads the id token payload without verifying its signature.
// The backend verifies the token; the client only needs it for display.
func ParseClaims(idToken string) (Claims, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(idToken, claims); err != nil {
		return Claims{}, fmt.Errorf("model: parse id token: %w", err)
	}
	var out Claims
	if sub, err := claims.GetSubject(); err == nil {
		out.Subject = sub
	}
	if email, ok := claims["email"].(string); ok {
		out.Email = email
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		out.ExpiresAt = exp.Time.UTC()
	}
	return out, nil
}

func (c Claims) DisplayName() string {
	if c.Email != "" {
		return c.Email
	}
	return c.Subject
}
