// Package apperr holds the error kinds every user-facing operation fails
// with. Callers branch on Kind, never on backend wording.
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

type Kind string

const (
	KindAuthenticationFailed   Kind = "authentication_failed"
	KindUnconfirmedAccount     Kind = "unconfirmed_account"
	KindRegistrationFailed     Kind = "registration_failed"
	KindConfirmationFailed     Kind = "confirmation_failed"
	KindFetchFailed            Kind = "fetch_failed"
	KindCreateFailed           Kind = "create_failed"
	KindUpdateFailed           Kind = "update_failed"
	KindDeleteFailed           Kind = "delete_failed"
	KindInvalidStateTransition Kind = "invalid_state_transition"
)

const unconfirmedMessage = "Please confirm your account before signing in."

// unconfirmedPattern is the identity backend's wording for an account that
// exists but has not completed confirmation.
const unconfirmedPattern = "user is not confirmed"

var fallbackMessages = map[Kind]string{
	KindAuthenticationFailed:   "Login failed",
	KindUnconfirmedAccount:     unconfirmedMessage,
	KindRegistrationFailed:     "Registration failed",
	KindConfirmationFailed:     "Confirmation failed",
	KindFetchFailed:            "Failed to fetch tasks",
	KindCreateFailed:           "Failed to create task",
	KindUpdateFailed:           "Failed to update task",
	KindDeleteFailed:           "Failed to delete task",
	KindInvalidStateTransition: "Task status cannot change",
}

type Error struct {
	Kind    Kind
	Message string
	Status  int
	Body    string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = fallbackMessages[e.Kind]
	}
	if e.Status != 0 {
		msg = fmt.Sprintf("%s: %d %s", msg, e.Status, strings.TrimSpace(e.Body))
		msg = strings.TrimSpace(msg)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so errors.Is(err, apperr.New(KindX, ""))
// works as a kind test.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return other.Kind == e.Kind
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, err error) *Error {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return &Error{Kind: kind, Message: msg, Err: err}
}

// HTTP builds a task-operation error that carries the backend's status and
// body for display.
func HTTP(kind Kind, status int, body string, err error) *Error {
	return &Error{Kind: kind, Message: fallbackMessages[kind], Status: status, Body: body, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or "".
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// Translate turns an identity backend failure into a structured error. It is
// the only place backend wording is interpreted.
func Translate(op Kind, backendMessage string, cause error) *Error {
	msg := strings.TrimSpace(backendMessage)
	if op == KindAuthenticationFailed && IsUnconfirmedMessage(msg) {
		return &Error{Kind: KindUnconfirmedAccount, Message: unconfirmedMessage, Err: cause}
	}
	if msg == "" {
		msg = fallbackMessages[op]
	}
	return &Error{Kind: op, Message: msg, Err: cause}
}

func IsUnconfirmedMessage(msg string) bool {
	return strings.Contains(strings.ToLower(msg), unconfirmedPattern)
}

// Message returns the text shown to the user for err.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Error()
	}
	return err.Error()
}
