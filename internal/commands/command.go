package commands

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type Type string

const (
	TypeAdd     Type = "add"
	TypeDone    Type = "done"
	TypeUndo    Type = "undo"
	TypeRemove  Type = "rm"
	TypeRefresh Type = "refresh"
	TypeLogout  Type = "logout"
)

type ErrorCode string

const (
	ErrCodeEmptyInput      ErrorCode = "empty_input"
	ErrCodeUnknownCommand  ErrorCode = "unknown_command"
	ErrCodeInvalidArgument ErrorCode = "invalid_argument"
	ErrCodeHandlerMissing  ErrorCode = "handler_missing"
)

type CommandError struct {
	Code    ErrorCode
	Message string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// dueLayouts are tried in order for the due: token. Layouts without a zone
// are read in local time.
var dueLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

type AddArgs struct {
	Name string
	Due  *time.Time
}

// TargetArgs addresses a task by its 1-based position in the list.
type TargetArgs struct {
	Index int
}

type Command struct {
	Type   Type
	Raw    string
	Add    *AddArgs
	Target *TargetArgs
}

func Parse(input string) (Command, error) {
	raw := strings.TrimSpace(input)
	if strings.HasPrefix(raw, "/") {
		raw = strings.TrimSpace(strings.TrimPrefix(raw, "/"))
	}
	if raw == "" {
		return Command{}, &CommandError{Code: ErrCodeEmptyInput, Message: "command is empty"}
	}

	parts := strings.Fields(raw)
	head := strings.ToLower(parts[0])
	args := parts[1:]

	switch Type(head) {
	case TypeAdd:
		return parseAdd(input, args)
	case TypeDone, TypeUndo, TypeRemove:
		return parseTarget(input, Type(head), args)
	case "delete":
		return parseTarget(input, TypeRemove, args)
	case TypeRefresh, TypeLogout:
		if len(args) > 0 {
			return Command{}, &CommandError{Code: ErrCodeInvalidArgument, Message: fmt.Sprintf("%s takes no arguments", head)}
		}
		return Command{Type: Type(head), Raw: input}, nil
	default:
		return Command{}, &CommandError{Code: ErrCodeUnknownCommand, Message: fmt.Sprintf("unsupported command: %s", head)}
	}
}

func parseAdd(raw string, args []string) (Command, error) {
	nameParts := make([]string, 0, len(args))
	var due *time.Time
	for _, arg := range args {
		value, ok := strings.CutPrefix(arg, "due:")
		if !ok {
			nameParts = append(nameParts, arg)
			continue
		}
		parsed, err := parseDue(value)
		if err != nil {
			return Command{}, err
		}
		due = &parsed
	}
	name := strings.TrimSpace(strings.Join(nameParts, " "))
	if name == "" {
		return Command{}, &CommandError{Code: ErrCodeInvalidArgument, Message: "add requires a task name"}
	}
	return Command{Type: TypeAdd, Raw: raw, Add: &AddArgs{Name: name, Due: due}}, nil
}

// ParseDue reads an expiry the way the add command and the add form do.
func ParseDue(value string) (time.Time, error) {
	return parseDue(value)
}

func parseDue(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range dueLayouts {
		if t, err := time.ParseInLocation(layout, value, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, &CommandError{Code: ErrCodeInvalidArgument, Message: fmt.Sprintf("invalid due date: %q", value)}
}

func parseTarget(raw string, typ Type, args []string) (Command, error) {
	if len(args) != 1 {
		return Command{}, &CommandError{Code: ErrCodeInvalidArgument, Message: fmt.Sprintf("%s requires a task number", typ)}
	}
	n, err := strconv.Atoi(strings.TrimPrefix(args[0], "#"))
	if err != nil || n < 1 {
		return Command{}, &CommandError{Code: ErrCodeInvalidArgument, Message: fmt.Sprintf("invalid task number: %q", args[0])}
	}
	return Command{Type: typ, Raw: raw, Target: &TargetArgs{Index: n}}, nil
}
