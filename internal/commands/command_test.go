package commands

import (
	"errors"
	"testing"
	"time"
)

func TestParseSupportedCommands(t *testing.T) {
	cases := []struct {
		in       string
		typeWant Type
	}{
		{"/add pay rent", TypeAdd},
		{"done 2", TypeDone},
		{"undo #1", TypeUndo},
		{"rm 3", TypeRemove},
		{"delete 3", TypeRemove},
		{"refresh", TypeRefresh},
		{"/logout", TypeLogout},
	}

	for _, tc := range cases {
		cmd, err := Parse(tc.in)
		if err != nil {
			t.Fatalf("parse %q failed: %v", tc.in, err)
		}
		if cmd.Type != tc.typeWant {
			t.Fatalf("parse %q type = %s, want %s", tc.in, cmd.Type, tc.typeWant)
		}
	}
}

func TestParseAddWithDue(t *testing.T) {
	cmd, err := Parse("add buy milk due:2026-03-01T09:30:00Z")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if cmd.Add.Name != "buy milk" {
		t.Fatalf("unexpected name: %q", cmd.Add.Name)
	}
	want := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	if cmd.Add.Due == nil || !cmd.Add.Due.Equal(want) {
		t.Fatalf("unexpected due: %v", cmd.Add.Due)
	}

	cmd, err = Parse("add stretch due:2026-03-01T07:00")
	if err != nil {
		t.Fatalf("parse local due failed: %v", err)
	}
	local := time.Date(2026, 3, 1, 7, 0, 0, 0, time.Local)
	if cmd.Add.Due == nil || !cmd.Add.Due.Equal(local) {
		t.Fatalf("unexpected local due: %v", cmd.Add.Due)
	}
}

func TestParseInvalidArguments(t *testing.T) {
	for _, in := range []string{"add", "add due:2026-03-01", "add x due:someday", "done", "done zero", "rm 0", "refresh now"} {
		_, err := Parse(in)
		var ce *CommandError
		if !errors.As(err, &ce) || ce.Code != ErrCodeInvalidArgument {
			t.Fatalf("parse %q: expected invalid argument, got %v", in, err)
		}
	}
}

func TestParseEmptyInput(t *testing.T) {
	for _, in := range []string{"", "   ", "/"} {
		_, err := Parse(in)
		var ce *CommandError
		if !errors.As(err, &ce) || ce.Code != ErrCodeEmptyInput {
			t.Fatalf("parse %q: expected empty input, got %v", in, err)
		}
	}
}

func TestParseUnknownCommand(t *testing.T) {
	_, err := Parse("/snooze 1")
	if err == nil {
		t.Fatal("expected error")
	}
	var ce *CommandError
	if !errors.As(err, &ce) || ce.Code != ErrCodeUnknownCommand {
		t.Fatalf("expected unknown command error, got %v", err)
	}
}

func TestExecuteDispatch(t *testing.T) {
	cmd, err := Parse("/add write docs")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	called := false
	res, err := Execute(cmd, Handlers{
		Add: func(a AddArgs) (Result, error) {
			called = true
			if a.Name != "write docs" || a.Due != nil {
				t.Fatalf("unexpected args: %+v", a)
			}
			return Result{Message: "ok"}, nil
		},
	})
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if !called || res.Message != "ok" {
		t.Fatalf("dispatch failed, called=%v res=%+v", called, res)
	}

	cmd, _ = Parse("done 4")
	res, err = Execute(cmd, Handlers{Done: func(a TargetArgs) (Result, error) {
		return Result{Message: "done"}, nil
	}})
	if err != nil || res.Message != "done" {
		t.Fatalf("done dispatch failed: %v %+v", err, res)
	}
}

func TestExecuteMissingHandler(t *testing.T) {
	cmd, err := Parse("refresh")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	_, err = Execute(cmd, Handlers{})
	if err == nil {
		t.Fatal("expected error")
	}
	var ce *CommandError
	if !errors.As(err, &ce) || ce.Code != ErrCodeHandlerMissing {
		t.Fatalf("expected missing handler error, got %v", err)
	}
}
