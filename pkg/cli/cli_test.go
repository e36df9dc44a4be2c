package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"
)

type textResult struct{ n int }

func (r textResult) WriteText(w io.Writer) error {
	_, err := fmt.Fprintf(w, "count: %d\n", r.n)
	return err
}

func TestFormatters(t *testing.T) {
	data := map[string]int{"rules": 3}

	tests := []struct {
		format OutputFormat
		data   any
		want   string
	}{
		{FormatText, "plain", "plain\n"},
		{FormatText, textResult{n: 2}, "count: 2\n"},
		{"", "plain", "plain\n"},
		{FormatJSON, data, "{\n  \"rules\": 3\n}\n"},
		{"JSON", data, "{\n  \"rules\": 3\n}\n"},
		{FormatYAML, data, "rules: 3\n"},
	}

	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			f, err := NewFormatter(tt.format)
			if err != nil {
				t.Fatalf("NewFormatter() error = %v", err)
			}
			var buf bytes.Buffer
			if err := f.FormatTo(&buf, tt.data); err != nil {
				t.Fatalf("FormatTo() error = %v", err)
			}
			if buf.String() != tt.want {
				t.Errorf("FormatTo() = %q, want %q", buf.String(), tt.want)
			}
		})
	}
}

func TestNewFormatter_Unsupported(t *testing.T) {
	_, err := NewFormatter("xml")
	if err == nil {
		t.Fatal("expected error")
	}
	if ExitCode(err) != ExitConfig {
		t.Errorf("ExitCode() = %d, want %d", ExitCode(err), ExitConfig)
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitOK},
		{"plain", errors.New("boom"), ExitError},
		{"config", NewConfigError("rules.paths", "missing"), ExitConfig},
		{"wrapped config", NewCommandError("run", NewConfigError("", "bad")), ExitConfig},
		{"violation", &ViolationError{Violations: 2, Blocked: true}, ExitViolation},
		{"wrapped violation", fmt.Errorf("check: %w", &ViolationError{Violations: 1}), ExitViolation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExitCode(tt.err); got != tt.want {
				t.Errorf("ExitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{NewConfigError("server", "bad address"), "config error in server: bad address"},
		{NewConfigError("", "no file"), "config error: no file"},
		{NewCommandError("check", errors.New("boom")), "command check failed: boom"},
		{&ViolationError{Violations: 2, Blocked: true}, "action blocked (2 violations)"},
		{&ViolationError{Violations: 1}, "action not compliant (1 violations)"},
	}

	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.want {
			t.Errorf("Error() = %q, want %q", got, tt.want)
		}
	}
}

func TestCommandError_Unwrap(t *testing.T) {
	cause := errors.New("cause")
	if !errors.Is(NewCommandError("x", cause), cause) {
		t.Error("CommandError should unwrap to its cause")
	}
}

func TestSetupSignalHandler(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	ctx, stop := SetupSignalHandler(parent)
	defer stop()

	select {
	case <-ctx.Done():
		t.Fatal("context canceled too early")
	case <-time.After(10 * time.Millisecond):
	}

	cancel()
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("context not canceled with parent")
	}
	if !strings.Contains(ctx.Err().Error(), "canceled") {
		t.Errorf("ctx.Err() = %v", ctx.Err())
	}
}
