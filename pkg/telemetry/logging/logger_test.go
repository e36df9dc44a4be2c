package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/trace"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("invalid JSON log line %q: %v", line, err)
		}
		out = append(out, m)
	}
	return out
}

func TestNew_InvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"bad level", Config{Level: "verbose"}},
		{"bad format", Config{Format: "xml"}},
		{"bad pattern", Config{RedactPII: true, RedactPatterns: []RedactPattern{{Name: "broken", Pattern: "("}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.cfg); err == nil {
				t.Error("New() should fail")
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"", slog.LevelInfo},
		{"DEBUG", slog.LevelDebug},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if err != nil || got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, %v; want %v", tt.in, got, err, tt.want)
		}
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Level: "warn", Writer: &buf})
	if err != nil {
		t.Fatal(err)
	}

	logger.Info("dropped")
	logger.Warn("kept")

	lines := decodeLines(t, &buf)
	if len(lines) != 1 || lines[0]["msg"] != "kept" {
		t.Errorf("got %v, want only the warning", lines)
	}
}

func TestLogger_ContextFields(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Writer: &buf})
	if err != nil {
		t.Fatal(err)
	}

	ctx := WithTenant(context.Background(), "tenant-1")
	ctx = WithCheckID(ctx, "check-9")
	ctx = WithRequestID(ctx, "req-1")
	logger.With("component", "test").InfoContext(ctx, "checked", "violations", 2)

	line := decodeLines(t, &buf)[0]
	want := map[string]any{
		"tenant_id":  "tenant-1",
		"check_id":   "check-9",
		"request_id": "req-1",
		"component":  "test",
		"violations": float64(2),
	}
	for k, v := range want {
		if line[k] != v {
			t.Errorf("%s = %v, want %v", k, line[k], v)
		}
	}
	if _, ok := line["trace_id"]; ok {
		t.Error("trace_id should be absent without a span")
	}
	if GetTenant(ctx) != "tenant-1" || GetRequestID(ctx) != "req-1" {
		t.Error("context getters returned wrong values")
	}
}

func TestLogger_TraceContext(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Writer: &buf})
	if err != nil {
		t.Fatal(err)
	}

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	logger.InfoContext(ctx, "traced")

	line := decodeLines(t, &buf)[0]
	if line["trace_id"] != "4bf92f3577b34da6a3ce929d0e0e4736" || line["span_id"] != "00f067aa0ba902b7" {
		t.Errorf("trace fields = %v / %v", line["trace_id"], line["span_id"])
	}
}

func TestLogger_Redaction(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{
		Writer:    &buf,
		RedactPII: true,
		RedactPatterns: []RedactPattern{
			{Name: "patient", Pattern: `PAT-\d+`, Replacement: "PAT-***"},
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	logger.With("api_key", "abcd1234efgh").Info("user record",
		"email", "jane.doe@example.com",
		"note", "patient PAT-12345 called from 192.168.1.100",
		"password", "hunter2",
		"error", errors.New("lookup failed for ssn 123-45-6789"),
		slog.Group("subject", "contact", "bob@corp.io"),
	)

	line := decodeLines(t, &buf)[0]
	checks := map[string]any{
		"api_key":  "abcd***",
		"email":    "***@example.com",
		"note":     "patient PAT-*** called from 192.*.*.*",
		"password": "***",
		"error":    "lookup failed for ssn ***-**-****",
	}
	for k, want := range checks {
		if line[k] != want {
			t.Errorf("%s = %v, want %v", k, line[k], want)
		}
	}
	subject, _ := line["subject"].(map[string]any)
	if subject["contact"] != "***@corp.io" {
		t.Errorf("grouped value = %v, want redacted", subject["contact"])
	}
}

func TestLogger_NoRedactionByDefault(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Config{Writer: &buf, Format: "text"})
	if err != nil {
		t.Fatal(err)
	}
	logger.Info("contact", "email", "jane@example.com")

	if !strings.Contains(buf.String(), "email=jane@example.com") {
		t.Errorf("text output = %q", buf.String())
	}
}

func TestRedactor_Patterns(t *testing.T) {
	r, err := NewRedactor(nil)
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		in   string
		want string
	}{
		{"card 4111-1111-1111-1111", "card ****-****-****-****"},
		{"call 555-123-4567", "call ***-***-****"},
		{"Authorization: Bearer abc.def", "Authorization: Bearer ***"},
		{"password=s3cret", "password: ***"},
		{"nothing to hide", "nothing to hide"},
	}
	for _, tt := range tests {
		if got := r.RedactString(tt.in); got != tt.want {
			t.Errorf("RedactString(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}

	if got := RedactEmail("jane@example.com"); got != "j***@example.com" {
		t.Errorf("RedactEmail() = %q", got)
	}
}
