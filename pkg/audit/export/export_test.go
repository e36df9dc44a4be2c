package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"mercator-hq/sentinel/pkg/audit"
	"mercator-hq/sentinel/pkg/compliance"
)

func testEntries() []*audit.Entry {
	ts := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	return []*audit.Entry{
		{
			ID:        "e1",
			Sequence:  1,
			Action:    "data_access",
			UserID:    "u1",
			TenantID:  "t1",
			Resource:  "customers",
			Data:      map[string]any{"note": "contains, comma and \"quotes\""},
			Timestamp: ts,
			IPAddress: "10.0.0.1",
			Compliance: &audit.ComplianceContext{
				CheckID:        "c1",
				RuleIDs:        []string{"r1", "r2"},
				Severity:       compliance.SeverityHigh,
				ViolationCount: 2,
			},
		},
		{
			ID:        "e2",
			Sequence:  2,
			Action:    "export",
			UserID:    "u2",
			Timestamp: ts.Add(time.Minute),
		},
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		format  string
		wantErr bool
	}{
		{format: "json"},
		{format: "JSON-Pretty"},
		{format: "csv"},
		{format: "xml", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			exp, err := New(tt.format)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New(%q) error = %v, wantErr %v", tt.format, err, tt.wantErr)
			}
			if !tt.wantErr && exp == nil {
				t.Fatal("New() returned nil exporter")
			}
		})
	}
}

func TestJSONExporter_Export(t *testing.T) {
	for _, pretty := range []bool{false, true} {
		var buf bytes.Buffer
		if err := NewJSONExporter(pretty).Export(context.Background(), testEntries(), &buf); err != nil {
			t.Fatalf("Export(pretty=%v) error = %v", pretty, err)
		}

		var got []*audit.Entry
		if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
			t.Fatalf("output is not a JSON array: %v\n%s", err, buf.String())
		}
		if len(got) != 2 || got[0].ID != "e1" || got[1].ID != "e2" {
			t.Errorf("decoded entries = %+v", got)
		}
		if got[0].Compliance == nil || got[0].Compliance.Severity != compliance.SeverityHigh {
			t.Errorf("compliance context lost: %+v", got[0].Compliance)
		}
	}
}

func TestJSONExporter_ExportEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := NewJSONExporter(false).Export(context.Background(), nil, &buf); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "[]" {
		t.Errorf("empty export = %q, want []", buf.String())
	}
}

func TestJSONExporter_ExportStream(t *testing.T) {
	ch := make(chan *audit.Entry, 2)
	for _, e := range testEntries() {
		ch <- e
	}
	close(ch)

	var buf bytes.Buffer
	if err := NewJSONExporter(true).ExportStream(context.Background(), ch, &buf); err != nil {
		t.Fatal(err)
	}

	var got []*audit.Entry
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("stream output is not a JSON array: %v\n%s", err, buf.String())
	}
	if len(got) != 2 {
		t.Errorf("got %d entries, want 2", len(got))
	}
}

func TestExportStream_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ch := make(chan *audit.Entry)

	for _, exp := range []Exporter{NewJSONExporter(false), NewCSVExporter(true)} {
		if err := exp.ExportStream(ctx, ch, &bytes.Buffer{}); !errors.Is(err, context.Canceled) {
			t.Errorf("%T ExportStream() error = %v, want context.Canceled", exp, err)
		}
	}
}

func TestCSVExporter_Export(t *testing.T) {
	var buf bytes.Buffer
	if err := NewCSVExporter(true).Export(context.Background(), testEntries(), &buf); err != nil {
		t.Fatal(err)
	}

	rows, err := csv.NewReader(strings.NewReader(buf.String())).ReadAll()
	if err != nil {
		t.Fatalf("output is not valid CSV: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want 3", len(rows))
	}
	if len(rows[0]) != len(header) || rows[0][0] != "id" {
		t.Errorf("header = %v", rows[0])
	}

	first := rows[1]
	col := func(name string) string {
		for i, h := range header {
			if h == name {
				return first[i]
			}
		}
		t.Fatalf("no column %q", name)
		return ""
	}
	if col("id") != "e1" || col("timestamp") != "2024-06-01T10:00:00Z" {
		t.Errorf("identity columns = %q %q", col("id"), col("timestamp"))
	}
	if col("rule_ids") != "r1;r2" || col("severity") != "high" || col("violation_count") != "2" {
		t.Errorf("compliance columns = %q %q %q", col("rule_ids"), col("severity"), col("violation_count"))
	}

	var data map[string]any
	if err := json.Unmarshal([]byte(col("data")), &data); err != nil {
		t.Fatalf("data column is not JSON: %v", err)
	}
	if data["note"] != "contains, comma and \"quotes\"" {
		t.Errorf("data round trip = %v", data)
	}

	if len(rows[2]) != len(header) || rows[2][10] != "" {
		t.Errorf("entry without compliance context should have empty columns: %v", rows[2])
	}
}

func TestCSVExporter_NoHeader(t *testing.T) {
	var buf bytes.Buffer
	if err := NewCSVExporter(false).Export(context.Background(), testEntries()[:1], &buf); err != nil {
		t.Fatal(err)
	}
	if strings.HasPrefix(buf.String(), "id,") {
		t.Error("header written when disabled")
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("broken pipe") }

func TestExport_WriterError(t *testing.T) {
	for _, exp := range []Exporter{NewJSONExporter(false), NewCSVExporter(true)} {
		err := exp.Export(context.Background(), testEntries(), failingWriter{})
		var exportErr *ExportError
		if !errors.As(err, &exportErr) {
			t.Errorf("%T Export() error = %v, want *ExportError", exp, err)
		}
	}
}
