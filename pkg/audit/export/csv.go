package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"
	"strings"
	"time"

	"mercator-hq/sentinel/pkg/audit"
)

// CSVExporter exports audit entries as CSV.
type CSVExporter struct {
	// IncludeHeader writes a header row first.
	IncludeHeader bool
}

// NewCSVExporter creates a CSV exporter.
func NewCSVExporter(includeHeader bool) *CSVExporter {
	return &CSVExporter{IncludeHeader: includeHeader}
}

var header = []string{
	"id", "sequence", "timestamp",
	"action", "user_id", "tenant_id", "resource",
	"ip_address", "user_agent", "session_id",
	"check_id", "compliant", "blocked", "severity", "violation_count", "rule_ids",
	"data_classification", "retention_policy",
	"data",
}

// Export writes entries as CSV rows. Nested data is encoded as JSON in the
// data column and rule ids are joined with ";".
func (e *CSVExporter) Export(ctx context.Context, entries []*audit.Entry, w io.Writer) error {
	writer := csv.NewWriter(w)

	if e.IncludeHeader {
		if err := writer.Write(header); err != nil {
			return newExportError("csv", 0, err)
		}
	}

	for i, entry := range entries {
		if err := writer.Write(entryToRow(entry)); err != nil {
			return newExportError("csv", i, err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return newExportError("csv", len(entries), err)
	}
	return nil
}

// ExportStream writes entries from a channel as CSV rows until the channel
// is closed or ctx is done. Output is flushed every 100 rows.
func (e *CSVExporter) ExportStream(ctx context.Context, entries <-chan *audit.Entry, w io.Writer) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if e.IncludeHeader {
		if err := writer.Write(header); err != nil {
			return newExportError("csv", 0, err)
		}
	}

	count := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case entry, ok := <-entries:
			if !ok {
				writer.Flush()
				if err := writer.Error(); err != nil {
					return newExportError("csv", count, err)
				}
				return nil
			}

			if err := writer.Write(entryToRow(entry)); err != nil {
				return newExportError("csv", count, err)
			}
			count++

			if count%100 == 0 {
				writer.Flush()
				if err := writer.Error(); err != nil {
					return newExportError("csv", count, err)
				}
			}
		}
	}
}

func entryToRow(e *audit.Entry) []string {
	row := []string{
		e.ID,
		strconv.FormatUint(e.Sequence, 10),
		formatTime(e.Timestamp),
		e.Action,
		e.UserID,
		e.TenantID,
		e.Resource,
		e.IPAddress,
		e.UserAgent,
		e.SessionID,
	}

	if cc := e.Compliance; cc != nil {
		row = append(row,
			cc.CheckID,
			strconv.FormatBool(cc.Compliant),
			strconv.FormatBool(cc.Blocked),
			string(cc.Severity),
			strconv.Itoa(cc.ViolationCount),
			strings.Join(cc.RuleIDs, ";"),
			cc.DataClassification,
			cc.RetentionPolicy,
		)
	} else {
		row = append(row, "", "", "", "", "", "", "", "")
	}

	return append(row, formatJSON(e.Data))
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339Nano)
}

func formatJSON(v map[string]any) string {
	if len(v) == 0 {
		return ""
	}
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}
