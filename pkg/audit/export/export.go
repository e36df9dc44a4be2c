package export

import (
	"context"
	"fmt"
	"io"
	"strings"

	"mercator-hq/sentinel/pkg/audit"
)

// Exporter writes audit entries to w.
type Exporter interface {
	Export(ctx context.Context, entries []*audit.Entry, w io.Writer) error
	ExportStream(ctx context.Context, entries <-chan *audit.Entry, w io.Writer) error
}

// New returns the exporter for a format name: "json", "json-pretty" or "csv".
func New(format string) (Exporter, error) {
	switch strings.ToLower(format) {
	case "json":
		return NewJSONExporter(false), nil
	case "json-pretty":
		return NewJSONExporter(true), nil
	case "csv":
		return NewCSVExporter(true), nil
	default:
		return nil, fmt.Errorf("unsupported export format %q", format)
	}
}

// ExportError reports a failed export.
type ExportError struct {
	Format  string
	Entries int
	Cause   error
}

// Error returns the error message.
func (e *ExportError) Error() string {
	return fmt.Sprintf("%s export failed after %d entries: %v", e.Format, e.Entries, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *ExportError) Unwrap() error {
	return e.Cause
}

func newExportError(format string, entries int, cause error) *ExportError {
	return &ExportError{Format: format, Entries: entries, Cause: cause}
}
