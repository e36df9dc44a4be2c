package export

import (
	"context"
	"encoding/json"
	"io"

	"mercator-hq/sentinel/pkg/audit"
)

// JSONExporter exports audit entries as a JSON array.
type JSONExporter struct {
	// Pretty enables indentation.
	Pretty bool
}

// NewJSONExporter creates a JSON exporter.
func NewJSONExporter(pretty bool) *JSONExporter {
	return &JSONExporter{Pretty: pretty}
}

// Export writes entries as a JSON array. An empty slice writes "[]".
func (e *JSONExporter) Export(ctx context.Context, entries []*audit.Entry, w io.Writer) error {
	if entries == nil {
		entries = []*audit.Entry{}
	}

	var data []byte
	var err error
	if e.Pretty {
		data, err = json.MarshalIndent(entries, "", "  ")
	} else {
		data, err = json.Marshal(entries)
	}
	if err != nil {
		return newExportError("json", 0, err)
	}

	if _, err := w.Write(data); err != nil {
		return newExportError("json", 0, err)
	}
	return nil
}

// ExportStream writes entries from a channel as a JSON array until the
// channel is closed or ctx is done.
func (e *JSONExporter) ExportStream(ctx context.Context, entries <-chan *audit.Entry, w io.Writer) error {
	if _, err := io.WriteString(w, "["); err != nil {
		return newExportError("json", 0, err)
	}

	count := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case entry, ok := <-entries:
			if !ok {
				if _, err := io.WriteString(w, "]"); err != nil {
					return newExportError("json", count, err)
				}
				return nil
			}

			if count > 0 {
				sep := ","
				if e.Pretty {
					sep = ",\n"
				}
				if _, err := io.WriteString(w, sep); err != nil {
					return newExportError("json", count, err)
				}
			}

			data, err := e.marshal(entry)
			if err != nil {
				return newExportError("json", count, err)
			}
			if _, err := w.Write(data); err != nil {
				return newExportError("json", count, err)
			}
			count++
		}
	}
}

func (e *JSONExporter) marshal(entry *audit.Entry) ([]byte, error) {
	if e.Pretty {
		return json.MarshalIndent(entry, "  ", "  ")
	}
	return json.Marshal(entry)
}
