// Package export writes audit trail entries in interchange formats.
//
// # Export Formats
//
//   - JSON: array of entries, with optional pretty-printing
//   - CSV: flattened schema with header row and proper escaping
//
// # Usage
//
//	exporter, err := export.New("csv")
//	if err != nil {
//	    return err
//	}
//	entries := trail.Query(&audit.Filter{TenantID: "t1"})
//	err = exporter.Export(ctx, entries, os.Stdout)
//
// # Streaming
//
// ExportStream consumes entries from a channel so large persisted trails can
// be written without holding them all in memory.
//
// # Error Handling
//
// Exporters return *ExportError when encoding or writing fails.
package export
