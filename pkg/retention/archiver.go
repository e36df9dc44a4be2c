package retention

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// Archiver exports records before they are flagged as archived.
type Archiver interface {
	Archive(ctx context.Context, policy *Policy, records []*Record) error
}

// FileArchiver writes each archive batch to a JSON file in a directory.
type FileArchiver struct {
	dir    string
	logger *slog.Logger
	now    func() time.Time
}

// NewFileArchiver creates an archiver writing to dir. The directory is
// created on first use.
func NewFileArchiver(dir string, logger *slog.Logger) *FileArchiver {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileArchiver{
		dir:    dir,
		logger: logger.With("component", "retention.archiver"),
		now:    time.Now,
	}
}

// Archive writes records to <dir>/<policy id>-<timestamp>.json.
func (a *FileArchiver) Archive(ctx context.Context, policy *Policy, records []*Record) error {
	if len(records) == 0 {
		return nil
	}

	if err := os.MkdirAll(a.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create archive directory: %w", err)
	}

	name := fmt.Sprintf("%s-%s.json", policy.ID, a.now().UTC().Format("20060102-150405.000000000"))
	path := filepath.Join(a.dir, name)

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode archive: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write archive file: %w", err)
	}

	a.logger.InfoContext(ctx, "records archived",
		"policy_id", policy.ID,
		"archive_file", path,
		"record_count", len(records),
	)
	return nil
}
