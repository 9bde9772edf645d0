// backend/database/snapshot.go
package database

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/stockvaluatorpro/taxdata/backend/models"
)

// Snapshot writes a consistent point-in-time copy of the database into
// backupDir and returns its metadata. VACUUM INTO produces a complete,
// compacted copy in a single statement, so readers and writers on the live
// file are never blocked for the duration of a manual file copy.
func (s *Store) Snapshot(ctx context.Context, backupDir string) (*models.BackupSnapshot, error) {
	if err := os.MkdirAll(backupDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create backup directory %s: %w", backupDir, err)
	}

	now := time.Now()
	path := filepath.Join(backupDir, fmt.Sprintf("tax_data_backup_%s.db", now.Format("20060102_150405")))
	if _, err := os.Stat(path); err == nil {
		// Two snapshots in the same second; keep both.
		path = filepath.Join(backupDir, fmt.Sprintf("tax_data_backup_%s.db", now.Format("20060102_150405.000")))
	}

	if _, err := s.db.ExecContext(ctx, `VACUUM INTO ?`, path); err != nil {
		return nil, fmt.Errorf("failed to snapshot database to %s: %w", path, err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("snapshot written but not readable at %s: %w", path, err)
	}

	log.Printf("Database: snapshot created at %s (%d bytes)\n", path, info.Size())
	return &models.BackupSnapshot{
		Path:      path,
		SizeBytes: info.Size(),
		CreatedAt: now,
	}, nil
}
