// backend/services/backup_service.go
package services

import (
	"context"
	"log"

	"github.com/stockvaluatorpro/taxdata/backend/models"
)

// Snapshotter is the store's snapshot primitive.
type Snapshotter interface {
	Snapshot(ctx context.Context, backupDir string) (*models.BackupSnapshot, error)
}

// BackupManager creates post-import snapshots of the reference store.
// Snapshots are best-effort: failures are logged and reported to the caller
// but never block or roll back the import that triggered them.
type BackupManager struct {
	store     Snapshotter
	backupDir string
}

func NewBackupManager(store Snapshotter, backupDir string) *BackupManager {
	return &BackupManager{store: store, backupDir: backupDir}
}

// Snapshot writes one timestamped snapshot and returns its metadata.
func (m *BackupManager) Snapshot(ctx context.Context) (*models.BackupSnapshot, error) {
	snap, err := m.store.Snapshot(ctx, m.backupDir)
	if err != nil {
		return nil, err
	}
	log.Printf("Service: backup snapshot created: %s\n", snap.Path)
	return snap, nil
}
