// backend/database/history_store.go
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/stockvaluatorpro/taxdata/backend/models"
)

var (
	// ErrInvalidTransition is returned for any illegal status edge,
	// including the case where a concurrent caller won the transition race.
	ErrInvalidTransition = errors.New("invalid update-history status transition")
	// ErrRecordNotFound is returned when a history record id does not exist.
	ErrRecordNotFound = errors.New("update-history record not found")
)

// TransitionFields carries the mutable fields a status transition may set.
type TransitionFields struct {
	ApprovedBy string
	ExecutedAt *time.Time
	Notes      string
}

// RecordCheck appends a check record to the update history and fills in its
// assigned id. Every successful probe is recorded, changed or not; the check
// itself is part of the audit trail.
func (s *Store) RecordCheck(ctx context.Context, rec *models.UpdateCheckRecord) error {
	if rec.Status == "" {
		rec.Status = models.StatusChecked
	}
	if rec.CheckedAt.IsZero() {
		rec.CheckedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO update_history
			(data_type, checked_at, last_modified, etag, content_hash, update_available, status, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.DatasetType, rec.CheckedAt.Format(time.RFC3339Nano), rec.LastModified, rec.ETag,
		rec.ContentHash, rec.UpdateAvailable, rec.Status, rec.Notes)
	if err != nil {
		return fmt.Errorf("failed to insert update-history record for %s: %w", rec.DatasetType, err)
	}
	rec.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read update-history record id: %w", err)
	}
	return nil
}

const historyColumns = `id, data_type, checked_at, last_modified, etag, content_hash,
	update_available, status, approved_by, executed_at, notes`

// LatestCheck returns the most recent check record for a dataset type, or
// nil when the type has never been checked. Ties on checked_at resolve to
// the highest id.
func (s *Store) LatestCheck(ctx context.Context, t models.DatasetType) (*models.UpdateCheckRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+historyColumns+`
		FROM update_history
		WHERE data_type = ?
		ORDER BY checked_at DESC, id DESC
		LIMIT 1
	`, t)
	rec, err := scanHistoryRow(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return rec, err
}

// LatestPending returns the most recent update-available record still
// awaiting approval for a dataset type, or nil when there is none.
func (s *Store) LatestPending(ctx context.Context, t models.DatasetType) (*models.UpdateCheckRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+historyColumns+`
		FROM update_history
		WHERE data_type = ? AND status = ? AND update_available
		ORDER BY checked_at DESC, id DESC
		LIMIT 1
	`, t, models.StatusChecked)
	rec, err := scanHistoryRow(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return rec, err
}

// History returns up to limit records, newest first, optionally filtered by
// dataset type (empty type means all).
func (s *Store) History(ctx context.Context, t models.DatasetType, limit int) ([]models.UpdateCheckRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	query := `SELECT ` + historyColumns + ` FROM update_history`
	args := []any{}
	if t != "" {
		query += ` WHERE data_type = ?`
		args = append(args, t)
	}
	query += ` ORDER BY checked_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query update history: %w", err)
	}
	defer rows.Close()

	var records []models.UpdateCheckRecord
	for rows.Next() {
		rec, err := scanHistoryRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating update-history rows: %w", err)
	}
	return records, nil
}

// Transition moves a record to the next status, enforcing the state machine:
// checked(update-available) -> approved -> completed|failed. The status
// update is compare-and-swap on the current status, so of two concurrent
// approvals exactly one succeeds and the other gets ErrInvalidTransition.
func (s *Store) Transition(ctx context.Context, id int64, next models.UpdateStatus, fields TransitionFields) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transition transaction: %w", err)
	}
	defer tx.Rollback()

	var current models.UpdateStatus
	var updateAvailable bool
	err = tx.QueryRowContext(ctx,
		`SELECT status, update_available FROM update_history WHERE id = ?`, id).
		Scan(&current, &updateAvailable)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("record %d: %w", id, ErrRecordNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to load record %d for transition: %w", id, err)
	}

	if !models.CanTransition(current, next) {
		return fmt.Errorf("record %d: %s -> %s: %w", id, current, next, ErrInvalidTransition)
	}
	// A no-update check is terminal; it must never be approved.
	if next == models.StatusApproved && !updateAvailable {
		return fmt.Errorf("record %d has no update available: %w", id, ErrInvalidTransition)
	}

	var executedAt any
	if fields.ExecutedAt != nil {
		executedAt = fields.ExecutedAt.UTC().Format(time.RFC3339Nano)
	}
	res, err := tx.ExecContext(ctx, `
		UPDATE update_history
		SET status = ?,
		    approved_by = CASE WHEN ? != '' THEN ? ELSE approved_by END,
		    executed_at = COALESCE(?, executed_at),
		    notes = CASE WHEN ? != '' THEN ? ELSE notes END
		WHERE id = ? AND status = ?
	`, next, fields.ApprovedBy, fields.ApprovedBy, executedAt, fields.Notes, fields.Notes, id, current)
	if err != nil {
		return fmt.Errorf("failed to transition record %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read transition result for record %d: %w", id, err)
	}
	if n == 0 {
		// Someone else moved the record first.
		return fmt.Errorf("record %d changed concurrently: %w", id, ErrInvalidTransition)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transition for record %d: %w", id, err)
	}
	log.Printf("Database: update-history record %d transitioned %s -> %s\n", id, current, next)
	return nil
}

func scanHistoryRow(scan func(...any) error) (*models.UpdateCheckRecord, error) {
	var rec models.UpdateCheckRecord
	var checkedAt string
	var executedAt sql.NullString
	if err := scan(&rec.ID, &rec.DatasetType, &checkedAt, &rec.LastModified, &rec.ETag,
		&rec.ContentHash, &rec.UpdateAvailable, &rec.Status, &rec.ApprovedBy,
		&executedAt, &rec.Notes); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan update-history row: %w", err)
	}
	t, err := time.Parse(time.RFC3339Nano, checkedAt)
	if err != nil {
		return nil, fmt.Errorf("bad checked_at value %q: %w", checkedAt, err)
	}
	rec.CheckedAt = t
	if executedAt.Valid {
		t, err := time.Parse(time.RFC3339Nano, executedAt.String)
		if err != nil {
			return nil, fmt.Errorf("bad executed_at value %q: %w", executedAt.String, err)
		}
		rec.ExecutedAt = &t
	}
	return &rec, nil
}
