package storage

import (
	"database/sql"
	"fmt"

	"github.com/martinsuchenak/invd/internal/model"
)

// CreateSyncRun stores a finished synchronization
func (ss *SQLiteStorage) CreateSyncRun(run *model.SyncRun) error {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	if run.ID == "" {
		run.ID = newID()
	}
	results, err := encodeColumn(run.Results)
	if err != nil {
		return fmt.Errorf("encoding sync results: %w", err)
	}

	_, err = ss.db.Exec(`
		INSERT INTO sync_runs (id, device_id, source, started_at, finished_at, error, successes, warnings, errors, results)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.DeviceID, run.Source, run.StartedAt.UTC(), run.FinishedAt.UTC(), nullable(run.Error),
		run.Successes, run.Warnings, run.Errors, results)
	if err != nil {
		return fmt.Errorf("inserting sync run: %w", err)
	}
	return nil
}

const syncRunColumns = "id, device_id, source, started_at, finished_at, error, successes, warnings, errors, results"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSyncRun(row rowScanner) (*model.SyncRun, error) {
	var run model.SyncRun
	var runErr, results sql.NullString
	err := row.Scan(&run.ID, &run.DeviceID, &run.Source, &run.StartedAt, &run.FinishedAt, &runErr,
		&run.Successes, &run.Warnings, &run.Errors, &results)
	if err != nil {
		return nil, err
	}
	run.Error = runErr.String
	if err := decodeColumn(results.String, &run.Results); err != nil {
		return nil, fmt.Errorf("decoding sync results: %w", err)
	}
	return &run, nil
}

// GetSyncRun returns one sync run with its results
func (ss *SQLiteStorage) GetSyncRun(id string) (*model.SyncRun, error) {
	ss.mu.RLock()
	defer ss.mu.RUnlock()

	run, err := scanSyncRun(ss.db.QueryRow("SELECT "+syncRunColumns+" FROM sync_runs WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrSyncRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("querying sync run: %w", err)
	}
	return run, nil
}

// ListSyncRuns returns the most recent runs first. An empty deviceID lists
// every device; limit <= 0 means no limit.
func (ss *SQLiteStorage) ListSyncRuns(deviceID string, limit int) ([]model.SyncRun, error) {
	ss.mu.RLock()
	defer ss.mu.RUnlock()

	query := "SELECT " + syncRunColumns + " FROM sync_runs"
	var args []any
	if deviceID != "" {
		query += " WHERE device_id = ?"
		args = append(args, deviceID)
	}
	query += " ORDER BY started_at DESC, id DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := ss.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying sync runs: %w", err)
	}
	defer rows.Close()

	var runs []model.SyncRun
	for rows.Next() {
		run, err := scanSyncRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning sync run: %w", err)
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}
