package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Background-run bookkeeping. Every sweep and import leaves a row behind
// so operators can see what maintenance ran, when, and how it ended.

func (s *SQLiteStore) recordRunStart(ctx context.Context, kind, tableName string) (string, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO background_runs (id, kind, table_name, status, started_at)
		 VALUES (?, ?, ?, 'RUNNING', ?)`,
		id, kind, tableName, time.Now().Unix())
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *SQLiteStore) recordRunFinish(ctx context.Context, id, status, message string) {
	// Best effort; a failed status write must not fail the job itself.
	s.db.ExecContext(ctx,
		`UPDATE background_runs SET status = ?, message = ?, finished_at = ? WHERE id = ?`,
		status, message, time.Now().Unix(), id)
}

// ListBackgroundRuns returns runs newest first, optionally filtered to one
// table.
func (s *SQLiteStore) ListBackgroundRuns(ctx context.Context, tableName string) ([]BackgroundRun, error) {
	query := `SELECT id, kind, table_name, status, message, started_at, finished_at
		FROM background_runs`
	var args []any
	if tableName != "" {
		query += ` WHERE table_name = ?`
		args = append(args, tableName)
	}
	query += ` ORDER BY started_at DESC, id`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []BackgroundRun
	for rows.Next() {
		var r BackgroundRun
		var started int64
		var finished sql.NullInt64
		if err := rows.Scan(&r.ID, &r.Kind, &r.TableName, &r.Status, &r.Message, &started, &finished); err != nil {
			return nil, err
		}
		r.StartedAt = time.Unix(started, 0).UTC()
		if finished.Valid {
			r.FinishedAt = time.Unix(finished.Int64, 0).UTC()
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
