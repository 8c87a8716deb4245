package store

import (
	"context"
	"fmt"
	"time"

	"github.com/tabeth/concretelocal/models"
)

// ExportItems streams every live item of a table through fn in key order.
// Expired rows are skipped the same way reads skip them.
func (s *SQLiteStore) ExportItems(ctx context.Context, tableName string, fn func(models.Item) error) error {
	if _, err := s.getTable(ctx, tableName); err != nil {
		return err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT payload FROM items
		 WHERE table_name = ? AND (ttl_epoch IS NULL OR ttl_epoch >= ?)
		 ORDER BY pk, sk`,
		tableName, time.Now().Unix())
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return err
		}
		item, err := models.DeserializeItem([]byte(payload))
		if err != nil {
			return err
		}
		if err := fn(item); err != nil {
			return err
		}
	}
	return rows.Err()
}

// ImportItems bulk-loads items through the normal write path, one
// transaction for the whole batch, and records the load as a background
// run. Existing items with the same key are replaced.
func (s *SQLiteStore) ImportItems(ctx context.Context, tableName string, items []models.Item) (imported int, err error) {
	table, err := s.getTable(ctx, tableName)
	if err != nil {
		return 0, err
	}
	runID, err := s.recordRunStart(ctx, "import", tableName)
	if err != nil {
		return 0, err
	}
	defer func() {
		status, msg := "COMPLETED", fmt.Sprintf("imported %d items", imported)
		if err != nil {
			status, msg = "FAILED", err.Error()
		}
		s.recordRunFinish(context.Background(), runID, status, msg)
	}()

	tx, err := s.begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var deltaCount, deltaSize int64
	for i, item := range items {
		key, kerr := extractKeys(table, item)
		if kerr != nil {
			return 0, models.New(models.ErrCodeValidation,
				fmt.Sprintf("item %d: %s", i, kerr.Error()))
		}
		old, rerr := s.readRow(ctx, tx, table.TableName, key)
		if rerr != nil {
			return 0, rerr
		}
		size, werr := s.writeRow(ctx, tx, table, key, item)
		if werr != nil {
			return 0, werr
		}
		if old == nil {
			deltaCount++
			deltaSize += size
		} else {
			deltaSize += size - old.size
		}
	}
	if err = s.bumpAggregates(ctx, tx, table.TableName, deltaCount, deltaSize); err != nil {
		return 0, err
	}
	if err = tx.Commit(); err != nil {
		return 0, err
	}
	return len(items), nil
}
