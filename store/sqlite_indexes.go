package store

import (
	"context"
	"database/sql"

	"github.com/tabeth/concretelocal/models"
)

// Index rows are fully denormalized: each carries the whole item payload
// plus a back-reference to the base row's key, so index queries never
// touch the base table and base writes can drop stale rows by
// back-reference alone. Maintenance is delete-then-insert; computing which
// rows an old payload produced is never necessary.

func (s *SQLiteStore) refreshIndexRows(ctx context.Context, tx *sql.Tx, table *models.Table, base primaryKey, item models.Item, ttl sql.NullInt64, payload string) error {
	if err := s.dropIndexRows(ctx, tx, table.TableName, base); err != nil {
		return err
	}
	indexes := table.Indexes()
	for i := range indexes {
		idx := indexes[i]
		key, ok := tryExtractIndexKeys(table, &idx, item)
		if !ok {
			// The item misses an index key attribute: sparse, no row.
			continue
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO index_items
			 (table_name, index_name, pk, sk, sk_num, base_pk, base_sk, ttl_epoch, payload)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			table.TableName, idx.IndexName, key.PK, key.SK, key.SKNum,
			base.PK, base.SK, ttl, payload); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) dropIndexRows(ctx context.Context, tx *sql.Tx, tableName string, base primaryKey) error {
	_, err := tx.ExecContext(ctx,
		`DELETE FROM index_items WHERE table_name = ? AND base_pk = ? AND base_sk = ?`,
		tableName, base.PK, base.SK)
	return err
}

// applyIndexProjection narrows an item read from an index row to the
// index's declared projection. Rows always store the full item, so ALL is
// a pass-through.
func applyIndexProjection(table *models.Table, idx *models.SecondaryIndex, item models.Item) models.Item {
	if item == nil || idx.Projection.ProjectionType == "" || idx.Projection.ProjectionType == "ALL" {
		return item
	}
	keep := map[string]bool{
		table.HashKeyName(): true,
	}
	if rk := table.RangeKeyName(); rk != "" {
		keep[rk] = true
	}
	for _, e := range idx.KeySchema {
		keep[e.AttributeName] = true
	}
	if idx.Projection.ProjectionType == "INCLUDE" {
		for _, name := range idx.Projection.NonKeyAttributes {
			keep[name] = true
		}
	}
	out := models.Item{}
	for name, v := range item {
		if keep[name] {
			out[name] = v
		}
	}
	return out
}
