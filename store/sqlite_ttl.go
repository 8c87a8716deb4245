package store

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/tabeth/concretelocal/models"
)

// ttlEpochFor extracts the expiry epoch from an item under the table's TTL
// setting. Anything that is not a parseable number attribute means "never
// expires"; a malformed expiry never blocks a write.
func ttlEpochFor(table *models.Table, item models.Item) sql.NullInt64 {
	attr := table.TTLAttribute()
	if attr == "" {
		return sql.NullInt64{}
	}
	v, ok := item[attr]
	if !ok {
		return sql.NullInt64{}
	}
	n, ok := v.AsNumber()
	if !ok {
		return sql.NullInt64{}
	}
	f, err := models.NumberToFloat(n)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(f), Valid: true}
}

// recomputeTTLEpochs rewrites the ttl_epoch column of every row in a table
// after its TTL setting changed. Payloads are authoritative; the column is
// derived.
func (s *SQLiteStore) recomputeTTLEpochs(ctx context.Context, tx *sql.Tx, table *models.Table) error {
	rows, err := tx.QueryContext(ctx,
		`SELECT pk, sk, payload FROM items WHERE table_name = ?`, table.TableName)
	if err != nil {
		return err
	}
	type rowKey struct {
		pk, sk string
		ttl    sql.NullInt64
	}
	var updates []rowKey
	for rows.Next() {
		var pk, sk, payload string
		if err := rows.Scan(&pk, &sk, &payload); err != nil {
			rows.Close()
			return err
		}
		item, err := models.DeserializeItem([]byte(payload))
		if err != nil {
			rows.Close()
			return err
		}
		updates = append(updates, rowKey{pk: pk, sk: sk, ttl: ttlEpochFor(table, item)})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}
	for _, u := range updates {
		if _, err := tx.ExecContext(ctx,
			`UPDATE items SET ttl_epoch = ? WHERE table_name = ? AND pk = ? AND sk = ?`,
			u.ttl, table.TableName, u.pk, u.sk); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE index_items SET ttl_epoch = ? WHERE table_name = ? AND base_pk = ? AND base_sk = ?`,
			u.ttl, table.TableName, u.pk, u.sk); err != nil {
			return err
		}
	}
	return nil
}

// RunTTLSweep removes expired rows from one table, or from all tables when
// name is empty. Explicit calls always run; the background worker goes
// through sweepIfDue instead, which spaces passes per table.
func (s *SQLiteStore) RunTTLSweep(ctx context.Context, name string) (int, error) {
	names := []string{name}
	if name == "" {
		var err error
		names, err = s.ListTables(ctx)
		if err != nil {
			return 0, err
		}
	}
	total := 0
	for _, n := range names {
		deleted, err := s.sweepTable(ctx, n)
		if err != nil {
			return total, err
		}
		total += deleted
	}
	return total, nil
}

func (s *SQLiteStore) sweepIfDue(ctx context.Context, name string) {
	last, ok := s.lastSweep.Load(name)
	if ok && time.Since(last) < s.cfg.SweepInterval {
		return
	}
	if _, err := s.sweepTable(ctx, name); err != nil {
		log.Printf("ttl sweep of table %s failed: %v", name, err)
	}
}

// sweepTable deletes every expired row of one table and refreshes the
// aggregates. The whole pass is a single transaction; a reader never sees
// a base row whose index rows are already gone.
func (s *SQLiteStore) sweepTable(ctx context.Context, name string) (deleted int, err error) {
	if _, err := s.getTable(ctx, name); err != nil {
		return 0, err
	}
	s.lastSweep.Store(name, time.Now())
	runID, err := s.recordRunStart(ctx, "ttl_sweep", name)
	if err != nil {
		return 0, err
	}
	defer func() {
		status, msg := "COMPLETED", fmt.Sprintf("deleted %d items", deleted)
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

	now := time.Now().Unix()
	var reclaimed sql.NullInt64
	if err = tx.QueryRowContext(ctx,
		`SELECT SUM(LENGTH(payload)) FROM items WHERE table_name = ? AND ttl_epoch IS NOT NULL AND ttl_epoch < ?`,
		name, now).Scan(&reclaimed); err != nil {
		return 0, err
	}
	res, err := tx.ExecContext(ctx,
		`DELETE FROM items WHERE table_name = ? AND ttl_epoch IS NOT NULL AND ttl_epoch < ?`,
		name, now)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	deleted = int(n)
	if _, err = tx.ExecContext(ctx,
		`DELETE FROM index_items WHERE table_name = ? AND ttl_epoch IS NOT NULL AND ttl_epoch < ?`,
		name, now); err != nil {
		return 0, err
	}
	if err = s.bumpAggregates(ctx, tx, name, -int64(deleted), -reclaimed.Int64); err != nil {
		return 0, err
	}
	if err = tx.Commit(); err != nil {
		return 0, err
	}
	ttlSweepCounter.Inc()
	ttlDeleteCount.Add(deleted)
	return deleted, nil
}

// StartWorkers launches the periodic sweeper. Safe to call once per
// engine; further calls are no-ops.
func (s *SQLiteStore) StartWorkers() {
	s.workerOnce.Do(func() {
		s.workerWG.Add(1)
		go s.sweepLoop()
	})
}

func (s *SQLiteStore) StopWorkers() {
	select {
	case <-s.workerStop:
	default:
		close(s.workerStop)
	}
	s.workerWG.Wait()
}

func (s *SQLiteStore) sweepLoop() {
	defer s.workerWG.Done()
	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.workerStop:
			return
		case <-ticker.C:
			s.sweepPass()
		}
	}
}

// sweepPass visits every table once. A panic in one pass is contained so a
// bad table state cannot kill the worker goroutine.
func (s *SQLiteStore) sweepPass() {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("ttl sweep pass panicked: %v", r)
		}
	}()
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	names, err := s.ListTables(ctx)
	if err != nil {
		log.Printf("ttl sweep pass could not list tables: %v", err)
		return
	}
	for _, name := range names {
		s.sweepIfDue(ctx, name)
	}
}
