package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/tabeth/concretelocal/expression"
	"github.com/tabeth/concretelocal/models"
)

// storedRow is one physical row of the items table. A row can be present
// physically yet invisible to reads when its ttl_epoch has passed; the
// write paths still account for it, since its bytes are still on disk.
type storedRow struct {
	item models.Item
	ttl  sql.NullInt64
	size int64
}

// A row expires strictly after its epoch: ttl_epoch == now is still live.
func (r *storedRow) visibleAt(now int64) models.Item {
	if r == nil {
		return nil
	}
	if r.ttl.Valid && r.ttl.Int64 < now {
		return nil
	}
	return r.item
}

func (s *SQLiteStore) readRow(ctx context.Context, tx *sql.Tx, tableName string, key primaryKey) (*storedRow, error) {
	var payload string
	var ttl sql.NullInt64
	err := tx.QueryRowContext(ctx,
		`SELECT payload, ttl_epoch FROM items WHERE table_name = ? AND pk = ? AND sk = ?`,
		tableName, key.PK, key.SK).Scan(&payload, &ttl)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	item, err := models.DeserializeItem([]byte(payload))
	if err != nil {
		return nil, fmt.Errorf("corrupt payload in table %s: %w", tableName, err)
	}
	return &storedRow{item: item, ttl: ttl, size: int64(len(payload))}, nil
}

// writeRow upserts the base row and refreshes every index row derived from
// it. It returns the stored payload size.
func (s *SQLiteStore) writeRow(ctx context.Context, tx *sql.Tx, table *models.Table, key primaryKey, item models.Item) (int64, error) {
	payload, err := models.SerializeItem(item)
	if err != nil {
		return 0, err
	}
	ttl := ttlEpochFor(table, item)
	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO items (table_name, pk, sk, sk_num, ttl_epoch, payload)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		table.TableName, key.PK, key.SK, key.SKNum, ttl, string(payload)); err != nil {
		return 0, err
	}
	if err := s.refreshIndexRows(ctx, tx, table, key, item, ttl, string(payload)); err != nil {
		return 0, err
	}
	return int64(len(payload)), nil
}

func (s *SQLiteStore) deleteRow(ctx context.Context, tx *sql.Tx, table *models.Table, key primaryKey) error {
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM items WHERE table_name = ? AND pk = ? AND sk = ?`,
		table.TableName, key.PK, key.SK); err != nil {
		return err
	}
	return s.dropIndexRows(ctx, tx, table.TableName, key)
}

func (s *SQLiteStore) bumpAggregates(ctx context.Context, tx *sql.Tx, tableName string, deltaCount, deltaSize int64) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE meta_tables SET item_count = item_count + ?, size_bytes = size_bytes + ?
		 WHERE table_name = ?`, deltaCount, deltaSize, tableName)
	return err
}

// checkCondition evaluates a condition expression against the visible old
// item. A failed check is ErrConditionFailed; parse and placeholder
// problems surface as validation errors.
func (s *SQLiteStore) checkCondition(condExpr string, old models.Item, names map[string]string, values map[string]models.AttributeValue) error {
	if condExpr == "" {
		return nil
	}
	node, err := expression.ParseCondition(condExpr)
	if err != nil {
		return models.New(models.ErrCodeValidation, err.Error())
	}
	ok, err := s.eval.EvaluateCondition(node, old, names, values)
	if err != nil {
		return err
	}
	if !ok {
		conditionFailed.Inc()
		return ErrConditionFailed
	}
	return nil
}

func (s *SQLiteStore) PutItem(ctx context.Context, req *models.PutItemRequest) (*models.PutItemResponse, error) {
	if err := validateReturnValues(req.ReturnValues, models.ReturnNone, models.ReturnAllOld); err != nil {
		return nil, err
	}
	table, err := s.getTable(ctx, req.TableName)
	if err != nil {
		return nil, err
	}
	key, err := extractKeys(table, req.Item)
	if err != nil {
		return nil, models.New(models.ErrCodeValidation, err.Error())
	}

	tx, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	now := time.Now().Unix()
	old, err := s.readRow(ctx, tx, table.TableName, key)
	if err != nil {
		return nil, err
	}
	visibleOld := old.visibleAt(now)
	if err := s.checkCondition(req.ConditionExpression, visibleOld,
		req.ExpressionAttributeNames, req.ExpressionAttributeValues); err != nil {
		return nil, err
	}

	newSize, err := s.writeRow(ctx, tx, table, key, req.Item)
	if err != nil {
		return nil, err
	}
	deltaCount := int64(1)
	var oldSize int64
	if old != nil {
		deltaCount = 0
		oldSize = old.size
	}
	if err := s.bumpAggregates(ctx, tx, table.TableName, deltaCount, newSize-oldSize); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	putCounter.Inc()

	resp := &models.PutItemResponse{}
	if req.ReturnValues == models.ReturnAllOld {
		resp.Attributes = visibleOld
	}
	return resp, nil
}

func (s *SQLiteStore) GetItem(ctx context.Context, req *models.GetItemRequest) (*models.GetItemResponse, error) {
	table, err := s.getTable(ctx, req.TableName)
	if err != nil {
		return nil, err
	}
	if err := validateKeyInput(table, req.Key); err != nil {
		return nil, models.New(models.ErrCodeValidation, err.Error())
	}
	key, err := extractKeys(table, req.Key)
	if err != nil {
		return nil, models.New(models.ErrCodeValidation, err.Error())
	}

	var payload string
	var ttl sql.NullInt64
	err = s.db.QueryRowContext(ctx,
		`SELECT payload, ttl_epoch FROM items WHERE table_name = ? AND pk = ? AND sk = ?`,
		table.TableName, key.PK, key.SK).Scan(&payload, &ttl)
	if err == sql.ErrNoRows {
		getCounter.Inc()
		return &models.GetItemResponse{}, nil
	}
	if err != nil {
		return nil, err
	}
	row := &storedRow{ttl: ttl}
	if row.item, err = models.DeserializeItem([]byte(payload)); err != nil {
		return nil, fmt.Errorf("corrupt payload in table %s: %w", table.TableName, err)
	}
	item := row.visibleAt(time.Now().Unix())
	if item != nil && req.ProjectionExpression != "" {
		item, err = s.projectItem(item, req.ProjectionExpression, req.ExpressionAttributeNames)
		if err != nil {
			return nil, err
		}
	}
	getCounter.Inc()
	return &models.GetItemResponse{Item: item}, nil
}

func (s *SQLiteStore) DeleteItem(ctx context.Context, req *models.DeleteItemRequest) (*models.DeleteItemResponse, error) {
	if err := validateReturnValues(req.ReturnValues, models.ReturnNone, models.ReturnAllOld); err != nil {
		return nil, err
	}
	table, err := s.getTable(ctx, req.TableName)
	if err != nil {
		return nil, err
	}
	if err := validateKeyInput(table, req.Key); err != nil {
		return nil, models.New(models.ErrCodeValidation, err.Error())
	}
	key, err := extractKeys(table, req.Key)
	if err != nil {
		return nil, models.New(models.ErrCodeValidation, err.Error())
	}

	tx, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	now := time.Now().Unix()
	old, err := s.readRow(ctx, tx, table.TableName, key)
	if err != nil {
		return nil, err
	}
	visibleOld := old.visibleAt(now)
	if err := s.checkCondition(req.ConditionExpression, visibleOld,
		req.ExpressionAttributeNames, req.ExpressionAttributeValues); err != nil {
		return nil, err
	}

	if old != nil {
		if err := s.deleteRow(ctx, tx, table, key); err != nil {
			return nil, err
		}
		if err := s.bumpAggregates(ctx, tx, table.TableName, -1, -old.size); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	deleteCounter.Inc()

	resp := &models.DeleteItemResponse{}
	if req.ReturnValues == models.ReturnAllOld {
		resp.Attributes = visibleOld
	}
	return resp, nil
}

func (s *SQLiteStore) UpdateItem(ctx context.Context, req *models.UpdateItemRequest) (*models.UpdateItemResponse, error) {
	if err := validateReturnValues(req.ReturnValues, models.ReturnNone, models.ReturnAllOld,
		models.ReturnAllNew, models.ReturnUpdatedOld, models.ReturnUpdatedNew); err != nil {
		return nil, err
	}
	table, err := s.getTable(ctx, req.TableName)
	if err != nil {
		return nil, err
	}
	if err := validateKeyInput(table, req.Key); err != nil {
		return nil, models.New(models.ErrCodeValidation, err.Error())
	}
	key, err := extractKeys(table, req.Key)
	if err != nil {
		return nil, models.New(models.ErrCodeValidation, err.Error())
	}
	update, err := expression.ParseUpdate(req.UpdateExpression)
	if err != nil {
		return nil, models.New(models.ErrCodeValidation, err.Error())
	}

	tx, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	now := time.Now().Unix()
	old, err := s.readRow(ctx, tx, table.TableName, key)
	if err != nil {
		return nil, err
	}
	visibleOld := old.visibleAt(now)
	if err := s.checkCondition(req.ConditionExpression, visibleOld,
		req.ExpressionAttributeNames, req.ExpressionAttributeValues); err != nil {
		return nil, err
	}

	// Updates upsert: an absent item starts from its key attributes.
	base := visibleOld
	if base == nil {
		base = models.CopyItem(req.Key)
	}
	newItem, err := s.eval.ApplyUpdate(update, base, req.ExpressionAttributeNames, req.ExpressionAttributeValues)
	if err != nil {
		return nil, err
	}
	newKey, err := extractKeys(table, newItem)
	if err != nil || newKey.PK != key.PK || newKey.SK != key.SK {
		return nil, models.New(models.ErrCodeValidation, "update expression must not modify key attributes")
	}

	newSize, err := s.writeRow(ctx, tx, table, key, newItem)
	if err != nil {
		return nil, err
	}
	deltaCount := int64(1)
	var oldSize int64
	if old != nil {
		deltaCount = 0
		oldSize = old.size
	}
	if err := s.bumpAggregates(ctx, tx, table.TableName, deltaCount, newSize-oldSize); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	updateCounter.Inc()

	resp := &models.UpdateItemResponse{}
	switch req.ReturnValues {
	case models.ReturnAllOld:
		resp.Attributes = visibleOld
	case models.ReturnAllNew:
		resp.Attributes = newItem
	case models.ReturnUpdatedOld:
		resp.Attributes = changedAttributes(visibleOld, newItem, visibleOld)
	case models.ReturnUpdatedNew:
		resp.Attributes = changedAttributes(visibleOld, newItem, newItem)
	}
	return resp, nil
}

// changedAttributes picks, from source, the top-level attributes whose
// value differs between the old and updated items.
func changedAttributes(old, updated, source models.Item) models.Item {
	if source == nil {
		return nil
	}
	out := models.Item{}
	for name, v := range source {
		ov, inOld := old[name]
		nv, inNew := updated[name]
		if inOld != inNew || (inOld && !ov.Equal(nv)) {
			out[name] = v
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func (s *SQLiteStore) projectItem(item models.Item, projExpr string, names map[string]string) (models.Item, error) {
	paths, err := expression.ParseProjection(projExpr)
	if err != nil {
		return nil, models.New(models.ErrCodeValidation, err.Error())
	}
	return s.eval.ProjectItem(item, paths, names)
}

func validateReturnValues(rv string, allowed ...string) error {
	if rv == "" {
		return nil
	}
	for _, a := range allowed {
		if rv == a {
			return nil
		}
	}
	return models.New(models.ErrCodeValidation, fmt.Sprintf("invalid ReturnValues %q", rv))
}
