package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tabeth/concretelocal/expression"
	"github.com/tabeth/concretelocal/models"
)

const (
	maxBatchGetKeys    = 100
	maxBatchWriteItems = 25
	maxTransactItems   = 100

	// Transactions replaying the same client token inside this window are
	// treated as duplicates of the first attempt.
	transactTokenWindow = 10 * time.Minute
)

// resolveTables loads every named schema up front. Schema loads must not
// happen inside an open transaction: in memory mode the pool holds a
// single connection, the transaction pins it, and a cache-miss load would
// wait forever for a connection the caller already holds.
func (s *SQLiteStore) resolveTables(ctx context.Context, names []string) (map[string]*models.Table, error) {
	tables := make(map[string]*models.Table, len(names))
	for _, name := range names {
		if _, ok := tables[name]; ok {
			continue
		}
		table, err := s.getTable(ctx, name)
		if err != nil {
			return nil, err
		}
		tables[name] = table
	}
	return tables, nil
}

// BatchGetItem reads up to 100 keys across tables in one snapshot. Missing
// and expired items are simply absent from the response.
func (s *SQLiteStore) BatchGetItem(ctx context.Context, req *models.BatchGetItemRequest) (*models.BatchGetItemResponse, error) {
	total := 0
	for _, ka := range req.RequestItems {
		total += len(ka.Keys)
	}
	if total == 0 || total > maxBatchGetKeys {
		return nil, models.New(models.ErrCodeValidation,
			fmt.Sprintf("BatchGetItem accepts between 1 and %d keys", maxBatchGetKeys))
	}
	names := make([]string, 0, len(req.RequestItems))
	for name := range req.RequestItems {
		names = append(names, name)
	}
	tables, err := s.resolveTables(ctx, names)
	if err != nil {
		return nil, err
	}

	tx, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	now := time.Now().Unix()
	resp := &models.BatchGetItemResponse{Responses: map[string][]models.Item{}}
	for tableName, ka := range req.RequestItems {
		table := tables[tableName]
		items := []models.Item{}
		for _, keyItem := range ka.Keys {
			if err := validateKeyInput(table, keyItem); err != nil {
				return nil, models.New(models.ErrCodeValidation, err.Error())
			}
			key, err := extractKeys(table, keyItem)
			if err != nil {
				return nil, models.New(models.ErrCodeValidation, err.Error())
			}
			row, err := s.readRow(ctx, tx, tableName, key)
			if err != nil {
				return nil, err
			}
			item := row.visibleAt(now)
			if item == nil {
				continue
			}
			if ka.ProjectionExpression != "" {
				item, err = s.projectItem(item, ka.ProjectionExpression, ka.ExpressionAttributeNames)
				if err != nil {
					return nil, err
				}
			}
			items = append(items, item)
		}
		resp.Responses[tableName] = items
	}
	return resp, tx.Commit()
}

// BatchWriteItem applies up to 25 unconditioned puts and deletes in one
// transaction. Unlike the upstream service this engine has no partial
// failure mode, so there are no unprocessed items to return.
func (s *SQLiteStore) BatchWriteItem(ctx context.Context, req *models.BatchWriteItemRequest) (*models.BatchWriteItemResponse, error) {
	total := 0
	for _, writes := range req.RequestItems {
		total += len(writes)
	}
	if total == 0 || total > maxBatchWriteItems {
		return nil, models.New(models.ErrCodeValidation,
			fmt.Sprintf("BatchWriteItem accepts between 1 and %d requests", maxBatchWriteItems))
	}
	names := make([]string, 0, len(req.RequestItems))
	for name := range req.RequestItems {
		names = append(names, name)
	}
	tables, err := s.resolveTables(ctx, names)
	if err != nil {
		return nil, err
	}

	tx, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	touched := map[string]bool{}
	for tableName, writes := range req.RequestItems {
		table := tables[tableName]
		for _, w := range writes {
			if (w.PutRequest == nil) == (w.DeleteRequest == nil) {
				return nil, models.New(models.ErrCodeValidation,
					"each write request must carry exactly one of PutRequest or DeleteRequest")
			}
			var key primaryKey
			var keyErr error
			if w.PutRequest != nil {
				key, keyErr = extractKeys(table, w.PutRequest.Item)
			} else {
				if keyErr = validateKeyInput(table, w.DeleteRequest.Key); keyErr == nil {
					key, keyErr = extractKeys(table, w.DeleteRequest.Key)
				}
			}
			if keyErr != nil {
				return nil, models.New(models.ErrCodeValidation, keyErr.Error())
			}
			dedup := tableName + "\x00" + key.PK + "\x00" + key.SK
			if touched[dedup] {
				return nil, models.New(models.ErrCodeValidation,
					"batch contains two requests for the same item")
			}
			touched[dedup] = true

			old, err := s.readRow(ctx, tx, tableName, key)
			if err != nil {
				return nil, err
			}
			if w.PutRequest != nil {
				size, err := s.writeRow(ctx, tx, table, key, w.PutRequest.Item)
				if err != nil {
					return nil, err
				}
				deltaCount, deltaSize := int64(1), size
				if old != nil {
					deltaCount, deltaSize = 0, size-old.size
				}
				if err := s.bumpAggregates(ctx, tx, tableName, deltaCount, deltaSize); err != nil {
					return nil, err
				}
			} else if old != nil {
				if err := s.deleteRow(ctx, tx, table, key); err != nil {
					return nil, err
				}
				if err := s.bumpAggregates(ctx, tx, tableName, -1, -old.size); err != nil {
					return nil, err
				}
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &models.BatchWriteItemResponse{}, nil
}

// TransactGetItems reads up to 100 items in one snapshot, answering
// positionally with nil for items that do not exist.
func (s *SQLiteStore) TransactGetItems(ctx context.Context, req *models.TransactGetItemsRequest) (*models.TransactGetItemsResponse, error) {
	if len(req.TransactItems) == 0 || len(req.TransactItems) > maxTransactItems {
		return nil, models.New(models.ErrCodeValidation,
			fmt.Sprintf("TransactGetItems accepts between 1 and %d items", maxTransactItems))
	}
	names := make([]string, 0, len(req.TransactItems))
	for _, get := range req.TransactItems {
		names = append(names, get.TableName)
	}
	tables, err := s.resolveTables(ctx, names)
	if err != nil {
		return nil, err
	}

	tx, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	now := time.Now().Unix()
	resp := &models.TransactGetItemsResponse{Responses: make([]models.Item, len(req.TransactItems))}
	for i, get := range req.TransactItems {
		table := tables[get.TableName]
		if err := validateKeyInput(table, get.Key); err != nil {
			return nil, models.New(models.ErrCodeValidation, err.Error())
		}
		key, err := extractKeys(table, get.Key)
		if err != nil {
			return nil, models.New(models.ErrCodeValidation, err.Error())
		}
		row, err := s.readRow(ctx, tx, get.TableName, key)
		if err != nil {
			return nil, err
		}
		item := row.visibleAt(now)
		if item != nil && get.ProjectionExpression != "" {
			item, err = s.projectItem(item, get.ProjectionExpression, get.ExpressionAttributeNames)
			if err != nil {
				return nil, err
			}
		}
		resp.Responses[i] = item
	}
	return resp, tx.Commit()
}

// transactOp is one write of a transaction after normalization, ready to
// check and apply.
type transactOp struct {
	table   *models.Table
	key     primaryKey
	kind    string // "put", "update", "delete" or "check"
	item    models.Item
	update  string
	cond    string
	names   map[string]string
	values  map[string]models.AttributeValue
	prior   *storedRow
	visible models.Item
}

// TransactWriteItems applies up to 100 conditioned writes atomically:
// every condition is checked against the pre-transaction state, and only
// when all pass does any write land. A failed condition cancels the whole
// transaction. A ClientRequestToken replayed within ten minutes makes the
// call an idempotent no-op.
func (s *SQLiteStore) TransactWriteItems(ctx context.Context, req *models.TransactWriteItemsRequest) (*models.TransactWriteItemsResponse, error) {
	if len(req.TransactItems) == 0 || len(req.TransactItems) > maxTransactItems {
		return nil, models.New(models.ErrCodeValidation,
			fmt.Sprintf("TransactWriteItems accepts between 1 and %d items", maxTransactItems))
	}
	if tok := req.ClientRequestToken; tok != "" {
		if seen, ok := s.txTokens.Load(tok); ok && time.Since(seen) < transactTokenWindow {
			return &models.TransactWriteItemsResponse{}, nil
		}
	}

	ops, err := s.normalizeTransactOps(ctx, req.TransactItems)
	if err != nil {
		return nil, err
	}

	tx, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	now := time.Now().Unix()
	var failures []string
	for i := range ops {
		op := &ops[i]
		op.prior, err = s.readRow(ctx, tx, op.table.TableName, op.key)
		if err != nil {
			return nil, err
		}
		op.visible = op.prior.visibleAt(now)
		if err := s.checkCondition(op.cond, op.visible, op.names, op.values); err != nil {
			if err == ErrConditionFailed {
				failures = append(failures, fmt.Sprintf("item %d: conditional check failed", i))
				continue
			}
			return nil, err
		}
	}
	if len(failures) > 0 {
		return nil, models.New(models.ErrCodeTransactionCanceled,
			"transaction canceled: "+strings.Join(failures, "; "))
	}

	for i := range ops {
		op := &ops[i]
		switch op.kind {
		case "check":
			continue
		case "delete":
			if op.prior == nil {
				continue
			}
			if err := s.deleteRow(ctx, tx, op.table, op.key); err != nil {
				return nil, err
			}
			if err := s.bumpAggregates(ctx, tx, op.table.TableName, -1, -op.prior.size); err != nil {
				return nil, err
			}
		case "put", "update":
			item := op.item
			if op.kind == "update" {
				update, perr := expression.ParseUpdate(op.update)
				if perr != nil {
					return nil, models.New(models.ErrCodeValidation, perr.Error())
				}
				base := op.visible
				if base == nil {
					base = models.CopyItem(op.item) // the key attributes
				}
				item, err = s.eval.ApplyUpdate(update, base, op.names, op.values)
				if err != nil {
					return nil, err
				}
				newKey, kerr := extractKeys(op.table, item)
				if kerr != nil || newKey.PK != op.key.PK || newKey.SK != op.key.SK {
					return nil, models.New(models.ErrCodeValidation,
						"update expression must not modify key attributes")
				}
			}
			size, err := s.writeRow(ctx, tx, op.table, op.key, item)
			if err != nil {
				return nil, err
			}
			deltaCount, deltaSize := int64(1), size
			if op.prior != nil {
				deltaCount, deltaSize = 0, size-op.prior.size
			}
			if err := s.bumpAggregates(ctx, tx, op.table.TableName, deltaCount, deltaSize); err != nil {
				return nil, err
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	if tok := req.ClientRequestToken; tok != "" {
		s.txTokens.Store(tok, time.Now())
	}
	return &models.TransactWriteItemsResponse{}, nil
}

func (s *SQLiteStore) normalizeTransactOps(ctx context.Context, items []models.TransactWriteItem) ([]transactOp, error) {
	ops := make([]transactOp, 0, len(items))
	touched := map[string]bool{}
	for i, it := range items {
		set := 0
		for _, present := range []bool{it.Put != nil, it.Update != nil, it.Delete != nil, it.ConditionCheck != nil} {
			if present {
				set++
			}
		}
		if set != 1 {
			return nil, models.New(models.ErrCodeValidation,
				fmt.Sprintf("transact item %d must carry exactly one operation", i))
		}

		var op transactOp
		var tableName string
		var keyItem models.Item
		switch {
		case it.Put != nil:
			op = transactOp{kind: "put", item: it.Put.Item, cond: it.Put.ConditionExpression,
				names: it.Put.ExpressionAttributeNames, values: it.Put.ExpressionAttributeValues}
			tableName, keyItem = it.Put.TableName, it.Put.Item
		case it.Update != nil:
			op = transactOp{kind: "update", item: it.Update.Key, update: it.Update.UpdateExpression,
				cond:  it.Update.ConditionExpression,
				names: it.Update.ExpressionAttributeNames, values: it.Update.ExpressionAttributeValues}
			tableName, keyItem = it.Update.TableName, it.Update.Key
		case it.Delete != nil:
			op = transactOp{kind: "delete", cond: it.Delete.ConditionExpression,
				names: it.Delete.ExpressionAttributeNames, values: it.Delete.ExpressionAttributeValues}
			tableName, keyItem = it.Delete.TableName, it.Delete.Key
		default:
			op = transactOp{kind: "check", cond: it.ConditionCheck.ConditionExpression,
				names: it.ConditionCheck.ExpressionAttributeNames, values: it.ConditionCheck.ExpressionAttributeValues}
			tableName, keyItem = it.ConditionCheck.TableName, it.ConditionCheck.Key
		}

		table, err := s.getTable(ctx, tableName)
		if err != nil {
			return nil, err
		}
		op.table = table
		if op.kind != "put" {
			if err := validateKeyInput(table, keyItem); err != nil {
				return nil, models.New(models.ErrCodeValidation, err.Error())
			}
		}
		op.key, err = extractKeys(table, keyItem)
		if err != nil {
			return nil, models.New(models.ErrCodeValidation, err.Error())
		}
		if op.kind == "update" {
			if it.Update.UpdateExpression == "" {
				return nil, models.New(models.ErrCodeValidation,
					fmt.Sprintf("transact item %d: update expression must be non-empty", i))
			}
		}

		dedup := tableName + "\x00" + op.key.PK + "\x00" + op.key.SK
		if touched[dedup] {
			return nil, models.New(models.ErrCodeValidation,
				"transaction addresses the same item twice")
		}
		touched[dedup] = true
		ops = append(ops, op)
	}
	return ops, nil
}
