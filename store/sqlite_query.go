package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tabeth/concretelocal/expression"
	"github.com/tabeth/concretelocal/models"
)

// queryTarget bundles what Query and Scan need to know about the table or
// index they read from.
type queryTarget struct {
	table *models.Table
	index *models.SecondaryIndex // nil for the base table

	hashName  string
	rangeName string
	rangeType string
	numericSK bool
}

func (s *SQLiteStore) resolveTarget(ctx context.Context, tableName, indexName string) (*queryTarget, error) {
	table, err := s.getTable(ctx, tableName)
	if err != nil {
		return nil, err
	}
	t := &queryTarget{table: table, hashName: table.HashKeyName(), rangeName: table.RangeKeyName()}
	if indexName != "" {
		idx, ok := table.Index(indexName)
		if !ok {
			return nil, models.New(models.ErrCodeValidation,
				fmt.Sprintf("index %s does not exist on table %s", indexName, tableName))
		}
		t.index = idx
		t.hashName, t.rangeName = schemaKeyNames(idx.KeySchema)
	}
	if t.rangeName != "" {
		t.rangeType, _ = table.AttributeType(t.rangeName)
		t.numericSK = t.rangeType == "N"
	}
	return t, nil
}

func (t *queryTarget) sortColumn() string {
	if t.numericSK {
		return "sk_num"
	}
	return "sk"
}

// LastEvaluatedKey carries the attributes needed to resume: the target's
// key plus, for an index, the base table's key.
func (t *queryTarget) lastEvaluatedKey(item models.Item) models.Item {
	names := []string{t.table.HashKeyName()}
	if rk := t.table.RangeKeyName(); rk != "" {
		names = append(names, rk)
	}
	if t.index != nil {
		names = append(names, t.hashName)
		if t.rangeName != "" {
			names = append(names, t.rangeName)
		}
	}
	out := models.Item{}
	for _, n := range names {
		if v, ok := item[n]; ok {
			out[n] = v
		}
	}
	return out
}

// scannedRow is one row pulled from either physical table, already
// decoded.
type scannedRow struct {
	item models.Item
}

func (s *SQLiteStore) Query(ctx context.Context, req *models.QueryRequest) (*models.QueryResponse, error) {
	target, err := s.resolveTarget(ctx, req.TableName, req.IndexName)
	if err != nil {
		return nil, err
	}
	kc, err := expression.ParseKeyCondition(req.KeyConditionExpression)
	if err != nil {
		return nil, models.New(models.ErrCodeValidation, err.Error())
	}
	kq, err := buildKeyQuery(target.table, req.IndexName, kc,
		req.ExpressionAttributeNames, req.ExpressionAttributeValues)
	if err != nil {
		return nil, err
	}

	forward := req.ScanIndexForward == nil || *req.ScanIndexForward
	where := []string{"table_name = ?", "pk = ?"}
	args := []any{target.table.TableName, kq.PK}
	if target.index != nil {
		where = []string{"table_name = ?", "index_name = ?", "pk = ?"}
		args = []any{target.table.TableName, target.index.IndexName, kq.PK}
	}
	where = append(where, kq.Clauses...)
	args = append(args, kq.Args...)

	if req.ExclusiveStartKey != nil {
		clause, eskArgs, err := s.startKeyPredicate(target, req.ExclusiveStartKey, forward)
		if err != nil {
			return nil, err
		}
		if clause == "" {
			// A pk-only target has at most one row per partition; a resume
			// key means it was already delivered.
			queryCounter.Inc()
			return &models.QueryResponse{Items: []models.Item{}}, nil
		}
		where = append(where, clause)
		args = append(args, eskArgs...)
	}

	where = append(where, "(ttl_epoch IS NULL OR ttl_epoch >= ?)")
	args = append(args, time.Now().Unix())

	dir := "ASC"
	if !forward {
		dir = "DESC"
	}
	var query string
	if target.index == nil {
		query = fmt.Sprintf(
			`SELECT payload FROM items WHERE %s ORDER BY %s %s`,
			strings.Join(where, " AND "), target.sortColumn(), dir)
	} else {
		query = fmt.Sprintf(
			`SELECT payload FROM index_items WHERE %s ORDER BY %s %s, base_pk %s, base_sk %s`,
			strings.Join(where, " AND "), target.sortColumn(), dir, dir, dir)
	}
	rows, more, err := s.fetchRows(ctx, query, args, req.Limit)
	if err != nil {
		return nil, err
	}
	resp, err := s.buildPage(target, rows, more, req.FilterExpression, req.ProjectionExpression,
		req.ExpressionAttributeNames, req.ExpressionAttributeValues)
	if err != nil {
		return nil, err
	}
	queryCounter.Inc()
	return &models.QueryResponse{
		Items:            resp.items,
		Count:            resp.count,
		ScannedCount:     resp.scanned,
		LastEvaluatedKey: resp.lastKey,
	}, nil
}

func (s *SQLiteStore) Scan(ctx context.Context, req *models.ScanRequest) (*models.ScanResponse, error) {
	target, err := s.resolveTarget(ctx, req.TableName, req.IndexName)
	if err != nil {
		return nil, err
	}

	where := []string{"table_name = ?"}
	args := []any{target.table.TableName}
	orderCols := []string{"pk", "sk"}
	from := "items"
	if target.index != nil {
		from = "index_items"
		where = append(where, "index_name = ?")
		args = append(args, target.index.IndexName)
		orderCols = []string{"pk", "sk", "base_pk", "base_sk"}
	}

	if req.ExclusiveStartKey != nil {
		cols, vals, err := s.scanStartValues(target, req.ExclusiveStartKey)
		if err != nil {
			return nil, err
		}
		where = append(where, fmt.Sprintf("(%s) > (%s)",
			strings.Join(cols, ", "), placeholders(len(cols))))
		args = append(args, vals...)
	}
	where = append(where, "(ttl_epoch IS NULL OR ttl_epoch >= ?)")
	args = append(args, time.Now().Unix())

	query := fmt.Sprintf(`SELECT payload FROM %s WHERE %s ORDER BY %s`,
		from, strings.Join(where, " AND "), strings.Join(orderCols, ", "))
	rows, more, err := s.fetchRows(ctx, query, args, req.Limit)
	if err != nil {
		return nil, err
	}
	resp, err := s.buildPage(target, rows, more, req.FilterExpression, req.ProjectionExpression,
		req.ExpressionAttributeNames, req.ExpressionAttributeValues)
	if err != nil {
		return nil, err
	}
	scanCounter.Inc()
	return &models.ScanResponse{
		Items:            resp.items,
		Count:            resp.count,
		ScannedCount:     resp.scanned,
		LastEvaluatedKey: resp.lastKey,
	}, nil
}

// fetchRows runs the page query, pulling one row beyond the limit to learn
// whether a next page exists. A non-positive limit means unbounded.
func (s *SQLiteStore) fetchRows(ctx context.Context, query string, args []any, limit int) ([]scannedRow, bool, error) {
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit+1)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, false, err
	}
	defer rows.Close()

	var out []scannedRow
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, false, err
		}
		item, err := models.DeserializeItem([]byte(payload))
		if err != nil {
			return nil, false, err
		}
		out = append(out, scannedRow{item: item})
	}
	if err := rows.Err(); err != nil {
		return nil, false, err
	}
	if limit > 0 && len(out) > limit {
		return out[:limit], true, nil
	}
	return out, false, nil
}

type pageResult struct {
	items   []models.Item
	count   int
	scanned int
	lastKey models.Item
}

// buildPage applies the post-fetch stages in order: a resume key from the
// last scanned row, then the filter, the index projection and the
// projection expression. The filter runs after the page is cut, so a page
// can legitimately come back empty while LastEvaluatedKey still advances.
func (s *SQLiteStore) buildPage(target *queryTarget, rows []scannedRow, more bool, filterExpr, projExpr string, names map[string]string, values map[string]models.AttributeValue) (*pageResult, error) {
	res := &pageResult{items: []models.Item{}, scanned: len(rows)}
	if more && len(rows) > 0 {
		res.lastKey = target.lastEvaluatedKey(rows[len(rows)-1].item)
	}

	filter, err := expression.ParseCondition(filterExpr)
	if err != nil {
		return nil, models.New(models.ErrCodeValidation, err.Error())
	}
	var projPaths []*expression.PathNode
	if projExpr != "" {
		projPaths, err = expression.ParseProjection(projExpr)
		if err != nil {
			return nil, models.New(models.ErrCodeValidation, err.Error())
		}
	}

	for _, row := range rows {
		ok, err := s.eval.EvaluateCondition(filter, row.item, names, values)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		item := row.item
		if target.index != nil {
			item = applyIndexProjection(target.table, target.index, item)
		}
		if projPaths != nil {
			item, err = s.eval.ProjectItem(item, projPaths, names)
			if err != nil {
				return nil, err
			}
		}
		res.items = append(res.items, item)
		res.count++
	}
	return res, nil
}

// startKeyPredicate turns an ExclusiveStartKey into a strict lower (or
// upper, descending) bound on the query's row order. An empty clause with
// no error means the target cannot have rows past any start key.
func (s *SQLiteStore) startKeyPredicate(target *queryTarget, esk models.Item, forward bool) (string, []any, error) {
	op := ">"
	if !forward {
		op = "<"
	}
	if target.index == nil {
		if target.rangeName == "" {
			return "", nil, nil
		}
		sortVal, err := s.startSortValue(target, esk)
		if err != nil {
			return "", nil, err
		}
		return fmt.Sprintf("%s %s ?", target.sortColumn(), op), []any{sortVal}, nil
	}

	baseKey, err := extractKeys(target.table, esk)
	if err != nil {
		return "", nil, models.New(models.ErrCodeValidation,
			"ExclusiveStartKey must carry the base table's key: "+err.Error())
	}
	if target.rangeName == "" {
		return fmt.Sprintf("(base_pk, base_sk) %s (?, ?)", op),
			[]any{baseKey.PK, baseKey.SK}, nil
	}
	sortVal, err := s.startSortValue(target, esk)
	if err != nil {
		return "", nil, err
	}
	col := target.sortColumn()
	clause := fmt.Sprintf("(%s %s ? OR (%s = ? AND (base_pk, base_sk) %s (?, ?)))",
		col, op, col, op)
	return clause, []any{sortVal, sortVal, baseKey.PK, baseKey.SK}, nil
}

func (s *SQLiteStore) startSortValue(target *queryTarget, esk models.Item) (any, error) {
	v, ok := esk[target.rangeName]
	if !ok {
		return nil, models.New(models.ErrCodeValidation,
			fmt.Sprintf("ExclusiveStartKey is missing sort key attribute %s", target.rangeName))
	}
	canon, err := canonicalKey(v, target.rangeType)
	if err != nil {
		return nil, models.New(models.ErrCodeValidation, err.Error())
	}
	if target.numericSK {
		return models.NumberToFloat(canon)
	}
	return canon, nil
}

// scanStartValues produces the row-order tuple a Scan resumes after.
func (s *SQLiteStore) scanStartValues(target *queryTarget, esk models.Item) ([]string, []any, error) {
	if target.index == nil {
		key, err := extractKeys(target.table, esk)
		if err != nil {
			return nil, nil, models.New(models.ErrCodeValidation, err.Error())
		}
		return []string{"pk", "sk"}, []any{key.PK, key.SK}, nil
	}
	baseKey, err := extractKeys(target.table, esk)
	if err != nil {
		return nil, nil, models.New(models.ErrCodeValidation,
			"ExclusiveStartKey must carry the base table's key: "+err.Error())
	}
	idxKey, ok := tryExtractIndexKeys(target.table, target.index, esk)
	if !ok {
		return nil, nil, models.New(models.ErrCodeValidation,
			"ExclusiveStartKey must carry the index's key attributes")
	}
	return []string{"pk", "sk", "base_pk", "base_sk"},
		[]any{idxKey.PK, idxKey.SK, baseKey.PK, baseKey.SK}, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
