package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/tabeth/concretelocal/config"
	"github.com/tabeth/concretelocal/expression"
	"github.com/tabeth/concretelocal/models"
)

const schemaDDL = `
CREATE TABLE IF NOT EXISTS meta_tables (
	table_name TEXT PRIMARY KEY,
	definition TEXT NOT NULL,
	item_count INTEGER NOT NULL DEFAULT 0,
	size_bytes INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS items (
	table_name TEXT NOT NULL,
	pk TEXT NOT NULL,
	sk TEXT NOT NULL DEFAULT '',
	sk_num REAL,
	ttl_epoch INTEGER,
	payload TEXT NOT NULL,
	PRIMARY KEY (table_name, pk, sk)
);
CREATE INDEX IF NOT EXISTS idx_items_ttl ON items (table_name, ttl_epoch) WHERE ttl_epoch IS NOT NULL;

CREATE TABLE IF NOT EXISTS index_items (
	table_name TEXT NOT NULL,
	index_name TEXT NOT NULL,
	pk TEXT NOT NULL,
	sk TEXT NOT NULL DEFAULT '',
	sk_num REAL,
	base_pk TEXT NOT NULL,
	base_sk TEXT NOT NULL DEFAULT '',
	ttl_epoch INTEGER,
	payload TEXT NOT NULL,
	PRIMARY KEY (table_name, index_name, pk, sk, base_pk, base_sk)
);
CREATE INDEX IF NOT EXISTS idx_index_items_base ON index_items (table_name, base_pk, base_sk);

CREATE TABLE IF NOT EXISTS background_runs (
	id TEXT PRIMARY KEY,
	kind TEXT NOT NULL,
	table_name TEXT NOT NULL,
	status TEXT NOT NULL,
	message TEXT NOT NULL DEFAULT '',
	started_at INTEGER NOT NULL,
	finished_at INTEGER
);
`

var tableNameRe = regexp.MustCompile(`^[a-zA-Z0-9_.-]{3,255}$`)

// SQLiteStore is the engine over one SQLite database. It is safe for
// concurrent use in file mode; in-memory mode is wrapped by
// serializedStore, which funnels calls through one goroutine at a time.
type SQLiteStore struct {
	db   *sql.DB
	cfg  *config.Config
	eval *expression.Evaluator

	tables    *xsync.MapOf[string, *models.Table]
	lastSweep *xsync.MapOf[string, time.Time]
	txTokens  *xsync.MapOf[string, time.Time]

	workerStop chan struct{}
	workerWG   sync.WaitGroup
	workerOnce sync.Once
}

// New opens (or creates) the database described by cfg and returns a ready
// engine. In ModeMemory the returned Store serializes all access, since
// shared-cache in-memory SQLite has no WAL to isolate readers.
func New(cfg *config.Config) (Store, error) {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=%d&_txlock=immediate",
		cfg.Path, cfg.BusyTimeout.Milliseconds())
	if cfg.Mode == config.ModeMemory {
		// A unique name per engine keeps parallel tests from sharing state.
		dsn = fmt.Sprintf("file:concretelocal-%s?mode=memory&cache=shared", uuid.NewString())
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if cfg.Mode == config.ModeMemory {
		// The shared cache lives as long as one connection does.
		db.SetMaxOpenConns(1)
	}
	if _, err := db.Exec(schemaDDL); err != nil {
		db.Close()
		return nil, fmt.Errorf("bootstrapping schema: %w", err)
	}
	s := &SQLiteStore{
		db:         db,
		cfg:        cfg,
		eval:       expression.NewEvaluator(),
		tables:     xsync.NewMapOf[string, *models.Table](),
		lastSweep:  xsync.NewMapOf[string, time.Time](),
		txTokens:   xsync.NewMapOf[string, time.Time](),
		workerStop: make(chan struct{}),
	}
	if cfg.Mode == config.ModeMemory {
		return &serializedStore{inner: s}, nil
	}
	return s, nil
}

func (s *SQLiteStore) Close() error {
	s.StopWorkers()
	return s.db.Close()
}

// begin starts a transaction. The file-mode DSN sets _txlock=immediate so
// write transactions take the write lock up front and conflicts surface as
// busy waits instead of mid-transaction failures.
func (s *SQLiteStore) begin(ctx context.Context) (*sql.Tx, error) {
	return s.db.BeginTx(ctx, nil)
}

// CreateTable validates and persists a table definition. The definition is
// stored as JSON; aggregates live in their own columns so item writes do
// not rewrite the definition.
func (s *SQLiteStore) CreateTable(ctx context.Context, table *models.Table) error {
	if err := validateTableDefinition(table); err != nil {
		return err
	}
	table.CreationDateTime = time.Now().UTC()
	def, err := marshalTableDefinition(table)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO meta_tables (table_name, definition, created_at)
		 SELECT ?, ?, ? WHERE NOT EXISTS (SELECT 1 FROM meta_tables WHERE table_name = ?)`,
		table.TableName, def, table.CreationDateTime.Unix(), table.TableName)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrTableExists
	}
	s.tables.Delete(table.TableName)
	return nil
}

// DeleteTable drops the definition and every row belonging to the table.
func (s *SQLiteStore) DeleteTable(ctx context.Context, name string) error {
	tx, err := s.begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM meta_tables WHERE table_name = ?`, name)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrTableNotFound
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM items WHERE table_name = ?`, name); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM index_items WHERE table_name = ?`, name); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	s.tables.Delete(name)
	s.lastSweep.Delete(name)
	return nil
}

func (s *SQLiteStore) DescribeTable(ctx context.Context, name string) (*models.Table, error) {
	return s.loadTable(ctx, name)
}

func (s *SQLiteStore) ListTables(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT table_name FROM meta_tables ORDER BY table_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

// getTable returns the cached schema for a table, loading it on a miss.
// Aggregates are not part of the cached value; DescribeTable reads them
// fresh.
func (s *SQLiteStore) getTable(ctx context.Context, name string) (*models.Table, error) {
	if t, ok := s.tables.Load(name); ok {
		return t, nil
	}
	t, err := s.loadTable(ctx, name)
	if err != nil {
		return nil, err
	}
	s.tables.Store(name, t)
	return t, nil
}

func (s *SQLiteStore) loadTable(ctx context.Context, name string) (*models.Table, error) {
	var def string
	var itemCount, sizeBytes int64
	err := s.db.QueryRowContext(ctx,
		`SELECT definition, item_count, size_bytes FROM meta_tables WHERE table_name = ?`, name).
		Scan(&def, &itemCount, &sizeBytes)
	if err == sql.ErrNoRows {
		return nil, ErrTableNotFound
	}
	if err != nil {
		return nil, err
	}
	var table models.Table
	if err := json.Unmarshal([]byte(def), &table); err != nil {
		return nil, fmt.Errorf("corrupt definition for table %s: %w", name, err)
	}
	table.ItemCount = itemCount
	table.SizeBytes = sizeBytes
	return &table, nil
}

// UpdateTimeToLive enables or disables TTL on a table and recomputes the
// expiry column of every stored row under the new setting, so sweeps and
// read-side filtering stay consistent with the designated attribute.
func (s *SQLiteStore) UpdateTimeToLive(ctx context.Context, tableName string, spec models.TimeToLiveSpecification) (*models.TimeToLiveDescription, error) {
	table, err := s.loadTable(ctx, tableName)
	if err != nil {
		return nil, err
	}
	if spec.Enabled && spec.AttributeName == "" {
		return nil, models.New(models.ErrCodeValidation, "TimeToLive attribute name must be non-empty")
	}
	desc := &models.TimeToLiveDescription{Status: "DISABLED"}
	if spec.Enabled {
		desc = &models.TimeToLiveDescription{Status: "ENABLED", AttributeName: spec.AttributeName}
	}
	table.TimeToLive = desc

	def, err := marshalTableDefinition(table)
	if err != nil {
		return nil, err
	}
	tx, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx,
		`UPDATE meta_tables SET definition = ? WHERE table_name = ?`, def, tableName); err != nil {
		return nil, err
	}
	if err := s.recomputeTTLEpochs(ctx, tx, table); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	s.tables.Delete(tableName)
	return desc, nil
}

func (s *SQLiteStore) DescribeTimeToLive(ctx context.Context, tableName string) (*models.TimeToLiveDescription, error) {
	table, err := s.getTable(ctx, tableName)
	if err != nil {
		return nil, err
	}
	if table.TimeToLive == nil {
		return &models.TimeToLiveDescription{Status: "DISABLED"}, nil
	}
	out := *table.TimeToLive
	return &out, nil
}

// marshalTableDefinition persists the schema without its aggregate fields,
// which have their own columns.
func marshalTableDefinition(table *models.Table) (string, error) {
	clean := *table
	clean.ItemCount = 0
	clean.SizeBytes = 0
	b, err := json.Marshal(&clean)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func validateTableDefinition(table *models.Table) error {
	fail := func(msg string, args ...any) error {
		return models.New(models.ErrCodeValidation, fmt.Sprintf(msg, args...))
	}
	if !tableNameRe.MatchString(table.TableName) {
		return fail("invalid table name %q", table.TableName)
	}
	if err := validateKeySchema(table, table.KeySchema, false); err != nil {
		return err
	}
	seen := map[string]bool{}
	hash := table.HashKeyName()
	for _, idx := range table.Indexes() {
		if !tableNameRe.MatchString(idx.IndexName) {
			return fail("invalid index name %q", idx.IndexName)
		}
		if seen[idx.IndexName] {
			return fail("duplicate index name %q", idx.IndexName)
		}
		seen[idx.IndexName] = true
		if err := validateKeySchema(table, idx.KeySchema, true); err != nil {
			return err
		}
		switch idx.Projection.ProjectionType {
		case "", "ALL", "KEYS_ONLY", "INCLUDE":
		default:
			return fail("invalid projection type %q", idx.Projection.ProjectionType)
		}
	}
	for _, idx := range table.LocalSecondaryIndexes {
		h, _ := schemaKeyNames(idx.KeySchema)
		if h != hash {
			return fail("local index %s must share the table's partition key", idx.IndexName)
		}
		if _, rng := schemaKeyNames(idx.KeySchema); rng == "" {
			return fail("local index %s must declare a sort key", idx.IndexName)
		}
	}
	for _, d := range table.AttributeDefinitions {
		switch d.AttributeType {
		case "S", "N", "B":
		default:
			return fail("attribute %s declares unsupported key type %q", d.AttributeName, d.AttributeType)
		}
	}
	return nil
}

func validateKeySchema(table *models.Table, schema []models.KeySchemaElement, isIndex bool) error {
	fail := func(msg string, args ...any) error {
		return models.New(models.ErrCodeValidation, fmt.Sprintf(msg, args...))
	}
	var hashCount, rangeCount int
	for _, e := range schema {
		switch e.KeyType {
		case models.KeyTypeHash:
			hashCount++
		case models.KeyTypeRange:
			rangeCount++
		default:
			return fail("invalid key type %q", e.KeyType)
		}
		if _, ok := table.AttributeType(e.AttributeName); !ok {
			return fail("key attribute %s has no attribute definition", e.AttributeName)
		}
	}
	if hashCount != 1 || rangeCount > 1 {
		target := "key schema"
		if isIndex {
			target = "index key schema"
		}
		return fail("%s must have exactly one HASH key and at most one RANGE key", target)
	}
	return nil
}
