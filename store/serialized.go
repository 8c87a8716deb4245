package store

import (
	"context"
	"sync"

	"github.com/tabeth/concretelocal/models"
)

// serializedStore wraps the engine for in-memory mode, where SQLite's
// shared cache offers none of WAL's reader/writer isolation. Every call
// holds one mutex, trading concurrency for the same consistency contract
// file mode gets from WAL plus busy timeouts.
type serializedStore struct {
	mu    sync.Mutex
	inner *SQLiteStore
}

func (s *serializedStore) CreateTable(ctx context.Context, table *models.Table) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.CreateTable(ctx, table)
}

func (s *serializedStore) DeleteTable(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.DeleteTable(ctx, name)
}

func (s *serializedStore) DescribeTable(ctx context.Context, name string) (*models.Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.DescribeTable(ctx, name)
}

func (s *serializedStore) ListTables(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.ListTables(ctx)
}

func (s *serializedStore) UpdateTimeToLive(ctx context.Context, tableName string, spec models.TimeToLiveSpecification) (*models.TimeToLiveDescription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.UpdateTimeToLive(ctx, tableName, spec)
}

func (s *serializedStore) DescribeTimeToLive(ctx context.Context, tableName string) (*models.TimeToLiveDescription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.DescribeTimeToLive(ctx, tableName)
}

func (s *serializedStore) PutItem(ctx context.Context, req *models.PutItemRequest) (*models.PutItemResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.PutItem(ctx, req)
}

func (s *serializedStore) GetItem(ctx context.Context, req *models.GetItemRequest) (*models.GetItemResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.GetItem(ctx, req)
}

func (s *serializedStore) DeleteItem(ctx context.Context, req *models.DeleteItemRequest) (*models.DeleteItemResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.DeleteItem(ctx, req)
}

func (s *serializedStore) UpdateItem(ctx context.Context, req *models.UpdateItemRequest) (*models.UpdateItemResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.UpdateItem(ctx, req)
}

func (s *serializedStore) Query(ctx context.Context, req *models.QueryRequest) (*models.QueryResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.Query(ctx, req)
}

func (s *serializedStore) Scan(ctx context.Context, req *models.ScanRequest) (*models.ScanResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.Scan(ctx, req)
}

func (s *serializedStore) BatchGetItem(ctx context.Context, req *models.BatchGetItemRequest) (*models.BatchGetItemResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.BatchGetItem(ctx, req)
}

func (s *serializedStore) BatchWriteItem(ctx context.Context, req *models.BatchWriteItemRequest) (*models.BatchWriteItemResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.BatchWriteItem(ctx, req)
}

func (s *serializedStore) TransactGetItems(ctx context.Context, req *models.TransactGetItemsRequest) (*models.TransactGetItemsResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.TransactGetItems(ctx, req)
}

func (s *serializedStore) TransactWriteItems(ctx context.Context, req *models.TransactWriteItemsRequest) (*models.TransactWriteItemsResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.TransactWriteItems(ctx, req)
}

func (s *serializedStore) RunTTLSweep(ctx context.Context, name string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.RunTTLSweep(ctx, name)
}

func (s *serializedStore) ExportItems(ctx context.Context, tableName string, fn func(models.Item) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.ExportItems(ctx, tableName, fn)
}

func (s *serializedStore) ImportItems(ctx context.Context, tableName string, items []models.Item) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.ImportItems(ctx, tableName, items)
}

func (s *serializedStore) ListBackgroundRuns(ctx context.Context, tableName string) ([]BackgroundRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.ListBackgroundRuns(ctx, tableName)
}

// The sweeper runs against the inner store without this wrapper's mutex;
// in-memory mode caps the pool at one connection, so its transactions
// still serialize against everything else.
func (s *serializedStore) StartWorkers() { s.inner.StartWorkers() }

func (s *serializedStore) StopWorkers() { s.inner.StopWorkers() }

func (s *serializedStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.Close()
}
