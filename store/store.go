// Package store implements the storage engine on SQLite: table metadata,
// item rows with canonicalized keys, denormalized secondary-index rows,
// TTL expiry and the batch/transactional write paths. All item payloads
// are stored in the wire JSON encoding.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/tabeth/concretelocal/models"
)

// Sentinel errors returned by the engine. The service layer translates
// these into API error codes at the boundary.
var (
	ErrTableExists     = errors.New("table already exists")
	ErrTableNotFound   = errors.New("table not found")
	ErrConditionFailed = errors.New("condition check failed")
)

// BackgroundRun records one execution of a background maintenance job, a
// TTL sweep or a bulk import, for later inspection.
type BackgroundRun struct {
	ID         string
	Kind       string // "ttl_sweep" or "import"
	TableName  string
	Status     string // "RUNNING", "COMPLETED" or "FAILED"
	Message    string
	StartedAt  time.Time
	FinishedAt time.Time
}

// Store is the engine's full surface. Both physical modes (file-backed WAL
// and shared-cache in-memory) satisfy it with identical semantics.
type Store interface {
	CreateTable(ctx context.Context, table *models.Table) error
	DeleteTable(ctx context.Context, name string) error
	DescribeTable(ctx context.Context, name string) (*models.Table, error)
	ListTables(ctx context.Context) ([]string, error)

	UpdateTimeToLive(ctx context.Context, tableName string, spec models.TimeToLiveSpecification) (*models.TimeToLiveDescription, error)
	DescribeTimeToLive(ctx context.Context, tableName string) (*models.TimeToLiveDescription, error)

	PutItem(ctx context.Context, req *models.PutItemRequest) (*models.PutItemResponse, error)
	GetItem(ctx context.Context, req *models.GetItemRequest) (*models.GetItemResponse, error)
	DeleteItem(ctx context.Context, req *models.DeleteItemRequest) (*models.DeleteItemResponse, error)
	UpdateItem(ctx context.Context, req *models.UpdateItemRequest) (*models.UpdateItemResponse, error)

	Query(ctx context.Context, req *models.QueryRequest) (*models.QueryResponse, error)
	Scan(ctx context.Context, req *models.ScanRequest) (*models.ScanResponse, error)

	BatchGetItem(ctx context.Context, req *models.BatchGetItemRequest) (*models.BatchGetItemResponse, error)
	BatchWriteItem(ctx context.Context, req *models.BatchWriteItemRequest) (*models.BatchWriteItemResponse, error)
	TransactGetItems(ctx context.Context, req *models.TransactGetItemsRequest) (*models.TransactGetItemsResponse, error)
	TransactWriteItems(ctx context.Context, req *models.TransactWriteItemsRequest) (*models.TransactWriteItemsResponse, error)

	// RunTTLSweep deletes expired rows from one table, or from every table
	// when name is empty. It returns the number of base items deleted.
	RunTTLSweep(ctx context.Context, name string) (int, error)

	ExportItems(ctx context.Context, tableName string, fn func(models.Item) error) error
	ImportItems(ctx context.Context, tableName string, items []models.Item) (int, error)
	ListBackgroundRuns(ctx context.Context, tableName string) ([]BackgroundRun, error)

	// StartWorkers launches the periodic TTL sweeper; StopWorkers stops it
	// and waits for any in-flight pass to finish.
	StartWorkers()
	StopWorkers()

	Close() error
}
