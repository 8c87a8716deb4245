// Package service is the API-facing facade over the engine: it validates
// requests, forwards them to the store, and translates the store's
// sentinel errors into the service error taxonomy. Callers embedding the
// engine talk to this package, not to store directly.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/tabeth/concretelocal/models"
	"github.com/tabeth/concretelocal/store"
)

type Service struct {
	store store.Store
}

func New(s store.Store) *Service {
	return &Service{store: s}
}

// translateErr maps sentinel errors to API errors. APIErrors built deeper
// in the stack pass through untouched; anything unrecognized is an
// internal failure, with the cause preserved in the message.
func translateErr(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *models.APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	switch {
	case errors.Is(err, store.ErrTableExists):
		return models.New(models.ErrCodeResourceInUse, "table already exists")
	case errors.Is(err, store.ErrTableNotFound):
		return models.New(models.ErrCodeResourceNotFound, "requested resource not found")
	case errors.Is(err, store.ErrConditionFailed):
		return models.New(models.ErrCodeConditionalCheckFailed, "the conditional request failed")
	}
	return models.New(models.ErrCodeInternal, err.Error())
}

func requireTableName(name string) error {
	if name == "" {
		return models.New(models.ErrCodeValidation, "table name must be non-empty")
	}
	return nil
}

func (s *Service) CreateTable(ctx context.Context, table *models.Table) (*models.Table, error) {
	if table == nil {
		return nil, models.New(models.ErrCodeValidation, "table definition is required")
	}
	if err := s.store.CreateTable(ctx, table); err != nil {
		return nil, translateErr(err)
	}
	out, err := s.store.DescribeTable(ctx, table.TableName)
	if err != nil {
		return nil, translateErr(err)
	}
	return out, nil
}

func (s *Service) DeleteTable(ctx context.Context, name string) error {
	if err := requireTableName(name); err != nil {
		return err
	}
	return translateErr(s.store.DeleteTable(ctx, name))
}

func (s *Service) DescribeTable(ctx context.Context, name string) (*models.Table, error) {
	if err := requireTableName(name); err != nil {
		return nil, err
	}
	table, err := s.store.DescribeTable(ctx, name)
	if err != nil {
		return nil, translateErr(err)
	}
	return table, nil
}

func (s *Service) ListTables(ctx context.Context) ([]string, error) {
	names, err := s.store.ListTables(ctx)
	if err != nil {
		return nil, translateErr(err)
	}
	return names, nil
}

func (s *Service) UpdateTimeToLive(ctx context.Context, tableName string, spec models.TimeToLiveSpecification) (*models.TimeToLiveDescription, error) {
	if err := requireTableName(tableName); err != nil {
		return nil, err
	}
	desc, err := s.store.UpdateTimeToLive(ctx, tableName, spec)
	if err != nil {
		return nil, translateErr(err)
	}
	return desc, nil
}

func (s *Service) DescribeTimeToLive(ctx context.Context, tableName string) (*models.TimeToLiveDescription, error) {
	if err := requireTableName(tableName); err != nil {
		return nil, err
	}
	desc, err := s.store.DescribeTimeToLive(ctx, tableName)
	if err != nil {
		return nil, translateErr(err)
	}
	return desc, nil
}

func (s *Service) PutItem(ctx context.Context, req *models.PutItemRequest) (*models.PutItemResponse, error) {
	if err := requireTableName(req.TableName); err != nil {
		return nil, err
	}
	if len(req.Item) == 0 {
		return nil, models.New(models.ErrCodeValidation, "item must be non-empty")
	}
	resp, err := s.store.PutItem(ctx, req)
	if err != nil {
		return nil, translateErr(err)
	}
	return resp, nil
}

func (s *Service) GetItem(ctx context.Context, req *models.GetItemRequest) (*models.GetItemResponse, error) {
	if err := requireTableName(req.TableName); err != nil {
		return nil, err
	}
	if len(req.Key) == 0 {
		return nil, models.New(models.ErrCodeValidation, "key must be non-empty")
	}
	resp, err := s.store.GetItem(ctx, req)
	if err != nil {
		return nil, translateErr(err)
	}
	return resp, nil
}

func (s *Service) DeleteItem(ctx context.Context, req *models.DeleteItemRequest) (*models.DeleteItemResponse, error) {
	if err := requireTableName(req.TableName); err != nil {
		return nil, err
	}
	if len(req.Key) == 0 {
		return nil, models.New(models.ErrCodeValidation, "key must be non-empty")
	}
	resp, err := s.store.DeleteItem(ctx, req)
	if err != nil {
		return nil, translateErr(err)
	}
	return resp, nil
}

func (s *Service) UpdateItem(ctx context.Context, req *models.UpdateItemRequest) (*models.UpdateItemResponse, error) {
	if err := requireTableName(req.TableName); err != nil {
		return nil, err
	}
	if len(req.Key) == 0 {
		return nil, models.New(models.ErrCodeValidation, "key must be non-empty")
	}
	if req.UpdateExpression == "" {
		return nil, models.New(models.ErrCodeValidation, "update expression must be non-empty")
	}
	resp, err := s.store.UpdateItem(ctx, req)
	if err != nil {
		return nil, translateErr(err)
	}
	return resp, nil
}

func (s *Service) Query(ctx context.Context, req *models.QueryRequest) (*models.QueryResponse, error) {
	if err := requireTableName(req.TableName); err != nil {
		return nil, err
	}
	if req.KeyConditionExpression == "" {
		return nil, models.New(models.ErrCodeValidation, "key condition expression must be non-empty")
	}
	if req.Limit < 0 {
		return nil, models.New(models.ErrCodeValidation, fmt.Sprintf("invalid limit %d", req.Limit))
	}
	resp, err := s.store.Query(ctx, req)
	if err != nil {
		return nil, translateErr(err)
	}
	return resp, nil
}

func (s *Service) Scan(ctx context.Context, req *models.ScanRequest) (*models.ScanResponse, error) {
	if err := requireTableName(req.TableName); err != nil {
		return nil, err
	}
	if req.Limit < 0 {
		return nil, models.New(models.ErrCodeValidation, fmt.Sprintf("invalid limit %d", req.Limit))
	}
	resp, err := s.store.Scan(ctx, req)
	if err != nil {
		return nil, translateErr(err)
	}
	return resp, nil
}

func (s *Service) BatchGetItem(ctx context.Context, req *models.BatchGetItemRequest) (*models.BatchGetItemResponse, error) {
	if len(req.RequestItems) == 0 {
		return nil, models.New(models.ErrCodeValidation, "request items must be non-empty")
	}
	resp, err := s.store.BatchGetItem(ctx, req)
	if err != nil {
		return nil, translateErr(err)
	}
	return resp, nil
}

func (s *Service) BatchWriteItem(ctx context.Context, req *models.BatchWriteItemRequest) (*models.BatchWriteItemResponse, error) {
	if len(req.RequestItems) == 0 {
		return nil, models.New(models.ErrCodeValidation, "request items must be non-empty")
	}
	resp, err := s.store.BatchWriteItem(ctx, req)
	if err != nil {
		return nil, translateErr(err)
	}
	return resp, nil
}

func (s *Service) TransactGetItems(ctx context.Context, req *models.TransactGetItemsRequest) (*models.TransactGetItemsResponse, error) {
	resp, err := s.store.TransactGetItems(ctx, req)
	if err != nil {
		return nil, translateErr(err)
	}
	return resp, nil
}

func (s *Service) TransactWriteItems(ctx context.Context, req *models.TransactWriteItemsRequest) (*models.TransactWriteItemsResponse, error) {
	resp, err := s.store.TransactWriteItems(ctx, req)
	if err != nil {
		return nil, translateErr(err)
	}
	return resp, nil
}

func (s *Service) RunTTLSweep(ctx context.Context, tableName string) (int, error) {
	n, err := s.store.RunTTLSweep(ctx, tableName)
	return n, translateErr(err)
}

func (s *Service) ExportItems(ctx context.Context, tableName string, fn func(models.Item) error) error {
	if err := requireTableName(tableName); err != nil {
		return err
	}
	return translateErr(s.store.ExportItems(ctx, tableName, fn))
}

func (s *Service) ImportItems(ctx context.Context, tableName string, items []models.Item) (int, error) {
	if err := requireTableName(tableName); err != nil {
		return 0, err
	}
	n, err := s.store.ImportItems(ctx, tableName, items)
	return n, translateErr(err)
}

func (s *Service) ListBackgroundRuns(ctx context.Context, tableName string) ([]store.BackgroundRun, error) {
	runs, err := s.store.ListBackgroundRuns(ctx, tableName)
	if err != nil {
		return nil, translateErr(err)
	}
	return runs, nil
}
