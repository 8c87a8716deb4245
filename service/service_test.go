package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tabeth/concretelocal/config"
	"github.com/tabeth/concretelocal/models"
	"github.com/tabeth/concretelocal/store"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	cfg := config.Memory()
	cfg.SweepInterval = time.Hour
	st, err := store.New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return New(st)
}

func usersTable() *models.Table {
	return &models.Table{
		TableName: "users",
		KeySchema: []models.KeySchemaElement{
			{AttributeName: "id", KeyType: models.KeyTypeHash},
		},
		AttributeDefinitions: []models.AttributeDefinition{
			{AttributeName: "id", AttributeType: "S"},
		},
	}
}

func user(id string) models.Item {
	return models.Item{"id": models.S(id)}
}

func TestCreateTableReturnsDescription(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	desc, err := svc.CreateTable(ctx, usersTable())
	require.NoError(t, err)
	assert.Equal(t, "users", desc.TableName)
	assert.False(t, desc.CreationDateTime.IsZero())
}

func TestErrorTranslation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	_, err := svc.CreateTable(ctx, usersTable())
	require.NoError(t, err)

	_, err = svc.CreateTable(ctx, usersTable())
	assert.True(t, models.HasErrorCode(err, models.ErrCodeResourceInUse))

	_, err = svc.GetItem(ctx, &models.GetItemRequest{TableName: "ghost", Key: user("1")})
	assert.True(t, models.HasErrorCode(err, models.ErrCodeResourceNotFound))
	assert.EqualError(t, err, "requested resource not found")

	_, err = svc.PutItem(ctx, &models.PutItemRequest{
		TableName:           "users",
		Item:                user("1"),
		ConditionExpression: "attribute_exists(id)",
	})
	assert.True(t, models.HasErrorCode(err, models.ErrCodeConditionalCheckFailed))
	assert.EqualError(t, err, "the conditional request failed")

	// Validation errors built deeper in the stack pass through untouched.
	_, err = svc.PutItem(ctx, &models.PutItemRequest{
		TableName: "users",
		Item:      models.Item{"id": models.N("1")},
	})
	assert.True(t, models.HasErrorCode(err, models.ErrCodeValidation))
}

func TestInputValidation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	_, err := svc.CreateTable(ctx, usersTable())
	require.NoError(t, err)

	tests := []struct {
		name string
		call func() error
	}{
		{"nil table", func() error { _, err := svc.CreateTable(ctx, nil); return err }},
		{"empty table name", func() error { _, err := svc.DescribeTable(ctx, ""); return err }},
		{"empty item", func() error {
			_, err := svc.PutItem(ctx, &models.PutItemRequest{TableName: "users"})
			return err
		}},
		{"empty key", func() error {
			_, err := svc.GetItem(ctx, &models.GetItemRequest{TableName: "users"})
			return err
		}},
		{"empty update expression", func() error {
			_, err := svc.UpdateItem(ctx, &models.UpdateItemRequest{TableName: "users", Key: user("1")})
			return err
		}},
		{"empty key condition", func() error {
			_, err := svc.Query(ctx, &models.QueryRequest{TableName: "users"})
			return err
		}},
		{"negative limit", func() error {
			_, err := svc.Scan(ctx, &models.ScanRequest{TableName: "users", Limit: -1})
			return err
		}},
		{"empty batch", func() error {
			_, err := svc.BatchWriteItem(ctx, &models.BatchWriteItemRequest{})
			return err
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			require.Error(t, err)
			assert.True(t, models.HasErrorCode(err, models.ErrCodeValidation))
		})
	}
}

func TestItemRoundTripThroughService(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	_, err := svc.CreateTable(ctx, usersTable())
	require.NoError(t, err)

	item := user("1")
	item["name"] = models.S("Ada")
	_, err = svc.PutItem(ctx, &models.PutItemRequest{TableName: "users", Item: item})
	require.NoError(t, err)

	got, err := svc.GetItem(ctx, &models.GetItemRequest{TableName: "users", Key: user("1")})
	require.NoError(t, err)
	assert.True(t, models.ItemsEqual(item, got.Item))

	resp, err := svc.UpdateItem(ctx, &models.UpdateItemRequest{
		TableName:                 "users",
		Key:                       user("1"),
		UpdateExpression:          "SET name = :n",
		ExpressionAttributeValues: map[string]models.AttributeValue{":n": models.S("Grace")},
		ReturnValues:              models.ReturnAllNew,
	})
	require.NoError(t, err)
	assert.True(t, resp.Attributes["name"].Equal(models.S("Grace")))

	require.NoError(t, svc.DeleteTable(ctx, "users"))
	_, err = svc.ListTables(ctx)
	require.NoError(t, err)
}
