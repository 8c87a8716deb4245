package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tabeth/concretelocal/models"
)

func TestExportItems(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	mustCreate(t, s, ttlTable())
	mustPut(t, s, "music", song("b", "s2", "jazz", "2"))
	mustPut(t, s, "music", song("a", "s1", "jazz", "1"))
	mustPut(t, s, "music", expiringSong("a", "gone", time.Now().Add(-time.Hour)))

	var exported []models.Item
	err := s.ExportItems(ctx, "music", func(item models.Item) error {
		exported = append(exported, item)
		return nil
	})
	require.NoError(t, err)
	// Key order, expired rows skipped.
	assert.Equal(t, []string{"s1", "s2"}, sortKeys(t, exported, "song"))

	err = s.ExportItems(ctx, "ghost", func(models.Item) error { return nil })
	assert.ErrorIs(t, err, ErrTableNotFound)
}

func TestImportItems(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	mustCreate(t, s, musicTable())
	mustPut(t, s, "music", song("a", "s1", "old", "1"))

	n, err := s.ImportItems(ctx, "music", []models.Item{
		song("a", "s1", "jazz", "9"), // replaces the existing item
		song("a", "s2", "jazz", "2"),
		song("b", "s3", "rock", "3"),
	})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	desc, err := s.DescribeTable(ctx, "music")
	require.NoError(t, err)
	assert.EqualValues(t, 3, desc.ItemCount)

	got, err := s.GetItem(ctx, &models.GetItemRequest{
		TableName: "music", Key: song("a", "s1", "", ""),
	})
	require.NoError(t, err)
	assert.True(t, got.Item["genre"].Equal(models.S("jazz")))

	// The imported items show up in the indexes too.
	resp, err := s.Query(ctx, &models.QueryRequest{
		TableName:                 "music",
		IndexName:                 "by-genre",
		KeyConditionExpression:    "genre = :g",
		ExpressionAttributeValues: map[string]models.AttributeValue{":g": models.S("jazz")},
	})
	require.NoError(t, err)
	assert.Len(t, resp.Items, 2)
}

func TestImportItemsIsAtomic(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	mustCreate(t, s, musicTable())

	_, err := s.ImportItems(ctx, "music", []models.Item{
		song("a", "s1", "", ""),
		{"artist": models.S("a")}, // missing the sort key
	})
	require.Error(t, err)
	assert.True(t, models.HasErrorCode(err, models.ErrCodeValidation))
	assert.Contains(t, err.Error(), "item 1")

	// The valid item rolled back with the batch.
	desc, err := s.DescribeTable(ctx, "music")
	require.NoError(t, err)
	assert.Zero(t, desc.ItemCount)
}

func TestImportRecordsBackgroundRun(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	mustCreate(t, s, musicTable())

	_, err := s.ImportItems(ctx, "music", []models.Item{song("a", "s1", "", "")})
	require.NoError(t, err)

	runs, err := s.ListBackgroundRuns(ctx, "music")
	require.NoError(t, err)
	require.NotEmpty(t, runs)
	assert.Equal(t, "import", runs[0].Kind)
	assert.Equal(t, "COMPLETED", runs[0].Status)
	assert.Contains(t, runs[0].Message, "imported 1")
}

func TestExportImportRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	mustCreate(t, s, musicTable())
	item := song("a", "s1", "jazz", "9.5")
	item["meta"] = models.M(map[string]models.AttributeValue{
		"tags": models.SS("x", "y"),
		"raw":  models.B([]byte{0x01, 0x02}),
	})
	mustPut(t, s, "music", item)

	var dumped []models.Item
	require.NoError(t, s.ExportItems(ctx, "music", func(it models.Item) error {
		dumped = append(dumped, it)
		return nil
	}))

	target := musicTable()
	target.TableName = "music_copy"
	mustCreate(t, s, target)
	_, err := s.ImportItems(ctx, "music_copy", dumped)
	require.NoError(t, err)

	got, err := s.GetItem(ctx, &models.GetItemRequest{
		TableName: "music_copy", Key: song("a", "s1", "", ""),
	})
	require.NoError(t, err)
	assert.True(t, models.ItemsEqual(item, got.Item))
}
