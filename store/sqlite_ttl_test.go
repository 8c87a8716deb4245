package store

import (
	"context"
	"database/sql"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tabeth/concretelocal/models"
)

func ttlTable() *models.Table {
	t := musicTable()
	t.TimeToLive = &models.TimeToLiveDescription{Status: "ENABLED", AttributeName: "expires"}
	return t
}

func expiringSong(artist, title string, expiresAt time.Time) models.Item {
	item := song(artist, title, "", "")
	item["expires"] = models.N(strconv.FormatInt(expiresAt.Unix(), 10))
	return item
}

func TestExpiredItemsAreInvisibleToReads(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	mustCreate(t, s, ttlTable())
	mustPut(t, s, "music", expiringSong("a", "gone", time.Now().Add(-time.Hour)))
	mustPut(t, s, "music", expiringSong("a", "live", time.Now().Add(time.Hour)))
	mustPut(t, s, "music", song("a", "forever", "", "")) // no expiry attribute

	got, err := s.GetItem(ctx, &models.GetItemRequest{
		TableName: "music", Key: song("a", "gone", "", ""),
	})
	require.NoError(t, err)
	assert.Nil(t, got.Item)

	resp, err := s.Query(ctx, &models.QueryRequest{
		TableName:                 "music",
		KeyConditionExpression:    "artist = :a",
		ExpressionAttributeValues: map[string]models.AttributeValue{":a": models.S("a")},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"forever", "live"}, sortKeys(t, resp.Items, "song"))

	scan, err := s.Scan(ctx, &models.ScanRequest{TableName: "music"})
	require.NoError(t, err)
	assert.Len(t, scan.Items, 2)
}

// An expired row is invisible, so writing over it behaves like a fresh
// insert: attribute_not_exists succeeds and no old attributes come back.
func TestExpiredItemsAreInvisibleToWrites(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	mustCreate(t, s, ttlTable())
	mustPut(t, s, "music", expiringSong("a", "s1", time.Now().Add(-time.Hour)))

	resp, err := s.PutItem(ctx, &models.PutItemRequest{
		TableName:           "music",
		Item:                song("a", "s1", "", ""),
		ConditionExpression: "attribute_not_exists(artist)",
		ReturnValues:        models.ReturnAllOld,
	})
	require.NoError(t, err)
	assert.Nil(t, resp.Attributes)
}

func TestMalformedExpiryNeverExpires(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	mustCreate(t, s, ttlTable())
	item := song("a", "s1", "", "")
	item["expires"] = models.S("not a number")
	mustPut(t, s, "music", item)

	got, err := s.GetItem(ctx, &models.GetItemRequest{
		TableName: "music", Key: song("a", "s1", "", ""),
	})
	require.NoError(t, err)
	assert.NotNil(t, got.Item)
}

// Expiry is strict: a row whose epoch equals the current second is
// still live, only epochs in the past have expired.
func TestRowVisibilityAtExpiryBoundary(t *testing.T) {
	now := time.Now().Unix()
	row := &storedRow{item: song("a", "s1", "", "")}
	assert.NotNil(t, row.visibleAt(now), "row without an epoch never expires")

	row.ttl = sql.NullInt64{Int64: now, Valid: true}
	assert.NotNil(t, row.visibleAt(now), "epoch equal to now is still live")

	row.ttl = sql.NullInt64{Int64: now - 1, Valid: true}
	assert.Nil(t, row.visibleAt(now))

	var absent *storedRow
	assert.Nil(t, absent.visibleAt(now))
}

func TestRunTTLSweep(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	mustCreate(t, s, ttlTable())
	mustPut(t, s, "music", expiringSong("a", "gone1", time.Now().Add(-time.Hour)))
	mustPut(t, s, "music", expiringSong("a", "gone2", time.Now().Add(-time.Minute)))
	mustPut(t, s, "music", expiringSong("a", "live", time.Now().Add(time.Hour)))

	// Physical rows still count toward the aggregates until the sweep.
	desc, err := s.DescribeTable(ctx, "music")
	require.NoError(t, err)
	assert.EqualValues(t, 3, desc.ItemCount)

	deleted, err := s.RunTTLSweep(ctx, "music")
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	desc, err = s.DescribeTable(ctx, "music")
	require.NoError(t, err)
	assert.EqualValues(t, 1, desc.ItemCount)
	assert.Positive(t, desc.SizeBytes)

	// A second sweep finds nothing.
	deleted, err = s.RunTTLSweep(ctx, "music")
	require.NoError(t, err)
	assert.Zero(t, deleted)
}

// The sweep must take index rows down with their base rows, physically,
// not just hide them from index reads.
func TestSweepRemovesIndexRows(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	mustCreate(t, s, ttlTable())

	gone := expiringSong("a", "gone", time.Now().Add(-time.Hour))
	gone["genre"] = models.S("jazz")
	gone["rating"] = models.N("3")
	mustPut(t, s, "music", gone)
	live := expiringSong("a", "live", time.Now().Add(time.Hour))
	live["genre"] = models.S("jazz")
	live["rating"] = models.N("5")
	mustPut(t, s, "music", live)

	deleted, err := s.RunTTLSweep(ctx, "music")
	require.NoError(t, err)
	require.Equal(t, 1, deleted)

	scan, err := s.Scan(ctx, &models.ScanRequest{TableName: "music", IndexName: "by-genre"})
	require.NoError(t, err)
	assert.Equal(t, []string{"live"}, sortKeys(t, scan.Items, "song"))

	// One surviving item in two indexes leaves exactly two physical rows.
	var rows int
	err = testDB(t, s).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM index_items WHERE table_name = ?`, "music").Scan(&rows)
	require.NoError(t, err)
	assert.Equal(t, 2, rows)
}

func TestSweepAllTables(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	mustCreate(t, s, ttlTable())
	second := ttlTable()
	second.TableName = "music2"
	mustCreate(t, s, second)
	mustPut(t, s, "music", expiringSong("a", "s1", time.Now().Add(-time.Hour)))
	mustPut(t, s, "music2", expiringSong("a", "s1", time.Now().Add(-time.Hour)))

	deleted, err := s.RunTTLSweep(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)
}

func TestSweepRecordsBackgroundRun(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	mustCreate(t, s, ttlTable())
	mustPut(t, s, "music", expiringSong("a", "s1", time.Now().Add(-time.Hour)))

	_, err := s.RunTTLSweep(ctx, "music")
	require.NoError(t, err)

	runs, err := s.ListBackgroundRuns(ctx, "music")
	require.NoError(t, err)
	require.NotEmpty(t, runs)
	run := runs[0]
	assert.Equal(t, "ttl_sweep", run.Kind)
	assert.Equal(t, "music", run.TableName)
	assert.Equal(t, "COMPLETED", run.Status)
	assert.NotEmpty(t, run.ID)
	require.False(t, run.FinishedAt.IsZero())
	assert.False(t, run.FinishedAt.Before(run.StartedAt))
}

func TestUpdateTimeToLive(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	mustCreate(t, s, musicTable()) // TTL disabled at creation
	mustPut(t, s, "music", expiringSong("a", "s1", time.Now().Add(-time.Hour)))

	// Without TTL the expiry attribute is just data.
	got, err := s.GetItem(ctx, &models.GetItemRequest{
		TableName: "music", Key: song("a", "s1", "", ""),
	})
	require.NoError(t, err)
	assert.NotNil(t, got.Item)

	// Enabling TTL recomputes expiry for existing rows.
	desc, err := s.UpdateTimeToLive(ctx, "music", models.TimeToLiveSpecification{
		AttributeName: "expires", Enabled: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "ENABLED", desc.Status)

	got, err = s.GetItem(ctx, &models.GetItemRequest{
		TableName: "music", Key: song("a", "s1", "", ""),
	})
	require.NoError(t, err)
	assert.Nil(t, got.Item)

	// Disabling makes the row visible again.
	_, err = s.UpdateTimeToLive(ctx, "music", models.TimeToLiveSpecification{
		AttributeName: "expires", Enabled: false,
	})
	require.NoError(t, err)
	got, err = s.GetItem(ctx, &models.GetItemRequest{
		TableName: "music", Key: song("a", "s1", "", ""),
	})
	require.NoError(t, err)
	assert.NotNil(t, got.Item)
}

func TestDescribeTimeToLive(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	mustCreate(t, s, musicTable())

	desc, err := s.DescribeTimeToLive(ctx, "music")
	require.NoError(t, err)
	assert.Equal(t, "DISABLED", desc.Status)

	_, err = s.UpdateTimeToLive(ctx, "music", models.TimeToLiveSpecification{
		AttributeName: "expires", Enabled: true,
	})
	require.NoError(t, err)

	desc, err = s.DescribeTimeToLive(ctx, "music")
	require.NoError(t, err)
	assert.Equal(t, "ENABLED", desc.Status)
	assert.Equal(t, "expires", desc.AttributeName)
}

func TestUpdateTimeToLiveValidation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	mustCreate(t, s, musicTable())

	_, err := s.UpdateTimeToLive(ctx, "music", models.TimeToLiveSpecification{Enabled: true})
	require.Error(t, err)
	assert.True(t, models.HasErrorCode(err, models.ErrCodeValidation))

	_, err = s.UpdateTimeToLive(ctx, "ghost", models.TimeToLiveSpecification{
		AttributeName: "expires", Enabled: true,
	})
	assert.ErrorIs(t, err, ErrTableNotFound)
}
