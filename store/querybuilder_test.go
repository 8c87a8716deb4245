package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tabeth/concretelocal/expression"
	"github.com/tabeth/concretelocal/models"
)

func TestPrefixUpperBound(t *testing.T) {
	tests := []struct {
		prefix  string
		want    string
		bounded bool
	}{
		{"a", "b", true},
		{"abc", "abd", true},
		{"héllo", "héllp", true},
		// Incrementing into the surrogate gap lands past it.
		{"x\uD7FF", "x\uE000", true},
		// A maximal last code point drops and the carry moves left.
		{"a\U0010FFFF", "b", true},
		{"ab\U0010FFFF\U0010FFFF", "ac", true},
		// All-maximal prefixes are unbounded above.
		{"\U0010FFFF", "", false},
		{"\U0010FFFF\U0010FFFF", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.prefix, func(t *testing.T) {
			got, bounded := prefixUpperBound(tt.prefix)
			assert.Equal(t, tt.bounded, bounded)
			if bounded {
				assert.Equal(t, tt.want, got)
				assert.Greater(t, got, tt.prefix)
			}
		})
	}
}

func TestCanonicalKey(t *testing.T) {
	tests := []struct {
		name     string
		value    models.AttributeValue
		declared string
		want     string
		wantErr  bool
	}{
		{"string passthrough", models.S("user#42"), "S", "user#42", false},
		{"empty string rejected", models.S(""), "S", "", true},
		{"number normalizes", models.N("01.50"), "N", "1.5", false},
		{"negative zero", models.N("-0"), "N", "0", false},
		{"binary is lowercase hex", models.B([]byte{0x00, 0xAB, 0xFF}), "B", "00abff", false},
		{"empty binary rejected", models.B(nil), "B", "", true},
		{"type mismatch", models.N("1"), "S", "", true},
		{"malformed number", models.N("zzz"), "N", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := canonicalKey(tt.value, tt.declared)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// Hex canonicalization keeps bytewise order under text comparison.
func TestCanonicalBinaryOrder(t *testing.T) {
	lo, err := canonicalKey(models.B([]byte{0x01, 0xFF}), "B")
	require.NoError(t, err)
	hi, err := canonicalKey(models.B([]byte{0x02}), "B")
	require.NoError(t, err)
	assert.Less(t, lo, hi)

	// A byte prefix becomes a text prefix.
	full, err := canonicalKey(models.B([]byte{0x01, 0xFF, 0x03}), "B")
	require.NoError(t, err)
	assert.Equal(t, lo, full[:len(lo)])
}

func TestExtractKeys(t *testing.T) {
	table := musicTable()

	key, err := extractKeys(table, song("Miles", "So What", "jazz", "9"))
	require.NoError(t, err)
	assert.Equal(t, "Miles", key.PK)
	assert.Equal(t, "So What", key.SK)
	assert.True(t, key.HasSK)
	assert.False(t, key.SKIsNum)

	_, err = extractKeys(table, models.Item{"artist": models.S("Miles")})
	assert.Error(t, err)
}

func TestExtractNumericSortKey(t *testing.T) {
	key, err := extractKeys(seriesTable(), point("p", "02.50"))
	require.NoError(t, err)
	assert.Equal(t, "2.5", key.SK)
	require.True(t, key.SKIsNum)
	assert.InDelta(t, 2.5, key.SKNum.Float64, 0)
}

func TestTryExtractIndexKeysSparse(t *testing.T) {
	table := musicTable()
	idx, ok := table.Index("by-genre")
	require.True(t, ok)

	_, ok = tryExtractIndexKeys(table, idx, song("a", "s1", "jazz", "5"))
	assert.True(t, ok)
	// Missing either index key attribute means no index row.
	_, ok = tryExtractIndexKeys(table, idx, song("a", "s1", "jazz", ""))
	assert.False(t, ok)
	_, ok = tryExtractIndexKeys(table, idx, song("a", "s1", "", "5"))
	assert.False(t, ok)
	// So does carrying it with the wrong type.
	item := song("a", "s1", "jazz", "")
	item["rating"] = models.S("five")
	_, ok = tryExtractIndexKeys(table, idx, item)
	assert.False(t, ok)
}

func TestValidateKeyInput(t *testing.T) {
	table := musicTable()
	assert.NoError(t, validateKeyInput(table, song("a", "s1", "", "")))
	assert.Error(t, validateKeyInput(table, models.Item{"artist": models.S("a")}))
	assert.Error(t, validateKeyInput(table, song("a", "s1", "jazz", "")))
}

func buildQuery(t *testing.T, table *models.Table, index, cond string, values map[string]models.AttributeValue) *keyQuery {
	t.Helper()
	kc, err := expression.ParseKeyCondition(cond)
	require.NoError(t, err)
	q, err := buildKeyQuery(table, index, kc, nil, values)
	require.NoError(t, err)
	return q
}

func TestBuildKeyQuery(t *testing.T) {
	table := musicTable()

	q := buildQuery(t, table, "", "artist = :a", map[string]models.AttributeValue{
		":a": models.S("Miles"),
	})
	assert.Equal(t, "Miles", q.PK)
	assert.Empty(t, q.Clauses)

	q = buildQuery(t, table, "", "artist = :a AND song BETWEEN :lo AND :hi",
		map[string]models.AttributeValue{
			":a": models.S("Miles"), ":lo": models.S("A"), ":hi": models.S("M"),
		})
	assert.Equal(t, []string{"sk >= ?", "sk <= ?"}, q.Clauses)
	assert.Equal(t, []any{"A", "M"}, q.Args)

	q = buildQuery(t, table, "", "artist = :a AND begins_with(song, :p)",
		map[string]models.AttributeValue{
			":a": models.S("Miles"), ":p": models.S("So"),
		})
	assert.Equal(t, []string{"sk >= ?", "sk < ?"}, q.Clauses)
	assert.Equal(t, []any{"So", "Sp"}, q.Args)
}

// Numeric sort keys translate onto the float shadow column.
func TestBuildKeyQueryNumericSortColumn(t *testing.T) {
	q := buildQuery(t, seriesTable(), "", "pk = :p AND n >= :lo",
		map[string]models.AttributeValue{
			":p": models.S("p"), ":lo": models.N("2.5"),
		})
	assert.Equal(t, []string{"sk_num >= ?"}, q.Clauses)
	assert.Equal(t, []any{2.5}, q.Args)
}

func TestBuildKeyQueryAgainstIndexSchema(t *testing.T) {
	table := musicTable()
	q := buildQuery(t, table, "by-genre", "genre = :g AND rating > :r",
		map[string]models.AttributeValue{
			":g": models.S("jazz"), ":r": models.N("5"),
		})
	assert.Equal(t, "jazz", q.PK)
	assert.Equal(t, []string{"sk_num > ?"}, q.Clauses)
}

func TestBuildKeyQueryErrors(t *testing.T) {
	table := musicTable()
	values := map[string]models.AttributeValue{
		":a": models.S("x"), ":b": models.S("y"),
	}
	tests := []struct {
		name string
		cond string
	}{
		{"no partition key", "song = :a"},
		{"partition key inequality", "artist > :a"},
		{"partition key twice", "artist = :a AND artist = :b"},
		{"foreign attribute", "artist = :a AND genre = :b"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kc, err := expression.ParseKeyCondition(tt.cond)
			require.NoError(t, err)
			_, err = buildKeyQuery(table, "", kc, nil, values)
			require.Error(t, err)
			assert.True(t, models.HasErrorCode(err, models.ErrCodeValidation))
		})
	}

	kc, err := expression.ParseKeyCondition("artist = :missing")
	require.NoError(t, err)
	_, err = buildKeyQuery(table, "", kc, nil, nil)
	require.Error(t, err)
	assert.True(t, models.HasErrorCode(err, models.ErrCodeValidation))
}
