package expression

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tabeth/concretelocal/models"
)

func applyUpdate(t *testing.T, expr string, item models.Item, names map[string]string, values map[string]models.AttributeValue) models.Item {
	t.Helper()
	update, err := ParseUpdate(expr)
	require.NoError(t, err)
	out, err := NewEvaluator().ApplyUpdate(update, item, names, values)
	require.NoError(t, err)
	return out
}

func applyUpdateErr(t *testing.T, expr string, item models.Item, values map[string]models.AttributeValue) error {
	t.Helper()
	update, err := ParseUpdate(expr)
	require.NoError(t, err)
	_, err = NewEvaluator().ApplyUpdate(update, item, nil, values)
	require.Error(t, err)
	return err
}

func TestSetTopLevel(t *testing.T) {
	item := models.Item{"a": models.S("old")}
	out := applyUpdate(t, "SET a = :v, b = :w", item, nil, vals(
		":v", models.S("new"), ":w", models.N("1")))
	assert.True(t, out["a"].Equal(models.S("new")))
	assert.True(t, out["b"].Equal(models.N("1")))
	// The input item is untouched.
	assert.True(t, item["a"].Equal(models.S("old")))
}

func TestSetArithmetic(t *testing.T) {
	item := models.Item{"count": models.N("0.1")}
	out := applyUpdate(t, "SET count = count + :d", item, nil, vals(":d", models.N("0.2")))
	n, _ := out["count"].AsNumber()
	assert.Equal(t, "0.3", n)

	out = applyUpdate(t, "SET count = count - :d", item, nil, vals(":d", models.N("0.1")))
	n, _ = out["count"].AsNumber()
	assert.Equal(t, "0", n)
}

func TestSetIfNotExists(t *testing.T) {
	item := models.Item{"a": models.S("kept")}
	out := applyUpdate(t, "SET a = if_not_exists(a, :d), b = if_not_exists(b, :d)",
		item, nil, vals(":d", models.S("default")))
	assert.True(t, out["a"].Equal(models.S("kept")))
	assert.True(t, out["b"].Equal(models.S("default")))
}

func TestSetListAppend(t *testing.T) {
	item := models.Item{"l": models.L(models.N("1"))}
	out := applyUpdate(t, "SET l = list_append(l, :more)", item, nil,
		vals(":more", models.L(models.N("2"), models.N("3"))))
	list, _ := out["l"].AsList()
	require.Len(t, list, 3)

	err := applyUpdateErr(t, "SET l = list_append(l, :notalist)", item,
		vals(":notalist", models.S("x")))
	assert.True(t, models.HasErrorCode(err, models.ErrCodeValidation))
}

func TestSetNestedPaths(t *testing.T) {
	item := models.Item{
		"doc": models.M(map[string]models.AttributeValue{
			"inner": models.M(map[string]models.AttributeValue{"x": models.N("1")}),
			"list":  models.L(models.S("a"), models.S("b")),
		}),
	}
	out := applyUpdate(t, "SET doc.inner.x = :v", item, nil, vals(":v", models.N("2")))
	doc, _ := out["doc"].AsMap()
	inner, _ := doc["inner"].AsMap()
	assert.True(t, inner["x"].Equal(models.N("2")))

	// Replacing in range, appending past the end.
	out = applyUpdate(t, "SET doc.list[0] = :v", item, nil, vals(":v", models.S("z")))
	doc, _ = out["doc"].AsMap()
	list, _ := doc["list"].AsList()
	assert.True(t, list[0].Equal(models.S("z")))

	out = applyUpdate(t, "SET doc.list[99] = :v", item, nil, vals(":v", models.S("tail")))
	doc, _ = out["doc"].AsMap()
	list, _ = doc["list"].AsList()
	require.Len(t, list, 3)
	assert.True(t, list[2].Equal(models.S("tail")))
}

func TestSetThroughMissingIntermediateFails(t *testing.T) {
	item := models.Item{"doc": models.M(map[string]models.AttributeValue{})}
	err := applyUpdateErr(t, "SET doc.ghost.deep = :v", item, vals(":v", models.S("x")))
	assert.True(t, models.HasErrorCode(err, models.ErrCodeValidation))

	// Descending into a scalar is a shape conflict.
	item = models.Item{"s": models.S("scalar")}
	err = applyUpdateErr(t, "SET s.child = :v", item, vals(":v", models.S("x")))
	assert.True(t, models.HasErrorCode(err, models.ErrCodeValidation))
}

func TestRemove(t *testing.T) {
	item := models.Item{
		"a": models.S("x"),
		"doc": models.M(map[string]models.AttributeValue{
			"keep": models.N("1"),
			"drop": models.N("2"),
			"list": models.L(models.S("a"), models.S("b"), models.S("c")),
		}),
	}
	out := applyUpdate(t, "REMOVE a, doc.drop, doc.list[1], ghost", item, nil, nil)
	_, ok := out["a"]
	assert.False(t, ok)
	doc, _ := out["doc"].AsMap()
	_, ok = doc["drop"]
	assert.False(t, ok)
	list, _ := doc["list"].AsList()
	// List removal shifts the remainder left.
	require.Len(t, list, 2)
	assert.True(t, list[1].Equal(models.S("c")))
}

func TestAddNumber(t *testing.T) {
	item := models.Item{"n": models.N("10")}
	out := applyUpdate(t, "ADD n :d", item, nil, vals(":d", models.N("-3")))
	n, _ := out["n"].AsNumber()
	assert.Equal(t, "7", n)

	// Absent target starts from zero.
	out = applyUpdate(t, "ADD fresh :d", item, nil, vals(":d", models.N("2.5")))
	n, _ = out["fresh"].AsNumber()
	assert.Equal(t, "2.5", n)

	err := applyUpdateErr(t, "ADD s :d", models.Item{"s": models.S("x")}, vals(":d", models.N("1")))
	assert.True(t, models.HasErrorCode(err, models.ErrCodeValidation))
}

func TestAddSetUnion(t *testing.T) {
	item := models.Item{"tags": models.SS("a", "b")}
	out := applyUpdate(t, "ADD tags :more", item, nil, vals(":more", models.SS("b", "c")))
	ss, _ := out["tags"].AsStringSet()
	assert.ElementsMatch(t, []string{"a", "b", "c"}, ss)

	// Union on an absent attribute creates the set.
	out = applyUpdate(t, "ADD nums :ns", item, nil, vals(":ns", models.NS("1", "1.0", "2")))
	ns, _ := out["nums"].AsNumberSet()
	assert.Len(t, ns, 2)

	err := applyUpdateErr(t, "ADD tags :ns", item, vals(":ns", models.NS("1")))
	assert.True(t, models.HasErrorCode(err, models.ErrCodeValidation))
}

func TestDeleteSetMembers(t *testing.T) {
	item := models.Item{
		"tags": models.SS("a", "b", "c"),
		"bins": models.BS([]byte{1}, []byte{2}),
	}
	out := applyUpdate(t, "DELETE tags :drop", item, nil, vals(":drop", models.SS("b", "zz")))
	ss, _ := out["tags"].AsStringSet()
	assert.ElementsMatch(t, []string{"a", "c"}, ss)

	out = applyUpdate(t, "DELETE bins :drop", item, nil, vals(":drop", models.BS([]byte{2})))
	bs, _ := out["bins"].AsBinarySet()
	assert.Len(t, bs, 1)

	// Emptying a set removes the attribute entirely.
	out = applyUpdate(t, "DELETE tags :all", item, nil, vals(":all", models.SS("a", "b", "c")))
	_, ok := out["tags"]
	assert.False(t, ok)

	// Deleting from an absent attribute is a no-op.
	out = applyUpdate(t, "DELETE ghost :drop", item, nil, vals(":drop", models.SS("x")))
	_, ok = out["ghost"]
	assert.False(t, ok)

	err := applyUpdateErr(t, "DELETE tags :n", item, vals(":n", models.N("1")))
	assert.True(t, models.HasErrorCode(err, models.ErrCodeValidation))
}

func TestUpdateCreatesItemFromNil(t *testing.T) {
	out := applyUpdate(t, "SET a = :v ADD n :one", nil, nil, vals(
		":v", models.S("x"), ":one", models.N("1")))
	assert.True(t, out["a"].Equal(models.S("x")))
	assert.True(t, out["n"].Equal(models.N("1")))
}

func TestUpdateRejectsDuplicateTargets(t *testing.T) {
	err := applyUpdateErr(t, "SET a = :v REMOVE a", models.Item{}, vals(":v", models.S("x")))
	assert.True(t, models.HasErrorCode(err, models.ErrCodeValidation))
}

func TestSetOperandReferencingMissingAttributeFails(t *testing.T) {
	err := applyUpdateErr(t, "SET a = ghost", models.Item{}, nil)
	assert.True(t, models.HasErrorCode(err, models.ErrCodeValidation))
}
