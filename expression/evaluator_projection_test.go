package expression

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tabeth/concretelocal/models"
)

func project(t *testing.T, item models.Item, expr string, names map[string]string) models.Item {
	t.Helper()
	paths, err := ParseProjection(expr)
	require.NoError(t, err)
	out, err := NewEvaluator().ProjectItem(item, paths, names)
	require.NoError(t, err)
	return out
}

func projectionFixture() models.Item {
	return models.Item{
		"id":  models.S("1"),
		"age": models.N("30"),
		"doc": models.M(map[string]models.AttributeValue{
			"a": models.S("x"),
			"b": models.S("y"),
			"list": models.L(
				models.S("e0"), models.S("e1"), models.S("e2"),
			),
		}),
	}
}

func TestProjectTopLevel(t *testing.T) {
	out := project(t, projectionFixture(), "id, age", nil)
	assert.Len(t, out, 2)
	assert.True(t, out["id"].Equal(models.S("1")))
}

func TestProjectNested(t *testing.T) {
	out := project(t, projectionFixture(), "doc.a, doc.list[2]", nil)
	require.Len(t, out, 1)
	doc, _ := out["doc"].AsMap()
	assert.True(t, doc["a"].Equal(models.S("x")))
	_, hasB := doc["b"]
	assert.False(t, hasB)
	list, _ := doc["list"].AsList()
	// Selected list elements compact while keeping relative order.
	require.Len(t, list, 1)
	assert.True(t, list[0].Equal(models.S("e2")))
}

func TestProjectListOrderPreserved(t *testing.T) {
	out := project(t, projectionFixture(), "doc.list[2], doc.list[0]", nil)
	doc, _ := out["doc"].AsMap()
	list, _ := doc["list"].AsList()
	require.Len(t, list, 2)
	assert.True(t, list[0].Equal(models.S("e0")))
	assert.True(t, list[1].Equal(models.S("e2")))
}

func TestProjectAbsentPathsContributeNothing(t *testing.T) {
	out := project(t, projectionFixture(), "ghost, doc.list[9], id", nil)
	assert.Len(t, out, 1)
	_, ok := out["id"]
	assert.True(t, ok)
}

func TestProjectBroaderPathAbsorbsNarrower(t *testing.T) {
	out := project(t, projectionFixture(), "doc, doc.a", nil)
	doc, _ := out["doc"].AsMap()
	// The whole map won, including attributes the narrow path skipped.
	_, hasB := doc["b"]
	assert.True(t, hasB)
}

func TestProjectWithNamePlaceholders(t *testing.T) {
	item := models.Item{"reserved": models.M(map[string]models.AttributeValue{
		"inner": models.S("v"),
	})}
	out := project(t, item, "#r.inner", map[string]string{"#r": "reserved"})
	m, _ := out["reserved"].AsMap()
	assert.True(t, m["inner"].Equal(models.S("v")))
}

func TestProjectNilItem(t *testing.T) {
	paths, err := ParseProjection("a")
	require.NoError(t, err)
	out, err := NewEvaluator().ProjectItem(nil, paths, nil)
	require.NoError(t, err)
	assert.Nil(t, out)
}
