package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValueKinds(t *testing.T) {
	tests := []struct {
		name string
		val  AttributeValue
		kind ValueKind
	}{
		{"string", S("hello"), KindS},
		{"number", N("1.5"), KindN},
		{"binary", B([]byte{1, 2}), KindB},
		{"bool", Bool(true), KindBOOL},
		{"null", Null(), KindNULL},
		{"string set", SS("a"), KindSS},
		{"number set", NS("1"), KindNS},
		{"binary set", BS([]byte{1}), KindBS},
		{"list", L(S("a")), KindL},
		{"map", M(map[string]AttributeValue{"k": S("v")}), KindM},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, tt.val.Kind())
			assert.True(t, tt.val.IsValid())
		})
	}
	assert.False(t, AttributeValue{}.IsValid())
}

func TestEmptyCollectionsKeepTheirKind(t *testing.T) {
	assert.Equal(t, KindSS, SS().Kind())
	assert.Equal(t, KindNS, NS().Kind())
	assert.Equal(t, KindBS, BS().Kind())
	assert.Equal(t, KindL, L().Kind())
	assert.Equal(t, KindM, M(nil).Kind())

	n, ok := SS().Length()
	assert.True(t, ok)
	assert.Equal(t, 0, n)
}

func TestSetDeduplication(t *testing.T) {
	ss, _ := SS("a", "b", "a").AsStringSet()
	assert.Equal(t, []string{"a", "b"}, ss)

	// Number sets collapse by numeric value, not by spelling.
	ns, _ := NS("1", "1.0", "2").AsNumberSet()
	assert.Len(t, ns, 2)

	bs, _ := BS([]byte{1}, []byte{1}, []byte{2}).AsBinarySet()
	assert.Len(t, bs, 2)
}

func TestEqual(t *testing.T) {
	tests := []struct {
		name  string
		a, b  AttributeValue
		equal bool
	}{
		{"same strings", S("x"), S("x"), true},
		{"different strings", S("x"), S("y"), false},
		{"numbers by value", N("1.50"), N("1.5"), true},
		{"different kinds", S("1"), N("1"), false},
		{"null vs null", Null(), Null(), true},
		{"sets ignore order", SS("a", "b"), SS("b", "a"), true},
		{"number sets by value", NS("1", "2"), NS("2.0", "1.0"), true},
		{"lists keep order", L(S("a"), S("b")), L(S("b"), S("a")), false},
		{"nested maps", M(map[string]AttributeValue{"k": L(N("1"))}), M(map[string]AttributeValue{"k": L(N("1.0"))}), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.equal, tt.a.Equal(tt.b))
		})
	}
}

func TestCopyIsDeep(t *testing.T) {
	inner := map[string]AttributeValue{"n": N("1")}
	item := Item{
		"m": M(inner),
		"l": L(S("a")),
		"b": B([]byte{1, 2}),
	}
	dup := CopyItem(item)
	assert.True(t, ItemsEqual(item, dup))

	// Mutating the copy's innards must not leak back.
	m, _ := dup["m"].AsMap()
	m["n"] = N("2")
	b, _ := dup["b"].AsBinary()
	b[0] = 9

	orig, _ := item["m"].AsMap()
	assert.True(t, orig["n"].Equal(N("1")))
	ob, _ := item["b"].AsBinary()
	assert.Equal(t, byte(1), ob[0])
}

func TestLength(t *testing.T) {
	tests := []struct {
		name string
		val  AttributeValue
		n    int
		ok   bool
	}{
		{"string bytes", S("héllo"), 6, true},
		{"binary bytes", B([]byte{1, 2, 3}), 3, true},
		{"set members", NS("1", "2"), 2, true},
		{"list elements", L(S("a")), 1, true},
		{"map keys", M(map[string]AttributeValue{"a": S("x")}), 1, true},
		{"number has no size", N("123"), 0, false},
		{"bool has no size", Bool(true), 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, ok := tt.val.Length()
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.n, n)
		})
	}
}
