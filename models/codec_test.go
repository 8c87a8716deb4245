package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWireEncoding(t *testing.T) {
	tests := []struct {
		name string
		val  AttributeValue
		json string
	}{
		{"string", S("hi"), `{"S":"hi"}`},
		{"number as string", N("3.14"), `{"N":"3.14"}`},
		{"binary base64", B([]byte("abc")), `{"B":"YWJj"}`},
		{"bool", Bool(true), `{"BOOL":true}`},
		{"null", Null(), `{"NULL":true}`},
		{"string set", SS("a", "b"), `{"SS":["a","b"]}`},
		{"empty string set", SS(), `{"SS":[]}`},
		{"empty list", L(), `{"L":[]}`},
		{"empty map", M(nil), `{"M":{}}`},
		{"nested", L(M(map[string]AttributeValue{"k": N("1")})), `{"L":[{"M":{"k":{"N":"1"}}}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := json.Marshal(tt.val)
			require.NoError(t, err)
			assert.JSONEq(t, tt.json, string(out))

			var back AttributeValue
			require.NoError(t, json.Unmarshal(out, &back))
			assert.True(t, tt.val.Equal(back), "round-trip changed the value")
			assert.Equal(t, tt.val.Kind(), back.Kind())
		})
	}
}

// An empty typed collection must round-trip as itself; the codec has no
// NULL fallback for emptiness.
func TestEmptyCollectionsRoundTrip(t *testing.T) {
	for _, v := range []AttributeValue{SS(), NS(), BS(), L(), M(nil)} {
		out, err := json.Marshal(v)
		require.NoError(t, err)
		var back AttributeValue
		require.NoError(t, json.Unmarshal(out, &back))
		assert.Equal(t, v.Kind(), back.Kind())
		assert.False(t, back.IsNull())
	}
}

func TestUnmarshalRejectsMalformedValues(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"no tag", `{}`},
		{"two tags", `{"S":"a","N":"1"}`},
		{"unknown tag", `{"STR":"a"}`},
		{"bad number", `{"N":"abc"}`},
		{"bad number set member", `{"NS":["1","x"]}`},
		{"bad base64", `{"B":"???"}`},
		{"wrong payload shape", `{"SS":"a"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var v AttributeValue
			assert.Error(t, json.Unmarshal([]byte(tt.in), &v))
		})
	}
}

func TestMarshalRejectsInvalidValues(t *testing.T) {
	_, err := json.Marshal(N("not-a-number"))
	assert.Error(t, err)

	_, err = json.Marshal(AttributeValue{})
	assert.Error(t, err)
}

func TestItemRoundTrip(t *testing.T) {
	item := Item{
		"id":     S("user#1"),
		"score":  N("99.5"),
		"tags":   SS("a", "b"),
		"blob":   B([]byte{0, 1, 2}),
		"extra":  L(N("1"), Bool(false), Null()),
		"nested": M(map[string]AttributeValue{"deep": L(S("x"))}),
	}
	data, err := SerializeItem(item)
	require.NoError(t, err)
	back, err := DeserializeItem(data)
	require.NoError(t, err)
	assert.True(t, ItemsEqual(item, back))
}

func TestDeserializeItemWrapsAsValidation(t *testing.T) {
	_, err := DeserializeItem([]byte(`{"id":{"WAT":"x"}}`))
	require.Error(t, err)
	assert.True(t, HasErrorCode(err, ErrCodeValidation))
}

// Numbers keep their exact text through the codec; nothing converts them
// to floats along the way.
func TestNumberTextPreserved(t *testing.T) {
	in := Item{"n": N("3.141592653589793238462643383279")}
	data, err := SerializeItem(in)
	require.NoError(t, err)
	back, err := DeserializeItem(data)
	require.NoError(t, err)
	n, ok := back["n"].AsNumber()
	require.True(t, ok)
	assert.Equal(t, "3.141592653589793238462643383279", n)
}
