package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeNumber(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"1", "1"},
		{"+1", "1"},
		{"1.50", "1.5"},
		{"-0", "0"},
		{"0.0", "0"},
		{"1e2", "100"},
		{"1.5E-2", "0.015"},
		{"-3.14000", "-3.14"},
		{".5", "0.5"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := NormalizeNumber(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeNumberRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "abc", "1.2.3", "1e", "--1", "1 2", "NaN", "Infinity"} {
		t.Run(in, func(t *testing.T) {
			_, err := NormalizeNumber(in)
			assert.Error(t, err)
		})
	}
}

func TestCompareNumbers(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"1", "2", -1},
		{"2", "1", 1},
		{"1.0", "1", 0},
		{"-5", "3", -1},
		{"10", "9.999", 1},
		{"0.1", "0.10000", 0},
		{"-0", "0", 0},
		{"1e3", "999", 1},
	}
	for _, tt := range tests {
		got, err := CompareNumbers(tt.a, tt.b)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "%s vs %s", tt.a, tt.b)
	}
}

// The engine's arithmetic is exact decimal; binary-float artifacts like
// 0.30000000000000004 must never appear.
func TestArithmeticIsExact(t *testing.T) {
	sum, err := AddNumbers("0.1", "0.2")
	require.NoError(t, err)
	assert.Equal(t, "0.3", sum)

	diff, err := SubtractNumbers("1", "0.9")
	require.NoError(t, err)
	assert.Equal(t, "0.1", diff)

	sum, err = AddNumbers("9999999999999999999999", "1")
	require.NoError(t, err)
	assert.Equal(t, "10000000000000000000000", sum)

	sum, err = AddNumbers("5", "-5")
	require.NoError(t, err)
	assert.Equal(t, "0", sum)
}
