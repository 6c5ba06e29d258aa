package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAsString(t *testing.T) {
	tests := []struct {
		in   any
		want string
		ok   bool
	}{
		{"hello", "hello", true},
		{42, "42", true},
		{int64(42), "42", true},
		{float64(42), "42", true},
		{42.5, "42.5", true},
		{true, "true", true},
		{nil, "", false},
		{[]any{"x"}, "", false},
	}
	for _, tt := range tests {
		got, ok := AsString(tt.in)
		assert.Equal(t, tt.ok, ok)
		assert.Equal(t, tt.want, got)
	}
}

func TestAsInt(t *testing.T) {
	n, ok := AsInt("4625")
	assert.True(t, ok)
	assert.Equal(t, int64(4625), n)

	n, ok = AsInt(float64(4625))
	assert.True(t, ok)
	assert.Equal(t, int64(4625), n)

	_, ok = AsInt("not a number")
	assert.False(t, ok)

	_, ok = AsInt(12.7)
	assert.False(t, ok)
}

func TestAsFloat(t *testing.T) {
	f, ok := AsFloat(" 3.5 ")
	assert.True(t, ok)
	assert.Equal(t, 3.5, f)

	_, ok = AsFloat(nil)
	assert.False(t, ok)
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "cmd.exe /c whoami", FormatValue(`cmd.exe /c "whoami"`))
	assert.Equal(t, "4625", FormatValue(4625))
}

func TestToString(t *testing.T) {
	assert.Equal(t, "x", ToString("x"))
	assert.Equal(t, "", ToString(nil))
	assert.Equal(t, "[a b]", ToString([]any{"a", "b"}))
}
