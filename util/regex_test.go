package util

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateRegexPattern(t *testing.T) {
	assert.NoError(t, ValidateRegexPattern(`^C:\\Windows\\.*\.exe$`))
	assert.NoError(t, ValidateRegexPattern(`a{1,100}`))

	assert.Error(t, ValidateRegexPattern(""))
	assert.Error(t, ValidateRegexPattern(strings.Repeat("a", MaxRegexPatternLength+1)))
	assert.Error(t, ValidateRegexPattern(`a{100000}`))
	assert.Error(t, ValidateRegexPattern(`a{1,100000}`))
}

func TestCompileTimeoutRegex(t *testing.T) {
	re, err := CompileTimeoutRegex(`^4[0-9]{3}$`)
	require.NoError(t, err)
	assert.True(t, re.MatchString("4625"))
	assert.False(t, re.MatchString("10"))

	_, err = CompileTimeoutRegex("([unclosed")
	assert.Error(t, err)
}

func TestCompileTimeoutRegexLookahead(t *testing.T) {
	// lookarounds are outside RE2 syntax but must still compile
	re, err := CompileTimeoutRegex(`^(?!SYSTEM).*admin`)
	require.NoError(t, err)
	assert.True(t, re.MatchString("local admin"))
	assert.False(t, re.MatchString("SYSTEM admin"))
}

func TestCompileTimeoutRegexCached(t *testing.T) {
	a, err := CompileTimeoutRegex("cacheme[0-9]+")
	require.NoError(t, err)
	b, err := CompileTimeoutRegex("cacheme[0-9]+")
	require.NoError(t, err)
	assert.Same(t, a, b)
}
