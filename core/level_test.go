package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"critical", LevelCritical},
		{"CRITICAL", LevelCritical},
		{" high ", LevelHigh},
		{"medium", LevelMedium},
		{"med", LevelMedium},
		{"low", LevelLow},
		{"informational", LevelInformational},
		{"", LevelInformational},
		{"bogus", LevelInformational},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLevel(tt.in), "ParseLevel(%q)", tt.in)
	}
}

func TestLevelOrdering(t *testing.T) {
	assert.True(t, LevelCritical > LevelHigh)
	assert.True(t, LevelHigh > LevelMedium)
	assert.True(t, LevelMedium > LevelLow)
	assert.True(t, LevelLow > LevelInformational)
	assert.True(t, LevelInformational > LevelUndefined)
}

func TestLevelStrings(t *testing.T) {
	assert.Equal(t, "critical", LevelCritical.String())
	assert.Equal(t, "crit", LevelCritical.Abbr())
	assert.Equal(t, "undefined", Level(99).String())
	assert.Equal(t, "undef", Level(99).Abbr())
}
