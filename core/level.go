package core

import "strings"

// Level is a rule severity level. The zero value is LevelUndefined; rules
// without a declared level are treated as informational.
type Level int

const (
	LevelUndefined Level = iota
	LevelInformational
	LevelLow
	LevelMedium
	LevelHigh
	LevelCritical
)

var levelNames = map[Level]string{
	LevelUndefined:     "undefined",
	LevelInformational: "informational",
	LevelLow:           "low",
	LevelMedium:        "medium",
	LevelHigh:          "high",
	LevelCritical:      "critical",
}

// levelAbbrs are the short forms used in terminal and CSV output.
var levelAbbrs = map[Level]string{
	LevelInformational: "info",
	LevelLow:           "low",
	LevelMedium:        "med",
	LevelHigh:          "high",
	LevelCritical:      "crit",
}

// ParseLevel maps a rule-declared level string to a Level. Unknown and empty
// strings parse to LevelInformational so that a missing level never drops a
// rule from evaluation.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "critical", "crit":
		return LevelCritical
	case "high":
		return LevelHigh
	case "medium", "med":
		return LevelMedium
	case "low":
		return LevelLow
	default:
		return LevelInformational
	}
}

func (l Level) String() string {
	if s, ok := levelNames[l]; ok {
		return s
	}
	return "undefined"
}

// Abbr returns the short display form ("crit", "high", ...).
func (l Level) Abbr() string {
	if s, ok := levelAbbrs[l]; ok {
		return s
	}
	return "undef"
}
