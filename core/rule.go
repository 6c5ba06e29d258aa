package core

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Rule lifecycle states recognized in rule metadata.
const (
	StatusStable       = "stable"
	StatusTest         = "test"
	StatusExperimental = "experimental"
	StatusDeprecated   = "deprecated"
	StatusUnsupported  = "unsupported"
)

// TestRuleID marks rules shipped for engine self-tests. When such a rule is
// on the exclude list it is dropped without being counted as excluded.
const TestRuleID = "00000000-0000-0000-0000-000000000000"

// Rule is one parsed detection rule file. The struct is populated once by
// the loader and never mutated afterwards; the single exception is
// EffectiveLevel and Noisy, which the tuning pass writes exactly once per
// run before the rule set is frozen.
type Rule struct {
	// ID is the rule's unique identifier (a UUID in the shipped rule sets).
	ID string `yaml:"id"`

	// Title is the human-readable rule name used in detection output.
	Title string `yaml:"title"`

	// LevelRaw is the severity level string as written in the rule file.
	LevelRaw string `yaml:"level"`

	// Status carries the rule lifecycle state (stable, test, deprecated...).
	Status string `yaml:"status"`

	// Tags holds classification tags, including MITRE ATT&CK technique IDs
	// ("attack.t1110", ...).
	Tags []string `yaml:"tags"`

	// Channel restricts the rule to records from one log channel. Empty
	// means the rule applies to every channel.
	Channel string `yaml:"channel"`

	// Details is the output message template. %FieldName% placeholders are
	// substituted with resolved field values at detection time; fields that
	// do not resolve render as "n/a".
	Details string `yaml:"details"`

	// Detection holds the raw detection block: named selectors plus the
	// condition expression and optional timeframe. Compiled by the detect
	// package at load time.
	Detection map[string]any `yaml:"detection"`

	// Path is the rule file path, kept for diagnostics only.
	Path string `yaml:"-"`

	// Level is the severity declared in the rule file.
	Level Level `yaml:"-"`

	// EffectiveLevel is the severity after the tuning pass. Equal to Level
	// when no override matches the rule ID.
	EffectiveLevel Level `yaml:"-"`

	// Noisy is set by the tuning pass when the rule ID appears on the
	// noisy list. Noisy rules are evaluated only when explicitly enabled.
	Noisy bool `yaml:"-"`
}

// ParseRule decodes one rule document. It validates only the fields the
// engine cannot work without; detection-block compilation and its richer
// validation happen in the detect package.
func ParseRule(data []byte, path string) (*Rule, error) {
	var r Rule
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to parse rule %s: %w", path, err)
	}
	if r.Detection == nil {
		return nil, fmt.Errorf("rule %s has no detection block", path)
	}
	if r.Title == "" {
		return nil, fmt.Errorf("rule %s has no title", path)
	}
	if r.ID == "" {
		return nil, fmt.Errorf("rule %s has no id", path)
	}
	r.Path = path
	r.Level = ParseLevel(r.LevelRaw)
	r.EffectiveLevel = r.Level
	return &r, nil
}

// Deprecated reports whether the rule is marked deprecated in its metadata.
func (r *Rule) Deprecated() bool {
	return r.Status == StatusDeprecated
}
