package util

import (
	"fmt"
	"regexp"
	"strconv"
)

// Limits applied to rule-supplied regular expressions before compilation.
// Go's regexp matches in linear time, but compilation of adversarial
// patterns (huge literals, large counted repetitions) can still burn memory
// and CPU, so patterns are screened up front.
const (
	// MaxRegexPatternLength bounds pattern size; 10KB covers every pattern
	// observed in public rule sets with a wide margin.
	MaxRegexPatternLength = 10000

	// MaxRegexQuantifier bounds {n,m} counted repetitions.
	MaxRegexQuantifier = 1000
)

var quantifierRe = regexp.MustCompile(`\{(\d+)(?:,(\d*))?\}`)

// ValidateRegexPattern rejects patterns that would be expensive to compile.
// Called once per rule at load time; a rejected pattern rejects the rule,
// never the run.
func ValidateRegexPattern(pattern string) error {
	if pattern == "" {
		return fmt.Errorf("regex pattern cannot be empty")
	}
	if len(pattern) > MaxRegexPatternLength {
		return fmt.Errorf("regex pattern too long: %d bytes (max %d)", len(pattern), MaxRegexPatternLength)
	}
	for _, m := range quantifierRe.FindAllStringSubmatch(pattern, -1) {
		for _, g := range m[1:] {
			if g == "" {
				continue
			}
			if n, err := strconv.Atoi(g); err == nil && n > MaxRegexQuantifier {
				return fmt.Errorf("regex quantifier too large: %d exceeds max %d", n, MaxRegexQuantifier)
			}
		}
	}
	return nil
}
