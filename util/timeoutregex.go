package util

import (
	"fmt"
	"time"

	"github.com/dlclark/regexp2"
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultMatchTimeout bounds a single regex match. Rule regexes run once
// per candidate event, potentially millions of times per pass, so a stuck
// match must fail fast instead of stalling a worker.
const DefaultMatchTimeout = 100 * time.Millisecond

// timeoutRegexCacheSize bounds the compiled-pattern cache. Rule sets carry
// a few hundred distinct regexes; 1024 leaves headroom without letting an
// adversarial rule set grow the cache unboundedly.
const timeoutRegexCacheSize = 1024

// TimeoutRegex wraps a compiled regexp2 pattern whose matches are bounded
// by a wall-clock timeout. regexp2 backtracks (unlike the stdlib RE2
// engine) and therefore supports the lookarounds and backreferences that
// appear in imported rule sets, at the cost of needing the timeout guard.
type TimeoutRegex struct {
	re *regexp2.Regexp
}

var timeoutRegexCache, _ = lru.New[string, *TimeoutRegex](timeoutRegexCacheSize)

// CompileTimeoutRegex validates and compiles a pattern with the default
// match timeout. Compiled patterns are cached; rules sharing a pattern
// share the compiled form.
func CompileTimeoutRegex(pattern string) (*TimeoutRegex, error) {
	if cached, ok := timeoutRegexCache.Get(pattern); ok {
		return cached, nil
	}
	if err := ValidateRegexPattern(pattern); err != nil {
		return nil, err
	}
	re, err := regexp2.Compile(pattern, regexp2.RE2)
	if err != nil {
		// Retry without RE2 compatibility so backtracking-only constructs
		// (lookarounds, backreferences) still compile.
		re, err = regexp2.Compile(pattern, 0)
		if err != nil {
			return nil, fmt.Errorf("failed to compile regex %q: %w", pattern, err)
		}
	}
	re.MatchTimeout = DefaultMatchTimeout
	tr := &TimeoutRegex{re: re}
	timeoutRegexCache.Add(pattern, tr)
	return tr, nil
}

// MatchString reports whether the pattern matches anywhere in s. A timed-out
// or failed match reports false: a pathological pattern suppresses its own
// rule, never the run.
func (t *TimeoutRegex) MatchString(s string) bool {
	ok, err := t.re.MatchString(s)
	if err != nil {
		return false
	}
	return ok
}
