package util

import (
	"regexp"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// wildcardCacheSize bounds the compiled glob cache; distinct wildcard
// patterns across a loaded rule set number in the low thousands.
const wildcardCacheSize = 4096

var wildcardCache, _ = lru.New[string, *regexp.Regexp](wildcardCacheSize)

// HasWildcard reports whether the expected value uses glob syntax. A
// backslash escapes the next character, so `\*` is a literal asterisk.
func HasWildcard(pattern string) bool {
	escaped := false
	for _, r := range pattern {
		if escaped {
			escaped = false
			continue
		}
		switch r {
		case '\\':
			escaped = true
		case '*', '?':
			return true
		}
	}
	return false
}

// CompileWildcard turns a glob pattern (`*` any run, `?` any one character)
// into an anchored regular expression. caseInsensitive adds (?i). Compiled
// once per pattern at rule-load time and cached.
func CompileWildcard(pattern string, caseInsensitive bool) (*regexp.Regexp, error) {
	key := pattern
	if caseInsensitive {
		key = "(?i)" + pattern
	}
	if re, ok := wildcardCache.Get(key); ok {
		return re, nil
	}

	var b strings.Builder
	if caseInsensitive {
		b.WriteString("(?i)")
	}
	b.WriteString("^")
	escaped := false
	for _, r := range pattern {
		if escaped {
			b.WriteString(regexp.QuoteMeta(string(r)))
			escaped = false
			continue
		}
		switch r {
		case '\\':
			escaped = true
		case '*':
			b.WriteString(`(?s:.*)`)
		case '?':
			b.WriteString(`(?s:.)`)
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	if escaped {
		// Trailing backslash matches itself.
		b.WriteString(regexp.QuoteMeta(`\`))
	}
	b.WriteString("$")

	re, err := regexp.Compile(b.String())
	if err != nil {
		return nil, err
	}
	wildcardCache.Add(key, re)
	return re, nil
}
