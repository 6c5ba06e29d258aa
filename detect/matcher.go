package detect

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Cyberappy/Hayabusa-setup/core"
	"github.com/Cyberappy/Hayabusa-setup/util"
)

// Clause is one compiled field-match condition from a selector. All pattern
// compilation happens here at load time so the per-event path only runs
// precompiled matchers.
type Clause struct {
	// Field is the rule-declared field name, stripped of modifiers.
	Field string

	match func(ev *core.Event, res *FieldResolver) bool
}

// Matches evaluates the clause against one event.
func (c *Clause) Matches(ev *core.Event, res *FieldResolver) bool {
	return c.match(ev, res)
}

type clauseModifiers struct {
	contains    bool
	startswith  bool
	endswith    bool
	regex       bool
	cased       bool
	all         bool
	equalsfield bool
	compare     string // gt, gte, lt, lte
}

// CompileClause parses a "Field|modifier|..." key and its expected value into
// a Clause. Invalid modifiers and invalid regex patterns are load-time
// errors; the caller rejects the whole rule.
func CompileClause(fieldSpec string, expected any) (*Clause, error) {
	parts := strings.Split(fieldSpec, "|")
	field := strings.TrimSpace(parts[0])
	if field == "" {
		return nil, fmt.Errorf("empty field name in clause %q", fieldSpec)
	}

	var mods clauseModifiers
	for _, m := range parts[1:] {
		switch strings.ToLower(strings.TrimSpace(m)) {
		case "contains":
			mods.contains = true
		case "startswith":
			mods.startswith = true
		case "endswith":
			mods.endswith = true
		case "re":
			mods.regex = true
		case "cased":
			mods.cased = true
		case "all":
			mods.all = true
		case "equalsfield":
			mods.equalsfield = true
		case "gt", "gte", "lt", "lte":
			if mods.compare != "" {
				return nil, fmt.Errorf("conflicting comparison modifiers in clause %q", fieldSpec)
			}
			mods.compare = strings.ToLower(strings.TrimSpace(m))
		default:
			return nil, fmt.Errorf("unknown modifier %q in clause %q", m, fieldSpec)
		}
	}

	if mods.equalsfield {
		other, ok := expected.(string)
		if !ok || strings.TrimSpace(other) == "" {
			return nil, fmt.Errorf("equalsfield clause %q needs a field name value", fieldSpec)
		}
		return &Clause{Field: field, match: equalsFieldMatcher(field, strings.TrimSpace(other))}, nil
	}

	values, isList := core.AsList(expected)
	if !isList {
		values = []any{expected}
	}

	matchers := make([]func(any, bool) bool, 0, len(values))
	for _, v := range values {
		m, err := compileValueMatcher(v, mods)
		if err != nil {
			return nil, fmt.Errorf("clause %q: %w", fieldSpec, err)
		}
		matchers = append(matchers, m)
	}

	requireAll := mods.all
	return &Clause{Field: field, match: func(ev *core.Event, res *FieldResolver) bool {
		v, ok := res.Resolve(ev, field)
		for _, m := range matchers {
			matched := m(v, ok)
			if requireAll && !matched {
				return false
			}
			if !requireAll && matched {
				return true
			}
		}
		return requireAll
	}}, nil
}

// compileValueMatcher builds the predicate for one expected value. The
// returned function takes the resolved value and whether resolution
// succeeded; an unresolved field never satisfies a positive match.
func compileValueMatcher(expected any, mods clauseModifiers) (func(any, bool) bool, error) {
	if expected == nil {
		// null matches absence of the field.
		return func(v any, ok bool) bool { return !ok || v == nil }, nil
	}

	if mods.compare != "" {
		threshold, ok := core.AsFloat(expected)
		if !ok {
			return nil, fmt.Errorf("comparison value %v is not numeric", expected)
		}
		op := mods.compare
		return func(v any, ok bool) bool {
			if !ok {
				return false
			}
			n, numeric := core.AsFloat(v)
			if !numeric {
				return false
			}
			switch op {
			case "gt":
				return n > threshold
			case "gte":
				return n >= threshold
			case "lt":
				return n < threshold
			default:
				return n <= threshold
			}
		}, nil
	}

	if mods.regex {
		pattern := core.ToString(expected)
		if err := util.ValidateRegexPattern(pattern); err != nil {
			return nil, err
		}
		re, err := util.CompileTimeoutRegex(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid regex %q: %w", pattern, err)
		}
		return func(v any, ok bool) bool {
			return ok && re.MatchString(core.ToString(v))
		}, nil
	}

	if mods.contains || mods.startswith || mods.endswith {
		want := core.ToString(expected)
		caseSensitive := mods.cased
		if !caseSensitive {
			want = strings.ToLower(want)
		}
		contains, startswith := mods.contains, mods.startswith
		return func(v any, ok bool) bool {
			if !ok {
				return false
			}
			got := core.ToString(v)
			if !caseSensitive {
				got = strings.ToLower(got)
			}
			switch {
			case contains:
				return strings.Contains(got, want)
			case startswith:
				return strings.HasPrefix(got, want)
			default:
				return strings.HasSuffix(got, want)
			}
		}, nil
	}

	if s, isString := expected.(string); isString && util.HasWildcard(s) {
		re, err := util.CompileWildcard(s, !mods.cased)
		if err != nil {
			return nil, fmt.Errorf("invalid wildcard %q: %w", s, err)
		}
		return func(v any, ok bool) bool {
			return ok && re.MatchString(core.ToString(v))
		}, nil
	}

	// Plain equality. Numbers compare numerically so 4625 matches "4625";
	// strings compare exactly, case-sensitive.
	return exactMatcher(expected), nil
}

func exactMatcher(expected any) func(any, bool) bool {
	wantNum, wantIsNum := core.AsFloat(expected)
	wantStr := core.ToString(expected)
	return func(v any, ok bool) bool {
		if !ok || v == nil {
			return false
		}
		if wantIsNum {
			if n, numeric := core.AsFloat(v); numeric {
				return n == wantNum
			}
		}
		return core.ToString(v) == wantStr
	}
}

func equalsFieldMatcher(field, other string) func(*core.Event, *FieldResolver) bool {
	return func(ev *core.Event, res *FieldResolver) bool {
		a, aok := res.Resolve(ev, field)
		b, bok := res.Resolve(ev, other)
		if !aok || !bok || a == nil || b == nil {
			return false
		}
		return core.ToString(a) == core.ToString(b)
	}
}

// parseThreshold reads an aggregation threshold literal.
func parseThreshold(s string) (int64, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid count threshold %q: %w", s, err)
	}
	return n, nil
}
