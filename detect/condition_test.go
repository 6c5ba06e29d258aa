package detect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Cyberappy/Hayabusa-setup/core"
)

func compileTestRule(t *testing.T, detection map[string]any) *CompiledRule {
	t.Helper()
	rule := &core.Rule{ID: "test", Title: "test", Detection: detection}
	compiled, err := CompileRule(rule)
	require.NoError(t, err)
	return compiled
}

func TestConditionOperators(t *testing.T) {
	compiled := compileTestRule(t, map[string]any{
		"sel_a":     map[string]any{"EventID": 4625},
		"sel_b":     map[string]any{"LogonType": 3},
		"filter":    map[string]any{"TargetUserName": "SYSTEM"},
		"condition": "(sel_a or sel_b) and not filter",
	})
	res := NewFieldResolver(nil)

	tests := []struct {
		name   string
		fields map[string]any
		want   bool
	}{
		{"a matches", map[string]any{"EventID": 4625, "TargetUserName": "admin"}, true},
		{"b matches", map[string]any{"LogonType": 3}, true},
		{"filtered out", map[string]any{"EventID": 4625, "TargetUserName": "SYSTEM"}, false},
		{"nothing matches", map[string]any{"EventID": 1}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, compiled.Matches(testEvent(tt.fields), res))
		})
	}
}

func TestConditionOfSugar(t *testing.T) {
	detection := map[string]any{
		"selection_cmd":  map[string]any{"Image|endswith": "\\cmd.exe"},
		"selection_ps":   map[string]any{"Image|endswith": "\\powershell.exe"},
		"selection_wmic": map[string]any{"Image|endswith": "\\wmic.exe"},
	}
	res := NewFieldResolver(nil)

	oneOf := compileTestRule(t, withCondition(detection, "1 of selection_*"))
	allOf := compileTestRule(t, withCondition(detection, "all of selection_*"))
	allOfThem := compileTestRule(t, withCondition(detection, "all of them"))

	cmdOnly := testEvent(map[string]any{"Image": "C:\\Windows\\System32\\cmd.exe"})
	assert.True(t, oneOf.Matches(cmdOnly, res))
	assert.False(t, allOf.Matches(cmdOnly, res))
	assert.False(t, allOfThem.Matches(cmdOnly, res))
}

func withCondition(detection map[string]any, cond string) map[string]any {
	out := make(map[string]any, len(detection)+1)
	for k, v := range detection {
		out[k] = v
	}
	out["condition"] = cond
	return out
}

func TestConditionParseErrors(t *testing.T) {
	selectors := map[string]*Selector{"selection": {Name: "selection"}}

	tests := []struct {
		name string
		expr string
	}{
		{"undeclared selector", "selection and ghost"},
		{"empty", "   "},
		{"dangling operator", "selection and"},
		{"unbalanced paren", "(selection"},
		{"leading operator", "or selection"},
		{"no selectors match sugar", "1 of missing_*"},
		{"trailing token", "selection selection"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseCondition(tt.expr, selectors)
			require.Error(t, err)
			var ce *ConditionError
			assert.ErrorAs(t, err, &ce)
		})
	}
}

func TestCompileRuleImplicitCondition(t *testing.T) {
	compiled := compileTestRule(t, map[string]any{
		"selection": map[string]any{"EventID": 7045},
	})
	res := NewFieldResolver(nil)
	assert.True(t, compiled.Matches(testEvent(map[string]any{"EventID": 7045}), res))
}

func TestCompileRuleErrors(t *testing.T) {
	cases := []struct {
		name      string
		detection map[string]any
	}{
		{"no selectors", map[string]any{"condition": "selection"}},
		{"multiple selectors without condition", map[string]any{"a": map[string]any{"X": 1}, "b": map[string]any{"Y": 2}}},
		{"non-string condition", map[string]any{"selection": map[string]any{"X": 1}, "condition": 42}},
		{"bad aggregation", map[string]any{"selection": map[string]any{"X": 1}, "condition": "selection | bogus"}},
		{"timeframe without aggregation", map[string]any{"selection": map[string]any{"X": 1}, "condition": "selection", "timeframe": "15m"}},
		{"bad modifier", map[string]any{"selection": map[string]any{"X|bogus": 1}, "condition": "selection"}},
		{"selector named all", map[string]any{"all": map[string]any{"X": 1}, "condition": "all"}},
		{"selector named 1", map[string]any{"1": map[string]any{"X": 1}, "condition": "1"}},
		{"selector named not", map[string]any{"not": map[string]any{"X": 1}, "condition": "not"}},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			rule := &core.Rule{ID: "r", Title: "r", Detection: tt.detection}
			_, err := CompileRule(rule)
			assert.Error(t, err)
		})
	}
}

func TestSelectorListOfMaps(t *testing.T) {
	compiled := compileTestRule(t, map[string]any{
		"selection": []any{
			map[string]any{"EventID": 4624, "LogonType": 10},
			map[string]any{"EventID": 4625},
		},
		"condition": "selection",
	})
	res := NewFieldResolver(nil)

	assert.True(t, compiled.Matches(testEvent(map[string]any{"EventID": 4625}), res))
	assert.True(t, compiled.Matches(testEvent(map[string]any{"EventID": 4624, "LogonType": 10}), res))
	assert.False(t, compiled.Matches(testEvent(map[string]any{"EventID": 4624, "LogonType": 3}), res))
}

func TestConditionDeterminism(t *testing.T) {
	compiled := compileTestRule(t, map[string]any{
		"selection": map[string]any{"EventID": 4625, "Status|contains": "0xc000006d"},
		"condition": "selection",
	})
	res := NewFieldResolver(nil)
	ev := testEvent(map[string]any{"EventID": 4625, "Status": "0xC000006D logon failure"})

	first := compiled.Matches(ev, res)
	for i := 0; i < 100; i++ {
		assert.Equal(t, first, compiled.Matches(ev, res))
	}
}
