package detect

import (
	"fmt"
	"strings"
	"time"

	"github.com/Cyberappy/Hayabusa-setup/core"
)

// CompiledRule is a rule with its detection block fully compiled: selectors
// turned into clause matchers, the condition expression parsed into a tree,
// and any aggregation clause extracted. Compilation happens once at load
// time; a CompiledRule is immutable and shared across workers.
type CompiledRule struct {
	Rule        *core.Rule
	Selectors   map[string]*Selector
	Condition   condNode
	Aggregation *AggregationClause
}

// CompileRule validates and compiles a parsed rule. Any error here rejects
// the rule from the active set without aborting the load.
func CompileRule(rule *core.Rule) (*CompiledRule, error) {
	selectors := make(map[string]*Selector)
	var condExpr string
	var timeframe time.Duration

	for name, body := range rule.Detection {
		switch name {
		case "condition":
			s, ok := core.AsString(body)
			if !ok {
				return nil, fmt.Errorf("rule %s: condition must be a string", rule.Path)
			}
			condExpr = strings.TrimSpace(s)
		case "timeframe":
			s, ok := core.AsString(body)
			if !ok {
				return nil, fmt.Errorf("rule %s: timeframe must be a string", rule.Path)
			}
			d, err := parseTimeframe(s)
			if err != nil {
				return nil, fmt.Errorf("rule %s: %w", rule.Path, err)
			}
			timeframe = d
		default:
			if reservedSelectorName(name) {
				return nil, fmt.Errorf("rule %s: selector name %q collides with a condition keyword", rule.Path, name)
			}
			sel, err := CompileSelector(name, body)
			if err != nil {
				return nil, fmt.Errorf("rule %s: %w", rule.Path, err)
			}
			selectors[name] = sel
		}
	}

	if len(selectors) == 0 {
		return nil, fmt.Errorf("rule %s declares no selectors", rule.Path)
	}
	if condExpr == "" {
		if len(selectors) != 1 {
			return nil, fmt.Errorf("rule %s has multiple selectors but no condition", rule.Path)
		}
		for name := range selectors {
			condExpr = name
		}
	}

	boolExpr := condExpr
	var agg *AggregationClause
	if boolPart, aggPart, piped := strings.Cut(condExpr, "|"); piped {
		boolExpr = strings.TrimSpace(boolPart)
		clause, err := parseAggregation(condExpr, aggPart, timeframe)
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", rule.Path, err)
		}
		agg = clause
	} else if timeframe > 0 {
		return nil, fmt.Errorf("rule %s declares a timeframe without an aggregation clause", rule.Path)
	}

	tree, err := parseCondition(boolExpr, selectors)
	if err != nil {
		return nil, fmt.Errorf("rule %s: %w", rule.Path, err)
	}

	return &CompiledRule{
		Rule:        rule,
		Selectors:   selectors,
		Condition:   tree,
		Aggregation: agg,
	}, nil
}

// reservedSelectorName reports whether name is a condition-grammar keyword.
// A selector so named could never be referenced: the parser always consumes
// the token as an operator or "of"-quantifier instead.
func reservedSelectorName(name string) bool {
	switch name {
	case "and", "or", "not", "all", "of", "them", "1":
		return true
	}
	return false
}

// Matches evaluates the rule's selector condition against one event. For
// aggregation rules this is only the selector side; the caller feeds matches
// into the Tracker for the count decision.
func (r *CompiledRule) Matches(ev *core.Event, res *FieldResolver) bool {
	ctx := &evalContext{
		ev:   ev,
		res:  res,
		sels: r.Selectors,
		memo: make(map[string]bool, len(r.Selectors)),
	}
	return r.Condition.eval(ctx)
}
