package detect

import (
	"fmt"

	"github.com/Cyberappy/Hayabusa-setup/core"
)

// Selector is one named block inside a rule's detection section. Its clauses
// combine by AND. A selector written as a list of field maps matches when any
// one map's clauses all match.
type Selector struct {
	Name   string
	groups [][]*Clause
}

// CompileSelector turns a raw selector body into its compiled form.
func CompileSelector(name string, body any) (*Selector, error) {
	sel := &Selector{Name: name}

	appendGroup := func(fields map[string]any) error {
		group := make([]*Clause, 0, len(fields))
		for fieldSpec, expected := range fields {
			clause, err := CompileClause(fieldSpec, expected)
			if err != nil {
				return fmt.Errorf("selector %s: %w", name, err)
			}
			group = append(group, clause)
		}
		sel.groups = append(sel.groups, group)
		return nil
	}

	if fields, ok := core.AsMap(body); ok {
		if err := appendGroup(fields); err != nil {
			return nil, err
		}
		return sel, nil
	}
	if items, ok := core.AsList(body); ok {
		for _, item := range items {
			fields, ok := core.AsMap(item)
			if !ok {
				return nil, fmt.Errorf("selector %s: list items must be field maps", name)
			}
			if err := appendGroup(fields); err != nil {
				return nil, err
			}
		}
		if len(sel.groups) == 0 {
			return nil, fmt.Errorf("selector %s is empty", name)
		}
		return sel, nil
	}
	return nil, fmt.Errorf("selector %s has unsupported shape %T", name, body)
}

// Matches evaluates the selector against one event.
func (s *Selector) Matches(ev *core.Event, res *FieldResolver) bool {
	for _, group := range s.groups {
		matched := true
		for _, clause := range group {
			if !clause.Matches(ev, res) {
				matched = false
				break
			}
		}
		if matched {
			return true
		}
	}
	return false
}
