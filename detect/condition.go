package detect

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Cyberappy/Hayabusa-setup/core"
)

// ConditionError is a load-time condition parse failure. Rules carrying one
// are rejected from the active set; the load continues.
type ConditionError struct {
	Expr string
	Pos  int
	Msg  string
}

func (e *ConditionError) Error() string {
	return fmt.Sprintf("condition %q: %s (token %d)", e.Expr, e.Msg, e.Pos)
}

// condNode is one node of the parsed condition tree.
type condNode interface {
	eval(ctx *evalContext) bool
}

// evalContext carries per-event evaluation state. Selector results are
// memoized so a selector referenced twice in one expression is evaluated
// once.
type evalContext struct {
	ev   *core.Event
	res  *FieldResolver
	sels map[string]*Selector
	memo map[string]bool
}

type selectorRef struct{ name string }

func (n selectorRef) eval(ctx *evalContext) bool {
	if v, ok := ctx.memo[n.name]; ok {
		return v
	}
	v := ctx.sels[n.name].Matches(ctx.ev, ctx.res)
	ctx.memo[n.name] = v
	return v
}

type andNode struct{ children []condNode }

func (n andNode) eval(ctx *evalContext) bool {
	for _, c := range n.children {
		if !c.eval(ctx) {
			return false
		}
	}
	return true
}

type orNode struct{ children []condNode }

func (n orNode) eval(ctx *evalContext) bool {
	for _, c := range n.children {
		if c.eval(ctx) {
			return true
		}
	}
	return false
}

type notNode struct{ child condNode }

func (n notNode) eval(ctx *evalContext) bool { return !n.child.eval(ctx) }

// tokenize splits a condition expression into parser tokens. Parens are
// their own tokens regardless of surrounding whitespace.
func tokenize(expr string) []string {
	replaced := strings.NewReplacer("(", " ( ", ")", " ) ").Replace(expr)
	return strings.Fields(replaced)
}

type condParser struct {
	expr      string
	tokens    []string
	pos       int
	selectors map[string]*Selector
}

// parseCondition parses the boolean part of a condition expression against
// the rule's declared selector names. For aggregation rules the caller
// strips the pipe clause first; this function only sees the selector side.
func parseCondition(expr string, selectors map[string]*Selector) (condNode, error) {
	p := &condParser{expr: expr, tokens: tokenize(expr), selectors: selectors}
	if len(p.tokens) == 0 {
		return nil, &ConditionError{Expr: expr, Pos: 0, Msg: "empty condition"}
	}
	node, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.pos != len(p.tokens) {
		return nil, &ConditionError{Expr: expr, Pos: p.pos, Msg: fmt.Sprintf("unexpected token %q", p.tokens[p.pos])}
	}
	return node, nil
}

func (p *condParser) parseOr() (condNode, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	children := []condNode{left}
	for p.peek() == "or" {
		p.pos++
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		children = append(children, right)
	}
	if len(children) == 1 {
		return left, nil
	}
	return orNode{children: children}, nil
}

func (p *condParser) parseAnd() (condNode, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	children := []condNode{left}
	for p.peek() == "and" {
		p.pos++
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		children = append(children, right)
	}
	if len(children) == 1 {
		return left, nil
	}
	return andNode{children: children}, nil
}

func (p *condParser) parseNot() (condNode, error) {
	if p.peek() == "not" {
		p.pos++
		child, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return notNode{child: child}, nil
	}
	return p.parsePrimary()
}

func (p *condParser) parsePrimary() (condNode, error) {
	tok := p.peek()
	switch tok {
	case "":
		return nil, &ConditionError{Expr: p.expr, Pos: p.pos, Msg: "unexpected end of expression"}
	case "(":
		p.pos++
		node, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.peek() != ")" {
			return nil, &ConditionError{Expr: p.expr, Pos: p.pos, Msg: "missing closing parenthesis"}
		}
		p.pos++
		return node, nil
	case ")", "and", "or":
		return nil, &ConditionError{Expr: p.expr, Pos: p.pos, Msg: fmt.Sprintf("unexpected token %q", tok)}
	case "all", "1":
		return p.parseOfSugar(tok)
	}
	p.pos++
	if _, ok := p.selectors[tok]; !ok {
		return nil, &ConditionError{Expr: p.expr, Pos: p.pos - 1, Msg: fmt.Sprintf("undeclared selector %q", tok)}
	}
	return selectorRef{name: tok}, nil
}

// parseOfSugar expands "all of X*" / "1 of X*" / "... of them" into an
// explicit AND/OR over the matching selector names, sorted for determinism.
func (p *condParser) parseOfSugar(quant string) (condNode, error) {
	p.pos++
	if p.peek() != "of" {
		return nil, &ConditionError{Expr: p.expr, Pos: p.pos, Msg: fmt.Sprintf("expected \"of\" after %q", quant)}
	}
	p.pos++
	pattern := p.peek()
	if pattern == "" {
		return nil, &ConditionError{Expr: p.expr, Pos: p.pos, Msg: "expected selector pattern after \"of\""}
	}
	p.pos++

	names := p.matchSelectorNames(pattern)
	if len(names) == 0 {
		return nil, &ConditionError{Expr: p.expr, Pos: p.pos - 1, Msg: fmt.Sprintf("no selectors match %q", pattern)}
	}
	children := make([]condNode, 0, len(names))
	for _, name := range names {
		children = append(children, selectorRef{name: name})
	}
	if quant == "all" {
		return andNode{children: children}, nil
	}
	return orNode{children: children}, nil
}

func (p *condParser) matchSelectorNames(pattern string) []string {
	var names []string
	for name := range p.selectors {
		if pattern == "them" ||
			(strings.HasSuffix(pattern, "*") && strings.HasPrefix(name, strings.TrimSuffix(pattern, "*"))) ||
			name == pattern {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func (p *condParser) peek() string {
	if p.pos >= len(p.tokens) {
		return ""
	}
	return p.tokens[p.pos]
}
