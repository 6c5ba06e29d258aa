package detect

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// AggOp is the comparison operator of an aggregation clause.
type AggOp int

const (
	AggGT AggOp = iota
	AggGE
	AggLT
	AggLE
	AggEQ
)

func (o AggOp) String() string {
	switch o {
	case AggGT:
		return ">"
	case AggGE:
		return ">="
	case AggLT:
		return "<"
	case AggLE:
		return "<="
	default:
		return "=="
	}
}

// compare applies the operator to a running count.
func (o AggOp) compare(count, threshold int64) bool {
	switch o {
	case AggGT:
		return count > threshold
	case AggGE:
		return count >= threshold
	case AggLT:
		return count < threshold
	case AggLE:
		return count <= threshold
	default:
		return count == threshold
	}
}

// AggregationClause is the compiled "| count(field) by field OP N" suffix of
// a condition expression. CountField empty counts events; non-empty counts
// distinct values of that field. ByField empty puts every event in one
// global group. A non-zero Timeframe switches the clause to sliding-window
// evaluation at end of stream.
type AggregationClause struct {
	CountField string
	ByField    string
	Op         AggOp
	Threshold  int64
	Timeframe  time.Duration
}

// PerEventTrigger reports whether the clause fires as soon as a group's
// count crosses the threshold. Only upward comparisons without a timeframe
// can be decided mid-stream; "<" style clauses and windowed clauses are only
// meaningful once the stream is complete.
func (c *AggregationClause) PerEventTrigger() bool {
	if c.Timeframe > 0 {
		return false
	}
	switch c.Op {
	case AggGT, AggGE, AggEQ:
		return true
	default:
		return false
	}
}

var aggClauseRe = regexp.MustCompile(`^count\(\s*([^()\s]*)\s*\)(?:\s+by\s+(\S+))?\s*(>=|<=|==|>|<)\s*(\d+)$`)

// parseAggregation parses the clause text after the condition pipe.
func parseAggregation(expr, clause string, timeframe time.Duration) (*AggregationClause, error) {
	m := aggClauseRe.FindStringSubmatch(strings.TrimSpace(clause))
	if m == nil {
		return nil, &ConditionError{Expr: expr, Msg: fmt.Sprintf("invalid aggregation clause %q", clause)}
	}
	threshold, err := parseThreshold(m[4])
	if err != nil {
		return nil, &ConditionError{Expr: expr, Msg: err.Error()}
	}
	var op AggOp
	switch m[3] {
	case ">":
		op = AggGT
	case ">=":
		op = AggGE
	case "<":
		op = AggLT
	case "<=":
		op = AggLE
	case "==":
		op = AggEQ
	}
	return &AggregationClause{
		CountField: m[1],
		ByField:    m[2],
		Op:         op,
		Threshold:  threshold,
		Timeframe:  timeframe,
	}, nil
}

var timeframeRe = regexp.MustCompile(`^(\d+)\s*(s|m|h|d)$`)

// parseTimeframe reads the rule's timeframe declaration ("15m", "2h", "1d").
func parseTimeframe(s string) (time.Duration, error) {
	m := timeframeRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, fmt.Errorf("invalid timeframe %q", s)
	}
	n, err := parseThreshold(m[1])
	if err != nil {
		return 0, err
	}
	switch m[2] {
	case "s":
		return time.Duration(n) * time.Second, nil
	case "m":
		return time.Duration(n) * time.Minute, nil
	case "h":
		return time.Duration(n) * time.Hour, nil
	default:
		return time.Duration(n) * 24 * time.Hour, nil
	}
}
