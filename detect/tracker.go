package detect

import (
	"sort"
	"sync"
	"time"

	"github.com/Cyberappy/Hayabusa-setup/core"
)

// GroupResult is one fired aggregation: the group that crossed its
// threshold, the count that crossed it, and the values that were counted.
type GroupResult struct {
	RuleID    string
	GroupKey  string
	Count     int64
	Timestamp time.Time
	// RecordID and Channel come from the firing event for per-event
	// triggers, and from the last event observed in the group for
	// end-of-stream clauses.
	RecordID uint64
	Channel  string
	// Values holds the distinct counted field values, sorted, when the
	// clause counts a field. Empty for plain count().
	Values []string
}

// globalGroupKey groups every event together when no "by" field is declared.
const globalGroupKey = "_"

type aggEntry struct {
	ts    time.Time
	rec   uint64
	value string
}

type groupState struct {
	distinct    map[string]struct{}
	count       int64
	entries     []aggEntry
	fired       bool
	lastSeen    time.Time
	lastRecord  uint64
	lastChannel string
}

type ruleAggState struct {
	clause *AggregationClause
	groups map[string]*groupState
}

// Tracker accumulates aggregation state across the event stream. It is the
// only mutable shared state during a run; all access is serialized through
// its mutex. Memory grows with the number of distinct group keys, which is
// accepted for high-cardinality grouping fields and surfaced through
// GroupCardinality rather than mitigated.
type Tracker struct {
	mu    sync.Mutex
	rules map[string]*ruleAggState
}

// NewTracker returns an empty tracker scoped to one run.
func NewTracker() *Tracker {
	return &Tracker{rules: make(map[string]*ruleAggState)}
}

// Observe records one event that satisfied a rule's selector condition.
// For per-event-trigger clauses it returns a GroupResult the first time the
// group's count crosses the threshold, and nil on every later event for that
// group. End-of-stream clauses always return nil here and report via Flush.
func (t *Tracker) Observe(rule *CompiledRule, ev *core.Event, res *FieldResolver) *GroupResult {
	clause := rule.Aggregation
	if clause == nil {
		return nil
	}

	key := globalGroupKey
	if clause.ByField != "" {
		key = res.ResolveString(ev, clause.ByField)
	}
	var counted string
	if clause.CountField != "" {
		counted = res.ResolveString(ev, clause.CountField)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	state := t.rules[rule.Rule.ID]
	if state == nil {
		state = &ruleAggState{clause: clause, groups: make(map[string]*groupState)}
		t.rules[rule.Rule.ID] = state
	}
	group := state.groups[key]
	if group == nil {
		group = &groupState{distinct: make(map[string]struct{})}
		state.groups[key] = group
	}
	group.lastSeen = ev.Timestamp
	group.lastRecord = ev.RecordID
	group.lastChannel = ev.Channel

	if !clause.PerEventTrigger() {
		group.entries = append(group.entries, aggEntry{ts: ev.Timestamp, rec: ev.RecordID, value: counted})
		return nil
	}

	if clause.CountField != "" {
		group.distinct[counted] = struct{}{}
		group.count = int64(len(group.distinct))
	} else {
		group.count++
	}
	if group.fired || !clause.Op.compare(group.count, clause.Threshold) {
		return nil
	}
	group.fired = true
	return &GroupResult{
		RuleID:    rule.Rule.ID,
		GroupKey:  key,
		Count:     group.count,
		Timestamp: ev.Timestamp,
		RecordID:  ev.RecordID,
		Channel:   ev.Channel,
		Values:    sortedKeys(group.distinct),
	}
}

// Flush evaluates end-of-stream clauses over every accumulated group and
// returns the fired results. Iteration is sorted by rule ID then group key
// so output is reproducible across runs.
func (t *Tracker) Flush() []GroupResult {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []GroupResult
	for _, ruleID := range sortedStateKeys(t.rules) {
		state := t.rules[ruleID]
		if state.clause.PerEventTrigger() {
			continue
		}
		groupKeys := make([]string, 0, len(state.groups))
		for k := range state.groups {
			groupKeys = append(groupKeys, k)
		}
		sort.Strings(groupKeys)
		for _, key := range groupKeys {
			group := state.groups[key]
			if state.clause.Timeframe > 0 {
				out = append(out, windowedResults(ruleID, key, state.clause, group)...)
				continue
			}
			count, values := totalCount(state.clause, group)
			if state.clause.Op.compare(count, state.clause.Threshold) {
				out = append(out, GroupResult{
					RuleID:    ruleID,
					GroupKey:  key,
					Count:     count,
					Timestamp: group.lastSeen,
					RecordID:  group.lastRecord,
					Channel:   group.lastChannel,
					Values:    values,
				})
			}
		}
	}
	return out
}

// GroupCardinality reports the total number of distinct group keys held,
// across all rules. Exposed as an operational gauge for high-cardinality
// grouping fields.
func (t *Tracker) GroupCardinality() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, state := range t.rules {
		n += len(state.groups)
	}
	return n
}

func totalCount(clause *AggregationClause, group *groupState) (int64, []string) {
	if clause.CountField == "" {
		return int64(len(group.entries)), nil
	}
	distinct := make(map[string]struct{}, len(group.entries))
	for _, e := range group.entries {
		distinct[e.value] = struct{}{}
	}
	return int64(len(distinct)), sortedKeys(distinct)
}

// windowedResults slides a timeframe-long window over the group's entries in
// timestamp order. When the window satisfies the comparison, a result is
// emitted with the window's start time and the scan continues past the
// window end; otherwise the window start advances by one entry.
func windowedResults(ruleID, key string, clause *AggregationClause, group *groupState) []GroupResult {
	entries := append([]aggEntry(nil), group.entries...)
	sort.Slice(entries, func(i, j int) bool { return entries[i].ts.Before(entries[j].ts) })

	var out []GroupResult
	s := 0
	for s < len(entries) {
		windowEnd := entries[s].ts.Add(clause.Timeframe)
		e := s
		for e < len(entries) && !entries[e].ts.After(windowEnd) {
			e++
		}
		var count int64
		var values []string
		if clause.CountField == "" {
			count = int64(e - s)
		} else {
			distinct := make(map[string]struct{})
			for i := s; i < e; i++ {
				distinct[entries[i].value] = struct{}{}
			}
			count = int64(len(distinct))
			values = sortedKeys(distinct)
		}
		if clause.Op.compare(count, clause.Threshold) {
			out = append(out, GroupResult{
				RuleID:    ruleID,
				GroupKey:  key,
				Count:     count,
				Timestamp: entries[s].ts,
				RecordID:  entries[e-1].rec,
				Channel:   group.lastChannel,
				Values:    values,
			})
			s = e
			continue
		}
		s++
	}
	return out
}

func sortedKeys(m map[string]struct{}) []string {
	if len(m) == 0 {
		return nil
	}
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func sortedStateKeys(m map[string]*ruleAggState) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
