package detect

import (
	"context"
	"regexp"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/Cyberappy/Hayabusa-setup/core"
	"github.com/Cyberappy/Hayabusa-setup/metrics"
)

// Stats tracks the run's data-reduction counters.
type Stats struct {
	EventsProcessed uint64
	ZeroMatchEvents uint64
	Detections      uint64
}

// Engine drives the full evaluation pass: each event is evaluated against
// every active rule in declaration order, aggregation rules feed the
// Tracker, and end-of-stream aggregates are flushed once the stream closes.
// The engine may evaluate events concurrently via Run; detections are still
// emitted in event-arrival order.
type Engine struct {
	rules     []*CompiledRule
	rulesByID map[string]*CompiledRule
	res       *FieldResolver
	tracker   *Tracker
	logger    *zap.SugaredLogger
	metrics   *metrics.EngineMetrics

	mu    sync.Mutex
	stats Stats
}

// NewEngine builds an engine over the post-tuning active rule set. The
// metrics argument may be nil.
func NewEngine(rules []*CompiledRule, res *FieldResolver, logger *zap.SugaredLogger, m *metrics.EngineMetrics) *Engine {
	byID := make(map[string]*CompiledRule, len(rules))
	for _, r := range rules {
		byID[r.Rule.ID] = r
	}
	return &Engine{
		rules:     rules,
		rulesByID: byID,
		res:       res,
		tracker:   NewTracker(),
		logger:    logger,
		metrics:   m,
	}
}

// Evaluate runs one event through the active rule set and returns its
// detections in rule-declaration order. Aggregation state is updated as a
// side effect, so events must be fed in arrival order.
func (e *Engine) Evaluate(ev *core.Event) []core.Detection {
	matched := e.matchRules(ev)
	return e.collect(ev, matched)
}

// matchRules is the stateless half of evaluation: the boolean condition of
// every active rule against one event. Safe to call concurrently.
func (e *Engine) matchRules(ev *core.Event) []*CompiledRule {
	var matched []*CompiledRule
	for _, rule := range e.rules {
		if ch := rule.Rule.Channel; ch != "" && !strings.EqualFold(ch, ev.Channel) {
			continue
		}
		if rule.Matches(ev, e.res) {
			matched = append(matched, rule)
		}
	}
	return matched
}

// collect is the stateful half: aggregation observation and detection
// construction. Must run in event-arrival order.
func (e *Engine) collect(ev *core.Event, matched []*CompiledRule) []core.Detection {
	e.mu.Lock()
	e.stats.EventsProcessed++
	if len(matched) == 0 {
		e.stats.ZeroMatchEvents++
	}
	e.mu.Unlock()
	if e.metrics != nil {
		e.metrics.EventsProcessed.Inc()
		if len(matched) == 0 {
			e.metrics.EventsZeroMatch.Inc()
		}
	}

	var out []core.Detection
	for _, rule := range matched {
		if rule.Aggregation != nil {
			if result := e.tracker.Observe(rule, ev, e.res); result != nil {
				out = append(out, e.aggregateDetection(rule, result, ev))
			}
			continue
		}
		out = append(out, e.eventDetection(rule, ev))
	}
	e.noteDetections(out)
	return out
}

// Flush closes the stream: end-of-stream aggregation clauses are evaluated
// across all accumulated groups and returned sorted by rule ID then group
// key.
func (e *Engine) Flush() []core.Detection {
	results := e.tracker.Flush()
	out := make([]core.Detection, 0, len(results))
	for _, r := range results {
		rule := e.rulesByID[r.RuleID]
		if rule == nil {
			continue
		}
		out = append(out, e.aggregateDetection(rule, &r, nil))
	}
	e.noteDetections(out)
	if e.metrics != nil {
		e.metrics.AggregationGroups.Set(float64(e.tracker.GroupCardinality()))
	}
	return out
}

// Stats returns a snapshot of the run counters.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats
}

// GroupCardinality exposes the tracker's current group-key count for
// operational warnings.
func (e *Engine) GroupCardinality() int {
	return e.tracker.GroupCardinality()
}

func (e *Engine) noteDetections(dets []core.Detection) {
	if len(dets) == 0 {
		return
	}
	e.mu.Lock()
	e.stats.Detections += uint64(len(dets))
	e.mu.Unlock()
	if e.metrics != nil {
		for _, d := range dets {
			e.metrics.Detections.WithLabelValues(d.Level.String()).Inc()
		}
	}
}

func (e *Engine) eventDetection(rule *CompiledRule, ev *core.Event) core.Detection {
	return core.Detection{
		RuleID:    rule.Rule.ID,
		RuleTitle: rule.Rule.Title,
		Level:     rule.Rule.EffectiveLevel,
		RecordID:  ev.RecordID,
		Timestamp: ev.Timestamp,
		Channel:   ev.Channel,
		Details:   e.renderDetails(rule.Rule.Details, ev),
		Tags:      rule.Rule.Tags,
	}
}

func (e *Engine) aggregateDetection(rule *CompiledRule, r *GroupResult, ev *core.Event) core.Detection {
	return core.Detection{
		RuleID:      rule.Rule.ID,
		RuleTitle:   rule.Rule.Title,
		Level:       rule.Rule.EffectiveLevel,
		RecordID:    r.RecordID,
		Timestamp:   r.Timestamp,
		Channel:     r.Channel,
		Details:     e.renderDetails(rule.Rule.Details, ev),
		Tags:        rule.Rule.Tags,
		GroupKey:    r.GroupKey,
		Count:       int(r.Count),
		FieldValues: r.Values,
	}
}

var placeholderRe = regexp.MustCompile(`%([A-Za-z0-9_.\-]+)%`)

// renderDetails substitutes %Field% placeholders in the rule's details
// template. Unresolved placeholders, including every placeholder when no
// triggering event is available (end-of-stream aggregates), render as "n/a".
func (e *Engine) renderDetails(template string, ev *core.Event) string {
	if template == "" {
		return ""
	}
	return placeholderRe.ReplaceAllStringFunc(template, func(token string) string {
		if ev == nil {
			return NotAvailable
		}
		field := strings.Trim(token, "%")
		if field == "Timestamp" {
			return ev.Timestamp.UTC().Format("2006-01-02 15:04:05.000")
		}
		v, ok := e.res.Resolve(ev, field)
		if !ok || v == nil {
			return NotAvailable
		}
		return core.FormatValue(v)
	})
}

// Run consumes the event stream with a bounded worker pool. Workers compute
// the stateless rule matches in parallel; a single collector applies
// aggregation observations and emits detections strictly in record order so
// output is identical to a sequential pass. Detections are sent to out,
// which Run closes when the stream and the final flush complete.
func (e *Engine) Run(ctx context.Context, events <-chan *core.Event, out chan<- core.Detection, workers int) (Stats, error) {
	defer close(out)

	pool := core.NewWorkerPool(ctx, workers, workers*2, e.logger)
	pool.Start()

	type evalResult struct {
		ev      *core.Event
		matched []*CompiledRule
	}

	// Results are re-sequenced by record arrival order through a buffered
	// per-event channel chain: each submitted job owns a result slot, and
	// the collector reads slots in submission order.
	slots := make(chan chan evalResult, workers*2)
	collectorDone := make(chan struct{})

	go func() {
		defer close(collectorDone)
		for slot := range slots {
			r := <-slot
			for _, d := range e.collect(r.ev, r.matched) {
				select {
				case out <- d:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	submitErr := func() error {
		for ev := range events {
			ev := ev
			slot := make(chan evalResult, 1)
			select {
			case slots <- slot:
			case <-ctx.Done():
				return ctx.Err()
			}
			if err := pool.Submit(func() {
				slot <- evalResult{ev: ev, matched: e.matchRules(ev)}
			}); err != nil {
				slot <- evalResult{ev: ev}
				return err
			}
		}
		return nil
	}()

	pool.Stop()
	close(slots)
	<-collectorDone

	if submitErr == nil && ctx.Err() == nil {
		for _, d := range e.Flush() {
			out <- d
		}
	}
	if submitErr != nil {
		return e.Stats(), submitErr
	}
	return e.Stats(), ctx.Err()
}
