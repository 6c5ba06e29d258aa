package detect

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Cyberappy/Hayabusa-setup/core"
)

func engineRule(t *testing.T, id, title, details string, detection map[string]any) *CompiledRule {
	t.Helper()
	rule := &core.Rule{ID: id, Title: title, Details: details, LevelRaw: "high", Detection: detection}
	rule.Level = core.ParseLevel(rule.LevelRaw)
	rule.EffectiveLevel = rule.Level
	compiled, err := CompileRule(rule)
	require.NoError(t, err)
	return compiled
}

func streamEvent(rec uint64, fields map[string]any) *core.Event {
	return &core.Event{
		RecordID:  rec,
		Timestamp: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(rec) * time.Second),
		Channel:   "Security",
		Fields:    fields,
	}
}

func TestEngineSingleMatchInStream(t *testing.T) {
	rule := engineRule(t, "r1", "Failed logon", "", map[string]any{
		"selector1": map[string]any{"EventID": 4625},
		"condition": "selector1",
	})
	engine := NewEngine([]*CompiledRule{rule}, NewFieldResolver(nil), zap.NewNop().Sugar(), nil)

	var detections []core.Detection
	for _, ev := range []*core.Event{
		streamEvent(1, map[string]any{"EventID": 4624}),
		streamEvent(2, map[string]any{"EventID": 4625}),
		streamEvent(3, map[string]any{"EventID": 4634}),
	} {
		detections = append(detections, engine.Evaluate(ev)...)
	}
	detections = append(detections, engine.Flush()...)

	require.Len(t, detections, 1)
	assert.Equal(t, uint64(2), detections[0].RecordID)
	assert.Equal(t, "r1", detections[0].RuleID)

	stats := engine.Stats()
	assert.Equal(t, uint64(3), stats.EventsProcessed)
	assert.Equal(t, uint64(2), stats.ZeroMatchEvents)
	assert.Equal(t, uint64(1), stats.Detections)
}

func TestEngineAggregateFiresOnFourthEvent(t *testing.T) {
	rule := engineRule(t, "r2", "Spray", "", map[string]any{
		"selection": map[string]any{"EventID": 4625},
		"condition": "selection | count() by TargetUserName > 3",
	})
	engine := NewEngine([]*CompiledRule{rule}, NewFieldResolver(nil), zap.NewNop().Sugar(), nil)

	var detections []core.Detection
	for i := 1; i <= 4; i++ {
		ev := streamEvent(uint64(i), map[string]any{"EventID": 4625, "TargetUserName": "admin"})
		dets := engine.Evaluate(ev)
		if i < 4 {
			assert.Empty(t, dets, "must not fire before the threshold is crossed")
		}
		detections = append(detections, dets...)
	}
	detections = append(detections, engine.Flush()...)

	require.Len(t, detections, 1)
	assert.Equal(t, uint64(4), detections[0].RecordID)
	assert.Equal(t, "admin", detections[0].GroupKey)
	assert.Equal(t, 4, detections[0].Count)
}

func TestEngineUnresolvedFieldRendersNA(t *testing.T) {
	rule := engineRule(t, "r3", "PS", "Cmd: %CommandLine% User: %TargetUserName%", map[string]any{
		"selection": map[string]any{"EventID": 1},
		"condition": "selection",
	})
	miss := engineRule(t, "r4", "PS contains", "", map[string]any{
		"selection": map[string]any{"CommandLine|contains": "powershell"},
		"condition": "selection",
	})
	engine := NewEngine([]*CompiledRule{rule, miss}, NewFieldResolver(nil), zap.NewNop().Sugar(), nil)

	// event without CommandLine: the contains rule must not match, and the
	// rendered detail shows "n/a", not an empty string
	dets := engine.Evaluate(streamEvent(1, map[string]any{"EventID": 1, "TargetUserName": "admin"}))
	require.Len(t, dets, 1)
	assert.Equal(t, "r3", dets[0].RuleID)
	assert.Equal(t, "Cmd: n/a User: admin", dets[0].Details)
}

func TestEngineRuleOrderWithinEvent(t *testing.T) {
	first := engineRule(t, "a-rule", "A", "", map[string]any{
		"selection": map[string]any{"EventID": 1},
		"condition": "selection",
	})
	second := engineRule(t, "b-rule", "B", "", map[string]any{
		"selection": map[string]any{"EventID": 1},
		"condition": "selection",
	})
	engine := NewEngine([]*CompiledRule{first, second}, NewFieldResolver(nil), zap.NewNop().Sugar(), nil)

	dets := engine.Evaluate(streamEvent(1, map[string]any{"EventID": 1}))
	require.Len(t, dets, 2)
	assert.Equal(t, "a-rule", dets[0].RuleID)
	assert.Equal(t, "b-rule", dets[1].RuleID)
}

func TestEngineChannelApplicability(t *testing.T) {
	rule := engineRule(t, "r5", "Sysmon only", "", map[string]any{
		"selection": map[string]any{"EventID": 1},
		"condition": "selection",
	})
	rule.Rule.Channel = "Microsoft-Windows-Sysmon/Operational"
	engine := NewEngine([]*CompiledRule{rule}, NewFieldResolver(nil), zap.NewNop().Sugar(), nil)

	assert.Empty(t, engine.Evaluate(streamEvent(1, map[string]any{"EventID": 1})))

	ev := streamEvent(2, map[string]any{"EventID": 1})
	ev.Channel = "Microsoft-Windows-Sysmon/Operational"
	assert.Len(t, engine.Evaluate(ev), 1)
}

func TestEngineEndOfStreamAggregateDetails(t *testing.T) {
	rule := engineRule(t, "r6", "Rare logon", "user: %TargetUserName%", map[string]any{
		"selection": map[string]any{"EventID": 4624},
		"condition": "selection | count() by TargetUserName <= 1",
	})
	engine := NewEngine([]*CompiledRule{rule}, NewFieldResolver(nil), zap.NewNop().Sugar(), nil)

	for i, user := range []string{"admin", "admin", "ghost"} {
		engine.Evaluate(streamEvent(uint64(i+1), map[string]any{"EventID": 4624, "TargetUserName": user}))
	}
	dets := engine.Flush()

	require.Len(t, dets, 1)
	assert.Equal(t, "ghost", dets[0].GroupKey)
	assert.Equal(t, 1, dets[0].Count)
	// no single triggering event at flush time, placeholders degrade to n/a
	assert.Equal(t, "user: n/a", dets[0].Details)
	assert.Equal(t, uint64(3), dets[0].RecordID)
}

func TestEngineRunMatchesSequentialOutput(t *testing.T) {
	rules := []*CompiledRule{
		engineRule(t, "r7", "Logon", "", map[string]any{
			"selection": map[string]any{"EventID": 4624},
			"condition": "selection",
		}),
		engineRule(t, "r8", "Spray", "", map[string]any{
			"selection": map[string]any{"EventID": 4625},
			"condition": "selection | count() by TargetUserName >= 2",
		}),
	}

	makeEvents := func() []*core.Event {
		var evs []*core.Event
		for i := 1; i <= 40; i++ {
			fields := map[string]any{"EventID": 4624}
			if i%3 == 0 {
				fields = map[string]any{"EventID": 4625, "TargetUserName": "admin"}
			}
			evs = append(evs, streamEvent(uint64(i), fields))
		}
		return evs
	}

	sequential := NewEngine(rules, NewFieldResolver(nil), zap.NewNop().Sugar(), nil)
	var want []core.Detection
	for _, ev := range makeEvents() {
		want = append(want, sequential.Evaluate(ev)...)
	}
	want = append(want, sequential.Flush()...)

	parallelRules := []*CompiledRule{
		engineRule(t, "r7", "Logon", "", map[string]any{
			"selection": map[string]any{"EventID": 4624},
			"condition": "selection",
		}),
		engineRule(t, "r8", "Spray", "", map[string]any{
			"selection": map[string]any{"EventID": 4625},
			"condition": "selection | count() by TargetUserName >= 2",
		}),
	}
	parallel := NewEngine(parallelRules, NewFieldResolver(nil), zap.NewNop().Sugar(), nil)

	events := make(chan *core.Event)
	out := make(chan core.Detection, 256)
	go func() {
		for _, ev := range makeEvents() {
			events <- ev
		}
		close(events)
	}()

	_, err := parallel.Run(context.Background(), events, out, 4)
	require.NoError(t, err)

	var got []core.Detection
	for d := range out {
		got = append(got, d)
	}
	assert.Equal(t, want, got)
}
