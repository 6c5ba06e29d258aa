package detect

import (
	"strings"

	"go.uber.org/zap"

	"github.com/Cyberappy/Hayabusa-setup/config"
	"github.com/Cyberappy/Hayabusa-setup/core"
)

// TuningOptions selects which rule categories participate in evaluation.
type TuningOptions struct {
	MinLevel              core.Level
	EnableNoisyRules      bool
	EnableDeprecatedRules bool
}

// TuningResult is the outcome of one tuning pass: the active rule set and
// disjoint per-category counts of rules held out of evaluation. Every loaded
// rule lands in exactly one of Excluded, Deprecated, Noisy, BelowMinLevel,
// or Active, except the engine self-test rule, which when exclude-listed is
// dropped without being counted. A self-test rule not on the exclude list is
// evaluated like any other.
type TuningResult struct {
	Active        []*CompiledRule
	Excluded      int
	Noisy         int
	Deprecated    int
	BelowMinLevel int
}

// ApplyTuning runs the tuning pass over the compiled rule set. Level
// overrides are applied on ID match no matter what other lists the rule is
// on: a rule's level and its exclusion status are independent axes, and
// evaluation gating never suppresses a level override. Tuning-list IDs with
// no loaded rule are ignored.
func ApplyTuning(rules []*CompiledRule, tables *config.Tables, opts TuningOptions, logger *zap.SugaredLogger) *TuningResult {
	result := &TuningResult{}
	for _, cr := range rules {
		rule := cr.Rule
		id := strings.ToLower(rule.ID)

		if raw, ok := tables.LevelTuning[id]; ok {
			rule.EffectiveLevel = core.ParseLevel(raw)
			logger.Debugw("level override applied",
				"rule", rule.ID, "from", rule.Level, "to", rule.EffectiveLevel)
		}
		if _, ok := tables.NoisyRules[id]; ok {
			rule.Noisy = true
		}

		switch {
		case excludedID(tables.ExcludeRules, id):
			// the engine self-test rule is dropped without counting
			if rule.ID != core.TestRuleID {
				result.Excluded++
			}
		case rule.Deprecated() && !opts.EnableDeprecatedRules:
			result.Deprecated++
		case rule.Noisy && !opts.EnableNoisyRules:
			result.Noisy++
		case rule.EffectiveLevel < opts.MinLevel:
			result.BelowMinLevel++
		default:
			result.Active = append(result.Active, cr)
		}
	}
	return result
}

func excludedID(list map[string]struct{}, id string) bool {
	_, ok := list[id]
	return ok
}
