package detect

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Cyberappy/Hayabusa-setup/config"
	"github.com/Cyberappy/Hayabusa-setup/core"
)

func TestResolverPrecedence(t *testing.T) {
	aliases := config.NewAliasTable()
	aliases.Add("", "EventID", "Event.System.EventID")
	aliases.Add("security", "User", "Event.EventData.TargetUserName")
	aliases.Add("", "User", "Event.EventData.SubjectUserName")

	res := NewFieldResolver(aliases)

	// exact field path wins over any alias
	ev := &core.Event{
		Channel: "Security",
		Fields: map[string]any{
			"EventID":              "direct",
			"Event.System.EventID": 4625,
		},
	}
	v, ok := res.Resolve(ev, "EventID")
	assert.True(t, ok)
	assert.Equal(t, "direct", v)

	// channel-scoped alias wins over the global alias
	ev = &core.Event{
		Channel: "Security",
		Fields: map[string]any{
			"Event.EventData.TargetUserName":  "target",
			"Event.EventData.SubjectUserName": "subject",
		},
	}
	v, ok = res.Resolve(ev, "User")
	assert.True(t, ok)
	assert.Equal(t, "target", v)

	// other channels fall through to the global alias
	ev.Channel = "System"
	v, ok = res.Resolve(ev, "User")
	assert.True(t, ok)
	assert.Equal(t, "subject", v)
}

func TestResolverEventDataFallback(t *testing.T) {
	res := NewFieldResolver(nil)
	ev := &core.Event{
		Channel:   "Security",
		Fields:    map[string]any{"Event.System.EventID": 1},
		EventData: map[string]any{"VendorSpecificField": "value"},
	}

	v, ok := res.Resolve(ev, "VendorSpecificField")
	assert.True(t, ok)
	assert.Equal(t, "value", v)
}

func TestResolverSentinel(t *testing.T) {
	res := NewFieldResolver(nil)
	ev := &core.Event{Channel: "Security", Fields: map[string]any{}}

	_, ok := res.Resolve(ev, "Nothing")
	assert.False(t, ok)
	assert.Equal(t, NotAvailable, res.ResolveString(ev, "Nothing"))
}

func TestResolverAliasToMissingField(t *testing.T) {
	aliases := config.NewAliasTable()
	aliases.Add("", "User", "Event.EventData.TargetUserName")
	res := NewFieldResolver(aliases)

	// alias resolves but the target path is absent on this record
	ev := &core.Event{Channel: "Security", Fields: map[string]any{}}
	assert.Equal(t, NotAvailable, res.ResolveString(ev, "User"))
}
