package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFlattenFields(t *testing.T) {
	nested := map[string]any{
		"Event": map[string]any{
			"System": map[string]any{
				"EventID": 4625,
				"Channel": "Security",
			},
			"EventData": map[string]any{
				"TargetUserName": "admin",
			},
		},
	}

	flat := FlattenFields(nested)

	assert.Equal(t, 4625, flat["Event.System.EventID"])
	assert.Equal(t, "Security", flat["Event.System.Channel"])
	assert.Equal(t, "admin", flat["Event.EventData.TargetUserName"])
	assert.NotContains(t, flat, "Event")
}

func TestEventValue(t *testing.T) {
	ev := &Event{Fields: map[string]any{"Event.System.EventID": 1}}

	v, ok := ev.Value("Event.System.EventID")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	_, ok = ev.Value("Event.System.Missing")
	assert.False(t, ok)

	var nilEv *Event
	_, ok = nilEv.Value("anything")
	assert.False(t, ok)
}

func TestEventExtendedValue(t *testing.T) {
	ev := &Event{EventData: map[string]any{"VendorField": "x"}}

	v, ok := ev.ExtendedValue("VendorField")
	assert.True(t, ok)
	assert.Equal(t, "x", v)

	_, ok = ev.ExtendedValue("Other")
	assert.False(t, ok)

	empty := &Event{}
	_, ok = empty.ExtendedValue("VendorField")
	assert.False(t, ok)
}
