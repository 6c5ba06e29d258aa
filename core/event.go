package core

import (
	"fmt"
	"time"
)

// Event is one decoded Windows event log record. Events are produced by an
// external decoder (evtx reader, JSONL loader) and are immutable once built:
// the engine never writes to an Event and never retains one past its
// evaluation, so a frozen Event may be shared across workers without locking.
type Event struct {
	// RecordID is the monotonically increasing record identifier assigned
	// by the decoder in arrival order.
	RecordID uint64

	// Timestamp is the event creation time (SystemTime in the EVTX header).
	Timestamp time.Time

	// Channel is the source log channel ("Security", "System", ...).
	Channel string

	// Fields maps flattened dotted field paths to values, e.g.
	// "Event.System.EventID" -> 4625.
	Fields map[string]any

	// EventData holds the free-form provider fields of the record. The
	// field resolver falls back to a literal name lookup here when neither
	// the canonical path nor any alias resolves.
	EventData map[string]any
}

// Value returns the value stored under the exact field path.
func (e *Event) Value(path string) (any, bool) {
	if e == nil || e.Fields == nil {
		return nil, false
	}
	v, ok := e.Fields[path]
	return v, ok
}

// ExtendedValue looks up a provider field by its literal name.
func (e *Event) ExtendedValue(name string) (any, bool) {
	if e == nil || e.EventData == nil {
		return nil, false
	}
	v, ok := e.EventData[name]
	return v, ok
}

// FlattenFields converts a nested record map into the dotted-path form used
// by Event.Fields. Nested maps are walked depth-first; leaves keep their
// decoded type.
func FlattenFields(nested map[string]any) map[string]any {
	flat := make(map[string]any, len(nested))
	flattenInto(flat, "", nested)
	return flat
}

func flattenInto(dst map[string]any, prefix string, m map[string]any) {
	for k, v := range m {
		path := k
		if prefix != "" {
			path = prefix + "." + k
		}
		if sub, ok := v.(map[string]any); ok {
			flattenInto(dst, path, sub)
			continue
		}
		dst[path] = v
	}
}

// String implements fmt.Stringer for debug logging.
func (e *Event) String() string {
	return fmt.Sprintf("event record=%d channel=%s time=%s", e.RecordID, e.Channel, e.Timestamp.Format(time.RFC3339))
}
