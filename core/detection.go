package core

import "time"

// Detection is one emitted match result. Detections are constructed by the
// engine, never mutated, and owned by the caller after emission.
type Detection struct {
	// RuleID and RuleTitle identify the matching rule.
	RuleID    string
	RuleTitle string

	// Level is the rule's effective severity after tuning.
	Level Level

	// RecordID references the triggering event record. For end-of-stream
	// aggregate detections this is the last record observed in the group.
	RecordID uint64

	// Timestamp is the triggering event's time; for aggregate window
	// detections, the window start time.
	Timestamp time.Time

	// Channel is the (unabbreviated) source channel of the record.
	Channel string

	// Details is the rendered message with %Field% placeholders resolved.
	// Placeholders that did not resolve render as "n/a".
	Details string

	// Tags carries the rule's tags, including MITRE technique IDs.
	Tags []string

	// Aggregate detections only: the group key of the firing group, the
	// observed count, and the distinct field values counted when the
	// aggregate clause names a field.
	GroupKey    string
	Count       int
	FieldValues []string
}
