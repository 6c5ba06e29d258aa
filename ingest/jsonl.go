package ingest

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/Cyberappy/Hayabusa-setup/core"
)

// Field paths consulted when building an Event from a decoded record.
const (
	channelPath = "Event.System.Channel"
	timePath    = "Event.System.TimeCreated_attributes.SystemTime"
	altTimePath = "Event.System.TimeCreated.SystemTime"
)

// maxLineBytes bounds a single JSONL record. Oversized records are skipped.
const maxLineBytes = 4 * 1024 * 1024

// Reader decodes line-delimited JSON export of Windows event records into
// the engine's Event form. Records arrive in file order; each gets a
// monotonically increasing record ID regardless of what the record itself
// carries, so downstream ordering never depends on source data quality.
type Reader struct {
	sc     *bufio.Scanner
	logger *zap.SugaredLogger
	seq    uint64
}

// NewReader wraps r. Lines longer than maxLineBytes fail the scan.
func NewReader(r io.Reader, logger *zap.SugaredLogger) *Reader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLineBytes)
	return &Reader{sc: sc, logger: logger}
}

// Next returns the next decoded event, or io.EOF at end of input. Malformed
// lines are logged and skipped, never fatal.
func (r *Reader) Next() (*core.Event, error) {
	for r.sc.Scan() {
		line := r.sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var raw map[string]any
		if err := json.Unmarshal(line, &raw); err != nil {
			r.logger.Warnw("skipping malformed record", "error", err)
			continue
		}
		r.seq++
		return r.build(raw), nil
	}
	if err := r.sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read event stream: %w", err)
	}
	return nil, io.EOF
}

func (r *Reader) build(raw map[string]any) *core.Event {
	flat := core.FlattenFields(raw)

	ev := &core.Event{
		RecordID:  r.seq,
		Channel:   core.ToString(flat[channelPath]),
		Fields:    flat,
		EventData: extractEventData(raw),
	}
	ev.Timestamp = parseTimestamp(flat)
	return ev
}

// extractEventData pulls the free-form provider fields for the resolver's
// literal-name fallback.
func extractEventData(raw map[string]any) map[string]any {
	event, ok := core.AsMap(raw["Event"])
	if !ok {
		return nil
	}
	data, ok := core.AsMap(event["EventData"])
	if !ok {
		return nil
	}
	return data
}

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05.999999999 MST",
	"2006-01-02T15:04:05.999999999",
}

func parseTimestamp(flat map[string]any) time.Time {
	for _, path := range []string{timePath, altTimePath} {
		s := core.ToString(flat[path])
		if s == "" {
			continue
		}
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC()
			}
		}
	}
	return time.Time{}
}

// ReadAll drains the reader into a channel, closing it at end of input.
// Intended to feed Engine.Run.
func (r *Reader) ReadAll(out chan<- *core.Event) error {
	defer close(out)
	for {
		ev, err := r.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		out <- ev
	}
}
