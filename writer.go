package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fatih/color"

	"github.com/Cyberappy/Hayabusa-setup/core"
)

var levelColors = map[core.Level]*color.Color{
	core.LevelCritical:      color.New(color.FgRed, color.Bold),
	core.LevelHigh:          color.New(color.FgRed),
	core.LevelMedium:        color.New(color.FgYellow),
	core.LevelLow:           color.New(color.FgGreen),
	core.LevelInformational: color.New(color.FgWhite),
}

// detectionWriter renders detections to the terminal and, optionally, a CSV
// file. Channel names are shortened through the abbreviation table; unmapped
// channels pass through unchanged.
type detectionWriter struct {
	term    io.Writer
	csv     *csv.Writer
	abbrev  map[string]string
	noColor bool
}

func newDetectionWriter(term io.Writer, csvOut io.Writer, abbrev map[string]string, noColor bool) (*detectionWriter, error) {
	w := &detectionWriter{term: term, abbrev: abbrev, noColor: noColor}
	if csvOut != nil {
		w.csv = csv.NewWriter(csvOut)
		if err := w.csv.Write([]string{"Timestamp", "RuleTitle", "Level", "Channel", "RecordID", "Details"}); err != nil {
			return nil, fmt.Errorf("failed to write CSV header: %w", err)
		}
	}
	return w, nil
}

func (w *detectionWriter) channel(name string) string {
	if short, ok := w.abbrev[strings.ToLower(name)]; ok {
		return short
	}
	return name
}

func (w *detectionWriter) write(d core.Detection) error {
	details := d.Details
	if d.GroupKey != "" || d.Count > 0 {
		details = appendCountInfo(details, d)
	}

	level := d.Level.Abbr()
	if !w.noColor {
		if c, ok := levelColors[d.Level]; ok {
			level = c.Sprint(level)
		}
	}
	ts := d.Timestamp.UTC().Format("2006-01-02 15:04:05.000")
	if _, err := fmt.Fprintf(w.term, "%s · %s · %s · %s · %s\n",
		ts, level, w.channel(d.Channel), d.RuleTitle, details); err != nil {
		return err
	}

	if w.csv != nil {
		return w.csv.Write([]string{
			ts, d.RuleTitle, d.Level.String(), w.channel(d.Channel),
			strconv.FormatUint(d.RecordID, 10), details,
		})
	}
	return nil
}

func appendCountInfo(details string, d core.Detection) string {
	var b strings.Builder
	b.WriteString(details)
	if details != "" {
		b.WriteString(" ")
	}
	fmt.Fprintf(&b, "[count: %d", d.Count)
	if d.GroupKey != "" && d.GroupKey != "_" {
		fmt.Fprintf(&b, " by %s", d.GroupKey)
	}
	if len(d.FieldValues) > 0 {
		fmt.Fprintf(&b, " in %s", strings.Join(d.FieldValues, ", "))
	}
	b.WriteString("]")
	return b.String()
}

func (w *detectionWriter) flush() error {
	if w.csv == nil {
		return nil
	}
	w.csv.Flush()
	return w.csv.Error()
}
