package config

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// AliasTable maps short field names to full event paths. Global aliases apply
// to every record; channel aliases take precedence for records from their
// channel.
type AliasTable struct {
	// Global maps alias -> full field path.
	Global map[string]string
	// Channel maps channel name -> alias -> full field path.
	Channel map[string]map[string]string
}

// NewAliasTable returns an empty table.
func NewAliasTable() *AliasTable {
	return &AliasTable{
		Global:  make(map[string]string),
		Channel: make(map[string]map[string]string),
	}
}

// Resolve looks up alias for the given channel. Channel-scoped entries win
// over global ones. Lookup is case-insensitive on the alias name.
func (t *AliasTable) Resolve(channel, alias string) (string, bool) {
	key := strings.ToLower(alias)
	if ch, ok := t.Channel[strings.ToLower(channel)]; ok {
		if path, ok := ch[key]; ok {
			return path, true
		}
	}
	path, ok := t.Global[key]
	return path, ok
}

// Add registers an alias. An empty channel registers a global alias.
func (t *AliasTable) Add(channel, alias, path string) {
	key := strings.ToLower(alias)
	if channel == "" {
		t.Global[key] = path
		return
	}
	ch := strings.ToLower(channel)
	if t.Channel[ch] == nil {
		t.Channel[ch] = make(map[string]string)
	}
	t.Channel[ch][key] = path
}

// LoadAliasTable parses eventkey_alias.txt. Each line is
// "alias,Event.Path" for a global alias or "Channel/alias,Event.Path" for a
// channel-scoped one. Blank lines, comment lines, and the header line are
// skipped. Malformed lines are logged and skipped, never fatal.
func LoadAliasTable(path string, logger *zap.SugaredLogger) (*AliasTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open alias table %s: %w", path, err)
	}
	defer f.Close()

	table := NewAliasTable()
	sc := bufio.NewScanner(f)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if lineNo == 1 && strings.EqualFold(line, "alias,event_key") {
			continue
		}
		name, fieldPath, ok := strings.Cut(line, ",")
		if !ok || strings.TrimSpace(name) == "" || strings.TrimSpace(fieldPath) == "" {
			logger.Warnw("skipping malformed alias line", "file", path, "line", lineNo)
			continue
		}
		name = strings.TrimSpace(name)
		fieldPath = strings.TrimSpace(fieldPath)
		if channel, alias, scoped := strings.Cut(name, "/"); scoped {
			table.Add(channel, alias, fieldPath)
		} else {
			table.Add("", name, fieldPath)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read alias table %s: %w", path, err)
	}
	return table, nil
}

// LoadChannelAbbreviations parses channel_abbreviations.txt, lines of
// "Full-Channel-Name,Abbrev". Keys are lowercased for lookup.
func LoadChannelAbbreviations(path string, logger *zap.SugaredLogger) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open channel abbreviations %s: %w", path, err)
	}
	defer f.Close()

	out := make(map[string]string)
	sc := bufio.NewScanner(f)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		full, abbrev, ok := strings.Cut(line, ",")
		if !ok {
			logger.Warnw("skipping malformed channel abbreviation line", "file", path, "line", lineNo)
			continue
		}
		out[strings.ToLower(strings.TrimSpace(full))] = strings.TrimSpace(abbrev)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read channel abbreviations %s: %w", path, err)
	}
	return out, nil
}

// LoadRuleIDList parses exclude_rules.txt or noisy_rules.txt. One rule ID per
// line; anything after whitespace on a line is treated as a comment.
func LoadRuleIDList(path string) (map[string]struct{}, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open rule ID list %s: %w", path, err)
	}
	defer f.Close()

	out := make(map[string]struct{})
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		id := line
		if i := strings.IndexAny(line, " \t"); i >= 0 {
			id = line[:i]
		}
		out[strings.ToLower(id)] = struct{}{}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read rule ID list %s: %w", path, err)
	}
	return out, nil
}

// LoadLevelTuning parses level_tuning.txt, lines of "rule-id,new_level".
// Returns rule ID -> raw level string; level parsing happens when the
// override is applied so unknown levels degrade the same way rule levels do.
func LoadLevelTuning(path string, logger *zap.SugaredLogger) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open level tuning %s: %w", path, err)
	}
	defer f.Close()

	out := make(map[string]string)
	sc := bufio.NewScanner(f)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if lineNo == 1 && strings.EqualFold(line, "id,new_level") {
			continue
		}
		id, level, ok := strings.Cut(line, ",")
		if !ok {
			logger.Warnw("skipping malformed level tuning line", "file", path, "line", lineNo)
			continue
		}
		out[strings.ToLower(strings.TrimSpace(id))] = strings.TrimSpace(level)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read level tuning %s: %w", path, err)
	}
	return out, nil
}

// Tables bundles all flat config tables for a run. Missing files yield empty
// tables rather than errors so a bare rules directory still works.
type Tables struct {
	Aliases       *AliasTable
	ChannelAbbrev map[string]string
	ExcludeRules  map[string]struct{}
	NoisyRules    map[string]struct{}
	LevelTuning   map[string]string
}

// LoadTables loads every table found under dir. Absent files are fine.
func LoadTables(dir string, logger *zap.SugaredLogger) (*Tables, error) {
	t := &Tables{
		Aliases:       NewAliasTable(),
		ChannelAbbrev: make(map[string]string),
		ExcludeRules:  make(map[string]struct{}),
		NoisyRules:    make(map[string]struct{}),
		LevelTuning:   make(map[string]string),
	}

	if p := filepath.Join(dir, "eventkey_alias.txt"); fileExists(p) {
		aliases, err := LoadAliasTable(p, logger)
		if err != nil {
			return nil, err
		}
		t.Aliases = aliases
	}
	if p := filepath.Join(dir, "channel_abbreviations.txt"); fileExists(p) {
		abbrev, err := LoadChannelAbbreviations(p, logger)
		if err != nil {
			return nil, err
		}
		t.ChannelAbbrev = abbrev
	}
	if p := filepath.Join(dir, "exclude_rules.txt"); fileExists(p) {
		ids, err := LoadRuleIDList(p)
		if err != nil {
			return nil, err
		}
		t.ExcludeRules = ids
	}
	if p := filepath.Join(dir, "noisy_rules.txt"); fileExists(p) {
		ids, err := LoadRuleIDList(p)
		if err != nil {
			return nil, err
		}
		t.NoisyRules = ids
	}
	if p := filepath.Join(dir, "level_tuning.txt"); fileExists(p) {
		tuning, err := LoadLevelTuning(p, logger)
		if err != nil {
			return nil, err
		}
		t.LevelTuning = tuning
	}
	return t, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
