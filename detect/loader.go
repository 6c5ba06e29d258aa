package detect

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/Cyberappy/Hayabusa-setup/core"
)

// LoadResult reports a rule-directory load.
type LoadResult struct {
	Rules   []*CompiledRule
	Skipped int
}

// LoadRules walks dir and compiles every rule file found, in lexical path
// order so rule-declaration order is stable across runs. Files that fail to
// parse or compile are logged and skipped; a bad rule never aborts the load.
// Rule IDs must be unique across the set: aggregation state and detection
// attribution are keyed by ID, so a file reusing an already-loaded ID is
// skipped. Version-control metadata directories are not descended into.
func LoadRules(dir string, logger *zap.SugaredLogger) (*LoadResult, error) {
	result := &LoadResult{}
	seen := make(map[string]string)
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if name := d.Name(); name == ".git" || name == ".svn" || name == "node_modules" {
				return filepath.SkipDir
			}
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".yml" && ext != ".yaml" {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			logger.Warnw("failed to read rule file", "path", path, "error", err)
			result.Skipped++
			return nil
		}
		rule, err := core.ParseRule(data, path)
		if err != nil {
			logger.Warnw("skipping invalid rule file", "path", path, "error", err)
			result.Skipped++
			return nil
		}
		id := strings.ToLower(rule.ID)
		if first, ok := seen[id]; ok {
			logger.Warnw("skipping rule with duplicate id",
				"id", rule.ID, "path", path, "first_seen", first)
			result.Skipped++
			return nil
		}
		compiled, err := CompileRule(rule)
		if err != nil {
			logger.Warnw("skipping uncompilable rule", "path", path, "error", err)
			result.Skipped++
			return nil
		}
		seen[id] = path
		result.Rules = append(result.Rules, compiled)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk rules directory %s: %w", dir, err)
	}
	logger.Infow("rules loaded", "dir", dir, "loaded", len(result.Rules), "skipped", result.Skipped)
	return result, nil
}
