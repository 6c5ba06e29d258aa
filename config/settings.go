package config

import (
	"fmt"
	"runtime"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Settings holds the run configuration. Values come from (highest priority
// first) command-line flags bound by the CLI, environment variables with the
// HAYABUSA_ prefix, and an optional config.yaml.
type Settings struct {
	// RulesDir is the detection rule directory tree, one rule per file.
	RulesDir string `mapstructure:"rules_dir" validate:"required"`

	// ConfigDir holds the flat config tables (eventkey_alias.txt,
	// channel_abbreviations.txt, exclude_rules.txt, noisy_rules.txt,
	// level_tuning.txt).
	ConfigDir string `mapstructure:"config_dir" validate:"required"`

	// Threads is the event-evaluation worker count.
	Threads int `mapstructure:"threads" validate:"gte=1,lte=512"`

	// MinLevel drops rules below this severity from evaluation.
	MinLevel string `mapstructure:"min_level" validate:"oneof=informational low medium high critical"`

	// EnableNoisyRules evaluates rules on the noisy list.
	EnableNoisyRules bool `mapstructure:"enable_noisy_rules"`

	// EnableDeprecatedRules evaluates rules with status: deprecated.
	EnableDeprecatedRules bool `mapstructure:"enable_deprecated_rules"`

	// Output is the CSV output path; empty writes the terminal table only.
	Output string `mapstructure:"output"`

	// SQLitePath persists detections for later pivoting; empty disables
	// the sink.
	SQLitePath string `mapstructure:"sqlite_path"`

	// NoColor disables severity coloring on the terminal writer.
	NoColor bool `mapstructure:"no_color"`
}

// Load reads settings from viper's merged sources and validates them.
func Load(v *viper.Viper) (*Settings, error) {
	v.SetDefault("rules_dir", "./rules")
	v.SetDefault("config_dir", "./rules/config")
	v.SetDefault("threads", runtime.NumCPU())
	v.SetDefault("min_level", "informational")

	v.SetEnvPrefix("HAYABUSA")
	v.AutomaticEnv()

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal settings: %w", err)
	}
	if err := validator.New().Struct(&s); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}
	return &s, nil
}
