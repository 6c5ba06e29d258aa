// Package main is the entry point for the hayabusa-hunt detection engine.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"time"

	"github.com/briandowns/spinner"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/Cyberappy/Hayabusa-setup/config"
	"github.com/Cyberappy/Hayabusa-setup/core"
	"github.com/Cyberappy/Hayabusa-setup/detect"
	"github.com/Cyberappy/Hayabusa-setup/ingest"
	"github.com/Cyberappy/Hayabusa-setup/metrics"
	"github.com/Cyberappy/Hayabusa-setup/storage"
)

// groupCardinalityWarn is the tracker size past which a warning is logged.
const groupCardinalityWarn = 100_000

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := newRootCmd(logger.Sugar()).Execute(); err != nil {
		logger.Sugar().Errorw("command failed", "error", err)
		os.Exit(1)
	}
}

func newRootCmd(logger *zap.SugaredLogger) *cobra.Command {
	root := &cobra.Command{
		Use:   "hayabusa-hunt",
		Short: "Evaluate detection rules against decoded Windows event logs",
	}
	root.AddCommand(newHuntCmd(logger))
	return root
}

func newHuntCmd(logger *zap.SugaredLogger) *cobra.Command {
	v := viper.New()
	cmd := &cobra.Command{
		Use:   "hunt <events.jsonl>",
		Short: "Run the rule set against a JSON-lines event dump",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := config.Load(v)
			if err != nil {
				return err
			}
			return runHunt(cmd.Context(), settings, args[0], logger)
		},
	}

	flags := cmd.Flags()
	flags.StringP("rules-dir", "r", "./rules", "detection rule directory")
	flags.StringP("config-dir", "c", "./rules/config", "config table directory")
	flags.IntP("threads", "t", runtime.NumCPU(), "evaluation worker count")
	flags.StringP("min-level", "m", "informational", "minimum rule level to evaluate")
	flags.Bool("enable-noisy-rules", false, "evaluate rules on the noisy list")
	flags.Bool("enable-deprecated-rules", false, "evaluate deprecated rules")
	flags.StringP("output", "o", "", "CSV output path")
	flags.String("sqlite", "", "SQLite detection sink path")
	flags.Bool("no-color", false, "disable terminal colors")

	v.BindPFlag("rules_dir", flags.Lookup("rules-dir"))
	v.BindPFlag("config_dir", flags.Lookup("config-dir"))
	v.BindPFlag("threads", flags.Lookup("threads"))
	v.BindPFlag("min_level", flags.Lookup("min-level"))
	v.BindPFlag("enable_noisy_rules", flags.Lookup("enable-noisy-rules"))
	v.BindPFlag("enable_deprecated_rules", flags.Lookup("enable-deprecated-rules"))
	v.BindPFlag("output", flags.Lookup("output"))
	v.BindPFlag("sqlite_path", flags.Lookup("sqlite"))
	v.BindPFlag("no_color", flags.Lookup("no-color"))

	return cmd
}

func runHunt(ctx context.Context, settings *config.Settings, eventsPath string, logger *zap.SugaredLogger) error {
	runID := uuid.NewString()
	logger = logger.With("run_id", runID)

	tables, err := config.LoadTables(settings.ConfigDir, logger)
	if err != nil {
		return err
	}

	spin := spinner.New(spinner.CharSets[14], 100*time.Millisecond,
		spinner.WithWriter(os.Stderr), spinner.WithSuffix(" loading rules..."))
	spin.Start()
	loaded, err := detect.LoadRules(settings.RulesDir, logger)
	spin.Stop()
	if err != nil {
		return err
	}

	opts := detect.TuningOptions{
		MinLevel:              core.ParseLevel(settings.MinLevel),
		EnableNoisyRules:      settings.EnableNoisyRules,
		EnableDeprecatedRules: settings.EnableDeprecatedRules,
	}
	tuned := detect.ApplyTuning(loaded.Rules, tables, opts, logger)
	logger.Infow("tuning pass complete",
		"active", len(tuned.Active), "excluded", tuned.Excluded,
		"noisy", tuned.Noisy, "deprecated", tuned.Deprecated,
		"below_min_level", tuned.BelowMinLevel)

	m := metrics.New(nil)
	m.RulesLoaded.Set(float64(len(loaded.Rules)))
	m.RulesSkipped.Set(float64(loaded.Skipped))
	m.RulesActive.Set(float64(len(tuned.Active)))

	resolver := detect.NewFieldResolver(tables.Aliases)
	engine := detect.NewEngine(tuned.Active, resolver, logger, m)

	f, err := os.Open(eventsPath)
	if err != nil {
		return fmt.Errorf("failed to open event dump %s: %w", eventsPath, err)
	}
	defer f.Close()

	var csvOut io.Writer
	if settings.Output != "" {
		csvFile, err := os.Create(settings.Output)
		if err != nil {
			return fmt.Errorf("failed to create CSV output %s: %w", settings.Output, err)
		}
		defer csvFile.Close()
		csvOut = csvFile
	}

	var store *storage.DetectionStore
	if settings.SQLitePath != "" {
		store, err = storage.OpenDetectionStore(ctx, settings.SQLitePath, runID)
		if err != nil {
			return err
		}
		defer store.Close()
	}

	writer, err := newDetectionWriter(os.Stdout, csvOut, tables.ChannelAbbrev, settings.NoColor)
	if err != nil {
		return err
	}

	events := make(chan *core.Event, settings.Threads*4)
	detections := make(chan core.Detection, 256)
	reader := ingest.NewReader(f, logger)

	readErr := make(chan error, 1)
	go func() { readErr <- reader.ReadAll(events) }()

	runErr := make(chan error, 1)
	var stats detect.Stats
	go func() {
		s, err := engine.Run(ctx, events, detections, settings.Threads)
		stats = s
		runErr <- err
	}()

	var batch []core.Detection
	for d := range detections {
		if err := writer.write(d); err != nil {
			return fmt.Errorf("failed to write detection: %w", err)
		}
		if store != nil {
			batch = append(batch, d)
			if len(batch) >= 500 {
				if err := store.Write(ctx, batch); err != nil {
					return err
				}
				batch = batch[:0]
			}
		}
	}
	if err := writer.flush(); err != nil {
		return fmt.Errorf("failed to flush CSV output: %w", err)
	}
	if store != nil && len(batch) > 0 {
		if err := store.Write(ctx, batch); err != nil {
			return err
		}
	}

	engineErr := <-runErr
	if engineErr != nil {
		// the engine bailed without consuming the stream; unblock the reader
		// so it can finish and report
		for range events {
		}
	}
	if err := <-readErr; err != nil {
		return err
	}
	if engineErr != nil {
		return engineErr
	}

	if n := engine.GroupCardinality(); n > groupCardinalityWarn {
		logger.Warnw("aggregation group cardinality is high", "groups", n)
	}
	logger.Infow("hunt complete",
		"events", stats.EventsProcessed,
		"zero_match_events", stats.ZeroMatchEvents,
		"detections", stats.Detections)
	return nil
}
