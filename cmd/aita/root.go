package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/yairfalse/aita/config"
	"github.com/yairfalse/aita/paths"
	"github.com/yairfalse/aita/session"
)

var (
	version    = "0.1.0"
	configPath string
	debug      bool

	rootCmd = &cobra.Command{
		Use:   "aita",
		Short: "Sandbox Report Aggregation Engine",
		Long: `Aita - Sandbox Report Aggregation Engine

Aita consumes the line-oriented report stream a sandboxed process tree
emits while it runs: file accesses, process lifecycle records, process
statistics, and injection status. It correlates records into a process
tree, classifies every access against the policy outcome the monitor
already computed, and freezes the result into an immutable session
report you can store, list, and analyze.`,
		Version:           version,
		PersistentPreRunE: setupLogging,
	}
)

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// init sets up the root command
func init() {
	rootCmd.SetVersionTemplate(`Aita {{.Version}} - Sandbox Report Aggregation Engine
`)
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
}

func setupLogging(cmd *cobra.Command, args []string) error {
	cfg, err := loadAppConfig()
	if err != nil {
		return err
	}

	level := zerolog.InfoLevel
	if parsed, err := zerolog.ParseLevel(cfg.LogLevel); err == nil && cfg.LogLevel != "" {
		level = parsed
	}
	if debug {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	return nil
}

// loadAppConfig resolves the effective configuration: defaults unless a
// file is given.
func loadAppConfig() (*config.Config, error) {
	if configPath == "" {
		return config.Default(), nil
	}
	return config.LoadConfig(configPath)
}

// builderOptions maps config onto aggregation session options.
func builderOptions(cfg *config.Config, collectAudit bool) []session.Option {
	opts := []session.Option{
		session.WithAuditCollection(collectAudit || cfg.Ingest.CollectAudit),
		session.WithLogger(log.Logger),
	}
	if len(cfg.Ingest.Translations) > 0 {
		rules := make([]paths.DirTranslation, 0, len(cfg.Ingest.Translations))
		for _, tr := range cfg.Ingest.Translations {
			rules = append(rules, paths.DirTranslation{From: tr.From, To: tr.To})
		}
		opts = append(opts, session.WithTranslator(paths.NewDirTranslator(rules)))
	}
	return opts
}
