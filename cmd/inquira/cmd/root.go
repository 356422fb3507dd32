// Package cmd provides the CLI commands for Inquira.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/inquira/inquira/internal/config"
	"github.com/inquira/inquira/internal/logging"
	"github.com/inquira/inquira/internal/rag"
)

// Version is set at build time via -ldflags.
var Version = "dev"

// Persistent flags shared by every subcommand.
var (
	flagDataDir    string
	flagDebug      bool
	loggingCleanup func()
)

// NewRootCmd creates the root command for the inquira CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inquira",
		Short: "Ask questions about your private documents",
		Long: `Inquira indexes local documents into a hybrid keyword + semantic
index and answers questions about them through a local LLM.

Everything runs on your machine: SQLite for metadata, an in-memory
BM25 index, an HNSW vector index, and Ollama for embeddings and
generation. No document content ever leaves the host.

Typical flow:
  inquira index ./docs
  inquira ask "what changed in the Q3 incident response runbook?"`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.SetVersionTemplate("inquira version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&flagDataDir, "data-dir", "", "Data directory (default ~/.inquira/data)")
	cmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging")

	cmd.PersistentPreRunE = setupLogging
	cmd.PersistentPostRun = func(_ *cobra.Command, _ []string) {
		if loggingCleanup != nil {
			loggingCleanup()
			loggingCleanup = nil
		}
	}

	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newAskCmd())
	cmd.AddCommand(newWatchCmd())
	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(newClearCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

// setupLogging installs the process logger. CLI output goes to stdout;
// logs go to the rotating file only, so they never interleave with
// results.
func setupLogging(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logCfg := logging.Config{
		Level:         cfg.Logging.Level,
		FilePath:      cfg.Logging.FilePath,
		MaxSizeMB:     cfg.Logging.MaxSizeMB,
		MaxFiles:      cfg.Logging.MaxFiles,
		WriteToStderr: false,
	}
	if logCfg.FilePath == "" {
		logCfg.FilePath = logging.DefaultLogPath()
	}
	if flagDebug {
		logCfg.Level = "debug"
		logCfg.WriteToStderr = true
	}

	cleanup, err := logging.SetupDefault(logCfg)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	loggingCleanup = cleanup
	return nil
}

// loadConfig loads configuration from the working directory and applies
// CLI flag overrides.
func loadConfig() (*config.Config, error) {
	dir, err := os.Getwd()
	if err != nil {
		dir = "."
	}

	cfg, err := config.Load(dir)
	if err != nil {
		return nil, err
	}
	if flagDataDir != "" {
		cfg.Storage.DataDir = flagDataDir
	}
	return cfg, nil
}

// openEngine builds the engine from config. The caller owns Close.
func openEngine(ctx context.Context) (*rag.Engine, *config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	engine, err := rag.New(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return engine, cfg, nil
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
