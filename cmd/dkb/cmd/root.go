// Package cmd provides the CLI commands for dkb.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/locchh/dkb/internal/config"
	"github.com/locchh/dkb/internal/kb"
	"github.com/locchh/dkb/internal/logging"
	"github.com/locchh/dkb/internal/output"
	"github.com/locchh/dkb/pkg/version"
)

// Global flags shared by all commands.
var (
	kbPath     string
	configPath string
	debugMode  bool

	loggingCleanup func()
)

// memoryPath selects the non-persistent store on the --kb flag.
const memoryPath = ":memory:"

// NewRootCmd creates the root command for the dkb CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dkb",
		Short: "Embedded knowledge base with keyword search",
		Long: `dkb stores documents in a single portable file and answers keyword
queries with tag, path, and date filtering.

Documents are addressed by path, tagged, chunked, and ranked so that
matching more distinct query terms beats repeating one term.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetVersionTemplate("dkb version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&kbPath, "kb", "",
		"knowledge base file (overrides config; use :memory: for a non-persistent store)")
	cmd.PersistentFlags().StringVar(&configPath, "config", "",
		"explicit config file (default: .dkb.yaml in the working directory)")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false,
		"enable debug logging")

	cmd.PersistentPreRunE = setupLogging
	cmd.PersistentPostRun = teardownLogging

	cmd.AddCommand(newAddCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newTagCmd())
	cmd.AddCommand(newRemoveCmd())
	cmd.AddCommand(newChunksCmd())
	cmd.AddCommand(newRechunkCmd())
	cmd.AddCommand(newImportCmd())
	cmd.AddCommand(newExportCmd())
	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(newClearCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func setupLogging(_ *cobra.Command, _ []string) error {
	cfg := logging.DefaultConfig()
	if debugMode {
		cfg.Level = "debug"
	}
	_, cleanup, err := logging.Setup(cfg)
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}
	loggingCleanup = cleanup
	return nil
}

func teardownLogging(_ *cobra.Command, _ []string) {
	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
}

// loadConfig builds the effective configuration for this invocation.
func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.LoadFile(configPath)
	}
	dir, err := os.Getwd()
	if err != nil {
		dir = "."
	}
	return config.Load(dir)
}

// openEngine loads configuration and opens the knowledge base. The --kb
// flag wins over the configured store path.
func openEngine() (*kb.Engine, *config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	path := cfg.Store.Path
	switch kbPath {
	case "":
	case memoryPath:
		path = ""
	default:
		path = kbPath
	}

	slog.Debug("kb_opening", slog.String("path", path))
	engine, err := kb.Open(path)
	if err != nil {
		return nil, nil, err
	}
	return engine, cfg, nil
}

// Execute runs the root command and reports errors on stderr with their
// error code when available.
func Execute() error {
	err := NewRootCmd().Execute()
	if err != nil {
		output.New(os.Stderr).Error(err.Error())
	}
	return err
}
