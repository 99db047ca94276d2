package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/locchh/dkb/internal/logging"
	dkbmcp "github.com/locchh/dkb/internal/mcp"
	"github.com/locchh/dkb/pkg/version"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the knowledge base over MCP stdio",
		Long: `Serve the knowledge base to MCP clients over stdio. Registers the
kb_search, kb_get, kb_add, and kb_status tools.

Stdout carries JSON-RPC exclusively; all logging goes to the log file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Re-init logging without stderr mirroring: some MCP clients
			// treat stderr noise as a protocol failure.
			teardownLogging(cmd, nil)
			logCfg := logging.DefaultConfig()
			if debugMode {
				logCfg.Level = "debug"
			}
			logCfg.Stderr = false
			if _, cleanup, err := logging.Setup(logCfg); err == nil {
				loggingCleanup = cleanup
			}

			engine, _, err := openEngine()
			if err != nil {
				return err
			}
			defer engine.Close()

			server, err := dkbmcp.NewServer(engine, version.Version)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return server.Serve(ctx)
		},
	}
	return cmd
}
