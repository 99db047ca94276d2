package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/locchh/dkb/internal/output"
)

func newStatsCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show knowledge-base totals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			engine, _, err := openEngine()
			if err != nil {
				return err
			}
			defer engine.Close()

			stats, err := engine.Stats(cmd.Context())
			if err != nil {
				return err
			}

			w := output.New(cmd.OutOrStdout())
			if format == "json" {
				return w.JSON(map[string]any{
					"store_path":    engine.Path(),
					"documents":     stats.Documents,
					"chunks":        stats.Chunks,
					"tokens":        stats.Tokens,
					"distinct_tags": stats.DistinctTags,
					"storage_bytes": stats.StorageBytes,
				})
			}

			w.Header("Knowledge base")
			if engine.Path() != "" {
				w.Field("store", engine.Path())
			} else {
				w.Field("store", "(memory)")
			}
			w.Field("documents", fmt.Sprintf("%d", stats.Documents))
			w.Field("chunks", fmt.Sprintf("%d", stats.Chunks))
			w.Field("tokens", fmt.Sprintf("%d", stats.Tokens))
			w.Field("tags", fmt.Sprintf("%d", stats.DistinctTags))
			w.Field("size", formatBytes(stats.StorageBytes))
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "text", "output format: text, json")
	return cmd
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
