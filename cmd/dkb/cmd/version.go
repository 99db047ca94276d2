package cmd

import (
	"github.com/spf13/cobra"

	"github.com/locchh/dkb/internal/output"
	"github.com/locchh/dkb/pkg/version"
)

func newVersionCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version and build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := output.New(cmd.OutOrStdout())
			if format == "json" {
				return w.JSON(version.Info())
			}
			w.Line(version.String())
			info := version.Info()
			w.Field("commit", info.Commit)
			w.Field("built", info.Date)
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "text", "output format: text, json")
	return cmd
}
