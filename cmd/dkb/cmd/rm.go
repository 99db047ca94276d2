package cmd

import (
	"github.com/spf13/cobra"

	"github.com/locchh/dkb/internal/output"
)

func newRemoveCmd() *cobra.Command {
	var ignoreMissing bool

	cmd := &cobra.Command{
		Use:   "rm <path>...",
		Short: "Remove documents and their chunks",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, _, err := openEngine()
			if err != nil {
				return err
			}
			defer engine.Close()

			w := output.New(cmd.OutOrStdout())
			for _, path := range args {
				if err := engine.Remove(cmd.Context(), path, ignoreMissing); err != nil {
					return err
				}
				w.Printf("removed %s\n", path)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&ignoreMissing, "ignore-missing", false, "succeed even when a path does not exist")
	return cmd
}
