package cmd

import (
	"github.com/spf13/cobra"

	kberrors "github.com/locchh/dkb/internal/errors"
	"github.com/locchh/dkb/internal/output"
)

func newClearCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every document from the knowledge base",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !force {
				return kberrors.New(kberrors.ErrCodeInvalidInput,
					"clear deletes every document; pass --force to confirm", nil)
			}

			engine, _, err := openEngine()
			if err != nil {
				return err
			}
			defer engine.Close()

			if err := engine.Clear(cmd.Context()); err != nil {
				return err
			}
			output.New(cmd.OutOrStdout()).Line("knowledge base cleared")
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "confirm deletion")
	return cmd
}
