package cmd

import (
	"github.com/spf13/cobra"

	kberrors "github.com/locchh/dkb/internal/errors"
	"github.com/locchh/dkb/internal/output"
)

func newTagCmd() *cobra.Command {
	var add, remove []string

	cmd := &cobra.Command{
		Use:   "tag <path>",
		Short: "Add or remove tags on a document",
		Long: `Add or remove tags on a document. Tags are plain strings; removing a
tag the document does not carry is a no-op.

Examples:
  dkb tag notes/go.md --add lang,compiled
  dkb tag notes/go.md --remove draft`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(add) == 0 && len(remove) == 0 {
				return kberrors.New(kberrors.ErrCodeInvalidInput,
					"nothing to do: pass --add and/or --remove", nil)
			}

			engine, _, err := openEngine()
			if err != nil {
				return err
			}
			defer engine.Close()

			tags, err := engine.Tag(cmd.Context(), args[0], add, remove)
			if err != nil {
				return err
			}

			w := output.New(cmd.OutOrStdout())
			if len(tags) == 0 {
				w.Printf("%s: no tags\n", args[0])
				return nil
			}
			w.Printf("%s: %s\n", args[0], joinTags(tags))
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&add, "add", nil, "tags to add")
	cmd.Flags().StringSliceVar(&remove, "remove", nil, "tags to remove")
	return cmd
}
