package cmd

import (
	"github.com/spf13/cobra"

	"github.com/locchh/dkb/internal/index"
	"github.com/locchh/dkb/internal/kb"
	"github.com/locchh/dkb/internal/output"
)

func newExportCmd() *cobra.Command {
	var (
		format   string
		tags     []string
		anyTag   bool
		pathGlob string
	)

	cmd := &cobra.Command{
		Use:   "export <dir>",
		Short: "Export documents to a directory",
		Long: `Export documents under a directory. Markdown format writes one file per
document with YAML frontmatter carrying tags and metadata; json writes a
single kb-export.json. Filters select which documents are written.

Examples:
  dkb export ./backup
  dkb export ./report --format json --tag published
  dkb export ./docs-only --path "docs/*"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, _, err := openEngine()
			if err != nil {
				return err
			}
			defer engine.Close()

			q := kb.Query{Tags: tags, PathGlob: pathGlob}
			if anyTag {
				q.TagMode = index.MatchAny
			}

			n, err := engine.Export(cmd.Context(), args[0], kb.ExportOptions{
				Format: kb.ExportFormat(format),
				Query:  q,
			})
			if err != nil {
				return err
			}

			output.New(cmd.OutOrStdout()).Printf("exported %d documents to %s\n", n, args[0])
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "markdown", "export format: markdown, json")
	cmd.Flags().StringArrayVarP(&tags, "tag", "t", nil, "only export documents with this tag (repeatable)")
	cmd.Flags().BoolVar(&anyTag, "any", false, "match any --tag instead of all")
	cmd.Flags().StringVarP(&pathGlob, "path", "p", "", "only export documents whose path matches this glob")
	return cmd
}
