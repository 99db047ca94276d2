package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/locchh/dkb/internal/kb"
	"github.com/locchh/dkb/internal/output"
	"github.com/locchh/dkb/internal/store"
)

func newListCmd() *cobra.Command {
	var (
		format   string
		tags     []string
		pathGlob string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List documents, optionally filtered by tag or path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			engine, _, err := openEngine()
			if err != nil {
				return err
			}
			defer engine.Close()

			sums, err := listSummaries(cmd, engine, tags, pathGlob)
			if err != nil {
				return err
			}

			w := output.New(cmd.OutOrStdout())
			if format == "json" {
				return w.JSON(summariesJSON(sums))
			}

			if len(sums) == 0 {
				if len(tags) > 0 || pathGlob != "" {
					w.Dim("no matching documents")
				} else {
					w.Dim("knowledge base is empty")
				}
				return nil
			}
			for _, sum := range sums {
				line := fmt.Sprintf("%s  %s  %d tokens", sum.Path, output.Time(sum.ModifiedAt), sum.TokenCount)
				if len(sum.Tags) > 0 {
					line += "  [" + joinTags(sum.Tags) + "]"
				}
				w.Line(line)
			}
			w.Dim(fmt.Sprintf("%d documents", len(sums)))
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "text", "output format: text, json")
	cmd.Flags().StringArrayVarP(&tags, "tag", "t", nil, "only list documents with this tag (repeatable)")
	cmd.Flags().StringVarP(&pathGlob, "path", "p", "", "only list documents whose path matches this glob")
	return cmd
}

// listSummaries returns every document, or the filter-matching subset in
// path order when tag or path filters are set.
func listSummaries(cmd *cobra.Command, engine *kb.Engine, tags []string, pathGlob string) ([]store.Summary, error) {
	if len(tags) == 0 && pathGlob == "" {
		return engine.List(cmd.Context())
	}

	results, err := engine.Search(cmd.Context(), kb.Query{
		Tags:     tags,
		PathGlob: pathGlob,
		OrderBy:  kb.OrderPath,
	})
	if err != nil {
		return nil, err
	}
	sums := make([]store.Summary, len(results))
	for i, r := range results {
		sums[i] = r.Document.Summary()
	}
	return sums, nil
}

func summariesJSON(sums []store.Summary) []map[string]any {
	out := make([]map[string]any, 0, len(sums))
	for _, sum := range sums {
		entry := map[string]any{
			"path":        sum.Path,
			"created_at":  sum.CreatedAt,
			"modified_at": sum.ModifiedAt,
			"token_count": sum.TokenCount,
			"size":        sum.Size,
		}
		if len(sum.Tags) > 0 {
			entry["tags"] = sum.Tags
		}
		out = append(out, entry)
	}
	return out
}

func joinTags(tags []string) string {
	return strings.Join(tags, ", ")
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
