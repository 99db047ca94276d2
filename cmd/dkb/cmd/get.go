package cmd

import (
	"sort"

	"github.com/spf13/cobra"

	"github.com/locchh/dkb/internal/output"
	"github.com/locchh/dkb/internal/store"
)

func newGetCmd() *cobra.Command {
	var format string
	var contentOnly bool

	cmd := &cobra.Command{
		Use:   "get <path>",
		Short: "Fetch one document by path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, _, err := openEngine()
			if err != nil {
				return err
			}
			defer engine.Close()

			doc, err := engine.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			w := output.New(cmd.OutOrStdout())
			if contentOnly {
				w.Printf("%s", doc.Content)
				return nil
			}
			if format == "json" {
				return w.JSON(docJSON(doc))
			}

			w.Header(doc.Path)
			w.Field("created", output.Time(doc.CreatedAt))
			w.Field("modified", output.Time(doc.ModifiedAt))
			w.Field("tokens", itoa(doc.TokenCount))
			if len(doc.Tags) > 0 {
				w.Field("tags", joinTags(doc.Tags))
			}
			for _, k := range sortedMetaKeys(doc.Metadata) {
				w.Field(k, doc.Metadata[k].Display())
			}
			w.Line("")
			w.Printf("%s", doc.Content)
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "text", "output format: text, json")
	cmd.Flags().BoolVar(&contentOnly, "content", false, "print only the raw content")
	return cmd
}

// docJSON is the JSON shape shared by get and list --format json.
func docJSON(doc *store.Document) map[string]any {
	out := map[string]any{
		"path":        doc.Path,
		"content":     doc.Content,
		"created_at":  doc.CreatedAt,
		"modified_at": doc.ModifiedAt,
		"token_count": doc.TokenCount,
		"size":        doc.Size,
	}
	if len(doc.Tags) > 0 {
		out["tags"] = doc.Tags
	}
	if len(doc.Metadata) > 0 {
		out["metadata"] = doc.Metadata
	}
	return out
}

func sortedMetaKeys(meta map[string]store.MetaValue) []string {
	keys := make([]string, 0, len(meta))
	for k := range meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
