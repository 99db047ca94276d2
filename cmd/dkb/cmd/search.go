package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	kberrors "github.com/locchh/dkb/internal/errors"
	"github.com/locchh/dkb/internal/index"
	"github.com/locchh/dkb/internal/kb"
	"github.com/locchh/dkb/internal/output"
)

const searchSnippetWidth = 100

// searchOptions holds CLI flags for search.
type searchOptions struct {
	tags        []string
	anyTag      bool
	excludeTags []string
	pathGlob    string
	after       string
	before      string
	limit       int
	order       string
	maxTokens   int
	format      string
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search [query...]",
		Short: "Search the knowledge base",
		Long: `Search by keywords with optional tag, path, and date filters. With no
query, the filters alone select documents.

Results matching more distinct query terms rank above results repeating
one term. Filters intersect; an unset filter does not restrict.

Examples:
  dkb search goroutine scheduling
  dkb search deadlock --tag go --tag concurrency
  dkb search --tag meeting --after 2026-08-01 --order date
  dkb search api --path "docs/*" --limit 5 --format json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().StringArrayVarP(&opts.tags, "tag", "t", nil, "require this tag (repeatable)")
	cmd.Flags().BoolVar(&opts.anyTag, "any", false, "match any --tag instead of all")
	cmd.Flags().StringArrayVar(&opts.excludeTags, "exclude-tag", nil, "drop documents carrying this tag (repeatable)")
	cmd.Flags().StringVarP(&opts.pathGlob, "path", "p", "", "filter by path glob; * crosses separators")
	cmd.Flags().StringVar(&opts.after, "after", "", "only documents modified at or after (RFC3339 or YYYY-MM-DD)")
	cmd.Flags().StringVar(&opts.before, "before", "", "only documents modified at or before (RFC3339 or YYYY-MM-DD)")
	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 0, "maximum results (default from config)")
	cmd.Flags().StringVar(&opts.order, "order", "", "result order: relevance, date, path (default from config)")
	cmd.Flags().IntVar(&opts.maxTokens, "max-tokens", -1, "cap summed token count of results (default from config)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "output format: text, json")

	return cmd
}

func runSearch(cmd *cobra.Command, query string, opts searchOptions) error {
	engine, cfg, err := openEngine()
	if err != nil {
		return err
	}
	defer engine.Close()

	q := kb.Query{
		Text:        query,
		Tags:        opts.tags,
		ExcludeTags: opts.excludeTags,
		PathGlob:    opts.pathGlob,
		Limit:       opts.limit,
		OrderBy:     kb.OrderBy(opts.order),
		MaxTokens:   opts.maxTokens,
	}
	if opts.anyTag {
		q.TagMode = index.MatchAny
	}
	if q.Limit <= 0 {
		q.Limit = cfg.Search.DefaultLimit
	}
	if q.OrderBy == "" {
		q.OrderBy = kb.OrderBy(cfg.Search.Order)
	}
	if q.MaxTokens < 0 {
		q.MaxTokens = cfg.Search.MaxTokens
	}

	if q.After, err = parseQueryTime(opts.after); err != nil {
		return err
	}
	if q.Before, err = parseQueryTime(opts.before); err != nil {
		return err
	}

	results, err := engine.Search(cmd.Context(), q)
	if err != nil {
		return err
	}

	w := output.New(cmd.OutOrStdout())
	if opts.format == "json" {
		return w.JSON(resultsJSON(results))
	}

	if len(results) == 0 {
		w.Dim("no results")
		return nil
	}
	for i, r := range results {
		doc := r.Document
		header := fmt.Sprintf("%d. %s", i+1, doc.Path)
		if q.Text != "" {
			header += fmt.Sprintf("  (%.3f)", r.Score)
		}
		w.Header(header)
		w.Line("   " + output.Snippet(doc.Content, searchSnippetWidth))
		detail := output.Time(doc.ModifiedAt)
		if len(doc.Tags) > 0 {
			detail += "  [" + joinTags(doc.Tags) + "]"
		}
		w.Dim("   " + detail)
	}
	return nil
}

func resultsJSON(results []kb.Result) []map[string]any {
	out := make([]map[string]any, 0, len(results))
	for _, r := range results {
		doc := r.Document
		entry := map[string]any{
			"path":        doc.Path,
			"score":       r.Score,
			"snippet":     output.Snippet(doc.Content, searchSnippetWidth),
			"modified_at": doc.ModifiedAt,
			"token_count": doc.TokenCount,
		}
		if len(doc.Tags) > 0 {
			entry["tags"] = doc.Tags
		}
		out = append(out, entry)
	}
	return out
}

// parseQueryTime accepts RFC3339 or a bare date.
func parseQueryTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation("2006-01-02", s, time.Local); err == nil {
		return t, nil
	}
	return time.Time{}, kberrors.New(kberrors.ErrCodeInvalidQuery,
		"timestamps must be RFC3339 or YYYY-MM-DD, got "+s, nil)
}
