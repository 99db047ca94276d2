package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/locchh/dkb/internal/chunk"
	"github.com/locchh/dkb/internal/output"
)

func newChunksCmd() *cobra.Command {
	var showText bool

	cmd := &cobra.Command{
		Use:   "chunks <path>",
		Short: "Show the chunks of a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, _, err := openEngine()
			if err != nil {
				return err
			}
			defer engine.Close()

			chunks, err := engine.Chunks(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			w := output.New(cmd.OutOrStdout())
			if len(chunks) == 0 {
				w.Dim("document has no chunks; run dkb rechunk to create them")
				return nil
			}
			for _, c := range chunks {
				line := fmt.Sprintf("#%d  [%d:%d]  %d tokens", c.Seq, c.Start, c.End, c.TokenCount)
				if c.Heading != "" {
					line += "  " + c.Heading
				}
				w.Line(line)
				if showText {
					text, err := engine.ChunkText(cmd.Context(), c)
					if err != nil {
						return err
					}
					w.Dim(text)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&showText, "text", false, "print each chunk's text")
	return cmd
}

func newRechunkCmd() *cobra.Command {
	var (
		strategy  string
		size      int
		overlap   int
		separator string
		minSize   int
		maxSize   int
	)

	cmd := &cobra.Command{
		Use:   "rechunk <path>",
		Short: "Replace a document's chunks",
		Long: `Replace a document's chunks with a fresh split. Identical parameters on
unchanged content reproduce identical boundaries.

Examples:
  dkb rechunk notes/go.md --strategy headings
  dkb rechunk logs/app.txt --strategy tokens --size 500 --overlap 50
  dkb rechunk data.txt --strategy separator --separator "==="`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, cfg, err := openEngine()
			if err != nil {
				return err
			}
			defer engine.Close()

			opts := cfg.Chunking.Options()
			if strategy != "" {
				opts.Strategy = chunk.Strategy(strategy)
			}
			if size > 0 {
				opts.Size = size
			}
			if overlap >= 0 {
				opts.Overlap = overlap
			}
			if separator != "" {
				opts.Separator = separator
			}
			if minSize > 0 {
				opts.MinSize = minSize
			}
			if maxSize > 0 {
				opts.MaxSize = maxSize
			}

			chunks, err := engine.Rechunk(cmd.Context(), args[0], opts)
			if err != nil {
				return err
			}

			output.New(cmd.OutOrStdout()).Printf("rechunked %s into %d chunks\n", args[0], len(chunks))
			return nil
		},
	}

	cmd.Flags().StringVar(&strategy, "strategy", "", "chunking strategy: headings, paragraphs, tokens, separator")
	cmd.Flags().IntVar(&size, "size", 0, "window size in tokens (tokens strategy)")
	cmd.Flags().IntVar(&overlap, "overlap", -1, "window overlap in tokens (tokens strategy)")
	cmd.Flags().StringVar(&separator, "separator", "", "literal delimiter (separator strategy)")
	cmd.Flags().IntVar(&minSize, "min-size", 0, "merge chunks smaller than this many tokens")
	cmd.Flags().IntVar(&maxSize, "max-size", 0, "split chunks larger than this many tokens")
	return cmd
}
