package cmd

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/locchh/dkb/internal/chunk"
	kberrors "github.com/locchh/dkb/internal/errors"
	"github.com/locchh/dkb/internal/kb"
	"github.com/locchh/dkb/internal/output"
	"github.com/locchh/dkb/internal/store"
)

type addOptions struct {
	tags       []string
	meta       []string
	createOnly bool
	doChunk    bool
}

func newAddCmd() *cobra.Command {
	var opts addOptions

	cmd := &cobra.Command{
		Use:   "add <path> [file]",
		Short: "Store a document at a path",
		Long: `Store a document at a path. Content comes from the file argument, or
from stdin when no file is given. Re-adding the same path overwrites the
content and reindexes it.

Examples:
  dkb add notes/go.md notes/go.md --tags lang,go
  echo "quick note" | dkb add scratch/today.md --meta priority=2
  dkb add docs/api.md api.md --chunk --create-only`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdd(cmd, args, opts)
		},
	}

	cmd.Flags().StringSliceVarP(&opts.tags, "tags", "t", nil, "tags to attach (repeatable or comma separated)")
	cmd.Flags().StringArrayVar(&opts.meta, "meta", nil, "metadata key=value (repeatable; values typed as bool, number, or string)")
	cmd.Flags().BoolVar(&opts.createOnly, "create-only", false, "fail instead of overwriting an existing document")
	cmd.Flags().BoolVar(&opts.doChunk, "chunk", false, "chunk the content using the configured strategy")

	return cmd
}

func runAdd(cmd *cobra.Command, args []string, opts addOptions) error {
	var content []byte
	var err error
	if len(args) == 2 {
		content, err = os.ReadFile(args[1])
		if err != nil {
			return fmt.Errorf("read %s: %w", args[1], err)
		}
	} else {
		content, err = io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
	}

	meta, err := parseMeta(opts.meta)
	if err != nil {
		return err
	}

	engine, cfg, err := openEngine()
	if err != nil {
		return err
	}
	defer engine.Close()

	addOpts := kb.AddOptions{Tags: opts.tags, Metadata: meta, CreateOnly: opts.createOnly}
	var chunkOpts chunk.Options
	if opts.doChunk {
		chunkOpts = cfg.Chunking.Options()
		addOpts.Chunking = &chunkOpts
	}

	doc, err := engine.Add(cmd.Context(), args[0], string(content), addOpts)
	if err != nil {
		return err
	}

	w := output.New(cmd.OutOrStdout())
	w.Printf("stored %s (%d tokens)\n", doc.Path, doc.TokenCount)
	return nil
}

// parseMeta turns key=value pairs into typed metadata. Values that parse
// as bool or number keep that type; everything else stays a string.
func parseMeta(pairs []string) (map[string]store.MetaValue, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	meta := make(map[string]store.MetaValue, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, kberrors.New(kberrors.ErrCodeInvalidInput,
				"metadata must be key=value, got "+pair, nil)
		}
		switch {
		case value == "true" || value == "false":
			meta[key] = store.Bool(value == "true")
		default:
			n, err := strconv.ParseFloat(value, 64)
			if err != nil {
				meta[key] = store.String(value)
				break
			}
			meta[key] = store.Number(n)
		}
	}
	return meta, nil
}
