package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/locchh/dkb/internal/index"
	"github.com/locchh/dkb/internal/kb"
	"github.com/locchh/dkb/internal/output"
	"github.com/locchh/dkb/internal/watch"
)

// matchesPattern applies the import glob to a watched path.
func matchesPattern(path, pattern string) bool {
	if pattern == "" {
		return true
	}
	re, err := index.CompileGlob(pattern)
	if err != nil {
		return false
	}
	return re.MatchString(path)
}

type importFlags struct {
	pattern   string
	tags      []string
	doChunk   bool
	watchMode bool
}

func newImportCmd() *cobra.Command {
	var opts importFlags

	cmd := &cobra.Command{
		Use:   "import <dir>",
		Short: "Import a folder of files",
		Long: `Import every matching file under a directory, using paths relative to
it as document paths. YAML frontmatter is parsed back into tags and
metadata, so an exported tree imports to an equivalent knowledge base.

With --watch, keep running and re-import files as they change on disk.

Examples:
  dkb import ./notes --pattern "*.md" --tags imported
  dkb import ./docs --chunk --watch`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.pattern, "pattern", "", "only import paths matching this glob")
	cmd.Flags().StringSliceVarP(&opts.tags, "tags", "t", nil, "tags to attach to every imported document")
	cmd.Flags().BoolVar(&opts.doChunk, "chunk", false, "chunk imported documents using the configured strategy")
	cmd.Flags().BoolVarP(&opts.watchMode, "watch", "w", false, "keep running and sync filesystem changes")

	return cmd
}

func runImport(cmd *cobra.Command, dir string, opts importFlags) error {
	engine, cfg, err := openEngine()
	if err != nil {
		return err
	}
	defer engine.Close()

	importOpts := kb.ImportOptions{
		Pattern:     opts.pattern,
		Tags:        opts.tags,
		Concurrency: cfg.Import.Workers,
	}
	if importOpts.Pattern == "" {
		importOpts.Pattern = cfg.Import.Pattern
	}
	if opts.doChunk {
		chunkOpts := cfg.Chunking.Options()
		importOpts.Chunking = &chunkOpts
	}

	res, err := engine.ImportFolder(cmd.Context(), dir, importOpts)
	if err != nil {
		return err
	}

	w := output.New(cmd.OutOrStdout())
	w.Printf("imported %d added, %d updated, %d skipped\n", res.Added, res.Updated, res.Skipped)

	if !opts.watchMode {
		return nil
	}
	return watchFolder(cmd.Context(), w, engine, dir, importOpts, cfg.WatchDebounce())
}

// watchFolder re-imports written files and removes deleted ones until the
// context is cancelled.
func watchFolder(ctx context.Context, w *output.Writer, engine *kb.Engine, dir string, opts kb.ImportOptions, debounce time.Duration) error {
	watcher, err := watch.New(dir, debounce)
	if err != nil {
		return err
	}

	w.Dim(fmt.Sprintf("watching %s, press Ctrl-C to stop", dir))
	go watcher.Run(ctx)

	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-watcher.Errors():
			if !ok {
				return nil
			}
			slog.Warn("watch_error", slog.String("error", err.Error()))
		case batch, ok := <-watcher.Events():
			if !ok {
				return nil
			}
			applyWatchBatch(ctx, w, engine, dir, opts, batch)
		}
	}
}

func applyWatchBatch(ctx context.Context, w *output.Writer, engine *kb.Engine, dir string, opts kb.ImportOptions, batch []watch.Event) {
	for _, ev := range batch {
		switch ev.Op {
		case watch.OpRemove:
			if err := engine.Remove(ctx, ev.Path, true); err != nil {
				w.Warning(fmt.Sprintf("remove %s: %v", ev.Path, err))
				continue
			}
			w.Printf("removed %s\n", ev.Path)
		case watch.OpWrite:
			if !matchesPattern(ev.Path, opts.Pattern) {
				continue
			}
			content, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(ev.Path)))
			if err != nil {
				w.Warning(fmt.Sprintf("read %s: %v", ev.Path, err))
				continue
			}
			if _, err := engine.ImportFile(ctx, ev.Path, content, opts); err != nil {
				w.Warning(fmt.Sprintf("import %s: %v", ev.Path, err))
				continue
			}
			w.Printf("synced %s\n", ev.Path)
		}
	}
}
