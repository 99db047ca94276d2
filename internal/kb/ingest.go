package kb

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/locchh/dkb/internal/chunk"
	kberrors "github.com/locchh/dkb/internal/errors"
	"github.com/locchh/dkb/internal/index"
	"github.com/locchh/dkb/internal/store"
)

// Walker enumerates importable files under a root. Implementations return
// slash-separated paths relative to the root, in deterministic order.
type Walker interface {
	Walk(root, pattern string) ([]WalkEntry, error)
}

// WalkEntry is one file found by a Walker.
type WalkEntry struct {
	Path    string // relative, slash-separated
	Content []byte
}

// DirWalker walks a directory tree on the local filesystem, skipping
// hidden entries and anything that is not a regular file.
type DirWalker struct{}

var _ Walker = DirWalker{}

func (DirWalker) Walk(root, pattern string) ([]WalkEntry, error) {
	var matcher func(string) bool
	if pattern != "" {
		re, err := index.CompileGlob(pattern)
		if err != nil {
			return nil, err
		}
		matcher = re.MatchString
	}

	var entries []WalkEntry
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if strings.HasPrefix(d.Name(), ".") && p != root {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if matcher != nil && !matcher(rel) {
			return nil
		}
		content, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		entries = append(entries, WalkEntry{Path: rel, Content: content})
		return nil
	})
	if err != nil {
		return nil, kberrors.IOFailure("walk "+root, err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	return entries, nil
}

// ImportOptions configures ImportFolder.
type ImportOptions struct {
	// Pattern filters relative paths with the search glob syntax. Empty
	// imports everything the walker yields.
	Pattern string

	// Tags are applied to every imported document, in addition to tags
	// parsed from frontmatter.
	Tags []string

	// Chunking, when non-nil, chunks every imported document.
	Chunking *chunk.Options

	// Walker overrides the filesystem walker. Nil uses DirWalker.
	Walker Walker

	// Concurrency bounds the parallel staging workers. Zero or negative
	// uses a small default.
	Concurrency int
}

// ImportResult reports the outcome of a folder import.
type ImportResult struct {
	Added   int
	Updated int
	Skipped int
}

const defaultImportConcurrency = 4

// ImportFolder ingests every matching file under root. Staging (frontmatter
// parsing, chunking, tokenization) runs in parallel; commits are serialized
// so the usual mutation pipeline applies unchanged. Files with YAML
// frontmatter have tags and metadata restored from it, which makes an
// exported tree import back to an equivalent knowledge base.
func (e *Engine) ImportFolder(ctx context.Context, root string, opts ImportOptions) (ImportResult, error) {
	walker := opts.Walker
	if walker == nil {
		walker = DirWalker{}
	}
	entries, err := walker.Walk(root, opts.Pattern)
	if err != nil {
		return ImportResult{}, err
	}

	workers := opts.Concurrency
	if workers <= 0 {
		workers = defaultImportConcurrency
	}

	type slot struct {
		sd   staged
		skip bool
	}
	slots := make([]slot, len(entries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, entry := range entries {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			path, content, add, err := prepareEntry(entry, opts)
			if err != nil {
				return err
			}
			if strings.TrimSpace(content) == "" {
				slots[i].skip = true
				return nil
			}
			sd, err := stage(path, content, add)
			if err != nil {
				return err
			}
			slots[i].sd = sd
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return ImportResult{}, err
	}

	var res ImportResult
	for _, s := range slots {
		if s.skip {
			res.Skipped++
			continue
		}
		existed := e.exists(s.sd.doc.Path)
		if _, err := e.commit(ctx, s.sd); err != nil {
			return res, err
		}
		if existed {
			res.Updated++
		} else {
			res.Added++
		}
	}

	e.logger.Info("folder_imported",
		slog.String("root", root),
		slog.Int("added", res.Added),
		slog.Int("updated", res.Updated),
		slog.Int("skipped", res.Skipped))
	return res, nil
}

// exists reports whether a document path is currently indexed.
func (e *Engine) exists(path string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.summaries[store.DocID(path)]
	return ok
}

// prepareEntry converts one walked file into Add inputs, splitting off
// YAML frontmatter when present.
func prepareEntry(entry WalkEntry, opts ImportOptions) (string, string, AddOptions, error) {
	content := string(entry.Content)
	add := AddOptions{Tags: opts.Tags, Chunking: opts.Chunking}

	body, fm, err := parseFrontmatter(content)
	if err != nil {
		return "", "", AddOptions{}, kberrors.New(kberrors.ErrCodeInvalidInput,
			"invalid frontmatter in "+entry.Path, err)
	}
	if fm != nil {
		content = body
		add.Tags = append(append([]string(nil), add.Tags...), fm.Tags...)
		add.Metadata = fm.metaValues()
	}
	return entry.Path, content, add, nil
}

// ImportFile ingests a single file through the same preparation path as
// ImportFolder, so a file re-synced by watch mode produces the same
// document as the initial folder import.
func (e *Engine) ImportFile(ctx context.Context, path string, content []byte, opts ImportOptions) (*store.Document, error) {
	p, body, add, err := prepareEntry(WalkEntry{Path: path, Content: content}, opts)
	if err != nil {
		return nil, err
	}
	return e.Add(ctx, p, body, add)
}
