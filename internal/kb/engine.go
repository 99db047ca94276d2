// Package kb implements the knowledge-base engine: the mutation pipeline
// that keeps the record store and all secondary indexes consistent, and the
// query pipeline that turns structured queries into ranked results.
//
// Callers instantiate an Engine explicitly (no process-wide singleton) and
// use it under a single-writer/multi-reader discipline: reads may run
// concurrently, writes are serialized against everything else.
package kb

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/locchh/dkb/internal/chunk"
	kberrors "github.com/locchh/dkb/internal/errors"
	"github.com/locchh/dkb/internal/index"
	"github.com/locchh/dkb/internal/store"
	"github.com/locchh/dkb/internal/token"
)

// Engine is one open knowledge base. It owns the record store plus the
// keyword, tag, and path indexes. The indexes hold identifiers only and are
// rebuilt from the store tables on open, then patched on every mutation.
type Engine struct {
	mu sync.RWMutex

	store   *store.Store
	keyword *index.Keyword
	tags    *index.Tags
	paths   *index.Paths

	// summaries mirrors the document table without content, for date
	// filtering, ordering, and token budgeting without store round trips.
	summaries map[store.DocumentID]store.Summary

	logger *slog.Logger
}

// AddOptions configures Add.
type AddOptions struct {
	Tags     []string
	Metadata map[string]store.MetaValue

	// Chunking, when non-nil, splits the content into chunks on write.
	Chunking *chunk.Options

	// CreateOnly makes Add fail with Conflict if the path already exists.
	CreateOnly bool
}

// Stats is the read-only aggregate over the store and indexes.
type Stats struct {
	Documents    int64
	Chunks       int64
	Tokens       int64
	DistinctTags int
	StorageBytes int64
}

// Open opens the knowledge base backed by the file at path, or a
// memory-backed one if path is empty, and rebuilds all indexes.
func Open(path string) (*Engine, error) {
	st, err := store.Open(path)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		store:     st,
		keyword:   index.NewKeyword(),
		tags:      index.NewTags(),
		paths:     index.NewPaths(),
		summaries: make(map[store.DocumentID]store.Summary),
		logger:    slog.Default(),
	}

	start := time.Now()
	n := 0
	err = st.ForEach(context.Background(), func(doc *store.Document) error {
		e.indexDocument(doc)
		n++
		return nil
	})
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	e.logger.Debug("kb_opened",
		slog.String("path", path),
		slog.Int("documents", n),
		slog.Duration("rebuild", time.Since(start)))
	return e, nil
}

// indexDocument patches all in-memory indexes for doc. Callers hold the
// writer lock (or are inside Open, before the engine is shared).
func (e *Engine) indexDocument(doc *store.Document) {
	e.keyword.Index(doc.ID, doc.Content)
	e.paths.Add(doc.ID, doc.Path)
	e.tags.RemoveAll(doc.ID)
	for _, tag := range doc.Tags {
		e.tags.Add(doc.ID, tag)
	}
	e.summaries[doc.ID] = doc.Summary()
}

// deindexDocument removes all in-memory index entries for id.
func (e *Engine) deindexDocument(id store.DocumentID) {
	e.keyword.Remove(id)
	e.paths.Remove(id)
	e.tags.RemoveAll(id)
	delete(e.summaries, id)
}

// staged is a fully prepared write: validated, tokenized, and chunked
// without touching any shared state. stage can run concurrently for many
// documents; commit serializes under the writer lock.
type staged struct {
	doc        *store.Document
	chunks     []store.Chunk
	createOnly bool
}

// stage prepares a write. Everything that can fail on bad input fails here,
// before any state is touched.
func stage(path, content string, opts AddOptions) (staged, error) {
	if strings.TrimSpace(path) == "" {
		return staged{}, kberrors.New(kberrors.ErrCodeInvalidInput, "document path must not be empty", nil)
	}

	var chunks []store.Chunk
	if opts.Chunking != nil {
		pieces, err := chunk.Split(content, *opts.Chunking)
		if err != nil {
			return staged{}, err
		}
		chunks = piecesToChunks(store.DocID(path), pieces)
	}

	now := time.Now()
	doc := &store.Document{
		Path:       path,
		Content:    content,
		CreatedAt:  now,
		ModifiedAt: now,
		Tags:       normalizeTags(opts.Tags),
		Metadata:   opts.Metadata,
		TokenCount: token.Count(content),
		Size:       int64(len(content)),
	}
	return staged{doc: doc, chunks: chunks, createOnly: opts.CreateOnly}, nil
}

// commit writes a staged document: store transaction first, then the
// in-memory index patches, which cannot fail. A document is therefore
// never visible to Get but not to Search.
func (e *Engine) commit(ctx context.Context, sd staged) (*store.Document, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	stored, err := e.store.Put(ctx, sd.doc, sd.chunks, sd.createOnly)
	if err != nil {
		return nil, err
	}
	e.indexDocument(stored)

	e.logger.Debug("document_added",
		slog.String("path", stored.Path),
		slog.Int("tokens", stored.TokenCount),
		slog.Int("chunks", len(sd.chunks)))
	return stored, nil
}

// Add creates or overwrites the document at path.
func (e *Engine) Add(ctx context.Context, path, content string, opts AddOptions) (*store.Document, error) {
	sd, err := stage(path, content, opts)
	if err != nil {
		return nil, err
	}
	return e.commit(ctx, sd)
}

// Get returns the document at path.
func (e *Engine) Get(ctx context.Context, path string) (*store.Document, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.store.Get(ctx, path)
}

// List returns summaries of all documents ordered by path.
func (e *Engine) List(ctx context.Context) ([]store.Summary, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.store.List(ctx)
}

// Remove deletes the document at path together with its chunks and every
// index entry referencing it. A missing path is NotFound unless
// ignoreMissing is set.
func (e *Engine) Remove(ctx context.Context, path string, ignoreMissing bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	deleted, err := e.store.Delete(ctx, path)
	if err != nil {
		return err
	}
	if !deleted {
		if ignoreMissing {
			return nil
		}
		return kberrors.NotFound("document", path)
	}

	e.deindexDocument(store.DocID(path))

	e.logger.Debug("document_removed", slog.String("path", path))
	return nil
}

// Tag adds and removes tags on the document at path and refreshes its
// modified timestamp. Returns the resulting tag set.
func (e *Engine) Tag(ctx context.Context, path string, add, remove []string) ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	doc, err := e.store.Get(ctx, path)
	if err != nil {
		return nil, err
	}

	tagSet := make(map[string]struct{}, len(doc.Tags)+len(add))
	for _, t := range doc.Tags {
		tagSet[t] = struct{}{}
	}
	for _, t := range normalizeTags(add) {
		tagSet[t] = struct{}{}
	}
	for _, t := range remove {
		delete(tagSet, t)
	}

	tags := make([]string, 0, len(tagSet))
	for t := range tagSet {
		tags = append(tags, t)
	}
	sort.Strings(tags)

	now := time.Now()
	if err := e.store.UpdateTags(ctx, path, tags, now); err != nil {
		return nil, err
	}

	e.tags.RemoveAll(doc.ID)
	for _, t := range tags {
		e.tags.Add(doc.ID, t)
	}
	sum := e.summaries[doc.ID]
	sum.Tags = tags
	sum.ModifiedAt = now
	e.summaries[doc.ID] = sum

	return tags, nil
}

// Rechunk replaces all chunks of the document at path using the given
// options. Identical options on unchanged content produce identical chunk
// boundaries.
func (e *Engine) Rechunk(ctx context.Context, path string, opts chunk.Options) ([]store.Chunk, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	doc, err := e.store.Get(ctx, path)
	if err != nil {
		return nil, err
	}

	pieces, err := chunk.Split(doc.Content, opts)
	if err != nil {
		return nil, err
	}
	chunks := piecesToChunks(doc.ID, pieces)

	if err := e.store.ReplaceChunks(ctx, doc.ID, chunks); err != nil {
		return nil, err
	}
	return chunks, nil
}

// Chunks returns the chunks of the document at path in sequence order.
func (e *Engine) Chunks(ctx context.Context, path string) ([]store.Chunk, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	doc, err := e.store.Get(ctx, path)
	if err != nil {
		return nil, err
	}
	return e.store.ChunksFor(ctx, doc.ID)
}

// ChunkText materializes the text of a chunk from its parent content.
func (e *Engine) ChunkText(ctx context.Context, c store.Chunk) (string, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	doc, err := e.store.GetByID(ctx, c.DocID)
	if err != nil {
		return "", err
	}
	if c.Start < 0 || c.End > len(doc.Content) || c.Start > c.End {
		return "", kberrors.NotFound("chunk range", c.ID())
	}
	return doc.Content[c.Start:c.End], nil
}

// Clear removes every document, chunk, and index entry.
func (e *Engine) Clear(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.store.Clear(ctx); err != nil {
		return err
	}
	e.keyword.Clear()
	e.tags.Clear()
	e.paths.Clear()
	e.summaries = make(map[store.DocumentID]store.Summary)
	return nil
}

// Stats returns aggregate counts over the store and indexes.
func (e *Engine) Stats(ctx context.Context) (Stats, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	docs, chunks, tokens, err := e.store.Counts(ctx)
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		Documents:    docs,
		Chunks:       chunks,
		Tokens:       tokens,
		DistinctTags: e.tags.Distinct(),
		StorageBytes: e.store.SizeBytes(),
	}, nil
}

// SaveTo flushes the knowledge base to a file. Used to persist a
// memory-backed engine; the written file reopens with identical results.
func (e *Engine) SaveTo(path string) error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.store.SaveTo(path)
}

// Flush forces pending writes down to the store file.
func (e *Engine) Flush(ctx context.Context) error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.store.Flush(ctx)
}

// Path returns the backing file path; empty for a memory-backed engine.
func (e *Engine) Path() string {
	return e.store.Path()
}

// Close closes the underlying store. Idempotent.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.Close()
}

// piecesToChunks converts chunker output into store chunks for a document.
func piecesToChunks(docID store.DocumentID, pieces []chunk.Piece) []store.Chunk {
	chunks := make([]store.Chunk, len(pieces))
	for i, p := range pieces {
		chunks[i] = store.Chunk{
			DocID:      docID,
			Seq:        i,
			Start:      p.Start,
			End:        p.End,
			Heading:    p.Heading,
			TokenCount: p.TokenCount,
		}
	}
	return chunks
}

// normalizeTags dedupes, drops empties, and sorts.
func normalizeTags(tags []string) []string {
	set := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t != "" {
			set[t] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for t := range set {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
