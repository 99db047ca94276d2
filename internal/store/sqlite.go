package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/gofrs/flock"
	lru "github.com/hashicorp/golang-lru/v2"
	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	kberrors "github.com/locchh/dkb/internal/errors"
)

// DefaultCacheSize is the number of document bodies kept in the read cache.
const DefaultCacheSize = 256

// Store is the record store backing one knowledge base. An empty path opens
// a memory-backed store; otherwise the single file at path is the durable
// image. Both modes share the same table layout, so a memory store flushed
// with SaveTo reopens with identical query results.
type Store struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	closed bool

	lock  *flock.Flock
	cache *lru.Cache[string, *Document]
}

// validateIntegrity checks an existing database file before opening it.
// Returns nil if the file is absent (it will be created) or healthy.
func validateIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	db, err := sql.Open("sqlite", path+"?mode=ro")
	if err != nil {
		return fmt.Errorf("cannot open for validation: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check failed: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("database corrupted: %s", result)
	}

	// A non-empty file that carries tables but no kb_info was not written
	// by us (or lost its header); refuse rather than silently adopting it.
	var tables int
	if err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table'`).Scan(&tables); err != nil {
		return fmt.Errorf("cannot query schema: %w", err)
	}
	if tables > 0 {
		var n int
		if err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='kb_info'`).Scan(&n); err != nil {
			return fmt.Errorf("cannot query schema: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("kb_info table missing")
		}
	}

	return nil
}

// Open opens or creates a knowledge base store.
// If path is empty, the store is memory-backed and not durable.
// A corrupt file refuses to open; it is never replaced with an empty store.
func Open(path string) (*Store, error) {
	var dsn string
	var fileLock *flock.Flock

	if path == "" {
		dsn = ":memory:"
	} else {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, kberrors.IOFailure("create store directory", err)
		}

		if validErr := validateIntegrity(path); validErr != nil {
			slog.Error("store_open_refused",
				slog.String("path", path),
				slog.String("error", validErr.Error()))
			return nil, kberrors.CorruptStore(path, validErr)
		}

		// Cross-process guard: a second process gets StoreLocked instead of
		// silently sharing the writer.
		fileLock = flock.New(path + ".lock")
		locked, err := fileLock.TryLock()
		if err != nil {
			return nil, kberrors.IOFailure("acquire store lock", err)
		}
		if !locked {
			return nil, kberrors.New(kberrors.ErrCodeStoreLocked,
				fmt.Sprintf("store is locked by another process: %s", path), nil)
		}

		dsn = path + "?_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		if fileLock != nil {
			_ = fileLock.Unlock()
		}
		return nil, kberrors.IOFailure("open database", err)
	}

	// Single connection: SQLite has one writer and the in-memory DSN is
	// per-connection anyway.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			if fileLock != nil {
				_ = fileLock.Unlock()
			}
			return nil, kberrors.IOFailure("set pragma", err)
		}
	}

	cache, _ := lru.New[string, *Document](DefaultCacheSize)
	s := &Store{
		db:    db,
		path:  path,
		lock:  fileLock,
		cache: cache,
	}

	if err := s.initSchema(); err != nil {
		_ = db.Close()
		if fileLock != nil {
			_ = fileLock.Unlock()
		}
		return nil, err
	}

	return s, nil
}

// initSchema creates the document and chunk tables and verifies the
// persisted format version.
func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS kb_info (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS documents (
		id          TEXT PRIMARY KEY,
		path        TEXT NOT NULL UNIQUE,
		content     BLOB NOT NULL,
		created_at  INTEGER NOT NULL,
		modified_at INTEGER NOT NULL,
		tags        TEXT NOT NULL DEFAULT '[]',
		metadata    TEXT NOT NULL DEFAULT '{}',
		token_count INTEGER NOT NULL DEFAULT 0,
		size        INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_documents_modified ON documents(modified_at);

	CREATE TABLE IF NOT EXISTS chunks (
		doc_id      TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
		seq         INTEGER NOT NULL,
		start_offset INTEGER NOT NULL,
		end_offset  INTEGER NOT NULL,
		heading     TEXT NOT NULL DEFAULT '',
		token_count INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (doc_id, seq)
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return kberrors.IOFailure("initialize schema", err)
	}

	if _, err := s.db.Exec(
		`INSERT OR IGNORE INTO kb_info(key, value) VALUES ('format_version', ?)`,
		strconv.Itoa(FormatVersion)); err != nil {
		return kberrors.IOFailure("write format version", err)
	}

	var verStr string
	if err := s.db.QueryRow(`SELECT value FROM kb_info WHERE key = 'format_version'`).Scan(&verStr); err != nil {
		return kberrors.IOFailure("read format version", err)
	}
	ver, err := strconv.Atoi(verStr)
	if err != nil || ver > FormatVersion {
		return kberrors.CorruptStore(s.path,
			fmt.Errorf("unsupported format version %q (engine supports up to %d)", verStr, FormatVersion))
	}

	return nil
}

// Put inserts or overwrites a document together with its chunks in one
// transaction. On overwrite, the creation timestamp of the existing row is
// preserved and the modified timestamp refreshed. With createOnly set, an
// existing path yields a Conflict error and nothing is written.
// The stored document (with resolved timestamps) is returned.
func (s *Store) Put(ctx context.Context, doc *Document, chunks []Chunk, createOnly bool) (*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, kberrors.New(kberrors.ErrCodeStoreClosed, "store is closed", nil)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, kberrors.IOFailure("begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	stored := *doc
	stored.ID = DocID(doc.Path)

	var existingCreated int64
	err = tx.QueryRowContext(ctx,
		`SELECT created_at FROM documents WHERE path = ?`, doc.Path).Scan(&existingCreated)
	switch {
	case err == sql.ErrNoRows:
		// New document.
	case err != nil:
		return nil, kberrors.IOFailure("query existing document", err)
	case createOnly:
		return nil, kberrors.Conflict(doc.Path)
	default:
		stored.CreatedAt = time.Unix(0, existingCreated)
	}

	tagsJSON, err := json.Marshal(stored.Tags)
	if err != nil {
		return nil, kberrors.Internal("encode tags", err)
	}
	metaJSON, err := json.Marshal(stored.Metadata)
	if err != nil {
		return nil, kberrors.Internal("encode metadata", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO documents (id, path, content, created_at, modified_at, tags, metadata, token_count, size)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			content = excluded.content,
			modified_at = excluded.modified_at,
			tags = excluded.tags,
			metadata = excluded.metadata,
			token_count = excluded.token_count,
			size = excluded.size`,
		stored.ID, stored.Path, []byte(stored.Content),
		stored.CreatedAt.UnixNano(), stored.ModifiedAt.UnixNano(),
		string(tagsJSON), string(metaJSON), stored.TokenCount, stored.Size)
	if err != nil {
		return nil, kberrors.IOFailure("write document", err)
	}

	if err := replaceChunksTx(ctx, tx, stored.ID, chunks); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, kberrors.IOFailure("commit", err)
	}

	s.cache.Remove(stored.Path)
	return &stored, nil
}

// replaceChunksTx deletes and rewrites all chunk rows for a document.
func replaceChunksTx(ctx context.Context, tx *sql.Tx, docID DocumentID, chunks []Chunk) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE doc_id = ?`, docID); err != nil {
		return kberrors.IOFailure("delete chunks", err)
	}
	if len(chunks) == 0 {
		return nil
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (doc_id, seq, start_offset, end_offset, heading, token_count)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return kberrors.IOFailure("prepare chunk insert", err)
	}
	defer stmt.Close()

	for _, c := range chunks {
		if _, err := stmt.ExecContext(ctx, docID, c.Seq, c.Start, c.End, c.Heading, c.TokenCount); err != nil {
			return kberrors.IOFailure("write chunk", err)
		}
	}
	return nil
}

// ReplaceChunks atomically replaces every chunk of a document.
func (s *Store) ReplaceChunks(ctx context.Context, docID DocumentID, chunks []Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return kberrors.New(kberrors.ErrCodeStoreClosed, "store is closed", nil)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return kberrors.IOFailure("begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := replaceChunksTx(ctx, tx, docID, chunks); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return kberrors.IOFailure("commit", err)
	}
	return nil
}

// UpdateTags rewrites a document's tag set and refreshes its modified
// timestamp.
func (s *Store) UpdateTags(ctx context.Context, path string, tags []string, modifiedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return kberrors.New(kberrors.ErrCodeStoreClosed, "store is closed", nil)
	}

	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return kberrors.Internal("encode tags", err)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE documents SET tags = ?, modified_at = ? WHERE path = ?`,
		string(tagsJSON), modifiedAt.UnixNano(), path)
	if err != nil {
		return kberrors.IOFailure("update tags", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return kberrors.NotFound("document", path)
	}

	s.cache.Remove(path)
	return nil
}

// Get returns the document at path, or NotFound. The returned value is a
// private copy; callers may mutate it freely.
func (s *Store) Get(ctx context.Context, path string) (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, kberrors.New(kberrors.ErrCodeStoreClosed, "store is closed", nil)
	}

	if doc, ok := s.cache.Get(path); ok {
		return cloneDocument(doc), nil
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, path, content, created_at, modified_at, tags, metadata, token_count, size
		FROM documents WHERE path = ?`, path)

	doc, err := scanDocument(row)
	if err == sql.ErrNoRows {
		return nil, kberrors.NotFound("document", path)
	}
	if err != nil {
		return nil, kberrors.IOFailure("read document", err)
	}

	s.cache.Add(path, doc)
	return cloneDocument(doc), nil
}

// GetByID returns the document with the given id, or NotFound. Chunk
// references carry ids, not paths; this resolves them.
func (s *Store) GetByID(ctx context.Context, id DocumentID) (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, kberrors.New(kberrors.ErrCodeStoreClosed, "store is closed", nil)
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, path, content, created_at, modified_at, tags, metadata, token_count, size
		FROM documents WHERE id = ?`, id)

	doc, err := scanDocument(row)
	if err == sql.ErrNoRows {
		return nil, kberrors.NotFound("document", string(id))
	}
	if err != nil {
		return nil, kberrors.IOFailure("read document", err)
	}
	return doc, nil
}

// Delete removes a document and (via cascade) all of its chunks.
// Returns false without error if no document existed at path.
func (s *Store) Delete(ctx context.Context, path string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false, kberrors.New(kberrors.ErrCodeStoreClosed, "store is closed", nil)
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE path = ?`, path)
	if err != nil {
		return false, kberrors.IOFailure("delete document", err)
	}
	n, _ := res.RowsAffected()

	s.cache.Remove(path)
	return n > 0, nil
}

// List returns summaries of all documents ordered by path.
func (s *Store) List(ctx context.Context) ([]Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, kberrors.New(kberrors.ErrCodeStoreClosed, "store is closed", nil)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, path, created_at, modified_at, tags, token_count, size
		FROM documents ORDER BY path`)
	if err != nil {
		return nil, kberrors.IOFailure("list documents", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var sum Summary
		var created, modified int64
		var tagsJSON string
		if err := rows.Scan(&sum.ID, &sum.Path, &created, &modified, &tagsJSON, &sum.TokenCount, &sum.Size); err != nil {
			return nil, kberrors.IOFailure("scan summary", err)
		}
		sum.CreatedAt = time.Unix(0, created)
		sum.ModifiedAt = time.Unix(0, modified)
		if err := json.Unmarshal([]byte(tagsJSON), &sum.Tags); err != nil {
			return nil, kberrors.CorruptStore(s.path, fmt.Errorf("tags for %s: %w", sum.Path, err))
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

// ForEach streams every document (including content) to fn in path order.
// Used to rebuild the in-memory indexes on open.
func (s *Store) ForEach(ctx context.Context, fn func(*Document) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return kberrors.New(kberrors.ErrCodeStoreClosed, "store is closed", nil)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, path, content, created_at, modified_at, tags, metadata, token_count, size
		FROM documents ORDER BY path`)
	if err != nil {
		return kberrors.IOFailure("scan documents", err)
	}
	defer rows.Close()

	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return kberrors.IOFailure("scan document", err)
		}
		if err := fn(doc); err != nil {
			return err
		}
	}
	return rows.Err()
}

// ChunksFor returns the chunks of a document ordered by sequence index.
func (s *Store) ChunksFor(ctx context.Context, docID DocumentID) ([]Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, kberrors.New(kberrors.ErrCodeStoreClosed, "store is closed", nil)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT doc_id, seq, start_offset, end_offset, heading, token_count
		FROM chunks WHERE doc_id = ? ORDER BY seq`, docID)
	if err != nil {
		return nil, kberrors.IOFailure("read chunks", err)
	}
	defer rows.Close()

	var out []Chunk
	for rows.Next() {
		var c Chunk
		if err := rows.Scan(&c.DocID, &c.Seq, &c.Start, &c.End, &c.Heading, &c.TokenCount); err != nil {
			return nil, kberrors.IOFailure("scan chunk", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Counts returns document, chunk, and total token counts.
func (s *Store) Counts(ctx context.Context) (docs, chunks, tokens int64, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, 0, 0, kberrors.New(kberrors.ErrCodeStoreClosed, "store is closed", nil)
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(token_count), 0) FROM documents`)
	if err = row.Scan(&docs, &tokens); err != nil {
		return 0, 0, 0, kberrors.IOFailure("count documents", err)
	}
	if err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&chunks); err != nil {
		return 0, 0, 0, kberrors.IOFailure("count chunks", err)
	}
	return docs, chunks, tokens, nil
}

// Clear removes every document and chunk.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return kberrors.New(kberrors.ErrCodeStoreClosed, "store is closed", nil)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return kberrors.IOFailure("begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks`); err != nil {
		return kberrors.IOFailure("clear chunks", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM documents`); err != nil {
		return kberrors.IOFailure("clear documents", err)
	}
	if err := tx.Commit(); err != nil {
		return kberrors.IOFailure("commit", err)
	}

	s.cache.Purge()
	return nil
}

// SaveTo writes a compact copy of the store to path. This is how a
// memory-backed store is flushed to a durable file; the copy reopens with
// identical query results.
func (s *Store) SaveTo(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return kberrors.New(kberrors.ErrCodeStoreClosed, "store is closed", nil)
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return kberrors.IOFailure("replace existing file", err)
	}
	if _, err := s.db.Exec(`VACUUM INTO ?`, path); err != nil {
		return kberrors.IOFailure("flush store", err)
	}
	return nil
}

// Flush checkpoints the WAL into the main database file, so the single
// store file is complete on disk. No-op for a memory-backed store.
func (s *Store) Flush(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return kberrors.New(kberrors.ErrCodeStoreClosed, "store is closed", nil)
	}
	if s.path == "" {
		return nil
	}
	if _, err := s.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return kberrors.IOFailure("checkpoint", err)
	}
	return nil
}

// SizeBytes reports the backing storage size. For the memory mode this is
// the page-accounted image size.
func (s *Store) SizeBytes() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0
	}

	if s.path != "" {
		if info, err := os.Stat(s.path); err == nil {
			return info.Size()
		}
		return 0
	}

	var pageCount, pageSize int64
	if err := s.db.QueryRow(`PRAGMA page_count`).Scan(&pageCount); err != nil {
		return 0
	}
	if err := s.db.QueryRow(`PRAGMA page_size`).Scan(&pageSize); err != nil {
		return 0
	}
	return pageCount * pageSize
}

// Path returns the backing file path; empty for a memory-backed store.
func (s *Store) Path() string {
	return s.path
}

// Close checkpoints and closes the store. Idempotent.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.cache.Purge()

	var closeErr error
	if s.db != nil {
		_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
		closeErr = s.db.Close()
	}
	if s.lock != nil {
		_ = s.lock.Unlock()
	}
	return closeErr
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*Document, error) {
	var doc Document
	var content []byte
	var created, modified int64
	var tagsJSON, metaJSON string

	err := row.Scan(&doc.ID, &doc.Path, &content, &created, &modified,
		&tagsJSON, &metaJSON, &doc.TokenCount, &doc.Size)
	if err != nil {
		return nil, err
	}

	doc.Content = string(content)
	doc.CreatedAt = time.Unix(0, created)
	doc.ModifiedAt = time.Unix(0, modified)
	if err := json.Unmarshal([]byte(tagsJSON), &doc.Tags); err != nil {
		return nil, fmt.Errorf("decode tags: %w", err)
	}
	if err := json.Unmarshal([]byte(metaJSON), &doc.Metadata); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	return &doc, nil
}

func cloneDocument(doc *Document) *Document {
	out := *doc
	out.Tags = append([]string(nil), doc.Tags...)
	if doc.Metadata != nil {
		out.Metadata = make(map[string]MetaValue, len(doc.Metadata))
		for k, v := range doc.Metadata {
			out.Metadata[k] = v
		}
	}
	return &out
}
