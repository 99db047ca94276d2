// Package watch observes a folder for changes so import --watch can keep
// the knowledge base in sync with the files on disk.
package watch

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	kberrors "github.com/locchh/dkb/internal/errors"
)

// Op is the coalesced change kind for one path.
type Op int

const (
	// OpWrite means the file exists and should be (re)imported.
	OpWrite Op = iota
	// OpRemove means the file is gone and should be removed.
	OpRemove
)

func (op Op) String() string {
	if op == OpRemove {
		return "REMOVE"
	}
	return "WRITE"
}

// Event is one coalesced change, with the path relative to the watch root.
type Event struct {
	Path string
	Op   Op
}

// DefaultDebounce is the event coalescing window.
const DefaultDebounce = 500 * time.Millisecond

// Watcher watches a directory tree recursively and emits debounced event
// batches. Rapid sequences for one path collapse: a write followed by a
// remove emits only the remove, a remove followed by a write only the write.
type Watcher struct {
	root     string
	debounce time.Duration
	fsw      *fsnotify.Watcher
	logger   *slog.Logger

	mu      sync.Mutex
	pending map[string]Op
	timer   *time.Timer
	stopped bool

	events chan []Event
	errs   chan error

	closeOnce sync.Once
}

// New creates a watcher over root. Call Run to start delivery.
func New(root string, debounce time.Duration) (*Watcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, kberrors.IOFailure("create watcher", err)
	}

	w := &Watcher{
		root:     root,
		debounce: debounce,
		fsw:      fsw,
		logger:   slog.Default(),
		pending:  make(map[string]Op),
		events:   make(chan []Event, 16),
		errs:     make(chan error, 16),
	}
	if err := w.addRecursive(root); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	return w, nil
}

// addRecursive registers root and every non-hidden subdirectory.
func (w *Watcher) addRecursive(root string) error {
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") && p != root {
			return filepath.SkipDir
		}
		return w.fsw.Add(p)
	})
	if err != nil {
		return kberrors.IOFailure("watch "+root, err)
	}
	return nil
}

// Events delivers debounced batches. Closed when Run returns.
func (w *Watcher) Events() <-chan []Event {
	return w.events
}

// Errors delivers non-fatal watcher errors.
func (w *Watcher) Errors() <-chan error {
	return w.errs
}

// Run processes filesystem notifications until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) {
	defer w.closeChannels()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			select {
			case w.errs <- err:
			default:
			}
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	name := filepath.Base(ev.Name)
	if strings.HasPrefix(name, ".") {
		return
	}

	// New directories must be added to the watch set before their
	// contents produce events.
	if ev.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := w.addRecursive(ev.Name); err != nil {
				select {
				case w.errs <- err:
				default:
				}
			}
			return
		}
	}

	rel, err := filepath.Rel(w.root, ev.Name)
	if err != nil {
		return
	}
	rel = filepath.ToSlash(rel)

	switch {
	case ev.Op.Has(fsnotify.Create), ev.Op.Has(fsnotify.Write):
		w.add(rel, OpWrite)
	case ev.Op.Has(fsnotify.Remove), ev.Op.Has(fsnotify.Rename):
		w.add(rel, OpRemove)
	}
}

// add records a pending change, replacing any earlier op for the path, and
// (re)arms the flush timer.
func (w *Watcher) add(path string, op Op) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.pending[path] = op
	if w.timer == nil {
		w.timer = time.AfterFunc(w.debounce, w.flush)
	} else {
		w.timer.Reset(w.debounce)
	}
}

// flush emits everything pending as one batch.
func (w *Watcher) flush() {
	w.mu.Lock()
	if w.stopped || len(w.pending) == 0 {
		w.mu.Unlock()
		return
	}
	batch := make([]Event, 0, len(w.pending))
	for path, op := range w.pending {
		batch = append(batch, Event{Path: path, Op: op})
	}
	w.pending = make(map[string]Op)

	// The send is non-blocking, so holding the lock keeps it ordered
	// against closeChannels without stalling the notify loop.
	select {
	case w.events <- batch:
		w.logger.Debug("watch_batch", slog.Int("events", len(batch)))
	default:
		// Receiver fell behind; drop rather than block the notify loop.
		w.logger.Warn("watch_batch_dropped", slog.Int("events", len(batch)))
	}
	w.mu.Unlock()
}

func (w *Watcher) closeChannels() {
	w.closeOnce.Do(func() {
		w.mu.Lock()
		w.stopped = true
		if w.timer != nil {
			w.timer.Stop()
		}
		w.mu.Unlock()
		_ = w.fsw.Close()
		close(w.events)
		close(w.errs)
	})
}
