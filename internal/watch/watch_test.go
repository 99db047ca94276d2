package watch

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestWatcher(t *testing.T, root string) *Watcher {
	t.Helper()
	w, err := New(root, 50*time.Millisecond)
	require.NoError(t, err)
	return w
}

func collectBatch(t *testing.T, w *Watcher, timeout time.Duration) []Event {
	t.Helper()
	select {
	case batch := <-w.Events():
		return batch
	case <-time.After(timeout):
		t.Fatal("timed out waiting for event batch")
		return nil
	}
}

func TestWatcher_EmitsWriteForNewFile(t *testing.T) {
	root := t.TempDir()
	w := newTestWatcher(t, root)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	require.NoError(t, os.WriteFile(filepath.Join(root, "note.md"), []byte("hello"), 0o644))

	batch := collectBatch(t, w, 5*time.Second)
	require.NotEmpty(t, batch)
	assert.Equal(t, Event{Path: "note.md", Op: OpWrite}, batch[0])
}

func TestWatcher_CoalescesPerPath(t *testing.T) {
	w := &Watcher{
		debounce: time.Hour, // never fires; flush is driven manually
		pending:  make(map[string]Op),
		events:   make(chan []Event, 1),
	}
	w.logger = discardLogger()

	w.add("a.md", OpWrite)
	w.add("a.md", OpRemove)
	w.add("b.md", OpRemove)
	w.add("b.md", OpWrite)
	w.timer.Stop()
	w.flush()

	batch := collectBatch(t, w, time.Second)
	require.Len(t, batch, 2)

	got := map[string]Op{}
	for _, ev := range batch {
		got[ev.Path] = ev.Op
	}
	// The last op per path wins.
	assert.Equal(t, OpRemove, got["a.md"])
	assert.Equal(t, OpWrite, got["b.md"])
}

func TestWatcher_FlushWithoutPendingIsNoop(t *testing.T) {
	w := &Watcher{
		pending: make(map[string]Op),
		events:  make(chan []Event, 1),
	}
	w.logger = discardLogger()

	w.flush()
	select {
	case batch := <-w.Events():
		t.Fatalf("unexpected batch: %v", batch)
	default:
	}
}

func TestOp_String(t *testing.T) {
	assert.Equal(t, "WRITE", OpWrite.String())
	assert.Equal(t, "REMOVE", OpRemove.String())
}
