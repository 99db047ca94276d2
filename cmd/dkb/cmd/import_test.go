package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/locchh/dkb/internal/kb"
	"github.com/locchh/dkb/internal/output"
	"github.com/locchh/dkb/internal/watch"
)

func writeImportTree(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return dir
}

func TestImportCmd_Folder(t *testing.T) {
	kbFile := testKB(t)
	dir := writeImportTree(t, map[string]string{
		"notes/a.md": "alpha notes",
		"notes/b.md": "beta notes",
		"raw/c.txt":  "plain text",
	})

	out, err := execDKB(t, kbFile, "", "import", dir)

	require.NoError(t, err)
	assert.Contains(t, out, "imported 3 added, 0 updated, 0 skipped")

	out, err = execDKB(t, kbFile, "", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "notes/a.md")
	assert.Contains(t, out, "raw/c.txt")
}

func TestImportCmd_Pattern(t *testing.T) {
	kbFile := testKB(t)
	dir := writeImportTree(t, map[string]string{
		"a.md":  "markdown",
		"b.txt": "text",
	})

	out, err := execDKB(t, kbFile, "", "import", dir, "--pattern", "*.md")

	require.NoError(t, err)
	assert.Contains(t, out, "imported 1 added")

	out, err = execDKB(t, kbFile, "", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "a.md")
	assert.NotContains(t, out, "b.txt")
}

func TestImportCmd_ReimportCountsUpdates(t *testing.T) {
	kbFile := testKB(t)
	dir := writeImportTree(t, map[string]string{"a.md": "first pass"})

	_, err := execDKB(t, kbFile, "", "import", dir)
	require.NoError(t, err)

	out, err := execDKB(t, kbFile, "", "import", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "0 added, 1 updated")
}

func TestImportCmd_Tags(t *testing.T) {
	kbFile := testKB(t)
	dir := writeImportTree(t, map[string]string{"a.md": "tagged on import"})

	_, err := execDKB(t, kbFile, "", "import", dir, "--tags", "imported")
	require.NoError(t, err)

	out, err := execDKB(t, kbFile, "", "search", "--tag", "imported")
	require.NoError(t, err)
	assert.Contains(t, out, "a.md")
}

func TestApplyWatchBatch_ParsesFrontmatterLikeImport(t *testing.T) {
	// Given: a frontmattered file already on disk and an empty engine
	dir := writeImportTree(t, map[string]string{
		"note.md": "---\ntags:\n    - exported\n---\nbody text\n",
	})
	engine, err := kb.Open("")
	require.NoError(t, err)
	defer engine.Close()

	// When: the watcher reports a write for it
	w := output.NewWithColor(new(bytes.Buffer), false)
	applyWatchBatch(context.Background(), w, engine, dir, kb.ImportOptions{},
		[]watch.Event{{Path: "note.md", Op: watch.OpWrite}})

	// Then: the synced document matches what a folder import would store
	doc, err := engine.Get(context.Background(), "note.md")
	require.NoError(t, err)
	assert.Equal(t, "body text\n", doc.Content)
	assert.Equal(t, []string{"exported"}, doc.Tags)
}

func TestApplyWatchBatch_RemovesDeletedFiles(t *testing.T) {
	dir := t.TempDir()
	engine, err := kb.Open("")
	require.NoError(t, err)
	defer engine.Close()

	_, err = engine.Add(context.Background(), "gone.md", "to be removed", kb.AddOptions{})
	require.NoError(t, err)

	w := output.NewWithColor(new(bytes.Buffer), false)
	applyWatchBatch(context.Background(), w, engine, dir, kb.ImportOptions{},
		[]watch.Event{{Path: "gone.md", Op: watch.OpRemove}})

	_, err = engine.Get(context.Background(), "gone.md")
	require.Error(t, err)
}

func TestExportCmd_MarkdownRoundTrip(t *testing.T) {
	kbFile := testKB(t)
	_, err := execDKB(t, kbFile, "exported body", "add", "docs/e.md", "--tags", "keep")
	require.NoError(t, err)

	exportDir := t.TempDir()
	out, err := execDKB(t, kbFile, "", "export", exportDir)
	require.NoError(t, err)
	assert.Contains(t, out, "exported 1 documents")

	// The exported file carries the tag in frontmatter and imports back
	// into an equivalent document.
	raw, err := os.ReadFile(filepath.Join(exportDir, "docs", "e.md"))
	require.NoError(t, err)
	assert.Contains(t, string(raw), "keep")
	assert.Contains(t, string(raw), "exported body")

	otherKB := filepath.Join(t.TempDir(), "other.db")
	_, err = execDKB(t, otherKB, "", "import", exportDir)
	require.NoError(t, err)

	content, err := execDKB(t, otherKB, "", "get", "docs/e.md", "--content")
	require.NoError(t, err)
	assert.Equal(t, "exported body", content)
}

func TestExportCmd_JSON(t *testing.T) {
	kbFile := testKB(t)
	_, err := execDKB(t, kbFile, "json export body", "add", "a.md")
	require.NoError(t, err)

	exportDir := t.TempDir()
	_, err = execDKB(t, kbFile, "", "export", exportDir, "--format", "json")
	require.NoError(t, err)

	raw, err := os.ReadFile(filepath.Join(exportDir, "kb-export.json"))
	require.NoError(t, err)
	assert.Contains(t, string(raw), "json export body")
}

func TestExportCmd_TagFilter(t *testing.T) {
	kbFile := testKB(t)
	_, err := execDKB(t, kbFile, "kept", "add", "keep.md", "--tags", "pub")
	require.NoError(t, err)
	_, err = execDKB(t, kbFile, "dropped", "add", "drop.md")
	require.NoError(t, err)

	exportDir := t.TempDir()
	out, err := execDKB(t, kbFile, "", "export", exportDir, "--tag", "pub")
	require.NoError(t, err)
	assert.Contains(t, out, "exported 1 documents")

	_, err = os.Stat(filepath.Join(exportDir, "drop.md"))
	assert.True(t, os.IsNotExist(err))
}
