package cmd

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListCmd_Empty(t *testing.T) {
	kbFile := testKB(t)

	out, err := execDKB(t, kbFile, "", "list")

	require.NoError(t, err)
	assert.Contains(t, out, "knowledge base is empty")
}

func TestListCmd_SortedByPath(t *testing.T) {
	kbFile := testKB(t)
	for _, path := range []string{"b.md", "a.md", "c.md"} {
		_, err := execDKB(t, kbFile, "content of "+path, "add", path)
		require.NoError(t, err)
	}

	out, err := execDKB(t, kbFile, "", "list")
	require.NoError(t, err)

	// Then: one line per document in path order, plus a count line
	assert.Less(t, strings.Index(out, "a.md"), strings.Index(out, "b.md"))
	assert.Less(t, strings.Index(out, "b.md"), strings.Index(out, "c.md"))
	assert.Contains(t, out, "3 documents")
}

func TestListCmd_TagFilter(t *testing.T) {
	kbFile := testKB(t)
	_, err := execDKB(t, kbFile, "kept", "add", "keep.md", "--tags", "pub")
	require.NoError(t, err)
	_, err = execDKB(t, kbFile, "other", "add", "other.md")
	require.NoError(t, err)

	out, err := execDKB(t, kbFile, "", "list", "--tag", "pub")

	require.NoError(t, err)
	assert.Contains(t, out, "keep.md")
	assert.NotContains(t, out, "other.md")
	assert.Contains(t, out, "1 documents")
}

func TestListCmd_PathFilter(t *testing.T) {
	kbFile := testKB(t)
	_, err := execDKB(t, kbFile, "a", "add", "docs/a.md")
	require.NoError(t, err)
	_, err = execDKB(t, kbFile, "b", "add", "notes/b.md")
	require.NoError(t, err)

	out, err := execDKB(t, kbFile, "", "list", "--path", "docs/*")

	require.NoError(t, err)
	assert.Contains(t, out, "docs/a.md")
	assert.NotContains(t, out, "notes/b.md")
}

func TestListCmd_FilterNoMatches(t *testing.T) {
	kbFile := testKB(t)
	_, err := execDKB(t, kbFile, "a", "add", "a.md")
	require.NoError(t, err)

	out, err := execDKB(t, kbFile, "", "list", "--tag", "absent")

	require.NoError(t, err)
	assert.Contains(t, out, "no matching documents")
}

func TestListCmd_JSONOutput(t *testing.T) {
	kbFile := testKB(t)
	_, err := execDKB(t, kbFile, "one two three", "add", "x.md", "--tags", "num")
	require.NoError(t, err)

	out, err := execDKB(t, kbFile, "", "list", "--format", "json")
	require.NoError(t, err)

	var entries []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "x.md", entries[0]["path"])
	assert.EqualValues(t, 3, entries[0]["token_count"])
}
