package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kberrors "github.com/locchh/dkb/internal/errors"
)

func TestTagCmd_AddAndRemove(t *testing.T) {
	kbFile := testKB(t)
	_, err := execDKB(t, kbFile, "body", "add", "n.md", "--tags", "draft")
	require.NoError(t, err)

	out, err := execDKB(t, kbFile, "", "tag", "n.md", "--add", "go,lang", "--remove", "draft")

	require.NoError(t, err)
	assert.Contains(t, out, "n.md: go, lang")
	assert.NotContains(t, out, "draft")
}

func TestTagCmd_RemoveAll(t *testing.T) {
	kbFile := testKB(t)
	_, err := execDKB(t, kbFile, "body", "add", "n.md", "--tags", "only")
	require.NoError(t, err)

	out, err := execDKB(t, kbFile, "", "tag", "n.md", "--remove", "only")

	require.NoError(t, err)
	assert.Contains(t, out, "no tags")
}

func TestTagCmd_NoFlags(t *testing.T) {
	kbFile := testKB(t)
	_, err := execDKB(t, kbFile, "body", "add", "n.md")
	require.NoError(t, err)

	_, err = execDKB(t, kbFile, "", "tag", "n.md")

	require.Error(t, err)
	assert.Equal(t, kberrors.ErrCodeInvalidInput, kberrors.GetCode(err))
}

func TestTagCmd_MissingDocument(t *testing.T) {
	kbFile := testKB(t)

	_, err := execDKB(t, kbFile, "", "tag", "ghost.md", "--add", "x")

	require.Error(t, err)
	assert.Equal(t, kberrors.ErrCodeNotFound, kberrors.GetCode(err))
}

func TestRemoveCmd_DeletesDocument(t *testing.T) {
	kbFile := testKB(t)
	_, err := execDKB(t, kbFile, "body", "add", "n.md")
	require.NoError(t, err)

	out, err := execDKB(t, kbFile, "", "rm", "n.md")
	require.NoError(t, err)
	assert.Contains(t, out, "removed n.md")

	_, err = execDKB(t, kbFile, "", "get", "n.md")
	require.Error(t, err)
	assert.Equal(t, kberrors.ErrCodeNotFound, kberrors.GetCode(err))
}

func TestRemoveCmd_Missing(t *testing.T) {
	kbFile := testKB(t)

	_, err := execDKB(t, kbFile, "", "rm", "ghost.md")
	require.Error(t, err)
	assert.Equal(t, kberrors.ErrCodeNotFound, kberrors.GetCode(err))

	_, err = execDKB(t, kbFile, "", "rm", "ghost.md", "--ignore-missing")
	require.NoError(t, err)
}

func TestRemoveCmd_MultiplePaths(t *testing.T) {
	kbFile := testKB(t)
	for _, p := range []string{"a.md", "b.md"} {
		_, err := execDKB(t, kbFile, "body", "add", p)
		require.NoError(t, err)
	}

	out, err := execDKB(t, kbFile, "", "rm", "a.md", "b.md")

	require.NoError(t, err)
	assert.Contains(t, out, "removed a.md")
	assert.Contains(t, out, "removed b.md")
}
