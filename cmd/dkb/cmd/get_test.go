package cmd

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kberrors "github.com/locchh/dkb/internal/errors"
)

func TestGetCmd_TextOutput(t *testing.T) {
	kbFile := testKB(t)
	_, err := execDKB(t, kbFile, "hello world", "add", "notes/h.md", "--tags", "greeting")
	require.NoError(t, err)

	out, err := execDKB(t, kbFile, "", "get", "notes/h.md")

	require.NoError(t, err)
	assert.Contains(t, out, "notes/h.md")
	assert.Contains(t, out, "created")
	assert.Contains(t, out, "modified")
	assert.Contains(t, out, "greeting")
	assert.Contains(t, out, "hello world")
}

func TestGetCmd_JSONOutput(t *testing.T) {
	kbFile := testKB(t)
	_, err := execDKB(t, kbFile, "json body", "add", "j.md")
	require.NoError(t, err)

	out, err := execDKB(t, kbFile, "", "get", "j.md", "--format", "json")
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Equal(t, "j.md", doc["path"])
	assert.Equal(t, "json body", doc["content"])
	assert.EqualValues(t, 2, doc["token_count"])
}

func TestGetCmd_NotFound(t *testing.T) {
	kbFile := testKB(t)

	_, err := execDKB(t, kbFile, "", "get", "missing.md")

	require.Error(t, err)
	assert.Equal(t, kberrors.ErrCodeNotFound, kberrors.GetCode(err))
}
