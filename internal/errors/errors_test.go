package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_DerivesCategory(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		category Category
	}{
		{"config code", ErrCodeConfigInvalid, CategoryConfig},
		{"store code", ErrCodeCorruptStore, CategoryStore},
		{"validation code", ErrCodeNotFound, CategoryValidation},
		{"internal code", ErrCodeInternal, CategoryInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code, "boom", nil)
			assert.Equal(t, tt.category, err.Category)
		})
	}
}

func TestKBError_ErrorFormat(t *testing.T) {
	err := NotFound("document", "docs/missing.md")
	assert.Equal(t, "[ERR_401_NOT_FOUND] document not found: docs/missing.md", err.Error())
}

func TestKBError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("disk on fire")
	err := IOFailure("write", cause)

	require.ErrorIs(t, err, cause)
	assert.Equal(t, cause, stderrors.Unwrap(err))
}

func TestKBError_IsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("outer: %w", NotFound("document", "a.md"))

	assert.True(t, IsNotFound(err))
	assert.False(t, IsConflict(err))
	assert.True(t, stderrors.Is(err, New(ErrCodeNotFound, "anything", nil)))
}

func TestPredicates(t *testing.T) {
	assert.True(t, IsConflict(Conflict("a.md")))
	assert.True(t, IsInvalidConfig(InvalidConfig("overlap must be less than size")))
	assert.True(t, IsCorruptStore(CorruptStore("kb.db", nil)))
	assert.False(t, IsNotFound(nil))
	assert.False(t, IsNotFound(fmt.Errorf("plain")))
}

func TestGetCode(t *testing.T) {
	assert.Equal(t, ErrCodeConflict, GetCode(Conflict("a.md")))
	assert.Equal(t, ErrCodeInternal, GetCode(fmt.Errorf("plain")))
}

func TestWithDetail(t *testing.T) {
	err := New(ErrCodeInvalidInput, "bad tag", nil).
		WithDetail("tag", "").
		WithDetail("op", "add")

	assert.Equal(t, "", err.Details["tag"])
	assert.Equal(t, "add", err.Details["op"])
}

func TestWrap_NilIsNil(t *testing.T) {
	assert.Nil(t, Wrap(ErrCodeIOFailure, nil))
}
