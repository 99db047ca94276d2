// Package errors provides structured error handling for dkb.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: Store and IO errors
//   - 4XX: Validation and lookup errors
//   - 5XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryStore indicates store and file I/O errors.
	CategoryStore Category = "STORE"
	// CategoryValidation indicates input validation and lookup errors.
	CategoryValidation Category = "VALIDATION"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound     = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid      = "ERR_102_CONFIG_INVALID"
	ErrCodeInvalidChunkParams = "ERR_103_INVALID_CHUNK_PARAMS"

	// Store and IO errors (200-299)
	ErrCodeIOFailure    = "ERR_201_IO_FAILURE"
	ErrCodeCorruptStore = "ERR_202_CORRUPT_STORE"
	ErrCodeStoreClosed  = "ERR_203_STORE_CLOSED"
	ErrCodeStoreLocked  = "ERR_204_STORE_LOCKED"

	// Validation and lookup errors (400-499)
	ErrCodeNotFound     = "ERR_401_NOT_FOUND"
	ErrCodeConflict     = "ERR_402_CONFLICT"
	ErrCodeInvalidInput = "ERR_403_INVALID_INPUT"
	ErrCodeInvalidQuery = "ERR_404_INVALID_QUERY"

	// Internal errors (500-599)
	ErrCodeInternal = "ERR_501_INTERNAL"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryStore
	case '4':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}
