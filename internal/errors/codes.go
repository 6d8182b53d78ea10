// Package errors provides structured error handling for swiftsearch.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors (service config and the user config document)
//   - 2XX: IO errors (file, disk, archive and subprocess)
//   - 4XX: Validation errors
//   - 5XX: Internal and engine errors
//   - 6XX: State errors (index not ready)
package errors

// Category defines error categories for classification.
type Category string

const (
	CategoryConfig     Category = "CONFIG"
	CategoryIO         Category = "IO"
	CategoryValidation Category = "VALIDATION"
	CategoryInternal   Category = "INTERNAL"
	// CategoryState marks operations attempted before the index is ready.
	CategoryState Category = "STATE"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates unrecoverable error, must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates operation failed but can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
	// SeverityInfo indicates informational only.
	SeverityInfo Severity = "INFO"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound    = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid     = "ERR_102_CONFIG_INVALID"
	ErrCodeUserConfigCorrupt = "ERR_103_USER_CONFIG_CORRUPT"
	ErrCodeUserNotFound      = "ERR_104_USER_NOT_FOUND"
	ErrCodeUserConfigMissing = "ERR_105_USER_CONFIG_MISSING"

	// IO errors (200-299)
	ErrCodeFileNotFound        = "ERR_201_FILE_NOT_FOUND"
	ErrCodeFilePermission      = "ERR_202_FILE_PERMISSION"
	ErrCodeDiskFull            = "ERR_203_DISK_FULL"
	ErrCodeIndexTooLarge       = "ERR_204_INDEX_TOO_LARGE"
	ErrCodeCorruptIndex        = "ERR_205_CORRUPT_INDEX"
	ErrCodeDecompressionFailed = "ERR_206_DECOMPRESSION_FAILED"
	ErrCodeSubprocessFailed    = "ERR_207_SUBPROCESS_FAILED"
	ErrCodeCompressionFailed   = "ERR_208_COMPRESSION_FAILED"

	// Validation errors (400-499)
	ErrCodeMessagesRequired = "ERR_401_MESSAGES_REQUIRED"
	ErrCodeMessagesNotArray = "ERR_402_MESSAGES_NOT_ARRAY"
	ErrCodeMessagesParse    = "ERR_403_MESSAGES_PARSE"
	ErrCodeQueryEmpty       = "ERR_404_QUERY_EMPTY"
	ErrCodeInvalidQuery     = "ERR_405_INVALID_QUERY"
	ErrCodeInvalidPath      = "ERR_406_INVALID_PATH"
	ErrCodeInvalidKey       = "ERR_407_INVALID_KEY"
	ErrCodeInvalidInput     = "ERR_408_INVALID_INPUT"

	// Internal errors (500-599)
	ErrCodeInternal        = "ERR_501_INTERNAL"
	ErrCodeEngineInit      = "ERR_502_ENGINE_INIT"
	ErrCodeSearchFailed    = "ERR_503_SEARCH_FAILED"
	ErrCodeTimestampFailed = "ERR_504_TIMESTAMP_FAILED"
	ErrCodeIndexFailed     = "ERR_505_INDEX_FAILED"
	ErrCodeSlotBusy        = "ERR_506_SLOT_BUSY"

	// State errors (600-699)
	ErrCodeNotInitialized = "ERR_601_NOT_INITIALIZED"
	ErrCodeDestroyed      = "ERR_602_DESTROYED"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	// "101" from "ERR_101_CONFIG_NOT_FOUND"
	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryIO
	case '4':
		return CategoryValidation
	case '6':
		return CategoryState
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeDiskFull, ErrCodeIndexTooLarge:
		return SeverityFatal
	case ErrCodeCorruptIndex, ErrCodeUserNotFound, ErrCodeUserConfigMissing:
		// recovered locally by rebuilding
		return SeverityWarning
	}

	if isRetryableCode(code) {
		return SeverityWarning
	}
	return SeverityError
}

// isRetryableCode checks if an error code represents a retryable error.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeNotInitialized, ErrCodeSubprocessFailed, ErrCodeSlotBusy:
		return true
	default:
		return false
	}
}
