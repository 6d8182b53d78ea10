package errors

import (
	stderrors "errors"
	"fmt"
)

// SearchError is the structured error type returned across swiftsearch.
// Message is the bare human text; front-ends receive it verbatim as the
// detail of a failed command.
type SearchError struct {
	// Code is the unique error code (e.g., "ERR_601_NOT_INITIALIZED").
	Code string

	Message string

	Category Category

	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	Cause error

	Retryable bool

	// Suggestion is an actionable hint for CLI users.
	Suggestion string
}

// Error implements the error interface.
func (e *SearchError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *SearchError) Unwrap() error {
	return e.Cause
}

// Is matches by code, so sentinel values built with New work with errors.Is.
func (e *SearchError) Is(target error) bool {
	if t, ok := target.(*SearchError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
func (e *SearchError) WithDetail(key, value string) *SearchError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
func (e *SearchError) WithSuggestion(suggestion string) *SearchError {
	e.Suggestion = suggestion
	return e
}

// New creates a SearchError. Category, severity and the retryable flag are
// derived from the code.
func New(code string, message string, cause error) *SearchError {
	return &SearchError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a SearchError from an existing error, reusing its text.
func Wrap(code string, err error) *SearchError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *SearchError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// IOError creates an I/O-related error.
func IOError(message string, cause error) *SearchError {
	return New(ErrCodeFileNotFound, message, cause)
}

// ValidationError creates an input validation error.
func ValidationError(message string, cause error) *SearchError {
	return New(ErrCodeInvalidInput, message, cause)
}

// NotReady creates a not-initialized error carrying message.
func NotReady(message string) *SearchError {
	return New(ErrCodeNotInitialized, message, nil)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *SearchError {
	return New(ErrCodeInternal, message, cause)
}

// As extracts the first SearchError in err's chain.
func As(err error) (*SearchError, bool) {
	var se *SearchError
	if stderrors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// IsRetryable reports whether err carries the retryable flag.
func IsRetryable(err error) bool {
	if se, ok := As(err); ok {
		return se.Retryable
	}
	return false
}

// IsFatal checks if an error has fatal severity.
func IsFatal(err error) bool {
	if se, ok := As(err); ok {
		return se.Severity == SeverityFatal
	}
	return false
}

// HasCode reports whether any SearchError in err's chain has code.
func HasCode(err error, code string) bool {
	return stderrors.Is(err, &SearchError{Code: code})
}

// GetCode extracts the error code. Returns empty string for foreign errors.
func GetCode(err error) string {
	if se, ok := As(err); ok {
		return se.Code
	}
	return ""
}

// GetCategory extracts the category. Returns empty string for foreign errors.
func GetCategory(err error) Category {
	if se, ok := As(err); ok {
		return se.Category
	}
	return ""
}

// MessageOf returns the bare message of a SearchError, or err.Error() for
// anything else.
func MessageOf(err error) string {
	if err == nil {
		return ""
	}
	if se, ok := As(err); ok {
		return se.Message
	}
	return err.Error()
}
