package errors

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrorCategory classifies supervisor errors for diagnostics and exit handling
type ErrorCategory string

const (
	// ErrorCategoryValidation means input or configuration was rejected
	ErrorCategoryValidation ErrorCategory = "validation"

	// ErrorCategoryLaunch means a service start command could not even be invoked
	ErrorCategoryLaunch ErrorCategory = "launch"

	// ErrorCategoryTimeout means an operation did not complete within its budget
	ErrorCategoryTimeout ErrorCategory = "timeout"

	// ErrorCategoryCancelled means an operation was interrupted by context cancellation
	ErrorCategoryCancelled ErrorCategory = "cancelled"

	// ErrorCategoryIO means a filesystem or network operation failed
	ErrorCategoryIO ErrorCategory = "io"

	// ErrorCategoryProcess means an operation on a running process failed
	ErrorCategoryProcess ErrorCategory = "process"

	// ErrorCategoryInternal means an unexpected internal failure
	ErrorCategoryInternal ErrorCategory = "internal"
)

// DomainError is the common error type carrying a category, an optional cause
// and free-form context for diagnostics
type DomainError struct {
	Category ErrorCategory
	Message  string
	Cause    error
	context  map[string]interface{}
}

func newDomainError(category ErrorCategory, message string, cause error) *DomainError {
	return &DomainError{
		Category: category,
		Message:  message,
		Cause:    cause,
	}
}

func NewValidationError(message string, cause error) *DomainError {
	return newDomainError(ErrorCategoryValidation, message, cause)
}

func NewLaunchError(message string, cause error) *DomainError {
	return newDomainError(ErrorCategoryLaunch, message, cause)
}

func NewTimeoutError(message string, cause error) *DomainError {
	return newDomainError(ErrorCategoryTimeout, message, cause)
}

func NewCancelledError(message string, cause error) *DomainError {
	return newDomainError(ErrorCategoryCancelled, message, cause)
}

func NewIOError(message string, cause error) *DomainError {
	return newDomainError(ErrorCategoryIO, message, cause)
}

func NewProcessError(message string, cause error) *DomainError {
	return newDomainError(ErrorCategoryProcess, message, cause)
}

func NewInternalError(message string, cause error) *DomainError {
	return newDomainError(ErrorCategoryInternal, message, cause)
}

// WithContext attaches a key/value pair to the error and returns the same
// error to allow chaining
func (e *DomainError) WithContext(key string, value interface{}) *DomainError {
	if e.context == nil {
		e.context = make(map[string]interface{})
	}
	e.context[key] = value
	return e
}

// Context returns the value attached under key, if any
func (e *DomainError) Context(key string) (interface{}, bool) {
	value, ok := e.context[key]
	return value, ok
}

func (e *DomainError) Error() string {
	var sb strings.Builder
	sb.WriteString(string(e.Category))
	sb.WriteString(": ")
	sb.WriteString(e.Message)
	if e.Cause != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Cause.Error())
	}
	if len(e.context) > 0 {
		keys := make([]string, 0, len(e.context))
		for key := range e.context {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		sb.WriteString(" (")
		for i, key := range keys {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(fmt.Sprintf("%s: %v", key, e.context[key]))
		}
		sb.WriteString(")")
	}
	return sb.String()
}

func (e *DomainError) Unwrap() error {
	return e.Cause
}

func isCategory(err error, category ErrorCategory) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Category == category
	}
	return false
}

func IsValidationError(err error) bool { return isCategory(err, ErrorCategoryValidation) }
func IsLaunchError(err error) bool     { return isCategory(err, ErrorCategoryLaunch) }
func IsTimeoutError(err error) bool    { return isCategory(err, ErrorCategoryTimeout) }
func IsCancelledError(err error) bool  { return isCategory(err, ErrorCategoryCancelled) }
func IsIOError(err error) bool         { return isCategory(err, ErrorCategoryIO) }
func IsProcessError(err error) bool    { return isCategory(err, ErrorCategoryProcess) }
func IsInternalError(err error) bool   { return isCategory(err, ErrorCategoryInternal) }
