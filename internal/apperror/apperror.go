package apperror

import (
	"errors"
	"fmt"
	"time"
)

type Category string

const (
	CategoryValidation Category = "validation"
	CategoryFormat     Category = "format"
	CategoryProcessing Category = "processing"
	CategoryStorage    Category = "storage"
	CategoryMemory     Category = "memory"
	CategoryTimeout    Category = "timeout"
	CategoryAuth       Category = "auth"
)

// Error is the single error type that crosses component boundaries.
// Backend-native errors (sql, minio, kafka) are wrapped before they
// leave the layer that produced them.
type Error struct {
	Category    Category
	Message     string
	Err         error
	Retryable   bool
	RetryAfter  time.Duration
	Suggestions []string
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Category, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Category, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func Validation(message string) *Error {
	return &Error{Category: CategoryValidation, Message: message}
}

func Format(message string, suggestions ...string) *Error {
	return &Error{Category: CategoryFormat, Message: message, Suggestions: suggestions}
}

func Processing(message string, err error, suggestions ...string) *Error {
	return &Error{Category: CategoryProcessing, Message: message, Err: err, Suggestions: suggestions}
}

func Storage(message string, err error, retryAfter time.Duration) *Error {
	return &Error{Category: CategoryStorage, Message: message, Err: err, Retryable: true, RetryAfter: retryAfter}
}

func Memory(message string, retryAfter time.Duration) *Error {
	return &Error{Category: CategoryMemory, Message: message, Retryable: true, RetryAfter: retryAfter}
}

func Timeout(message string, err error) *Error {
	return &Error{Category: CategoryTimeout, Message: message, Err: err, Retryable: true}
}

func Auth(message string) *Error {
	return &Error{Category: CategoryAuth, Message: message}
}

// CategoryOf reports the taxonomy category of err, or CategoryProcessing
// for errors that were never classified.
func CategoryOf(err error) Category {
	var e *Error
	if errors.As(err, &e) {
		return e.Category
	}
	return CategoryProcessing
}

func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}

func RetryAfter(err error) time.Duration {
	var e *Error
	if errors.As(err, &e) {
		return e.RetryAfter
	}
	return 0
}

func SuggestionsOf(err error) []string {
	var e *Error
	if errors.As(err, &e) {
		return e.Suggestions
	}
	return nil
}
