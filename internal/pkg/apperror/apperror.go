package apperror

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
)

// Error codes surfaced to clients. The HTTP status is derived from the code,
// so services never import fiber.
const (
	CodeInvalidInput     = "INVALID_INPUT"
	CodeUnauthorized     = "UNAUTHORIZED"
	CodeRateLimited      = "RATE_LIMITED"
	CodeDuplicateMessage = "DUPLICATE_MESSAGE"
	CodeInternalError    = "INTERNAL_ERROR"
)

// Sentinel errors for mid-pipeline failures. Callers wrap these so the
// boundary can categorize without string matching.
var (
	ErrEmbeddingTimeout   = errors.New("embedding model load timed out")
	ErrEmbeddingFailure   = errors.New("embedding generation failed")
	ErrRetrievalFailure   = errors.New("vector search failed")
	ErrGenerationFailure  = errors.New("answer generation failed")
	ErrPersistenceFailure = errors.New("persistence failed")
)

// AppError is the boundary error type: a client-safe code and message plus
// the wrapped cause for logs.
type AppError struct {
	Code    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Status maps the code to an HTTP status. DUPLICATE_MESSAGE is a soft outcome
// and deliberately maps to 200.
func (e *AppError) Status() int {
	switch e.Code {
	case CodeInvalidInput:
		return fiber.StatusBadRequest
	case CodeUnauthorized:
		return fiber.StatusUnauthorized
	case CodeRateLimited:
		return fiber.StatusTooManyRequests
	case CodeDuplicateMessage:
		return fiber.StatusOK
	default:
		return fiber.StatusInternalServerError
	}
}

func New(code, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

func Wrap(code, message string, err error) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

func InvalidInput(message string) *AppError {
	return New(CodeInvalidInput, message)
}

func Unauthorized(message string) *AppError {
	return New(CodeUnauthorized, message)
}

// RateLimited carries the retry hint so the handler can set Retry-After.
type RateLimitedError struct {
	AppError
	RetryAfterSeconds int
}

func (e *RateLimitedError) Unwrap() error {
	return &e.AppError
}

func RateLimited(message string, retryAfterSeconds int) *RateLimitedError {
	return &RateLimitedError{
		AppError:          AppError{Code: CodeRateLimited, Message: message},
		RetryAfterSeconds: retryAfterSeconds,
	}
}

func Duplicate(message string) *AppError {
	return New(CodeDuplicateMessage, message)
}

// AsAppError unwraps err into an *AppError if one is in the chain.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}
