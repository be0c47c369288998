// Package errors provides the unified application error type.
package errors

import (
	"fmt"
	"net/http"
)

// ErrorCode classifies application errors.
type ErrorCode string

// Predefined error codes.
const (
	// Generic (1xxx)
	CodeSuccess            ErrorCode = "0"
	CodeUnknown            ErrorCode = "1000"
	CodeInvalidParam       ErrorCode = "1001"
	CodeNotFound           ErrorCode = "1004"
	CodeConflict           ErrorCode = "1005"
	CodeTooManyRequests    ErrorCode = "1006"
	CodeInternalError      ErrorCode = "1007"
	CodeServiceUnavailable ErrorCode = "1008"

	// Resources (3xxx)
	CodeSermonNotFound  ErrorCode = "3001"
	CodeSegmentNotFound ErrorCode = "3002"
	CodeSeriesNotFound  ErrorCode = "3003"

	// Business (4xxx)
	// CodeGenerationUnavailable is the degraded case: text generation failed
	// on every backend but search itself still works.
	// CodeEmbeddingUnavailable is the fatal case: without embeddings,
	// semantic search and indexing are unusable. Callers must be able to
	// tell the two apart.
	CodeGenerationUnavailable ErrorCode = "4001"
	CodeEmbeddingUnavailable  ErrorCode = "4002"
	CodeSearchFailed          ErrorCode = "4003"
	CodeIndexingFailed        ErrorCode = "4004"
	CodeLinkingFailed         ErrorCode = "4005"

	// External services (5xxx)
	CodeDatabaseError ErrorCode = "5001"
	CodeCacheError    ErrorCode = "5002"
	CodeVectorDBError ErrorCode = "5003"
	CodeLLMBackendError ErrorCode = "5004"
)

// AppError is the application error carried across layers.
type AppError struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	Detail     string    `json:"detail,omitempty"`
	HTTPStatus int       `json:"-"`
	Err        error     `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetail attaches human-readable detail.
func (e *AppError) WithDetail(detail string) *AppError {
	e.Detail = detail
	return e
}

// WithError attaches the underlying error.
func (e *AppError) WithError(err error) *AppError {
	e.Err = err
	return e
}

// New creates an application error.
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
	}
}

// Wrap wraps an error with a code and message.
func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
		Err:        err,
	}
}

func codeToHTTPStatus(code ErrorCode) int {
	switch code {
	case CodeSuccess:
		return http.StatusOK
	case CodeInvalidParam:
		return http.StatusBadRequest
	case CodeNotFound, CodeSermonNotFound, CodeSegmentNotFound, CodeSeriesNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeTooManyRequests:
		return http.StatusTooManyRequests
	case CodeServiceUnavailable, CodeGenerationUnavailable, CodeEmbeddingUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Predefined errors.
var (
	ErrInvalidParam       = New(CodeInvalidParam, "invalid parameter")
	ErrNotFound           = New(CodeNotFound, "resource not found")
	ErrConflict           = New(CodeConflict, "resource conflict")
	ErrTooManyRequests    = New(CodeTooManyRequests, "too many requests")
	ErrInternalError      = New(CodeInternalError, "internal server error")
	ErrServiceUnavailable = New(CodeServiceUnavailable, "service unavailable")

	ErrSermonNotFound  = New(CodeSermonNotFound, "sermon not found")
	ErrSegmentNotFound = New(CodeSegmentNotFound, "segment not found")
	ErrSeriesNotFound  = New(CodeSeriesNotFound, "series not found")

	ErrGenerationUnavailable = New(CodeGenerationUnavailable, "text generation unavailable")
	ErrEmbeddingUnavailable  = New(CodeEmbeddingUnavailable, "embeddings unavailable")
)

// IsAppError reports whether err is an AppError.
func IsAppError(err error) bool {
	_, ok := err.(*AppError)
	return ok
}

// AsAppError converts err to an AppError, wrapping unknown errors.
func AsAppError(err error) *AppError {
	if appErr, ok := err.(*AppError); ok {
		return appErr
	}
	return Wrap(err, CodeUnknown, "unknown error")
}
