package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Kind classifies an application error independently of its HTTP status.
type Kind string

const (
	KindValidation        Kind = "validation"
	KindNotFound          Kind = "not_found"
	KindInsufficientStock Kind = "insufficient_stock"
	KindInvalidSignature  Kind = "invalid_signature"
	KindUnauthorized      Kind = "unauthorized"
	KindForbidden         Kind = "forbidden"
	KindInternal          Kind = "internal"
)

// Error represents an application error
type Error struct {
	Code    int    `json:"code"`
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches errors of the same kind, so sentinels work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// JSON returns the error as a JSON string
func (e *Error) JSON() string {
	b, _ := json.Marshal(e)
	return string(b)
}

// New creates a new Error
func New(code int, kind Kind, message string, err error) *Error {
	return &Error{
		Code:    code,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

func Validation(format string, args ...interface{}) *Error {
	return New(http.StatusBadRequest, KindValidation, fmt.Sprintf(format, args...), nil)
}

func NotFound(format string, args ...interface{}) *Error {
	return New(http.StatusNotFound, KindNotFound, fmt.Sprintf(format, args...), nil)
}

func InsufficientStock(format string, args ...interface{}) *Error {
	return New(http.StatusBadRequest, KindInsufficientStock, fmt.Sprintf(format, args...), nil)
}

func InvalidSignature(message string) *Error {
	return New(http.StatusBadRequest, KindInvalidSignature, message, nil)
}

func Unauthorized(message string) *Error {
	return New(http.StatusUnauthorized, KindUnauthorized, message, nil)
}

func Forbidden(message string) *Error {
	return New(http.StatusForbidden, KindForbidden, message, nil)
}

// Internal wraps an unexpected failure. The message is logged, never returned to clients.
func Internal(message string, err error) *Error {
	return New(http.StatusInternalServerError, KindInternal, message, err)
}

// Sentinels for errors.Is checks.
var (
	ErrValidation        = New(http.StatusBadRequest, KindValidation, "Validation error", nil)
	ErrNotFound          = New(http.StatusNotFound, KindNotFound, "Not found", nil)
	ErrInsufficientStock = New(http.StatusBadRequest, KindInsufficientStock, "Insufficient stock", nil)
	ErrInvalidSignature  = New(http.StatusBadRequest, KindInvalidSignature, "Invalid signature", nil)
	ErrUnauthorized      = New(http.StatusUnauthorized, KindUnauthorized, "Unauthorized", nil)
	ErrInvalidToken      = New(http.StatusUnauthorized, KindUnauthorized, "Invalid token", nil)
	ErrForbidden         = New(http.StatusForbidden, KindForbidden, "Forbidden", nil)
	ErrInternalServer    = New(http.StatusInternalServerError, KindInternal, "Internal server error", nil)
)

// From returns err as an *Error, wrapping unknown errors as internal.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return Internal("Internal server error", err)
}

// KindOf classifies any error; unknown errors are internal and nil has no kind.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	return From(err).Kind
}

// PublicMessage is what a client may see. 5xx never leaks the cause.
func (e *Error) PublicMessage() string {
	if e.Code >= http.StatusInternalServerError {
		return "Internal server error"
	}
	return e.Message
}

// ErrorMiddleware renders errors attached with c.Error as the standard envelope.
func ErrorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 && !c.Writer.Written() {
			appErr := From(c.Errors.Last().Err)
			c.AbortWithStatusJSON(appErr.Code, gin.H{
				"success": false,
				"message": appErr.PublicMessage(),
			})
		}
	}
}
