// errors.go - Structured error handling for API responses
package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/codewave/panel/internal/models"
	"github.com/codewave/panel/internal/upload"
	"github.com/labstack/echo/v4"
)

// APIError represents a structured API error response
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Error constructors for consistent error handling

// NewBadRequestError creates a 400 Bad Request error
func NewBadRequestError(message string, cause error) *APIError {
	return withCause(&APIError{
		Status:  http.StatusBadRequest,
		Code:    "BAD_REQUEST",
		Message: message,
	}, cause)
}

// NewValidationError creates a 400 error for input the panel rejected
func NewValidationError(message string, cause error) *APIError {
	return withCause(&APIError{
		Status:  http.StatusBadRequest,
		Code:    "VALIDATION_ERROR",
		Message: message,
	}, cause)
}

// NewPreconditionError creates a 412 error for an operation the session state does not allow
func NewPreconditionError(message string) *APIError {
	return &APIError{
		Status:  http.StatusPreconditionFailed,
		Code:    "PRECONDITION_FAILED",
		Message: message,
	}
}

// NewConflictError creates a 409 Conflict error
func NewConflictError(message string) *APIError {
	return &APIError{
		Status:  http.StatusConflict,
		Code:    "CONFLICT",
		Message: message,
	}
}

// NewInternalError creates a 500 Internal Server Error
func NewInternalError(message string, cause error) *APIError {
	return withCause(&APIError{
		Status:  http.StatusInternalServerError,
		Code:    "INTERNAL_ERROR",
		Message: message,
	}, cause)
}

// NewServiceUnavailableError creates a 503 Service Unavailable error
func NewServiceUnavailableError(message string) *APIError {
	return &APIError{
		Status:  http.StatusServiceUnavailable,
		Code:    "SERVICE_UNAVAILABLE",
		Message: message,
	}
}

func withCause(err *APIError, cause error) *APIError {
	if cause != nil {
		err.Details = cause.Error()
	}
	return err
}

// FromPanelError converts an error returned by an upload.Panel operation.
func FromPanelError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	if errors.Is(err, upload.ErrClosed) {
		return NewServiceUnavailableError("session expired, reload the page")
	}

	var le *models.LifecycleError
	if !errors.As(err, &le) {
		return NewInternalError("upload panel operation failed", err)
	}
	switch le.Kind {
	case models.ValidationError:
		return NewValidationError(le.Message, le.Cause)
	case models.PreconditionError:
		return NewPreconditionError(le.Message)
	case models.ConflictError:
		return NewConflictError(le.Message)
	default:
		apiErr := NewInternalError(le.Message, le.Cause)
		if le.StatusCode != 0 {
			apiErr.Details = fmt.Sprintf("analysis service status %d", le.StatusCode)
		}
		return apiErr
	}
}

// ErrorHandler replaces echo's default error handler
// Usage: e.HTTPErrorHandler = api.ErrorHandler
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var (
		apiErr  *APIError
		httpErr *echo.HTTPError
		le      *models.LifecycleError
	)
	switch {
	case errors.As(err, &apiErr):
	case errors.As(err, &httpErr):
		apiErr = &APIError{
			Status:  httpErr.Code,
			Code:    "HTTP_ERROR",
			Message: fmt.Sprintf("%v", httpErr.Message),
		}
	case errors.As(err, &le), errors.Is(err, upload.ErrClosed):
		apiErr = FromPanelError(err)
	default:
		apiErr = &APIError{
			Status:  http.StatusInternalServerError,
			Code:    "UNKNOWN_ERROR",
			Message: "An unexpected error occurred",
		}
		if c.Echo().Debug {
			apiErr.Details = err.Error()
		}
	}

	if apiErr.Status >= http.StatusInternalServerError {
		c.Logger().Errorf("[API] %s %s: %v", c.Request().Method, c.Request().URL.Path, err)
	}

	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(apiErr.Status)
		return
	}
	_ = c.JSON(apiErr.Status, apiErr)
}
