package common

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	Error struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Details map[string]string `json:"details,omitempty"`
	} `json:"error"`
}

// CreateErrorResponse creates a standardized error response
func CreateErrorResponse(code string, message string, details map[string]string) *ErrorResponse {
	var resp ErrorResponse
	resp.Error.Code = code
	resp.Error.Message = message
	resp.Error.Details = details
	return &resp
}

// RespondError maps a service error to its HTTP representation with a
// stable machine-readable code.
func RespondError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, ErrUnauthorized):
		return c.JSON(http.StatusUnauthorized, CreateErrorResponse("UNAUTHORIZED", err.Error(), nil))
	case errors.Is(err, ErrTenantNotFound):
		return c.JSON(http.StatusNotFound, CreateErrorResponse("TENANT_NOT_FOUND", err.Error(), nil))
	case errors.Is(err, ErrTenantExists):
		return c.JSON(http.StatusConflict, CreateErrorResponse("TENANT_EXISTS", err.Error(), nil))
	case errors.Is(err, ErrUnknownService):
		return c.JSON(http.StatusUnprocessableEntity, CreateErrorResponse("UNKNOWN_SERVICE", err.Error(), nil))
	case errors.Is(err, ErrInvalidArgument):
		return c.JSON(http.StatusBadRequest, CreateErrorResponse("INVALID_ARGUMENT", err.Error(), nil))
	case errors.Is(err, ErrConcurrencyConflict):
		return c.JSON(http.StatusConflict, CreateErrorResponse("CONCURRENCY_CONFLICT", err.Error(), nil))
	case errors.Is(err, ErrStorageFailure):
		return c.JSON(http.StatusServiceUnavailable, CreateErrorResponse("STORAGE_FAILURE", "storage unavailable", nil))
	default:
		return c.JSON(http.StatusInternalServerError, CreateErrorResponse("SERVER_ERROR", "operation could not be completed", nil))
	}
}

// SendValidationError sends a validation error response
func SendValidationError(c echo.Context, field, message string) error {
	details := map[string]string{field: message}
	return c.JSON(http.StatusBadRequest, CreateErrorResponse("INVALID_ARGUMENT", "validation failed", details))
}

// SendUnauthorizedError sends an unauthorized error response
func SendUnauthorizedError(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, CreateErrorResponse("UNAUTHORIZED", "unauthorized access", nil))
}
