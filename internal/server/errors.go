package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/dsworkflows/chidata/pkg/client"
	"github.com/dsworkflows/chidata/pkg/schema"
	"github.com/dsworkflows/chidata/pkg/store"
	"github.com/gin-gonic/gin"
)

var (
	// ErrInvalidInput marks malformed query parameters.
	ErrInvalidInput = errors.New("invalid input")

	// ErrStoreUnavailable is returned when no snapshot store is configured.
	ErrStoreUnavailable = errors.New("snapshot store not configured")
)

// ErrorPayload is the error envelope returned by every endpoint.
type ErrorPayload struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// MapError converts an error into an HTTP status and payload.
func MapError(err error) (int, ErrorPayload) {
	switch {
	case err == nil:
		return http.StatusOK, ErrorPayload{Error: "ok"}
	case errors.Is(err, ErrInvalidInput), errors.Is(err, store.ErrUnknownColumn):
		return http.StatusBadRequest, ErrorPayload{Error: "invalid_input", Message: err.Error()}
	case errors.Is(err, store.ErrUnknownResource):
		return http.StatusNotFound, ErrorPayload{Error: "not_found", Message: err.Error()}
	case client.IsTransportError(err), errors.Is(err, schema.ErrValidation):
		return http.StatusServiceUnavailable, ErrorPayload{Error: "data_unavailable", Message: err.Error()}
	case errors.Is(err, ErrStoreUnavailable):
		return http.StatusServiceUnavailable, ErrorPayload{Error: "store_unavailable"}
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, ErrorPayload{Error: "timeout"}
	default:
		return http.StatusInternalServerError, ErrorPayload{Error: "internal_error"}
	}
}

// writeError writes an error response and aborts the context.
func writeError(c *gin.Context, err error) {
	status, payload := MapError(err)
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, payload)
}
