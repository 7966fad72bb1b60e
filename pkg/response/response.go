// Package response provides the unified API response envelope.
package response

import (
	"net/http"
	"time"

	"github.com/kart-io/agentic-rag/pkg/errors"
)

// Response is the unified API response structure.
type Response struct {
	// Code is the business error code (0 = success)
	Code int `json:"code"`

	// Message is a human-readable message
	Message string `json:"message"`

	// Data contains the response payload. Failed agent sessions still
	// carry their trace here.
	Data any `json:"data,omitempty"`

	// RequestID is the unique request identifier for tracing
	RequestID string `json:"request_id,omitempty"`

	// Timestamp is the response timestamp (Unix milliseconds)
	Timestamp int64 `json:"timestamp"`

	httpStatus int
}

// Success creates a successful response with data.
func Success(data any) *Response {
	return &Response{
		Code:       0,
		Message:    "success",
		Data:       data,
		Timestamp:  time.Now().UnixMilli(),
		httpStatus: http.StatusOK,
	}
}

// Err creates an error response from an Errno, using lang for the message.
func Err(e *errors.Errno, lang string) *Response {
	if e == nil {
		return Success(nil)
	}
	return &Response{
		Code:       e.Code,
		Message:    e.Message(lang),
		Timestamp:  time.Now().UnixMilli(),
		httpStatus: e.HTTPStatus(),
	}
}

// WithData attaches a payload to the response.
func (r *Response) WithData(data any) *Response {
	r.Data = data
	return r
}

// WithRequestID adds request ID to the response.
func (r *Response) WithRequestID(requestID string) *Response {
	r.RequestID = requestID
	return r
}

// IsSuccess returns true if the response indicates success.
func (r *Response) IsSuccess() bool {
	return r.Code == 0
}

// HTTPStatus returns the HTTP status for the response. Responses built
// without an Errno fall back to the category of their code.
func (r *Response) HTTPStatus() int {
	if r.httpStatus != 0 {
		return r.httpStatus
	}
	if r.Code == 0 {
		return http.StatusOK
	}
	switch errors.GetCategory(r.Code) {
	case errors.CategoryRequest:
		return http.StatusBadRequest
	case errors.CategoryResource:
		return http.StatusNotFound
	case errors.CategoryNetwork:
		return http.StatusBadGateway
	case errors.CategoryTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
