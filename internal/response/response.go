// Package response defines the JSON envelope spoken on the wire. The
// structs are shared by the session client (decoding) and the stub exam
// server (encoding); the gin helpers are server-side only.
package response

import (
	"encoding/json"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/stemsi/exstem-client/internal/apierr"
)

// Envelope is the standardized API response envelope as received by the
// client. Data stays raw so callers can decode into their own payload.
type Envelope struct {
	Data       json.RawMessage `json:"data"`
	Error      *ErrorBody      `json:"error,omitempty"`
	Pagination *Pagination     `json:"pagination,omitempty"`
	Metadata   Metadata        `json:"metadata"`
}

// ErrorBody represents a structured error response.
type ErrorBody struct {
	Code    apierr.ErrCode    `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// Pagination holds pagination information.
type Pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	TotalItems int `json:"total_items"`
	TotalPages int `json:"total_pages"`
}

// Metadata includes request tracing and timing.
type Metadata struct {
	RequestID string `json:"request_id"`
	Timestamp string `json:"timestamp"`
}

// reply mirrors Envelope with an open Data field for encoding.
type reply struct {
	Data       interface{} `json:"data"`
	Error      *ErrorBody  `json:"error,omitempty"`
	Pagination *Pagination `json:"pagination,omitempty"`
	Metadata   Metadata    `json:"metadata"`
}

// ────────────────────────────────────────────────────────────────────────────
// Server-side helpers (gin)
// ────────────────────────────────────────────────────────────────────────────

// ContextKeyRequestID is the Gin context key for the request ID.
const ContextKeyRequestID = "request_id"

// RequestIDMiddleware generates a unique request ID for every request.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.GetHeader("X-Request-ID")
		if reqID == "" {
			reqID = uuid.New().String()
		}
		c.Set(ContextKeyRequestID, reqID)
		c.Header("X-Request-ID", reqID)
		c.Next()
	}
}

// Success sends a successful JSON response with the given status code and data.
func Success(c *gin.Context, statusCode int, data interface{}) {
	c.JSON(statusCode, reply{
		Data:     data,
		Metadata: buildMetadata(c),
	})
}

// SuccessWithPagination sends a successful response with pagination metadata.
func SuccessWithPagination(c *gin.Context, statusCode int, data interface{}, pagination *Pagination) {
	c.JSON(statusCode, reply{
		Data:       data,
		Pagination: pagination,
		Metadata:   buildMetadata(c),
	})
}

// Fail sends an error response with an error code and no field-level details.
func Fail(c *gin.Context, statusCode int, code apierr.ErrCode) {
	c.JSON(statusCode, reply{
		Error:    &ErrorBody{Code: code, Message: apierr.GetMessage(code)},
		Metadata: buildMetadata(c),
	})
}

// FailWithFields sends an error response with field-level validation details.
func FailWithFields(c *gin.Context, statusCode int, code apierr.ErrCode, fields map[string]string) {
	c.JSON(statusCode, reply{
		Error:    &ErrorBody{Code: code, Message: apierr.GetMessage(code), Fields: fields},
		Metadata: buildMetadata(c),
	})
}

// AbortFail aborts the middleware chain and sends an error response.
func AbortFail(c *gin.Context, statusCode int, code apierr.ErrCode) {
	c.AbortWithStatusJSON(statusCode, reply{
		Error:    &ErrorBody{Code: code, Message: apierr.GetMessage(code)},
		Metadata: buildMetadata(c),
	})
}

func buildMetadata(c *gin.Context) Metadata {
	reqID, _ := c.Get(ContextKeyRequestID)
	id, ok := reqID.(string)
	if !ok || id == "" {
		id = uuid.New().String() // Fallback if middleware not applied
	}
	return Metadata{
		RequestID: id,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}
