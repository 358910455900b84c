// Package handlers provides HTTP handler implementations for the public API.
//
// This file holds the response helpers shared by every endpoint. Errors always
// use ErrorResponse with a stable code; 5xx responses are logged through the
// request-scoped logger.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-signup-backend/internal/http/middleware"
	"github.com/tbourn/go-signup-backend/internal/services"
)

// ErrorResponse is the standard error envelope returned by all endpoints.
type ErrorResponse struct {
	// Correlates server logs and client errors
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// Stable, machine-readable code (see errors.go constants)
	Code string `json:"code" example:"validation_error"`
	// Human-readable message
	Message string `json:"message" example:"customer_email is not a valid address"`
	// Set with duplicate_detected: the record that already holds the window
	ExistingRecordID string `json:"existing_record_id,omitempty" example:"0d1f4c8e-6b4a-4d7e-9d55-3a0c1b2e7f90"`
}

func fail(c *gin.Context, status int, code, msg string) {
	failWith(c, status, ErrorResponse{Code: code, Message: msg})
}

func failWith(c *gin.Context, status int, resp ErrorResponse) {
	resp.RequestID = c.Writer.Header().Get("X-Request-ID")
	if status >= http.StatusInternalServerError {
		middleware.LoggerFrom(c).Error().
			Int("status", status).
			Str("code", resp.Code).
			Str("message", resp.Message).
			Msg("api error")
	}
	c.AbortWithStatusJSON(status, resp)
}

// Fail is the exported variant of fail, used by the router fallbacks.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

// rejectionStatus maps a submission outcome to its HTTP status.
func rejectionStatus(k services.Kind) int {
	switch k {
	case services.KindValidation:
		return http.StatusBadRequest
	case services.KindDuplicate:
		return http.StatusConflict
	case services.KindImageUpload:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// failSubmission writes the envelope for an error returned by Submit.
// Internal failures never leak their cause to the client.
func failSubmission(c *gin.Context, err error) {
	kind := services.KindOf(err)
	resp := ErrorResponse{Code: string(kind)}

	var rej *services.Rejection
	if errors.As(err, &rej) {
		resp.Message = rej.Detail
		resp.ExistingRecordID = rej.ExistingRecordID
	}
	if kind == services.KindInternal {
		middleware.LoggerFrom(c).Error().Err(err).Msg("submission failed")
		resp.Message = "internal error"
	}
	if resp.Message == "" {
		resp.Message = string(kind)
	}
	failWith(c, rejectionStatus(kind), resp)
}

func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}
