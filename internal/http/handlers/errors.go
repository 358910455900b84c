// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// Codes are lowercase snake_case and stable; clients branch on them. The four
// submission codes mirror services.Kind one to one so a rejected submission
// reads the same in logs, metrics and responses.
//
// Example response:
//
//	{
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "code": "duplicate_detected",
//	  "message": "customer already signed up today",
//	  "existing_record_id": "0d1f4c8e-6b4a-4d7e-9d55-3a0c1b2e7f90"
//	}
package handlers

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeNotFound         = "not_found"
	ErrCodeConflict         = "conflict"
	ErrCodeMethodNotAllowed = "method_not_allowed"
	ErrCodeRateLimited      = "rate_limited"

	// Submission outcomes, see services.Kind.
	ErrCodeValidation  = "validation_error"
	ErrCodeDuplicate   = "duplicate_detected"
	ErrCodeImageUpload = "image_upload_failed"
	ErrCodeInternal    = "internal"

	ErrCodeInvalidTransition = "invalid_transition"
)
