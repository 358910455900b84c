// Package services defines the business logic for sign-up submission,
// operator corrections and maintenance. This file centralizes service-level
// error values and the typed rejection returned by SubmissionService.Submit.
//
// Translation into HTTP status codes is performed at the handler layer.
package services

import (
	"errors"
	"fmt"
)

// Sign-up errors.
var (
	// ErrSignUpNotFound indicates that the requested sign-up does not exist.
	ErrSignUpNotFound = errors.New("sign-up not found")

	// ErrInvalidToken is returned for a token that is not a canonical
	// version-4 UUID.
	ErrInvalidToken = errors.New("idempotency token must be a version-4 UUID")

	// ErrTokenExpired is returned when a token's ledger entry has expired but
	// not yet been purged. A token never maps to a second record.
	ErrTokenExpired = errors.New("idempotency token expired")

	// ErrInvalidPatch is returned for an empty or malformed correction.
	ErrInvalidPatch = errors.New("invalid sign-up patch")

	// ErrInvalidTransition is returned when a status change is not a forward
	// move from pending.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrConcurrentUpdate is returned when another writer changed the status
	// between read and conditional update.
	ErrConcurrentUpdate = errors.New("sign-up was modified concurrently")
)

// Kind classifies a rejected submission.
type Kind string

const (
	KindValidation  Kind = "validation_error"
	KindDuplicate   Kind = "duplicate_detected"
	KindImageUpload Kind = "image_upload_failed"
	KindInternal    Kind = "internal"
)

// Rejection is the error returned by Submit for every non-accepted outcome.
type Rejection struct {
	Kind   Kind
	Detail string
	// ExistingRecordID is set for KindDuplicate.
	ExistingRecordID string
	Err              error
}

func (r *Rejection) Error() string {
	if r.Detail == "" {
		return string(r.Kind)
	}
	return fmt.Sprintf("%s: %s", r.Kind, r.Detail)
}

func (r *Rejection) Unwrap() error { return r.Err }

// KindOf maps any error to a rejection kind. Errors that are not a
// *Rejection are internal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var rej *Rejection
	if errors.As(err, &rej) {
		return rej.Kind
	}
	return KindInternal
}

func invalid(err error, detail string) *Rejection {
	if detail == "" && err != nil {
		detail = err.Error()
	}
	return &Rejection{Kind: KindValidation, Detail: detail, Err: err}
}

func internalErr(err error, detail string) *Rejection {
	return &Rejection{Kind: KindInternal, Detail: detail, Err: err}
}
