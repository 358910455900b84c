// Package handlers exposes the REST endpoints for sign-ups, their audit
// trail, maintenance and stored images.
//
// Handlers are transport-thin: they bind and shape input, call application
// services and translate results into HTTP responses.
package handlers

import (
	"context"

	"github.com/tbourn/go-signup-backend/internal/domain"
	"github.com/tbourn/go-signup-backend/internal/services"
)

//
// Service contracts (context-aware)
//

// SubmissionService records agent submissions exactly once.
type SubmissionService interface {
	Submit(ctx context.Context, sub services.Submission) (*services.Result, error)
}

// SignUpService reads and corrects existing sign-ups.
type SignUpService interface {
	Get(ctx context.Context, id string) (*domain.SignUp, error)
	Update(ctx context.Context, id string, p domain.SignUpPatch, actor string) (*domain.SignUp, error)
	AuditTrail(ctx context.Context, id string, page, pageSize int) ([]domain.AuditEntry, int64, error)
	// AuditVersion returns (count, maxID) for conditional GETs.
	AuditVersion(ctx context.Context, id string) (int64, uint64, error)
}

// MaintenanceService runs housekeeping jobs on demand.
type MaintenanceService interface {
	PurgeExpiredTokens(ctx context.Context) (int64, error)
}

// ImageStore serves stored image bytes by key.
type ImageStore interface {
	Get(ctx context.Context, key string) ([]byte, string, error)
}

// Handlers groups the HTTP endpoints. Any service may be nil, in which case
// its routes should not be mounted.
type Handlers struct {
	submitSvc SubmissionService
	signUpSvc SignUpService
	maintSvc  MaintenanceService
	images    ImageStore
}

// New constructs Handlers bound to the given services.
func New(submit SubmissionService, signups SignUpService, maint MaintenanceService, images ImageStore) *Handlers {
	return &Handlers{
		submitSvc: submit,
		signUpSvc: signups,
		maintSvc:  maint,
		images:    images,
	}
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

func newPagination(page, pageSize int, total int64) Pagination {
	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	return Pagination{
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
	}
}
