// Package services – SignUpService
//
// SignUpService covers the read and correction paths for existing sign-ups:
// fetching a record, applying an operator patch (contact fields and forward
// status transitions) and reading the audit trail.
//
// Observability: public methods are OpenTelemetry-instrumented.
package services

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-signup-backend/internal/domain"
	"github.com/tbourn/go-signup-backend/internal/repo"
	"github.com/tbourn/go-signup-backend/internal/utils"
)

// Audit trail page bounds.
const (
	DefaultAuditPageSize = 50
	MaxAuditPageSize     = 200
)

// SignUpService implements Get, Update and AuditTrail.
type SignUpService struct {
	DB    *gorm.DB
	Audit *AuditLog
	Now   func() time.Time
}

// NewSignUpService returns a service over db.
func NewSignUpService(db *gorm.DB) *SignUpService {
	return &SignUpService{
		DB:    db,
		Audit: NewAuditLog(),
		Now:   func() time.Time { return time.Now().UTC() },
	}
}

// Get loads one sign-up or returns ErrSignUpNotFound.
func (s *SignUpService) Get(ctx context.Context, id string) (*domain.SignUp, error) {
	tr := otel.Tracer("services/SignUpService")
	ctx, span := tr.Start(ctx, "Get", trace.WithAttributes(attribute.String("signup.id", id)))
	defer span.End()

	rec, err := repo.GetSignUp(ctx, s.DB, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrSignUpNotFound
	}
	return rec, err
}

// Update applies p on behalf of actor and returns the updated record.
//
// Rules:
//   - An empty patch, a null or blank customer_name, or a null status is
//     ErrInvalidPatch. A null customer_phone clears the phone.
//   - Status may only move pending -> validated | rejected
//     (ErrInvalidTransition otherwise). The move is a conditional UPDATE, so
//     a concurrent writer yields ErrConcurrentUpdate.
//   - Contact changes write a record_updated audit entry; status changes
//     write status_change. Both are inside the same transaction as the
//     update.
func (s *SignUpService) Update(ctx context.Context, id string, p domain.SignUpPatch, actor string) (*domain.SignUp, error) {
	tr := otel.Tracer("services/SignUpService")
	ctx, span := tr.Start(ctx, "Update",
		trace.WithAttributes(
			attribute.String("signup.id", id),
			attribute.Bool("patch.status", p.ValidationStatus.Set),
		),
	)
	defer span.End()

	contact, err := contactUpdates(p)
	if err != nil {
		return nil, err
	}
	if p.ValidationStatus.Set && (p.ValidationStatus.Null || !p.ValidationStatus.Value.Valid()) {
		return nil, ErrInvalidPatch
	}
	actor = strings.TrimSpace(actor)
	if actor == "" {
		actor = "operator"
	}

	now := s.now()
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cur, err := repo.GetSignUp(ctx, tx, id)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return ErrSignUpNotFound
			}
			return err
		}

		if len(contact) > 0 {
			if err := repo.UpdateContact(ctx, tx, id, contact, now); err != nil {
				return err
			}
			s.Audit.Append(ctx, tx, id, domain.AuditRecordUpdated, actor, map[string]any{"fields": keys(contact)})
		}

		if p.ValidationStatus.Set {
			to := p.ValidationStatus.Value
			if !cur.ValidationStatus.CanTransitionTo(to) {
				return ErrInvalidTransition
			}
			switch err := repo.TransitionStatus(ctx, tx, id, cur.ValidationStatus, to, now); {
			case errors.Is(err, repo.ErrStale):
				return ErrConcurrentUpdate
			case err != nil:
				return err
			}
			s.Audit.Append(ctx, tx, id, domain.AuditStatusChange, actor, map[string]any{
				"from": cur.ValidationStatus,
				"to":   to,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return repo.GetSignUp(ctx, s.DB, id)
}

// AuditTrail returns one page of a sign-up's audit entries, oldest first,
// plus the total count.
func (s *SignUpService) AuditTrail(ctx context.Context, id string, page, pageSize int) ([]domain.AuditEntry, int64, error) {
	tr := otel.Tracer("services/SignUpService")
	ctx, span := tr.Start(ctx, "AuditTrail",
		trace.WithAttributes(
			attribute.String("signup.id", id),
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	if _, err := s.Get(ctx, id); err != nil {
		return nil, 0, err
	}
	page, pageSize = utils.ClampPage(page, pageSize, DefaultAuditPageSize, MaxAuditPageSize)

	total, _, err := repo.AuditStats(ctx, s.DB, id)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.AuditEntry{}, 0, nil
	}
	items, err := repo.ListAudit(ctx, s.DB, id, (page-1)*pageSize, pageSize)
	return items, total, err
}

// AuditVersion returns the (count, maxID) pair used to build an ETag for a
// sign-up's audit trail.
func (s *SignUpService) AuditVersion(ctx context.Context, id string) (int64, uint64, error) {
	return repo.AuditStats(ctx, s.DB, id)
}

func contactUpdates(p domain.SignUpPatch) (map[string]any, error) {
	if p.Empty() {
		return nil, ErrInvalidPatch
	}
	out := map[string]any{}
	if p.CustomerName.Set {
		name := domain.NormalizeName(p.CustomerName.Value)
		if p.CustomerName.Null || name == "" {
			return nil, ErrInvalidPatch
		}
		out["customer_name"] = name
	}
	if p.CustomerPhone.Set {
		phone := strings.TrimSpace(p.CustomerPhone.Value)
		if p.CustomerPhone.Null || phone == "" {
			out["customer_phone"] = nil
		} else {
			out["customer_phone"] = phone
		}
	}
	return out, nil
}

func keys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (s *SignUpService) now() time.Time {
	if s.Now == nil {
		return time.Now().UTC()
	}
	return s.Now().UTC()
}
