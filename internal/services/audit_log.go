// Package services – AuditLog
//
// AuditLog appends decision records for sign-ups. It is best-effort: a failed
// append is logged and counted but never returned, so it cannot abort the
// operation being audited. When called with a transaction handle the insert
// runs inside a savepoint, so a failure does not poison the outer
// transaction on Postgres.
package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/tbourn/go-signup-backend/internal/domain"
	"github.com/tbourn/go-signup-backend/internal/repo"
)

// AuditLog writes audit entries through whatever handle it is given.
type AuditLog struct {
	Now func() time.Time
}

// NewAuditLog returns an AuditLog stamping entries with UTC wall time.
func NewAuditLog() *AuditLog {
	return &AuditLog{Now: func() time.Time { return time.Now().UTC() }}
}

// Append records action against signUpID. It reports whether the entry was
// stored.
func (a *AuditLog) Append(ctx context.Context, db *gorm.DB, signUpID string, action domain.AuditAction, actor string, detail map[string]any) bool {
	raw := datatypes.JSON("{}")
	if len(detail) > 0 {
		b, err := json.Marshal(detail)
		if err != nil {
			log.Warn().Err(err).Str("signup_id", signUpID).Str("action", string(action)).Msg("audit detail not encodable, storing empty detail")
		} else {
			raw = b
		}
	}
	entry := &domain.AuditEntry{
		SignUpID:  signUpID,
		Action:    action,
		Actor:     actor,
		Detail:    raw,
		CreatedAt: a.now(),
	}

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return repo.AppendAudit(ctx, tx, entry)
	})
	if err != nil {
		auditFailuresTotal.WithLabelValues(string(action)).Inc()
		log.Error().
			Err(err).
			Str("signup_id", signUpID).
			Str("action", string(action)).
			Str("actor", actor).
			RawJSON("detail", raw).
			Msg("audit append failed")
		return false
	}
	return true
}

func (a *AuditLog) now() time.Time {
	if a == nil || a.Now == nil {
		return time.Now().UTC()
	}
	return a.Now().UTC()
}
