// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the append-only audit table.
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/tbourn/go-signup-backend/internal/domain"
)

// AppendAudit inserts one audit entry. Entries are never updated or deleted.
func AppendAudit(ctx context.Context, db *gorm.DB, e *domain.AuditEntry) error {
	return db.WithContext(ctx).Create(e).Error
}

// ListAudit returns a page of entries for a sign-up, oldest first.
func ListAudit(ctx context.Context, db *gorm.DB, signUpID string, offset, limit int) ([]domain.AuditEntry, error) {
	var out []domain.AuditEntry
	q := db.WithContext(ctx).
		Where("signup_id = ?", signUpID).
		Order("id ASC")
	if limit > 0 {
		q = q.Offset(offset).Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}
