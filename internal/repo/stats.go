// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate queries used for
// conditional responses (ETag generation) in the HTTP layer.
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/tbourn/go-signup-backend/internal/domain"
)

// AuditStats returns the number of audit entries for a sign-up and the highest
// entry id. Since the table is append-only, the pair changes whenever the trail
// does. When there are no entries both values are 0.
func AuditStats(ctx context.Context, db *gorm.DB, signUpID string) (count int64, maxID uint64, err error) {
	q := db.WithContext(ctx).Model(&domain.AuditEntry{}).Where("signup_id = ?", signUpID)

	if err = q.Count(&count).Error; err != nil {
		return 0, 0, err
	}
	if count == 0 {
		return 0, 0, nil
	}

	var row struct{ ID uint64 }
	if err = q.Select("id").Order("id DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, 0, err
	}
	return count, row.ID, nil
}
