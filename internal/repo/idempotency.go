// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the idempotency ledger: token lookup,
// in-transaction insert and the expiry sweep.
package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-signup-backend/internal/domain"
)

// GetToken returns the ledger row for token regardless of expiry, or
// ErrNotFound. Callers decide what an expired row means.
func GetToken(ctx context.Context, db *gorm.DB, token string) (*domain.IdempotencyToken, error) {
	var rec domain.IdempotencyToken
	err := db.WithContext(ctx).Where("token = ?", token).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// InsertToken records token -> signUpID. It is meant to run in the same
// transaction as CreateSignUp and returns ErrDuplicate when the token is
// already taken.
func InsertToken(ctx context.Context, db *gorm.DB, token, signUpID string, now time.Time, ttl time.Duration) (*domain.IdempotencyToken, error) {
	now = now.UTC()
	rec := &domain.IdempotencyToken{
		Token:     token,
		SignUpID:  signUpID,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	if err := db.WithContext(ctx).Omit(clause.Associations).Create(rec).Error; err != nil {
		return nil, mapWriteErr(err)
	}
	return rec, nil
}

// PurgeExpiredTokens deletes ledger rows whose expiry is at or before now and
// returns the number removed. Unexpired rows are never touched.
func PurgeExpiredTokens(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Where("expires_at <= ?", now.UTC()).
		Delete(&domain.IdempotencyToken{})
	return res.RowsAffected, res.Error
}
