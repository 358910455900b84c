// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides effective-dated partner rate lookups.
package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-signup-backend/internal/domain"
)

// FindRate returns the rate for (partnerID, region) effective at at, or
// ErrNotFound. When rows overlap, the latest effective_from wins.
func FindRate(ctx context.Context, db *gorm.DB, partnerID int64, region string, at time.Time) (*domain.PartnerRate, error) {
	at = at.UTC()
	var r domain.PartnerRate
	err := db.WithContext(ctx).
		Where("partner_id = ? AND region_code = ? AND effective_from <= ?", partnerID, region, at).
		Where("effective_to IS NULL OR effective_to > ?", at).
		Order("effective_from DESC").
		First(&r).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// UpsertRate inserts a rate row. Used by seeding and operator tooling.
func UpsertRate(ctx context.Context, db *gorm.DB, r *domain.PartnerRate) error {
	r.EffectiveFrom = r.EffectiveFrom.UTC()
	if r.EffectiveTo != nil {
		t := r.EffectiveTo.UTC()
		r.EffectiveTo = &t
	}
	return db.WithContext(ctx).Save(r).Error
}
