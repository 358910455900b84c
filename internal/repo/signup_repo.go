// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the SignUp
// model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions. They carry no business rules; the
// submission and sign-up services decide when to call them.
//
// Error semantics:
//   - Missing rows return ErrNotFound.
//   - Unique violations (duplicate window) return ErrDuplicate.
//   - Conditional updates that match nothing return ErrStale.
//
// Functions:
//
//   - CreateSignUp(ctx, db, rec) -> error
//   - GetSignUp(ctx, db, id) -> *domain.SignUp, error
//   - FindDuplicate(ctx, db, email, partnerID, day) -> id, error
//   - TransitionStatus(ctx, db, id, from, to, at) -> error
//   - UpdateContact(ctx, db, id, fields, at) -> error
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-signup-backend/internal/domain"
)

// CreateSignUp inserts rec, assigning a UUID when ID is empty.
func CreateSignUp(ctx context.Context, db *gorm.DB, rec *domain.SignUp) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = rec.SubmittedAt
	}
	return mapWriteErr(db.WithContext(ctx).Omit(clause.Associations).Create(rec).Error)
}

// GetSignUp fetches a sign-up by id.
func GetSignUp(ctx context.Context, db *gorm.DB, id string) (*domain.SignUp, error) {
	var rec domain.SignUp
	if err := db.WithContext(ctx).Where("id = ?", id).First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &rec, nil
}

// FindDuplicate returns the id of the earliest non-rejected sign-up for the
// given normalized email, partner and UTC day, or ErrNotFound.
func FindDuplicate(ctx context.Context, db *gorm.DB, normalizedEmail string, partnerID int64, day string) (string, error) {
	var row struct{ ID string }
	err := db.WithContext(ctx).
		Model(&domain.SignUp{}).
		Select("id").
		Where("customer_email_normalized = ? AND partner_id = ? AND submitted_day = ? AND validation_status <> ?",
			normalizedEmail, partnerID, day, domain.StatusRejected).
		Order("submitted_at ASC").
		Limit(1).
		Scan(&row).Error
	if err != nil {
		return "", err
	}
	if row.ID == "" {
		return "", ErrNotFound
	}
	return row.ID, nil
}

// TransitionStatus moves a sign-up from one status to another with a
// conditional UPDATE. validated_at is stamped when moving to validated.
// Returns ErrStale when the row is no longer in the from state.
func TransitionStatus(ctx context.Context, db *gorm.DB, id string, from, to domain.ValidationStatus, at time.Time) error {
	updates := map[string]any{
		"validation_status": to,
		"updated_at":        at,
	}
	if to == domain.StatusValidated {
		updates["validated_at"] = at
	}
	res := db.WithContext(ctx).
		Model(&domain.SignUp{}).
		Where("id = ? AND validation_status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return mapWriteErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrStale
	}
	return nil
}

// UpdateContact applies customer contact corrections. Keys are column names;
// callers restrict them to customer_name and customer_phone.
func UpdateContact(ctx context.Context, db *gorm.DB, id string, fields map[string]any, at time.Time) error {
	if len(fields) == 0 {
		return nil
	}
	updates := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		updates[k] = v
	}
	updates["updated_at"] = at
	res := db.WithContext(ctx).Model(&domain.SignUp{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
