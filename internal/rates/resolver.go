// Package rates resolves the partner payout rate that is frozen onto a
// sign-up at submission time.
package rates

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/tbourn/go-signup-backend/internal/repo"
)

// TableResolver reads effective-dated rows from the partner_rates table.
type TableResolver struct {
	DB *gorm.DB
}

// NewTableResolver returns a resolver over db.
func NewTableResolver(db *gorm.DB) *TableResolver { return &TableResolver{DB: db} }

// GetRate returns the amount valid for (partnerID, region) at at. ok is false
// when no row applies; that is not an error.
func (r *TableResolver) GetRate(ctx context.Context, partnerID int64, region string, at time.Time) (amount decimal.Decimal, ok bool, err error) {
	row, err := repo.FindRate(ctx, r.DB, partnerID, region, at)
	if errors.Is(err, repo.ErrNotFound) {
		return decimal.Zero, false, nil
	}
	if err != nil {
		return decimal.Zero, false, err
	}
	return row.Amount.Round(2), true, nil
}
