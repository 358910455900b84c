package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PartnerRate is one effective-dated row of a partner's payout table. The
// rate valid at T has the greatest EffectiveFrom <= T and either no
// EffectiveTo or EffectiveTo > T.
type PartnerRate struct {
	ID            uint64          `gorm:"primaryKey;autoIncrement"`
	PartnerID     int64           `gorm:"not null;index:idx_rates_lookup,priority:1"`
	RegionCode    string          `gorm:"type:varchar(16);not null;index:idx_rates_lookup,priority:2"`
	Amount        decimal.Decimal `gorm:"type:numeric(10,2);not null"`
	EffectiveFrom time.Time       `gorm:"not null;index:idx_rates_lookup,priority:3"`
	EffectiveTo   *time.Time
}

// TableName returns the database table name for PartnerRate.
func (PartnerRate) TableName() string { return "partner_rates" }
