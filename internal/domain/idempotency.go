package domain

import (
	"time"

	"github.com/google/uuid"
)

// IdempotencyToken maps a client-generated (UUIDv4) token to the sign-up it
// produced. The token is the primary key, so a second insert for the same
// token fails inside the transaction that would have created a second record.
// Rows are read-only after creation and removed only by the expiry sweep.
type IdempotencyToken struct {
	Token     string    `gorm:"type:char(36);primaryKey"`
	SignUpID  string    `gorm:"column:signup_id;type:char(36);not null;uniqueIndex:ux_tokens_signup"`
	CreatedAt time.Time `gorm:"not null"`
	ExpiresAt time.Time `gorm:"not null;index"`

	SignUp SignUp `gorm:"foreignKey:SignUpID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName implements the GORM tabler interface.
func (IdempotencyToken) TableName() string { return "idempotency_tokens" }

// Live reports whether the token is still inside its replay window at now.
func (t IdempotencyToken) Live(now time.Time) bool { return t.ExpiresAt.After(now) }

// ValidToken reports whether s is a canonical (8-4-4-4-12) version-4 UUID
// with the RFC 4122 variant.
func ValidToken(s string) bool {
	if len(s) != 36 {
		return false
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return false
	}
	return u.Version() == 4 && u.Variant() == uuid.RFC4122
}
