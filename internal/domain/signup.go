// Package domain defines the core persistence models for the sign-up
// ingestion service. These types are used by GORM for schema mapping and are
// shared across the repository, service, and transport layers.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ValidationStatus is the review state of a sign-up. It only moves forward:
// pending -> validated | rejected.
type ValidationStatus string

const (
	StatusPending   ValidationStatus = "pending"
	StatusValidated ValidationStatus = "validated"
	StatusRejected  ValidationStatus = "rejected"
	StatusDuplicate ValidationStatus = "duplicate"
)

// Valid reports whether s is a known status.
func (s ValidationStatus) Valid() bool {
	switch s {
	case StatusPending, StatusValidated, StatusRejected, StatusDuplicate:
		return true
	}
	return false
}

// CanTransitionTo reports whether moving from s to next is a forward transition.
func (s ValidationStatus) CanTransitionTo(next ValidationStatus) bool {
	return s == StatusPending && (next == StatusValidated || next == StatusRejected)
}

// ExtractionStatus tracks the image field-extraction job for a sign-up.
type ExtractionStatus string

const (
	ExtractionPending   ExtractionStatus = "pending"
	ExtractionCompleted ExtractionStatus = "completed"
	ExtractionFailed    ExtractionStatus = "failed"
)

// SourceOfRecord says where a sign-up entered the system.
type SourceOfRecord string

const (
	SourceApp      SourceOfRecord = "app"
	SourceManual   SourceOfRecord = "manual"
	SourceExternal SourceOfRecord = "external"
)

// Valid reports whether s is a known source.
func (s SourceOfRecord) Valid() bool {
	switch s {
	case SourceApp, SourceManual, SourceExternal:
		return true
	}
	return false
}

// SignUp is the unit of truth for one physical customer submission.
//
// Exactly one of EventID and ChatID is set (enforced by a CHECK constraint).
// RateApplied is frozen at creation and never recomputed. SubmittedDay is the
// UTC calendar day of SubmittedAt and, together with the normalized email and
// partner, forms the duplicate window guarded by the partial unique index
// ux_signups_dup_window (created in repo.AutoMigrate).
type SignUp struct {
	ID      string  `json:"id"                 gorm:"type:char(36);primaryKey"`
	EventID *string `json:"event_id,omitempty" gorm:"type:varchar(64);index;check:chk_signups_channel,(event_id IS NULL) <> (chat_id IS NULL)"`
	ChatID  *string `json:"chat_id,omitempty"  gorm:"type:varchar(64);index"`
	AgentID string  `json:"agent_id"           gorm:"type:varchar(64);not null;index"`

	CustomerName            string  `json:"customer_name"            gorm:"type:varchar(255);not null"`
	CustomerEmail           string  `json:"customer_email"           gorm:"type:varchar(320);not null"`
	CustomerEmailNormalized string  `json:"-"                        gorm:"type:varchar(320);not null"`
	CustomerPhone           *string `json:"customer_phone,omitempty" gorm:"type:varchar(32)"`

	PartnerID   int64               `json:"partner_id"            gorm:"not null;index"`
	RegionCode  *string             `json:"region_code,omitempty" gorm:"type:varchar(16)"`
	RateApplied decimal.NullDecimal `json:"rate_applied"          gorm:"type:numeric(10,2)"`

	ValidationStatus ValidationStatus `json:"validation_status" gorm:"type:varchar(16);not null;default:'pending';check:validation_status IN ('pending','validated','rejected','duplicate')"`
	ExtractionStatus ExtractionStatus `json:"extraction_status" gorm:"type:varchar(16);not null;default:'pending'"`
	Source           SourceOfRecord   `json:"source"            gorm:"type:varchar(16);not null;default:'app'"`
	ImageURL         *string          `json:"image_url,omitempty" gorm:"type:text"`

	CRMSynced     bool `json:"crm_synced"      gorm:"not null;default:false"`
	CRMSyncFailed bool `json:"crm_sync_failed" gorm:"not null;default:false"`

	SubmittedDay string     `json:"submitted_day"          gorm:"type:char(10);not null"`
	SubmittedAt  time.Time  `json:"submitted_at"           gorm:"not null;index"`
	UpdatedAt    time.Time  `json:"updated_at"`
	ValidatedAt  *time.Time `json:"validated_at,omitempty"`
}

// TableName returns the database table name for SignUp.
func (SignUp) TableName() string { return "signups" }

// SignUpPatch is an operator correction to an existing sign-up. Absent fields
// are left untouched; email, partner, day and rate are deliberately not
// patchable because they define the duplicate window and the rate lock.
type SignUpPatch struct {
	CustomerName     Optional[string]           `json:"customer_name"`
	CustomerPhone    Optional[string]           `json:"customer_phone"`
	ValidationStatus Optional[ValidationStatus] `json:"validation_status"`
}

// Empty reports whether the patch carries no fields at all.
func (p SignUpPatch) Empty() bool {
	return !p.CustomerName.Set && !p.CustomerPhone.Set && !p.ValidationStatus.Set
}
