package domain

import (
	"time"

	"gorm.io/datatypes"
)

// AuditAction names a decision recorded against a sign-up.
type AuditAction string

const (
	AuditSubmitted         AuditAction = "submitted"
	AuditReplay            AuditAction = "idempotent_replay"
	AuditDuplicateDetected AuditAction = "duplicate_detected"
	AuditStatusChange      AuditAction = "status_change"
	AuditRecordUpdated     AuditAction = "record_updated"
)

// AuditEntry is an append-only row; it is never updated or deleted. The
// auto-increment ID gives a stable order for entries sharing a timestamp.
type AuditEntry struct {
	ID        uint64         `json:"id"         gorm:"primaryKey;autoIncrement"`
	SignUpID  string         `json:"signup_id"  gorm:"column:signup_id;type:char(36);not null;index:idx_audit_signup,priority:1"`
	Action    AuditAction    `json:"action"     gorm:"type:varchar(32);not null"`
	Actor     string         `json:"actor"      gorm:"type:varchar(64);not null"`
	Detail    datatypes.JSON `json:"detail"`
	CreatedAt time.Time      `json:"created_at" gorm:"not null;index:idx_audit_signup,priority:2"`
}

// TableName returns the database table name for AuditEntry.
func (AuditEntry) TableName() string { return "signup_audit" }
