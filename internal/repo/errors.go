package repo

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = gorm.ErrRecordNotFound

// ErrDuplicate indicates that an insert or update hit a unique constraint
// (idempotency token reuse or the duplicate-window index).
var ErrDuplicate = errors.New("duplicate")

// ErrStale is returned by conditional updates whose precondition no longer
// holds (another writer moved the row first).
var ErrStale = errors.New("stale state")

// IsUniqueViolation reports whether err is a unique-constraint failure from
// either supported driver.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrDuplicate) || errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	// glebarez/sqlite often returns plain-text errors for UNIQUE violations.
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "unique constraint failed") ||
		strings.Contains(low, "constraint failed: unique") ||
		strings.Contains(low, "duplicate key")
}

func mapWriteErr(err error) error {
	if IsUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}
