package repo

import (
	"fmt"
	"strings"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-signup-backend/internal/domain"
)

// newTestDB returns a migrated, per-test in-memory database.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_pragma=foreign_keys(ON)", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func newSignUp(email string, partnerID int64, at time.Time) *domain.SignUp {
	ev := "event-1"
	return &domain.SignUp{
		ID:                      uuid.NewString(),
		EventID:                 &ev,
		AgentID:                 "agent-1",
		CustomerName:            "Jane Doe",
		CustomerEmail:           email,
		CustomerEmailNormalized: domain.NormalizeEmail(email),
		PartnerID:               partnerID,
		ValidationStatus:        domain.StatusPending,
		ExtractionStatus:        domain.ExtractionPending,
		Source:                  domain.SourceApp,
		SubmittedDay:            domain.UTCDay(at),
		SubmittedAt:             at.UTC(),
	}
}
