package services

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"gorm.io/gorm"

	"github.com/tbourn/go-signup-backend/internal/repo"
)

// MaintenanceService hosts recurring housekeeping. It satisfies jobs.Purger.
type MaintenanceService struct {
	DB  *gorm.DB
	Now func() time.Time
}

// NewMaintenanceService returns a service over db.
func NewMaintenanceService(db *gorm.DB) *MaintenanceService {
	return &MaintenanceService{DB: db, Now: func() time.Time { return time.Now().UTC() }}
}

// PurgeExpiredTokens deletes ledger rows whose expiry has passed. Live tokens
// are never touched, so an in-flight replay within the 24h window is safe.
func (m *MaintenanceService) PurgeExpiredTokens(ctx context.Context) (int64, error) {
	ctx, span := otel.Tracer("services/MaintenanceService").Start(ctx, "PurgeExpiredTokens")
	defer span.End()

	now := time.Now().UTC()
	if m.Now != nil {
		now = m.Now().UTC()
	}
	n, err := repo.PurgeExpiredTokens(ctx, m.DB, now)
	if err != nil {
		return 0, err
	}
	log.Debug().Int64("purged", n).Msg("purge expired tokens")
	return n, nil
}
