package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-signup-backend/internal/domain"
	"github.com/tbourn/go-signup-backend/internal/repo"
)

var t0 = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:svc_%s?mode=memory&cache=shared&_pragma=foreign_keys(ON)", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

// newFileDB opens a WAL database on disk; concurrency tests need real
// connection-level locking rather than a shared in-memory cache.
func newFileDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := repo.OpenSQLite(filepath.Join(t.TempDir(), "signups.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func newService(db *gorm.DB, deps Deps, now time.Time) *SubmissionService {
	s := NewSubmissionService(db, deps)
	s.Now = func() time.Time { return now }
	s.Audit.Now = s.Now
	return s
}

func strp(s string) *string { return &s }

func baseSubmission() Submission {
	return Submission{
		Token:         uuid.NewString(),
		EventID:       strp("event-42"),
		AgentID:       "agent-1",
		CustomerName:  "Jane Doe",
		CustomerEmail: "jane@x.com",
		PartnerID:     7,
	}
}

func countSignUps(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var n int64
	if err := db.Model(&domain.SignUp{}).Count(&n).Error; err != nil {
		t.Fatalf("count signups: %v", err)
	}
	return n
}

func auditActions(t *testing.T, db *gorm.DB, id string) []domain.AuditAction {
	t.Helper()
	entries, err := repo.ListAudit(context.Background(), db, id, 0, 0)
	if err != nil {
		t.Fatalf("ListAudit: %v", err)
	}
	out := make([]domain.AuditAction, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Action)
	}
	return out
}

func mustReject(t *testing.T, err error, kind Kind) *Rejection {
	t.Helper()
	var rej *Rejection
	if !errors.As(err, &rej) {
		t.Fatalf("expected *Rejection(%s), got %v", kind, err)
	}
	if rej.Kind != kind {
		t.Fatalf("rejection kind = %s (%s); want %s", rej.Kind, rej.Detail, kind)
	}
	return rej
}

// --- fakes ---

type fakeRates struct {
	amount decimal.Decimal
	ok     bool
	err    error
	block  bool
	hook   func()
}

func (f *fakeRates) GetRate(ctx context.Context, _ int64, _ string, _ time.Time) (decimal.Decimal, bool, error) {
	if f.hook != nil {
		f.hook()
	}
	if f.block {
		<-ctx.Done()
		return decimal.Zero, false, ctx.Err()
	}
	return f.amount, f.ok, f.err
}

type fakeStore struct {
	mu    sync.Mutex
	calls int
	ct    string
	err   error
	block bool
}

func (f *fakeStore) Put(ctx context.Context, data []byte, contentType string) (string, error) {
	f.mu.Lock()
	f.calls++
	f.ct = contentType
	f.mu.Unlock()
	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if f.err != nil {
		return "", f.err
	}
	return "https://cdn.test/images/" + uuid.NewString(), nil
}

type publishCall struct {
	topic, key string
	payload    []byte
}

type fakePublisher struct {
	mu    sync.Mutex
	calls []publishCall
	err   error
}

func (f *fakePublisher) Publish(_ context.Context, topic string, payload []byte, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, publishCall{topic, key, payload})
	return f.err
}

func (f *fakePublisher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeQueue struct {
	mu         sync.Mutex
	extraction []string
	sync       []string
	phases     []string
	err        error
}

func (f *fakeQueue) EnqueueExtraction(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.extraction = append(f.extraction, id)
	return f.err
}

func (f *fakeQueue) EnqueueSync(_ context.Context, id, phase string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sync = append(f.sync, id)
	f.phases = append(f.phases, phase)
	return f.err
}

// PNG signature plus padding; enough for content sniffing.
var pngBytes = append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 25)...)
