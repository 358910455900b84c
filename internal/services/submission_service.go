// Package services – SubmissionService
//
// SubmissionService is the orchestrator for new customer sign-ups. One call
// to Submit walks a fixed sequence:
//
//  1. validate the idempotency token and required fields (no side effects)
//  2. replay: a live ledger entry returns the original record, isReplay=true
//  3. duplicate pre-check on (normalized email, partner, UTC day)
//  4. resolve the partner rate (bounded; failures degrade to "no rate")
//  5. decode and upload the optional image (bounded; failures reject)
//  6. one transaction: record + ledger row + "submitted" audit entry
//  7. post-commit fan-out: event, extraction job (image only), sync job
//
// Store-level unique constraints decide races: a transaction that loses on
// the token or on the duplicate window rolls back and the outcome is re-read
// from the store. Steps 6 and 7 run detached from caller cancellation.
package services

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-signup-backend/internal/domain"
	"github.com/tbourn/go-signup-backend/internal/events"
	"github.com/tbourn/go-signup-backend/internal/fanout"
	"github.com/tbourn/go-signup-backend/internal/jobs"
	"github.com/tbourn/go-signup-backend/internal/repo"
	"github.com/tbourn/go-signup-backend/internal/storage"
)

// Submission is one sign-up as received from an agent.
type Submission struct {
	Token         string
	EventID       *string
	ChatID        *string
	AgentID       string
	CustomerName  string
	CustomerEmail string
	CustomerPhone *string
	PartnerID     int64
	RegionCode    *string
	Source        domain.SourceOfRecord
	// Image is raw image bytes or a data URI; empty means no image.
	Image []byte
}

// Result is an accepted submission.
type Result struct {
	Record *domain.SignUp
	Replay bool
}

// Deps are the external collaborators of SubmissionService. Nil
// collaborators are skipped (Store nil makes image submissions fail).
type Deps struct {
	Rates      RateResolver
	Store      ObjectStore
	Events     EventPublisher
	Extraction ExtractionQueue
	Sync       SyncQueue
	Fanout     Dispatcher
}

// SubmissionService orchestrates Submit. It holds no per-request state and
// is safe for concurrent use.
type SubmissionService struct {
	DB    *gorm.DB
	Deps  Deps
	Audit *AuditLog

	TokenTTL       time.Duration
	RateTimeout    time.Duration
	UploadTimeout  time.Duration
	PersistTimeout time.Duration
	// FanoutTimeout bounds tasks run inline when Deps.Fanout is nil.
	FanoutTimeout time.Duration

	Now func() time.Time

	// beforePersist runs after the pre-checks and external calls, right
	// before the transaction opens. Tests use it to force races.
	beforePersist func(ctx context.Context)
}

// NewSubmissionService wires a service with default timeouts and a 24h
// token TTL.
func NewSubmissionService(db *gorm.DB, deps Deps) *SubmissionService {
	return &SubmissionService{
		DB:             db,
		Deps:           deps,
		Audit:          NewAuditLog(),
		TokenTTL:       24 * time.Hour,
		RateTimeout:    2 * time.Second,
		UploadTimeout:  10 * time.Second,
		PersistTimeout: 10 * time.Second,
		FanoutTimeout:  5 * time.Second,
		Now:            func() time.Time { return time.Now().UTC() },
	}
}

// Submit records sub exactly once. It returns a *Result for first-time and
// replayed submissions alike, or a *Rejection error.
func (s *SubmissionService) Submit(ctx context.Context, sub Submission) (res *Result, err error) {
	tr := otel.Tracer("services/SubmissionService")
	ctx, span := tr.Start(ctx, "Submit",
		trace.WithAttributes(
			attribute.String("agent.id", sub.AgentID),
			attribute.Int64("partner.id", sub.PartnerID),
			attribute.Bool("has_image", len(sub.Image) > 0),
		),
	)
	defer span.End()
	defer func() { s.observe(span, res, err) }()

	if rej := validateSubmission(&sub); rej != nil {
		return nil, rej
	}
	now := s.now()

	// Replay before duplicate check so retries are deterministic.
	if res, err := s.replay(ctx, sub); res != nil || err != nil {
		return res, err
	}

	email := domain.NormalizeEmail(sub.CustomerEmail)
	day := domain.UTCDay(now)
	existing, err := repo.FindDuplicate(ctx, s.DB, email, sub.PartnerID, day)
	switch {
	case err == nil:
		return nil, s.duplicate(ctx, existing, sub, "precheck")
	case !errors.Is(err, repo.ErrNotFound):
		return nil, internalErr(err, "duplicate check failed")
	}

	rate, rateWarning := s.resolveRate(ctx, sub, now)

	imageURL, rej := s.upload(ctx, sub.Image)
	if rej != nil {
		return nil, rej
	}

	if err := ctx.Err(); err != nil {
		return nil, internalErr(err, "request cancelled")
	}
	if s.beforePersist != nil {
		s.beforePersist(ctx)
	}

	rec := &domain.SignUp{
		ID:                      uuid.NewString(),
		EventID:                 sub.EventID,
		ChatID:                  sub.ChatID,
		AgentID:                 sub.AgentID,
		CustomerName:            sub.CustomerName,
		CustomerEmail:           strings.TrimSpace(sub.CustomerEmail),
		CustomerEmailNormalized: email,
		CustomerPhone:           sub.CustomerPhone,
		PartnerID:               sub.PartnerID,
		RegionCode:              sub.RegionCode,
		RateApplied:             rate,
		ValidationStatus:        domain.StatusPending,
		ExtractionStatus:        domain.ExtractionPending,
		Source:                  sub.Source,
		ImageURL:                imageURL,
		SubmittedDay:            day,
		SubmittedAt:             now,
		UpdatedAt:               now,
	}

	detail := map[string]any{"token": sub.Token}
	if rateWarning != "" {
		detail["warning"] = rateWarning
	}

	// The commit must survive the client going away.
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.PersistTimeout)
	defer cancel()

	err = s.DB.WithContext(pctx).Transaction(func(tx *gorm.DB) error {
		if err := repo.CreateSignUp(pctx, tx, rec); err != nil {
			return err
		}
		if _, err := repo.InsertToken(pctx, tx, sub.Token, rec.ID, now, s.TokenTTL); err != nil {
			return err
		}
		s.Audit.Append(pctx, tx, rec.ID, domain.AuditSubmitted, sub.AgentID, detail)
		return nil
	})
	if err != nil {
		if repo.IsUniqueViolation(err) {
			return s.lostRace(pctx, sub, email, day)
		}
		log.Error().Err(err).Str("agent_id", sub.AgentID).Msg("sign-up persist failed")
		return nil, internalErr(err, "persist failed")
	}

	s.fanOut(rec, imageURL != nil)
	return &Result{Record: rec, Replay: false}, nil
}

// replay returns the original record for a live token, a validation error for
// an expired one, and (nil, nil) when the token is unknown.
func (s *SubmissionService) replay(ctx context.Context, sub Submission) (*Result, error) {
	tok, err := repo.GetToken(ctx, s.DB, sub.Token)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, internalErr(err, "ledger lookup failed")
	}
	if !tok.Live(s.now()) {
		return nil, invalid(ErrTokenExpired, "")
	}
	return s.replayRecord(ctx, tok.SignUpID, sub)
}

func (s *SubmissionService) replayRecord(ctx context.Context, id string, sub Submission) (*Result, error) {
	rec, err := repo.GetSignUp(ctx, s.DB, id)
	if err != nil {
		return nil, internalErr(err, "replayed record could not be loaded")
	}
	s.Audit.Append(ctx, s.DB, rec.ID, domain.AuditReplay, sub.AgentID, map[string]any{"token": sub.Token})
	return &Result{Record: rec, Replay: true}, nil
}

// duplicate writes the attempted-duplicate audit entry against the existing
// record and builds the rejection.
func (s *SubmissionService) duplicate(ctx context.Context, existingID string, sub Submission, stage string) error {
	s.Audit.Append(ctx, s.DB, existingID, domain.AuditDuplicateDetected, sub.AgentID, map[string]any{
		"token":          sub.Token,
		"agent_id":       sub.AgentID,
		"customer_email": strings.TrimSpace(sub.CustomerEmail),
		"partner_id":     sub.PartnerID,
		"stage":          stage,
	})
	return &Rejection{
		Kind:             KindDuplicate,
		Detail:           "a sign-up for this customer and partner already exists today",
		ExistingRecordID: existingID,
	}
}

// lostRace resolves a unique violation: the token winner is a replay,
// otherwise the duplicate-window winner is a duplicate.
func (s *SubmissionService) lostRace(ctx context.Context, sub Submission, email, day string) (*Result, error) {
	tok, err := repo.GetToken(ctx, s.DB, sub.Token)
	if err == nil {
		return s.replayRecord(ctx, tok.SignUpID, sub)
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return nil, internalErr(err, "ledger lookup failed")
	}
	existing, err := repo.FindDuplicate(ctx, s.DB, email, sub.PartnerID, day)
	if err == nil {
		return nil, s.duplicate(ctx, existing, sub, "commit")
	}
	return nil, internalErr(err, "unique violation without a winner")
}

func (s *SubmissionService) resolveRate(ctx context.Context, sub Submission, now time.Time) (decimal.NullDecimal, string) {
	if sub.RegionCode == nil || s.Deps.Rates == nil {
		return decimal.NullDecimal{}, ""
	}
	rctx, cancel := context.WithTimeout(ctx, s.RateTimeout)
	defer cancel()

	amount, ok, err := s.Deps.Rates.GetRate(rctx, sub.PartnerID, *sub.RegionCode, now)
	var warning string
	switch {
	case err != nil:
		warning = "rate lookup failed: " + err.Error()
	case !ok:
		warning = "no rate configured for partner and region"
	default:
		return decimal.NewNullDecimal(amount.Round(2)), ""
	}
	log.Warn().
		Int64("partner_id", sub.PartnerID).
		Str("region", *sub.RegionCode).
		Err(err).
		Msg(warning)
	return decimal.NullDecimal{}, warning
}

func (s *SubmissionService) upload(ctx context.Context, raw []byte) (*string, *Rejection) {
	if len(raw) == 0 {
		return nil, nil
	}
	data, contentType, err := storage.DecodeImage(raw)
	if err != nil {
		return nil, invalid(err, "")
	}
	if s.Deps.Store == nil {
		return nil, &Rejection{Kind: KindImageUpload, Detail: "object store not configured"}
	}
	uctx, cancel := context.WithTimeout(ctx, s.UploadTimeout)
	defer cancel()

	url, err := s.Deps.Store.Put(uctx, data, contentType)
	if err != nil {
		detail := err.Error()
		if errors.Is(err, context.DeadlineExceeded) {
			detail = "object store timed out"
		}
		return nil, &Rejection{Kind: KindImageUpload, Detail: detail, Err: err}
	}
	return &url, nil
}

func (s *SubmissionService) fanOut(rec *domain.SignUp, hasImage bool) {
	payload, err := events.SignUpSubmitted{
		RecordID:    rec.ID,
		AgentID:     rec.AgentID,
		PartnerID:   rec.PartnerID,
		HasImage:    hasImage,
		SubmittedAt: rec.SubmittedAt,
	}.Encode()
	if err == nil && s.Deps.Events != nil {
		s.dispatch("publish_submitted", func(ctx context.Context) error {
			return s.Deps.Events.Publish(ctx, events.TopicSignUpSubmitted, payload, rec.ID)
		})
	}
	if hasImage && s.Deps.Extraction != nil {
		s.dispatch("enqueue_extraction", func(ctx context.Context) error {
			return s.Deps.Extraction.EnqueueExtraction(ctx, rec.ID)
		})
	}
	if s.Deps.Sync != nil {
		s.dispatch("enqueue_sync", func(ctx context.Context) error {
			return s.Deps.Sync.EnqueueSync(ctx, rec.ID, jobs.PhaseInitial)
		})
	}
}

func (s *SubmissionService) dispatch(name string, t fanout.Task) {
	if s.Deps.Fanout != nil {
		s.Deps.Fanout.Dispatch(name, t)
		return
	}
	_ = fanout.Run(name, s.FanoutTimeout, t)
}

func (s *SubmissionService) observe(span trace.Span, res *Result, err error) {
	outcome := outcomeAccepted
	switch {
	case err != nil:
		outcome = string(KindOf(err))
		span.SetAttributes(attribute.String("outcome", outcome))
		if KindOf(err) == KindInternal {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	case res != nil && res.Replay:
		outcome = outcomeReplay
		span.SetAttributes(attribute.String("signup.id", res.Record.ID), attribute.Bool("replay", true))
	case res != nil:
		span.SetAttributes(attribute.String("signup.id", res.Record.ID), attribute.Bool("replay", false))
	}
	submissionsTotal.WithLabelValues(outcome).Inc()
}

func (s *SubmissionService) now() time.Time {
	if s.Now == nil {
		return time.Now().UTC()
	}
	return s.Now().UTC()
}

// validateSubmission checks and normalizes sub in place.
func validateSubmission(sub *Submission) *Rejection {
	sub.Token = strings.ToLower(strings.TrimSpace(sub.Token))
	if !domain.ValidToken(sub.Token) {
		return invalid(ErrInvalidToken, "")
	}
	sub.EventID = trimmedOrNil(sub.EventID)
	sub.ChatID = trimmedOrNil(sub.ChatID)
	if (sub.EventID == nil) == (sub.ChatID == nil) {
		return invalid(nil, "exactly one of event_id and chat_id is required")
	}
	sub.AgentID = strings.TrimSpace(sub.AgentID)
	if sub.AgentID == "" {
		return invalid(nil, "agent_id is required")
	}
	sub.CustomerName = domain.NormalizeName(sub.CustomerName)
	if sub.CustomerName == "" {
		return invalid(nil, "customer_name is required")
	}
	addr, err := mail.ParseAddress(strings.TrimSpace(sub.CustomerEmail))
	if err != nil || addr.Address != strings.TrimSpace(sub.CustomerEmail) {
		return invalid(err, "customer_email is not a valid address")
	}
	if sub.PartnerID <= 0 {
		return invalid(nil, "partner_id must be positive")
	}
	sub.CustomerPhone = trimmedOrNil(sub.CustomerPhone)
	sub.RegionCode = trimmedOrNil(sub.RegionCode)
	if sub.RegionCode != nil {
		up := strings.ToUpper(*sub.RegionCode)
		sub.RegionCode = &up
	}
	if sub.Source == "" {
		sub.Source = domain.SourceApp
	}
	if !sub.Source.Valid() {
		return invalid(nil, "source must be one of app, manual, external")
	}
	return nil
}

func trimmedOrNil(p *string) *string {
	if p == nil {
		return nil
	}
	v := strings.TrimSpace(*p)
	if v == "" {
		return nil
	}
	return &v
}
