// Sign-up HTTP handlers.
//
// This file exposes REST endpoints for sign-up records:
//   - POST  /signups             (submit, idempotent on the client token)
//   - GET   /signups/{id}        (fetch)
//   - PATCH /signups/{id}        (operator correction / status change)
//   - GET   /signups/{id}/audit  (audit trail, paginated, ETag support)
//
// Idempotency:
// The token comes from the Idempotency-Key header when present, otherwise
// from the body's idempotency_token. A replay answers 201 with the original
// record, is_replay=true and `Idempotency-Replayed: true`.
package handlers

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tbourn/go-signup-backend/internal/domain"
	"github.com/tbourn/go-signup-backend/internal/http/middleware"
	"github.com/tbourn/go-signup-backend/internal/services"
	"github.com/tbourn/go-signup-backend/internal/utils"
)

// HeaderActor names the operator performing a PATCH. Missing means "operator".
const HeaderActor = "X-Actor"

//
// DTOs
//

// SubmitSignUpRequest is the JSON payload an agent sends for one customer.
// Exactly one of event_id and chat_id must be set.
type SubmitSignUpRequest struct {
	IdempotencyToken string  `json:"idempotency_token" example:"7a8d9f4c-1b2a-4c3d-8e9f-0123456789ab"`
	EventID          *string `json:"event_id,omitempty" example:"evt-2024-spring-fair"`
	ChatID           *string `json:"chat_id,omitempty"`
	AgentID          string  `json:"agent_id" example:"agent-17"`
	CustomerName     string  `json:"customer_name" example:"Ana Souza"`
	CustomerEmail    string  `json:"customer_email" example:"ana@example.com"`
	CustomerPhone    *string `json:"customer_phone,omitempty" example:"+55 11 91234-5678"`
	PartnerID        int64   `json:"partner_id" example:"42"`
	RegionCode       *string `json:"region_code,omitempty" example:"SP"`
	Source           string  `json:"source,omitempty" example:"app" enums:"app,manual,external"`
	// Image is a data URI or base64-encoded image bytes.
	Image string `json:"image,omitempty"`
}

// SubmitSignUpResponse wraps the stored record.
type SubmitSignUpResponse struct {
	Record   *domain.SignUp `json:"record"`
	IsReplay bool           `json:"is_replay"`
}

// AuditTrailResponse is one page of a sign-up's audit entries, oldest first.
type AuditTrailResponse struct {
	Entries    []domain.AuditEntry `json:"entries"`
	Pagination Pagination          `json:"pagination"`
}

//
// Helpers
//

// decodeImageField turns the request's image string into bytes for the
// submission service. Data URIs pass through untouched so their declared type
// survives; anything else must be base64.
func decodeImageField(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if len(s) >= 5 && strings.EqualFold(s[:5], "data:") {
		return []byte(s), nil
	}
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		if b, err = base64.RawStdEncoding.DecodeString(s); err != nil {
			return nil, errors.New("image must be a data URI or base64")
		}
	}
	return b, nil
}

func submissionToken(c *gin.Context, body string) string {
	if k, ok := middleware.GetIdempotencyKey(c); ok {
		return k
	}
	if h := strings.TrimSpace(c.GetHeader(middleware.HeaderIdempotencyKey)); h != "" {
		return h
	}
	return strings.TrimSpace(body)
}

func validSignUpID(c *gin.Context) (string, bool) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "sign-up id must be a UUID")
		return "", false
	}
	return strings.ToLower(id), true
}

func bindError(c *gin.Context, err error) {
	var tooBig *http.MaxBytesError
	if errors.As(err, &tooBig) {
		fail(c, http.StatusRequestEntityTooLarge, ErrCodeValidation,
			fmt.Sprintf("request body exceeds %d bytes", tooBig.Limit))
		return
	}
	fail(c, http.StatusBadRequest, ErrCodeValidation, "malformed JSON body")
}

//
// Handlers
//

// SubmitSignUp godoc
// @ID          submitSignUp
// @Summary     Submit a customer sign-up
// @Description Records one sign-up exactly once per idempotency token. Retrying with the
// @Description same token returns the original record with is_replay=true.
// @Tags        SignUps
// @Accept      json
// @Produce     json
//
// @Param       Idempotency-Key  header  string  false  "Version-4 UUID; wins over idempotency_token"  example(7a8d9f4c-1b2a-4c3d-8e9f-0123456789ab)
// @Param       body             body    handlers.SubmitSignUpRequest  true  "Sign-up payload"
//
// @Success     201  {object}  handlers.SubmitSignUpResponse  "Stored or replayed record"
// @Failure     400  {object}  handlers.ErrorResponse         "validation_error"
// @Failure     409  {object}  handlers.ErrorResponse         "duplicate_detected"
// @Failure     413  {object}  handlers.ErrorResponse         "Body too large"
// @Failure     502  {object}  handlers.ErrorResponse         "image_upload_failed"
// @Failure     500  {object}  handlers.ErrorResponse         "internal"
// @Router      /signups [post]
func (h *Handlers) SubmitSignUp(c *gin.Context) {
	var req SubmitSignUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	token := submissionToken(c, req.IdempotencyToken)
	if !domain.ValidToken(strings.ToLower(token)) {
		fail(c, http.StatusBadRequest, ErrCodeValidation, services.ErrInvalidToken.Error())
		return
	}
	img, err := decodeImageField(req.Image)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeValidation, err.Error())
		return
	}

	res, err := h.submitSvc.Submit(c.Request.Context(), services.Submission{
		Token:         token,
		EventID:       req.EventID,
		ChatID:        req.ChatID,
		AgentID:       req.AgentID,
		CustomerName:  req.CustomerName,
		CustomerEmail: req.CustomerEmail,
		CustomerPhone: req.CustomerPhone,
		PartnerID:     req.PartnerID,
		RegionCode:    req.RegionCode,
		Source:        domain.SourceOfRecord(strings.ToLower(strings.TrimSpace(req.Source))),
		Image:         img,
	})
	if err != nil {
		failSubmission(c, err)
		return
	}

	if res.Replay {
		c.Header("Idempotency-Replayed", "true")
	}
	c.Header("Location", c.FullPath()+"/"+res.Record.ID)
	ok(c, http.StatusCreated, SubmitSignUpResponse{Record: res.Record, IsReplay: res.Replay})
}

// GetSignUp godoc
// @ID          getSignUp
// @Summary     Fetch a sign-up
// @Tags        SignUps
// @Produce     json
// @Param       id   path      string  true  "Sign-up ID"  format(uuid)
// @Success     200  {object}  domain.SignUp
// @Failure     400  {object}  handlers.ErrorResponse "Bad id"
// @Failure     404  {object}  handlers.ErrorResponse "Not found"
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /signups/{id} [get]
func (h *Handlers) GetSignUp(c *gin.Context) {
	id, okID := validSignUpID(c)
	if !okID {
		return
	}
	rec, err := h.signUpSvc.Get(c.Request.Context(), id)
	switch {
	case errors.Is(err, services.ErrSignUpNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "sign-up not found")
	case err != nil:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
	default:
		ok(c, http.StatusOK, rec)
	}
}

// UpdateSignUp godoc
// @ID          updateSignUp
// @Summary     Correct a sign-up or change its validation status
// @Description Absent fields are untouched; null clears customer_phone. Status can only
// @Description move from pending to validated or rejected.
// @Tags        SignUps
// @Accept      json
// @Produce     json
// @Param       id       path    string  true   "Sign-up ID"  format(uuid)
// @Param       X-Actor  header  string  false  "Operator performing the change"
// @Param       body     body    domain.SignUpPatch  true  "Patch"
// @Success     200  {object}  domain.SignUp
// @Failure     400  {object}  handlers.ErrorResponse "validation_error"
// @Failure     404  {object}  handlers.ErrorResponse "Not found"
// @Failure     409  {object}  handlers.ErrorResponse "invalid_transition or conflict"
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /signups/{id} [patch]
func (h *Handlers) UpdateSignUp(c *gin.Context) {
	id, okID := validSignUpID(c)
	if !okID {
		return
	}
	var patch domain.SignUpPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		bindError(c, err)
		return
	}

	rec, err := h.signUpSvc.Update(c.Request.Context(), id, patch, c.GetHeader(HeaderActor))
	switch {
	case err == nil:
		ok(c, http.StatusOK, rec)
	case errors.Is(err, services.ErrSignUpNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "sign-up not found")
	case errors.Is(err, services.ErrInvalidPatch):
		fail(c, http.StatusBadRequest, ErrCodeValidation, err.Error())
	case errors.Is(err, services.ErrInvalidTransition):
		fail(c, http.StatusConflict, ErrCodeInvalidTransition, err.Error())
	case errors.Is(err, services.ErrConcurrentUpdate):
		fail(c, http.StatusConflict, ErrCodeConflict, err.Error())
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
	}
}

// ListAudit godoc
// @ID          listSignUpAudit
// @Summary     List a sign-up's audit trail
// @Description Entries are returned oldest first. Supports If-None-Match.
// @Tags        SignUps
// @Produce     json
// @Param       id         path   string  true  "Sign-up ID"  format(uuid)
// @Param       page       query  int     false "Page number"     minimum(1) default(1)
// @Param       page_size  query  int     false "Items per page"  minimum(1) maximum(200) default(50)
// @Success     200  {object}  handlers.AuditTrailResponse
// @Success     304  "Not modified"
// @Failure     400  {object}  handlers.ErrorResponse "Bad id"
// @Failure     404  {object}  handlers.ErrorResponse "Not found"
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /signups/{id}/audit [get]
func (h *Handlers) ListAudit(c *gin.Context) {
	id, okID := validSignUpID(c)
	if !okID {
		return
	}
	ctx := c.Request.Context()

	// ETag pre-check (best effort); a new entry always bumps count and maxID.
	if count, maxID, err := h.signUpSvc.AuditVersion(ctx, id); err == nil && count > 0 {
		etag := fmt.Sprintf(`W/"audit:%s:%d:%d"`, id, count, maxID)
		c.Header("ETag", etag)
		if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
			c.Status(http.StatusNotModified)
			return
		}
	}

	page, pageSize := utils.ClampPage(
		utils.AtoiDefault(c.Query("page"), 1),
		utils.AtoiDefault(c.Query("page_size"), services.DefaultAuditPageSize),
		services.DefaultAuditPageSize, services.MaxAuditPageSize,
	)
	items, total, err := h.signUpSvc.AuditTrail(ctx, id, page, pageSize)
	switch {
	case errors.Is(err, services.ErrSignUpNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "sign-up not found")
		return
	case err != nil:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, AuditTrailResponse{
		Entries:    items,
		Pagination: newPagination(page, pageSize, total),
	})
}
