package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-signup-backend/internal/domain"
	"github.com/tbourn/go-signup-backend/internal/services"
	"github.com/tbourn/go-signup-backend/internal/storage"
)

const (
	testID    = "0d1f4c8e-6b4a-4d7e-9d55-3a0c1b2e7f90"
	testToken = "7a8d9f4c-1b2a-4c3d-8e9f-0123456789ab"
)

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := log.Logger
	t.Cleanup(func() { log.Logger = prev })
	log.Logger = zerolog.New(&buf)
	return &buf
}

// ---------- service stubs ----------

type stubSubmit struct {
	got    services.Submission
	submit func(services.Submission) (*services.Result, error)
}

func (s *stubSubmit) Submit(_ context.Context, sub services.Submission) (*services.Result, error) {
	s.got = sub
	return s.submit(sub)
}

type stubSignUps struct {
	get     func(id string) (*domain.SignUp, error)
	update  func(id string, p domain.SignUpPatch, actor string) (*domain.SignUp, error)
	trail   func(id string, page, size int) ([]domain.AuditEntry, int64, error)
	version func(id string) (int64, uint64, error)
}

func (s stubSignUps) Get(_ context.Context, id string) (*domain.SignUp, error) { return s.get(id) }
func (s stubSignUps) Update(_ context.Context, id string, p domain.SignUpPatch, actor string) (*domain.SignUp, error) {
	return s.update(id, p, actor)
}
func (s stubSignUps) AuditTrail(_ context.Context, id string, page, size int) ([]domain.AuditEntry, int64, error) {
	return s.trail(id, page, size)
}
func (s stubSignUps) AuditVersion(_ context.Context, id string) (int64, uint64, error) {
	if s.version == nil {
		return 0, 0, nil
	}
	return s.version(id)
}

type stubMaint struct {
	n   int64
	err error
}

func (s stubMaint) PurgeExpiredTokens(context.Context) (int64, error) { return s.n, s.err }

type stubImages map[string][]byte

func (s stubImages) Get(_ context.Context, key string) ([]byte, string, error) {
	b, ok := s[key]
	if !ok {
		return nil, "", storage.ErrNotFound
	}
	return b, "image/png", nil
}

// ---------- plumbing ----------

func newRouter(h *Handlers) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("X-Request-ID", "rid-test")
		c.Next()
	})
	api := r.Group("/api/v1")
	api.POST("/signups", h.SubmitSignUp)
	api.GET("/signups/:id", h.GetSignUp)
	api.PATCH("/signups/:id", h.UpdateSignUp)
	api.GET("/signups/:id/audit", h.ListAudit)
	api.POST("/maintenance/tokens/purge", h.PurgeExpiredTokens)
	r.GET("/images/:key", h.GetImage)
	return r
}

func send(t *testing.T, r http.Handler, method, path string, body any, hdr map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rd = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rd)
	if rd != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var e ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &e); err != nil {
		t.Fatalf("decode error body %q: %v", w.Body.String(), err)
	}
	return e
}

func strptr(s string) *string { return &s }
