package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-signup-backend/internal/domain"
	"github.com/tbourn/go-signup-backend/internal/services"
)

func submitBody() map[string]any {
	return map[string]any{
		"idempotency_token": testToken,
		"event_id":          "evt-1",
		"agent_id":          "agent-1",
		"customer_name":     "Ana Souza",
		"customer_email":    "ana@example.com",
		"partner_id":        42,
		"region_code":       "sp",
		"source":            " Manual ",
	}
}

func acceptAll(replay bool) func(services.Submission) (*services.Result, error) {
	return func(sub services.Submission) (*services.Result, error) {
		return &services.Result{
			Record: &domain.SignUp{ID: testID, AgentID: sub.AgentID, CustomerEmail: sub.CustomerEmail},
			Replay: replay,
		}, nil
	}
}

func TestSubmitSignUp_Created(t *testing.T) {
	svc := &stubSubmit{submit: acceptAll(false)}
	r := newRouter(New(svc, nil, nil, nil))

	w := send(t, r, http.MethodPost, "/api/v1/signups", submitBody(), nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	var resp SubmitSignUpResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("json: %v", err)
	}
	if resp.IsReplay || resp.Record == nil || resp.Record.ID != testID {
		t.Fatalf("resp = %+v", resp)
	}
	if w.Header().Get("Idempotency-Replayed") != "" {
		t.Fatalf("first submission must not be flagged as replay")
	}
	if got := w.Header().Get("Location"); got != "/api/v1/signups/"+testID {
		t.Fatalf("Location = %q", got)
	}

	got := svc.got
	if got.Token != testToken || got.AgentID != "agent-1" || got.PartnerID != 42 {
		t.Fatalf("submission = %+v", got)
	}
	if got.EventID == nil || *got.EventID != "evt-1" || got.ChatID != nil {
		t.Fatalf("channel = %v / %v", got.EventID, got.ChatID)
	}
	if got.Source != domain.SourceManual {
		t.Fatalf("source = %q", got.Source)
	}
	if got.Image != nil {
		t.Fatalf("no image expected")
	}
}

func TestSubmitSignUp_HeaderTokenWins(t *testing.T) {
	svc := &stubSubmit{submit: acceptAll(false)}
	r := newRouter(New(svc, nil, nil, nil))

	hdr := "9b1deb4d-3b7d-4bad-9bdd-2b0d7b3dcb6d"
	send(t, r, http.MethodPost, "/api/v1/signups", submitBody(), map[string]string{"Idempotency-Key": hdr})
	if svc.got.Token != hdr {
		t.Fatalf("token = %q; want header value", svc.got.Token)
	}
}

func TestSubmitSignUp_Replay(t *testing.T) {
	r := newRouter(New(&stubSubmit{submit: acceptAll(true)}, nil, nil, nil))

	w := send(t, r, http.MethodPost, "/api/v1/signups", submitBody(), nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("replay status = %d", w.Code)
	}
	if w.Header().Get("Idempotency-Replayed") != "true" {
		t.Fatalf("missing replay header")
	}
	var resp SubmitSignUpResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if !resp.IsReplay {
		t.Fatalf("is_replay = false")
	}
}

func TestSubmitSignUp_Rejections(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		status   int
		code     string
		existing string
		message  string
	}{
		{"validation", &services.Rejection{Kind: services.KindValidation, Detail: "customer_email is not a valid address"},
			http.StatusBadRequest, ErrCodeValidation, "", "customer_email is not a valid address"},
		{"duplicate", &services.Rejection{Kind: services.KindDuplicate, Detail: "already signed up", ExistingRecordID: testID},
			http.StatusConflict, ErrCodeDuplicate, testID, "already signed up"},
		{"image", &services.Rejection{Kind: services.KindImageUpload, Detail: "store unavailable"},
			http.StatusBadGateway, ErrCodeImageUpload, "", "store unavailable"},
		{"internal rejection", &services.Rejection{Kind: services.KindInternal, Detail: "sql: connection refused"},
			http.StatusInternalServerError, ErrCodeInternal, "", "internal error"},
		{"plain error", errors.New("boom"),
			http.StatusInternalServerError, ErrCodeInternal, "", "internal error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			logs := captureLogs(t)
			svc := &stubSubmit{submit: func(services.Submission) (*services.Result, error) { return nil, tc.err }}
			r := newRouter(New(svc, nil, nil, nil))

			w := send(t, r, http.MethodPost, "/api/v1/signups", submitBody(), nil)
			if w.Code != tc.status {
				t.Fatalf("status = %d; want %d", w.Code, tc.status)
			}
			e := decodeError(t, w)
			if e.Code != tc.code || e.ExistingRecordID != tc.existing || e.Message != tc.message || e.RequestID != "rid-test" {
				t.Fatalf("envelope = %+v", e)
			}
			if tc.status >= 500 && !strings.Contains(logs.String(), `"level":"error"`) {
				t.Fatalf("5xx must be logged:\n%s", logs.String())
			}
		})
	}
}

func TestSubmitSignUp_ImageField(t *testing.T) {
	svc := &stubSubmit{submit: acceptAll(false)}
	r := newRouter(New(svc, nil, nil, nil))

	body := submitBody()
	body["image"] = "data:image/png;base64,iVBORw0KGgo="
	send(t, r, http.MethodPost, "/api/v1/signups", body, nil)
	if string(svc.got.Image) != "data:image/png;base64,iVBORw0KGgo=" {
		t.Fatalf("data URI must pass through, got %q", svc.got.Image)
	}

	body["image"] = "aGVsbG8=" // "hello"
	send(t, r, http.MethodPost, "/api/v1/signups", body, nil)
	if string(svc.got.Image) != "hello" {
		t.Fatalf("base64 not decoded: %q", svc.got.Image)
	}

	called := false
	svc.submit = func(services.Submission) (*services.Result, error) { called = true; return nil, nil }
	body["image"] = "!!not base64!!"
	w := send(t, r, http.MethodPost, "/api/v1/signups", body, nil)
	if w.Code != http.StatusBadRequest || decodeError(t, w).Code != ErrCodeValidation {
		t.Fatalf("bad image: status=%d body=%s", w.Code, w.Body.String())
	}
	if called {
		t.Fatalf("service must not run for an undecodable image")
	}
}

func TestSubmitSignUp_TokenCheckedBeforeImage(t *testing.T) {
	called := false
	svc := &stubSubmit{submit: func(services.Submission) (*services.Result, error) { called = true; return nil, nil }}
	r := newRouter(New(svc, nil, nil, nil))

	body := submitBody()
	body["idempotency_token"] = "not-a-uuid"
	body["image"] = "!!not base64!!"
	w := send(t, r, http.MethodPost, "/api/v1/signups", body, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d body=%s", w.Code, w.Body.String())
	}
	if e := decodeError(t, w); e.Code != ErrCodeValidation || e.Message != services.ErrInvalidToken.Error() {
		t.Fatalf("error = %+v; want the token failure", e)
	}
	if called {
		t.Fatalf("service must not run for an invalid token")
	}
}

func TestSubmitSignUp_MalformedAndOversizedBody(t *testing.T) {
	svc := &stubSubmit{submit: acceptAll(false)}
	r := newRouter(New(svc, nil, nil, nil))

	w := send(t, r, http.MethodPost, "/api/v1/signups", `{"agent_id":`, nil)
	if w.Code != http.StatusBadRequest || decodeError(t, w).Code != ErrCodeValidation {
		t.Fatalf("malformed: %d %s", w.Code, w.Body.String())
	}

	gin.SetMode(gin.TestMode)
	small := gin.New()
	small.Use(func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, 16)
		c.Next()
	})
	small.POST("/signups", New(svc, nil, nil, nil).SubmitSignUp)
	w = send(t, small, http.MethodPost, "/signups", submitBody(), nil)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("oversized: %d %s", w.Code, w.Body.String())
	}
}

func TestGetSignUp(t *testing.T) {
	svc := stubSignUps{get: func(id string) (*domain.SignUp, error) {
		if id == testID {
			return &domain.SignUp{ID: id, ValidationStatus: domain.StatusPending}, nil
		}
		return nil, services.ErrSignUpNotFound
	}}
	r := newRouter(New(nil, svc, nil, nil))

	if w := send(t, r, http.MethodGet, "/api/v1/signups/nope", nil, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("bad id = %d", w.Code)
	}
	if w := send(t, r, http.MethodGet, "/api/v1/signups/9b1deb4d-3b7d-4bad-9bdd-2b0d7b3dcb6d", nil, nil); w.Code != http.StatusNotFound {
		t.Fatalf("missing = %d", w.Code)
	}
	w := send(t, r, http.MethodGet, "/api/v1/signups/"+strings.ToUpper(testID), nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get = %d", w.Code)
	}
	var rec domain.SignUp
	if err := json.Unmarshal(w.Body.Bytes(), &rec); err != nil || rec.ID != testID {
		t.Fatalf("rec = %+v err=%v", rec, err)
	}
}

func TestUpdateSignUp(t *testing.T) {
	var gotPatch domain.SignUpPatch
	var gotActor string
	var next error
	svc := stubSignUps{update: func(id string, p domain.SignUpPatch, actor string) (*domain.SignUp, error) {
		gotPatch, gotActor = p, actor
		if next != nil {
			return nil, next
		}
		return &domain.SignUp{ID: id, ValidationStatus: domain.StatusValidated}, nil
	}}
	r := newRouter(New(nil, svc, nil, nil))
	path := "/api/v1/signups/" + testID

	w := send(t, r, http.MethodPatch, path, `{"validation_status":"validated","customer_phone":null}`, map[string]string{HeaderActor: "ops-1"})
	if w.Code != http.StatusOK {
		t.Fatalf("patch = %d %s", w.Code, w.Body.String())
	}
	if gotActor != "ops-1" {
		t.Fatalf("actor = %q", gotActor)
	}
	if !gotPatch.ValidationStatus.Set || gotPatch.ValidationStatus.Value != domain.StatusValidated {
		t.Fatalf("status patch = %+v", gotPatch.ValidationStatus)
	}
	if !gotPatch.CustomerPhone.Set || !gotPatch.CustomerPhone.Null || gotPatch.CustomerName.Set {
		t.Fatalf("contact patch = %+v / %+v", gotPatch.CustomerPhone, gotPatch.CustomerName)
	}

	cases := []struct {
		err    error
		status int
		code   string
	}{
		{services.ErrSignUpNotFound, http.StatusNotFound, ErrCodeNotFound},
		{services.ErrInvalidPatch, http.StatusBadRequest, ErrCodeValidation},
		{services.ErrInvalidTransition, http.StatusConflict, ErrCodeInvalidTransition},
		{services.ErrConcurrentUpdate, http.StatusConflict, ErrCodeConflict},
		{errors.New("db"), http.StatusInternalServerError, ErrCodeInternal},
	}
	captureLogs(t)
	for _, tc := range cases {
		next = tc.err
		w := send(t, r, http.MethodPatch, path, `{"customer_name":"X"}`, nil)
		if w.Code != tc.status || decodeError(t, w).Code != tc.code {
			t.Fatalf("%v: %d %s", tc.err, w.Code, w.Body.String())
		}
	}

	if w := send(t, r, http.MethodPatch, path, `{"customer_name":`, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("malformed patch = %d", w.Code)
	}
}

func TestListAudit_PaginationAndETag(t *testing.T) {
	var gotPage, gotSize int
	svc := stubSignUps{
		trail: func(id string, page, size int) ([]domain.AuditEntry, int64, error) {
			gotPage, gotSize = page, size
			return []domain.AuditEntry{
				{ID: 1, SignUpID: id, Action: domain.AuditSubmitted, CreatedAt: time.Unix(0, 0).UTC()},
			}, 3, nil
		},
		version: func(string) (int64, uint64, error) { return 3, 9, nil },
	}
	r := newRouter(New(nil, svc, nil, nil))
	path := "/api/v1/signups/" + testID + "/audit"

	w := send(t, r, http.MethodGet, path+"?page=2&page_size=1", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("audit = %d", w.Code)
	}
	etag := w.Header().Get("ETag")
	if etag != `W/"audit:`+testID+`:3:9"` {
		t.Fatalf("ETag = %q", etag)
	}
	var resp AuditTrailResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("json: %v", err)
	}
	if gotPage != 2 || gotSize != 1 || len(resp.Entries) != 1 {
		t.Fatalf("page=%d size=%d entries=%d", gotPage, gotSize, len(resp.Entries))
	}
	p := resp.Pagination
	if p.Total != 3 || p.TotalPages != 3 || !p.HasNext {
		t.Fatalf("pagination = %+v", p)
	}

	if w := send(t, r, http.MethodGet, path, nil, map[string]string{"If-None-Match": etag}); w.Code != http.StatusNotModified {
		t.Fatalf("conditional = %d", w.Code)
	}

	send(t, r, http.MethodGet, path+"?page=0&page_size=9999", nil, nil)
	if gotPage != 1 || gotSize != services.MaxAuditPageSize {
		t.Fatalf("clamp page=%d size=%d", gotPage, gotSize)
	}
	send(t, r, http.MethodGet, path, nil, nil)
	if gotSize != services.DefaultAuditPageSize {
		t.Fatalf("default size = %d", gotSize)
	}
}

func TestListAudit_NotFound(t *testing.T) {
	svc := stubSignUps{
		trail: func(string, int, int) ([]domain.AuditEntry, int64, error) {
			return nil, 0, services.ErrSignUpNotFound
		},
	}
	r := newRouter(New(nil, svc, nil, nil))
	w := send(t, r, http.MethodGet, "/api/v1/signups/"+testID+"/audit", nil, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d", w.Code)
	}
	if w.Header().Get("ETag") != "" {
		t.Fatalf("no ETag for an empty trail")
	}
}

func TestDecodeImageField(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"", "", false},
		{"   ", "", false},
		{"DATA:image/png;base64,AAAA", "DATA:image/png;base64,AAAA", false},
		{"aGVsbG8=", "hello", false},
		{"aGVsbG8", "hello", false},
		{"***", "", true},
	}
	for _, tc := range cases {
		got, err := decodeImageField(tc.in)
		if (err != nil) != tc.wantErr || string(got) != tc.want {
			t.Fatalf("decodeImageField(%q) = %q, %v", tc.in, got, err)
		}
	}
}

func TestRejectionStatus(t *testing.T) {
	cases := map[services.Kind]int{
		services.KindValidation:  http.StatusBadRequest,
		services.KindDuplicate:   http.StatusConflict,
		services.KindImageUpload: http.StatusBadGateway,
		services.KindInternal:    http.StatusInternalServerError,
		"unknown":                http.StatusInternalServerError,
	}
	for k, want := range cases {
		if got := rejectionStatus(k); got != want {
			t.Fatalf("%q -> %d; want %d", k, got, want)
		}
	}
}
