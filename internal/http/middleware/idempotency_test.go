package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

const validKey = "3f2b8c1e-9a4d-4e6f-8b2a-1c5d7e9f0a3b"

func TestIdempotencyValidator_NoHeader(t *testing.T) {
	called := false
	lookup := func(context.Context, string, time.Time) (bool, error) {
		called = true
		return false, nil
	}
	r := newEngine(IdempotencyValidator(IdempotencyOptions{}, lookup))
	r.POST("/signups", func(c *gin.Context) {
		if _, ok := GetIdempotencyKey(c); ok {
			t.Fatalf("key should be absent")
		}
		c.Status(http.StatusNoContent)
	})

	if w := do(t, r, http.MethodPost, "/signups", nil); w.Code != http.StatusNoContent {
		t.Fatalf("status = %d", w.Code)
	}
	if called {
		t.Fatalf("lookup must not run without a header")
	}
}

func TestIdempotencyValidator_RejectsNonV4(t *testing.T) {
	r := newEngine(RequestID(), IdempotencyValidator(IdempotencyOptions{}, nil))
	r.POST("/signups", func(c *gin.Context) { c.Status(http.StatusOK) })

	cases := []string{
		"not-a-uuid",
		"3f2b8c1e-9a4d-1e6f-8b2a-1c5d7e9f0a3b", // version 1
		"3f2b8c1e9a4d4e6f8b2a1c5d7e9f0a3b",     // no hyphens
		"{3f2b8c1e-9a4d-4e6f-8b2a-1c5d7e9f0a3b}",
	}
	for _, k := range cases {
		w := do(t, r, http.MethodPost, "/signups", map[string]string{HeaderIdempotencyKey: k})
		if w.Code != http.StatusBadRequest {
			t.Fatalf("%q: status = %d; want 400", k, w.Code)
		}
		var body map[string]any
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("json: %v", err)
		}
		if body["code"] != "validation_error" || body["request_id"] == "" {
			t.Fatalf("%q: body = %v", k, body)
		}
	}
}

func TestIdempotencyValidator_LowercasesAndSkipsSafeMethods(t *testing.T) {
	r := newEngine(IdempotencyValidator(IdempotencyOptions{}, nil))
	r.POST("/signups", func(c *gin.Context) {
		k, ok := GetIdempotencyKey(c)
		if !ok || k != validKey {
			t.Fatalf("key = %q ok=%v", k, ok)
		}
		if IsReplay(c) || IsRateBypass(c) {
			t.Fatalf("no lookup means no replay")
		}
		c.Status(http.StatusOK)
	})
	r.GET("/signups", func(c *gin.Context) {
		if _, ok := GetIdempotencyKey(c); ok {
			t.Fatalf("GET must not be validated")
		}
		c.Status(http.StatusOK)
	})

	upper := "3F2B8C1E-9A4D-4E6F-8B2A-1C5D7E9F0A3B"
	if w := do(t, r, http.MethodPost, "/signups", map[string]string{HeaderIdempotencyKey: upper}); w.Code != http.StatusOK {
		t.Fatalf("POST status = %d", w.Code)
	}
	if w := do(t, r, http.MethodGet, "/signups", map[string]string{HeaderIdempotencyKey: "garbage"}); w.Code != http.StatusOK {
		t.Fatalf("GET status = %d", w.Code)
	}
}

func TestIdempotencyValidator_LookupHitMarksReplay(t *testing.T) {
	fixed := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	var gotNow time.Time
	lookup := func(_ context.Context, token string, now time.Time) (bool, error) {
		gotNow = now
		return token == validKey, nil
	}
	r := newEngine(IdempotencyValidator(IdempotencyOptions{Now: func() time.Time { return fixed }}, lookup))
	var replay, bypass bool
	r.POST("/signups", func(c *gin.Context) {
		replay, bypass = IsReplay(c), IsRateBypass(c)
		c.Status(http.StatusOK)
	})

	do(t, r, http.MethodPost, "/signups", map[string]string{HeaderIdempotencyKey: validKey})
	if !replay || !bypass {
		t.Fatalf("replay=%v bypass=%v; want both", replay, bypass)
	}
	if !gotNow.Equal(fixed) {
		t.Fatalf("lookup now = %v", gotNow)
	}

	do(t, r, http.MethodPost, "/signups", map[string]string{HeaderIdempotencyKey: "9b1deb4d-3b7d-4bad-9bdd-2b0d7b3dcb6d"})
	if replay || bypass {
		t.Fatalf("miss must not mark replay")
	}
}

func TestIdempotencyValidator_LookupErrorIgnored(t *testing.T) {
	lookup := func(context.Context, string, time.Time) (bool, error) {
		return true, errors.New("db down")
	}
	r := newEngine(IdempotencyValidator(IdempotencyOptions{}, lookup))
	r.POST("/signups", func(c *gin.Context) {
		if IsReplay(c) {
			t.Fatalf("lookup error must not mark replay")
		}
		c.Status(http.StatusOK)
	})
	if w := do(t, r, http.MethodPost, "/signups", map[string]string{HeaderIdempotencyKey: validKey}); w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestIdempotencyValidator_CustomMethods(t *testing.T) {
	r := newEngine(IdempotencyValidator(IdempotencyOptions{Methods: []string{"patch"}}, nil))
	r.PATCH("/x", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.POST("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	if w := do(t, r, http.MethodPatch, "/x", map[string]string{HeaderIdempotencyKey: "bad"}); w.Code != http.StatusBadRequest {
		t.Fatalf("PATCH status = %d; want 400", w.Code)
	}
	if w := do(t, r, http.MethodPost, "/x", map[string]string{HeaderIdempotencyKey: "bad"}); w.Code != http.StatusOK {
		t.Fatalf("POST status = %d; want 200", w.Code)
	}
}

func TestContextHelpers_WrongTypes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Set(ctxKeyIdemKey, 123)
	c.Set(ctxKeyIdemReplay, "yes")
	c.Set(ctxKeyRateBypass, 1)
	if _, ok := GetIdempotencyKey(c); ok {
		t.Fatalf("non-string key must be absent")
	}
	if IsReplay(c) || IsRateBypass(c) {
		t.Fatalf("non-bool flags must read false")
	}
}
