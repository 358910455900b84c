package middleware

import (
	"net/http"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_CountsByRouteAndFallback(t *testing.T) {
	r := newEngine(Metrics())
	r.GET("/signups/:id", func(c *gin.Context) { c.String(http.StatusOK, "{}") })

	baseRoute := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/signups/:id", "200"))
	baseMiss := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/nope", "404"))

	do(t, r, http.MethodGet, "/signups/a1", nil)
	do(t, r, http.MethodGet, "/signups/b2", nil)
	do(t, r, http.MethodGet, "/nope", nil)

	if got := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/signups/:id", "200")); got != baseRoute+2 {
		t.Fatalf("route counter = %v; want %v", got, baseRoute+2)
	}
	if got := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/nope", "404")); got != baseMiss+1 {
		t.Fatalf("fallback counter = %v; want %v", got, baseMiss+1)
	}
	if got := testutil.ToFloat64(httpInflight); got != 0 {
		t.Fatalf("inflight = %v", got)
	}
}

func TestMetrics_RequestSizeObserved(t *testing.T) {
	r := newEngine(Metrics())
	r.POST("/sized", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	before := testutil.CollectAndCount(httpReqSize, "signup_http_request_size_bytes")
	req := strings.NewReader(`{"a":1}`)
	w := doBody(t, r, http.MethodPost, "/sized", req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d", w.Code)
	}
	if after := testutil.CollectAndCount(httpReqSize, "signup_http_request_size_bytes"); after < before || after == 0 {
		t.Fatalf("size histogram series = %d (before %d)", after, before)
	}
}
