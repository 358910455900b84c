// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file validates the Idempotency-Key header carried by sign-up
// submissions. A present key must be a version-4 UUID; the lowercased value
// is stashed in the request context so the submit handler reads one canonical
// token regardless of casing. When a lookup is supplied and the key already
// maps to a live ledger entry, the request is marked as a replay and exempted
// from rate limiting.
//
// The body-level idempotency_token is not inspected here; the submission
// service validates whichever token the handler ends up using.
package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-signup-backend/internal/domain"
)

// HeaderIdempotencyKey carries the client-generated submission token.
const HeaderIdempotencyKey = "Idempotency-Key"

const (
	ctxKeyIdemKey    = "idem.key"
	ctxKeyIdemReplay = "idem.replay"
	ctxKeyRateBypass = "rate.bypass"
)

// GetIdempotencyKey returns the validated, lowercased key stored by
// IdempotencyValidator.
func GetIdempotencyKey(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxKeyIdemKey)
	if !ok {
		return "", false
	}
	s, _ := v.(string)
	return s, s != ""
}

// IsReplay reports whether the key already maps to a live ledger entry.
func IsReplay(c *gin.Context) bool {
	v, ok := c.Get(ctxKeyIdemReplay)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// TokenLookup reports whether token has a ledger entry that is still live at
// now. Lookup errors never block the request.
type TokenLookup func(ctx context.Context, token string, now time.Time) (bool, error)

// IdempotencyOptions tunes IdempotencyValidator.
type IdempotencyOptions struct {
	// Methods restricts validation to these HTTP methods. Empty means POST.
	Methods []string
	// Now defaults to time.Now.
	Now func() time.Time
}

// IdempotencyValidator returns middleware that validates Idempotency-Key on
// unsafe requests.
//
//   - Header absent: no-op.
//   - Header not a version-4 UUID: 400 validation_error.
//   - lookup hit: request is marked as replay and rate-limit bypass.
func IdempotencyValidator(opts IdempotencyOptions, lookup TokenLookup) gin.HandlerFunc {
	methods := map[string]struct{}{}
	for _, m := range opts.Methods {
		methods[strings.ToUpper(m)] = struct{}{}
	}
	if len(methods) == 0 {
		methods[http.MethodPost] = struct{}{}
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return func(c *gin.Context) {
		if _, ok := methods[c.Request.Method]; !ok {
			c.Next()
			return
		}
		key := strings.TrimSpace(c.GetHeader(HeaderIdempotencyKey))
		if key == "" {
			c.Next()
			return
		}
		key = strings.ToLower(key)
		if !domain.ValidToken(key) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"request_id": c.Writer.Header().Get(requestIDHeader),
				"code":       "validation_error",
				"message":    "Idempotency-Key must be a version-4 UUID",
			})
			return
		}

		c.Set(ctxKeyIdemKey, key)

		if lookup != nil {
			if live, err := lookup(c.Request.Context(), key, now().UTC()); err == nil && live {
				c.Set(ctxKeyIdemReplay, true)
				c.Set(ctxKeyRateBypass, true)
			}
		}

		c.Next()
	}
}
