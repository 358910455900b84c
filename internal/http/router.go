// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// CORS, security headers, idempotency, and rate limiting.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	_ "github.com/tbourn/go-signup-backend/docs" // swagger spec registration
	"github.com/tbourn/go-signup-backend/internal/config"
	"github.com/tbourn/go-signup-backend/internal/http/handlers"
	"github.com/tbourn/go-signup-backend/internal/http/middleware"
	"github.com/tbourn/go-signup-backend/internal/rates"
	"github.com/tbourn/go-signup-backend/internal/repo"
	"github.com/tbourn/go-signup-backend/internal/services"
)

// Deps are the services the routes dispatch to. DB is required; nil
// services are built from DB with default collaborators, and a nil Images
// leaves /images unmounted.
type Deps struct {
	DB          *gorm.DB
	Submit      handlers.SubmissionService
	SignUps     handlers.SignUpService
	Maintenance handlers.MaintenanceService
	Images      handlers.ImageStore
}

func (d Deps) withDefaults() Deps {
	if d.Submit == nil {
		d.Submit = services.NewSubmissionService(d.DB, services.Deps{Rates: rates.NewTableResolver(d.DB)})
	}
	if d.SignUps == nil {
		d.SignUps = services.NewSignUpService(d.DB)
	}
	if d.Maintenance == nil {
		d.Maintenance = services.NewMaintenanceService(d.DB)
	}
	return d
}

// tokenLookup reports whether token names a live ledger row. Lookup errors
// count as a miss; the submission service makes the authoritative call.
func tokenLookup(db *gorm.DB) middleware.TokenLookup {
	return func(ctx context.Context, token string, now time.Time) (bool, error) {
		rec, err := repo.GetToken(ctx, db, token)
		if err != nil || rec == nil {
			return false, nil
		}
		return rec.Live(now), nil
	}
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine. Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with PII scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//  7. Idempotency validator (before rate limiter so replays bypass it)
//  8. Rate limiter (per agent/IP)
//  9. CORS, security headers and gzip
func RegisterRoutes(r *gin.Engine, deps Deps, cfg config.Config) {
	deps = deps.withDefaults()
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging with redaction
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{"X-API-Key"},
	}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit; images travel inline so the cap is generous
	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = 8 << 20
	}
	r.Use(limitBody(maxBody))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) Idempotency-Key validation and replay detection
	r.Use(middleware.IdempotencyValidator(middleware.IdempotencyOptions{}, tokenLookup(deps.DB)))

	// 8) Token-bucket rate limiter per agent/IP
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByAgentOrIP())
	r.Use(rl.Handler())

	// 9) CORS posture (allow all if none configured)
	allowHeaders := []string{"Origin", "Content-Type", "Accept", "Authorization",
		middleware.HeaderAgentID, middleware.HeaderIdempotencyKey, handlers.HeaderActor, "If-None-Match"}
	exposeHeaders := []string{"X-Request-ID", "Content-Length", "ETag", "Location", "Idempotency-Replayed", "Retry-After"}
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Force ACAO: * even for requests without an Origin header.
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "PATCH", "OPTIONS"},
			AllowHeaders:     allowHeaders,
			ExposeHeaders:    exposeHeaders,
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		allowed := make(map[string]struct{}, len(cfg.CORS.AllowedOrigins))
		for _, o := range cfg.CORS.AllowedOrigins {
			allowed[o] = struct{}{}
		}
		r.Use(func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PATCH", "OPTIONS"},
			AllowHeaders:     allowHeaders,
			ExposeHeaders:    exposeHeaders,
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Security headers (HSTS only when enabled and request is HTTPS)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:    cfg.Security.EnableHSTS,
		HSTSMaxAge:    cfg.Security.HSTSMaxAge,
		NoStore:       false,
		EnablePolicy:  true,
		ExposeHeaders: []string{"ETag", "Idempotency-Replayed"},
	}))

	// Images are already compressed and /metrics negotiates its own encoding.
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics", "/images/"})))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	h := handlers.New(deps.Submit, deps.SignUps, deps.Maintenance, deps.Images)

	if deps.Images != nil {
		r.GET("/images/:key", h.GetImage)
	}

	// Public API
	api := groupWithPrefix(r, cfg.APIBasePath)
	{
		// Sign-ups
		api.POST("/signups", h.SubmitSignUp)
		api.GET("/signups/:id", h.GetSignUp)
		api.PATCH("/signups/:id", h.UpdateSignUp)
		api.GET("/signups/:id/audit", h.ListAudit)

		// Maintenance
		api.POST("/maintenance/tokens/purge", h.PurgeExpiredTokens)
	}
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
