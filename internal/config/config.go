// Package config provides application configuration loaded from environment
// variables with defaults and validation. An optional YAML file named by
// CONFIG_FILE supplies values for the same keys; the environment always wins
// over the file, and the file wins over built-in defaults.
//
// The file is a flat mapping of the environment keys, e.g.
//
//	PORT: 8080
//	DB_DRIVER: postgres
//	KAFKA_BROKERS: [kafka-1:9092, kafka-2:9092]
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
	Environment string  // DEPLOYMENT_ENV, exported as deployment.environment
}

// DatabaseConfig selects the relational store.
type DatabaseConfig struct {
	Driver string // DB_DRIVER: sqlite|postgres
	Path   string // DB_PATH, SQLite file
	URL    string // DATABASE_URL, required for postgres
}

// DSN returns the connection string for Driver.
func (d DatabaseConfig) DSN() string {
	if d.Driver == "postgres" {
		return d.URL
	}
	return d.Path
}

// StorageConfig configures the embedded image store.
type StorageConfig struct {
	BoltPath      string // BOLT_PATH
	PublicBaseURL string // PUBLIC_BASE_URL, prefix of stored image URLs
}

// EventsConfig selects the event publisher.
type EventsConfig struct {
	Broker         string   // EVENT_BROKER: log|kafka|rabbitmq
	KafkaBrokers   []string // KAFKA_BROKERS (CSV)
	KafkaTopic     string   // KAFKA_TOPIC for signup.submitted
	RabbitURL      string   // RABBITMQ_URL
	RabbitExchange string   // RABBITMQ_EXCHANGE
}

// JobsConfig configures the extraction and sync queues.
type JobsConfig struct {
	RedisURL        string // REDIS_URL; empty logs jobs instead of queueing
	ExtractionQueue string // EXTRACTION_QUEUE
	SyncQueue       string // SYNC_QUEUE
}

// SubmissionConfig bounds the submission pipeline.
type SubmissionConfig struct {
	TokenTTL       time.Duration // IDEMPOTENCY_TTL
	RateTimeout    time.Duration // RATE_TIMEOUT
	UploadTimeout  time.Duration // UPLOAD_TIMEOUT
	PersistTimeout time.Duration // PERSIST_TIMEOUT
}

// FanoutConfig sizes the post-commit worker pool.
type FanoutConfig struct {
	Workers int           // FANOUT_WORKERS
	Queue   int           // FANOUT_QUEUE
	Timeout time.Duration // FANOUT_TIMEOUT, per task
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 30s
	IdleTimeout       time.Duration // e.g. 60s
	ShutdownTimeout   time.Duration // graceful drain
	MaxHeaderBytes    int           // bytes
	MaxBodyBytes      int64         // request body cap; images travel inline
	GinMode           string        // debug|release|test

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	SwaggerEnabled bool   // enable Swagger UI route
	APIBasePath    string // base path for API routes

	DB         DatabaseConfig
	Storage    StorageConfig
	Events     EventsConfig
	Jobs       JobsConfig
	Submission SubmissionConfig
	Fanout     FanoutConfig

	// Maintenance
	PurgeInterval time.Duration // PURGE_INTERVAL; 0 disables the sweeper

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads CONFIG_FILE (if set) and the environment, applies defaults,
// normalizes values, and validates the result.
func Load() (Config, error) {
	src := source{}
	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		file, err := readFile(path)
		if err != nil {
			return Config{}, err
		}
		src.file = file
	}
	cfg := src.build()
	err := cfg.normalizeAndValidate()
	return cfg, err
}

func (s source) build() Config {
	return Config{
		// Server
		Port:              s.getenv("PORT", "8080"),
		ReadTimeout:       s.getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: s.getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      s.getdur("WRITE_TIMEOUT", 30*time.Second),
		IdleTimeout:       s.getdur("IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout:   s.getdur("SHUTDOWN_TIMEOUT", 15*time.Second),
		MaxHeaderBytes:    s.getint("MAX_HEADER_BYTES", 1<<20),
		MaxBodyBytes:      int64(s.getint("MAX_BODY_BYTES", 8<<20)),
		GinMode:           strings.ToLower(s.getenv("GIN_MODE", "release")),

		// Logging / Docs
		LogLevel:       strings.ToLower(s.getenv("LOG_LEVEL", "info")),
		LogPretty:      s.getbool("LOG_PRETTY", false),
		SwaggerEnabled: s.getbool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(s.getenv("API_BASE_PATH", "/api/v1")),

		DB: DatabaseConfig{
			Driver: strings.ToLower(s.getenv("DB_DRIVER", "sqlite")),
			Path:   s.getenv("DB_PATH", "signups.db"),
			URL:    s.getenv("DATABASE_URL", ""),
		},
		Storage: StorageConfig{
			BoltPath:      s.getenv("BOLT_PATH", "images.db"),
			PublicBaseURL: strings.TrimRight(s.getenv("PUBLIC_BASE_URL", "http://localhost:8080"), "/"),
		},
		Events: EventsConfig{
			Broker:         strings.ToLower(s.getenv("EVENT_BROKER", "log")),
			KafkaBrokers:   s.getcsv("KAFKA_BROKERS"),
			KafkaTopic:     s.getenv("KAFKA_TOPIC", "signup.submitted"),
			RabbitURL:      s.getenv("RABBITMQ_URL", ""),
			RabbitExchange: s.getenv("RABBITMQ_EXCHANGE", "signups"),
		},
		Jobs: JobsConfig{
			RedisURL:        s.getenv("REDIS_URL", ""),
			ExtractionQueue: s.getenv("EXTRACTION_QUEUE", "signups:jobs:extraction"),
			SyncQueue:       s.getenv("SYNC_QUEUE", "signups:jobs:sync"),
		},
		Submission: SubmissionConfig{
			TokenTTL:       s.getdur("IDEMPOTENCY_TTL", 24*time.Hour),
			RateTimeout:    s.getdur("RATE_TIMEOUT", 2*time.Second),
			UploadTimeout:  s.getdur("UPLOAD_TIMEOUT", 10*time.Second),
			PersistTimeout: s.getdur("PERSIST_TIMEOUT", 10*time.Second),
		},
		Fanout: FanoutConfig{
			Workers: s.getint("FANOUT_WORKERS", 4),
			Queue:   s.getint("FANOUT_QUEUE", 256),
			Timeout: s.getdur("FANOUT_TIMEOUT", 10*time.Second),
		},

		PurgeInterval: s.getdur("PURGE_INTERVAL", time.Hour),

		// Rate limiting
		RateRPS:   s.getfloat("RATE_RPS", 5.0),
		RateBurst: s.getint("RATE_BURST", 10),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: s.getcsv("CORS_ALLOWED_ORIGINS"),
		},
		Security: SecurityConfig{
			EnableHSTS: s.getbool("ENABLE_HSTS", false),
			HSTSMaxAge: s.getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     s.getbool("OTEL_ENABLED", false),
			Endpoint:    s.getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    s.getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: s.getenv("OTEL_SERVICE_NAME", "go-signup-backend"),
			SampleRatio: s.getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
			Environment: s.getenv("DEPLOYMENT_ENV", "development"),
		},
	}
}

func (cfg *Config) normalizeAndValidate() error {
	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}
	if cfg.DB.Driver == "postgresql" {
		cfg.DB.Driver = "postgres"
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 || cfg.ShutdownTimeout <= 0 {
		return errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return errors.New("MAX_HEADER_BYTES must be > 0")
	}
	if cfg.MaxBodyBytes <= 0 {
		return errors.New("MAX_BODY_BYTES must be > 0")
	}

	switch cfg.DB.Driver {
	case "sqlite":
		if strings.TrimSpace(cfg.DB.Path) == "" {
			return errors.New("DB_PATH must not be empty")
		}
	case "postgres":
		if strings.TrimSpace(cfg.DB.URL) == "" {
			return errors.New("DATABASE_URL is required when DB_DRIVER=postgres")
		}
	default:
		return errors.New("DB_DRIVER must be one of: sqlite, postgres")
	}
	if strings.TrimSpace(cfg.Storage.BoltPath) == "" {
		return errors.New("BOLT_PATH must not be empty")
	}

	switch cfg.Events.Broker {
	case "log":
	case "kafka":
		if len(cfg.Events.KafkaBrokers) == 0 {
			return errors.New("KAFKA_BROKERS is required when EVENT_BROKER=kafka")
		}
	case "rabbitmq":
		if strings.TrimSpace(cfg.Events.RabbitURL) == "" {
			return errors.New("RABBITMQ_URL is required when EVENT_BROKER=rabbitmq")
		}
	default:
		return errors.New("EVENT_BROKER must be one of: log, kafka, rabbitmq")
	}

	sub := cfg.Submission
	if sub.TokenTTL <= 0 {
		return errors.New("IDEMPOTENCY_TTL must be > 0")
	}
	if sub.RateTimeout <= 0 || sub.UploadTimeout <= 0 || sub.PersistTimeout <= 0 {
		return errors.New("RATE_TIMEOUT, UPLOAD_TIMEOUT and PERSIST_TIMEOUT must be > 0")
	}
	if cfg.Fanout.Workers < 1 || cfg.Fanout.Queue < 1 || cfg.Fanout.Timeout <= 0 {
		return errors.New("FANOUT_WORKERS and FANOUT_QUEUE must be >= 1 and FANOUT_TIMEOUT > 0")
	}
	if cfg.PurgeInterval < 0 {
		return errors.New("PURGE_INTERVAL must be >= 0")
	}
	if cfg.RateRPS < 0 {
		return errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return errors.New("RATE_BURST must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}
	return nil
}

// ---- sources ----

// source resolves a key from the environment first, then the YAML file.
type source struct {
	file map[string]string
}

func readFile(path string) (map[string]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read CONFIG_FILE: %w", err)
	}
	var doc map[string]any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse CONFIG_FILE %s: %w", path, err)
	}
	out := make(map[string]string, len(doc))
	for k, v := range doc {
		key := strings.ToUpper(strings.TrimSpace(k))
		switch tv := v.(type) {
		case nil:
		case []any:
			parts := make([]string, 0, len(tv))
			for _, p := range tv {
				parts = append(parts, fmt.Sprint(p))
			}
			out[key] = strings.Join(parts, ",")
		default:
			out[key] = fmt.Sprint(tv)
		}
	}
	return out, nil
}

func (s source) lookup(k string) (string, bool) {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v, true
	}
	if v, ok := s.file[k]; ok && v != "" {
		return v, true
	}
	return "", false
}

func (s source) getenv(k, def string) string {
	if v, ok := s.lookup(k); ok {
		return v
	}
	return def
}

func (s source) getfloat(k string, def float64) float64 {
	if v, ok := s.lookup(k); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func (s source) getint(k string, def int) int {
	if v, ok := s.lookup(k); ok {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func (s source) getbool(k string, def bool) bool {
	if v, ok := s.lookup(k); ok {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func (s source) getdur(k string, def time.Duration) time.Duration {
	if v, ok := s.lookup(k); ok {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func (s source) getcsv(k string) []string {
	v, _ := s.lookup(k)
	return splitCSV(v)
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
