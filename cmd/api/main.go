// Command api runs the sign-up submission service.
//
// @title       Sign-up Submission API
// @version     1.0
// @description Idempotent customer sign-up intake for field agents.
// @BasePath    /api/v1
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-signup-backend/internal/config"
	"github.com/tbourn/go-signup-backend/internal/events"
	"github.com/tbourn/go-signup-backend/internal/fanout"
	httpapi "github.com/tbourn/go-signup-backend/internal/http"
	"github.com/tbourn/go-signup-backend/internal/jobs"
	"github.com/tbourn/go-signup-backend/internal/observability"
	"github.com/tbourn/go-signup-backend/internal/rates"
	"github.com/tbourn/go-signup-backend/internal/repo"
	"github.com/tbourn/go-signup-backend/internal/services"
	"github.com/tbourn/go-signup-backend/internal/storage"
	"github.com/tbourn/go-signup-backend/internal/sysutil"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Msg("could not read .env, using process environment")
	}
	cfg := config.MustLoad()
	sysutil.ConfigureLogger(os.Stdout, cfg.LogLevel, cfg.LogPretty, cfg.OTEL.ServiceName)
	gin.SetMode(cfg.GinMode)

	ver := sysutil.FirstNonEmpty(os.Getenv("APP_VERSION"), version)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, ver); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}

func run(ctx context.Context, cfg config.Config, ver string) error {
	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, ver)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	// Relational store
	db, err := repo.Open(cfg.DB.Driver, cfg.DB.DSN())
	if err != nil {
		return err
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}
	if err := repo.AutoMigrate(db); err != nil {
		return err
	}
	if cfg.OTEL.Enabled {
		if err := observability.InstrumentGORM(db); err != nil {
			return err
		}
	}

	// Image store
	images, err := storage.OpenBolt(cfg.Storage.BoltPath, cfg.Storage.PublicBaseURL)
	if err != nil {
		return err
	}
	defer images.Close()

	publisher, err := newPublisher(cfg.Events)
	if err != nil {
		return err
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			log.Warn().Err(err).Msg("event publisher close")
		}
	}()

	enqueuer, closeJobs, err := newEnqueuer(ctx, cfg.Jobs)
	if err != nil {
		return err
	}
	defer closeJobs()

	pool := fanout.New(cfg.Fanout.Workers, cfg.Fanout.Queue, cfg.Fanout.Timeout)

	submit := services.NewSubmissionService(db, services.Deps{
		Rates:      rates.NewTableResolver(db),
		Store:      images,
		Events:     publisher,
		Extraction: enqueuer,
		Sync:       enqueuer,
		Fanout:     pool,
	})
	submit.TokenTTL = cfg.Submission.TokenTTL
	submit.RateTimeout = cfg.Submission.RateTimeout
	submit.UploadTimeout = cfg.Submission.UploadTimeout
	submit.PersistTimeout = cfg.Submission.PersistTimeout
	submit.FanoutTimeout = cfg.Fanout.Timeout

	maint := services.NewMaintenanceService(db)
	if cfg.PurgeInterval > 0 {
		go func() {
			_ = jobs.NewSweeper(maint, cfg.PurgeInterval).Run(ctx)
		}()
	}

	r := gin.New()
	httpapi.RegisterRoutes(r, httpapi.Deps{
		DB:          db,
		Submit:      submit,
		SignUps:     services.NewSignUpService(db),
		Maintenance: maint,
		Images:      images,
	}, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("version", ver).Str("db", cfg.DB.Driver).
			Str("broker", cfg.Events.Broker).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	// Drain post-commit work before the publisher and stores close.
	if err := pool.Close(sctx); err != nil {
		log.Warn().Err(err).Msg("fan-out drain incomplete")
	}
	return nil
}

func newPublisher(cfg config.EventsConfig) (events.Publisher, error) {
	switch cfg.Broker {
	case "kafka":
		return events.NewKafkaPublisher(cfg.KafkaBrokers, map[string]string{
			events.TopicSignUpSubmitted: cfg.KafkaTopic,
		})
	case "rabbitmq":
		return events.NewRabbitPublisher(cfg.RabbitURL, cfg.RabbitExchange)
	default:
		return events.LogPublisher{}, nil
	}
}

// newEnqueuer queues jobs in Redis when REDIS_URL is set and logs them
// otherwise.
func newEnqueuer(ctx context.Context, cfg config.JobsConfig) (*jobs.Enqueuer, func(), error) {
	var (
		backend jobs.Backend = jobs.LogBackend{}
		client  *redis.Client
	)
	if cfg.RedisURL != "" {
		c, err := jobs.Connect(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := c.Ping(pctx).Err(); err != nil {
			_ = c.Close()
			return nil, nil, err
		}
		client = c
		backend = jobs.NewRedisBackend(c)
	}
	e := jobs.NewEnqueuer(backend)
	e.ExtractionQueue = cfg.ExtractionQueue
	e.SyncQueue = cfg.SyncQueue
	return e, func() {
		if client != nil {
			_ = client.Close()
		}
	}, nil
}
