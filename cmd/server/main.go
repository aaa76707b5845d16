package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	categoryhandler "storegate/internal/category/handler"
	"storegate/internal/constraint/handler"
	"storegate/internal/constraint/metrics"
	"storegate/internal/constraint/service"
	"storegate/internal/constraint/store"
	"storegate/internal/jwttoken"
	"storegate/internal/platform/config"
	"storegate/internal/platform/httpserver"
	"storegate/internal/platform/logger"
	"storegate/internal/platform/postgres"
	platformredis "storegate/internal/platform/redis"
	"storegate/internal/refdata"
	"storegate/pkg/platform/audit"
	adminmw "storegate/pkg/platform/middleware/admin"
	"storegate/pkg/platform/middleware/device"
	"storegate/pkg/platform/middleware/logging"
	"storegate/pkg/platform/middleware/requestid"
	"storegate/pkg/platform/middleware/requesttime"
)

func main() {
	log := logger.New("storegate")
	if err := run(log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}

	tz, err := time.LoadLocation(cfg.StoreTimezone)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	m := metrics.New(reg)

	// Store: postgres when configured, memory otherwise; redis cache on top
	// when available.
	var constraintStore store.Store = store.NewMemory()
	if cfg.PostgresURL != "" {
		pool, err := postgres.OpenPool(ctx, cfg.PostgresURL)
		if err != nil {
			return err
		}
		defer pool.Close()
		pg := store.NewPostgres(pool)
		if err := pg.EnsureSchema(ctx); err != nil {
			return err
		}
		constraintStore = pg
	}
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = platformredis.NewClient(ctx, cfg.RedisURL, cfg.RedisPoolSize)
		if err != nil {
			return err
		}
		defer redisClient.Close()
		constraintStore = store.NewCached(constraintStore, redisClient, log)
	}

	// Audit: postgres outbox shipped to Kafka when both are configured,
	// in-memory sink otherwise.
	var auditStore audit.Store = audit.NewMemoryStore()
	if cfg.PostgresURL != "" {
		db, err := postgres.OpenSQL(ctx, cfg.PostgresURL)
		if err != nil {
			return err
		}
		defer db.Close()
		outbox := audit.NewPostgresStore(db)
		if err := outbox.EnsureSchema(ctx); err != nil {
			return err
		}
		auditStore = outbox

		if len(cfg.KafkaBrokers) > 0 {
			sink, err := audit.NewKafkaSink(ctx, cfg.KafkaBrokers, cfg.KafkaAuditTopic)
			if err != nil {
				return err
			}
			defer sink.Close()
			worker := audit.NewWorker(outbox, sink, audit.WithWorkerLogger(log))
			go worker.Run(ctx)
		}
	}
	publisher := audit.NewPublisher(auditStore,
		audit.WithPublisherLogger(log),
		audit.WithAsyncBuffer(1024))
	defer publisher.Close()

	svcOpts := []service.Option{
		service.WithLogger(log),
		service.WithMetrics(m),
		service.WithAuditPublisher(publisher),
		service.WithStoreTimezone(tz),
	}
	var refClient *refdata.Client
	if cfg.RefDataBaseURL != "" {
		refClient = refdata.NewClient(cfg.RefDataBaseURL, cfg.RefDataToken)
		svcOpts = append(svcOpts,
			service.WithReferenceData(refdata.NewCachedChecker(refClient, cfg.RefDataTTL)))
	}
	svc, err := service.New(constraintStore, svcOpts...)
	if err != nil {
		return err
	}

	adminCfg := adminmw.Config{Token: cfg.AdminToken, TokenHash: cfg.AdminTokenHash}
	if cfg.JWTSigningKey != "" {
		validator, err := jwttoken.NewManager(cfg.JWTSigningKey, cfg.JWTIssuer)
		if err != nil {
			return err
		}
		adminCfg.Validator = validator
	}

	r := chi.NewRouter()
	r.Use(requestid.Middleware)
	r.Use(requesttime.Middleware)
	r.Use(device.Middleware)
	r.Use(logging.Recover(log))
	r.Use(logging.RequestLogger(log))

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if redisClient != nil {
			if err := platformredis.Health(req.Context(), redisClient); err != nil {
				http.Error(w, "redis unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics",
		promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	r.Group(func(r chi.Router) {
		r.Use(adminmw.RequireAdmin(adminCfg, log))
		handler.New(svc, log).Register(r)
		if refClient != nil {
			categoryhandler.New(refClient, log).Register(r)
		}
	})

	srv := httpserver.New(cfg.Addr, r, log)
	errs := make(chan error, 1)
	go func() { errs <- srv.ListenAndServe() }()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}
