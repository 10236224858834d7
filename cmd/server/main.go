package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"vcregistry/internal/credential/events"
	"vcregistry/internal/credential/handler"
	"vcregistry/internal/credential/metrics"
	"vcregistry/internal/credential/service"
	"vcregistry/internal/credential/store"
	jwttoken "vcregistry/internal/jwt_token"
	"vcregistry/internal/platform/config"
	"vcregistry/internal/platform/database"
	"vcregistry/internal/platform/health"
	"vcregistry/internal/platform/kafka/producer"
	"vcregistry/internal/platform/logger"
	vcredis "vcregistry/internal/platform/redis"
	"vcregistry/internal/platform/tracer"
	"vcregistry/internal/seeder"
	httptransport "vcregistry/internal/transport/http"
	"vcregistry/migrations"
	"vcregistry/pkg/platform/circuit"
	"vcregistry/pkg/platform/clock"
	"vcregistry/pkg/platform/middleware/request"
)

const (
	shutdownTimeout   = 10 * time.Second
	poolStatsInterval = 15 * time.Second
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Registry logic lives in internal/credential.
func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "vcregistry:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.FromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg.LogLevel)

	log.Info("initializing vcregistry",
		"addr", cfg.Addr,
		"environment", cfg.Environment,
		"store_backend", cfg.StoreBackend,
		"kafka_enabled", cfg.Kafka.Enabled(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	healthHandler := health.New(cfg.Environment, cfg.StoreBackend)
	credentialMetrics := metrics.New(prometheus.DefaultRegisterer)

	st, tx, pool, closeStore, err := buildStore(ctx, cfg, log, healthHandler)
	if err != nil {
		return err
	}
	defer closeStore()

	publisher, closePublisher, err := buildPublisher(cfg, log, healthHandler, credentialMetrics)
	if err != nil {
		return err
	}
	defer closePublisher()

	requestClock := clock.NewMonotonic(nil)
	opts := []service.Option{
		service.WithClock(requestClock),
		service.WithPublisher(publisher),
		service.WithLogger(log),
		service.WithMetrics(credentialMetrics),
		service.WithTracer(tracer.NewOTel()),
		service.WithTxTimeout(cfg.TxTimeout),
	}
	if tx != nil {
		opts = append(opts, service.WithStoreTx(tx))
	}
	registry := service.New(st, opts...)

	if cfg.SeedDemoData {
		if err := seeder.New(registry, requestClock, log).SeedAll(ctx); err != nil {
			return fmt.Errorf("seed demo data: %w", err)
		}
	}

	jwtService := jwttoken.NewJWTService(cfg.JWT.SigningKey, cfg.JWT.Issuer, cfg.JWT.Audience, cfg.JWT.TokenTTL)
	jwtService.SetEnv(cfg.Environment)

	router := httptransport.NewRouter(httptransport.Deps{
		Logger:         log,
		Credentials:    handler.New(registry, log),
		Health:         healthHandler,
		TokenValidator: jwttoken.NewJWTServiceAdapter(jwtService),
		Clock:          requestClock,
		Metrics:        request.NewMetrics(prometheus.DefaultRegisterer),
		Gatherer:       prometheus.DefaultGatherer,
		RequestTimeout: cfg.RequestTimeout,
		MaxBodyBytes:   cfg.MaxBodyBytes,
		TrustedProxies: cfg.TrustedProxies,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("starting http server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown: %w", err)
		}
		return nil
	})

	if pool != nil {
		g.Go(func() error {
			recordPoolStats(gctx, pool)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		log.Error("server stopped with error", "error", err)
		return err
	}
	log.Info("server stopped")
	return nil
}

// poolStatsRecorder is implemented by the postgres and redis clients.
type poolStatsRecorder interface {
	RecordPoolStats()
}

// buildStore opens the configured backend. A nil StoreTx means the service
// falls back to its in-process sharded lock.
func buildStore(ctx context.Context, cfg config.Server, log *slog.Logger, h *health.Handler) (service.Store, service.StoreTx, poolStatsRecorder, func(), error) {
	switch cfg.StoreBackend {
	case config.StorePostgres:
		pool, err := database.New(ctx, cfg.Database)
		if err != nil {
			return nil, nil, nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		if cfg.Database.AutoMigrate {
			applied, err := migrations.Up(ctx, pool.DB())
			if err != nil {
				_ = pool.Close()
				return nil, nil, nil, nil, fmt.Errorf("migrate postgres: %w", err)
			}
			log.Info("database migrated", "applied", applied)
		}
		h.RegisterCheck("postgres", pool.Health)
		return store.NewPostgres(pool.DB()), newCredentialPostgresTx(pool.DB(), cfg.TxTimeout), pool,
			func() { _ = pool.Close() }, nil

	case config.StoreRedis:
		client, err := vcredis.New(ctx, cfg.Redis)
		if err != nil {
			return nil, nil, nil, nil, fmt.Errorf("connect redis: %w", err)
		}
		h.RegisterCheck("redis", client.Health)
		return store.NewRedis(client.Client), newCredentialRedisTx(client.Client, cfg.TxTimeout), client,
			func() { _ = client.Close() }, nil

	default:
		return store.NewInMemoryStore(), nil, nil, func() {}, nil
	}
}

func buildPublisher(cfg config.Server, log *slog.Logger, h *health.Handler, m *metrics.Metrics) (service.EventPublisher, func(), error) {
	if !cfg.Kafka.Enabled() {
		log.Info("kafka not configured, credential events are dropped")
		return events.NoopPublisher{}, func() {}, nil
	}

	p, err := producer.New(cfg.Kafka, log)
	if err != nil {
		return nil, nil, fmt.Errorf("create kafka producer: %w", err)
	}
	h.RegisterOptional("kafka", p.Health)
	log.Info("publishing credential events", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic)
	breaker := circuit.New("kafka-events",
		circuit.WithFailureThreshold(cfg.Kafka.BreakerThreshold),
		circuit.WithCooldown(cfg.Kafka.BreakerCooldown),
	)
	publisher := events.NewGuardedPublisher(events.NewKafkaPublisher(p, cfg.Kafka.Topic), breaker, log, m)
	return publisher, func() { _ = p.Close() }, nil
}

func recordPoolStats(ctx context.Context, pool poolStatsRecorder) {
	ticker := time.NewTicker(poolStatsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pool.RecordPoolStats()
		}
	}
}
