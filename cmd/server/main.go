package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"idregistry/internal/events"
	"idregistry/internal/events/kafka"
	"idregistry/internal/events/outbox"
	"idregistry/internal/events/rabbitmq"
	"idregistry/internal/events/redisstream"
	jwttoken "idregistry/internal/jwt_token"
	"idregistry/internal/platform/config"
	"idregistry/internal/platform/health"
	"idregistry/internal/platform/httpserver"
	"idregistry/internal/platform/logger"
	platformmetrics "idregistry/internal/platform/metrics"
	"idregistry/internal/platform/middleware"
	"idregistry/internal/platform/postgres"
	"idregistry/internal/platform/redis"
	"idregistry/internal/registry/handler"
	registrymetrics "idregistry/internal/registry/metrics"
	"idregistry/internal/registry/service"
	"idregistry/internal/registry/store"
	"idregistry/internal/registry/store/memory"
	pgstore "idregistry/internal/registry/store/postgres"
)

const shutdownTimeout = 10 * time.Second

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(2)
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("idregistry stopped with error", "error", err)
		os.Exit(1)
	}
	log.Info("idregistry stopped")
}

func run(ctx context.Context, cfg config.Server, log *slog.Logger) error {
	if cfg.DevSigningKey() {
		log.Warn("using development JWT signing key; set JWT_SIGNING_KEY in production")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	checks := map[string]health.CheckFunc{}
	var closers []io.Closer
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i].Close(); err != nil {
				log.Warn("failed to close resource", "error", err)
			}
		}
	}()

	sinks, clients, err := buildSinks(ctx, cfg, checks)
	fanout := events.NewFanout(sinks, events.WithLogger(log))
	closers = append(closers, clients...)
	closers = append(closers, fanout)
	if err != nil {
		return err
	}

	var (
		tx  store.Tx
		pg  *pgstore.Store
		pub service.Publisher
		db  *sql.DB
	)
	if cfg.Database.URL != "" {
		db, err = postgres.Open(ctx, postgres.Config{
			URL:             cfg.Database.URL,
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		})
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		closers = append(closers, db)
		if err := postgres.Migrate(ctx, db); err != nil {
			return fmt.Errorf("migrate database: %w", err)
		}
		checks["postgres"] = db.PingContext
		pg = pgstore.New(db)
		tx = pg
		log.Info("using postgres store with transactional outbox", "sinks", len(sinks))
	} else {
		tx = memory.New()
		pub = fanout
		log.Info("using in-memory store", "sinks", len(sinks))
	}

	opts := []service.Option{
		service.WithLogger(log),
		service.WithPolicy(cfg.Registry.Policy()),
		service.WithMetrics(registrymetrics.New(reg)),
	}
	if pub != nil {
		opts = append(opts, service.WithPublisher(pub))
	}
	svc, err := service.New(tx, opts...)
	if err != nil {
		return err
	}

	jwtService := jwttoken.NewJWTService(cfg.JWTSigningKey, cfg.JWTIssuer, cfg.JWTAudience)
	httpMetrics := platformmetrics.NewHTTP(reg)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recover(log))
	router.Use(middleware.Logger(log))
	router.Use(httpMetrics.Middleware)
	router.Get("/health", health.Handler(checks, 2*time.Second, log))
	router.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	handler.New(svc, log, jwttoken.NewJWTServiceAdapter(jwtService)).Register(router)

	srv := httpserver.New(cfg.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting idregistry", "addr", cfg.Addr)
		return httpserver.Serve(gctx, srv, shutdownTimeout)
	})
	if pg != nil {
		worker, err := outbox.NewWorker(pg, fanout,
			outbox.WithPollInterval(cfg.Outbox.PollInterval),
			outbox.WithBatchSize(cfg.Outbox.BatchSize),
			outbox.WithLogger(log),
			outbox.WithMetrics(outbox.NewMetrics(reg)),
		)
		if err != nil {
			return err
		}
		g.Go(func() error {
			if err := worker.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}
	return g.Wait()
}

// buildSinks connects every configured event sink. The sinks built before a
// failure are returned with the error so the caller can close them; clients
// holds connections shared by sinks that the sinks do not own.
func buildSinks(ctx context.Context, cfg config.Server, checks map[string]health.CheckFunc) ([]events.Sink, []io.Closer, error) {
	var (
		sinks   []events.Sink
		clients []io.Closer
	)

	if cfg.Redis.URL != "" {
		client, err := redis.New(ctx, cfg.Redis)
		if err != nil {
			return sinks, clients, err
		}
		clients = append(clients, client)
		checks["redis"] = client.Health
		sink, err := redisstream.New(client, cfg.Redis.Stream)
		if err != nil {
			return sinks, clients, err
		}
		sinks = append(sinks, sink)
	}

	if len(cfg.Kafka.Brokers) > 0 {
		producer, err := kafka.New(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			return sinks, clients, fmt.Errorf("kafka producer: %w", err)
		}
		sinks = append(sinks, producer)
		if err := producer.EnsureTopic(ctx, 1, 1); err != nil {
			return sinks, clients, fmt.Errorf("kafka topic: %w", err)
		}
		checks["kafka"] = producer.Health
	}

	if cfg.RabbitMQ.URL != "" {
		publisher, err := rabbitmq.Dial(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange)
		if err != nil {
			return sinks, clients, fmt.Errorf("rabbitmq: %w", err)
		}
		sinks = append(sinks, publisher)
	}

	return sinks, clients, nil
}
