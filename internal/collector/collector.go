// Package collector assembles the collector service from configuration: the
// event store backend, the optional Kafka forwarder, optional token auth, and
// the HTTP routes including /metrics.
package collector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pdftrack/internal/collector/forwarder"
	"pdftrack/internal/collector/handler"
	"pdftrack/internal/collector/metrics"
	"pdftrack/internal/collector/service"
	"pdftrack/internal/collector/store/file"
	"pdftrack/internal/collector/store/memory"
	"pdftrack/internal/collector/store/postgres"
	redisstore "pdftrack/internal/collector/store/redis"
	jwttoken "pdftrack/internal/jwt_token"
	"pdftrack/internal/platform/config"
	"pdftrack/internal/platform/httpserver"
	platformmetrics "pdftrack/internal/platform/metrics"
	"pdftrack/internal/platform/middleware"
	"pdftrack/internal/platform/redis"
)

// TokenIssuer and TokenAudience identify collector event tokens.
const (
	TokenIssuer   = "pdftrack"
	TokenAudience = "pdftrack-collector"
)

// App is a wired collector. Close releases every backend connection.
type App struct {
	Handler  http.Handler
	Registry *prometheus.Registry
	closers  []func() error
}

// Build wires a collector from cfg.
func Build(ctx context.Context, cfg config.Collector, logger *slog.Logger) (*App, error) {
	app := &App{Registry: prometheus.NewRegistry()}
	app.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	store, err := app.buildStore(ctx, cfg)
	if err != nil {
		_ = app.Close()
		return nil, err
	}

	opts := []service.Option{service.WithMetrics(metrics.New(app.Registry))}
	if len(cfg.Kafka.Brokers) > 0 {
		fwd, err := forwarder.NewKafka(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			_ = app.Close()
			return nil, err
		}
		app.closers = append(app.closers, func() error { fwd.Close(); return nil })
		if err := fwd.EnsureTopic(ctx, 1, 1); err != nil {
			logger.WarnContext(ctx, "could not ensure kafka topic", "topic", cfg.Kafka.Topic, "error", err)
		}
		opts = append(opts, service.WithForwarder(fwd))
		logger.InfoContext(ctx, "forwarding events to kafka", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic)
	}

	var validator middleware.JWTValidator
	if cfg.SigningKey != "" {
		validator = jwttoken.NewJWTServiceAdapter(jwttoken.NewJWTService(cfg.SigningKey, TokenIssuer, TokenAudience))
	}

	svc := service.New(store, logger, opts...)
	app.closers = append(app.closers, func() error { svc.Wait(); return nil })
	r := chi.NewRouter()
	r.Use(platformmetrics.New(app.Registry).Middleware)
	r.Handle("/metrics", promhttp.HandlerFor(app.Registry, promhttp.HandlerOpts{}))
	handler.New(svc, logger, validator).Register(r)
	app.Handler = r

	logger.InfoContext(ctx, "collector wired", "store", cfg.Store, "auth", validator != nil)
	return app, nil
}

func (a *App) buildStore(ctx context.Context, cfg config.Collector) (service.Store, error) {
	switch cfg.Store {
	case config.StoreMemory:
		return memory.New(), nil
	case config.StoreRedis:
		client, err := redis.New(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, client.Close)
		return redisstore.New(client, cfg.Redis.Key), nil
	case config.StorePostgres:
		db, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db.Close)
		store := postgres.New(db)
		if err := store.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		return store, nil
	case config.StoreFile, "":
		return file.New(cfg.StorePath), nil
	default:
		return nil, fmt.Errorf("unknown store %q", cfg.Store)
	}
}

// Close releases backend connections in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}

// Run builds the collector and serves it on cfg.Addr, or on ln when given,
// until ctx is cancelled.
func Run(ctx context.Context, cfg config.Collector, ln net.Listener, logger *slog.Logger) error {
	app, err := Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Error("failed to close collector backends", "error", err)
		}
	}()
	return httpserver.Serve(ctx, httpserver.New(cfg.Addr, app.Handler), ln, logger)
}
