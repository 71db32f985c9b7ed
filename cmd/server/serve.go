package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
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
	"github.com/twmb/franz-go/pkg/kgo"

	"bizreg/internal/business/cache"
	"bizreg/internal/business/events"
	"bizreg/internal/business/handler"
	businessmetrics "bizreg/internal/business/metrics"
	"bizreg/internal/business/sequence"
	"bizreg/internal/business/service"
	"bizreg/internal/business/store"
	"bizreg/internal/platform/config"
	"bizreg/internal/platform/httpserver"
	"bizreg/internal/platform/kafka"
	"bizreg/internal/platform/logger"
	"bizreg/internal/platform/metrics"
	"bizreg/internal/platform/middleware"
	"bizreg/internal/platform/postgres"
	"bizreg/internal/platform/redis"
	"bizreg/pkg/platform/circuit"
	"bizreg/pkg/platform/httputil"
	"bizreg/pkg/platform/tx"
)

// infra holds the connections opened for the process.
type infra struct {
	db       *sql.DB
	redis    *redis.Client
	producer *kgo.Client
}

func (i *infra) close() {
	if i.producer != nil {
		i.producer.Close()
	}
	if i.redis != nil {
		_ = i.redis.Close()
	}
	if i.db != nil {
		_ = i.db.Close()
	}
}

func serve(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log := logger.New(cfg.Server.LogLevel)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := openInfra(ctx, cfg, log)
	if deps != nil {
		defer deps.close()
	}
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	httpMetrics := metrics.New(reg)
	businessMetrics := businessmetrics.New(reg)

	svc, err := buildService(cfg, deps, log, businessMetrics)
	if err != nil {
		return err
	}

	r := chi.NewRouter()
	r.Use(middleware.Recovery(log))
	r.Use(middleware.RequestID)
	r.Use(middleware.ClientMetadata)
	r.Use(middleware.RequestTime)
	r.Use(middleware.Logger(log))
	r.Use(middleware.LatencyMiddleware(httpMetrics))
	r.Use(middleware.Timeout(cfg.Server.RequestTimeout))
	r.Use(middleware.ContentTypeJSON)

	r.Get("/health", healthHandler(deps))
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	handler.New(svc, log).Register(r)

	srv := httpserver.New(cfg.Server.Addr, r)
	errCh := make(chan error, 1)
	go func() {
		log.Info("starting bizreg", "addr", cfg.Server.Addr, "sequence_backend", cfg.Business.SequenceBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

func migrate(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.Database.URL == "" {
		return errors.New("migrate requires DATABASE_URL")
	}
	log := logger.New(cfg.Server.LogLevel)
	db, err := postgres.Open(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()
	return postgres.Migrate(ctx, db, log)
}

// openInfra connects to every configured backend. On error the partially
// opened infra is still returned so the caller can close it.
func openInfra(ctx context.Context, cfg config.Config, log *slog.Logger) (*infra, error) {
	deps := &infra{}
	var err error

	if cfg.Database.URL != "" {
		if deps.db, err = postgres.Open(ctx, cfg.Database); err != nil {
			return deps, err
		}
		if cfg.Database.AutoMigrate {
			if err := postgres.Migrate(ctx, deps.db, log); err != nil {
				return deps, err
			}
		}
	}

	if deps.redis, err = redis.New(ctx, cfg.Redis); err != nil {
		return deps, err
	}

	if deps.producer, err = kafka.NewProducer(ctx, cfg.Kafka); err != nil {
		return deps, err
	}
	if deps.producer != nil {
		if err := kafka.EnsureTopic(ctx, deps.producer, cfg.Kafka); err != nil {
			return deps, err
		}
	}
	return deps, nil
}

func buildService(cfg config.Config, deps *infra, log *slog.Logger, m *businessmetrics.Metrics) (*service.Service, error) {
	opts := []service.Option{
		service.WithLogger(log),
		service.WithMetrics(m),
		service.WithLocation(cfg.Location()),
		service.WithBackendName(cfg.Business.SequenceBackend),
	}

	var records service.Store
	if deps.db != nil {
		records = store.NewPostgres(deps.db)
		opts = append(opts, service.WithTxRunner(tx.NewRunner(deps.db)))
	} else {
		records = store.NewInMemory()
	}

	var allocator service.Allocator
	switch cfg.Business.SequenceBackend {
	case config.SequencePostgres:
		allocator = sequence.NewPostgres(deps.db)
	case config.SequenceRedis:
		if deps.redis == nil {
			return nil, errors.New("sequence backend redis requires REDIS_URL")
		}
		allocator = sequence.NewRedis(deps.redis.Client)
	default:
		allocator = sequence.NewInMemory()
	}

	if deps.redis != nil {
		opts = append(opts, service.WithDashboardCache(cache.NewRedis(deps.redis.Client,
			cache.WithTTL(cfg.Business.DashboardCacheTTL),
			cache.WithLogger(log),
			cache.WithMetrics(m),
		)))
	}

	if deps.producer != nil {
		opts = append(opts, service.WithPublisher(events.NewKafka(deps.producer, cfg.Kafka.Topic,
			events.WithBreaker(circuit.New("kafka", circuit.WithCooldown(30*time.Second))),
			events.WithLogger(log),
		)))
	}

	return service.New(records, allocator, opts...)
}

type healthResponse struct {
	Status   string            `json:"status"`
	Backends map[string]string `json:"backends"`
}

func healthHandler(deps *infra) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		resp := healthResponse{Status: "ok", Backends: map[string]string{}}
		check := func(name string, err error) {
			if err != nil {
				resp.Status = "degraded"
				resp.Backends[name] = err.Error()
				return
			}
			resp.Backends[name] = "ok"
		}
		if deps.db != nil {
			check("postgres", deps.db.PingContext(ctx))
		}
		if deps.redis != nil {
			check("redis", deps.redis.Health(ctx))
		}
		if deps.producer != nil {
			check("kafka", deps.producer.Ping(ctx))
		}

		status := http.StatusOK
		if resp.Status != "ok" {
			status = http.StatusServiceUnavailable
		}
		httputil.WriteJSON(w, status, resp)
	}
}
