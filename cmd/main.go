package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	httpadapter "mta-engine/internal/adapter/http"
	"mta-engine/internal/adapter/postgres"
	"mta-engine/internal/adapter/usecase"
	"mta-engine/internal/config"
	"mta-engine/internal/core/attribution"
	"mta-engine/internal/core/domain"
	"mta-engine/internal/db"
	"mta-engine/internal/metrics"
)

// main is the entry point of the attribution engine. It loads
// configuration, optionally runs database migrations, initializes the
// database pool and repositories, then starts the HTTP server. On
// receiving a termination signal it gracefully shuts down the server.
func main() {
	exitCode := 1
	defer func() {
		if r := recover(); r != nil {
			panic(r)
		} else {
			os.Exit(exitCode)
		}
	}()

	// Load configuration from environment variables.
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	var logger *slog.Logger
	{
		// Initialise structured logger based on configuration.
		var handler slog.Handler
		level := cfg.Log.SlogLevel()
		switch cfg.Log.SlogFormat() {
		case "json":
			handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
		default:
			handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
		}
		logger = slog.New(handler)
	}

	attrCfg, err := attributionConfig(cfg)
	if err != nil {
		logger.Error("invalid attribution config", slog.Any("error", err))
		os.Exit(1)
	}

	// Optionally run migrations if configured. We use the Psql sub-config.
	if cfg.Psql.RunMigrations {
		if err = db.Migrate(cfg.Psql.Addr.String()); err != nil {
			logger.Error("migration error", slog.Any("error", err))
		} else {
			logger.Info("migrations applied successfully")
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	pool, err := db.NewPostgresPool(ctx, cfg.Psql)
	if err != nil {
		logger.Error("database connection error", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	if cfg.Psql.SeedDemo {
		if err = db.Seed(ctx, pool); err != nil {
			logger.Error("seed error", slog.Any("error", err))
		} else {
			logger.Info("demo data seeded")
		}
	}

	conversions := postgres.NewConversionRepository(pool)
	touchpoints := postgres.NewTouchpointRepository(pool)
	m := metrics.New(prometheus.DefaultRegisterer)
	svc := usecase.NewConversionUseCase(conversions, touchpoints, attrCfg, cfg.Attr.BatchLimit, logger, m)

	handler := httpadapter.NewHandler(svc, logger)
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler: handler.Router(),
	}

	go func() {
		logger.Info("server listening", slog.Int("port", int(cfg.HTTP.Port)))
		if err = srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.Any("error", err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	value := <-quit
	exitCode = 128 + int(value.(syscall.Signal))

	ctx, cancel = context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err = srv.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
	} else {
		logger.Info("server gracefully stopped")
	}
}

// attributionConfig translates the env section into the calculator config,
// rejecting unknown model names at startup.
func attributionConfig(cfg config.Config) (attribution.Config, error) {
	out := attribution.Config{
		TimeDecayHalfLifeDays: cfg.Attr.HalfLifeDays,
	}
	for _, name := range cfg.Attr.Models {
		m := domain.ParseModel(name)
		if m == "" {
			return out, fmt.Errorf("unknown attribution model %q", name)
		}
		out.Models = append(out.Models, m)
	}
	if len(cfg.Attr.CustomWeights) > 0 {
		out.CustomWeights = make(map[domain.Channel]float64, len(cfg.Attr.CustomWeights))
		for ch, w := range cfg.Attr.CustomWeights {
			out.CustomWeights[domain.ParseChannel(ch)] = w
		}
	}
	return out, nil
}
