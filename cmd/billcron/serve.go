package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/djlord-it/billing-cron/internal/analytics"
	"github.com/djlord-it/billing-cron/internal/api"
	"github.com/djlord-it/billing-cron/internal/config"
	"github.com/djlord-it/billing-cron/internal/executor"
	"github.com/djlord-it/billing-cron/internal/gcp"
	"github.com/djlord-it/billing-cron/internal/metrics"
)

func (a *app) runServe() int {
	cfg, err := a.loadConfig()
	if err != nil {
		fmt.Fprintf(a.stderr, "configuration error: %v\n", err)
		return exitInvalidRequest
	}
	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(a.stderr, "configuration error: %v\n", err)
		return exitInvalidRequest
	}

	logger := newLogger(cfg, a.stderr)
	ctx := context.Background()

	billing, err := gcp.NewBilling(ctx)
	if err != nil {
		return a.reportFailure(err)
	}
	exec := executor.New(billing, logger)

	var metricsSink metrics.Sink = metrics.NewNoopSink()
	if cfg.MetricsEnabled {
		metricsSink = metrics.NewPrometheusSink(prometheus.DefaultRegisterer, logger)
		logger.Info().Str("path", cfg.MetricsPath).Msg("metrics enabled")
	} else {
		logger.Info().Msg("METRICS_ENABLED not set; metrics disabled")
	}
	exec = exec.WithMetrics(metricsSink)

	handler := api.NewHandler(exec, logger).
		WithSecret(cfg.CallbackSecret).
		WithMetrics(metricsSink)

	// Wire analytics if Redis is configured
	var analyticsSink *analytics.RedisSink
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		analyticsSink = analytics.NewRedisSink(redisClient, cfg.AnalyticsRetention, logger)
		exec = exec.WithAnalytics(analyticsSink)
		handler = handler.WithHealthChecker("redis", analyticsSink)
		logger.Info().Str("redis", cfg.RedisAddr).Msg("analytics enabled")
	} else {
		logger.Info().Msg("REDIS_ADDR not set; analytics disabled")
	}

	if cfg.CallbackSecret == "" {
		logger.Warn().Msg("CALLBACK_SECRET not set; callbacks are accepted without a signature")
	}

	router := handler.Routes()
	if cfg.MetricsEnabled {
		router.Handle(cfg.MetricsPath, promhttp.Handler())
	}

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info().Str("addr", cfg.HTTPAddr).Msg("http server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown: %w", err)
		}
		logger.Info().Msg("http server stopped")
		return nil
	})

	code := exitSuccess
	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("serve failed")
		code = exitRuntimeError
	}

	if analyticsSink != nil {
		if err := analyticsSink.Close(); err != nil {
			logger.Warn().Err(err).Msg("redis close error")
		}
	}

	logger.Info().Msg("stopped")
	return code
}
