package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	cache "github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/OpraEria/gather/config"
	"github.com/OpraEria/gather/pkg/logger"
	"github.com/OpraEria/gather/pkg/messaging/redis"
	"github.com/OpraEria/gather/pkg/metrics"
	"github.com/OpraEria/gather/pkg/worker"
)

func main() {
	cfg, err := config.LoadWorkerConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load worker configuration")
	}

	appLogger := logger.NewLogger(nil)

	zl := log.Logger
	broker, err := redis.NewRedisBroker(redis.Config{URL: cfg.RedisURL}, &zl)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to Redis")
	}
	defer broker.Close()

	ttl := time.Duration(cfg.CacheTTL) * time.Second
	eventsCache := cache.New(ttl, 2*ttl)

	m := metrics.NewMetrics("gather_worker")
	notifier := worker.NewLogNotifier(appLogger)
	source := worker.NewHTTPListingSource(cfg.APIBaseURL, time.Duration(cfg.FetchTimeout)*time.Second)

	w := worker.NewDeliveryWorker(broker, notifier, source, eventsCache, appLogger, m)

	metricsSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.MetricsPort),
		Handler: promhttp.Handler(),
	}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics server failed")
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx)
	}()
	log.Info().Int("metrics_port", cfg.MetricsPort).Msg("worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		log.Info().Msg("shutting down worker...")
		cancel()
		<-done
	case err := <-done:
		cancel()
		if err != nil {
			log.Fatal().Err(err).Msg("worker stopped unexpectedly")
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("metrics server shutdown failed")
	}

	log.Info().Msg("worker exited properly")
}
