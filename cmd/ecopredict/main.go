package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"ecopredict/internal/api"
	"ecopredict/internal/cfg"
	"ecopredict/internal/metrics"
	"ecopredict/internal/ml"
	"ecopredict/internal/storage"
)

func main() {
	// .env is optional; real deployments configure via environment.
	_ = godotenv.Load()

	c, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}

	setupLogging(c)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.New()
	store := initializeStorage(c)
	if store != nil {
		defer store.Close()
	}

	// A nil *storage.Store must stay a nil interface for the predictor.
	var modelStore ml.ModelStore
	if store != nil {
		modelStore = store
	}

	predictor := ml.NewPredictor(modelStore, metrics.NewWrapper(m))
	forecaster := newForecaster(c)

	startMetricsServer(ctx, c)

	server := api.New(c, predictor, forecaster, store, m)
	go func() {
		if err := server.Start(); err != nil {
			log.Error().Err(err).Msg("api server stopped")
			cancel()
		}
	}()

	waitForShutdown(ctx, c, server)
}

func setupLogging(c cfg.Settings) {
	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if c.PrettyLogs {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}

// initializeStorage opens the snapshot/model store when DATA_PATH is
// configured; without it the service runs heuristic-and-memory only.
func initializeStorage(c cfg.Settings) *storage.Store {
	if c.DataPath == "" {
		log.Info().Msg("no data path configured, running without persistence")
		return nil
	}

	store, err := storage.New(c.DataPath)
	if err != nil {
		log.Warn().Err(err).Msg("storage initialization failed, continuing without persistence")
		return nil
	}
	return store
}

// newForecaster seeds forecast noise from config when set, otherwise
// from the clock.
func newForecaster(c cfg.Settings) *ml.Forecaster {
	seed := c.ForecastSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return ml.NewForecaster(seed)
}

// startMetricsServer serves Prometheus exposition on the metrics port.
func startMetricsServer(ctx context.Context, c cfg.Settings) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", c.MetricsPort),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		if err := server.Shutdown(context.Background()); err != nil {
			log.Error().Err(err).Msg("failed to shutdown metrics server")
		}
	}()

	go func() {
		log.Info().Int("port", c.MetricsPort).Msg("starting metrics server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics server failed")
		}
	}()
}

// waitForShutdown blocks until a signal arrives, then drains the API
// server within the configured timeout.
func waitForShutdown(ctx context.Context, c cfg.Settings, server *api.Server) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		log.Info().Msg("shutdown signal received")
	case <-ctx.Done():
		log.Info().Msg("context canceled")
	}

	log.Info().Msg("shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), c.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("api server shutdown timed out")
	}
}
