package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/aviation-weather-service/internal/cache"
	"github.com/kjstillabower/aviation-weather-service/internal/category"
	"github.com/kjstillabower/aviation-weather-service/internal/client"
	"github.com/kjstillabower/aviation-weather-service/internal/config"
	httphandler "github.com/kjstillabower/aviation-weather-service/internal/http"
	"github.com/kjstillabower/aviation-weather-service/internal/lifecycle"
	"github.com/kjstillabower/aviation-weather-service/internal/observability"
	"github.com/kjstillabower/aviation-weather-service/internal/service"
)

func main() {
	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}

	var reportCache cache.Cache[string]
	var memcacheCloser *cache.MemcachedStore
	switch cfg.CacheBackend {
	case "memcached":
		mc, err := cache.NewMemcachedStore(cfg.MemcachedAddrs, cfg.MemcachedTimeout, cfg.MemcachedMaxIdleConns)
		if err != nil {
			logger.Fatal("memcached cache", zap.Error(err))
		}
		memcacheCloser = mc
		reportCache = mc
		logger.Info("cache backend: memcached", zap.String("addrs", cfg.MemcachedAddrs))
	default:
		reportCache = cache.NewStore[string]()
		logger.Info("cache backend: in_memory")
	}

	metarClient := client.NewMETARClient(cfg.METARAPIURL, cfg.METARAPITimeout, reportCache)
	forecastClient := client.NewForecastClient(cfg.ForecastAPIURL, cfg.ForecastAPITimeout, reportCache)

	var currentSource service.CurrentSource
	if cfg.CurrentAPIKey != "" {
		currentClient, err := client.NewCurrentWeatherClientWithRetry(
			cfg.CurrentAPIKey,
			cfg.CurrentAPIURL,
			cfg.CurrentAPITimeout,
			reportCache,
			cfg.RetryAttempts,
			cfg.RetryBaseDelay,
			cfg.RetryMaxDelay,
		)
		if err != nil {
			logger.Fatal("current weather client", zap.Error(err))
		}
		probeCtx, probeCancel := context.WithTimeout(context.Background(), cfg.CurrentAPITimeout)
		if err := currentClient.ValidateAPIKey(probeCtx); err != nil {
			logger.Warn("current weather API key validation failed; /current may return errors", zap.Error(err))
		}
		probeCancel()
		currentSource = currentClient
		logger.Info("current weather source enabled")
	} else {
		logger.Info("no current weather API key configured; /current disabled")
	}

	weatherService := service.NewWeatherService(metarClient, forecastClient, currentSource, category.DefaultThresholds())

	healthConfig := &httphandler.HealthConfig{
		RateLimitRPS:     cfg.RateLimitRPS,
		RateLimitBurst:   cfg.RateLimitBurst,
		DegradedWindow:   cfg.DegradedWindow,
		DegradedErrorPct: cfg.DegradedErrorPct,
		MinimumLifespan:  cfg.MinimumLifespan,
		StartTime:        time.Now(),
	}
	if memcacheCloser != nil {
		healthConfig.CachePing = memcacheCloser.Ping
	}

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}
	handler := httphandler.NewHandler(weatherService, healthConfig, logger, limiter, currentSource != nil)

	if len(cfg.TrackedStations) > 0 {
		observability.SetTrackedStations(cfg.TrackedStations)
	}

	var warmer *cache.Warmer
	if cfg.WarmingEnabled && len(cfg.WarmingStations) > 0 {
		warmer = cache.NewWarmer(metarClient, cfg.WarmingStations, cfg.WarmingInterval, logger)
		if err := warmer.Start(); err != nil {
			logger.Warn("cache warming failed to start", zap.Error(err))
		}
	}

	router := mux.NewRouter()
	router.Use(httphandler.CorrelationIDMiddleware(logger))
	router.Use(httphandler.MetricsMiddleware)
	router.HandleFunc("/health", handler.GetHealth).Methods("GET")
	router.Handle("/metrics", observability.MetricsHandler())

	weatherRouter := router.NewRoute().Subrouter()
	weatherRouter.Use(httphandler.RateLimitMiddleware(limiter))
	weatherRouter.Use(httphandler.TimeoutMiddleware(cfg.RequestTimeout))
	weatherRouter.HandleFunc("/conditions", handler.GetStationConditionsBatch).Methods("GET")
	weatherRouter.HandleFunc("/conditions/{station}", handler.GetStationConditions).Methods("GET")
	weatherRouter.HandleFunc("/windows", handler.GetDepartureWindows).Methods("GET")
	if currentSource != nil {
		weatherRouter.HandleFunc("/current/{location}", handler.GetCurrentConditions).Methods("GET")
	}

	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", ":"+cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	<-ctx.Done()
	stop()

	logger.Info("graceful shutdown triggered")
	lifecycle.SetShuttingDown(true)
	if warmer != nil {
		warmer.Stop()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}

	inFlight := httphandler.InFlightCount()
	logger.Info("waiting for in-flight requests", zap.Int64("count", inFlight))
	waitCtx, waitCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer waitCancel()
	if err := httphandler.WaitForInFlight(waitCtx, 100*time.Millisecond); err != nil {
		logger.Warn("in-flight requests not completed", zap.Error(err), zap.Int64("remaining", httphandler.InFlightCount()))
	}

	if err := observability.FlushTelemetry(context.Background(), logger); err != nil {
		logger.Error("telemetry flush", zap.Error(err))
	}

	if memcacheCloser != nil {
		if err := memcacheCloser.Close(); err != nil {
			logger.Error("memcached close", zap.Error(err))
		}
	}
	logger.Info("shutdown complete")
}
