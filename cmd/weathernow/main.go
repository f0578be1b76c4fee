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
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/weathernow/internal/alert"
	"github.com/kjstillabower/weathernow/internal/cache"
	"github.com/kjstillabower/weathernow/internal/config"
	"github.com/kjstillabower/weathernow/internal/controller"
	"github.com/kjstillabower/weathernow/internal/gateway"
	"github.com/kjstillabower/weathernow/internal/geolocate"
	"github.com/kjstillabower/weathernow/internal/httpapi"
	"github.com/kjstillabower/weathernow/internal/location"
	"github.com/kjstillabower/weathernow/internal/models"
	"github.com/kjstillabower/weathernow/internal/observability"
	"github.com/kjstillabower/weathernow/internal/persist"
)

func main() {
	_ = godotenv.Load()

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

	var weatherCache cache.Store[models.WeatherBundle]
	var searchCache cache.Store[[]models.SearchResult]
	var cachePing func() error
	var cacheClosers []func() error
	switch cfg.CacheBackend {
	case "memcached":
		wc, err := cache.NewMemcached[models.WeatherBundle](cfg.MemcachedAddrs, cfg.CacheTTL, cfg.MemcachedTimeout, cfg.MemcachedMaxIdleConns)
		if err != nil {
			logger.Fatal("memcached cache", zap.Error(err))
		}
		sc, err := cache.NewMemcached[[]models.SearchResult](cfg.MemcachedAddrs, cfg.CacheTTL, cfg.MemcachedTimeout, cfg.MemcachedMaxIdleConns)
		if err != nil {
			logger.Fatal("memcached cache", zap.Error(err))
		}
		weatherCache = wc
		searchCache = sc
		cachePing = wc.Ping
		cacheClosers = append(cacheClosers, wc.Close, sc.Close)
		logger.Info("cache backend: memcached", zap.String("addrs", cfg.MemcachedAddrs))
	default:
		weatherCache = cache.NewMemory[models.WeatherBundle](cfg.CacheTTL)
		searchCache = cache.NewMemory[[]models.SearchResult](cfg.CacheTTL)
		logger.Info("cache backend: in_memory")
	}

	gw := gateway.New(gateway.Options{
		ForecastURL:  cfg.ForecastURL,
		GeocodingURL: cfg.GeocodingURL,
		Language:     cfg.SearchLanguage,
		Timeout:      cfg.ForecastTimeout,
	}, weatherCache, searchCache, logger)

	store := persist.NewFileStore(cfg.StatePath)
	locator := geolocate.NewIPLocator(cfg.GeolocationURL, cfg.GeolocationTimeout)
	alerts := alert.NewRecorder(logger, 20)
	resolver := location.New(store, locator, alerts, logger)

	ctrl := controller.New(gw, resolver, alerts, logger, cfg.RefreshInterval, cfg.WarmFavorites)
	startCtx, startCancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := ctrl.Start(startCtx); err != nil {
		logger.Fatal("controller start", zap.Error(err))
	}
	startCancel()

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}
	handler := httpapi.NewHandler(ctrl, gw, alerts, logger, cachePing)

	router := mux.NewRouter()
	router.Use(httpapi.CorrelationIDMiddleware(logger))
	router.Use(httpapi.MetricsMiddleware)
	router.Handle("/metrics", observability.MetricsHandler())
	router.HandleFunc("/health", handler.GetHealth).Methods("GET")

	api := router.PathPrefix("").Subrouter()
	api.Use(httpapi.RateLimitMiddleware(limiter))
	api.Use(httpapi.TimeoutMiddleware(cfg.RequestTimeout))
	handler.Register(api)

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
	ctrl.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}

	inFlight := httpapi.InFlightCount()
	logger.Info("waiting for in-flight requests", zap.Int64("count", inFlight))
	waitCtx, waitCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer waitCancel()
	if err := httpapi.WaitForInFlight(waitCtx, 100*time.Millisecond); err != nil {
		logger.Warn("in-flight requests not completed", zap.Error(err), zap.Int64("remaining", httpapi.InFlightCount()))
	}

	for _, closeCache := range cacheClosers {
		if err := closeCache(); err != nil {
			logger.Error("cache close", zap.Error(err))
		}
	}
	logger.Info("shutdown complete")
}
