package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"safar/config"
	"safar/database"
	"safar/handlers"
	"safar/itinerary"
	"safar/logging"
	"safar/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	logger := logging.Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, cleanup, err := buildDeps(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialise services")
	}
	defer cleanup()

	if cfg.Server.GinMode != "" {
		gin.SetMode(cfg.Server.GinMode)
	}

	r := gin.New()
	r.Use(gin.Recovery(), handlers.RequestLogger())

	// Trusted proxies (the platform sits behind a proxy)
	if err := r.SetTrustedProxies([]string{"0.0.0.0/0"}); err != nil {
		logger.Warn().Err(err).Msg("failed to set trusted proxies")
	}

	allowedOrigins := append([]string{"http://localhost:5173", "http://localhost:3000"}, cfg.Server.FrontendURLs...)
	r.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	handlers.New(deps).Register(r.Group("/api"))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info().Str("port", cfg.Server.Port).Msg("safar api starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
}

// buildDeps wires the predictor chain, safety rules and run store.
//
//nolint:gocritic // zerolog.Logger is passed by value by design
func buildDeps(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (handlers.Deps, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	safety, err := services.LoadSafetyRules(cfg.Safety.RulesPath, cfg.Safety.HighRiskDestinations)
	if err != nil {
		return handlers.Deps{}, cleanup, err
	}
	logger.Info().Strs("high_risk_destinations", safety.Destinations()).Msg("safety rules loaded")

	var model services.BudgetPredictor
	if cfg.Predictor.URL != "" {
		model = services.NewRemotePredictor(services.RemoteConfig{
			URL:             cfg.Predictor.URL,
			APIKey:          cfg.Predictor.APIKey,
			Timeout:         cfg.Predictor.Timeout,
			RatePerSecond:   cfg.Predictor.RatePerSecond,
			Burst:           cfg.Predictor.Burst,
			BreakerFailures: cfg.Predictor.BreakerFailures,
			BreakerTimeout:  cfg.Predictor.BreakerTimeout,
		}, logger)

		if cfg.Cache.RedisURL != "" {
			rdb, err := services.NewRedisClient(ctx, cfg.Cache.RedisURL)
			if err != nil {
				logger.Warn().Err(err).Msg("redis unavailable, predictions will not be cached")
			} else {
				closers = append(closers, func() { _ = rdb.Close() })
				model = services.NewCachedPredictor(model, rdb, cfg.Cache.TTL, logger)
			}
		}
	} else {
		logger.Warn().Msg("PREDICTOR_URL not set, budgets will use the heuristic estimate")
	}

	deps := handlers.Deps{
		Optimizer: itinerary.NewOptimizer(cfg.Optimizer.DefaultDailyBudget, logger),
		Predictor: services.NewFallbackPredictor(model, services.HeuristicPredictor{}, logger),
		Safety:    safety,
		Logger:    logger,
	}

	if cfg.Database.Enabled {
		store, err := database.Open(ctx, cfg.Database.Driver, cfg.Database.DSN(), logger)
		if err != nil {
			return handlers.Deps{}, cleanup, err
		}
		closers = append(closers, func() { _ = store.Close() })
		deps.Store = store
	} else {
		logger.Warn().Msg("database disabled, runs will not be stored")
	}

	return deps, cleanup, nil
}
