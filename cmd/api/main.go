// cmd/api/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	scs "github.com/alexedwards/scs/v2"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/briangreenhill/nomadstay/cache"
	"github.com/briangreenhill/nomadstay/internal/config"
	"github.com/briangreenhill/nomadstay/internal/db"
	"github.com/briangreenhill/nomadstay/internal/http/routes"
	"github.com/briangreenhill/nomadstay/internal/inventory"
	"github.com/briangreenhill/nomadstay/internal/jobs"
	"github.com/briangreenhill/nomadstay/internal/logging"
	"github.com/briangreenhill/nomadstay/internal/truthscore"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		l := zerolog.New(os.Stderr)
		l.Fatal().Err(err).Msg("load config")
	}

	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format, os.Stdout)
	logger.Info().Str("port", cfg.Port).Bool("caching", cfg.CachingEnabled()).Msg("starting api")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// DB
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("db error")
	}
	defer pool.Close()
	queries := db.New(pool)

	// Cache
	var store cache.Store
	if cfg.CachingEnabled() {
		rs, err := cache.NewRedisStoreFromURL(cfg.RedisURL,
			cache.WithOpTimeout(cfg.CacheOpTimeout),
			cache.WithBreakerStateHook(func(from, to string) {
				logger.Warn().Str("from", from).Str("to", to).Msg("cache breaker state changed")
			}),
		)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis url")
		}
		defer rs.Close()
		if err := rs.Ping(ctx); err != nil {
			// the policy falls through to the datastore while redis is down
			logger.Warn().Err(err).Msg("redis unreachable at startup")
		}
		store = rs
	} else if cfg.CacheInMemory {
		logger.Info().Msg("using in-process cache store")
		store = cache.NewMemoryStore()
	}
	policy := cache.NewPolicy(store, logger)

	// Background recompute
	var dispatcher jobs.Dispatcher
	if cfg.CachingEnabled() {
		redisOpt, err := cfg.AsynqRedis()
		if err != nil {
			logger.Fatal().Err(err).Msg("asynq redis options")
		}
		dispatcher = jobs.NewAsynqDispatcher(asynq.NewClient(redisOpt), logger)
	} else {
		svc := truthscore.NewService(queries, queries, cache.NewHotelCache(policy), logger)
		dispatcher = jobs.NewLocalDispatcher(svc, cfg.WorkerConcurrency, cfg.LocalQueueSize, logger)
	}
	defer func() {
		if err := dispatcher.Close(); err != nil {
			logger.Error().Err(err).Msg("close dispatcher")
		}
	}()

	// Inventory
	var rates routes.RateProvider
	if cfg.HasInventory() {
		inv, err := inventory.New(cfg.Inventory.APIKey, inventory.WithBaseURL(cfg.Inventory.BaseURL))
		if err != nil {
			logger.Fatal().Err(err).Msg("inventory client")
		}
		rates = inv
	}

	// Sessions
	sess := scs.New()
	sess.Lifetime = cfg.SessionLifetime
	sess.Cookie.HttpOnly = true
	sess.Cookie.SameSite = http.SameSiteLaxMode
	sess.Cookie.Secure = cfg.CookieSecure

	// Router / server
	s := routes.New(routes.ServerOptions{
		Sess:      sess,
		Q:         queries,
		Inventory: rates,
		Cache:     policy,
		Jobs:      dispatcher,
		Logger:    logger,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           sess.LoadAndSave(s.Router),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("shutdown")
		}
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("listen")
	}
	logger.Info().Msg("api stopped")
}
