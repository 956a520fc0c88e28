package main

import (
	"context"
	"os"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/briangreenhill/nomadstay/cache"
	"github.com/briangreenhill/nomadstay/internal/config"
	"github.com/briangreenhill/nomadstay/internal/db"
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

	if !cfg.CachingEnabled() {
		logger.Fatal().Msg("REDIS_URL is required for the worker; without it the api recomputes in-process")
	}
	redisOpt, err := cfg.AsynqRedis()
	if err != nil {
		logger.Fatal().Err(err).Msg("asynq redis options")
	}

	pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("unable to connect to database")
	}
	defer pool.Close()
	q := db.New(pool)

	rs, err := cache.NewRedisStoreFromURL(cfg.RedisURL, cache.WithOpTimeout(cfg.CacheOpTimeout))
	if err != nil {
		logger.Fatal().Err(err).Msg("redis url")
	}
	defer rs.Close()
	hotels := cache.NewHotelCache(cache.NewPolicy(rs, logger))

	svc := truthscore.NewService(q, q, hotels, logger)

	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: cfg.WorkerConcurrency,
		Queues: map[string]int{
			jobs.QueueTruthScore: 1,
		},
		ErrorHandler: jobs.ErrorHandler(logger),
		Logger:       jobs.NewAsynqLogger(logger),
	})
	mux := asynq.NewServeMux()
	mux.HandleFunc(jobs.TaskRecomputeTruthScore, jobs.NewRecomputeHandler(svc, logger))

	logger.Info().Int("concurrency", cfg.WorkerConcurrency).Msg("worker running")
	if err := srv.Run(mux); err != nil {
		logger.Fatal().Err(err).Msg("worker stopped")
	}
}
