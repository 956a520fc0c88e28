package jobs

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"

	"github.com/briangreenhill/nomadstay/internal/db"
)

// NewRecomputeHandler processes TaskRecomputeTruthScore. Transient failures
// are returned for asynq to retry; everything else is logged and dropped.
func NewRecomputeHandler(svc Recomputer, logger zerolog.Logger) asynq.HandlerFunc {
	logger = logger.With().Str("task", TaskRecomputeTruthScore).Logger()

	return func(ctx context.Context, t *asynq.Task) error {
		var p RecomputeTruthScorePayload
		if err := json.Unmarshal(t.Payload(), &p); err != nil {
			logger.Error().Err(err).Msg("bad payload")
			return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
		}

		start := time.Now()
		agg, err := svc.Recompute(ctx, p.HotelID)
		duration := time.Since(start)

		log := logger.With().Str("hotel_id", p.HotelID.String()).Dur("duration", duration).Logger()
		if err != nil {
			if isRetryableError(err) {
				log.Warn().Err(err).Msg("retryable error")
				return err
			}
			log.Error().Err(err).Msg("permanent error, dropping task")
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		log.Info().Float64("truth_score", agg.TruthScore).Int("contributions", agg.ContributionCount).Msg("recompute done")
		return nil
	}
}

// isRetryableError reports whether a failed recompute may succeed if run again
func isRetryableError(err error) bool {
	if errors.Is(err, db.ErrNotFound) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	if pgconn.SafeToRetry(err) {
		return true
	}

	errStr := strings.ToLower(err.Error())

	// connectivity
	if strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "connection") ||
		strings.Contains(errStr, "network") ||
		strings.Contains(errStr, "dns") {
		return true
	}

	// postgres is starting up, shutting down or out of connections
	if strings.Contains(errStr, "sqlstate 57p") ||
		strings.Contains(errStr, "sqlstate 53300") ||
		strings.Contains(errStr, "sqlstate 40001") {
		return true
	}

	return false
}

// ErrorHandler logs tasks that failed, noting whether they will be retried
func ErrorHandler(logger zerolog.Logger) asynq.ErrorHandlerFunc {
	return func(ctx context.Context, task *asynq.Task, err error) {
		retried, _ := asynq.GetRetryCount(ctx)
		maxRetry, _ := asynq.GetMaxRetry(ctx)
		ev := logger.Warn()
		if errors.Is(err, asynq.SkipRetry) || retried >= maxRetry {
			ev = logger.Error()
		}
		ev.Err(err).
			Str("task", task.Type()).
			Int("retried", retried).
			Int("max_retry", maxRetry).
			Msg("task failed")
	}
}
