// Package jobs schedules background work. Truth score recomputation is
// fire-and-forget: callers never wait for it and never see its errors.
package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/briangreenhill/nomadstay/internal/metrics"
	"github.com/briangreenhill/nomadstay/internal/truthscore"
)

const (
	enqueueTimeout   = 2 * time.Second
	recomputeTimeout = time.Minute
	maxRetry         = 3
)

// Dispatcher schedules background tasks
type Dispatcher interface {
	// RecomputeTruthScore schedules a recompute of hotelID and returns immediately
	RecomputeTruthScore(ctx context.Context, hotelID uuid.UUID)
	Close() error
}

// Recomputer rebuilds one hotel's aggregate
type Recomputer interface {
	Recompute(ctx context.Context, hotelID uuid.UUID) (truthscore.HotelAggregate, error)
}

// Enqueuer is the part of *asynq.Client used here
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	Close() error
}

// AsynqDispatcher hands tasks to the asynq worker over Redis. Enqueues run on
// their own goroutine so a slow Redis never holds up the caller.
type AsynqDispatcher struct {
	client Enqueuer
	logger zerolog.Logger
	wg     sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewAsynqDispatcher creates a dispatcher over an asynq client
func NewAsynqDispatcher(client Enqueuer, logger zerolog.Logger) *AsynqDispatcher {
	return &AsynqDispatcher{client: client, logger: logger.With().Str("component", "jobs").Logger()}
}

// NewRecomputeTask builds the asynq task for one hotel
func NewRecomputeTask(hotelID uuid.UUID) (*asynq.Task, error) {
	payload, err := json.Marshal(RecomputeTruthScorePayload{HotelID: hotelID})
	if err != nil {
		return nil, fmt.Errorf("marshal recompute payload: %w", err)
	}
	return asynq.NewTask(TaskRecomputeTruthScore, payload), nil
}

// RecomputeTruthScore implements Dispatcher. Enqueue failures are logged only;
// the next contribution for the hotel triggers again.
func (d *AsynqDispatcher) RecomputeTruthScore(ctx context.Context, hotelID uuid.UUID) {
	task, err := NewRecomputeTask(hotelID)
	if err != nil {
		d.logger.Error().Err(err).Str("hotel_id", hotelID.String()).Msg("build recompute task failed")
		return
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.logger.Warn().Str("hotel_id", hotelID.String()).Msg("dispatcher closed, dropping recompute")
		return
	}

	// the triggering request may finish before the enqueue does
	ctx = context.WithoutCancel(ctx)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.enqueue(ctx, hotelID, task)
	}()
}

func (d *AsynqDispatcher) enqueue(ctx context.Context, hotelID uuid.UUID, task *asynq.Task) {
	ctx, cancel := context.WithTimeout(ctx, enqueueTimeout)
	defer cancel()

	info, err := d.client.EnqueueContext(ctx, task,
		asynq.Queue(QueueTruthScore),
		asynq.MaxRetry(maxRetry),
		asynq.Timeout(recomputeTimeout),
	)
	if err != nil {
		metrics.JobsDropped.WithLabelValues(TaskRecomputeTruthScore).Inc()
		d.logger.Error().Err(err).Str("hotel_id", hotelID.String()).Msg("enqueue recompute failed")
		return
	}
	d.logger.Debug().Str("task_id", info.ID).Str("queue", info.Queue).Str("hotel_id", hotelID.String()).Msg("recompute enqueued")
}

// Close waits for in-flight enqueues and releases the asynq client
func (d *AsynqDispatcher) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.mu.Unlock()

	d.wg.Wait()
	return d.client.Close()
}

// LocalDispatcher runs recomputes on an in-process worker pool. It is used
// when no Redis is configured. A full queue drops the trigger.
type LocalDispatcher struct {
	svc    Recomputer
	logger zerolog.Logger
	queue  chan uuid.UUID
	wg     sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewLocalDispatcher starts workers goroutines draining a queue of queueSize
func NewLocalDispatcher(svc Recomputer, workers, queueSize int, logger zerolog.Logger) *LocalDispatcher {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	d := &LocalDispatcher{
		svc:    svc,
		logger: logger.With().Str("component", "jobs").Logger(),
		queue:  make(chan uuid.UUID, queueSize),
	}
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.work()
	}
	return d
}

// RecomputeTruthScore implements Dispatcher
func (d *LocalDispatcher) RecomputeTruthScore(_ context.Context, hotelID uuid.UUID) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.logger.Warn().Str("hotel_id", hotelID.String()).Msg("dispatcher closed, dropping recompute")
		return
	}
	select {
	case d.queue <- hotelID:
	default:
		metrics.JobsDropped.WithLabelValues(TaskRecomputeTruthScore).Inc()
		d.logger.Warn().Str("hotel_id", hotelID.String()).Msg("recompute queue full, dropping trigger")
	}
}

// Close stops accepting work and waits for queued recomputes to finish
func (d *LocalDispatcher) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	d.wg.Wait()
	return nil
}

func (d *LocalDispatcher) work() {
	defer d.wg.Done()
	for hotelID := range d.queue {
		d.run(hotelID)
	}
}

func (d *LocalDispatcher) run(hotelID uuid.UUID) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error().Interface("panic", r).Str("hotel_id", hotelID.String()).Msg("recompute panicked")
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), recomputeTimeout)
	defer cancel()

	if _, err := d.svc.Recompute(ctx, hotelID); err != nil {
		d.logger.Error().Err(err).Str("hotel_id", hotelID.String()).Msg("recompute failed")
	}
}
