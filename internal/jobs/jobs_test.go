package jobs

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/briangreenhill/nomadstay/internal/db"
	"github.com/briangreenhill/nomadstay/internal/truthscore"
)

type fakeRecomputer struct {
	mu      sync.Mutex
	hotels  []uuid.UUID
	err     error
	block   chan struct{}
	started chan struct{}
	panics  bool
}

func (f *fakeRecomputer) Recompute(_ context.Context, id uuid.UUID) (truthscore.HotelAggregate, error) {
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.block != nil {
		<-f.block
	}
	if f.panics {
		panic("boom")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hotels = append(f.hotels, id)
	return truthscore.HotelAggregate{HotelID: id, TruthScore: 50}, f.err
}

func (f *fakeRecomputer) seen() []uuid.UUID {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]uuid.UUID(nil), f.hotels...)
}

func TestLocalDispatcherRunsRecompute(t *testing.T) {
	rec := &fakeRecomputer{err: errors.New("ignored")}
	d := NewLocalDispatcher(rec, 2, 8, zerolog.Nop())

	a, b := uuid.New(), uuid.New()
	d.RecomputeTruthScore(context.Background(), a)
	d.RecomputeTruthScore(context.Background(), b)
	require.NoError(t, d.Close())

	assert.ElementsMatch(t, []uuid.UUID{a, b}, rec.seen())

	// closed dispatchers drop work without panicking
	d.RecomputeTruthScore(context.Background(), uuid.New())
	assert.NoError(t, d.Close())
	assert.Len(t, rec.seen(), 2)
}

func TestLocalDispatcherDoesNotBlockCaller(t *testing.T) {
	rec := &fakeRecomputer{block: make(chan struct{}), started: make(chan struct{}, 4)}
	d := NewLocalDispatcher(rec, 1, 1, zerolog.Nop())

	first := uuid.New()
	d.RecomputeTruthScore(context.Background(), first)
	<-rec.started // worker busy

	done := make(chan struct{})
	go func() {
		d.RecomputeTruthScore(context.Background(), uuid.New()) // queued
		d.RecomputeTruthScore(context.Background(), uuid.New()) // dropped
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("dispatch blocked on a busy worker")
	}

	close(rec.block)
	require.NoError(t, d.Close())
	assert.Len(t, rec.seen(), 2)
	assert.Equal(t, first, rec.seen()[0])
}

func TestLocalDispatcherRecoversPanics(t *testing.T) {
	rec := &fakeRecomputer{panics: true}
	d := NewLocalDispatcher(rec, 1, 4, zerolog.Nop())
	d.RecomputeTruthScore(context.Background(), uuid.New())
	d.RecomputeTruthScore(context.Background(), uuid.New())
	assert.NoError(t, d.Close())
}

type fakeEnqueuer struct {
	mu     sync.Mutex
	tasks  []*asynq.Task
	opts   [][]asynq.Option
	err    error
	block  chan struct{}
	closed bool
}

func (f *fakeEnqueuer) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if f.block != nil {
		<-f.block
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.tasks = append(f.tasks, task)
	f.opts = append(f.opts, opts)
	return &asynq.TaskInfo{ID: "t1", Queue: QueueTruthScore}, nil
}

func (f *fakeEnqueuer) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeEnqueuer) enqueued() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.tasks)
}

func TestAsynqDispatcher(t *testing.T) {
	enq := &fakeEnqueuer{}
	d := NewAsynqDispatcher(enq, zerolog.Nop())
	id := uuid.New()

	// the caller's request context may already be gone
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d.RecomputeTruthScore(ctx, id)
	d.wg.Wait()

	require.Len(t, enq.tasks, 1)
	assert.Equal(t, TaskRecomputeTruthScore, enq.tasks[0].Type())
	var p RecomputeTruthScorePayload
	require.NoError(t, json.Unmarshal(enq.tasks[0].Payload(), &p))
	assert.Equal(t, id, p.HotelID)

	got := map[asynq.OptionType]any{}
	for _, o := range enq.opts[0] {
		got[o.Type()] = o.Value()
	}
	assert.Equal(t, QueueTruthScore, got[asynq.QueueOpt])
	assert.Equal(t, maxRetry, got[asynq.MaxRetryOpt])
	assert.Equal(t, recomputeTimeout, got[asynq.TimeoutOpt])

	// a second trigger for the same hotel is enqueued again
	d.RecomputeTruthScore(context.Background(), id)
	d.wg.Wait()
	assert.Equal(t, 2, enq.enqueued())

	enq.mu.Lock()
	enq.err = errors.New("redis down")
	enq.mu.Unlock()
	assert.NotPanics(t, func() { d.RecomputeTruthScore(context.Background(), id) })

	require.NoError(t, d.Close())
	assert.True(t, enq.closed)

	// closed dispatchers drop triggers
	d.RecomputeTruthScore(context.Background(), id)
	assert.Equal(t, 2, enq.enqueued())
}

func TestAsynqDispatcherDoesNotWaitForRedis(t *testing.T) {
	enq := &fakeEnqueuer{block: make(chan struct{})}
	d := NewAsynqDispatcher(enq, zerolog.Nop())

	done := make(chan struct{})
	go func() {
		d.RecomputeTruthScore(context.Background(), uuid.New())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RecomputeTruthScore blocked on a slow enqueue")
	}
	assert.Equal(t, 0, enq.enqueued())

	// Close waits for the pending enqueue
	close(enq.block)
	require.NoError(t, d.Close())
	assert.Equal(t, 1, enq.enqueued())
}

func TestRecomputeHandler(t *testing.T) {
	id := uuid.New()
	task, err := NewRecomputeTask(id)
	require.NoError(t, err)
	ctx := context.Background()

	rec := &fakeRecomputer{}
	require.NoError(t, NewRecomputeHandler(rec, zerolog.Nop())(ctx, task))
	assert.Equal(t, []uuid.UUID{id}, rec.seen())

	err = NewRecomputeHandler(rec, zerolog.Nop())(ctx, asynq.NewTask(TaskRecomputeTruthScore, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	transient := fmt.Errorf("list contributions: %w", &net.OpError{Op: "dial", Err: errors.New("connection refused")})
	err = NewRecomputeHandler(&fakeRecomputer{err: transient}, zerolog.Nop())(ctx, task)
	require.Error(t, err)
	assert.NotErrorIs(t, err, asynq.SkipRetry)

	permanent := fmt.Errorf("save aggregate: %w", errors.New("invalid input syntax for type json"))
	err = NewRecomputeHandler(&fakeRecomputer{err: permanent}, zerolog.Nop())(ctx, task)
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{context.DeadlineExceeded, true},
		{fmt.Errorf("wrapped: %w", context.DeadlineExceeded), true},
		{&net.DNSError{Err: "no such host", Name: "db"}, true},
		{errors.New("read tcp: connection reset by peer"), true},
		{errors.New("i/o timeout"), true},
		{errors.New("FATAL: sorry, too many clients already (SQLSTATE 53300)"), true},
		{errors.New("ERROR: the database system is starting up (SQLSTATE 57P03)"), true},
		{fmt.Errorf("get hotel: %w", db.ErrNotFound), false},
		{errors.New("invalid input syntax"), false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, isRetryableError(tt.err), tt.err.Error())
	}
}

func TestErrorHandler(t *testing.T) {
	task := asynq.NewTask(TaskRecomputeTruthScore, nil)
	assert.NotPanics(t, func() {
		ErrorHandler(zerolog.Nop())(context.Background(), task, errors.New("boom"))
		ErrorHandler(zerolog.Nop())(context.Background(), task, fmt.Errorf("bad: %w", asynq.SkipRetry))
	})
}
