package media

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/vidtube/backend/internal/metrics"
)

// ErrReaperClosed is returned by Enqueue after Shutdown has begun.
var ErrReaperClosed = errors.New("media reaper closed")

// ReaperConfig controls the reaper's queue and retry behaviour.
type ReaperConfig struct {
	QueueSize int
	Workers   int
	// MaxElapsed bounds how long one removal is retried.
	MaxElapsed time.Duration
}

// Reaper removes media objects in the background, retrying failed removals with exponential
// backoff. Objects that still cannot be removed are logged and left behind.
type Reaper struct {
	store      Store
	logger     *slog.Logger
	maxElapsed time.Duration

	// mu guards sends on jobs against the close in Shutdown.
	mu     sync.RWMutex
	jobs   chan removal
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

type removal struct {
	key  string
	kind Kind
}

// NewReaper starts a worker pool removing objects from store.
func NewReaper(store Store, cfg ReaperConfig, logger *slog.Logger) *Reaper {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.MaxElapsed <= 0 {
		cfg.MaxElapsed = time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &Reaper{
		store:      store,
		logger:     logger,
		maxElapsed: cfg.MaxElapsed,
		jobs:       make(chan removal, cfg.QueueSize),
		ctx:        ctx,
		cancel:     cancel,
	}

	r.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go r.worker()
	}
	return r
}

// Enqueue schedules key for removal. It blocks while the queue is full.
func (r *Reaper) Enqueue(ctx context.Context, key string, kind Kind) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-r.ctx.Done():
		return ErrReaperClosed
	default:
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-r.ctx.Done():
		return ErrReaperClosed
	case r.jobs <- removal{key: key, kind: kind}:
		return nil
	}
}

// Shutdown stops accepting work and waits for queued removals to finish.
func (r *Reaper) Shutdown(ctx context.Context) error {
	r.once.Do(func() {
		r.cancel()
		r.mu.Lock()
		close(r.jobs)
		r.mu.Unlock()
	})

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

func (r *Reaper) worker() {
	defer r.wg.Done()
	for job := range r.jobs {
		r.remove(job)
	}
}

func (r *Reaper) remove(job removal) {
	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = r.maxElapsed

	ctx, cancel := context.WithTimeout(context.Background(), r.maxElapsed)
	defer cancel()

	attempt := func() error {
		return r.store.Remove(ctx, job.key, job.kind)
	}
	notify := func(err error, wait time.Duration) {
		r.logger.Warn("media removal failed, retrying", "key", job.key, "error", err, "retry_in", wait)
	}

	err := backoff.RetryNotify(attempt, backoff.WithContext(policy, ctx), notify)
	metrics.MediaOperations.WithLabelValues("reap", string(job.kind), metrics.Outcome(err)).Inc()
	if err != nil {
		r.logger.Error("media removal abandoned", "key", job.key, "kind", string(job.kind), "error", err)
	}
}
