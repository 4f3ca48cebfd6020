package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/vidtube/backend/internal/logging"
	"github.com/vidtube/backend/internal/metrics"
	"github.com/vidtube/backend/internal/models"
)

// BreakerConfig tunes when the media breaker opens and how long it stays open.
type BreakerConfig struct {
	MinRequests  uint32
	FailureRatio float64
	OpenTimeout  time.Duration
	Interval     time.Duration
}

// BreakerStore guards a Store with a circuit breaker. Calls made while the breaker is open fail
// fast with ErrUnavailable instead of waiting on a store that is down.
type BreakerStore struct {
	next Store
	cb   *gobreaker.CircuitBreaker[models.Asset]
	name string
}

// NewBreakerStore wraps next. Zero config values fall back to 5 requests, a 0.6 failure ratio,
// a 30s open timeout and a 1m counting interval.
func NewBreakerStore(next Store, cfg BreakerConfig) *BreakerStore {
	if cfg.MinRequests == 0 {
		cfg.MinRequests = 5
	}
	if cfg.FailureRatio <= 0 {
		cfg.FailureRatio = 0.6
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}

	name := "media-store"
	metrics.BreakerState.WithLabelValues(name).Set(0)

	cb := gobreaker.NewCircuitBreaker[models.Asset](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    cfg.Interval,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Default().Warn("media breaker state change",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
			metrics.BreakerState.WithLabelValues(name).Set(float64(to))
		},
	})

	return &BreakerStore{next: next, cb: cb, name: name}
}

// Store implements Store.
func (b *BreakerStore) Store(ctx context.Context, r io.Reader, kind Kind) (models.Asset, error) {
	ctx, span := logging.StartSpan(ctx, "media.store")
	defer span.End()

	asset, err := b.cb.Execute(func() (models.Asset, error) {
		return b.next.Store(ctx, r, kind)
	})
	err = b.translate(err)
	metrics.MediaOperations.WithLabelValues("store", string(kind), metrics.Outcome(err)).Inc()
	span.Fail(err)
	return asset, err
}

// Remove implements Store.
func (b *BreakerStore) Remove(ctx context.Context, key string, kind Kind) error {
	ctx, span := logging.StartSpan(ctx, "media.remove")
	defer span.End()

	_, err := b.cb.Execute(func() (models.Asset, error) {
		return models.Asset{}, b.next.Remove(ctx, key, kind)
	})
	err = b.translate(err)
	metrics.MediaOperations.WithLabelValues("remove", string(kind), metrics.Outcome(err)).Inc()
	span.Fail(err)
	return err
}

// State reports the breaker's current state.
func (b *BreakerStore) State() gobreaker.State {
	return b.cb.State()
}

func (b *BreakerStore) translate(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return err
}
