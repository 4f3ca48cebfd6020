package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/vidtube/backend/internal/auth"
	"github.com/vidtube/backend/internal/config"
	"github.com/vidtube/backend/internal/db"
	"github.com/vidtube/backend/internal/handlers"
	"github.com/vidtube/backend/internal/media"
	"github.com/vidtube/backend/internal/middleware"
	"github.com/vidtube/backend/internal/pipelines"
	"github.com/vidtube/backend/internal/query"
	"github.com/vidtube/backend/internal/repositories"
	"github.com/vidtube/backend/internal/storage"
	"github.com/vidtube/backend/internal/store"
	"github.com/vidtube/backend/internal/toggle"
)

// memoryMediaBaseURL is the URL prefix handed out for media kept in process memory.
const memoryMediaBaseURL = "http://localhost/media"

// buildDependencies wires together concrete implementations used by the HTTP handlers. ready
// is exposed through the health check and may be nil. The returned cleanup drains background
// media removals and must run after the server stops.
func buildDependencies(ctx context.Context, pool db.Pool, cfg config.Config, logger *slog.Logger, ready func(context.Context) error) (handlers.Dependencies, func(context.Context) error, error) {
	if strings.TrimSpace(cfg.Auth.JWTSecret) == "" {
		return handlers.Dependencies{}, nil, errors.New("jwt secret is required (set VIDTUBE_AUTH_JWT_SECRET)")
	}

	objects, err := mediaStore(ctx, cfg, logger)
	if err != nil {
		return handlers.Dependencies{}, nil, err
	}
	reaper := media.NewReaper(objects, media.ReaperConfig{}, logger)

	executor := query.NewExecutor(store.NewPostgresSource(pool),
		query.WithBatchSize(cfg.Query.JoinBatchSize),
		query.WithConcurrency(cfg.Query.JoinConcurrency),
	)
	users := repositories.NewPostgresUserRepository(pool)

	deps := handlers.Dependencies{
		Users:     users,
		History:   users,
		Videos:    repositories.NewPostgresVideoRepository(pool),
		Comments:  repositories.NewPostgresCommentRepository(pool),
		Tweets:    repositories.NewPostgresTweetRepository(pool),
		Playlists: repositories.NewPostgresPlaylistRepository(pool),
		Toggles: toggle.NewService(
			repositories.NewPostgresLikeRepository(pool),
			repositories.NewPostgresSubscriptionRepository(pool),
		),
		Engine:      pipelines.NewEngine(executor, cfg.Query.MaxPageSize),
		Sessions:    auth.NewManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL, cfg.Auth.RefreshTokenTTL, users),
		Media:       objects,
		Prober:      media.NewProber(cfg.FFProbePath, cfg.FFProbeTimeout),
		Reaper:      reaper,
		AuthLimiter: middleware.NewClientLimiter(cfg.Auth.RateRequests, cfg.Auth.RateWindow, cfg.Auth.RateBurst, 10*time.Minute),
		CORSOrigins: cfg.CORSOrigins,
		Logger:      logger,
		Ready:       ready,
	}
	return deps, reaper.Shutdown, nil
}

// mediaStore returns the S3 store when a bucket is configured and an in-memory store otherwise,
// guarded by the circuit breaker either way.
func mediaStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (*media.BreakerStore, error) {
	breaker := media.BreakerConfig{
		MinRequests:  cfg.Breaker.MinRequests,
		FailureRatio: cfg.Breaker.FailureRatio,
		OpenTimeout:  cfg.Breaker.OpenTimeout,
	}

	if cfg.ObjectStore.Bucket == "" {
		logger.Warn("no object store bucket configured, keeping media in memory")
		return media.NewBreakerStore(media.NewMemoryStore(memoryMediaBaseURL), breaker), nil
	}

	s3Store, err := storage.NewS3Storage(ctx, cfg.ObjectStore)
	if err != nil {
		return nil, fmt.Errorf("configure object store: %w", err)
	}
	return media.NewBreakerStore(s3Store, breaker), nil
}
