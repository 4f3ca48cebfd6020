// Package toggle flips likes and subscriptions on and off.
//
// Each toggle first tries to create the record and falls back to deleting it when the store
// reports a uniqueness conflict, so the unique constraint in the database decides the outcome
// when two requests race.
package toggle

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/vidtube/backend/internal/apperr"
	"github.com/vidtube/backend/internal/models"
	"github.com/vidtube/backend/internal/repositories"
)

// Service toggles likes and subscriptions for the calling user.
type Service struct {
	likes         repositories.LikeRepository
	subscriptions repositories.SubscriptionRepository
	now           func() time.Time
	newID         func() string
}

// Option customises a Service.
type Option func(*Service)

// WithClock overrides the clock used to stamp new records.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService constructs a toggle service over the like and subscription repositories.
func NewService(likes repositories.LikeRepository, subscriptions repositories.SubscriptionRepository, opts ...Option) *Service {
	s := &Service{
		likes:         likes,
		subscriptions: subscriptions,
		now:           func() time.Time { return time.Now().UTC() },
		newID:         func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Like toggles the caller's like on the target and reports whether the target is liked afterwards.
func (s *Service) Like(ctx context.Context, callerID string, kind models.LikeTarget, targetID string) (bool, error) {
	if callerID == "" {
		return false, apperr.Unauthenticated("authentication required")
	}
	if !kind.Valid() {
		return false, apperr.Validation("unknown like target %q", kind)
	}
	if _, err := uuid.Parse(targetID); err != nil {
		return false, apperr.Validation("invalid %s id", kind)
	}

	now := s.now()
	err := s.likes.Create(ctx, models.Like{
		ID:         s.newID(),
		LikedBy:    callerID,
		TargetKind: kind,
		TargetID:   targetID,
		CreatedAt:  now,
		UpdatedAt:  now,
	})
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, repositories.ErrConflict):
	default:
		return false, apperr.Internal(err, "failed to toggle like")
	}

	if _, err := s.likes.Delete(ctx, callerID, kind, targetID); err != nil {
		return false, apperr.Internal(err, "failed to toggle like")
	}
	return false, nil
}

// Subscription toggles the caller's subscription to channelID and reports whether the caller is
// subscribed afterwards. Subscribing to one's own channel is rejected.
func (s *Service) Subscription(ctx context.Context, callerID, channelID string) (bool, error) {
	if callerID == "" {
		return false, apperr.Unauthenticated("authentication required")
	}
	if callerID == channelID {
		return false, apperr.Validation("you cannot subscribe to your own channel")
	}
	if _, err := uuid.Parse(channelID); err != nil {
		return false, apperr.Validation("invalid channel id")
	}

	now := s.now()
	err := s.subscriptions.Create(ctx, models.Subscription{
		ID:           s.newID(),
		SubscriberID: callerID,
		ChannelID:    channelID,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, repositories.ErrNotFound):
		return false, apperr.NotFound("channel not found")
	case errors.Is(err, repositories.ErrConstraint):
		return false, apperr.Validation("you cannot subscribe to your own channel")
	case errors.Is(err, repositories.ErrConflict):
	default:
		return false, apperr.Internal(err, "failed to toggle subscription")
	}

	if _, err := s.subscriptions.Delete(ctx, callerID, channelID); err != nil {
		return false, apperr.Internal(err, "failed to toggle subscription")
	}
	return false, nil
}
