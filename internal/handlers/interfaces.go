package handlers

import (
	"context"

	"github.com/vidtube/backend/internal/media"
	"github.com/vidtube/backend/internal/models"
)

// UserStore captures the persistence operations required by the user handlers.
type UserStore interface {
	Create(ctx context.Context, user models.User) error
	FindByID(ctx context.Context, id string) (models.User, error)
	FindByEmail(ctx context.Context, email string) (models.User, error)
	FindByUsername(ctx context.Context, username string) (models.User, error)
}

// SessionManager issues, rotates and checks authentication tokens.
type SessionManager interface {
	Issue(ctx context.Context, userID, current string) (models.SessionTokens, error)
	Refresh(ctx context.Context, refreshToken string) (models.SessionTokens, error)
	Revoke(ctx context.Context, userID, current string) error
	Verify(accessToken string) (string, error)
}

// Toggler flips likes and subscriptions.
type Toggler interface {
	Like(ctx context.Context, callerID string, kind models.LikeTarget, targetID string) (bool, error)
	Subscription(ctx context.Context, callerID, channelID string) (bool, error)
}

// DurationProber reads the length of an uploaded video file.
type DurationProber interface {
	Duration(ctx context.Context, path string) (float64, error)
}

// MediaReaper removes media objects in the background.
type MediaReaper interface {
	Enqueue(ctx context.Context, key string, kind media.Kind) error
}
