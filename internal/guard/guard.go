// Package guard gates mutations of owned entities.
package guard

import (
	"context"
	"errors"

	"github.com/vidtube/backend/internal/apperr"
	"github.com/vidtube/backend/internal/repositories"
)

// Loader fetches an entity by id. It returns repositories.ErrNotFound when the entity is absent.
type Loader[T any] func(ctx context.Context, id string) (T, error)

// Owned is implemented by entities with a single owning user.
type Owned interface {
	Owner() string
}

// Authorize loads the entity named what and returns it only when callerID owns it. A missing
// caller is an authentication failure, a missing entity is NotFound and a different owner is an
// authorization failure.
func Authorize[T Owned](ctx context.Context, load Loader[T], id, callerID, what string) (T, error) {
	var zero T
	if callerID == "" {
		return zero, apperr.Unauthenticated("authentication required")
	}

	entity, err := load(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return zero, apperr.NotFound("%s not found", what)
		}
		return zero, apperr.Internal(err, "failed to load %s", what)
	}

	if entity.Owner() != callerID {
		return zero, apperr.Forbidden("you do not have permission to modify this %s", what)
	}
	return entity, nil
}
