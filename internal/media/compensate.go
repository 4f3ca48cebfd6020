package media

import (
	"context"
	"io"
	"log/slog"

	"github.com/vidtube/backend/internal/logging"
	"github.com/vidtube/backend/internal/models"
)

// Uploads records the assets stored while handling one request so they can be removed again
// when a later step fails. It is not safe for concurrent use.
type Uploads struct {
	store  Store
	stored []stored
}

type stored struct {
	key  string
	kind Kind
}

// NewUploads starts an empty set of uploads against store.
func NewUploads(store Store) *Uploads {
	return &Uploads{store: store}
}

// Store uploads r and remembers the resulting asset.
func (u *Uploads) Store(ctx context.Context, r io.Reader, kind Kind) (models.Asset, error) {
	asset, err := u.store.Store(ctx, r, kind)
	if err != nil {
		return models.Asset{}, err
	}
	u.stored = append(u.stored, stored{key: asset.StorageKey, kind: kind})
	return asset, nil
}

// Compensate removes every asset stored so far. Removal failures are logged, the objects are
// left orphaned and the remaining removals still run.
func (u *Uploads) Compensate(ctx context.Context) {
	logger := logging.FromContext(ctx)
	for i := len(u.stored) - 1; i >= 0; i-- {
		s := u.stored[i]
		if err := u.store.Remove(context.WithoutCancel(ctx), s.key, s.kind); err != nil {
			logger.Error("compensating media removal failed",
				slog.String("key", s.key),
				slog.String("kind", string(s.kind)),
				slog.Any("error", err),
			)
		}
	}
	u.stored = nil
}

// Keys returns the storage keys recorded so far.
func (u *Uploads) Keys() []string {
	keys := make([]string, 0, len(u.stored))
	for _, s := range u.stored {
		keys = append(keys, s.key)
	}
	return keys
}
