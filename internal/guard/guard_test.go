package guard

import (
	"context"
	"errors"
	"testing"

	"github.com/vidtube/backend/internal/apperr"
	"github.com/vidtube/backend/internal/models"
	"github.com/vidtube/backend/internal/repositories"
)

func loaderFor(videos map[string]models.Video) Loader[models.Video] {
	return func(_ context.Context, id string) (models.Video, error) {
		v, ok := videos[id]
		if !ok {
			return models.Video{}, repositories.ErrNotFound
		}
		return v, nil
	}
}

func TestAuthorize(t *testing.T) {
	load := loaderFor(map[string]models.Video{"v1": {ID: "v1", OwnerID: "alice"}})

	tests := []struct {
		name   string
		id     string
		caller string
		kind   apperr.Kind
	}{
		{name: "owner", id: "v1", caller: "alice"},
		{name: "other user", id: "v1", caller: "bob", kind: apperr.KindAuthorization},
		{name: "anonymous", id: "v1", caller: "", kind: apperr.KindAuthentication},
		{name: "missing", id: "v2", caller: "alice", kind: apperr.KindNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			video, err := Authorize(context.Background(), load, tt.id, tt.caller, "video")
			if tt.kind == 0 {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if video.ID != tt.id {
					t.Fatalf("expected video %s, got %+v", tt.id, video)
				}
				return
			}
			if got := apperr.KindOf(err); got != tt.kind {
				t.Fatalf("expected %v, got %v (%v)", tt.kind, got, err)
			}
		})
	}
}

func TestAuthorizeWrapsStoreFailures(t *testing.T) {
	boom := errors.New("connection reset")
	load := func(context.Context, string) (models.Tweet, error) { return models.Tweet{}, boom }

	_, err := Authorize[models.Tweet](context.Background(), load, "t1", "alice", "tweet")
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped store error, got %v", err)
	}
	if apperr.MessageOf(err) == boom.Error() {
		t.Fatal("store error must not leak into the message")
	}
}
