package media

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/vidtube/backend/internal/models"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestReaperRemovesQueuedObjects(t *testing.T) {
	mem := NewMemoryStore("")
	ctx := context.Background()
	video, err := mem.Store(ctx, strings.NewReader("v"), KindVideo)
	require.NoError(t, err)
	thumb, err := mem.Store(ctx, strings.NewReader("t"), KindImage)
	require.NoError(t, err)

	reaper := NewReaper(mem, ReaperConfig{QueueSize: 4, Workers: 2, MaxElapsed: time.Second}, quietLogger())
	require.NoError(t, reaper.Enqueue(ctx, video.StorageKey, KindVideo))
	require.NoError(t, reaper.Enqueue(ctx, thumb.StorageKey, KindImage))

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, reaper.Shutdown(shutdownCtx))
	assert.Zero(t, mem.Len())
}

type flakyStore struct {
	mu       sync.Mutex
	failures int
	removed  []string
}

func (f *flakyStore) Store(context.Context, io.Reader, Kind) (models.Asset, error) {
	return models.Asset{}, errors.New("not supported")
}

func (f *flakyStore) Remove(_ context.Context, key string, _ Kind) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures > 0 {
		f.failures--
		return errors.New("slow down")
	}
	f.removed = append(f.removed, key)
	return nil
}

func TestReaperRetriesTransientFailures(t *testing.T) {
	store := &flakyStore{failures: 1}
	reaper := NewReaper(store, ReaperConfig{Workers: 1, MaxElapsed: 10 * time.Second}, quietLogger())

	require.NoError(t, reaper.Enqueue(context.Background(), "videos/a", KindVideo))

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	require.NoError(t, reaper.Shutdown(ctx))

	store.mu.Lock()
	defer store.mu.Unlock()
	assert.Equal(t, []string{"videos/a"}, store.removed)
}

func TestReaperRejectsWorkAfterShutdown(t *testing.T) {
	reaper := NewReaper(NewMemoryStore(""), ReaperConfig{}, quietLogger())
	require.NoError(t, reaper.Shutdown(context.Background()))

	err := reaper.Enqueue(context.Background(), "images/x", KindImage)
	assert.ErrorIs(t, err, ErrReaperClosed)
}
