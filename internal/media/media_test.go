package media

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vidtube/backend/internal/models"
)

func TestProberDuration(t *testing.T) {
	prober := NewProber("ffprobe", time.Second)
	prober.Run = func(ctx context.Context, binary string, args ...string) ([]byte, error) {
		want := []string{"-v", "error", "-show_entries", "format=duration", "-of", "json", "/tmp/clip.mp4"}
		assert.Equal(t, "ffprobe", binary)
		assert.Equal(t, want, args)
		return []byte(`{"format":{"duration":"12.480000"}}`), nil
	}

	seconds, err := prober.Duration(context.Background(), "/tmp/clip.mp4")
	require.NoError(t, err)
	assert.InDelta(t, 12.48, seconds, 1e-9)
}

func TestProberRejectsMissingDuration(t *testing.T) {
	prober := NewProber("", time.Second)
	prober.Run = func(context.Context, string, ...string) ([]byte, error) {
		return []byte(`{"format":{}}`), nil
	}

	_, err := prober.Duration(context.Background(), "clip.mp4")
	assert.Error(t, err)
}

func TestProberPropagatesCommandFailure(t *testing.T) {
	boom := errors.New("exit status 1")
	prober := NewProber("", time.Second)
	prober.Run = func(context.Context, string, ...string) ([]byte, error) { return nil, boom }

	_, err := prober.Duration(context.Background(), "clip.mp4")
	assert.ErrorIs(t, err, boom)
}

func TestSpool(t *testing.T) {
	f, cleanup, err := Spool(strings.NewReader("frames"))
	require.NoError(t, err)
	defer cleanup()

	data, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "frames", string(data))

	_, _, err = Spool(strings.NewReader(""))
	assert.ErrorIs(t, err, ErrEmptyUpload)
}

func TestUploadsCompensateRemovesStoredAssets(t *testing.T) {
	store := NewMemoryStore("http://media.test")
	uploads := NewUploads(store)
	ctx := context.Background()

	video, err := uploads.Store(ctx, strings.NewReader("video"), KindVideo)
	require.NoError(t, err)
	thumb, err := uploads.Store(ctx, strings.NewReader("thumb"), KindImage)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(video.StorageKey, "videos/"))
	assert.True(t, strings.HasPrefix(thumb.StorageKey, "images/"))
	assert.Equal(t, "http://media.test/"+video.StorageKey, video.URL)
	assert.Equal(t, 2, store.Len())

	uploads.Compensate(ctx)
	assert.Zero(t, store.Len())
	assert.Empty(t, uploads.Keys())
}

type failingStore struct {
	calls int
}

func (f *failingStore) Store(context.Context, io.Reader, Kind) (models.Asset, error) {
	f.calls++
	return models.Asset{}, errors.New("connection refused")
}

func (f *failingStore) Remove(context.Context, string, Kind) error {
	f.calls++
	return errors.New("connection refused")
}

func TestBreakerOpensAfterRepeatedFailures(t *testing.T) {
	next := &failingStore{}
	store := NewBreakerStore(next, BreakerConfig{MinRequests: 3, FailureRatio: 0.5, OpenTimeout: time.Minute})
	ctx := context.Background()

	for range 3 {
		_, err := store.Store(ctx, strings.NewReader("x"), KindImage)
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrUnavailable)
	}
	assert.Equal(t, gobreaker.StateOpen, store.State())

	_, err := store.Store(ctx, strings.NewReader("x"), KindImage)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, store.Remove(ctx, "images/x", KindImage), ErrUnavailable)
	assert.Equal(t, 3, next.calls)
}

func TestBreakerPassesThroughSuccess(t *testing.T) {
	mem := NewMemoryStore("")
	store := NewBreakerStore(mem, BreakerConfig{})

	asset, err := store.Store(context.Background(), strings.NewReader("x"), KindVideo)
	require.NoError(t, err)
	assert.True(t, mem.Has(asset.StorageKey))

	require.NoError(t, store.Remove(context.Background(), asset.StorageKey, KindVideo))
	assert.False(t, mem.Has(asset.StorageKey))
}
