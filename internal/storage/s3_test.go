package storage

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vidtube/backend/internal/media"
)

type fakeBucket struct {
	objects map[string]string
}

func (b *fakeBucket) Upload(_ context.Context, input *s3.PutObjectInput, _ ...func(*manager.Uploader)) (*manager.UploadOutput, error) {
	data, err := io.ReadAll(input.Body)
	if err != nil {
		return nil, err
	}
	b.objects[aws.ToString(input.Key)] = string(data)
	return &manager.UploadOutput{}, nil
}

func (b *fakeBucket) DeleteObject(_ context.Context, input *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	delete(b.objects, aws.ToString(input.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func TestS3StorageStoreAndRemove(t *testing.T) {
	bucket := &fakeBucket{objects: map[string]string{}}
	store := NewS3StorageWithClients(bucket, bucket, "vidtube", "https://cdn.example.com/")
	ctx := context.Background()

	asset, err := store.Store(ctx, strings.NewReader("mp4 bytes"), media.KindVideo)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(asset.StorageKey, "videos/"))
	assert.Equal(t, "https://cdn.example.com/"+asset.StorageKey, asset.URL)
	assert.Equal(t, "mp4 bytes", bucket.objects[asset.StorageKey])

	require.NoError(t, store.Remove(ctx, asset.StorageKey, media.KindVideo))
	assert.Empty(t, bucket.objects)
}

func TestS3StorageRemoveChecksKind(t *testing.T) {
	bucket := &fakeBucket{objects: map[string]string{"videos/a": "x"}}
	store := NewS3StorageWithClients(bucket, bucket, "vidtube", "")

	assert.Error(t, store.Remove(context.Background(), "videos/a", media.KindImage))
	assert.Error(t, store.Remove(context.Background(), "", media.KindVideo))
	assert.Len(t, bucket.objects, 1)
}
