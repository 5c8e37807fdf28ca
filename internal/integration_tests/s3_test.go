package integrationtests

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"dermai-backend/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestS3ImageStore(t *testing.T) {
	skipShort(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	minioURL := setupMinioContainer(t, ctx)

	images, err := storage.NewS3ImageStore(ctx, storage.S3ClientConfig{
		Endpoint:        minioURL,
		Region:          "us-east-1",
		AccessKeyID:     minioUsername,
		SecretAccessKey: minioPassword,
	}, "dermai-test", "uploads")
	require.NoError(t, err)

	require.NoError(t, images.Check(ctx))
	assert.Equal(t, "s3://dermai-test/uploads", images.Location())

	ref, err := images.Put(ctx, storage.StoredName("rash.jpg", time.Now()), strings.NewReader("jpeg bytes"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ref, "s3://dermai-test/uploads/"))

	exists, err := images.Exists(ctx, ref)
	require.NoError(t, err)
	assert.True(t, exists)

	rc, err := images.Open(ctx, ref)
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "jpeg bytes", string(data))

	require.NoError(t, images.Delete(ctx, ref))

	exists, err = images.Exists(ctx, ref)
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = images.Open(ctx, ref)
	assert.ErrorIs(t, err, storage.ErrImageNotFound)

	_, err = images.Open(ctx, "s3://other-bucket/x.jpg")
	assert.Error(t, err)

	// Reopening an existing bucket succeeds.
	_, err = storage.NewS3ImageStore(ctx, storage.S3ClientConfig{
		Endpoint:        minioURL,
		Region:          "us-east-1",
		AccessKeyID:     minioUsername,
		SecretAccessKey: minioPassword,
	}, "dermai-test", "")
	require.NoError(t, err)
}
