package assets

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storyreel/backend/internal/catalog"
	"github.com/storyreel/backend/internal/config"
	"github.com/storyreel/backend/internal/storage/blob"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	store, err := blob.New(context.Background(), config.AssetsConfig{
		Storage: "local",
		Local:   config.AssetsLocalConfig{Directory: t.TempDir()},
	})
	require.NoError(t, err)
	return NewService(store, "https://cdn.example.com/assets")
}

func TestSaveAndOpenRoundTrip(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	userID := uuid.New()
	projectID := uuid.New()

	saved, err := svc.Save(ctx, SaveParams{
		UserID:      userID,
		ProjectID:   &projectID,
		Operation:   catalog.OperationImage,
		ContentType: "image/png",
		Body:        strings.NewReader("fake-png-bytes"),
	})
	require.NoError(t, err)
	assert.Contains(t, saved.Key, "users/"+userID.String())
	assert.Contains(t, saved.Key, "projects/"+projectID.String())
	assert.Contains(t, saved.Key, "/image/")
	assert.Equal(t, int64(len("fake-png-bytes")), saved.Size)
	assert.Equal(t, "https://cdn.example.com/assets/"+saved.Key, saved.URL)

	reader, asset, err := svc.Open(ctx, saved.Key)
	require.NoError(t, err)
	defer reader.Close()
	body, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, "fake-png-bytes", string(body))
	assert.Equal(t, "image/png", asset.ContentType)
}

func TestSaveWithoutProjectUsesUnassignedScope(t *testing.T) {
	svc := newTestService(t)

	saved, err := svc.Save(context.Background(), SaveParams{
		UserID:      uuid.New(),
		Operation:   catalog.OperationVoiceover,
		ContentType: "audio/mpeg",
		Body:        strings.NewReader("mp3"),
	})
	require.NoError(t, err)
	assert.Contains(t, saved.Key, "projects/unassigned/")
}

func TestDeleteRemovesAsset(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	saved, err := svc.Save(ctx, SaveParams{
		UserID:      uuid.New(),
		Operation:   catalog.OperationMusic,
		ContentType: "audio/wav",
		Body:        strings.NewReader("wav"),
	})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, saved.Key))
	_, _, err = svc.Open(ctx, saved.Key)
	assert.ErrorIs(t, err, blob.ErrNotFound)
}
