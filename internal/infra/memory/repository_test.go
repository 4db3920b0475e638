package memory

import (
	"context"
	"testing"
	"time"

	"github.com/fiapx/fiapx-video-processor/internal/domain/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVideoFileRepositoryLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := NewVideoFileRepository()

	v, err := entity.NewVideoFile("a.mp4", "1_1_a.mp4", 10, "user-1")
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, v))

	other, err := entity.NewVideoFile("b.mp4", "1_2_b.mp4", 10, "user-2")
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, other))

	found, err := repo.FindByID(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.VideoStatusPending, found.Status())

	require.NoError(t, found.MarkAsProcessing())
	require.NoError(t, repo.Update(ctx, found))

	stored, err := repo.FindByID(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.VideoStatusProcessing, stored.Status())

	mine, err := repo.FindByUserID(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, v.ID, mine[0].ID)

	all, err := repo.FindAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	require.NoError(t, repo.Delete(ctx, v.ID))
	_, err = repo.FindByID(ctx, v.ID)
	assert.ErrorIs(t, err, entity.ErrVideoFileNotFound)
}

func TestVideoFileRepositoryReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewVideoFileRepository()

	v, err := entity.NewVideoFile("a.mp4", "s", 10, "u")
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, v))

	require.NoError(t, v.MarkAsProcessing())

	stored, err := repo.FindByID(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.VideoStatusPending, stored.Status())
}

func TestVideoFileRepositoryRejectsStaleTransition(t *testing.T) {
	ctx := context.Background()
	repo := NewVideoFileRepository()

	v, err := entity.NewVideoFile("a.mp4", "s", 10, "u")
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, v))

	first, _ := repo.FindByID(ctx, v.ID)
	second, _ := repo.FindByID(ctx, v.ID)

	require.NoError(t, first.MarkAsProcessing())
	require.NoError(t, repo.Update(ctx, first))
	require.NoError(t, first.MarkAsCompleted())
	require.NoError(t, repo.Update(ctx, first))

	require.NoError(t, second.MarkAsProcessing())
	assert.ErrorIs(t, repo.Update(ctx, second), entity.ErrConcurrentModification)
}

func TestVideoFileRepositoryRejectsSecondClaim(t *testing.T) {
	ctx := context.Background()
	repo := NewVideoFileRepository()

	v, err := entity.NewVideoFile("a.mp4", "s", 10, "u")
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, v))

	first, _ := repo.FindByID(ctx, v.ID)
	second, _ := repo.FindByID(ctx, v.ID)
	require.NoError(t, first.MarkAsProcessing())
	require.NoError(t, second.MarkAsProcessing())

	require.NoError(t, repo.Update(ctx, first))
	assert.ErrorIs(t, repo.Update(ctx, second), entity.ErrConcurrentModification)

	require.NoError(t, first.MarkAsFailed("boom"))
	require.NoError(t, repo.Update(ctx, first))
	require.NoError(t, repo.Update(ctx, first))
}

func TestProcessingResultRepositoryReturnsMostRecent(t *testing.T) {
	ctx := context.Background()
	repo := NewProcessingResultRepository()

	older, err := entity.NewProcessingResult("v1", "frames_1_1.zip", []string{"frame_0001.png"})
	require.NoError(t, err)
	older.CreatedAt = time.Now().Add(-time.Hour)
	newer, err := entity.NewProcessingResult("v1", "frames_2_1.zip", []string{"frame_0001.png", "frame_0002.png"})
	require.NoError(t, err)

	require.NoError(t, repo.Save(ctx, newer))
	require.NoError(t, repo.Save(ctx, older))

	latest, err := repo.FindByVideoFileID(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, "frames_2_1.zip", latest.ZipPath)

	_, err = repo.FindByVideoFileID(ctx, "missing")
	assert.ErrorIs(t, err, entity.ErrProcessingResultNotFound)

	all, err := repo.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, newer.ID, all[0].ID)

	require.NoError(t, repo.Delete(ctx, newer.ID))
	_, err = repo.FindByID(ctx, newer.ID)
	assert.ErrorIs(t, err, entity.ErrProcessingResultNotFound)
}
