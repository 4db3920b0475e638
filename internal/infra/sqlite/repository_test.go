package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/fiapx/fiapx-video-processor/internal/domain/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) (*VideoFileRepository, *ProcessingResultRepository) {
	t.Helper()
	db, err := Open("sqlite:" + filepath.Join(t.TempDir(), "videos.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewVideoFileRepository(db), NewProcessingResultRepository(db)
}

func TestNormalizeDSN(t *testing.T) {
	assert.Equal(t, "file:./data.db?_pragma=busy_timeout(5000)", normalizeDSN("sqlite:./data.db"))
	assert.Equal(t, "file:/tmp/x.db?mode=rwc", normalizeDSN("file:/tmp/x.db?mode=rwc"))
	assert.Equal(t, "file:./videos.db?_pragma=busy_timeout(5000)", normalizeDSN(""))
}

func TestVideoFileRepository(t *testing.T) {
	ctx := context.Background()
	videos, _ := openTestDB(t)

	v, err := entity.NewVideoFile("a.mkv", "1_1_a.mkv", 500, "user-1")
	require.NoError(t, err)
	require.NoError(t, videos.Save(ctx, v))

	loaded, err := videos.FindByID(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, v.OriginalName, loaded.OriginalName)
	assert.Equal(t, v.UploadedAt.UnixNano(), loaded.UploadedAt.UnixNano())
	assert.Nil(t, loaded.ProcessedAt())

	rival, err := videos.FindByID(ctx, v.ID)
	require.NoError(t, err)

	require.NoError(t, loaded.MarkAsProcessing())
	require.NoError(t, videos.Update(ctx, loaded))
	require.NoError(t, rival.MarkAsProcessing())
	assert.ErrorIs(t, videos.Update(ctx, rival), entity.ErrConcurrentModification)
	require.NoError(t, loaded.MarkAsCompleted())
	require.NoError(t, videos.Update(ctx, loaded))
	require.NoError(t, videos.Update(ctx, loaded))

	done, err := videos.FindByID(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.VideoStatusCompleted, done.Status())
	require.NotNil(t, done.ProcessedAt())

	stale := entity.RestoreVideoFile(v.ID, v.OriginalName, v.StoredName, ".mkv", 500, v.UploadedAt, "user-1",
		entity.VideoStatusPending, nil, "")
	require.NoError(t, stale.MarkAsProcessing())
	assert.ErrorIs(t, videos.Update(ctx, stale), entity.ErrConcurrentModification)

	_, err = videos.FindByID(ctx, "nope")
	assert.ErrorIs(t, err, entity.ErrVideoFileNotFound)

	list, err := videos.FindByUserID(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestProcessingResultRepository(t *testing.T) {
	ctx := context.Background()
	videos, results := openTestDB(t)

	v, err := entity.NewVideoFile("a.mp4", "s", 1, "u")
	require.NoError(t, err)
	require.NoError(t, videos.Save(ctx, v))

	older, err := entity.NewProcessingResult(v.ID, "frames_1_1.zip", []string{"frame_0001.png"})
	require.NoError(t, err)
	older.CreatedAt = time.Now().Add(-time.Minute)
	newer, err := entity.NewProcessingResult(v.ID, "frames_2_1.zip", []string{"frame_0001.png", "frame_0002.png"})
	require.NoError(t, err)

	require.NoError(t, results.Save(ctx, older))
	require.NoError(t, results.Save(ctx, newer))

	latest, err := results.FindByVideoFileID(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, newer.ID, latest.ID)
	assert.Equal(t, newer.FrameNames, latest.FrameNames)

	all, err := results.FindAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	require.NoError(t, results.Delete(ctx, older.ID))
	_, err = results.FindByID(ctx, older.ID)
	assert.ErrorIs(t, err, entity.ErrProcessingResultNotFound)
}
