package usecase

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fiapx/fiapx-video-processor/internal/domain/entity"
	"github.com/fiapx/fiapx-video-processor/internal/infra/memory"
	"github.com/fiapx/fiapx-video-processor/internal/infra/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newUpload(t *testing.T) (*UploadVideosUseCase, *memory.VideoFileRepository, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "uploads")
	log := zaptest.NewLogger(t)
	repo := memory.NewVideoFileRepository()
	uc := NewUploadVideosUseCase(repo, storage.NewLocalStorage(log), dir, log)
	uc.now = fixedNow
	return uc, repo, dir
}

func file(name, content string) UploadFile {
	return UploadFile{Name: name, Size: int64(len(content)), Content: strings.NewReader(content)}
}

func TestUploadVideosStoresPendingVideos(t *testing.T) {
	uc, repo, dir := newUpload(t)

	videos, err := uc.Execute(context.Background(), "user-1", []UploadFile{file("a.mp4", "aaa"), file("B.MOV", "bb")})
	require.NoError(t, err)
	require.Len(t, videos, 2)

	assert.Equal(t, "1714564800000_1_a.mp4", videos[0].StoredName)
	assert.Equal(t, "1714564800000_2_B.MOV", videos[1].StoredName)
	assert.Equal(t, entity.FileExtension(".mov"), videos[1].Extension)

	data, err := os.ReadFile(filepath.Join(dir, videos[0].StoredName))
	require.NoError(t, err)
	assert.Equal(t, "aaa", string(data))

	stored, err := repo.FindByUserID(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Len(t, stored, 2)
	for _, v := range stored {
		assert.Equal(t, entity.VideoStatusPending, v.Status())
	}
}

func TestUploadVideosValidatesEveryFileFirst(t *testing.T) {
	uc, repo, dir := newUpload(t)

	_, err := uc.Execute(context.Background(), "user-1", []UploadFile{file("a.mp4", "aaa"), file("notes.txt", "x")})

	assert.True(t, errors.Is(err, entity.ErrInvalidFileFormat))
	assert.NoDirExists(t, dir)
	all, _ := repo.FindAll(context.Background())
	assert.Empty(t, all)
}

func TestUploadVideosRejections(t *testing.T) {
	uc, _, _ := newUpload(t)
	ctx := context.Background()

	_, err := uc.Execute(ctx, "", []UploadFile{file("a.mp4", "a")})
	assert.ErrorIs(t, err, entity.ErrMissingUser)

	_, err = uc.Execute(ctx, "user-1", nil)
	assert.ErrorIs(t, err, entity.ErrInvalidBatch)

	four := []UploadFile{file("a.mp4", "a"), file("b.mp4", "b"), file("c.mp4", "c"), file("d.mp4", "d")}
	_, err = uc.Execute(ctx, "user-1", four)
	assert.ErrorIs(t, err, entity.ErrInvalidBatch)

	_, err = uc.Execute(ctx, "user-1", []UploadFile{{Name: "big.mp4", Size: entity.MaxFileSize + 1, Content: strings.NewReader("")}})
	assert.ErrorIs(t, err, entity.ErrFileSizeExceeded)
}
