package usecase

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/fiapx/fiapx-video-processor/internal/domain/entity"
	"github.com/fiapx/fiapx-video-processor/internal/domain/port"
	"go.uber.org/zap"
)

// UploadFile is one file received from a client.
type UploadFile struct {
	Name    string
	Size    int64
	Content io.Reader
}

type UploadVideosUseCase struct {
	videos    port.VideoFileRepository
	storage   port.FileStorage
	uploadDir string
	logger    *zap.Logger
	now       func() time.Time
}

func NewUploadVideosUseCase(videos port.VideoFileRepository, storage port.FileStorage, uploadDir string, logger *zap.Logger) *UploadVideosUseCase {
	return &UploadVideosUseCase{
		videos:    videos,
		storage:   storage,
		uploadDir: uploadDir,
		logger:    logger,
		now:       time.Now,
	}
}

// Execute validates every file before writing any of them, then stores each one and
// saves it as a PENDING video.
func (uc *UploadVideosUseCase) Execute(ctx context.Context, userID string, files []UploadFile) ([]*entity.VideoFile, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, entity.ErrMissingUser
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: at least one video file is required", entity.ErrInvalidBatch)
	}
	if len(files) > entity.MaxBatchSize {
		return nil, fmt.Errorf("%w: maximum of %d videos can be uploaded at once", entity.ErrInvalidBatch, entity.MaxBatchSize)
	}

	stamp := uc.now().UnixMilli()
	videos := make([]*entity.VideoFile, len(files))
	for i, f := range files {
		name := filepath.Base(f.Name)
		storedName := fmt.Sprintf("%d_%d_%s", stamp, i+1, name)
		video, err := entity.NewVideoFile(name, storedName, f.Size, userID)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		videos[i] = video
	}

	for i, video := range videos {
		path := video.StoragePath(uc.uploadDir)
		written, err := uc.storage.SaveFile(ctx, files[i].Content, path)
		if err != nil {
			return nil, fmt.Errorf("store %s: %w", video.OriginalName, err)
		}
		if written > entity.MaxFileSize {
			uc.storage.DeleteFile(ctx, path)
			return nil, fmt.Errorf("%s: %w", video.OriginalName, entity.ErrFileSizeExceeded)
		}
		if err := uc.videos.Save(ctx, video); err != nil {
			return nil, fmt.Errorf("save video %s: %w", video.OriginalName, err)
		}
		uc.logger.Info("video uploaded",
			zap.String("video_id", video.ID),
			zap.String("user_id", userID),
			zap.String("stored_name", video.StoredName),
			zap.String("size", video.Size.Format()),
		)
	}

	return videos, nil
}
