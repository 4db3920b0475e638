package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/fiapx/fiapx-video-processor/internal/domain/entity"
	"github.com/fiapx/fiapx-video-processor/internal/domain/port"
	"go.uber.org/zap"
)

type VideoStatusView struct {
	VideoID      string
	Status       entity.VideoStatus
	ErrorMessage string
	UpdatedAt    time.Time
	Cached       bool
}

// GetVideoStatusUseCase answers status lookups from the cache and falls back to the repository.
type GetVideoStatusUseCase struct {
	videos port.VideoFileRepository
	cache  port.StatusCache
	logger *zap.Logger
	now    func() time.Time
}

// NewGetVideoStatusUseCase accepts a nil cache.
func NewGetVideoStatusUseCase(videos port.VideoFileRepository, cache port.StatusCache, logger *zap.Logger) *GetVideoStatusUseCase {
	return &GetVideoStatusUseCase{videos: videos, cache: cache, logger: logger, now: time.Now}
}

func (uc *GetVideoStatusUseCase) Execute(ctx context.Context, videoID string) (VideoStatusView, error) {
	log := uc.logger.With(zap.String("video_id", videoID))

	if uc.cache != nil {
		cached, err := uc.cache.GetStatus(ctx, videoID)
		if err != nil {
			log.Warn("status cache lookup failed", zap.Error(err))
		}
		if cached != nil {
			return VideoStatusView{
				VideoID:      cached.VideoID,
				Status:       cached.Status,
				ErrorMessage: cached.ErrorMessage,
				UpdatedAt:    cached.UpdatedAt,
				Cached:       true,
			}, nil
		}
	}

	video, err := uc.videos.FindByID(ctx, videoID)
	if err != nil {
		return VideoStatusView{}, err
	}

	updatedAt := video.UploadedAt
	if t := video.ProcessedAt(); t != nil {
		updatedAt = *t
	}
	view := VideoStatusView{
		VideoID:      video.ID,
		Status:       video.Status(),
		ErrorMessage: video.ErrorMessage(),
		UpdatedAt:    updatedAt,
	}

	if uc.cache != nil {
		err := uc.cache.SetStatus(ctx, port.CachedStatus{
			VideoID:      view.VideoID,
			Status:       view.Status,
			ErrorMessage: view.ErrorMessage,
			UpdatedAt:    view.UpdatedAt,
		})
		if err != nil {
			log.Warn("failed to refresh status cache", zap.Error(err))
		}
	}
	return view, nil
}

type UserVideo struct {
	Video  *entity.VideoFile
	Result *entity.ProcessingResult
}

type ListUserVideosUseCase struct {
	videos  port.VideoFileRepository
	results port.ProcessingResultRepository
}

func NewListUserVideosUseCase(videos port.VideoFileRepository, results port.ProcessingResultRepository) *ListUserVideosUseCase {
	return &ListUserVideosUseCase{videos: videos, results: results}
}

func (uc *ListUserVideosUseCase) Execute(ctx context.Context, userID string) ([]UserVideo, error) {
	if userID == "" {
		return nil, entity.ErrMissingUser
	}

	videos, err := uc.videos.FindByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list videos for %s: %w", userID, err)
	}

	out := make([]UserVideo, 0, len(videos))
	for _, video := range videos {
		result, err := uc.results.FindByVideoFileID(ctx, video.ID)
		switch {
		case errors.Is(err, entity.ErrProcessingResultNotFound):
			result = nil
		case err != nil:
			return nil, fmt.Errorf("find result for %s: %w", video.ID, err)
		}
		out = append(out, UserVideo{Video: video, Result: result})
	}
	return out, nil
}

type ProcessedFile struct {
	Filename    string
	Size        int64
	CreatedAt   time.Time
	DownloadURL string
	FrameCount  int
}

// GetProcessingStatusUseCase lists the zip archives that are still on disk, newest first.
type GetProcessingStatusUseCase struct {
	results       port.ProcessingResultRepository
	storage       port.FileStorage
	outputDir     string
	publicBaseURL string
}

func NewGetProcessingStatusUseCase(results port.ProcessingResultRepository, storage port.FileStorage, outputDir, publicBaseURL string) *GetProcessingStatusUseCase {
	return &GetProcessingStatusUseCase{results: results, storage: storage, outputDir: outputDir, publicBaseURL: publicBaseURL}
}

func (uc *GetProcessingStatusUseCase) Execute(ctx context.Context) ([]ProcessedFile, error) {
	results, err := uc.results.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list processing results: %w", err)
	}

	files := make([]ProcessedFile, 0, len(results))
	for _, r := range results {
		path := filepath.Join(uc.outputDir, r.ZipPath)
		if !uc.storage.FileExists(ctx, path) {
			continue
		}
		size, err := uc.storage.FileSize(ctx, path)
		if err != nil {
			continue
		}
		files = append(files, ProcessedFile{
			Filename:    r.ZipPath,
			Size:        size,
			CreatedAt:   r.CreatedAt,
			DownloadURL: DownloadURL(uc.publicBaseURL, r.ZipPath),
			FrameCount:  r.FrameCount,
		})
	}
	return files, nil
}

// Download is either a local file (Path) or a stream from object storage (Remote).
// Callers must close Remote when it is set.
type Download struct {
	Path     string
	Filename string
	Size     int64
	Remote   io.ReadCloser
}

type DownloadResultUseCase struct {
	results   port.ProcessingResultRepository
	storage   port.FileStorage
	artifacts port.ArtifactStore
	outputDir string
}

func NewDownloadResultUseCase(results port.ProcessingResultRepository, storage port.FileStorage, outputDir string) *DownloadResultUseCase {
	return &DownloadResultUseCase{results: results, storage: storage, outputDir: outputDir}
}

// WithArtifactStore serves zips from object storage when the local copy is gone.
func (uc *DownloadResultUseCase) WithArtifactStore(store port.ArtifactStore) *DownloadResultUseCase {
	uc.artifacts = store
	return uc
}

// Execute resolves filename to a zip. Unknown names and missing files both
// report ErrProcessingResultNotFound.
func (uc *DownloadResultUseCase) Execute(ctx context.Context, filename string) (Download, error) {
	name := filepath.Base(filename)
	if name != filename || name == "." || name == "/" {
		return Download{}, entity.ProcessingResultNotFound(filename)
	}

	results, err := uc.results.FindAll(ctx)
	if err != nil {
		return Download{}, fmt.Errorf("list processing results: %w", err)
	}

	for _, r := range results {
		if r.ZipPath != name {
			continue
		}
		path, err := filepath.Abs(filepath.Join(uc.outputDir, name))
		if err != nil {
			return Download{}, fmt.Errorf("resolve %s: %w", name, err)
		}
		if !uc.storage.FileExists(ctx, path) {
			return uc.remote(ctx, name)
		}
		size, err := uc.storage.FileSize(ctx, path)
		if err != nil {
			return Download{}, err
		}
		return Download{Path: path, Filename: name, Size: size}, nil
	}
	return Download{}, entity.ProcessingResultNotFound(name)
}

func (uc *DownloadResultUseCase) remote(ctx context.Context, name string) (Download, error) {
	if uc.artifacts == nil {
		return Download{}, entity.ProcessingResultNotFound(name)
	}
	rc, err := uc.artifacts.OpenZip(ctx, name)
	if err != nil {
		return Download{}, fmt.Errorf("%w: %w", entity.ProcessingResultNotFound(name), err)
	}
	return Download{Filename: name, Remote: rc}, nil
}
