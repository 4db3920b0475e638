package usecase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/fiapx/fiapx-video-processor/internal/domain/entity"
	"github.com/fiapx/fiapx-video-processor/internal/domain/port"
	"github.com/fiapx/fiapx-video-processor/internal/infra/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ProcessedVideo pairs a completed video with the result produced for it.
type ProcessedVideo struct {
	Video  *entity.VideoFile
	Result *entity.ProcessingResult
}

type ProcessVideosConfig struct {
	UploadDir     string
	OutputDir     string
	TempDir       string
	PublicBaseURL string
}

type ProcessVideosUseCase struct {
	videos    port.VideoFileRepository
	results   port.ProcessingResultRepository
	storage   port.FileStorage
	extractor port.FrameExtractor
	notifier  port.Notifier
	cache     port.StatusCache
	artifacts port.ArtifactStore
	logger    *zap.Logger
	cfg       ProcessVideosConfig
	now       func() time.Time
}

func NewProcessVideosUseCase(
	videos port.VideoFileRepository,
	results port.ProcessingResultRepository,
	storage port.FileStorage,
	extractor port.FrameExtractor,
	notifier port.Notifier,
	logger *zap.Logger,
	cfg ProcessVideosConfig,
) *ProcessVideosUseCase {
	return &ProcessVideosUseCase{
		videos:    videos,
		results:   results,
		storage:   storage,
		extractor: extractor,
		notifier:  notifier,
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
	}
}

// WithStatusCache publishes every status change to cache.
func (uc *ProcessVideosUseCase) WithStatusCache(cache port.StatusCache) *ProcessVideosUseCase {
	uc.cache = cache
	return uc
}

// WithArtifactStore mirrors each zip to object storage after it is written.
func (uc *ProcessVideosUseCase) WithArtifactStore(store port.ArtifactStore) *ProcessVideosUseCase {
	uc.artifacts = store
	return uc
}

// DownloadURL is the public link for a zip produced by the pipeline.
func DownloadURL(baseURL, zipFileName string) string {
	return strings.TrimRight(baseURL, "/") + "/api/v1/videos/download/" + zipFileName
}

func ValidateBatch(ids []string) error {
	if len(ids) == 0 {
		return fmt.Errorf("%w: at least one video file id is required", entity.ErrInvalidBatch)
	}
	if len(ids) > entity.MaxBatchSize {
		return fmt.Errorf("%w: maximum of %d videos can be processed simultaneously", entity.ErrInvalidBatch, entity.MaxBatchSize)
	}
	return nil
}

// Execute processes a batch of up to three videos concurrently. Either every video ends
// COMPLETED or every video still in flight ends FAILED.
func (uc *ProcessVideosUseCase) Execute(ctx context.Context, ids []string) ([]ProcessedVideo, error) {
	if err := ValidateBatch(ids); err != nil {
		return nil, err
	}

	tracer := otel.Tracer("usecase")
	ctx, span := tracer.Start(ctx, "ProcessVideosUseCase.Execute",
		trace.WithAttributes(attribute.StringSlice("video.ids", ids)),
	)
	defer span.End()

	log := uc.logger.With(zap.Strings("video_ids", ids))
	totalTimer := time.Now()

	videos := make([]*entity.VideoFile, 0, len(ids))
	for _, id := range ids {
		video, err := uc.videos.FindByID(ctx, id)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		videos = append(videos, video)
	}

	// Only videos whose PROCESSING state was persisted belong to this batch; another
	// consumer may own the rest.
	claimed := make([]*entity.VideoFile, 0, len(videos))
	for _, video := range videos {
		if err := video.MarkAsProcessing(); err != nil {
			return nil, uc.fail(ctx, claimed, fmt.Errorf("video %s: %w", video.ID, err), log)
		}
		if err := uc.videos.Update(ctx, video); err != nil {
			return nil, uc.fail(ctx, claimed, fmt.Errorf("update video %s: %w", video.ID, err), log)
		}
		claimed = append(claimed, video)
		uc.cacheStatus(ctx, video, log)
	}

	metrics.ActiveBatches.Inc()
	defer metrics.ActiveBatches.Dec()

	stamp := uc.now().UnixMilli()
	results := make([]*entity.ProcessingResult, len(videos))

	// Siblings are not cancelled when one video fails; the batch waits for all of them.
	var g errgroup.Group
	for i, video := range videos {
		g.Go(func() error {
			result, err := uc.processOne(ctx, video, stamp, i+1, log)
			if err != nil {
				return err
			}
			results[i] = result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, uc.fail(ctx, videos, err, log)
	}

	processed := make([]ProcessedVideo, 0, len(videos))
	for i, video := range videos {
		if err := video.MarkAsCompleted(); err != nil {
			return nil, uc.fail(ctx, videos, fmt.Errorf("video %s: %w", video.ID, err), log)
		}
		if err := uc.videos.Update(ctx, video); err != nil {
			return nil, uc.fail(ctx, videos, fmt.Errorf("update video %s: %w", video.ID, err), log)
		}
		uc.cacheStatus(ctx, video, log)
		metrics.VideosProcessedTotal.WithLabelValues(string(entity.VideoStatusCompleted)).Inc()

		result := results[i]
		uc.notifier.NotifySuccess(ctx, port.SuccessNotification{
			VideoID:      video.ID,
			UserID:       video.UserID,
			OriginalName: video.OriginalName,
			DownloadURL:  DownloadURL(uc.cfg.PublicBaseURL, result.ZipPath),
			FrameCount:   result.FrameCount,
			ZipFileName:  result.ZipPath,
			ProcessedAt:  processedAt(video, uc.now),
		})

		processed = append(processed, ProcessedVideo{Video: video, Result: result})
	}

	metrics.ProcessingDuration.WithLabelValues("total").Observe(time.Since(totalTimer).Seconds())
	log.Info("batch processed", zap.Int("videos", len(processed)), zap.Duration("elapsed", time.Since(totalTimer)))

	return processed, nil
}

func (uc *ProcessVideosUseCase) processOne(ctx context.Context, video *entity.VideoFile, stamp int64, seq int, log *zap.Logger) (*entity.ProcessingResult, error) {
	tracer := otel.Tracer("usecase")
	log = log.With(zap.String("video_id", video.ID), zap.String("original_name", video.OriginalName))
	suffix := strconv.FormatInt(stamp, 10) + "_" + strconv.Itoa(seq)

	exStart := time.Now()
	videoAttr := trace.WithAttributes(attribute.String("video.id", video.ID))
	exCtx, spanEx := tracer.Start(ctx, "extract_frames", videoAttr)
	framesDir := filepath.Join(uc.cfg.TempDir, suffix)
	frames, err := uc.extractor.ExtractFrames(exCtx, video.StoragePath(uc.cfg.UploadDir), framesDir)
	spanEx.End()
	if err != nil {
		uc.storage.DeleteDir(ctx, framesDir)
		log.Error("frame extraction failed", zap.Error(err))
		return nil, fmt.Errorf("extract frames from %s: %w", video.OriginalName, err)
	}
	if len(frames) == 0 {
		uc.storage.DeleteDir(ctx, framesDir)
		return nil, fmt.Errorf("no frames were extracted from video: %s", video.OriginalName)
	}
	metrics.ProcessingDuration.WithLabelValues("extract").Observe(time.Since(exStart).Seconds())
	metrics.FramesExtractedTotal.Add(float64(len(frames)))

	zipStart := time.Now()
	zipCtx, spanZip := tracer.Start(ctx, "create_zip", videoAttr)
	zipName := "frames_" + suffix + ".zip"
	zipPath := filepath.Join(uc.cfg.OutputDir, zipName)
	err = uc.storage.CreateZip(zipCtx, frames, zipPath)
	spanZip.End()
	if err != nil {
		uc.storage.DeleteDir(ctx, framesDir)
		log.Error("zip creation failed", zap.Error(err))
		return nil, fmt.Errorf("create zip for %s: %w", video.OriginalName, err)
	}
	metrics.ProcessingDuration.WithLabelValues("zip").Observe(time.Since(zipStart).Seconds())

	if uc.artifacts != nil {
		uc.mirror(ctx, zipPath, zipName, log)
	}

	for _, frame := range frames {
		uc.storage.DeleteFile(ctx, frame)
	}
	uc.storage.DeleteDir(ctx, framesDir)
	uc.storage.DeleteFile(ctx, video.StoragePath(uc.cfg.UploadDir))

	frameNames := make([]string, len(frames))
	for i, frame := range frames {
		frameNames[i] = filepath.Base(frame)
	}

	result, err := entity.NewProcessingResult(video.ID, zipName, frameNames)
	if err != nil {
		return nil, fmt.Errorf("build result for %s: %w", video.OriginalName, err)
	}
	if err := uc.results.Save(ctx, result); err != nil {
		log.Error("failed to save processing result", zap.Error(err))
		return nil, fmt.Errorf("save result for %s: %w", video.OriginalName, err)
	}

	log.Info("video processed", zap.Int("frame_count", result.FrameCount), zap.String("zip", zipName))
	return result, nil
}

// mirror copies the zip to object storage. The local copy stays authoritative, so failures are only logged.
func (uc *ProcessVideosUseCase) mirror(ctx context.Context, zipPath, key string, log *zap.Logger) {
	upStart := time.Now()
	ctx, span := otel.Tracer("usecase").Start(ctx, "upload_zip")
	defer span.End()

	f, err := os.Open(zipPath)
	if err != nil {
		log.Warn("failed to open zip for upload", zap.Error(err))
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		log.Warn("failed to stat zip for upload", zap.Error(err))
		return
	}
	if err := uc.artifacts.UploadZip(ctx, key, f, info.Size()); err != nil {
		log.Warn("failed to mirror zip to object storage", zap.Error(err))
		return
	}
	metrics.ProcessingDuration.WithLabelValues("upload").Observe(time.Since(upStart).Seconds())
}

// fail marks every video still PROCESSING as FAILED and returns the batch error.
func (uc *ProcessVideosUseCase) fail(ctx context.Context, videos []*entity.VideoFile, cause error, log *zap.Logger) error {
	msg := cause.Error()
	for _, video := range videos {
		if !video.IsProcessing() {
			continue
		}
		if err := video.MarkAsFailed(msg); err != nil {
			log.Error("failed to mark video as failed", zap.String("video_id", video.ID), zap.Error(err))
			continue
		}
		if err := uc.videos.Update(ctx, video); err != nil {
			log.Error("failed to persist failed video", zap.String("video_id", video.ID), zap.Error(err))
		}
		uc.cacheStatus(ctx, video, log)
		metrics.VideosProcessedTotal.WithLabelValues(string(entity.VideoStatusFailed)).Inc()

		uc.notifier.NotifyFailure(ctx, port.FailureNotification{
			VideoID:      video.ID,
			UserID:       video.UserID,
			OriginalName: video.OriginalName,
			ErrorMessage: msg,
			ProcessedAt:  processedAt(video, uc.now),
		})
	}

	log.Error("batch processing failed", zap.Error(cause))
	if errors.Is(cause, entity.ErrVideoProcessing) {
		return cause
	}
	return fmt.Errorf("%w: %w", entity.ErrVideoProcessing, cause)
}

func (uc *ProcessVideosUseCase) cacheStatus(ctx context.Context, video *entity.VideoFile, log *zap.Logger) {
	if uc.cache == nil {
		return
	}
	err := uc.cache.SetStatus(ctx, port.CachedStatus{
		VideoID:      video.ID,
		Status:       video.Status(),
		ErrorMessage: video.ErrorMessage(),
		UpdatedAt:    uc.now(),
	})
	if err != nil {
		log.Warn("failed to cache video status", zap.String("video_id", video.ID), zap.Error(err))
	}
}

func processedAt(video *entity.VideoFile, now func() time.Time) time.Time {
	if t := video.ProcessedAt(); t != nil {
		return *t
	}
	return now()
}
