package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/fiapx/fiapx-video-processor/internal/domain/entity"
	"github.com/fiapx/fiapx-video-processor/internal/domain/port"
	"go.uber.org/zap"
)

type EnqueueResult struct {
	Queued        bool
	QueuePosition *int
}

// EnqueueVideosUseCase publishes a batch of PENDING videos to the processing queue.
type EnqueueVideosUseCase struct {
	queue  port.MessageQueue
	logger *zap.Logger
	now    func() time.Time
}

func NewEnqueueVideosUseCase(queue port.MessageQueue, logger *zap.Logger) *EnqueueVideosUseCase {
	return &EnqueueVideosUseCase{queue: queue, logger: logger, now: time.Now}
}

func (uc *EnqueueVideosUseCase) Execute(ctx context.Context, ids []string, priority int) (EnqueueResult, error) {
	if err := ValidateBatch(ids); err != nil {
		return EnqueueResult{}, err
	}
	if priority <= 0 {
		priority = entity.DefaultPriority
	}

	maxRetries := entity.DefaultMaxRetries
	msg := entity.ProcessingMessage{
		VideoFileIDs: ids,
		Priority:     priority,
		Timestamp:    uc.now(),
		MaxRetries:   &maxRetries,
	}

	log := uc.logger.With(zap.Strings("video_ids", ids))

	ok, err := uc.queue.Publish(ctx, entity.ProcessingQueue, msg)
	if err != nil {
		return EnqueueResult{}, fmt.Errorf("enqueue videos: %w", err)
	}
	if !ok {
		log.Warn("broker refused processing message")
		return EnqueueResult{Queued: false}, nil
	}

	stats, err := uc.queue.Stats(ctx, entity.ProcessingQueue)
	if err != nil {
		log.Warn("failed to read queue position", zap.Error(err))
		return EnqueueResult{Queued: true}, nil
	}

	position := stats.MessageCount
	log.Info("videos queued for processing", zap.Int("queue_position", position))
	return EnqueueResult{Queued: true, QueuePosition: &position}, nil
}
