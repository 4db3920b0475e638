package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/fiapx/fiapx-video-processor/internal/domain/entity"
	"github.com/fiapx/fiapx-video-processor/internal/domain/port"
	"go.uber.org/zap"
)

const (
	secondsPerQueuedBatch = 90
	secondsPerVideo       = 30
)

type QueueStatus struct {
	MessageCount         int
	ConsumerCount        int
	IsConnected          bool
	EstimatedWaitSeconds int
	EstimatedWaitTime    string
}

// QueueStatusUseCase derives wait estimates from processing queue depth.
type QueueStatusUseCase struct {
	queue  port.MessageQueue
	logger *zap.Logger
}

func NewQueueStatusUseCase(queue port.MessageQueue, logger *zap.Logger) *QueueStatusUseCase {
	return &QueueStatusUseCase{queue: queue, logger: logger}
}

func (uc *QueueStatusUseCase) Execute(ctx context.Context) QueueStatus {
	stats, err := uc.queue.Stats(ctx, entity.ProcessingQueue)
	if err != nil {
		uc.logger.Warn("failed to read processing queue stats", zap.Error(err))
		return QueueStatus{EstimatedWaitTime: FormatEstimatedTime(0)}
	}

	wait := stats.MessageCount * secondsPerQueuedBatch / max(stats.ConsumerCount, 1)
	return QueueStatus{
		MessageCount:         stats.MessageCount,
		ConsumerCount:        stats.ConsumerCount,
		IsConnected:          uc.queue.IsConnected(),
		EstimatedWaitSeconds: wait,
		EstimatedWaitTime:    FormatEstimatedTime(wait),
	}
}

// EstimateProcessingTime returns the expected seconds until a batch of videoCount videos
// at queuePosition is done.
func EstimateProcessingTime(videoCount, queuePosition int) int {
	return videoCount*secondsPerVideo + queuePosition*secondsPerQueuedBatch
}

// FormatEstimatedTime renders seconds as "45 seconds", "2 minutes" or "1 hour 5 minutes".
// Minutes are always rounded up.
func FormatEstimatedTime(seconds int) string {
	if seconds < 60 {
		return fmt.Sprintf("%d seconds", seconds)
	}
	if seconds < 3600 {
		return plural(ceilDiv(seconds, 60), "minute")
	}

	hours := seconds / 3600
	minutes := ceilDiv(seconds%3600, 60)

	parts := []string{plural(hours, "hour")}
	if minutes > 0 {
		parts = append(parts, plural(minutes, "minute"))
	}
	return strings.Join(parts, " ")
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}
