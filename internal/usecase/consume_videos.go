package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/fiapx/fiapx-video-processor/internal/domain/entity"
	"github.com/fiapx/fiapx-video-processor/internal/domain/port"
	"github.com/fiapx/fiapx-video-processor/internal/infra/metrics"
	"github.com/fiapx/fiapx-video-processor/pkg/clock"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const DefaultRestartDelay = 10 * time.Second

// BatchProcessor runs the pipeline for one batch.
type BatchProcessor interface {
	Execute(ctx context.Context, ids []string) ([]ProcessedVideo, error)
}

type ConsumerStats struct {
	MessageCount    int
	ConsumerCount   int
	IsConnected     bool
	ProcessingQueue string
	ResultsQueue    string
	DeadLetterQueue string
}

// ConsumeVideosUseCase pulls batches from the processing queue, runs them and applies the
// retry policy: requeue with an incremented retryCount until maxRetries, then dead-letter.
type ConsumeVideosUseCase struct {
	queue        port.MessageQueue
	processor    BatchProcessor
	logger       *zap.Logger
	sleep        clock.SleepFunc
	restartDelay time.Duration
	now          func() time.Time
}

type ConsumeOption func(*ConsumeVideosUseCase)

func WithConsumerSleep(sleep clock.SleepFunc) ConsumeOption {
	return func(uc *ConsumeVideosUseCase) { uc.sleep = sleep }
}

func WithRestartDelay(d time.Duration) ConsumeOption {
	return func(uc *ConsumeVideosUseCase) { uc.restartDelay = d }
}

func NewConsumeVideosUseCase(queue port.MessageQueue, processor BatchProcessor, logger *zap.Logger, opts ...ConsumeOption) *ConsumeVideosUseCase {
	uc := &ConsumeVideosUseCase{
		queue:        queue,
		processor:    processor,
		logger:       logger,
		sleep:        clock.Sleep,
		restartDelay: DefaultRestartDelay,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// Start subscribes to the processing queue. A failed subscribe is retried after the restart
// delay until ctx is done; it returns nil once the subscription is live.
func (uc *ConsumeVideosUseCase) Start(ctx context.Context) error {
	for {
		err := uc.queue.Consume(ctx, entity.ProcessingQueue, uc.HandleDelivery)
		if err == nil {
			uc.logger.Info("video consumer started", zap.String("queue", entity.ProcessingQueue))
			return nil
		}

		uc.logger.Error("failed to start video consumer, retrying",
			zap.Error(err),
			zap.Duration("delay", uc.restartDelay),
		)
		if err := uc.sleep(ctx, uc.restartDelay); err != nil {
			return err
		}
	}
}

func (uc *ConsumeVideosUseCase) Stats(ctx context.Context) ConsumerStats {
	stats := ConsumerStats{
		IsConnected:     uc.queue.IsConnected(),
		ProcessingQueue: entity.ProcessingQueue,
		ResultsQueue:    entity.ResultsQueue,
		DeadLetterQueue: entity.DeadLetterQueue,
	}
	qs, err := uc.queue.Stats(ctx, entity.ProcessingQueue)
	if err != nil {
		uc.logger.Warn("failed to read consumer stats", zap.Error(err))
		stats.IsConnected = false
		return stats
	}
	stats.MessageCount = qs.MessageCount
	stats.ConsumerCount = qs.ConsumerCount
	return stats
}

// HandleDelivery processes one delivery and settles it exactly once. The returned error is
// the processing error, if any; the delivery is already settled when it returns.
// A dequeued batch is never cancelled: cancellation of ctx is ignored.
func (uc *ConsumeVideosUseCase) HandleDelivery(ctx context.Context, d *port.Delivery) error {
	ctx = context.WithoutCancel(ctx)
	tracer := otel.Tracer("usecase")
	ctx, span := tracer.Start(ctx, "ConsumeVideosUseCase.HandleDelivery")
	defer span.End()

	var msg entity.ProcessingMessage
	if err := json.Unmarshal(d.Body, &msg); err != nil {
		uc.logger.Error("failed to unmarshal processing message", zap.Error(err), zap.ByteString("body", d.Body))
		reason := "unmarshal_error: " + err.Error()
		uc.deadLetter(ctx, d, entity.NewDeadLetterEnvelope(d.Queue, d.Body, reason, 0))
		return fmt.Errorf("decode processing message: %w", err)
	}

	span.SetAttributes(
		attribute.StringSlice("video.ids", msg.VideoFileIDs),
		attribute.Int("message.retry_count", msg.RetryCount),
	)
	log := uc.logger.With(zap.Strings("video_ids", msg.VideoFileIDs), zap.Int("retry_count", msg.RetryCount))

	start := time.Now()
	processed, procErr := uc.processor.Execute(ctx, msg.VideoFileIDs)
	elapsed := time.Since(start)

	if procErr == nil {
		uc.publishResult(ctx, entity.ResultMessage{
			VideoFileIDs: msg.VideoFileIDs,
			Results:      toVideoResults(processed),
			Status:       entity.ResultStatusCompleted,
			Timestamp:    uc.now(),
		}, log)
		uc.settle(d.Ack(), log)

		metrics.BatchesProcessedTotal.WithLabelValues("completed").Inc()
		log.Info("batch completed",
			zap.Duration("elapsed", elapsed),
			zap.Float64("seconds_per_video", elapsed.Seconds()/float64(max(len(processed), 1))),
		)
		return nil
	}

	uc.publishResult(ctx, entity.ResultMessage{
		VideoFileIDs: msg.VideoFileIDs,
		Results:      []entity.VideoResult{},
		Status:       entity.ResultStatusFailed,
		Error:        procErr.Error(),
		Timestamp:    uc.now(),
	}, log)

	retryCount := msg.RetryCount + 1
	maxRetries := msg.RetryLimit()

	if retryCount <= maxRetries {
		retry := msg
		retry.RetryCount = retryCount
		retry.MaxRetries = &maxRetries

		if uc.republish(ctx, d, d.Queue, retry, log) {
			metrics.BatchesProcessedTotal.WithLabelValues("requeued").Inc()
			metrics.RetryTotal.WithLabelValues(strconv.Itoa(retryCount)).Inc()
			log.Warn("batch failed, requeued",
				zap.Error(procErr),
				zap.Int("attempt", retryCount),
				zap.Int("max_retries", maxRetries),
			)
		}
		return procErr
	}

	log.Error("batch exhausted retries, dead-lettering", zap.Error(procErr), zap.Int("max_retries", maxRetries))
	uc.deadLetter(ctx, d, entity.NewDeadLetterEnvelope(d.Queue, d.Body, procErr.Error(), retryCount))
	return procErr
}

func (uc *ConsumeVideosUseCase) deadLetter(ctx context.Context, d *port.Delivery, envelope entity.DeadLetterEnvelope) {
	log := uc.logger.With(zap.String("queue", entity.DeadLetterQueue))
	if uc.republish(ctx, d, entity.DeadLetterQueue, envelope, log) {
		metrics.BatchesProcessedTotal.WithLabelValues("dead_lettered").Inc()
	}
}

// republish publishes message and acks d, or nacks d with requeue when the broker did not take it.
func (uc *ConsumeVideosUseCase) republish(ctx context.Context, d *port.Delivery, queue string, message any, log *zap.Logger) bool {
	ok, err := uc.queue.Publish(ctx, queue, message)
	if err != nil || !ok {
		log.Error("failed to republish message, returning it to the broker",
			zap.String("target_queue", queue),
			zap.Bool("confirmed", ok),
			zap.Error(err),
		)
		uc.settle(d.Nack(true), log)
		return false
	}
	uc.settle(d.Ack(), log)
	return true
}

func (uc *ConsumeVideosUseCase) publishResult(ctx context.Context, result entity.ResultMessage, log *zap.Logger) {
	ok, err := uc.queue.Publish(ctx, entity.ResultsQueue, result)
	switch {
	case err != nil:
		log.Error("failed to publish processing result", zap.String("status", string(result.Status)), zap.Error(err))
	case !ok:
		log.Error("broker refused processing result", zap.String("status", string(result.Status)))
	}
}

func (uc *ConsumeVideosUseCase) settle(err error, log *zap.Logger) {
	if err != nil {
		log.Error("failed to settle delivery", zap.Error(err))
	}
}

func toVideoResults(processed []ProcessedVideo) []entity.VideoResult {
	results := make([]entity.VideoResult, 0, len(processed))
	for _, p := range processed {
		results = append(results, entity.VideoResult{
			VideoID:      p.Video.ID,
			OriginalName: p.Video.OriginalName,
			ZipPath:      p.Result.ZipPath,
			FrameCount:   p.Result.FrameCount,
			FrameNames:   p.Result.FrameNames,
		})
	}
	return results
}
