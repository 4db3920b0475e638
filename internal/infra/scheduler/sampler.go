package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/fiapx/fiapx-video-processor/internal/infra/metrics"
	"github.com/fiapx/fiapx-video-processor/internal/usecase"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const DefaultSchedule = "@every 15s"

// QueueSnapshotter returns the current processing queue status.
type QueueSnapshotter interface {
	Execute(ctx context.Context) usecase.QueueStatus
}

// QueueSampler periodically copies the queue status into Prometheus gauges.
type QueueSampler struct {
	cron     *cron.Cron
	status   QueueSnapshotter
	logger   *zap.Logger
	timeout  time.Duration
	schedule string
}

func NewQueueSampler(status QueueSnapshotter, schedule string, logger *zap.Logger) *QueueSampler {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	return &QueueSampler{
		cron:     cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		status:   status,
		logger:   logger,
		timeout:  5 * time.Second,
		schedule: schedule,
	}
}

// Start registers the sampling job, takes a first sample and starts the scheduler.
func (s *QueueSampler) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, s.Sample); err != nil {
		return fmt.Errorf("schedule queue sampler %q: %w", s.schedule, err)
	}
	s.Sample()
	s.cron.Start()
	s.logger.Info("queue sampler started", zap.String("schedule", s.schedule))
	return nil
}

// Stop waits for a running sample to finish.
func (s *QueueSampler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *QueueSampler) Sample() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	status := s.status.Execute(ctx)

	metrics.QueueMessages.Set(float64(status.MessageCount))
	metrics.QueueConsumers.Set(float64(status.ConsumerCount))
	metrics.EstimatedWaitSeconds.Set(float64(status.EstimatedWaitSeconds))
	if status.IsConnected {
		metrics.BrokerConnected.Set(1)
	} else {
		metrics.BrokerConnected.Set(0)
	}

	s.logger.Debug("queue sampled",
		zap.Int("messages", status.MessageCount),
		zap.Int("consumers", status.ConsumerCount),
		zap.Bool("connected", status.IsConnected),
	)
}
