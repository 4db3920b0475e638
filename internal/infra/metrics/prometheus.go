package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BatchesProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fiapx_batches_processed_total",
		Help: "Processing messages handled by the consumer, by outcome (completed, requeued, dead_lettered)",
	}, []string{"outcome"})

	VideosProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fiapx_videos_processed_total",
		Help: "Videos that reached a terminal state, by status",
	}, []string{"status"})

	ProcessingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fiapx_processing_duration_seconds",
		Help:    "Duration of video processing stages",
		Buckets: []float64{0.5, 1, 5, 10, 30, 60, 120, 300, 600},
	}, []string{"stage"})

	FramesExtractedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fiapx_frames_extracted_total",
		Help: "Total number of frames extracted across all videos",
	})

	ActiveBatches = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fiapx_active_batches",
		Help: "Batches currently being processed",
	})

	RetryTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fiapx_retry_total",
		Help: "Processing messages requeued, by retry count",
	}, []string{"retry_count"})

	WebhookDeliveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fiapx_webhook_deliveries_total",
		Help: "Webhook delivery outcomes (delivered, retried, exhausted, skipped)",
	}, []string{"outcome"})

	QueueMessages = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fiapx_queue_messages",
		Help: "Messages waiting in the processing queue at the last sample",
	})

	QueueConsumers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fiapx_queue_consumers",
		Help: "Consumers attached to the processing queue at the last sample",
	})

	BrokerConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fiapx_broker_connected",
		Help: "1 when the broker connection is up at the last sample",
	})

	EstimatedWaitSeconds = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fiapx_estimated_wait_seconds",
		Help: "Estimated wait for a newly queued batch at the last sample",
	})
)
