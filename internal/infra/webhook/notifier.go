package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/fiapx/fiapx-video-processor/internal/domain/entity"
	"github.com/fiapx/fiapx-video-processor/internal/domain/port"
	"github.com/fiapx/fiapx-video-processor/internal/infra/metrics"
	"github.com/fiapx/fiapx-video-processor/pkg/clock"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

const userAgent = "VideoProcessor-Webhook/1.0"

type Config struct {
	URL           string
	Timeout       time.Duration
	HealthTimeout time.Duration
	Attempts      int
	RetryDelay    time.Duration
}

// Notifier POSTs terminal video events to a webhook endpoint. The first attempt runs in
// the caller's goroutine; the remaining attempts run in the background with a fixed delay.
type Notifier struct {
	cfg    Config
	client *http.Client
	sleep  clock.SleepFunc
	logger *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type Option func(*Notifier)

func WithSleep(sleep clock.SleepFunc) Option {
	return func(n *Notifier) { n.sleep = sleep }
}

func WithHTTPClient(client *http.Client) Option {
	return func(n *Notifier) { n.client = client }
}

func NewNotifier(cfg Config, logger *zap.Logger, opts ...Option) *Notifier {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.HealthTimeout <= 0 {
		cfg.HealthTimeout = 5 * time.Second
	}
	if cfg.Attempts <= 0 {
		cfg.Attempts = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 2 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	n := &Notifier{
		cfg: cfg,
		client: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		sleep:  clock.Sleep,
		logger: logger.With(zap.String("component", "webhook")),
		ctx:    ctx,
		cancel: cancel,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

func (n *Notifier) NotifySuccess(ctx context.Context, s port.SuccessNotification) {
	n.dispatch(ctx, entity.WebhookPayload{
		Event:     entity.WebhookEventSuccess,
		Timestamp: time.Now().UTC(),
		Data: entity.WebhookData{
			VideoID:      s.VideoID,
			UserID:       s.UserID,
			OriginalName: s.OriginalName,
			Status:       entity.VideoStatusCompleted,
			ProcessedAt:  s.ProcessedAt,
			DownloadURL:  s.DownloadURL,
			FrameCount:   s.FrameCount,
			ZipFileName:  s.ZipFileName,
		},
	})
}

func (n *Notifier) NotifyFailure(ctx context.Context, f port.FailureNotification) {
	n.dispatch(ctx, entity.WebhookPayload{
		Event:     entity.WebhookEventFailed,
		Timestamp: time.Now().UTC(),
		Data: entity.WebhookData{
			VideoID:      f.VideoID,
			UserID:       f.UserID,
			OriginalName: f.OriginalName,
			Status:       entity.VideoStatusFailed,
			ProcessedAt:  f.ProcessedAt,
			ErrorMessage: f.ErrorMessage,
		},
	})
}

// HealthCheck probes GET {url}/health. An unconfigured endpoint counts as healthy.
func (n *Notifier) HealthCheck(ctx context.Context) bool {
	if n.cfg.URL == "" {
		return true
	}

	ctx, cancel := context.WithTimeout(ctx, n.cfg.HealthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(n.cfg.URL, "/")+"/health", nil)
	if err != nil {
		return false
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := n.client.Do(req)
	if err != nil {
		n.logger.Warn("webhook health check failed", zap.Error(err))
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// Wait blocks until every scheduled retry has finished.
func (n *Notifier) Wait() {
	n.wg.Wait()
}

// Close cancels pending retries and waits for them to stop.
func (n *Notifier) Close() {
	n.cancel()
	n.wg.Wait()
}

func (n *Notifier) dispatch(ctx context.Context, payload entity.WebhookPayload) {
	log := n.logger.With(
		zap.String("event", string(payload.Event)),
		zap.String("video_id", payload.Data.VideoID),
	)

	if n.cfg.URL == "" {
		log.Info("webhook url not configured, skipping delivery", zap.Any("payload", payload))
		metrics.WebhookDeliveriesTotal.WithLabelValues("skipped").Inc()
		return
	}

	body, err := json.Marshal(payload)
	if err != nil {
		log.Error("failed to marshal webhook payload", zap.Error(err))
		return
	}

	err = n.send(ctx, body)
	if err == nil {
		log.Info("webhook delivered", zap.Int("attempt", 1))
		metrics.WebhookDeliveriesTotal.WithLabelValues("delivered").Inc()
		return
	}
	log.Warn("webhook delivery failed", zap.Int("attempt", 1), zap.Error(err))

	if n.cfg.Attempts <= 1 {
		n.exhausted(log, body)
		return
	}

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		n.retry(log, body)
	}()
}

func (n *Notifier) retry(log *zap.Logger, body []byte) {
	for attempt := 2; attempt <= n.cfg.Attempts; attempt++ {
		metrics.WebhookDeliveriesTotal.WithLabelValues("retried").Inc()
		if err := n.sleep(n.ctx, n.cfg.RetryDelay); err != nil {
			log.Warn("webhook retries cancelled", zap.Int("next_attempt", attempt), zap.ByteString("payload", body))
			return
		}

		err := n.send(n.ctx, body)
		if err == nil {
			log.Info("webhook delivered", zap.Int("attempt", attempt))
			metrics.WebhookDeliveriesTotal.WithLabelValues("delivered").Inc()
			return
		}
		log.Warn("webhook delivery failed", zap.Int("attempt", attempt), zap.Error(err))
	}

	n.exhausted(log, body)
}

func (n *Notifier) exhausted(log *zap.Logger, body []byte) {
	metrics.WebhookDeliveriesTotal.WithLabelValues("exhausted").Inc()
	log.Error("webhook delivery failed after all retries",
		zap.Int("attempts", n.cfg.Attempts),
		zap.ByteString("payload", body),
	)
}

func (n *Notifier) send(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
