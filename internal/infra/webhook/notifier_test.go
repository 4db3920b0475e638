package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fiapx/fiapx-video-processor/internal/domain/entity"
	"github.com/fiapx/fiapx-video-processor/internal/domain/port"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type recordedSleeps struct {
	mu    sync.Mutex
	calls []time.Duration
}

func (r *recordedSleeps) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.calls = append(r.calls, d)
	r.mu.Unlock()
	return ctx.Err()
}

func (r *recordedSleeps) durations() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.calls...)
}

type hookServer struct {
	*httptest.Server
	mu       sync.Mutex
	requests []*http.Request
	bodies   [][]byte
	failures int32
	calls    atomic.Int32
}

// newHookServer answers 500 for the first failures requests and 200 afterwards.
func newHookServer(t *testing.T, failures int32) *hookServer {
	h := &hookServer{failures: failures}
	h.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		h.mu.Lock()
		h.requests = append(h.requests, r)
		h.bodies = append(h.bodies, body)
		h.mu.Unlock()

		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		if h.calls.Add(1) <= h.failures {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(h.Close)
	return h
}

func newObservedLogger() (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zap.DebugLevel)
	return zap.New(core), logs
}

func success() port.SuccessNotification {
	return port.SuccessNotification{
		VideoID:      "v1",
		UserID:       "user-1",
		OriginalName: "clip.mp4",
		DownloadURL:  "/api/v1/videos/download/frames_1_1.zip",
		FrameCount:   12,
		ZipFileName:  "frames_1_1.zip",
		ProcessedAt:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestNotifySuccessDeliversOnFirstAttempt(t *testing.T) {
	srv := newHookServer(t, 0)
	sleeps := &recordedSleeps{}
	log, _ := newObservedLogger()
	n := NewNotifier(Config{URL: srv.URL}, log, WithSleep(sleeps.sleep))
	defer n.Close()

	n.NotifySuccess(context.Background(), success())
	n.Wait()

	require.Len(t, srv.requests, 1)
	req := srv.requests[0]
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
	assert.Equal(t, "VideoProcessor-Webhook/1.0", req.Header.Get("User-Agent"))
	assert.Empty(t, sleeps.durations())

	var payload entity.WebhookPayload
	require.NoError(t, json.Unmarshal(srv.bodies[0], &payload))
	assert.Equal(t, entity.WebhookEventSuccess, payload.Event)
	assert.Equal(t, entity.VideoStatusCompleted, payload.Data.Status)
	assert.Equal(t, "/api/v1/videos/download/frames_1_1.zip", payload.Data.DownloadURL)
	assert.Equal(t, 12, payload.Data.FrameCount)
	assert.Equal(t, "frames_1_1.zip", payload.Data.ZipFileName)
	assert.Empty(t, payload.Data.ErrorMessage)
}

func TestNotifyFailureRetriesUntilDelivered(t *testing.T) {
	srv := newHookServer(t, 2)
	sleeps := &recordedSleeps{}
	log, logs := newObservedLogger()
	n := NewNotifier(Config{URL: srv.URL}, log, WithSleep(sleeps.sleep))
	defer n.Close()

	n.NotifyFailure(context.Background(), port.FailureNotification{
		VideoID: "v1", UserID: "u", OriginalName: "clip.mp4", ErrorMessage: "no frames",
	})
	n.Wait()

	assert.EqualValues(t, 3, srv.calls.Load())
	assert.Equal(t, []time.Duration{2 * time.Second, 2 * time.Second}, sleeps.durations())
	assert.Zero(t, logs.FilterLevelExact(zap.ErrorLevel).Len())

	var payload entity.WebhookPayload
	require.NoError(t, json.Unmarshal(srv.bodies[2], &payload))
	assert.Equal(t, entity.WebhookEventFailed, payload.Event)
	assert.Equal(t, "no frames", payload.Data.ErrorMessage)
}

func TestNotifyStopsAfterThreeAttempts(t *testing.T) {
	srv := newHookServer(t, 100)
	sleeps := &recordedSleeps{}
	log, logs := newObservedLogger()
	n := NewNotifier(Config{URL: srv.URL}, log, WithSleep(sleeps.sleep))
	defer n.Close()

	n.NotifySuccess(context.Background(), success())
	n.Wait()

	assert.EqualValues(t, 3, srv.calls.Load())
	assert.Len(t, sleeps.durations(), 2)

	errs := logs.FilterLevelExact(zap.ErrorLevel).All()
	require.Len(t, errs, 1)
	assert.Equal(t, "webhook delivery failed after all retries", errs[0].Message)
	assert.Contains(t, errs[0].ContextMap()["payload"], `"videoId":"v1"`)
}

func TestNotifyDoesNotBlockOnRetries(t *testing.T) {
	srv := newHookServer(t, 100)
	release := make(chan struct{})
	blocking := func(ctx context.Context, _ time.Duration) error {
		select {
		case <-release:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	log, _ := newObservedLogger()
	n := NewNotifier(Config{URL: srv.URL}, log, WithSleep(blocking))

	done := make(chan struct{})
	go func() {
		n.NotifySuccess(context.Background(), success())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("notify blocked on retries")
	}
	assert.EqualValues(t, 1, srv.calls.Load())

	n.Close()
	assert.EqualValues(t, 1, srv.calls.Load())
}

func TestNotifyNetworkErrorIsRetried(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	sleeps := &recordedSleeps{}
	log, logs := newObservedLogger()
	n := NewNotifier(Config{URL: url}, log, WithSleep(sleeps.sleep))
	defer n.Close()

	n.NotifySuccess(context.Background(), success())
	n.Wait()

	assert.Len(t, sleeps.durations(), 2)
	assert.Equal(t, 1, logs.FilterLevelExact(zap.ErrorLevel).Len())
}

func TestNotifyWithoutURLOnlyLogs(t *testing.T) {
	log, logs := newObservedLogger()
	n := NewNotifier(Config{}, log)
	defer n.Close()

	n.NotifySuccess(context.Background(), success())

	entries := logs.FilterMessage("webhook url not configured, skipping delivery").All()
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].ContextMap(), "payload")
}

func TestHealthCheck(t *testing.T) {
	log, _ := newObservedLogger()

	assert.True(t, NewNotifier(Config{}, log).HealthCheck(context.Background()))

	srv := newHookServer(t, 0)
	n := NewNotifier(Config{URL: srv.URL + "/"}, log)
	assert.True(t, n.HealthCheck(context.Background()))
	assert.Equal(t, "/health", srv.requests[0].URL.Path)
	assert.Equal(t, http.MethodGet, srv.requests[0].Method)

	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer down.Close()
	assert.False(t, NewNotifier(Config{URL: down.URL}, log).HealthCheck(context.Background()))
}
