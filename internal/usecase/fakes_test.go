package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fiapx/fiapx-video-processor/internal/domain/entity"
	"github.com/fiapx/fiapx-video-processor/internal/domain/port"
	"github.com/fiapx/fiapx-video-processor/internal/infra/memory"
)

type countingVideoRepo struct {
	*memory.VideoFileRepository

	mu      sync.Mutex
	finds   int
	updates []entity.VideoStatus
}

func newCountingVideoRepo() *countingVideoRepo {
	return &countingVideoRepo{VideoFileRepository: memory.NewVideoFileRepository()}
}

func (r *countingVideoRepo) FindByID(ctx context.Context, id string) (*entity.VideoFile, error) {
	r.mu.Lock()
	r.finds++
	r.mu.Unlock()
	return r.VideoFileRepository.FindByID(ctx, id)
}

// Update honours ctx the way the SQL repositories do.
func (r *countingVideoRepo) Update(ctx context.Context, video *entity.VideoFile) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	r.updates = append(r.updates, video.Status())
	r.mu.Unlock()
	return r.VideoFileRepository.Update(ctx, video)
}

func (r *countingVideoRepo) calls() (int, []entity.VideoStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.finds, append([]entity.VideoStatus(nil), r.updates...)
}

// fakeExtractor writes the configured number of frames for each video, keyed by original name
// as it appears at the end of the stored name. With release set, calls for names in gated
// block until release is closed and then honour ctx like ffmpeg under exec.CommandContext.
type fakeExtractor struct {
	frames  map[string]int
	err     error
	fail    map[string]error
	gated   map[string]bool
	started chan string
	release chan struct{}

	mu      sync.Mutex
	ctxErrs map[string]error
}

func (e *fakeExtractor) ExtractFrames(ctx context.Context, videoPath string, outputDir string) ([]string, error) {
	if e.err != nil {
		return nil, e.err
	}

	name := ""
	for n := range e.frames {
		if strings.HasSuffix(videoPath, "_"+n) {
			name = n
		}
	}
	if e.started != nil {
		e.started <- name
	}
	if err, ok := e.fail[name]; ok {
		return nil, err
	}
	if e.release != nil && e.gated[name] {
		<-e.release
		e.mu.Lock()
		if e.ctxErrs == nil {
			e.ctxErrs = map[string]error{}
		}
		e.ctxErrs[name] = ctx.Err()
		e.mu.Unlock()
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, err
	}

	count := e.frames[name]

	paths := make([]string, 0, count)
	for i := 1; i <= count; i++ {
		p := filepath.Join(outputDir, fmt.Sprintf("frame_%04d.png", i))
		if err := os.WriteFile(p, []byte("png"), 0o644); err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	return paths, nil
}

func (e *fakeExtractor) ctxErr(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ctxErrs[name]
}

type recordingNotifier struct {
	mu        sync.Mutex
	successes []port.SuccessNotification
	failures  []port.FailureNotification
}

func (n *recordingNotifier) NotifySuccess(_ context.Context, s port.SuccessNotification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.successes = append(n.successes, s)
}

func (n *recordingNotifier) NotifyFailure(_ context.Context, f port.FailureNotification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failures = append(n.failures, f)
}

type fakeCache struct {
	mu      sync.Mutex
	entries map[string]port.CachedStatus
	sets    int
	getErr  error
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: map[string]port.CachedStatus{}}
}

func (c *fakeCache) SetStatus(_ context.Context, status port.CachedStatus) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets++
	c.entries[status.VideoID] = status
	return nil
}

func (c *fakeCache) GetStatus(_ context.Context, videoID string) (*port.CachedStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, c.getErr
	}
	s, ok := c.entries[videoID]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

type published struct {
	queue string
	body  []byte
}

type publishOutcome struct {
	ok  bool
	err error
}

type fakeQueue struct {
	mu          sync.Mutex
	published   []published
	outcomes    map[string]publishOutcome
	stats       port.QueueStats
	statsErr    error
	statsCalls  int
	connected   bool
	consumeErrs []error
	consumes    int
	handler     port.DeliveryHandler
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{outcomes: map[string]publishOutcome{}, connected: true}
}

func (q *fakeQueue) Publish(_ context.Context, queue string, message any) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	outcome, ok := q.outcomes[queue]
	if !ok {
		outcome = publishOutcome{ok: true}
	}
	if outcome.err != nil {
		return false, outcome.err
	}
	body, err := json.Marshal(message)
	if err != nil {
		return false, err
	}
	q.published = append(q.published, published{queue: queue, body: body})
	return outcome.ok, nil
}

func (q *fakeQueue) Consume(_ context.Context, _ string, handler port.DeliveryHandler) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.consumes++
	if len(q.consumeErrs) > 0 {
		err := q.consumeErrs[0]
		q.consumeErrs = q.consumeErrs[1:]
		return err
	}
	q.handler = handler
	return nil
}

func (q *fakeQueue) IsConnected() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.connected
}

func (q *fakeQueue) Stats(_ context.Context, _ string) (port.QueueStats, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.statsCalls++
	return q.stats, q.statsErr
}

func (q *fakeQueue) on(queue string) []published {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []published
	for _, p := range q.published {
		if p.queue == queue {
			out = append(out, p)
		}
	}
	return out
}

// settlements records every Ack/Nack reaching the broker side of a delivery.
type settlements struct {
	acks  int
	nacks []bool
}

func (s *settlements) delivery(body []byte) *port.Delivery {
	return port.NewDelivery(entity.ProcessingQueue, body,
		func() error { s.acks++; return nil },
		func(requeue bool) error { s.nacks = append(s.nacks, requeue); return nil },
	)
}

type fakeBatchProcessor struct {
	processed []ProcessedVideo
	err       error
	calls     [][]string
}

func (p *fakeBatchProcessor) Execute(_ context.Context, ids []string) ([]ProcessedVideo, error) {
	p.calls = append(p.calls, ids)
	return p.processed, p.err
}

type fakeArtifacts struct {
	mu        sync.Mutex
	uploads   map[string][]byte
	openErr   error
	uploadErr error
}

func newFakeArtifacts() *fakeArtifacts {
	return &fakeArtifacts{uploads: map[string][]byte{}}
}

func (a *fakeArtifacts) UploadZip(_ context.Context, key string, r io.Reader, _ int64) error {
	if a.uploadErr != nil {
		return a.uploadErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.uploads[key] = data
	return nil
}

func (a *fakeArtifacts) OpenZip(_ context.Context, key string) (io.ReadCloser, error) {
	if a.openErr != nil {
		return nil, a.openErr
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	data, ok := a.uploads[key]
	if !ok {
		return nil, fmt.Errorf("no such key %s", key)
	}
	return io.NopCloser(strings.NewReader(string(data))), nil
}

func fixedNow() time.Time {
	return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
}
