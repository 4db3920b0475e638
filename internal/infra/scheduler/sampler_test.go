package scheduler

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/fiapx/fiapx-video-processor/internal/infra/metrics"
	"github.com/fiapx/fiapx-video-processor/internal/usecase"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type stubStatus struct {
	calls  atomic.Int32
	status usecase.QueueStatus
}

func (s *stubStatus) Execute(context.Context) usecase.QueueStatus {
	s.calls.Add(1)
	return s.status
}

func TestSampleCopiesStatusIntoGauges(t *testing.T) {
	stub := &stubStatus{status: usecase.QueueStatus{MessageCount: 7, ConsumerCount: 2, IsConnected: true, EstimatedWaitSeconds: 315}}
	s := NewQueueSampler(stub, "", zaptest.NewLogger(t))

	s.Sample()

	assert.Equal(t, 7.0, testutil.ToFloat64(metrics.QueueMessages))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.QueueConsumers))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.BrokerConnected))
	assert.Equal(t, 315.0, testutil.ToFloat64(metrics.EstimatedWaitSeconds))

	stub.status = usecase.QueueStatus{}
	s.Sample()
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.BrokerConnected))
}

func TestStartTakesFirstSampleImmediately(t *testing.T) {
	stub := &stubStatus{}
	s := NewQueueSampler(stub, "@every 1h", zaptest.NewLogger(t))

	require.NoError(t, s.Start())
	s.Stop()

	assert.Equal(t, int32(1), stub.calls.Load())
}

func TestStartRejectsBadSchedule(t *testing.T) {
	s := NewQueueSampler(&stubStatus{}, "every now and then", zaptest.NewLogger(t))

	assert.Error(t, s.Start())
}
