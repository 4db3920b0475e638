package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"
)

func TestFormatEstimatedTime(t *testing.T) {
	tests := []struct {
		seconds int
		want    string
	}{
		{0, "0 seconds"},
		{45, "45 seconds"},
		{59, "59 seconds"},
		{60, "1 minute"},
		{90, "2 minutes"},
		{450, "8 minutes"},
		{3599, "60 minutes"},
		{3600, "1 hour"},
		{3660, "1 hour 1 minute"},
		{7200, "2 hours"},
		{9000, "2 hours 30 minutes"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatEstimatedTime(tt.seconds), "seconds=%d", tt.seconds)
	}
}

func TestEstimateProcessingTime(t *testing.T) {
	assert.Equal(t, 90, EstimateProcessingTime(3, 0))
	assert.Equal(t, 30+2*90, EstimateProcessingTime(1, 2))
}

func TestQueueStatus(t *testing.T) {
	tests := []struct {
		name      string
		messages  int
		consumers int
		want      string
		seconds   int
	}{
		{"two consumers", 10, 2, "8 minutes", 450},
		{"no consumers counts as one", 100, 0, "2 hours 30 minutes", 9000},
		{"single consumer", 100, 1, "2 hours 30 minutes", 9000},
		{"empty queue", 0, 3, "0 seconds", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			queue := newFakeQueue()
			queue.stats.MessageCount = tt.messages
			queue.stats.ConsumerCount = tt.consumers

			status := NewQueueStatusUseCase(queue, zaptest.NewLogger(t)).Execute(context.Background())

			assert.Equal(t, tt.want, status.EstimatedWaitTime)
			assert.Equal(t, tt.seconds, status.EstimatedWaitSeconds)
			assert.True(t, status.IsConnected)
		})
	}
}

func TestQueueStatusStatsFailure(t *testing.T) {
	queue := newFakeQueue()
	queue.statsErr = errors.New("down")

	status := NewQueueStatusUseCase(queue, zaptest.NewLogger(t)).Execute(context.Background())

	assert.Equal(t, QueueStatus{EstimatedWaitTime: "0 seconds"}, status)
}
