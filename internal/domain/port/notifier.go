package port

import (
	"context"
	"time"

	"github.com/fiapx/fiapx-video-processor/internal/domain/entity"
)

type SuccessNotification struct {
	VideoID      string
	UserID       string
	OriginalName string
	DownloadURL  string
	FrameCount   int
	ZipFileName  string
	ProcessedAt  time.Time
}

type FailureNotification struct {
	VideoID      string
	UserID       string
	OriginalName string
	ErrorMessage string
	ProcessedAt  time.Time
}

// Notifier delivers terminal video events. Delivery is best-effort and never fails the caller.
type Notifier interface {
	NotifySuccess(ctx context.Context, n SuccessNotification)
	NotifyFailure(ctx context.Context, n FailureNotification)
}

type CachedStatus struct {
	VideoID      string             `json:"videoId"`
	Status       entity.VideoStatus `json:"status"`
	ErrorMessage string             `json:"errorMessage,omitempty"`
	UpdatedAt    time.Time          `json:"updatedAt"`
}

// StatusCache keeps the latest status of each video for fast lookups.
// Get returns (nil, nil) on a miss.
type StatusCache interface {
	SetStatus(ctx context.Context, status CachedStatus) error
	GetStatus(ctx context.Context, videoID string) (*CachedStatus, error)
}
