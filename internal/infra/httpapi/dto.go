package httpapi

import (
	"time"

	"github.com/fiapx/fiapx-video-processor/internal/domain/entity"
	"github.com/fiapx/fiapx-video-processor/internal/usecase"
)

type errorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

type uploadResponse struct {
	Success                 bool     `json:"success"`
	Message                 string   `json:"message"`
	VideoIDs                []string `json:"videoIds"`
	QueuePosition           *int     `json:"queuePosition,omitempty"`
	EstimatedProcessingTime string   `json:"estimatedProcessingTime"`
}

type resultResponse struct {
	ID          string    `json:"id"`
	ZipFileName string    `json:"zipFileName"`
	FrameCount  int       `json:"frameCount"`
	FrameNames  []string  `json:"frameNames"`
	CreatedAt   time.Time `json:"createdAt"`
}

type videoResponse struct {
	ID               string             `json:"id"`
	OriginalName     string             `json:"originalName"`
	Status           entity.VideoStatus `json:"status"`
	Size             string             `json:"size"`
	UploadedAt       time.Time          `json:"uploadedAt"`
	ProcessedAt      *time.Time         `json:"processedAt"`
	ErrorMessage     string             `json:"errorMessage,omitempty"`
	ProcessingResult *resultResponse    `json:"processingResult"`
}

type videoStatusResponse struct {
	VideoID      string             `json:"videoId"`
	Status       entity.VideoStatus `json:"status"`
	ErrorMessage string             `json:"errorMessage,omitempty"`
	UpdatedAt    time.Time          `json:"updatedAt"`
}

type processedFileResponse struct {
	Filename    string    `json:"filename"`
	Size        int64     `json:"size"`
	CreatedAt   time.Time `json:"createdAt"`
	DownloadURL string    `json:"downloadUrl"`
	FrameCount  int       `json:"frameCount"`
}

type queueStatsResponse struct {
	MessageCount      int    `json:"messageCount"`
	ConsumerCount     int    `json:"consumerCount"`
	IsConnected       bool   `json:"isConnected"`
	EstimatedWaitTime string `json:"estimatedWaitTime"`
}

type processingStatusResponse struct {
	Files []processedFileResponse `json:"files"`
	Total int                     `json:"total"`
	Queue queueStatsResponse      `json:"queue"`
}

type queueCounts struct {
	MessageCount  int `json:"messageCount"`
	ConsumerCount int `json:"consumerCount"`
}

type serviceHealth struct {
	Status     string       `json:"status"`
	Connected  *bool        `json:"connected,omitempty"`
	QueueStats *queueCounts `json:"queueStats,omitempty"`
}

type healthResponse struct {
	Status    string                   `json:"status"`
	Timestamp time.Time                `json:"timestamp"`
	Services  map[string]serviceHealth `json:"services"`
}

type readinessResponse struct {
	Status string `json:"status"`
	Ready  bool   `json:"ready"`
}

func toVideoResponse(uv usecase.UserVideo) videoResponse {
	v := uv.Video
	resp := videoResponse{
		ID:           v.ID,
		OriginalName: v.OriginalName,
		Status:       v.Status(),
		Size:         v.Size.Format(),
		UploadedAt:   v.UploadedAt,
		ProcessedAt:  v.ProcessedAt(),
		ErrorMessage: v.ErrorMessage(),
	}
	if r := uv.Result; r != nil {
		resp.ProcessingResult = &resultResponse{
			ID:          r.ID,
			ZipFileName: r.ZipPath,
			FrameCount:  r.FrameCount,
			FrameNames:  r.FrameNames,
			CreatedAt:   r.CreatedAt,
		}
	}
	return resp
}

func toQueueStatsResponse(s usecase.QueueStatus) queueStatsResponse {
	return queueStatsResponse{
		MessageCount:      s.MessageCount,
		ConsumerCount:     s.ConsumerCount,
		IsConnected:       s.IsConnected,
		EstimatedWaitTime: s.EstimatedWaitTime,
	}
}

func healthy(ok bool) string {
	if ok {
		return "healthy"
	}
	return "unhealthy"
}
