package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/fiapx/fiapx-video-processor/internal/domain/entity"
	"github.com/fiapx/fiapx-video-processor/internal/usecase"
	"go.uber.org/zap"
)

const (
	userIDHeader  = "X-User-Id"
	uploadField   = "videos"
	maxMemory     = 32 << 20
	maxUploadSize = entity.MaxBatchSize*entity.MaxFileSize + 1<<20
)

type (
	VideoUploader interface {
		Execute(ctx context.Context, userID string, files []usecase.UploadFile) ([]*entity.VideoFile, error)
	}
	BatchEnqueuer interface {
		Execute(ctx context.Context, ids []string, priority int) (usecase.EnqueueResult, error)
	}
	VideoStatusReader interface {
		Execute(ctx context.Context, videoID string) (usecase.VideoStatusView, error)
	}
	UserVideoLister interface {
		Execute(ctx context.Context, userID string) ([]usecase.UserVideo, error)
	}
	ProcessingStatusReader interface {
		Execute(ctx context.Context) ([]usecase.ProcessedFile, error)
	}
	ResultDownloader interface {
		Execute(ctx context.Context, filename string) (usecase.Download, error)
	}
	QueueStatusReader interface {
		Execute(ctx context.Context) usecase.QueueStatus
	}
	ConsumerStatsReader interface {
		Stats(ctx context.Context) usecase.ConsumerStats
	}
	WebhookProber interface {
		HealthCheck(ctx context.Context) bool
	}
)

// Services are the operations exposed over HTTP.
type Services struct {
	Upload     VideoUploader
	Enqueue    BatchEnqueuer
	Status     VideoStatusReader
	List       UserVideoLister
	Processing ProcessingStatusReader
	Download   ResultDownloader
	Queue      QueueStatusReader
	Consumer   ConsumerStatsReader
	Webhook    WebhookProber
}

type Handler struct {
	svc    Services
	logger *zap.Logger
	now    func() time.Time
}

func NewHandler(svc Services, logger *zap.Logger) *Handler {
	return &Handler{svc: svc, logger: logger, now: time.Now}
}

// Routes returns the API with tracing, logging and panic recovery applied.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/videos/upload", h.Upload)
	mux.HandleFunc("GET /api/v1/videos", h.ListVideos)
	mux.HandleFunc("GET /api/v1/videos/status", h.ProcessingStatus)
	mux.HandleFunc("GET /api/v1/videos/queue/stats", h.QueueStats)
	mux.HandleFunc("GET /api/v1/videos/{id}/status", h.VideoStatus)
	mux.HandleFunc("GET /api/v1/videos/download/{filename}", h.Download)
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /health/ready", h.Ready)

	return TraceID(Logging(h.logger)(Recovery(h.logger)(mux)))
}

func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get(userIDHeader)
	if userID == "" {
		h.handleError(w, r, entity.ErrMissingUser)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxMemory); err != nil {
		h.respondError(w, r, http.StatusBadRequest, "Failed to parse form", err)
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File[uploadField]
	if len(headers) == 0 {
		h.respondError(w, r, http.StatusBadRequest, "At least one video file is required", nil)
		return
	}

	files, closeAll, err := openUploads(headers)
	defer closeAll()
	if err != nil {
		h.respondError(w, r, http.StatusBadRequest, "Failed to read file", err)
		return
	}

	videos, err := h.svc.Upload.Execute(r.Context(), userID, files)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	ids := make([]string, len(videos))
	for i, v := range videos {
		ids[i] = v.ID
	}

	queued, err := h.svc.Enqueue.Execute(r.Context(), ids, entity.DefaultPriority)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	if !queued.Queued {
		h.respondError(w, r, http.StatusInternalServerError, "Failed to queue videos for processing", nil)
		return
	}

	position := 0
	if queued.QueuePosition != nil {
		position = *queued.QueuePosition
	}

	h.logger.Info("videos uploaded and queued",
		zap.String("trace_id", GetTraceID(r.Context())),
		zap.String("user_id", userID),
		zap.Strings("video_ids", ids),
	)

	writeJSON(w, http.StatusCreated, uploadResponse{
		Success:                 true,
		Message:                 fmt.Sprintf("%d video(s) uploaded and queued for processing. You will be notified when processing is complete.", len(ids)),
		VideoIDs:                ids,
		QueuePosition:           queued.QueuePosition,
		EstimatedProcessingTime: usecase.FormatEstimatedTime(usecase.EstimateProcessingTime(len(ids), position)),
	})
}

func (h *Handler) ListVideos(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get(userIDHeader)
	if userID == "" {
		h.handleError(w, r, entity.ErrMissingUser)
		return
	}

	videos, err := h.svc.List.Execute(r.Context(), userID)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	resp := make([]videoResponse, 0, len(videos))
	for _, uv := range videos {
		resp = append(resp, toVideoResponse(uv))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) VideoStatus(w http.ResponseWriter, r *http.Request) {
	view, err := h.svc.Status.Execute(r.Context(), r.PathValue("id"))
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, videoStatusResponse{
		VideoID:      view.VideoID,
		Status:       view.Status,
		ErrorMessage: view.ErrorMessage,
		UpdatedAt:    view.UpdatedAt,
	})
}

func (h *Handler) ProcessingStatus(w http.ResponseWriter, r *http.Request) {
	files, err := h.svc.Processing.Execute(r.Context())
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	resp := processingStatusResponse{
		Files: make([]processedFileResponse, 0, len(files)),
		Total: len(files),
		Queue: toQueueStatsResponse(h.svc.Queue.Execute(r.Context())),
	}
	for _, f := range files {
		resp.Files = append(resp.Files, processedFileResponse{
			Filename:    f.Filename,
			Size:        f.Size,
			CreatedAt:   f.CreatedAt,
			DownloadURL: f.DownloadURL,
			FrameCount:  f.FrameCount,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) QueueStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toQueueStatsResponse(h.svc.Queue.Execute(r.Context())))
}

func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	d, err := h.svc.Download.Execute(r.Context(), r.PathValue("filename"))
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", d.Filename))

	if d.Remote != nil {
		defer d.Remote.Close()
		if _, err := io.Copy(w, d.Remote); err != nil {
			h.logger.Warn("zip stream interrupted",
				zap.String("trace_id", GetTraceID(r.Context())),
				zap.String("filename", d.Filename),
				zap.Error(err),
			)
		}
		return
	}

	http.ServeFile(w, r, d.Path)
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	stats := h.svc.Consumer.Stats(r.Context())
	webhookOK := h.svc.Webhook.HealthCheck(r.Context())

	connected := stats.IsConnected
	resp := healthResponse{
		Status:    healthy(connected),
		Timestamp: h.now().UTC(),
		Services: map[string]serviceHealth{
			"rabbitmq": {Status: healthy(connected), Connected: &connected},
			"consumer": {
				Status:     healthy(connected),
				QueueStats: &queueCounts{MessageCount: stats.MessageCount, ConsumerCount: stats.ConsumerCount},
			},
			"webhook": {Status: healthy(webhookOK)},
		},
	}

	status := http.StatusOK
	if !connected {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if !h.svc.Consumer.Stats(r.Context()).IsConnected {
		writeJSON(w, http.StatusServiceUnavailable, readinessResponse{Status: "not ready"})
		return
	}
	writeJSON(w, http.StatusOK, readinessResponse{Status: "ready", Ready: true})
}

func (h *Handler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, entity.ErrMissingUser):
		h.respondError(w, r, http.StatusUnauthorized, "User authentication required", err)
	case entity.IsValidation(err):
		h.respondError(w, r, http.StatusBadRequest, err.Error(), err)
	case entity.IsNotFound(err):
		h.respondError(w, r, http.StatusNotFound, err.Error(), err)
	default:
		h.respondError(w, r, http.StatusInternalServerError, "Internal server error", err)
	}
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, status int, message string, err error) {
	traceID := GetTraceID(r.Context())
	fields := []zap.Field{
		zap.String("trace_id", traceID),
		zap.String("path", r.URL.Path),
		zap.Int("status", status),
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error(message, fields...)
	} else {
		h.logger.Warn(message, fields...)
	}

	writeJSON(w, status, errorResponse{Error: message, TraceID: traceID})
}

func openUploads(headers []*multipart.FileHeader) ([]usecase.UploadFile, func(), error) {
	var opened []multipart.File
	closeAll := func() {
		for _, f := range opened {
			f.Close()
		}
	}

	files := make([]usecase.UploadFile, 0, len(headers))
	for _, hdr := range headers {
		f, err := hdr.Open()
		if err != nil {
			return nil, closeAll, fmt.Errorf("open %s: %w", hdr.Filename, err)
		}
		opened = append(opened, f)
		files = append(files, usecase.UploadFile{Name: hdr.Filename, Size: hdr.Size, Content: f})
	}
	return files, closeAll, nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
