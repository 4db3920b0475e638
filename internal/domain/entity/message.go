package entity

import (
	"encoding/json"
	"time"
)

const (
	ProcessingQueue = "video.processing"
	ResultsQueue    = "video.processing.results"
	DeadLetterQueue = "video.processing.dlq"

	MaxBatchSize      = 3
	DefaultMaxRetries = 3
	DefaultPriority   = 1
)

// ProcessingMessage is published to video.processing. Retry bookkeeping travels in
// the payload so the contract does not depend on broker headers.
type ProcessingMessage struct {
	VideoFileIDs []string  `json:"videoFileIds"`
	Priority     int       `json:"priority"`
	Timestamp    time.Time `json:"timestamp"`
	RetryCount   int       `json:"retryCount,omitempty"`
	MaxRetries   *int      `json:"maxRetries,omitempty"`
}

// RetryLimit returns MaxRetries or DefaultMaxRetries when unset.
func (m ProcessingMessage) RetryLimit() int {
	if m.MaxRetries == nil {
		return DefaultMaxRetries
	}
	return *m.MaxRetries
}

type ResultStatus string

const (
	ResultStatusCompleted ResultStatus = "completed"
	ResultStatusFailed    ResultStatus = "failed"
)

// ResultMessage is published to video.processing.results after every attempt.
type ResultMessage struct {
	VideoFileIDs []string      `json:"videoFileIds"`
	Results      []VideoResult `json:"results"`
	Status       ResultStatus  `json:"status"`
	Error        string        `json:"error,omitempty"`
	Timestamp    time.Time     `json:"timestamp"`
}

type VideoResult struct {
	VideoID      string   `json:"videoId"`
	OriginalName string   `json:"originalName"`
	ZipPath      string   `json:"zipPath"`
	FrameCount   int      `json:"frameCount"`
	FrameNames   []string `json:"frameNames"`
}

// DeadLetterEnvelope wraps a message that exhausted its retries.
type DeadLetterEnvelope struct {
	OriginalQueue   string `json:"originalQueue"`
	Message         any    `json:"message"`
	Error           string `json:"error"`
	FinalRetryCount int    `json:"finalRetryCount"`
}

// NewDeadLetterEnvelope keeps body verbatim when it is valid JSON and as a string otherwise.
func NewDeadLetterEnvelope(queue string, body []byte, errMsg string, finalRetryCount int) DeadLetterEnvelope {
	var message any = string(body)
	if json.Valid(body) {
		message = json.RawMessage(body)
	}
	return DeadLetterEnvelope{
		OriginalQueue:   queue,
		Message:         message,
		Error:           errMsg,
		FinalRetryCount: finalRetryCount,
	}
}

type WebhookEvent string

const (
	WebhookEventSuccess WebhookEvent = "video.processing.success"
	WebhookEventFailed  WebhookEvent = "video.processing.failed"
)

// WebhookPayload is the body POSTed to the configured webhook endpoint.
type WebhookPayload struct {
	Event     WebhookEvent `json:"event"`
	Timestamp time.Time    `json:"timestamp"`
	Data      WebhookData  `json:"data"`
}

type WebhookData struct {
	VideoID      string      `json:"videoId"`
	UserID       string      `json:"userId"`
	OriginalName string      `json:"originalName"`
	Status       VideoStatus `json:"status"`
	ProcessedAt  time.Time   `json:"processedAt"`
	DownloadURL  string      `json:"downloadUrl,omitempty"`
	FrameCount   int         `json:"frameCount,omitempty"`
	ZipFileName  string      `json:"zipFileName,omitempty"`
	ErrorMessage string      `json:"errorMessage,omitempty"`
}
