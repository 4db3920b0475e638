package entity

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

type VideoStatus string

const (
	VideoStatusPending    VideoStatus = "PENDING"
	VideoStatusProcessing VideoStatus = "PROCESSING"
	VideoStatusCompleted  VideoStatus = "COMPLETED"
	VideoStatusFailed     VideoStatus = "FAILED"
)

// IsTerminal reports whether no further transition is allowed from s.
func (s VideoStatus) IsTerminal() bool {
	return s == VideoStatusCompleted || s == VideoStatusFailed
}

// PreviousStatus returns the only status a video may hold right before moving to s.
// PENDING has no predecessor.
func (s VideoStatus) PreviousStatus() (VideoStatus, bool) {
	switch s {
	case VideoStatusProcessing:
		return VideoStatusPending, true
	case VideoStatusCompleted, VideoStatusFailed:
		return VideoStatusProcessing, true
	default:
		return "", false
	}
}

// IsClaim reports whether moving to s takes ownership of the video. A claim persists only
// over its predecessor; re-applying it over a video already in s is a concurrent modification.
func (s VideoStatus) IsClaim() bool {
	return s == VideoStatusProcessing
}

// RewritableFrom returns the stored status that an update to s may overwrite besides its
// predecessor: s itself, or nothing for a claim.
func (s VideoStatus) RewritableFrom() VideoStatus {
	if s.IsClaim() {
		return ""
	}
	return s
}

// VideoFile is one uploaded video and its processing lifecycle.
// status, processedAt and errorMessage change only through the Mark* transitions.
type VideoFile struct {
	ID           string
	OriginalName string
	StoredName   string
	Extension    FileExtension
	Size         FileSize
	UploadedAt   time.Time
	UserID       string

	status       VideoStatus
	processedAt  *time.Time
	errorMessage string
}

// NewVideoFile validates extension and size and returns a PENDING video.
func NewVideoFile(originalName, storedName string, size int64, userID string) (*VideoFile, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrMissingUser
	}

	ext, err := NewFileExtension(filepath.Ext(originalName))
	if err != nil {
		return nil, err
	}

	fs, err := NewFileSize(size)
	if err != nil {
		return nil, err
	}

	return &VideoFile{
		ID:           uuid.NewString(),
		OriginalName: originalName,
		StoredName:   storedName,
		Extension:    ext,
		Size:         fs,
		UploadedAt:   time.Now().UTC(),
		UserID:       userID,
		status:       VideoStatusPending,
	}, nil
}

// RestoreVideoFile rebuilds a VideoFile from persisted state without re-running validation.
func RestoreVideoFile(
	id, originalName, storedName, extension string,
	size int64,
	uploadedAt time.Time,
	userID string,
	status VideoStatus,
	processedAt *time.Time,
	errorMessage string,
) *VideoFile {
	return &VideoFile{
		ID:           id,
		OriginalName: originalName,
		StoredName:   storedName,
		Extension:    FileExtension(extension),
		Size:         FileSize(size),
		UploadedAt:   uploadedAt,
		UserID:       userID,
		status:       status,
		processedAt:  processedAt,
		errorMessage: errorMessage,
	}
}

func (v *VideoFile) Status() VideoStatus           { return v.status }
func (v *VideoFile) ProcessedAt() *time.Time       { return v.processedAt }
func (v *VideoFile) ErrorMessage() string          { return v.errorMessage }
func (v *VideoFile) IsProcessing() bool            { return v.status == VideoStatusProcessing }
func (v *VideoFile) StoragePath(dir string) string { return filepath.Join(dir, v.StoredName) }

func (v *VideoFile) MarkAsProcessing() error {
	if err := v.transition(VideoStatusProcessing); err != nil {
		return err
	}
	v.status = VideoStatusProcessing
	return nil
}

func (v *VideoFile) MarkAsCompleted() error {
	if err := v.transition(VideoStatusCompleted); err != nil {
		return err
	}
	now := time.Now().UTC()
	v.status = VideoStatusCompleted
	v.processedAt = &now
	v.errorMessage = ""
	return nil
}

func (v *VideoFile) MarkAsFailed(errMsg string) error {
	if err := v.transition(VideoStatusFailed); err != nil {
		return err
	}
	now := time.Now().UTC()
	v.status = VideoStatusFailed
	v.processedAt = &now
	v.errorMessage = errMsg
	return nil
}

func (v *VideoFile) transition(to VideoStatus) error {
	from, ok := to.PreviousStatus()
	if !ok || v.status != from {
		return fmt.Errorf("%w: video %s cannot move from %s to %s", ErrInvalidStatusTransition, v.ID, v.status, to)
	}
	return nil
}

// Clone returns a copy that shares no mutable state with v.
func (v *VideoFile) Clone() *VideoFile {
	c := *v
	if v.processedAt != nil {
		t := *v.processedAt
		c.processedAt = &t
	}
	return &c
}

var allowedExtensions = []string{".mp4", ".avi", ".mov", ".mkv", ".wmv", ".flv", ".webm"}

// FileExtension is a lowercased, allow-listed video extension including the dot.
type FileExtension string

func NewFileExtension(ext string) (FileExtension, error) {
	normalized := strings.ToLower(strings.TrimSpace(ext))
	if !slices.Contains(allowedExtensions, normalized) {
		return "", fmt.Errorf("%w: %q, allowed: %s", ErrInvalidFileFormat, ext, strings.Join(allowedExtensions, ", "))
	}
	return FileExtension(normalized), nil
}

const MaxFileSize int64 = 100 * 1024 * 1024

// FileSize is a video size in bytes, between 0 and MaxFileSize.
type FileSize int64

func NewFileSize(bytes int64) (FileSize, error) {
	if bytes < 0 {
		return 0, fmt.Errorf("%w: %d bytes", ErrInvalidFileSize, bytes)
	}
	if bytes > MaxFileSize {
		return 0, fmt.Errorf("%w: %s exceeds limit of %s", ErrFileSizeExceeded, FileSize(bytes).Format(), FileSize(MaxFileSize).Format())
	}
	return FileSize(bytes), nil
}

func (s FileSize) Bytes() int64 { return int64(s) }

// Format renders the size with two decimals in the largest fitting unit.
func (s FileSize) Format() string {
	const k = 1024.0
	b := float64(s)
	switch {
	case b < k:
		return fmt.Sprintf("%d Bytes", int64(s))
	case b < k*k:
		return fmt.Sprintf("%.2f KB", b/k)
	case b < k*k*k:
		return fmt.Sprintf("%.2f MB", b/(k*k))
	default:
		return fmt.Sprintf("%.2f GB", b/(k*k*k))
	}
}
