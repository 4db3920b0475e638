package entity

import (
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
)

// ProcessingResult is the zip artifact produced for one successfully processed video.
type ProcessingResult struct {
	ID          string
	VideoFileID string
	ZipPath     string
	FrameCount  int
	FrameNames  []string
	CreatedAt   time.Time
}

func NewProcessingResult(videoFileID, zipPath string, frameNames []string) (*ProcessingResult, error) {
	if len(frameNames) == 0 {
		return nil, fmt.Errorf("%w: video %s", ErrEmptyResult, videoFileID)
	}
	return &ProcessingResult{
		ID:          uuid.NewString(),
		VideoFileID: videoFileID,
		ZipPath:     zipPath,
		FrameCount:  len(frameNames),
		FrameNames:  slices.Clone(frameNames),
		CreatedAt:   time.Now().UTC(),
	}, nil
}

func (r *ProcessingResult) Clone() *ProcessingResult {
	c := *r
	c.FrameNames = slices.Clone(r.FrameNames)
	return &c
}

// Latest returns the most recently created result, or nil for an empty slice.
func Latest(results []*ProcessingResult) *ProcessingResult {
	var latest *ProcessingResult
	for _, r := range results {
		if latest == nil || r.CreatedAt.After(latest.CreatedAt) {
			latest = r
		}
	}
	return latest
}
