package entity

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidBatch             = errors.New("invalid batch")
	ErrMissingUser              = errors.New("user id is required")
	ErrVideoFileNotFound        = errors.New("video file not found")
	ErrProcessingResultNotFound = errors.New("processing result not found")
	ErrInvalidFileFormat        = errors.New("invalid file format")
	ErrInvalidFileSize          = errors.New("invalid file size")
	ErrFileSizeExceeded         = errors.New("file size exceeded")
	ErrInvalidStatusTransition  = errors.New("invalid status transition")
	ErrEmptyResult              = errors.New("processing result must contain at least one frame")
	ErrVideoProcessing          = errors.New("video processing failed")

	// ErrConcurrentModification is returned by repositories when the stored
	// status no longer allows the requested transition.
	ErrConcurrentModification = errors.New("video file was modified concurrently")
)

// IsValidation reports whether err should be surfaced to callers as a bad request.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidBatch) ||
		errors.Is(err, ErrMissingUser) ||
		errors.Is(err, ErrInvalidFileFormat) ||
		errors.Is(err, ErrInvalidFileSize) ||
		errors.Is(err, ErrFileSizeExceeded)
}

// IsNotFound reports whether err refers to a missing video or result.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrVideoFileNotFound) || errors.Is(err, ErrProcessingResultNotFound)
}

type notFoundError struct {
	msg  string
	kind error
}

func (e *notFoundError) Error() string { return e.msg }
func (e *notFoundError) Unwrap() error { return e.kind }

// VideoFileNotFound reports a missing video; it matches ErrVideoFileNotFound.
func VideoFileNotFound(id string) error {
	return &notFoundError{msg: fmt.Sprintf("video file with id %s not found", id), kind: ErrVideoFileNotFound}
}

// ProcessingResultNotFound reports a missing result; it matches ErrProcessingResultNotFound.
func ProcessingResultNotFound(ref string) error {
	return &notFoundError{msg: fmt.Sprintf("processing result %s not found", ref), kind: ErrProcessingResultNotFound}
}
