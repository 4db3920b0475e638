package port

import (
	"context"
	"io"
)

// FileStorage is the local filesystem used for uploads, frames and zip artifacts.
// DeleteFile and DeleteDir never fail: missing paths and I/O errors are only logged.
type FileStorage interface {
	Zipper
	SaveFile(ctx context.Context, r io.Reader, path string) (int64, error)
	DeleteFile(ctx context.Context, path string)
	DeleteDir(ctx context.Context, path string)
	FileExists(ctx context.Context, path string) bool
	FileSize(ctx context.Context, path string) (int64, error)
}

// ArtifactStore mirrors finished zip artifacts to object storage.
type ArtifactStore interface {
	UploadZip(ctx context.Context, objectKey string, reader io.Reader, size int64) error
	OpenZip(ctx context.Context, objectKey string) (io.ReadCloser, error)
}
