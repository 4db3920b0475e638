package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// LocalStorage keeps uploads, frames and zip artifacts on the local filesystem.
type LocalStorage struct {
	logger *zap.Logger
}

func NewLocalStorage(logger *zap.Logger) *LocalStorage {
	return &LocalStorage{logger: logger.With(zap.String("component", "storage"))}
}

// SaveFile copies r into path, creating parent directories, and returns the bytes written.
func (s *LocalStorage) SaveFile(_ context.Context, r io.Reader, path string) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, fmt.Errorf("create dir for %s: %w", path, err)
	}

	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", path, err)
	}

	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return 0, fmt.Errorf("write %s: %w", path, err)
	}
	return n, nil
}

// DeleteFile removes path. Missing files are ignored and other errors are logged.
func (s *LocalStorage) DeleteFile(_ context.Context, path string) {
	err := os.Remove(path)
	switch {
	case err == nil:
		s.logger.Debug("file deleted", zap.String("path", path))
	case errors.Is(err, fs.ErrNotExist):
		s.logger.Debug("file already gone", zap.String("path", path))
	default:
		s.logger.Warn("failed to delete file", zap.String("path", path), zap.Error(err))
	}
}

// DeleteDir removes path and everything under it. Errors are logged.
func (s *LocalStorage) DeleteDir(_ context.Context, path string) {
	if err := os.RemoveAll(path); err != nil {
		s.logger.Warn("failed to delete directory", zap.String("path", path), zap.Error(err))
		return
	}
	s.logger.Debug("directory deleted", zap.String("path", path))
}

func (s *LocalStorage) FileExists(_ context.Context, path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func (s *LocalStorage) FileSize(_ context.Context, path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("stat %s: %w", path, err)
	}
	return info.Size(), nil
}
