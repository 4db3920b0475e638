package storage

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestSaveFileAndSize(t *testing.T) {
	ctx := context.Background()
	s := NewLocalStorage(zaptest.NewLogger(t))
	path := filepath.Join(t.TempDir(), "uploads", "1_1_clip.mp4")

	n, err := s.SaveFile(ctx, strings.NewReader("video-bytes"), path)
	require.NoError(t, err)
	assert.EqualValues(t, 11, n)
	assert.True(t, s.FileExists(ctx, path))

	size, err := s.FileSize(ctx, path)
	require.NoError(t, err)
	assert.EqualValues(t, 11, size)

	_, err = s.FileSize(ctx, filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
	assert.False(t, s.FileExists(ctx, t.TempDir()))
}

func TestDeleteFileIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := NewLocalStorage(zaptest.NewLogger(t))
	path := filepath.Join(t.TempDir(), "frame_0001.png")
	require.NoError(t, os.WriteFile(path, []byte("png"), 0o644))

	s.DeleteFile(ctx, path)
	s.DeleteFile(ctx, path)

	assert.False(t, s.FileExists(ctx, path))
}

func TestCreateZip(t *testing.T) {
	ctx := context.Background()
	s := NewLocalStorage(zaptest.NewLogger(t))
	dir := t.TempDir()

	var frames []string
	for _, name := range []string{"frame_0001.png", "frame_0002.png"} {
		p := filepath.Join(dir, "frames", name)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(name), 0o644))
		frames = append(frames, p)
	}

	out := filepath.Join(dir, "outputs", "frames_1_1.zip")
	require.NoError(t, s.CreateZip(ctx, frames, out))

	r, err := zip.OpenReader(out)
	require.NoError(t, err)
	defer r.Close()

	require.Len(t, r.File, 2)
	assert.Equal(t, "frame_0001.png", r.File[0].Name)
	assert.Equal(t, "frame_0002.png", r.File[1].Name)
}

func TestCreateZipMissingFrame(t *testing.T) {
	s := NewLocalStorage(zaptest.NewLogger(t))
	err := s.CreateZip(context.Background(), []string{"/does/not/exist.png"}, filepath.Join(t.TempDir(), "x.zip"))
	assert.Error(t, err)
}

func TestCreateZipMissingFrameRemovesPartialZip(t *testing.T) {
	ctx := context.Background()
	s := NewLocalStorage(zaptest.NewLogger(t))
	dir := t.TempDir()

	good := filepath.Join(dir, "frame_0001.png")
	require.NoError(t, os.WriteFile(good, []byte("png"), 0o644))
	out := filepath.Join(dir, "outputs", "frames_1_1.zip")

	err := s.CreateZip(ctx, []string{good, filepath.Join(dir, "frame_0002.png")}, out)

	require.Error(t, err)
	assert.False(t, s.FileExists(ctx, out))
}

func TestDeleteDirRemovesFrames(t *testing.T) {
	ctx := context.Background()
	s := NewLocalStorage(zaptest.NewLogger(t))
	dir := filepath.Join(t.TempDir(), "1714564800000_1")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "frame_0001.png"), []byte("png"), 0o644))

	s.DeleteDir(ctx, dir)
	s.DeleteDir(ctx, dir)

	_, err := os.Stat(dir)
	assert.True(t, os.IsNotExist(err))
}
