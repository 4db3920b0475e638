package ffmpeg

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

type ExtractorConfig struct {
	FFmpegPath  string
	FFprobePath string
	FPS         int
	Format      string
}

type Extractor struct {
	cfg    ExtractorConfig
	logger *zap.Logger
}

func NewExtractor(cfg ExtractorConfig, logger *zap.Logger) *Extractor {
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = "ffmpeg"
	}
	if cfg.FFprobePath == "" {
		cfg.FFprobePath = "ffprobe"
	}
	if cfg.FPS <= 0 {
		cfg.FPS = 1
	}
	if cfg.Format == "" {
		cfg.Format = "png"
	}
	return &Extractor{cfg: cfg, logger: logger.With(zap.String("component", "ffmpeg"))}
}

// ExtractFrames samples the video at the configured fps into outputDir and returns the
// frame paths sorted by name, which is extraction order.
func (e *Extractor) ExtractFrames(ctx context.Context, videoPath string, outputDir string) ([]string, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create frames dir: %w", err)
	}

	duration, err := e.videoDuration(ctx, videoPath)
	if err != nil {
		e.logger.Debug("could not get video duration", zap.String("video", videoPath), zap.Error(err))
	}

	framePattern := filepath.Join(outputDir, fmt.Sprintf("frame_%%04d.%s", e.cfg.Format))
	cmd := exec.CommandContext(ctx, e.cfg.FFmpegPath,
		"-i", videoPath,
		"-vf", fmt.Sprintf("fps=%d", e.cfg.FPS),
		"-y",
		framePattern,
	)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg error: %w, output: %s", err, string(output))
	}

	frames, err := filepath.Glob(filepath.Join(outputDir, "*."+e.cfg.Format))
	if err != nil {
		return nil, fmt.Errorf("glob frames: %w", err)
	}
	sort.Strings(frames)

	e.logger.Info("frames extracted",
		zap.String("video", videoPath),
		zap.Int("count", len(frames)),
		zap.Float64("video_duration", duration),
	)
	return frames, nil
}

func (e *Extractor) videoDuration(ctx context.Context, videoPath string) (float64, error) {
	cmd := exec.CommandContext(ctx, e.cfg.FFprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		videoPath,
	)
	output, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe: %w", err)
	}

	duration, err := strconv.ParseFloat(strings.TrimSpace(string(output)), 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration: %w", err)
	}
	return duration, nil
}
