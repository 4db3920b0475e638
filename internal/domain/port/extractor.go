package port

import "context"

// FrameExtractor writes frames of videoPath into outputDir and returns their paths in extraction order.
// An empty slice is not an error.
type FrameExtractor interface {
	ExtractFrames(ctx context.Context, videoPath string, outputDir string) ([]string, error)
}
