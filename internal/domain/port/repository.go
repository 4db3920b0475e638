package port

import (
	"context"

	"github.com/fiapx/fiapx-video-processor/internal/domain/entity"
)

// VideoFileRepository persists videos. FindByID returns entity.ErrVideoFileNotFound for
// unknown ids, and Update returns entity.ErrConcurrentModification when the stored status
// does not allow the transition.
type VideoFileRepository interface {
	Save(ctx context.Context, video *entity.VideoFile) error
	FindByID(ctx context.Context, id string) (*entity.VideoFile, error)
	FindAll(ctx context.Context) ([]*entity.VideoFile, error)
	FindByUserID(ctx context.Context, userID string) ([]*entity.VideoFile, error)
	Update(ctx context.Context, video *entity.VideoFile) error
	Delete(ctx context.Context, id string) error
}

// ProcessingResultRepository persists results. FindByVideoFileID returns the most recent
// result and entity.ErrProcessingResultNotFound when there is none.
type ProcessingResultRepository interface {
	Save(ctx context.Context, result *entity.ProcessingResult) error
	FindByID(ctx context.Context, id string) (*entity.ProcessingResult, error)
	FindByVideoFileID(ctx context.Context, videoFileID string) (*entity.ProcessingResult, error)
	FindAll(ctx context.Context) ([]*entity.ProcessingResult, error)
	Delete(ctx context.Context, id string) error
}
