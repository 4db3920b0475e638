package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/fiapx/fiapx-video-processor/internal/domain/entity"
)

// VideoFileRepository is an in-memory implementation of port.VideoFileRepository.
// Entities are copied on the way in and out so callers never share state with the store.
type VideoFileRepository struct {
	mu     sync.RWMutex
	videos map[string]*entity.VideoFile
}

func NewVideoFileRepository() *VideoFileRepository {
	return &VideoFileRepository{videos: make(map[string]*entity.VideoFile)}
}

func (r *VideoFileRepository) Save(_ context.Context, video *entity.VideoFile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.videos[video.ID] = video.Clone()
	return nil
}

func (r *VideoFileRepository) FindByID(_ context.Context, id string) (*entity.VideoFile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	v, ok := r.videos[id]
	if !ok {
		return nil, entity.VideoFileNotFound(id)
	}
	return v.Clone(), nil
}

func (r *VideoFileRepository) FindAll(_ context.Context) ([]*entity.VideoFile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.collect(func(*entity.VideoFile) bool { return true }), nil
}

func (r *VideoFileRepository) FindByUserID(_ context.Context, userID string) ([]*entity.VideoFile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.collect(func(v *entity.VideoFile) bool { return v.UserID == userID }), nil
}

// Update applies only when the stored status is the legal predecessor of the new one, or
// already equal to it for anything but a PROCESSING claim.
func (r *VideoFileRepository) Update(_ context.Context, video *entity.VideoFile) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.videos[video.ID]
	if !ok {
		return entity.VideoFileNotFound(video.ID)
	}
	prev, _ := video.Status().PreviousStatus()
	if current := stored.Status(); current != prev && current != video.Status().RewritableFrom() {
		return fmt.Errorf("%w: %s is %s", entity.ErrConcurrentModification, video.ID, current)
	}

	r.videos[video.ID] = video.Clone()
	return nil
}

func (r *VideoFileRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.videos, id)
	return nil
}

func (r *VideoFileRepository) collect(keep func(*entity.VideoFile) bool) []*entity.VideoFile {
	out := make([]*entity.VideoFile, 0, len(r.videos))
	for _, v := range r.videos {
		if keep(v) {
			out = append(out, v.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UploadedAt.After(out[j].UploadedAt) })
	return out
}
