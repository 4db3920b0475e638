package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/fiapx/fiapx-video-processor/internal/domain/entity"
)

type ProcessingResultRepository struct {
	mu      sync.RWMutex
	results map[string]*entity.ProcessingResult
}

func NewProcessingResultRepository() *ProcessingResultRepository {
	return &ProcessingResultRepository{results: make(map[string]*entity.ProcessingResult)}
}

func (r *ProcessingResultRepository) Save(_ context.Context, result *entity.ProcessingResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results[result.ID] = result.Clone()
	return nil
}

func (r *ProcessingResultRepository) FindByID(_ context.Context, id string) (*entity.ProcessingResult, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	res, ok := r.results[id]
	if !ok {
		return nil, entity.ProcessingResultNotFound(id)
	}
	return res.Clone(), nil
}

func (r *ProcessingResultRepository) FindByVideoFileID(_ context.Context, videoFileID string) (*entity.ProcessingResult, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matches []*entity.ProcessingResult
	for _, res := range r.results {
		if res.VideoFileID == videoFileID {
			matches = append(matches, res)
		}
	}

	latest := entity.Latest(matches)
	if latest == nil {
		return nil, entity.ProcessingResultNotFound("for video " + videoFileID)
	}
	return latest.Clone(), nil
}

func (r *ProcessingResultRepository) FindAll(_ context.Context) ([]*entity.ProcessingResult, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*entity.ProcessingResult, 0, len(r.results))
	for _, res := range r.results {
		out = append(out, res.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *ProcessingResultRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.results, id)
	return nil
}
