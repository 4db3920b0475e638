package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fiapx/fiapx-video-processor/internal/domain/entity"
)

const resultColumns = `id, video_file_id, zip_path, frame_count, frame_names, created_at`

type ProcessingResultRepository struct {
	db *sql.DB
}

func NewProcessingResultRepository(db *sql.DB) *ProcessingResultRepository {
	return &ProcessingResultRepository{db: db}
}

func (r *ProcessingResultRepository) Save(ctx context.Context, res *entity.ProcessingResult) error {
	names, err := json.Marshal(res.FrameNames)
	if err != nil {
		return fmt.Errorf("encode frame names: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `INSERT INTO processing_results (`+resultColumns+`)
		VALUES (?, ?, ?, ?, ?, ?)`,
		res.ID, res.VideoFileID, res.ZipPath, res.FrameCount, string(names), toNanos(res.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert processing result: %w", err)
	}
	return nil
}

func (r *ProcessingResultRepository) FindByID(ctx context.Context, id string) (*entity.ProcessingResult, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+resultColumns+` FROM processing_results WHERE id = ?`, id)
	res, err := scanResult(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.ProcessingResultNotFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("find processing result by id: %w", err)
	}
	return res, nil
}

func (r *ProcessingResultRepository) FindByVideoFileID(ctx context.Context, videoFileID string) (*entity.ProcessingResult, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+resultColumns+` FROM processing_results
		WHERE video_file_id = ? ORDER BY created_at DESC LIMIT 1`, videoFileID)
	res, err := scanResult(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.ProcessingResultNotFound("for video " + videoFileID)
	}
	if err != nil {
		return nil, fmt.Errorf("find processing result by video: %w", err)
	}
	return res, nil
}

func (r *ProcessingResultRepository) FindAll(ctx context.Context) ([]*entity.ProcessingResult, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+resultColumns+` FROM processing_results ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query processing results: %w", err)
	}
	defer rows.Close()

	var results []*entity.ProcessingResult
	for rows.Next() {
		res, err := scanResult(rows)
		if err != nil {
			return nil, fmt.Errorf("scan processing result: %w", err)
		}
		results = append(results, res)
	}
	return results, rows.Err()
}

func (r *ProcessingResultRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM processing_results WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete processing result: %w", err)
	}
	return nil
}

func scanResult(s scanner) (*entity.ProcessingResult, error) {
	var (
		res       entity.ProcessingResult
		names     string
		createdAt int64
	)
	if err := s.Scan(&res.ID, &res.VideoFileID, &res.ZipPath, &res.FrameCount, &names, &createdAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(names), &res.FrameNames); err != nil {
		return nil, fmt.Errorf("decode frame names: %w", err)
	}
	res.CreatedAt = fromNanos(createdAt)
	return &res, nil
}
