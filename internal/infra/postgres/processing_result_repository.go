package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/fiapx/fiapx-video-processor/internal/domain/entity"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const resultColumns = `id, video_file_id, zip_path, frame_count, frame_names, created_at`

type ProcessingResultRepository struct {
	pool *pgxpool.Pool
}

func NewProcessingResultRepository(pool *pgxpool.Pool) *ProcessingResultRepository {
	return &ProcessingResultRepository{pool: pool}
}

func (r *ProcessingResultRepository) Save(ctx context.Context, res *entity.ProcessingResult) error {
	query := `INSERT INTO processing_results (` + resultColumns + `) VALUES ($1,$2,$3,$4,$5,$6)`

	_, err := r.pool.Exec(ctx, query,
		res.ID, res.VideoFileID, res.ZipPath, res.FrameCount, res.FrameNames, res.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert processing result: %w", err)
	}
	return nil
}

func (r *ProcessingResultRepository) FindByID(ctx context.Context, id string) (*entity.ProcessingResult, error) {
	query := `SELECT ` + resultColumns + ` FROM processing_results WHERE id=$1`

	res, err := scanResult(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, entity.ProcessingResultNotFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("find processing result by id: %w", err)
	}
	return res, nil
}

func (r *ProcessingResultRepository) FindByVideoFileID(ctx context.Context, videoFileID string) (*entity.ProcessingResult, error) {
	query := `SELECT ` + resultColumns + ` FROM processing_results
		WHERE video_file_id=$1 ORDER BY created_at DESC LIMIT 1`

	res, err := scanResult(r.pool.QueryRow(ctx, query, videoFileID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, entity.ProcessingResultNotFound("for video " + videoFileID)
	}
	if err != nil {
		return nil, fmt.Errorf("find processing result by video: %w", err)
	}
	return res, nil
}

func (r *ProcessingResultRepository) FindAll(ctx context.Context) ([]*entity.ProcessingResult, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+resultColumns+` FROM processing_results ORDER BY created_at DESC`)
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
	if _, err := r.pool.Exec(ctx, `DELETE FROM processing_results WHERE id=$1`, id); err != nil {
		return fmt.Errorf("delete processing result: %w", err)
	}
	return nil
}

func scanResult(row pgx.Row) (*entity.ProcessingResult, error) {
	res := &entity.ProcessingResult{}
	err := row.Scan(&res.ID, &res.VideoFileID, &res.ZipPath, &res.FrameCount, &res.FrameNames, &res.CreatedAt)
	if err != nil {
		return nil, err
	}
	return res, nil
}
