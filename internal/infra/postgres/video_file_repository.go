package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fiapx/fiapx-video-processor/internal/domain/entity"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const videoFileColumns = `id, original_name, stored_name, extension, size, uploaded_at,
	user_id, status, processed_at, error_message`

type VideoFileRepository struct {
	pool *pgxpool.Pool
}

func NewVideoFileRepository(pool *pgxpool.Pool) *VideoFileRepository {
	return &VideoFileRepository{pool: pool}
}

func (r *VideoFileRepository) Save(ctx context.Context, v *entity.VideoFile) error {
	query := `
		INSERT INTO video_files (` + videoFileColumns + `)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`

	_, err := r.pool.Exec(ctx, query,
		v.ID, v.OriginalName, v.StoredName, string(v.Extension), v.Size.Bytes(), v.UploadedAt,
		v.UserID, string(v.Status()), v.ProcessedAt(), v.ErrorMessage(),
	)
	if err != nil {
		return fmt.Errorf("insert video file: %w", err)
	}
	return nil
}

func (r *VideoFileRepository) FindByID(ctx context.Context, id string) (*entity.VideoFile, error) {
	query := `SELECT ` + videoFileColumns + ` FROM video_files WHERE id=$1`

	v, err := scanVideoFile(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, entity.VideoFileNotFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("find video file by id: %w", err)
	}
	return v, nil
}

func (r *VideoFileRepository) FindAll(ctx context.Context) ([]*entity.VideoFile, error) {
	return r.query(ctx, `SELECT `+videoFileColumns+` FROM video_files ORDER BY uploaded_at DESC`)
}

func (r *VideoFileRepository) FindByUserID(ctx context.Context, userID string) ([]*entity.VideoFile, error) {
	return r.query(ctx, `SELECT `+videoFileColumns+` FROM video_files WHERE user_id=$1 ORDER BY uploaded_at DESC`, userID)
}

// Update writes the lifecycle columns only when the stored status is the legal
// predecessor of the new status, or unchanged for anything but a PROCESSING claim.
func (r *VideoFileRepository) Update(ctx context.Context, v *entity.VideoFile) error {
	prev, _ := v.Status().PreviousStatus()
	query := `
		UPDATE video_files SET
			status=$2, processed_at=$3, error_message=$4
		WHERE id=$1 AND (status=$5 OR status=$6)`

	tag, err := r.pool.Exec(ctx, query,
		v.ID, string(v.Status()), v.ProcessedAt(), v.ErrorMessage(), string(prev),
		string(v.Status().RewritableFrom()),
	)
	if err != nil {
		return fmt.Errorf("update video file: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return r.explainMissedUpdate(ctx, v.ID)
	}
	return nil
}

func (r *VideoFileRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM video_files WHERE id=$1`, id); err != nil {
		return fmt.Errorf("delete video file: %w", err)
	}
	return nil
}

func (r *VideoFileRepository) explainMissedUpdate(ctx context.Context, id string) error {
	var status string
	err := r.pool.QueryRow(ctx, `SELECT status FROM video_files WHERE id=$1`, id).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return entity.VideoFileNotFound(id)
	}
	if err != nil {
		return fmt.Errorf("check video file status: %w", err)
	}
	return fmt.Errorf("%w: %s is %s", entity.ErrConcurrentModification, id, status)
}

func (r *VideoFileRepository) query(ctx context.Context, query string, args ...any) ([]*entity.VideoFile, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query video files: %w", err)
	}
	defer rows.Close()

	var videos []*entity.VideoFile
	for rows.Next() {
		v, err := scanVideoFile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan video file: %w", err)
		}
		videos = append(videos, v)
	}
	return videos, rows.Err()
}

func scanVideoFile(row pgx.Row) (*entity.VideoFile, error) {
	var (
		id, originalName, storedName, extension, userID, status, errorMessage string
		size                                                                  int64
		uploadedAt                                                            time.Time
		processedAt                                                           *time.Time
	)
	err := row.Scan(&id, &originalName, &storedName, &extension, &size, &uploadedAt,
		&userID, &status, &processedAt, &errorMessage)
	if err != nil {
		return nil, err
	}
	return entity.RestoreVideoFile(id, originalName, storedName, extension, size, uploadedAt,
		userID, entity.VideoStatus(status), processedAt, errorMessage), nil
}
