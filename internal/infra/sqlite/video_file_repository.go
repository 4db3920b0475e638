package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fiapx/fiapx-video-processor/internal/domain/entity"
)

const videoFileColumns = `id, original_name, stored_name, extension, size, uploaded_at,
	user_id, status, processed_at, error_message`

// VideoFileRepository is a SQLite implementation of port.VideoFileRepository.
type VideoFileRepository struct {
	db *sql.DB
}

func NewVideoFileRepository(db *sql.DB) *VideoFileRepository {
	return &VideoFileRepository{db: db}
}

func (r *VideoFileRepository) Save(ctx context.Context, v *entity.VideoFile) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO video_files (`+videoFileColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		v.ID, v.OriginalName, v.StoredName, string(v.Extension), v.Size.Bytes(), toNanos(v.UploadedAt),
		v.UserID, string(v.Status()), processedAtValue(v), v.ErrorMessage(),
	)
	if err != nil {
		return fmt.Errorf("insert video file: %w", err)
	}
	return nil
}

func (r *VideoFileRepository) FindByID(ctx context.Context, id string) (*entity.VideoFile, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+videoFileColumns+` FROM video_files WHERE id = ?`, id)
	v, err := scanVideoFile(row)
	if errors.Is(err, sql.ErrNoRows) {
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
	return r.query(ctx, `SELECT `+videoFileColumns+` FROM video_files WHERE user_id = ? ORDER BY uploaded_at DESC`, userID)
}

func (r *VideoFileRepository) Update(ctx context.Context, v *entity.VideoFile) error {
	prev, _ := v.Status().PreviousStatus()
	res, err := r.db.ExecContext(ctx, `UPDATE video_files
		SET status = ?, processed_at = ?, error_message = ?
		WHERE id = ? AND (status = ? OR status = ?)`,
		string(v.Status()), processedAtValue(v), v.ErrorMessage(),
		v.ID, string(prev), string(v.Status().RewritableFrom()),
	)
	if err != nil {
		return fmt.Errorf("update video file: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update video file: %w", err)
	}
	if n > 0 {
		return nil
	}

	var status string
	err = r.db.QueryRowContext(ctx, `SELECT status FROM video_files WHERE id = ?`, v.ID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.VideoFileNotFound(v.ID)
	}
	if err != nil {
		return fmt.Errorf("check video file status: %w", err)
	}
	return fmt.Errorf("%w: %s is %s", entity.ErrConcurrentModification, v.ID, status)
}

func (r *VideoFileRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM video_files WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete video file: %w", err)
	}
	return nil
}

func (r *VideoFileRepository) query(ctx context.Context, query string, args ...any) ([]*entity.VideoFile, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
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

type scanner interface {
	Scan(dest ...any) error
}

func scanVideoFile(s scanner) (*entity.VideoFile, error) {
	var (
		id, originalName, storedName, extension, userID, status, errorMessage string
		size, uploadedAt                                                      int64
		processedAt                                                           sql.NullInt64
	)
	if err := s.Scan(&id, &originalName, &storedName, &extension, &size, &uploadedAt,
		&userID, &status, &processedAt, &errorMessage); err != nil {
		return nil, err
	}

	var processed *time.Time
	if processedAt.Valid {
		t := fromNanos(processedAt.Int64)
		processed = &t
	}
	return entity.RestoreVideoFile(id, originalName, storedName, extension, size, fromNanos(uploadedAt),
		userID, entity.VideoStatus(status), processed, errorMessage), nil
}

func processedAtValue(v *entity.VideoFile) sql.NullInt64 {
	if v.ProcessedAt() == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toNanos(*v.ProcessedAt()), Valid: true}
}
