package storage

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"

	"viewtube/internal/models"
)

const commentColumns = `id, video_id, author_id, body, created_at, updated_at`

func scanComment(row pgx.Row) (models.Comment, error) {
	var comment models.Comment
	err := row.Scan(&comment.ID, &comment.VideoID, &comment.AuthorID, &comment.Body,
		&comment.CreatedAt, &comment.UpdatedAt)
	return comment, err
}

// CreateComment attaches a remark to a video.
func (r *PostgresRepository) CreateComment(ctx context.Context, videoID, authorID, body string) (models.Comment, error) {
	trimmed := strings.TrimSpace(body)
	if trimmed == "" {
		return models.Comment{}, Validationf("comment body must not be empty")
	}
	if _, err := r.GetVideo(ctx, videoID); err != nil {
		return models.Comment{}, err
	}
	if _, err := r.GetUser(ctx, authorID); err != nil {
		return models.Comment{}, err
	}
	id, err := generateID()
	if err != nil {
		return models.Comment{}, Upstreamf(err, "generate comment id")
	}
	now := r.now()
	comment := models.Comment{
		ID:        id,
		VideoID:   videoID,
		AuthorID:  authorID,
		Body:      trimmed,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := r.pool.Exec(ctx, `
INSERT INTO comments (id, video_id, author_id, body, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $5)`,
		comment.ID, comment.VideoID, comment.AuthorID, comment.Body, now); err != nil {
		return models.Comment{}, Upstreamf(err, "insert comment")
	}
	return comment, nil
}

// GetComment fetches a comment by ID.
func (r *PostgresRepository) GetComment(ctx context.Context, id string) (models.Comment, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+commentColumns+` FROM comments WHERE id = $1`, id)
	comment, err := scanComment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Comment{}, NotFoundf("comment %s not found", id)
	}
	if err != nil {
		return models.Comment{}, Upstreamf(err, "query comment")
	}
	return comment, nil
}

// ListVideoComments returns a video's comments ordered newest first.
func (r *PostgresRepository) ListVideoComments(ctx context.Context, videoID string) ([]models.Comment, error) {
	if _, err := r.GetVideo(ctx, videoID); err != nil {
		return nil, err
	}
	rows, err := r.pool.Query(ctx, `
SELECT `+commentColumns+` FROM comments WHERE video_id = $1 ORDER BY created_at DESC, id`, videoID)
	if err != nil {
		return nil, Upstreamf(err, "query comments")
	}
	defer rows.Close()

	comments := []models.Comment{}
	for rows.Next() {
		comment, err := scanComment(rows)
		if err != nil {
			return nil, Upstreamf(err, "scan comment")
		}
		comments = append(comments, comment)
	}
	if err := rows.Err(); err != nil {
		return nil, Upstreamf(err, "iterate comments")
	}
	return comments, nil
}

// CountVideoComments returns the number of comments on a video.
func (r *PostgresRepository) CountVideoComments(ctx context.Context, videoID string) (int, error) {
	var count int
	if err := r.pool.QueryRow(ctx, `
SELECT COUNT(*) FROM comments WHERE video_id = $1`, videoID).Scan(&count); err != nil {
		return 0, Upstreamf(err, "count comments")
	}
	return count, nil
}

// UpdateComment replaces the comment body.
func (r *PostgresRepository) UpdateComment(ctx context.Context, id, body string) (models.Comment, error) {
	trimmed := strings.TrimSpace(body)
	if trimmed == "" {
		return models.Comment{}, Validationf("comment body must not be empty")
	}
	now := r.now()
	tag, err := r.pool.Exec(ctx, `
UPDATE comments SET body = $2, updated_at = $3 WHERE id = $1`, id, trimmed, now)
	if err != nil {
		return models.Comment{}, Upstreamf(err, "update comment")
	}
	if tag.RowsAffected() == 0 {
		return models.Comment{}, NotFoundf("comment %s not found", id)
	}
	return r.GetComment(ctx, id)
}

// DeleteComment removes a comment.
func (r *PostgresRepository) DeleteComment(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM comments WHERE id = $1`, id)
	if err != nil {
		return Upstreamf(err, "delete comment")
	}
	if tag.RowsAffected() == 0 {
		return NotFoundf("comment %s not found", id)
	}
	return nil
}
