package storage

import (
	"context"
	"sort"
	"strings"

	"viewtube/internal/models"
)

// CreateComment attaches a remark to a video.
func (s *Storage) CreateComment(ctx context.Context, videoID, authorID, body string) (models.Comment, error) {
	trimmed := strings.TrimSpace(body)
	if trimmed == "" {
		return models.Comment{}, Validationf("comment body must not be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data.Videos[videoID]; !ok {
		return models.Comment{}, NotFoundf("video %s not found", videoID)
	}
	if _, ok := s.data.Users[authorID]; !ok {
		return models.Comment{}, NotFoundf("user %s not found", authorID)
	}

	id, err := generateID()
	if err != nil {
		return models.Comment{}, Upstreamf(err, "generate comment id")
	}
	now := s.now()
	comment := models.Comment{
		ID:        id,
		VideoID:   videoID,
		AuthorID:  authorID,
		Body:      trimmed,
		CreatedAt: now,
		UpdatedAt: now,
	}

	updated := cloneDataset(s.data)
	updated.Comments[comment.ID] = comment
	if err := s.persistDataset(updated); err != nil {
		return models.Comment{}, Upstreamf(err, "persist comment")
	}
	s.data = updated
	return comment, nil
}

// GetComment fetches a comment by ID.
func (s *Storage) GetComment(ctx context.Context, id string) (models.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	comment, ok := s.data.Comments[id]
	if !ok {
		return models.Comment{}, NotFoundf("comment %s not found", id)
	}
	return comment, nil
}

// ListVideoComments returns a video's comments ordered newest first.
func (s *Storage) ListVideoComments(ctx context.Context, videoID string) ([]models.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.data.Videos[videoID]; !ok {
		return nil, NotFoundf("video %s not found", videoID)
	}
	comments := make([]models.Comment, 0)
	for _, comment := range s.data.Comments {
		if comment.VideoID == videoID {
			comments = append(comments, comment)
		}
	}
	sort.Slice(comments, func(i, j int) bool {
		if comments[i].CreatedAt.Equal(comments[j].CreatedAt) {
			return comments[i].ID < comments[j].ID
		}
		return comments[i].CreatedAt.After(comments[j].CreatedAt)
	})
	return comments, nil
}

// CountVideoComments returns the number of comments on a video.
func (s *Storage) CountVideoComments(ctx context.Context, videoID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, comment := range s.data.Comments {
		if comment.VideoID == videoID {
			count++
		}
	}
	return count, nil
}

// UpdateComment replaces the comment body.
func (s *Storage) UpdateComment(ctx context.Context, id, body string) (models.Comment, error) {
	trimmed := strings.TrimSpace(body)
	if trimmed == "" {
		return models.Comment{}, Validationf("comment body must not be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	comment, ok := s.data.Comments[id]
	if !ok {
		return models.Comment{}, NotFoundf("comment %s not found", id)
	}
	comment.Body = trimmed
	comment.UpdatedAt = s.now()

	updated := cloneDataset(s.data)
	updated.Comments[comment.ID] = comment
	if err := s.persistDataset(updated); err != nil {
		return models.Comment{}, Upstreamf(err, "persist comment")
	}
	s.data = updated
	return comment, nil
}

// DeleteComment removes a comment.
func (s *Storage) DeleteComment(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data.Comments[id]; !ok {
		return NotFoundf("comment %s not found", id)
	}
	updated := cloneDataset(s.data)
	delete(updated.Comments, id)
	if err := s.persistDataset(updated); err != nil {
		return Upstreamf(err, "persist comment delete")
	}
	s.data = updated
	return nil
}
