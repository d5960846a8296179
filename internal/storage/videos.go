package storage

import (
	"context"
	"sort"
	"strings"

	"viewtube/internal/models"
)

// CreateVideo publishes an upload under its channel.
func (s *Storage) CreateVideo(ctx context.Context, params CreateVideoParams) (models.Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	channel, ok := s.data.Channels[params.ChannelID]
	if !ok {
		return models.Video{}, NotFoundf("channel %s not found", params.ChannelID)
	}
	if channel.OwnerID != params.UploaderID {
		return models.Video{}, Forbiddenf("user %s does not own channel %s", params.UploaderID, channel.ID)
	}

	id, err := generateID()
	if err != nil {
		return models.Video{}, Upstreamf(err, "generate video id")
	}
	now := s.now()
	video := models.Video{
		ID:          id,
		ChannelID:   channel.ID,
		UploaderID:  params.UploaderID,
		Title:       strings.TrimSpace(params.Title),
		Description: strings.TrimSpace(params.Description),
		Category:    normalizeCategory(params.Category),
		Thumbnail:   params.Thumbnail,
		Media:       params.Media,
		LikedBy:     []string{},
		DislikedBy:  []string{},
		SeedTag:     strings.TrimSpace(params.SeedTag),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	updated := cloneDataset(s.data)
	updated.Videos[video.ID] = video
	if err := s.persistDataset(updated); err != nil {
		return models.Video{}, Upstreamf(err, "persist video")
	}
	s.data = updated
	return video, nil
}

// GetVideo fetches a video by ID.
func (s *Storage) GetVideo(ctx context.Context, id string) (models.Video, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	video, ok := s.data.Videos[id]
	if !ok {
		return models.Video{}, NotFoundf("video %s not found", id)
	}
	return video, nil
}

// ListVideos returns videos matching the options. A search query matches
// titles case-insensitively and always orders by views descending; otherwise
// the requested sort applies, defaulting to latest first.
func (s *Storage) ListVideos(ctx context.Context, opts VideoListOptions) ([]models.Video, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := lowercaser.String(strings.TrimSpace(opts.Query))
	category := normalizeCategory(opts.Category)

	videos := make([]models.Video, 0, len(s.data.Videos))
	for _, video := range s.data.Videos {
		if opts.ChannelID != "" && video.ChannelID != opts.ChannelID {
			continue
		}
		if category != "" && video.Category != category {
			continue
		}
		if opts.SeedTag != "" && video.SeedTag != opts.SeedTag {
			continue
		}
		if query != "" && !strings.Contains(lowercaser.String(video.Title), query) {
			continue
		}
		videos = append(videos, video)
	}

	sortVideos(videos, opts)
	return videos, nil
}

func sortVideos(videos []models.Video, opts VideoListOptions) {
	byViews := func(i, j int) bool {
		if videos[i].Views == videos[j].Views {
			return videos[i].CreatedAt.After(videos[j].CreatedAt)
		}
		return videos[i].Views > videos[j].Views
	}
	if opts.Query != "" {
		sort.Slice(videos, byViews)
		return
	}
	switch opts.Sort {
	case SortOldest:
		sort.Slice(videos, func(i, j int) bool {
			if videos[i].CreatedAt.Equal(videos[j].CreatedAt) {
				return videos[i].ID < videos[j].ID
			}
			return videos[i].CreatedAt.Before(videos[j].CreatedAt)
		})
	case SortPopular:
		sort.Slice(videos, byViews)
	default:
		sort.Slice(videos, func(i, j int) bool {
			if videos[i].CreatedAt.Equal(videos[j].CreatedAt) {
				return videos[i].ID < videos[j].ID
			}
			return videos[i].CreatedAt.After(videos[j].CreatedAt)
		})
	}
}

// UpdateVideo applies the optional mutations to the video metadata.
func (s *Storage) UpdateVideo(ctx context.Context, id string, update VideoUpdate) (models.Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	video, ok := s.data.Videos[id]
	if !ok {
		return models.Video{}, NotFoundf("video %s not found", id)
	}
	if update.Title != nil {
		trimmed := strings.TrimSpace(*update.Title)
		if trimmed == "" {
			return models.Video{}, Validationf("title must not be empty")
		}
		video.Title = trimmed
	}
	if update.Description != nil {
		video.Description = strings.TrimSpace(*update.Description)
	}
	if update.Category != nil {
		video.Category = normalizeCategory(*update.Category)
	}
	if update.Thumbnail != nil {
		video.Thumbnail = *update.Thumbnail
	}
	video.UpdatedAt = s.now()

	updated := cloneDataset(s.data)
	updated.Videos[video.ID] = video
	if err := s.persistDataset(updated); err != nil {
		return models.Video{}, Upstreamf(err, "persist video")
	}
	s.data = updated
	return video, nil
}

// DeleteVideo removes the video and its comments, returning the removed
// record so the caller can release the media objects.
func (s *Storage) DeleteVideo(ctx context.Context, id string) (models.Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	video, ok := s.data.Videos[id]
	if !ok {
		return models.Video{}, NotFoundf("video %s not found", id)
	}

	updated := cloneDataset(s.data)
	delete(updated.Videos, video.ID)
	for commentID, comment := range updated.Comments {
		if comment.VideoID == video.ID {
			delete(updated.Comments, commentID)
		}
	}
	if err := s.persistDataset(updated); err != nil {
		return models.Video{}, Upstreamf(err, "persist video delete")
	}
	s.data = updated
	return video, nil
}

// AddView increments the view counter.
func (s *Storage) AddView(ctx context.Context, id string) (models.Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	video, ok := s.data.Videos[id]
	if !ok {
		return models.Video{}, NotFoundf("video %s not found", id)
	}
	video.Views++
	video.UpdatedAt = s.now()

	updated := cloneDataset(s.data)
	updated.Videos[video.ID] = video
	if err := s.persistDataset(updated); err != nil {
		return models.Video{}, Upstreamf(err, "persist view")
	}
	s.data = updated
	return video, nil
}

// ToggleReaction moves the viewer between the none, like, and dislike states
// in one atomic step. Requesting the state the viewer already holds clears
// it; requesting the opposite state swaps the membership and both counters.
// Counters never drop below zero.
func (s *Storage) ToggleReaction(ctx context.Context, videoID, userID string, reaction models.Reaction) (models.Video, error) {
	if reaction != models.ReactionLike && reaction != models.ReactionDislike {
		return models.Video{}, Validationf("unsupported reaction %q", reaction)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	video, ok := s.data.Videos[videoID]
	if !ok {
		return models.Video{}, NotFoundf("video %s not found", videoID)
	}
	if _, ok := s.data.Users[userID]; !ok {
		return models.Video{}, NotFoundf("user %s not found", userID)
	}

	video = applyReaction(video, userID, reaction)
	video.UpdatedAt = s.now()

	updated := cloneDataset(s.data)
	updated.Videos[video.ID] = video
	if err := s.persistDataset(updated); err != nil {
		return models.Video{}, Upstreamf(err, "persist reaction")
	}
	s.data = updated
	return video, nil
}

func applyReaction(video models.Video, userID string, reaction models.Reaction) models.Video {
	current := video.ReactionBy(userID)
	video.LikedBy = removeID(video.LikedBy, userID)
	video.DislikedBy = removeID(video.DislikedBy, userID)

	switch {
	case current == reaction:
		// Toggling off: membership already cleared above.
	case reaction == models.ReactionLike:
		video.LikedBy = append(video.LikedBy, userID)
	case reaction == models.ReactionDislike:
		video.DislikedBy = append(video.DislikedBy, userID)
	}

	video.Likes = len(video.LikedBy)
	video.Dislikes = len(video.DislikedBy)
	return video
}

func removeID(ids []string, id string) []string {
	filtered := make([]string, 0, len(ids))
	for _, existing := range ids {
		if existing != id {
			filtered = append(filtered, existing)
		}
	}
	return filtered
}

// DeleteVideosBySeedTag removes every video carrying the tag along with
// their comments. The seed tool uses it to purge previously planted fixtures.
func (s *Storage) DeleteVideosBySeedTag(ctx context.Context, seedTag string) ([]models.Video, error) {
	tag := strings.TrimSpace(seedTag)
	if tag == "" {
		return nil, Validationf("seed tag must not be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	updated := cloneDataset(s.data)
	var removed []models.Video
	for videoID, video := range updated.Videos {
		if video.SeedTag != tag {
			continue
		}
		removed = append(removed, video)
		delete(updated.Videos, videoID)
		for commentID, comment := range updated.Comments {
			if comment.VideoID == videoID {
				delete(updated.Comments, commentID)
			}
		}
	}
	if len(removed) == 0 {
		return nil, nil
	}
	sort.Slice(removed, func(i, j int) bool { return removed[i].ID < removed[j].ID })

	if err := s.persistDataset(updated); err != nil {
		return nil, Upstreamf(err, "persist seed purge")
	}
	s.data = updated
	return removed, nil
}
