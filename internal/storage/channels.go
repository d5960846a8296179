package storage

import (
	"context"
	"sort"
	"strings"

	"viewtube/internal/models"
)

// CreateChannel opens the owner's channel. Each account may own at most one
// channel; a second attempt fails with a conflict.
func (s *Storage) CreateChannel(ctx context.Context, params CreateChannelParams) (models.Channel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	owner, ok := s.data.Users[params.OwnerID]
	if !ok {
		return models.Channel{}, NotFoundf("user %s not found", params.OwnerID)
	}
	for _, existing := range s.data.Channels {
		if existing.OwnerID == owner.ID {
			return models.Channel{}, Conflictf("user %s already owns a channel", owner.ID)
		}
	}

	id, err := generateID()
	if err != nil {
		return models.Channel{}, Upstreamf(err, "generate channel id")
	}
	now := s.now()
	channel := models.Channel{
		ID:           id,
		OwnerID:      owner.ID,
		Title:        strings.TrimSpace(params.Title),
		Description:  strings.TrimSpace(params.Description),
		Category:     normalizeCategory(params.Category),
		Banner:       params.Banner,
		SubscribedBy: []string{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	owner.ChannelID = channel.ID
	owner.UpdatedAt = now

	updated := cloneDataset(s.data)
	updated.Channels[channel.ID] = channel
	updated.Users[owner.ID] = owner
	if err := s.persistDataset(updated); err != nil {
		return models.Channel{}, Upstreamf(err, "persist channel")
	}
	s.data = updated
	return channel, nil
}

// GetChannel fetches a channel by ID.
func (s *Storage) GetChannel(ctx context.Context, id string) (models.Channel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	channel, ok := s.data.Channels[id]
	if !ok {
		return models.Channel{}, NotFoundf("channel %s not found", id)
	}
	return channel, nil
}

// ChannelByOwner fetches the channel owned by ownerID.
func (s *Storage) ChannelByOwner(ctx context.Context, ownerID string) (models.Channel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, channel := range s.data.Channels {
		if channel.OwnerID == ownerID {
			return channel, nil
		}
	}
	return models.Channel{}, NotFoundf("user %s owns no channel", ownerID)
}

// ListChannels returns every channel ordered newest first.
func (s *Storage) ListChannels(ctx context.Context) ([]models.Channel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	channels := make([]models.Channel, 0, len(s.data.Channels))
	for _, channel := range s.data.Channels {
		channels = append(channels, channel)
	}
	sort.Slice(channels, func(i, j int) bool {
		if channels[i].CreatedAt.Equal(channels[j].CreatedAt) {
			return channels[i].ID < channels[j].ID
		}
		return channels[i].CreatedAt.After(channels[j].CreatedAt)
	})
	return channels, nil
}

// UpdateChannel applies the optional channel mutations.
func (s *Storage) UpdateChannel(ctx context.Context, id string, update ChannelUpdate) (models.Channel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	channel, ok := s.data.Channels[id]
	if !ok {
		return models.Channel{}, NotFoundf("channel %s not found", id)
	}
	if update.Title != nil {
		trimmed := strings.TrimSpace(*update.Title)
		if trimmed == "" {
			return models.Channel{}, Validationf("title must not be empty")
		}
		channel.Title = trimmed
	}
	if update.Description != nil {
		channel.Description = strings.TrimSpace(*update.Description)
	}
	if update.Category != nil {
		channel.Category = normalizeCategory(*update.Category)
	}
	if update.Banner != nil {
		channel.Banner = *update.Banner
	}
	channel.UpdatedAt = s.now()

	updated := cloneDataset(s.data)
	updated.Channels[channel.ID] = channel
	if err := s.persistDataset(updated); err != nil {
		return models.Channel{}, Upstreamf(err, "persist channel")
	}
	s.data = updated
	return channel, nil
}

// DeleteChannel removes the channel, all of its videos, their comments, and
// the owner's back-reference in one persisted step. The cascade is returned
// so the caller can release the stored media objects afterwards.
func (s *Storage) DeleteChannel(ctx context.Context, id string) (ChannelCascade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	channel, ok := s.data.Channels[id]
	if !ok {
		return ChannelCascade{}, NotFoundf("channel %s not found", id)
	}

	updated := cloneDataset(s.data)
	delete(updated.Channels, channel.ID)

	cascade := ChannelCascade{Channel: channel}
	for videoID, video := range updated.Videos {
		if video.ChannelID != channel.ID {
			continue
		}
		cascade.Videos = append(cascade.Videos, video)
		delete(updated.Videos, videoID)
		for commentID, comment := range updated.Comments {
			if comment.VideoID == videoID {
				delete(updated.Comments, commentID)
			}
		}
	}
	sort.Slice(cascade.Videos, func(i, j int) bool {
		return cascade.Videos[i].ID < cascade.Videos[j].ID
	})

	if owner, ok := updated.Users[channel.OwnerID]; ok && owner.ChannelID == channel.ID {
		owner.ChannelID = ""
		owner.UpdatedAt = s.now()
		updated.Users[owner.ID] = owner
	}

	if err := s.persistDataset(updated); err != nil {
		return ChannelCascade{}, Upstreamf(err, "persist channel delete")
	}
	s.data = updated
	return cascade, nil
}

// Subscribe records userID as a channel subscriber. Subscribing twice is a
// no-op.
func (s *Storage) Subscribe(ctx context.Context, channelID, userID string) (models.Channel, error) {
	return s.setSubscription(channelID, userID, true)
}

// Unsubscribe removes userID from the channel's subscribers. Unsubscribing
// when not subscribed is a no-op.
func (s *Storage) Unsubscribe(ctx context.Context, channelID, userID string) (models.Channel, error) {
	return s.setSubscription(channelID, userID, false)
}

func (s *Storage) setSubscription(channelID, userID string, subscribed bool) (models.Channel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	channel, ok := s.data.Channels[channelID]
	if !ok {
		return models.Channel{}, NotFoundf("channel %s not found", channelID)
	}
	if _, ok := s.data.Users[userID]; !ok {
		return models.Channel{}, NotFoundf("user %s not found", userID)
	}
	if subscribed && channel.OwnerID == userID {
		return models.Channel{}, Forbiddenf("owners cannot subscribe to their own channel")
	}

	if channel.IsSubscribed(userID) == subscribed {
		return channel, nil
	}

	members := append([]string(nil), channel.SubscribedBy...)
	if subscribed {
		members = append(members, userID)
	} else {
		filtered := members[:0]
		for _, id := range members {
			if id != userID {
				filtered = append(filtered, id)
			}
		}
		members = filtered
	}
	channel.SubscribedBy = members
	channel.Subscribers = len(members)
	channel.UpdatedAt = s.now()

	updated := cloneDataset(s.data)
	updated.Channels[channel.ID] = channel
	if err := s.persistDataset(updated); err != nil {
		return models.Channel{}, Upstreamf(err, "persist subscription")
	}
	s.data = updated
	return channel, nil
}
