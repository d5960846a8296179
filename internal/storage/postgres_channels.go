package storage

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"

	"viewtube/internal/models"
)

const channelColumns = `c.id, c.owner_id, c.title, c.description, c.category,
c.banner_url, c.banner_public_id, c.subscribers, c.created_at, c.updated_at`

func scanChannel(row pgx.Row) (models.Channel, error) {
	var channel models.Channel
	err := row.Scan(&channel.ID, &channel.OwnerID, &channel.Title, &channel.Description,
		&channel.Category, &channel.Banner.URL, &channel.Banner.PublicID,
		&channel.Subscribers, &channel.CreatedAt, &channel.UpdatedAt)
	return channel, err
}

func (r *PostgresRepository) channelSubscribers(ctx context.Context, channelID string) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
SELECT user_id FROM channel_subscribers WHERE channel_id = $1 ORDER BY subscribed_at, user_id`, channelID)
	if err != nil {
		return nil, Upstreamf(err, "query channel subscribers")
	}
	defer rows.Close()

	members := []string{}
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, Upstreamf(err, "scan channel subscriber")
		}
		members = append(members, userID)
	}
	if err := rows.Err(); err != nil {
		return nil, Upstreamf(err, "iterate channel subscribers")
	}
	return members, nil
}

// CreateChannel opens the owner's channel. The unique index on owner_id makes
// the one-channel-per-owner rule hold under concurrent requests.
func (r *PostgresRepository) CreateChannel(ctx context.Context, params CreateChannelParams) (models.Channel, error) {
	if _, err := r.GetUser(ctx, params.OwnerID); err != nil {
		return models.Channel{}, err
	}
	id, err := generateID()
	if err != nil {
		return models.Channel{}, Upstreamf(err, "generate channel id")
	}
	now := r.now()
	channel := models.Channel{
		ID:           id,
		OwnerID:      params.OwnerID,
		Title:        strings.TrimSpace(params.Title),
		Description:  strings.TrimSpace(params.Description),
		Category:     normalizeCategory(params.Category),
		Banner:       params.Banner,
		SubscribedBy: []string{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	_, err = r.pool.Exec(ctx, `
INSERT INTO channels (id, owner_id, title, description, category, banner_url, banner_public_id, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)`,
		channel.ID, channel.OwnerID, channel.Title, channel.Description, channel.Category,
		channel.Banner.URL, channel.Banner.PublicID, now)
	if isUniqueViolation(err) {
		return models.Channel{}, Conflictf("user %s already owns a channel", params.OwnerID)
	}
	if err != nil {
		return models.Channel{}, Upstreamf(err, "insert channel")
	}
	return channel, nil
}

// GetChannel fetches a channel by ID, including its subscriber list.
func (r *PostgresRepository) GetChannel(ctx context.Context, id string) (models.Channel, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+channelColumns+` FROM channels c WHERE c.id = $1`, id)
	channel, err := scanChannel(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Channel{}, NotFoundf("channel %s not found", id)
	}
	if err != nil {
		return models.Channel{}, Upstreamf(err, "query channel")
	}
	channel.SubscribedBy, err = r.channelSubscribers(ctx, channel.ID)
	if err != nil {
		return models.Channel{}, err
	}
	return channel, nil
}

// ChannelByOwner fetches the channel owned by ownerID.
func (r *PostgresRepository) ChannelByOwner(ctx context.Context, ownerID string) (models.Channel, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+channelColumns+` FROM channels c WHERE c.owner_id = $1`, ownerID)
	channel, err := scanChannel(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Channel{}, NotFoundf("user %s owns no channel", ownerID)
	}
	if err != nil {
		return models.Channel{}, Upstreamf(err, "query channel")
	}
	channel.SubscribedBy, err = r.channelSubscribers(ctx, channel.ID)
	if err != nil {
		return models.Channel{}, err
	}
	return channel, nil
}

// ListChannels returns every channel ordered newest first.
func (r *PostgresRepository) ListChannels(ctx context.Context) ([]models.Channel, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+channelColumns+` FROM channels c ORDER BY c.created_at DESC, c.id`)
	if err != nil {
		return nil, Upstreamf(err, "query channels")
	}
	defer rows.Close()

	channels := []models.Channel{}
	for rows.Next() {
		channel, err := scanChannel(rows)
		if err != nil {
			return nil, Upstreamf(err, "scan channel")
		}
		channels = append(channels, channel)
	}
	if err := rows.Err(); err != nil {
		return nil, Upstreamf(err, "iterate channels")
	}
	for i := range channels {
		channels[i].SubscribedBy, err = r.channelSubscribers(ctx, channels[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return channels, nil
}

// UpdateChannel applies the optional channel mutations.
func (r *PostgresRepository) UpdateChannel(ctx context.Context, id string, update ChannelUpdate) (models.Channel, error) {
	channel, err := r.GetChannel(ctx, id)
	if err != nil {
		return models.Channel{}, err
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
	channel.UpdatedAt = r.now()

	tag, err := r.pool.Exec(ctx, `
UPDATE channels SET title = $2, description = $3, category = $4, banner_url = $5, banner_public_id = $6, updated_at = $7
WHERE id = $1`,
		channel.ID, channel.Title, channel.Description, channel.Category,
		channel.Banner.URL, channel.Banner.PublicID, channel.UpdatedAt)
	if err != nil {
		return models.Channel{}, Upstreamf(err, "update channel")
	}
	if tag.RowsAffected() == 0 {
		return models.Channel{}, NotFoundf("channel %s not found", id)
	}
	return channel, nil
}

// DeleteChannel removes the channel and relies on the ON DELETE CASCADE
// chain for videos, reactions, comments, and subscriber rows. The removed
// records are returned so the caller can release stored media objects.
func (r *PostgresRepository) DeleteChannel(ctx context.Context, id string) (ChannelCascade, error) {
	channel, err := r.GetChannel(ctx, id)
	if err != nil {
		return ChannelCascade{}, err
	}
	videos, err := r.ListVideos(ctx, VideoListOptions{ChannelID: id})
	if err != nil {
		return ChannelCascade{}, err
	}

	tag, err := r.pool.Exec(ctx, `DELETE FROM channels WHERE id = $1`, id)
	if err != nil {
		return ChannelCascade{}, Upstreamf(err, "delete channel")
	}
	if tag.RowsAffected() == 0 {
		return ChannelCascade{}, NotFoundf("channel %s not found", id)
	}
	return ChannelCascade{Channel: channel, Videos: videos}, nil
}

// Subscribe records userID as a channel subscriber and bumps the denormalised
// counter in the same transaction. Subscribing twice is a no-op.
func (r *PostgresRepository) Subscribe(ctx context.Context, channelID, userID string) (models.Channel, error) {
	if _, err := r.GetUser(ctx, userID); err != nil {
		return models.Channel{}, err
	}
	err := r.withTx(ctx, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `SELECT owner_id FROM channels WHERE id = $1 FOR UPDATE`, channelID)
		var ownerID string
		if err := row.Scan(&ownerID); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return NotFoundf("channel %s not found", channelID)
			}
			return Upstreamf(err, "lock channel")
		}
		if ownerID == userID {
			return Forbiddenf("owners cannot subscribe to their own channel")
		}
		tag, err := tx.Exec(ctx, `
INSERT INTO channel_subscribers (channel_id, user_id, subscribed_at)
VALUES ($1, $2, $3)
ON CONFLICT (channel_id, user_id) DO NOTHING`, channelID, userID, r.now())
		if err != nil {
			return Upstreamf(err, "insert subscription")
		}
		if tag.RowsAffected() == 0 {
			return nil
		}
		return execAffectingOne(ctx, tx, `
UPDATE channels SET subscribers = subscribers + 1, updated_at = $2 WHERE id = $1`, channelID, r.now())
	})
	if err != nil {
		return models.Channel{}, err
	}
	return r.GetChannel(ctx, channelID)
}

// Unsubscribe removes userID from the channel's subscribers. Unsubscribing
// when not subscribed is a no-op.
func (r *PostgresRepository) Unsubscribe(ctx context.Context, channelID, userID string) (models.Channel, error) {
	err := r.withTx(ctx, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `SELECT id FROM channels WHERE id = $1 FOR UPDATE`, channelID)
		var id string
		if err := row.Scan(&id); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return NotFoundf("channel %s not found", channelID)
			}
			return Upstreamf(err, "lock channel")
		}
		tag, err := tx.Exec(ctx, `
DELETE FROM channel_subscribers WHERE channel_id = $1 AND user_id = $2`, channelID, userID)
		if err != nil {
			return Upstreamf(err, "delete subscription")
		}
		if tag.RowsAffected() == 0 {
			return nil
		}
		return execAffectingOne(ctx, tx, `
UPDATE channels SET subscribers = GREATEST(0, subscribers - 1), updated_at = $2 WHERE id = $1`, channelID, r.now())
	})
	if err != nil {
		return models.Channel{}, err
	}
	return r.GetChannel(ctx, channelID)
}
