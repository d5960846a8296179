package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"viewtube/internal/models"
)

const videoColumns = `v.id, v.channel_id, v.uploader_id, v.title, v.description, v.category,
v.thumbnail_url, v.thumbnail_public_id, v.media_url, v.media_public_id,
v.views, v.likes, v.dislikes, v.seed_tag, v.created_at, v.updated_at`

func scanVideo(row pgx.Row) (models.Video, error) {
	var video models.Video
	err := row.Scan(&video.ID, &video.ChannelID, &video.UploaderID, &video.Title,
		&video.Description, &video.Category,
		&video.Thumbnail.URL, &video.Thumbnail.PublicID,
		&video.Media.URL, &video.Media.PublicID,
		&video.Views, &video.Likes, &video.Dislikes, &video.SeedTag,
		&video.CreatedAt, &video.UpdatedAt)
	return video, err
}

func (r *PostgresRepository) videoReactions(ctx context.Context, videoID string) (liked, disliked []string, err error) {
	rows, err := r.pool.Query(ctx, `
SELECT user_id, reaction FROM video_reactions WHERE video_id = $1 ORDER BY reacted_at, user_id`, videoID)
	if err != nil {
		return nil, nil, Upstreamf(err, "query video reactions")
	}
	defer rows.Close()

	liked, disliked = []string{}, []string{}
	for rows.Next() {
		var userID, reaction string
		if err := rows.Scan(&userID, &reaction); err != nil {
			return nil, nil, Upstreamf(err, "scan video reaction")
		}
		if reaction == string(models.ReactionLike) {
			liked = append(liked, userID)
		} else {
			disliked = append(disliked, userID)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, nil, Upstreamf(err, "iterate video reactions")
	}
	return liked, disliked, nil
}

func (r *PostgresRepository) hydrateVideo(ctx context.Context, video models.Video) (models.Video, error) {
	liked, disliked, err := r.videoReactions(ctx, video.ID)
	if err != nil {
		return models.Video{}, err
	}
	video.LikedBy, video.DislikedBy = liked, disliked
	return video, nil
}

// CreateVideo publishes an upload under its channel.
func (r *PostgresRepository) CreateVideo(ctx context.Context, params CreateVideoParams) (models.Video, error) {
	channel, err := r.GetChannel(ctx, params.ChannelID)
	if err != nil {
		return models.Video{}, err
	}
	if channel.OwnerID != params.UploaderID {
		return models.Video{}, Forbiddenf("user %s does not own channel %s", params.UploaderID, channel.ID)
	}
	id, err := generateID()
	if err != nil {
		return models.Video{}, Upstreamf(err, "generate video id")
	}
	now := r.now()
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

	_, err = r.pool.Exec(ctx, `
INSERT INTO videos (id, channel_id, uploader_id, title, description, category,
	thumbnail_url, thumbnail_public_id, media_url, media_public_id, seed_tag, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $12)`,
		video.ID, video.ChannelID, video.UploaderID, video.Title, video.Description, video.Category,
		video.Thumbnail.URL, video.Thumbnail.PublicID, video.Media.URL, video.Media.PublicID,
		video.SeedTag, now)
	if err != nil {
		return models.Video{}, Upstreamf(err, "insert video")
	}
	return video, nil
}

// GetVideo fetches a video by ID, including its reaction membership lists.
func (r *PostgresRepository) GetVideo(ctx context.Context, id string) (models.Video, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+videoColumns+` FROM videos v WHERE v.id = $1`, id)
	video, err := scanVideo(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Video{}, NotFoundf("video %s not found", id)
	}
	if err != nil {
		return models.Video{}, Upstreamf(err, "query video")
	}
	return r.hydrateVideo(ctx, video)
}

// ListVideos returns videos matching the options. See the Repository
// contract for the ordering rules.
func (r *PostgresRepository) ListVideos(ctx context.Context, opts VideoListOptions) ([]models.Video, error) {
	var (
		conditions []string
		args       []any
	)
	arg := func(value any) string {
		args = append(args, value)
		return fmt.Sprintf("$%d", len(args))
	}
	if opts.ChannelID != "" {
		conditions = append(conditions, "v.channel_id = "+arg(opts.ChannelID))
	}
	if category := normalizeCategory(opts.Category); category != "" {
		conditions = append(conditions, "v.category = "+arg(category))
	}
	if opts.SeedTag != "" {
		conditions = append(conditions, "v.seed_tag = "+arg(opts.SeedTag))
	}
	query := strings.TrimSpace(opts.Query)
	if query != "" {
		conditions = append(conditions, "v.title ILIKE "+arg("%"+query+"%"))
	}

	sql := `SELECT ` + videoColumns + ` FROM videos v`
	if len(conditions) > 0 {
		sql += " WHERE " + strings.Join(conditions, " AND ")
	}
	switch {
	case query != "", opts.Sort == SortPopular:
		sql += " ORDER BY v.views DESC, v.created_at DESC, v.id"
	case opts.Sort == SortOldest:
		sql += " ORDER BY v.created_at ASC, v.id"
	default:
		sql += " ORDER BY v.created_at DESC, v.id"
	}

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, Upstreamf(err, "query videos")
	}
	defer rows.Close()

	videos := []models.Video{}
	for rows.Next() {
		video, err := scanVideo(rows)
		if err != nil {
			return nil, Upstreamf(err, "scan video")
		}
		videos = append(videos, video)
	}
	if err := rows.Err(); err != nil {
		return nil, Upstreamf(err, "iterate videos")
	}
	for i := range videos {
		videos[i], err = r.hydrateVideo(ctx, videos[i])
		if err != nil {
			return nil, err
		}
	}
	return videos, nil
}

// UpdateVideo applies the optional mutations to the video metadata.
func (r *PostgresRepository) UpdateVideo(ctx context.Context, id string, update VideoUpdate) (models.Video, error) {
	video, err := r.GetVideo(ctx, id)
	if err != nil {
		return models.Video{}, err
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
	video.UpdatedAt = r.now()

	tag, err := r.pool.Exec(ctx, `
UPDATE videos SET title = $2, description = $3, category = $4,
	thumbnail_url = $5, thumbnail_public_id = $6, updated_at = $7
WHERE id = $1`,
		video.ID, video.Title, video.Description, video.Category,
		video.Thumbnail.URL, video.Thumbnail.PublicID, video.UpdatedAt)
	if err != nil {
		return models.Video{}, Upstreamf(err, "update video")
	}
	if tag.RowsAffected() == 0 {
		return models.Video{}, NotFoundf("video %s not found", id)
	}
	return video, nil
}

// DeleteVideo removes the video; reactions and comments go with it via the
// cascade. The removed record is returned for media cleanup.
func (r *PostgresRepository) DeleteVideo(ctx context.Context, id string) (models.Video, error) {
	video, err := r.GetVideo(ctx, id)
	if err != nil {
		return models.Video{}, err
	}
	tag, err := r.pool.Exec(ctx, `DELETE FROM videos WHERE id = $1`, id)
	if err != nil {
		return models.Video{}, Upstreamf(err, "delete video")
	}
	if tag.RowsAffected() == 0 {
		return models.Video{}, NotFoundf("video %s not found", id)
	}
	return video, nil
}

// AddView increments the view counter.
func (r *PostgresRepository) AddView(ctx context.Context, id string) (models.Video, error) {
	tag, err := r.pool.Exec(ctx, `
UPDATE videos SET views = views + 1, updated_at = $2 WHERE id = $1`, id, r.now())
	if err != nil {
		return models.Video{}, Upstreamf(err, "record view")
	}
	if tag.RowsAffected() == 0 {
		return models.Video{}, NotFoundf("video %s not found", id)
	}
	return r.GetVideo(ctx, id)
}

// ToggleReaction moves the viewer between the none, like, and dislike states.
// The video row is locked for the duration of the transaction and the
// primary key on (video_id, user_id) keeps membership single-valued, so
// concurrent toggles serialise cleanly. Counters are floored at zero.
func (r *PostgresRepository) ToggleReaction(ctx context.Context, videoID, userID string, reaction models.Reaction) (models.Video, error) {
	if reaction != models.ReactionLike && reaction != models.ReactionDislike {
		return models.Video{}, Validationf("unsupported reaction %q", reaction)
	}
	if _, err := r.GetUser(ctx, userID); err != nil {
		return models.Video{}, err
	}

	err := r.withTx(ctx, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `SELECT id FROM videos WHERE id = $1 FOR UPDATE`, videoID)
		var id string
		if err := row.Scan(&id); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return NotFoundf("video %s not found", videoID)
			}
			return Upstreamf(err, "lock video")
		}

		var current string
		err := tx.QueryRow(ctx, `
SELECT reaction FROM video_reactions WHERE video_id = $1 AND user_id = $2`, videoID, userID).Scan(&current)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return Upstreamf(err, "query current reaction")
		}

		now := r.now()
		switch models.Reaction(current) {
		case reaction:
			// Toggle off.
			if _, err := tx.Exec(ctx, `
DELETE FROM video_reactions WHERE video_id = $1 AND user_id = $2`, videoID, userID); err != nil {
				return Upstreamf(err, "delete reaction")
			}
			return execAffectingOne(ctx, tx, counterSQL(reaction, -1, models.ReactionNone), videoID, now)
		case models.ReactionNone:
			if _, err := tx.Exec(ctx, `
INSERT INTO video_reactions (video_id, user_id, reaction, reacted_at)
VALUES ($1, $2, $3, $4)`, videoID, userID, string(reaction), now); err != nil {
				return Upstreamf(err, "insert reaction")
			}
			return execAffectingOne(ctx, tx, counterSQL(reaction, 1, models.ReactionNone), videoID, now)
		default:
			// Switching sides: one update moves the membership row, another
			// moves both counters.
			if _, err := tx.Exec(ctx, `
UPDATE video_reactions SET reaction = $3, reacted_at = $4
WHERE video_id = $1 AND user_id = $2`, videoID, userID, string(reaction), now); err != nil {
				return Upstreamf(err, "switch reaction")
			}
			return execAffectingOne(ctx, tx, counterSQL(reaction, 1, models.Reaction(current)), videoID, now)
		}
	})
	if err != nil {
		return models.Video{}, err
	}
	return r.GetVideo(ctx, videoID)
}

// counterSQL builds the videos counter update for a reaction change. delta
// applies to the requested reaction's counter; when opposite is set the other
// counter is decremented in the same statement.
func counterSQL(reaction models.Reaction, delta int, opposite models.Reaction) string {
	column := "likes"
	other := "dislikes"
	if reaction == models.ReactionDislike {
		column, other = other, column
	}
	set := fmt.Sprintf("%s = GREATEST(0, %s + %d)", column, column, delta)
	if opposite != models.ReactionNone {
		set += fmt.Sprintf(", %s = GREATEST(0, %s - 1)", other, other)
	}
	return "UPDATE videos SET " + set + ", updated_at = $2 WHERE id = $1"
}

// DeleteVideosBySeedTag removes every video carrying the tag. Comments and
// reactions follow via the cascade.
func (r *PostgresRepository) DeleteVideosBySeedTag(ctx context.Context, seedTag string) ([]models.Video, error) {
	tag := strings.TrimSpace(seedTag)
	if tag == "" {
		return nil, Validationf("seed tag must not be empty")
	}
	videos, err := r.ListVideos(ctx, VideoListOptions{SeedTag: tag})
	if err != nil {
		return nil, err
	}
	if len(videos) == 0 {
		return nil, nil
	}
	if _, err := r.pool.Exec(ctx, `DELETE FROM videos WHERE seed_tag = $1`, tag); err != nil {
		return nil, Upstreamf(err, "delete seeded videos")
	}
	return videos, nil
}
