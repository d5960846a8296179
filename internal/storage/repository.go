package storage

import (
	"context"

	"viewtube/internal/models"
)

// CreateUserParams carries a validated registration request. Password is the
// plaintext credential and is hashed before it reaches the dataset.
type CreateUserParams struct {
	Name     string
	Username string
	Email    string
	Password string
}

// UserUpdate mutates the optional user fields. Nil pointers leave the current
// value untouched.
type UserUpdate struct {
	Name   *string
	Avatar *models.MediaAsset
}

// CreateChannelParams carries a validated channel creation request.
type CreateChannelParams struct {
	OwnerID     string
	Title       string
	Description string
	Category    string
	Banner      models.MediaAsset
}

// ChannelUpdate mutates the optional channel fields.
type ChannelUpdate struct {
	Title       *string
	Description *string
	Category    *string
	Banner      *models.MediaAsset
}

// ChannelCascade reports everything removed by a channel deletion so the
// caller can release the associated media objects.
type ChannelCascade struct {
	Channel models.Channel
	Videos  []models.Video
}

// CreateVideoParams carries a validated upload request.
type CreateVideoParams struct {
	ChannelID   string
	UploaderID  string
	Title       string
	Description string
	Category    string
	Thumbnail   models.MediaAsset
	Media       models.MediaAsset
	SeedTag     string
}

// VideoUpdate mutates the optional video fields.
type VideoUpdate struct {
	Title       *string
	Description *string
	Category    *string
	Thumbnail   *models.MediaAsset
}

// VideoSort orders listing results.
type VideoSort string

const (
	SortLatest  VideoSort = "latest"
	SortOldest  VideoSort = "oldest"
	SortPopular VideoSort = "popular"
)

// VideoListOptions filters and orders video listings. Zero values mean "no
// filter". Query matches video titles case-insensitively and forces a
// views-descending order.
type VideoListOptions struct {
	ChannelID string
	Category  string
	Query     string
	Sort      VideoSort
	SeedTag   string
}

// Repository exposes the datastore operations required by the API handlers
// and the seed tool. Both the JSON file store and the Postgres store satisfy
// it.
type Repository interface {
	Ping(ctx context.Context) error

	CreateUser(ctx context.Context, params CreateUserParams) (models.User, error)
	AuthenticateUser(ctx context.Context, email, password string) (models.User, error)
	GetUser(ctx context.Context, id string) (models.User, error)
	FindUserByEmail(ctx context.Context, email string) (models.User, error)
	UpdateUser(ctx context.Context, id string, update UserUpdate) (models.User, error)

	CreateChannel(ctx context.Context, params CreateChannelParams) (models.Channel, error)
	GetChannel(ctx context.Context, id string) (models.Channel, error)
	ChannelByOwner(ctx context.Context, ownerID string) (models.Channel, error)
	ListChannels(ctx context.Context) ([]models.Channel, error)
	UpdateChannel(ctx context.Context, id string, update ChannelUpdate) (models.Channel, error)
	DeleteChannel(ctx context.Context, id string) (ChannelCascade, error)
	Subscribe(ctx context.Context, channelID, userID string) (models.Channel, error)
	Unsubscribe(ctx context.Context, channelID, userID string) (models.Channel, error)

	CreateVideo(ctx context.Context, params CreateVideoParams) (models.Video, error)
	GetVideo(ctx context.Context, id string) (models.Video, error)
	ListVideos(ctx context.Context, opts VideoListOptions) ([]models.Video, error)
	UpdateVideo(ctx context.Context, id string, update VideoUpdate) (models.Video, error)
	DeleteVideo(ctx context.Context, id string) (models.Video, error)
	AddView(ctx context.Context, id string) (models.Video, error)
	ToggleReaction(ctx context.Context, videoID, userID string, reaction models.Reaction) (models.Video, error)
	DeleteVideosBySeedTag(ctx context.Context, seedTag string) ([]models.Video, error)

	CreateComment(ctx context.Context, videoID, authorID, body string) (models.Comment, error)
	GetComment(ctx context.Context, id string) (models.Comment, error)
	ListVideoComments(ctx context.Context, videoID string) ([]models.Comment, error)
	CountVideoComments(ctx context.Context, videoID string) (int, error)
	UpdateComment(ctx context.Context, id, body string) (models.Comment, error)
	DeleteComment(ctx context.Context, id string) error
}

var _ Repository = (*Storage)(nil)
var _ Repository = (*PostgresRepository)(nil)
