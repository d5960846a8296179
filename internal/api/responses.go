package api

import (
	"time"

	"viewtube/internal/models"
)

// The view types below are the only shapes this API serialises. They strip
// password hashes and carry media assets in the canonical {url, publicId}
// form regardless of how old datasets stored them.

type userView struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	Username  string            `json:"username"`
	Email     string            `json:"email"`
	Avatar    models.MediaAsset `json:"avatar"`
	ChannelID string            `json:"channelId,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
}

func newUserView(user models.User) userView {
	return userView{
		ID:        user.ID,
		Name:      user.Name,
		Username:  user.Username,
		Email:     user.Email,
		Avatar:    user.Avatar,
		ChannelID: user.ChannelID,
		CreatedAt: user.CreatedAt,
	}
}

type channelView struct {
	ID          string            `json:"id"`
	OwnerID     string            `json:"ownerId"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Category    string            `json:"category"`
	Banner      models.MediaAsset `json:"channelBanner"`
	Subscribers int               `json:"subscribers"`
	CreatedAt   time.Time         `json:"createdAt"`
}

func newChannelView(channel models.Channel) channelView {
	return channelView{
		ID:          channel.ID,
		OwnerID:     channel.OwnerID,
		Title:       channel.Title,
		Description: channel.Description,
		Category:    channel.Category,
		Banner:      channel.Banner,
		Subscribers: channel.Subscribers,
		CreatedAt:   channel.CreatedAt,
	}
}

type commentView struct {
	ID        string    `json:"id"`
	VideoID   string    `json:"videoId"`
	AuthorID  string    `json:"authorId"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func newCommentView(comment models.Comment) commentView {
	return commentView{
		ID:        comment.ID,
		VideoID:   comment.VideoID,
		AuthorID:  comment.AuthorID,
		Body:      comment.Body,
		CreatedAt: comment.CreatedAt,
		UpdatedAt: comment.UpdatedAt,
	}
}

func newCommentViews(comments []models.Comment) []commentView {
	views := make([]commentView, len(comments))
	for i, comment := range comments {
		views[i] = newCommentView(comment)
	}
	return views
}

type videoView struct {
	ID           string            `json:"id"`
	ChannelID    string            `json:"channelId"`
	UploaderID   string            `json:"uploaderId"`
	Title        string            `json:"title"`
	Description  string            `json:"description"`
	Category     string            `json:"category"`
	Thumbnail    models.MediaAsset `json:"thumbnail"`
	Media        models.MediaAsset `json:"video"`
	Views        int               `json:"views"`
	Likes        int               `json:"likes"`
	Dislikes     int               `json:"dislikes"`
	CommentCount int               `json:"commentCount"`
	Comments     []commentView     `json:"comments,omitempty"`
	CreatedAt    time.Time         `json:"createdAt"`
}

func newVideoView(video models.Video, commentCount int) videoView {
	return videoView{
		ID:           video.ID,
		ChannelID:    video.ChannelID,
		UploaderID:   video.UploaderID,
		Title:        video.Title,
		Description:  video.Description,
		Category:     video.Category,
		Thumbnail:    video.Thumbnail,
		Media:        video.Media,
		Views:        video.Views,
		Likes:        video.Likes,
		Dislikes:     video.Dislikes,
		CommentCount: commentCount,
		CreatedAt:    video.CreatedAt,
	}
}

// envelope mirrors the historical response wrapper: success flag, optional
// message, count for listings, and the payload under data.
type envelope struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Count   *int        `json:"count,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func okEnvelope(data interface{}) envelope {
	return envelope{Success: true, Data: data}
}

func messageEnvelope(message string, data interface{}) envelope {
	return envelope{Success: true, Message: message, Data: data}
}

func listEnvelope(count int, data interface{}) envelope {
	return envelope{Success: true, Count: &count, Data: data}
}
