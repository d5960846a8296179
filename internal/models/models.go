package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// MediaAsset describes a file stored in the object storage backend. Older
// datasets recorded bare URL strings, so UnmarshalJSON accepts either a plain
// string or the canonical {url, publicId} object.
type MediaAsset struct {
	URL      string `json:"url"`
	PublicID string `json:"publicId,omitempty"`
}

// IsZero reports whether the asset references no stored object.
func (a MediaAsset) IsZero() bool {
	return a.URL == "" && a.PublicID == ""
}

// UnmarshalJSON decodes either the object form or a legacy plain string URL.
func (a *MediaAsset) UnmarshalJSON(data []byte) error {
	if a == nil {
		return fmt.Errorf("models: cannot decode into nil MediaAsset pointer")
	}
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" || trimmed == "null" {
		*a = MediaAsset{}
		return nil
	}
	if trimmed[0] == '"' {
		var url string
		if err := json.Unmarshal(data, &url); err != nil {
			return fmt.Errorf("decode media asset string: %w", err)
		}
		*a = MediaAsset{URL: url}
		return nil
	}
	type alias MediaAsset
	var decoded alias
	if err := json.Unmarshal(data, &decoded); err != nil {
		return fmt.Errorf("decode media asset object: %w", err)
	}
	*a = MediaAsset(decoded)
	return nil
}

// User is a registered account. PasswordHash carries the bcrypt digest; API
// responses strip it before serialisation.
type User struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Username     string     `json:"username"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"passwordHash,omitempty"`
	Avatar       MediaAsset `json:"avatar"`
	ChannelID    string     `json:"channelId,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// Channel is the single publishing surface a user may own.
type Channel struct {
	ID           string     `json:"id"`
	OwnerID      string     `json:"ownerId"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	Category     string     `json:"category"`
	Banner       MediaAsset `json:"channelBanner"`
	Subscribers  int        `json:"subscribers"`
	SubscribedBy []string   `json:"subscribedBy"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// IsSubscribed reports whether userID appears in the channel's subscriber list.
func (c Channel) IsSubscribed(userID string) bool {
	for _, id := range c.SubscribedBy {
		if id == userID {
			return true
		}
	}
	return false
}

// Reaction identifies a viewer's recorded stance on a video.
type Reaction string

const (
	ReactionNone    Reaction = ""
	ReactionLike    Reaction = "like"
	ReactionDislike Reaction = "dislike"
)

// Video is an uploaded piece of content published under a channel.
type Video struct {
	ID          string     `json:"id"`
	ChannelID   string     `json:"channelId"`
	UploaderID  string     `json:"uploaderId"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Category    string     `json:"category"`
	Thumbnail   MediaAsset `json:"thumbnail"`
	Media       MediaAsset `json:"video"`
	Views       int        `json:"views"`
	Likes       int        `json:"likes"`
	Dislikes    int        `json:"dislikes"`
	LikedBy     []string   `json:"likedBy"`
	DislikedBy  []string   `json:"dislikedBy"`
	SeedTag     string     `json:"seedTag,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// ReactionBy returns the viewer's current reaction to the video.
func (v Video) ReactionBy(userID string) Reaction {
	for _, id := range v.LikedBy {
		if id == userID {
			return ReactionLike
		}
	}
	for _, id := range v.DislikedBy {
		if id == userID {
			return ReactionDislike
		}
	}
	return ReactionNone
}

// Comment is a viewer remark attached to a video.
type Comment struct {
	ID        string    `json:"id"`
	VideoID   string    `json:"videoId"`
	AuthorID  string    `json:"authorId"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
