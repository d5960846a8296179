package api

import (
	"context"
	"net/http"
	"sort"
	"strings"

	"viewtube/internal/media"
	"viewtube/internal/models"
	"viewtube/internal/observability/metrics"
	"viewtube/internal/storage"
)

// releaseMedia deletes stored objects after a metadata mutation has been
// committed. Failures are logged, never propagated: an orphaned object is
// preferable to failing a request whose database work already succeeded.
func (h *Handler) releaseMedia(ctx context.Context, assets ...models.MediaAsset) {
	for _, asset := range assets {
		if asset.IsZero() {
			continue
		}
		if err := h.Media.Remove(ctx, asset); err != nil {
			h.logger().Warn("failed to remove stored object", "key", asset.PublicID, "error", err)
		}
	}
}

// Channels handles the /api/channel collection: a public listing ordered by
// subscriber count, and authenticated channel creation.
func (h *Handler) Channels(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		channels, err := h.Store.ListChannels(r.Context())
		if err != nil {
			h.writeDomainError(w, err)
			return
		}
		sort.SliceStable(channels, func(i, j int) bool {
			return channels[i].Subscribers > channels[j].Subscribers
		})
		views := make([]channelView, len(channels))
		for i, channel := range channels {
			views[i] = newChannelView(channel)
		}
		writeJSON(w, http.StatusOK, listEnvelope(len(views), views))
	case http.MethodPost:
		h.createChannel(w, r)
	default:
		methodNotAllowed(w, r, "GET, POST")
	}
}

func (h *Handler) createChannel(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requireAuthenticatedUser(w, r)
	if !ok {
		return
	}
	if err := r.ParseMultipartForm(registerFormMemory); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	title := strings.TrimSpace(r.FormValue("title"))
	if title == "" {
		h.writeDomainError(w, storage.Validationf("title is required"))
		return
	}

	var banner models.MediaAsset
	if header := formFile(r, string(media.FieldBanner)); header != nil {
		uploaded, err := h.Media.Upload(r.Context(), media.FieldBanner, header)
		if err != nil {
			h.writeDomainError(w, err)
			return
		}
		banner = uploaded
	}

	channel, err := h.Store.CreateChannel(r.Context(), storage.CreateChannelParams{
		OwnerID:     user.ID,
		Title:       title,
		Description: r.FormValue("description"),
		Category:    r.FormValue("category"),
		Banner:      banner,
	})
	if err != nil {
		h.releaseMedia(r.Context(), banner)
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, messageEnvelope("channel created", newChannelView(channel)))
}

// ChannelByID routes /api/channel/{id} and its sub-resources.
func (h *Handler) ChannelByID(w http.ResponseWriter, r *http.Request) {
	trimmed := strings.TrimPrefix(r.URL.Path, "/api/channel/")
	parts := strings.Split(strings.Trim(trimmed, "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		writeError(w, http.StatusNotFound, storage.NotFoundf("channel id required"))
		return
	}

	if parts[0] == "me" {
		h.ownChannel(w, r)
		return
	}
	channelID := parts[0]
	if len(parts) > 1 {
		h.handleChannelSubroutes(w, r, channelID, parts[1:])
		return
	}

	switch r.Method {
	case http.MethodGet:
		channel, err := h.Store.GetChannel(r.Context(), channelID)
		if err != nil {
			h.writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, okEnvelope(newChannelView(channel)))
	case http.MethodPut:
		h.updateChannel(w, r, channelID)
	case http.MethodDelete:
		h.deleteChannel(w, r, channelID)
	default:
		methodNotAllowed(w, r, "GET, PUT, DELETE")
	}
}

func (h *Handler) ownChannel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, "GET")
		return
	}
	user, ok := h.requireAuthenticatedUser(w, r)
	if !ok {
		return
	}
	channel, err := h.Store.ChannelByOwner(r.Context(), user.ID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, okEnvelope(newChannelView(channel)))
}

// requireChannelOwner loads the channel and rejects callers other than its
// owner.
func (h *Handler) requireChannelOwner(w http.ResponseWriter, r *http.Request, channelID string) (models.User, models.Channel, bool) {
	user, ok := h.requireAuthenticatedUser(w, r)
	if !ok {
		return models.User{}, models.Channel{}, false
	}
	channel, err := h.Store.GetChannel(r.Context(), channelID)
	if err != nil {
		h.writeDomainError(w, err)
		return models.User{}, models.Channel{}, false
	}
	if channel.OwnerID != user.ID {
		h.writeDomainError(w, storage.Forbiddenf("only the channel owner may do that"))
		return models.User{}, models.Channel{}, false
	}
	return user, channel, true
}

func (h *Handler) updateChannel(w http.ResponseWriter, r *http.Request, channelID string) {
	_, channel, ok := h.requireChannelOwner(w, r, channelID)
	if !ok {
		return
	}
	if err := r.ParseMultipartForm(registerFormMemory); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	update := storage.ChannelUpdate{}
	if value := r.FormValue("title"); value != "" {
		update.Title = &value
	}
	if _, ok := r.MultipartForm.Value["description"]; ok {
		value := r.FormValue("description")
		update.Description = &value
	}
	if value := r.FormValue("category"); value != "" {
		update.Category = &value
	}

	previousBanner := models.MediaAsset{}
	if header := formFile(r, string(media.FieldBanner)); header != nil {
		uploaded, err := h.Media.Upload(r.Context(), media.FieldBanner, header)
		if err != nil {
			h.writeDomainError(w, err)
			return
		}
		update.Banner = &uploaded
		previousBanner = channel.Banner
	}

	updated, err := h.Store.UpdateChannel(r.Context(), channelID, update)
	if err != nil {
		if update.Banner != nil {
			h.releaseMedia(r.Context(), *update.Banner)
		}
		h.writeDomainError(w, err)
		return
	}
	h.releaseMedia(r.Context(), previousBanner)
	writeJSON(w, http.StatusOK, messageEnvelope("channel updated", newChannelView(updated)))
}

func (h *Handler) deleteChannel(w http.ResponseWriter, r *http.Request, channelID string) {
	_, _, ok := h.requireChannelOwner(w, r, channelID)
	if !ok {
		return
	}
	cascade, err := h.Store.DeleteChannel(r.Context(), channelID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	// Metadata is gone; now release the stored objects best-effort.
	assets := []models.MediaAsset{cascade.Channel.Banner}
	for _, video := range cascade.Videos {
		assets = append(assets, video.Thumbnail, video.Media)
	}
	h.releaseMedia(r.Context(), assets...)

	writeJSON(w, http.StatusOK, messageEnvelope("channel deleted", map[string]int{
		"videosRemoved": len(cascade.Videos),
	}))
}

func (h *Handler) handleChannelSubroutes(w http.ResponseWriter, r *http.Request, channelID string, remaining []string) {
	switch remaining[0] {
	case "subscribe", "unsubscribe":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, "POST")
			return
		}
		user, ok := h.requireAuthenticatedUser(w, r)
		if !ok {
			return
		}
		var (
			channel models.Channel
			err     error
		)
		if remaining[0] == "subscribe" {
			channel, err = h.Store.Subscribe(r.Context(), channelID, user.ID)
		} else {
			channel, err = h.Store.Unsubscribe(r.Context(), channelID, user.ID)
		}
		if err != nil {
			h.writeDomainError(w, err)
			return
		}
		metrics.ObserveInteraction(remaining[0])
		writeJSON(w, http.StatusOK, okEnvelope(newChannelView(channel)))
	case "subscription-status":
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, "GET")
			return
		}
		user, ok := h.requireAuthenticatedUser(w, r)
		if !ok {
			return
		}
		channel, err := h.Store.GetChannel(r.Context(), channelID)
		if err != nil {
			h.writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, okEnvelope(map[string]bool{
			"subscribed": channel.IsSubscribed(user.ID),
		}))
	case "videos":
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, "GET")
			return
		}
		if _, err := h.Store.GetChannel(r.Context(), channelID); err != nil {
			h.writeDomainError(w, err)
			return
		}
		h.listVideos(w, r, storage.VideoListOptions{
			ChannelID: channelID,
			Sort:      storage.VideoSort(r.URL.Query().Get("sort")),
		}, 0)
	default:
		writeError(w, http.StatusNotFound, storage.NotFoundf("unknown channel resource %q", remaining[0]))
	}
}
