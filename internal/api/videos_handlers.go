package api

import (
	"net/http"
	"strings"

	"golang.org/x/sync/errgroup"

	"viewtube/internal/media"
	"viewtube/internal/models"
	"viewtube/internal/observability/metrics"
	"viewtube/internal/storage"
)

const (
	// uploadBytesLimit caps the whole upload request body: a 500MB video
	// plus thumbnail, form fields, and multipart framing overhead.
	uploadBytesLimit = 512 << 20

	// embeddedCommentLimit is how many recent comments a category listing
	// embeds per video.
	embeddedCommentLimit = 5

	// commentJoinConcurrency bounds the comment lookups that run in
	// parallel while building listing responses.
	commentJoinConcurrency = 8
)

// Videos handles the /api/videos collection and its sub-resources.
func (h *Handler) Videos(w http.ResponseWriter, r *http.Request) {
	trimmed := strings.TrimPrefix(r.URL.Path, "/api/videos")
	parts := strings.Split(strings.Trim(trimmed, "/"), "/")
	if len(parts) == 1 && parts[0] == "" {
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, "GET")
			return
		}
		h.listVideos(w, r, storage.VideoListOptions{
			Sort: storage.VideoSort(r.URL.Query().Get("sort")),
		}, 0)
		return
	}

	switch parts[0] {
	case "search":
		h.searchVideos(w, r)
	case "category":
		if len(parts) != 2 || parts[1] == "" {
			writeError(w, http.StatusBadRequest, storage.Validationf("category is required"))
			return
		}
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, "GET")
			return
		}
		h.listVideos(w, r, storage.VideoListOptions{
			Category: parts[1],
			Sort:     storage.VideoSort(r.URL.Query().Get("sort")),
		}, embeddedCommentLimit)
	case "upload":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, "POST")
			return
		}
		h.uploadVideo(w, r)
	default:
		h.videoByID(w, r, parts[0], parts[1:])
	}
}

// listVideos fetches a listing and joins each video with its comment count.
// The counts are independent lookups, so they run concurrently. embed > 0
// additionally attaches that many recent comments per video.
func (h *Handler) listVideos(w http.ResponseWriter, r *http.Request, opts storage.VideoListOptions, embed int) {
	videos, err := h.Store.ListVideos(r.Context(), opts)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	views := make([]videoView, len(videos))
	group, ctx := errgroup.WithContext(r.Context())
	group.SetLimit(commentJoinConcurrency)
	for i, video := range videos {
		i, video := i, video
		group.Go(func() error {
			count, err := h.Store.CountVideoComments(ctx, video.ID)
			if err != nil {
				return err
			}
			views[i] = newVideoView(video, count)
			if embed > 0 {
				comments, err := h.Store.ListVideoComments(ctx, video.ID)
				if err != nil {
					return err
				}
				if len(comments) > embed {
					comments = comments[:embed]
				}
				views[i].Comments = newCommentViews(comments)
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listEnvelope(len(views), views))
}

func (h *Handler) searchVideos(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, "GET")
		return
	}
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		h.writeDomainError(w, storage.Validationf("search query is required"))
		return
	}
	h.listVideos(w, r, storage.VideoListOptions{Query: query}, 0)
}

func (h *Handler) uploadVideo(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requireAuthenticatedUser(w, r)
	if !ok {
		return
	}
	channel, err := h.Store.ChannelByOwner(r.Context(), user.ID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, uploadBytesLimit)
	if err := r.ParseMultipartForm(registerFormMemory); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	title := strings.TrimSpace(r.FormValue("title"))
	if title == "" {
		h.writeDomainError(w, storage.Validationf("title is required"))
		return
	}

	thumbHeader := formFile(r, string(media.FieldThumbnail))
	videoHeader := formFile(r, string(media.FieldVideo))
	if thumbHeader == nil || videoHeader == nil {
		h.writeDomainError(w, storage.Validationf("thumbnail and video files are required"))
		return
	}

	thumbnail, err := h.Media.Upload(r.Context(), media.FieldThumbnail, thumbHeader)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	mediaAsset, err := h.Media.Upload(r.Context(), media.FieldVideo, videoHeader)
	if err != nil {
		h.releaseMedia(r.Context(), thumbnail)
		h.writeDomainError(w, err)
		return
	}

	video, err := h.Store.CreateVideo(r.Context(), storage.CreateVideoParams{
		ChannelID:   channel.ID,
		UploaderID:  user.ID,
		Title:       title,
		Description: r.FormValue("description"),
		Category:    r.FormValue("category"),
		Thumbnail:   thumbnail,
		Media:       mediaAsset,
	})
	if err != nil {
		h.releaseMedia(r.Context(), thumbnail, mediaAsset)
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, messageEnvelope("video uploaded", newVideoView(video, 0)))
}

func (h *Handler) videoByID(w http.ResponseWriter, r *http.Request, videoID string, remaining []string) {
	if len(remaining) > 0 {
		h.handleVideoSubroutes(w, r, videoID, remaining)
		return
	}
	switch r.Method {
	case http.MethodGet:
		h.videoDetail(w, r, videoID)
	case http.MethodPut:
		h.updateVideo(w, r, videoID)
	case http.MethodDelete:
		h.deleteVideo(w, r, videoID)
	default:
		methodNotAllowed(w, r, "GET, PUT, DELETE")
	}
}

func (h *Handler) videoDetail(w http.ResponseWriter, r *http.Request, videoID string) {
	video, err := h.Store.GetVideo(r.Context(), videoID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	comments, err := h.Store.ListVideoComments(r.Context(), videoID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	view := newVideoView(video, len(comments))
	view.Comments = newCommentViews(comments)
	writeJSON(w, http.StatusOK, okEnvelope(view))
}

// requireVideoUploader loads the video and rejects callers other than the
// user who uploaded it.
func (h *Handler) requireVideoUploader(w http.ResponseWriter, r *http.Request, videoID string) (models.User, models.Video, bool) {
	user, ok := h.requireAuthenticatedUser(w, r)
	if !ok {
		return models.User{}, models.Video{}, false
	}
	video, err := h.Store.GetVideo(r.Context(), videoID)
	if err != nil {
		h.writeDomainError(w, err)
		return models.User{}, models.Video{}, false
	}
	if video.UploaderID != user.ID {
		h.writeDomainError(w, storage.Forbiddenf("only the uploader may do that"))
		return models.User{}, models.Video{}, false
	}
	return user, video, true
}

func (h *Handler) updateVideo(w http.ResponseWriter, r *http.Request, videoID string) {
	_, video, ok := h.requireVideoUploader(w, r, videoID)
	if !ok {
		return
	}
	if err := r.ParseMultipartForm(registerFormMemory); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	update := storage.VideoUpdate{}
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

	previousThumbnail := models.MediaAsset{}
	if header := formFile(r, string(media.FieldThumbnail)); header != nil {
		uploaded, err := h.Media.Upload(r.Context(), media.FieldThumbnail, header)
		if err != nil {
			h.writeDomainError(w, err)
			return
		}
		update.Thumbnail = &uploaded
		previousThumbnail = video.Thumbnail
	}

	updated, err := h.Store.UpdateVideo(r.Context(), videoID, update)
	if err != nil {
		if update.Thumbnail != nil {
			h.releaseMedia(r.Context(), *update.Thumbnail)
		}
		h.writeDomainError(w, err)
		return
	}
	h.releaseMedia(r.Context(), previousThumbnail)
	count, err := h.Store.CountVideoComments(r.Context(), videoID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messageEnvelope("video updated", newVideoView(updated, count)))
}

func (h *Handler) deleteVideo(w http.ResponseWriter, r *http.Request, videoID string) {
	_, _, ok := h.requireVideoUploader(w, r, videoID)
	if !ok {
		return
	}
	removed, err := h.Store.DeleteVideo(r.Context(), videoID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.releaseMedia(r.Context(), removed.Thumbnail, removed.Media)
	writeJSON(w, http.StatusOK, messageEnvelope("video deleted", nil))
}

func (h *Handler) handleVideoSubroutes(w http.ResponseWriter, r *http.Request, videoID string, remaining []string) {
	switch remaining[0] {
	case "view":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, "POST")
			return
		}
		video, err := h.Store.AddView(r.Context(), videoID)
		if err != nil {
			h.writeDomainError(w, err)
			return
		}
		metrics.ObserveInteraction("view")
		writeJSON(w, http.StatusOK, okEnvelope(map[string]int{"views": video.Views}))
	case "like", "dislike":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, "POST")
			return
		}
		user, ok := h.requireAuthenticatedUser(w, r)
		if !ok {
			return
		}
		video, err := h.Store.ToggleReaction(r.Context(), videoID, user.ID, models.Reaction(remaining[0]))
		if err != nil {
			h.writeDomainError(w, err)
			return
		}
		metrics.ObserveInteraction(remaining[0])
		writeJSON(w, http.StatusOK, okEnvelope(map[string]interface{}{
			"likes":    video.Likes,
			"dislikes": video.Dislikes,
			"reaction": video.ReactionBy(user.ID),
		}))
	case "like-status":
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, "GET")
			return
		}
		user, ok := h.requireAuthenticatedUser(w, r)
		if !ok {
			return
		}
		video, err := h.Store.GetVideo(r.Context(), videoID)
		if err != nil {
			h.writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, okEnvelope(map[string]interface{}{
			"reaction": video.ReactionBy(user.ID),
		}))
	default:
		writeError(w, http.StatusNotFound, storage.NotFoundf("unknown video resource %q", remaining[0]))
	}
}
