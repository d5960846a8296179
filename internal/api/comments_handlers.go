package api

import (
	"net/http"
	"strings"

	"viewtube/internal/models"
	"viewtube/internal/observability/metrics"
	"viewtube/internal/storage"
)

type createCommentRequest struct {
	VideoID string `json:"videoId"`
	Body    string `json:"body"`
}

type updateCommentRequest struct {
	Body string `json:"body"`
}

// Comments handles POST /api/comment.
func (h *Handler) Comments(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, "POST")
		return
	}
	user, ok := h.requireAuthenticatedUser(w, r)
	if !ok {
		return
	}
	var req createCommentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	comment, err := h.Store.CreateComment(r.Context(), strings.TrimSpace(req.VideoID), user.ID, req.Body)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	metrics.ObserveInteraction("comment")
	writeJSON(w, http.StatusCreated, messageEnvelope("comment added", newCommentView(comment)))
}

// CommentByID routes /api/comment/{id}: GET treats the id as a video id and
// lists its comments, PUT and DELETE treat it as a comment id and require
// the comment's author.
func (h *Handler) CommentByID(w http.ResponseWriter, r *http.Request) {
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/comment/"), "/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusNotFound, storage.NotFoundf("comment id required"))
		return
	}

	switch r.Method {
	case http.MethodGet:
		comments, err := h.Store.ListVideoComments(r.Context(), id)
		if err != nil {
			h.writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, listEnvelope(len(comments), newCommentViews(comments)))
	case http.MethodPut:
		_, ok := h.requireCommentAuthor(w, r, id)
		if !ok {
			return
		}
		var req updateCommentRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		comment, err := h.Store.UpdateComment(r.Context(), id, req.Body)
		if err != nil {
			h.writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, messageEnvelope("comment updated", newCommentView(comment)))
	case http.MethodDelete:
		_, ok := h.requireCommentAuthor(w, r, id)
		if !ok {
			return
		}
		if err := h.Store.DeleteComment(r.Context(), id); err != nil {
			h.writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, messageEnvelope("comment deleted", nil))
	default:
		methodNotAllowed(w, r, "GET, PUT, DELETE")
	}
}

func (h *Handler) requireCommentAuthor(w http.ResponseWriter, r *http.Request, commentID string) (models.Comment, bool) {
	user, ok := h.requireAuthenticatedUser(w, r)
	if !ok {
		return models.Comment{}, false
	}
	comment, err := h.Store.GetComment(r.Context(), commentID)
	if err != nil {
		h.writeDomainError(w, err)
		return models.Comment{}, false
	}
	if comment.AuthorID != user.ID {
		h.writeDomainError(w, storage.Forbiddenf("only the comment author may do that"))
		return models.Comment{}, false
	}
	return comment, true
}
