package api

import (
	"mime/multipart"
	"net/http"
	"strings"

	"viewtube/internal/auth"
	"viewtube/internal/media"
	"viewtube/internal/models"
	"viewtube/internal/storage"
)

const registerFormMemory = 12 << 20

type registerRequest struct {
	Name     string `json:"name"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func isMultipart(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data")
}

func formFile(r *http.Request, field string) *multipart.FileHeader {
	if r.MultipartForm == nil {
		return nil
	}
	headers := r.MultipartForm.File[field]
	if len(headers) == 0 {
		return nil
	}
	return headers[0]
}

// Register creates an account. The request is either a JSON document or a
// multipart form carrying an optional avatar file.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, "POST")
		return
	}

	var req registerRequest
	var avatarHeader *multipart.FileHeader
	if isMultipart(r) {
		if err := r.ParseMultipartForm(registerFormMemory); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		req = registerRequest{
			Name:     r.FormValue("name"),
			Username: r.FormValue("username"),
			Email:    r.FormValue("email"),
			Password: r.FormValue("password"),
		}
		avatarHeader = formFile(r, string(media.FieldAvatar))
	} else if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	if err := validateRegistration(req.Name, req.Username, req.Email, req.Password); err != nil {
		h.writeDomainError(w, err)
		return
	}
	if err := auth.ValidatePassword(req.Password); err != nil {
		h.writeDomainError(w, storage.Validationf("%s", err.Error()))
		return
	}

	var avatar models.MediaAsset
	if avatarHeader != nil {
		uploaded, err := h.Media.Upload(r.Context(), media.FieldAvatar, avatarHeader)
		if err != nil {
			h.writeDomainError(w, err)
			return
		}
		avatar = uploaded
	}

	user, err := h.Store.CreateUser(r.Context(), storage.CreateUserParams{
		Name:     req.Name,
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		// The account was rejected; drop the freshly stored avatar so the
		// bucket does not accumulate orphans.
		if !avatar.IsZero() {
			if removeErr := h.Media.Remove(r.Context(), avatar); removeErr != nil {
				h.logger().Warn("failed to remove orphaned avatar", "key", avatar.PublicID, "error", removeErr)
			}
		}
		h.writeDomainError(w, err)
		return
	}

	if !avatar.IsZero() {
		user, err = h.Store.UpdateUser(r.Context(), user.ID, storage.UserUpdate{Avatar: &avatar})
		if err != nil {
			h.writeDomainError(w, err)
			return
		}
	}

	writeJSON(w, http.StatusCreated, messageEnvelope("registration successful", newUserView(user)))
}

// Login verifies credentials and issues a bearer token. Unknown emails keep
// their historical 404 while a hash mismatch is a 401.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, "POST")
		return
	}

	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		h.writeDomainError(w, storage.Validationf("email and password are required"))
		return
	}

	user, err := h.Store.AuthenticateUser(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	token, err := h.Tokens.Issue(user.ID, user.Email)
	if err != nil {
		h.writeDomainError(w, storage.Upstreamf(err, "issue token"))
		return
	}

	writeJSON(w, http.StatusOK, envelope{
		Success: true,
		Message: "login successful",
		Data: map[string]interface{}{
			"token": token,
			"user":  newUserView(user),
		},
	})
}

// Avatar replaces the caller's avatar, deleting the previously stored object
// first so the bucket holds at most one avatar per account.
func (h *Handler) Avatar(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		methodNotAllowed(w, r, "PUT")
		return
	}
	user, ok := h.requireAuthenticatedUser(w, r)
	if !ok {
		return
	}

	if err := r.ParseMultipartForm(registerFormMemory); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	header := formFile(r, string(media.FieldAvatar))
	if header == nil {
		h.writeDomainError(w, storage.Validationf("avatar file is required"))
		return
	}

	if !user.Avatar.IsZero() {
		if err := h.Media.Remove(r.Context(), user.Avatar); err != nil {
			h.logger().Warn("failed to remove previous avatar", "key", user.Avatar.PublicID, "error", err)
		}
	}

	avatar, err := h.Media.Upload(r.Context(), media.FieldAvatar, header)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	updated, err := h.Store.UpdateUser(r.Context(), user.ID, storage.UserUpdate{Avatar: &avatar})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, messageEnvelope("avatar updated", newUserView(updated)))
}
