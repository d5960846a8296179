package api

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"strings"

	"viewtube/internal/models"
	"viewtube/internal/storage"
)

type contextKey string

const userContextKey contextKey = "authenticatedUser"

// ContextWithUser stores the authenticated user in the provided context.
func ContextWithUser(ctx context.Context, user models.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// UserFromContext retrieves the authenticated user from context if present.
func UserFromContext(ctx context.Context) (models.User, bool) {
	user, ok := ctx.Value(userContextKey).(models.User)
	return user, ok
}

// ExtractToken pulls the bearer token from the Authorization header.
func ExtractToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// AuthenticateRequest verifies the bearer token and resolves its subject. A
// token whose subject no longer exists fails the same way as a bad token.
func (h *Handler) AuthenticateRequest(r *http.Request) (models.User, error) {
	token := ExtractToken(r)
	if token == "" {
		return models.User{}, errors.New("missing bearer token")
	}
	claims, err := h.Tokens.Verify(token)
	if err != nil {
		return models.User{}, errors.New("invalid or expired token")
	}
	user, err := h.Store.GetUser(r.Context(), claims.Subject)
	if err != nil {
		return models.User{}, errors.New("account not found")
	}
	return user, nil
}

func (h *Handler) requireAuthenticatedUser(w http.ResponseWriter, r *http.Request) (models.User, bool) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, errors.New("authentication required"))
		return models.User{}, false
	}
	return user, true
}

var (
	namePattern     = regexp.MustCompile(`^[A-Za-z ]{2,50}$`)
	usernamePattern = regexp.MustCompile(`^\S{2,30}$`)
	emailPattern    = regexp.MustCompile(`^\S+@\S+\.\S+$`)
)

func validateRegistration(name, username, email, password string) error {
	if name == "" || username == "" || email == "" || password == "" {
		return storage.Validationf("name, username, email, and password are required")
	}
	if !namePattern.MatchString(name) {
		return storage.Validationf("name must be 2-50 characters, letters and spaces only")
	}
	if !usernamePattern.MatchString(username) {
		return storage.Validationf("username must be 2-30 characters without spaces")
	}
	if !emailPattern.MatchString(email) {
		return storage.Validationf("email address is malformed")
	}
	return nil
}
