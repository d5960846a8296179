package storage

import (
	"context"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"viewtube/internal/auth"
	"viewtube/internal/models"
)

var lowercaser = cases.Lower(language.Und)

// normalizeEmail canonicalises an address for uniqueness checks. Unicode
// lowercasing keeps non-ASCII mailbox names comparable.
func normalizeEmail(email string) string {
	return lowercaser.String(strings.TrimSpace(email))
}

func normalizeCategory(category string) string {
	return lowercaser.String(strings.TrimSpace(category))
}

func normalizeUsername(username string) string {
	return lowercaser.String(strings.TrimSpace(username))
}

// CreateUser registers a new account. Username and email must both be
// unused; the password arrives in plaintext and is stored as a bcrypt
// digest.
func (s *Storage) CreateUser(ctx context.Context, params CreateUserParams) (models.User, error) {
	email := normalizeEmail(params.Email)
	username := normalizeUsername(params.Username)
	hash, err := auth.HashPassword(params.Password)
	if err != nil {
		return models.User{}, Upstreamf(err, "hash password")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.data.Users {
		if existing.Email == email {
			return models.User{}, Conflictf("email %s is already registered", email)
		}
		if existing.Username == username {
			return models.User{}, Conflictf("username %s is already taken", username)
		}
	}

	id, err := generateID()
	if err != nil {
		return models.User{}, Upstreamf(err, "generate user id")
	}
	now := s.now()
	user := models.User{
		ID:           id,
		Name:         strings.TrimSpace(params.Name),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	updated := cloneDataset(s.data)
	updated.Users[user.ID] = user
	if err := s.persistDataset(updated); err != nil {
		return models.User{}, Upstreamf(err, "persist user")
	}
	s.data = updated
	return user, nil
}

// AuthenticateUser checks credentials against the stored digest. An unknown
// email and a wrong password fail with distinct kinds so the API can keep the
// historical status codes.
func (s *Storage) AuthenticateUser(ctx context.Context, email, password string) (models.User, error) {
	normalized := normalizeEmail(email)

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, user := range s.data.Users {
		if user.Email == normalized {
			if !auth.CheckPassword(user.PasswordHash, password) {
				return models.User{}, Unauthorizedf("invalid password")
			}
			return user, nil
		}
	}
	return models.User{}, NotFoundf("no account registered for %s", normalized)
}

// GetUser fetches an account by ID.
func (s *Storage) GetUser(ctx context.Context, id string) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.data.Users[id]
	if !ok {
		return models.User{}, NotFoundf("user %s not found", id)
	}
	return user, nil
}

// FindUserByEmail fetches an account by normalised email.
func (s *Storage) FindUserByEmail(ctx context.Context, email string) (models.User, error) {
	normalized := normalizeEmail(email)
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, user := range s.data.Users {
		if user.Email == normalized {
			return user, nil
		}
	}
	return models.User{}, NotFoundf("no account registered for %s", normalized)
}

// UpdateUser applies the optional account mutations.
func (s *Storage) UpdateUser(ctx context.Context, id string, update UserUpdate) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.data.Users[id]
	if !ok {
		return models.User{}, NotFoundf("user %s not found", id)
	}
	if update.Name != nil {
		trimmed := strings.TrimSpace(*update.Name)
		if trimmed == "" {
			return models.User{}, Validationf("name must not be empty")
		}
		user.Name = trimmed
	}
	if update.Avatar != nil {
		user.Avatar = *update.Avatar
	}
	user.UpdatedAt = s.now()

	updated := cloneDataset(s.data)
	updated.Users[user.ID] = user
	if err := s.persistDataset(updated); err != nil {
		return models.User{}, Upstreamf(err, "persist user")
	}
	s.data = updated
	return user, nil
}
