package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"viewtube/internal/models"
)

type dataset struct {
	Users    map[string]models.User    `json:"users"`
	Channels map[string]models.Channel `json:"channels"`
	Videos   map[string]models.Video   `json:"videos"`
	Comments map[string]models.Comment `json:"comments"`
}

// Storage is the JSON-file backed Repository implementation. All mutations
// operate on a deep copy of the dataset and persist it atomically before the
// in-memory state is swapped, so a failed write never leaves partial state.
type Storage struct {
	mu       sync.RWMutex
	filePath string
	data     dataset
	now      func() time.Time
	// persistOverride allows tests to intercept persist operations.
	persistOverride func(dataset) error
}

func newDataset() dataset {
	return dataset{
		Users:    make(map[string]models.User),
		Channels: make(map[string]models.Channel),
		Videos:   make(map[string]models.Video),
		Comments: make(map[string]models.Comment),
	}
}

func (s *Storage) ensureDatasetInitializedLocked() {
	if s.data.Users == nil {
		s.data.Users = make(map[string]models.User)
	}
	if s.data.Channels == nil {
		s.data.Channels = make(map[string]models.Channel)
	}
	if s.data.Videos == nil {
		s.data.Videos = make(map[string]models.Video)
	}
	if s.data.Comments == nil {
		s.data.Comments = make(map[string]models.Comment)
	}
}

// NewStorage opens (or creates) the JSON store at path.
func NewStorage(path string, opts ...Option) (*Storage, error) {
	store := &Storage{
		filePath: path,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt.applyJSON(store)
	}
	if err := store.load(); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *Storage) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.filePath), 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	file, err := os.Open(s.filePath)
	if errors.Is(err, os.ErrNotExist) {
		s.data = newDataset()
		return nil
	} else if err != nil {
		return fmt.Errorf("open store file: %w", err)
	}
	defer file.Close()

	decoder := json.NewDecoder(file)
	if err := decoder.Decode(&s.data); err != nil {
		if errors.Is(err, io.EOF) {
			s.data = newDataset()
			return nil
		}
		return fmt.Errorf("decode store file: %w", err)
	}

	s.ensureDatasetInitializedLocked()

	return nil
}

func (s *Storage) persistDataset(data dataset) error {
	if s.persistOverride != nil {
		if err := s.persistOverride(data); err != nil {
			return err
		}
	}

	dir := filepath.Dir(s.filePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	tmpFile, err := os.CreateTemp(dir, "store-*.json")
	if err != nil {
		return fmt.Errorf("create temp store file: %w", err)
	}
	tmpPath := tmpFile.Name()
	success := false
	defer func() {
		if !success {
			_ = tmpFile.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	encoder := json.NewEncoder(tmpFile)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("encode store file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("flush store file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close temp store file: %w", err)
	}

	if err := os.Rename(tmpPath, s.filePath); err != nil {
		return fmt.Errorf("replace store file: %w", err)
	}
	success = true
	return nil
}

func cloneDataset(src dataset) dataset {
	clone := dataset{}

	if src.Users != nil {
		clone.Users = make(map[string]models.User, len(src.Users))
		for id, user := range src.Users {
			clone.Users[id] = user
		}
	}

	if src.Channels != nil {
		clone.Channels = make(map[string]models.Channel, len(src.Channels))
		for id, channel := range src.Channels {
			cloned := channel
			if channel.SubscribedBy != nil {
				cloned.SubscribedBy = append([]string(nil), channel.SubscribedBy...)
			}
			clone.Channels[id] = cloned
		}
	}

	if src.Videos != nil {
		clone.Videos = make(map[string]models.Video, len(src.Videos))
		for id, video := range src.Videos {
			cloned := video
			if video.LikedBy != nil {
				cloned.LikedBy = append([]string(nil), video.LikedBy...)
			}
			if video.DislikedBy != nil {
				cloned.DislikedBy = append([]string(nil), video.DislikedBy...)
			}
			clone.Videos[id] = cloned
		}
	}

	if src.Comments != nil {
		clone.Comments = make(map[string]models.Comment, len(src.Comments))
		for id, comment := range src.Comments {
			clone.Comments[id] = comment
		}
	}

	return clone
}

// Ping verifies the store file's directory is reachable.
func (s *Storage) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, err := os.Stat(filepath.Dir(s.filePath)); err != nil {
		return Upstreamf(err, "store directory unavailable")
	}
	return nil
}
