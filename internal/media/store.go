package media

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"os"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"viewtube/internal/models"
	"viewtube/internal/observability/logging"
	"viewtube/internal/observability/metrics"
)

// Field names the upload slots the API accepts. Each field carries its own
// size ceiling, MIME restriction, and destination folder.
type Field string

const (
	FieldAvatar    Field = "avatar"
	FieldBanner    Field = "channelBanner"
	FieldThumbnail Field = "thumbnail"
	FieldVideo     Field = "video"
)

const (
	maxImageBytes = 10 << 20
	maxVideoBytes = 500 << 20
)

type constraint struct {
	maxBytes    int64
	mimePrefix  string
	folder      string
	spoolToDisk bool
}

// Thumbnails ride the video upload request and share its generous ceiling;
// only the standalone profile images get the tight one.
var constraints = map[Field]constraint{
	FieldAvatar:    {maxBytes: maxImageBytes, mimePrefix: "image/", folder: "avatars"},
	FieldBanner:    {maxBytes: maxImageBytes, mimePrefix: "image/", folder: "banners"},
	FieldThumbnail: {maxBytes: maxVideoBytes, mimePrefix: "image/", folder: "thumbnails"},
	FieldVideo:     {maxBytes: maxVideoBytes, mimePrefix: "video/", folder: "videos", spoolToDisk: true},
}

// ValidationError reports a rejected upload (wrong type or too large). The
// HTTP layer maps it to a 400 response.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func validationErrorf(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// Store uploads and removes media objects for the API handlers.
type Store interface {
	// Upload streams the multipart file into the backing object store and
	// returns the public asset reference.
	Upload(ctx context.Context, field Field, header *multipart.FileHeader) (models.MediaAsset, error)
	// Remove deletes a previously uploaded asset. Missing objects are not an
	// error.
	Remove(ctx context.Context, asset models.MediaAsset) error
}

// Config carries the S3-compatible endpoint settings for the object store.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	PublicURL string
}

func (c Config) enabled() bool {
	return strings.TrimSpace(c.Endpoint) != "" && strings.TrimSpace(c.Bucket) != ""
}

// New builds a Store from the configuration. When no endpoint is configured
// it returns an in-process stub that fabricates deterministic local URLs,
// which keeps development setups and tests working without a bucket.
func New(cfg Config, logger *slog.Logger) (Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logging.WithComponent(logger, "media")
	if !cfg.enabled() {
		logger.Warn("object storage not configured, using local stub store")
		return &stubStore{logger: logger}, nil
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create object storage client: %w", err)
	}
	publicURL := strings.TrimRight(cfg.PublicURL, "/")
	if publicURL == "" {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		publicURL = fmt.Sprintf("%s://%s/%s", scheme, cfg.Endpoint, cfg.Bucket)
	}
	return &objectStore{client: client, bucket: cfg.Bucket, publicURL: publicURL, logger: logger}, nil
}

type objectStore struct {
	client    *minio.Client
	bucket    string
	publicURL string
	logger    *slog.Logger
}

func (s *objectStore) Upload(ctx context.Context, field Field, header *multipart.FileHeader) (models.MediaAsset, error) {
	metrics.UploadStarted()
	asset, size, err := s.upload(ctx, field, header)
	if err != nil {
		metrics.ObserveUploadFailure(string(field))
		return models.MediaAsset{}, err
	}
	metrics.ObserveUpload(string(field), size)
	return asset, nil
}

func (s *objectStore) upload(ctx context.Context, field Field, header *multipart.FileHeader) (models.MediaAsset, int64, error) {
	spec, ok := constraints[field]
	if !ok {
		return models.MediaAsset{}, 0, validationErrorf("unexpected upload field %q", field)
	}
	contentType, err := checkHeader(field, spec, header)
	if err != nil {
		return models.MediaAsset{}, 0, err
	}

	file, err := header.Open()
	if err != nil {
		return models.MediaAsset{}, 0, fmt.Errorf("open upload %q: %w", header.Filename, err)
	}
	defer file.Close()

	key := objectKey(spec.folder, header.Filename)
	var reader io.Reader
	var size int64
	if spec.spoolToDisk {
		spooled, spooledSize, cleanup, err := spoolTemp(field, spec, file)
		if err != nil {
			return models.MediaAsset{}, 0, err
		}
		defer cleanup()
		reader, size = spooled, spooledSize
	} else {
		buffered, err := bufferInMemory(field, spec, file)
		if err != nil {
			return models.MediaAsset{}, 0, err
		}
		reader, size = bytes.NewReader(buffered), int64(len(buffered))
	}

	if _, err := s.client.PutObject(ctx, s.bucket, key, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	}); err != nil {
		return models.MediaAsset{}, 0, fmt.Errorf("upload object %s: %w", key, err)
	}
	s.logger.Info("object uploaded", "field", string(field), "key", key, "bytes", size)
	return models.MediaAsset{URL: s.publicURL + "/" + key, PublicID: key}, size, nil
}

func (s *objectStore) Remove(ctx context.Context, asset models.MediaAsset) error {
	if asset.PublicID == "" {
		return nil
	}
	if err := s.client.RemoveObject(ctx, s.bucket, asset.PublicID, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove object %s: %w", asset.PublicID, err)
	}
	s.logger.Info("object removed", "key", asset.PublicID)
	return nil
}

// stubStore satisfies Store without talking to a remote bucket. Uploads are
// validated and discarded after reading, which exercises the same limits as
// the real backend.
type stubStore struct {
	logger *slog.Logger
}

func (s *stubStore) Upload(ctx context.Context, field Field, header *multipart.FileHeader) (models.MediaAsset, error) {
	metrics.UploadStarted()
	asset, size, err := s.upload(field, header)
	if err != nil {
		metrics.ObserveUploadFailure(string(field))
		return models.MediaAsset{}, err
	}
	metrics.ObserveUpload(string(field), size)
	return asset, nil
}

func (s *stubStore) upload(field Field, header *multipart.FileHeader) (models.MediaAsset, int64, error) {
	spec, ok := constraints[field]
	if !ok {
		return models.MediaAsset{}, 0, validationErrorf("unexpected upload field %q", field)
	}
	if _, err := checkHeader(field, spec, header); err != nil {
		return models.MediaAsset{}, 0, err
	}
	file, err := header.Open()
	if err != nil {
		return models.MediaAsset{}, 0, fmt.Errorf("open upload %q: %w", header.Filename, err)
	}
	defer file.Close()

	size, err := io.Copy(io.Discard, io.LimitReader(file, spec.maxBytes+1))
	if err != nil {
		return models.MediaAsset{}, 0, fmt.Errorf("read upload for field %q: %w", field, err)
	}
	if size > spec.maxBytes {
		return models.MediaAsset{}, 0, validationErrorf("field %q exceeds the %d byte limit", field, spec.maxBytes)
	}

	key := objectKey(spec.folder, header.Filename)
	s.logger.Debug("stub upload accepted", "field", string(field), "key", key, "bytes", size)
	return models.MediaAsset{URL: "local://" + key, PublicID: key}, size, nil
}

func (s *stubStore) Remove(ctx context.Context, asset models.MediaAsset) error {
	return nil
}

func checkHeader(field Field, spec constraint, header *multipart.FileHeader) (string, error) {
	if header == nil {
		return "", validationErrorf("missing file for field %q", field)
	}
	contentType := strings.TrimSpace(header.Header.Get("Content-Type"))
	if !strings.HasPrefix(contentType, spec.mimePrefix) {
		return "", validationErrorf("field %q requires %s* content, got %q", field, spec.mimePrefix, contentType)
	}
	if header.Size > 0 && header.Size > spec.maxBytes {
		return "", validationErrorf("field %q exceeds the %d byte limit", field, spec.maxBytes)
	}
	return contentType, nil
}

func bufferInMemory(field Field, spec constraint, file multipart.File) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(file, spec.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read upload for field %q: %w", field, err)
	}
	if int64(len(data)) > spec.maxBytes {
		return nil, validationErrorf("field %q exceeds the %d byte limit", field, spec.maxBytes)
	}
	return data, nil
}

// spoolTemp copies a large upload to a temporary file so it is never held in
// memory. The caller must invoke cleanup once the reader is no longer needed.
func spoolTemp(field Field, spec constraint, file multipart.File) (io.Reader, int64, func(), error) {
	temp, err := os.CreateTemp("", "viewtube-upload-*")
	if err != nil {
		return nil, 0, nil, fmt.Errorf("create temp file for field %q: %w", field, err)
	}
	cleanup := func() {
		temp.Close()
		os.Remove(temp.Name())
	}
	size, err := io.Copy(temp, io.LimitReader(file, spec.maxBytes+1))
	if err != nil {
		cleanup()
		return nil, 0, nil, fmt.Errorf("spool upload for field %q: %w", field, err)
	}
	if size > spec.maxBytes {
		cleanup()
		return nil, 0, nil, validationErrorf("field %q exceeds the %d byte limit", field, spec.maxBytes)
	}
	if _, err := temp.Seek(0, io.SeekStart); err != nil {
		cleanup()
		return nil, 0, nil, fmt.Errorf("rewind spooled upload: %w", err)
	}
	return temp, size, cleanup, nil
}

func objectKey(folder, filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	return folder + "/" + uuid.NewString() + ext
}
