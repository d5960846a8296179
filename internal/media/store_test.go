package media

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"mime/multipart"
	"net/textproto"
	"strings"
	"testing"

	"viewtube/internal/models"
)

func buildFileHeader(t *testing.T, field, filename, contentType string, payload []byte) *multipart.FileHeader {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="`+field+`"; filename="`+filename+`"`)
	header.Set("Content-Type", contentType)
	part, err := writer.CreatePart(header)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	if _, err := part.Write(payload); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	form, err := multipart.NewReader(&body, writer.Boundary()).ReadForm(32 << 20)
	if err != nil {
		t.Fatalf("read form: %v", err)
	}
	t.Cleanup(func() { form.RemoveAll() })
	headers := form.File[field]
	if len(headers) != 1 {
		t.Fatalf("expected one file header, got %d", len(headers))
	}
	return headers[0]
}

func newStub(t *testing.T) Store {
	t.Helper()
	store, err := New(Config{}, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return store
}

func TestStubStoreUploadAcceptsImage(t *testing.T) {
	store := newStub(t)
	header := buildFileHeader(t, "avatar", "me.png", "image/png", []byte("png-bytes"))

	asset, err := store.Upload(context.Background(), FieldAvatar, header)
	if err != nil {
		t.Fatalf("upload avatar: %v", err)
	}
	if !strings.HasPrefix(asset.PublicID, "avatars/") {
		t.Fatalf("expected avatars/ key, got %q", asset.PublicID)
	}
	if !strings.HasSuffix(asset.PublicID, ".png") {
		t.Fatalf("expected .png suffix, got %q", asset.PublicID)
	}
	if asset.URL == "" {
		t.Fatal("expected a url for the uploaded asset")
	}
}

func TestStubStoreUploadRejectsWrongContentType(t *testing.T) {
	store := newStub(t)
	header := buildFileHeader(t, "avatar", "notes.txt", "text/plain", []byte("hello"))

	_, err := store.Upload(context.Background(), FieldAvatar, header)
	if err == nil {
		t.Fatal("expected text upload to be rejected for avatar field")
	}
	var validation *ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected validation error, got %T: %v", err, err)
	}
}

func TestStubStoreUploadRejectsVideoContentTypeForThumbnail(t *testing.T) {
	store := newStub(t)
	header := buildFileHeader(t, "thumbnail", "clip.mp4", "video/mp4", []byte("mp4"))

	if _, err := store.Upload(context.Background(), FieldThumbnail, header); err == nil {
		t.Fatal("expected video payload in thumbnail field to be rejected")
	}
}

func TestStubStoreAcceptsLargeThumbnail(t *testing.T) {
	store := newStub(t)
	payload := bytes.Repeat([]byte{0x89}, 11<<20)
	header := buildFileHeader(t, "thumbnail", "poster.png", "image/png", payload)

	asset, err := store.Upload(context.Background(), FieldThumbnail, header)
	if err != nil {
		t.Fatalf("upload 11MB thumbnail: %v", err)
	}
	if !strings.HasPrefix(asset.PublicID, "thumbnails/") {
		t.Fatalf("expected thumbnails/ key, got %q", asset.PublicID)
	}
}

func TestStubStoreRejectsOversizedAvatar(t *testing.T) {
	store := newStub(t)
	payload := bytes.Repeat([]byte{0x89}, 11<<20)
	header := buildFileHeader(t, "avatar", "me.png", "image/png", payload)

	_, err := store.Upload(context.Background(), FieldAvatar, header)
	if err == nil {
		t.Fatal("expected avatar beyond the image budget to be rejected")
	}
	var validation *ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected validation error, got %T: %v", err, err)
	}
}

func TestStubStoreUploadAcceptsVideo(t *testing.T) {
	store := newStub(t)
	header := buildFileHeader(t, "video", "clip.mp4", "video/mp4", bytes.Repeat([]byte{0x42}, 1024))

	asset, err := store.Upload(context.Background(), FieldVideo, header)
	if err != nil {
		t.Fatalf("upload video: %v", err)
	}
	if !strings.HasPrefix(asset.PublicID, "videos/") {
		t.Fatalf("expected videos/ key, got %q", asset.PublicID)
	}
}

func TestStubStoreRemoveIsNoop(t *testing.T) {
	store := newStub(t)
	if err := store.Remove(context.Background(), models.MediaAsset{PublicID: "avatars/gone"}); err != nil {
		t.Fatalf("remove: %v", err)
	}
}
