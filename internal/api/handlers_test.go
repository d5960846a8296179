package api

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"viewtube/internal/auth"
	"viewtube/internal/media"
	"viewtube/internal/models"
	"viewtube/internal/storage"
)

func newTestHandler(t *testing.T) (*Handler, *storage.Storage) {
	t.Helper()
	store, err := storage.NewStorage(filepath.Join(t.TempDir(), "store.json"))
	if err != nil {
		t.Fatalf("NewStorage error: %v", err)
	}
	tokens, err := auth.NewTokenManager("api-test-secret", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenManager error: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mediaStore, err := media.New(media.Config{}, logger)
	if err != nil {
		t.Fatalf("media.New error: %v", err)
	}
	return NewHandler(store, tokens, mediaStore, logger), store
}

func asUser(req *http.Request, user models.User) *http.Request {
	return req.WithContext(ContextWithUser(req.Context(), user))
}

type filePart struct {
	field       string
	filename    string
	contentType string
	content     []byte
}

func multipartBody(t *testing.T, fields map[string]string, files ...filePart) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			t.Fatalf("write field %s: %v", key, err)
		}
	}
	for _, file := range files {
		header := textproto.MIMEHeader{}
		header.Set("Content-Disposition", `form-data; name="`+file.field+`"; filename="`+file.filename+`"`)
		header.Set("Content-Type", file.contentType)
		part, err := writer.CreatePart(header)
		if err != nil {
			t.Fatalf("create part %s: %v", file.field, err)
		}
		if _, err := part.Write(file.content); err != nil {
			t.Fatalf("write part %s: %v", file.field, err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	return body, writer.FormDataContentType()
}

type testEnvelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Count   *int            `json:"count"`
	Data    json.RawMessage `json:"data"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) testEnvelope {
	t.Helper()
	var env testEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v (body %q)", err, rec.Body.String())
	}
	return env
}

func registerUser(t *testing.T, h *Handler, store *storage.Storage, name, username, email string) models.User {
	t.Helper()
	body, _ := json.Marshal(map[string]string{
		"name":     name,
		"username": username,
		"email":    email,
		"password": "Str0ng!pass",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	h.Register(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("register %s failed: %d %s", email, rec.Code, rec.Body.String())
	}
	user, err := store.FindUserByEmail(req.Context(), email)
	if err != nil {
		t.Fatalf("lookup registered user: %v", err)
	}
	return user
}

func createChannel(t *testing.T, h *Handler, store *storage.Storage, user models.User, title string) models.Channel {
	t.Helper()
	body, contentType := multipartBody(t, map[string]string{
		"title":       title,
		"description": "a test channel",
		"category":    "Music",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/channel", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.Channels(rec, asUser(req, user))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create channel failed: %d %s", rec.Code, rec.Body.String())
	}
	channel, err := store.ChannelByOwner(req.Context(), user.ID)
	if err != nil {
		t.Fatalf("lookup created channel: %v", err)
	}
	return channel
}

func uploadVideo(t *testing.T, h *Handler, user models.User, title, category string) string {
	t.Helper()
	body, contentType := multipartBody(t, map[string]string{
		"title":       title,
		"description": "uploaded in a test",
		"category":    category,
	},
		filePart{field: "thumbnail", filename: "thumb.png", contentType: "image/png", content: []byte("png-bytes")},
		filePart{field: "video", filename: "clip.mp4", contentType: "video/mp4", content: []byte("mp4-bytes")},
	)
	req := httptest.NewRequest(http.MethodPost, "/api/videos/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.Videos(rec, asUser(req, user))
	if rec.Code != http.StatusCreated {
		t.Fatalf("upload video failed: %d %s", rec.Code, rec.Body.String())
	}
	env := decodeEnvelope(t, rec)
	var view struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(env.Data, &view); err != nil {
		t.Fatalf("decode upload response: %v", err)
	}
	if view.ID == "" {
		t.Fatal("expected an id in the upload response")
	}
	return view.ID
}

func TestRegisterStripsCredentials(t *testing.T) {
	h, _ := newTestHandler(t)

	body, _ := json.Marshal(map[string]string{
		"name":     "Alice Example",
		"username": "alice",
		"email":    "alice@example.com",
		"password": "Str0ng!pass",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	h.Register(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d %s", rec.Code, rec.Body.String())
	}
	lower := strings.ToLower(rec.Body.String())
	if strings.Contains(lower, "password") {
		t.Fatalf("response must not leak credentials: %s", rec.Body.String())
	}
}

func TestRegisterValidation(t *testing.T) {
	h, _ := newTestHandler(t)

	cases := []struct {
		name    string
		payload map[string]string
	}{
		{"bad email", map[string]string{"name": "Alice Example", "username": "alice", "email": "not-an-email", "password": "Str0ng!pass"}},
		{"weak password", map[string]string{"name": "Alice Example", "username": "alice", "email": "alice@example.com", "password": "weakpass"}},
		{"name with digits", map[string]string{"name": "Alice99", "username": "alice", "email": "alice@example.com", "password": "Str0ng!pass"}},
		{"username with spaces", map[string]string{"name": "Alice Example", "username": "a lice", "email": "alice@example.com", "password": "Str0ng!pass"}},
		{"missing fields", map[string]string{"email": "alice@example.com"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			body, _ := json.Marshal(tc.payload)
			rec := httptest.NewRecorder()
			h.Register(rec, httptest.NewRequest(http.MethodPost, "/api/auth/register", bytes.NewReader(body)))
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d %s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	h, store := newTestHandler(t)
	registerUser(t, h, store, "Alice Example", "alice", "alice@example.com")

	body, _ := json.Marshal(map[string]string{
		"name":     "Alice Clone",
		"username": "aliceclone",
		"email":    "ALICE@example.com",
		"password": "Str0ng!pass",
	})
	rec := httptest.NewRecorder()
	h.Register(rec, httptest.NewRequest(http.MethodPost, "/api/auth/register", bytes.NewReader(body)))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for duplicate email, got %d", rec.Code)
	}
}

func TestLoginFailures(t *testing.T) {
	h, store := newTestHandler(t)
	registerUser(t, h, store, "Alice Example", "alice", "alice@example.com")

	body, _ := json.Marshal(map[string]string{"email": "nobody@example.com", "password": "Str0ng!pass"})
	rec := httptest.NewRecorder()
	h.Login(rec, httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewReader(body)))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown email, got %d", rec.Code)
	}

	body, _ = json.Marshal(map[string]string{"email": "alice@example.com", "password": "Wr0ng!pass9"})
	rec = httptest.NewRecorder()
	h.Login(rec, httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewReader(body)))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong password, got %d", rec.Code)
	}
}

func TestLoginIssuesVerifiableToken(t *testing.T) {
	h, store := newTestHandler(t)
	user := registerUser(t, h, store, "Alice Example", "alice", "alice@example.com")

	body, _ := json.Marshal(map[string]string{"email": "alice@example.com", "password": "Str0ng!pass"})
	rec := httptest.NewRecorder()
	h.Login(rec, httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewReader(body)))
	if rec.Code != http.StatusOK {
		t.Fatalf("login failed: %d %s", rec.Code, rec.Body.String())
	}

	env := decodeEnvelope(t, rec)
	var data struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("decode login data: %v", err)
	}
	claims, err := h.Tokens.Verify(data.Token)
	if err != nil {
		t.Fatalf("issued token failed verification: %v", err)
	}
	if claims.Subject != user.ID {
		t.Fatalf("token subject = %q, want %q", claims.Subject, user.ID)
	}
}

func TestCreateChannelRequiresAuth(t *testing.T) {
	h, _ := newTestHandler(t)

	body, contentType := multipartBody(t, map[string]string{"title": "No Auth"})
	req := httptest.NewRequest(http.MethodPost, "/api/channel", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.Channels(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestSecondChannelRejected(t *testing.T) {
	h, store := newTestHandler(t)
	alice := registerUser(t, h, store, "Alice Example", "alice", "alice@example.com")
	createChannel(t, h, store, alice, "Alice Tunes")

	body, contentType := multipartBody(t, map[string]string{"title": "Second Channel"})
	req := httptest.NewRequest(http.MethodPost, "/api/channel", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.Channels(rec, asUser(req, alice))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for second channel, got %d %s", rec.Code, rec.Body.String())
	}
	env := decodeEnvelope(t, rec)
	if env.Success {
		t.Fatal("expected success=false")
	}
	if !strings.Contains(env.Error, "already") {
		t.Fatalf("expected an already-owns-a-channel error, got %q", env.Error)
	}
}

func TestChannelListSortedBySubscribers(t *testing.T) {
	h, store := newTestHandler(t)
	alice := registerUser(t, h, store, "Alice Example", "alice", "alice@example.com")
	bob := registerUser(t, h, store, "Bob Example", "bob", "bob@example.com")
	carol := registerUser(t, h, store, "Carol Example", "carol", "carol@example.com")

	aliceChannel := createChannel(t, h, store, alice, "Alice Tunes")
	createChannel(t, h, store, bob, "Bob Vlogs")

	if _, err := store.Subscribe(httptest.NewRequest(http.MethodPost, "/", nil).Context(), aliceChannel.ID, carol.ID); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	rec := httptest.NewRecorder()
	h.Channels(rec, httptest.NewRequest(http.MethodGet, "/api/channel", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("list channels failed: %d", rec.Code)
	}
	env := decodeEnvelope(t, rec)
	if env.Count == nil || *env.Count != 2 {
		t.Fatalf("expected count 2, got %v", env.Count)
	}
	var channels []struct {
		Title       string `json:"title"`
		Subscribers int    `json:"subscribers"`
	}
	if err := json.Unmarshal(env.Data, &channels); err != nil {
		t.Fatalf("decode channel list: %v", err)
	}
	if channels[0].Title != "Alice Tunes" || channels[0].Subscribers != 1 {
		t.Fatalf("expected the subscribed channel first, got %+v", channels)
	}
}

func TestChannelUpdateOwnerOnly(t *testing.T) {
	h, store := newTestHandler(t)
	alice := registerUser(t, h, store, "Alice Example", "alice", "alice@example.com")
	bob := registerUser(t, h, store, "Bob Example", "bob", "bob@example.com")
	channel := createChannel(t, h, store, alice, "Alice Tunes")

	body, contentType := multipartBody(t, map[string]string{"title": "Hijacked"})
	req := httptest.NewRequest(http.MethodPut, "/api/channel/"+channel.ID, body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.ChannelByID(rec, asUser(req, bob))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-owner update, got %d", rec.Code)
	}

	body, contentType = multipartBody(t, map[string]string{"title": "Alice Beats"})
	req = httptest.NewRequest(http.MethodPut, "/api/channel/"+channel.ID, body)
	req.Header.Set("Content-Type", contentType)
	rec = httptest.NewRecorder()
	h.ChannelByID(rec, asUser(req, alice))
	if rec.Code != http.StatusOK {
		t.Fatalf("owner update failed: %d %s", rec.Code, rec.Body.String())
	}

	updated, err := store.GetChannel(req.Context(), channel.ID)
	if err != nil {
		t.Fatalf("GetChannel: %v", err)
	}
	if updated.Title != "Alice Beats" {
		t.Fatalf("expected updated title, got %q", updated.Title)
	}
}

func TestChannelDeleteCascades(t *testing.T) {
	h, store := newTestHandler(t)
	alice := registerUser(t, h, store, "Alice Example", "alice", "alice@example.com")
	channel := createChannel(t, h, store, alice, "Alice Tunes")
	videoID := uploadVideo(t, h, alice, "First Video", "Music")

	req := httptest.NewRequest(http.MethodDelete, "/api/channel/"+channel.ID, nil)
	rec := httptest.NewRecorder()
	h.ChannelByID(rec, asUser(req, alice))
	if rec.Code != http.StatusOK {
		t.Fatalf("delete channel failed: %d %s", rec.Code, rec.Body.String())
	}

	if _, err := store.GetVideo(req.Context(), videoID); storage.KindOf(err) != storage.KindNotFound {
		t.Fatalf("expected the channel's video to be gone, got %v", err)
	}
	refreshed, err := store.GetUser(req.Context(), alice.ID)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if refreshed.ChannelID != "" {
		t.Fatalf("expected the owner's channel reference to be cleared, got %q", refreshed.ChannelID)
	}
}

func TestOwnerCannotSubscribeToOwnChannel(t *testing.T) {
	h, store := newTestHandler(t)
	alice := registerUser(t, h, store, "Alice Example", "alice", "alice@example.com")
	channel := createChannel(t, h, store, alice, "Alice Tunes")

	req := httptest.NewRequest(http.MethodPost, "/api/channel/"+channel.ID+"/subscribe", nil)
	rec := httptest.NewRecorder()
	h.ChannelByID(rec, asUser(req, alice))

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for self-subscribe, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestSubscriptionStatusAndIdempotency(t *testing.T) {
	h, store := newTestHandler(t)
	alice := registerUser(t, h, store, "Alice Example", "alice", "alice@example.com")
	bob := registerUser(t, h, store, "Bob Example", "bob", "bob@example.com")
	channel := createChannel(t, h, store, alice, "Alice Tunes")

	status := func() bool {
		req := httptest.NewRequest(http.MethodGet, "/api/channel/"+channel.ID+"/subscription-status", nil)
		rec := httptest.NewRecorder()
		h.ChannelByID(rec, asUser(req, bob))
		if rec.Code != http.StatusOK {
			t.Fatalf("subscription-status failed: %d", rec.Code)
		}
		env := decodeEnvelope(t, rec)
		var data struct {
			Subscribed bool `json:"subscribed"`
		}
		if err := json.Unmarshal(env.Data, &data); err != nil {
			t.Fatalf("decode status: %v", err)
		}
		return data.Subscribed
	}

	if status() {
		t.Fatal("expected bob to start unsubscribed")
	}

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/channel/"+channel.ID+"/subscribe", nil)
		rec := httptest.NewRecorder()
		h.ChannelByID(rec, asUser(req, bob))
		if rec.Code != http.StatusOK {
			t.Fatalf("subscribe attempt %d failed: %d", i, rec.Code)
		}
	}
	if !status() {
		t.Fatal("expected bob to be subscribed")
	}
	refreshed, err := store.GetChannel(httptest.NewRequest(http.MethodGet, "/", nil).Context(), channel.ID)
	if err != nil {
		t.Fatalf("GetChannel: %v", err)
	}
	if refreshed.Subscribers != 1 {
		t.Fatalf("double subscribe should count once, got %d", refreshed.Subscribers)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/channel/"+channel.ID+"/unsubscribe", nil)
	rec := httptest.NewRecorder()
	h.ChannelByID(rec, asUser(req, bob))
	if rec.Code != http.StatusOK {
		t.Fatalf("unsubscribe failed: %d", rec.Code)
	}
	if status() {
		t.Fatal("expected bob to be unsubscribed again")
	}
}

func TestSearchRequiresQuery(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := httptest.NewRecorder()
	h.Videos(rec, httptest.NewRequest(http.MethodGet, "/api/videos/search?q=++", nil))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty query, got %d", rec.Code)
	}
}

func TestSearchOrdersByViews(t *testing.T) {
	h, store := newTestHandler(t)
	alice := registerUser(t, h, store, "Alice Example", "alice", "alice@example.com")
	createChannel(t, h, store, alice, "Alice Tunes")

	quietID := uploadVideo(t, h, alice, "Go walkthrough part one", "Tech")
	popularID := uploadVideo(t, h, alice, "Go walkthrough part two", "Tech")
	uploadVideo(t, h, alice, "Unrelated cooking show", "Food")

	ctx := httptest.NewRequest(http.MethodGet, "/", nil).Context()
	for i := 0; i < 3; i++ {
		if _, err := store.AddView(ctx, popularID); err != nil {
			t.Fatalf("AddView: %v", err)
		}
	}

	rec := httptest.NewRecorder()
	h.Videos(rec, httptest.NewRequest(http.MethodGet, "/api/videos/search?q=walkthrough", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("search failed: %d", rec.Code)
	}
	env := decodeEnvelope(t, rec)
	var results []struct {
		ID    string `json:"id"`
		Views int    `json:"views"`
	}
	if err := json.Unmarshal(env.Data, &results); err != nil {
		t.Fatalf("decode search results: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(results))
	}
	if results[0].ID != popularID || results[1].ID != quietID {
		t.Fatalf("expected views-descending order, got %+v", results)
	}
}

func TestCategoryListingEmbedsRecentComments(t *testing.T) {
	h, store := newTestHandler(t)
	alice := registerUser(t, h, store, "Alice Example", "alice", "alice@example.com")
	createChannel(t, h, store, alice, "Alice Tunes")
	videoID := uploadVideo(t, h, alice, "Synth jam", "Music")

	ctx := httptest.NewRequest(http.MethodGet, "/", nil).Context()
	for i := 0; i < 7; i++ {
		if _, err := store.CreateComment(ctx, videoID, alice.ID, "comment body"); err != nil {
			t.Fatalf("CreateComment: %v", err)
		}
	}

	rec := httptest.NewRecorder()
	h.Videos(rec, httptest.NewRequest(http.MethodGet, "/api/videos/category/Music", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("category listing failed: %d", rec.Code)
	}
	env := decodeEnvelope(t, rec)
	var videos []struct {
		ID           string            `json:"id"`
		CommentCount int               `json:"commentCount"`
		Comments     []json.RawMessage `json:"comments"`
	}
	if err := json.Unmarshal(env.Data, &videos); err != nil {
		t.Fatalf("decode category listing: %v", err)
	}
	if len(videos) != 1 {
		t.Fatalf("expected 1 video, got %d", len(videos))
	}
	if videos[0].CommentCount != 7 {
		t.Fatalf("expected commentCount 7, got %d", videos[0].CommentCount)
	}
	if len(videos[0].Comments) != 5 {
		t.Fatalf("expected 5 embedded comments, got %d", len(videos[0].Comments))
	}
}

func TestViewCountNeedsNoAuth(t *testing.T) {
	h, store := newTestHandler(t)
	alice := registerUser(t, h, store, "Alice Example", "alice", "alice@example.com")
	createChannel(t, h, store, alice, "Alice Tunes")
	videoID := uploadVideo(t, h, alice, "Synth jam", "Music")

	rec := httptest.NewRecorder()
	h.Videos(rec, httptest.NewRequest(http.MethodPost, "/api/videos/"+videoID+"/view", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("view failed: %d %s", rec.Code, rec.Body.String())
	}
	env := decodeEnvelope(t, rec)
	var data struct {
		Views int `json:"views"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("decode views: %v", err)
	}
	if data.Views != 1 {
		t.Fatalf("expected 1 view, got %d", data.Views)
	}
	if _, err := store.GetVideo(httptest.NewRequest(http.MethodGet, "/", nil).Context(), videoID); err != nil {
		t.Fatalf("GetVideo: %v", err)
	}
}

func TestReactionToggleTransitions(t *testing.T) {
	h, store := newTestHandler(t)
	alice := registerUser(t, h, store, "Alice Example", "alice", "alice@example.com")
	bob := registerUser(t, h, store, "Bob Example", "bob", "bob@example.com")
	createChannel(t, h, store, alice, "Alice Tunes")
	videoID := uploadVideo(t, h, alice, "Synth jam", "Music")

	react := func(action string) (int, int, string) {
		req := httptest.NewRequest(http.MethodPost, "/api/videos/"+videoID+"/"+action, nil)
		rec := httptest.NewRecorder()
		h.Videos(rec, asUser(req, bob))
		if rec.Code != http.StatusOK {
			t.Fatalf("%s failed: %d %s", action, rec.Code, rec.Body.String())
		}
		env := decodeEnvelope(t, rec)
		var data struct {
			Likes    int    `json:"likes"`
			Dislikes int    `json:"dislikes"`
			Reaction string `json:"reaction"`
		}
		if err := json.Unmarshal(env.Data, &data); err != nil {
			t.Fatalf("decode reaction data: %v", err)
		}
		return data.Likes, data.Dislikes, data.Reaction
	}

	if likes, dislikes, reaction := react("like"); likes != 1 || dislikes != 0 || reaction != "like" {
		t.Fatalf("after like: %d/%d %q", likes, dislikes, reaction)
	}
	if likes, dislikes, reaction := react("dislike"); likes != 0 || dislikes != 1 || reaction != "dislike" {
		t.Fatalf("after dislike: %d/%d %q", likes, dislikes, reaction)
	}
	if likes, dislikes, reaction := react("dislike"); likes != 0 || dislikes != 0 || reaction != "" {
		t.Fatalf("after toggle-off: %d/%d %q", likes, dislikes, reaction)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/videos/"+videoID+"/like-status", nil)
	rec := httptest.NewRecorder()
	h.Videos(rec, asUser(req, bob))
	if rec.Code != http.StatusOK {
		t.Fatalf("like-status failed: %d", rec.Code)
	}
}

func TestVideoDetailIncludesComments(t *testing.T) {
	h, store := newTestHandler(t)
	alice := registerUser(t, h, store, "Alice Example", "alice", "alice@example.com")
	createChannel(t, h, store, alice, "Alice Tunes")
	videoID := uploadVideo(t, h, alice, "Synth jam", "Music")

	ctx := httptest.NewRequest(http.MethodGet, "/", nil).Context()
	if _, err := store.CreateComment(ctx, videoID, alice.ID, "first!"); err != nil {
		t.Fatalf("CreateComment: %v", err)
	}

	rec := httptest.NewRecorder()
	h.Videos(rec, httptest.NewRequest(http.MethodGet, "/api/videos/"+videoID, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("video detail failed: %d", rec.Code)
	}
	env := decodeEnvelope(t, rec)
	var view struct {
		CommentCount int `json:"commentCount"`
		Comments     []struct {
			Body string `json:"body"`
		} `json:"comments"`
	}
	if err := json.Unmarshal(env.Data, &view); err != nil {
		t.Fatalf("decode detail: %v", err)
	}
	if view.CommentCount != 1 || len(view.Comments) != 1 || view.Comments[0].Body != "first!" {
		t.Fatalf("unexpected detail payload: %+v", view)
	}
}

func TestVideoDeleteUploaderOnly(t *testing.T) {
	h, store := newTestHandler(t)
	alice := registerUser(t, h, store, "Alice Example", "alice", "alice@example.com")
	bob := registerUser(t, h, store, "Bob Example", "bob", "bob@example.com")
	createChannel(t, h, store, alice, "Alice Tunes")
	videoID := uploadVideo(t, h, alice, "Synth jam", "Music")

	req := httptest.NewRequest(http.MethodDelete, "/api/videos/"+videoID, nil)
	rec := httptest.NewRecorder()
	h.Videos(rec, asUser(req, bob))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-uploader delete, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodDelete, "/api/videos/"+videoID, nil)
	rec = httptest.NewRecorder()
	h.Videos(rec, asUser(req, alice))
	if rec.Code != http.StatusOK {
		t.Fatalf("uploader delete failed: %d %s", rec.Code, rec.Body.String())
	}
	if _, err := store.GetVideo(req.Context(), videoID); storage.KindOf(err) != storage.KindNotFound {
		t.Fatalf("expected the video to be gone, got %v", err)
	}
}

func TestCommentLifecycle(t *testing.T) {
	h, store := newTestHandler(t)
	alice := registerUser(t, h, store, "Alice Example", "alice", "alice@example.com")
	bob := registerUser(t, h, store, "Bob Example", "bob", "bob@example.com")
	createChannel(t, h, store, alice, "Alice Tunes")
	videoID := uploadVideo(t, h, alice, "Synth jam", "Music")

	body, _ := json.Marshal(map[string]string{"videoId": videoID, "body": "great jam"})
	req := httptest.NewRequest(http.MethodPost, "/api/comment", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	h.Comments(rec, asUser(req, bob))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create comment failed: %d %s", rec.Code, rec.Body.String())
	}
	env := decodeEnvelope(t, rec)
	var comment struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(env.Data, &comment); err != nil {
		t.Fatalf("decode comment: %v", err)
	}

	rec = httptest.NewRecorder()
	h.CommentByID(rec, httptest.NewRequest(http.MethodGet, "/api/comment/"+videoID, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("list comments failed: %d", rec.Code)
	}
	listEnv := decodeEnvelope(t, rec)
	if listEnv.Count == nil || *listEnv.Count != 1 {
		t.Fatalf("expected 1 comment, got %v", listEnv.Count)
	}

	// Only the author may edit.
	body, _ = json.Marshal(map[string]string{"body": "edited"})
	req = httptest.NewRequest(http.MethodPut, "/api/comment/"+comment.ID, bytes.NewReader(body))
	rec = httptest.NewRecorder()
	h.CommentByID(rec, asUser(req, alice))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-author edit, got %d", rec.Code)
	}

	body, _ = json.Marshal(map[string]string{"body": "edited"})
	req = httptest.NewRequest(http.MethodPut, "/api/comment/"+comment.ID, bytes.NewReader(body))
	rec = httptest.NewRecorder()
	h.CommentByID(rec, asUser(req, bob))
	if rec.Code != http.StatusOK {
		t.Fatalf("author edit failed: %d %s", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodDelete, "/api/comment/"+comment.ID, nil)
	rec = httptest.NewRecorder()
	h.CommentByID(rec, asUser(req, bob))
	if rec.Code != http.StatusOK {
		t.Fatalf("author delete failed: %d", rec.Code)
	}
	if _, err := store.GetComment(req.Context(), comment.ID); storage.KindOf(err) != storage.KindNotFound {
		t.Fatalf("expected comment to be gone, got %v", err)
	}
}

func TestUploadRejectsWrongContentType(t *testing.T) {
	h, store := newTestHandler(t)
	alice := registerUser(t, h, store, "Alice Example", "alice", "alice@example.com")
	createChannel(t, h, store, alice, "Alice Tunes")

	body, contentType := multipartBody(t, map[string]string{"title": "Broken upload"},
		filePart{field: "thumbnail", filename: "thumb.txt", contentType: "text/plain", content: []byte("not an image")},
		filePart{field: "video", filename: "clip.mp4", contentType: "video/mp4", content: []byte("mp4-bytes")},
	)
	req := httptest.NewRequest(http.MethodPost, "/api/videos/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.Videos(rec, asUser(req, alice))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for wrong content type, got %d %s", rec.Code, rec.Body.String())
	}
}

// TestAccountToPlaybackScenario walks the documented end-to-end flow: a
// creator registers, opens a channel, uploads a video, and a second account
// interacts with it.
func TestAccountToPlaybackScenario(t *testing.T) {
	h, store := newTestHandler(t)

	alice := registerUser(t, h, store, "Alice Creator", "alicecreator", "alice@example.com")

	// Wrong password is rejected before any token is issued.
	body, _ := json.Marshal(map[string]string{"email": "alice@example.com", "password": "Tot4lly!wrong"})
	rec := httptest.NewRecorder()
	h.Login(rec, httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewReader(body)))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong password, got %d", rec.Code)
	}

	channel := createChannel(t, h, store, alice, "Alice Creates")

	// A second channel for the same owner is refused.
	chBody, contentType := multipartBody(t, map[string]string{"title": "Overflow"})
	req := httptest.NewRequest(http.MethodPost, "/api/channel", chBody)
	req.Header.Set("Content-Type", contentType)
	rec = httptest.NewRecorder()
	h.Channels(rec, asUser(req, alice))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a second channel, got %d", rec.Code)
	}

	videoID := uploadVideo(t, h, alice, "Launch Day", "Tech")

	bob := registerUser(t, h, store, "Bob Viewer", "bobviewer", "bob@example.com")

	// Bob likes, then changes his mind.
	req = httptest.NewRequest(http.MethodPost, "/api/videos/"+videoID+"/like", nil)
	rec = httptest.NewRecorder()
	h.Videos(rec, asUser(req, bob))
	if rec.Code != http.StatusOK {
		t.Fatalf("like failed: %d", rec.Code)
	}
	video, err := store.GetVideo(req.Context(), videoID)
	if err != nil {
		t.Fatalf("GetVideo: %v", err)
	}
	if video.Likes != 1 {
		t.Fatalf("expected 1 like, got %d", video.Likes)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/videos/"+videoID+"/dislike", nil)
	rec = httptest.NewRecorder()
	h.Videos(rec, asUser(req, bob))
	if rec.Code != http.StatusOK {
		t.Fatalf("dislike failed: %d", rec.Code)
	}
	video, err = store.GetVideo(req.Context(), videoID)
	if err != nil {
		t.Fatalf("GetVideo: %v", err)
	}
	if video.Likes != 0 || video.Dislikes != 1 {
		t.Fatalf("expected 0 likes and 1 dislike, got %d/%d", video.Likes, video.Dislikes)
	}

	// Unsubscribing without ever subscribing is a harmless no-op.
	req = httptest.NewRequest(http.MethodPost, "/api/channel/"+channel.ID+"/unsubscribe", nil)
	rec = httptest.NewRecorder()
	h.ChannelByID(rec, asUser(req, bob))
	if rec.Code != http.StatusOK {
		t.Fatalf("unsubscribe of a non-subscriber should succeed, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestHealthEndpoint(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := httptest.NewRecorder()
	h.Health(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.Health(rec, httptest.NewRequest(http.MethodPost, "/healthz", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 for POST, got %d", rec.Code)
	}
}
