package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/clipshelf/backend/internal/models"
	"github.com/clipshelf/backend/internal/repositories"
)

type fakeVideoStore struct {
	mu     sync.Mutex
	nextID int64
	videos []models.Video
}

func (s *fakeVideoStore) Create(_ context.Context, video models.Video) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	video.ID = s.nextID
	s.videos = append(s.videos, video)
	return video.ID, nil
}

func (s *fakeVideoStore) Get(_ context.Context, id int64) (models.Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, video := range s.videos {
		if video.ID == id {
			return video, nil
		}
	}
	return models.Video{}, repositories.ErrNotFound
}

func (s *fakeVideoStore) List(_ context.Context, query string) ([]models.Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if query == "" {
		out := make([]models.Video, len(s.videos))
		copy(out, s.videos)
		sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
		return out, nil
	}

	needle := strings.ToLower(query)
	var out []models.Video
	for _, video := range s.videos {
		if strings.Contains(strings.ToLower(video.Title), needle) || strings.Contains(strings.ToLower(video.Genre), needle) {
			out = append(out, video)
		}
	}
	return out, nil
}

type fakeInteractionStore struct {
	mu       sync.Mutex
	nextID   int64
	comments map[int64][]models.Comment
	ratings  map[int64]map[string]int
}

func newFakeInteractionStore() *fakeInteractionStore {
	return &fakeInteractionStore{
		comments: make(map[int64][]models.Comment),
		ratings:  make(map[int64]map[string]int),
	}
}

func (s *fakeInteractionStore) AddComment(_ context.Context, comment models.Comment) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	comment.ID = s.nextID
	s.comments[comment.VideoID] = append(s.comments[comment.VideoID], comment)
	return comment.ID, nil
}

func (s *fakeInteractionStore) ListComments(_ context.Context, videoID int64) ([]models.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Comment(nil), s.comments[videoID]...), nil
}

func (s *fakeInteractionStore) Rate(_ context.Context, rating models.Rating) (int64, error) {
	if rating.Rating < 1 || rating.Rating > 5 {
		return 0, repositories.ErrInvalidRating
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	byRater, ok := s.ratings[rating.VideoID]
	if !ok {
		byRater = make(map[string]int)
		s.ratings[rating.VideoID] = byRater
	}
	if _, rated := byRater[rating.Rater]; rated {
		return 0, repositories.ErrAlreadyRated
	}
	byRater[rating.Rater] = rating.Rating

	s.nextID++
	return s.nextID, nil
}

func (s *fakeInteractionStore) AverageRating(_ context.Context, videoID int64) (float64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byRater := s.ratings[videoID]
	if len(byRater) == 0 {
		return 0, false, nil
	}

	var sum int
	for _, score := range byRater {
		sum += score
	}
	return float64(sum) / float64(len(byRater)), true, nil
}

type fakeUploadStore struct {
	saved []string
}

func (s *fakeUploadStore) Save(_ context.Context, name string, r io.Reader) (string, error) {
	if _, err := io.Copy(io.Discard, r); err != nil {
		return "", err
	}
	s.saved = append(s.saved, name)
	return "uploads/" + name, nil
}

func newTestVideoHandler(t *testing.T) (VideoHandler, *fakeVideoStore, *fakeInteractionStore, *fakeUploadStore) {
	t.Helper()
	videos := &fakeVideoStore{}
	interactions := newFakeInteractionStore()
	uploads := &fakeUploadStore{}
	handler := VideoHandler{
		Videos:       videos,
		Interactions: interactions,
		Uploads:      uploads,
		Public:       videos,
		Sessions:     newTestSessionManager(),
	}
	return handler, videos, interactions, uploads
}

func loginAs(t *testing.T, handler VideoHandler, username string, role models.Role) string {
	t.Helper()
	session, err := handler.Sessions.Issue(context.Background(), username, role)
	if err != nil {
		t.Fatalf("issue session: %v", err)
	}
	return session.Token
}

func seedVideos(t *testing.T, store *fakeVideoStore, videos ...models.Video) {
	t.Helper()
	for _, video := range videos {
		if _, err := store.Create(context.Background(), video); err != nil {
			t.Fatalf("seed video: %v", err)
		}
	}
}

func multipartUpload(t *testing.T, fields map[string]string, filename string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			t.Fatalf("write field %s: %v", key, err)
		}
	}
	if filename != "" {
		part, err := writer.CreateFormFile("video_file", filename)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := part.Write([]byte("fake video bytes")); err != nil {
			t.Fatalf("write file part: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return &buf, writer.FormDataContentType()
}

func TestVideoHandlerListRequiresAuthentication(t *testing.T) {
	handler, _, _, _ := newTestVideoHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/videos", nil)
	rec := httptest.NewRecorder()

	handler.Collection(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d got %d", http.StatusUnauthorized, rec.Code)
	}
}

func TestVideoHandlerList(t *testing.T) {
	handler, videos, _, _ := newTestVideoHandler(t)
	seedVideos(t, videos,
		models.Video{Title: "First", Genre: "Nature"},
		models.Video{Title: "Second", Genre: "Drama"},
		models.Video{Title: "Third", Genre: "Nature"},
	)

	token := loginAs(t, handler, "bob", models.RoleConsumer)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/videos", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	handler.Collection(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d", http.StatusOK, rec.Code)
	}

	var resp listResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Role != "consumer" {
		t.Fatalf("expected consumer role in response, got %s", resp.Role)
	}
	if len(resp.Videos) != 3 {
		t.Fatalf("expected 3 videos, got %d", len(resp.Videos))
	}
	for i := 1; i < len(resp.Videos); i++ {
		if resp.Videos[i-1].ID <= resp.Videos[i].ID {
			t.Fatalf("expected descending ids, got %+v", resp.Videos)
		}
	}
}

func TestVideoHandlerSearch(t *testing.T) {
	handler, videos, _, _ := newTestVideoHandler(t)
	seedVideos(t, videos,
		models.Video{Title: "A Comedy Night", Genre: "Stand-up"},
		models.Video{Title: "Quiet Evening", Genre: "Drama"},
		models.Video{Title: "Late Laughs", Genre: "comedy"},
	)

	token := loginAs(t, handler, "bob", models.RoleConsumer)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/videos?q=comedy", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	handler.Collection(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d", http.StatusOK, rec.Code)
	}

	var resp listResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Videos) != 2 {
		t.Fatalf("expected 2 matches, got %+v", resp.Videos)
	}
	for _, video := range resp.Videos {
		if video.Title == "Quiet Evening" {
			t.Fatalf("unexpected match: %+v", video)
		}
	}
}

func TestVideoHandlerUploadRequiresCreatorRole(t *testing.T) {
	handler, _, _, _ := newTestVideoHandler(t)

	body, contentType := multipartUpload(t, map[string]string{
		"title":       "Sunset",
		"description": "The sun, setting.",
	}, "sunset.mp4")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/videos", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	handler.Collection(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d for anonymous upload got %d", http.StatusUnauthorized, rec.Code)
	}

	token := loginAs(t, handler, "bob", models.RoleConsumer)
	body, contentType = multipartUpload(t, map[string]string{
		"title":       "Sunset",
		"description": "The sun, setting.",
	}, "sunset.mp4")

	req = httptest.NewRequest(http.MethodPost, "/api/v1/videos", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()

	handler.Collection(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected status %d for consumer upload got %d", http.StatusForbidden, rec.Code)
	}
}

func TestVideoHandlerUpload(t *testing.T) {
	handler, videos, _, uploads := newTestVideoHandler(t)
	token := loginAs(t, handler, "alice", models.RoleCreator)

	body, contentType := multipartUpload(t, map[string]string{
		"title":       "Sunset",
		"description": "The sun, setting.",
		"genre":       "Nature",
		"age_rating":  "PG",
	}, "sunset.mp4")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/videos", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	handler.Collection(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status %d got %d: %s", http.StatusCreated, rec.Code, rec.Body.String())
	}

	var resp map[string]int64
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	video, err := videos.Get(context.Background(), resp["id"])
	if err != nil {
		t.Fatalf("expected video to be stored: %v", err)
	}
	if video.Uploader != "alice" {
		t.Fatalf("expected uploader alice, got %s", video.Uploader)
	}
	if video.Genre != "Nature" {
		t.Fatalf("expected genre Nature, got %s", video.Genre)
	}
	if len(uploads.saved) != 1 || uploads.saved[0] != "sunset.mp4" {
		t.Fatalf("expected upload to be saved, got %v", uploads.saved)
	}
}

func TestVideoHandlerUploadRejectsBadFileType(t *testing.T) {
	handler, videos, _, _ := newTestVideoHandler(t)
	token := loginAs(t, handler, "alice", models.RoleCreator)

	body, contentType := multipartUpload(t, map[string]string{
		"title":       "Notes",
		"description": "Definitely a video.",
	}, "clip.txt")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/videos", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	handler.Collection(rec, req)

	if rec.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("expected status %d got %d", http.StatusUnsupportedMediaType, rec.Code)
	}
	if len(videos.videos) != 0 {
		t.Fatalf("expected no video record, got %+v", videos.videos)
	}
}

func TestVideoHandlerDetail(t *testing.T) {
	handler, videos, interactions, _ := newTestVideoHandler(t)
	seedVideos(t, videos, models.Video{Title: "Sunset", Genre: "Nature", Uploader: "alice"})

	if _, err := interactions.AddComment(context.Background(), models.Comment{VideoID: 1, Commenter: "bob", Content: "nice"}); err != nil {
		t.Fatalf("add comment: %v", err)
	}

	// Detail reads are open; no Authorization header on purpose.
	req := httptest.NewRequest(http.MethodGet, "/api/v1/videos/1", nil)
	req.SetPathValue("id", "1")
	rec := httptest.NewRecorder()

	handler.Detail(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d", http.StatusOK, rec.Code)
	}

	var resp detailResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Video.Title != "Sunset" {
		t.Fatalf("unexpected video: %+v", resp.Video)
	}
	if len(resp.Comments) != 1 || resp.Comments[0].Content != "nice" {
		t.Fatalf("unexpected comments: %+v", resp.Comments)
	}
	if resp.AverageRating != nil {
		t.Fatalf("expected null average rating, got %v", *resp.AverageRating)
	}

	if _, err := interactions.Rate(context.Background(), models.Rating{VideoID: 1, Rater: "bob", Rating: 4}); err != nil {
		t.Fatalf("rate: %v", err)
	}

	rec = httptest.NewRecorder()
	handler.Detail(rec, req)

	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.AverageRating == nil || *resp.AverageRating != 4.0 {
		t.Fatalf("expected average 4.0, got %v", resp.AverageRating)
	}
}

func TestVideoHandlerDetailNotFound(t *testing.T) {
	handler, _, _, _ := newTestVideoHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/videos/99", nil)
	req.SetPathValue("id", "99")
	rec := httptest.NewRecorder()

	handler.Detail(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status %d got %d", http.StatusNotFound, rec.Code)
	}
}

func TestVideoHandlerComment(t *testing.T) {
	handler, videos, interactions, _ := newTestVideoHandler(t)
	seedVideos(t, videos, models.Video{Title: "Sunset"})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/videos/1/comments", strings.NewReader(`{"content":"great"}`))
	req.SetPathValue("id", "1")
	rec := httptest.NewRecorder()

	handler.Comment(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d for anonymous comment got %d", http.StatusUnauthorized, rec.Code)
	}

	token := loginAs(t, handler, "bob", models.RoleConsumer)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/videos/1/comments", strings.NewReader(`{"content":"great"}`))
	req.SetPathValue("id", "1")
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()

	handler.Comment(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status %d got %d", http.StatusCreated, rec.Code)
	}

	comments, err := interactions.ListComments(context.Background(), 1)
	if err != nil {
		t.Fatalf("list comments: %v", err)
	}
	if len(comments) != 1 || comments[0].Commenter != "bob" {
		t.Fatalf("unexpected comments: %+v", comments)
	}
}

func TestVideoHandlerRate(t *testing.T) {
	handler, videos, _, _ := newTestVideoHandler(t)
	seedVideos(t, videos, models.Video{Title: "Sunset"})

	token := loginAs(t, handler, "bob", models.RoleConsumer)

	rate := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/videos/1/ratings", strings.NewReader(body))
		req.SetPathValue("id", "1")
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		handler.Rate(rec, req)
		return rec
	}

	if rec := rate(`{"rating":4}`); rec.Code != http.StatusCreated {
		t.Fatalf("expected status %d got %d", http.StatusCreated, rec.Code)
	}
	if rec := rate(`{"rating":5}`); rec.Code != http.StatusConflict {
		t.Fatalf("expected status %d for repeat rating got %d", http.StatusConflict, rec.Code)
	}
	if rec := rate(`{"rating":9}`); rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status %d for out-of-range rating got %d", http.StatusUnprocessableEntity, rec.Code)
	}
}

func TestVideoHandlerPublicList(t *testing.T) {
	handler, videos, _, _ := newTestVideoHandler(t)
	seedVideos(t, videos,
		models.Video{Title: "First", Description: "one", Genre: "Nature", AgeRating: "PG", Uploader: "alice"},
		models.Video{Title: "Second", Description: "two", Genre: "Drama", AgeRating: "12", Uploader: "alice"},
	)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/public/videos", nil)
	rec := httptest.NewRecorder()

	handler.PublicList(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d", http.StatusOK, rec.Code)
	}

	var resp []publicVideoPayload
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp) != 2 {
		t.Fatalf("expected 2 videos, got %d", len(resp))
	}
	if resp[0].Title != "Second" || resp[0].Uploader != "alice" {
		t.Fatalf("expected most recent first, got %+v", resp)
	}
}

// End-to-end flow over the handler surface: a creator uploads, a consumer
// rates once, a repeat rating is rejected, and the detail page reflects it.
func TestCatalogFlow(t *testing.T) {
	users := newInMemoryUserStore()
	sessions := newTestSessionManager()
	videos := &fakeVideoStore{}
	interactions := newFakeInteractionStore()

	authHandler := AuthHandler{Users: users, Sessions: sessions}
	videoHandler := VideoHandler{
		Videos:       videos,
		Interactions: interactions,
		Uploads:      &fakeUploadStore{},
		Public:       videos,
		Sessions:     sessions,
	}

	register := func(username, password, role string) {
		body, _ := json.Marshal(registerRequest{Username: username, Password: password, Role: role})
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", bytes.NewReader(body))
		rec := httptest.NewRecorder()
		authHandler.Register(rec, req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("register %s: status %d", username, rec.Code)
		}
	}

	login := func(username, password string) string {
		body, _ := json.Marshal(loginRequest{Username: username, Password: password})
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body))
		rec := httptest.NewRecorder()
		authHandler.Login(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("login %s: status %d", username, rec.Code)
		}
		var resp loginResponse
		if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
			t.Fatalf("decode login response: %v", err)
		}
		return resp.Token
	}

	register("alice", "pw1", "creator")
	register("bob", "pw2", "consumer")

	aliceToken := login("alice", "pw1")
	bobToken := login("bob", "pw2")

	body, contentType := multipartUpload(t, map[string]string{
		"title":       "Sunset",
		"description": "Golden hour.",
		"genre":       "Nature",
	}, "sunset.mp4")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/videos", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+aliceToken)
	rec := httptest.NewRecorder()
	videoHandler.Collection(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("upload: status %d: %s", rec.Code, rec.Body.String())
	}

	var uploaded map[string]int64
	if err := json.NewDecoder(rec.Body).Decode(&uploaded); err != nil {
		t.Fatalf("decode upload response: %v", err)
	}
	videoID := uploaded["id"]

	rate := func(token string, want int) {
		req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/api/v1/videos/%d/ratings", videoID), strings.NewReader(`{"rating":4}`))
		req.SetPathValue("id", fmt.Sprint(videoID))
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		videoHandler.Rate(rec, req)
		if rec.Code != want {
			t.Fatalf("rate: status %d, want %d", rec.Code, want)
		}
	}

	rate(bobToken, http.StatusCreated)
	rate(bobToken, http.StatusConflict)

	req = httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/v1/videos/%d", videoID), nil)
	req.SetPathValue("id", fmt.Sprint(videoID))
	rec = httptest.NewRecorder()
	videoHandler.Detail(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("detail: status %d", rec.Code)
	}

	var detail detailResponse
	if err := json.NewDecoder(rec.Body).Decode(&detail); err != nil {
		t.Fatalf("decode detail response: %v", err)
	}
	if detail.Video.Uploader != "alice" {
		t.Fatalf("expected uploader alice, got %s", detail.Video.Uploader)
	}
	if detail.AverageRating == nil || *detail.AverageRating != 4.0 {
		t.Fatalf("expected average 4.0, got %v", detail.AverageRating)
	}
}
