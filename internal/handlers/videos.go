package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/clipshelf/backend/internal/auth"
	"github.com/clipshelf/backend/internal/logging"
	"github.com/clipshelf/backend/internal/models"
	"github.com/clipshelf/backend/internal/repositories"
	"github.com/clipshelf/backend/internal/storage"
)

// maxUploadBytes caps the in-memory portion of multipart upload parsing.
const maxUploadBytes = 64 << 20

// VideoHandler provides catalog browsing, upload, and interaction endpoints.
type VideoHandler struct {
	Videos       VideoStore
	Interactions InteractionStore
	Uploads      UploadStore
	Public       PublicLister
	Sessions     SessionManager
	Limiter      RateLimiter
	NowFunc      func() time.Time
}

// Collection handles /api/v1/videos: GET lists or searches the catalog,
// POST uploads a new video.
func (h VideoHandler) Collection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.list(w, r)
	case http.MethodPost:
		h.upload(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h VideoHandler) list(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Videos == nil {
		logger.Error("video store unavailable")
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "catalog unavailable"})
		return
	}

	caller := h.caller(r)

	query := strings.TrimSpace(r.URL.Query().Get("q"))
	action := auth.ActionViewDashboard
	if query != "" {
		action = auth.ActionSearch
	}

	if err := auth.Authorize(caller, action); err != nil {
		respondAuthError(ctx, w, err)
		return
	}

	videos, err := h.Videos.List(ctx, query)
	if err != nil {
		logger.Error("list videos failed", "error", err, "query", query)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "unable to list videos"})
		return
	}

	respondJSON(ctx, w, http.StatusOK, listResponse{
		Videos: toVideoPayloads(videos),
		Query:  query,
		Role:   string(caller.Role),
	})
}

func (h VideoHandler) upload(w http.ResponseWriter, r *http.Request) {
	ctx, span := logging.StartSpan(r.Context(), "video.upload")
	defer span.End()
	logger := logging.FromContext(ctx)

	if h.Videos == nil || h.Uploads == nil {
		logger.Error("upload dependencies unavailable", "hasVideos", h.Videos != nil, "hasUploads", h.Uploads != nil)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "upload unavailable"})
		return
	}

	caller := h.caller(r)
	if err := auth.Authorize(caller, auth.ActionUploadVideo); err != nil {
		respondAuthError(ctx, w, err)
		return
	}

	if !allowRequest(h.Limiter, r, "upload") {
		respondJSON(ctx, w, http.StatusTooManyRequests, map[string]string{"error": "too many requests"})
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		logger.Warn("invalid multipart payload", "error", err)
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid multipart request"})
		return
	}

	title := strings.TrimSpace(r.FormValue("title"))
	description := strings.TrimSpace(r.FormValue("description"))
	if title == "" || description == "" {
		logger.Warn("upload missing required fields", "title", title)
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "title and description are required"})
		return
	}

	file, header, err := r.FormFile("video_file")
	if err != nil {
		logger.Warn("upload missing video file", "error", err)
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "video_file is required"})
		return
	}
	defer file.Close()

	if !storage.AllowedExtension(header.Filename) {
		logger.Warn("upload rejected file type", "filename", header.Filename)
		respondJSON(ctx, w, http.StatusUnsupportedMediaType, map[string]string{"error": "invalid file type"})
		return
	}

	path, err := h.Uploads.Save(ctx, header.Filename, file)
	if err != nil {
		if errors.Is(err, storage.ErrUnsupportedExtension) {
			respondJSON(ctx, w, http.StatusUnsupportedMediaType, map[string]string{"error": "invalid file type"})
			return
		}
		logger.Error("upload store failed", "error", err, "filename", header.Filename)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to store upload"})
		return
	}

	video := models.Video{
		Title:       title,
		Description: description,
		Publisher:   strings.TrimSpace(r.FormValue("publisher")),
		Producer:    strings.TrimSpace(r.FormValue("producer")),
		Uploader:    caller.Identity,
		Genre:       strings.TrimSpace(r.FormValue("genre")),
		AgeRating:   strings.TrimSpace(r.FormValue("age_rating")),
		StoragePath: path,
		CreatedAt:   h.now(),
	}

	id, err := h.Videos.Create(ctx, video)
	if err != nil {
		logger.Error("insert video failed", "error", err, "title", title)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to save video"})
		return
	}

	logger.Info("video uploaded", "videoId", id, "uploader", caller.Identity)
	respondJSON(ctx, w, http.StatusCreated, map[string]int64{"id": id})
}

// Detail handles GET /api/v1/videos/{id}: the video, its comments, and its
// average rating (null until the first rating lands).
func (h VideoHandler) Detail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Videos == nil || h.Interactions == nil {
		logger.Error("detail dependencies unavailable", "hasVideos", h.Videos != nil, "hasInteractions", h.Interactions != nil)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "catalog unavailable"})
		return
	}

	if err := auth.Authorize(h.caller(r), auth.ActionViewVideo); err != nil {
		respondAuthError(ctx, w, err)
		return
	}

	id, ok := videoID(r)
	if !ok {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid video id"})
		return
	}

	video, err := h.Videos.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondJSON(ctx, w, http.StatusNotFound, map[string]string{"error": "video not found"})
			return
		}
		logger.Error("fetch video failed", "error", err, "videoId", id)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "unable to fetch video"})
		return
	}

	comments, err := h.Interactions.ListComments(ctx, id)
	if err != nil {
		logger.Error("list comments failed", "error", err, "videoId", id)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "unable to fetch comments"})
		return
	}

	avg, rated, err := h.Interactions.AverageRating(ctx, id)
	if err != nil {
		logger.Error("average rating failed", "error", err, "videoId", id)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "unable to fetch rating"})
		return
	}

	resp := detailResponse{
		Video:    toVideoPayload(video),
		Comments: toCommentPayloads(comments),
	}
	if rated {
		resp.AverageRating = &avg
	}

	respondJSON(ctx, w, http.StatusOK, resp)
}

// Comment handles POST /api/v1/videos/{id}/comments.
func (h VideoHandler) Comment(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Interactions == nil {
		logger.Error("interaction store unavailable")
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "comments unavailable"})
		return
	}

	caller := h.caller(r)
	if err := auth.Authorize(caller, auth.ActionComment); err != nil {
		respondAuthError(ctx, w, err)
		return
	}

	id, ok := videoID(r)
	if !ok {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid video id"})
		return
	}

	var req commentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid comment payload", "error", err)
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	req.Content = strings.TrimSpace(req.Content)
	if req.Content == "" {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "content is required"})
		return
	}

	commentID, err := h.Interactions.AddComment(ctx, models.Comment{
		VideoID:   id,
		Commenter: caller.Identity,
		Content:   req.Content,
		CreatedAt: h.now(),
	})
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondJSON(ctx, w, http.StatusNotFound, map[string]string{"error": "video not found"})
			return
		}
		logger.Error("insert comment failed", "error", err, "videoId", id)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to save comment"})
		return
	}

	respondJSON(ctx, w, http.StatusCreated, map[string]int64{"id": commentID})
}

// Rate handles POST /api/v1/videos/{id}/ratings. A caller rates a video at
// most once; repeats are rejected.
func (h VideoHandler) Rate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx, span := logging.StartSpan(r.Context(), "video.rate")
	defer span.End()
	logger := logging.FromContext(ctx)

	if h.Interactions == nil {
		logger.Error("interaction store unavailable")
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "ratings unavailable"})
		return
	}

	caller := h.caller(r)
	if err := auth.Authorize(caller, auth.ActionRate); err != nil {
		respondAuthError(ctx, w, err)
		return
	}

	id, ok := videoID(r)
	if !ok {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid video id"})
		return
	}

	var req rateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid rating payload", "error", err)
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	ratingID, err := h.Interactions.Rate(ctx, models.Rating{
		VideoID: id,
		Rater:   caller.Identity,
		Rating:  req.Rating,
	})
	if err != nil {
		switch {
		case errors.Is(err, repositories.ErrInvalidRating):
			respondJSON(ctx, w, http.StatusUnprocessableEntity, map[string]string{"error": "rating must be between 1 and 5"})
		case errors.Is(err, repositories.ErrAlreadyRated):
			respondJSON(ctx, w, http.StatusConflict, map[string]string{"error": "you have already rated this video"})
		case errors.Is(err, repositories.ErrNotFound):
			respondJSON(ctx, w, http.StatusNotFound, map[string]string{"error": "video not found"})
		default:
			logger.Error("insert rating failed", "error", err, "videoId", id)
			respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to save rating"})
		}
		return
	}

	respondJSON(ctx, w, http.StatusCreated, map[string]int64{"id": ratingID})
}

// PublicList handles GET /api/v1/public/videos, the open JSON listing.
func (h VideoHandler) PublicList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Public == nil {
		logger.Error("public lister unavailable")
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "catalog unavailable"})
		return
	}

	if err := auth.Authorize(h.caller(r), auth.ActionPublicList); err != nil {
		respondAuthError(ctx, w, err)
		return
	}

	videos, err := h.Public.List(ctx, "")
	if err != nil {
		logger.Error("public list failed", "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "unable to list videos"})
		return
	}

	payload := make([]publicVideoPayload, 0, len(videos))
	for _, video := range videos {
		payload = append(payload, publicVideoPayload{
			ID:          video.ID,
			Title:       video.Title,
			Description: video.Description,
			Genre:       video.Genre,
			AgeRating:   video.AgeRating,
			Uploader:    video.Uploader,
		})
	}

	respondJSON(ctx, w, http.StatusOK, payload)
}

// caller resolves the request's bearer token to a caller context. Missing,
// unknown, and expired tokens all resolve to anonymous.
func (h VideoHandler) caller(r *http.Request) auth.Context {
	if h.Sessions == nil {
		return auth.Anonymous
	}
	token := bearerToken(r)
	if token == "" {
		return auth.Anonymous
	}
	caller, err := h.Sessions.Resolve(r.Context(), token)
	if err != nil {
		return auth.Anonymous
	}
	return caller
}

func (h VideoHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}

func respondAuthError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrNotAuthenticated):
		respondJSON(ctx, w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
	case errors.Is(err, auth.ErrWrongRole):
		respondJSON(ctx, w, http.StatusForbidden, map[string]string{"error": "role does not permit this action"})
	default:
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "authorization failed"})
	}
}

func videoID(r *http.Request) (int64, bool) {
	raw := r.PathValue("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

type listResponse struct {
	Videos []videoPayload `json:"videos"`
	Query  string         `json:"query"`
	Role   string         `json:"role"`
}

type detailResponse struct {
	Video         videoPayload     `json:"video"`
	Comments      []commentPayload `json:"comments"`
	AverageRating *float64         `json:"averageRating"`
}

type commentRequest struct {
	Content string `json:"content"`
}

type rateRequest struct {
	Rating int `json:"rating"`
}

type videoPayload struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Publisher   string `json:"publisher,omitempty"`
	Producer    string `json:"producer,omitempty"`
	Uploader    string `json:"uploader"`
	Genre       string `json:"genre,omitempty"`
	AgeRating   string `json:"ageRating,omitempty"`
}

type commentPayload struct {
	ID        int64  `json:"id"`
	Commenter string `json:"commenter"`
	Content   string `json:"content"`
}

type publicVideoPayload struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Genre       string `json:"genre"`
	AgeRating   string `json:"age_rating"`
	Uploader    string `json:"uploader"`
}

func toVideoPayload(video models.Video) videoPayload {
	return videoPayload{
		ID:          video.ID,
		Title:       video.Title,
		Description: video.Description,
		Publisher:   video.Publisher,
		Producer:    video.Producer,
		Uploader:    video.Uploader,
		Genre:       video.Genre,
		AgeRating:   video.AgeRating,
	}
}

func toVideoPayloads(videos []models.Video) []videoPayload {
	payloads := make([]videoPayload, 0, len(videos))
	for _, video := range videos {
		payloads = append(payloads, toVideoPayload(video))
	}
	return payloads
}

func toCommentPayloads(comments []models.Comment) []commentPayload {
	payloads := make([]commentPayload, 0, len(comments))
	for _, comment := range comments {
		payloads = append(payloads, commentPayload{
			ID:        comment.ID,
			Commenter: comment.Commenter,
			Content:   comment.Content,
		})
	}
	return payloads
}
