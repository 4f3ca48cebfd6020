package handlers

import (
	"context"
	"errors"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vidtube/backend/internal/apperr"
	"github.com/vidtube/backend/internal/envelope"
	"github.com/vidtube/backend/internal/guard"
	"github.com/vidtube/backend/internal/logging"
	"github.com/vidtube/backend/internal/media"
	"github.com/vidtube/backend/internal/models"
	"github.com/vidtube/backend/internal/pipelines"
	"github.com/vidtube/backend/internal/query"
	"github.com/vidtube/backend/internal/repositories"
	"github.com/vidtube/backend/internal/validation"
)

// VideoHandler implements the video endpoints.
type VideoHandler struct {
	Videos  repositories.VideoRepository
	Engine  *pipelines.Engine
	Media   media.Store
	Prober  DurationProber
	// Reaper, when set, removes replaced and deleted media in the background.
	Reaper  MediaReaper
	NowFunc func() time.Time
}

type videoRequest struct {
	Title       string `json:"title" validate:"required,notblank,max=200"`
	Description string `json:"description" validate:"required,notblank,max=5000"`
}

type videoPatchRequest struct {
	Title       *string `json:"title" validate:"omitempty,notblank,max=200"`
	Description *string `json:"description" validate:"omitempty,notblank,max=5000"`
}

// List handles GET /api/v1/videos.
func (h VideoHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	filter, err := videoFilter(r)
	if err != nil {
		envelope.WriteError(ctx, w, err)
		return
	}
	filter.OwnerID = strings.TrimSpace(r.URL.Query().Get("userId"))

	recipe, err := pipelines.ListVideos(filter, listOptions(r))
	if err != nil {
		envelope.WriteError(ctx, w, err)
		return
	}
	page, err := h.Engine.Page(ctx, recipe, pageRequest(h.Engine, r))
	if err != nil {
		envelope.WriteError(ctx, w, err)
		return
	}
	envelope.Write(ctx, w, http.StatusOK, page, "Videos fetched successfully")
}

func videoFilter(r *http.Request) (pipelines.VideoFilter, error) {
	published, err := optionalBool(r, "isPublished")
	if err != nil {
		return pipelines.VideoFilter{}, err
	}
	public, err := optionalBool(r, "isPublic")
	if err != nil {
		return pipelines.VideoFilter{}, err
	}
	return pipelines.VideoFilter{
		Query:     r.URL.Query().Get("query"),
		Published: published,
		Public:    public,
		CallerID:  caller(r),
	}, nil
}

// Publish handles POST /api/v1/videos. The multipart form carries title, description, the
// videoFile and a thumbnail image.
func (h VideoHandler) Publish(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if err := parseMultipart(r); err != nil {
		envelope.WriteError(ctx, w, err)
		return
	}
	req := videoRequest{
		Title:       strings.TrimSpace(r.FormValue("title")),
		Description: strings.TrimSpace(r.FormValue("description")),
	}
	if err := validation.Struct(req); err != nil {
		envelope.WriteError(ctx, w, err)
		return
	}

	videoFile, err := requiredFile(r, "videoFile", "video file")
	if err != nil {
		envelope.WriteError(ctx, w, err)
		return
	}
	defer videoFile.Close()
	thumbnail, err := requiredFile(r, "thumbnail", "thumbnail")
	if err != nil {
		envelope.WriteError(ctx, w, err)
		return
	}
	defer thumbnail.Close()

	spooled, cleanup, err := media.Spool(videoFile)
	if err != nil {
		if errors.Is(err, media.ErrEmptyUpload) {
			envelope.WriteError(ctx, w, apperr.Validation("video file is empty"))
			return
		}
		envelope.WriteError(ctx, w, apperr.Internal(err, "failed to read video file"))
		return
	}
	defer cleanup()

	var duration float64
	if h.Prober != nil {
		if duration, err = h.Prober.Duration(ctx, spooled.Name()); err != nil {
			logger.Warn("video probe failed", slog.Any("error", err))
			envelope.WriteError(ctx, w, apperr.Validation("uploaded file is not a readable video"))
			return
		}
	}

	uploads := media.NewUploads(h.Media)
	videoAsset, err := uploads.Store(ctx, spooled, media.KindVideo)
	if err != nil {
		envelope.WriteError(ctx, w, apperr.Dependency(err, "failed to upload video file"))
		return
	}
	thumbAsset, err := uploads.Store(ctx, thumbnail, media.KindImage)
	if err != nil {
		uploads.Compensate(ctx)
		envelope.WriteError(ctx, w, apperr.Dependency(err, "failed to upload thumbnail"))
		return
	}

	now := h.now()
	video := models.Video{
		ID:          uuid.NewString(),
		VideoFile:   videoAsset,
		Thumbnail:   thumbAsset,
		Title:       req.Title,
		Description: req.Description,
		Duration:    duration,
		IsPublished: true,
		IsPublic:    true,
		OwnerID:     caller(r),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := h.Videos.Create(ctx, video); err != nil {
		uploads.Compensate(ctx)
		envelope.WriteError(ctx, w, apperr.Internal(err, "failed to save video"))
		return
	}

	doc, err := h.read(ctx, video.ID)
	if err != nil {
		envelope.WriteError(ctx, w, apperr.Integrity(err, "video was saved but could not be read back"))
		return
	}
	logger.Info("video published", slog.String("video_id", video.ID))
	envelope.Write(ctx, w, http.StatusCreated, doc, "Video uploaded successfully")
}

func requiredFile(r *http.Request, field, what string) (multipart.File, error) {
	file, err := formFile(r, field)
	if err != nil {
		return nil, err
	}
	if file == nil {
		return nil, apperr.Validation("%s is required", what)
	}
	return file, nil
}

// Get handles GET /api/v1/videos/{videoId}. Each fetch counts a view and, for signed-in viewers,
// moves the video to the front of their watch history. Unpublished or private videos are only
// visible to their owner.
func (h VideoHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	videoID, err := pathID(r, "videoId", "video id")
	if err != nil {
		envelope.WriteError(ctx, w, err)
		return
	}

	doc, err := h.read(ctx, videoID)
	if err != nil {
		envelope.WriteError(ctx, w, err)
		return
	}
	viewer := caller(r)
	if !visibleTo(doc, viewer) {
		envelope.WriteError(ctx, w, apperr.NotFound("video not found"))
		return
	}

	if err := h.Videos.RecordView(ctx, videoID, viewer, h.now()); err != nil {
		envelope.WriteError(ctx, w, lookupError(err, "video"))
		return
	}

	doc, err = h.read(ctx, videoID)
	if err != nil {
		envelope.WriteError(ctx, w, err)
		return
	}
	envelope.Write(ctx, w, http.StatusOK, doc, "Video fetched successfully")
}

func visibleTo(doc query.Document, viewer string) bool {
	owner, _ := doc.Get("owner")
	if viewer != "" && owner == viewer {
		return true
	}
	published, _ := doc.Get("isPublished")
	public, _ := doc.Get("isPublic")
	return published == true && public == true
}

// Update handles PATCH /api/v1/videos/{videoId}. Title and description may be sent as JSON or
// multipart; a multipart thumbnail replaces the current one.
func (h VideoHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	videoID, err := pathID(r, "videoId", "video id")
	if err != nil {
		envelope.WriteError(ctx, w, err)
		return
	}

	var (
		req       videoPatchRequest
		thumbnail multipart.File
	)
	if isMultipart(r) {
		if err := parseMultipart(r); err != nil {
			envelope.WriteError(ctx, w, err)
			return
		}
		if _, ok := r.MultipartForm.Value["title"]; ok {
			title := strings.TrimSpace(r.FormValue("title"))
			req.Title = &title
		}
		if _, ok := r.MultipartForm.Value["description"]; ok {
			description := strings.TrimSpace(r.FormValue("description"))
			req.Description = &description
		}
		if thumbnail, err = formFile(r, "thumbnail"); err != nil {
			envelope.WriteError(ctx, w, err)
			return
		}
		if thumbnail != nil {
			defer thumbnail.Close()
		}
		if err := validation.Struct(req); err != nil {
			envelope.WriteError(ctx, w, err)
			return
		}
	} else if err := decodeJSON(r, &req); err != nil {
		envelope.WriteError(ctx, w, err)
		return
	}
	if req.Title == nil && req.Description == nil && thumbnail == nil {
		envelope.WriteError(ctx, w, apperr.Validation("provide a title, description or thumbnail to update"))
		return
	}

	video, err := guard.Authorize(ctx, h.Videos.FindByID, videoID, caller(r), "video")
	if err != nil {
		envelope.WriteError(ctx, w, err)
		return
	}

	patch := models.VideoPatch{Title: req.Title, Description: req.Description}
	uploads := media.NewUploads(h.Media)
	if thumbnail != nil {
		asset, err := uploads.Store(ctx, thumbnail, media.KindImage)
		if err != nil {
			envelope.WriteError(ctx, w, apperr.Dependency(err, "failed to upload thumbnail"))
			return
		}
		patch.Thumbnail = &asset
	}

	if err := h.Videos.Update(ctx, video.ID, patch); err != nil {
		uploads.Compensate(ctx)
		envelope.WriteError(ctx, w, lookupError(err, "video"))
		return
	}
	if patch.Thumbnail != nil && video.Thumbnail.StorageKey != "" {
		h.removeMedia(ctx, video.Thumbnail.StorageKey, media.KindImage)
	}

	doc, err := h.read(ctx, video.ID)
	if err != nil {
		envelope.WriteError(ctx, w, err)
		return
	}
	envelope.Write(ctx, w, http.StatusOK, doc, "Video updated successfully")
}

// Delete handles DELETE /api/v1/videos/{videoId}. The record goes first; media that fails to
// delete afterwards is logged and left behind.
func (h VideoHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	videoID, err := pathID(r, "videoId", "video id")
	if err != nil {
		envelope.WriteError(ctx, w, err)
		return
	}

	video, err := guard.Authorize(ctx, h.Videos.FindByID, videoID, caller(r), "video")
	if err != nil {
		envelope.WriteError(ctx, w, err)
		return
	}

	if err := h.Videos.Delete(ctx, video.ID); err != nil {
		envelope.WriteError(ctx, w, lookupError(err, "video"))
		return
	}
	h.removeMedia(ctx, video.VideoFile.StorageKey, media.KindVideo)
	h.removeMedia(ctx, video.Thumbnail.StorageKey, media.KindImage)

	envelope.Write(ctx, w, http.StatusOK, map[string]any{}, "Video deleted successfully")
}

// TogglePublish handles PATCH /api/v1/videos/{videoId}/publish.
func (h VideoHandler) TogglePublish(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	videoID, err := pathID(r, "videoId", "video id")
	if err != nil {
		envelope.WriteError(ctx, w, err)
		return
	}

	if _, err := guard.Authorize(ctx, h.Videos.FindByID, videoID, caller(r), "video"); err != nil {
		envelope.WriteError(ctx, w, err)
		return
	}

	published, err := h.Videos.TogglePublish(ctx, videoID)
	if err != nil {
		envelope.WriteError(ctx, w, lookupError(err, "video"))
		return
	}
	envelope.Write(ctx, w, http.StatusOK, map[string]bool{"isPublished": published}, "Video publish status updated")
}

func (h VideoHandler) read(ctx context.Context, videoID string) (query.Document, error) {
	recipe, err := pipelines.Video(videoID)
	if err != nil {
		return nil, err
	}
	return h.Engine.One(ctx, recipe, "video")
}

func (h VideoHandler) removeMedia(ctx context.Context, key string, kind media.Kind) {
	if key == "" {
		return
	}
	if h.Reaper != nil {
		err := h.Reaper.Enqueue(ctx, key, kind)
		if err == nil {
			return
		}
		logging.FromContext(ctx).Warn("media reaper unavailable, removing inline", slog.Any("error", err))
	}
	if err := h.Media.Remove(ctx, key, kind); err != nil {
		logging.FromContext(ctx).Error("failed to remove media",
			slog.String("key", key),
			slog.String("kind", string(kind)),
			slog.Any("error", err),
		)
	}
}

func (h VideoHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}
