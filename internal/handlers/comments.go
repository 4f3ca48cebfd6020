package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vidtube/backend/internal/apperr"
	"github.com/vidtube/backend/internal/envelope"
	"github.com/vidtube/backend/internal/guard"
	"github.com/vidtube/backend/internal/models"
	"github.com/vidtube/backend/internal/pipelines"
	"github.com/vidtube/backend/internal/repositories"
)

// CommentHandler implements the comment endpoints.
type CommentHandler struct {
	Comments repositories.CommentRepository
	Videos   repositories.VideoRepository
	Engine   *pipelines.Engine
	NowFunc  func() time.Time
}

type commentRequest struct {
	Content string `json:"content" validate:"required,notblank,max=2000"`
}

// List handles GET /api/v1/comments/{videoId}.
func (h CommentHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	videoID, err := pathID(r, "videoId", "video id")
	if err != nil {
		envelope.WriteError(ctx, w, err)
		return
	}
	if _, err := h.Videos.FindByID(ctx, videoID); err != nil {
		envelope.WriteError(ctx, w, lookupError(err, "video"))
		return
	}

	recipe, err := pipelines.VideoComments(videoID, listOptions(r))
	if err != nil {
		envelope.WriteError(ctx, w, err)
		return
	}
	page, err := h.Engine.Page(ctx, recipe, pageRequest(h.Engine, r))
	if err != nil {
		envelope.WriteError(ctx, w, err)
		return
	}
	envelope.Write(ctx, w, http.StatusOK, page, "Comments fetched successfully")
}

// Add handles POST /api/v1/comments/{videoId}.
func (h CommentHandler) Add(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	videoID, err := pathID(r, "videoId", "video id")
	if err != nil {
		envelope.WriteError(ctx, w, err)
		return
	}
	var req commentRequest
	if err := decodeJSON(r, &req); err != nil {
		envelope.WriteError(ctx, w, err)
		return
	}
	if _, err := h.Videos.FindByID(ctx, videoID); err != nil {
		envelope.WriteError(ctx, w, lookupError(err, "video"))
		return
	}

	now := h.now()
	comment := models.Comment{
		ID:        uuid.NewString(),
		Content:   strings.TrimSpace(req.Content),
		VideoID:   videoID,
		OwnerID:   caller(r),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := h.Comments.Create(ctx, comment); err != nil {
		envelope.WriteError(ctx, w, apperr.Internal(err, "failed to add comment"))
		return
	}
	envelope.Write(ctx, w, http.StatusCreated, comment, "Comment added successfully")
}

// Update handles PATCH /api/v1/comments/c/{commentId}.
func (h CommentHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	commentID, err := pathID(r, "commentId", "comment id")
	if err != nil {
		envelope.WriteError(ctx, w, err)
		return
	}
	var req commentRequest
	if err := decodeJSON(r, &req); err != nil {
		envelope.WriteError(ctx, w, err)
		return
	}

	comment, err := guard.Authorize(ctx, h.Comments.FindByID, commentID, caller(r), "comment")
	if err != nil {
		envelope.WriteError(ctx, w, err)
		return
	}

	content := strings.TrimSpace(req.Content)
	if err := h.Comments.UpdateContent(ctx, comment.ID, content); err != nil {
		envelope.WriteError(ctx, w, lookupError(err, "comment"))
		return
	}
	comment.Content = content
	comment.UpdatedAt = h.now()
	envelope.Write(ctx, w, http.StatusOK, comment, "Comment updated successfully")
}

// Delete handles DELETE /api/v1/comments/c/{commentId}.
func (h CommentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	commentID, err := pathID(r, "commentId", "comment id")
	if err != nil {
		envelope.WriteError(ctx, w, err)
		return
	}

	comment, err := guard.Authorize(ctx, h.Comments.FindByID, commentID, caller(r), "comment")
	if err != nil {
		envelope.WriteError(ctx, w, err)
		return
	}
	if err := h.Comments.Delete(ctx, comment.ID); err != nil {
		envelope.WriteError(ctx, w, lookupError(err, "comment"))
		return
	}
	envelope.Write(ctx, w, http.StatusOK, map[string]any{}, "Comment deleted successfully")
}

func (h CommentHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}
