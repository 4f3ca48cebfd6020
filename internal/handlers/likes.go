package handlers

import (
	"context"
	"net/http"

	"github.com/vidtube/backend/internal/envelope"
	"github.com/vidtube/backend/internal/models"
	"github.com/vidtube/backend/internal/pipelines"
	"github.com/vidtube/backend/internal/repositories"
)

// LikeHandler implements the like toggles and the liked-videos listing.
type LikeHandler struct {
	Toggles  Toggler
	Videos   repositories.VideoRepository
	Comments repositories.CommentRepository
	Tweets   repositories.TweetRepository
	Engine   *pipelines.Engine
}

// ToggleVideo handles POST /api/v1/likes/video/{id}.
func (h LikeHandler) ToggleVideo(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, models.LikeTargetVideo, func(ctx context.Context, id string) error {
		_, err := h.Videos.FindByID(ctx, id)
		return err
	})
}

// ToggleComment handles POST /api/v1/likes/comment/{id}.
func (h LikeHandler) ToggleComment(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, models.LikeTargetComment, func(ctx context.Context, id string) error {
		_, err := h.Comments.FindByID(ctx, id)
		return err
	})
}

// ToggleTweet handles POST /api/v1/likes/tweet/{id}.
func (h LikeHandler) ToggleTweet(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, models.LikeTargetTweet, func(ctx context.Context, id string) error {
		_, err := h.Tweets.FindByID(ctx, id)
		return err
	})
}

func (h LikeHandler) toggle(w http.ResponseWriter, r *http.Request, kind models.LikeTarget, exists func(context.Context, string) error) {
	ctx := r.Context()
	targetID, err := pathID(r, "id", string(kind)+" id")
	if err != nil {
		envelope.WriteError(ctx, w, err)
		return
	}
	if err := exists(ctx, targetID); err != nil {
		envelope.WriteError(ctx, w, lookupError(err, string(kind)))
		return
	}

	liked, err := h.Toggles.Like(ctx, caller(r), kind, targetID)
	if err != nil {
		envelope.WriteError(ctx, w, err)
		return
	}

	message := "Like removed successfully"
	if liked {
		message = "Liked successfully"
	}
	envelope.Write(ctx, w, http.StatusOK, map[string]bool{"isLiked": liked}, message)
}

// LikedVideos handles GET /api/v1/likes/videos.
func (h LikeHandler) LikedVideos(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	recipe, err := pipelines.LikedVideos(caller(r), listOptions(r))
	if err != nil {
		envelope.WriteError(ctx, w, err)
		return
	}
	page, err := h.Engine.Page(ctx, recipe, pageRequest(h.Engine, r))
	if err != nil {
		envelope.WriteError(ctx, w, err)
		return
	}
	envelope.Write(ctx, w, http.StatusOK, page, "Liked videos fetched successfully")
}
