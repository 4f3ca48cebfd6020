package handlers

import (
	"errors"
	"net/http"

	"github.com/vidtube/backend/internal/apperr"
	"github.com/vidtube/backend/internal/envelope"
	"github.com/vidtube/backend/internal/pipelines"
	"github.com/vidtube/backend/internal/repositories"
)

// UserHandler serves the authenticated caller's profile and watch history.
type UserHandler struct {
	Users   UserStore
	History repositories.WatchHistoryRepository
	Engine  *pipelines.Engine
}

// Me handles GET /api/v1/users/me.
func (h UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, err := h.Users.FindByID(ctx, caller(r))
	if err != nil {
		envelope.WriteError(ctx, w, lookupError(err, "user"))
		return
	}
	envelope.Write(ctx, w, http.StatusOK, user, "Current user fetched successfully")
}

// ListHistory handles GET /api/v1/users/history, newest first.
func (h UserHandler) ListHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	recipe, err := pipelines.UserWatchHistory(caller(r), listOptions(r))
	if err != nil {
		envelope.WriteError(ctx, w, err)
		return
	}
	page, err := h.Engine.Page(ctx, recipe, pageRequest(h.Engine, r))
	if err != nil {
		envelope.WriteError(ctx, w, err)
		return
	}
	envelope.Write(ctx, w, http.StatusOK, page, "Watch history fetched successfully")
}

// RemoveHistoryEntry handles DELETE /api/v1/users/history/{videoId}.
func (h UserHandler) RemoveHistoryEntry(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	videoID, err := pathID(r, "videoId", "video id")
	if err != nil {
		envelope.WriteError(ctx, w, err)
		return
	}
	if err := h.History.RemoveWatchHistory(ctx, caller(r), videoID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			envelope.WriteError(ctx, w, apperr.NotFound("video is not in your watch history"))
			return
		}
		envelope.WriteError(ctx, w, apperr.Internal(err, "failed to update watch history"))
		return
	}
	envelope.Write(ctx, w, http.StatusOK, map[string]any{}, "Video removed from watch history")
}

// ClearHistory handles DELETE /api/v1/users/history.
func (h UserHandler) ClearHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.History.ClearWatchHistory(ctx, caller(r)); err != nil {
		envelope.WriteError(ctx, w, apperr.Internal(err, "failed to clear watch history"))
		return
	}
	envelope.Write(ctx, w, http.StatusOK, map[string]any{}, "Watch history cleared")
}
