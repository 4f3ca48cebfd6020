package handlers

import (
	"errors"
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

// PlaylistHandler implements the playlist endpoints.
type PlaylistHandler struct {
	Playlists repositories.PlaylistRepository
	Videos    repositories.VideoRepository
	Users     UserStore
	Engine    *pipelines.Engine
	NowFunc   func() time.Time
}

type playlistRequest struct {
	Name        string `json:"name" validate:"required,notblank,max=120"`
	Description string `json:"description" validate:"required,notblank,max=2000"`
}

type playlistPatchRequest struct {
	Name        *string `json:"name" validate:"omitempty,notblank,max=120"`
	Description *string `json:"description" validate:"omitempty,notblank,max=2000"`
}

// Create handles POST /api/v1/playlists.
func (h PlaylistHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req playlistRequest
	if err := decodeJSON(r, &req); err != nil {
		envelope.WriteError(ctx, w, err)
		return
	}

	now := h.now()
	playlist := models.Playlist{
		ID:          uuid.NewString(),
		Name:        strings.TrimSpace(req.Name),
		Description: strings.TrimSpace(req.Description),
		OwnerID:     caller(r),
		VideoIDs:    []string{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := h.Playlists.Create(ctx, playlist); err != nil {
		envelope.WriteError(ctx, w, apperr.Internal(err, "failed to create playlist"))
		return
	}
	envelope.Write(ctx, w, http.StatusCreated, playlist, "Playlist created successfully")
}

// UserPlaylists handles GET /api/v1/playlists/user/{userId}.
func (h PlaylistHandler) UserPlaylists(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, err := pathID(r, "userId", "user id")
	if err != nil {
		envelope.WriteError(ctx, w, err)
		return
	}
	if _, err := h.Users.FindByID(ctx, userID); err != nil {
		envelope.WriteError(ctx, w, lookupError(err, "user"))
		return
	}

	recipe, err := pipelines.UserPlaylists(userID, listOptions(r))
	if err != nil {
		envelope.WriteError(ctx, w, err)
		return
	}
	page, err := h.Engine.Page(ctx, recipe, pageRequest(h.Engine, r))
	if err != nil {
		envelope.WriteError(ctx, w, err)
		return
	}
	envelope.Write(ctx, w, http.StatusOK, page, "Playlists fetched successfully")
}

// Get handles GET /api/v1/playlists/{playlistId}.
func (h PlaylistHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	playlistID, err := pathID(r, "playlistId", "playlist id")
	if err != nil {
		envelope.WriteError(ctx, w, err)
		return
	}
	recipe, err := pipelines.Playlist(playlistID)
	if err != nil {
		envelope.WriteError(ctx, w, err)
		return
	}
	doc, err := h.Engine.One(ctx, recipe, "playlist")
	if err != nil {
		envelope.WriteError(ctx, w, err)
		return
	}
	envelope.Write(ctx, w, http.StatusOK, doc, "Playlist fetched successfully")
}

// Update handles PATCH /api/v1/playlists/{playlistId}. At least one of name or description
// must be sent.
func (h PlaylistHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	playlistID, err := pathID(r, "playlistId", "playlist id")
	if err != nil {
		envelope.WriteError(ctx, w, err)
		return
	}
	var req playlistPatchRequest
	if err := decodeJSON(r, &req); err != nil {
		envelope.WriteError(ctx, w, err)
		return
	}
	if req.Name == nil && req.Description == nil {
		envelope.WriteError(ctx, w, apperr.Validation("provide a name or description to update"))
		return
	}

	playlist, err := guard.Authorize(ctx, h.Playlists.FindByID, playlistID, caller(r), "playlist")
	if err != nil {
		envelope.WriteError(ctx, w, err)
		return
	}

	patch := models.PlaylistPatch{}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		patch.Name = &name
		playlist.Name = name
	}
	if req.Description != nil {
		description := strings.TrimSpace(*req.Description)
		patch.Description = &description
		playlist.Description = description
	}
	if err := h.Playlists.Update(ctx, playlist.ID, patch); err != nil {
		envelope.WriteError(ctx, w, lookupError(err, "playlist"))
		return
	}
	playlist.UpdatedAt = h.now()
	envelope.Write(ctx, w, http.StatusOK, playlist, "Playlist updated successfully")
}

// Delete handles DELETE /api/v1/playlists/{playlistId}.
func (h PlaylistHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	playlistID, err := pathID(r, "playlistId", "playlist id")
	if err != nil {
		envelope.WriteError(ctx, w, err)
		return
	}
	playlist, err := guard.Authorize(ctx, h.Playlists.FindByID, playlistID, caller(r), "playlist")
	if err != nil {
		envelope.WriteError(ctx, w, err)
		return
	}
	if err := h.Playlists.Delete(ctx, playlist.ID); err != nil {
		envelope.WriteError(ctx, w, lookupError(err, "playlist"))
		return
	}
	envelope.Write(ctx, w, http.StatusOK, map[string]any{}, "Playlist deleted successfully")
}

// AddVideo handles PATCH /api/v1/playlists/{playlistId}/add/{videoId}.
func (h PlaylistHandler) AddVideo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	playlist, videoID, ok := h.entry(w, r)
	if !ok {
		return
	}
	if _, err := h.Videos.FindByID(ctx, videoID); err != nil {
		envelope.WriteError(ctx, w, lookupError(err, "video"))
		return
	}

	if err := h.Playlists.AddVideo(ctx, playlist.ID, videoID); err != nil {
		switch {
		case errors.Is(err, repositories.ErrConflict):
			envelope.WriteError(ctx, w, apperr.Validation("video is already in the playlist"))
		case errors.Is(err, repositories.ErrConstraint):
			envelope.WriteError(ctx, w, apperr.NotFound("video not found"))
		default:
			envelope.WriteError(ctx, w, apperr.Internal(err, "failed to add video to playlist"))
		}
		return
	}
	h.respondDetail(w, r, playlist.ID, "Video added to playlist")
}

// RemoveVideo handles PATCH /api/v1/playlists/{playlistId}/remove/{videoId}.
func (h PlaylistHandler) RemoveVideo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	playlist, videoID, ok := h.entry(w, r)
	if !ok {
		return
	}
	if err := h.Playlists.RemoveVideo(ctx, playlist.ID, videoID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			envelope.WriteError(ctx, w, apperr.Validation("video is not in the playlist"))
			return
		}
		envelope.WriteError(ctx, w, apperr.Internal(err, "failed to remove video from playlist"))
		return
	}
	h.respondDetail(w, r, playlist.ID, "Video removed from playlist")
}

// entry resolves the playlist and video path parameters and checks the caller owns the
// playlist. It writes the error response itself and reports whether to continue.
func (h PlaylistHandler) entry(w http.ResponseWriter, r *http.Request) (models.Playlist, string, bool) {
	ctx := r.Context()
	playlistID, err := pathID(r, "playlistId", "playlist id")
	if err != nil {
		envelope.WriteError(ctx, w, err)
		return models.Playlist{}, "", false
	}
	videoID, err := pathID(r, "videoId", "video id")
	if err != nil {
		envelope.WriteError(ctx, w, err)
		return models.Playlist{}, "", false
	}
	playlist, err := guard.Authorize(ctx, h.Playlists.FindByID, playlistID, caller(r), "playlist")
	if err != nil {
		envelope.WriteError(ctx, w, err)
		return models.Playlist{}, "", false
	}
	return playlist, videoID, true
}

func (h PlaylistHandler) respondDetail(w http.ResponseWriter, r *http.Request, playlistID, message string) {
	ctx := r.Context()
	recipe, err := pipelines.Playlist(playlistID)
	if err != nil {
		envelope.WriteError(ctx, w, err)
		return
	}
	doc, err := h.Engine.One(ctx, recipe, "playlist")
	if err != nil {
		envelope.WriteError(ctx, w, err)
		return
	}
	envelope.Write(ctx, w, http.StatusOK, doc, message)
}

func (h PlaylistHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}
