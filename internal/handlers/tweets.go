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

// TweetHandler implements the tweet endpoints.
type TweetHandler struct {
	Tweets  repositories.TweetRepository
	Users   UserStore
	Engine  *pipelines.Engine
	NowFunc func() time.Time
}

type tweetRequest struct {
	Content string `json:"content" validate:"required,notblank,max=280"`
}

// Create handles POST /api/v1/tweets.
func (h TweetHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req tweetRequest
	if err := decodeJSON(r, &req); err != nil {
		envelope.WriteError(ctx, w, err)
		return
	}

	now := h.now()
	tweet := models.Tweet{
		ID:        uuid.NewString(),
		Content:   strings.TrimSpace(req.Content),
		OwnerID:   caller(r),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := h.Tweets.Create(ctx, tweet); err != nil {
		envelope.WriteError(ctx, w, apperr.Internal(err, "failed to create tweet"))
		return
	}
	envelope.Write(ctx, w, http.StatusCreated, tweet, "Tweet created successfully")
}

// UserTweets handles GET /api/v1/tweets/user/{username}.
func (h TweetHandler) UserTweets(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	username := strings.ToLower(strings.TrimSpace(chiParam(r, "username")))
	if username == "" {
		envelope.WriteError(ctx, w, apperr.Validation("username is required"))
		return
	}
	user, err := h.Users.FindByUsername(ctx, username)
	if err != nil {
		envelope.WriteError(ctx, w, lookupError(err, "user"))
		return
	}

	recipe, err := pipelines.UserTweets(user.ID, listOptions(r))
	if err != nil {
		envelope.WriteError(ctx, w, err)
		return
	}
	page, err := h.Engine.Page(ctx, recipe, pageRequest(h.Engine, r))
	if err != nil {
		envelope.WriteError(ctx, w, err)
		return
	}
	envelope.Write(ctx, w, http.StatusOK, page, "Tweets fetched successfully")
}

// Get handles GET /api/v1/tweets/{tweetId}.
func (h TweetHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tweetID, err := pathID(r, "tweetId", "tweet id")
	if err != nil {
		envelope.WriteError(ctx, w, err)
		return
	}
	recipe, err := pipelines.Tweet(tweetID)
	if err != nil {
		envelope.WriteError(ctx, w, err)
		return
	}
	doc, err := h.Engine.One(ctx, recipe, "tweet")
	if err != nil {
		envelope.WriteError(ctx, w, err)
		return
	}
	envelope.Write(ctx, w, http.StatusOK, doc, "Tweet fetched successfully")
}

// Update handles PATCH /api/v1/tweets/{tweetId}.
func (h TweetHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tweetID, err := pathID(r, "tweetId", "tweet id")
	if err != nil {
		envelope.WriteError(ctx, w, err)
		return
	}
	var req tweetRequest
	if err := decodeJSON(r, &req); err != nil {
		envelope.WriteError(ctx, w, err)
		return
	}

	tweet, err := guard.Authorize(ctx, h.Tweets.FindByID, tweetID, caller(r), "tweet")
	if err != nil {
		envelope.WriteError(ctx, w, err)
		return
	}
	content := strings.TrimSpace(req.Content)
	if err := h.Tweets.UpdateContent(ctx, tweet.ID, content); err != nil {
		envelope.WriteError(ctx, w, lookupError(err, "tweet"))
		return
	}
	tweet.Content = content
	tweet.UpdatedAt = h.now()
	envelope.Write(ctx, w, http.StatusOK, tweet, "Tweet updated successfully")
}

// Delete handles DELETE /api/v1/tweets/{tweetId}.
func (h TweetHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tweetID, err := pathID(r, "tweetId", "tweet id")
	if err != nil {
		envelope.WriteError(ctx, w, err)
		return
	}
	tweet, err := guard.Authorize(ctx, h.Tweets.FindByID, tweetID, caller(r), "tweet")
	if err != nil {
		envelope.WriteError(ctx, w, err)
		return
	}
	if err := h.Tweets.Delete(ctx, tweet.ID); err != nil {
		envelope.WriteError(ctx, w, lookupError(err, "tweet"))
		return
	}
	envelope.Write(ctx, w, http.StatusOK, map[string]any{}, "Tweet deleted successfully")
}

func (h TweetHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}
