package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/vidtube/backend/internal/apperr"
	"github.com/vidtube/backend/internal/envelope"
	"github.com/vidtube/backend/internal/models"
	"github.com/vidtube/backend/internal/pipelines"
)

// SubscriptionHandler implements the subscription toggle and listings. Channels are addressed
// by username.
type SubscriptionHandler struct {
	Users   UserStore
	Toggles Toggler
	Engine  *pipelines.Engine
}

func (h SubscriptionHandler) resolve(ctx context.Context, r *http.Request, what string) (models.User, error) {
	username := strings.ToLower(strings.TrimSpace(chiParam(r, "username")))
	if username == "" {
		return models.User{}, apperr.Validation("username is required")
	}
	user, err := h.Users.FindByUsername(ctx, username)
	if err != nil {
		return models.User{}, lookupError(err, what)
	}
	return user, nil
}

// Toggle handles POST /api/v1/subscriptions/c/{username}.
func (h SubscriptionHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	channel, err := h.resolve(ctx, r, "channel")
	if err != nil {
		envelope.WriteError(ctx, w, err)
		return
	}

	subscribed, err := h.Toggles.Subscription(ctx, caller(r), channel.ID)
	if err != nil {
		envelope.WriteError(ctx, w, err)
		return
	}

	message := "Unsubscribed successfully"
	if subscribed {
		message = "Subscribed successfully"
	}
	envelope.Write(ctx, w, http.StatusOK, map[string]bool{"isSubscribed": subscribed}, message)
}

// Subscribers handles GET /api/v1/subscriptions/c/{username}.
func (h SubscriptionHandler) Subscribers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	channel, err := h.resolve(ctx, r, "channel")
	if err != nil {
		envelope.WriteError(ctx, w, err)
		return
	}
	h.page(w, r, func() (pipelines.Recipe, error) {
		return pipelines.ChannelSubscribers(channel.ID, listOptions(r))
	}, "Subscribers fetched successfully")
}

// Subscribed handles GET /api/v1/subscriptions/u/{username}.
func (h SubscriptionHandler) Subscribed(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	subscriber, err := h.resolve(ctx, r, "user")
	if err != nil {
		envelope.WriteError(ctx, w, err)
		return
	}
	h.page(w, r, func() (pipelines.Recipe, error) {
		return pipelines.SubscribedChannels(subscriber.ID, listOptions(r))
	}, "Subscribed channels fetched successfully")
}

func (h SubscriptionHandler) page(w http.ResponseWriter, r *http.Request, build func() (pipelines.Recipe, error), message string) {
	ctx := r.Context()
	recipe, err := build()
	if err != nil {
		envelope.WriteError(ctx, w, err)
		return
	}
	page, err := h.Engine.Page(ctx, recipe, pageRequest(h.Engine, r))
	if err != nil {
		envelope.WriteError(ctx, w, err)
		return
	}
	envelope.Write(ctx, w, http.StatusOK, page, message)
}
