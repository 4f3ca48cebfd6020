package handlers

import (
	"net/http"

	"github.com/vidtube/backend/internal/envelope"
	"github.com/vidtube/backend/internal/pipelines"
)

// DashboardHandler serves channel statistics and the channel video listing.
type DashboardHandler struct {
	Users  UserStore
	Engine *pipelines.Engine
}

type channelStats struct {
	TotalSubscribers int64 `json:"totalSubscribers"`
	TotalVideos      int64 `json:"totalVideos"`
	TotalViews       int64 `json:"totalViews"`
	TotalLikes       int64 `json:"totalLikes"`
}

// Stats handles GET /api/v1/dashboard/stats/{channelId}.
func (h DashboardHandler) Stats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	channelID, err := pathID(r, "channelId", "channel id")
	if err != nil {
		envelope.WriteError(ctx, w, err)
		return
	}
	if _, err := h.Users.FindByID(ctx, channelID); err != nil {
		envelope.WriteError(ctx, w, lookupError(err, "channel"))
		return
	}

	recipe, err := pipelines.ChannelStatistics(channelID)
	if err != nil {
		envelope.WriteError(ctx, w, err)
		return
	}
	doc, err := h.Engine.One(ctx, recipe, "channel")
	if err != nil {
		envelope.WriteError(ctx, w, err)
		return
	}

	stats := channelStats{
		TotalSubscribers: count(doc["totalSubscribers"]),
		TotalVideos:      count(doc["totalVideos"]),
		TotalViews:       count(doc["totalViews"]),
		TotalLikes:       count(doc["totalLikes"]),
	}
	envelope.Write(ctx, w, http.StatusOK, stats, "Channel stats fetched successfully")
}

// ChannelVideos handles GET /api/v1/dashboard/videos/{channelId}. The channel owner may pass
// isPublished and isPublic to see hidden videos.
func (h DashboardHandler) ChannelVideos(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	channelID, err := pathID(r, "channelId", "channel id")
	if err != nil {
		envelope.WriteError(ctx, w, err)
		return
	}
	if _, err := h.Users.FindByID(ctx, channelID); err != nil {
		envelope.WriteError(ctx, w, lookupError(err, "channel"))
		return
	}
	filter, err := videoFilter(r)
	if err != nil {
		envelope.WriteError(ctx, w, err)
		return
	}

	recipe, err := pipelines.ChannelVideos(channelID, filter, listOptions(r))
	if err != nil {
		envelope.WriteError(ctx, w, err)
		return
	}
	page, err := h.Engine.Page(ctx, recipe, pageRequest(h.Engine, r))
	if err != nil {
		envelope.WriteError(ctx, w, err)
		return
	}
	envelope.Write(ctx, w, http.StatusOK, page, "Channel videos fetched successfully")
}

// count coerces an aggregated number to an integer; absent values count as zero.
func count(v any) int64 {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case int64:
		return n
	case float64:
		return int64(n)
	default:
		return 0
	}
}
