package pipelines

import (
	"strings"

	"github.com/vidtube/backend/internal/apperr"
	"github.com/vidtube/backend/internal/query"
)

// Resource names one paginated list shape.
type Resource string

const (
	// ResourceComments is the comment list of a video.
	ResourceComments Resource = "comments"
	// ResourceVideos is any list of videos, global or per channel.
	ResourceVideos Resource = "videos"
	// ResourceSubscribers lists the users subscribed to a channel.
	ResourceSubscribers Resource = "subscribers"
	// ResourceSubscribedChannels lists the channels a user subscribes to.
	ResourceSubscribedChannels Resource = "subscribedChannels"
	// ResourceLikedVideos lists the videos a user liked.
	ResourceLikedVideos Resource = "likedVideos"
	// ResourcePlaylists lists the playlists of a user.
	ResourcePlaylists Resource = "playlists"
	// ResourceTweets lists the tweets of a user.
	ResourceTweets Resource = "tweets"
	// ResourceWatchHistory lists the videos a user watched, most recent first.
	ResourceWatchHistory Resource = "watchHistory"
	// ResourceChannelStats is the single statistics record of a channel.
	ResourceChannelStats Resource = "channelStats"
	// ResourceVideoDetail is one video with its owner.
	ResourceVideoDetail Resource = "video"
	// ResourcePlaylistDetail is one playlist with its videos.
	ResourcePlaylistDetail Resource = "playlist"
	// ResourceTweetDetail is one tweet with its owner.
	ResourceTweetDetail Resource = "tweet"
)

// labelTable holds the response keys used for each paginated resource.
var labelTable = map[Resource]query.Labels{
	ResourceComments:           {Items: "comments", Total: "totalComments"},
	ResourceVideos:             {Items: "videos", Total: "totalVideos"},
	ResourceSubscribers:        {Items: "subscribers", Total: "totalSubscribers"},
	ResourceSubscribedChannels: {Items: "channels", Total: "totalChannels"},
	ResourceLikedVideos:        {Items: "likedVideos", Total: "totalLikedVideos"},
	ResourcePlaylists:          {Items: "playlists", Total: "totalPlaylists"},
	ResourceTweets:             {Items: "tweets", Total: "totalTweets"},
	ResourceWatchHistory:       {Items: "watchHistory", Total: "totalWatchHistory"},
}

// LabelsFor returns the response labels of r, falling back to the generic keys.
func LabelsFor(r Resource) query.Labels {
	return labelTable[r]
}

// sortSpec lists the caller-facing sort names a resource accepts and the document field each
// one orders by.
type sortSpec struct {
	def    string
	fields map[string]string
}

var sortTable = map[Resource]sortSpec{
	ResourceComments: {def: "createdAt", fields: map[string]string{
		"createdAt": "createdAt",
		"updatedAt": "updatedAt",
	}},
	ResourceVideos: {def: "createdAt", fields: map[string]string{
		"createdAt": "createdAt",
		"updatedAt": "updatedAt",
		"views":     "views",
		"duration":  "duration",
		"title":     "title",
	}},
	ResourceSubscribers: {def: "subscribedAt", fields: map[string]string{
		"subscribedAt": "subscribedAt",
		"createdAt":    "subscribedAt",
		"username":     "username",
		"fullName":     "fullName",
	}},
	ResourceSubscribedChannels: {def: "subscribedAt", fields: map[string]string{
		"subscribedAt": "subscribedAt",
		"createdAt":    "subscribedAt",
		"username":     "username",
		"fullName":     "fullName",
	}},
	ResourceLikedVideos: {def: "likedAt", fields: map[string]string{
		"likedAt":   "likedAt",
		"createdAt": "createdAt",
		"views":     "views",
		"title":     "title",
	}},
	ResourcePlaylists: {def: "createdAt", fields: map[string]string{
		"createdAt":  "createdAt",
		"updatedAt":  "updatedAt",
		"name":       "name",
		"videoCount": "videoCount",
	}},
	ResourceTweets: {def: "createdAt", fields: map[string]string{
		"createdAt": "createdAt",
	}},
	ResourceWatchHistory: {def: "watchedAt", fields: map[string]string{
		"watchedAt": "watchedAt",
	}},
}

// ListOptions carries the caller's sort choice for a list query.
type ListOptions struct {
	SortField     string
	SortDirection string
}

// sortStage resolves opts against the allow list of r. Unknown fields or directions are
// validation errors; empty values select the resource default, newest first.
func sortStage(r Resource, opts ListOptions) (query.Sort, error) {
	spec, ok := sortTable[r]
	if !ok {
		return query.Sort{}, apperr.Internal(nil, "no sort configuration for %s", r)
	}

	field := spec.fields[spec.def]
	if name := strings.TrimSpace(opts.SortField); name != "" {
		mapped, ok := spec.fields[name]
		if !ok {
			return query.Sort{}, apperr.Validation("cannot sort %s by %q", r, name)
		}
		field = mapped
	}

	switch strings.ToLower(strings.TrimSpace(opts.SortDirection)) {
	case "", "desc", "descending", "-1":
		return query.Sort{Field: field, Descending: true}, nil
	case "asc", "ascending", "1":
		return query.Sort{Field: field}, nil
	default:
		return query.Sort{}, apperr.Validation("sort direction must be asc or desc")
	}
}
