// Package pipelines builds the join pipelines behind every list and detail read. Each
// constructor validates its identifiers before returning, so no query runs on bad input.
package pipelines

import (
	"strings"

	"github.com/google/uuid"

	"github.com/vidtube/backend/internal/apperr"
	"github.com/vidtube/backend/internal/models"
	q "github.com/vidtube/backend/internal/query"
)

// Recipe is a pipeline bound to the collection it starts from.
type Recipe struct {
	Resource   Resource
	Collection string
	Pipeline   q.Pipeline
}

var (
	ownerFields = q.Include("id", "username", "fullName", "avatar")

	videoFields = q.Include(
		"id", "videoFile", "thumbnail", "title", "description", "duration", "views",
		"isPublished", "isPublic", "owner", "ownerDetails", "createdAt", "updatedAt",
	)
)

func requireID(value, name string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", apperr.Validation("%s is required", name)
	}
	if _, err := uuid.Parse(value); err != nil {
		return "", apperr.Validation("invalid %s", name)
	}
	return value, nil
}

// joinOwner attaches the projected user referenced by local under as, flattened to one object.
func joinOwner(local, as string, fields []q.Field) q.Pipeline {
	return q.Pipeline{
		q.Lookup{
			From:         models.CollectionUsers,
			LocalField:   local,
			ForeignField: "id",
			As:           as,
			Pipeline:     q.Pipeline{q.Project{Fields: fields}},
		},
		q.First{Field: as},
	}
}

func build(r Resource, collection string, parts ...q.Pipeline) Recipe {
	var p q.Pipeline
	for _, part := range parts {
		p = append(p, part...)
	}
	return Recipe{Resource: r, Collection: collection, Pipeline: p}
}

// VideoComments lists the comments of one video with their authors.
func VideoComments(videoID string, opts ListOptions) (Recipe, error) {
	videoID, err := requireID(videoID, "video id")
	if err != nil {
		return Recipe{}, err
	}
	sort, err := sortStage(ResourceComments, opts)
	if err != nil {
		return Recipe{}, err
	}
	return build(ResourceComments, models.CollectionComments,
		q.Pipeline{q.Match{Where: q.Eq{Field: "video", Value: videoID}}},
		joinOwner("owner", "ownerDetails", ownerFields),
		q.Pipeline{
			q.Project{Fields: q.Include("id", "content", "createdAt", "updatedAt", "owner", "ownerDetails")},
			sort,
		},
	), nil
}

// VideoFilter narrows a video listing.
type VideoFilter struct {
	// Query matches title or description, ignoring case.
	Query string
	// OwnerID limits results to one channel.
	OwnerID string
	// Published and Public override the default flags. They only apply when the caller
	// owns the listed channel.
	Published *bool
	Public    *bool
	// CallerID is the authenticated viewer, empty for anonymous requests.
	CallerID string
}

func (f VideoFilter) flags() (published, public bool) {
	published, public = true, true
	if f.OwnerID == "" || f.OwnerID != f.CallerID {
		return published, public
	}
	if f.Published != nil {
		published = *f.Published
	}
	if f.Public != nil {
		public = *f.Public
	}
	return published, public
}

// ListVideos lists videos matching filter with their owners.
func ListVideos(filter VideoFilter, opts ListOptions) (Recipe, error) {
	if filter.OwnerID != "" {
		id, err := requireID(filter.OwnerID, "owner id")
		if err != nil {
			return Recipe{}, err
		}
		filter.OwnerID = id
	}
	sort, err := sortStage(ResourceVideos, opts)
	if err != nil {
		return Recipe{}, err
	}

	var matches q.Pipeline
	if text := strings.TrimSpace(filter.Query); text != "" {
		matches = append(matches, q.Match{Where: q.Or{
			q.ContainsFold{Field: "title", Substr: text},
			q.ContainsFold{Field: "description", Substr: text},
		}})
	}
	if filter.OwnerID != "" {
		matches = append(matches, q.Match{Where: q.Eq{Field: "owner", Value: filter.OwnerID}})
	}
	published, public := filter.flags()
	matches = append(matches, q.Match{Where: q.And{
		q.Eq{Field: "isPublished", Value: published},
		q.Eq{Field: "isPublic", Value: public},
	}})

	return build(ResourceVideos, models.CollectionVideos,
		matches,
		joinOwner("owner", "ownerDetails", ownerFields),
		q.Pipeline{q.Project{Fields: videoFields}, sort},
	), nil
}

// ChannelVideos lists the videos of one channel.
func ChannelVideos(channelID string, filter VideoFilter, opts ListOptions) (Recipe, error) {
	channelID, err := requireID(channelID, "channel id")
	if err != nil {
		return Recipe{}, err
	}
	filter.OwnerID = channelID
	return ListVideos(filter, opts)
}

// Video reads a single video with its owner.
func Video(videoID string) (Recipe, error) {
	videoID, err := requireID(videoID, "video id")
	if err != nil {
		return Recipe{}, err
	}
	return build(ResourceVideoDetail, models.CollectionVideos,
		q.Pipeline{q.Match{Where: q.Eq{Field: "id", Value: videoID}}},
		joinOwner("owner", "ownerDetails", ownerFields),
		q.Pipeline{q.Project{Fields: videoFields}},
	), nil
}

// subscriptionUsers lists the users on the other side of a channel's or subscriber's
// subscriptions, with the subscription time as subscribedAt.
func subscriptionUsers(r Resource, matchField, joinField, id string, opts ListOptions) (Recipe, error) {
	sort, err := sortStage(r, opts)
	if err != nil {
		return Recipe{}, err
	}
	details := joinField + "Details"
	return build(r, models.CollectionSubscriptions,
		q.Pipeline{q.Match{Where: q.Eq{Field: matchField, Value: id}}},
		joinOwner(joinField, details, ownerFields),
		q.Pipeline{
			q.Project{Fields: []q.Field{
				q.Rename("id", details+".id"),
				q.Rename("fullName", details+".fullName"),
				q.Rename("username", details+".username"),
				q.Rename("avatar", details+".avatar"),
				q.Rename("subscribedAt", "createdAt"),
			}},
			sort,
		},
	), nil
}

// ChannelSubscribers lists the users subscribed to a channel.
func ChannelSubscribers(channelID string, opts ListOptions) (Recipe, error) {
	channelID, err := requireID(channelID, "channel id")
	if err != nil {
		return Recipe{}, err
	}
	return subscriptionUsers(ResourceSubscribers, "channel", "subscriber", channelID, opts)
}

// SubscribedChannels lists the channels a user subscribes to.
func SubscribedChannels(subscriberID string, opts ListOptions) (Recipe, error) {
	subscriberID, err := requireID(subscriberID, "subscriber id")
	if err != nil {
		return Recipe{}, err
	}
	return subscriptionUsers(ResourceSubscribedChannels, "subscriber", "channel", subscriberID, opts)
}

// LikedVideos lists the videos a user liked. Likes of deleted videos are dropped.
func LikedVideos(userID string, opts ListOptions) (Recipe, error) {
	userID, err := requireID(userID, "user id")
	if err != nil {
		return Recipe{}, err
	}
	sort, err := sortStage(ResourceLikedVideos, opts)
	if err != nil {
		return Recipe{}, err
	}
	return build(ResourceLikedVideos, models.CollectionLikes,
		q.Pipeline{
			q.Match{Where: q.And{
				q.Eq{Field: "likedBy", Value: userID},
				q.Exists{Field: "video"},
			}},
			q.Lookup{
				From:         models.CollectionVideos,
				LocalField:   "video",
				ForeignField: "id",
				As:           "videoDetails",
				Pipeline: q.Pipeline{q.Project{Fields: q.Include(
					"id", "thumbnail", "videoFile", "title", "description", "duration", "views",
					"isPublished", "owner", "createdAt",
				)}},
			},
			q.DropEmpty{Field: "videoDetails"},
			q.First{Field: "videoDetails"},
		},
		joinOwner("videoDetails.owner", "videoOwnerDetails", ownerFields),
		q.Pipeline{
			q.Project{Fields: []q.Field{
				q.Rename("id", "videoDetails.id"),
				q.Rename("thumbnail", "videoDetails.thumbnail"),
				q.Rename("videoFile", "videoDetails.videoFile"),
				q.Rename("title", "videoDetails.title"),
				q.Rename("description", "videoDetails.description"),
				q.Rename("duration", "videoDetails.duration"),
				q.Rename("views", "videoDetails.views"),
				q.Rename("isPublished", "videoDetails.isPublished"),
				q.Rename("owner", "videoDetails.owner"),
				q.Rename("videoOwnerDetails", "videoOwnerDetails"),
				q.Rename("likedAt", "createdAt"),
				q.Rename("createdAt", "videoDetails.createdAt"),
			}},
			sort,
		},
	), nil
}

// UserPlaylists lists the playlists owned by a user with their video counts.
func UserPlaylists(ownerID string, opts ListOptions) (Recipe, error) {
	ownerID, err := requireID(ownerID, "user id")
	if err != nil {
		return Recipe{}, err
	}
	sort, err := sortStage(ResourcePlaylists, opts)
	if err != nil {
		return Recipe{}, err
	}
	return build(ResourcePlaylists, models.CollectionPlaylists,
		q.Pipeline{
			q.Match{Where: q.Eq{Field: "owner", Value: ownerID}},
			q.Lookup{
				From:         models.CollectionVideos,
				LocalField:   "videos",
				ForeignField: "id",
				As:           "playlistVideos",
				Pipeline:     q.Pipeline{q.Project{Fields: q.Include("id")}},
			},
			q.AddFields{Fields: []q.Field{{Name: "videoCount", Expr: q.Size("playlistVideos")}}},
		},
		joinOwner("owner", "ownerDetails", ownerFields),
		q.Pipeline{
			q.Project{Fields: q.Include(
				"id", "name", "description", "videoCount", "owner", "ownerDetails", "createdAt", "updatedAt",
			)},
			sort,
		},
	), nil
}

// Playlist reads one playlist with its owner and videos, each video carrying its own owner.
func Playlist(playlistID string) (Recipe, error) {
	playlistID, err := requireID(playlistID, "playlist id")
	if err != nil {
		return Recipe{}, err
	}
	videoPipeline := append(
		joinOwner("owner", "videoOwnerDetails", q.Include("id", "fullName", "username")),
		q.Project{Fields: q.Include(
			"id", "title", "description", "thumbnail", "duration", "views", "createdAt", "videoOwnerDetails",
		)},
	)
	return build(ResourcePlaylistDetail, models.CollectionPlaylists,
		q.Pipeline{q.Match{Where: q.Eq{Field: "id", Value: playlistID}}},
		joinOwner("owner", "ownerDetails", ownerFields),
		q.Pipeline{
			q.Lookup{
				From:         models.CollectionVideos,
				LocalField:   "videos",
				ForeignField: "id",
				As:           "playlistVideos",
				Pipeline:     videoPipeline,
			},
			q.Project{Fields: []q.Field{
				q.Rename("id", "id"),
				q.Rename("name", "name"),
				q.Rename("description", "description"),
				q.Rename("owner", "owner"),
				q.Rename("ownerDetails", "ownerDetails"),
				q.Rename("videos", "playlistVideos"),
				{Name: "videoCount", Expr: q.Size("playlistVideos")},
				q.Rename("createdAt", "createdAt"),
				q.Rename("updatedAt", "updatedAt"),
			}},
		},
	), nil
}

// UserTweets lists the tweets of a user. Tweets only sort by creation time.
func UserTweets(ownerID string, opts ListOptions) (Recipe, error) {
	ownerID, err := requireID(ownerID, "user id")
	if err != nil {
		return Recipe{}, err
	}
	sort, err := sortStage(ResourceTweets, opts)
	if err != nil {
		return Recipe{}, err
	}
	return build(ResourceTweets, models.CollectionTweets,
		q.Pipeline{q.Match{Where: q.Eq{Field: "owner", Value: ownerID}}},
		joinOwner("owner", "ownerDetails", ownerFields),
		q.Pipeline{
			q.Project{Fields: q.Include("id", "content", "ownerDetails", "createdAt", "updatedAt")},
			sort,
		},
	), nil
}

// Tweet reads a single tweet with its owner.
func Tweet(tweetID string) (Recipe, error) {
	tweetID, err := requireID(tweetID, "tweet id")
	if err != nil {
		return Recipe{}, err
	}
	return build(ResourceTweetDetail, models.CollectionTweets,
		q.Pipeline{q.Match{Where: q.Eq{Field: "id", Value: tweetID}}},
		joinOwner("owner", "ownerDetails", ownerFields),
		q.Pipeline{q.Project{Fields: q.Include("id", "content", "owner", "ownerDetails", "createdAt", "updatedAt")}},
	), nil
}

// ChannelStatistics folds a channel's subscribers, published videos and their likes into one
// record. Subscribers are counted once per channel and comment likes are added to video likes.
func ChannelStatistics(channelID string) (Recipe, error) {
	channelID, err := requireID(channelID, "channel id")
	if err != nil {
		return Recipe{}, err
	}
	idOnly := q.Pipeline{q.Project{Fields: q.Include("id")}}
	return build(ResourceChannelStats, models.CollectionUsers, q.Pipeline{
		q.Match{Where: q.Eq{Field: "id", Value: channelID}},
		q.Lookup{
			From:         models.CollectionSubscriptions,
			LocalField:   "id",
			ForeignField: "channel",
			As:           "subscribers",
			Pipeline:     idOnly,
		},
		q.Lookup{
			From:         models.CollectionVideos,
			LocalField:   "id",
			ForeignField: "owner",
			As:           "videos",
			Pipeline: q.Pipeline{
				q.Match{Where: q.Eq{Field: "isPublished", Value: true}},
				q.Project{Fields: q.Include("id", "views")},
			},
		},
		q.Unwind{Field: "videos", PreserveEmpty: true},
		q.Lookup{
			From:         models.CollectionLikes,
			LocalField:   "videos.id",
			ForeignField: "video",
			As:           "videoLikes",
			Pipeline:     idOnly,
		},
		q.Lookup{
			From:         models.CollectionComments,
			LocalField:   "videos.id",
			ForeignField: "video",
			As:           "comments",
			Pipeline: q.Pipeline{
				q.Lookup{
					From:         models.CollectionLikes,
					LocalField:   "id",
					ForeignField: "comment",
					As:           "likes",
					Pipeline:     idOnly,
				},
				q.AddFields{Fields: []q.Field{{Name: "likeCount", Expr: q.Size("likes")}}},
				q.Project{Fields: q.Include("id", "likeCount")},
			},
		},
		q.Group{By: "id", Fields: []q.Accumulator{
			q.FirstOf("totalSubscribers", q.Size("subscribers")),
			q.Sum("totalVideos", q.IfPresent{Path: "videos.id", Then: int64(1), Else: int64(0)}),
			q.Sum("totalViews", q.Ref("videos.views")),
			q.Sum("totalLikes", q.Add{q.Size("videoLikes"), q.SumOf{List: "comments", Path: "likeCount"}}),
		}},
	}), nil
}

// UserWatchHistory lists the videos a user watched, most recent first. Entries for deleted
// videos are dropped.
func UserWatchHistory(userID string, opts ListOptions) (Recipe, error) {
	userID, err := requireID(userID, "user id")
	if err != nil {
		return Recipe{}, err
	}
	sort, err := sortStage(ResourceWatchHistory, opts)
	if err != nil {
		return Recipe{}, err
	}
	return build(ResourceWatchHistory, models.CollectionWatchHistory,
		q.Pipeline{
			q.Match{Where: q.Eq{Field: "user", Value: userID}},
			q.Lookup{
				From:         models.CollectionVideos,
				LocalField:   "video",
				ForeignField: "id",
				As:           "videoDetails",
				Pipeline: q.Pipeline{q.Project{Fields: q.Include(
					"id", "thumbnail", "videoFile", "title", "description", "duration", "views", "owner", "createdAt",
				)}},
			},
			q.DropEmpty{Field: "videoDetails"},
			q.First{Field: "videoDetails"},
		},
		joinOwner("videoDetails.owner", "ownerDetails", ownerFields),
		q.Pipeline{
			q.Project{Fields: []q.Field{
				q.Rename("id", "videoDetails.id"),
				q.Rename("thumbnail", "videoDetails.thumbnail"),
				q.Rename("videoFile", "videoDetails.videoFile"),
				q.Rename("title", "videoDetails.title"),
				q.Rename("description", "videoDetails.description"),
				q.Rename("duration", "videoDetails.duration"),
				q.Rename("views", "videoDetails.views"),
				q.Rename("owner", "videoDetails.owner"),
				q.Rename("ownerDetails", "ownerDetails"),
				q.Rename("watchedAt", "watchedAt"),
				q.Rename("createdAt", "videoDetails.createdAt"),
			}},
			sort,
		},
	), nil
}
