package store

import "github.com/vidtube/backend/internal/models"

// column maps a document field onto SQL. Select produces the value; Filter, when set, is the
// expression predicates compare against. Fields without a Filter cannot be filtered on.
type column struct {
	Field  string
	Select string
	Filter string
}

func idColumn(field, name string) column {
	return column{Field: field, Select: name + "::text", Filter: name}
}

func plain(field, name string) column {
	return column{Field: field, Select: name, Filter: name}
}

func asset(field, prefix string) []column {
	return []column{
		{Field: field + ".url", Select: prefix + "_url"},
		{Field: field + ".storageKey", Select: prefix + "_key"},
	}
}

type table struct {
	Name    string
	Columns []column
}

func (t table) column(field string) (column, bool) {
	for _, c := range t.Columns {
		if c.Field == field {
			return c, true
		}
	}
	return column{}, false
}

func timestamps() []column {
	return []column{plain("createdAt", "created_at"), plain("updatedAt", "updated_at")}
}

func concat(groups ...[]column) []column {
	var out []column
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

// tables describes how each document collection is stored.
var tables = map[string]table{
	models.CollectionUsers: {Name: "users", Columns: concat(
		[]column{
			idColumn("id", "id"),
			plain("username", "username"),
			plain("email", "email"),
			plain("fullName", "full_name"),
		},
		asset("avatar", "avatar"),
		asset("coverImage", "cover_image"),
		timestamps(),
	)},
	models.CollectionVideos: {Name: "videos", Columns: concat(
		[]column{idColumn("id", "id")},
		asset("videoFile", "video_file"),
		asset("thumbnail", "thumbnail"),
		[]column{
			plain("title", "title"),
			plain("description", "description"),
			plain("duration", "duration"),
			plain("views", "views"),
			plain("isPublished", "is_published"),
			plain("isPublic", "is_public"),
			idColumn("owner", "owner_id"),
		},
		timestamps(),
	)},
	models.CollectionComments: {Name: "comments", Columns: concat(
		[]column{
			idColumn("id", "id"),
			plain("content", "content"),
			idColumn("video", "video_id"),
			idColumn("owner", "owner_id"),
		},
		timestamps(),
	)},
	models.CollectionLikes: {Name: "likes", Columns: concat(
		[]column{
			idColumn("id", "id"),
			idColumn("likedBy", "liked_by"),
			idColumn("video", "video_id"),
			idColumn("comment", "comment_id"),
			idColumn("tweet", "tweet_id"),
		},
		timestamps(),
	)},
	models.CollectionSubscriptions: {Name: "subscriptions", Columns: concat(
		[]column{
			idColumn("id", "id"),
			idColumn("subscriber", "subscriber_id"),
			idColumn("channel", "channel_id"),
		},
		timestamps(),
	)},
	models.CollectionPlaylists: {Name: "playlists", Columns: concat(
		[]column{
			idColumn("id", "id"),
			plain("name", "name"),
			plain("description", "description"),
			idColumn("owner", "owner_id"),
			{
				Field: "videos",
				Select: "ARRAY(SELECT pv.video_id::text FROM playlist_videos pv " +
					"WHERE pv.playlist_id = playlists.id ORDER BY pv.position)",
			},
		},
		timestamps(),
	)},
	models.CollectionTweets: {Name: "tweets", Columns: concat(
		[]column{
			idColumn("id", "id"),
			plain("content", "content"),
			idColumn("owner", "owner_id"),
		},
		timestamps(),
	)},
	models.CollectionWatchHistory: {Name: "watch_history", Columns: []column{
		idColumn("user", "user_id"),
		idColumn("video", "video_id"),
		plain("watchedAt", "watched_at"),
	}},
}
