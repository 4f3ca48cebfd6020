package handlers

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/vidtube/backend/internal/auth"
	"github.com/vidtube/backend/internal/media"
	"github.com/vidtube/backend/internal/models"
	"github.com/vidtube/backend/internal/pipelines"
	"github.com/vidtube/backend/internal/query"
	"github.com/vidtube/backend/internal/repositories"
	"github.com/vidtube/backend/internal/toggle"
)

var base = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

// world keeps every record in memory and serves them to the pipeline executor as documents.
type world struct {
	mu        sync.Mutex
	tokens    *auth.InMemoryTokenStore
	users     map[string]models.User
	videos    map[string]models.Video
	comments  map[string]models.Comment
	tweets    map[string]models.Tweet
	playlists map[string]models.Playlist
	likes     map[string]models.Like
	subs      map[string]models.Subscription
	history   map[string]map[string]time.Time
}

func newWorld() *world {
	return &world{
		tokens:    auth.NewInMemoryTokenStore(),
		users:     map[string]models.User{},
		videos:    map[string]models.Video{},
		comments:  map[string]models.Comment{},
		tweets:    map[string]models.Tweet{},
		playlists: map[string]models.Playlist{},
		likes:     map[string]models.Like{},
		subs:      map[string]models.Subscription{},
		history:   map[string]map[string]time.Time{},
	}
}

func assetDoc(a models.Asset) query.Document {
	return query.Document{"url": a.URL, "storageKey": a.StorageKey}
}

func (w *world) documents(collection string) []query.Document {
	var docs []query.Document
	switch collection {
	case models.CollectionUsers:
		for _, u := range w.users {
			docs = append(docs, query.Document{
				"id": u.ID, "username": u.Username, "email": u.Email, "fullName": u.FullName,
				"avatar": assetDoc(u.Avatar), "coverImage": assetDoc(u.CoverImage),
				"createdAt": u.CreatedAt, "updatedAt": u.UpdatedAt,
			})
		}
	case models.CollectionVideos:
		for _, v := range w.videos {
			docs = append(docs, query.Document{
				"id": v.ID, "videoFile": assetDoc(v.VideoFile), "thumbnail": assetDoc(v.Thumbnail),
				"title": v.Title, "description": v.Description, "duration": v.Duration, "views": v.Views,
				"isPublished": v.IsPublished, "isPublic": v.IsPublic, "owner": v.OwnerID,
				"createdAt": v.CreatedAt, "updatedAt": v.UpdatedAt,
			})
		}
	case models.CollectionComments:
		for _, c := range w.comments {
			docs = append(docs, query.Document{
				"id": c.ID, "content": c.Content, "video": c.VideoID, "owner": c.OwnerID,
				"createdAt": c.CreatedAt, "updatedAt": c.UpdatedAt,
			})
		}
	case models.CollectionTweets:
		for _, t := range w.tweets {
			docs = append(docs, query.Document{
				"id": t.ID, "content": t.Content, "owner": t.OwnerID,
				"createdAt": t.CreatedAt, "updatedAt": t.UpdatedAt,
			})
		}
	case models.CollectionPlaylists:
		for _, p := range w.playlists {
			videos := make([]any, len(p.VideoIDs))
			for i, id := range p.VideoIDs {
				videos[i] = id
			}
			docs = append(docs, query.Document{
				"id": p.ID, "name": p.Name, "description": p.Description, "owner": p.OwnerID,
				"videos": videos, "createdAt": p.CreatedAt, "updatedAt": p.UpdatedAt,
			})
		}
	case models.CollectionLikes:
		for _, l := range w.likes {
			docs = append(docs, query.Document{
				"id": l.ID, "likedBy": l.LikedBy, string(l.TargetKind): l.TargetID,
				"createdAt": l.CreatedAt, "updatedAt": l.UpdatedAt,
			})
		}
	case models.CollectionSubscriptions:
		for _, s := range w.subs {
			docs = append(docs, query.Document{
				"id": s.ID, "subscriber": s.SubscriberID, "channel": s.ChannelID,
				"createdAt": s.CreatedAt, "updatedAt": s.UpdatedAt,
			})
		}
	case models.CollectionWatchHistory:
		for userID, entries := range w.history {
			for videoID, at := range entries {
				docs = append(docs, query.Document{"user": userID, "video": videoID, "watchedAt": at})
			}
		}
	}
	return docs
}

// Find implements query.Source.
func (w *world) Find(ctx context.Context, collection string, where query.Predicate) ([]query.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	w.mu.Lock()
	docs := w.documents(collection)
	w.mu.Unlock()

	var out []query.Document
	for _, doc := range docs {
		if where == nil || where.Eval(doc) {
			out = append(out, doc)
		}
	}
	return out, nil
}

type userRepo struct{ w *world }

func (r userRepo) Create(_ context.Context, user models.User) error {
	r.w.mu.Lock()
	defer r.w.mu.Unlock()
	for _, u := range r.w.users {
		if u.Email == user.Email || u.Username == user.Username {
			return repositories.ErrConflict
		}
	}
	r.w.users[user.ID] = user
	r.w.tokens.Register(user.ID)
	return nil
}

func (r userRepo) find(match func(models.User) bool) (models.User, error) {
	r.w.mu.Lock()
	defer r.w.mu.Unlock()
	for _, u := range r.w.users {
		if match(u) {
			u.RefreshToken = r.w.tokens.Current(u.ID)
			return u, nil
		}
	}
	return models.User{}, repositories.ErrNotFound
}

func (r userRepo) FindByID(_ context.Context, id string) (models.User, error) {
	return r.find(func(u models.User) bool { return u.ID == id })
}

func (r userRepo) FindByEmail(_ context.Context, email string) (models.User, error) {
	return r.find(func(u models.User) bool { return u.Email == email })
}

func (r userRepo) FindByUsername(_ context.Context, username string) (models.User, error) {
	return r.find(func(u models.User) bool { return u.Username == username })
}

func (w *world) pushHistoryLocked(userID, videoID string, at time.Time) {
	if w.history[userID] == nil {
		w.history[userID] = map[string]time.Time{}
	}
	w.history[userID][videoID] = at
}

func (r userRepo) RemoveWatchHistory(_ context.Context, userID, videoID string) error {
	r.w.mu.Lock()
	defer r.w.mu.Unlock()
	if _, ok := r.w.history[userID][videoID]; !ok {
		return repositories.ErrNotFound
	}
	delete(r.w.history[userID], videoID)
	return nil
}

func (r userRepo) ClearWatchHistory(_ context.Context, userID string) error {
	r.w.mu.Lock()
	defer r.w.mu.Unlock()
	delete(r.w.history, userID)
	return nil
}

type videoRepo struct{ w *world }

func (r videoRepo) Create(_ context.Context, video models.Video) error {
	r.w.mu.Lock()
	defer r.w.mu.Unlock()
	r.w.videos[video.ID] = video
	return nil
}

func (r videoRepo) FindByID(_ context.Context, id string) (models.Video, error) {
	r.w.mu.Lock()
	defer r.w.mu.Unlock()
	v, ok := r.w.videos[id]
	if !ok {
		return models.Video{}, repositories.ErrNotFound
	}
	return v, nil
}

func (r videoRepo) Update(_ context.Context, id string, patch models.VideoPatch) error {
	r.w.mu.Lock()
	defer r.w.mu.Unlock()
	v, ok := r.w.videos[id]
	if !ok {
		return repositories.ErrNotFound
	}
	if patch.Title != nil {
		v.Title = *patch.Title
	}
	if patch.Description != nil {
		v.Description = *patch.Description
	}
	if patch.Thumbnail != nil {
		v.Thumbnail = *patch.Thumbnail
	}
	r.w.videos[id] = v
	return nil
}

func (r videoRepo) Delete(_ context.Context, id string) error {
	r.w.mu.Lock()
	defer r.w.mu.Unlock()
	if _, ok := r.w.videos[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(r.w.videos, id)
	return nil
}

func (r videoRepo) TogglePublish(_ context.Context, id string) (bool, error) {
	r.w.mu.Lock()
	defer r.w.mu.Unlock()
	v, ok := r.w.videos[id]
	if !ok {
		return false, repositories.ErrNotFound
	}
	v.IsPublished = !v.IsPublished
	r.w.videos[id] = v
	return v.IsPublished, nil
}

func (r videoRepo) RecordView(_ context.Context, videoID, viewerID string, at time.Time) error {
	r.w.mu.Lock()
	defer r.w.mu.Unlock()
	v, ok := r.w.videos[videoID]
	if !ok {
		return repositories.ErrNotFound
	}
	v.Views++
	r.w.videos[videoID] = v
	if viewerID != "" {
		r.w.pushHistoryLocked(viewerID, videoID, at)
	}
	return nil
}

type commentRepo struct{ w *world }

func (r commentRepo) Create(_ context.Context, c models.Comment) error {
	r.w.mu.Lock()
	defer r.w.mu.Unlock()
	r.w.comments[c.ID] = c
	return nil
}

func (r commentRepo) FindByID(_ context.Context, id string) (models.Comment, error) {
	r.w.mu.Lock()
	defer r.w.mu.Unlock()
	c, ok := r.w.comments[id]
	if !ok {
		return models.Comment{}, repositories.ErrNotFound
	}
	return c, nil
}

func (r commentRepo) UpdateContent(_ context.Context, id, content string) error {
	r.w.mu.Lock()
	defer r.w.mu.Unlock()
	c, ok := r.w.comments[id]
	if !ok {
		return repositories.ErrNotFound
	}
	c.Content = content
	r.w.comments[id] = c
	return nil
}

func (r commentRepo) Delete(_ context.Context, id string) error {
	r.w.mu.Lock()
	defer r.w.mu.Unlock()
	if _, ok := r.w.comments[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(r.w.comments, id)
	return nil
}

type tweetRepo struct{ w *world }

func (r tweetRepo) Create(_ context.Context, t models.Tweet) error {
	r.w.mu.Lock()
	defer r.w.mu.Unlock()
	r.w.tweets[t.ID] = t
	return nil
}

func (r tweetRepo) FindByID(_ context.Context, id string) (models.Tweet, error) {
	r.w.mu.Lock()
	defer r.w.mu.Unlock()
	t, ok := r.w.tweets[id]
	if !ok {
		return models.Tweet{}, repositories.ErrNotFound
	}
	return t, nil
}

func (r tweetRepo) UpdateContent(_ context.Context, id, content string) error {
	r.w.mu.Lock()
	defer r.w.mu.Unlock()
	t, ok := r.w.tweets[id]
	if !ok {
		return repositories.ErrNotFound
	}
	t.Content = content
	r.w.tweets[id] = t
	return nil
}

func (r tweetRepo) Delete(_ context.Context, id string) error {
	r.w.mu.Lock()
	defer r.w.mu.Unlock()
	if _, ok := r.w.tweets[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(r.w.tweets, id)
	return nil
}

type playlistRepo struct{ w *world }

func (r playlistRepo) Create(_ context.Context, p models.Playlist) error {
	r.w.mu.Lock()
	defer r.w.mu.Unlock()
	r.w.playlists[p.ID] = p
	return nil
}

func (r playlistRepo) FindByID(_ context.Context, id string) (models.Playlist, error) {
	r.w.mu.Lock()
	defer r.w.mu.Unlock()
	p, ok := r.w.playlists[id]
	if !ok {
		return models.Playlist{}, repositories.ErrNotFound
	}
	return p, nil
}

func (r playlistRepo) Update(_ context.Context, id string, patch models.PlaylistPatch) error {
	r.w.mu.Lock()
	defer r.w.mu.Unlock()
	p, ok := r.w.playlists[id]
	if !ok {
		return repositories.ErrNotFound
	}
	if patch.Name != nil {
		p.Name = *patch.Name
	}
	if patch.Description != nil {
		p.Description = *patch.Description
	}
	r.w.playlists[id] = p
	return nil
}

func (r playlistRepo) Delete(_ context.Context, id string) error {
	r.w.mu.Lock()
	defer r.w.mu.Unlock()
	if _, ok := r.w.playlists[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(r.w.playlists, id)
	return nil
}

func (r playlistRepo) AddVideo(_ context.Context, playlistID, videoID string) error {
	r.w.mu.Lock()
	defer r.w.mu.Unlock()
	p := r.w.playlists[playlistID]
	for _, id := range p.VideoIDs {
		if id == videoID {
			return repositories.ErrConflict
		}
	}
	p.VideoIDs = append(p.VideoIDs, videoID)
	r.w.playlists[playlistID] = p
	return nil
}

func (r playlistRepo) RemoveVideo(_ context.Context, playlistID, videoID string) error {
	r.w.mu.Lock()
	defer r.w.mu.Unlock()
	p := r.w.playlists[playlistID]
	for i, id := range p.VideoIDs {
		if id == videoID {
			p.VideoIDs = append(p.VideoIDs[:i:i], p.VideoIDs[i+1:]...)
			r.w.playlists[playlistID] = p
			return nil
		}
	}
	return repositories.ErrNotFound
}

type likeRepo struct{ w *world }

func likeKey(likedBy string, kind models.LikeTarget, targetID string) string {
	return likedBy + "|" + string(kind) + "|" + targetID
}

func (r likeRepo) Create(_ context.Context, like models.Like) error {
	r.w.mu.Lock()
	defer r.w.mu.Unlock()
	key := likeKey(like.LikedBy, like.TargetKind, like.TargetID)
	if _, ok := r.w.likes[key]; ok {
		return repositories.ErrConflict
	}
	r.w.likes[key] = like
	return nil
}

func (r likeRepo) Delete(_ context.Context, likedBy string, kind models.LikeTarget, targetID string) (bool, error) {
	r.w.mu.Lock()
	defer r.w.mu.Unlock()
	key := likeKey(likedBy, kind, targetID)
	_, ok := r.w.likes[key]
	delete(r.w.likes, key)
	return ok, nil
}

type subscriptionRepo struct{ w *world }

func (r subscriptionRepo) Create(_ context.Context, sub models.Subscription) error {
	r.w.mu.Lock()
	defer r.w.mu.Unlock()
	if _, ok := r.w.users[sub.ChannelID]; !ok {
		return repositories.ErrNotFound
	}
	key := sub.SubscriberID + "|" + sub.ChannelID
	if _, ok := r.w.subs[key]; ok {
		return repositories.ErrConflict
	}
	r.w.subs[key] = sub
	return nil
}

func (r subscriptionRepo) Delete(_ context.Context, subscriberID, channelID string) (bool, error) {
	r.w.mu.Lock()
	defer r.w.mu.Unlock()
	key := subscriberID + "|" + channelID
	_, ok := r.w.subs[key]
	delete(r.w.subs, key)
	return ok, nil
}

type fakeProber struct {
	duration float64
	err      error
}

func (p fakeProber) Duration(context.Context, string) (float64, error) {
	return p.duration, p.err
}

// testAPI is a router over a fresh world with a real session manager and toggle service.
type testAPI struct {
	t        *testing.T
	world    *world
	media    *media.MemoryStore
	sessions *auth.Manager
	handler  http.Handler
}

func newTestAPI(t *testing.T, opts ...func(*Dependencies)) *testAPI {
	t.Helper()
	w := newWorld()
	store := media.NewMemoryStore("https://cdn.example.com")
	sessions := auth.NewManager("test-secret-test-secret-test-secret", 15*time.Minute, time.Hour, w.tokens)
	engine := pipelines.NewEngine(query.NewExecutor(w, query.WithBatchSize(2)), 50)

	deps := Dependencies{
		Users:     userRepo{w},
		History:   userRepo{w},
		Videos:    videoRepo{w},
		Comments:  commentRepo{w},
		Tweets:    tweetRepo{w},
		Playlists: playlistRepo{w},
		Toggles:   toggle.NewService(likeRepo{w}, subscriptionRepo{w}),
		Engine:    engine,
		Sessions:  sessions,
		Media:     store,
		Prober:    fakeProber{duration: 42.5},
		NowFunc:   func() time.Time { return base },
	}
	for _, opt := range opts {
		opt(&deps)
	}
	return &testAPI{t: t, world: w, media: store, sessions: sessions, handler: NewRouter(deps)}
}

// addUser stores a user directly and returns its id.
func (a *testAPI) addUser(username string) string {
	a.t.Helper()
	hash, err := auth.HashPassword("password123")
	require.NoError(a.t, err)
	user := models.User{
		ID:        uuid.NewString(),
		Username:  username,
		Email:     username + "@example.com",
		FullName:  username + " Example",
		Avatar:    models.Asset{URL: "https://cdn.example.com/images/" + username, StorageKey: "images/" + username},
		Password:  hash,
		CreatedAt: base,
		UpdatedAt: base,
	}
	require.NoError(a.t, userRepo{a.world}.Create(context.Background(), user))
	return user.ID
}

func (a *testAPI) addVideo(owner string, published bool) string {
	a.t.Helper()
	ctx := context.Background()
	file, err := a.media.Store(ctx, bytes.NewReader([]byte("video")), media.KindVideo)
	require.NoError(a.t, err)
	thumb, err := a.media.Store(ctx, bytes.NewReader([]byte("thumb")), media.KindImage)
	require.NoError(a.t, err)
	video := models.Video{
		ID:          uuid.NewString(),
		VideoFile:   file,
		Thumbnail:   thumb,
		Title:       "video by " + owner[:8],
		Description: "description",
		Duration:    10,
		IsPublished: published,
		IsPublic:    true,
		OwnerID:     owner,
		CreatedAt:   base,
		UpdatedAt:   base,
	}
	require.NoError(a.t, videoRepo{a.world}.Create(ctx, video))
	return video.ID
}

// token signs in userID and returns an access token.
func (a *testAPI) token(userID string) string {
	a.t.Helper()
	tokens, err := a.sessions.Issue(context.Background(), userID, a.world.tokens.Current(userID))
	require.NoError(a.t, err)
	return tokens.AccessToken
}

func (a *testAPI) do(method, target, token string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	a.t.Helper()
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func (a *testAPI) json(method, target, token, body string) *httptest.ResponseRecorder {
	a.t.Helper()
	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	return a.do(method, target, token, reader, "application/json")
}

// multipartBody encodes fields and files into a multipart form.
func multipartBody(t *testing.T, fields map[string]string, files map[string][]byte) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for name, value := range fields {
		require.NoError(t, mw.WriteField(name, value))
	}
	for name, content := range files {
		part, err := mw.CreateFormFile(name, name+".bin")
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}
