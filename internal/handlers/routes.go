package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/vidtube/backend/internal/apperr"
	"github.com/vidtube/backend/internal/auth"
	"github.com/vidtube/backend/internal/envelope"
	"github.com/vidtube/backend/internal/media"
	"github.com/vidtube/backend/internal/metrics"
	"github.com/vidtube/backend/internal/middleware"
	"github.com/vidtube/backend/internal/pipelines"
	"github.com/vidtube/backend/internal/repositories"
)

// Dependencies aggregates collaborators required by HTTP handlers.
type Dependencies struct {
	Users     UserStore
	History   repositories.WatchHistoryRepository
	Videos    repositories.VideoRepository
	Comments  repositories.CommentRepository
	Tweets    repositories.TweetRepository
	Playlists repositories.PlaylistRepository
	Toggles   Toggler
	Engine    *pipelines.Engine
	Sessions  SessionManager
	Media     media.Store
	Prober    DurationProber
	Reaper    MediaReaper

	// AuthLimiter throttles register, login and refresh per client address. Nil disables it.
	AuthLimiter middleware.RateLimiter
	CORSOrigins []string
	Logger      *slog.Logger
	// Ready pings the database for the health check. Nil reports healthy unconditionally.
	Ready   func(ctx context.Context) error
	NowFunc func() time.Time
}

// NewRouter builds the HTTP handler serving the API under /api/v1.
func NewRouter(deps Dependencies) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	authH := AuthHandler{Users: deps.Users, Sessions: deps.Sessions, Media: deps.Media, NowFunc: deps.NowFunc}
	users := UserHandler{Users: deps.Users, History: deps.History, Engine: deps.Engine}
	videos := VideoHandler{Videos: deps.Videos, Engine: deps.Engine, Media: deps.Media, Prober: deps.Prober, Reaper: deps.Reaper, NowFunc: deps.NowFunc}
	comments := CommentHandler{Comments: deps.Comments, Videos: deps.Videos, Engine: deps.Engine, NowFunc: deps.NowFunc}
	likes := LikeHandler{Toggles: deps.Toggles, Videos: deps.Videos, Comments: deps.Comments, Tweets: deps.Tweets, Engine: deps.Engine}
	subs := SubscriptionHandler{Users: deps.Users, Toggles: deps.Toggles, Engine: deps.Engine}
	playlists := PlaylistHandler{Playlists: deps.Playlists, Videos: deps.Videos, Users: deps.Users, Engine: deps.Engine, NowFunc: deps.NowFunc}
	tweets := TweetHandler{Tweets: deps.Tweets, Users: deps.Users, Engine: deps.Engine, NowFunc: deps.NowFunc}
	dashboard := DashboardHandler{Users: deps.Users, Engine: deps.Engine}
	health := HealthHandler{Ready: deps.Ready}

	limit := func(scope string) func(http.Handler) http.Handler {
		if deps.AuthLimiter == nil {
			return func(next http.Handler) http.Handler { return next }
		}
		return middleware.RateLimit(deps.AuthLimiter, scope)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestLogger(logger))
	r.Use(metrics.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", middleware.RequestIDHeader},
		ExposedHeaders:   []string{middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		envelope.WriteError(r.Context(), w, apperr.NotFound("route %s not found", r.URL.Path))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		envelope.WriteError(r.Context(), w, apperr.Validation("method %s is not allowed on %s", r.Method, r.URL.Path))
	})

	r.Get("/healthz", health.Handle)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(auth.Authenticate(deps.Sessions, false))

		r.Route("/users", func(r chi.Router) {
			r.With(limit("register")).Post("/register", authH.Register)
			r.With(limit("login")).Post("/login", authH.Login)
			r.With(limit("refresh")).Post("/refresh", authH.Refresh)

			r.Group(func(r chi.Router) {
				r.Use(auth.RequireCaller)
				r.Post("/logout", authH.Logout)
				r.Get("/me", users.Me)
				r.Get("/history", users.ListHistory)
				r.Delete("/history", users.ClearHistory)
				r.Delete("/history/{videoId}", users.RemoveHistoryEntry)
			})
		})

		r.Route("/videos", func(r chi.Router) {
			r.Get("/", videos.List)
			r.Get("/{videoId}", videos.Get)
			r.Group(func(r chi.Router) {
				r.Use(auth.RequireCaller)
				r.Post("/", videos.Publish)
				r.Patch("/{videoId}", videos.Update)
				r.Delete("/{videoId}", videos.Delete)
				r.Patch("/{videoId}/publish", videos.TogglePublish)
			})
		})

		r.Route("/comments", func(r chi.Router) {
			r.Get("/{videoId}", comments.List)
			r.Group(func(r chi.Router) {
				r.Use(auth.RequireCaller)
				r.Post("/{videoId}", comments.Add)
				r.Patch("/c/{commentId}", comments.Update)
				r.Delete("/c/{commentId}", comments.Delete)
			})
		})

		r.Route("/likes", func(r chi.Router) {
			r.Use(auth.RequireCaller)
			r.Post("/video/{id}", likes.ToggleVideo)
			r.Post("/comment/{id}", likes.ToggleComment)
			r.Post("/tweet/{id}", likes.ToggleTweet)
			r.Get("/videos", likes.LikedVideos)
		})

		r.Route("/subscriptions", func(r chi.Router) {
			r.Use(auth.RequireCaller)
			r.Post("/c/{username}", subs.Toggle)
			r.Get("/c/{username}", subs.Subscribers)
			r.Get("/u/{username}", subs.Subscribed)
		})

		r.Route("/playlists", func(r chi.Router) {
			r.Get("/user/{userId}", playlists.UserPlaylists)
			r.Get("/{playlistId}", playlists.Get)
			r.Group(func(r chi.Router) {
				r.Use(auth.RequireCaller)
				r.Post("/", playlists.Create)
				r.Patch("/{playlistId}", playlists.Update)
				r.Delete("/{playlistId}", playlists.Delete)
				r.Patch("/{playlistId}/add/{videoId}", playlists.AddVideo)
				r.Patch("/{playlistId}/remove/{videoId}", playlists.RemoveVideo)
			})
		})

		r.Route("/tweets", func(r chi.Router) {
			r.Get("/user/{username}", tweets.UserTweets)
			r.Get("/{tweetId}", tweets.Get)
			r.Group(func(r chi.Router) {
				r.Use(auth.RequireCaller)
				r.Post("/", tweets.Create)
				r.Patch("/{tweetId}", tweets.Update)
				r.Delete("/{tweetId}", tweets.Delete)
			})
		})

		r.Route("/dashboard", func(r chi.Router) {
			r.Get("/stats/{channelId}", dashboard.Stats)
			r.Get("/videos/{channelId}", dashboard.ChannelVideos)
		})
	})

	return r
}
