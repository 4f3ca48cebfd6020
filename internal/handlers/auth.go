package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vidtube/backend/internal/apperr"
	"github.com/vidtube/backend/internal/auth"
	"github.com/vidtube/backend/internal/envelope"
	"github.com/vidtube/backend/internal/logging"
	"github.com/vidtube/backend/internal/media"
	"github.com/vidtube/backend/internal/models"
	"github.com/vidtube/backend/internal/repositories"
	"github.com/vidtube/backend/internal/validation"
)

// RefreshTokenCookie is the cookie the refresh token is sent in.
const RefreshTokenCookie = "refreshToken"

// AuthHandler implements registration and session endpoints.
type AuthHandler struct {
	Users    UserStore
	Sessions SessionManager
	Media    media.Store
	NowFunc  func() time.Time
}

type registerRequest struct {
	FullName string `json:"fullName" validate:"required,notblank,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Username string `json:"username" validate:"required,notblank,min=3,max=30"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password" validate:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type sessionResponse struct {
	User         models.User `json:"user"`
	AccessToken  string      `json:"accessToken"`
	RefreshToken string      `json:"refreshToken"`
}

// Register handles POST /api/v1/users/register. The multipart form carries the account fields,
// a required avatar image and an optional cover image.
func (h AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if err := parseMultipart(r); err != nil {
		envelope.WriteError(ctx, w, err)
		return
	}

	req := registerRequest{
		FullName: strings.TrimSpace(r.FormValue("fullName")),
		Email:    strings.ToLower(strings.TrimSpace(r.FormValue("email"))),
		Username: strings.ToLower(strings.TrimSpace(r.FormValue("username"))),
		Password: r.FormValue("password"),
	}
	if err := validation.Struct(req); err != nil {
		envelope.WriteError(ctx, w, err)
		return
	}

	if err := h.ensureAvailable(r, req.Email, req.Username); err != nil {
		envelope.WriteError(ctx, w, err)
		return
	}

	avatar, err := formFile(r, "avatar")
	if err != nil {
		envelope.WriteError(ctx, w, err)
		return
	}
	if avatar == nil {
		envelope.WriteError(ctx, w, apperr.Validation("avatar image is required"))
		return
	}
	defer avatar.Close()

	cover, err := formFile(r, "coverImage")
	if err != nil {
		envelope.WriteError(ctx, w, err)
		return
	}
	if cover != nil {
		defer cover.Close()
	}

	hashed, err := auth.HashPassword(req.Password)
	if err != nil {
		envelope.WriteError(ctx, w, apperr.Internal(err, "failed to secure password"))
		return
	}

	uploads := media.NewUploads(h.Media)
	avatarAsset, err := uploads.Store(ctx, avatar, media.KindImage)
	if err != nil {
		envelope.WriteError(ctx, w, apperr.Dependency(err, "failed to upload avatar image"))
		return
	}
	var coverAsset models.Asset
	if cover != nil {
		if coverAsset, err = uploads.Store(ctx, cover, media.KindImage); err != nil {
			uploads.Compensate(ctx)
			envelope.WriteError(ctx, w, apperr.Dependency(err, "failed to upload cover image"))
			return
		}
	}

	now := h.now()
	user := models.User{
		ID:         uuid.NewString(),
		Username:   req.Username,
		Email:      req.Email,
		FullName:   req.FullName,
		Avatar:     avatarAsset,
		CoverImage: coverAsset,
		Password:   hashed,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := h.Users.Create(ctx, user); err != nil {
		uploads.Compensate(ctx)
		if errors.Is(err, repositories.ErrConflict) {
			envelope.WriteError(ctx, w, apperr.Conflict("user with this email or username already exists"))
			return
		}
		envelope.WriteError(ctx, w, apperr.Internal(err, "failed to create user"))
		return
	}

	created, err := h.Users.FindByID(ctx, user.ID)
	if err != nil {
		envelope.WriteError(ctx, w, apperr.Integrity(err, "user was created but could not be read back"))
		return
	}

	logger.Info("user registered", slog.String("user_id", created.ID))
	envelope.Write(ctx, w, http.StatusCreated, created, "User registered successfully")
}

func (h AuthHandler) ensureAvailable(r *http.Request, email, username string) error {
	ctx := r.Context()
	if _, err := h.Users.FindByEmail(ctx, email); err == nil {
		return apperr.Conflict("user with this email or username already exists")
	} else if !errors.Is(err, repositories.ErrNotFound) {
		return apperr.Internal(err, "unable to verify existing accounts")
	}
	if _, err := h.Users.FindByUsername(ctx, username); err == nil {
		return apperr.Conflict("user with this email or username already exists")
	} else if !errors.Is(err, repositories.ErrNotFound) {
		return apperr.Internal(err, "unable to verify existing accounts")
	}
	return nil
}

// Login handles POST /api/v1/users/login with an email or username and a password.
func (h AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		envelope.WriteError(ctx, w, err)
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Username = strings.ToLower(strings.TrimSpace(req.Username))
	if req.Email == "" && req.Username == "" {
		envelope.WriteError(ctx, w, apperr.Validation("email or username is required"))
		return
	}

	var (
		user models.User
		err  error
	)
	if req.Email != "" {
		user, err = h.Users.FindByEmail(ctx, req.Email)
	} else {
		user, err = h.Users.FindByUsername(ctx, req.Username)
	}
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			logger.Warn("login for unknown user", slog.String("email", req.Email), slog.String("username", req.Username))
			envelope.WriteError(ctx, w, apperr.Unauthenticated("invalid credentials"))
			return
		}
		envelope.WriteError(ctx, w, apperr.Internal(err, "failed to look up user"))
		return
	}

	if err := auth.CheckPassword(user.Password, req.Password); err != nil {
		logger.Warn("login password mismatch", slog.String("user_id", user.ID))
		envelope.WriteError(ctx, w, apperr.Unauthenticated("invalid credentials"))
		return
	}

	tokens, err := h.Sessions.Issue(ctx, user.ID, user.RefreshToken)
	if err != nil {
		envelope.WriteError(ctx, w, apperr.Internal(err, "failed to create session"))
		return
	}

	setSessionCookies(w, tokens)
	envelope.Write(ctx, w, http.StatusOK, sessionResponse{
		User:         user,
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
	}, "User logged in successfully")
}

// Refresh handles POST /api/v1/users/refresh. The refresh token is read from its cookie or the
// JSON body.
func (h AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	token := ""
	if cookie, err := r.Cookie(RefreshTokenCookie); err == nil {
		token = strings.TrimSpace(cookie.Value)
	}
	if token == "" && r.ContentLength != 0 {
		var req refreshRequest
		if err := decodeJSON(r, &req); err != nil {
			envelope.WriteError(ctx, w, err)
			return
		}
		token = strings.TrimSpace(req.RefreshToken)
	}
	if token == "" {
		envelope.WriteError(ctx, w, apperr.Unauthenticated("refresh token is required"))
		return
	}

	tokens, err := h.Sessions.Refresh(ctx, token)
	if err != nil {
		if errors.Is(err, auth.ErrRefreshTokenExpired) || errors.Is(err, auth.ErrSessionNotFound) {
			envelope.WriteError(ctx, w, apperr.Unauthenticated("refresh token is expired or already used"))
			return
		}
		envelope.WriteError(ctx, w, apperr.Internal(err, "unable to refresh session"))
		return
	}

	setSessionCookies(w, tokens)
	envelope.Write(ctx, w, http.StatusOK, map[string]string{
		"accessToken":  tokens.AccessToken,
		"refreshToken": tokens.RefreshToken,
	}, "Access token refreshed")
}

// Logout handles POST /api/v1/users/logout for the authenticated caller.
func (h AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, err := h.Users.FindByID(ctx, caller(r))
	if err != nil {
		envelope.WriteError(ctx, w, lookupError(err, "user"))
		return
	}
	if err := h.Sessions.Revoke(ctx, user.ID, user.RefreshToken); err != nil {
		envelope.WriteError(ctx, w, apperr.Internal(err, "failed to log out"))
		return
	}

	clearSessionCookies(w)
	envelope.Write(ctx, w, http.StatusOK, map[string]any{}, "User logged out")
}

func (h AuthHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}

func setSessionCookies(w http.ResponseWriter, tokens models.SessionTokens) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.AccessTokenCookie,
		Value:    tokens.AccessToken,
		Path:     "/",
		Expires:  tokens.AccessExpiresAt,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshTokenCookie,
		Value:    tokens.RefreshToken,
		Path:     "/api/v1/users",
		Expires:  tokens.RefreshExpiresAt,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearSessionCookies(w http.ResponseWriter) {
	for name, path := range map[string]string{auth.AccessTokenCookie: "/", RefreshTokenCookie: "/api/v1/users"} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     path,
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   true,
		})
	}
}

// lookupError maps a repository read failure onto NotFound or Internal.
func lookupError(err error, what string) error {
	if errors.Is(err, repositories.ErrNotFound) {
		return apperr.NotFound("%s not found", what)
	}
	return apperr.Internal(err, "failed to load %s", what)
}
