package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/vidtube/backend/internal/models"
	"github.com/vidtube/backend/internal/repositories"
)

var (
	// ErrSessionNotFound indicates the provided refresh token does not map to an active session.
	ErrSessionNotFound = errors.New("session not found")
	// ErrRefreshTokenExpired indicates the refresh token has expired and cannot be used.
	ErrRefreshTokenExpired = errors.New("refresh token expired")
	// ErrInvalidToken indicates a token that is malformed, forged, expired or of the wrong use.
	ErrInvalidToken = errors.New("invalid token")
)

const (
	useAccess  = "access"
	useRefresh = "refresh"
)

// TokenStore holds the single active refresh token of each user. SwapRefreshToken replaces the
// stored token only while it still equals expected, returning repositories.ErrStale otherwise.
type TokenStore interface {
	SwapRefreshToken(ctx context.Context, userID, expected, next string) error
}

type claims struct {
	Use string `json:"use"`
	jwt.RegisteredClaims
}

// Manager issues signed access tokens and rotates refresh tokens through a TokenStore.
type Manager struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time

	store TokenStore
}

// NewManager constructs a Manager that signs tokens with secret and the provided TTLs.
func NewManager(secret string, accessTTL, refreshTTL time.Duration, store TokenStore) *Manager {
	if store == nil {
		panic("auth: token store must not be nil")
	}
	return &Manager{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        func() time.Time { return time.Now().UTC() },
		store:      store,
	}
}

// WithClock replaces the manager's clock. It returns m for chaining.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// Issue creates a new token pair for userID, replacing the refresh token currently stored for the
// user. current must be the token the caller last read for the user, empty if none.
func (m *Manager) Issue(ctx context.Context, userID, current string) (models.SessionTokens, error) {
	if userID == "" {
		return models.SessionTokens{}, errors.New("user id must be provided")
	}

	now := m.now()
	tokens := models.SessionTokens{
		AccessExpiresAt:  now.Add(m.accessTTL),
		RefreshExpiresAt: now.Add(m.refreshTTL),
	}

	var err error
	if tokens.AccessToken, err = m.sign(userID, useAccess, now, tokens.AccessExpiresAt); err != nil {
		return models.SessionTokens{}, err
	}
	if tokens.RefreshToken, err = m.sign(userID, useRefresh, now, tokens.RefreshExpiresAt); err != nil {
		return models.SessionTokens{}, err
	}

	if err := m.store.SwapRefreshToken(ctx, userID, current, tokens.RefreshToken); err != nil {
		if errors.Is(err, repositories.ErrStale) || errors.Is(err, repositories.ErrNotFound) {
			return models.SessionTokens{}, ErrSessionNotFound
		}
		return models.SessionTokens{}, fmt.Errorf("store refresh token: %w", err)
	}

	return tokens, nil
}

// Refresh exchanges a refresh token for a new session token pair. Each refresh token can be
// exchanged once; a replayed or superseded token returns ErrSessionNotFound.
func (m *Manager) Refresh(ctx context.Context, refreshToken string) (models.SessionTokens, error) {
	if refreshToken == "" {
		return models.SessionTokens{}, ErrSessionNotFound
	}

	userID, err := m.verify(refreshToken, useRefresh)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return models.SessionTokens{}, ErrRefreshTokenExpired
		}
		return models.SessionTokens{}, ErrSessionNotFound
	}

	return m.Issue(ctx, userID, refreshToken)
}

// Revoke clears the user's refresh token if it is still current.
func (m *Manager) Revoke(ctx context.Context, userID, current string) error {
	if current == "" {
		return nil
	}
	if err := m.store.SwapRefreshToken(ctx, userID, current, ""); err != nil && !errors.Is(err, repositories.ErrStale) {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

// Verify validates an access token and returns the user id it was issued to.
func (m *Manager) Verify(accessToken string) (string, error) {
	return m.verify(accessToken, useAccess)
}

func (m *Manager) sign(userID, use string, issued, expires time.Time) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Use: use,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(issued),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	})
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", use, err)
	}
	return signed, nil
}

func (m *Manager) verify(raw, use string) (string, error) {
	var c claims
	_, err := jwt.ParseWithClaims(raw, &c, func(*jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if c.Use != use || c.Subject == "" {
		return "", ErrInvalidToken
	}
	return c.Subject, nil
}
