package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/tidwall/gjson"
)

func newTestManager(t *testing.T, accessTTL, refreshTTL time.Duration) (*Manager, *InMemoryTokenStore) {
	t.Helper()
	store := NewInMemoryTokenStore()
	store.Register("user-1")
	return NewManager("test-secret", accessTTL, refreshTTL, store), store
}

func TestManagerIssueAndRefresh(t *testing.T) {
	manager, store := newTestManager(t, time.Minute, time.Hour)

	tokens, err := manager.Issue(context.Background(), "user-1", "")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if tokens.AccessToken == "" || tokens.RefreshToken == "" {
		t.Fatalf("expected non-empty tokens: %+v", tokens)
	}
	if store.Current("user-1") != tokens.RefreshToken {
		t.Fatal("expected refresh token to be stored")
	}

	userID, err := manager.Verify(tokens.AccessToken)
	if err != nil || userID != "user-1" {
		t.Fatalf("verify access token: %q %v", userID, err)
	}

	refreshed, err := manager.Refresh(context.Background(), tokens.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if refreshed.RefreshToken == tokens.RefreshToken {
		t.Fatal("expected new refresh token")
	}

	if _, err := manager.Refresh(context.Background(), tokens.RefreshToken); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected replayed token to be rejected, got %v", err)
	}
}

func TestManagerIssueValidation(t *testing.T) {
	manager, _ := newTestManager(t, time.Minute, time.Hour)
	if _, err := manager.Issue(context.Background(), "", ""); err == nil {
		t.Fatal("expected error for empty user id")
	}
	if _, err := manager.Issue(context.Background(), "ghost", ""); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected unknown user to fail, got %v", err)
	}
}

func TestManagerRefreshFailures(t *testing.T) {
	manager, _ := newTestManager(t, time.Minute, time.Hour)
	now := time.Now().UTC()
	manager.WithClock(func() time.Time { return now })

	if _, err := manager.Refresh(context.Background(), ""); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected session not found got %v", err)
	}

	tokens, err := manager.Issue(context.Background(), "user-1", "")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := manager.Refresh(context.Background(), tokens.AccessToken); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected access token to be refused for refresh, got %v", err)
	}

	now = now.Add(2 * time.Hour)
	if _, err := manager.Refresh(context.Background(), tokens.RefreshToken); !errors.Is(err, ErrRefreshTokenExpired) {
		t.Fatalf("expected refresh expired got %v", err)
	}
	if _, err := manager.Verify(tokens.AccessToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected expired access token to be invalid, got %v", err)
	}
}

func TestManagerRevoke(t *testing.T) {
	manager, store := newTestManager(t, time.Minute, time.Hour)

	tokens, err := manager.Issue(context.Background(), "user-1", "")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if err := manager.Revoke(context.Background(), "user-1", tokens.RefreshToken); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if store.Current("user-1") != "" {
		t.Fatal("expected refresh token to be cleared")
	}
	if _, err := manager.Refresh(context.Background(), tokens.RefreshToken); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected session not found after revoke got %v", err)
	}
}

func TestManagerRejectsForeignSignature(t *testing.T) {
	manager, _ := newTestManager(t, time.Minute, time.Hour)
	other := NewManager("other-secret", time.Minute, time.Hour, NewInMemoryTokenStore())
	other.store.(*InMemoryTokenStore).Register("user-1")

	tokens, err := other.Issue(context.Background(), "user-1", "")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := manager.Verify(tokens.AccessToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected forged token to be rejected, got %v", err)
	}
}

func TestAuthenticateMiddleware(t *testing.T) {
	manager, _ := newTestManager(t, time.Minute, time.Hour)
	tokens, err := manager.Issue(context.Background(), "user-1", "")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	var seen string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = CallerFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})

	tests := []struct {
		name     string
		required bool
		setup    func(r *http.Request)
		status   int
		caller   string
	}{
		{name: "bearer", required: true, setup: func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+tokens.AccessToken) }, status: http.StatusNoContent, caller: "user-1"},
		{name: "cookie", required: true, setup: func(r *http.Request) { r.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: tokens.AccessToken}) }, status: http.StatusNoContent, caller: "user-1"},
		{name: "missing required", required: true, setup: func(*http.Request) {}, status: http.StatusUnauthorized},
		{name: "missing optional", required: false, setup: func(*http.Request) {}, status: http.StatusNoContent},
		{name: "garbage optional", required: false, setup: func(r *http.Request) { r.Header.Set("Authorization", "Bearer nope") }, status: http.StatusUnauthorized},
		{name: "refresh token as access", required: true, setup: func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+tokens.RefreshToken) }, status: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = ""
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			tt.setup(req)
			rec := httptest.NewRecorder()

			Authenticate(manager, tt.required)(next).ServeHTTP(rec, req)

			if rec.Code != tt.status {
				t.Fatalf("expected status %d, got %d", tt.status, rec.Code)
			}
			if seen != tt.caller {
				t.Fatalf("expected caller %q, got %q", tt.caller, seen)
			}
			if rec.Code == http.StatusUnauthorized && gjson.Get(rec.Body.String(), "success").Bool() {
				t.Fatalf("expected failure envelope: %s", rec.Body.String())
			}
		})
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("correct horse")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if err := CheckPassword(hash, "correct horse"); err != nil {
		t.Fatalf("expected match: %v", err)
	}
	if err := CheckPassword(hash, "wrong"); !errors.Is(err, ErrPasswordMismatch) {
		t.Fatalf("expected mismatch, got %v", err)
	}
}
