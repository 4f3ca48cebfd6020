package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestKindOfUnwrapsChains(t *testing.T) {
	base := NotFound("video not found")
	wrapped := fmt.Errorf("load video: %w", base)

	if got := KindOf(wrapped); got != KindNotFound {
		t.Fatalf("expected not found kind got %v", got)
	}
	if got := KindOf(errors.New("plain")); got != KindInternal {
		t.Fatalf("expected internal kind for plain error got %v", got)
	}
	if !Is(wrapped, KindNotFound) {
		t.Fatal("expected Is to match wrapped kind")
	}
	if Is(nil, KindInternal) {
		t.Fatal("nil error must not match any kind")
	}
}

func TestStatusMapping(t *testing.T) {
	cases := map[Kind]int{
		KindValidation:     http.StatusBadRequest,
		KindNotFound:       http.StatusNotFound,
		KindAuthorization:  http.StatusForbidden,
		KindAuthentication: http.StatusUnauthorized,
		KindConflict:       http.StatusConflict,
		KindDependency:     http.StatusInternalServerError,
		KindIntegrity:      http.StatusInternalServerError,
		KindInternal:       http.StatusInternalServerError,
		KindRateLimit:      http.StatusTooManyRequests,
	}
	for kind, want := range cases {
		if got := kind.Status(); got != want {
			t.Fatalf("kind %s: expected %d got %d", kind, want, got)
		}
	}
}

func TestMessageOfHidesCause(t *testing.T) {
	err := Dependency(errors.New("s3: connection reset by peer 10.0.0.4"), "failed to upload thumbnail")
	if got := MessageOf(err); got != "failed to upload thumbnail" {
		t.Fatalf("unexpected message %q", got)
	}
	if got := MessageOf(errors.New("pq: relation users does not exist")); got != "internal server error" {
		t.Fatalf("expected generic message got %q", got)
	}
}
