package envelope

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/tidwall/gjson"

	"github.com/vidtube/backend/internal/apperr"
)

func TestWriteWrapsData(t *testing.T) {
	rec := httptest.NewRecorder()
	Write(context.Background(), rec, http.StatusCreated, map[string]any{"id": "abc"}, "created")

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "application/json" {
		t.Fatalf("unexpected content type %q", got)
	}

	body := gjson.ParseBytes(rec.Body.Bytes())
	if body.Get("statusCode").Int() != http.StatusCreated {
		t.Fatalf("unexpected statusCode: %s", body.Raw)
	}
	if !body.Get("success").Bool() {
		t.Fatalf("expected success=true: %s", body.Raw)
	}
	if body.Get("data.id").String() != "abc" || body.Get("message").String() != "created" {
		t.Fatalf("unexpected body: %s", body.Raw)
	}
}

func TestWriteErrorHidesCause(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{
			name:    "validation",
			err:     apperr.Validation("title is required"),
			status:  http.StatusBadRequest,
			message: "title is required",
		},
		{
			name:    "forbidden",
			err:     apperr.Forbidden("you do not have permission to modify this video"),
			status:  http.StatusForbidden,
			message: "you do not have permission to modify this video",
		},
		{
			name:    "dependency",
			err:     apperr.Dependency(errors.New("s3: access denied for key secret/path"), "failed to upload video"),
			status:  http.StatusInternalServerError,
			message: "failed to upload video",
		},
		{
			name:    "plain error",
			err:     errors.New("pq: password authentication failed"),
			status:  http.StatusInternalServerError,
			message: "internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			WriteError(context.Background(), rec, tt.err)

			if rec.Code != tt.status {
				t.Fatalf("expected status %d, got %d", tt.status, rec.Code)
			}
			body := gjson.ParseBytes(rec.Body.Bytes())
			if body.Get("success").Bool() {
				t.Fatalf("expected success=false: %s", body.Raw)
			}
			if body.Get("data").Type != gjson.Null {
				t.Fatalf("expected null data: %s", body.Raw)
			}
			if got := body.Get("message").String(); got != tt.message {
				t.Fatalf("expected message %q, got %q", tt.message, got)
			}
			if body.Get("statusCode").Int() != int64(tt.status) {
				t.Fatalf("unexpected statusCode: %s", body.Raw)
			}
		})
	}
}
