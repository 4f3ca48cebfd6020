// Package envelope writes every API response in the same {statusCode, data, message, success}
// shape.
package envelope

import (
	"context"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/vidtube/backend/internal/apperr"
	"github.com/vidtube/backend/internal/logging"
)

// Response is the wire shape shared by successful and failed requests.
type Response struct {
	StatusCode int    `json:"statusCode"`
	Data       any    `json:"data"`
	Message    string `json:"message"`
	Success    bool   `json:"success"`
}

// New builds a response; success is derived from the status code.
func New(status int, data any, message string) Response {
	return Response{
		StatusCode: status,
		Data:       data,
		Message:    message,
		Success:    status < http.StatusBadRequest,
	}
}

// Write sends data wrapped in a successful envelope.
func Write(ctx context.Context, w http.ResponseWriter, status int, data any, message string) {
	send(ctx, w, New(status, data, message))
}

// WriteError maps err onto its status code and sends a failure envelope carrying only the
// caller-safe message. The wrapped cause is logged, never written.
func WriteError(ctx context.Context, w http.ResponseWriter, err error) {
	kind := apperr.KindOf(err)
	status := kind.Status()
	message := apperr.MessageOf(err)

	logger := logging.FromContext(ctx)
	switch {
	case status >= http.StatusInternalServerError:
		logger.Error("request failed", "status", status, "kind", kind.String(), "error", err)
	default:
		logger.Warn("request returned client error", "status", status, "kind", kind.String(), "message", message)
	}

	send(ctx, w, Response{StatusCode: status, Data: nil, Message: message, Success: false})
}

func send(ctx context.Context, w http.ResponseWriter, resp Response) {
	body, err := json.Marshal(resp)
	if err != nil {
		logging.FromContext(ctx).Error("encode response body", "status", resp.StatusCode, "error", err)
		resp = Response{StatusCode: http.StatusInternalServerError, Message: "internal server error"}
		body, _ = json.Marshal(resp)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.StatusCode)
	_, _ = w.Write(body)
}
