package handlers

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/vidtube/backend/internal/apperr"
	"github.com/vidtube/backend/internal/auth"
	"github.com/vidtube/backend/internal/pipelines"
	"github.com/vidtube/backend/internal/query"
	"github.com/vidtube/backend/internal/validation"
)

// maxUploadMemory is how much of a multipart body is buffered in memory before spilling to disk.
const maxUploadMemory = 32 << 20

func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.Validation("request body is required")
		}
		return apperr.Validation("invalid request body")
	}
	return validation.Struct(dst)
}

// pathID reads a path parameter that must be a UUID.
func pathID(r *http.Request, param, what string) (string, error) {
	value := strings.TrimSpace(chiParam(r, param))
	if value == "" {
		return "", apperr.Validation("%s is required", what)
	}
	if _, err := uuid.Parse(value); err != nil {
		return "", apperr.Validation("invalid %s", what)
	}
	return value, nil
}

func caller(r *http.Request) string {
	return auth.CallerFromContext(r.Context())
}

func listOptions(r *http.Request) pipelines.ListOptions {
	q := r.URL.Query()
	return pipelines.ListOptions{
		SortField:     q.Get("sortField"),
		SortDirection: q.Get("sortDirection"),
	}
}

func pageRequest(engine *pipelines.Engine, r *http.Request) query.PageRequest {
	q := r.URL.Query()
	return engine.PageRequest(q.Get("page"), q.Get("pageSize"))
}

// optionalBool parses a query flag; absent or empty yields nil.
func optionalBool(r *http.Request, name string) (*bool, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, apperr.Validation("%s must be true or false", name)
	}
	return &v, nil
}

func parseMultipart(r *http.Request) error {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		return apperr.Validation("invalid multipart form")
	}
	return nil
}

// formFile returns the uploaded file named field. A missing file yields (nil, nil).
func formFile(r *http.Request, field string) (multipart.File, error) {
	file, _, err := r.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, nil
		}
		return nil, apperr.Validation("invalid %s upload", field)
	}
	return file, nil
}

func isMultipart(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data")
}

func chiParam(r *http.Request, name string) string {
	return chi.URLParam(r, name)
}
