package pipelines

import (
	"context"
	"time"

	"github.com/vidtube/backend/internal/apperr"
	"github.com/vidtube/backend/internal/logging"
	"github.com/vidtube/backend/internal/metrics"
	"github.com/vidtube/backend/internal/query"
)

// Engine runs recipes and pages their results.
type Engine struct {
	executor    *query.Executor
	maxPageSize int
}

// NewEngine wires an Engine to an executor. maxPageSize caps caller-supplied page sizes.
func NewEngine(executor *query.Executor, maxPageSize int) *Engine {
	return &Engine{executor: executor, maxPageSize: maxPageSize}
}

// PageRequest coerces raw page parameters, applying the configured page size cap.
func (e *Engine) PageRequest(page, pageSize string) query.PageRequest {
	return query.ParsePageRequest(page, pageSize, e.maxPageSize)
}

// Page runs recipe and returns the requested page labelled for its resource.
func (e *Engine) Page(ctx context.Context, recipe Recipe, req query.PageRequest) (query.Page, error) {
	var page query.Page
	err := e.observe(ctx, recipe, func(ctx context.Context) (int, error) {
		var err error
		page, err = e.executor.Paginate(ctx, recipe.Collection, recipe.Pipeline, req, LabelsFor(recipe.Resource))
		return page.TotalCount, err
	})
	if err != nil {
		return query.Page{}, err
	}
	return page, nil
}

// One runs recipe and returns its first document, or a NotFound error naming what.
func (e *Engine) One(ctx context.Context, recipe Recipe, what string) (query.Document, error) {
	var docs []query.Document
	err := e.observe(ctx, recipe, func(ctx context.Context) (int, error) {
		var err error
		docs, err = e.executor.Run(ctx, recipe.Collection, recipe.Pipeline)
		return len(docs), err
	})
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, apperr.NotFound("%s not found", what)
	}
	return docs[0], nil
}

// observe wraps one pipeline execution in a span and records its duration and result size.
func (e *Engine) observe(ctx context.Context, recipe Recipe, exec func(context.Context) (int, error)) error {
	ctx, span := logging.StartSpan(ctx, "pipeline."+string(recipe.Resource))
	defer span.End()

	start := time.Now()
	n, err := exec(ctx)
	metrics.PipelineDuration.WithLabelValues(string(recipe.Resource), metrics.Outcome(err)).
		Observe(time.Since(start).Seconds())
	if err != nil {
		span.Fail(err)
		return apperr.Internal(err, "failed to load %s", recipe.Resource)
	}
	metrics.PipelineDocuments.WithLabelValues(string(recipe.Resource)).Observe(float64(n))
	return nil
}
