package query

import (
	"context"
	"errors"
	"fmt"

	"github.com/sourcegraph/conc/pool"
)

// ErrUnsupportedPredicate is returned by sources that cannot translate a predicate.
var ErrUnsupportedPredicate = errors.New("unsupported predicate")

// Source fetches documents from a named collection. A nil predicate selects every document.
type Source interface {
	Find(ctx context.Context, collection string, where Predicate) ([]Document, error)
}

const (
	defaultBatchSize   = 500
	defaultConcurrency = 4
)

// Executor runs pipelines against a Source.
type Executor struct {
	source      Source
	batchSize   int
	concurrency int
}

// Option customises an Executor.
type Option func(*Executor)

// WithBatchSize bounds the number of keys fetched per join query.
func WithBatchSize(n int) Option {
	return func(x *Executor) {
		if n > 0 {
			x.batchSize = n
		}
	}
}

// WithConcurrency bounds the number of join batches fetched at once.
func WithConcurrency(n int) Option {
	return func(x *Executor) {
		if n > 0 {
			x.concurrency = n
		}
	}
}

// NewExecutor constructs an Executor reading from source.
func NewExecutor(source Source, opts ...Option) *Executor {
	x := &Executor{
		source:      source,
		batchSize:   defaultBatchSize,
		concurrency: defaultConcurrency,
	}
	for _, opt := range opts {
		opt(x)
	}
	return x
}

// Run executes the pipeline over collection and returns every resulting document.
func (x *Executor) Run(ctx context.Context, collection string, p Pipeline) ([]Document, error) {
	if x == nil || x.source == nil {
		return nil, errors.New("query executor has no source")
	}
	where, rest := splitLeadingMatches(p)
	docs, err := x.source.Find(ctx, collection, where)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", collection, err)
	}
	return x.apply(ctx, rest, docs)
}

func (x *Executor) apply(ctx context.Context, stages Pipeline, docs []Document) ([]Document, error) {
	for i, stage := range stages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var err error
		docs, err = stage.apply(ctx, x, docs)
		if err != nil {
			return nil, fmt.Errorf("stage %d (%s): %w", i, stage.name(), err)
		}
	}
	return docs, nil
}

// splitLeadingMatches folds the leading Match stages into one predicate for pushdown.
func splitLeadingMatches(p Pipeline) (Predicate, Pipeline) {
	var preds []Predicate
	i := 0
	for ; i < len(p); i++ {
		m, ok := p[i].(Match)
		if !ok {
			break
		}
		preds = append(preds, m.Where)
	}
	return all(preds...), p[i:]
}

func (x *Executor) lookup(ctx context.Context, s Lookup, docs []Document) ([]Document, error) {
	var keys []any
	seen := make(map[string]struct{})
	for _, doc := range docs {
		for _, key := range localKeys(doc, s.LocalField) {
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			keys = append(keys, key)
		}
	}

	nestedWhere, nested := splitLeadingMatches(s.Pipeline)
	shared, perKey := splitKeyed(nested)

	index := make(map[string][]Document)
	if len(keys) > 0 {
		joined, err := x.fetchJoined(ctx, s, keys, nestedWhere)
		if err != nil {
			return nil, err
		}
		if joined, err = x.apply(ctx, shared, joined); err != nil {
			return nil, err
		}
		for _, doc := range joined {
			v, _ := doc.Get(s.ForeignField)
			if key, ok := keyOf(v); ok {
				index[key] = append(index[key], doc)
			}
		}
		for key, group := range index {
			if index[key], err = x.apply(ctx, perKey, group); err != nil {
				return nil, err
			}
		}
	}

	for _, doc := range docs {
		attached := []any{}
		for _, key := range localKeys(doc, s.LocalField) {
			for _, related := range index[key] {
				attached = append(attached, related.Clone())
			}
		}
		doc.Set(s.As, attached)
	}
	return docs, nil
}

// splitKeyed cuts a nested join pipeline at its first Project or Group. The stages before the
// cut keep the foreign field intact and run once over every joined document. The rest may drop
// it, so it runs separately for each join key after grouping.
func splitKeyed(p Pipeline) (shared, perKey Pipeline) {
	for i, stage := range p {
		switch stage.(type) {
		case Project, Group:
			return p[:i], p[i:]
		}
	}
	return p, nil
}

func (x *Executor) fetchJoined(ctx context.Context, s Lookup, keys []any, nestedWhere Predicate) ([]Document, error) {
	p := pool.NewWithResults[[]Document]().
		WithMaxGoroutines(x.concurrency).
		WithContext(ctx).
		WithCancelOnError().
		WithFirstError()
	for start := 0; start < len(keys); start += x.batchSize {
		end := min(start+x.batchSize, len(keys))
		batch := keys[start:end]
		p.Go(func(ctx context.Context) ([]Document, error) {
			where := all(In{Field: s.ForeignField, Values: batch}, nestedWhere)
			found, err := x.source.Find(ctx, s.From, where)
			if err != nil {
				return nil, fmt.Errorf("lookup %s.%s: %w", s.From, s.ForeignField, err)
			}
			return found, nil
		})
	}
	batches, err := p.Wait()
	if err != nil {
		return nil, err
	}

	var joined []Document
	for _, batch := range batches {
		joined = append(joined, batch...)
	}
	return joined, nil
}

// localKeys returns the join keys held at path, expanding lists in order.
func localKeys(doc Document, path string) []string {
	v, ok := doc.Get(path)
	if !ok {
		return nil
	}
	if list, isList := asList(v); isList {
		keys := make([]string, 0, len(list))
		for _, item := range list {
			if key, ok := keyOf(item); ok {
				keys = append(keys, key)
			}
		}
		return keys
	}
	if key, ok := keyOf(v); ok {
		return []string{key}
	}
	return nil
}
