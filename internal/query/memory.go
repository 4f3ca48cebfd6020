package query

import (
	"context"
	"sync"
)

// MemorySource is an in-process Source holding documents per collection. It evaluates
// predicates directly and returns copies so pipelines never mutate stored documents.
type MemorySource struct {
	mu          sync.RWMutex
	collections map[string][]Document
}

// NewMemorySource returns an empty MemorySource.
func NewMemorySource() *MemorySource {
	return &MemorySource{collections: make(map[string][]Document)}
}

// Insert appends documents to a collection.
func (m *MemorySource) Insert(collection string, docs ...Document) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, doc := range docs {
		m.collections[collection] = append(m.collections[collection], doc.Clone())
	}
}

// Delete removes documents of a collection matching where.
func (m *MemorySource) Delete(collection string, where Predicate) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.collections[collection][:0:0]
	removed := 0
	for _, doc := range m.collections[collection] {
		if where != nil && where.Eval(doc) {
			removed++
			continue
		}
		kept = append(kept, doc)
	}
	m.collections[collection] = kept
	return removed
}

// Find implements Source.
func (m *MemorySource) Find(ctx context.Context, collection string, where Predicate) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Document
	for _, doc := range m.collections[collection] {
		if where == nil || where.Eval(doc) {
			out = append(out, doc.Clone())
		}
	}
	return out, nil
}

var _ Source = (*MemorySource)(nil)
