package query

import (
	"context"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

const (
	// DefaultPage is used when the caller omits or mangles the page number.
	DefaultPage = 1
	// DefaultPageSize is used when the caller omits or mangles the page size.
	DefaultPageSize = 10
)

// PageRequest selects one page of results.
type PageRequest struct {
	Page     int
	PageSize int
}

// ParsePageRequest coerces caller-supplied strings. Non-numeric or non-positive values fall back
// to the defaults; pageSize is clamped to maxPageSize when that is positive.
func ParsePageRequest(page, pageSize string, maxPageSize int) PageRequest {
	req := PageRequest{
		Page:     parsePositive(page, DefaultPage),
		PageSize: parsePositive(pageSize, DefaultPageSize),
	}
	if maxPageSize > 0 && req.PageSize > maxPageSize {
		req.PageSize = maxPageSize
	}
	return req
}

func parsePositive(raw string, fallback int) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		f, ferr := strconv.ParseFloat(raw, 64)
		if ferr != nil || f != float64(int(f)) {
			return fallback
		}
		n = int(f)
	}
	if n < 1 {
		return fallback
	}
	return n
}

func (r PageRequest) normalized() PageRequest {
	if r.Page < 1 {
		r.Page = DefaultPage
	}
	if r.PageSize < 1 {
		r.PageSize = DefaultPageSize
	}
	return r
}

// Labels renames the generic items and total keys of a Page when it is encoded.
type Labels struct {
	Items string
	Total string
}

func (l Labels) orDefault() Labels {
	if l.Items == "" {
		l.Items = "items"
	}
	if l.Total == "" {
		l.Total = "totalCount"
	}
	return l
}

// Page is one slice of a pipeline result together with its metadata.
type Page struct {
	Items      []Document
	TotalCount int
	Page       int
	PageSize   int
	TotalPages int
	HasNext    bool
	HasPrev    bool
	NextPage   *int
	PrevPage   *int
	Labels     Labels
}

// NewPage slices docs according to req and computes the page metadata.
func NewPage(docs []Document, req PageRequest, labels Labels) Page {
	req = req.normalized()
	total := len(docs)
	page := Page{
		Items:      []Document{},
		TotalCount: total,
		Page:       req.Page,
		PageSize:   req.PageSize,
		Labels:     labels,
	}
	if total == 0 {
		return page
	}

	page.TotalPages = total / req.PageSize
	if total%req.PageSize != 0 {
		page.TotalPages++
	}
	// Only in-range pages compute an offset, so huge page numbers cannot overflow.
	if req.Page <= page.TotalPages {
		start := (req.Page - 1) * req.PageSize
		end := min(start+req.PageSize, total)
		page.Items = docs[start:end]
	}

	page.HasNext = req.Page < page.TotalPages
	page.HasPrev = req.Page > 1
	if page.HasNext {
		next := req.Page + 1
		page.NextPage = &next
	}
	if page.HasPrev {
		prev := req.Page - 1
		page.PrevPage = &prev
	}
	return page
}

// MarshalJSON encodes the page using its labels for the items and total keys.
func (p Page) MarshalJSON() ([]byte, error) {
	labels := p.Labels.orDefault()
	items := p.Items
	if items == nil {
		items = []Document{}
	}
	return json.Marshal(map[string]any{
		labels.Items:  items,
		labels.Total:  p.TotalCount,
		"page":        p.Page,
		"pageSize":    p.PageSize,
		"totalPages":  p.TotalPages,
		"hasNextPage": p.HasNext,
		"hasPrevPage": p.HasPrev,
		"nextPage":    p.NextPage,
		"prevPage":    p.PrevPage,
	})
}

// Paginate runs the pipeline and returns the requested page. The total count covers every
// document the pipeline produces, independent of the slice returned.
func (x *Executor) Paginate(ctx context.Context, collection string, p Pipeline, req PageRequest, labels Labels) (Page, error) {
	docs, err := x.Run(ctx, collection, p)
	if err != nil {
		return Page{}, err
	}
	return NewPage(docs, req, labels), nil
}
