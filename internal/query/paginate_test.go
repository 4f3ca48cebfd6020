package query

import (
	"context"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func makeDocs(n int) []Document {
	docs := make([]Document, n)
	for i := range docs {
		docs[i] = Document{"id": fmt.Sprintf("doc-%03d", i)}
	}
	return docs
}

func TestParsePageRequest(t *testing.T) {
	tests := []struct {
		name           string
		page, pageSize string
		want           PageRequest
	}{
		{name: "defaults", want: PageRequest{Page: 1, PageSize: 10}},
		{name: "explicit", page: "3", pageSize: "25", want: PageRequest{Page: 3, PageSize: 25}},
		{name: "garbage", page: "abc", pageSize: "-4", want: PageRequest{Page: 1, PageSize: 10}},
		{name: "zero", page: "0", pageSize: "0", want: PageRequest{Page: 1, PageSize: 10}},
		{name: "integral float", page: "2.0", pageSize: "5", want: PageRequest{Page: 2, PageSize: 5}},
		{name: "fractional float", page: "2.5", pageSize: "5", want: PageRequest{Page: 1, PageSize: 5}},
		{name: "clamped", page: "1", pageSize: "5000", want: PageRequest{Page: 1, PageSize: 100}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParsePageRequest(tt.page, tt.pageSize, 100))
		})
	}
}

func TestNewPageMetadata(t *testing.T) {
	for total := 0; total <= 23; total++ {
		for size := 1; size <= 7; size++ {
			wantPages := (total + size - 1) / size
			for page := 1; page <= wantPages+1; page++ {
				p := NewPage(makeDocs(total), PageRequest{Page: page, PageSize: size}, Labels{})
				require.Equal(t, total, p.TotalCount)
				require.Equal(t, wantPages, p.TotalPages, "total=%d size=%d", total, size)
				require.LessOrEqual(t, len(p.Items), size)
				require.Equal(t, page < wantPages, p.HasNext)
				if total > 0 {
					require.Equal(t, page > 1, p.HasPrev)
				}
				if p.HasNext {
					require.Equal(t, page+1, *p.NextPage)
				} else {
					require.Nil(t, p.NextPage)
				}
			}
		}
	}
}

func TestNewPageSlicesInOrder(t *testing.T) {
	p := NewPage(makeDocs(25), PageRequest{Page: 3, PageSize: 10}, Labels{})
	require.Len(t, p.Items, 5)
	assert.Equal(t, "doc-020", p.Items[0]["id"])
	assert.False(t, p.HasNext)
	assert.Equal(t, 2, *p.PrevPage)

	beyond := NewPage(makeDocs(25), PageRequest{Page: 9, PageSize: 10}, Labels{})
	assert.Empty(t, beyond.Items)
	assert.Equal(t, 25, beyond.TotalCount)
}

func TestNewPageHugeNumbersStayEmpty(t *testing.T) {
	req := ParsePageRequest("9223372036854775807", "10", 100)
	require.Equal(t, math.MaxInt, req.Page)

	p := NewPage(makeDocs(3), req, Labels{})
	assert.Empty(t, p.Items)
	assert.Equal(t, 3, p.TotalCount)
	assert.Equal(t, 1, p.TotalPages)
	assert.False(t, p.HasNext)
	assert.True(t, p.HasPrev)

	whole := NewPage(makeDocs(3), PageRequest{Page: 1, PageSize: math.MaxInt}, Labels{})
	assert.Len(t, whole.Items, 3)
	assert.Equal(t, 1, whole.TotalPages)
}

func TestEmptyPageEnvelope(t *testing.T) {
	p := NewPage(nil, PageRequest{Page: 1, PageSize: 10}, Labels{Items: "comments", Total: "totalComments"})
	raw, err := p.MarshalJSON()
	require.NoError(t, err)

	body := string(raw)
	assert.True(t, gjson.Get(body, "comments").IsArray())
	assert.Empty(t, gjson.Get(body, "comments").Array())
	assert.Equal(t, int64(0), gjson.Get(body, "totalComments").Int())
	assert.Equal(t, int64(0), gjson.Get(body, "totalPages").Int())
	assert.False(t, gjson.Get(body, "hasNextPage").Bool())
	assert.False(t, gjson.Get(body, "hasPrevPage").Bool())
	assert.Equal(t, gjson.Null, gjson.Get(body, "nextPage").Type)
	assert.Equal(t, gjson.Null, gjson.Get(body, "prevPage").Type)
	assert.False(t, gjson.Get(body, "items").Exists())
}

func TestPaginateCountsBeforeSlicing(t *testing.T) {
	src := NewMemorySource()
	src.Insert("videos", makeDocs(12)...)

	page, err := NewExecutor(src).Paginate(context.Background(), "videos",
		Pipeline{Sort{Field: "id", Descending: true}},
		PageRequest{Page: 2, PageSize: 5},
		Labels{Items: "videos", Total: "totalVideos"},
	)
	require.NoError(t, err)
	assert.Equal(t, 12, page.TotalCount)
	assert.Equal(t, 3, page.TotalPages)
	require.Len(t, page.Items, 5)
	assert.Equal(t, "doc-006", page.Items[0]["id"])
}
