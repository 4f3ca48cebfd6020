package query

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestDocumentPaths(t *testing.T) {
	doc := Document{}
	doc.Set("owner.avatar.url", "https://cdn/a.png")
	doc.Set("tags", []any{"a", "b"})

	v, ok := doc.Get("owner.avatar.url")
	require.True(t, ok)
	assert.Equal(t, "https://cdn/a.png", v)

	v, ok = doc.Get("tags.1")
	require.True(t, ok)
	assert.Equal(t, "b", v)

	_, ok = doc.Get("tags.5")
	assert.False(t, ok)

	doc.Delete("owner.avatar")
	_, ok = doc.Get("owner.avatar.url")
	assert.False(t, ok)

	clone := doc.Clone()
	clone.Set("owner.name", "changed")
	_, ok = doc.Get("owner.name")
	assert.False(t, ok, "clone must not share nested documents")
}

func TestPredicates(t *testing.T) {
	doc := Document{"title": "Learning Go Pipelines", "views": int64(10), "video": nil}

	assert.True(t, ContainsFold{Field: "title", Substr: "go pipe"}.Eval(doc))
	assert.False(t, ContainsFold{Field: "missing", Substr: "go"}.Eval(doc))
	assert.True(t, Eq{Field: "views", Value: 10}.Eval(doc), "numeric equality crosses int widths")
	assert.False(t, Exists{Field: "video"}.Eval(doc), "null is not existence")
	assert.True(t, In{Field: "views", Values: []any{int64(3), int64(10)}}.Eval(doc))
	assert.True(t, Or{Eq{Field: "views", Value: 1}, ContainsFold{Field: "title", Substr: "learn"}}.Eval(doc))
	assert.False(t, Or{}.Eval(doc))
	assert.True(t, And{}.Eval(doc))
}

// countingSource records every Find so tests can observe pushdown and batching.
type countingSource struct {
	*MemorySource
	calls  atomic.Int32
	wheres chan Predicate
}

func newCountingSource() *countingSource {
	return &countingSource{MemorySource: NewMemorySource(), wheres: make(chan Predicate, 64)}
}

func (c *countingSource) Find(ctx context.Context, collection string, where Predicate) ([]Document, error) {
	c.calls.Add(1)
	c.wheres <- where
	return c.MemorySource.Find(ctx, collection, where)
}

func TestLookupFirstAndProject(t *testing.T) {
	src := NewMemorySource()
	src.Insert("users",
		Document{"id": "u1", "username": "alice", "fullName": "Alice", "email": "a@example.com"},
	)
	src.Insert("comments",
		Document{"id": "c1", "video": "v1", "owner": "u1", "content": "first"},
		Document{"id": "c2", "video": "v1", "owner": "ghost", "content": "orphan"},
	)

	pipeline := Pipeline{
		Match{Where: Eq{Field: "video", Value: "v1"}},
		Lookup{From: "users", LocalField: "owner", ForeignField: "id", As: "ownerDetails",
			Pipeline: Pipeline{Project{Fields: Include("id", "username", "fullName")}}},
		First{Field: "ownerDetails"},
		Project{Fields: Include("id", "content", "ownerDetails")},
		Sort{Field: "id"},
	}

	docs, err := NewExecutor(src).Run(context.Background(), "comments", pipeline)
	require.NoError(t, err)
	require.Len(t, docs, 2)

	want := []Document{
		{"id": "c1", "content": "first", "ownerDetails": Document{"id": "u1", "username": "alice", "fullName": "Alice"}},
		{"id": "c2", "content": "orphan"},
	}
	if diff := cmp.Diff(want, docs); diff != "" {
		t.Fatalf("unexpected documents (-want +got):\n%s", diff)
	}
}

func TestLookupDropEmptyAndListOrder(t *testing.T) {
	src := NewMemorySource()
	src.Insert("videos",
		Document{"id": "v1", "title": "one"},
		Document{"id": "v2", "title": "two"},
		Document{"id": "v3", "title": "three"},
	)
	src.Insert("playlists", Document{"id": "p1", "videos": []any{"v3", "deleted", "v1"}})
	src.Insert("likes",
		Document{"id": "l1", "video": "v2"},
		Document{"id": "l2", "video": "deleted"},
	)

	x := NewExecutor(src)

	docs, err := x.Run(context.Background(), "playlists", Pipeline{
		Lookup{From: "videos", LocalField: "videos", ForeignField: "id", As: "playlistVideos"},
		AddFields{Fields: []Field{{Name: "videoCount", Expr: Size("playlistVideos")}}},
	})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, int64(2), docs[0]["videoCount"])
	joined := docs[0]["playlistVideos"].([]any)
	assert.Equal(t, "v3", joined[0].(Document)["id"], "joined list follows the local list order")
	assert.Equal(t, "v1", joined[1].(Document)["id"])

	docs, err = x.Run(context.Background(), "likes", Pipeline{
		Lookup{From: "videos", LocalField: "video", ForeignField: "id", As: "videoDetails"},
		DropEmpty{Field: "videoDetails"},
		First{Field: "videoDetails"},
	})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "l1", docs[0]["id"])
}

func TestLookupBatchesAndPushesDownNestedMatch(t *testing.T) {
	src := newCountingSource()
	var parents []Document
	for i := range 7 {
		id := string(rune('a' + i))
		parents = append(parents, Document{"id": id, "ref": id})
		src.Insert("children", Document{"id": id, "published": i%2 == 0})
	}
	src.Insert("parents", parents...)

	x := NewExecutor(src, WithBatchSize(3), WithConcurrency(2))
	docs, err := x.Run(context.Background(), "parents", Pipeline{
		Lookup{From: "children", LocalField: "ref", ForeignField: "id", As: "child",
			Pipeline: Pipeline{Match{Where: Eq{Field: "published", Value: true}}}},
		First{Field: "child"},
	})
	require.NoError(t, err)
	require.Len(t, docs, 7)
	assert.Equal(t, int32(1+3), src.calls.Load(), "one root find plus three join batches")

	withChild := 0
	for _, doc := range docs {
		if _, ok := doc["child"]; ok {
			withChild++
		}
	}
	assert.Equal(t, 4, withChild)

	close(src.wheres)
	<-src.wheres // root find
	for where := range src.wheres {
		and, ok := where.(And)
		require.True(t, ok, "join batches combine key and nested match")
		assert.Len(t, and, 2)
	}
}

func TestLookupNestedProjectionMayDropForeignField(t *testing.T) {
	src := NewMemorySource()
	src.Insert("users", Document{"id": "ch"}, Document{"id": "quiet"})
	src.Insert("videos",
		Document{"id": "v1", "owner": "ch", "views": int64(5)},
		Document{"id": "v2", "owner": "ch", "views": int64(10)},
	)
	src.Insert("comments", Document{"id": "c1", "video": "v1"})
	src.Insert("likes",
		Document{"id": "l1", "comment": "c1"},
		Document{"id": "l2", "comment": "c1"},
	)

	docs, err := NewExecutor(src, WithBatchSize(1)).Run(context.Background(), "users", Pipeline{
		Lookup{From: "videos", LocalField: "id", ForeignField: "owner", As: "videos",
			Pipeline: Pipeline{
				Lookup{From: "comments", LocalField: "id", ForeignField: "video", As: "comments",
					Pipeline: Pipeline{
						Lookup{From: "likes", LocalField: "id", ForeignField: "comment", As: "likes",
							Pipeline: Pipeline{Project{Fields: Include("id")}}},
						AddFields{Fields: []Field{{Name: "likeCount", Expr: Size("likes")}}},
						Project{Fields: Include("likeCount")},
					}},
				Project{Fields: Include("id", "views", "comments")},
				Sort{Field: "views"},
			}},
		Sort{Field: "id"},
	})
	require.NoError(t, err)
	want := []Document{
		{"id": "ch", "videos": []any{
			Document{"id": "v1", "views": int64(5), "comments": []any{Document{"likeCount": int64(2)}}},
			Document{"id": "v2", "views": int64(10), "comments": []any{}},
		}},
		{"id": "quiet", "videos": []any{}},
	}
	if diff := cmp.Diff(want, docs); diff != "" {
		t.Fatalf("unexpected joins (-want +got):\n%s", diff)
	}
}

type failingSource struct{ err error }

func (f failingSource) Find(context.Context, string, Predicate) ([]Document, error) {
	return nil, f.err
}

func TestRunPropagatesSourceErrors(t *testing.T) {
	boom := errors.New("boom")
	_, err := NewExecutor(failingSource{err: boom}).Run(context.Background(), "videos", nil)
	require.ErrorIs(t, err, boom)
}

func TestUnwindAndGroup(t *testing.T) {
	src := NewMemorySource()
	src.Insert("channels", Document{"id": "ch", "videos": []any{
		Document{"id": "v1", "views": int64(5)},
		Document{"id": "v2", "views": int64(10)},
	}, "subs": []any{"s1"}})
	src.Insert("channels", Document{"id": "empty", "videos": []any{}, "subs": []any{}})

	docs, err := NewExecutor(src).Run(context.Background(), "channels", Pipeline{
		Unwind{Field: "videos", PreserveEmpty: true},
		Group{By: "id", Fields: []Accumulator{
			FirstOf("subscribers", Size("subs")),
			Sum("videos", IfPresent{Path: "videos.id", Then: int64(1), Else: int64(0)}),
			Sum("views", Ref("videos.views")),
		}},
	})
	require.NoError(t, err)
	want := []Document{
		{"id": "ch", "subscribers": int64(1), "videos": int64(2), "views": int64(15)},
		{"id": "empty", "subscribers": int64(0), "videos": int64(0), "views": int64(0)},
	}
	if diff := cmp.Diff(want, docs); diff != "" {
		t.Fatalf("unexpected groups (-want +got):\n%s", diff)
	}
}

func TestSortIsStableOnTies(t *testing.T) {
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	docs := []Document{
		{"id": "b", "createdAt": ts},
		{"id": "c", "createdAt": ts.Add(time.Hour)},
		{"id": "a", "createdAt": ts},
	}
	out, err := Sort{Field: "createdAt", Descending: true}.apply(context.Background(), nil, docs)
	require.NoError(t, err)
	assert.Equal(t, []any{"c", "b", "a"}, []any{out[0]["id"], out[1]["id"], out[2]["id"]})
}

func TestExprs(t *testing.T) {
	doc := Document{"comments": []any{
		Document{"likeCount": int64(2)},
		Document{"likeCount": int64(3)},
		"not a document",
	}, "likes": []any{1, 2}}

	v, _ := SumOf{List: "comments", Path: "likeCount"}.Eval(doc)
	assert.Equal(t, int64(5), v)

	v, _ = Add{Size("likes"), SumOf{List: "comments", Path: "likeCount"}, Ref("missing")}.Eval(doc)
	assert.Equal(t, int64(7), v)

	v, _ = Size("missing").Eval(doc)
	assert.Equal(t, int64(0), v)
}
