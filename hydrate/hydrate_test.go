package hydrate

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func userPostSpec() *Spec {
	return New("id").
		Fields("id", "name").
		HasMany("posts", Scope("posts"), New("id").Fields("id", "title"))
}

func TestHydrateUsersWithPosts(t *testing.T) {
	rows := []Row{
		{"id": 1, "name": "Alice", "posts$$id": 10, "posts$$title": "Hello World"},
		{"id": 1, "name": "Alice", "posts$$id": 11, "posts$$title": "Another Post"},
		{"id": 2, "name": "Bob", "posts$$id": nil, "posts$$title": nil},
	}

	got, err := Hydrate(context.Background(), rows, userPostSpec())
	require.NoError(t, err)

	want := []any{
		Entity{"id": 1, "name": "Alice", "posts": []any{
			Entity{"id": 10, "title": "Hello World"},
			Entity{"id": 11, "title": "Another Post"},
		}},
		Entity{"id": 2, "name": "Bob", "posts": []any{}},
	}
	assert.Equal(t, want, got)
}

func TestHydrateNullKeyAsymmetry(t *testing.T) {
	spec := New("id").Fields("id", "name")
	row := Row{"id": nil, "name": "ghost"}

	t.Run("slice input skips null identity", func(t *testing.T) {
		got, err := Hydrate(context.Background(), []Row{row, {"id": 3, "name": "real"}}, spec)
		require.NoError(t, err)
		assert.Equal(t, []any{Entity{"id": 3, "name": "real"}}, got)
	})

	t.Run("single row input does not check identity", func(t *testing.T) {
		got, err := HydrateOne(context.Background(), row, spec)
		require.NoError(t, err)
		assert.Equal(t, Entity{"id": nil, "name": "ghost"}, got)
	})

	t.Run("grouped path also skips null identity", func(t *testing.T) {
		got, err := Hydrate(context.Background(), []Row{
			{"id": nil, "name": "ghost", "posts$$id": 1, "posts$$title": "x"},
		}, userPostSpec())
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

func TestHydrateKeepsFirstSeenOrder(t *testing.T) {
	rows := []Row{
		{"id": 3, "posts$$id": 1},
		{"id": 1, "posts$$id": 2},
		{"id": 3, "posts$$id": 3},
		{"id": 2, "posts$$id": nil},
	}
	spec := New("id").Fields("id").HasMany("posts", Scope("posts"), New("id").Fields("id"))

	got, err := Hydrate(context.Background(), rows, spec)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []any{3, 1, 2}, pluck(got, "id"))
	assert.Equal(t, []any{1, 3}, pluck(got[0].(Entity)["posts"].([]any), "id"))
}

func TestHydrateSiblingCollectionsDedupeIndependently(t *testing.T) {
	var rows []Row
	for _, c := range []int{100, 101} {
		for _, tag := range []string{"go", "sql"} {
			rows = append(rows, Row{
				"id":               1,
				"comments$$id":     c,
				"comments$$body":   "c" + string(rune('0'+c-100)),
				"tags$$name":       tag,
				"tags$$post_count": 5,
			})
		}
	}
	require.Len(t, rows, 4)

	spec := New("id").Fields("id").
		HasMany("comments", Scope("comments"), New("id").Fields("id", "body")).
		HasMany("tags", Scope("tags"), New("name").Fields("name"))

	got, err := Hydrate(context.Background(), rows, spec)
	require.NoError(t, err)
	require.Len(t, got, 1)
	post := got[0].(Entity)
	assert.Equal(t, []any{100, 101}, pluck(post["comments"].([]any), "id"))
	assert.Equal(t, []any{"go", "sql"}, pluck(post["tags"].([]any), "name"))
}

func TestHydrateLeafCollectionDedupesRepeatedRows(t *testing.T) {
	rows := []Row{
		{"id": 1, "authors$$id": 7, "tags$$name": "go"},
		{"id": 1, "authors$$id": 7, "tags$$name": "sql"},
	}
	spec := New("id").
		HasMany("authors", Scope("authors"), New("id").Fields("id")).
		HasMany("tags", Scope("tags"), New("name").Fields("name"))

	got, err := Hydrate(context.Background(), rows, spec)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, []any{Entity{"id": 7}}, got[0].(Entity)["authors"])
	assert.Equal(t, []any{"go", "sql"}, pluck(got[0].(Entity)["tags"].([]any), "name"))
}

func TestHydrateFlatRootKeepsDuplicateRows(t *testing.T) {
	rows := []Row{{"id": 1, "v": "a"}, {"id": 1, "v": "a"}}
	got, err := Hydrate(context.Background(), rows, New("id").Fields("id", "v"))
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestHydrateCompositeKey(t *testing.T) {
	rows := []Row{
		{"a": 1, "b": "x", "v": "first"},
		{"a": 1, "b": "y", "v": "second"},
		{"a": 1, "b": "x", "v": "dup"},
		{"a": 1, "b": nil, "v": "null b"},
		{"a": nil, "b": "x", "v": "null a"},
	}
	spec := New("a", "b").Fields("v").HasMany("none", Scope("none"), New("id"))

	got, err := Hydrate(context.Background(), rows, spec)
	require.NoError(t, err)
	assert.Equal(t, []any{"first", "second"}, pluck(got, "v"))
}

func TestHydrateKeyTypesGroupTogether(t *testing.T) {
	rows := []Row{
		{"id": int64(1), "c$$id": 1},
		{"id": int32(1), "c$$id": 2},
		{"id": []byte("7"), "c$$id": 3},
		{"id": "7", "c$$id": 4},
	}
	spec := New("id").HasMany("c", Scope("c"), New("id").Fields("id"))

	got, err := Hydrate(context.Background(), rows, spec)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, []any{1, 2}, pluck(got[0].(Entity)["c"].([]any), "id"))
	assert.Equal(t, []any{3, 4}, pluck(got[1].(Entity)["c"].([]any), "id"))
}

func TestHydrateKeyIdentityIsExact(t *testing.T) {
	t.Run("composite parts do not run together", func(t *testing.T) {
		rows := []Row{
			{"a": "x\x1fy", "b": "z", "c$$id": 1},
			{"a": "x", "b": "y\x1fz", "c$$id": 2},
		}
		spec := New("a", "b").Fields("a").HasMany("c", Scope("c"), New("id").Fields("id"))

		got, err := Hydrate(context.Background(), rows, spec)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, []any{1}, pluck(got[0].(Entity)["c"].([]any), "id"))
		assert.Equal(t, []any{2}, pluck(got[1].(Entity)["c"].([]any), "id"))
	})

	t.Run("string and number stay distinct", func(t *testing.T) {
		rows := []Row{
			{"id": "1", "c$$id": 1},
			{"id": 1, "c$$id": 2},
		}
		spec := New("id").Fields("id").HasMany("c", Scope("c"), New("id").Fields("id"))

		got, err := Hydrate(context.Background(), rows, spec)
		require.NoError(t, err)
		assert.Equal(t, []any{"1", 1}, pluck(got, "id"))
	})

	t.Run("attached children route by exact key", func(t *testing.T) {
		fetch := func(ctx context.Context, rows []Row) ([]any, error) {
			return []any{
				Entity{"parent": "1", "v": "by string"},
				Entity{"parent": 1, "v": "by number"},
			}, nil
		}
		spec := New("id").Fields("id").AttachMany("kids", fetch, OnKeys("parent"))

		got, err := Hydrate(context.Background(), []Row{{"id": 1}, {"id": "1"}}, spec)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, []any{"by number"}, pluck(got[0].(Entity)["kids"].([]any), "v"))
		assert.Equal(t, []any{"by string"}, pluck(got[1].(Entity)["kids"].([]any), "v"))
	})
}

func TestHydrateFieldsExtrasAndOmit(t *testing.T) {
	spec := New("id").
		Fields("id", "first", "last", "secret").
		Field("first", func(v any) any { return strings.ToUpper(v.(string)) }).
		Omit("secret").
		Extra("full", func(v View) any { return v.Value("first").(string) + " " + v.Value("last").(string) })

	got, err := Hydrate(context.Background(), []Row{
		{"id": 1, "first": "ada", "last": "lovelace", "secret": "x"},
	}, spec)
	require.NoError(t, err)
	assert.Equal(t, []any{Entity{"id": 1, "first": "ADA", "last": "lovelace", "full": "ada lovelace"}}, got)
}

func TestHydrateCardinality(t *testing.T) {
	rows := []Row{
		{"id": 1, "owner$$id": 7, "owner$$name": "first"},
		{"id": 1, "owner$$id": 8, "owner$$name": "second"},
		{"id": 2, "owner$$id": nil, "owner$$name": nil},
	}
	owner := New("id").Fields("name")

	t.Run("one takes first or nil", func(t *testing.T) {
		got, err := Hydrate(context.Background(), rows, New("id").Fields("id").HasOne("owner", Scope("owner"), owner))
		require.NoError(t, err)
		assert.Equal(t, Entity{"name": "first"}, got[0].(Entity)["owner"])
		assert.Nil(t, got[1].(Entity)["owner"])
	})

	t.Run("one or throw with several matches keeps the first", func(t *testing.T) {
		got, err := Hydrate(context.Background(), rows[:2], New("id").HasOneOrThrow("owner", Scope("owner"), owner))
		require.NoError(t, err)
		assert.Equal(t, Entity{"name": "first"}, got[0].(Entity)["owner"])
	})

	t.Run("one or throw with no match fails", func(t *testing.T) {
		_, err := Hydrate(context.Background(), rows, New("id").HasOneOrThrow("owner", Scope("owner"), owner))
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrExpectedOneMissing)
		var missing *ExpectedOneMissingError
		require.ErrorAs(t, err, &missing)
		assert.Equal(t, "owner", missing.Key)
	})
}

func TestHydrateDeepNesting(t *testing.T) {
	rows := []Row{
		{"id": 1, "posts$$id": 10, "posts$$comments$$id": 100, "posts$$comments$$author$$name": "a"},
		{"id": 1, "posts$$id": 10, "posts$$comments$$id": 101, "posts$$comments$$author$$name": "b"},
		{"id": 1, "posts$$id": 11, "posts$$comments$$id": nil, "posts$$comments$$author$$name": nil},
	}
	author := New("name").Fields("name")
	comment := New("id").Fields("id").HasOne("author", Scope("author"), author)
	post := New("id").Fields("id").HasMany("comments", Scope("comments"), comment)
	spec := New("id").Fields("id").HasMany("posts", Scope("posts"), post)

	got, err := Hydrate(context.Background(), rows, spec)
	require.NoError(t, err)
	want := []any{Entity{"id": 1, "posts": []any{
		Entity{"id": 10, "comments": []any{
			Entity{"id": 100, "author": Entity{"name": "a"}},
			Entity{"id": 101, "author": Entity{"name": "b"}},
		}},
		Entity{"id": 11, "comments": []any{}},
	}}}
	assert.Equal(t, want, got)
}

func TestHydrateNestedOrdering(t *testing.T) {
	rows := []Row{
		{"id": 2, "p$$id": 1, "p$$rank": 5},
		{"id": 2, "p$$id": 2, "p$$rank": nil},
		{"id": 2, "p$$id": 3, "p$$rank": 9},
		{"id": 1, "p$$id": 4, "p$$rank": 5},
		{"id": 1, "p$$id": 5, "p$$rank": 5},
	}

	t.Run("nulls first holds for descending keys", func(t *testing.T) {
		child := New("id").Fields("id", "rank").OrderByField("rank", Desc, NullsFirst)
		spec := New("id").Fields("id").HasMany("p", Scope("p"), child).OrderByField("id", Asc)

		got, err := Hydrate(context.Background(), rows, spec)
		require.NoError(t, err)
		assert.Equal(t, []any{2, 1}, pluck(got, "id"), "top level keeps arrival order")
		assert.Equal(t, []any{2, 3, 1}, pluck(got[0].(Entity)["p"].([]any), "id"))
	})

	t.Run("root ordering is opt in", func(t *testing.T) {
		spec := New("id").Fields("id").HasMany("p", Scope("p"), New("id")).OrderByField("id", Asc)
		got, err := Hydrate(context.Background(), rows, spec, WithRootOrdering())
		require.NoError(t, err)
		assert.Equal(t, []any{1, 2}, pluck(got, "id"))
	})

	t.Run("key tie-break runs last even when declared first", func(t *testing.T) {
		child := New("id").Fields("id", "rank").OrderByKeys().OrderByField("rank", Asc)
		shuffled := []Row{
			{"id": 1, "p$$id": 9, "p$$rank": 1},
			{"id": 1, "p$$id": 3, "p$$rank": 2},
			{"id": 1, "p$$id": 7, "p$$rank": 1},
		}
		got, err := Hydrate(context.Background(), shuffled, New("id").HasMany("p", Scope("p"), child))
		require.NoError(t, err)
		assert.Equal(t, []any{7, 9, 3}, pluck(got[0].(Entity)["p"].([]any), "id"))
	})

	t.Run("ordering sees entities before the terminal transform", func(t *testing.T) {
		child := New("id").Fields("id").OrderByField("id", Desc).Map(func(e Entity) any { return e["id"] })
		got, err := Hydrate(context.Background(), rows[:3], New("id").HasMany("p", Scope("p"), child))
		require.NoError(t, err)
		assert.Equal(t, []any{3, 2, 1}, got[0].(Entity)["p"])
	})
}

func TestHydrateMapChains(t *testing.T) {
	spec := New("id").Fields("id", "name").
		Map(func(e Entity) any { return e["name"] }).
		Map(func(v any) any { return strings.ToUpper(v.(string)) })

	got, err := Hydrate(context.Background(), []Row{{"id": 1, "name": "alice"}, {"id": 2, "name": "bob"}}, spec)
	require.NoError(t, err)
	assert.Equal(t, []any{"ALICE", "BOB"}, got)

	one, err := HydrateOne(context.Background(), Row{"id": 3, "name": "carol"}, spec)
	require.NoError(t, err)
	assert.Equal(t, "CAROL", one)
}

func TestHydrateNoKeyByKeepsEveryRow(t *testing.T) {
	got, err := Hydrate(context.Background(), []Row{{"v": 1}, {"v": 1}}, New().Fields("v"))
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestHydrateAttachedFetchRunsOncePerNode(t *testing.T) {
	var rootCalls, nestedCalls atomic.Int32
	var nestedInput []Row

	tagsFetch := func(ctx context.Context, rows []Row) ([]any, error) {
		rootCalls.Add(1)
		var out []any
		for _, id := range UniqueValues(rows, "id") {
			out = append(out, Entity{"user_id": id, "tag": "t" + string(rune('0'+id.(int)))})
		}
		return out, nil
	}
	likesFetch := func(ctx context.Context, rows []Row) ([]any, error) {
		nestedCalls.Add(1)
		nestedInput = rows
		return []any{
			Entity{"post_id": 10, "who": "x"},
			Entity{"post_id": 10, "who": "y"},
			Entity{"post_id": 12, "who": "z"},
		}, nil
	}

	post := New("id").Fields("id").AttachMany("likes", likesFetch, OnKeys("post_id"))
	spec := New("id").Fields("id").
		HasMany("posts", Scope("posts"), post).
		AttachOne("tag", tagsFetch, On("user_id", "id"))

	rows := []Row{
		{"id": 1, "posts$$id": 10},
		{"id": 1, "posts$$id": 11},
		{"id": 2, "posts$$id": 12},
		{"id": 2, "posts$$id": 10},
		{"id": 3, "posts$$id": nil},
	}

	got, err := Hydrate(context.Background(), rows, spec)
	require.NoError(t, err)

	assert.Equal(t, int32(1), rootCalls.Load())
	assert.Equal(t, int32(1), nestedCalls.Load())
	assert.Equal(t, []Row{{"id": 10}, {"id": 11}, {"id": 12}, {"id": 10}}, nestedInput,
		"nested fetch sees unprefixed sub-rows without null keys, duplicates kept")

	require.Len(t, got, 3)
	alice := got[0].(Entity)
	assert.Equal(t, Entity{"user_id": 1, "tag": "t1"}, alice["tag"])
	posts := alice["posts"].([]any)
	assert.Equal(t, []any{"x", "y"}, pluck(posts[0].(Entity)["likes"].([]any), "who"))
	assert.Equal(t, []any{}, posts[1].(Entity)["likes"])
	assert.Equal(t, []any{"z"}, pluck(got[1].(Entity)["posts"].([]any)[0].(Entity)["likes"].([]any), "who"))
	assert.Equal(t, []any{}, got[2].(Entity)["posts"])
}

func TestHydrateAttachedSameKeyAtTwoDepths(t *testing.T) {
	rootFetch := func(ctx context.Context, rows []Row) ([]any, error) {
		return []any{Entity{"ref": 1, "level": "root"}}, nil
	}
	childFetch := func(ctx context.Context, rows []Row) ([]any, error) {
		return []any{Entity{"ref": 5, "level": "child"}}, nil
	}
	child := New("id").AttachOne("meta", childFetch, OnKeys("ref"))
	spec := New("id").AttachOne("meta", rootFetch, OnKeys("ref")).HasOne("c", Scope("c"), child)

	got, err := Hydrate(context.Background(), []Row{{"id": 1, "c$$id": 5}}, spec)
	require.NoError(t, err)
	e := got[0].(Entity)
	assert.Equal(t, "root", e["meta"].(Entity)["level"])
	assert.Equal(t, "child", e["c"].(Entity)["meta"].(Entity)["level"])
}

func TestHydrateAttachedErrors(t *testing.T) {
	boom := errors.New("boom")
	failing := func(ctx context.Context, rows []Row) ([]any, error) { return nil, boom }
	blocking := func(ctx context.Context, rows []Row) ([]any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	t.Run("fetch failure fails the call", func(t *testing.T) {
		spec := New("id").AttachMany("slow", blocking, OnKeys("id")).AttachMany("bad", failing, OnKeys("id"))
		got, err := Hydrate(context.Background(), []Row{{"id": 1}}, spec)
		require.Error(t, err)
		assert.Nil(t, got)
		assert.ErrorIs(t, err, boom)
		assert.Contains(t, err.Error(), `attached collection "bad"`)
	})

	t.Run("attach one or throw without match", func(t *testing.T) {
		none := func(ctx context.Context, rows []Row) ([]any, error) { return nil, nil }
		_, err := Hydrate(context.Background(), []Row{{"id": 1}}, New("id").AttachOneOrThrow("owner", none, OnKeys("id")))
		assert.ErrorIs(t, err, ErrExpectedOneMissing)
	})
}

func TestHydrateOneRunsAttachedFetch(t *testing.T) {
	var calls atomic.Int32
	fetch := func(ctx context.Context, rows []Row) ([]any, error) {
		calls.Add(1)
		assert.Len(t, rows, 1)
		return []any{Entity{"user_id": 1, "n": 1}, Entity{"user_id": 1, "n": 2}}, nil
	}
	spec := New("id").Fields("id").AttachMany("items", fetch, On("user_id", "id"))

	got, err := HydrateOne(context.Background(), Row{"id": 1}, spec)
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, []any{1, 2}, pluck(got.(Entity)["items"].([]any), "n"))
}

func TestUniqueValues(t *testing.T) {
	rows := []Row{
		{"a": 1, "b": "x"},
		{"a": int64(1), "b": "x"},
		{"a": 2, "b": nil},
		{"a": 2, "b": "y"},
	}
	assert.Equal(t, []any{1, 2}, UniqueValues(rows, "a"))
	assert.Equal(t, []any{[]any{1, "x"}, []any{2, "y"}}, UniqueValues(rows, "a", "b"))
	assert.Nil(t, UniqueValues(nil, "a"))
}

func pluck(items []any, field string) []any {
	out := make([]any, len(items))
	for i, it := range items {
		out[i] = it.(Entity)[field]
	}
	return out
}
